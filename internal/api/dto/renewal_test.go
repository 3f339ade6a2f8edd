package dto

import (
	"testing"
	"time"

	"github.com/resellerdesk/resellerdesk/internal/domain/payment"
	ierr "github.com/resellerdesk/resellerdesk/internal/errors"
	"github.com/resellerdesk/resellerdesk/internal/types"
	"github.com/resellerdesk/resellerdesk/internal/validator"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func TestPaymentWebhookRequest(t *testing.T) {
	req := &PaymentWebhookRequest{Type: " Payment ", Data: PaymentWebhookData{ID: " 123 "}}
	assert.True(t, req.IsPayment())
	assert.Equal(t, "123", req.PaymentID())

	req.Type = "plan"
	assert.False(t, req.IsPayment())
}

func TestRenewalStatusRequest_Validate(t *testing.T) {
	validator.NewValidator()

	assert.Error(t, (&RenewalStatusRequest{PaymentID: "1"}).Validate())
	assert.Error(t, (&RenewalStatusRequest{SessionToken: "t", PaymentID: "  "}).Validate())
	assert.NoError(t, (&RenewalStatusRequest{SessionToken: "t", PaymentID: "1"}).Validate())

	err := (&RenewalStatusRequest{SessionToken: "t"}).Validate()
	assert.True(t, ierr.IsValidation(err))
}

func TestNewRenewalStatusResponse(t *testing.T) {
	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	rec := &payment.PaymentRecord{
		ApprovalStatus:    types.ApprovalStatusApproved,
		FulfillmentStatus: types.FulfillmentStatusDone,
		NewDueDate:        &due,
	}

	resp := NewRenewalStatusResponse(rec, types.RenewalPhaseDone)
	assert.True(t, resp.OK)
	assert.Equal(t, &due, resp.NewDueDate)
	assert.Empty(t, resp.Error)

	rec = &payment.PaymentRecord{
		ApprovalStatus:    types.ApprovalStatusApproved,
		FulfillmentStatus: types.FulfillmentStatusError,
		FulfillmentError:  lo.ToPtr("Renewal could not be applied, please contact support"),
	}
	resp = NewRenewalStatusResponse(rec, types.RenewalPhaseError)
	assert.False(t, resp.OK)
	assert.Nil(t, resp.NewDueDate)
	assert.Equal(t, "Renewal could not be applied, please contact support", resp.Error)
}
