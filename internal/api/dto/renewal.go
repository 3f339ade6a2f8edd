package dto

import (
	"strings"
	"time"

	"github.com/resellerdesk/resellerdesk/internal/domain/payment"
	"github.com/resellerdesk/resellerdesk/internal/types"
	"github.com/resellerdesk/resellerdesk/internal/validator"
)

// WebhookTypePayment is the only provider notification type that triggers the pipeline
const WebhookTypePayment = "payment"

// PaymentWebhookRequest is the provider notification body
type PaymentWebhookRequest struct {
	Type string             `json:"type"`
	Data PaymentWebhookData `json:"data"`
}

type PaymentWebhookData struct {
	ID string `json:"id"`
}

// IsPayment reports whether the notification refers to a payment
func (r *PaymentWebhookRequest) IsPayment() bool {
	return strings.EqualFold(strings.TrimSpace(r.Type), WebhookTypePayment)
}

// PaymentID returns the trimmed provider payment id
func (r *PaymentWebhookRequest) PaymentID() string {
	return strings.TrimSpace(r.Data.ID)
}

// WebhookAckResponse is returned for every webhook that passed signature checks
type WebhookAckResponse struct {
	Received bool `json:"received"`
}

// RenewalStatusRequest is sent by the client portal while it waits for a renewal
type RenewalStatusRequest struct {
	SessionToken string `json:"session_token" validate:"required"`
	PaymentID    string `json:"payment_id" validate:"required,max=128"`
}

func (r *RenewalStatusRequest) Validate() error {
	r.SessionToken = strings.TrimSpace(r.SessionToken)
	r.PaymentID = strings.TrimSpace(r.PaymentID)
	return validator.ValidateRequest(r)
}

// RenewalStatusResponse only carries what the owning client may see
type RenewalStatusResponse struct {
	OK         bool                 `json:"ok"`
	Status     types.ApprovalStatus `json:"status"`
	Phase      types.RenewalPhase   `json:"phase"`
	NewDueDate *time.Time           `json:"new_due_date,omitempty"`
	Error      string               `json:"error,omitempty"`
}

// NewRenewalStatusResponse renders a pipeline outcome for the portal
func NewRenewalStatusResponse(rec *payment.PaymentRecord, phase types.RenewalPhase) *RenewalStatusResponse {
	resp := &RenewalStatusResponse{
		OK:     phase != types.RenewalPhaseError,
		Status: rec.ApprovalStatus,
		Phase:  phase,
	}
	if phase == types.RenewalPhaseDone {
		resp.NewDueDate = rec.NewDueDate
	}
	if phase == types.RenewalPhaseError && rec.FulfillmentError != nil {
		resp.Error = *rec.FulfillmentError
	}
	return resp
}

// RetryFulfillmentResponse is returned to operators re-triggering a failed renewal
type RetryFulfillmentResponse struct {
	PaymentRecordID   string                  `json:"payment_record_id"`
	ExternalPaymentID string                  `json:"external_payment_id"`
	ApprovalStatus    types.ApprovalStatus    `json:"approval_status"`
	FulfillmentStatus types.FulfillmentStatus `json:"fulfillment_status"`
	Phase             types.RenewalPhase      `json:"phase"`
	NewDueDate        *time.Time              `json:"new_due_date,omitempty"`
	Error             string                  `json:"error,omitempty"`
}

func NewRetryFulfillmentResponse(rec *payment.PaymentRecord, phase types.RenewalPhase) *RetryFulfillmentResponse {
	resp := &RetryFulfillmentResponse{
		PaymentRecordID:   rec.ID,
		ExternalPaymentID: rec.ExternalPaymentID,
		ApprovalStatus:    rec.ApprovalStatus,
		FulfillmentStatus: rec.FulfillmentStatus,
		Phase:             phase,
		NewDueDate:        rec.NewDueDate,
	}
	if rec.FulfillmentError != nil {
		resp.Error = *rec.FulfillmentError
	}
	return resp
}

// RecoverStaleResponse reports the records a recovery sweep moved back to pending
type RecoverStaleResponse struct {
	Reset      int      `json:"reset"`
	PaymentIDs []string `json:"payment_ids"`
}
