package payment

import (
	"context"
	"time"

	ierr "github.com/resellerdesk/resellerdesk/internal/errors"
	"github.com/resellerdesk/resellerdesk/internal/types"
	"github.com/shopspring/decimal"
)

// PaymentRecord is one renewal payment attempt in the tenant's ledger.
// ApprovalStatus and FulfillmentStatus move independently.
type PaymentRecord struct {
	ID                string `db:"id" json:"id"`
	TenantID          string `db:"tenant_id" json:"tenant_id"`
	ClientID          string `db:"client_id" json:"client_id"`
	ExternalPaymentID string `db:"external_payment_id" json:"external_payment_id"`

	Period        types.Period    `db:"period" json:"period"`
	PlanLabel     string          `db:"plan_label" json:"plan_label"`
	PriceAmount   decimal.Decimal `db:"price_amount" json:"price_amount"`
	PriceCurrency string          `db:"price_currency" json:"price_currency"`

	ApprovalStatus    types.ApprovalStatus    `db:"approval_status" json:"approval_status"`
	FulfillmentStatus types.FulfillmentStatus `db:"fulfillment_status" json:"fulfillment_status"`
	// FulfillmentError only holds user safe text, set while FulfillmentStatus is error
	FulfillmentError *string `db:"fulfillment_error" json:"fulfillment_error,omitempty"`
	// NewDueDate is written once, together with the done transition
	NewDueDate *time.Time `db:"new_due_date" json:"new_due_date,omitempty"`

	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
	FulfillmentStartedAt *time.Time `db:"fulfillment_started_at" json:"fulfillment_started_at,omitempty"`
	FulfilledAt          *time.Time `db:"fulfilled_at" json:"fulfilled_at,omitempty"`
}

// NewPaymentRecord creates a pending ledger row for a checkout that was just started
func NewPaymentRecord(ctx context.Context, clientID, externalPaymentID string, period types.Period, planLabel string, amount decimal.Decimal, currency string) *PaymentRecord {
	now := time.Now().UTC()
	return &PaymentRecord{
		ID:                types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT_RECORD),
		TenantID:          types.GetTenantID(ctx),
		ClientID:          clientID,
		ExternalPaymentID: externalPaymentID,
		Period:            period,
		PlanLabel:         planLabel,
		PriceAmount:       amount,
		PriceCurrency:     currency,
		ApprovalStatus:    types.ApprovalStatusPending,
		FulfillmentStatus: types.FulfillmentStatusNone,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func (r *PaymentRecord) Validate() error {
	if r.TenantID == "" || r.ClientID == "" || r.ExternalPaymentID == "" {
		return ierr.NewError("payment record is missing ownership fields").
			WithHint("Tenant, client and external payment id are required").
			Mark(ierr.ErrValidation)
	}
	if r.PriceAmount.IsNegative() {
		return ierr.NewError("negative price").
			WithHint("Price amount cannot be negative").
			WithReportableDetails(map[string]any{
				"price_amount": r.PriceAmount.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if err := r.ApprovalStatus.Validate(); err != nil {
		return err
	}
	if err := r.FulfillmentStatus.Validate(); err != nil {
		return err
	}
	if r.NewDueDate != nil && r.FulfillmentStatus != types.FulfillmentStatusDone {
		return ierr.NewError("due date set on unfulfilled record").
			WithHint("New due date can only be set on fulfilled payments").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsApproved reports whether the payment cleared on the provider side
func (r *PaymentRecord) IsApproved() bool {
	return r.ApprovalStatus == types.ApprovalStatusApproved
}

// Clone returns a copy that does not share pointer fields with r
func (r *PaymentRecord) Clone() *PaymentRecord {
	c := *r
	if r.FulfillmentError != nil {
		v := *r.FulfillmentError
		c.FulfillmentError = &v
	}
	if r.NewDueDate != nil {
		v := *r.NewDueDate
		c.NewDueDate = &v
	}
	if r.FulfillmentStartedAt != nil {
		v := *r.FulfillmentStartedAt
		c.FulfillmentStartedAt = &v
	}
	if r.FulfilledAt != nil {
		v := *r.FulfilledAt
		c.FulfilledAt = &v
	}
	return &c
}
