package client

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubscriptionRef is the slice of the client record the renewal pipeline needs.
// The client itself is owned by the CRUD side of the platform.
type SubscriptionRef struct {
	ID            string          `db:"id" json:"id"`
	TenantID      string          `db:"tenant_id" json:"tenant_id"`
	IntegrationID *string         `db:"integration_id" json:"integration_id,omitempty"`
	Username      string          `db:"username" json:"username"`
	Phone         string          `db:"phone" json:"phone"`
	PlanLabel     string          `db:"plan_label" json:"plan_label"`
	PriceAmount   decimal.Decimal `db:"price_amount" json:"price_amount"`
	PriceCurrency string          `db:"price_currency" json:"price_currency"`
	DueDate       *time.Time      `db:"due_date" json:"due_date,omitempty"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// RenewalUpdate is the single write applied to a client after a successful renewal
type RenewalUpdate struct {
	PlanLabel     string
	PriceAmount   decimal.Decimal
	PriceCurrency string
	DueDate       time.Time
	// RotatedPassword is set when the panel issued new line credentials
	RotatedPassword *string
}
