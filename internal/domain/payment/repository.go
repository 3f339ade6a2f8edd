package payment

import (
	"context"
	"time"

	"github.com/resellerdesk/resellerdesk/internal/types"
)

// Repository is the payment ledger. Every state transition is a conditional
// single-row update; a false result means the row was not in the expected state.
type Repository interface {
	Create(ctx context.Context, rec *PaymentRecord) error
	Get(ctx context.Context, tenantID, id string) (*PaymentRecord, error)
	GetByExternalID(ctx context.Context, tenantID, externalPaymentID string) (*PaymentRecord, error)

	// UpdateApprovalStatus never overwrites an approved row
	UpdateApprovalStatus(ctx context.Context, rec *PaymentRecord, status types.ApprovalStatus) (bool, error)

	// TryAcquireFulfillment moves an approved row from none/pending to processing
	TryAcquireFulfillment(ctx context.Context, rec *PaymentRecord, now time.Time) (bool, error)

	// MarkFulfilled moves processing to done and is the only writer of new_due_date
	MarkFulfilled(ctx context.Context, rec *PaymentRecord, newDueDate, now time.Time) error

	// MarkFulfillmentFailed moves processing to error with a user safe message
	MarkFulfillmentFailed(ctx context.Context, rec *PaymentRecord, safeMessage string, now time.Time) error

	// ResetFulfillment moves error back to pending for an operator retry
	ResetFulfillment(ctx context.Context, rec *PaymentRecord, now time.Time) (bool, error)

	// ResetStaleProcessing moves processing rows started before cutoff back to pending
	ResetStaleProcessing(ctx context.Context, cutoff, now time.Time) ([]*PaymentRecord, error)
}
