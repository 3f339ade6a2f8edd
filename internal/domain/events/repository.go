package events

import "context"

type Repository interface {
	Append(ctx context.Context, event *Event) error
	ListByPaymentRecord(ctx context.Context, tenantID, paymentRecordID string) ([]*Event, error)
}
