package events

import (
	"time"

	"github.com/resellerdesk/resellerdesk/internal/types"
)

type EventType string

const (
	EventRenewalFulfilled EventType = "renewal.fulfilled"
	EventRenewalFailed    EventType = "renewal.failed"
	EventFulfillmentReset EventType = "renewal.reset"
)

// Event is an append only audit entry for a payment record
type Event struct {
	ID              string         `db:"id" json:"id"`
	TenantID        string         `db:"tenant_id" json:"tenant_id"`
	PaymentRecordID string         `db:"payment_record_id" json:"payment_record_id"`
	ClientID        string         `db:"client_id" json:"client_id"`
	Type            EventType      `db:"event_type" json:"event_type"`
	Payload         types.Metadata `db:"payload" json:"payload"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
}

func NewEvent(tenantID, paymentRecordID, clientID string, eventType EventType, payload types.Metadata) *Event {
	return &Event{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_EVENT),
		TenantID:        tenantID,
		PaymentRecordID: paymentRecordID,
		ClientID:        clientID,
		Type:            eventType,
		Payload:         payload,
		CreatedAt:       time.Now().UTC(),
	}
}
