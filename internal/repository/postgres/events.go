package postgres

import (
	"context"

	"github.com/resellerdesk/resellerdesk/internal/domain/events"
	ierr "github.com/resellerdesk/resellerdesk/internal/errors"
	"github.com/resellerdesk/resellerdesk/internal/logger"
	"github.com/resellerdesk/resellerdesk/internal/postgres"
)

type eventRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewEventRepository(db *postgres.DB, logger *logger.Logger) events.Repository {
	return &eventRepository{
		db:     db,
		logger: logger,
	}
}

func (r *eventRepository) Append(ctx context.Context, event *events.Event) error {
	query := `
		INSERT INTO payment_events (id, tenant_id, payment_record_id, client_id, event_type, payload, created_at)
		VALUES (:id, :tenant_id, :payment_record_id, :client_id, :event_type, :payload, :created_at)`

	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to record payment event").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *eventRepository) ListByPaymentRecord(ctx context.Context, tenantID, paymentRecordID string) ([]*events.Event, error) {
	query := `
		SELECT * FROM payment_events
		WHERE tenant_id = $1
		AND payment_record_id = $2
		ORDER BY created_at ASC`

	var list []*events.Event
	if err := r.db.SelectContext(ctx, &list, query, tenantID, paymentRecordID); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list payment events").
			Mark(ierr.ErrDatabase)
	}
	return list, nil
}
