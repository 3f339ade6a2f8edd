package postgres

import (
	"context"

	"github.com/resellerdesk/resellerdesk/internal/domain/client"
	ierr "github.com/resellerdesk/resellerdesk/internal/errors"
	"github.com/resellerdesk/resellerdesk/internal/logger"
	"github.com/resellerdesk/resellerdesk/internal/postgres"
)

type clientRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewClientRepository(db *postgres.DB, logger *logger.Logger) client.Repository {
	return &clientRepository{
		db:     db,
		logger: logger,
	}
}

func (r *clientRepository) Get(ctx context.Context, tenantID, clientID string) (*client.SubscriptionRef, error) {
	query := `
		SELECT id, tenant_id, integration_id, username, phone, plan_label,
			price_amount, price_currency, due_date, updated_at
		FROM clients
		WHERE id = :id
		AND tenant_id = :tenant_id`

	rows, err := r.db.NamedQueryContext(ctx, query, map[string]interface{}{
		"id":        clientID,
		"tenant_id": tenantID,
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to load client").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ierr.NewError("client not found").
			WithHint("Client not found").
			Mark(ierr.ErrNotFound)
	}

	var ref client.SubscriptionRef
	if err := rows.StructScan(&ref); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to load client").
			Mark(ierr.ErrDatabase)
	}
	return &ref, nil
}

func (r *clientRepository) ApplyRenewal(ctx context.Context, tenantID, clientID string, update client.RenewalUpdate) error {
	query := `
		UPDATE clients
		SET plan_label = :plan_label,
			price_amount = :price_amount,
			price_currency = :price_currency,
			due_date = :due_date,
			line_password = COALESCE(:line_password, line_password),
			updated_at = NOW()
		WHERE id = :id
		AND tenant_id = :tenant_id`

	params := map[string]interface{}{
		"id":             clientID,
		"tenant_id":      tenantID,
		"plan_label":     update.PlanLabel,
		"price_amount":   update.PriceAmount,
		"price_currency": update.PriceCurrency,
		"due_date":       update.DueDate,
		"line_password":  update.RotatedPassword,
	}

	r.logger.Debugw("applying renewal to client",
		"client_id", clientID,
		"tenant_id", tenantID,
		"due_date", update.DueDate,
		"password_rotated", update.RotatedPassword != nil,
	)

	result, err := r.db.NamedExecContext(ctx, query, params)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update client").
			Mark(ierr.ErrDatabase)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update client").
			Mark(ierr.ErrDatabase)
	}
	if rows == 0 {
		return ierr.NewError("client not found").
			WithHint("Client not found").
			Mark(ierr.ErrNotFound)
	}
	return nil
}
