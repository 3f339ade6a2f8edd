package postgres

import (
	"context"

	"github.com/resellerdesk/resellerdesk/internal/domain/integration"
	ierr "github.com/resellerdesk/resellerdesk/internal/errors"
	"github.com/resellerdesk/resellerdesk/internal/logger"
	"github.com/resellerdesk/resellerdesk/internal/postgres"
)

type integrationRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewIntegrationRepository(db *postgres.DB, logger *logger.Logger) integration.Repository {
	return &integrationRepository{
		db:     db,
		logger: logger,
	}
}

func (r *integrationRepository) Get(ctx context.Context, tenantID, id string) (*integration.ProviderIntegration, error) {
	query := `
		SELECT * FROM provider_integrations
		WHERE id = :id
		AND tenant_id = :tenant_id`

	rows, err := r.db.NamedQueryContext(ctx, query, map[string]interface{}{
		"id":        id,
		"tenant_id": tenantID,
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to load integration").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ierr.NewError("integration not found").
			WithHint("Integration not found").
			Mark(ierr.ErrNotFound)
	}

	var pi integration.ProviderIntegration
	if err := rows.StructScan(&pi); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to load integration").
			Mark(ierr.ErrDatabase)
	}
	return &pi, nil
}

func (r *integrationRepository) GetActiveGatewayCredential(ctx context.Context, tenantID string) (*integration.GatewayCredential, error) {
	query := `
		SELECT * FROM gateway_credentials
		WHERE tenant_id = :tenant_id
		AND active = TRUE
		ORDER BY updated_at DESC
		LIMIT 1`

	rows, err := r.db.NamedQueryContext(ctx, query, map[string]interface{}{
		"tenant_id": tenantID,
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to load gateway credential").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ierr.NewError("gateway credential not found").
			WithHint("No active payment gateway").
			Mark(ierr.ErrNotFound)
	}

	var cred integration.GatewayCredential
	if err := rows.StructScan(&cred); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to load gateway credential").
			Mark(ierr.ErrDatabase)
	}
	return &cred, nil
}
