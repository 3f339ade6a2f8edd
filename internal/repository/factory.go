package repository

import (
	"github.com/resellerdesk/resellerdesk/internal/domain/client"
	"github.com/resellerdesk/resellerdesk/internal/domain/events"
	"github.com/resellerdesk/resellerdesk/internal/domain/integration"
	"github.com/resellerdesk/resellerdesk/internal/domain/payment"
	"github.com/resellerdesk/resellerdesk/internal/logger"
	"github.com/resellerdesk/resellerdesk/internal/postgres"
	postgresRepo "github.com/resellerdesk/resellerdesk/internal/repository/postgres"
)

func NewPaymentRepository(db *postgres.DB, logger *logger.Logger) payment.Repository {
	return postgresRepo.NewPaymentRepository(db, logger)
}

func NewClientRepository(db *postgres.DB, logger *logger.Logger) client.Repository {
	return postgresRepo.NewClientRepository(db, logger)
}

func NewIntegrationRepository(db *postgres.DB, logger *logger.Logger) integration.Repository {
	return postgresRepo.NewIntegrationRepository(db, logger)
}

func NewEventRepository(db *postgres.DB, logger *logger.Logger) events.Repository {
	return postgresRepo.NewEventRepository(db, logger)
}
