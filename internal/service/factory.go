package service

import (
	"github.com/resellerdesk/resellerdesk/internal/cache"
	"github.com/resellerdesk/resellerdesk/internal/config"
	"github.com/resellerdesk/resellerdesk/internal/domain/client"
	"github.com/resellerdesk/resellerdesk/internal/domain/events"
	"github.com/resellerdesk/resellerdesk/internal/domain/integration"
	"github.com/resellerdesk/resellerdesk/internal/domain/payment"
	"github.com/resellerdesk/resellerdesk/internal/integration/mercadopago"
	"github.com/resellerdesk/resellerdesk/internal/logger"
	"github.com/resellerdesk/resellerdesk/internal/postgres"
	"github.com/resellerdesk/resellerdesk/internal/provisioning"
	"github.com/resellerdesk/resellerdesk/internal/pubsub"
	"github.com/resellerdesk/resellerdesk/internal/pyroscope"
	"github.com/resellerdesk/resellerdesk/internal/security"
	"github.com/resellerdesk/resellerdesk/internal/sentry"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient
	Cache  cache.Cache

	// Repositories
	PaymentRepo     payment.Repository
	ClientRepo      client.Repository
	IntegrationRepo integration.Repository
	EventRepo       events.Repository

	// External systems
	Encryption      security.EncryptionService
	PaymentProvider mercadopago.Client
	Gateway         provisioning.Gateway
	Publisher       pubsub.Publisher

	// Monitoring, both may be nil
	Sentry    *sentry.Service
	Pyroscope *pyroscope.Service
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	cache cache.Cache,
	paymentRepo payment.Repository,
	clientRepo client.Repository,
	integrationRepo integration.Repository,
	eventRepo events.Repository,
	encryption security.EncryptionService,
	paymentProvider mercadopago.Client,
	gateway provisioning.Gateway,
	publisher pubsub.Publisher,
	sentryService *sentry.Service,
	pyroscopeService *pyroscope.Service,
) ServiceParams {
	return ServiceParams{
		Logger:          logger,
		Config:          config,
		DB:              db,
		Cache:           cache,
		PaymentRepo:     paymentRepo,
		ClientRepo:      clientRepo,
		IntegrationRepo: integrationRepo,
		EventRepo:       eventRepo,
		Encryption:      encryption,
		PaymentProvider: paymentProvider,
		Gateway:         gateway,
		Publisher:       publisher,
		Sentry:          sentryService,
		Pyroscope:       pyroscopeService,
	}
}
