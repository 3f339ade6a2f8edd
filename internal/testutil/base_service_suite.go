package testutil

import (
	"context"
	"time"

	"github.com/resellerdesk/resellerdesk/internal/cache"
	"github.com/resellerdesk/resellerdesk/internal/config"
	"github.com/resellerdesk/resellerdesk/internal/logger"
	"github.com/resellerdesk/resellerdesk/internal/postgres"
	"github.com/resellerdesk/resellerdesk/internal/security"
	"github.com/resellerdesk/resellerdesk/internal/types"
	"github.com/resellerdesk/resellerdesk/internal/validator"
	"github.com/stretchr/testify/suite"
)

// TestEncryptionKey is a 32 byte hex key, used as is by the AES service
const TestEncryptionKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// Stores holds all the repositories used by service tests
type Stores struct {
	PaymentRepo     *InMemoryPaymentStore
	ClientRepo      *InMemoryClientStore
	IntegrationRepo *InMemoryIntegrationStore
	EventRepo       *InMemoryEventStore
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx        context.Context
	stores     Stores
	db         postgres.IClient
	cache      cache.Cache
	logger     *logger.Logger
	config     *config.Configuration
	encryption security.EncryptionService
	gateway    *FakeGateway
	httpClient *MockHTTPClient
	pubsub     *InMemoryPubSub
	now        time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()

	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = types.LogLevelInfo
	cfg.Secrets.EncryptionKey = TestEncryptionKey
	cfg.Session.Secret = "test-session-secret"
	cfg.Payments.WebhookSecret = "test-webhook-secret"
	cfg.Payments.APIBaseURL = "https://payments.test"
	cfg.Cron.APIKey = "test-cron-key"
	cfg.Fulfillment.ProvisionTimeout = 2 * time.Second
	cfg.Fulfillment.SideEffectTimeout = 2 * time.Second
	s.config = cfg

	s.logger = logger.NewNoopLogger()

	var err error
	s.encryption, err = security.NewEncryptionService(cfg)
	if err != nil {
		s.T().Fatalf("failed to create encryption service: %v", err)
	}
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext()
	s.setupStores()
	s.now = time.Now().UTC()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		PaymentRepo:     NewInMemoryPaymentStore(),
		ClientRepo:      NewInMemoryClientStore(),
		IntegrationRepo: NewInMemoryIntegrationStore(),
		EventRepo:       NewInMemoryEventStore(),
	}

	s.db = NewMockPostgresClient(s.logger)
	s.cache = cache.NewInMemoryCache(s.config)
	s.gateway = NewFakeGateway()
	s.httpClient = NewMockHTTPClient()
	s.pubsub = NewInMemoryPubSub()
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.PaymentRepo.Clear()
	s.stores.ClientRepo.Clear()
	s.stores.IntegrationRepo.Clear()
	s.stores.EventRepo.Clear()
	s.cache.Flush(s.ctx)
	s.gateway.Reset()
	s.httpClient.Clear()
	_ = s.pubsub.Close()
}

func (s *BaseServiceTestSuite) ClearStores() {
	s.clearStores()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetDB returns the test database client
func (s *BaseServiceTestSuite) GetDB() postgres.IClient {
	return s.db
}

func (s *BaseServiceTestSuite) GetCache() cache.Cache {
	return s.cache
}

func (s *BaseServiceTestSuite) GetEncryption() security.EncryptionService {
	return s.encryption
}

// GetGateway returns the fake provisioning gateway
func (s *BaseServiceTestSuite) GetGateway() *FakeGateway {
	return s.gateway
}

// GetHTTPClient returns the mock client the payment provider lookups go through
func (s *BaseServiceTestSuite) GetHTTPClient() *MockHTTPClient {
	return s.httpClient
}

// GetPubSub returns the recording bus side effects publish to
func (s *BaseServiceTestSuite) GetPubSub() *InMemoryPubSub {
	return s.pubsub
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now.UTC()
}

// GetUUID returns a new UUID string
func (s *BaseServiceTestSuite) GetUUID() string {
	return types.GenerateUUID()
}
