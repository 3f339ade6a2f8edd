package testutil

import (
	"context"
	"sync"

	"github.com/resellerdesk/resellerdesk/internal/domain/integration"
	ierr "github.com/resellerdesk/resellerdesk/internal/errors"
)

var _ integration.Repository = (*InMemoryIntegrationStore)(nil)

type InMemoryIntegrationStore struct {
	*InMemoryStore[*integration.ProviderIntegration]
	mu          sync.RWMutex
	credentials map[string]*integration.GatewayCredential
	lookups     int
}

func NewInMemoryIntegrationStore() *InMemoryIntegrationStore {
	return &InMemoryIntegrationStore{
		InMemoryStore: NewInMemoryStore[*integration.ProviderIntegration](),
		credentials:   make(map[string]*integration.GatewayCredential),
	}
}

func (s *InMemoryIntegrationStore) Get(ctx context.Context, tenantID, id string) (*integration.ProviderIntegration, error) {
	pi, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || pi.TenantID != tenantID {
		return nil, ierr.NewError("integration not found").
			WithHint("Integration not found").
			Mark(ierr.ErrNotFound)
	}
	c := *pi
	return &c, nil
}

func (s *InMemoryIntegrationStore) GetActiveGatewayCredential(ctx context.Context, tenantID string) (*integration.GatewayCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++

	cred, ok := s.credentials[tenantID]
	if !ok || !cred.Active {
		return nil, ierr.NewError("gateway credential not found").
			WithHint("No active payment gateway credential").
			Mark(ierr.ErrNotFound)
	}
	c := *cred
	return &c, nil
}

func (s *InMemoryIntegrationStore) Add(ctx context.Context, pi *integration.ProviderIntegration) error {
	return s.InMemoryStore.Create(ctx, pi.ID, pi)
}

func (s *InMemoryIntegrationStore) AddGatewayCredential(cred *integration.GatewayCredential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials[cred.TenantID] = cred
}

// CredentialLookups counts GetActiveGatewayCredential calls, for cache assertions
func (s *InMemoryIntegrationStore) CredentialLookups() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookups
}

func (s *InMemoryIntegrationStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InMemoryStore.Clear()
	s.credentials = make(map[string]*integration.GatewayCredential)
	s.lookups = 0
}
