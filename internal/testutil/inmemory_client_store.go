package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/resellerdesk/resellerdesk/internal/domain/client"
	ierr "github.com/resellerdesk/resellerdesk/internal/errors"
)

var _ client.Repository = (*InMemoryClientStore)(nil)

type InMemoryClientStore struct {
	*InMemoryStore[*client.SubscriptionRef]
	mu        sync.Mutex
	renewals  int
	passwords map[string]string
}

func NewInMemoryClientStore() *InMemoryClientStore {
	return &InMemoryClientStore{
		InMemoryStore: NewInMemoryStore[*client.SubscriptionRef](),
		passwords:     make(map[string]string),
	}
}

func (s *InMemoryClientStore) Get(ctx context.Context, tenantID, clientID string) (*client.SubscriptionRef, error) {
	ref, err := s.InMemoryStore.Get(ctx, clientID)
	if err != nil || ref.TenantID != tenantID {
		return nil, ierr.NewError("client not found").
			WithHint("Client not found").
			Mark(ierr.ErrNotFound)
	}
	c := *ref
	return &c, nil
}

func (s *InMemoryClientStore) ApplyRenewal(ctx context.Context, tenantID, clientID string, update client.RenewalUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref, err := s.Get(ctx, tenantID, clientID)
	if err != nil {
		return err
	}

	ref.PlanLabel = update.PlanLabel
	ref.PriceAmount = update.PriceAmount
	ref.PriceCurrency = update.PriceCurrency
	due := update.DueDate
	ref.DueDate = &due
	ref.UpdatedAt = time.Now().UTC()
	if update.RotatedPassword != nil {
		s.passwords[clientID] = *update.RotatedPassword
	}

	s.renewals++
	return s.InMemoryStore.Update(ctx, clientID, ref)
}

// Add seeds a client reference
func (s *InMemoryClientStore) Add(ctx context.Context, ref *client.SubscriptionRef) error {
	return s.InMemoryStore.Create(ctx, ref.ID, ref)
}

// Renewals returns how many times ApplyRenewal succeeded
func (s *InMemoryClientStore) Renewals() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renewals
}

// Password returns the last rotated line password stored for a client
func (s *InMemoryClientStore) Password(clientID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.passwords[clientID]
	return p, ok
}

func (s *InMemoryClientStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InMemoryStore.Clear()
	s.renewals = 0
	s.passwords = make(map[string]string)
}
