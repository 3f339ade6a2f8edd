package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/resellerdesk/resellerdesk/internal/domain/events"
	ierr "github.com/resellerdesk/resellerdesk/internal/errors"
)

var _ events.Repository = (*InMemoryEventStore)(nil)

type InMemoryEventStore struct {
	mu     sync.RWMutex
	events []*events.Event
}

func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{}
}

func (s *InMemoryEventStore) Append(ctx context.Context, event *events.Event) error {
	if event == nil {
		return ierr.NewError("event cannot be nil").
			WithHint("Event cannot be nil").
			Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryEventStore) ListByPaymentRecord(ctx context.Context, tenantID, paymentRecordID string) ([]*events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*events.Event
	for _, e := range s.events {
		if e.TenantID == tenantID && e.PaymentRecordID == paymentRecordID {
			result = append(result, e)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// CountByType counts events of the given type across all tenants
func (s *InMemoryEventStore) CountByType(eventType events.EventType) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, e := range s.events {
		if e.Type == eventType {
			count++
		}
	}
	return count
}

func (s *InMemoryEventStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}
