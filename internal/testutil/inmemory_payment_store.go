package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/resellerdesk/resellerdesk/internal/domain/payment"
	ierr "github.com/resellerdesk/resellerdesk/internal/errors"
	"github.com/resellerdesk/resellerdesk/internal/types"
	"github.com/samber/lo"
)

var _ payment.Repository = (*InMemoryPaymentStore)(nil)

// InMemoryPaymentStore implements payment.Repository. Conditional updates run
// under one mutex so they behave like the single row UPDATE ... WHERE in postgres.
type InMemoryPaymentStore struct {
	mu      sync.Mutex
	records map[string]*payment.PaymentRecord
	writes  int
}

func NewInMemoryPaymentStore() *InMemoryPaymentStore {
	return &InMemoryPaymentStore{
		records: make(map[string]*payment.PaymentRecord),
	}
}

func (s *InMemoryPaymentStore) Create(ctx context.Context, rec *payment.PaymentRecord) error {
	if rec == nil {
		return ierr.NewError("payment record cannot be nil").
			WithHint("Payment record cannot be nil").
			Mark(ierr.ErrValidation)
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return ierr.NewError("payment record already exists").
			WithHint("A payment with this id already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	for _, existing := range s.records {
		if existing.TenantID == rec.TenantID && existing.ExternalPaymentID == rec.ExternalPaymentID {
			return ierr.NewError("duplicate external payment id").
				WithHint("A payment with this external id already exists").
				Mark(ierr.ErrAlreadyExists)
		}
	}

	s.records[rec.ID] = rec.Clone()
	return nil
}

func (s *InMemoryPaymentStore) Get(ctx context.Context, tenantID, id string) (*payment.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok || rec.TenantID != tenantID {
		return nil, notFound()
	}
	return rec.Clone(), nil
}

func (s *InMemoryPaymentStore) GetByExternalID(ctx context.Context, tenantID, externalPaymentID string) (*payment.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records {
		if rec.TenantID == tenantID && rec.ExternalPaymentID == externalPaymentID {
			return rec.Clone(), nil
		}
	}
	return nil, notFound()
}

func (s *InMemoryPaymentStore) UpdateApprovalStatus(ctx context.Context, rec *payment.PaymentRecord, status types.ApprovalStatus) (bool, error) {
	if err := status.Validate(); err != nil {
		return false, err
	}

	now := time.Now().UTC()
	return s.conditional(rec, func(stored *payment.PaymentRecord) bool {
		return stored.ApprovalStatus != types.ApprovalStatusApproved && stored.ApprovalStatus != status
	}, func(stored *payment.PaymentRecord) {
		stored.ApprovalStatus = status
		stored.UpdatedAt = now
	}), nil
}

func (s *InMemoryPaymentStore) TryAcquireFulfillment(ctx context.Context, rec *payment.PaymentRecord, now time.Time) (bool, error) {
	return s.conditional(rec, func(stored *payment.PaymentRecord) bool {
		return stored.IsApproved() && stored.FulfillmentStatus.IsLockable()
	}, func(stored *payment.PaymentRecord) {
		stored.FulfillmentStatus = types.FulfillmentStatusProcessing
		stored.FulfillmentStartedAt = lo.ToPtr(now)
		stored.UpdatedAt = now
	}), nil
}

func (s *InMemoryPaymentStore) MarkFulfilled(ctx context.Context, rec *payment.PaymentRecord, newDueDate, now time.Time) error {
	ok := s.conditional(rec, isProcessing, func(stored *payment.PaymentRecord) {
		stored.FulfillmentStatus = types.FulfillmentStatusDone
		stored.FulfillmentError = nil
		stored.NewDueDate = lo.ToPtr(newDueDate)
		stored.FulfilledAt = lo.ToPtr(now)
		stored.UpdatedAt = now
	})
	if !ok {
		return notProcessing(rec)
	}
	return nil
}

func (s *InMemoryPaymentStore) MarkFulfillmentFailed(ctx context.Context, rec *payment.PaymentRecord, safeMessage string, now time.Time) error {
	ok := s.conditional(rec, isProcessing, func(stored *payment.PaymentRecord) {
		stored.FulfillmentStatus = types.FulfillmentStatusError
		stored.FulfillmentError = lo.ToPtr(safeMessage)
		stored.UpdatedAt = now
	})
	if !ok {
		return notProcessing(rec)
	}
	return nil
}

func (s *InMemoryPaymentStore) ResetFulfillment(ctx context.Context, rec *payment.PaymentRecord, now time.Time) (bool, error) {
	return s.conditional(rec, func(stored *payment.PaymentRecord) bool {
		return stored.FulfillmentStatus == types.FulfillmentStatusError
	}, func(stored *payment.PaymentRecord) {
		stored.FulfillmentStatus = types.FulfillmentStatusPending
		stored.FulfillmentError = nil
		stored.FulfillmentStartedAt = nil
		stored.UpdatedAt = now
	}), nil
}

func (s *InMemoryPaymentStore) ResetStaleProcessing(ctx context.Context, cutoff, now time.Time) ([]*payment.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reset []*payment.PaymentRecord
	for _, stored := range s.records {
		if stored.FulfillmentStatus != types.FulfillmentStatusProcessing ||
			stored.FulfillmentStartedAt == nil ||
			!stored.FulfillmentStartedAt.Before(cutoff) {
			continue
		}
		stored.FulfillmentStatus = types.FulfillmentStatusPending
		stored.FulfillmentStartedAt = nil
		stored.UpdatedAt = now
		s.writes++
		reset = append(reset, stored.Clone())
	}
	return reset, nil
}

// conditional applies mutate when the stored row passes guard and copies the
// result back into rec, mirroring a one-row UPDATE ... RETURNING
func (s *InMemoryPaymentStore) conditional(rec *payment.PaymentRecord, guard func(*payment.PaymentRecord) bool, mutate func(*payment.PaymentRecord)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[rec.ID]
	if !ok || stored.TenantID != rec.TenantID || !guard(stored) {
		return false
	}

	mutate(stored)
	s.writes++
	*rec = *stored.Clone()
	return true
}

// Put stores rec as is, bypassing validation. Used to seed edge case rows.
func (s *InMemoryPaymentStore) Put(rec *payment.PaymentRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec.Clone()
}

// Writes returns how many rows were mutated since the last Clear
func (s *InMemoryPaymentStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *InMemoryPaymentStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]*payment.PaymentRecord)
	s.writes = 0
}

func isProcessing(stored *payment.PaymentRecord) bool {
	return stored.FulfillmentStatus == types.FulfillmentStatusProcessing
}

func notProcessing(rec *payment.PaymentRecord) error {
	return ierr.NewError("payment record is not processing").
		WithHint("Payment is not being fulfilled").
		WithReportableDetails(map[string]any{
			"payment_record_id": rec.ID,
		}).
		Mark(ierr.ErrInvalidOperation)
}

func notFound() error {
	return ierr.NewError("payment record not found").
		WithHint("Payment not found").
		Mark(ierr.ErrNotFound)
}
