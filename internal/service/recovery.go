package service

import (
	"context"
	"time"

	"github.com/resellerdesk/resellerdesk/internal/api/dto"
	"github.com/resellerdesk/resellerdesk/internal/domain/events"
	"github.com/resellerdesk/resellerdesk/internal/types"
)

// RecoveryService releases fulfillment locks held by a process that died mid renewal
type RecoveryService interface {
	// RecoverStale moves processing rows older than fulfillment.stale_after back to pending
	RecoverStale(ctx context.Context) (*dto.RecoverStaleResponse, error)
	// Run sweeps every interval until ctx is done
	Run(ctx context.Context, interval time.Duration)
}

type recoveryService struct {
	ServiceParams
	now func() time.Time
}

func NewRecoveryService(params ServiceParams) RecoveryService {
	return &recoveryService{
		ServiceParams: params,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *recoveryService) RecoverStale(ctx context.Context) (*dto.RecoverStaleResponse, error) {
	now := s.now()
	cutoff := now.Add(-s.Config.Fulfillment.StaleAfter)

	reset, err := s.PaymentRepo.ResetStaleProcessing(ctx, cutoff, now)
	if err != nil {
		return nil, err
	}

	resp := &dto.RecoverStaleResponse{
		Reset:      len(reset),
		PaymentIDs: make([]string, 0, len(reset)),
	}
	for _, rec := range reset {
		// the panel may or may not have renewed the line, flag it loudly
		s.Logger.Warnw("reset stale fulfillment lock",
			"tenant_id", rec.TenantID,
			"payment_record_id", rec.ID,
			"external_payment_id", rec.ExternalPaymentID,
			"cutoff", cutoff,
		)
		err := s.EventRepo.Append(ctx, events.NewEvent(rec.TenantID, rec.ID, rec.ClientID, events.EventFulfillmentReset, types.Metadata{
			"actor":  types.SystemUserID,
			"reason": "stale_processing",
		}))
		if err != nil {
			s.Logger.Errorw("failed to append reset event",
				"payment_record_id", rec.ID,
				"error", err,
			)
		}
		resp.PaymentIDs = append(resp.PaymentIDs, rec.ExternalPaymentID)
	}

	return resp, nil
}

func (s *recoveryService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Logger.Infow("fulfillment recovery sweeper started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("fulfillment recovery sweeper stopped")
			return
		case <-ticker.C:
			resp, err := s.RecoverStale(ctx)
			if err != nil {
				s.Logger.Errorw("fulfillment recovery sweep failed", "error", err)
				continue
			}
			if resp.Reset > 0 {
				s.Logger.Infow("fulfillment recovery sweep finished", "reset", resp.Reset)
			}
		}
	}
}
