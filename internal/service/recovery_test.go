package service

import (
	"testing"
	"time"

	"github.com/resellerdesk/resellerdesk/internal/domain/events"
	"github.com/resellerdesk/resellerdesk/internal/domain/payment"
	"github.com/resellerdesk/resellerdesk/internal/testutil"
	"github.com/resellerdesk/resellerdesk/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type RecoveryServiceSuite struct {
	testutil.BaseServiceTestSuite
	service RecoveryService
}

func TestRecoveryService(t *testing.T) {
	suite.Run(t, new(RecoveryServiceSuite))
}

func (s *RecoveryServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewRecoveryService(ServiceParams{
		Logger:      s.GetLogger(),
		Config:      s.GetConfig(),
		PaymentRepo: s.GetStores().PaymentRepo,
		EventRepo:   s.GetStores().EventRepo,
	})
}

func (s *RecoveryServiceSuite) seedProcessing(externalID string, startedAgo time.Duration) *payment.PaymentRecord {
	rec := payment.NewPaymentRecord(s.GetContext(), "cli_1", externalID, types.PeriodMonthly, "Basic", decimal.NewFromInt(25), "BRL")
	rec.ApprovalStatus = types.ApprovalStatusApproved
	rec.FulfillmentStatus = types.FulfillmentStatusProcessing
	rec.FulfillmentStartedAt = lo.ToPtr(s.GetNow().Add(-startedAgo))
	s.GetStores().PaymentRepo.Put(rec)
	return rec
}

func (s *RecoveryServiceSuite) TestRecoverStale() {
	stale := s.seedProcessing("PAY-STALE", time.Hour)
	fresh := s.seedProcessing("PAY-FRESH", time.Minute)

	resp, err := s.service.RecoverStale(s.GetContext())
	s.Require().NoError(err)
	s.Equal(1, resp.Reset)
	s.Equal([]string{"PAY-STALE"}, resp.PaymentIDs)

	got, err := s.GetStores().PaymentRepo.Get(s.GetContext(), testutil.TestTenantID, stale.ID)
	s.Require().NoError(err)
	s.Equal(types.FulfillmentStatusPending, got.FulfillmentStatus)
	s.Nil(got.FulfillmentStartedAt)

	got, err = s.GetStores().PaymentRepo.Get(s.GetContext(), testutil.TestTenantID, fresh.ID)
	s.Require().NoError(err)
	s.Equal(types.FulfillmentStatusProcessing, got.FulfillmentStatus)

	s.Equal(1, s.GetStores().EventRepo.CountByType(events.EventFulfillmentReset))
}

func (s *RecoveryServiceSuite) TestRecoverStale_Nothing() {
	resp, err := s.service.RecoverStale(s.GetContext())
	s.Require().NoError(err)
	s.Zero(resp.Reset)
	s.Empty(resp.PaymentIDs)
}
