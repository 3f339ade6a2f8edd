package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/resellerdesk/resellerdesk/internal/api/dto"
	"github.com/resellerdesk/resellerdesk/internal/auth"
	"github.com/resellerdesk/resellerdesk/internal/domain/client"
	"github.com/resellerdesk/resellerdesk/internal/domain/events"
	"github.com/resellerdesk/resellerdesk/internal/domain/integration"
	"github.com/resellerdesk/resellerdesk/internal/domain/payment"
	ierr "github.com/resellerdesk/resellerdesk/internal/errors"
	"github.com/resellerdesk/resellerdesk/internal/integration/mercadopago"
	"github.com/resellerdesk/resellerdesk/internal/provisioning"
	"github.com/resellerdesk/resellerdesk/internal/testutil"
	"github.com/resellerdesk/resellerdesk/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/suite"
)

type RenewalServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  RenewalService
	notifier Notifier
	testData struct {
		client      *client.SubscriptionRef
		integration *integration.ProviderIntegration
	}
}

func TestRenewalService(t *testing.T) {
	suite.Run(t, new(RenewalServiceSuite))
}

func (s *RenewalServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.setupService()
	s.setupTestData()
}

func (s *RenewalServiceSuite) TearDownTest() {
	s.notifier.Drain()
	s.BaseServiceTestSuite.TearDownTest()
}

func (s *RenewalServiceSuite) serviceParams() ServiceParams {
	return ServiceParams{
		Logger:          s.GetLogger(),
		Config:          s.GetConfig(),
		DB:              s.GetDB(),
		Cache:           s.GetCache(),
		PaymentRepo:     s.GetStores().PaymentRepo,
		ClientRepo:      s.GetStores().ClientRepo,
		IntegrationRepo: s.GetStores().IntegrationRepo,
		EventRepo:       s.GetStores().EventRepo,
		Encryption:      s.GetEncryption(),
		PaymentProvider: mercadopago.NewClient(s.GetConfig(), s.GetHTTPClient(), s.GetLogger()),
		Gateway:         s.GetGateway(),
		Publisher:       s.GetPubSub(),
	}
}

func (s *RenewalServiceSuite) setupService() {
	params := s.serviceParams()
	s.notifier = NewNotifier(params)
	s.service = NewRenewalService(params, NewApprovalService(params), s.notifier)
}

func (s *RenewalServiceSuite) setupTestData() {
	ctx := s.GetContext()

	secret, err := s.GetEncryption().Encrypt("panel-token")
	s.Require().NoError(err)
	s.testData.integration = &integration.ProviderIntegration{
		ID:              "int_panel_a",
		TenantID:        testutil.TestTenantID,
		Name:            "Panel A",
		Variant:         types.ProviderVariantToken,
		BaseURL:         "https://panel.test",
		EncryptedSecret: secret,
		Active:          true,
	}
	s.Require().NoError(s.GetStores().IntegrationRepo.Add(ctx, s.testData.integration))

	accessToken, err := s.GetEncryption().Encrypt("mp-access-token")
	s.Require().NoError(err)
	s.GetStores().IntegrationRepo.AddGatewayCredential(&integration.GatewayCredential{
		ID:                   "gwc_1",
		TenantID:             testutil.TestTenantID,
		Provider:             "mercadopago",
		EncryptedAccessToken: accessToken,
		Active:               true,
	})

	s.testData.client = &client.SubscriptionRef{
		ID:            "cli_1",
		TenantID:      testutil.TestTenantID,
		IntegrationID: lo.ToPtr(s.testData.integration.ID),
		Username:      "line_user_1",
		Phone:         "+5511999990000",
		PlanLabel:     "Basic",
		PriceAmount:   decimal.NewFromInt(25),
		PriceCurrency: "BRL",
	}
	s.Require().NoError(s.GetStores().ClientRepo.Add(ctx, s.testData.client))
}

func (s *RenewalServiceSuite) seedRecord(externalID string, approval types.ApprovalStatus, fulfillment types.FulfillmentStatus) *payment.PaymentRecord {
	rec := payment.NewPaymentRecord(s.GetContext(), s.testData.client.ID, externalID, types.PeriodQuarterly, "Premium", decimal.NewFromInt(60), "BRL")
	rec.ApprovalStatus = approval
	rec.FulfillmentStatus = fulfillment
	s.GetStores().PaymentRepo.Put(rec)
	return rec
}

func (s *RenewalServiceSuite) providerReturns(externalID, status string) {
	s.GetHTTPClient().RegisterJSONResponse("/v1/payments/"+externalID, map[string]any{
		"id":     1,
		"status": status,
	})
}

func (s *RenewalServiceSuite) claims() *auth.SessionClaims {
	return &auth.SessionClaims{TenantID: testutil.TestTenantID, ClientID: s.testData.client.ID}
}

func (s *RenewalServiceSuite) stored(externalID string) *payment.PaymentRecord {
	rec, err := s.GetStores().PaymentRepo.GetByExternalID(s.GetContext(), testutil.TestTenantID, externalID)
	s.Require().NoError(err)
	return rec
}

func webhook(externalID string) *dto.PaymentWebhookRequest {
	return &dto.PaymentWebhookRequest{Type: dto.WebhookTypePayment, Data: dto.PaymentWebhookData{ID: externalID}}
}

func (s *RenewalServiceSuite) TestGetRenewalStatus_FulfillsApprovedPayment() {
	s.seedRecord("PAY-1", types.ApprovalStatusApproved, types.FulfillmentStatusPending)

	resp, err := s.service.GetRenewalStatus(s.GetContext(), s.claims(), "PAY-1")
	s.Require().NoError(err)

	expiry := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	s.True(resp.OK)
	s.Equal(types.RenewalPhaseDone, resp.Phase)
	s.Equal(types.ApprovalStatusApproved, resp.Status)
	s.Require().NotNil(resp.NewDueDate)
	s.True(expiry.Equal(*resp.NewDueDate))

	rec := s.stored("PAY-1")
	s.Equal(types.FulfillmentStatusDone, rec.FulfillmentStatus)
	s.Require().NotNil(rec.NewDueDate)
	s.True(expiry.Equal(*rec.NewDueDate))
	s.NotNil(rec.FulfilledAt)
	s.Nil(rec.FulfillmentError)

	calls := s.GetGateway().RenewCalls()
	s.Require().Len(calls, 1)
	s.Equal(testutil.RenewCall{IntegrationID: "int_panel_a", Username: "line_user_1", Months: 3}, calls[0])

	ref, err := s.GetStores().ClientRepo.Get(s.GetContext(), testutil.TestTenantID, s.testData.client.ID)
	s.Require().NoError(err)
	s.Require().NotNil(ref.DueDate)
	s.True(expiry.Equal(*ref.DueDate))
	s.Equal("Premium", ref.PlanLabel)
	s.True(decimal.NewFromInt(60).Equal(ref.PriceAmount))

	evts, err := s.GetStores().EventRepo.ListByPaymentRecord(s.GetContext(), testutil.TestTenantID, rec.ID)
	s.Require().NoError(err)
	s.Require().Len(evts, 1)
	s.Equal(events.EventRenewalFulfilled, evts[0].Type)
}

func (s *RenewalServiceSuite) TestHandleWebhook_ConcurrentReplaysFulfillOnce() {
	s.seedRecord("PAY-10", types.ApprovalStatusApproved, types.FulfillmentStatusNone)
	s.GetGateway().Delay = 50 * time.Millisecond

	var failures atomic.Int32
	var wg conc.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Go(func() {
			if err := s.service.HandleWebhook(context.Background(), testutil.TestTenantID, webhook("PAY-10")); err != nil {
				failures.Add(1)
			}
		})
	}
	wg.Wait()

	s.Zero(failures.Load())
	s.Len(s.GetGateway().RenewCalls(), 1)
	s.Equal(1, s.GetStores().ClientRepo.Renewals())
	s.Equal(1, s.GetStores().EventRepo.CountByType(events.EventRenewalFulfilled))
	s.Equal(types.FulfillmentStatusDone, s.stored("PAY-10").FulfillmentStatus)
}

func (s *RenewalServiceSuite) TestGetRenewalStatus_LockIsExclusive() {
	s.seedRecord("PAY-20", types.ApprovalStatusApproved, types.FulfillmentStatusPending)
	s.GetGateway().Delay = 200 * time.Millisecond

	phases := make([]types.RenewalPhase, 2)
	var wg conc.WaitGroup
	for i := range phases {
		i := i
		wg.Go(func() {
			resp, err := s.service.GetRenewalStatus(context.Background(), s.claims(), "PAY-20")
			s.NoError(err)
			if resp != nil {
				phases[i] = resp.Phase
			}
		})
	}
	wg.Wait()

	s.ElementsMatch([]types.RenewalPhase{types.RenewalPhaseDone, types.RenewalPhaseRenewing}, phases)
	s.Len(s.GetGateway().RenewCalls(), 1)
}

func (s *RenewalServiceSuite) TestGetRenewalStatus_DoneIsServedFromLedger() {
	due := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	rec := s.seedRecord("PAY-30", types.ApprovalStatusApproved, types.FulfillmentStatusDone)
	rec.NewDueDate = &due
	s.GetStores().PaymentRepo.Put(rec)

	for i := 0; i < 3; i++ {
		resp, err := s.service.GetRenewalStatus(s.GetContext(), s.claims(), "PAY-30")
		s.Require().NoError(err)
		s.Equal(types.RenewalPhaseDone, resp.Phase)
		s.Require().NotNil(resp.NewDueDate)
		s.True(due.Equal(*resp.NewDueDate))
	}

	s.Empty(s.GetGateway().RenewCalls())
	s.Zero(s.GetHTTPClient().Calls("/v1/payments/PAY-30"))
	s.Zero(s.GetStores().PaymentRepo.Writes())
}

func (s *RenewalServiceSuite) TestHandleWebhook_DuplicateDelivery() {
	s.seedRecord("PAY-2", types.ApprovalStatusPending, types.FulfillmentStatusNone)
	s.providerReturns("PAY-2", mercadopago.StatusApproved)

	s.Require().NoError(s.service.HandleWebhook(s.GetContext(), testutil.TestTenantID, webhook("PAY-2")))
	s.Require().NoError(s.service.HandleWebhook(s.GetContext(), testutil.TestTenantID, webhook("PAY-2")))

	s.Len(s.GetGateway().RenewCalls(), 1)
	s.Equal(1, s.GetStores().EventRepo.CountByType(events.EventRenewalFulfilled))
	// approved is sticky, the second delivery never asks the provider
	s.Equal(1, s.GetHTTPClient().Calls("/v1/payments/PAY-2"))

	resp, err := s.service.GetRenewalStatus(s.GetContext(), s.claims(), "PAY-2")
	s.Require().NoError(err)
	s.Equal(types.RenewalPhaseDone, resp.Phase)
	s.Len(s.GetGateway().RenewCalls(), 1)
}

func (s *RenewalServiceSuite) TestGetRenewalStatus_RejectedPaymentShortCircuits() {
	s.seedRecord("PAY-3", types.ApprovalStatusPending, types.FulfillmentStatusNone)
	s.providerReturns("PAY-3", mercadopago.StatusRejected)

	resp, err := s.service.GetRenewalStatus(s.GetContext(), s.claims(), "PAY-3")
	s.Require().NoError(err)
	s.Equal(types.ApprovalStatusRejected, resp.Status)
	s.Equal(types.RenewalPhasePaymentFailed, resp.Phase)
	s.Nil(resp.NewDueDate)

	rec := s.stored("PAY-3")
	s.Equal(types.ApprovalStatusRejected, rec.ApprovalStatus)
	s.Equal(types.FulfillmentStatusNone, rec.FulfillmentStatus)
	s.Empty(s.GetGateway().RenewCalls())
}

func (s *RenewalServiceSuite) TestGetRenewalStatus_PendingPayment() {
	s.seedRecord("PAY-5", types.ApprovalStatusPending, types.FulfillmentStatusNone)
	s.providerReturns("PAY-5", mercadopago.StatusInProcess)

	resp, err := s.service.GetRenewalStatus(s.GetContext(), s.claims(), "PAY-5")
	s.Require().NoError(err)
	s.Equal(types.RenewalPhaseAwaitingPayment, resp.Phase)
	s.Equal(types.ApprovalStatusProcessing, resp.Status)
	s.Empty(s.GetGateway().RenewCalls())
}

func (s *RenewalServiceSuite) TestGetRenewalStatus_ProvisioningTimeout() {
	cfg := s.GetConfig()
	previous := cfg.Fulfillment.ProvisionTimeout
	cfg.Fulfillment.ProvisionTimeout = 50 * time.Millisecond
	defer func() { cfg.Fulfillment.ProvisionTimeout = previous }()

	s.seedRecord("PAY-4", types.ApprovalStatusApproved, types.FulfillmentStatusPending)
	s.GetGateway().Delay = time.Second

	resp, err := s.service.GetRenewalStatus(s.GetContext(), s.claims(), "PAY-4")
	s.Require().NoError(err)
	s.False(resp.OK)
	s.Equal(types.RenewalPhaseError, resp.Phase)
	s.Equal(provisioning.SafeErrorMessage, resp.Error)

	body, err := json.Marshal(resp)
	s.Require().NoError(err)
	s.NotContains(string(body), "deadline")
	s.NotContains(string(body), "context")

	rec := s.stored("PAY-4")
	s.Equal(types.FulfillmentStatusError, rec.FulfillmentStatus)
	s.Equal(provisioning.SafeErrorMessage, lo.FromPtr(rec.FulfillmentError))
	s.Nil(rec.NewDueDate)
	s.Equal(1, s.GetStores().EventRepo.CountByType(events.EventRenewalFailed))

	// errors are final, a later poll does not call the panel again
	resp, err = s.service.GetRenewalStatus(s.GetContext(), s.claims(), "PAY-4")
	s.Require().NoError(err)
	s.Equal(types.RenewalPhaseError, resp.Phase)
	s.Len(s.GetGateway().RenewCalls(), 1)
}

func (s *RenewalServiceSuite) TestGetRenewalStatus_UpstreamErrorIsRedacted() {
	s.seedRecord("PAY-6", types.ApprovalStatusApproved, types.FulfillmentStatusNone)
	s.GetGateway().RenewErr = ierr.NewError("panel said: line 42 blocked by admin@panel").
		WithHint(provisioning.SafeErrorMessage).
		Mark(ierr.ErrProvisioning)

	resp, err := s.service.GetRenewalStatus(s.GetContext(), s.claims(), "PAY-6")
	s.Require().NoError(err)
	s.Equal(types.RenewalPhaseError, resp.Phase)
	s.Equal(provisioning.SafeErrorMessage, resp.Error)
	s.NotContains(resp.Error, "admin@panel")
}

func (s *RenewalServiceSuite) TestGetRenewalStatus_MissingLinkageIsTerminal() {
	ctx := s.GetContext()
	s.Require().NoError(s.GetStores().ClientRepo.Add(ctx, &client.SubscriptionRef{
		ID:       "cli_unlinked",
		TenantID: testutil.TestTenantID,
		Username: "line_user_2",
	}))
	rec := payment.NewPaymentRecord(ctx, "cli_unlinked", "PAY-7", types.PeriodMonthly, "Basic", decimal.NewFromInt(25), "BRL")
	rec.ApprovalStatus = types.ApprovalStatusApproved
	s.GetStores().PaymentRepo.Put(rec)

	claims := &auth.SessionClaims{TenantID: testutil.TestTenantID, ClientID: "cli_unlinked"}
	resp, err := s.service.GetRenewalStatus(ctx, claims, "PAY-7")
	s.Require().NoError(err)
	s.Equal(types.RenewalPhaseError, resp.Phase)
	s.Equal(provisioning.SafeErrorMessage, resp.Error)
	s.Empty(s.GetGateway().RenewCalls())
	s.Equal(types.FulfillmentStatusError, s.stored("PAY-7").FulfillmentStatus)
}

func (s *RenewalServiceSuite) TestGetRenewalStatus_InvalidPeriodIsTerminal() {
	rec := s.seedRecord("PAY-8", types.ApprovalStatusApproved, types.FulfillmentStatusNone)
	rec.Period = types.Period("fortnightly")
	s.GetStores().PaymentRepo.Put(rec)

	resp, err := s.service.GetRenewalStatus(s.GetContext(), s.claims(), "PAY-8")
	s.Require().NoError(err)
	s.Equal(types.RenewalPhaseError, resp.Phase)
	s.Empty(s.GetGateway().RenewCalls())
}

func (s *RenewalServiceSuite) TestGetRenewalStatus_RotatedPasswordIsStored() {
	s.seedRecord("PAY-9", types.ApprovalStatusApproved, types.FulfillmentStatusNone)
	s.GetGateway().RotatedPassword = lo.ToPtr("n3w-pass")

	resp, err := s.service.GetRenewalStatus(s.GetContext(), s.claims(), "PAY-9")
	s.Require().NoError(err)
	s.Equal(types.RenewalPhaseDone, resp.Phase)

	password, ok := s.GetStores().ClientRepo.Password(s.testData.client.ID)
	s.True(ok)
	s.Equal("n3w-pass", password)
}

func (s *RenewalServiceSuite) TestGetRenewalStatus_OwnershipIsEnforced() {
	s.seedRecord("PAY-11", types.ApprovalStatusApproved, types.FulfillmentStatusNone)

	testCases := []struct {
		name   string
		claims *auth.SessionClaims
		id     string
	}{
		{
			name:   "other client of the same tenant",
			claims: &auth.SessionClaims{TenantID: testutil.TestTenantID, ClientID: "cli_other"},
			id:     "PAY-11",
		},
		{
			name:   "other tenant",
			claims: &auth.SessionClaims{TenantID: "tenant_other", ClientID: s.testData.client.ID},
			id:     "PAY-11",
		},
		{
			name:   "unknown payment",
			claims: s.claims(),
			id:     "PAY-404",
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			resp, err := s.service.GetRenewalStatus(s.GetContext(), tc.claims, tc.id)
			s.Nil(resp)
			s.True(ierr.IsNotFound(err))
			s.Equal("Payment not found", ierr.SafeMessage(err, ""))
		})
	}

	s.Empty(s.GetGateway().RenewCalls())
	s.Equal(types.FulfillmentStatusNone, s.stored("PAY-11").FulfillmentStatus)
}

func (s *RenewalServiceSuite) TestHandleWebhook_IgnoredDeliveries() {
	s.seedRecord("PAY-12", types.ApprovalStatusApproved, types.FulfillmentStatusNone)

	s.NoError(s.service.HandleWebhook(s.GetContext(), testutil.TestTenantID, &dto.PaymentWebhookRequest{
		Type: "merchant_order",
		Data: dto.PaymentWebhookData{ID: "PAY-12"},
	}))
	s.NoError(s.service.HandleWebhook(s.GetContext(), testutil.TestTenantID, webhook("")))
	s.NoError(s.service.HandleWebhook(s.GetContext(), testutil.TestTenantID, webhook("PAY-UNKNOWN")))
	s.NoError(s.service.HandleWebhook(s.GetContext(), "tenant_other", webhook("PAY-12")))

	s.Empty(s.GetGateway().RenewCalls())
	s.Zero(s.GetStores().PaymentRepo.Writes())
}

func (s *RenewalServiceSuite) TestHandleWebhook_PublishesSideEffects() {
	s.seedRecord("PAY-13", types.ApprovalStatusApproved, types.FulfillmentStatusNone)

	s.Require().NoError(s.service.HandleWebhook(s.GetContext(), testutil.TestTenantID, webhook("PAY-13")))
	s.notifier.Drain()

	cfg := s.GetConfig()
	notifications := s.GetPubSub().DecodePayloads(cfg.Notifications.ClientTopic)
	s.Require().Len(notifications, 1)
	s.Equal(TemplateRenewalConfirmed, notifications[0]["template"])
	s.Equal(s.testData.client.Phone, notifications[0]["phone"])

	credits := s.GetPubSub().DecodePayloads(cfg.Notifications.CreditsTopic)
	s.Require().Len(credits, 1)
	s.Equal("100", credits[0]["credits"])
	s.Equal(1, s.GetGateway().CreditCalls())
}

func (s *RenewalServiceSuite) TestRetryFulfillment() {
	rec := s.seedRecord("PAY-14", types.ApprovalStatusApproved, types.FulfillmentStatusError)
	rec.FulfillmentError = lo.ToPtr(provisioning.SafeErrorMessage)
	s.GetStores().PaymentRepo.Put(rec)

	resp, err := s.service.RetryFulfillment(s.GetContext(), testutil.TestTenantID, "PAY-14")
	s.Require().NoError(err)
	s.Equal(types.RenewalPhaseDone, resp.Phase)
	s.Equal(types.FulfillmentStatusDone, resp.FulfillmentStatus)
	s.Empty(resp.Error)
	s.Len(s.GetGateway().RenewCalls(), 1)
	s.Equal(1, s.GetStores().EventRepo.CountByType(events.EventFulfillmentReset))

	// a done record is reported as is
	resp, err = s.service.RetryFulfillment(s.GetContext(), testutil.TestTenantID, "PAY-14")
	s.Require().NoError(err)
	s.Equal(types.RenewalPhaseDone, resp.Phase)
	s.Len(s.GetGateway().RenewCalls(), 1)
}

func (s *RenewalServiceSuite) TestRetryFulfillment_NotFound() {
	_, err := s.service.RetryFulfillment(s.GetContext(), testutil.TestTenantID, "PAY-404")
	s.True(ierr.IsNotFound(err))
}

func (s *RenewalServiceSuite) TestGetRenewalStatus_ProviderDownKeepsPending() {
	s.seedRecord("PAY-15", types.ApprovalStatusPending, types.FulfillmentStatusNone)
	s.GetHTTPClient().RegisterResponse("/v1/payments/PAY-15", testutil.MockResponse{
		StatusCode: http.StatusBadGateway,
		Body:       []byte("upstream exploded"),
	})

	resp, err := s.service.GetRenewalStatus(s.GetContext(), s.claims(), "PAY-15")
	s.Require().NoError(err)
	s.Equal(types.RenewalPhaseAwaitingPayment, resp.Phase)
	s.Equal(types.ApprovalStatusPending, resp.Status)
	s.Zero(s.GetStores().PaymentRepo.Writes())
}
