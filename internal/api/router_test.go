package api

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/resellerdesk/resellerdesk/internal/api/cron"
	"github.com/resellerdesk/resellerdesk/internal/api/dto"
	v1 "github.com/resellerdesk/resellerdesk/internal/api/v1"
	"github.com/resellerdesk/resellerdesk/internal/auth"
	"github.com/resellerdesk/resellerdesk/internal/domain/client"
	"github.com/resellerdesk/resellerdesk/internal/domain/events"
	"github.com/resellerdesk/resellerdesk/internal/domain/integration"
	"github.com/resellerdesk/resellerdesk/internal/domain/payment"
	"github.com/resellerdesk/resellerdesk/internal/integration/mercadopago"
	"github.com/resellerdesk/resellerdesk/internal/ratelimit"
	"github.com/resellerdesk/resellerdesk/internal/security"
	"github.com/resellerdesk/resellerdesk/internal/service"
	"github.com/resellerdesk/resellerdesk/internal/testutil"
	"github.com/resellerdesk/resellerdesk/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type RouterSuite struct {
	testutil.BaseServiceTestSuite
	router   *gin.Engine
	notifier service.Notifier
}

func TestRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	cfg := s.GetConfig()
	params := service.ServiceParams{
		Logger:          s.GetLogger(),
		Config:          cfg,
		DB:              s.GetDB(),
		Cache:           s.GetCache(),
		PaymentRepo:     s.GetStores().PaymentRepo,
		ClientRepo:      s.GetStores().ClientRepo,
		IntegrationRepo: s.GetStores().IntegrationRepo,
		EventRepo:       s.GetStores().EventRepo,
		Encryption:      s.GetEncryption(),
		PaymentProvider: mercadopago.NewClient(cfg, s.GetHTTPClient(), s.GetLogger()),
		Gateway:         s.GetGateway(),
		Publisher:       s.GetPubSub(),
	}
	s.notifier = service.NewNotifier(params)
	renewals := service.NewRenewalService(params, service.NewApprovalService(params), s.notifier)

	s.router = NewRouter(Handlers{
		Health:          v1.NewHealthHandler(s.GetLogger()),
		Webhook:         v1.NewWebhookHandler(renewals, security.NewSignatureVerifier(cfg), s.GetLogger()),
		Portal:          v1.NewPortalHandler(renewals, auth.NewSessionResolver(cfg), ratelimit.NewPollLimiter(cfg, s.GetCache()), s.GetLogger()),
		Admin:           v1.NewAdminHandler(renewals, s.GetLogger()),
		CronFulfillment: cron.NewFulfillmentCronHandler(service.NewRecoveryService(params), s.GetLogger()),
	}, cfg, s.GetLogger())

	s.setupTestData()
}

func (s *RouterSuite) TearDownTest() {
	s.notifier.Drain()
	s.BaseServiceTestSuite.TearDownTest()
}

func (s *RouterSuite) setupTestData() {
	ctx := s.GetContext()

	secret, err := s.GetEncryption().Encrypt("panel-token")
	s.Require().NoError(err)
	s.Require().NoError(s.GetStores().IntegrationRepo.Add(ctx, &integration.ProviderIntegration{
		ID:              "int_panel_a",
		TenantID:        testutil.TestTenantID,
		Variant:         types.ProviderVariantToken,
		BaseURL:         "https://panel.test",
		EncryptedSecret: secret,
		Active:          true,
	}))

	accessToken, err := s.GetEncryption().Encrypt("mp-access-token")
	s.Require().NoError(err)
	s.GetStores().IntegrationRepo.AddGatewayCredential(&integration.GatewayCredential{
		ID:                   "gwc_1",
		TenantID:             testutil.TestTenantID,
		EncryptedAccessToken: accessToken,
		Active:               true,
	})

	for _, id := range []string{"cli_1", "cli_2"} {
		s.Require().NoError(s.GetStores().ClientRepo.Add(ctx, &client.SubscriptionRef{
			ID:            id,
			TenantID:      testutil.TestTenantID,
			IntegrationID: lo.ToPtr("int_panel_a"),
			Username:      "line_" + id,
			PriceAmount:   decimal.NewFromInt(25),
			PriceCurrency: "BRL",
		}))
	}
}

func (s *RouterSuite) seedRecord(externalID string, approval types.ApprovalStatus, fulfillment types.FulfillmentStatus) *payment.PaymentRecord {
	rec := payment.NewPaymentRecord(s.GetContext(), "cli_1", externalID, types.PeriodMonthly, "Basic", decimal.NewFromInt(25), "BRL")
	rec.ApprovalStatus = approval
	rec.FulfillmentStatus = fulfillment
	s.GetStores().PaymentRepo.Put(rec)
	return rec
}

func (s *RouterSuite) signedHeaders(paymentID string, at time.Time) http.Header {
	ts := strconv.FormatInt(at.Unix(), 10)
	sig := hex.EncodeToString(security.Sign([]byte(s.GetConfig().Payments.WebhookSecret), paymentID, "req-1", ts))
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set(types.HeaderPaymentSignature, "ts="+ts+",v1="+sig)
	h.Set(types.HeaderPaymentRequestID, "req-1")
	return h
}

func (s *RouterSuite) do(method, path string, body any, headers http.Header) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		s.Require().NoError(err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	for k, v := range headers {
		req.Header[k] = v
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RouterSuite) session(clientID string) string {
	token, err := auth.IssueSessionToken(s.GetConfig(), testutil.TestTenantID, clientID, time.Hour)
	s.Require().NoError(err)
	return token
}

func webhookBody(paymentID string) map[string]any {
	return map[string]any{"type": "payment", "data": map[string]any{"id": paymentID}}
}

func (s *RouterSuite) TestHealth() {
	w := s.do(http.MethodGet, "/health", nil, nil)
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"status":"ok"}`, w.Body.String())
	s.NotEmpty(w.Header().Get(types.HeaderRequestID))
}

func (s *RouterSuite) TestWebhook_FulfillsSignedDelivery() {
	s.seedRecord("PAY-1", types.ApprovalStatusPending, types.FulfillmentStatusPending)
	s.GetHTTPClient().RegisterJSONResponse("/v1/payments/PAY-1", map[string]any{"id": 1, "status": "approved"})

	w := s.do(http.MethodPost, "/v1/webhooks/payments/"+testutil.TestTenantID, webhookBody("PAY-1"), s.signedHeaders("PAY-1", time.Now()))
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"received":true}`, w.Body.String())

	rec, err := s.GetStores().PaymentRepo.GetByExternalID(s.GetContext(), testutil.TestTenantID, "PAY-1")
	s.Require().NoError(err)
	s.Equal(types.FulfillmentStatusDone, rec.FulfillmentStatus)
	s.Len(s.GetGateway().RenewCalls(), 1)
}

func (s *RouterSuite) TestWebhook_QueryIDFallback() {
	s.seedRecord("PAY-2", types.ApprovalStatusApproved, types.FulfillmentStatusPending)

	body := map[string]any{"type": "payment"}
	w := s.do(http.MethodPost, "/v1/webhooks/payments/"+testutil.TestTenantID+"?data.id=PAY-2", body, s.signedHeaders("PAY-2", time.Now()))
	s.Equal(http.StatusOK, w.Code)
	s.Len(s.GetGateway().RenewCalls(), 1)
}

func (s *RouterSuite) TestWebhook_RejectsBadSignature() {
	s.seedRecord("PAY-3", types.ApprovalStatusApproved, types.FulfillmentStatusPending)

	testCases := []struct {
		name    string
		headers func() http.Header
	}{
		{
			name: "wrong signature",
			headers: func() http.Header {
				h := s.signedHeaders("PAY-3", time.Now())
				h.Set(types.HeaderPaymentSignature, "ts="+strconv.FormatInt(time.Now().Unix(), 10)+",v1=deadbeef")
				return h
			},
		},
		{
			name:    "timestamp older than the replay window",
			headers: func() http.Header { return s.signedHeaders("PAY-3", time.Now().Add(-301*time.Second)) },
		},
		{
			name: "missing signature header",
			headers: func() http.Header {
				h := s.signedHeaders("PAY-3", time.Now())
				h.Del(types.HeaderPaymentSignature)
				return h
			},
		},
		{
			name:    "signed for another payment",
			headers: func() http.Header { return s.signedHeaders("PAY-OTHER", time.Now()) },
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			w := s.do(http.MethodPost, "/v1/webhooks/payments/"+testutil.TestTenantID, webhookBody("PAY-3"), tc.headers())
			s.Equal(http.StatusUnauthorized, w.Code)
			s.Contains(w.Body.String(), "Invalid signature")
		})
	}

	s.Zero(s.GetStores().PaymentRepo.Writes())
	s.Empty(s.GetGateway().RenewCalls())
	s.Zero(s.GetStores().EventRepo.CountByType(events.EventRenewalFulfilled))
}

func (s *RouterSuite) TestWebhook_AcknowledgesIgnoredDeliveries() {
	testCases := []struct {
		name string
		body map[string]any
		id   string
	}{
		{
			name: "non payment type",
			body: map[string]any{"type": "plan", "data": map[string]any{"id": "PLAN-1"}},
			id:   "PLAN-1",
		},
		{
			name: "payment outside the ledger",
			body: webhookBody("PAY-UNKNOWN"),
			id:   "PAY-UNKNOWN",
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			w := s.do(http.MethodPost, "/v1/webhooks/payments/"+testutil.TestTenantID, tc.body, s.signedHeaders(tc.id, time.Now()))
			s.Equal(http.StatusOK, w.Code)
			s.JSONEq(`{"received":true}`, w.Body.String())
		})
	}
	s.Empty(s.GetGateway().RenewCalls())
}

func (s *RouterSuite) TestPortal_ReturnsPhase() {
	s.seedRecord("PAY-4", types.ApprovalStatusApproved, types.FulfillmentStatusPending)

	w := s.do(http.MethodPost, "/v1/portal/renewals/status", map[string]any{
		"session_token": s.session("cli_1"),
		"payment_id":    "PAY-4",
	}, nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var resp dto.RenewalStatusResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.True(resp.OK)
	s.Equal(types.RenewalPhaseDone, resp.Phase)
	s.Equal(types.ApprovalStatusApproved, resp.Status)
	s.NotNil(resp.NewDueDate)
}

func (s *RouterSuite) TestPortal_Errors() {
	s.seedRecord("PAY-5", types.ApprovalStatusApproved, types.FulfillmentStatusPending)

	testCases := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{
			name:   "invalid session",
			body:   map[string]any{"session_token": "not-a-token", "payment_id": "PAY-5"},
			status: http.StatusUnauthorized,
		},
		{
			name:   "missing payment id",
			body:   map[string]any{"session_token": "x"},
			status: http.StatusBadRequest,
		},
		{
			name:   "another client's payment",
			body:   map[string]any{"session_token": s.session("cli_2"), "payment_id": "PAY-5"},
			status: http.StatusNotFound,
		},
		{
			name:   "unknown payment",
			body:   map[string]any{"session_token": s.session("cli_1"), "payment_id": "PAY-404"},
			status: http.StatusNotFound,
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			w := s.do(http.MethodPost, "/v1/portal/renewals/status", tc.body, nil)
			s.Equal(tc.status, w.Code)
		})
	}

	// the foreign and unknown answers must be indistinguishable
	foreign := s.do(http.MethodPost, "/v1/portal/renewals/status", map[string]any{"session_token": s.session("cli_2"), "payment_id": "PAY-5"}, nil)
	unknown := s.do(http.MethodPost, "/v1/portal/renewals/status", map[string]any{"session_token": s.session("cli_2"), "payment_id": "PAY-404"}, nil)
	s.Equal(unknown.Body.String(), foreign.Body.String())

	s.Empty(s.GetGateway().RenewCalls())
}

func (s *RouterSuite) TestPortal_Throttled() {
	s.seedRecord("PAY-6", types.ApprovalStatusPending, types.FulfillmentStatusPending)
	s.GetHTTPClient().RegisterJSONResponse("/v1/payments/PAY-6", map[string]any{"id": 6, "status": "pending"})

	body := map[string]any{"session_token": s.session("cli_1"), "payment_id": "PAY-6"}
	burst := s.GetConfig().RateLimit.PollBurst
	for i := 0; i < burst; i++ {
		s.Equal(http.StatusOK, s.do(http.MethodPost, "/v1/portal/renewals/status", body, nil).Code)
	}
	s.Equal(http.StatusTooManyRequests, s.do(http.MethodPost, "/v1/portal/renewals/status", body, nil).Code)
}

func (s *RouterSuite) TestAdminRetry() {
	rec := s.seedRecord("PAY-7", types.ApprovalStatusApproved, types.FulfillmentStatusError)
	rec.FulfillmentError = lo.ToPtr("Renewal could not be applied, please contact support")
	s.GetStores().PaymentRepo.Put(rec)

	path := "/v1/admin/payments/" + testutil.TestTenantID + "/PAY-7/retry"

	w := s.do(http.MethodPost, path, nil, nil)
	s.Equal(http.StatusUnauthorized, w.Code)

	headers := http.Header{}
	headers.Set(types.HeaderAPIKey, s.GetConfig().Cron.APIKey)
	w = s.do(http.MethodPost, path, nil, headers)
	s.Require().Equal(http.StatusOK, w.Code)

	var resp dto.RetryFulfillmentResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal(types.RenewalPhaseDone, resp.Phase)
	s.Len(s.GetGateway().RenewCalls(), 1)
}

func (s *RouterSuite) TestCronRecover() {
	rec := s.seedRecord("PAY-8", types.ApprovalStatusApproved, types.FulfillmentStatusProcessing)
	rec.FulfillmentStartedAt = lo.ToPtr(time.Now().UTC().Add(-time.Hour))
	s.GetStores().PaymentRepo.Put(rec)

	headers := http.Header{}
	headers.Set(types.HeaderAPIKey, "wrong-key")
	s.Equal(http.StatusUnauthorized, s.do(http.MethodPost, "/v1/cron/fulfillment/recover", nil, headers).Code)

	headers.Set(types.HeaderAPIKey, s.GetConfig().Cron.APIKey)
	w := s.do(http.MethodPost, "/v1/cron/fulfillment/recover", nil, headers)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"reset":1,"payment_ids":["PAY-8"]}`, w.Body.String())
}
