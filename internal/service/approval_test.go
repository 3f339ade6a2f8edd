package service

import (
	"net/http"
	"testing"

	"github.com/resellerdesk/resellerdesk/internal/domain/integration"
	"github.com/resellerdesk/resellerdesk/internal/domain/payment"
	"github.com/resellerdesk/resellerdesk/internal/integration/mercadopago"
	"github.com/resellerdesk/resellerdesk/internal/testutil"
	"github.com/resellerdesk/resellerdesk/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type ApprovalServiceSuite struct {
	testutil.BaseServiceTestSuite
	service ApprovalService
}

func TestApprovalService(t *testing.T) {
	suite.Run(t, new(ApprovalServiceSuite))
}

func (s *ApprovalServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewApprovalService(ServiceParams{
		Logger:          s.GetLogger(),
		Config:          s.GetConfig(),
		Cache:           s.GetCache(),
		PaymentRepo:     s.GetStores().PaymentRepo,
		IntegrationRepo: s.GetStores().IntegrationRepo,
		Encryption:      s.GetEncryption(),
		PaymentProvider: mercadopago.NewClient(s.GetConfig(), s.GetHTTPClient(), s.GetLogger()),
	})

	token, err := s.GetEncryption().Encrypt("mp-access-token")
	s.Require().NoError(err)
	s.GetStores().IntegrationRepo.AddGatewayCredential(&integration.GatewayCredential{
		ID:                   "gwc_1",
		TenantID:             testutil.TestTenantID,
		Provider:             "mercadopago",
		EncryptedAccessToken: token,
		Active:               true,
	})
}

func (s *ApprovalServiceSuite) seed(externalID string, status types.ApprovalStatus) *payment.PaymentRecord {
	rec := payment.NewPaymentRecord(s.GetContext(), "cli_1", externalID, types.PeriodMonthly, "Basic", decimal.NewFromInt(25), "BRL")
	rec.ApprovalStatus = status
	s.GetStores().PaymentRepo.Put(rec)
	return rec
}

func (s *ApprovalServiceSuite) TestRefresh_PersistsNewStatus() {
	rec := s.seed("PAY-1", types.ApprovalStatusPending)
	s.GetHTTPClient().RegisterJSONResponse("/v1/payments/PAY-1", map[string]any{"id": 1, "status": "approved"})

	got, changed := s.service.RefreshApprovalStatus(s.GetContext(), rec)
	s.True(changed)
	s.Equal(types.ApprovalStatusApproved, got.ApprovalStatus)

	stored, err := s.GetStores().PaymentRepo.Get(s.GetContext(), testutil.TestTenantID, rec.ID)
	s.Require().NoError(err)
	s.Equal(types.ApprovalStatusApproved, stored.ApprovalStatus)
}

func (s *ApprovalServiceSuite) TestRefresh_ApprovedIsSticky() {
	rec := s.seed("PAY-2", types.ApprovalStatusApproved)
	s.GetHTTPClient().RegisterResponse("/v1/payments/PAY-2", testutil.MockResponse{
		StatusCode: http.StatusServiceUnavailable,
	})

	got, changed := s.service.RefreshApprovalStatus(s.GetContext(), rec)
	s.False(changed)
	s.Equal(types.ApprovalStatusApproved, got.ApprovalStatus)
	s.Zero(s.GetHTTPClient().Calls("/v1/payments/PAY-2"))

	// even a direct write cannot move it back
	updated, err := s.GetStores().PaymentRepo.UpdateApprovalStatus(s.GetContext(), rec, types.ApprovalStatusRefunded)
	s.Require().NoError(err)
	s.False(updated)
}

func (s *ApprovalServiceSuite) TestRefresh_NoChange() {
	testCases := []struct {
		name     string
		response testutil.MockResponse
	}{
		{
			name:     "same status",
			response: testutil.MockResponse{StatusCode: http.StatusOK, Body: []byte(`{"id":3,"status":"pending"}`)},
		},
		{
			name:     "unknown status",
			response: testutil.MockResponse{StatusCode: http.StatusOK, Body: []byte(`{"id":3,"status":"something_new"}`)},
		},
		{
			name:     "empty status",
			response: testutil.MockResponse{StatusCode: http.StatusOK, Body: []byte(`{"id":3}`)},
		},
		{
			name:     "malformed body",
			response: testutil.MockResponse{StatusCode: http.StatusOK, Body: []byte(`<html>`)},
		},
		{
			name:     "provider error",
			response: testutil.MockResponse{StatusCode: http.StatusInternalServerError, Body: []byte(`boom`)},
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.GetStores().PaymentRepo.Clear()
			rec := s.seed("PAY-3", types.ApprovalStatusPending)
			s.GetHTTPClient().RegisterResponse("/v1/payments/PAY-3", tc.response)

			got, changed := s.service.RefreshApprovalStatus(s.GetContext(), rec)
			s.False(changed)
			s.Equal(types.ApprovalStatusPending, got.ApprovalStatus)
			s.Zero(s.GetStores().PaymentRepo.Writes())
		})
	}
}

func (s *ApprovalServiceSuite) TestRefresh_WithoutCredentialIsNoop() {
	ctx := types.SetTenantID(s.GetContext(), "tenant_no_gateway")
	rec := payment.NewPaymentRecord(ctx, "cli_1", "PAY-4", types.PeriodMonthly, "Basic", decimal.NewFromInt(25), "BRL")
	s.GetStores().PaymentRepo.Put(rec)
	s.GetHTTPClient().RegisterJSONResponse("/v1/payments/PAY-4", map[string]any{"id": 4, "status": "approved"})

	got, changed := s.service.RefreshApprovalStatus(ctx, rec)
	s.False(changed)
	s.Equal(types.ApprovalStatusPending, got.ApprovalStatus)
	s.Zero(s.GetHTTPClient().Calls("/v1/payments/PAY-4"))
}

func (s *ApprovalServiceSuite) TestRefresh_CachesCredential() {
	rec := s.seed("PAY-5", types.ApprovalStatusPending)
	s.GetHTTPClient().RegisterJSONResponse("/v1/payments/PAY-5", map[string]any{"id": 5, "status": "in_process"})

	_, changed := s.service.RefreshApprovalStatus(s.GetContext(), rec)
	s.True(changed)
	_, changed = s.service.RefreshApprovalStatus(s.GetContext(), rec)
	s.False(changed)

	s.Equal(1, s.GetStores().IntegrationRepo.CredentialLookups())
	s.Equal(2, s.GetHTTPClient().Calls("/v1/payments/PAY-5"))
}

func (s *ApprovalServiceSuite) TestRefresh_UnauthorizedEvictsCredential() {
	rec := s.seed("PAY-6", types.ApprovalStatusPending)
	s.GetHTTPClient().RegisterResponse("/v1/payments/PAY-6", testutil.MockResponse{StatusCode: http.StatusUnauthorized})

	s.service.RefreshApprovalStatus(s.GetContext(), rec)
	s.service.RefreshApprovalStatus(s.GetContext(), rec)

	s.Equal(2, s.GetStores().IntegrationRepo.CredentialLookups())
}
