package service

import (
	"context"
	"net/http"

	"github.com/resellerdesk/resellerdesk/internal/cache"
	"github.com/resellerdesk/resellerdesk/internal/domain/integration"
	"github.com/resellerdesk/resellerdesk/internal/domain/payment"
	ierr "github.com/resellerdesk/resellerdesk/internal/errors"
	"github.com/resellerdesk/resellerdesk/internal/httpclient"
)

// ApprovalService keeps the ledger's approval status in line with the payment provider
type ApprovalService interface {
	// RefreshApprovalStatus returns the current record and whether its approval
	// status changed. Provider failures are absorbed as no change.
	RefreshApprovalStatus(ctx context.Context, rec *payment.PaymentRecord) (*payment.PaymentRecord, bool)
}

type approvalService struct {
	ServiceParams
}

func NewApprovalService(params ServiceParams) ApprovalService {
	return &approvalService{
		ServiceParams: params,
	}
}

func (s *approvalService) RefreshApprovalStatus(ctx context.Context, rec *payment.PaymentRecord) (*payment.PaymentRecord, bool) {
	// approved is sticky, never ask the provider again
	if rec.IsApproved() {
		return rec, false
	}

	log := s.Logger.WithContext(ctx)

	accessToken, err := s.accessToken(ctx, rec.TenantID)
	if err != nil {
		if ierr.IsNotFound(err) {
			log.Debugw("no active gateway credential, skipping status lookup",
				"tenant_id", rec.TenantID,
				"payment_record_id", rec.ID,
			)
		} else {
			log.Warnw("failed to load gateway credential",
				"tenant_id", rec.TenantID,
				"payment_record_id", rec.ID,
				"error", err,
			)
		}
		return rec, false
	}

	resp, err := s.PaymentProvider.GetPayment(ctx, accessToken, rec.ExternalPaymentID)
	if err != nil {
		if httpErr, ok := httpclient.IsHTTPError(err); ok &&
			(httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden) {
			s.Cache.Delete(ctx, credentialCacheKey(rec.TenantID))
		}
		log.Warnw("payment status lookup failed, keeping stored status",
			"payment_record_id", rec.ID,
			"external_payment_id", rec.ExternalPaymentID,
			"error", err,
		)
		return rec, false
	}

	status, known := resp.ApprovalStatus()
	if !known {
		log.Infow("provider returned unmapped payment status",
			"external_payment_id", rec.ExternalPaymentID,
			"provider_status", resp.Status,
			"status_detail", resp.StatusDetail,
		)
		return rec, false
	}
	if status == rec.ApprovalStatus {
		return rec, false
	}

	previous := rec.ApprovalStatus
	updated, err := s.PaymentRepo.UpdateApprovalStatus(ctx, rec, status)
	if err != nil {
		log.Errorw("failed to persist approval status",
			"payment_record_id", rec.ID,
			"status", status,
			"error", err,
		)
		return rec, false
	}

	if !updated {
		// someone else moved the row first, report what is stored now
		current, err := s.PaymentRepo.Get(ctx, rec.TenantID, rec.ID)
		if err != nil {
			log.Errorw("failed to re-read payment record after lost update",
				"payment_record_id", rec.ID,
				"error", err,
			)
			return rec, false
		}
		return current, current.ApprovalStatus != previous
	}

	log.Infow("approval status changed",
		"payment_record_id", rec.ID,
		"external_payment_id", rec.ExternalPaymentID,
		"from", previous,
		"to", status,
	)
	return rec, true
}

// accessToken returns the tenant's decrypted provider token. The encrypted
// credential row is cached; a row that fails to decrypt is evicted.
func (s *approvalService) accessToken(ctx context.Context, tenantID string) (string, error) {
	key := credentialCacheKey(tenantID)

	var cred *integration.GatewayCredential
	if cached, found := s.Cache.Get(ctx, key); found {
		cred, _ = cached.(*integration.GatewayCredential)
	}

	if cred == nil {
		var err error
		cred, err = s.IntegrationRepo.GetActiveGatewayCredential(ctx, tenantID)
		if err != nil {
			return "", err
		}
		s.Cache.Set(ctx, key, cred, s.Config.Payments.CredentialCacheTTL)
	}

	token, err := s.Encryption.Decrypt(cred.EncryptedAccessToken)
	if err != nil {
		s.Cache.Delete(ctx, key)
		return "", ierr.WithError(err).
			WithHint("Payment gateway credential could not be read").
			WithReportableDetails(map[string]any{
				"tenant_id":     tenantID,
				"credential_id": cred.ID,
			}).
			Mark(ierr.ErrSystem)
	}

	return token, nil
}

func credentialCacheKey(tenantID string) string {
	return cache.GenerateKey(cache.PrefixGatewayCredential, tenantID)
}
