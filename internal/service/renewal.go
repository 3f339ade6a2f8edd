package service

import (
	"context"
	"time"

	"github.com/resellerdesk/resellerdesk/internal/api/dto"
	"github.com/resellerdesk/resellerdesk/internal/auth"
	"github.com/resellerdesk/resellerdesk/internal/domain/client"
	"github.com/resellerdesk/resellerdesk/internal/domain/events"
	"github.com/resellerdesk/resellerdesk/internal/domain/integration"
	"github.com/resellerdesk/resellerdesk/internal/domain/payment"
	ierr "github.com/resellerdesk/resellerdesk/internal/errors"
	"github.com/resellerdesk/resellerdesk/internal/provisioning"
	"github.com/resellerdesk/resellerdesk/internal/types"
)

// RenewalService drives a paid renewal to fulfillment. The webhook, the
// portal poll and the operator retry all go through the same state machine.
type RenewalService interface {
	// HandleWebhook expects the caller to have verified the provider signature
	HandleWebhook(ctx context.Context, tenantID string, req *dto.PaymentWebhookRequest) error
	GetRenewalStatus(ctx context.Context, claims *auth.SessionClaims, externalPaymentID string) (*dto.RenewalStatusResponse, error)
	RetryFulfillment(ctx context.Context, tenantID, externalPaymentID string) (*dto.RetryFulfillmentResponse, error)
}

// RenewalOutcome is the result of one pass through the pipeline
type RenewalOutcome struct {
	Phase  types.RenewalPhase
	Record *payment.PaymentRecord
	// Transitioned is true when this pass moved the record to done or error
	Transitioned bool

	// Client and Integration are only loaded once the lock was acquired
	Client      *client.SubscriptionRef
	Integration *integration.ProviderIntegration
}

type renewalService struct {
	ServiceParams
	approval ApprovalService
	notifier Notifier
	now      func() time.Time
}

func NewRenewalService(params ServiceParams, approval ApprovalService, notifier Notifier) RenewalService {
	return &renewalService{
		ServiceParams: params,
		approval:      approval,
		notifier:      notifier,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *renewalService) HandleWebhook(ctx context.Context, tenantID string, req *dto.PaymentWebhookRequest) error {
	log := s.Logger.WithContext(ctx)

	if !req.IsPayment() {
		log.Debugw("ignoring non payment webhook", "type", req.Type)
		return nil
	}

	externalPaymentID := req.PaymentID()
	if externalPaymentID == "" {
		log.Warnw("payment webhook without payment id")
		return nil
	}

	ctx = types.SetTenantID(ctx, tenantID)
	rec, err := s.PaymentRepo.GetByExternalID(ctx, tenantID, externalPaymentID)
	if err != nil {
		if ierr.IsNotFound(err) {
			// not in this tenant's ledger, acknowledge so the provider stops retrying
			log.Infow("webhook for unknown payment",
				"tenant_id", tenantID,
				"external_payment_id", externalPaymentID,
			)
			return nil
		}
		return err
	}

	outcome, err := s.process(ctx, rec)
	if err != nil {
		return err
	}

	log.Infow("payment webhook handled",
		"payment_record_id", rec.ID,
		"external_payment_id", externalPaymentID,
		"phase", outcome.Phase,
	)
	return nil
}

func (s *renewalService) GetRenewalStatus(ctx context.Context, claims *auth.SessionClaims, externalPaymentID string) (*dto.RenewalStatusResponse, error) {
	if claims == nil {
		return nil, ierr.NewError("missing session claims").
			WithHint("Invalid session").
			Mark(ierr.ErrUnauthorized)
	}

	ctx = types.SetTenantID(ctx, claims.TenantID)
	ctx = types.SetClientID(ctx, claims.ClientID)

	rec, err := s.PaymentRepo.GetByExternalID(ctx, claims.TenantID, externalPaymentID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, renewalNotFound()
		}
		return nil, err
	}
	// same answer as a missing row, never confirm another client's payment exists
	if rec.ClientID != claims.ClientID {
		return nil, renewalNotFound()
	}

	outcome, err := s.process(ctx, rec)
	if err != nil {
		return nil, err
	}

	return dto.NewRenewalStatusResponse(outcome.Record, outcome.Phase), nil
}

func (s *renewalService) RetryFulfillment(ctx context.Context, tenantID, externalPaymentID string) (*dto.RetryFulfillmentResponse, error) {
	ctx = types.SetTenantID(ctx, tenantID)
	log := s.Logger.WithContext(ctx)

	rec, err := s.PaymentRepo.GetByExternalID(ctx, tenantID, externalPaymentID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, renewalNotFound()
		}
		return nil, err
	}

	if rec.FulfillmentStatus != types.FulfillmentStatusError {
		return dto.NewRetryFulfillmentResponse(rec, phaseOf(rec)), nil
	}

	reset, err := s.PaymentRepo.ResetFulfillment(ctx, rec, s.now())
	if err != nil {
		return nil, err
	}
	if !reset {
		current, err := s.PaymentRepo.Get(ctx, tenantID, rec.ID)
		if err != nil {
			return nil, err
		}
		return dto.NewRetryFulfillmentResponse(current, phaseOf(current)), nil
	}

	log.Infow("fulfillment reset by operator",
		"payment_record_id", rec.ID,
		"external_payment_id", externalPaymentID,
		"actor", types.GetUserID(ctx),
	)
	s.appendEvent(ctx, rec, events.EventFulfillmentReset, types.Metadata{
		"actor": types.GetUserID(ctx),
	})

	outcome, err := s.process(ctx, rec)
	if err != nil {
		return nil, err
	}
	return dto.NewRetryFulfillmentResponse(outcome.Record, outcome.Phase), nil
}

// process runs everything after the record was found: refresh the approval
// status, take the fulfillment lock, renew on the panel and persist the result.
// Only storage failures before the lock is taken are returned as errors.
func (s *renewalService) process(ctx context.Context, rec *payment.PaymentRecord) (*RenewalOutcome, error) {
	rec, _ = s.approval.RefreshApprovalStatus(ctx, rec)

	if !rec.IsApproved() || !rec.FulfillmentStatus.IsLockable() {
		return &RenewalOutcome{Phase: phaseOf(rec), Record: rec}, nil
	}

	acquired, err := s.PaymentRepo.TryAcquireFulfillment(ctx, rec, s.now())
	if err != nil {
		return nil, err
	}
	if !acquired {
		// another caller won the race between our read and the lock
		return &RenewalOutcome{Phase: types.RenewalPhaseRenewing, Record: rec}, nil
	}

	// the panel call is already in flight once we get here, a client
	// disconnect must not leave the row stuck in processing
	ctx = context.WithoutCancel(ctx)

	outcome := s.fulfill(ctx, rec)
	if outcome.Transitioned {
		s.notifier.Notify(ctx, outcome)
	}
	return outcome, nil
}

// fulfill runs with the lock held and always leaves the record done or error
func (s *renewalService) fulfill(ctx context.Context, rec *payment.PaymentRecord) *RenewalOutcome {
	outcome := &RenewalOutcome{Record: rec, Transitioned: true}

	ref, pi, months, err := s.loadLinkage(ctx, rec)
	outcome.Client = ref
	outcome.Integration = pi
	if err != nil {
		s.failFulfillment(ctx, outcome, "linkage", err)
		return outcome
	}

	var result *provisioning.RenewResult
	s.Pyroscope.TagWrapper(ctx, map[string]string{
		"tenant_id": rec.TenantID,
		"variant":   string(pi.Variant),
	}, func(ctx context.Context) {
		result, err = s.renew(ctx, pi, ref.Username, months)
	})
	if err != nil {
		s.failFulfillment(ctx, outcome, "provisioning", err)
		return outcome
	}

	s.completeFulfillment(ctx, outcome, result)
	return outcome
}

func (s *renewalService) loadLinkage(ctx context.Context, rec *payment.PaymentRecord) (*client.SubscriptionRef, *integration.ProviderIntegration, int, error) {
	ref, err := s.ClientRepo.Get(ctx, rec.TenantID, rec.ClientID)
	if err != nil {
		return nil, nil, 0, err
	}
	if ref.Username == "" || ref.IntegrationID == nil || *ref.IntegrationID == "" {
		return ref, nil, 0, ierr.NewError("client has no line on a panel").
			WithHint("Client is not linked to a provider").
			WithReportableDetails(map[string]any{
				"client_id": ref.ID,
			}).
			Mark(ierr.ErrValidation)
	}

	pi, err := s.IntegrationRepo.Get(ctx, rec.TenantID, *ref.IntegrationID)
	if err != nil {
		return ref, nil, 0, err
	}
	if !pi.Active {
		return ref, nil, 0, ierr.NewError("integration is inactive").
			WithHint("Provider integration is disabled").
			WithReportableDetails(map[string]any{
				"integration_id": pi.ID,
			}).
			Mark(ierr.ErrValidation)
	}

	months, err := rec.Period.Months()
	if err != nil {
		return ref, pi, 0, err
	}

	return ref, pi, months, nil
}

func (s *renewalService) renew(ctx context.Context, pi *integration.ProviderIntegration, username string, months int) (*provisioning.RenewResult, error) {
	span, ctx := s.Sentry.StartProvisioningSpan(ctx, string(pi.Variant), map[string]interface{}{
		"integration_id": pi.ID,
		"months":         months,
	})
	if span != nil {
		defer span.Finish()
	}

	provisionCtx, cancel := context.WithTimeout(ctx, s.Config.Fulfillment.ProvisionTimeout)
	defer cancel()

	return s.Gateway.Renew(provisionCtx, pi, username, months)
}

func (s *renewalService) completeFulfillment(ctx context.Context, outcome *RenewalOutcome, result *provisioning.RenewResult) {
	rec := outcome.Record
	log := s.Logger.WithContext(ctx)

	if err := s.PaymentRepo.MarkFulfilled(ctx, rec, result.NewExpiry, s.now()); err != nil {
		// the panel already renewed the line, an operator has to reconcile this row
		log.Errorw("renewal applied on panel but ledger update failed",
			"payment_record_id", rec.ID,
			"new_due_date", result.NewExpiry,
			"error", err,
		)
		s.Sentry.CaptureWithTags(err, map[string]string{
			"tenant_id":         rec.TenantID,
			"payment_record_id": rec.ID,
		})
		outcome.Phase = types.RenewalPhaseRenewing
		outcome.Transitioned = false
		return
	}
	outcome.Phase = types.RenewalPhaseDone

	update := client.RenewalUpdate{
		PlanLabel:       rec.PlanLabel,
		PriceAmount:     rec.PriceAmount,
		PriceCurrency:   rec.PriceCurrency,
		DueDate:         result.NewExpiry,
		RotatedPassword: result.RotatedPassword,
	}
	payload := types.Metadata{
		"new_due_date":     result.NewExpiry.Format(time.RFC3339),
		"plan_label":       rec.PlanLabel,
		"period":           string(rec.Period),
		"password_rotated": boolString(result.RotatedPassword != nil),
	}

	// ledger already says done, failures below are logged only
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.ClientRepo.ApplyRenewal(ctx, rec.TenantID, rec.ClientID, update); err != nil {
			return err
		}
		return s.EventRepo.Append(ctx, events.NewEvent(rec.TenantID, rec.ID, rec.ClientID, events.EventRenewalFulfilled, payload))
	})
	if err != nil {
		log.Errorw("failed to apply renewal to client record",
			"payment_record_id", rec.ID,
			"client_id", rec.ClientID,
			"error", err,
		)
		s.Sentry.CaptureWithTags(err, map[string]string{
			"tenant_id":         rec.TenantID,
			"payment_record_id": rec.ID,
		})
		return
	}

	log.Infow("renewal fulfilled",
		"payment_record_id", rec.ID,
		"external_payment_id", rec.ExternalPaymentID,
		"client_id", rec.ClientID,
		"new_due_date", result.NewExpiry,
	)
}

func (s *renewalService) failFulfillment(ctx context.Context, outcome *RenewalOutcome, stage string, cause error) {
	rec := outcome.Record
	log := s.Logger.WithContext(ctx)

	// full upstream detail stays in the logs
	log.Errorw("renewal fulfillment failed",
		"payment_record_id", rec.ID,
		"external_payment_id", rec.ExternalPaymentID,
		"stage", stage,
		"error", cause,
	)
	s.Sentry.CaptureWithTags(cause, map[string]string{
		"tenant_id":         rec.TenantID,
		"payment_record_id": rec.ID,
		"stage":             stage,
	})

	if err := s.PaymentRepo.MarkFulfillmentFailed(ctx, rec, provisioning.SafeErrorMessage, s.now()); err != nil {
		log.Errorw("failed to persist fulfillment error",
			"payment_record_id", rec.ID,
			"error", err,
		)
		outcome.Phase = types.RenewalPhaseRenewing
		outcome.Transitioned = false
		return
	}
	outcome.Phase = types.RenewalPhaseError

	s.appendEvent(ctx, rec, events.EventRenewalFailed, types.Metadata{
		"stage": stage,
	})
}

func (s *renewalService) appendEvent(ctx context.Context, rec *payment.PaymentRecord, eventType events.EventType, payload types.Metadata) {
	if err := s.EventRepo.Append(ctx, events.NewEvent(rec.TenantID, rec.ID, rec.ClientID, eventType, payload)); err != nil {
		s.Logger.WithContext(ctx).Errorw("failed to append renewal event",
			"payment_record_id", rec.ID,
			"event_type", eventType,
			"error", err,
		)
	}
}

// phaseOf reports a record's phase without touching it
func phaseOf(rec *payment.PaymentRecord) types.RenewalPhase {
	if !rec.IsApproved() {
		if rec.ApprovalStatus.IsTerminalFailure() {
			return types.RenewalPhasePaymentFailed
		}
		return types.RenewalPhaseAwaitingPayment
	}

	switch rec.FulfillmentStatus {
	case types.FulfillmentStatusDone:
		return types.RenewalPhaseDone
	case types.FulfillmentStatusError:
		return types.RenewalPhaseError
	default:
		return types.RenewalPhaseRenewing
	}
}

func renewalNotFound() error {
	return ierr.NewError("renewal not found").
		WithHint("Payment not found").
		Mark(ierr.ErrNotFound)
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
