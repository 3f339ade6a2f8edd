package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	ierr "github.com/resellerdesk/resellerdesk/internal/errors"
	"github.com/resellerdesk/resellerdesk/internal/idempotency"
	"github.com/resellerdesk/resellerdesk/internal/types"
	"github.com/sourcegraph/conc"
)

// Notification templates understood by the messaging subsystem
const (
	TemplateRenewalConfirmed = "renewal_confirmed"
	TemplateRenewalFailed    = "renewal_failed"
)

// Notifier runs best effort side effects after a renewal reached done or error
type Notifier interface {
	// Notify returns immediately, the work runs detached from ctx cancellation
	Notify(ctx context.Context, outcome *RenewalOutcome)
	// Drain blocks until every in-flight notification finished
	Drain()
}

// ClientNotification is published for the outbound client messaging queue
type ClientNotification struct {
	TenantID        string     `json:"tenant_id"`
	ClientID        string     `json:"client_id"`
	PaymentRecordID string     `json:"payment_record_id"`
	Phone           string     `json:"phone"`
	Template        string     `json:"template"`
	PlanLabel       string     `json:"plan_label,omitempty"`
	NewDueDate      *time.Time `json:"new_due_date,omitempty"`
}

// CreditsSynced is published after the panel balance was read back
type CreditsSynced struct {
	TenantID      string    `json:"tenant_id"`
	IntegrationID string    `json:"integration_id"`
	Credits       string    `json:"credits"`
	SyncedAt      time.Time `json:"synced_at"`
}

type notifier struct {
	ServiceParams
	keys *idempotency.Generator
	wg   conc.WaitGroup
}

func NewNotifier(params ServiceParams) Notifier {
	return &notifier{
		ServiceParams: params,
		keys:          idempotency.NewGenerator(),
	}
}

func (n *notifier) Notify(ctx context.Context, outcome *RenewalOutcome) {
	if outcome == nil || outcome.Record == nil {
		return
	}

	// keep request values for logging but not its deadline
	detached := context.WithoutCancel(ctx)

	n.wg.Go(func() {
		sideCtx, cancel := context.WithTimeout(detached, n.Config.Fulfillment.SideEffectTimeout)
		defer cancel()

		var tasks conc.WaitGroup
		tasks.Go(func() { n.syncCredits(sideCtx, outcome) })
		tasks.Go(func() { n.notifyClient(sideCtx, outcome) })

		if recovered := tasks.WaitAndRecover(); recovered != nil {
			n.Logger.WithContext(detached).Errorw("side effect panicked",
				"payment_record_id", outcome.Record.ID,
				"panic", recovered.Value,
				"stack", string(recovered.Stack),
			)
		}
	})
}

func (n *notifier) Drain() {
	n.wg.Wait()
}

func (n *notifier) syncCredits(ctx context.Context, outcome *RenewalOutcome) {
	if outcome.Integration == nil {
		return
	}

	log := n.Logger.WithContext(ctx)

	credits, err := n.Gateway.Credits(ctx, outcome.Integration)
	if err != nil {
		log.Warnw("credit sync failed",
			"integration_id", outcome.Integration.ID,
			"error", err,
		)
		return
	}

	key := n.keys.GenerateKey(idempotency.ScopeCreditsSync, map[string]interface{}{
		"payment_record_id": outcome.Record.ID,
		"integration_id":    outcome.Integration.ID,
	})
	err = n.publish(ctx, n.Config.Notifications.CreditsTopic, key, outcome.Record.TenantID, &CreditsSynced{
		TenantID:      outcome.Record.TenantID,
		IntegrationID: outcome.Integration.ID,
		Credits:       credits.String(),
		SyncedAt:      time.Now().UTC(),
	})
	if err != nil {
		log.Warnw("failed to publish credit sync",
			"integration_id", outcome.Integration.ID,
			"error", err,
		)
	}
}

func (n *notifier) notifyClient(ctx context.Context, outcome *RenewalOutcome) {
	if outcome.Client == nil || outcome.Client.Phone == "" {
		return
	}

	notification := &ClientNotification{
		TenantID:        outcome.Record.TenantID,
		ClientID:        outcome.Client.ID,
		PaymentRecordID: outcome.Record.ID,
		Phone:           outcome.Client.Phone,
		Template:        TemplateRenewalFailed,
	}
	if outcome.Phase == types.RenewalPhaseDone {
		notification.Template = TemplateRenewalConfirmed
		notification.PlanLabel = outcome.Record.PlanLabel
		notification.NewDueDate = outcome.Record.NewDueDate
	}

	key := n.keys.GenerateKey(idempotency.ScopeClientNotification, map[string]interface{}{
		"payment_record_id": outcome.Record.ID,
		"template":          notification.Template,
	})
	if err := n.publish(ctx, n.Config.Notifications.ClientTopic, key, outcome.Record.TenantID, notification); err != nil {
		n.Logger.WithContext(ctx).Warnw("failed to publish client notification",
			"client_id", outcome.Client.ID,
			"template", notification.Template,
			"error", err,
		)
	}
}

// publish uses key as the message id, a redelivered outcome yields the same id
func (n *notifier) publish(ctx context.Context, topic, key, tenantID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to encode notification").
			Mark(ierr.ErrSystem)
	}

	msg := message.NewMessage(key, body)
	msg.Metadata.Set("tenant_id", tenantID)
	if requestID := types.GetRequestID(ctx); requestID != "" {
		msg.Metadata.Set("request_id", requestID)
	}
	msg.SetContext(ctx)

	return n.Publisher.Publish(ctx, topic, msg)
}
