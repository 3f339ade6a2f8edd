package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/resellerdesk/resellerdesk/internal/api/dto"
	ierr "github.com/resellerdesk/resellerdesk/internal/errors"
	"github.com/resellerdesk/resellerdesk/internal/logger"
	"github.com/resellerdesk/resellerdesk/internal/security"
	"github.com/resellerdesk/resellerdesk/internal/service"
	"github.com/resellerdesk/resellerdesk/internal/types"
)

// WebhookHandler receives payment notifications pushed by the provider
type WebhookHandler struct {
	service  service.RenewalService
	verifier security.SignatureVerifier
	log      *logger.Logger
}

func NewWebhookHandler(service service.RenewalService, verifier security.SignatureVerifier, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		service:  service,
		verifier: verifier,
		log:      log,
	}
}

// @Summary Payment provider webhook
// @Description Acknowledges every signed delivery, fulfilling the renewal when the payment is approved
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param tenant_id path string true "Tenant ID"
// @Success 200 {object} dto.WebhookAckResponse
// @Failure 401 {object} ierr.ErrorResponse
// @Router /webhooks/payments/{tenant_id} [post]
func (h *WebhookHandler) HandlePaymentWebhook(c *gin.Context) {
	ctx := c.Request.Context()
	tenantID := c.Param("tenant_id")

	// the provider signs data.id from the query string; body and query carry the same id
	var req dto.PaymentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.WithContext(ctx).Debugw("webhook body could not be parsed", "error", err)
	}
	if queryID := c.Query("data.id"); queryID != "" {
		req.Data.ID = queryID
	}
	if req.Type == "" {
		req.Type = c.Query("type")
	}

	if !h.verifier.Verify(req.PaymentID(), c.Request.Header) {
		h.log.WithContext(ctx).Warnw("rejected webhook with invalid signature",
			"tenant_id", tenantID,
			"external_payment_id", req.PaymentID(),
			"request_id", c.GetHeader(types.HeaderPaymentRequestID),
		)
		c.Error(ierr.NewError("webhook signature verification failed").
			WithHint("Invalid signature").
			Mark(ierr.ErrUnauthorized))
		return
	}

	if err := h.service.HandleWebhook(ctx, tenantID, &req); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.WebhookAckResponse{Received: true})
}
