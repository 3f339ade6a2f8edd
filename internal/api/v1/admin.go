package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	ierr "github.com/resellerdesk/resellerdesk/internal/errors"
	"github.com/resellerdesk/resellerdesk/internal/logger"
	"github.com/resellerdesk/resellerdesk/internal/service"
)

// AdminHandler exposes operator actions on the payment ledger
type AdminHandler struct {
	service service.RenewalService
	log     *logger.Logger
}

func NewAdminHandler(service service.RenewalService, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		service: service,
		log:     log,
	}
}

// @Summary Retry a failed renewal
// @Description Moves a renewal out of the error state and runs the pipeline once more
// @Tags Admin
// @Produce json
// @Security ApiKeyAuth
// @Param tenant_id path string true "Tenant ID"
// @Param payment_id path string true "External payment ID"
// @Success 200 {object} dto.RetryFulfillmentResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /admin/payments/{tenant_id}/{payment_id}/retry [post]
func (h *AdminHandler) RetryFulfillment(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	paymentID := c.Param("payment_id")
	if tenantID == "" || paymentID == "" {
		c.Error(ierr.NewError("tenant_id and payment_id are required").
			WithHint("Tenant and payment id are required").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.RetryFulfillment(c.Request.Context(), tenantID, paymentID)
	if err != nil {
		c.Error(err)
		return
	}

	h.log.WithContext(c.Request.Context()).Infow("operator retried renewal",
		"tenant_id", tenantID,
		"external_payment_id", paymentID,
		"phase", resp.Phase,
	)
	c.JSON(http.StatusOK, resp)
}
