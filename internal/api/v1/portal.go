package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/resellerdesk/resellerdesk/internal/api/dto"
	"github.com/resellerdesk/resellerdesk/internal/auth"
	ierr "github.com/resellerdesk/resellerdesk/internal/errors"
	"github.com/resellerdesk/resellerdesk/internal/logger"
	"github.com/resellerdesk/resellerdesk/internal/ratelimit"
	"github.com/resellerdesk/resellerdesk/internal/service"
)

// PortalHandler serves the client portal while it waits for a renewal
type PortalHandler struct {
	service  service.RenewalService
	sessions auth.SessionResolver
	limiter  *ratelimit.KeyedLimiter
	log      *logger.Logger
}

func NewPortalHandler(service service.RenewalService, sessions auth.SessionResolver, limiter *ratelimit.KeyedLimiter, log *logger.Logger) *PortalHandler {
	return &PortalHandler{
		service:  service,
		sessions: sessions,
		limiter:  limiter,
		log:      log,
	}
}

// @Summary Poll renewal status
// @Description Returns the renewal phase of one of the session client's payments, fulfilling it when approved
// @Tags Portal
// @Accept json
// @Produce json
// @Param request body dto.RenewalStatusRequest true "Session and payment"
// @Success 200 {object} dto.RenewalStatusResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 401 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 429 {object} ierr.ErrorResponse
// @Router /portal/renewals/status [post]
func (h *PortalHandler) GetRenewalStatus(c *gin.Context) {
	var req dto.RenewalStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	ctx := c.Request.Context()

	claims, err := h.sessions.Resolve(ctx, req.SessionToken)
	if err != nil {
		h.log.WithContext(ctx).Debugw("portal session rejected", "error", err)
		c.Error(err)
		return
	}

	if !h.limiter.Allow(ctx, claims.TenantID+":"+claims.ClientID) {
		c.Error(ierr.NewError("renewal status poll throttled").
			WithHint("Too many requests, please slow down").
			Mark(ierr.ErrRateLimited))
		return
	}

	resp, err := h.service.GetRenewalStatus(ctx, claims, req.PaymentID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
