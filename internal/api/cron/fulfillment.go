package cron

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/resellerdesk/resellerdesk/internal/logger"
	"github.com/resellerdesk/resellerdesk/internal/service"
)

type FulfillmentCronHandler struct {
	recovery service.RecoveryService
	logger   *logger.Logger
}

func NewFulfillmentCronHandler(recovery service.RecoveryService, logger *logger.Logger) *FulfillmentCronHandler {
	return &FulfillmentCronHandler{
		recovery: recovery,
		logger:   logger,
	}
}

// RecoverStale moves renewals stuck in processing back to pending
func (h *FulfillmentCronHandler) RecoverStale(c *gin.Context) {
	h.logger.Infow("starting stale fulfillment recovery")

	resp, err := h.recovery.RecoverStale(c.Request.Context())
	if err != nil {
		h.logger.Errorw("stale fulfillment recovery failed", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
