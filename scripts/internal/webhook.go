package internal

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/resellerdesk/resellerdesk/internal/config"
	"github.com/resellerdesk/resellerdesk/internal/security"
	"github.com/resellerdesk/resellerdesk/internal/types"
)

// SignWebhook prints the headers the provider would send for PAYMENT_ID
func SignWebhook() error {
	paymentID := os.Getenv("PAYMENT_ID")
	if paymentID == "" {
		return fmt.Errorf("PAYMENT_ID is required")
	}

	cfg, err := config.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Payments.WebhookSecret == "" {
		return fmt.Errorf("payments.webhook_secret is not configured")
	}

	requestID := uuid.New().String()
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	signature := hex.EncodeToString(security.Sign([]byte(cfg.Payments.WebhookSecret), paymentID, requestID, ts))

	fmt.Printf("%s: ts=%s,v1=%s\n", types.HeaderPaymentSignature, ts, signature)
	fmt.Printf("%s: %s\n", types.HeaderPaymentRequestID, requestID)
	return nil
}
