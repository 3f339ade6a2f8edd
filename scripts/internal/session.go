package internal

import (
	"fmt"
	"os"
	"time"

	"github.com/resellerdesk/resellerdesk/internal/auth"
	"github.com/resellerdesk/resellerdesk/internal/config"
)

// IssueSession prints a 24h portal session for TENANT_ID and CLIENT_ID
func IssueSession() error {
	tenantID := os.Getenv("TENANT_ID")
	clientID := os.Getenv("CLIENT_ID")
	if tenantID == "" || clientID == "" {
		return fmt.Errorf("TENANT_ID and CLIENT_ID are required")
	}

	cfg, err := config.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	token, err := auth.IssueSessionToken(cfg, tenantID, clientID, 24*time.Hour)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
