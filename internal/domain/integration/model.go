package integration

import (
	"time"

	"github.com/resellerdesk/resellerdesk/internal/types"
)

// ProviderIntegration holds the panel a client line lives on
type ProviderIntegration struct {
	ID       string                `db:"id" json:"id"`
	TenantID string                `db:"tenant_id" json:"tenant_id"`
	Name     string                `db:"name" json:"name"`
	Variant  types.ProviderVariant `db:"variant" json:"variant"`
	BaseURL  string                `db:"base_url" json:"base_url"`
	Username string                `db:"username" json:"username"`
	// EncryptedSecret is the bearer token for variant A and the login password for B
	EncryptedSecret string    `db:"encrypted_secret" json:"-"`
	Active          bool      `db:"active" json:"active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// GatewayCredential is the tenant's payment provider access token
type GatewayCredential struct {
	ID                   string    `db:"id" json:"id"`
	TenantID             string    `db:"tenant_id" json:"tenant_id"`
	Provider             string    `db:"provider" json:"provider"`
	EncryptedAccessToken string    `db:"encrypted_access_token" json:"-"`
	Active               bool      `db:"active" json:"active"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}
