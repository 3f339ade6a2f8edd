package integration

import "context"

// Repository is read only, integrations are managed elsewhere
type Repository interface {
	Get(ctx context.Context, tenantID, id string) (*ProviderIntegration, error)
	GetActiveGatewayCredential(ctx context.Context, tenantID string) (*GatewayCredential, error)
}
