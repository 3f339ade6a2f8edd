package client

import "context"

type Repository interface {
	Get(ctx context.Context, tenantID, clientID string) (*SubscriptionRef, error)
	// ApplyRenewal is keyed by client id and safe to repeat
	ApplyRenewal(ctx context.Context, tenantID, clientID string, update RenewalUpdate) error
}
