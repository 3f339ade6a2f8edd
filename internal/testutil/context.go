package testutil

import (
	"context"

	"github.com/resellerdesk/resellerdesk/internal/types"
)

// TestTenantID is the tenant every suite works in unless a test says otherwise
const TestTenantID = "tenant_test"

func SetupContext() context.Context {
	ctx := context.Background()
	ctx = types.SetTenantID(ctx, TestTenantID)
	ctx = types.SetUserID(ctx, types.DefaultUserID)
	ctx = types.SetRequestID(ctx, types.GenerateUUID())
	return ctx
}
