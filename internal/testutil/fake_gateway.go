package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/resellerdesk/resellerdesk/internal/domain/integration"
	"github.com/resellerdesk/resellerdesk/internal/provisioning"
	"github.com/shopspring/decimal"
)

var _ provisioning.Gateway = (*FakeGateway)(nil)

// RenewCall records one Renew invocation
type RenewCall struct {
	IntegrationID string
	Username      string
	Months        int
}

// FakeGateway is a provisioning.Gateway that records calls. By default every
// renewal succeeds with NewExpiry.
type FakeGateway struct {
	mu          sync.Mutex
	renewCalls  []RenewCall
	creditCalls int

	NewExpiry       time.Time
	RotatedPassword *string
	Balance         decimal.Decimal
	// Delay holds the renew call open, honoring context cancellation
	Delay time.Duration
	// RenewErr and CreditsErr force failures
	RenewErr   error
	CreditsErr error
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		NewExpiry: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Balance:   decimal.NewFromInt(100),
	}
}

func (g *FakeGateway) Renew(ctx context.Context, pi *integration.ProviderIntegration, username string, months int) (*provisioning.RenewResult, error) {
	g.mu.Lock()
	g.renewCalls = append(g.renewCalls, RenewCall{IntegrationID: pi.ID, Username: username, Months: months})
	delay, renewErr := g.Delay, g.RenewErr
	result := &provisioning.RenewResult{NewExpiry: g.NewExpiry, RotatedPassword: g.RotatedPassword}
	g.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if renewErr != nil {
		return nil, renewErr
	}
	return result, nil
}

func (g *FakeGateway) Credits(ctx context.Context, pi *integration.ProviderIntegration) (decimal.Decimal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.creditCalls++
	if g.CreditsErr != nil {
		return decimal.Zero, g.CreditsErr
	}
	return g.Balance, nil
}

func (g *FakeGateway) RenewCalls() []RenewCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	calls := make([]RenewCall, len(g.renewCalls))
	copy(calls, g.renewCalls)
	return calls
}

func (g *FakeGateway) CreditCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.creditCalls
}

func (g *FakeGateway) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.renewCalls = nil
	g.creditCalls = 0
	g.RenewErr = nil
	g.CreditsErr = nil
	g.Delay = 0
	g.RotatedPassword = nil
}
