// Package provisioning renews client lines on the external IPTV panels.
package provisioning

import (
	"context"
	"fmt"
	"time"

	"github.com/resellerdesk/resellerdesk/internal/domain/integration"
	ierr "github.com/resellerdesk/resellerdesk/internal/errors"
	"github.com/shopspring/decimal"
)

// SafeErrorMessage is the only provisioning failure text shown to clients
const SafeErrorMessage = "Renewal could not be applied, please contact support"

// Gateway renews a line on the panel behind an integration.
// Renew is never retried here; a failure is final for that attempt.
type Gateway interface {
	Renew(ctx context.Context, pi *integration.ProviderIntegration, username string, months int) (*RenewResult, error)
	Credits(ctx context.Context, pi *integration.ProviderIntegration) (decimal.Decimal, error)
}

type RenewResult struct {
	NewExpiry time.Time
	// RotatedPassword is set when the panel issued a new line password
	RotatedPassword *string
}

// panel is implemented once per provider variant, with the secret already decrypted
type panel interface {
	renew(ctx context.Context, secret, username string, months int) (*RenewResult, error)
	credits(ctx context.Context, secret string) (decimal.Decimal, error)
}

func provisioningError(err error, format string, args ...any) error {
	if err == nil {
		err = fmt.Errorf(format, args...)
	} else {
		err = ierr.Wrap(err, fmt.Sprintf(format, args...))
	}
	return ierr.WithError(err).
		WithHint(SafeErrorMessage).
		Mark(ierr.ErrProvisioning)
}
