package provisioning

import (
	"context"

	"github.com/resellerdesk/resellerdesk/internal/domain/integration"
	"github.com/resellerdesk/resellerdesk/internal/logger"
	"github.com/resellerdesk/resellerdesk/internal/security"
	"github.com/resellerdesk/resellerdesk/internal/types"
	"github.com/shopspring/decimal"
)

// Factory is the Gateway used by the services. It decrypts the integration
// secret and hands the call to the panel matching the integration variant.
type Factory struct {
	encryption security.EncryptionService
	logger     *logger.Logger
}

func NewFactory(encryption security.EncryptionService, logger *logger.Logger) Gateway {
	return &Factory{
		encryption: encryption,
		logger:     logger,
	}
}

func (f *Factory) Renew(ctx context.Context, pi *integration.ProviderIntegration, username string, months int) (*RenewResult, error) {
	if username == "" || months <= 0 {
		return nil, provisioningError(nil, "invalid renew input username=%q months=%d", username, months)
	}

	p, secret, err := f.panelFor(pi)
	if err != nil {
		return nil, err
	}

	f.logger.Infow("renewing line on panel",
		"integration_id", pi.ID,
		"variant", pi.Variant,
		"username", username,
		"months", months,
	)
	return p.renew(ctx, secret, username, months)
}

func (f *Factory) Credits(ctx context.Context, pi *integration.ProviderIntegration) (decimal.Decimal, error) {
	p, secret, err := f.panelFor(pi)
	if err != nil {
		return decimal.Zero, err
	}
	return p.credits(ctx, secret)
}

func (f *Factory) panelFor(pi *integration.ProviderIntegration) (panel, string, error) {
	if pi == nil || !pi.Active {
		return nil, "", provisioningError(nil, "integration missing or inactive")
	}
	if err := pi.Variant.Validate(); err != nil {
		return nil, "", provisioningError(err, "integration %s", pi.ID)
	}

	secret, err := f.encryption.Decrypt(pi.EncryptedSecret)
	if err != nil {
		return nil, "", provisioningError(err, "decrypting secret of integration %s", pi.ID)
	}

	switch pi.Variant {
	case types.ProviderVariantSession:
		return newSessionPanel(pi.BaseURL, pi.Username, f.logger), secret, nil
	default:
		return newTokenPanel(pi.BaseURL, f.logger), secret, nil
	}
}
