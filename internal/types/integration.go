package types

import (
	ierr "github.com/resellerdesk/resellerdesk/internal/errors"
)

// ProviderVariant tags how a provisioning panel authenticates
type ProviderVariant string

const (
	// ProviderVariantToken panels take a static bearer token
	ProviderVariantToken ProviderVariant = "A"
	// ProviderVariantSession panels need a login session and a csrf token
	ProviderVariantSession ProviderVariant = "B"
)

func (v ProviderVariant) Validate() error {
	switch v {
	case ProviderVariantToken, ProviderVariantSession:
		return nil
	}
	return ierr.NewError("unknown provider variant").
		WithHintf("Provider variant %q is not supported", string(v)).
		Mark(ierr.ErrValidation)
}
