package auth

import (
	"crypto/sha256"
	"crypto/subtle"

	"github.com/resellerdesk/resellerdesk/internal/config"
)

// ValidateAPIKey checks the operator key used by the cron and admin routes.
// An unset key rejects everything.
func ValidateAPIKey(cfg *config.Configuration, key string) bool {
	if cfg.Cron.APIKey == "" || key == "" {
		return false
	}
	expected := sha256.Sum256([]byte(cfg.Cron.APIKey))
	provided := sha256.Sum256([]byte(key))
	return subtle.ConstantTimeCompare(expected[:], provided[:]) == 1
}
