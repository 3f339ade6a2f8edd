package security

import (
	"testing"

	"github.com/resellerdesk/resellerdesk/internal/config"
	ierr "github.com/resellerdesk/resellerdesk/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptionService(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Secrets.EncryptionKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

	svc, err := NewEncryptionService(cfg)
	require.NoError(t, err)

	sealed, err := svc.Encrypt("panel-token")
	require.NoError(t, err)
	assert.NotEqual(t, "panel-token", sealed)

	opened, err := svc.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "panel-token", opened)

	t.Run("tampered ciphertext", func(t *testing.T) {
		_, err := svc.Decrypt(sealed[:len(sealed)-4] + "AAAA")
		assert.True(t, ierr.Is(err, ierr.ErrSystem))
	})

	t.Run("different key cannot decrypt", func(t *testing.T) {
		other, err := newAESService("some passphrase")
		require.NoError(t, err)
		_, err = other.Decrypt(sealed)
		assert.Error(t, err)
	})
}

func TestEncryptionService_MissingKey(t *testing.T) {
	_, err := NewEncryptionService(config.GetDefaultConfig())
	assert.Error(t, err)
}
