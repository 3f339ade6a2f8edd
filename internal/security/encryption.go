package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"

	"github.com/resellerdesk/resellerdesk/internal/config"
	ierr "github.com/resellerdesk/resellerdesk/internal/errors"
)

// EncryptionService seals integration secrets and gateway tokens at rest
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

type aesEncryptionService struct {
	aead cipher.AEAD
}

// NewEncryptionService builds an AES-256-GCM service from secrets.encryption_key.
// A 64 char hex key is used as is, anything else is hashed down to 32 bytes.
func NewEncryptionService(cfg *config.Configuration) (EncryptionService, error) {
	if cfg.Secrets.EncryptionKey == "" {
		return nil, ierr.NewError("master encryption key not configured").
			WithHint("Encryption key is required").
			Mark(ierr.ErrSystem)
	}
	return newAESService(cfg.Secrets.EncryptionKey)
}

func newAESService(rawKey string) (*aesEncryptionService, error) {
	key, err := hex.DecodeString(rawKey)
	if err != nil || len(key) != 32 {
		sum := sha256.Sum256([]byte(rawKey))
		key = sum[:]
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to initialise encryption").
			Mark(ierr.ErrSystem)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to initialise encryption").
			Mark(ierr.ErrSystem)
	}
	return &aesEncryptionService{aead: aead}, nil
}

// Encrypt returns base64(nonce || ciphertext)
func (s *aesEncryptionService) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to encrypt value").
			Mark(ierr.ErrSystem)
	}

	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *aesEncryptionService) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	decoded, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Stored credential is corrupted").
			Mark(ierr.ErrSystem)
	}

	nonceSize := s.aead.NonceSize()
	if len(decoded) < nonceSize {
		return "", ierr.NewError("ciphertext too short").
			WithHint("Stored credential is corrupted").
			Mark(ierr.ErrSystem)
	}

	nonce, sealed := decoded[:nonceSize], decoded[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Stored credential could not be decrypted").
			Mark(ierr.ErrSystem)
	}

	return string(plaintext), nil
}
