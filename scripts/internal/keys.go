package internal

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/resellerdesk/resellerdesk/internal/config"
	"github.com/resellerdesk/resellerdesk/internal/security"
)

// GenerateEncryptionKey prints a random 256-bit key in hex
func GenerateEncryptionKey() error {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("unable to generate key: %w", err)
	}
	fmt.Println("Generated Key (hex):", hex.EncodeToString(key))
	return nil
}

// EncryptSecret encrypts SECRET with the configured key, ready for the
// encrypted_secret and encrypted_access_token columns
func EncryptSecret() error {
	secret := os.Getenv("SECRET")
	if secret == "" {
		return fmt.Errorf("SECRET is required")
	}

	cfg, err := config.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	enc, err := security.NewEncryptionService(cfg)
	if err != nil {
		return err
	}

	ciphertext, err := enc.Encrypt(secret)
	if err != nil {
		return err
	}
	fmt.Println(ciphertext)
	return nil
}
