package types

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex pay_01JD0ZQ8J5X1M2N3P4Q5R6S7T8
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

const (
	UUID_PREFIX_PAYMENT_RECORD = "pay"
	UUID_PREFIX_EVENT          = "evt"
	UUID_PREFIX_CLIENT         = "cli"
	UUID_PREFIX_INTEGRATION    = "int"
)
