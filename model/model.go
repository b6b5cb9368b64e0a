package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// GenerateUUIDWithSuffix generates a UUID with a given module name as a prefix.
// This is useful for creating unique identifiers with context-specific prefixes.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	uuidStr := id.String()
	idWithSuffix := fmt.Sprintf("%s_%s", module, uuidStr)
	return idWithSuffix
}

// hashFields produces a SHA-256 hex digest over the concatenation of the
// given fields. Used to fingerprint transaction rows.
func hashFields(fields ...string) string {
	var data string
	for _, f := range fields {
		data += f
	}
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
