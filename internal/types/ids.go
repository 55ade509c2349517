package types

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a fresh opaque identifier like "session_1a2b3c4d". The
// prefix marks the entity kind; the suffix is random and stable for the
// object's lifetime.
func NewID(prefix string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "_" + hex[:8]
}
