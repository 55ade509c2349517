// Package observability provides structured logging setup shared by the CLI and server.
package observability

import (
	"strings"

	"go.uber.org/zap"
)

// NewLogger builds a zap logger for the given mode. "prod"/"production"
// selects JSON output; anything else selects the console development encoder.
func NewLogger(mode string) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	return cfg.Build()
}
