package utils

import "go.uber.org/zap"

// ServiceName is attached to every log line.
const ServiceName = "intelhub"

// NewLogger returns a zap logger. When debug is true, uses development config
// (human-readable, debug level, stack traces on warn); otherwise uses production config
// (JSON, info level, no stack traces).
func NewLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg.DisableStacktrace = true
	}
	return cfg.Build(zap.Fields(zap.String("service", ServiceName)))
}
