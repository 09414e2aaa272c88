// Package logger provides the structured logging facility shared by every
// subsystem of the Ignite store. It wraps zap so that callers deal only in
// *zap.SugaredLogger values, the same type every internal package already
// takes as a constructor dependency.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-profile *zap.SugaredLogger tagged with the given
// service name. The service name is attached to every log line so that
// output from multiple Ignite instances (or multiple engines within the
// same process) can be told apart.
func New(service string) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	log, err := cfg.Build(zap.AddCallerSkip(0))
	if err != nil {
		// zap's production config only fails to build on misconfigured
		// sinks/encoders, neither of which we touch above, so fall back to
		// a no-op logger rather than panicking the caller's constructor.
		log = zap.NewNop()
	}

	return log.Sugar().Named(service)
}

// NewDevelopment builds a development-profile logger with human-readable,
// colorized output. Intended for local tooling.
func NewDevelopment(service string) *zap.SugaredLogger {
	log, err := zap.NewDevelopment()
	if err != nil {
		log = zap.NewNop()
	}
	return log.Sugar().Named(service)
}

// Nop returns a logger that discards everything, for use in tests that
// don't care about log output.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
