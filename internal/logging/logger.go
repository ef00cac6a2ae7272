// Package logging provides categorized structured logging for auditcore.
//
// Each subsystem named in the component table (orchestrator, registry, adapter,
// normalizer, correlation, taxonomy, audit) gets its own named zap logger so log
// output can be filtered per subsystem without threading a logger through every
// call site by hand.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies which subsystem emitted a log line.
type Category string

const (
	CategoryOrchestrator Category = "orchestrator"
	CategoryRegistry     Category = "registry"
	CategoryAdapter      Category = "adapter"
	CategoryNormalizer   Category = "normalizer"
	CategoryCorrelation  Category = "correlation"
	CategoryTaxonomy     Category = "taxonomy"
	CategoryAudit        Category = "audit"
)

var (
	mu      sync.RWMutex
	base    *zap.Logger
	loggers = make(map[Category]*zap.Logger)
)

// Initialize sets the base zap logger used to derive every category logger.
// Safe to call more than once; the first call wins unless Reset is used (tests only).
func Initialize(logger *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if base != nil {
		return
	}
	base = logger
	loggers = make(map[Category]*zap.Logger)
}

// Reset clears the initialized base logger. Intended for tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	base = nil
	loggers = make(map[Category]*zap.Logger)
}

// ensureBase lazily installs a sane production-ish default when nobody called
// Initialize explicitly (library usage without an owning process).
func ensureBase() *zap.Logger {
	mu.RLock()
	b := base
	mu.RUnlock()
	if b != nil {
		return b
	}

	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		l = zap.NewNop()
	}

	mu.Lock()
	defer mu.Unlock()
	if base == nil {
		base = l
	}
	return base
}

// For returns the named category's logger, creating it on first use.
func For(category Category) *zap.Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	b := ensureBase()
	l := b.With(zap.String("component", string(category)))

	mu.Lock()
	defer mu.Unlock()
	if existing, ok := loggers[category]; ok {
		return existing
	}
	loggers[category] = l
	return l
}

// Sync flushes every category logger's buffered entries. Call during shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	for _, l := range loggers {
		_ = l.Sync()
	}
	if base != nil {
		_ = base.Sync()
	}
}
