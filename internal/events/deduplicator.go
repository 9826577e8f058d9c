package events

import (
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tphakala/navpreview/internal/logger"
)

// DeduplicationConfig holds configuration for error deduplication
type DeduplicationConfig struct {
	Enabled    bool
	TTL        time.Duration
	MaxEntries int
}

// DefaultDeduplicationConfig returns default deduplication settings
func DefaultDeduplicationConfig() *DeduplicationConfig {
	return &DeduplicationConfig{
		Enabled:    true,
		TTL:        30 * time.Second,
		MaxEntries: 1000,
	}
}

// ErrorDeduplicator suppresses repeats of the same surfaced error within a
// TTL window, so a camera that keeps failing does not flood the UI.
type ErrorDeduplicator struct {
	config *DeduplicationConfig
	seen   *cache.Cache

	totalSeen       atomic.Uint64
	totalSuppressed atomic.Uint64

	logger logger.Logger
}

// NewErrorDeduplicator creates a new error deduplicator
func NewErrorDeduplicator(config *DeduplicationConfig, log logger.Logger) *ErrorDeduplicator {
	if config == nil {
		config = DefaultDeduplicationConfig()
	}
	// No janitor goroutine: expired entries are purged inline once the cache
	// grows past MaxEntries.
	return &ErrorDeduplicator{
		config: config,
		seen:   cache.New(config.TTL, 0),
		logger: log,
	}
}

// ShouldProcess reports whether the error should be forwarded
func (ed *ErrorDeduplicator) ShouldProcess(event ErrorRaised) bool {
	if ed == nil || !ed.config.Enabled {
		return true
	}

	ed.totalSeen.Add(1)

	if ed.config.MaxEntries > 0 && ed.seen.ItemCount() >= ed.config.MaxEntries {
		ed.seen.DeleteExpired()
		if ed.seen.ItemCount() >= ed.config.MaxEntries {
			ed.seen.Flush()
		}
	}

	// Add fails when an unexpired entry exists
	if err := ed.seen.Add(ed.key(event), struct{}{}, cache.DefaultExpiration); err != nil {
		suppressed := ed.totalSuppressed.Add(1)
		if ed.logger != nil && suppressed%10 == 0 {
			ed.logger.Debug("suppressing duplicate error",
				logger.String("component", event.Component),
				logger.String("category", event.Category),
				logger.Uint64("suppressed_total", suppressed))
		}
		return false
	}
	return true
}

// Suppressed returns how many errors were dropped as duplicates
func (ed *ErrorDeduplicator) Suppressed() uint64 {
	return ed.totalSuppressed.Load()
}

func (ed *ErrorDeduplicator) key(event ErrorRaised) string {
	h := sha256.New()
	h.Write([]byte(event.Component))
	h.Write([]byte{0})
	h.Write([]byte(event.Category))
	h.Write([]byte{0})
	h.Write([]byte(event.Message))
	if player, ok := event.Context["player"].(string); ok {
		h.Write([]byte{0})
		h.Write([]byte(player))
	}
	return hex.EncodeToString(h.Sum(nil)[:8])
}
