// Package progress models per-player buffering: a tracker that turns media
// signals into a 0..100 fraction plus one-shot Ready/LoadFailed signals, and
// the loading view state a presentation layer renders from it.
package progress

import (
	"math"

	"github.com/tphakala/navpreview/internal/errors"
	"github.com/tphakala/navpreview/internal/media"
)

// SignalKind distinguishes tracker notifications.
type SignalKind int

const (
	SignalReady SignalKind = iota + 1
	SignalLoadFailed
)

func (k SignalKind) String() string {
	switch k {
	case SignalReady:
		return "ready"
	case SignalLoadFailed:
		return "load-failed"
	default:
		return "unknown"
	}
}

// Signal is emitted on Ready and on LoadFailed.
type Signal struct {
	Kind   SignalKind
	Player string
	Source media.Source
	Err    error
}

// Tracker follows the buffering of one player's current source. It is not
// safe for concurrent use; the owner serializes calls.
type Tracker struct {
	player string
	notify func(Signal)

	source   media.Source
	fraction float64
	ready    bool
}

// NewTracker returns a tracker for player. notify may be nil.
func NewTracker(player string, notify func(Signal)) *Tracker {
	return &Tracker{player: player, notify: notify}
}

func (t *Tracker) emit(s Signal) {
	if t.notify != nil {
		t.notify(s)
	}
}

// OnSourceChanged starts tracking src from scratch.
func (t *Tracker) OnSourceChanged(src media.Source) {
	t.source = src
	t.fraction = 0
	t.ready = false
}

// OnBufferUpdate recomputes the fraction. An unknown or non-finite total
// (live streams) is ignored, as are updates after Ready. It returns the
// fraction and whether it changed.
func (t *Tracker) OnBufferUpdate(buffered, total float64) (float64, bool) {
	if t.ready || t.source.IsZero() || total <= 0 || math.IsInf(total, 0) || math.IsNaN(total) || math.IsNaN(buffered) {
		return t.fraction, false
	}
	next := min(100, max(0, buffered/total*100))
	if next == t.fraction {
		return t.fraction, false
	}
	t.fraction = next
	return t.fraction, true
}

// OnReadyToPlayThrough marks the source ready and emits Ready. It reports
// whether this was the first ready signal for the source; duplicates are
// absorbed.
func (t *Tracker) OnReadyToPlayThrough() bool {
	if t.ready || t.source.IsZero() {
		return false
	}
	t.fraction = 100
	t.ready = true
	t.emit(Signal{Kind: SignalReady, Player: t.player, Source: t.source})
	return true
}

// OnStalled keeps the fraction; a rebuffer is not a fresh load.
func (t *Tracker) OnStalled() float64 {
	return t.fraction
}

// OnFailure clears progress and readiness and emits LoadFailed carrying a
// SourceLoadError that wraps cause. There is no retry.
func (t *Tracker) OnFailure(cause error) {
	if cause == nil {
		cause = errors.NewStd("media error")
	}
	err := errors.SourceLoadError(cause, t.player, t.source.String())
	t.fraction = 0
	t.ready = false
	t.emit(Signal{Kind: SignalLoadFailed, Player: t.player, Source: t.source, Err: err})
}

// Source returns the tracked source.
func (t *Tracker) Source() media.Source { return t.source }

// Fraction returns the buffered fraction, 0..100.
func (t *Tracker) Fraction() float64 { return t.fraction }

// Ready reports whether the current source is ready to play through.
func (t *Tracker) Ready() bool { return t.ready }
