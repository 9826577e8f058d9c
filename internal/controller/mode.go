package controller

import (
	"fmt"
	"strings"
	"time"

	"github.com/tphakala/navpreview/internal/errors"
	"github.com/tphakala/navpreview/internal/logger"
	"github.com/tphakala/navpreview/internal/media"
	"github.com/tphakala/navpreview/internal/player"
)

// Mode is the coordinator mode.
type Mode int

const (
	ModeStandard Mode = iota
	ModeRealtime
)

func (m Mode) String() string {
	switch m {
	case ModeStandard:
		return "standard"
	case ModeRealtime:
		return "realtime"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses "standard" or "realtime".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "standard":
		return ModeStandard, nil
	case "realtime":
		return ModeRealtime, nil
	default:
		return 0, errors.Newf("unknown mode %q", s).
			Component("controller").
			Category(errors.CategoryValidation).
			Build()
	}
}

// Transition results.
const (
	resultOK          = "ok"
	resultError       = "error"
	resultCameraError = "camera-error"
)

// RequestMode asks for mode m. While a transition or mirrored action holds
// the lock the request is deferred to the tick after the lock frees; the
// last request wins.
func (c *Controller) RequestMode(m Mode) error {
	if m != ModeStandard && m != ModeRealtime {
		return errors.Newf("unknown mode %d", int(m)).
			Component("controller").
			Category(errors.CategoryValidation).
			Build()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.desired = m
	c.applyDesired()
	return nil
}

func (c *Controller) applyDesired() {
	if c.lock.Held() {
		if !c.retryPending {
			c.retryPending = true
			c.metrics.RecordTransitionDeferred()
			c.log.Debug("transition deferred",
				logger.String("desired", c.desired.String()),
				logger.String("lock_owner", c.lock.Owner()))
			c.lock.WhenFree(func() { c.loop.PostNextTick(c.retryDesired) })
		}
		return
	}
	if c.desired == c.mode && !c.refreshRequested {
		c.notifySettled()
		return
	}
	c.beginTransition(c.desired)
}

func (c *Controller) retryDesired() {
	c.retryPending = false
	c.applyDesired()
}

// firstGeneration reports whether entering to counts as the first generate
// click, which autoplays both players.
func (c *Controller) firstGeneration(to Mode) bool {
	return c.outputVisible && to == ModeStandard &&
		!c.primary().everPlayed && !c.secondary().everPlayed
}

func (c *Controller) beginTransition(to Mode) {
	if !c.lock.TryAcquire(TransitionOwner) {
		// applyDesired checked the lock under the same mutex
		c.log.Error("transition lock unexpectedly held", logger.String("owner", c.lock.Owner()))
		return
	}

	c.generation++
	tr := &transition{
		gen:     c.generation,
		from:    c.mode,
		to:      to,
		forced:  c.firstGeneration(to),
		started: time.Now(),
	}
	c.current = tr
	c.refreshRequested = false
	c.mode = to
	c.cameraFailed = false

	c.log.Info("mode transition started",
		logger.String("from", tr.from.String()),
		logger.String("to", to.String()),
		logger.Uint64("generation", tr.gen),
		logger.Bool("autoplay", tr.forced))

	c.saveResumePoints()
	for _, s := range c.slots {
		s.setup.stop()
		s.setup = nil
		s.companion = nil
		s.standardReady = false
		s.wantsAutoplay = false
		s.p.Pause(player.OriginProgrammatic)
	}
	c.cameraLive = false

	if to == ModeRealtime {
		c.titles = c.catalog.Realtime()
	} else {
		c.titles = c.catalog.Standard()
	}
	c.publishMode()
	c.publishTitles()

	if to == ModeRealtime {
		c.enterRealtime(tr)
	} else {
		c.enterStandard(tr)
	}
}

// saveResumePoints remembers where each file-backed player was, keyed by
// the source so a clip resumes wherever it is shown next.
func (c *Controller) saveResumePoints() {
	for _, s := range c.slots {
		snap := s.p.Snapshot()
		s.lastKnownTime = snap.CurrentTime
		if snap.Source.IsZero() || snap.Source.IsCamera() {
			continue
		}
		c.resume[snap.Source.Identity()] = resumePoint{
			Time:    snap.CurrentTime,
			Playing: !snap.Paused && s.tracker.Ready(),
		}
	}
}

func (c *Controller) resumeFor(src media.Source) resumePoint {
	return c.resume[src.Identity()]
}

// settle counts down one player of a standard transition.
func (c *Controller) settle(tr *transition, err error) {
	if err != nil {
		tr.failed = true
	}
	tr.pending--
	if tr.pending > 0 {
		return
	}
	result := resultOK
	if tr.failed {
		result = resultError
	}
	c.finishTransition(tr, result)
}

// finishTransition releases the lock on the next tick, after the callbacks
// the transition itself queued have run.
func (c *Controller) finishTransition(tr *transition, result string) {
	if c.current != tr {
		return
	}
	elapsed := time.Since(tr.started)
	c.metrics.RecordTransition(tr.to.String(), result, elapsed)
	c.log.Info("mode transition finished",
		logger.String("to", tr.to.String()),
		logger.String("result", result),
		logger.Uint64("generation", tr.gen),
		logger.Duration("elapsed", elapsed))

	c.loop.PostNextTick(func() {
		if c.current != tr {
			return
		}
		c.current = nil
		c.lock.Release(TransitionOwner)
		c.publishMode()
		c.notifySettled()
	})
}
