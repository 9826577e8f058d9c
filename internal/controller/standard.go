package controller

import (
	"fmt"
	"math"

	"github.com/tphakala/navpreview/internal/errors"
	"github.com/tphakala/navpreview/internal/logger"
	"github.com/tphakala/navpreview/internal/media"
	"github.com/tphakala/navpreview/internal/player"
)

// ErrSettleTimeout is wrapped by the SourceLoadError of a player that did not
// become ready within the settle timeout.
var ErrSettleTimeout = errors.NewStd("player did not become ready in time")

func (c *Controller) enterStandard(tr *transition) {
	c.releaseCamera()

	prim := c.primary()
	if prim.p.Snapshot().Source.IsCamera() {
		c.bind(prim, media.Source{}, nil)
	}
	prim.p.SetMuted(false)
	for _, s := range c.slots {
		s.p.SetControls(true)
	}

	tr.pending = len(c.slots)
	for i, target := range c.standardTargets() {
		c.setupStandard(tr, c.slots[i], target)
	}
}

func (c *Controller) standardTargets() [2]media.Source {
	return [2]media.Source{c.cfg.Clips.StandardPrimary, c.cfg.Clips.StandardSecondary}
}

// setupStandard binds target to s unless it is already bound, then waits for
// it to be ready before restoring the saved position.
func (c *Controller) setupStandard(tr *transition, s *slot, target media.Source) {
	current := s.p.Snapshot().Source
	if target.IsZero() {
		if current.IsZero() || current.IsCamera() {
			err := errors.UnexpectedStateError(s.name, "no source bound and no standard clip configured")
			c.log.Error("standard setup failed",
				logger.String("player", s.name),
				logger.Uint64("generation", tr.gen),
				logger.Error(err))
			c.settle(tr, err)
			return
		}
		target = current
	}

	resume := c.resumeFor(target)
	s.wantsAutoplay = tr.forced || resume.Playing

	if !current.Equal(target) {
		c.bind(s, target, nil)
	} else if s.tracker.Ready() {
		s.view.HideInstant()
		c.completeSetup(tr, s, resume)
		return
	} else {
		s.view.Show(c.variantFor(target), false)
	}

	setup := &pendingSetup{gen: tr.gen, target: target, resume: resume}
	setup.cancel = c.loop.After(c.cfg.SettleTimeout, func() { c.setupTimedOut(s, setup) })
	s.setup = setup
}

func (c *Controller) completeSetup(tr *transition, s *slot, resume resumePoint) {
	s.setup.stop()
	s.setup = nil

	c.restorePosition(s, resume.Time)
	s.standardReady = true
	c.attemptSynchronizedPlay(tr.forced)
	c.settle(tr, nil)
}

func (c *Controller) restorePosition(s *slot, t float64) {
	snap := s.p.Snapshot()
	if math.Abs(snap.CurrentTime-t) > c.cfg.SeekDeadband {
		s.p.Seek(t, player.OriginProgrammatic)
	}
}

func (c *Controller) setupTimedOut(s *slot, setup *pendingSetup) {
	if s.setup != setup || c.current == nil || c.current.gen != setup.gen {
		return
	}
	cause := fmt.Errorf("%w after %s", ErrSettleTimeout, c.cfg.SettleTimeout)
	err := errors.SettleTimeoutError(cause, s.name, setup.target.String(), c.cfg.SettleTimeout)
	c.metrics.RecordLoadFailure(s.name)
	c.failSetup(c.current, s, err)
}

func (c *Controller) failSetup(tr *transition, s *slot, err error) {
	s.setup.stop()
	s.setup = nil
	s.standardReady = false
	s.view.HideInstant()
	c.log.Error("standard setup failed",
		logger.String("player", s.name),
		logger.Uint64("generation", tr.gen),
		logger.Error(err))
	c.settle(tr, err)
}

// attemptSynchronizedPlay starts playback once both players are ready. forced
// autoplays both; otherwise only players that were playing before resume.
func (c *Controller) attemptSynchronizedPlay(forced bool) {
	if c.mode != ModeStandard {
		return
	}
	for _, s := range c.slots {
		if !s.standardReady || !s.tracker.Ready() {
			return
		}
	}
	for _, s := range c.slots {
		if forced || s.wantsAutoplay {
			s.wantsAutoplay = false
			s.p.Play(player.OriginProgrammatic)
		}
	}
}
