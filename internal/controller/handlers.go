package controller

import (
	"github.com/tphakala/navpreview/internal/logger"
	"github.com/tphakala/navpreview/internal/player"
	"github.com/tphakala/navpreview/internal/progress"
)

// handlePlayerEvent runs on the loop for every media event.
func (c *Controller) handlePlayerEvent(ev player.Event) {
	s, ok := c.byName[ev.Player]
	if !ok {
		return
	}

	if ev.Type == player.EventEmptied {
		s.view.ResetProgress()
		return
	}
	// Late events for a replaced source
	if !ev.Source.Equal(s.tracker.Source()) {
		c.log.Trace("stale player event",
			logger.String("player", s.name),
			logger.String("event", string(ev.Type)),
			logger.String("source", ev.Source.String()))
		return
	}
	if !ev.Source.IsCamera() {
		s.lastKnownTime = ev.Time
	}

	variant := c.variantFor(ev.Source)
	switch ev.Type {
	case player.EventLoadStart:
		s.view.Show(variant, true)
	case player.EventProgress:
		if fraction, changed := s.tracker.OnBufferUpdate(ev.Buffered, ev.Duration); changed {
			s.view.SetProgress(fraction)
		}
	case player.EventWaiting:
		s.view.Show(variant, false)
		s.view.SetProgress(s.tracker.OnStalled())
	case player.EventCanPlayThrough:
		s.tracker.OnReadyToPlayThrough()
	case player.EventPlaying:
		s.view.SetProgress(100)
		s.view.Hide(!ev.Source.IsCamera())
	case player.EventError:
		s.tracker.OnFailure(ev.Err)
	case player.EventPlay, player.EventPause, player.EventSeeked:
		if ev.Type == player.EventPlay {
			s.everPlayed = true
		}
		if ev.Source.IsCamera() && ev.Origin == player.OriginUser {
			c.cameraLive = ev.Type == player.EventPlay
		}
		c.group.Handle(ev)
	case player.EventPlayFailed:
		if ev.Source.IsCamera() && c.mode == ModeRealtime {
			c.cameraPlayFailed(ev)
			return
		}
		// Blocked autoplay: leave it to the user
		s.p.SetControls(true)
		c.log.Warn("playback refused",
			logger.String("player", s.name),
			logger.String("origin", ev.Origin.String()),
			logger.Error(ev.Err))
	}
}

// onSignal receives tracker signals. Trackers are only driven from the loop.
func (c *Controller) onSignal(sig progress.Signal) {
	s, ok := c.byName[sig.Player]
	if !ok {
		return
	}

	switch sig.Kind {
	case progress.SignalReady:
		s.view.Hide(!sig.Source.IsCamera())
		if s.setup != nil && c.current != nil && s.setup.gen == c.current.gen && s.setup.target.Equal(sig.Source) {
			c.completeSetup(c.current, s, s.setup.resume)
		}
		if s.companion != nil && s.companion.gen == c.generation && s.companion.target.Equal(sig.Source) {
			c.completeCompanion(s, s.companion.resume)
		}

	case progress.SignalLoadFailed:
		c.metrics.RecordLoadFailure(s.name)
		s.view.HideInstant()
		if s.setup != nil && c.current != nil && s.setup.gen == c.current.gen {
			c.failSetup(c.current, s, sig.Err)
			return
		}
		s.companion = nil
		c.log.Error("source failed to load",
			logger.String("player", s.name),
			logger.String("mode", c.mode.String()),
			logger.Error(sig.Err))
	}
}
