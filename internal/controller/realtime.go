package controller

import (
	"github.com/tphakala/navpreview/internal/capture"
	"github.com/tphakala/navpreview/internal/errors"
	"github.com/tphakala/navpreview/internal/logger"
	"github.com/tphakala/navpreview/internal/media"
	"github.com/tphakala/navpreview/internal/player"
	"github.com/tphakala/navpreview/internal/progress"
)

func (c *Controller) enterRealtime(tr *transition) {
	prim := c.primary()
	prim.view.Show(progress.VariantCamera, true)

	// Regenerating in realtime keeps the live stream
	if tr.from == ModeRealtime && c.stream != nil {
		if stream, err := c.camera.Reattach(c.stream); err == nil {
			c.log.Debug("reattaching camera stream", logger.String("stream", stream.ID()))
			c.onCameraResult(tr, stream, nil)
			return
		}
	}

	c.releaseCamera()
	if !prim.p.Snapshot().Source.IsZero() {
		c.bind(prim, media.Source{}, nil)
	}
	prim.p.SetControls(false)
	prim.p.SetMuted(true)

	ctx, constraints := c.ctx, c.cfg.Camera
	c.loop.Go(func() {
		stream, err := c.camera.Acquire(ctx, constraints)
		c.loop.Post(func() { c.onCameraResult(tr, stream, err) })
	})
}

func (c *Controller) onCameraResult(tr *transition, stream capture.Stream, err error) {
	if c.current != tr {
		// Superseded; the newer transition owns the camera now
		if stream != nil {
			if relErr := c.camera.Release(stream); relErr != nil {
				c.log.Warn("releasing stale camera stream failed", logger.Error(relErr))
			}
		}
		return
	}
	if err != nil {
		c.cameraFailure(tr, err)
		return
	}

	prim := c.primary()
	c.stream = stream
	prim.p.SetMuted(true)
	prim.p.SetControls(false)
	c.bind(prim, media.Camera(), stream)
	prim.p.Play(player.OriginProgrammatic)
	c.cameraLive = true

	c.assignCompanion(tr)
	c.finishTransition(tr, resultOK)
}

// assignCompanion binds the realtime companion clip to the secondary player.
func (c *Controller) assignCompanion(tr *transition) {
	sec := c.secondary()
	sec.p.SetControls(true)

	target := c.cfg.Clips.RealtimeSecondary
	if target.IsZero() {
		c.log.Warn("no realtime companion clip configured", logger.String("player", sec.name))
		return
	}
	resume := c.resumeFor(target)

	if !sec.p.Snapshot().Source.Equal(target) {
		c.bind(sec, target, nil)
	} else if sec.tracker.Ready() {
		c.completeCompanion(sec, resume)
		return
	}
	sec.companion = &pendingSetup{gen: tr.gen, target: target, resume: resume}
}

// completeCompanion restores or zeroes the companion position and starts it
// when the camera is live.
func (c *Controller) completeCompanion(s *slot, resume resumePoint) {
	s.companion = nil
	c.restorePosition(s, resume.Time)

	if c.cameraLive {
		s.p.Play(player.OriginProgrammatic)
	}
}

// cameraFailure leaves the primary player without a stream and with native
// controls. The secondary player is not touched and there is no retry.
func (c *Controller) cameraFailure(tr *transition, err error) {
	prim := c.primary()
	c.cameraFailed = true
	c.cameraLive = false
	c.stream = nil

	c.log.Error("camera unavailable",
		logger.String("player", prim.name),
		logger.String("mode", c.mode.String()),
		logger.Bool("permission_denied", errors.Is(err, capture.ErrPermissionDenied)),
		logger.Error(err))

	if !prim.p.Snapshot().Source.IsZero() {
		c.bind(prim, media.Source{}, nil)
	}
	prim.p.SetControls(true)
	prim.view.HideInstant()

	c.titles.Primary = c.catalog.CameraError()
	c.publishTitles()

	if tr != nil {
		c.finishTransition(tr, resultCameraError)
	}
}

// cameraPlayFailed handles a live feed that refused to start. The
// transition that bound it has already been accounted for.
func (c *Controller) cameraPlayFailed(ev player.Event) {
	cause := ev.Err
	if cause == nil {
		cause = errors.NewStd("camera playback failed")
	}
	err := errors.DeviceError(cause, c.camera.DeviceName())
	c.releaseCamera()
	c.cameraFailure(nil, err)
}
