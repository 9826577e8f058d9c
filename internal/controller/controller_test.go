package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/navpreview/internal/capture"
	"github.com/tphakala/navpreview/internal/errors"
	"github.com/tphakala/navpreview/internal/media"
	"github.com/tphakala/navpreview/internal/player"
	"github.com/tphakala/navpreview/internal/player/sim"
	"github.com/tphakala/navpreview/internal/progress"
	"github.com/tphakala/navpreview/internal/runloop"
)

func TestGenerateRequiresBothPhotos(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	assert.False(t, h.ctrl.CanGenerate())

	err := h.ctrl.Generate()
	require.ErrorIs(t, err, ErrGenerateNotAllowed)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.Equal(t, "Please select images for both current location and target location first!", err.Error())

	require.NoError(t, h.ctrl.SelectPhoto(SlotCurrent, "lobby.jpg"))
	assert.False(t, h.ctrl.CanGenerate())
	require.ErrorIs(t, h.ctrl.Generate(), ErrGenerateNotAllowed)

	require.NoError(t, h.ctrl.SelectPhoto(SlotDestination, "room-204.jpg"))
	assert.True(t, h.ctrl.CanGenerate())

	st := h.ctrl.Snapshot()
	assert.Equal(t, "Selected: lobby.jpg", st.Photos.CurrentLabel)
	assert.Equal(t, "Selected: room-204.jpg", st.Photos.DestinationLabel)
	assert.True(t, st.Photos.GenerateVisible)
	assert.False(t, st.Photos.OutputVisible)

	require.NoError(t, h.ctrl.ClearPhoto(SlotCurrent))
	assert.False(t, h.ctrl.CanGenerate())
	assert.Equal(t, "No image selected", h.ctrl.Snapshot().Photos.CurrentLabel)

	_, err = ParseSlot("elsewhere")
	require.Error(t, err)
}

func TestStartPreloadsStandardClips(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	st := h.ctrl.Snapshot()

	assert.Equal(t, "standard", st.Mode)
	assert.False(t, st.Transitioning)
	assert.Equal(t, "Visual Navigation Preview", st.Titles.Primary)
	assert.Equal(t, "Visual Navigation", st.Titles.NavLabel)
	assert.True(t, h.primary().Snapshot().Source.Equal(standardPrimaryClip))
	assert.True(t, h.secondary().Snapshot().Source.Equal(standardSecondaryClip))

	for _, p := range st.Players {
		assert.True(t, p.Loading.Active, p.Name)
		assert.Equal(t, progress.PhaseLoading, p.Loading.Phase)
		assert.False(t, p.IsReady)
	}
}

func TestAutoplayWaitsForBothPlayers(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	h.selectPhotos()
	require.NoError(t, h.ctrl.Generate())
	h.settle()

	st := h.ctrl.Snapshot()
	assert.True(t, st.Transitioning)
	assert.False(t, st.Photos.GenerateVisible)
	assert.True(t, st.Photos.OutputVisible)

	h.primary().CanPlayThrough()
	h.settle()
	assert.True(t, h.primary().Snapshot().Paused, "no autoplay until both are ready")
	assert.True(t, h.secondary().Snapshot().Paused)
	assert.True(t, h.ctrl.Snapshot().Transitioning)
	assert.Empty(t, h.log.scrolls())

	h.secondary().CanPlayThrough()
	h.settle()
	assert.False(t, h.primary().Snapshot().Paused, "first generation autoplays both")
	assert.False(t, h.secondary().Snapshot().Paused)

	st = h.ctrl.Snapshot()
	assert.False(t, st.Transitioning)
	assert.Empty(t, st.LockOwner)

	scrolls := h.log.scrolls()
	require.Len(t, scrolls, 1)
	assert.Equal(t, OutputRegion, scrolls[0].Region)
	assert.Equal(t, []string{"standard/ok"}, h.metrics.transitions)
}

func TestCameraPermissionDenied(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	h.ready()
	h.dev.Deny(capture.ErrPermissionDenied)

	require.NoError(t, h.ctrl.RequestMode(ModeRealtime))
	h.settle()

	st := h.ctrl.Snapshot()
	assert.Equal(t, "realtime", st.Mode)
	assert.False(t, st.Transitioning)
	assert.Empty(t, st.LockOwner, "lock released after camera failure")
	assert.True(t, st.CameraFailed)
	assert.False(t, st.CameraOpen)
	assert.Equal(t, "Camera Feed (Error)", st.Titles.Primary)
	assert.Equal(t, "Camera Feed (Error)", h.log.lastTitles().Primary)

	prim := h.primary()
	assert.True(t, prim.Snapshot().Source.IsZero(), "no stream bound")
	assert.True(t, prim.Controls(), "native controls exposed")
	assert.False(t, h.playerState(PrimaryName).Loading.Active)

	sec := h.secondary()
	assert.True(t, sec.Snapshot().Source.Equal(standardSecondaryClip), "secondary untouched")
	assert.Equal(t, []string{"realtime/camera-error"}, h.metrics.transitions)
	assert.Zero(t, h.dev.ActiveStreams())

	// No automatic retry
	h.settle()
	assert.Zero(t, h.dev.Opens())
}

func TestRapidDoubleToggle(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	h.ready()
	gate := h.dev.Hold()

	require.NoError(t, h.ctrl.RequestMode(ModeRealtime))
	require.NoError(t, h.ctrl.RequestMode(ModeStandard))
	h.sched.Flush()
	h.sched.Tick()

	st := h.ctrl.Snapshot()
	assert.Equal(t, "realtime", st.Mode, "first transition still waiting for the camera")
	assert.Equal(t, "standard", st.Desired)
	assert.True(t, st.Transitioning)

	close(gate)
	h.settleAll()

	st = h.ctrl.Snapshot()
	assert.Equal(t, "standard", st.Mode)
	assert.False(t, st.Transitioning)
	assert.False(t, st.CameraOpen)
	assert.Zero(t, h.dev.ActiveStreams(), "camera released")
	assert.Zero(t, h.cam.OpenStreams())
	assert.LessOrEqual(t, h.dev.PeakActiveStreams(), 1)
	assert.True(t, h.primary().Snapshot().Source.Equal(standardPrimaryClip))
	assert.True(t, h.secondary().Snapshot().Source.Equal(standardSecondaryClip))
	assert.Equal(t, 1, h.metrics.deferred)
	assert.Equal(t, []string{"realtime/ok", "standard/ok"}, h.metrics.transitions)
}

func TestLastToggleWins(t *testing.T) {
	t.Parallel()

	R, S := ModeRealtime, ModeStandard
	sequences := map[string][]Mode{
		"single":        {R},
		"back and forth": {R, S},
		"triple":        {R, S, R},
		"repeats":       {R, R, S, S},
		"long":          {S, R, S, R, R, S, R},
	}

	for name, seq := range sequences {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, testConfig())
			h.ready()
			for i, m := range seq {
				require.NoError(t, h.ctrl.RequestMode(m))
				if i%2 == 1 {
					h.settle()
				}
			}
			h.settleAll()

			last := seq[len(seq)-1]
			st := h.ctrl.Snapshot()
			assert.Equal(t, last.String(), st.Mode)
			assert.False(t, st.Transitioning)
			assert.LessOrEqual(t, h.dev.PeakActiveStreams(), 1, "never two streams")
			if last == ModeRealtime {
				assert.Equal(t, 1, h.dev.ActiveStreams())
				assert.True(t, h.primary().Snapshot().Source.IsCamera())
			} else {
				assert.Zero(t, h.dev.ActiveStreams(), "no stream leaked after leaving realtime")
				assert.False(t, h.primary().Snapshot().Source.IsCamera())
			}
		})
	}
}

func TestRealtimeRoundTripRestoresPositions(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	h.generate()
	require.False(t, h.primary().Snapshot().Paused)

	h.primary().Advance(12)
	h.secondary().Advance(12.5)

	h.enterRealtime()
	st := h.ctrl.Snapshot()
	assert.Equal(t, "Current Location Image", st.Titles.Primary)
	assert.True(t, st.CameraOpen)
	assert.True(t, h.primary().Snapshot().Source.IsCamera())
	assert.True(t, h.primary().Muted())
	assert.False(t, h.primary().Controls())
	assert.True(t, h.secondary().Snapshot().Source.Equal(realtimeSecondaryClip))
	assert.True(t, h.secondary().Controls())
	assert.False(t, h.secondary().Snapshot().Paused, "companion plays along with the live camera")
	assert.InDelta(t, 0.0, h.secondary().Snapshot().CurrentTime, 1e-9)

	require.NoError(t, h.ctrl.RequestMode(ModeStandard))
	h.settleAll()

	prim, sec := h.primary().Snapshot(), h.secondary().Snapshot()
	assert.True(t, prim.Source.Equal(standardPrimaryClip))
	assert.True(t, sec.Source.Equal(standardSecondaryClip))
	assert.InDelta(t, 12.0, prim.CurrentTime, 0.2)
	assert.InDelta(t, 12.5, sec.CurrentTime, 0.2)
	assert.False(t, prim.Paused, "players that were playing resume")
	assert.False(t, sec.Paused)
	assert.False(t, h.primary().Muted())
	assert.True(t, h.primary().Controls())
	assert.Zero(t, h.dev.ActiveStreams())
	assert.Equal(t, "Visual Navigation Preview", h.ctrl.Snapshot().Titles.Primary)
}

func TestPausedPlayersStayPausedAfterRoundTrip(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	h.generate()
	h.primary().Advance(5)
	h.primary().UserPause()
	h.settle()
	require.True(t, h.secondary().Snapshot().Paused, "pause mirrored")

	h.enterRealtime()
	require.NoError(t, h.ctrl.RequestMode(ModeStandard))
	h.settleAll()

	assert.True(t, h.primary().Snapshot().Paused)
	assert.True(t, h.secondary().Snapshot().Paused)
	assert.InDelta(t, 5.0, h.primary().Snapshot().CurrentTime, 0.2)
}

func TestSynchronizedPlayNeedsReadyFlags(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	h.selectPhotos()
	require.NoError(t, h.ctrl.Generate())
	h.primary().CanPlayThrough()
	h.secondary().Fail(errors.NewStd("MEDIA_ERR_DECODE"))
	h.settle()

	st := h.ctrl.Snapshot()
	assert.False(t, st.Transitioning)
	assert.Empty(t, st.LockOwner)
	assert.True(t, h.primary().Snapshot().Paused, "no playback while the sibling is not ready")
	assert.True(t, h.secondary().Snapshot().Paused)
	assert.Equal(t, []string{"standard/error"}, h.metrics.transitions)
	assert.Equal(t, 1, h.metrics.loadFailures[SecondaryName])

	sec := h.playerState(SecondaryName)
	assert.False(t, sec.IsReady)
	assert.Zero(t, sec.BufferedFraction)
	assert.False(t, sec.Loading.Active)
	assert.True(t, h.playerState(PrimaryName).IsReady, "sibling load is not aborted")
}

func TestSettleTimeoutReleasesLock(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	h.selectPhotos()
	require.NoError(t, h.ctrl.Generate())
	h.primary().CanPlayThrough()
	h.settle()
	require.True(t, h.ctrl.Snapshot().Transitioning)

	h.sched.Advance(30 * time.Second)
	h.settle()

	st := h.ctrl.Snapshot()
	assert.False(t, st.Transitioning)
	assert.Empty(t, st.LockOwner)
	assert.Equal(t, []string{"standard/error"}, h.metrics.transitions)
	assert.Equal(t, 1, h.metrics.loadFailures[SecondaryName])
	assert.Len(t, h.log.scrolls(), 1)
}

type errorRecorder struct {
	mu   sync.Mutex
	errs []*errors.EnhancedError
}

func (r *errorRecorder) TryPublishError(ee *errors.EnhancedError) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, ee)
	return true
}

func (r *errorRecorder) category(c errors.ErrorCategory) []*errors.EnhancedError {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*errors.EnhancedError
	for _, ee := range r.errs {
		if ee.Category == c {
			out = append(out, ee)
		}
	}
	return out
}

// Installs a process-wide publisher, so not parallel.
func TestSettleTimeoutErrorRecordsWait(t *testing.T) {
	rec := &errorRecorder{}
	errors.SetEventPublisher(rec)
	t.Cleanup(func() { errors.SetEventPublisher(nil) })

	h := newHarness(t, testConfig())
	h.selectPhotos()
	require.NoError(t, h.ctrl.Generate())
	h.primary().CanPlayThrough()
	h.settle()

	h.sched.Advance(30 * time.Second)
	h.settle()

	loads := rec.category(errors.CategorySourceLoad)
	require.Len(t, loads, 1)
	require.ErrorIs(t, loads[0], ErrSettleTimeout)
	ctx := loads[0].GetContext()
	assert.Equal(t, "settle", ctx["operation"])
	assert.Equal(t, int64(30000), ctx["duration_ms"])
	assert.Equal(t, SecondaryName, ctx["player"])
}

func TestMissingClipIsUnexpectedState(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Clips.StandardSecondary = media.Source{}
	h := newHarness(t, cfg)
	h.selectPhotos()
	require.NoError(t, h.ctrl.Generate())
	h.settleAll()

	st := h.ctrl.Snapshot()
	assert.False(t, st.Transitioning)
	assert.Empty(t, st.LockOwner)
	assert.Equal(t, []string{"standard/error"}, h.metrics.transitions)
	assert.True(t, h.primary().Snapshot().Paused)
}

func TestMirroringThroughCoordinator(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	h.generate()

	h.primary().UserPause()
	h.settle()
	assert.True(t, h.secondary().Snapshot().Paused)

	h.secondary().UserSeek(20)
	h.settle()
	assert.InDelta(t, 20.0, h.primary().Snapshot().CurrentTime, 1e-9)

	h.secondary().UserPlay()
	h.settle()
	assert.False(t, h.primary().Snapshot().Paused)
	assert.Equal(t, 1, h.metrics.mirrors["pause/applied"])
	assert.Equal(t, 1, h.metrics.mirrors["seek/applied"])
	assert.Equal(t, 1, h.metrics.mirrors["play/applied"])
}

func TestCameraSuppressesMirroring(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	h.generate()
	h.enterRealtime()

	h.secondary().UserPause()
	h.secondary().UserSeek(7)
	h.settle()

	prim := h.primary().Snapshot()
	assert.False(t, prim.Paused, "live feed keeps running")
	assert.Zero(t, prim.CurrentTime)
	assert.Equal(t, 1, h.metrics.mirrors["pause/suppressed"])
	assert.Equal(t, 1, h.metrics.mirrors["seek/suppressed"])
}

func TestModeRequestDuringMirrorIsDeferred(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	h.generate()

	h.primary().UserPause()
	h.sched.Flush()
	require.Equal(t, "mirror", h.ctrl.Snapshot().LockOwner)

	require.NoError(t, h.ctrl.RequestMode(ModeRealtime))
	assert.Equal(t, "standard", h.ctrl.Snapshot().Mode)
	assert.Equal(t, 1, h.metrics.deferred)

	h.settleAll()
	assert.Equal(t, "realtime", h.ctrl.Snapshot().Mode)
}

func TestGenerateInRealtimeReattachesCamera(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	h.selectPhotos()
	h.enterRealtime()
	require.Equal(t, 1, h.dev.Opens())

	require.NoError(t, h.ctrl.Generate())
	h.settleAll()

	st := h.ctrl.Snapshot()
	assert.Equal(t, "realtime", st.Mode)
	assert.True(t, st.CameraOpen)
	assert.Equal(t, 1, h.dev.Opens(), "existing stream reused")
	assert.Equal(t, 1, h.dev.ActiveStreams())
	assert.True(t, h.primary().Snapshot().Source.IsCamera())
	assert.Len(t, h.log.scrolls(), 1)
}

func TestCameraPlaybackFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	h.ready()
	h.primary().SetAutoplayBlocked(true)
	h.enterRealtime()

	st := h.ctrl.Snapshot()
	assert.True(t, st.CameraFailed)
	assert.False(t, st.CameraOpen)
	assert.Equal(t, "Camera Feed (Error)", st.Titles.Primary)
	assert.Zero(t, h.dev.ActiveStreams())
	assert.True(t, h.primary().Controls())
}

func TestLoadingViewFollowsBuffering(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	h.primary().Buffer(30)
	h.settle()

	view := h.playerState(PrimaryName).Loading
	assert.True(t, view.Active)
	assert.InDelta(t, 50.0, view.Progress, 1e-9)
	assert.InDelta(t, 50.0, h.playerState(PrimaryName).BufferedFraction, 1e-9)

	h.primary().Stall()
	h.settle()
	assert.InDelta(t, 50.0, h.playerState(PrimaryName).Loading.Progress, 1e-9, "stall keeps progress")

	h.primary().CanPlayThrough()
	h.settle()
	assert.Equal(t, progress.PhaseTakeoff, h.playerState(PrimaryName).Loading.Phase)

	h.sched.Advance(1400 * time.Millisecond)
	view = h.playerState(PrimaryName).Loading
	assert.False(t, view.Active)
	assert.Equal(t, progress.PhaseIdle, view.Phase)
}

func TestCameraReadySkipsTakeoff(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	h.ready()
	h.enterRealtime()

	view := h.playerState(PrimaryName).Loading
	assert.False(t, view.Active)
	assert.Equal(t, progress.VariantCamera, view.Variant)

	for _, e := range h.log.loading(PrimaryName) {
		if e.Variant == string(progress.VariantCamera) {
			assert.NotEqual(t, string(progress.PhaseTakeoff), e.Phase)
		}
	}
}

func TestStaleEventsAreIgnored(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	old := media.MustFile("videos/old.mp4")
	h.ctrl.sink(playerEvent(PrimaryName, old))
	h.settle()

	assert.False(t, h.playerState(PrimaryName).IsReady)
}

func TestWaitSettled(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	require.NoError(t, h.ctrl.WaitSettled(t.Context()))

	h.selectPhotos()
	require.NoError(t, h.ctrl.Generate())

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	err := h.ctrl.WaitSettled(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryTimeout))

	h.settleAll()
	require.NoError(t, h.ctrl.WaitSettled(t.Context()))
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	m, err := ParseMode(" Realtime ")
	require.NoError(t, err)
	assert.Equal(t, ModeRealtime, m)
	_, err = ParseMode("hybrid")
	require.Error(t, err)
	require.Error(t, newHarness(t, testConfig()).ctrl.RequestMode(Mode(7)))
}

func TestStopAbandonsPendingCameraOpen(t *testing.T) {
	t.Parallel()

	dev := capture.NewFakeDevice("fake")
	gate := dev.Hold()
	defer close(gate)
	cam := capture.NewManager(dev, capture.WithTimeout(20*time.Second))

	loop := runloop.NewLoop(time.Millisecond)
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	factory := func(name string, sink player.Sink) player.Player { return sim.New(name, sink) }
	cfg := testConfig()
	cfg.TakeoffDuration = time.Millisecond
	ctrl := New(cfg, loop, cam, factory)
	ctrl.Start()
	require.NoError(t, ctrl.RequestMode(ModeRealtime))

	cancel()
	ctrl.Stop()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("run loop still waiting for the camera")
	}
	assert.Zero(t, dev.ActiveStreams())
	assert.Zero(t, cam.OpenStreams())
}
