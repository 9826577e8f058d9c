package syncgroup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/navpreview/internal/media"
	"github.com/tphakala/navpreview/internal/player"
	"github.com/tphakala/navpreview/internal/player/sim"
	"github.com/tphakala/navpreview/internal/runloop"
)

type mirrorCounts map[string]int

func (m mirrorCounts) RecordMirror(action, result string) { m[action+"/"+result]++ }

type fixture struct {
	a, b    *sim.Player
	group   *Group
	lock    *Lock
	sched   *runloop.Manual
	results []Result
	metrics mirrorCounts
}

// newFixture wires both sinks straight into the group so programmatic
// echoes flow back through Handle.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{sched: runloop.NewManual(), lock: NewLock(), metrics: mirrorCounts{}}
	sink := func(ev player.Event) {
		if f.group != nil {
			f.results = append(f.results, f.group.Handle(ev))
		}
	}
	f.a = sim.New("visual-nav", sink)
	f.b = sim.New("indoor-map", sink)
	f.group = New(f.a, f.b, f.lock, f.sched, WithRecorder(f.metrics))

	f.a.SetSource(media.MustFile("videos/visual_navigation_demo.mp4"), nil)
	f.b.SetSource(media.MustFile("videos/indoor_map_demo.mp4"), nil)
	f.a.CanPlayThrough()
	f.b.CanPlayThrough()
	f.results = nil
	return f
}

func TestUserPlayIsMirroredOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.a.UserPlay()

	assert.False(t, f.b.Snapshot().Paused)
	assert.Contains(t, f.results, ResultApplied)
	assert.Equal(t, 1, f.metrics["play/applied"])
	assert.True(t, f.lock.Held(), "mirror holds the lock until the next tick")

	f.sched.Tick()
	assert.False(t, f.lock.Held())
}

func TestPlayOnPlayingPeerIsNoop(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.b.Play(player.OriginProgrammatic)
	f.a.UserPlay()

	assert.Equal(t, 1, f.metrics["play/noop"])
	assert.Zero(t, f.metrics["play/applied"])
}

func TestPauseMirrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.a.UserPlay()
	f.sched.Tick()
	f.b.UserPause()

	assert.True(t, f.a.Snapshot().Paused)
	assert.Equal(t, 1, f.metrics["pause/applied"])
}

func TestSeekDeadband(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		peerAt  float64
		seekTo  float64
		applied bool
	}{
		{"far apart", 0, 12, true},
		{"inside deadband", 12.1, 12, false},
		{"exactly at deadband", 12.2, 12, false},
		{"just outside", 12.25, 12, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.b.Seek(tt.peerAt, player.OriginProgrammatic)
			f.a.UserSeek(tt.seekTo)

			if tt.applied {
				assert.InDelta(t, tt.seekTo, f.b.Snapshot().CurrentTime, 1e-9)
				assert.Equal(t, 1, f.metrics["seek/applied"])
			} else {
				assert.InDelta(t, tt.peerAt, f.b.Snapshot().CurrentTime, 1e-9, "no visible jump")
				assert.Equal(t, 1, f.metrics["seek/noop"])
			}
			assert.False(t, f.lock.Held(), "seeks never take the lock")
		})
	}
}

func TestLockDropsPlayPauseButHonorsSeek(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.True(t, f.lock.TryAcquire("transition"))

	f.a.UserPlay()
	assert.True(t, f.b.Snapshot().Paused, "play dropped while a transition runs")
	assert.Equal(t, 1, f.metrics["play/dropped"])

	f.a.UserSeek(30)
	assert.InDelta(t, 30.0, f.b.Snapshot().CurrentTime, 1e-9)
	assert.Equal(t, "transition", f.lock.Owner())
}

func TestCameraSuppressesMirroring(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.a.SetSource(media.Camera(), nil)
	f.results = nil

	f.b.UserPlay()
	f.b.UserSeek(20)
	f.b.UserPause()

	assert.Equal(t, []Result{ResultSuppressed, ResultIgnored, ResultSuppressed, ResultSuppressed}, f.results)
	assert.True(t, f.a.Snapshot().Paused)
	assert.False(t, f.lock.Held())
}

func TestProgrammaticEventsAreIgnored(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.a.Play(player.OriginProgrammatic)
	f.a.Seek(5, player.OriginProgrammatic)

	for _, r := range f.results {
		assert.Equal(t, ResultIgnored, r)
	}
	assert.True(t, f.b.Snapshot().Paused)
}

func TestUnknownPlayerIgnored(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	got := f.group.Handle(player.Event{Player: "other", Type: player.EventPlay, Origin: player.OriginUser})
	assert.Equal(t, ResultIgnored, got)
}

func TestLockWhenFree(t *testing.T) {
	t.Parallel()

	l := NewLock()
	ran := 0
	l.WhenFree(func() { ran++ })
	assert.Equal(t, 1, ran, "free lock runs immediately")

	require.True(t, l.TryAcquire("transition"))
	assert.False(t, l.TryAcquire("mirror"))
	l.WhenFree(func() { ran++ })
	assert.Equal(t, 1, ran)

	assert.False(t, l.Release("mirror"), "only the owner releases")
	assert.True(t, l.Held())
	assert.True(t, l.Release("transition"))
	assert.Equal(t, 2, ran)
	assert.False(t, l.Release("transition"))
	assert.Equal(t, 2, ran, "waiters run once")
}
