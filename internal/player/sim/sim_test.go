package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/navpreview/internal/errors"
	"github.com/tphakala/navpreview/internal/media"
	"github.com/tphakala/navpreview/internal/player"
)

type recorder struct {
	events []player.Event
}

func (r *recorder) sink(ev player.Event) { r.events = append(r.events, ev) }

func (r *recorder) types() []player.EventType {
	out := make([]player.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func (r *recorder) reset() { r.events = nil }

var clip = media.MustFile("videos/visual_navigation_demo.mp4")

func TestLoadAndPlay(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	p := New("visual-nav", rec.sink, WithDuration(30))

	p.SetSource(clip, nil)
	p.Buffer(12)
	p.CanPlayThrough()
	p.Play(player.OriginProgrammatic)

	assert.Equal(t, []player.EventType{
		player.EventLoadStart,
		player.EventProgress,
		player.EventCanPlayThrough,
		player.EventPlay,
		player.EventPlaying,
	}, rec.types())

	progress := rec.events[1]
	assert.InDelta(t, 12.0, progress.Buffered, 1e-9)
	assert.InDelta(t, 30.0, progress.Duration, 1e-9)
	assert.True(t, progress.Source.Equal(clip))
	assert.Equal(t, player.OriginProgrammatic, rec.events[3].Origin)

	snap := p.Snapshot()
	assert.False(t, snap.Paused)
	assert.True(t, snap.Played)
	assert.Equal(t, player.HaveEnoughData, snap.ReadyState)
}

func TestPlayBeforeReadyWaits(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	p := New("indoor-map", rec.sink)
	p.SetSource(clip, nil)
	rec.reset()

	p.UserPlay()
	assert.Equal(t, []player.EventType{player.EventPlay, player.EventWaiting}, rec.types())
	assert.Equal(t, player.OriginUser, rec.events[0].Origin)

	rec.reset()
	p.CanPlayThrough()
	assert.Equal(t, []player.EventType{player.EventCanPlayThrough, player.EventPlaying}, rec.types())
}

func TestPlayPauseAreIdempotent(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	p := New("p", rec.sink)
	p.SetSource(clip, nil)
	p.CanPlayThrough()
	rec.reset()

	p.Pause(player.OriginUser)
	assert.Empty(t, rec.events, "already paused")

	p.Play(player.OriginUser)
	p.Play(player.OriginUser)
	assert.Equal(t, []player.EventType{player.EventPlay, player.EventPlaying}, rec.types())
}

func TestCameraIsReadyImmediately(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	p := New("visual-nav", rec.sink)
	p.SetSource(media.Camera(), nil)

	assert.Equal(t, []player.EventType{player.EventLoadStart, player.EventCanPlayThrough}, rec.types())
	assert.Zero(t, rec.events[1].Duration)

	rec.reset()
	p.Seek(10, player.OriginUser)
	assert.Empty(t, rec.events, "live sources do not seek")
}

func TestSourceReplacementEmptiesFirst(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	p := New("p", rec.sink)
	p.SetSource(clip, nil)
	p.CanPlayThrough()
	p.Play(player.OriginUser)
	p.Advance(5)
	rec.reset()

	next := media.MustFile("videos/indoor_map_demo.mp4")
	p.SetSource(next, nil)

	require.Len(t, rec.events, 2)
	assert.Equal(t, player.EventEmptied, rec.events[0].Type)
	assert.True(t, rec.events[0].Source.Equal(clip), "emptied reports the outgoing source")
	assert.Equal(t, player.EventLoadStart, rec.events[1].Type)
	assert.True(t, rec.events[1].Source.Equal(next))

	snap := p.Snapshot()
	assert.True(t, snap.Paused)
	assert.False(t, snap.Played)
	assert.Zero(t, snap.CurrentTime)
}

func TestSeekClampsAndAdvance(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	p := New("p", rec.sink, WithDuration(20))
	p.SetSource(clip, nil)
	p.CanPlayThrough()

	p.Seek(25, player.OriginProgrammatic)
	assert.InDelta(t, 20.0, p.Snapshot().CurrentTime, 1e-9)
	p.UserSeek(-1)
	assert.InDelta(t, 0.0, p.Snapshot().CurrentTime, 1e-9)

	p.Advance(3)
	assert.InDelta(t, 0.0, p.Snapshot().CurrentTime, 1e-9, "paused players do not advance")
	p.UserPlay()
	p.Advance(3)
	assert.InDelta(t, 3.0, p.Snapshot().CurrentTime, 1e-9)
}

func TestPlayFailures(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	p := New("p", rec.sink)

	p.Play(player.OriginProgrammatic)
	require.Len(t, rec.events, 1)
	assert.Equal(t, player.EventPlayFailed, rec.events[0].Type)
	require.ErrorIs(t, rec.events[0].Err, ErrNoSource)

	p.SetSource(clip, nil)
	p.CanPlayThrough()
	p.SetAutoplayBlocked(true)
	rec.reset()

	p.Play(player.OriginProgrammatic)
	require.Len(t, rec.events, 1)
	require.ErrorIs(t, rec.events[0].Err, ErrAutoplayBlocked)

	rec.reset()
	p.UserPlay()
	assert.Equal(t, []player.EventType{player.EventPlay, player.EventPlaying}, rec.types())
}

func TestFailAndStall(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	p := New("p", rec.sink)
	p.SetSource(clip, nil)
	p.Buffer(10)
	rec.reset()

	p.Stall()
	boom := errors.NewStd("decode error")
	p.Fail(boom)

	require.Len(t, rec.events, 2)
	assert.Equal(t, player.EventWaiting, rec.events[0].Type)
	assert.Equal(t, player.EventError, rec.events[1].Type)
	require.ErrorIs(t, rec.events[1].Err, boom)
	assert.Equal(t, player.HaveNothing, p.Snapshot().ReadyState)
}

func TestPresentationFlags(t *testing.T) {
	t.Parallel()

	p := New("p", nil)
	assert.True(t, p.Controls())
	assert.False(t, p.Muted())
	p.SetControls(false)
	p.SetMuted(true)
	assert.False(t, p.Controls())
	assert.True(t, p.Muted())
}

func TestParseEventType(t *testing.T) {
	t.Parallel()

	got, ok := player.ParseEventType("canplaythrough")
	assert.True(t, ok)
	assert.Equal(t, player.EventCanPlayThrough, got)
	_, ok = player.ParseEventType("timeupdate")
	assert.False(t, ok)
}
