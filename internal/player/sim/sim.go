// Package sim provides an in-process media element with scripted buffering.
// It backs headless sessions and deterministic tests: nothing buffers until
// the driver says so, and every event is delivered synchronously to the sink.
package sim

import (
	"sync"

	"github.com/tphakala/navpreview/internal/capture"
	"github.com/tphakala/navpreview/internal/errors"
	"github.com/tphakala/navpreview/internal/media"
	"github.com/tphakala/navpreview/internal/player"
)

// ErrAutoplayBlocked is reported with play-failed when programmatic playback is refused.
var ErrAutoplayBlocked = errors.NewStd("play() rejected: autoplay blocked")

// ErrNoSource is reported with play-failed when there is nothing to play.
var ErrNoSource = errors.NewStd("play() rejected: no source")

// DefaultDuration is the length of every file clip unless overridden.
const DefaultDuration = 60.0

// Player is a simulated media element.
type Player struct {
	name     string
	sink     player.Sink
	duration float64

	mu              sync.Mutex
	src             media.Source
	stream          capture.Stream
	paused          bool
	time            float64
	buffered        float64
	ready           player.ReadyState
	played          bool
	controls        bool
	muted           bool
	autoplayBlocked bool
}

// Option configures a Player.
type Option func(*Player)

// WithDuration sets the clip length in seconds.
func WithDuration(seconds float64) Option {
	return func(p *Player) { p.duration = seconds }
}

// New returns a player that reports to sink.
func New(name string, sink player.Sink, opts ...Option) *Player {
	p := &Player{
		name:     name,
		sink:     sink,
		duration: DefaultDuration,
		paused:   true,
		controls: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements player.Player.
func (p *Player) Name() string { return p.name }

func (p *Player) event(t player.EventType, origin player.Origin) player.Event {
	ev := player.Event{
		Player: p.name,
		Type:   t,
		Origin: origin,
		Source: p.src,
		Time:   p.time,
	}
	if !p.src.IsCamera() {
		ev.Duration = p.duration
		ev.Buffered = p.buffered
	}
	return ev
}

func (p *Player) emit(evs ...player.Event) {
	if p.sink == nil {
		return
	}
	for _, ev := range evs {
		p.sink(ev)
	}
}

// SetSource implements player.Player. A camera source is ready as soon as it
// is attached.
func (p *Player) SetSource(src media.Source, stream capture.Stream) {
	p.mu.Lock()
	var out []player.Event
	if !p.src.IsZero() {
		out = append(out, p.event(player.EventEmptied, player.OriginMedia))
	}
	p.src = src
	p.stream = stream
	p.paused = true
	p.time = 0
	p.buffered = 0
	p.played = false
	p.ready = player.HaveNothing

	if !src.IsZero() {
		out = append(out, p.event(player.EventLoadStart, player.OriginMedia))
		if src.IsCamera() {
			p.ready = player.HaveEnoughData
			out = append(out, p.event(player.EventCanPlayThrough, player.OriginMedia))
		}
	}
	p.mu.Unlock()

	p.emit(out...)
}

// Play implements player.Player.
func (p *Player) Play(origin player.Origin) {
	p.mu.Lock()
	var out []player.Event
	switch {
	case p.src.IsZero():
		ev := p.event(player.EventPlayFailed, origin)
		ev.Err = ErrNoSource
		out = append(out, ev)
	case p.autoplayBlocked && origin == player.OriginProgrammatic:
		ev := p.event(player.EventPlayFailed, origin)
		ev.Err = ErrAutoplayBlocked
		out = append(out, ev)
	case !p.paused:
	default:
		p.paused = false
		p.played = true
		out = append(out, p.event(player.EventPlay, origin))
		if p.ready >= player.HaveFutureData {
			out = append(out, p.event(player.EventPlaying, player.OriginMedia))
		} else {
			out = append(out, p.event(player.EventWaiting, player.OriginMedia))
		}
	}
	p.mu.Unlock()

	p.emit(out...)
}

// Pause implements player.Player.
func (p *Player) Pause(origin player.Origin) {
	p.mu.Lock()
	if p.paused {
		p.mu.Unlock()
		return
	}
	p.paused = true
	ev := p.event(player.EventPause, origin)
	p.mu.Unlock()

	p.emit(ev)
}

// Seek implements player.Player. Live sources cannot seek.
func (p *Player) Seek(t float64, origin player.Origin) {
	p.mu.Lock()
	if p.src.IsZero() || p.src.IsCamera() {
		p.mu.Unlock()
		return
	}
	p.time = min(max(t, 0), p.duration)
	ev := p.event(player.EventSeeked, origin)
	p.mu.Unlock()

	p.emit(ev)
}

// SetControls implements player.Player.
func (p *Player) SetControls(visible bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.controls = visible
}

// SetMuted implements player.Player.
func (p *Player) SetMuted(muted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muted = muted
}

// Snapshot implements player.Player.
func (p *Player) Snapshot() player.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return player.Snapshot{
		Paused:      p.paused,
		CurrentTime: p.time,
		ReadyState:  p.ready,
		Played:      p.played,
		Source:      p.src,
	}
}

// Controls reports whether native controls are shown.
func (p *Player) Controls() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.controls
}

// Muted reports whether the element is muted.
func (p *Player) Muted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.muted
}

// Stream returns the attached capture stream, if any.
func (p *Player) Stream() capture.Stream {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stream
}

// Driver methods below script what a real element would do on its own.

// Buffer reports seconds buffered of the current clip.
func (p *Player) Buffer(seconds float64) {
	p.mu.Lock()
	if p.src.IsZero() || p.src.IsCamera() {
		p.mu.Unlock()
		return
	}
	p.buffered = min(seconds, p.duration)
	if p.ready < player.HaveMetadata {
		p.ready = player.HaveMetadata
	}
	ev := p.event(player.EventProgress, player.OriginMedia)
	p.mu.Unlock()

	p.emit(ev)
}

// CanPlayThrough finishes buffering the current clip.
func (p *Player) CanPlayThrough() {
	p.mu.Lock()
	if p.src.IsZero() {
		p.mu.Unlock()
		return
	}
	p.buffered = p.duration
	p.ready = player.HaveEnoughData
	out := []player.Event{p.event(player.EventCanPlayThrough, player.OriginMedia)}
	if !p.paused {
		out = append(out, p.event(player.EventPlaying, player.OriginMedia))
	}
	p.mu.Unlock()

	p.emit(out...)
}

// Stall simulates a rebuffer.
func (p *Player) Stall() {
	p.mu.Lock()
	if p.src.IsZero() {
		p.mu.Unlock()
		return
	}
	p.ready = player.HaveCurrentData
	ev := p.event(player.EventWaiting, player.OriginMedia)
	p.mu.Unlock()

	p.emit(ev)
}

// Resume ends a stall.
func (p *Player) Resume() {
	p.mu.Lock()
	if p.src.IsZero() {
		p.mu.Unlock()
		return
	}
	p.ready = player.HaveEnoughData
	var out []player.Event
	if !p.paused {
		out = append(out, p.event(player.EventPlaying, player.OriginMedia))
	}
	p.mu.Unlock()

	p.emit(out...)
}

// Fail simulates a decode or network error.
func (p *Player) Fail(err error) {
	p.mu.Lock()
	if p.src.IsZero() {
		p.mu.Unlock()
		return
	}
	p.ready = player.HaveNothing
	p.buffered = 0
	ev := p.event(player.EventError, player.OriginMedia)
	ev.Err = err
	p.mu.Unlock()

	p.emit(ev)
}

// UserPlay presses play on the native controls.
func (p *Player) UserPlay() { p.Play(player.OriginUser) }

// UserPause presses pause on the native controls.
func (p *Player) UserPause() { p.Pause(player.OriginUser) }

// UserSeek drags the native scrubber to t.
func (p *Player) UserSeek(t float64) { p.Seek(t, player.OriginUser) }

// Advance moves playback forward by seconds when playing.
func (p *Player) Advance(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused || p.ready < player.HaveFutureData || p.src.IsCamera() {
		return
	}
	p.time = min(p.time+seconds, p.duration)
}

// SetAutoplayBlocked makes programmatic Play fail with play-failed.
func (p *Player) SetAutoplayBlocked(blocked bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.autoplayBlocked = blocked
}

var _ player.Player = (*Player)(nil)
