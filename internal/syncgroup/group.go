// Package syncgroup mirrors user play, pause and seek actions between two
// paired players. Mirrored commands are issued with the programmatic origin
// so they never mirror back.
package syncgroup

import (
	"math"

	"github.com/tphakala/navpreview/internal/logger"
	"github.com/tphakala/navpreview/internal/player"
)

// DefaultSeekDeadband is the largest position difference treated as in sync.
const DefaultSeekDeadband = 0.2

// MirrorOwner is the lock owner used while a mirrored action is in flight.
const MirrorOwner = "mirror"

// Mirrored actions.
const (
	ActionPlay  = "play"
	ActionPause = "pause"
	ActionSeek  = "seek"
)

// Result of handling one event.
type Result string

const (
	// ResultApplied means the peer was changed
	ResultApplied Result = "applied"
	// ResultNoop means the peer was already in the requested state
	ResultNoop Result = "noop"
	// ResultSuppressed means a camera source is involved
	ResultSuppressed Result = "suppressed"
	// ResultDropped means play/pause arrived while the lock was held
	ResultDropped Result = "dropped"
	// ResultIgnored means the event is not a user action to mirror
	ResultIgnored Result = "ignored"
)

// Recorder receives mirror metrics.
type Recorder interface {
	RecordMirror(action, result string)
}

// Deferrer runs work at the next tick boundary.
type Deferrer interface {
	PostNextTick(fn func())
}

// Group is a symmetric pair of players.
type Group struct {
	players  map[string]player.Player
	peers    map[string]string
	lock     *Lock
	next     Deferrer
	deadband float64
	metrics  Recorder
	log      logger.Logger
}

// Option configures a Group.
type Option func(*Group)

// WithDeadband overrides the seek deadband in seconds.
func WithDeadband(seconds float64) Option {
	return func(g *Group) {
		if seconds > 0 {
			g.deadband = seconds
		}
	}
}

// WithRecorder installs a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(g *Group) { g.metrics = r }
}

// New pairs a and b. The lock is released on the tick after a mirrored
// action through d.
func New(a, b player.Player, lock *Lock, d Deferrer, opts ...Option) *Group {
	g := &Group{
		players:  map[string]player.Player{a.Name(): a, b.Name(): b},
		peers:    map[string]string{a.Name(): b.Name(), b.Name(): a.Name()},
		lock:     lock,
		next:     d,
		deadband: DefaultSeekDeadband,
		log:      logger.Global().Module("syncgroup"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Deadband returns the seek deadband in seconds.
func (g *Group) Deadband() float64 { return g.deadband }

// Peer returns the player paired with name.
func (g *Group) Peer(name string) (player.Player, bool) {
	peer, ok := g.players[g.peers[name]]
	return peer, ok
}

func actionFor(t player.EventType) string {
	switch t {
	case player.EventPlay:
		return ActionPlay
	case player.EventPause:
		return ActionPause
	case player.EventSeeked:
		return ActionSeek
	default:
		return ""
	}
}

// Handle mirrors ev to the peer of the player that raised it.
func (g *Group) Handle(ev player.Event) Result {
	action := actionFor(ev.Type)
	if action == "" || ev.Origin != player.OriginUser {
		return ResultIgnored
	}
	src, ok := g.players[ev.Player]
	if !ok {
		return ResultIgnored
	}
	peer, _ := g.Peer(ev.Player)

	result := g.mirror(action, ev, src, peer)
	if g.metrics != nil {
		g.metrics.RecordMirror(action, string(result))
	}
	if result == ResultApplied || result == ResultDropped {
		g.log.Debug("mirror",
			logger.String("action", action),
			logger.String("from", ev.Player),
			logger.String("to", peer.Name()),
			logger.String("result", string(result)),
			logger.Float64("position", ev.Time))
	}
	return result
}

func (g *Group) mirror(action string, ev player.Event, src, peer player.Player) Result {
	target := peer.Snapshot()
	if src.Snapshot().Source.IsCamera() || target.Source.IsCamera() {
		return ResultSuppressed
	}

	// Seeks stay responsive while a transition holds the lock
	if action != ActionSeek {
		if !g.lock.TryAcquire(MirrorOwner) {
			return ResultDropped
		}
		g.next.PostNextTick(func() { g.lock.Release(MirrorOwner) })
	}

	switch action {
	case ActionPlay:
		if !target.Paused {
			return ResultNoop
		}
		peer.Play(player.OriginProgrammatic)
	case ActionPause:
		if target.Paused {
			return ResultNoop
		}
		peer.Pause(player.OriginProgrammatic)
	case ActionSeek:
		if math.Abs(target.CurrentTime-ev.Time) <= g.deadband {
			return ResultNoop
		}
		peer.Seek(ev.Time, player.OriginProgrammatic)
	}
	return ResultApplied
}
