// Package remote drives a media element hosted in a browser. Commands go out
// as PlayerCommand events on the bus; the page posts media events back, and
// events caused by a command echo its token so they are tagged programmatic.
package remote

import (
	"sync"
	"time"

	"github.com/tphakala/navpreview/internal/capture"
	"github.com/tphakala/navpreview/internal/errors"
	"github.com/tphakala/navpreview/internal/events"
	"github.com/tphakala/navpreview/internal/logger"
	"github.com/tphakala/navpreview/internal/media"
	"github.com/tphakala/navpreview/internal/player"
)

// Commands understood by the page.
const (
	CommandLoad         = "load"
	CommandAttachCamera = "attach-camera"
	CommandDetach       = "detach"
	CommandPlay         = "play"
	CommandPause        = "pause"
	CommandSeek         = "seek"
	CommandControls     = "controls"
	CommandMuted        = "muted"
)

// maxOutstanding bounds the tokens remembered for commands the page never
// answered, such as play on an element that was already playing.
const maxOutstanding = 256

// Report is a media event as posted by the page.
type Report struct {
	Type     string        `json:"type"`
	Token    uint64        `json:"token,omitempty"`
	Source   *media.Source `json:"source,omitempty"`
	Time     float64       `json:"time"`
	Buffered float64       `json:"buffered"`
	Duration float64       `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// ErrUnknownEvent is returned by Deliver for an unrecognized event type.
var ErrUnknownEvent = errors.NewStd("unknown media event")

// Player is a browser-hosted media element.
type Player struct {
	name string
	pub  events.Publisher
	sink player.Sink
	log  logger.Logger

	mu          sync.Mutex
	nextToken   uint64
	outstanding map[uint64]string
	order       []uint64
	snap        player.Snapshot
}

// New returns a remote player publishing commands on pub.
func New(name string, pub events.Publisher, sink player.Sink) *Player {
	return &Player{
		name:        name,
		pub:         pub,
		sink:        sink,
		log:         logger.Global().Module("player.remote").With(logger.String("player", name)),
		outstanding: make(map[uint64]string),
		snap:        player.Snapshot{Paused: true},
	}
}

// Name implements player.Player.
func (p *Player) Name() string { return p.name }

// send publishes a command and remembers its token. Must be called with mu held.
func (p *Player) send(command string, args map[string]any) {
	p.nextToken++
	token := p.nextToken
	p.outstanding[token] = command
	p.order = append(p.order, token)
	if len(p.order) > maxOutstanding {
		delete(p.outstanding, p.order[0])
		p.order = p.order[1:]
	}

	if !p.pub.TryPublish(events.PlayerCommand{
		Player:  p.name,
		Command: command,
		Token:   token,
		Args:    args,
		At:      time.Now(),
	}) {
		p.log.Debug("player command dropped", logger.String("command", command))
	}
}

// SetSource implements player.Player.
func (p *Player) SetSource(src media.Source, stream capture.Stream) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.snap = player.Snapshot{Paused: true, Source: src}
	switch {
	case src.IsZero():
		p.send(CommandDetach, nil)
	case src.IsCamera():
		args := map[string]any{}
		if stream != nil {
			args["stream"] = stream.ID()
		}
		p.send(CommandAttachCamera, args)
	default:
		p.send(CommandLoad, map[string]any{"src": src.URL()})
	}
}

// Play implements player.Player.
func (p *Player) Play(origin player.Origin) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.send(CommandPlay, map[string]any{"origin": origin.String()})
}

// Pause implements player.Player.
func (p *Player) Pause(origin player.Origin) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.send(CommandPause, map[string]any{"origin": origin.String()})
}

// Seek implements player.Player. The local position moves immediately so
// deadband checks see the requested time.
func (p *Player) Seek(t float64, origin player.Origin) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.CurrentTime = t
	p.send(CommandSeek, map[string]any{"time": t, "origin": origin.String()})
}

// SetControls implements player.Player.
func (p *Player) SetControls(visible bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.send(CommandControls, map[string]any{"visible": visible})
}

// SetMuted implements player.Player.
func (p *Player) SetMuted(muted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.send(CommandMuted, map[string]any{"muted": muted})
}

// Snapshot implements player.Player.
func (p *Player) Snapshot() player.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

// Deliver applies a report from the page and forwards it to the sink.
func (p *Player) Deliver(r Report) error {
	typ, ok := player.ParseEventType(r.Type)
	if !ok {
		return errors.New(ErrUnknownEvent).
			Component("player").
			Category(errors.CategoryValidation).
			Context("type", r.Type).
			Build()
	}

	p.mu.Lock()
	origin := p.originLocked(typ, r.Token)
	ev := player.Event{
		Player:   p.name,
		Type:     typ,
		Origin:   origin,
		Source:   p.snap.Source,
		Time:     r.Time,
		Buffered: r.Buffered,
		Duration: r.Duration,
	}
	if r.Source != nil {
		ev.Source = *r.Source
	}
	if r.Error != "" {
		ev.Err = errors.NewStd(r.Error)
	}
	// Reports for a source that was already replaced only go to the sink
	if ev.Source.Equal(p.snap.Source) {
		p.applyLocked(ev)
	}
	p.mu.Unlock()

	if p.sink != nil {
		p.sink(ev)
	}
	return nil
}

func (p *Player) originLocked(typ player.EventType, token uint64) player.Origin {
	if token != 0 {
		if _, ok := p.outstanding[token]; ok {
			switch typ {
			case player.EventPlay, player.EventPause, player.EventSeeked, player.EventPlayFailed:
				delete(p.outstanding, token)
			}
			return player.OriginProgrammatic
		}
	}
	switch typ {
	case player.EventPlay, player.EventPause, player.EventSeeked:
		return player.OriginUser
	default:
		return player.OriginMedia
	}
}

func (p *Player) applyLocked(ev player.Event) {
	switch ev.Type {
	case player.EventLoadStart:
		p.snap.ReadyState = player.HaveNothing
	case player.EventProgress:
		if p.snap.ReadyState < player.HaveMetadata {
			p.snap.ReadyState = player.HaveMetadata
		}
	case player.EventWaiting:
		p.snap.ReadyState = min(p.snap.ReadyState, player.HaveCurrentData)
	case player.EventCanPlayThrough:
		p.snap.ReadyState = player.HaveEnoughData
	case player.EventPlaying:
		p.snap.ReadyState = max(p.snap.ReadyState, player.HaveFutureData)
	case player.EventPlay:
		p.snap.Paused = false
		p.snap.Played = true
	case player.EventPause, player.EventPlayFailed:
		p.snap.Paused = true
	case player.EventError:
		p.snap.ReadyState = player.HaveNothing
	case player.EventEmptied:
		p.snap = player.Snapshot{Paused: true, Source: p.snap.Source}
		return
	}
	p.snap.CurrentTime = ev.Time
}

var _ player.Player = (*Player)(nil)
