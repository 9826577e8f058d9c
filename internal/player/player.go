// Package player defines the media element abstraction the coordinator
// drives: a source binding, playback commands tagged with their origin, and
// the media events the element reports back.
package player

import (
	"github.com/tphakala/navpreview/internal/capture"
	"github.com/tphakala/navpreview/internal/media"
)

// Origin tells who caused an action. Mirroring only propagates user actions.
type Origin int

const (
	// OriginMedia marks events the element raises on its own (buffering, errors)
	OriginMedia Origin = iota
	// OriginUser marks actions taken through the element's native controls
	OriginUser
	// OriginProgrammatic marks actions issued by the coordinator itself
	OriginProgrammatic
)

func (o Origin) String() string {
	switch o {
	case OriginUser:
		return "user"
	case OriginProgrammatic:
		return "programmatic"
	default:
		return "media"
	}
}

// EventType names a media event.
type EventType string

const (
	EventLoadStart      EventType = "loadstart"
	EventProgress       EventType = "progress"
	EventWaiting        EventType = "waiting"
	EventCanPlayThrough EventType = "canplaythrough"
	EventPlaying        EventType = "playing"
	EventPlay           EventType = "play"
	EventPause          EventType = "pause"
	EventSeeked         EventType = "seeked"
	EventError          EventType = "error"
	EventEmptied        EventType = "emptied"
	// EventPlayFailed reports a rejected play request, e.g. blocked autoplay
	EventPlayFailed EventType = "play-failed"
)

// ParseEventType validates a media event name.
func ParseEventType(s string) (EventType, bool) {
	switch t := EventType(s); t {
	case EventLoadStart, EventProgress, EventWaiting, EventCanPlayThrough, EventPlaying,
		EventPlay, EventPause, EventSeeked, EventError, EventEmptied, EventPlayFailed:
		return t, true
	}
	return "", false
}

// Event is a media event reported by a player. Source is the source the
// player was bound to when the event fired, so late events for a replaced
// source can be told apart.
type Event struct {
	Player   string
	Type     EventType
	Origin   Origin
	Source   media.Source
	Time     float64 // current time, seconds
	Buffered float64 // seconds buffered, for progress
	Duration float64 // total seconds; 0 when unknown (live)
	Err      error
}

// ReadyState mirrors HTMLMediaElement.readyState.
type ReadyState int

const (
	HaveNothing ReadyState = iota
	HaveMetadata
	HaveCurrentData
	HaveFutureData
	HaveEnoughData
)

// Snapshot is a point-in-time view of a player.
type Snapshot struct {
	Paused      bool
	CurrentTime float64
	ReadyState  ReadyState
	// Played reports whether playback has ever started on the current element
	Played bool
	Source media.Source
}

// Player is a single media element. Implementations report media events
// through the Sink they were created with and must not call it while holding
// their own locks.
type Player interface {
	Name() string
	// SetSource binds src. stream is the capture stream for a camera source
	// and nil otherwise. Binding the zero source empties the element.
	SetSource(src media.Source, stream capture.Stream)
	Play(origin Origin)
	Pause(origin Origin)
	Seek(t float64, origin Origin)
	SetControls(visible bool)
	SetMuted(muted bool)
	Snapshot() Snapshot
}

// Sink receives player events.
type Sink func(Event)
