package controller

import (
	"github.com/tphakala/navpreview/internal/media"
	"github.com/tphakala/navpreview/internal/progress"
	"github.com/tphakala/navpreview/internal/titles"
)

// PlayerState is the coordinator's view of one player.
type PlayerState struct {
	Name             string             `json:"name"`
	Role             Role               `json:"role"`
	ActiveSource     media.Source       `json:"activeSource"`
	IsReady          bool               `json:"isReady"`
	BufferedFraction float64            `json:"bufferedFraction"`
	WantsAutoplay    bool               `json:"wantsAutoplay"`
	LastKnownTime    float64            `json:"lastKnownTime"`
	Paused           bool               `json:"paused"`
	Loading          progress.ViewState `json:"loading"`
}

// PhotoState is the state of the photo slots and the generate trigger.
type PhotoState struct {
	CurrentLabel        string `json:"currentLabel"`
	CurrentSelected     bool   `json:"currentSelected"`
	DestinationLabel    string `json:"destinationLabel"`
	DestinationSelected bool   `json:"destinationSelected"`
	CanGenerate         bool   `json:"canGenerate"`
	GenerateVisible     bool   `json:"generateVisible"`
	OutputVisible       bool   `json:"outputVisible"`
}

// State is a snapshot of the whole coordinator.
type State struct {
	Mode          string        `json:"mode"`
	Desired       string        `json:"desired"`
	Transitioning bool          `json:"transitioning"`
	Generation    uint64        `json:"generation"`
	LockOwner     string        `json:"lockOwner,omitempty"`
	CameraOpen    bool          `json:"cameraOpen"`
	CameraFailed  bool          `json:"cameraFailed"`
	Titles        titles.Set    `json:"titles"`
	Photos        PhotoState    `json:"photos"`
	Players       []PlayerState `json:"players"`
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := State{
		Mode:          c.mode.String(),
		Desired:       c.desired.String(),
		Transitioning: c.current != nil,
		Generation:    c.generation,
		LockOwner:     c.lock.Owner(),
		CameraOpen:    c.stream != nil && c.stream.Active(),
		CameraFailed:  c.cameraFailed,
		Titles:        c.titles,
		Photos: PhotoState{
			CurrentLabel:        c.photos[0].label(),
			CurrentSelected:     c.photos[0].selected,
			DestinationLabel:    c.photos[1].label(),
			DestinationSelected: c.photos[1].selected,
			CanGenerate:         c.canGenerate(),
			GenerateVisible:     c.generateVisible,
			OutputVisible:       c.outputVisible,
		},
		Players: make([]PlayerState, 0, len(c.slots)),
	}
	for _, s := range c.slots {
		snap := s.p.Snapshot()
		st.Players = append(st.Players, PlayerState{
			Name:             s.name,
			Role:             s.role,
			ActiveSource:     snap.Source,
			IsReady:          s.tracker.Ready(),
			BufferedFraction: s.tracker.Fraction(),
			WantsAutoplay:    s.wantsAutoplay,
			LastKnownTime:    s.lastKnownTime,
			Paused:           snap.Paused,
			Loading:          s.view.State(),
		})
	}
	return st
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}
