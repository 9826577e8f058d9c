package progress

import (
	"time"

	"github.com/tphakala/navpreview/internal/events"
)

// Phase of the loading view.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseTakeoff Phase = "takeoff"
)

// Variant selects the loading artwork.
type Variant string

const (
	VariantFile   Variant = "file"
	VariantCamera Variant = "camera"
)

// ViewState is what the presentation layer renders for one player.
type ViewState struct {
	Active   bool    `json:"active"`
	Phase    Phase   `json:"phase"`
	Progress float64 `json:"progressPercent"`
	Variant  Variant `json:"variant"`
}

// Timer schedules the end of the takeoff animation.
type Timer interface {
	After(d time.Duration, fn func()) (cancel func())
}

// View is the loading overlay of one player. Like Tracker it expects its
// owner to serialize calls, including the timer callbacks.
type View struct {
	player  string
	timer   Timer
	takeoff time.Duration
	pub     events.Publisher

	state         ViewState
	cancelTakeoff func()
}

// NewView returns an idle view. pub may be nil.
func NewView(player string, timer Timer, takeoff time.Duration, pub events.Publisher) *View {
	return &View{
		player:  player,
		timer:   timer,
		takeoff: takeoff,
		pub:     pub,
		state:   ViewState{Phase: PhaseIdle, Variant: VariantFile},
	}
}

func (v *View) publish(instant bool) {
	if v.pub == nil {
		return
	}
	v.pub.TryPublish(events.LoadingChanged{
		Player:   v.player,
		Active:   v.state.Active,
		Phase:    string(v.state.Phase),
		Progress: v.state.Progress,
		Variant:  string(v.state.Variant),
		Instant:  instant,
		At:       time.Now(),
	})
}

func (v *View) stopTakeoff() {
	if v.cancelTakeoff != nil {
		v.cancelTakeoff()
		v.cancelTakeoff = nil
	}
}

// Show enters the loading phase. reset zeroes the progress bar; a rebuffer
// keeps it.
func (v *View) Show(variant Variant, reset bool) {
	v.stopTakeoff()
	v.state.Active = true
	v.state.Phase = PhaseLoading
	v.state.Variant = variant
	if reset {
		v.state.Progress = 0
	}
	v.publish(false)
}

// SetProgress updates the bar while loading.
func (v *View) SetProgress(percent float64) {
	percent = min(100, max(0, percent))
	if !v.state.Active || v.state.Phase != PhaseLoading || percent == v.state.Progress {
		return
	}
	v.state.Progress = percent
	v.publish(false)
}

// Hide leaves the loading phase. With takeoff the view plays the exit
// animation before going idle; live feeds hide at once.
func (v *View) Hide(withTakeoff bool) {
	if !v.state.Active || v.state.Phase == PhaseTakeoff {
		return
	}
	if !withTakeoff || v.takeoff <= 0 || v.timer == nil {
		v.hideNow(false)
		return
	}

	v.state.Phase = PhaseTakeoff
	v.state.Progress = 100
	v.publish(false)
	v.cancelTakeoff = v.timer.After(v.takeoff, func() {
		v.cancelTakeoff = nil
		if v.state.Phase == PhaseTakeoff {
			v.hideNow(false)
		}
	})
}

// HideInstant hides without any animation, e.g. after a load failure.
func (v *View) HideInstant() {
	v.stopTakeoff()
	if !v.state.Active {
		return
	}
	v.hideNow(true)
}

func (v *View) hideNow(instant bool) {
	v.state.Active = false
	v.state.Phase = PhaseIdle
	v.publish(instant)
}

// ResetProgress zeroes the bar, e.g. when the element is emptied.
func (v *View) ResetProgress() {
	if v.state.Progress == 0 {
		return
	}
	v.state.Progress = 0
	v.publish(false)
}

// State returns the current view state.
func (v *View) State() ViewState { return v.state }
