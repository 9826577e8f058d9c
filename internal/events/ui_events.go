package events

import "time"

// Event kinds.
const (
	KindLoadingChanged    = "loading"
	KindTitlesChanged     = "titles"
	KindScrollRequested   = "scroll"
	KindModeChanged       = "mode"
	KindPhotoSlotsChanged = "photos"
	KindPlayerCommand     = "player-command"
	KindCaptureRequested  = "capture-request"
	KindErrorRaised       = "error"
)

// LoadingChanged carries one player's loading view.
type LoadingChanged struct {
	Player   string    `json:"player"`
	Active   bool      `json:"active"`
	Phase    string    `json:"phase"`
	Progress float64   `json:"progressPercent"`
	Variant  string    `json:"variant"`
	Instant  bool      `json:"instant"` // hide without the exit animation
	At       time.Time `json:"at"`
}

func (e LoadingChanged) Kind() string          { return KindLoadingChanged }
func (e LoadingChanged) OccurredAt() time.Time { return e.At }

// ProgressOnly reports whether the event only moves the progress bar of an
// already visible loading view. Consumers may throttle these.
func (e LoadingChanged) ProgressOnly() bool {
	return e.Active && e.Phase == "loading" && e.Progress > 0 && e.Progress < 100
}

// TitlesChanged carries the mode-dependent display titles.
type TitlesChanged struct {
	Primary   string    `json:"primary"`
	Secondary string    `json:"secondary"`
	NavLabel  string    `json:"navLabel"`
	At        time.Time `json:"at"`
}

func (e TitlesChanged) Kind() string          { return KindTitlesChanged }
func (e TitlesChanged) OccurredAt() time.Time { return e.At }

// ScrollRequested asks the presentation layer to bring a region into view.
type ScrollRequested struct {
	Region string    `json:"region"`
	At     time.Time `json:"at"`
}

func (e ScrollRequested) Kind() string          { return KindScrollRequested }
func (e ScrollRequested) OccurredAt() time.Time { return e.At }

// ModeChanged reports the active mode and whether a transition is in flight.
type ModeChanged struct {
	Mode          string    `json:"mode"`
	Transitioning bool      `json:"transitioning"`
	At            time.Time `json:"at"`
}

func (e ModeChanged) Kind() string          { return KindModeChanged }
func (e ModeChanged) OccurredAt() time.Time { return e.At }

// PhotoSlotsChanged reports photo slot labels and generate availability.
type PhotoSlotsChanged struct {
	CurrentSelected     bool      `json:"currentSelected"`
	CurrentLabel        string    `json:"currentLabel"`
	DestinationSelected bool      `json:"destinationSelected"`
	DestinationLabel    string    `json:"destinationLabel"`
	CanGenerate         bool      `json:"canGenerate"`
	GenerateVisible     bool      `json:"generateVisible"`
	OutputVisible       bool      `json:"outputVisible"`
	At                  time.Time `json:"at"`
}

func (e PhotoSlotsChanged) Kind() string          { return KindPhotoSlotsChanged }
func (e PhotoSlotsChanged) OccurredAt() time.Time { return e.At }

// PlayerCommand instructs a browser-hosted player. Events the browser
// reports in response echo Token.
type PlayerCommand struct {
	Player  string         `json:"player"`
	Command string         `json:"command"`
	Token   uint64         `json:"token"`
	Args    map[string]any `json:"args,omitempty"`
	At      time.Time      `json:"at"`
}

func (e PlayerCommand) Kind() string          { return KindPlayerCommand }
func (e PlayerCommand) OccurredAt() time.Time { return e.At }

// CaptureRequested asks the browser to open (or close) a camera stream.
type CaptureRequested struct {
	RequestID  string    `json:"requestId"`
	Action     string    `json:"action"` // acquire or release
	FacingMode string    `json:"facingMode,omitempty"`
	Audio      bool      `json:"audio"`
	At         time.Time `json:"at"`
}

func (e CaptureRequested) Kind() string          { return KindCaptureRequested }
func (e CaptureRequested) OccurredAt() time.Time { return e.At }

// ErrorRaised surfaces a locally handled error.
type ErrorRaised struct {
	Component string         `json:"component"`
	Category  string         `json:"category"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	At        time.Time      `json:"at"`
}

func (e ErrorRaised) Kind() string          { return KindErrorRaised }
func (e ErrorRaised) OccurredAt() time.Time { return e.At }
