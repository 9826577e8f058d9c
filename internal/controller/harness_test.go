package controller

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/tphakala/navpreview/internal/capture"
	"github.com/tphakala/navpreview/internal/events"
	"github.com/tphakala/navpreview/internal/media"
	"github.com/tphakala/navpreview/internal/player"
	"github.com/tphakala/navpreview/internal/player/sim"
	"github.com/tphakala/navpreview/internal/runloop"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	standardPrimaryClip   = media.MustFile("videos/visual_navigation_demo.mp4")
	standardSecondaryClip = media.MustFile("videos/indoor_map_demo.mp4")
	realtimeSecondaryClip = media.MustFile("videos/realtime_indoor_location_demo.mp4")
)

func testConfig() Config {
	return Config{
		Clips: Clips{
			StandardPrimary:   standardPrimaryClip,
			StandardSecondary: standardSecondaryClip,
			RealtimeSecondary: realtimeSecondaryClip,
		},
		Camera:          capture.Constraints{FacingMode: "environment"},
		SeekDeadband:    0.2,
		SettleTimeout:   30 * time.Second,
		TakeoffDuration: 1400 * time.Millisecond,
		Locale:          "en",
	}
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) TryPublish(e events.Event) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return true
}

func (l *eventLog) scrolls() []events.ScrollRequested {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []events.ScrollRequested
	for _, e := range l.events {
		if s, ok := e.(events.ScrollRequested); ok {
			out = append(out, s)
		}
	}
	return out
}

func (l *eventLog) lastTitles() events.TitlesChanged {
	l.mu.Lock()
	defer l.mu.Unlock()
	var last events.TitlesChanged
	for _, e := range l.events {
		if t, ok := e.(events.TitlesChanged); ok {
			last = t
		}
	}
	return last
}

func (l *eventLog) loading(name string) []events.LoadingChanged {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []events.LoadingChanged
	for _, e := range l.events {
		if lc, ok := e.(events.LoadingChanged); ok && lc.Player == name {
			out = append(out, lc)
		}
	}
	return out
}

type metrics struct {
	mu           sync.Mutex
	transitions  []string
	deferred     int
	loadFailures map[string]int
	mirrors      map[string]int
}

func newMetrics() *metrics {
	return &metrics{loadFailures: map[string]int{}, mirrors: map[string]int{}}
}

func (m *metrics) RecordTransition(to, result string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, to+"/"+result)
}

func (m *metrics) RecordTransitionDeferred() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deferred++
}

func (m *metrics) RecordLoadFailure(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadFailures[name]++
}

func (m *metrics) RecordMirror(action, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mirrors[action+"/"+result]++
}

type harness struct {
	t       *testing.T
	sched   *runloop.Manual
	dev     *capture.FakeDevice
	cam     *capture.Manager
	ctrl    *Controller
	players map[string]*sim.Player
	log     *eventLog
	metrics *metrics
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()

	h := &harness{
		t:       t,
		sched:   runloop.NewManual(),
		dev:     capture.NewFakeDevice("fake"),
		players: map[string]*sim.Player{},
		log:     &eventLog{},
		metrics: newMetrics(),
	}
	h.cam = capture.NewManager(h.dev)
	factory := func(name string, sink player.Sink) player.Player {
		p := sim.New(name, sink)
		h.players[name] = p
		return p
	}
	h.ctrl = New(cfg, h.sched, h.cam, factory, WithPublisher(h.log), WithRecorder(h.metrics))
	h.ctrl.Start()
	h.settle()

	t.Cleanup(func() {
		h.ctrl.Stop()
		h.sched.Drain()
	})
	return h
}

func (h *harness) primary() *sim.Player   { return h.players[PrimaryName] }
func (h *harness) secondary() *sim.Player { return h.players[SecondaryName] }

// settle runs everything queued, including finished capture work.
func (h *harness) settle() { h.sched.Drain() }

// ready finishes buffering on every player that is still loading and settles.
func (h *harness) ready() {
	for _, p := range []*sim.Player{h.primary(), h.secondary()} {
		snap := p.Snapshot()
		if !snap.Source.IsZero() && snap.ReadyState < player.HaveEnoughData {
			p.CanPlayThrough()
		}
	}
	h.settle()
}

// settleAll alternates settling and buffering until no transition is left.
func (h *harness) settleAll() {
	for range 20 {
		h.settle()
		h.ready()
		if !h.ctrl.Snapshot().Transitioning {
			return
		}
	}
	h.t.Fatal("coordinator did not settle")
}

func (h *harness) selectPhotos() {
	h.t.Helper()
	if err := h.ctrl.SelectPhoto(SlotCurrent, "lobby.jpg"); err != nil {
		h.t.Fatal(err)
	}
	if err := h.ctrl.SelectPhoto(SlotDestination, "room-204.jpg"); err != nil {
		h.t.Fatal(err)
	}
}

// generate selects photos, buffers both clips and generates.
func (h *harness) generate() {
	h.t.Helper()
	h.selectPhotos()
	h.ready()
	if err := h.ctrl.Generate(); err != nil {
		h.t.Fatal(err)
	}
	h.settleAll()
}

// enterRealtime switches to realtime and lets the companion load.
func (h *harness) enterRealtime() {
	h.t.Helper()
	if err := h.ctrl.RequestMode(ModeRealtime); err != nil {
		h.t.Fatal(err)
	}
	h.settleAll()
}

func (h *harness) playerState(name string) PlayerState {
	for _, p := range h.ctrl.Snapshot().Players {
		if p.Name == name {
			return p
		}
	}
	h.t.Fatalf("no player %s", name)
	return PlayerState{}
}

func playerEvent(name string, src media.Source) player.Event {
	return player.Event{Player: name, Type: player.EventCanPlayThrough, Source: src}
}
