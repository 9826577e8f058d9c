// Package simulate implements the simulate command: a scripted headless
// session against simulated players, printing every presentation event.
package simulate

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/tphakala/navpreview/internal/capture"
	"github.com/tphakala/navpreview/internal/conf"
	"github.com/tphakala/navpreview/internal/controller"
	"github.com/tphakala/navpreview/internal/events"
	"github.com/tphakala/navpreview/internal/player"
	"github.com/tphakala/navpreview/internal/player/sim"
	"github.com/tphakala/navpreview/internal/runloop"
)

// maxSettleRounds bounds how often a step buffers and drains before giving up.
const maxSettleRounds = 20

// Options control a simulated session.
type Options struct {
	Camera     string  // fake or v4l2
	DenyCamera bool    // fail camera acquisition with permission denied
	Duration   float64 // clip length in seconds
	JSON       bool    // print the final state as JSON
}

// Command creates the simulate command
func Command(settings *conf.Settings) *cobra.Command {
	opts := Options{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a scripted session against simulated players",
		Long: "Drive the coordinator through startup, generation, a mirrored pause and a realtime round trip " +
			"using in-process players, printing each presentation event.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.OutOrStdout(), settings, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Camera, "camera", capture.DriverFake, "Camera driver: fake or v4l2")
	cmd.Flags().BoolVar(&opts.DenyCamera, "deny-camera", false, "Deny camera permission to exercise the fallback")
	cmd.Flags().Float64Var(&opts.Duration, "duration", sim.DefaultDuration, "Clip length in seconds")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Print the final state as JSON")

	return cmd
}

// printer is a Publisher that writes events as they are published.
type printer struct {
	mu sync.Mutex
	w  io.Writer
	n  int
}

func (p *printer) TryPublish(e events.Event) bool {
	payload, err := json.Marshal(e)
	if err != nil {
		payload = []byte(fmt.Sprintf("%q", err.Error()))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++
	_, _ = fmt.Fprintf(p.w, "  %-16s %s\n", e.Kind(), payload)
	return true
}

type session struct {
	sched   *runloop.Manual
	ctrl    *controller.Controller
	players map[string]*sim.Player
	cfg     controller.Config
	clipLen float64
}

// Run plays the scripted session and writes its events to out.
func Run(out io.Writer, settings *conf.Settings, opts Options) error {
	switch opts.Camera {
	case "":
		opts.Camera = capture.DriverFake
	case capture.DriverRemote:
		return fmt.Errorf("simulate cannot use the remote camera driver")
	}
	if opts.Duration <= 0 {
		opts.Duration = sim.DefaultDuration
	}
	camSettings := settings.Camera
	camSettings.Driver = opts.Camera

	device, err := capture.NewDevice(camSettings, nil)
	if err != nil {
		return err
	}
	if fake, ok := device.(*capture.FakeDevice); ok && opts.DenyCamera {
		fake.Deny(capture.ErrPermissionDenied)
	}

	cfg, err := controller.ConfigFromSettings(settings)
	if err != nil {
		return fmt.Errorf("invalid video settings: %w", err)
	}

	s := &session{
		sched:   runloop.NewManual(),
		players: make(map[string]*sim.Player, 2),
		cfg:     cfg,
		clipLen: opts.Duration,
	}
	pub := &printer{w: out}
	s.ctrl = controller.New(cfg, s.sched, capture.NewManager(device), func(name string, sink player.Sink) player.Player {
		p := sim.New(name, sink, sim.WithDuration(opts.Duration))
		s.players[name] = p
		return p
	}, controller.WithPublisher(pub))
	defer func() {
		s.ctrl.Stop()
		s.sched.Drain()
	}()

	steps := []struct {
		name string
		run  func() error
	}{
		{"startup", s.startup},
		{"buffer standard clips", s.bufferAll},
		{"select photos and generate", s.generate},
		{"user pauses " + cfg.PrimaryName, s.userPause},
		{"switch to realtime", func() error { return s.switchMode(controller.ModeRealtime) }},
		{"back to standard", func() error { return s.switchMode(controller.ModeStandard) }},
	}
	for i, step := range steps {
		_, _ = fmt.Fprintf(out, "== %d. %s\n", i+1, step.name)
		if err := step.run(); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}

	st := s.ctrl.Snapshot()
	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	_, _ = fmt.Fprintf(out, "== final: mode=%s generation=%d events=%d camera-open=%t\n",
		st.Mode, st.Generation, pub.n, st.CameraOpen)
	return nil
}

func (s *session) startup() error {
	s.ctrl.Start()
	s.sched.Drain()
	return nil
}

// bufferAll lets every loading player buffer halfway and then finish, then
// runs out the loading view animations.
func (s *session) bufferAll() error {
	for _, name := range []string{s.cfg.PrimaryName, s.cfg.SecondaryName} {
		p := s.players[name]
		snap := p.Snapshot()
		if snap.Source.IsZero() || snap.ReadyState >= player.HaveEnoughData {
			continue
		}
		p.Buffer(s.clipLen / 2)
		s.sched.Drain()
		p.CanPlayThrough()
	}
	s.sched.Drain()
	s.sched.Advance(s.cfg.TakeoffDuration)
	s.sched.Drain()
	return nil
}

func (s *session) generate() error {
	if err := s.ctrl.SelectPhoto(controller.SlotCurrent, "lobby.jpg"); err != nil {
		return err
	}
	if err := s.ctrl.SelectPhoto(controller.SlotDestination, "room-204.jpg"); err != nil {
		return err
	}
	s.sched.Drain()
	if err := s.ctrl.Generate(); err != nil {
		return err
	}
	return s.settle()
}

func (s *session) userPause() error {
	s.players[s.cfg.PrimaryName].Advance(5)
	s.players[s.cfg.SecondaryName].Advance(5)
	s.players[s.cfg.PrimaryName].UserPause()
	s.sched.Drain()
	return nil
}

func (s *session) switchMode(m controller.Mode) error {
	if err := s.ctrl.RequestMode(m); err != nil {
		return err
	}
	return s.settle()
}

// settle drains and buffers until no transition is in flight.
func (s *session) settle() error {
	for range maxSettleRounds {
		s.sched.Drain()
		if err := s.bufferAll(); err != nil {
			return err
		}
		if !s.ctrl.Snapshot().Transitioning {
			return nil
		}
	}
	return fmt.Errorf("coordinator did not settle after %d rounds", maxSettleRounds)
}
