// Package controller implements the playback coordinator: the ModeController
// state machine that moves two players between standard (two synchronized
// clips) and realtime (live camera plus companion clip) mode, together with
// the photo slots that gate generation.
//
// All state lives in one Controller guarded by a mutex. Player events, timers
// and capture results arrive as callbacks posted to a runloop.Scheduler and
// run under that mutex one at a time, so the transition code reads as if it
// were single threaded.
package controller

import (
	"context"
	"sync"
	"time"

	"github.com/tphakala/navpreview/internal/capture"
	"github.com/tphakala/navpreview/internal/errors"
	"github.com/tphakala/navpreview/internal/events"
	"github.com/tphakala/navpreview/internal/logger"
	"github.com/tphakala/navpreview/internal/media"
	"github.com/tphakala/navpreview/internal/player"
	"github.com/tphakala/navpreview/internal/progress"
	"github.com/tphakala/navpreview/internal/runloop"
	"github.com/tphakala/navpreview/internal/syncgroup"
	"github.com/tphakala/navpreview/internal/titles"
)

// Default player names.
const (
	PrimaryName   = "visual-nav"
	SecondaryName = "indoor-map"
)

// OutputRegion is the region scrolled into view after generation settles.
const OutputRegion = "video-generation-output-section"

// TransitionOwner is the lock owner while a mode transition runs.
const TransitionOwner = "transition"

// Role of a player in the pair.
type Role string

const (
	RolePrimary   Role = "primary"
	RoleSecondary Role = "secondary"
)

// Clips are the file sources each mode binds.
type Clips struct {
	StandardPrimary   media.Source
	StandardSecondary media.Source
	RealtimeSecondary media.Source
}

// Config holds the coordinator settings.
type Config struct {
	Clips           Clips
	Camera          capture.Constraints
	SeekDeadband    float64
	SettleTimeout   time.Duration
	TakeoffDuration time.Duration
	Locale          string
	PrimaryName     string
	SecondaryName   string
}

// Recorder receives controller metrics.
type Recorder interface {
	RecordTransition(to, result string, d time.Duration)
	RecordTransitionDeferred()
	RecordLoadFailure(player string)
}

// MirrorRecorder is satisfied by recorders that also count mirrored actions.
type MirrorRecorder interface {
	syncgroup.Recorder
}

type nopRecorder struct{}

func (nopRecorder) RecordTransition(string, string, time.Duration) {}
func (nopRecorder) RecordTransitionDeferred()                      {}
func (nopRecorder) RecordLoadFailure(string)                       {}

// PlayerFactory creates the player called name reporting to sink.
type PlayerFactory func(name string, sink player.Sink) player.Player

// Option configures a Controller.
type Option func(*Controller)

// WithPublisher sets where presentation events go.
func WithPublisher(pub events.Publisher) Option {
	return func(c *Controller) { c.pub = pub }
}

// WithRecorder installs a metrics recorder. If it also implements
// MirrorRecorder, mirrored actions are recorded too.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		if r != nil {
			c.metrics = r
		}
	}
}

// WithLogger overrides the module logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) { c.log = l }
}

type resumePoint struct {
	Time    float64
	Playing bool
}

type pendingSetup struct {
	gen    uint64
	target media.Source
	resume resumePoint
	cancel func()
}

func (p *pendingSetup) stop() {
	if p != nil && p.cancel != nil {
		p.cancel()
	}
}

type slot struct {
	name    string
	role    Role
	p       player.Player
	tracker *progress.Tracker
	view    *progress.View

	standardReady bool
	wantsAutoplay bool
	everPlayed    bool
	lastKnownTime float64

	setup     *pendingSetup
	companion *pendingSetup
}

type transition struct {
	gen     uint64
	from    Mode
	to      Mode
	forced  bool
	started time.Time
	pending int
	failed  bool
}

// Controller is the ModeController.
type Controller struct {
	cfg     Config
	ctx     context.Context
	cancel  context.CancelFunc
	sched   runloop.Scheduler
	loop    lockedScheduler
	camera  *capture.Manager
	pub     events.Publisher
	metrics Recorder
	log     logger.Logger
	catalog *titles.Catalog

	mu sync.Mutex

	lock   *syncgroup.Lock
	group  *syncgroup.Group
	slots  [2]*slot
	byName map[string]*slot

	mode             Mode
	desired          Mode
	generation       uint64
	current          *transition
	retryPending     bool
	refreshRequested bool

	stream       capture.Stream
	cameraFailed bool
	// cameraLive is set once the coordinator has told the camera-bound
	// player to play. Remote players only report play later.
	cameraLive bool

	resume map[media.Identity]resumePoint

	photos          [2]photoSlot
	generateVisible bool
	outputVisible   bool
	titles          titles.Set

	settleWaiters []func()
}

// New builds a controller. Players are created through newPlayer so their
// events reach the controller; Start binds the initial sources.
func New(cfg Config, sched runloop.Scheduler, camera *capture.Manager, newPlayer PlayerFactory, opts ...Option) *Controller {
	if cfg.SeekDeadband <= 0 {
		cfg.SeekDeadband = syncgroup.DefaultSeekDeadband
	}
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = 30 * time.Second
	}
	if cfg.PrimaryName == "" {
		cfg.PrimaryName = PrimaryName
	}
	if cfg.SecondaryName == "" {
		cfg.SecondaryName = SecondaryName
	}

	c := &Controller{
		cfg:             cfg,
		sched:           sched,
		camera:          camera,
		metrics:         nopRecorder{},
		log:             logger.Global().Module("controller"),
		catalog:         titles.New(cfg.Locale),
		lock:            syncgroup.NewLock(),
		byName:          make(map[string]*slot, 2),
		resume:          make(map[media.Identity]resumePoint),
		generateVisible: true,
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.loop = lockedScheduler{c: c}
	for _, opt := range opts {
		opt(c)
	}
	c.titles = c.catalog.Standard()

	for i, def := range []struct {
		name string
		role Role
	}{{cfg.PrimaryName, RolePrimary}, {cfg.SecondaryName, RoleSecondary}} {
		s := &slot{name: def.name, role: def.role}
		s.p = newPlayer(def.name, c.sink)
		s.tracker = progress.NewTracker(def.name, c.onSignal)
		s.view = progress.NewView(def.name, c.loop, cfg.TakeoffDuration, c.pub)
		c.slots[i] = s
		c.byName[def.name] = s
	}

	groupOpts := []syncgroup.Option{syncgroup.WithDeadband(cfg.SeekDeadband)}
	if mr, ok := c.metrics.(MirrorRecorder); ok {
		groupOpts = append(groupOpts, syncgroup.WithRecorder(mr))
	}
	c.group = syncgroup.New(c.slots[0].p, c.slots[1].p, c.lock, c.loop, groupOpts...)

	return c
}

func (c *Controller) primary() *slot   { return c.slots[0] }
func (c *Controller) secondary() *slot { return c.slots[1] }

// Player returns the named player.
func (c *Controller) Player(name string) (player.Player, bool) {
	s, ok := c.byName[name]
	if !ok {
		return nil, false
	}
	return s.p, true
}

// sink receives player events. Players may call it while the controller
// holds its mutex, so it only queues.
func (c *Controller) sink(ev player.Event) {
	c.loop.Post(func() { c.handlePlayerEvent(ev) })
}

// Start releases any leftover camera and preloads the standard clips.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctx.Err() != nil {
		c.ctx, c.cancel = context.WithCancel(context.Background())
	}
	c.releaseCamera()
	c.mode, c.desired = ModeStandard, ModeStandard

	targets := c.standardTargets()
	for i, s := range c.slots {
		s.p.SetControls(true)
		s.p.SetMuted(false)
		if !targets[i].IsZero() && !s.p.Snapshot().Source.Equal(targets[i]) {
			c.bind(s, targets[i], nil)
		}
	}

	c.titles = c.catalog.Standard()
	c.publishTitles()
	c.publishPhotos()
	c.publishMode()
	c.log.Info("coordinator started",
		logger.String("locale", c.catalog.Language().String()),
		logger.String("primary", c.primary().name),
		logger.String("secondary", c.secondary().name))
}

// Stop abandons any camera acquisition in flight and releases the camera.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancel()
	c.releaseCamera()
}

// bind assigns src to a player and restarts its tracking.
func (c *Controller) bind(s *slot, src media.Source, stream capture.Stream) {
	s.tracker.OnSourceChanged(src)
	s.standardReady = false
	if !src.IsZero() {
		s.view.Show(c.variantFor(src), true)
	}
	s.p.SetSource(src, stream)
}

func (c *Controller) variantFor(src media.Source) progress.Variant {
	if src.IsCamera() {
		return progress.VariantCamera
	}
	return progress.VariantFile
}

func (c *Controller) releaseCamera() {
	if err := c.camera.Release(c.stream); err != nil {
		c.log.Warn("camera release failed", logger.Error(err))
	}
	c.stream = nil
	c.cameraLive = false
}

// WaitSettled blocks until no transition is running or pending.
func (c *Controller) WaitSettled(ctx context.Context) error {
	done := make(chan struct{})
	c.mu.Lock()
	c.settleWaiters = append(c.settleWaiters, func() { close(done) })
	c.notifySettled()
	c.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.New(ctx.Err()).
			Component("controller").
			Category(errors.CategoryTimeout).
			Context("operation", "wait-settled").
			Build()
	}
}

// notifySettled runs the settle waiters once nothing is in flight.
func (c *Controller) notifySettled() {
	if c.current != nil || c.retryPending || len(c.settleWaiters) == 0 {
		return
	}
	if c.lock.Held() {
		c.lock.WhenFree(c.notifySettled)
		return
	}
	waiters := c.settleWaiters
	c.settleWaiters = nil
	for _, fn := range waiters {
		fn()
	}
}

func (c *Controller) publish(e events.Event) {
	if c.pub != nil {
		c.pub.TryPublish(e)
	}
}

func (c *Controller) publishTitles() {
	c.publish(events.TitlesChanged{
		Primary:   c.titles.Primary,
		Secondary: c.titles.Secondary,
		NavLabel:  c.titles.NavLabel,
		At:        time.Now(),
	})
}

func (c *Controller) publishMode() {
	c.publish(events.ModeChanged{
		Mode:          c.mode.String(),
		Transitioning: c.current != nil,
		At:            time.Now(),
	})
}

// lockedScheduler runs every callback under the controller mutex.
type lockedScheduler struct {
	c *Controller
}

func (s lockedScheduler) wrap(fn func()) func() {
	return func() {
		s.c.mu.Lock()
		defer s.c.mu.Unlock()
		fn()
	}
}

func (s lockedScheduler) Post(fn func())         { s.c.sched.Post(s.wrap(fn)) }
func (s lockedScheduler) PostNextTick(fn func()) { s.c.sched.PostNextTick(s.wrap(fn)) }
func (s lockedScheduler) Go(fn func())           { s.c.sched.Go(fn) }

func (s lockedScheduler) After(d time.Duration, fn func()) func() {
	return s.c.sched.After(d, s.wrap(fn))
}
