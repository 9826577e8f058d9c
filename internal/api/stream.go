package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/tphakala/navpreview/internal/events"
	"github.com/tphakala/navpreview/internal/logger"
)

const (
	clientBuffer        = 256
	sseWriteDeadline    = 10 * time.Second
	dropReasonFull      = "full"
	dropReasonThrottled = "throttled"
)

// StreamRecorder receives SSE metrics.
type StreamRecorder interface {
	SSEConnectionStarted()
	SSEConnectionClosed(duration float64)
	RecordSSEMessageSent(event string)
	RecordSSEMessageDropped(event, reason string)
}

type nopStreamRecorder struct{}

func (nopStreamRecorder) SSEConnectionStarted()                 {}
func (nopStreamRecorder) SSEConnectionClosed(float64)           {}
func (nopStreamRecorder) RecordSSEMessageSent(string)           {}
func (nopStreamRecorder) RecordSSEMessageDropped(string, string) {}

// streamClient is one connected browser.
type streamClient struct {
	id        string
	ch        chan events.Event
	done      chan struct{}
	closeOnce sync.Once
	connected time.Time

	// progress limiters per player; only touched by the bus worker
	limiters map[string]*rate.Limiter
}

func (c *streamClient) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// StreamHub fans bus events out to every SSE client. It is registered as a
// bus consumer; ProcessEvent never blocks.
type StreamHub struct {
	progressRate float64
	metrics      StreamRecorder
	log          logger.Logger

	mu      sync.RWMutex
	clients map[string]*streamClient

	delivered atomic.Uint64
}

// NewStreamHub creates a hub that passes at most progressRate progress-only
// loading updates per second per player to each client.
func NewStreamHub(progressRate float64, metrics StreamRecorder) *StreamHub {
	if progressRate <= 0 {
		progressRate = DefaultProgressRate
	}
	if metrics == nil {
		metrics = nopStreamRecorder{}
	}
	return &StreamHub{
		progressRate: progressRate,
		metrics:      metrics,
		log:          GetLogger().Module("stream"),
		clients:      make(map[string]*streamClient),
	}
}

// Name implements events.EventConsumer.
func (h *StreamHub) Name() string { return "sse-stream" }

// ProcessEvent implements events.EventConsumer.
func (h *StreamHub) ProcessEvent(ev events.Event) error {
	var blocked []*streamClient

	h.mu.RLock()
	for _, c := range h.clients {
		if h.throttled(c, ev) {
			h.metrics.RecordSSEMessageDropped(ev.Kind(), dropReasonThrottled)
			continue
		}
		select {
		case c.ch <- ev:
			h.delivered.Add(1)
		default:
			h.metrics.RecordSSEMessageDropped(ev.Kind(), dropReasonFull)
			blocked = append(blocked, c)
		}
	}
	h.mu.RUnlock()

	// A client that cannot keep up would miss player commands; drop it so the
	// page reconnects and resyncs from the state snapshot.
	for _, c := range blocked {
		h.log.Warn("SSE client blocked, disconnecting", logger.String("client_id", c.id))
		h.remove(c.id)
	}
	return nil
}

func (h *StreamHub) throttled(c *streamClient, ev events.Event) bool {
	lc, ok := ev.(events.LoadingChanged)
	if !ok || !lc.ProgressOnly() {
		return false
	}
	lim, ok := c.limiters[lc.Player]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(h.progressRate), 1)
		c.limiters[lc.Player] = lim
	}
	return !lim.Allow()
}

func (h *StreamHub) add() *streamClient {
	c := &streamClient{
		id:        uuid.NewString(),
		ch:        make(chan events.Event, clientBuffer),
		done:      make(chan struct{}),
		connected: time.Now(),
		limiters:  make(map[string]*rate.Limiter),
	}
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()

	h.metrics.SSEConnectionStarted()
	h.log.Info("SSE client connected", logger.String("client_id", c.id), logger.Int("clients", n))
	return c
}

func (h *StreamHub) remove(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	c.close()
	h.metrics.SSEConnectionClosed(time.Since(c.connected).Seconds())
	h.log.Info("SSE client disconnected", logger.String("client_id", id), logger.Int("clients", n))
}

// ClientCount returns the number of connected clients.
func (h *StreamHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *StreamHub) Close() {
	h.mu.RLock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	for _, id := range ids {
		h.remove(id)
	}
}

// Stream handles GET /stream. The first events are "connected" and a "state"
// snapshot; bus events follow, named by their kind.
func (s *Server) Stream(ctx echo.Context) error {
	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)

	client := s.hub.add()
	defer s.hub.remove(client.id)

	if err := s.sendSSE(ctx, "connected", map[string]string{"clientId": client.id}); err != nil {
		return nil
	}
	if err := s.sendSSE(ctx, "state", s.ctrl.Snapshot()); err != nil {
		return nil
	}

	ticker := time.NewTicker(s.config.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case ev := <-client.ch:
			if err := s.sendSSE(ctx, ev.Kind(), ev); err != nil {
				s.log.Debug("SSE send failed, client likely disconnected",
					logger.String("client_id", client.id), logger.Error(err))
				return nil
			}
		case <-ticker.C:
			if err := s.sendSSE(ctx, "heartbeat", map[string]any{
				"timestamp": time.Now().Unix(),
				"clients":   s.hub.ClientCount(),
			}); err != nil {
				return nil
			}
		case <-client.done:
			return nil
		case <-ctx.Request().Context().Done():
			return nil
		}
	}
}

func (s *Server) sendSSE(ctx echo.Context, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE data: %w", err)
	}

	rc := http.NewResponseController(ctx.Response())
	// Not every writer supports deadlines; httptest recorders do not
	_ = rc.SetWriteDeadline(time.Now().Add(sseWriteDeadline))

	if _, err := fmt.Fprintf(ctx.Response(), "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return fmt.Errorf("failed to write SSE message: %w", err)
	}
	if err := rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush SSE message: %w", err)
	}
	s.hub.metrics.RecordSSEMessageSent(event)
	return nil
}

// StreamStatus handles GET /stream/status.
func (s *Server) StreamStatus(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"connected_clients": s.hub.ClientCount(),
		"delivered":         s.hub.delivered.Load(),
	})
}
