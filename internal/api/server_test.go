package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/navpreview/internal/capture"
	"github.com/tphakala/navpreview/internal/conf"
	"github.com/tphakala/navpreview/internal/controller"
	"github.com/tphakala/navpreview/internal/errors"
	"github.com/tphakala/navpreview/internal/events"
	"github.com/tphakala/navpreview/internal/media"
	"github.com/tphakala/navpreview/internal/observability"
	"github.com/tphakala/navpreview/internal/player"
	"github.com/tphakala/navpreview/internal/player/remote"
)

// pngHeader is enough for http.DetectContentType to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) TryPublish(e events.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return true
}

func (p *recordingPublisher) captureRequests() []events.CaptureRequested {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.CaptureRequested
	for _, e := range p.events {
		if cr, ok := e.(events.CaptureRequested); ok {
			out = append(out, cr)
		}
	}
	return out
}

type fakeCoordinator struct {
	mu        sync.Mutex
	mode      controller.Mode
	photos    map[controller.Slot]string
	generated int
	players   map[string]player.Player
	settleErr error
}

func newFakeCoordinator() *fakeCoordinator {
	return &fakeCoordinator{
		photos:  make(map[controller.Slot]string),
		players: make(map[string]player.Player),
	}
}

func (f *fakeCoordinator) Snapshot() controller.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := controller.State{Mode: f.mode.String()}
	if name, ok := f.photos[controller.SlotCurrent]; ok {
		st.Photos.CurrentSelected = true
		st.Photos.CurrentLabel = "Selected: " + name
	}
	if name, ok := f.photos[controller.SlotDestination]; ok {
		st.Photos.DestinationSelected = true
		st.Photos.DestinationLabel = "Selected: " + name
	}
	st.Photos.CanGenerate = st.Photos.CurrentSelected && st.Photos.DestinationSelected
	return st
}

func (f *fakeCoordinator) RequestMode(m controller.Mode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mode = m
	return nil
}

func (f *fakeCoordinator) Generate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.photos) < 2 {
		return errors.New(controller.ErrGenerateNotAllowed).
			Component("controller").
			Category(errors.CategoryValidation).
			Build()
	}
	f.generated++
	return nil
}

func (f *fakeCoordinator) SelectPhoto(slot controller.Slot, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos[slot] = name
	return nil
}

func (f *fakeCoordinator) ClearPhoto(slot controller.Slot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.photos, slot)
	return nil
}

func (f *fakeCoordinator) Player(name string) (player.Player, bool) {
	p, ok := f.players[name]
	return p, ok
}

func (f *fakeCoordinator) WaitSettled(context.Context) error {
	return f.settleErr
}

type testServer struct {
	*Server
	ctrl *fakeCoordinator
}

func newTestServer(t *testing.T, opts ...ServerOption) *testServer {
	t.Helper()
	ctrl := newFakeCoordinator()
	s, err := New(&conf.Settings{}, ctrl, opts...)
	require.NoError(t, err)
	return &testServer{Server: s, ctrl: ctrl}
}

func (ts *testServer) do(t *testing.T, method, target string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.Echo().ServeHTTP(rec, req)
	return rec
}

func uploadBody(t *testing.T, filename string, data []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes(), w.FormDataContentType()
}

func TestSetModeValidatesBody(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	tests := []struct {
		name string
		body string
		code int
		mode controller.Mode
	}{
		{"realtime", `{"mode":"realtime"}`, http.StatusAccepted, controller.ModeRealtime},
		{"standard", `{"mode":"standard"}`, http.StatusAccepted, controller.ModeStandard},
		{"unknown mode", `{"mode":"cinema"}`, http.StatusBadRequest, controller.ModeStandard},
		{"malformed", `{"mode":`, http.StatusBadRequest, controller.ModeStandard},
	}
	for _, tt := range tests {
		rec := ts.do(t, http.MethodPut, "/api/v1/mode", []byte(tt.body), "application/json")
		assert.Equal(t, tt.code, rec.Code, tt.name)
		if tt.code == http.StatusAccepted {
			assert.Equal(t, tt.mode, ts.ctrl.mode, tt.name)
		}
	}
}

func TestSetModeWaitTimeout(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.ctrl.settleErr = errors.New(context.DeadlineExceeded).
		Component("controller").
		Category(errors.CategoryTimeout).
		Build()

	rec := ts.do(t, http.MethodPut, "/api/v1/mode?wait=0.1", []byte(`{"mode":"realtime"}`), "application/json")
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusGatewayTimeout, resp.Code)
	assert.Len(t, resp.CorrelationID, 8)
}

func TestPhotoUploadAndGenerate(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/generate", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "generate needs both photos")
	assert.Contains(t, rec.Body.String(), "Please select images for both current location and target location first!")

	for _, slot := range []string{"current", "destination"} {
		body, ct := uploadBody(t, "../"+slot+".png", pngHeader)
		rec := ts.do(t, http.MethodPost, "/api/v1/photos/"+slot, body, ct)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"previewUrl":"/api/v1/photos/`+slot+`/preview?v=`)
	}
	assert.Equal(t, "current.png", ts.ctrl.photos[controller.SlotCurrent], "directory parts are stripped")

	rec = ts.do(t, http.MethodGet, "/api/v1/photos/current/preview", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, pngHeader, rec.Body.Bytes())

	rec = ts.do(t, http.MethodPost, "/api/v1/generate", nil, "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, ts.ctrl.generated)

	rec = ts.do(t, http.MethodDelete, "/api/v1/photos/current", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"currentSelected":false`)
	rec = ts.do(t, http.MethodGet, "/api/v1/photos/current/preview", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPhotoUploadRejections(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	body, ct := uploadBody(t, "notes.txt", []byte("plain text, not an image"))
	rec := ts.do(t, http.MethodPost, "/api/v1/photos/current", body, ct)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	body, ct = uploadBody(t, "a.png", pngHeader)
	rec = ts.do(t, http.MethodPost, "/api/v1/photos/elsewhere", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/photos/current", []byte("x"), "text/plain")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, ts.ctrl.photos)
}

func TestPhotoStoreExpiry(t *testing.T) {
	t.Parallel()

	store := NewPhotoStore(20 * time.Millisecond)
	first := store.Put(controller.SlotCurrent, "a.png", "image/png", pngHeader)
	second := store.Put(controller.SlotCurrent, "b.png", "image/png", pngHeader)
	assert.NotEqual(t, first.ID, second.ID)

	got, ok := store.Get(controller.SlotCurrent)
	require.True(t, ok)
	assert.Equal(t, "b.png", got.Name)

	require.Eventually(t, func() bool {
		_, ok := store.Get(controller.SlotCurrent)
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestPlayerEventsReachRemotePlayer(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		seen []player.Event
	)
	pub := &recordingPublisher{}
	p := remote.New("indoor-map", pub, func(ev player.Event) {
		mu.Lock()
		seen = append(seen, ev)
		mu.Unlock()
	})
	p.SetSource(media.MustFile("videos/indoor_map_demo.mp4"), nil)

	ts := newTestServer(t)
	ts.ctrl.players["indoor-map"] = p

	batch := `[{"type":"progress","buffered":10,"duration":60},{"type":"canplaythrough","duration":60}]`
	rec := ts.do(t, http.MethodPost, "/api/v1/players/indoor-map/events", []byte(batch), "application/json")
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/v1/players/indoor-map/events", []byte(`{"type":"pause","time":3}`), "application/json")
	require.Equal(t, http.StatusNoContent, rec.Code)

	mu.Lock()
	require.Len(t, seen, 3)
	assert.Equal(t, player.EventProgress, seen[0].Type)
	assert.Equal(t, player.EventCanPlayThrough, seen[1].Type)
	assert.Equal(t, player.OriginUser, seen[2].Origin, "a pause without a token came from the page")
	mu.Unlock()

	rec = ts.do(t, http.MethodPost, "/api/v1/players/indoor-map/events", []byte(`{"type":"rewind"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/players/nobody/events", []byte(`{"type":"play"}`), "application/json")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCaptureResultResolvesRemoteDevice(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	device := capture.NewRemoteDevice(pub)
	ts := newTestServer(t, WithCaptureResolver(device))

	type openResult struct {
		stream capture.Stream
		err    error
	}
	done := make(chan openResult, 1)
	go func() {
		s, err := device.Open(t.Context(), capture.Constraints{FacingMode: "environment"})
		done <- openResult{s, err}
	}()

	var req events.CaptureRequested
	require.Eventually(t, func() bool {
		reqs := pub.captureRequests()
		if len(reqs) == 0 {
			return false
		}
		req = reqs[0]
		return true
	}, time.Second, time.Millisecond)
	assert.Equal(t, capture.ActionAcquire, req.Action)

	body := `{"requestId":"` + req.RequestID + `","ok":false,"errorName":"NotAllowedError","message":"denied"}`
	rec := ts.do(t, http.MethodPost, "/api/v1/capture/result", []byte(body), "application/json")
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	res := <-done
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, capture.ErrPermissionDenied)

	rec = ts.do(t, http.MethodPost, "/api/v1/capture/result", []byte(body), "application/json")
	assert.Equal(t, http.StatusGone, rec.Code, "answers are accepted once")
}

func TestCaptureResultWithoutRemoteCamera(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/capture/result", []byte(`{"requestId":"x","ok":true}`), "application/json")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStreamHubThrottlesProgressOnly(t *testing.T) {
	t.Parallel()

	m, err := observability.NewMetrics()
	require.NoError(t, err)
	hub := NewStreamHub(1, m.HTTP)
	c := hub.add()
	defer hub.remove(c.id)

	progress := func(p float64) events.LoadingChanged {
		return events.LoadingChanged{Player: "visual-nav", Active: true, Phase: "loading", Progress: p}
	}

	require.NoError(t, hub.ProcessEvent(progress(10)))
	require.NoError(t, hub.ProcessEvent(progress(20)))
	require.NoError(t, hub.ProcessEvent(progress(30)))
	// Another player has its own budget
	other := progress(5)
	other.Player = "indoor-map"
	require.NoError(t, hub.ProcessEvent(other))
	// Phase changes always pass
	require.NoError(t, hub.ProcessEvent(events.LoadingChanged{Player: "visual-nav", Active: true, Phase: "takeoff", Progress: 100}))
	require.NoError(t, hub.ProcessEvent(events.ModeChanged{Mode: "realtime"}))

	var kinds []string
	for len(c.ch) > 0 {
		ev := <-c.ch
		if lc, ok := ev.(events.LoadingChanged); ok {
			kinds = append(kinds, lc.Player+":"+lc.Phase)
			continue
		}
		kinds = append(kinds, ev.Kind())
	}
	assert.Equal(t, []string{"visual-nav:loading", "indoor-map:loading", "visual-nav:takeoff", events.KindModeChanged}, kinds)
	assert.InDelta(t, 1, m.HTTP.GetActiveSSEConnections(), 0)
}

func TestStreamHubDisconnectsBlockedClient(t *testing.T) {
	t.Parallel()

	hub := NewStreamHub(DefaultProgressRate, nil)
	c := hub.add()

	for range clientBuffer + 1 {
		require.NoError(t, hub.ProcessEvent(events.ModeChanged{Mode: "standard"}))
	}

	select {
	case <-c.done:
	default:
		t.Fatal("blocked client was not disconnected")
	}
	assert.Zero(t, hub.ClientCount())
}

func TestStreamDeliversSnapshotAndEvents(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	srv := httptest.NewServer(ts.Echo())
	defer srv.Close()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/stream", http.NoBody)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	nextEvent := func() string {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if name, ok := strings.CutPrefix(line, "event: "); ok {
				return strings.TrimSpace(name)
			}
		}
	}

	assert.Equal(t, "connected", nextEvent())
	assert.Equal(t, "state", nextEvent())

	require.Eventually(t, func() bool { return ts.Hub().ClientCount() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, ts.Hub().ProcessEvent(events.PlayerCommand{Player: "visual-nav", Command: "play", Token: 7}))
	assert.Equal(t, events.KindPlayerCommand, nextEvent())

	cancel()
	require.Eventually(t, func() bool { return ts.Hub().ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestMetricsAndHealthRoutes(t *testing.T) {
	t.Parallel()

	m, err := observability.NewMetrics()
	require.NoError(t, err)
	ts := newTestServer(t, WithMetrics(m))

	rec := ts.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	rec = ts.do(t, http.MethodGet, "/api/v1/state", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",path="/api/v1/state",status_code="200"} 1`)

	rec = ts.do(t, http.MethodGet, "/api/v1/nothing-here", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
