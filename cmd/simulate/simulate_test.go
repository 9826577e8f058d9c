package simulate

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/navpreview/internal/capture"
	"github.com/tphakala/navpreview/internal/conf"
	"github.com/tphakala/navpreview/internal/controller"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testSettings() *conf.Settings {
	return &conf.Settings{
		Main: conf.MainSettings{Name: "navpreview", Locale: "en"},
		Videos: conf.VideoSettings{
			StandardVisualNav:      "videos/visual_navigation_demo.mp4",
			StandardIndoorMap:      "videos/indoor_map_demo.mp4",
			RealtimeIndoorLocation: "videos/realtime_indoor_location_demo.mp4",
		},
		Sync: conf.SyncSettings{
			SeekDeadband:    0.2,
			TickInterval:    16 * time.Millisecond,
			SettleTimeout:   30 * time.Second,
			TakeoffDuration: 1400 * time.Millisecond,
		},
		Camera: conf.CameraSettings{Driver: capture.DriverFake, FacingMode: "environment"},
	}
}

func TestRunScriptedSession(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	err := Run(&out, testSettings(), Options{Camera: capture.DriverFake, Duration: 60})
	require.NoError(t, err)

	text := out.String()
	for _, want := range []string{
		"== 1. startup",
		"== 3. select photos and generate",
		"== 5. switch to realtime",
		"== 6. back to standard",
		"mode=standard",
		"player-command",
		"titles",
	} {
		assert.Contains(t, text, want)
	}
	assert.Contains(t, text, `"region":"`+controller.OutputRegion+`"`)
}

func TestRunJSONState(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	require.NoError(t, Run(&out, testSettings(), Options{Camera: capture.DriverFake, Duration: 60, JSON: true}))

	// The state document is the last JSON value written
	text := out.String()
	idx := strings.LastIndex(text, "\n{\n")
	require.GreaterOrEqual(t, idx, 0)

	var st controller.State
	require.NoError(t, json.Unmarshal([]byte(text[idx+1:]), &st))
	assert.Equal(t, "standard", st.Mode)
	assert.False(t, st.Transitioning)
	assert.False(t, st.CameraOpen, "camera is released after leaving realtime")
	assert.True(t, st.Photos.CurrentSelected)
	assert.True(t, st.Photos.DestinationSelected)
	assert.Len(t, st.Players, 2)
}

func TestRunWithDeniedCamera(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	require.NoError(t, Run(&out, testSettings(), Options{Camera: capture.DriverFake, DenyCamera: true, Duration: 60}))
	assert.Contains(t, out.String(), "== 6. back to standard")
}

func TestRunRejectsRemoteCamera(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	err := Run(&out, testSettings(), Options{Camera: capture.DriverRemote})
	require.Error(t, err)
	assert.Empty(t, out.String())
}
