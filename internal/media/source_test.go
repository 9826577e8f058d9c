package media

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileCanonicalIdentity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		same bool
	}{
		{"dot segment", "videos/./indoor_map_demo.mp4", "videos/indoor_map_demo.mp4", true},
		{"leading dot", "./videos/a.mp4", "videos/a.mp4", true},
		{"parent segment", "videos/x/../a.mp4", "videos/a.mp4", true},
		{"host case", "HTTP://Example.COM/a.mp4", "http://example.com/a.mp4", true},
		{"fragment dropped", "videos/a.mp4#t=10", "videos/a.mp4", true},
		{"different file", "videos/a.mp4", "videos/b.mp4", false},
		{"query matters", "videos/a.mp4?v=1", "videos/a.mp4?v=2", false},
		// Same filename in a different directory is a different clip
		{"suffix match is not identity", "other/a.mp4", "videos/a.mp4", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a, err := File(tt.a)
			require.NoError(t, err)
			b, err := File(tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.same, a.Equal(b))
			assert.Equal(t, tt.same, a.Identity() == b.Identity())
		})
	}
}

func TestFileRejectsEmpty(t *testing.T) {
	t.Parallel()

	_, err := File("  ")
	require.Error(t, err)
	_, err = File("%zz")
	require.Error(t, err)
}

func TestCameraAndZero(t *testing.T) {
	t.Parallel()

	var none Source
	assert.True(t, none.IsZero())
	assert.Equal(t, Identity(""), none.Identity())

	cam := Camera()
	assert.True(t, cam.IsCamera())
	assert.True(t, cam.Equal(Camera()))
	assert.False(t, cam.Equal(MustFile("videos/a.mp4")))
	assert.Equal(t, Identity("camera:"), cam.Identity())
	assert.Equal(t, "camera", cam.String())
}

func TestSourceJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal([]Source{MustFile("videos/a.mp4"), Camera(), {}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"kind":"file","url":"videos/a.mp4"},{"kind":"camera"},null]`, string(data))

	var back []Source
	require.NoError(t, json.Unmarshal(data, &back))
	require.Len(t, back, 3)
	assert.True(t, back[0].Equal(MustFile("videos/a.mp4")))
	assert.True(t, back[1].IsCamera())
	assert.True(t, back[2].IsZero())

	var bad Source
	require.Error(t, json.Unmarshal([]byte(`{"kind":"tape"}`), &bad))
}
