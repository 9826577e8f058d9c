package titles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestLocaleMatching(t *testing.T) {
	t.Parallel()

	tests := []struct {
		locale string
		want   language.Tag
	}{
		{"en", language.English},
		{"en-GB", language.English},
		{"zh", language.Chinese},
		{"zh-CN", language.Chinese},
		{"fi", language.English},
		{"", language.English},
		{"not a locale!", language.English},
	}

	for _, tt := range tests {
		t.Run(tt.locale, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, New(tt.locale).Language())
		})
	}
}

func TestEnglishTitles(t *testing.T) {
	t.Parallel()

	c := New("en")
	assert.Equal(t, Set{
		Primary:   "Visual Navigation Preview",
		Secondary: "Indoor Map Localization and Navigation",
		NavLabel:  "Visual Navigation",
	}, c.Standard())
	assert.Equal(t, "Current Location Image", c.Realtime().Primary)
	assert.Equal(t, "Real-Time Visual Navigation", c.Realtime().NavLabel)
	assert.Equal(t, "Camera Feed (Error)", c.CameraError())
}

func TestChineseTitles(t *testing.T) {
	t.Parallel()

	c := New("zh-CN")
	assert.Equal(t, "视觉导航预览", c.Standard().Primary)
	assert.Equal(t, "实时室内地图定位与导航", c.Realtime().Secondary)
	assert.NotEmpty(t, c.CameraError())
}
