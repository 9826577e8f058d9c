// Package titles holds the mode-dependent display titles in every supported
// language.
package titles

import (
	"golang.org/x/text/language"
)

// Set is the pair of player titles plus the navigation label.
type Set struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
	NavLabel  string `json:"navLabel"`
}

type entry struct {
	standard    Set
	realtime    Set
	cameraError string
}

var supported = []language.Tag{language.English, language.Chinese}

var catalog = map[language.Tag]entry{
	language.English: {
		standard: Set{
			Primary:   "Visual Navigation Preview",
			Secondary: "Indoor Map Localization and Navigation",
			NavLabel:  "Visual Navigation",
		},
		realtime: Set{
			Primary:   "Current Location Image",
			Secondary: "Real-Time Indoor Map Localization and Navigation",
			NavLabel:  "Real-Time Visual Navigation",
		},
		cameraError: "Camera Feed (Error)",
	},
	language.Chinese: {
		standard: Set{
			Primary:   "视觉导航预览",
			Secondary: "室内地图定位与导航",
			NavLabel:  "视觉导航",
		},
		realtime: Set{
			Primary:   "当前位置图像",
			Secondary: "实时室内地图定位与导航",
			NavLabel:  "实时视觉导航",
		},
		cameraError: "摄像头画面（错误）",
	},
}

var matcher = language.NewMatcher(supported)

// Catalog resolves titles for one locale.
type Catalog struct {
	tag   language.Tag
	entry entry
}

// New returns the catalog best matching locale, falling back to English.
func New(locale string) *Catalog {
	tag := language.English
	if parsed, err := language.Parse(locale); err == nil {
		_, idx, conf := matcher.Match(parsed)
		if conf != language.No {
			tag = supported[idx]
		}
	}
	return &Catalog{tag: tag, entry: catalog[tag]}
}

// Language returns the matched language.
func (c *Catalog) Language() language.Tag { return c.tag }

// Standard returns the standard mode titles.
func (c *Catalog) Standard() Set { return c.entry.standard }

// Realtime returns the realtime mode titles.
func (c *Catalog) Realtime() Set { return c.entry.realtime }

// CameraError returns the primary title shown when the camera failed.
func (c *Catalog) CameraError() string { return c.entry.cameraError }
