package controller

import (
	"github.com/tphakala/navpreview/internal/capture"
	"github.com/tphakala/navpreview/internal/conf"
	"github.com/tphakala/navpreview/internal/errors"
	"github.com/tphakala/navpreview/internal/media"
)

// ConfigFromSettings builds the coordinator configuration from the
// application settings.
func ConfigFromSettings(settings *conf.Settings) (Config, error) {
	clips := Clips{}
	for _, c := range []struct {
		key string
		raw string
		dst *media.Source
	}{
		{"videos.standardvisualnav", settings.Videos.StandardVisualNav, &clips.StandardPrimary},
		{"videos.standardindoormap", settings.Videos.StandardIndoorMap, &clips.StandardSecondary},
		{"videos.realtimeindoorlocation", settings.Videos.RealtimeIndoorLocation, &clips.RealtimeSecondary},
	} {
		src, err := media.File(c.raw)
		if err != nil {
			return Config{}, errors.Newf("%s: %w", c.key, err).
				Component("controller").
				Category(errors.CategoryConfiguration).
				Context("setting", c.key).
				Build()
		}
		*c.dst = src
	}

	return Config{
		Clips: clips,
		Camera: capture.Constraints{
			FacingMode: settings.Camera.FacingMode,
			Audio:      settings.Camera.Audio,
		},
		SeekDeadband:    settings.Sync.SeekDeadband,
		SettleTimeout:   settings.Sync.SettleTimeout,
		TakeoffDuration: settings.Sync.TakeoffDuration,
		Locale:          settings.Main.Locale,
		PrimaryName:     PrimaryName,
		SecondaryName:   SecondaryName,
	}, nil
}
