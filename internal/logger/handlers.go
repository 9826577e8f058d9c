package logger

import (
	"io"
	"log/slog"
	"time"
)

// newTextHandler returns the console handler: logfmt text, no timestamp,
// TRACE rendered by name.
func newTextHandler(w io.Writer, level slog.Level, tz *time.Location) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return replaceCommon(a, tz)
		},
	})
}

// newJSONHandler returns the file handler: JSON with RFC3339 timestamps in tz.
func newJSONHandler(w io.Writer, level slog.Level, tz *time.Location) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			return replaceCommon(a, tz)
		},
	})
}

func replaceCommon(a slog.Attr, tz *time.Location) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindTime:
		if tz != nil {
			a.Value = slog.TimeValue(a.Value.Time().In(tz))
		}
	case slog.KindAny:
		if lvl, ok := a.Value.Any().(slog.Level); ok && a.Key == slog.LevelKey && lvl <= traceLevelValue {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}
