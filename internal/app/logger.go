package app

import (
	"io"
	"log/slog"
)

// newLogger builds the logger for one kernforge process. Build progress is
// interactive output, so the text format leaves out timestamps; the json
// format keeps them for CI log collectors. Node and tool attributes are
// attached further down through ctxlog.
func newLogger(level, format string, outW io.Writer) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(outW, opts))
	}
	opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) == 0 && a.Key == slog.TimeKey {
			return slog.Attr{}
		}
		return a
	}
	return slog.New(slog.NewTextHandler(outW, opts))
}
