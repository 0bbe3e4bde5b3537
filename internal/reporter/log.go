package reporter

import (
	"log/slog"

	"github.com/ppiankov/purgelogs/internal/event"
)

// LogSink turns purge events into structured log records.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink logging through logger, or slog.Default() when nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Emit implements event.Sink.
func (s *LogSink) Emit(e event.Event) {
	l := s.logger
	switch e.Kind {
	case event.KindWalking:
		l.Debug("walking", "dir", e.Path)
	case event.KindClassified:
		l.Debug("is a job dir", "dir", e.Path, "marker", e.Marker)
	case event.KindUnreadable:
		l.Warn("cannot read directory, skipping", "dir", e.Path, "error", e.Err)
	case event.KindVanished:
		l.Debug("job dir vanished", "dir", e.Path)
	case event.KindBuildsetProtected:
		l.Info("protecting latest successful buildset",
			"project", e.Project, "buildset", e.Buildset, "latest", e.ModTime)
	case event.KindProtected:
		l.Info("keeping protected job dir", "dir", e.Path, "buildset", e.Buildset, "mtime", e.ModTime)
	case event.KindKept:
		l.Debug("job dir is recent", "dir", e.Path, "mtime", e.ModTime)
	case event.KindSkippedRoot:
		l.Debug("not removing the log path dir itself", "dir", e.Path)
	case event.KindDeleted:
		l.Info("removed old logs", "dir", e.Path, "mtime", e.ModTime)
	case event.KindWouldDelete:
		l.Info("would remove old logs", "dir", e.Path, "mtime", e.ModTime, "dry_run", true)
	}
}
