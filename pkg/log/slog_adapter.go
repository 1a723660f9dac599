package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes trace events to an slog.Logger at Debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("session", event.SessionID),
		slog.String("source", event.Source.String()),
		slog.String("category", event.Category.String()),
	}
	if event.ClientID != "" {
		attrs = append(attrs, slog.String("client", event.ClientID))
	}

	switch {
	case event.StateChange != nil:
		sc := event.StateChange
		attrs = append(attrs,
			slog.String("entity", sc.Entity.String()),
			slog.Int("old", sc.Old),
			slog.Int("new", sc.New),
		)
		if sc.NewName != "" {
			attrs = append(attrs, slog.String("new_name", sc.NewName))
		}
		if sc.Entity == StateEntitySupported {
			attrs = append(attrs, slog.Any("supported", sc.Supported))
		}
		if sc.Reason != "" {
			attrs = append(attrs, slog.String("reason", sc.Reason))
		}
	case event.Request != nil:
		attrs = append(attrs,
			slog.String("token", event.Request.Token),
			slog.Int("state", event.Request.State),
			slog.String("action", event.Request.Action.String()),
		)
		if event.Request.Flags != 0 {
			attrs = append(attrs, slog.Uint64("flags", uint64(event.Request.Flags)))
		}
		if event.Request.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.Request.Reason))
		}
	case event.Policy != nil:
		attrs = append(attrs,
			slog.String("phase", event.Policy.Phase.String()),
			slog.Int("state", event.Policy.State),
			slog.Uint64("seq", event.Policy.Sequence),
		)
		if event.Policy.Elapsed != nil {
			attrs = append(attrs, slog.Duration("elapsed", *event.Policy.Elapsed))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("operation", event.Error.Operation),
			slog.String("error", event.Error.Message),
		)
		if event.Error.State != nil {
			attrs = append(attrs, slog.Int("state", *event.Error.State))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "devstate", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
