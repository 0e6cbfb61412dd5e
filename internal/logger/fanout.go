package logger

import (
	"context"
	"errors"
	"log/slog"
)

// Fanout sends each record to every handler enabled for its level.
type Fanout struct {
	handlers []slog.Handler
}

func NewFanout(handlers ...slog.Handler) *Fanout {
	return &Fanout{handlers: handlers}
}

func (f *Fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle keeps going when one sink fails and reports every failure.
func (f *Fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		derived[i] = h.WithAttrs(attrs)
	}
	return &Fanout{handlers: derived}
}

func (f *Fanout) WithGroup(name string) slog.Handler {
	derived := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		derived[i] = h.WithGroup(name)
	}
	return &Fanout{handlers: derived}
}
