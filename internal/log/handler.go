package log

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// mirrorErrors controls whether error records are also sent to the console
// handler. Commands that own the terminal can switch it off.
var mirrorErrors atomic.Bool

func init() {
	mirrorErrors.Store(true)
}

func EnableErrorMirroring() {
	mirrorErrors.Store(true)
}

func DisableErrorMirroring() {
	mirrorErrors.Store(false)
}

// NewDualHandler sends every enabled record to primary and mirrors error
// records to secondary while mirroring is enabled.
func NewDualHandler(primary slog.Handler, secondary slog.Handler) slog.Handler {
	return &dualHandler{
		primary:   primary,
		secondary: secondary,
	}
}

type dualHandler struct {
	primary   slog.Handler
	secondary slog.Handler
}

func (h *dualHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.primary != nil && h.primary.Enabled(ctx, level) {
		return true
	}
	return h.shouldMirror(level) && h.secondary.Enabled(ctx, level)
}

func (h *dualHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.primary != nil && h.primary.Enabled(ctx, record.Level) {
		if err := h.primary.Handle(ctx, record); err != nil {
			return err
		}
	}

	if h.shouldMirror(record.Level) && h.secondary.Enabled(ctx, record.Level) {
		return h.secondary.Handle(ctx, record.Clone())
	}
	return nil
}

func (h *dualHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &dualHandler{
		primary:   withAttrs(h.primary, attrs),
		secondary: withAttrs(h.secondary, attrs),
	}
}

func (h *dualHandler) WithGroup(name string) slog.Handler {
	return &dualHandler{
		primary:   withGroup(h.primary, name),
		secondary: withGroup(h.secondary, name),
	}
}

func (h *dualHandler) shouldMirror(level slog.Level) bool {
	return h.secondary != nil && level >= slog.LevelError && mirrorErrors.Load()
}

func withAttrs(h slog.Handler, attrs []slog.Attr) slog.Handler {
	if h == nil {
		return nil
	}
	return h.WithAttrs(attrs)
}

func withGroup(h slog.Handler, name string) slog.Handler {
	if h == nil {
		return nil
	}
	return h.WithGroup(name)
}
