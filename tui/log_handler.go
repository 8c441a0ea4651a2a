package tui

import (
	"context"
	"io"
	"log/slog"

	"github.com/fornellas/slogxt/log"
)

// ViewLogHandler implements slog.Handler. Records go to the original handler, when it is
// enabled for them, and to a view.
type ViewLogHandler struct {
	originalHandler slog.Handler
	viewHandler     slog.Handler
}

func NewViewLogHandler(
	originalHandler slog.Handler,
	view io.Writer,
	level slog.Level,
) *ViewLogHandler {
	return &ViewLogHandler{
		originalHandler: originalHandler,
		viewHandler: log.NewTerminalLineHandler(view, &log.TerminalHandlerOptions{
			HandlerOptions: slog.HandlerOptions{
				Level: level,
			},
			NoColor: true,
		}),
	}
}

func (h *ViewLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.originalHandler.Enabled(ctx, level) || h.viewHandler.Enabled(ctx, level)
}

func (h *ViewLogHandler) Handle(ctx context.Context, record slog.Record) error {
	var err error
	if h.originalHandler.Enabled(ctx, record.Level) {
		err = h.originalHandler.Handle(ctx, record.Clone())
	}
	if h.viewHandler.Enabled(ctx, record.Level) {
		if viewErr := h.viewHandler.Handle(ctx, record); viewErr != nil {
			return viewErr
		}
	}
	return err
}

func (h *ViewLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ViewLogHandler{
		originalHandler: h.originalHandler.WithAttrs(attrs),
		viewHandler:     h.viewHandler.WithAttrs(attrs),
	}
}

func (h *ViewLogHandler) WithGroup(name string) slog.Handler {
	return &ViewLogHandler{
		originalHandler: h.originalHandler.WithGroup(name),
		viewHandler:     h.viewHandler.WithGroup(name),
	}
}

var _ slog.Handler = (*ViewLogHandler)(nil)
