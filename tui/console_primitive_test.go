package tui

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/require"

	controllerMod "github.com/StephanGeberl/GCodeSender/controller"
	"github.com/StephanGeberl/GCodeSender/position"
)

func TestFormatConsoleEvent(t *testing.T) {
	for _, tc := range []struct {
		name     string
		event    controllerMod.Event
		expected string
		ok       bool
	}{
		{
			name:     "info",
			event:    controllerMod.ConsoleEvent{Type: controllerMod.ConsoleInfo, Message: "Grbl version = 1.1f"},
			expected: fmt.Sprintf("[%s]Grbl version = 1.1f[-]", tcell.ColorWhite),
			ok:       true,
		},
		{
			name:     "error escapes brackets",
			event:    controllerMod.ConsoleEvent{Type: controllerMod.ConsoleError, Message: "[MSG:Reset to continue]"},
			expected: fmt.Sprintf("[%s][MSG:Reset to continue[][-]", tcell.ColorRed),
			ok:       true,
		},
		{
			name:     "sent",
			event:    controllerMod.CommandSentEvent{Command: controllerMod.GcodeCommand{Command: "G0X1"}},
			expected: sprintGcodeWord("G0X1"),
			ok:       true,
		},
		{
			name:  "probe is not shown",
			event: controllerMod.ProbeEvent{Position: position.NewPosition(0, 0, 0, position.UnitsMM)},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			line, ok := formatConsoleEvent(tc.event)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.expected, line)
		})
	}
}

func TestViewLogHandler(t *testing.T) {
	var original, view bytes.Buffer
	handler := NewViewLogHandler(
		slog.NewTextHandler(&original, &slog.HandlerOptions{Level: slog.LevelWarn}),
		&view,
		slog.LevelInfo,
	)
	logger := slog.New(handler).WithGroup("Watch")

	logger.Debug("hidden")
	require.Empty(t, original.String())
	require.Empty(t, view.String())

	logger.Info("connected")
	require.Empty(t, original.String())
	require.Contains(t, view.String(), "connected")

	logger.Warn("slow")
	require.Contains(t, original.String(), "slow")
	require.Contains(t, view.String(), "slow")

	require.True(t, handler.Enabled(context.Background(), slog.LevelInfo))
	require.False(t, handler.Enabled(context.Background(), slog.LevelDebug))
}
