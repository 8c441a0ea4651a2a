package tui

import (
	"context"
	"fmt"

	"github.com/fornellas/slogxt/log"
	"github.com/rivo/tview"

	controllerMod "github.com/StephanGeberl/GCodeSender/controller"
)

// ConsolePrimitive shows controller console messages, sent commands and logs.
type ConsolePrimitive struct {
	*tview.TextView
	app *tview.Application
}

func NewConsolePrimitive(
	ctx context.Context,
	app *tview.Application,
) *ConsolePrimitive {
	cp := &ConsolePrimitive{
		app: app,
	}
	_, logger := log.MustWithGroup(ctx, "ConsolePrimitive")

	textView := tview.NewTextView()
	textView.SetBorder(true)
	textView.SetTitle("Console")
	textView.SetDynamicColors(true)
	textView.SetScrollable(true)
	textView.SetWrap(true)
	textView.SetMaxLines(2000)
	textView.SetChangedFunc(func() {
		logger.Debug("SetChangedFunc")
		textView.ScrollToEnd()
		cp.app.Draw()
	})
	cp.TextView = textView

	return cp
}

// formatConsoleEvent gives the console line for event, or false when the event is not shown.
func formatConsoleEvent(event controllerMod.Event) (string, bool) {
	switch e := event.(type) {
	case controllerMod.ConsoleEvent:
		return fmt.Sprintf("[%s]%s[-]", getConsoleColor(e.Type), tview.Escape(e.Message)), true
	case controllerMod.CommandSentEvent:
		return sprintGcodeWord(tview.Escape(e.Command.Command)), true
	case controllerMod.CommandCommentEvent:
		return fmt.Sprintf("[%s]%s[-]", getConsoleColor(controllerMod.ConsoleVerbose), tview.Escape(e.Comment)), true
	case controllerMod.StreamCompleteEvent:
		if e.Success {
			return fmt.Sprintf("Stream complete: %s", tview.Escape(e.Stats.String())), true
		}
		return fmt.Sprintf(
			"[%s]Stream complete with errors: %s[-]",
			getConsoleColor(controllerMod.ConsoleError), tview.Escape(e.Stats.String()),
		), true
	}
	return "", false
}

func (cp *ConsolePrimitive) ProcessEvent(ctx context.Context, event controllerMod.Event) {
	line, ok := formatConsoleEvent(event)
	if !ok {
		return
	}
	fmt.Fprintf(cp.TextView, "%s\n", line)
}
