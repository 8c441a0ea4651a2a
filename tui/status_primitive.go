package tui

import (
	"context"
	"fmt"
	"io"

	"github.com/fornellas/slogxt/log"
	"github.com/rivo/tview"

	controllerMod "github.com/StephanGeberl/GCodeSender/controller"
	grblMod "github.com/StephanGeberl/GCodeSender/grbl"
	"github.com/StephanGeberl/GCodeSender/position"
)

type StatusPrimitive struct {
	*tview.Flex
	app            *tview.Application
	stateTextView  *tview.TextView
	statusTextView *tview.TextView
	controlState   controllerMod.ControlState
	status         grblMod.ControllerStatus
}

func NewStatusPrimitive(
	ctx context.Context,
	app *tview.Application,
	controlState controllerMod.ControlState,
	status grblMod.ControllerStatus,
) *StatusPrimitive {
	sp := &StatusPrimitive{
		app:          app,
		controlState: controlState,
		status:       status,
	}

	ctx, _ = log.MustWithGroup(ctx, "StatusPrimitive")

	sp.newStateTextView(ctx)
	sp.newStatusTextView(ctx)

	statusFlex := tview.NewFlex()
	statusFlex.SetDirection(tview.FlexRow)
	statusFlex.AddItem(sp.stateTextView, 5, 0, false)
	statusFlex.AddItem(sp.statusTextView, 0, 1, false)
	sp.Flex = statusFlex

	sp.update()

	return sp
}

func (sp *StatusPrimitive) FixedSize() int {
	return 18
}

func (sp *StatusPrimitive) newStateTextView(ctx context.Context) {
	_, logger := log.MustWithGroup(ctx, "StateTextView")
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetTextAlign(tview.AlignCenter).
		SetWrap(true)
	textView.SetBorder(true).SetTitle("State")
	textView.SetChangedFunc(func() {
		logger.Debug("SetChangedFunc")
	})
	sp.stateTextView = textView
}

func (sp *StatusPrimitive) newStatusTextView(ctx context.Context) {
	_, logger := log.MustWithGroup(ctx, "StatusTextView")
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(true)
	textView.SetBorder(true).SetTitle("Status")
	textView.SetChangedFunc(func() {
		logger.Debug("SetChangedFunc")
		textView.ScrollToBeginning()
	})
	sp.statusTextView = textView
}

// update must be called from the application goroutine.
func (sp *StatusPrimitive) update() {
	sp.stateTextView.Clear()
	sp.stateTextView.SetBackgroundColor(getMachineStateColor(sp.status.State))
	writeState(sp.stateTextView, sp.controlState, sp.status)

	sp.statusTextView.Clear()
	writeStatus(sp.statusTextView, sp.status)
}

// ProcessEvent updates the view from StateChangeEvent and StatusEvent, ignoring anything else.
func (sp *StatusPrimitive) ProcessEvent(ctx context.Context, event controllerMod.Event) {
	_, logger := log.MustWithGroup(ctx, "StatusPrimitive.ProcessEvent")
	switch e := event.(type) {
	case controllerMod.StateChangeEvent:
		logger.Debug("Before QueueUpdateDraw")
		sp.app.QueueUpdateDraw(func() {
			sp.controlState = e.State
			sp.update()
		})
	case controllerMod.StatusEvent:
		logger.Debug("Before QueueUpdateDraw")
		sp.app.QueueUpdateDraw(func() {
			sp.status = e.Status
			sp.update()
		})
	}
}

func writeState(w io.Writer, controlState controllerMod.ControlState, status grblMod.ControllerStatus) {
	stateString := status.StateString
	if stateString == "" {
		stateString = status.State.String()
	}
	fmt.Fprintf(w, "%s\n", tview.Escape(stateString))
	if subState := status.SubStateString(); len(subState) > 0 {
		fmt.Fprintf(w, "(%s)\n", tview.Escape(subState))
	}
	fmt.Fprintf(w, "%s\n", controlState)
}

func writePosition(w io.Writer, title string, p position.Position) {
	fmt.Fprintf(w, "%s (%s)\n", title, p.Units)
	for _, axis := range positionAxes(p) {
		fmt.Fprintf(w, "%s:%s\n", axis, sprintCoordinate(p.Get(axis)))
	}
}

//gocyclo:ignore
func writeStatus(w io.Writer, status grblMod.ControllerStatus) {
	writePosition(w, "Work", status.WorkCoord)
	fmt.Fprint(w, "\n")
	writePosition(w, "Machine", status.MachineCoord)

	if status.MachineMode != "" {
		fmt.Fprintf(w, "\nMode:%s\n", tview.Escape(status.MachineMode))
	}

	if status.Buffer != nil {
		fmt.Fprint(w, "\nBuffer\n")
		fmt.Fprintf(w, "Blocks:%s\n", sprintInt(status.Buffer.AvailableBlocks))
		fmt.Fprintf(w, "Bytes:%s\n", sprintInt(status.Buffer.AvailableBytes))
	}

	if status.LineNumber != nil {
		fmt.Fprintf(w, "\nLine:%s\n", sprintInt(*status.LineNumber))
	}

	if status.FeedSpeed != 0 {
		fmt.Fprintf(w, "\nFeed:%s\n", sprintFloat(status.FeedSpeed, 0))
	}
	if status.SpindleSpeed != 0 {
		fmt.Fprintf(w, "Speed:%s\n", sprintFloat(status.SpindleSpeed, 0))
	}

	if pins := status.Pins.String(); pins != "" {
		fmt.Fprintf(w, "\nPin:%s\n", tview.Escape(pins))
	}

	if status.Overrides.HasOverride() {
		fmt.Fprint(w, "\nOverrides\n")
		if status.Overrides.Feed != 100 {
			fmt.Fprintf(w, "Feed:%d%%\n", status.Overrides.Feed)
		}
		if status.Overrides.Rapids != 100 {
			fmt.Fprintf(w, "Rapids:%d%%\n", status.Overrides.Rapids)
		}
		if status.Overrides.Spindle != 100 {
			fmt.Fprintf(w, "Spindle:%d%%\n", status.Overrides.Spindle)
		}
	}

	accessories := status.Accessories
	if accessories != (grblMod.AccessoryState{}) {
		fmt.Fprint(w, "\nAccessory\n")
		if accessories.SpindleCW {
			fmt.Fprint(w, "Spindle: CW\n")
		}
		if accessories.SpindleCCW {
			fmt.Fprint(w, "Spindle: CCW\n")
		}
		if accessories.FloodCoolant {
			fmt.Fprint(w, "Flood Coolant\n")
		}
		if accessories.MistCoolant {
			fmt.Fprint(w, "Mist Coolant\n")
		}
	}
}
