package tui

import (
	"context"
	"log/slog"

	"github.com/fornellas/slogxt/log"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	controllerMod "github.com/StephanGeberl/GCodeSender/controller"
	grblMod "github.com/StephanGeberl/GCodeSender/grbl"
	"github.com/StephanGeberl/GCodeSender/position"
)

// Controller is what the watch UI needs from *controller.Controller.
type Controller interface {
	Subscribe(name string, size int) <-chan controllerMod.Event
	Unsubscribe(name string)
	Done() <-chan struct{}
	ControlState() controllerMod.ControlState
	Status() grblMod.ControllerStatus
	SendLine(ctx context.Context, line string) error
	SendOverride(ctx context.Context, override grblMod.Override) error
	JogMachine(
		ctx context.Context, directions controllerMod.JogDirections, step, feedRate float64, units position.Units,
	) error
	Probe(ctx context.Context, axis position.Axis, feedRate, distance float64, units position.Units) error
	CancelSend(ctx context.Context) error
	SoftReset(ctx context.Context) error
	PerformHomingCycle(ctx context.Context) error
	KillAlarmLock(ctx context.Context) error
	ToggleCheckMode(ctx context.Context) error
	PauseStreaming(ctx context.Context) error
	ResumeStreaming(ctx context.Context) error
}

var _ Controller = (*controllerMod.Controller)(nil)

type eventProcessor interface {
	ProcessEvent(ctx context.Context, event controllerMod.Event)
}

// Watch is an interactive terminal UI showing the controller state, with jogging, probing and
// override controls.
type Watch struct {
	controller Controller
	logLevel   slog.Level
}

func NewWatch(controller Controller, logLevel slog.Level) *Watch {
	return &Watch{
		controller: controller,
		logLevel:   logLevel,
	}
}

func (w *Watch) action(ctx context.Context, name string, fn func(context.Context) error) func() {
	return func() {
		go func() {
			if err := fn(ctx); err != nil {
				log.MustLogger(ctx).Error("Action failed", "action", name, "err", err)
			}
		}()
	}
}

func (w *Watch) newCommandInputField(ctx context.Context) *tview.InputField {
	inputField := tview.NewInputField().
		SetLabel("Command: ")
	inputField.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEscape:
			inputField.SetText("")
		case tcell.KeyEnter:
			command := inputField.GetText()
			if command == "" {
				return
			}
			inputField.SetText("")
			w.action(ctx, "send", func(ctx context.Context) error {
				return w.controller.SendLine(ctx, command)
			})()
		}
	})
	return inputField
}

func (w *Watch) newButtonsFlex(ctx context.Context) *tview.Flex {
	buttonsFlex := tview.NewFlex()
	buttonsFlex.SetTitle("Commands")
	buttonsFlex.SetBorder(true)
	buttonsFlex.SetDirection(tview.FlexRow)
	for _, button := range []struct {
		label string
		fn    func(context.Context) error
	}{
		{"Homing", w.controller.PerformHomingCycle},
		{"Unlock", w.controller.KillAlarmLock},
		{"Check", w.controller.ToggleCheckMode},
		{"Hold", w.controller.PauseStreaming},
		{"Resume", w.controller.ResumeStreaming},
		{"Cancel", w.controller.CancelSend},
		{"Reset", w.controller.SoftReset},
	} {
		buttonsFlex.AddItem(tview.NewButton(button.label).SetSelectedFunc(w.action(ctx, button.label, button.fn)), 1, 0, false)
	}
	return buttonsFlex
}

// Run blocks until ctx is done, the controller disconnects or the user quits.
func (w *Watch) Run(ctx context.Context) error {
	ctx, logger := log.MustWithGroup(ctx, "Watch")

	app := tview.NewApplication()
	app.EnableMouse(true)

	consolePrimitive := NewConsolePrimitive(ctx, app)
	ctx = log.WithLogger(ctx, slog.New(NewViewLogHandler(logger.Handler(), consolePrimitive, w.logLevel)))

	statusPrimitive := NewStatusPrimitive(ctx, app, w.controller.ControlState(), w.controller.Status())
	joggingPrimitive := NewJoggingPrimitive(ctx, app, w.controller)
	probePrimitive := NewProbePrimitive(ctx, app, w.controller)
	overridesPrimitive := NewOverridesPrimitive(ctx, w.controller)
	processors := []eventProcessor{statusPrimitive, consolePrimitive, joggingPrimitive, probePrimitive}

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlX:
			w.action(ctx, "soft reset", w.controller.SoftReset)()
			return nil
		case tcell.KeyCtrlC:
			app.Stop()
			return nil
		}
		return event
	})

	controlsFlex := tview.NewFlex()
	controlsFlex.SetDirection(tview.FlexRow)
	controlsFlex.AddItem(joggingPrimitive, 0, 1, false)
	controlsFlex.AddItem(probePrimitive, 0, 1, false)
	controlsFlex.AddItem(overridesPrimitive, 0, 1, false)

	consoleFlex := tview.NewFlex()
	consoleFlex.SetDirection(tview.FlexRow)
	consoleFlex.AddItem(consolePrimitive, 0, 1, false)
	consoleFlex.AddItem(w.newCommandInputField(ctx), 1, 0, true)

	mainFlex := tview.NewFlex()
	mainFlex.SetDirection(tview.FlexColumn)
	mainFlex.AddItem(statusPrimitive, statusPrimitive.FixedSize(), 0, false)
	mainFlex.AddItem(consoleFlex, 0, 2, true)
	mainFlex.AddItem(controlsFlex, 0, 1, false)
	mainFlex.AddItem(w.newButtonsFlex(ctx), 12, 0, false)

	app.SetRoot(mainFlex, true)

	events := w.controller.Subscribe("watch", 1000)
	defer w.controller.Unsubscribe("watch")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		defer app.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.controller.Done():
				logger.Info("Controller disconnected")
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				for _, processor := range processors {
					processor.ProcessEvent(ctx, event)
				}
			}
		}
	}()

	return app.Run()
}
