package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/fornellas/slogxt/log"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	controllerMod "github.com/StephanGeberl/GCodeSender/controller"
	grblMod "github.com/StephanGeberl/GCodeSender/grbl"
	"github.com/StephanGeberl/GCodeSender/position"
)

var unitInchesText = fmt.Sprintf("Inches[%s]G20[-]", gcodeColor)
var unitMillimetersText = fmt.Sprintf("Millimeters[%s]G21[-]", gcodeColor)
var unitOptions = []string{unitMillimetersText, unitInchesText}

func parseUnitOption(option string) position.Units {
	switch option {
	case unitInchesText:
		return position.UnitsInch
	case unitMillimetersText:
		return position.UnitsMM
	default:
		return position.UnitsUnknown
	}
}

type jogParameters struct {
	step     float64
	feedRate float64
	units    position.Units
}

func parseJogParameters(step, feedRate, unitOption string) (jogParameters, error) {
	params := jogParameters{units: parseUnitOption(unitOption)}
	var err error
	if params.step, err = strconv.ParseFloat(step, 64); err != nil || params.step <= 0 {
		return jogParameters{}, fmt.Errorf("invalid step: %#v", step)
	}
	if params.feedRate, err = strconv.ParseFloat(feedRate, 64); err != nil || params.feedRate <= 0 {
		return jogParameters{}, fmt.Errorf("invalid feed rate: %#v", feedRate)
	}
	if params.units == position.UnitsUnknown {
		return jogParameters{}, errors.New("no unit selected")
	}
	return params, nil
}

type JoggingPrimitive struct {
	*tview.Flex
	ctx                context.Context
	app                *tview.Application
	controller         Controller
	stepInputField     *tview.InputField
	feedRateInputField *tview.InputField
	unitDropDown       *tview.DropDown
	// Axis buttons; cancel stays enabled.
	buttons        []*tview.Button
	statusTextView *tview.TextView
}

func NewJoggingPrimitive(
	ctx context.Context,
	app *tview.Application,
	controller Controller,
) *JoggingPrimitive {
	ctx, _ = log.MustWithGroup(ctx, "JoggingPrimitive")
	jp := &JoggingPrimitive{
		ctx:        ctx,
		app:        app,
		controller: controller,
	}

	jp.stepInputField = tview.NewInputField().
		SetLabel("Step:").
		SetText("1").
		SetAcceptanceFunc(acceptUFloat)
	jp.feedRateInputField = tview.NewInputField().
		SetLabel("Feed:").
		SetText("500").
		SetAcceptanceFunc(acceptUFloat)
	jp.unitDropDown = tview.NewDropDown().
		SetLabel("Unit:").
		SetOptions(unitOptions, nil).
		SetCurrentOption(0)

	axesFlex := tview.NewFlex()
	axesFlex.SetDirection(tview.FlexColumn)
	for _, axis := range []position.Axis{position.AxisX, position.AxisY, position.AxisZ} {
		for _, direction := range []int{-1, 1} {
			label := fmt.Sprintf("%s-", axis)
			if direction > 0 {
				label = fmt.Sprintf("%s+", axis)
			}
			button := tview.NewButton(label).SetSelectedFunc(func() {
				jp.jog(controllerMod.JogDirections{axis: direction})
			})
			jp.buttons = append(jp.buttons, button)
			axesFlex.AddItem(button, 0, 1, false)
		}
	}
	cancelButton := tview.NewButton("Cancel").SetSelectedFunc(func() {
		jp.run("cancel", jp.controller.CancelSend)
	})
	axesFlex.AddItem(cancelButton, 0, 1, false)

	jp.statusTextView = tview.NewTextView().SetDynamicColors(true)

	joggingFlex := tview.NewFlex()
	joggingFlex.SetBorder(true)
	joggingFlex.SetTitle("Jogging")
	joggingFlex.SetDirection(tview.FlexRow)
	joggingFlex.AddItem(axesFlex, 1, 0, false)
	joggingFlex.AddItem(jp.stepInputField, 1, 0, false)
	joggingFlex.AddItem(jp.feedRateInputField, 1, 0, false)
	joggingFlex.AddItem(jp.unitDropDown, 1, 0, false)
	joggingFlex.AddItem(jp.statusTextView, 0, 1, false)
	jp.Flex = joggingFlex

	jp.setDisabled(controller.ControlState())

	return jp
}

func (jp *JoggingPrimitive) setError(err error) {
	jp.app.QueueUpdateDraw(func() {
		jp.statusTextView.SetText("")
		if err != nil {
			fmt.Fprintf(jp.statusTextView, "[%s]%s[-]", tcell.ColorRed, tview.Escape(err.Error()))
		}
	})
}

func (jp *JoggingPrimitive) run(name string, fn func(context.Context) error) {
	go func() {
		err := fn(jp.ctx)
		if err != nil {
			log.MustLogger(jp.ctx).Error("Jogging failed", "action", name, "err", err)
		}
		jp.setError(err)
	}()
}

func (jp *JoggingPrimitive) jog(directions controllerMod.JogDirections) {
	_, unitOption := jp.unitDropDown.GetCurrentOption()
	params, err := parseJogParameters(jp.stepInputField.GetText(), jp.feedRateInputField.GetText(), unitOption)
	if err != nil {
		jp.statusTextView.SetText(fmt.Sprintf("[%s]%s[-]", tcell.ColorRed, tview.Escape(err.Error())))
		return
	}
	jp.run("jog", func(ctx context.Context) error {
		return jp.controller.JogMachine(ctx, directions, params.step, params.feedRate, params.units)
	})
}

// setDisabled must be called from the application goroutine.
func (jp *JoggingPrimitive) setDisabled(controlState controllerMod.ControlState) {
	disabled := controlState != controllerMod.ControlStateIdle
	for _, button := range jp.buttons {
		button.SetDisabled(disabled)
	}
}

func (jp *JoggingPrimitive) ProcessEvent(ctx context.Context, event controllerMod.Event) {
	switch e := event.(type) {
	case controllerMod.StateChangeEvent:
		jp.app.QueueUpdateDraw(func() {
			jp.setDisabled(e.State)
		})
	case controllerMod.AlarmEvent:
		jp.setError(fmt.Errorf("alarm: %s", e.Alarm))
	case controllerMod.StatusEvent:
		if e.Status.State == grblMod.StateJog {
			jp.setError(nil)
		}
	}
}
