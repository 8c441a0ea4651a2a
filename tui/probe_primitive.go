package tui

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/fornellas/slogxt/log"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	controllerMod "github.com/StephanGeberl/GCodeSender/controller"
	"github.com/StephanGeberl/GCodeSender/position"
)

var probeAxisOptions = []string{
	position.AxisZ.String(), position.AxisX.String(), position.AxisY.String(),
}

type ProbePrimitive struct {
	*tview.Flex
	ctx                context.Context
	app                *tview.Application
	controller         Controller
	axisDropDown       *tview.DropDown
	feedRateInputField *tview.InputField
	distanceInputField *tview.InputField
	unitDropDown       *tview.DropDown
	probeButton        *tview.Button
	resultTextView     *tview.TextView
}

func NewProbePrimitive(
	ctx context.Context,
	app *tview.Application,
	controller Controller,
) *ProbePrimitive {
	ctx, _ = log.MustWithGroup(ctx, "ProbePrimitive")
	pp := &ProbePrimitive{
		ctx:        ctx,
		app:        app,
		controller: controller,
	}

	pp.axisDropDown = tview.NewDropDown().
		SetLabel("Axis:").
		SetOptions(probeAxisOptions, nil).
		SetCurrentOption(0)
	pp.feedRateInputField = tview.NewInputField().
		SetLabel("Feed:").
		SetText("100").
		SetAcceptanceFunc(acceptUFloat)
	// Negative distances probe toward the piece along the negative direction.
	pp.distanceInputField = tview.NewInputField().
		SetLabel("Distance:").
		SetText("-10").
		SetAcceptanceFunc(func(textToCheck string, lastChar rune) bool {
			return textToCheck == "-" || acceptUFloat(textToCheck, lastChar)
		})
	pp.unitDropDown = tview.NewDropDown().
		SetLabel("Unit:").
		SetOptions(unitOptions, nil).
		SetCurrentOption(0)
	pp.probeButton = tview.NewButton("Probe").SetSelectedFunc(pp.probe)
	pp.resultTextView = tview.NewTextView().SetDynamicColors(true)

	rootFlex := tview.NewFlex()
	rootFlex.SetBorder(true)
	rootFlex.SetTitle("Probe")
	rootFlex.SetDirection(tview.FlexRow)
	rootFlex.AddItem(pp.axisDropDown, 1, 0, false)
	rootFlex.AddItem(pp.feedRateInputField, 1, 0, false)
	rootFlex.AddItem(pp.distanceInputField, 1, 0, false)
	rootFlex.AddItem(pp.unitDropDown, 1, 0, false)
	rootFlex.AddItem(pp.probeButton, 1, 0, false)
	rootFlex.AddItem(pp.resultTextView, 0, 1, false)
	pp.Flex = rootFlex

	pp.probeButton.SetDisabled(controller.ControlState() != controllerMod.ControlStateIdle)

	return pp
}

func (pp *ProbePrimitive) probe() {
	_, axisOption := pp.axisDropDown.GetCurrentOption()
	axis, err := position.ParseAxis(axisOption)
	if err != nil {
		pp.resultTextView.SetText(fmt.Sprintf("[%s]%s[-]", tcell.ColorRed, tview.Escape(err.Error())))
		return
	}
	feedRate, err := strconv.ParseFloat(pp.feedRateInputField.GetText(), 64)
	if err != nil {
		pp.resultTextView.SetText(fmt.Sprintf("[%s]invalid feed rate[-]", tcell.ColorRed))
		return
	}
	distance, err := strconv.ParseFloat(pp.distanceInputField.GetText(), 64)
	if err != nil {
		pp.resultTextView.SetText(fmt.Sprintf("[%s]invalid distance[-]", tcell.ColorRed))
		return
	}
	_, unitOption := pp.unitDropDown.GetCurrentOption()
	units := parseUnitOption(unitOption)

	pp.resultTextView.SetText("")
	go func() {
		if err := pp.controller.Probe(pp.ctx, axis, feedRate, distance, units); err != nil {
			log.MustLogger(pp.ctx).Error("Probe failed", "err", err)
			pp.app.QueueUpdateDraw(func() {
				pp.resultTextView.SetText(fmt.Sprintf("[%s]%s[-]", tcell.ColorRed, tview.Escape(err.Error())))
			})
		}
	}()
}

func writeProbeResult(w io.Writer, event controllerMod.ProbeEvent) {
	if !event.Success {
		fmt.Fprintf(w, "[%s]Probe failed[-]\n", tcell.ColorRed)
	}
	for _, axis := range positionAxes(event.Position) {
		fmt.Fprintf(w, "%s:%s ", axis, sprintCoordinate(event.Position.Get(axis)))
	}
	fmt.Fprintf(w, "(%s)\n", event.Position.Units)
}

func (pp *ProbePrimitive) ProcessEvent(ctx context.Context, event controllerMod.Event) {
	switch e := event.(type) {
	case controllerMod.StateChangeEvent:
		pp.app.QueueUpdateDraw(func() {
			pp.probeButton.SetDisabled(e.State != controllerMod.ControlStateIdle)
		})
	case controllerMod.ProbeEvent:
		pp.app.QueueUpdateDraw(func() {
			pp.resultTextView.Clear()
			writeProbeResult(pp.resultTextView, e)
		})
	}
}
