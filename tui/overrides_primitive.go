package tui

import (
	"context"

	"github.com/fornellas/slogxt/log"
	"github.com/rivo/tview"

	grblMod "github.com/StephanGeberl/GCodeSender/grbl"
)

type overrideButton struct {
	label    string
	override grblMod.Override
}

var overrideGroups = []struct {
	title   string
	buttons []overrideButton
}{
	{"Feed", []overrideButton{
		{"-10%", grblMod.OverrideFeedCoarseMinus},
		{"-1%", grblMod.OverrideFeedFineMinus},
		{"100%", grblMod.OverrideFeedReset},
		{"+1%", grblMod.OverrideFeedFinePlus},
		{"+10%", grblMod.OverrideFeedCoarsePlus},
	}},
	{"Rapid", []overrideButton{
		{"25%", grblMod.OverrideRapidLow},
		{"50%", grblMod.OverrideRapidMedium},
		{"100%", grblMod.OverrideRapidReset},
	}},
	{"Spindle", []overrideButton{
		{"Stop", grblMod.OverrideToggleSpindle},
		{"-10%", grblMod.OverrideSpindleCoarseMinus},
		{"-1%", grblMod.OverrideSpindleFineMinus},
		{"100%", grblMod.OverrideSpindleReset},
		{"+1%", grblMod.OverrideSpindleFinePlus},
		{"+10%", grblMod.OverrideSpindleCoarsePlus},
	}},
	{"Coolant", []overrideButton{
		{"Flood", grblMod.OverrideToggleFloodCoolant},
		{"Mist", grblMod.OverrideToggleMistCoolant},
	}},
}

type OverridesPrimitive struct {
	*tview.Flex
}

func NewOverridesPrimitive(
	ctx context.Context,
	controller Controller,
) *OverridesPrimitive {
	ctx, _ = log.MustWithGroup(ctx, "OverridesPrimitive")

	overridesFlex := tview.NewFlex()
	overridesFlex.SetBorder(true)
	overridesFlex.SetTitle("Overrides")
	overridesFlex.SetDirection(tview.FlexRow)
	for _, group := range overrideGroups {
		groupFlex := tview.NewFlex()
		groupFlex.SetBorder(true)
		groupFlex.SetTitle(group.title)
		groupFlex.SetDirection(tview.FlexColumn)
		for _, button := range group.buttons {
			groupFlex.AddItem(tview.NewButton(button.label).SetSelectedFunc(func() {
				if err := controller.SendOverride(ctx, button.override); err != nil {
					log.MustLogger(ctx).Error("Override failed", "override", button.override.String(), "err", err)
				}
			}), 0, 1, false)
		}
		overridesFlex.AddItem(groupFlex, 0, 1, false)
	}

	return &OverridesPrimitive{Flex: overridesFlex}
}
