package tui

import (
	"fmt"
	"strconv"

	"github.com/gdamore/tcell/v2"

	controllerMod "github.com/StephanGeberl/GCodeSender/controller"
	grblMod "github.com/StephanGeberl/GCodeSender/grbl"
	iFmt "github.com/StephanGeberl/GCodeSender/internal/fmt"
	"github.com/StephanGeberl/GCodeSender/position"
)

var valueColor = tcell.ColorOrange
var gcodeColor = tcell.ColorBlue

func acceptUFloat(textToCheck string, lastChar rune) bool {
	_, err := strconv.ParseFloat(textToCheck, 64)
	return err == nil
}

func sprintFloat(value float64, decimal uint) string {
	return fmt.Sprintf("[%s]%s[-]", valueColor, iFmt.SprintFloat(value, decimal))
}

func sprintCoordinate(value float64) string {
	return sprintFloat(value, 3)
}

func sprintInt(value int) string {
	return fmt.Sprintf("[%s]%d[-]", valueColor, value)
}

func sprintGcodeWord(word string) string {
	return fmt.Sprintf("[%s]%s[-]", gcodeColor, word)
}

// positionAxes gives X, Y and Z, plus rotary axes that are away from zero.
func positionAxes(p position.Position) []position.Axis {
	axes := []position.Axis{}
	for _, axis := range position.Axes {
		if axis == position.AxisA || axis == position.AxisB {
			if p.Get(axis) == 0 {
				continue
			}
		}
		axes = append(axes, axis)
	}
	return axes
}

func getMachineStateColor(state grblMod.State) tcell.Color {
	switch state {
	case grblMod.StateIdle:
		return tcell.ColorBlack
	case grblMod.StateRun:
		return tcell.ColorGreen
	case grblMod.StateHold:
		return tcell.ColorYellow
	case grblMod.StateJog:
		return tcell.ColorDarkGreen
	case grblMod.StateAlarm:
		return tcell.ColorRed
	case grblMod.StateDoor:
		return tcell.ColorOrange
	case grblMod.StateCheck:
		return tcell.ColorDarkCyan
	case grblMod.StateHome:
		return tcell.ColorLightGreen
	case grblMod.StateSleep:
		return tcell.ColorDarkBlue
	default:
		return tcell.ColorWhite
	}
}

func getConsoleColor(consoleType controllerMod.ConsoleType) tcell.Color {
	switch consoleType {
	case controllerMod.ConsoleError:
		return tcell.ColorRed
	case controllerMod.ConsoleVerbose:
		return tcell.ColorGray
	default:
		return tcell.ColorWhite
	}
}
