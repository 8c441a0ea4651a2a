package gcode

import (
	"errors"
	"strings"

	"github.com/StephanGeberl/GCodeSender/position"
)

var errNeedsZ = errors.New("G43.1 requires Z argument")

// ModalState tracks the modal groups Grbl keeps between blocks.
// See https://github.com/gnea/grbl/wiki/Grbl-v1.1-Commands
type ModalState struct {
	// Motion (Group 1)
	Motion string
	// Plane selection (Group 2)
	Plane string
	// Distance Mode (Group 3)
	DistanceMode string
	// Feed Rate Mode (Group 5)
	FeedRateMode string
	// Units (Group 6)
	Units string
	// Coordinate System Select (Group 12)
	CoordinateSystem string
	Spindle          string
	Coolant          string
	// G43.1 offset, when active
	ToolLengthOffset *float64
}

// DefaultModalState holds Grbl power-on modal state.
func DefaultModalState() ModalState {
	return ModalState{
		Motion:           "G0",
		Plane:            "G17",
		DistanceMode:     "G90",
		FeedRateMode:     "G94",
		Units:            "G21",
		CoordinateSystem: "G54",
		Spindle:          "M5",
		Coolant:          "M9",
	}
}

//gocyclo:ignore
func (m *ModalState) updateFromWord(command string) {
	switch command {
	case "G0", "G1", "G2", "G3", "G38.2", "G38.3", "G38.4", "G38.5", "G80":
		m.Motion = command
	case "G17", "G18", "G19":
		m.Plane = command
	case "G90", "G91":
		m.DistanceMode = command
	case "G93", "G94":
		m.FeedRateMode = command
	case "G20", "G21":
		m.Units = command
	case "G49":
		m.ToolLengthOffset = nil
	case "G54", "G55", "G56", "G57", "G58", "G59":
		m.CoordinateSystem = command
	case "M3", "M4", "M5":
		m.Spindle = command
	case "M7", "M8", "M9":
		m.Coolant = command
	}
}

// Update applies the modal commands of block. System blocks leave the state untouched, except
// for jogging ($J=) which is modal-free by definition.
func (m *ModalState) Update(block Block) error {
	if block.IsSystem() {
		return nil
	}
	for _, word := range block.Commands() {
		command := word.NormalizedString()
		if command == "G43.1" {
			z, ok, err := block.Argument('Z')
			if err != nil {
				return err
			}
			if !ok {
				return errNeedsZ
			}
			m.ToolLengthOffset = &z
			continue
		}
		m.updateFromWord(command)
	}
	return nil
}

// UpdateFromLine parses line and applies it.
func (m *ModalState) UpdateFromLine(line string) error {
	parsed, err := ParseLine(line)
	if err != nil {
		return err
	}
	return m.Update(parsed.Block)
}

// IsRelative tells whether G91 is active.
func (m ModalState) IsRelative() bool {
	return m.DistanceMode == "G91"
}

func (m ModalState) PositionUnits() position.Units {
	switch m.Units {
	case "G20":
		return position.UnitsInch
	case "G21":
		return position.UnitsMM
	}
	return position.UnitsUnknown
}

// Restore returns a block that re-establishes the distance mode, units, plane, feed rate mode
// and coordinate system.
func (m ModalState) Restore() string {
	words := []string{}
	for _, w := range []string{m.DistanceMode, m.Units, m.Plane, m.FeedRateMode, m.CoordinateSystem} {
		if w != "" {
			words = append(words, w)
		}
	}
	return strings.Join(words, " ")
}

func (m ModalState) String() string {
	words := []string{m.Motion, m.CoordinateSystem, m.Plane, m.Units, m.DistanceMode, m.FeedRateMode, m.Spindle, m.Coolant}
	return strings.Join(words, " ")
}
