package position

import (
	"errors"
	"fmt"
	"strings"

	iFmt "github.com/StephanGeberl/GCodeSender/internal/fmt"
)

var ErrAxisNotSet = errors.New("axis not set")

// PartialPosition is a Position where only some axes are set. It is used for jogging and for
// setting work offsets, where untouched axes must not be sent.
type PartialPosition struct {
	values [5]float64
	set    [5]bool
	units  Units
}

func NewPartialPosition(units Units) PartialPosition {
	return PartialPosition{units: units}
}

// PartialFromPosition returns a PartialPosition with all axes of p set.
func PartialFromPosition(p Position) PartialPosition {
	pp := NewPartialPosition(p.Units)
	for _, axis := range Axes {
		pp = pp.With(axis, p.Get(axis))
	}
	return pp
}

func (pp PartialPosition) Units() Units {
	return pp.units
}

// With returns a copy of pp with axis set.
func (pp PartialPosition) With(axis Axis, value float64) PartialPosition {
	pp.values[axis] = value
	pp.set[axis] = true
	return pp
}

func (pp PartialPosition) Has(axis Axis) bool {
	return pp.set[axis]
}

func (pp PartialPosition) Get(axis Axis) (float64, error) {
	if !pp.set[axis] {
		return 0, fmt.Errorf("%s: %w", axis, ErrAxisNotSet)
	}
	return pp.values[axis], nil
}

// Axes returns the set axes, in wire order.
func (pp PartialPosition) Axes() []Axis {
	axes := []Axis{}
	for _, axis := range Axes {
		if pp.set[axis] {
			axes = append(axes, axis)
		}
	}
	return axes
}

func (pp PartialPosition) IsEmpty() bool {
	return len(pp.Axes()) == 0
}

// In converts all set axes to units.
func (pp PartialPosition) In(units Units) PartialPosition {
	if pp.units == UnitsUnknown || units == UnitsUnknown {
		return pp
	}
	scale := ScaleUnits(pp.units, units)
	converted := NewPartialPosition(units)
	for _, axis := range pp.Axes() {
		converted = converted.With(axis, pp.values[axis]*scale)
	}
	return converted
}

// Gcode formats set axes as G-code words, eg: "X10Y-2.5".
func (pp PartialPosition) Gcode() string {
	var b strings.Builder
	for _, axis := range pp.Axes() {
		b.WriteString(iFmt.SprintWord(axis.String(), pp.values[axis], 4))
	}
	return b.String()
}

func (pp PartialPosition) String() string {
	return fmt.Sprintf("%s %s", pp.Gcode(), pp.units)
}
