package position

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Position is a 5 axis coordinate tagged with its units.
type Position struct {
	X     float64
	Y     float64
	Z     float64
	A     float64
	B     float64
	Units Units
}

func NewPosition(x, y, z float64, units Units) Position {
	return Position{X: x, Y: y, Z: z, Units: units}
}

// ParsePosition parses 3 to 5 comma separated values (X,Y,Z[,A[,B]]), as reported by Grbl.
func ParsePosition(csv string, units Units) (Position, error) {
	values := strings.Split(csv, ",")
	if len(values) < 3 || len(values) > 5 {
		return Position{}, fmt.Errorf("position malformed: %#v", csv)
	}
	p := Position{Units: units}
	for i, value := range values {
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return Position{}, fmt.Errorf("position %s invalid: %#v", Axes[i], value)
		}
		p = p.With(Axes[i], f)
	}
	return p, nil
}

// Get returns the value of the given axis.
func (p Position) Get(axis Axis) float64 {
	switch axis {
	case AxisX:
		return p.X
	case AxisY:
		return p.Y
	case AxisZ:
		return p.Z
	case AxisA:
		return p.A
	case AxisB:
		return p.B
	}
	panic(fmt.Sprintf("bug: invalid axis %d", axis))
}

// With returns a copy of p with axis set to value.
func (p Position) With(axis Axis, value float64) Position {
	switch axis {
	case AxisX:
		p.X = value
	case AxisY:
		p.Y = value
	case AxisZ:
		p.Z = value
	case AxisA:
		p.A = value
	case AxisB:
		p.B = value
	default:
		panic(fmt.Sprintf("bug: invalid axis %d", axis))
	}
	return p
}

// In converts p to units. When either unit system is unknown there is no conversion, and p is
// returned as is.
func (p Position) In(units Units) Position {
	if p.Units == UnitsUnknown || units == UnitsUnknown {
		return p
	}
	scale := ScaleUnits(p.Units, units)
	return Position{
		X:     p.X * scale,
		Y:     p.Y * scale,
		Z:     p.Z * scale,
		A:     p.A * scale,
		B:     p.B * scale,
		Units: units,
	}
}

// Add returns p+o, with o converted to p's units.
func (p Position) Add(o Position) Position {
	o = o.In(p.Units)
	return Position{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z, A: p.A + o.A, B: p.B + o.B, Units: p.Units}
}

// Sub returns p-o, with o converted to p's units.
func (p Position) Sub(o Position) Position {
	o = o.In(p.Units)
	return Position{X: p.X - o.X, Y: p.Y - o.Y, Z: p.Z - o.Z, A: p.A - o.A, B: p.B - o.B, Units: p.Units}
}

// SameIgnoringUnits compares all axes values, ignoring the units tag.
func (p Position) SameIgnoringUnits(o Position) bool {
	return p.X == o.X && p.Y == o.Y && p.Z == o.Z && p.A == o.A && p.B == o.B
}

// ApproxEqual compares p to o (converted to p's units) within tolerance.
func (p Position) ApproxEqual(o Position, tolerance float64) bool {
	o = o.In(p.Units)
	for _, axis := range Axes {
		if math.Abs(p.Get(axis)-o.Get(axis)) > tolerance {
			return false
		}
	}
	return true
}

func (p Position) String() string {
	return fmt.Sprintf("[%g, %g, %g, %g, %g] %s", p.X, p.Y, p.Z, p.A, p.B, p.Units)
}
