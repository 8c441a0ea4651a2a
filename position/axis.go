package position

import (
	"fmt"
	"strings"
)

type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
	AxisA
	AxisB
)

// Axes lists every axis, in wire order.
var Axes = []Axis{AxisX, AxisY, AxisZ, AxisA, AxisB}

var axisNames = map[Axis]string{
	AxisX: "X",
	AxisY: "Y",
	AxisZ: "Z",
	AxisA: "A",
	AxisB: "B",
}

func (a Axis) String() string {
	if name, ok := axisNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Axis(%d)", int(a))
}

// ParseAxis parses a single axis letter, case insensitive.
func ParseAxis(s string) (Axis, error) {
	for axis, name := range axisNames {
		if strings.EqualFold(name, s) {
			return axis, nil
		}
	}
	return 0, fmt.Errorf("unknown axis: %#v", s)
}
