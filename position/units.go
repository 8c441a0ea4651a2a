package position

import "fmt"

// Units is the unit system a coordinate is expressed in.
type Units int

const (
	UnitsUnknown Units = iota
	UnitsMM
	UnitsInch
)

// MMPerInch is the fixed factor between millimeters and inches.
const MMPerInch = 25.4

func (u Units) String() string {
	switch u {
	case UnitsMM:
		return "mm"
	case UnitsInch:
		return "inch"
	default:
		return "unknown"
	}
}

// GcodeCode returns the G-code word that selects the unit system (G21 or G20).
func (u Units) GcodeCode() (string, error) {
	switch u {
	case UnitsMM:
		return "G21", nil
	case UnitsInch:
		return "G20", nil
	default:
		return "", fmt.Errorf("no G-code for %s units", u)
	}
}

// ParseUnits accepts "mm" or "inch" (also "in").
func ParseUnits(s string) (Units, error) {
	switch s {
	case "mm":
		return UnitsMM, nil
	case "inch", "in":
		return UnitsInch, nil
	}
	return UnitsUnknown, fmt.Errorf("unknown units: %#v", s)
}

// ScaleUnits returns the factor that converts a value in from units into to units. Conversions
// involving unknown units are the identity.
func ScaleUnits(from, to Units) float64 {
	if from == to || from == UnitsUnknown || to == UnitsUnknown {
		return 1
	}
	if from == UnitsMM {
		return 1 / MMPerInch
	}
	return MMPerInch
}
