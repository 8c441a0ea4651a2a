package grbl

import (
	"fmt"
	"strings"

	"github.com/StephanGeberl/GCodeSender/position"
)

// ParseProbe parses a "[PRB:x,y,z:1]" probe report, in the firmware reporting units.
func ParseProbe(message string, units position.Units) (position.Position, bool, error) {
	if !strings.HasPrefix(message, responseProbePrefix) || !strings.HasSuffix(message, "]") {
		return position.Position{}, false, fmt.Errorf("probe message malformed: %#v", message)
	}

	content := message[len(responseProbePrefix) : len(message)-1]

	lastColonIdx := strings.LastIndex(content, ":")
	if lastColonIdx == -1 {
		return position.Position{}, false, fmt.Errorf("probe message missing success flag: %#v", message)
	}

	coordStr := content[:lastColonIdx]
	successStr := content[lastColonIdx+1:]

	p, err := position.ParsePosition(coordStr, units)
	if err != nil {
		return position.Position{}, false, fmt.Errorf("probe message coordinates invalid: %#v: %w", message, err)
	}

	if successStr != "0" && successStr != "1" {
		return position.Position{}, false, fmt.Errorf("probe message success flag invalid: %#v", message)
	}

	return p, successStr == "1", nil
}
