package tui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	controllerMod "github.com/StephanGeberl/GCodeSender/controller"
	"github.com/StephanGeberl/GCodeSender/position"
)

func TestWriteProbeResult(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var buf bytes.Buffer
		writeProbeResult(&buf, controllerMod.ProbeEvent{
			Position: position.NewPosition(0, 0, -1.5, position.UnitsMM),
			Success:  true,
		})
		require.NotContains(t, buf.String(), "failed")
		require.Contains(t, buf.String(), "Z:"+sprintCoordinate(-1.5))
		require.Contains(t, buf.String(), "(mm)")
	})
	t.Run("failure", func(t *testing.T) {
		var buf bytes.Buffer
		writeProbeResult(&buf, controllerMod.ProbeEvent{
			Position: position.NewPosition(0, 0, 0, position.UnitsMM),
		})
		require.Contains(t, buf.String(), "Probe failed")
	})
}
