package controller

import (
	"testing"

	"github.com/stretchr/testify/require"

	grblMod "github.com/StephanGeberl/GCodeSender/grbl"
)

const (
	statusIdle  = "<Idle|MPos:0.000,0.000,0.000|FS:0,0>"
	statusRun   = "<Run|MPos:1.000,0.000,0.000|FS:500,0>"
	statusJog   = "<Jog|MPos:2.000,0.000,0.000|FS:500,0>"
	statusCheck = "<Check|MPos:0.000,0.000,0.000|FS:0,0>"
)

func TestControllerStatusStateChange(t *testing.T) {
	ctx := testContext(t)
	c := newTestController(t, ctx, testOptions())
	c.boot(t, ctx, banner11)

	for _, report := range []string{statusIdle, statusRun, statusRun, statusIdle} {
		c.HandleResponse(ctx, report)
	}

	events := collectUntil[StatusEvent](t, c.events, 4)
	require.Equal(t, []ControlState{ControlStateSending, ControlStateIdle}, stateChanges(events))
	require.Equal(t, ControlStateIdle, c.ControlState())
	require.True(t, c.IsIdle())
}

func TestControllerCheckModeSingleStep(t *testing.T) {
	for _, initial := range []bool{false, true} {
		t.Run(map[bool]string{false: "disabled", true: "enabled"}[initial], func(t *testing.T) {
			ctx := testContext(t)
			c := newTestController(t, ctx, testOptions())
			c.boot(t, ctx, banner11)
			c.SetSingleStepMode(initial)

			c.HandleResponse(ctx, statusIdle)
			require.Equal(t, initial, c.SingleStepMode())

			c.HandleResponse(ctx, statusCheck)
			require.True(t, c.SingleStepMode())
			require.Equal(t, ControlStateCheck, c.ControlState())

			c.HandleResponse(ctx, statusCheck)
			require.True(t, c.SingleStepMode())

			c.HandleResponse(ctx, statusIdle)
			require.Equal(t, initial, c.SingleStepMode())

			c.HandleResponse(ctx, statusIdle)
			require.Equal(t, initial, c.SingleStepMode())

			c.HandleResponse(ctx, statusCheck)
			c.HandleResponse(ctx, statusIdle)
			require.Equal(t, initial, c.SingleStepMode())
		})
	}
}

func TestControllerCheckModeSingleStepAlarm(t *testing.T) {
	for _, initial := range []bool{false, true} {
		t.Run(map[bool]string{false: "disabled", true: "enabled"}[initial], func(t *testing.T) {
			ctx := testContext(t)
			c := newTestController(t, ctx, testOptions())
			c.boot(t, ctx, banner11)
			c.SetSingleStepMode(initial)

			c.HandleResponse(ctx, statusCheck)
			require.True(t, c.SingleStepMode())

			c.HandleResponse(ctx, "ALARM:1")
			require.Equal(t, initial, c.SingleStepMode())

			c.HandleResponse(ctx, "<Alarm|MPos:0.000,0.000,0.000|FS:0,0>")
			require.Equal(t, initial, c.SingleStepMode())

			c.HandleResponse(ctx, statusCheck)
			require.True(t, c.SingleStepMode())
			c.HandleResponse(ctx, statusIdle)
			require.Equal(t, initial, c.SingleStepMode())
		})
	}
}

func TestControllerCheckModeBannerKeepsStatus(t *testing.T) {
	ctx := testContext(t)
	c := newTestController(t, ctx, testOptions())
	c.boot(t, ctx, banner11)

	c.HandleResponse(ctx, statusCheck)
	require.Equal(t, ControlStateCheck, c.ControlState())

	c.HandleResponse(ctx, banner11)
	require.Equal(t, ControlStateCheck, c.ControlState())

	c.HandleResponse(ctx, statusIdle)
	c.HandleResponse(ctx, banner11)
	require.Equal(t, "", c.Status().StateString)
}

func TestControllerJogComplete(t *testing.T) {
	ctx := testContext(t)
	c := newTestController(t, ctx, testOptions())
	c.boot(t, ctx, banner11)

	require.NoError(t, c.SendLine(ctx, "$J=G21G91X10F500"))
	c.HandleResponse(ctx, statusJog)
	require.Equal(t, 0, c.stream.sendCancels)
	_, ok := c.ActiveCommand()
	require.True(t, ok)

	c.HandleResponse(ctx, statusIdle)
	require.Equal(t, 1, c.stream.sendCancels)
	_, ok = c.ActiveCommand()
	require.False(t, ok)

	c.HandleResponse(ctx, statusIdle)
	require.Equal(t, 1, c.stream.sendCancels)
}

func TestControllerLegacyStatus(t *testing.T) {
	ctx := testContext(t)
	c := newTestController(t, ctx, testOptions())
	c.boot(t, ctx, banner09)

	c.HandleResponse(ctx, "<Run,MPos:1.000,2.000,3.000,WPos:0.000,1.000,2.000>")
	status := c.Status()
	require.Equal(t, "Run", status.StateString)
	require.Equal(t, 3.0, status.MachineCoord.Z)
	require.Equal(t, 2.0, status.WorkCoord.Z)
	require.Equal(t, ControlStateSending, c.ControlState())
}

func TestControllerLocalControlState(t *testing.T) {
	ctx := testContext(t)
	c := newTestController(t, ctx, testOptions())
	c.boot(t, ctx, banner08)

	require.False(t, c.Capabilities().Has(grblMod.CapabilityRealTime))
	require.Equal(t, ControlStateIdle, c.ControlState())

	c.QueueCommands(&GcodeCommand{Command: "G0 X1"}, &GcodeCommand{Command: "G0 X2"})
	require.NoError(t, c.BeginStreaming(ctx))
	require.Equal(t, ControlStateSending, c.ControlState())

	require.NoError(t, c.PauseStreaming(ctx))
	require.Equal(t, ControlStateSendingPaused, c.ControlState())
	require.Empty(t, c.transport.RealTime())
}
