package controller

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	grblMod "github.com/StephanGeberl/GCodeSender/grbl"
	"github.com/StephanGeberl/GCodeSender/position"
)

func TestControllerSendOverride(t *testing.T) {
	t.Run("supported", func(t *testing.T) {
		ctx := testContext(t)
		c := newTestController(t, ctx, testOptions())
		c.boot(t, ctx, banner11)

		require.NoError(t, c.SendOverride(ctx, grblMod.OverrideFeedCoarsePlus))
		require.Equal(t, []byte{0x91}, c.transport.RealTime())
		console := waitEvent[ConsoleEvent](t, c.events, nil)
		require.Equal(t, ConsoleInfo, console.Type)
		require.Equal(t, ">>> 0x91", console.Message)
	})

	t.Run("unsupported", func(t *testing.T) {
		ctx := testContext(t)
		c := newTestController(t, ctx, testOptions())
		c.boot(t, ctx, banner09)

		for _, override := range grblMod.Overrides() {
			require.NoError(t, c.SendOverride(ctx, override))
		}
		require.Empty(t, c.transport.RealTime())
	})
}

func TestControllerActions(t *testing.T) {
	for _, tc := range []struct {
		name     string
		action   func(ctx context.Context, c *testController) error
		expected []string
	}{
		{
			name:     "kill alarm lock",
			action:   func(ctx context.Context, c *testController) error { return c.KillAlarmLock(ctx) },
			expected: []string{"$X\n"},
		},
		{
			name:     "toggle check mode",
			action:   func(ctx context.Context, c *testController) error { return c.ToggleCheckMode(ctx) },
			expected: []string{"$C\n"},
		},
		{
			name:     "view parser state",
			action:   func(ctx context.Context, c *testController) error { return c.ViewParserState(ctx) },
			expected: []string{"$G\n"},
		},
		{
			name:     "view settings",
			action:   func(ctx context.Context, c *testController) error { return c.ViewSettings(ctx) },
			expected: []string{"$$\n"},
		},
		{
			name:     "reset coordinates to zero",
			action:   func(ctx context.Context, c *testController) error { return c.ResetCoordinatesToZero(ctx) },
			expected: []string{"G10 P0 L20 X0 Y0 Z0\n"},
		},
		{
			name: "reset coordinate to zero",
			action: func(ctx context.Context, c *testController) error {
				return c.ResetCoordinateToZero(ctx, position.AxisY)
			},
			expected: []string{"G10 P0 L20 Y0\n"},
		},
		{
			name: "set work position",
			action: func(ctx context.Context, c *testController) error {
				return c.SetWorkPosition(
					ctx, position.NewPartialPosition(position.UnitsMM).With(position.AxisX, 10),
				)
			},
			expected: []string{"G10 P0 L20 G21 X10\n"},
		},
		{
			name:     "spindle",
			action:   func(ctx context.Context, c *testController) error { return c.SwitchOnSpindle(ctx) },
			expected: []string{"M3\n"},
		},
		{
			name: "jog",
			action: func(ctx context.Context, c *testController) error {
				return c.JogMachine(
					ctx, JogDirections{position.AxisX: 1, position.AxisZ: -1}, 10, 500, position.UnitsMM,
				)
			},
			expected: []string{"$J=G21G91X10Z-10F500\n"},
		},
		{
			name: "jog to",
			action: func(ctx context.Context, c *testController) error {
				return c.JogMachineTo(
					ctx, position.NewPartialPosition(position.UnitsMM).With(position.AxisY, 5), 300,
				)
			},
			expected: []string{"$J=G21G90Y5F300\n"},
		},
		{
			name: "probe",
			action: func(ctx context.Context, c *testController) error {
				return c.Probe(ctx, position.AxisZ, 100, -10, position.UnitsMM)
			},
			expected: []string{"G91 G21 G38.2 Z-10 F100\n", "G90\n"},
		},
		{
			name: "offset tool",
			action: func(ctx context.Context, c *testController) error {
				return c.OffsetTool(ctx, position.AxisZ, 1.5, position.UnitsInch)
			},
			expected: []string{"G20 G43.1 Z1.5\n"},
		},
		{
			name:     "restore parser modal state",
			action:   func(ctx context.Context, c *testController) error { return c.RestoreParserModalState(ctx) },
			expected: []string{"G90 G21 G17 G94 G54\n"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := testContext(t)
			c := newTestController(t, ctx, testOptions())
			c.boot(t, ctx, banner11)

			require.NoError(t, tc.action(ctx, c))
			require.Equal(t, tc.expected, c.transport.Written())
		})
	}
}

func TestControllerActionNotConnected(t *testing.T) {
	ctx := testContext(t)
	c := New(grblMod.NewFirmware(grblMod.DefaultFirmwareConfig()), testOptions())
	require.ErrorIs(t, c.PerformHomingCycle(ctx), ErrNotConnected)
	require.ErrorIs(t, c.SwitchOffSpindle(ctx), ErrNotConnected)
}

func TestControllerActionUnsupported(t *testing.T) {
	ctx := testContext(t)
	c := newTestController(t, ctx, testOptions())
	c.boot(t, ctx, banner09)

	err := c.JogMachineTo(ctx, position.NewPartialPosition(position.UnitsMM).With(position.AxisX, 1), 100)
	require.ErrorIs(t, err, ErrUnsupported)
	var fault *Fault
	require.ErrorAs(t, err, &fault)
	require.Equal(t, FaultCapabilityMismatch, fault.Kind)
	require.Empty(t, c.transport.Written())

	err = c.SwitchToMill(ctx)
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestControllerPerformHomingCycle(t *testing.T) {
	ctx := testContext(t)
	c := newTestController(t, ctx, testOptions())
	c.boot(t, ctx, banner11)

	require.NoError(t, c.PerformHomingCycle(ctx))
	require.Equal(t, []string{"$H\n"}, c.transport.Written())
	require.Equal(t, grblMod.StateHome, c.Status().State)
	status := waitEvent[StatusEvent](t, c.events, nil)
	require.Equal(t, grblMod.StateHome, status.Status.State)
}

func TestControllerMachineMode(t *testing.T) {
	ctx := testContext(t)
	config := grblMod.DefaultFirmwareConfig()
	config.MillModeCommand = "M62 P0"
	config.HotWireModeCommand = "M63 P0"
	c := New(grblMod.NewFirmware(config), testOptions())
	transport := newFakeTransport()
	require.NoError(t, c.Connect(ctx, func(context.Context) (Transport, error) { return transport, nil }))
	defer func() { require.NoError(t, c.Disconnect(ctx)) }()
	c.HandleResponse(ctx, banner11)
	c.HandleResponse(ctx, "ok")
	c.HandleResponse(ctx, "ok")
	transport.Reset()

	require.NoError(t, c.SwitchToHotWire(ctx))
	require.Equal(t, MachineModeHotWire, c.MachineMode())
	require.Equal(t, MachineModeHotWire, c.Status().MachineMode)

	require.NoError(t, c.SwitchToMill(ctx))
	require.Equal(t, MachineModeMill, c.MachineMode())
	require.Equal(t, []string{"M63 P0\n", "M62 P0\n"}, transport.Written())
}

func TestEvaluateWorkPositionExpression(t *testing.T) {
	for _, tc := range []struct {
		expression string
		current    float64
		expected   float64
	}{
		{"10", 3, 10},
		{"# / 2", 10, 5},
		{"# + 1.5", -3.5, -2},
		{"#*2", -3.5, -7},
		{"(# - 1) * 4", 1.25, 1},
	} {
		t.Run(tc.expression, func(t *testing.T) {
			value, err := EvaluateWorkPositionExpression(tc.expression, tc.current)
			require.NoError(t, err)
			require.InDelta(t, tc.expected, value, 1e-9)
		})
	}

	_, err := EvaluateWorkPositionExpression("# +", 1)
	require.Error(t, err)
}

func TestControllerSetWorkPositionExpression(t *testing.T) {
	ctx := testContext(t)
	c := newTestController(t, ctx, testOptions())
	c.boot(t, ctx, banner11)

	c.HandleResponse(ctx, "<Idle|MPos:10.000,4.000,0.000|WCO:0.000,0.000,0.000>")
	require.NoError(t, c.SetWorkPositionExpression(ctx, position.AxisX, "# / 2"))
	require.Equal(t, []string{"G10 P0 L20 G21 X5\n"}, c.transport.Written())
}

func TestControllerReturnToHome(t *testing.T) {
	ctx := testContext(t)
	c := newTestController(t, ctx, testOptions())
	c.boot(t, ctx, banner11)

	c.HandleResponse(ctx, "<Idle|MPos:10.000,4.000,-2.000|WCO:0.000,0.000,0.000>")
	require.NoError(t, c.ReturnToHome(ctx))
	require.Equal(t, []string{"G90 G0 Z0\n", "G90 G0 X0 Y0\n", "G90 G0 Z0\n"}, c.transport.Written())
}
