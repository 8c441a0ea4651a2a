package grbl

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/StephanGeberl/GCodeSender/position"
)

var caps11 = DetectCapabilities(Version{Major: 1, Minor: 1, Letter: 'f'})
var caps09 = DetectCapabilities(Version{Major: 0, Minor: 9, Letter: 'j'})

func TestParseStatusReportV1_1(t *testing.T) {
	prev := NewDisconnectedStatus(position.UnitsMM)

	status, err := ParseStatusReport(
		prev,
		"<Hold:0|MPos:10.000,20.000,-5.000|Bf:15,128|Ln:99|FS:500,8000|WCO:1.000,2.000,-3.000|Ov:110,50,90|Pn:XP|A:SF>",
		caps11, position.UnitsMM,
	)
	require.NoError(t, err)
	require.Equal(t, "Hold", status.StateString)
	require.Equal(t, StateHold, status.State)
	require.Equal(t, 0, status.SubState)
	require.Equal(t, "complete", status.SubStateString())
	require.Equal(t, position.Position{X: 10, Y: 20, Z: -5, Units: position.UnitsMM}, status.MachineCoord)
	require.Equal(t, position.Position{X: 9, Y: 18, Z: -2, Units: position.UnitsMM}, status.WorkCoord)
	require.Equal(t, 500.0, status.FeedSpeed)
	require.Equal(t, 8000.0, status.SpindleSpeed)
	require.Equal(t, OverrideValues{Feed: 110, Rapids: 50, Spindle: 90}, status.Overrides)
	require.True(t, status.Overrides.HasOverride())
	require.Equal(t, "XP", status.Pins.String())
	require.True(t, status.Accessories.SpindleCW)
	require.True(t, status.Accessories.FloodCoolant)
	require.Equal(t, &BufferState{AvailableBlocks: 15, AvailableBytes: 128}, status.Buffer)
	require.NotNil(t, status.LineNumber)
	require.Equal(t, 99, *status.LineNumber)

	t.Run("inherits omitted fields", func(t *testing.T) {
		next, err := ParseStatusReport(status, "<Run|MPos:11.000,20.000,-5.000|F:400>", caps11, position.UnitsMM)
		require.NoError(t, err)
		require.Equal(t, StateRun, next.State)
		require.Equal(t, -1, next.SubState)
		require.Equal(t, status.WorkCoordinateOffset, next.WorkCoordinateOffset)
		require.Equal(t, position.Position{X: 10, Y: 18, Z: -2, Units: position.UnitsMM}, next.WorkCoord)
		require.Equal(t, 400.0, next.FeedSpeed)
		require.Equal(t, 8000.0, next.SpindleSpeed)
		require.Equal(t, status.Overrides, next.Overrides)
		require.Equal(t, status.Pins, next.Pins)
		require.Equal(t, status.Accessories, next.Accessories)
		require.Nil(t, next.LineNumber)
	})

	t.Run("override report without pins clears them", func(t *testing.T) {
		next, err := ParseStatusReport(status, "<Idle|MPos:0,0,0|Ov:100,100,100>", caps11, position.UnitsMM)
		require.NoError(t, err)
		require.Equal(t, PinState{}, next.Pins)
		require.Equal(t, AccessoryState{}, next.Accessories)
		require.False(t, next.Overrides.HasOverride())
	})

	t.Run("work position only", func(t *testing.T) {
		next, err := ParseStatusReport(status, "<Jog|WPos:1.000,1.000,1.000>", caps11, position.UnitsMM)
		require.NoError(t, err)
		require.Equal(t, StateJog, next.State)
		require.Equal(t, position.Position{X: 2, Y: 3, Z: -2, Units: position.UnitsMM}, next.MachineCoord)
	})

	t.Run("does not mutate previous", func(t *testing.T) {
		before := status
		_, err := ParseStatusReport(status, "<Alarm|MPos:0,0,0|Ov:100,100,100>", caps11, position.UnitsMM)
		require.NoError(t, err)
		require.Equal(t, before, status)
	})
}

func TestParseStatusReportLegacy(t *testing.T) {
	status, err := ParseStatusReport(
		NewDisconnectedStatus(position.UnitsMM),
		"<Idle,MPos:5.000,6.000,7.000,WPos:1.000,2.000,3.000,Buf:0,RX:12>",
		caps09, position.UnitsInch,
	)
	require.NoError(t, err)
	require.Equal(t, "Idle", status.StateString)
	require.Equal(t, StateIdle, status.State)
	require.Equal(t, position.Position{X: 5, Y: 6, Z: 7, Units: position.UnitsInch}, status.MachineCoord)
	require.Equal(t, position.Position{X: 1, Y: 2, Z: 3, Units: position.UnitsInch}, status.WorkCoord)
	require.Equal(t, &BufferState{AvailableBlocks: 0, AvailableBytes: 12}, status.Buffer)
}

func TestParseStatusReportFiveAxis(t *testing.T) {
	status, err := ParseStatusReport(
		NewDisconnectedStatus(position.UnitsMM),
		"<Run|MPos:1,2,3,4,5|WCO:0,0,0,1,1>",
		caps11, position.UnitsMM,
	)
	require.NoError(t, err)
	require.Equal(t, position.Position{X: 1, Y: 2, Z: 3, A: 3, B: 4, Units: position.UnitsMM}, status.WorkCoord)
}

func TestParseStatusReportUnknownState(t *testing.T) {
	status, err := ParseStatusReport(NewDisconnectedStatus(position.UnitsMM), "<Tool|MPos:0,0,0>", caps11, position.UnitsMM)
	require.NoError(t, err)
	require.Equal(t, "Tool", status.StateString)
	require.Equal(t, StateUnknown, status.State)
}

func TestParseStatusReportErrors(t *testing.T) {
	for _, tc := range []struct {
		message  string
		errorMsg string
	}{
		{"Idle|MPos:0,0,0", "not enclosed"},
		{"<>", "machine state field empty"},
		{"<Hold:x|MPos:0,0,0>", "sub state invalid"},
		{"<Idle|MPos>", "malformed data field"},
		{"<Idle|MPos:0,0>", "position malformed"},
		{"<Idle|Pn:Q>", "unknown pin"},
		{"<Idle|Ov:100,100>", "override values field malformed"},
	} {
		t.Run(tc.message, func(t *testing.T) {
			_, err := ParseStatusReport(NewDisconnectedStatus(position.UnitsMM), tc.message, caps11, position.UnitsMM)
			require.ErrorContains(t, err, tc.errorMsg)
		})
	}
}

func TestParseState(t *testing.T) {
	require.Equal(t, StateIdle, ParseState("idle"))
	require.Equal(t, StateQueue, ParseState("Queue"))
	require.Equal(t, StateUnknown, ParseState("Disconnected"))
	require.Equal(t, StateUnknown, ParseState("whatever"))
}
