package grbl

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/StephanGeberl/GCodeSender/position"
)

func TestParseProbe(t *testing.T) {
	p, ok, err := ParseProbe("[PRB:1.000,-2.000,0.500:1]", position.UnitsInch)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, position.Position{X: 1, Y: -2, Z: 0.5, Units: position.UnitsInch}, p)

	_, ok, err = ParseProbe("[PRB:0,0,0:0]", position.UnitsMM)
	require.NoError(t, err)
	require.False(t, ok)

	_, _, err = ParseProbe("[PRB:0,0,0]", position.UnitsMM)
	require.Error(t, err)

	_, _, err = ParseProbe("[PRB:0,0,0:2]", position.UnitsMM)
	require.ErrorContains(t, err, "success flag invalid")
}
