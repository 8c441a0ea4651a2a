package tui

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/StephanGeberl/GCodeSender/position"
)

func TestParseJogParameters(t *testing.T) {
	for _, tc := range []struct {
		name       string
		step       string
		feedRate   string
		unitOption string
		expected   jogParameters
		errorMsg   string
	}{
		{
			name:       "mm",
			step:       "0.1",
			feedRate:   "500",
			unitOption: unitMillimetersText,
			expected:   jogParameters{step: 0.1, feedRate: 500, units: position.UnitsMM},
		},
		{
			name:       "inch",
			step:       "1",
			feedRate:   "20",
			unitOption: unitInchesText,
			expected:   jogParameters{step: 1, feedRate: 20, units: position.UnitsInch},
		},
		{name: "empty step", step: "", feedRate: "500", unitOption: unitMillimetersText, errorMsg: "invalid step"},
		{name: "zero feed", step: "1", feedRate: "0", unitOption: unitMillimetersText, errorMsg: "invalid feed rate"},
		{name: "no unit", step: "1", feedRate: "500", unitOption: "", errorMsg: "no unit selected"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			params, err := parseJogParameters(tc.step, tc.feedRate, tc.unitOption)
			if tc.errorMsg != "" {
				require.ErrorContains(t, err, tc.errorMsg)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expected, params)
		})
	}
}

func TestAcceptUFloat(t *testing.T) {
	require.True(t, acceptUFloat("1.5", '5'))
	require.False(t, acceptUFloat("1.5x", 'x'))
}
