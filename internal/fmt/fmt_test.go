package fmt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSprintFloat(t *testing.T) {
	for _, tc := range []struct {
		value    float64
		decimal  uint
		expected string
	}{
		{1.5, 3, "1.5"},
		{10, 4, "10"},
		{-2.12345, 3, "-2.123"},
		{-0.0001, 3, "0"},
		{0.25, 0, "0"},
		{3.7, 0, "4"},
	} {
		t.Run(tc.expected, func(t *testing.T) {
			require.Equal(t, tc.expected, SprintFloat(tc.value, tc.decimal))
		})
	}
}

func TestSprintWord(t *testing.T) {
	require.Equal(t, "X-1.25", SprintWord("X", -1.25, 4))
}
