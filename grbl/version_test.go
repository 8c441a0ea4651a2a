package grbl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	for _, tc := range []struct {
		banner   string
		expected Version
		ok       bool
	}{
		{"Grbl 1.1f ['$' for help]", Version{Major: 1, Minor: 1, Letter: 'f'}, true},
		{"Grbl 0.9j ['$' for help]", Version{Major: 0, Minor: 9, Letter: 'j'}, true},
		{"Grbl 0.8c ['$' for help]", Version{Major: 0, Minor: 8, Letter: 'c'}, true},
		{"Grbl 1.1", Version{Major: 1, Minor: 1}, true},
		{"GrblHAL 1.1f", Version{}, false},
		{"[VER:1.1f.20170801:]", Version{}, false},
	} {
		t.Run(tc.banner, func(t *testing.T) {
			v, ok := ParseVersion(tc.banner)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.expected, v)
		})
	}
}

func TestVersionCompare(t *testing.T) {
	v11f := Version{Major: 1, Minor: 1, Letter: 'f'}
	require.True(t, v11f.AtLeast(Version{Major: 1, Minor: 1}))
	require.True(t, v11f.AtLeast(Version{Major: 0, Minor: 9, Letter: 'j'}))
	require.False(t, v11f.AtLeast(Version{Major: 1, Minor: 1, Letter: 'h'}))
	require.Equal(t, 0, v11f.Compare(v11f))
	require.Equal(t, "1.1f", v11f.String())
	require.Equal(t, "<unknown>", Version{}.String())
}

func TestDetectCapabilities(t *testing.T) {
	t.Run("1.1f", func(t *testing.T) {
		caps := DetectCapabilities(Version{Major: 1, Minor: 1, Letter: 'f'})
		require.True(t, caps.Has(CapabilityRealTime))
		require.True(t, caps.Has(CapabilityHardwareJogging))
		require.True(t, caps.Has(CapabilityJogCancel))
		require.True(t, caps.Has(CapabilityOverrides))
		require.True(t, caps.Has(CapabilityV1_1))
		require.True(t, caps.Has(CapabilityFirmwareSettings))
	})
	t.Run("0.9j", func(t *testing.T) {
		caps := DetectCapabilities(Version{Major: 0, Minor: 9, Letter: 'j'})
		require.True(t, caps.Has(CapabilityRealTime))
		require.False(t, caps.Has(CapabilityHardwareJogging))
		require.False(t, caps.Has(CapabilityV1_1))
	})
	t.Run("0.8c", func(t *testing.T) {
		caps := DetectCapabilities(Version{Major: 0, Minor: 8, Letter: 'c'})
		require.False(t, caps.Has(CapabilityRealTime))
		require.False(t, caps.Has(CapabilityHardwareJogging))
		require.True(t, caps.Has(CapabilityFirmwareSettings))
	})
	t.Run("unknown", func(t *testing.T) {
		caps := DetectCapabilities(Version{})
		require.Empty(t, caps.List())
		require.False(t, Capabilities{}.Has(CapabilityRealTime))
	})
}
