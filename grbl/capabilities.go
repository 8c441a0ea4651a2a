package grbl

import (
	"slices"
	"strings"
)

type Capability string

const (
	// Real time commands: ?, !, ~ and soft reset.
	CapabilityRealTime Capability = "REAL_TIME"
	// Grbl 1.1 protocol: pipe delimited status reports, [GC:] parser state.
	CapabilityV1_1 Capability = "V1_1"
	// Feed, rapid and spindle override bytes.
	CapabilityOverrides Capability = "OVERRIDES"
	// $J= jogging.
	CapabilityHardwareJogging Capability = "HARDWARE_JOGGING"
	// 0x85 jog cancel byte.
	CapabilityJogCancel Capability = "JOG_CANCEL"
	// $$ settings report.
	CapabilityFirmwareSettings Capability = "FIRMWARE_SETTINGS"
	// $C check mode.
	CapabilityCheckMode Capability = "CHECK_MODE"
)

// Capabilities is an immutable set of capabilities. The zero value has none.
type Capabilities struct {
	set map[Capability]bool
}

func NewCapabilities(capabilities ...Capability) Capabilities {
	set := make(map[Capability]bool, len(capabilities))
	for _, c := range capabilities {
		set[c] = true
	}
	return Capabilities{set: set}
}

func (c Capabilities) Has(capability Capability) bool {
	return c.set[capability]
}

// List returns the capabilities sorted by name.
func (c Capabilities) List() []Capability {
	list := make([]Capability, 0, len(c.set))
	for capability := range c.set {
		list = append(list, capability)
	}
	slices.Sort(list)
	return list
}

func (c Capabilities) String() string {
	names := []string{}
	for _, capability := range c.List() {
		names = append(names, string(capability))
	}
	return "[" + strings.Join(names, " ") + "]"
}

type capabilityRule struct {
	capability Capability
	minVersion Version
}

var capabilityRules = []capabilityRule{
	{CapabilityRealTime, Version{Major: 0, Minor: 9}},
	{CapabilityV1_1, Version{Major: 1, Minor: 1}},
	{CapabilityOverrides, Version{Major: 1, Minor: 1}},
	{CapabilityHardwareJogging, Version{Major: 1, Minor: 1}},
	{CapabilityJogCancel, Version{Major: 1, Minor: 1}},
	{CapabilityFirmwareSettings, Version{}},
	{CapabilityCheckMode, Version{}},
}

// DetectCapabilities evaluates the version range table for v. An unknown (zero) version has no
// capabilities.
func DetectCapabilities(v Version) Capabilities {
	if v.IsZero() {
		return Capabilities{}
	}
	capabilities := []Capability{}
	for _, rule := range capabilityRules {
		if v.AtLeast(rule.minVersion) {
			capabilities = append(capabilities, rule.capability)
		}
	}
	return NewCapabilities(capabilities...)
}
