package grbl

import (
	"fmt"
)

// RealTimeCommand is a single byte Grbl acts on immediately, bypassing its receive buffer.
type RealTimeCommand byte

const (
	RealTimeCommandSoftReset              RealTimeCommand = 0x18
	RealTimeCommandStatusReportQuery      RealTimeCommand = '?'
	RealTimeCommandCycleStartResume       RealTimeCommand = '~'
	RealTimeCommandFeedHold               RealTimeCommand = '!'
	RealTimeCommandSafetyDoor             RealTimeCommand = 0x84
	RealTimeCommandJogCancel              RealTimeCommand = 0x85
	RealTimeCommandFeedOverrideReset      RealTimeCommand = 0x90
	RealTimeCommandFeedOverridePlus10     RealTimeCommand = 0x91
	RealTimeCommandFeedOverrideMinus10    RealTimeCommand = 0x92
	RealTimeCommandFeedOverridePlus1      RealTimeCommand = 0x93
	RealTimeCommandFeedOverrideMinus1     RealTimeCommand = 0x94
	RealTimeCommandRapidOverrideReset     RealTimeCommand = 0x95
	RealTimeCommandRapidOverrideMedium    RealTimeCommand = 0x96
	RealTimeCommandRapidOverrideLow       RealTimeCommand = 0x97
	RealTimeCommandSpindleOverrideReset   RealTimeCommand = 0x99
	RealTimeCommandSpindleOverridePlus10  RealTimeCommand = 0x9A
	RealTimeCommandSpindleOverrideMinus10 RealTimeCommand = 0x9B
	RealTimeCommandSpindleOverridePlus1   RealTimeCommand = 0x9C
	RealTimeCommandSpindleOverrideMinus1  RealTimeCommand = 0x9D
	RealTimeCommandToggleSpindleStop      RealTimeCommand = 0x9E
	RealTimeCommandToggleFloodCoolant     RealTimeCommand = 0xA0
	RealTimeCommandToggleMistCoolant      RealTimeCommand = 0xA1
)

var realTimeCommandNames = map[RealTimeCommand]string{
	RealTimeCommandSoftReset:              "Soft-Reset",
	RealTimeCommandStatusReportQuery:      "Status Report Query",
	RealTimeCommandCycleStartResume:       "Cycle Start / Resume",
	RealTimeCommandFeedHold:               "Feed Hold",
	RealTimeCommandSafetyDoor:             "Safety Door",
	RealTimeCommandJogCancel:              "Jog Cancel",
	RealTimeCommandFeedOverrideReset:      "Feed Override: Set 100% of programmed rate.",
	RealTimeCommandFeedOverridePlus10:     "Feed Override: Increase 10%",
	RealTimeCommandFeedOverrideMinus10:    "Feed Override: Decrease 10%",
	RealTimeCommandFeedOverridePlus1:      "Feed Override: Increase 1%",
	RealTimeCommandFeedOverrideMinus1:     "Feed Override: Decrease 1%",
	RealTimeCommandRapidOverrideReset:     "Rapid Override: Set to 100% full rapid rate.",
	RealTimeCommandRapidOverrideMedium:    "Rapid Override: Set to 50% of rapid rate.",
	RealTimeCommandRapidOverrideLow:       "Rapid Override: Set to 25% of rapid rate.",
	RealTimeCommandSpindleOverrideReset:   "Spindle Speed Override: Set 100% of programmed spindle speed",
	RealTimeCommandSpindleOverridePlus10:  "Spindle Speed Override: Increase 10%",
	RealTimeCommandSpindleOverrideMinus10: "Spindle Speed Override: Decrease 10%",
	RealTimeCommandSpindleOverridePlus1:   "Spindle Speed Override: Increase 1%",
	RealTimeCommandSpindleOverrideMinus1:  "Spindle Speed Override: Decrease 1%",
	RealTimeCommandToggleSpindleStop:      "Toggle Spindle Stop",
	RealTimeCommandToggleFloodCoolant:     "Toggle Flood Coolant",
	RealTimeCommandToggleMistCoolant:      "Toggle Mist Coolant",
}

func (c RealTimeCommand) String() string {
	if str, ok := realTimeCommandNames[c]; ok {
		return str
	}
	return fmt.Sprintf("Unknown (0x%02x)", byte(c))
}

// IsRealTimeCommand tells whether b is a known real time command byte.
func IsRealTimeCommand(b byte) bool {
	_, ok := realTimeCommandNames[RealTimeCommand(b)]
	return ok
}

// Override is a user facing override request.
type Override int

const (
	OverrideFeedReset Override = iota
	OverrideFeedCoarsePlus
	OverrideFeedCoarseMinus
	OverrideFeedFinePlus
	OverrideFeedFineMinus
	OverrideRapidReset
	OverrideRapidMedium
	OverrideRapidLow
	OverrideSpindleReset
	OverrideSpindleCoarsePlus
	OverrideSpindleCoarseMinus
	OverrideSpindleFinePlus
	OverrideSpindleFineMinus
	OverrideToggleSpindle
	OverrideToggleFloodCoolant
	OverrideToggleMistCoolant
)

var overrideNames = map[Override]string{
	OverrideFeedReset:          "feed-reset",
	OverrideFeedCoarsePlus:     "feed+10",
	OverrideFeedCoarseMinus:    "feed-10",
	OverrideFeedFinePlus:       "feed+1",
	OverrideFeedFineMinus:      "feed-1",
	OverrideRapidReset:         "rapid-reset",
	OverrideRapidMedium:        "rapid-50",
	OverrideRapidLow:           "rapid-25",
	OverrideSpindleReset:       "spindle-reset",
	OverrideSpindleCoarsePlus:  "spindle+10",
	OverrideSpindleCoarseMinus: "spindle-10",
	OverrideSpindleFinePlus:    "spindle+1",
	OverrideSpindleFineMinus:   "spindle-1",
	OverrideToggleSpindle:      "toggle-spindle",
	OverrideToggleFloodCoolant: "toggle-flood",
	OverrideToggleMistCoolant:  "toggle-mist",
}

func (o Override) String() string {
	if name, ok := overrideNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Override(%d)", int(o))
}

// ParseOverride parses the names given by Override.String.
func ParseOverride(name string) (Override, error) {
	for o, n := range overrideNames {
		if n == name {
			return o, nil
		}
	}
	return 0, fmt.Errorf("unknown override: %#v", name)
}

// Overrides lists every override.
func Overrides() []Override {
	overrides := []Override{}
	for o := OverrideFeedReset; o <= OverrideToggleMistCoolant; o++ {
		overrides = append(overrides, o)
	}
	return overrides
}

var overrideCommands = map[Capability]map[Override]RealTimeCommand{
	CapabilityOverrides: {
		OverrideFeedReset:          RealTimeCommandFeedOverrideReset,
		OverrideFeedCoarsePlus:     RealTimeCommandFeedOverridePlus10,
		OverrideFeedCoarseMinus:    RealTimeCommandFeedOverrideMinus10,
		OverrideFeedFinePlus:       RealTimeCommandFeedOverridePlus1,
		OverrideFeedFineMinus:      RealTimeCommandFeedOverrideMinus1,
		OverrideRapidReset:         RealTimeCommandRapidOverrideReset,
		OverrideRapidMedium:        RealTimeCommandRapidOverrideMedium,
		OverrideRapidLow:           RealTimeCommandRapidOverrideLow,
		OverrideSpindleReset:       RealTimeCommandSpindleOverrideReset,
		OverrideSpindleCoarsePlus:  RealTimeCommandSpindleOverridePlus10,
		OverrideSpindleCoarseMinus: RealTimeCommandSpindleOverrideMinus10,
		OverrideSpindleFinePlus:    RealTimeCommandSpindleOverridePlus1,
		OverrideSpindleFineMinus:   RealTimeCommandSpindleOverrideMinus1,
		OverrideToggleSpindle:      RealTimeCommandToggleSpindleStop,
		OverrideToggleFloodCoolant: RealTimeCommandToggleFloodCoolant,
		OverrideToggleMistCoolant:  RealTimeCommandToggleMistCoolant,
	},
}

// OverrideCommand maps o to its real time byte, if the capabilities support it.
func OverrideCommand(o Override, capabilities Capabilities) (RealTimeCommand, bool) {
	for capability, commands := range overrideCommands {
		if !capabilities.Has(capability) {
			continue
		}
		if command, ok := commands[o]; ok {
			return command, true
		}
	}
	return 0, false
}
