package grbl

import (
	"errors"
	"fmt"
	"strings"

	iFmt "github.com/StephanGeberl/GCodeSender/internal/fmt"
	"github.com/StephanGeberl/GCodeSender/position"
)

// ErrUnsupported is returned when the firmware has no command for a requested action.
var ErrUnsupported = errors.New("unsupported by firmware")

const (
	commandHoming      = "$H"
	commandKillAlarm   = "$X"
	commandCheckMode   = "$C"
	commandParserState = "$G"
	commandSettings    = "$$"
	commandSpindleOn   = "M3"
	commandSpindleOff  = "M5"
	commandAbsolute    = "G90"
	commandJogPrefix   = "$J="
)

var (
	versionCoordinateSystem = Version{Major: 0, Minor: 9}
	versionLegacyOffsets    = Version{Major: 0, Minor: 8}
)

// FirmwareConfig holds the machine specific parts of the command templates.
type FirmwareConfig struct {
	// Sent by SwitchToMill; empty when the machine has no mill mode.
	MillModeCommand string
	// Sent by SwitchToHotWire; empty when the machine has no hot wire mode.
	HotWireModeCommand string
	// Axes zeroed by the mill flavour of reset to zero.
	MillResetAxes []position.Axis
	// Axes zeroed by the hot wire flavour of reset to zero.
	HotWireResetAxes []position.Axis
	// Work Z height travelled to before returning home, when below it.
	SafeZ float64
}

func DefaultFirmwareConfig() FirmwareConfig {
	return FirmwareConfig{
		MillResetAxes:    []position.Axis{position.AxisX, position.AxisY, position.AxisZ},
		HotWireResetAxes: []position.Axis{position.AxisX, position.AxisY, position.AxisZ, position.AxisA, position.AxisB},
	}
}

// Firmware bundles everything that is specific to Grbl: capability rules, code tables and command
// templates. Templates are keyed on the detected version; an empty template is reported as
// ErrUnsupported.
type Firmware struct {
	config FirmwareConfig
}

func NewFirmware(config FirmwareConfig) *Firmware {
	return &Firmware{config: config}
}

func (f *Firmware) Name() string {
	return "GRBL"
}

func (f *Firmware) Config() FirmwareConfig {
	return f.config
}

func (f *Firmware) DetectCapabilities(v Version) Capabilities {
	return DetectCapabilities(v)
}

// Describe, DescribeShort and DescribeLong describe raw "error:N" / "ALARM:N" messages.
func (f *Firmware) Describe(raw string) string {
	return Describe(raw)
}

func (f *Firmware) DescribeShort(raw string) string {
	return DescribeShort(raw)
}

func (f *Firmware) DescribeLong(raw string) string {
	return DescribeLong(raw)
}

func unsupported(action string, v Version) error {
	return fmt.Errorf("%s on Grbl %s: %w", action, v, ErrUnsupported)
}

func requireVersion(action string, v Version) error {
	if v.IsZero() {
		return unsupported(action, v)
	}
	return nil
}

func (f *Firmware) HomingCommand(v Version) (string, error) {
	if err := requireVersion("homing", v); err != nil {
		return "", err
	}
	return commandHoming, nil
}

func (f *Firmware) KillAlarmLockCommand(v Version) (string, error) {
	if err := requireVersion("kill alarm lock", v); err != nil {
		return "", err
	}
	return commandKillAlarm, nil
}

func (f *Firmware) ToggleCheckModeCommand(capabilities Capabilities) (string, error) {
	if !capabilities.Has(CapabilityCheckMode) {
		return "", fmt.Errorf("check mode: %w", ErrUnsupported)
	}
	return commandCheckMode, nil
}

func (f *Firmware) ViewParserStateCommand(v Version) (string, error) {
	if err := requireVersion("view parser state", v); err != nil {
		return "", err
	}
	return commandParserState, nil
}

func (f *Firmware) ViewSettingsCommand(capabilities Capabilities) (string, error) {
	if !capabilities.Has(CapabilityFirmwareSettings) {
		return "", fmt.Errorf("view settings: %w", ErrUnsupported)
	}
	return commandSettings, nil
}

func zeroAxes(axes []position.Axis) string {
	words := make([]string, 0, len(axes))
	for _, axis := range axes {
		words = append(words, axis.String()+"0")
	}
	return strings.Join(words, " ")
}

func (f *Firmware) resetAxesCommand(action string, v Version, axes []position.Axis) (string, error) {
	if len(axes) == 0 {
		return "", unsupported(action, v)
	}
	switch {
	case v.AtLeast(versionCoordinateSystem):
		return "G10 P0 L20 " + zeroAxes(axes), nil
	case v.AtLeast(versionLegacyOffsets):
		return "G92 " + zeroAxes(axes), nil
	default:
		return "", unsupported(action, v)
	}
}

// ResetCoordinatesToZeroCommand zeroes the X, Y and Z work coordinates.
func (f *Firmware) ResetCoordinatesToZeroCommand(v Version) (string, error) {
	return f.resetAxesCommand(
		"reset coordinates to zero", v, []position.Axis{position.AxisX, position.AxisY, position.AxisZ},
	)
}

func (f *Firmware) ResetCoordinatesToZeroMillCommand(v Version) (string, error) {
	return f.resetAxesCommand("reset mill coordinates to zero", v, f.config.MillResetAxes)
}

func (f *Firmware) ResetCoordinatesToZeroHotWireCommand(v Version) (string, error) {
	return f.resetAxesCommand("reset hot wire coordinates to zero", v, f.config.HotWireResetAxes)
}

func (f *Firmware) ResetCoordinateToZeroCommand(v Version, axis position.Axis) (string, error) {
	if !v.AtLeast(versionCoordinateSystem) {
		return "", unsupported("reset coordinate to zero", v)
	}
	return "G10 P0 L20 " + axis.String() + "0", nil
}

// SetWorkPositionCommand sets the current work position of the given axes, eg:
// "G10 P0 L20 G21 X10 Y5".
func (f *Firmware) SetWorkPositionCommand(v Version, pp position.PartialPosition) (string, error) {
	if !v.AtLeast(versionCoordinateSystem) {
		return "", unsupported("set work position", v)
	}
	if pp.IsEmpty() {
		return "", fmt.Errorf("set work position: no axis given")
	}
	units, err := pp.Units().GcodeCode()
	if err != nil {
		return "", fmt.Errorf("set work position: %w", err)
	}
	words := []string{}
	for _, axis := range pp.Axes() {
		value, err := pp.Get(axis)
		if err != nil {
			return "", err
		}
		words = append(words, iFmt.SprintWord(axis.String(), value, 4))
	}
	return "G10 P0 L20 " + units + " " + strings.Join(words, " "), nil
}

// ReturnToHomeCommands moves to work X0 Y0 and then Z0, raising Z first when it is below the safe
// height.
func (f *Firmware) ReturnToHomeCommands(v Version, workZ float64) ([]string, error) {
	if err := requireVersion("return to home", v); err != nil {
		return nil, err
	}
	commands := []string{}
	if workZ < f.config.SafeZ {
		commands = append(commands, "G90 G0 "+iFmt.SprintWord("Z", f.config.SafeZ, 4))
	}
	return append(commands, "G90 G0 X0 Y0", "G90 G0 Z0"), nil
}

// JogCommands moves relatively by distance. With hardware jogging this is a single cancellable
// "$J=" command, otherwise a plain G91 move followed by a return to absolute distance mode.
func (f *Firmware) JogCommands(
	capabilities Capabilities, distance position.PartialPosition, feedRate float64,
) ([]string, error) {
	if distance.IsEmpty() {
		return nil, fmt.Errorf("jog: no axis given")
	}
	units, err := distance.Units().GcodeCode()
	if err != nil {
		return nil, fmt.Errorf("jog: %w", err)
	}
	if capabilities.Has(CapabilityHardwareJogging) {
		if feedRate <= 0 {
			return nil, fmt.Errorf("jog: feed rate must be positive")
		}
		return []string{
			commandJogPrefix + units + "G91" + distance.Gcode() + iFmt.SprintWord("F", feedRate, 4),
		}, nil
	}
	var move string
	if feedRate > 0 {
		move = units + "G91G1" + distance.Gcode() + iFmt.SprintWord("F", feedRate, 4)
	} else {
		move = units + "G91G0" + distance.Gcode()
	}
	return []string{move, commandAbsolute}, nil
}

// JogToCommand moves to an absolute machine position with hardware jogging.
func (f *Firmware) JogToCommand(
	capabilities Capabilities, target position.PartialPosition, feedRate float64,
) (string, error) {
	if !capabilities.Has(CapabilityHardwareJogging) {
		return "", fmt.Errorf("jog to: %w", ErrUnsupported)
	}
	if target.IsEmpty() {
		return "", fmt.Errorf("jog to: no axis given")
	}
	if feedRate <= 0 {
		return "", fmt.Errorf("jog to: feed rate must be positive")
	}
	units, err := target.Units().GcodeCode()
	if err != nil {
		return "", fmt.Errorf("jog to: %w", err)
	}
	return commandJogPrefix + units + "G90" + target.Gcode() + iFmt.SprintWord("F", feedRate, 4), nil
}

// ProbeCommands probes along axis for up to distance, eg: "G91 G21 G38.2 Z-10 F100", "G90".
func (f *Firmware) ProbeCommands(
	v Version, axis position.Axis, feedRate, distance float64, units position.Units,
) ([]string, error) {
	if err := requireVersion("probe", v); err != nil {
		return nil, err
	}
	unitsCode, err := units.GcodeCode()
	if err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}
	return []string{
		"G91 " + unitsCode + " G38.2 " + iFmt.SprintWord(axis.String(), distance, 4) + " " +
			iFmt.SprintWord("F", feedRate, 4),
		commandAbsolute,
	}, nil
}

// OffsetToolCommand applies a dynamic tool length offset, eg: "G21 G43.1 Z1.5".
func (f *Firmware) OffsetToolCommand(
	v Version, axis position.Axis, offset float64, units position.Units,
) (string, error) {
	if !v.AtLeast(versionCoordinateSystem) {
		return "", unsupported("offset tool", v)
	}
	unitsCode, err := units.GcodeCode()
	if err != nil {
		return "", fmt.Errorf("offset tool: %w", err)
	}
	return unitsCode + " G43.1 " + iFmt.SprintWord(axis.String(), offset, 4), nil
}

func (f *Firmware) SpindleOnCommand() string {
	return commandSpindleOn
}

func (f *Firmware) SpindleOffCommand() string {
	return commandSpindleOff
}

func (f *Firmware) MillModeCommand() (string, error) {
	if f.config.MillModeCommand == "" {
		return "", fmt.Errorf("mill mode: %w", ErrUnsupported)
	}
	return f.config.MillModeCommand, nil
}

func (f *Firmware) HotWireModeCommand() (string, error) {
	if f.config.HotWireModeCommand == "" {
		return "", fmt.Errorf("hot wire mode: %w", ErrUnsupported)
	}
	return f.config.HotWireModeCommand, nil
}
