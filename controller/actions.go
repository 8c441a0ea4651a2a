package controller

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fornellas/slogxt/log"
	"github.com/soniah/evaler"

	grblMod "github.com/StephanGeberl/GCodeSender/grbl"
	"github.com/StephanGeberl/GCodeSender/position"
)

// action sends the commands built by commandsFn. Commands the firmware has no template for are
// reported as a FaultCapabilityMismatch. onSent, when given, runs after the commands were queued.
func (c *Controller) action(
	ctx context.Context,
	name string,
	commandsFn func() ([]string, error),
	onSent func(),
) error {
	ctx, logger := log.MustWithGroupAttrs(ctx, "Action", "name", name)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkReadyToSendCommands(); err != nil {
		return err
	}

	commands, err := commandsFn()
	if err != nil {
		if errors.Is(err, ErrUnsupported) {
			return &Fault{
				Kind:    FaultCapabilityMismatch,
				Code:    -1,
				Message: fmt.Sprintf("%s is not supported by Grbl %s", name, c.version),
				Err:     err,
			}
		}
		return fmt.Errorf("%s: %w", name, err)
	}

	logger.Info("Sending", "commands", commands)
	if err := c.sendLines(ctx, commands...); err != nil {
		return err
	}
	if onSent != nil {
		onSent()
	}
	return nil
}

func single(command string, err error) ([]string, error) {
	if err != nil {
		return nil, err
	}
	return []string{command}, nil
}

// PerformHomingCycle sends $H. The status is set to Home right away, as the firmware does not
// answer status queries while homing.
func (c *Controller) PerformHomingCycle(ctx context.Context) error {
	return c.action(ctx, "homing", func() ([]string, error) {
		return single(c.firmware.HomingCommand(c.version))
	}, func() {
		c.status.State = grblMod.StateHome
		c.status.StateString = grblMod.StateHome.String()
		c.publish(StatusEvent{Status: c.status})
	})
}

func (c *Controller) KillAlarmLock(ctx context.Context) error {
	return c.action(ctx, "kill alarm lock", func() ([]string, error) {
		return single(c.firmware.KillAlarmLockCommand(c.version))
	}, nil)
}

func (c *Controller) ToggleCheckMode(ctx context.Context) error {
	return c.action(ctx, "toggle check mode", func() ([]string, error) {
		return single(c.firmware.ToggleCheckModeCommand(c.capabilities))
	}, nil)
}

func (c *Controller) ViewParserState(ctx context.Context) error {
	return c.action(ctx, "view parser state", func() ([]string, error) {
		return single(c.firmware.ViewParserStateCommand(c.version))
	}, nil)
}

func (c *Controller) ViewSettings(ctx context.Context) error {
	return c.action(ctx, "view settings", func() ([]string, error) {
		return single(c.firmware.ViewSettingsCommand(c.capabilities))
	}, nil)
}

////////////////////////////////////////////////////////////////////////////////////////////////////
// Coordinates
////////////////////////////////////////////////////////////////////////////////////////////////////

func (c *Controller) ResetCoordinatesToZero(ctx context.Context) error {
	return c.action(ctx, "reset coordinates to zero", func() ([]string, error) {
		return single(c.firmware.ResetCoordinatesToZeroCommand(c.version))
	}, nil)
}

func (c *Controller) ResetCoordinatesToZeroMill(ctx context.Context) error {
	return c.action(ctx, "reset mill coordinates to zero", func() ([]string, error) {
		return single(c.firmware.ResetCoordinatesToZeroMillCommand(c.version))
	}, nil)
}

func (c *Controller) ResetCoordinatesToZeroHotWire(ctx context.Context) error {
	return c.action(ctx, "reset hot wire coordinates to zero", func() ([]string, error) {
		return single(c.firmware.ResetCoordinatesToZeroHotWireCommand(c.version))
	}, nil)
}

func (c *Controller) ResetCoordinateToZero(ctx context.Context, axis position.Axis) error {
	return c.action(ctx, "reset "+axis.String()+" to zero", func() ([]string, error) {
		return single(c.firmware.ResetCoordinateToZeroCommand(c.version, axis))
	}, nil)
}

// SetWorkPosition sets the work coordinates of the given axes to their values.
func (c *Controller) SetWorkPosition(ctx context.Context, pp position.PartialPosition) error {
	return c.action(ctx, "set work position", func() ([]string, error) {
		return single(c.firmware.SetWorkPositionCommand(c.version, pp))
	}, nil)
}

// EvaluateWorkPositionExpression evaluates an arithmetic expression where "#" is the current
// work coordinate, eg: "# / 2".
func EvaluateWorkPositionExpression(expression string, current float64) (float64, error) {
	value := strconv.FormatFloat(current, 'f', -1, 64)
	if current < 0 {
		value = "(0" + value + ")"
	}
	rat, err := evaler.Eval(strings.ReplaceAll(expression, "#", value))
	if err != nil {
		return 0, fmt.Errorf("invalid expression %#v: %w", expression, err)
	}
	result, _ := rat.Float64()
	return result, nil
}

// SetWorkPositionExpression sets the work coordinate of axis to the result of expression, in the
// active G-code units.
func (c *Controller) SetWorkPositionExpression(ctx context.Context, axis position.Axis, expression string) error {
	return c.action(ctx, "set work position", func() ([]string, error) {
		units := c.modal.PositionUnits()
		if units == position.UnitsUnknown {
			units = position.UnitsMM
		}
		current := c.status.WorkCoord
		if current.Units != position.UnitsUnknown {
			current = current.In(units)
		}
		value, err := EvaluateWorkPositionExpression(expression, current.Get(axis))
		if err != nil {
			return nil, err
		}
		pp := position.NewPartialPosition(units).With(axis, value)
		return single(c.firmware.SetWorkPositionCommand(c.version, pp))
	}, nil)
}

// ReturnToHome travels to work X0 Y0 and then Z0, raising Z first when it is low.
func (c *Controller) ReturnToHome(ctx context.Context) error {
	return c.action(ctx, "return to home", func() ([]string, error) {
		workZ := c.status.WorkCoord
		if workZ.Units != position.UnitsUnknown {
			workZ = workZ.In(position.UnitsMM)
		}
		return c.firmware.ReturnToHomeCommands(c.version, workZ.Z)
	}, nil)
}

////////////////////////////////////////////////////////////////////////////////////////////////////
// Modes
////////////////////////////////////////////////////////////////////////////////////////////////////

func (c *Controller) setMachineMode(mode string) {
	c.machineMode = mode
	c.status.MachineMode = mode
	c.publish(StatusEvent{Status: c.status})
}

func (c *Controller) SwitchToMill(ctx context.Context) error {
	return c.action(ctx, "switch to mill", func() ([]string, error) {
		return single(c.firmware.MillModeCommand())
	}, func() {
		c.setMachineMode(MachineModeMill)
	})
}

func (c *Controller) SwitchToHotWire(ctx context.Context) error {
	return c.action(ctx, "switch to hot wire", func() ([]string, error) {
		return single(c.firmware.HotWireModeCommand())
	}, func() {
		c.setMachineMode(MachineModeHotWire)
	})
}

func (c *Controller) SwitchOnSpindle(ctx context.Context) error {
	return c.action(ctx, "spindle on", func() ([]string, error) {
		return []string{c.firmware.SpindleOnCommand()}, nil
	}, nil)
}

func (c *Controller) SwitchOffSpindle(ctx context.Context) error {
	return c.action(ctx, "spindle off", func() ([]string, error) {
		return []string{c.firmware.SpindleOffCommand()}, nil
	}, nil)
}

////////////////////////////////////////////////////////////////////////////////////////////////////
// Motion
////////////////////////////////////////////////////////////////////////////////////////////////////

// JogDirections holds, per axis, -1, 0 or 1.
type JogDirections map[position.Axis]int

// JogMachine moves each axis with a non zero direction by step.
func (c *Controller) JogMachine(
	ctx context.Context, directions JogDirections, step, feedRate float64, units position.Units,
) error {
	return c.action(ctx, "jog", func() ([]string, error) {
		distance := position.NewPartialPosition(units)
		for _, axis := range position.Axes {
			switch direction := directions[axis]; {
			case direction > 0:
				distance = distance.With(axis, step)
			case direction < 0:
				distance = distance.With(axis, -step)
			}
		}
		return c.firmware.JogCommands(c.capabilities, distance, feedRate)
	}, nil)
}

// JogMachineTo moves to an absolute machine position.
func (c *Controller) JogMachineTo(ctx context.Context, target position.PartialPosition, feedRate float64) error {
	return c.action(ctx, "jog to", func() ([]string, error) {
		return single(c.firmware.JogToCommand(c.capabilities, target, feedRate))
	}, nil)
}

// Probe probes along axis. The result is published as a ProbeEvent.
func (c *Controller) Probe(
	ctx context.Context, axis position.Axis, feedRate, distance float64, units position.Units,
) error {
	return c.action(ctx, "probe", func() ([]string, error) {
		return c.firmware.ProbeCommands(c.version, axis, feedRate, distance, units)
	}, nil)
}

func (c *Controller) OffsetTool(ctx context.Context, axis position.Axis, offset float64, units position.Units) error {
	return c.action(ctx, "offset tool", func() ([]string, error) {
		return single(c.firmware.OffsetToolCommand(c.version, axis, offset, units))
	}, nil)
}

// RestoreParserModalState re-sends the tracked modal state, eg after a soft reset.
func (c *Controller) RestoreParserModalState(ctx context.Context) error {
	return c.action(ctx, "restore parser modal state", func() ([]string, error) {
		return []string{c.modal.Restore()}, nil
	}, nil)
}

////////////////////////////////////////////////////////////////////////////////////////////////////
// Overrides
////////////////////////////////////////////////////////////////////////////////////////////////////

// SendOverride sends the real time byte for override. Overrides the firmware does not support are
// ignored.
func (c *Controller) SendOverride(ctx context.Context, override grblMod.Override) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	command, ok := grblMod.OverrideCommand(override, c.capabilities)
	if !ok {
		log.MustLogger(ctx).Debug("Override not supported", "override", override.String())
		return nil
	}
	if err := c.writeRealTime(ctx, command); err != nil {
		return err
	}
	c.console(ConsoleInfo, fmt.Sprintf(">>> 0x%02x", byte(command)), nil)
	return nil
}
