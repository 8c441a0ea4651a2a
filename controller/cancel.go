package controller

import (
	"context"

	"github.com/fornellas/slogxt/log"

	grblMod "github.com/StephanGeberl/GCodeSender/grbl"
)

// Status reports to wait for the machine to stop, after a cancel.
const cancelAttempts = 50

// CancelSend stops the machine and drops all pending commands. When the firmware reports status,
// the machine is followed until it stops, soft resetting it if it is held in place.
func (c *Controller) CancelSend(ctx context.Context) error {
	ctx, logger := log.MustWithGroup(ctx, "Cancel")

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.transport == nil {
		return ErrNotConnected
	}

	realTime := c.capabilities.Has(grblMod.CapabilityRealTime)
	if c.stream.paused && !realTime {
		message := "Cannot cancel while paused with this version of GRBL. Reconnect to reset GRBL."
		return &Fault{
			Kind:    FaultCapabilityMismatch,
			Code:    -1,
			Message: message,
			Err:     ErrUnsupported,
		}
	}

	switch {
	case c.status.State == grblMod.StateJog && c.capabilities.Has(grblMod.CapabilityJogCancel):
		logger.Info("Cancelling jog")
		if err := c.writeRealTime(ctx, grblMod.RealTimeCommandJogCancel); err != nil {
			return err
		}
	case !c.stream.paused && realTime:
		logger.Info("Pausing")
		if err := c.writeRealTime(ctx, grblMod.RealTimeCommandFeedHold); err != nil {
			return err
		}
		c.stream.paused = true
		c.dispatchStateChange(ControlStateSendingPaused)
	}

	c.stream.cancelSend()
	c.stream.end()

	if realTime && c.options.StatusUpdatesEnabled {
		c.canceling = true
		c.cancelAttempts = cancelAttempts
		c.cancelLastPosition = nil
	}
	return nil
}

// cancelTick is called for every status report received while canceling.
func (c *Controller) cancelTick(ctx context.Context) error {
	logger := log.MustLogger(ctx)

	c.cancelAttempts--

	switch c.status.State {
	case grblMod.StateIdle, grblMod.StateCheck:
		logger.Info("Cancel complete")
		c.canceling = false
		c.cancelLastPosition = nil
		c.dispatchStateChange(c.controlState())
		return nil
	case grblMod.StateHold, grblMod.StateQueue:
		machineCoord := c.status.MachineCoord
		if c.cancelLastPosition != nil && *c.cancelLastPosition == machineCoord {
			logger.Info("Machine stopped, resetting")
			c.canceling = false
			c.cancelLastPosition = nil
			return c.softReset(ctx)
		}
		c.cancelLastPosition = &machineCoord
	}

	if c.cancelAttempts <= 0 {
		message := "Timeout waiting for GRBL to Idle during cancel, cancel incomplete."
		logger.Warn("Cancel timeout")
		c.canceling = false
		c.cancelLastPosition = nil
		c.console(ConsoleError, message, &Fault{Kind: FaultCancelTimeout, Code: -1, Message: message})
	}
	return nil
}

func (c *Controller) softReset(ctx context.Context) error {
	if c.capabilities.Has(grblMod.CapabilityRealTime) {
		if err := c.writeRealTime(ctx, grblMod.RealTimeCommandSoftReset); err != nil {
			return err
		}
	}
	c.stream.cancelSend()
	c.stream.end()
	return nil
}

// SoftReset resets the firmware, when supported, and drops all pending commands.
func (c *Controller) SoftReset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport == nil {
		return ErrNotConnected
	}
	log.MustLogger(ctx).Info("Soft reset")
	return c.softReset(ctx)
}

// IsCanceling tells whether a cancel is waiting for the machine to stop.
func (c *Controller) IsCanceling() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canceling
}
