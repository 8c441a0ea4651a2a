package controller

import (
	"context"
	"fmt"
	"strings"

	"github.com/fornellas/slogxt/log"

	grblMod "github.com/StephanGeberl/GCodeSender/grbl"
)

// HandleResponse processes a single line received from the firmware. Failures are reported as
// console messages: a malformed line must never stop the processing of the following ones.
func (c *Controller) HandleResponse(ctx context.Context, line string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	logger := log.MustLogger(ctx)

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return c.handleResponse(ctx, line)
	}()
	if err != nil {
		logger.Error("Failed to process response", "line", line, "err", err)
		fault := &Fault{Kind: FaultUnparseableResponse, Code: -1, Message: line, Err: err}
		c.console(ConsoleError, fmt.Sprintf("Error while processing response <%s>: %s", line, err), fault)
	}
}

//gocyclo:ignore
func (c *Controller) handleResponse(ctx context.Context, line string) error {
	if c.transport == nil {
		return ErrNotConnected
	}
	switch response := grblMod.Classify(line).(type) {
	case *grblMod.OkResponse:
		return c.handleOk(ctx, response)
	case *grblMod.ErrorResponse:
		return c.handleError(ctx, response)
	case *grblMod.AlarmResponse:
		return c.handleAlarm(ctx, response)
	case *grblMod.VersionResponse:
		return c.handleVersion(ctx, response)
	case *grblMod.ProbeResponse:
		return c.handleProbe(response)
	case *grblMod.StatusReportResponse:
		return c.handleStatusReport(ctx, response)
	case *grblMod.FeedbackResponse:
		return c.handleFeedback(ctx, response)
	case *grblMod.SettingResponse:
		c.settings.Update(response)
		c.console(ConsoleVerbose, grblMod.FormatSetting(response.Key, response.Value), nil)
		return nil
	case *grblMod.InfoResponse:
		if response.Message != "" {
			c.console(ConsoleInfo, response.Message, nil)
		}
		return nil
	default:
		return fmt.Errorf("unknown response type %T", response)
	}
}

func (c *Controller) handleOk(ctx context.Context, _ *grblMod.OkResponse) error {
	if command := c.commandComplete(ctx, "ok", false); command == nil {
		log.MustLogger(ctx).Debug("Ok without an active command")
	}
	if err := c.streamCommands(ctx); err != nil {
		return err
	}
	c.checkStreamFinished(ctx)
	return nil
}

// handleFault reports error and alarm lines, attached to the active command, if any.
func (c *Controller) handleFault(ctx context.Context, kind FaultKind, code int, raw string) error {
	logger := log.MustLogger(ctx)
	fault := &Fault{Kind: kind, Code: code, Message: raw}

	command := c.stream.activeCommand()
	if command == nil {
		message := fmt.Sprintf("An unexpected error was detected: %s", c.firmware.DescribeLong(raw))
		logger.Warn("Unexpected error", "response", raw)
		c.console(ConsoleError, message, fault)
		return nil
	}

	fault.Command = command.Command
	message := fmt.Sprintf(
		"An error was detected while sending '%s': %s. Streaming has been paused.",
		command.Command, c.firmware.Describe(raw),
	)
	message = strings.ReplaceAll(message, "..", ".")
	logger.Warn("Command failed", "command", command.Command, "response", raw)
	c.console(ConsoleError, message, fault)

	c.commandComplete(ctx, raw, true)

	if c.stream.streaming {
		if err := c.pauseStreaming(ctx); err != nil {
			return err
		}
	}
	return c.streamCommands(ctx)
}

func (c *Controller) handleError(ctx context.Context, response *grblMod.ErrorResponse) error {
	return c.handleFault(ctx, FaultProtocol, response.Code, response.Message)
}

func (c *Controller) handleAlarm(ctx context.Context, response *grblMod.AlarmResponse) error {
	alarm := grblMod.NewAlarm(response)
	log.MustLogger(ctx).Error("Alarm", "alarm", alarm.String())

	c.updateCheckModeSingleStep(c.status.State, grblMod.StateAlarm)
	c.status.State = grblMod.StateAlarm
	c.status.StateString = c.firmware.DescribeShort(response.Message)
	c.publish(AlarmEvent{Alarm: alarm})
	c.publish(StatusEvent{Status: c.status})
	c.dispatchStateChange(ControlStateIdle)

	return c.handleFault(ctx, FaultAlarm, response.Code, response.Message)
}

func (c *Controller) handleVersion(ctx context.Context, response *grblMod.VersionResponse) error {
	logger := log.MustLogger(ctx)

	c.ready = true
	c.stream.clear()
	c.outstandingPolls = 0
	c.canceling = false
	c.cancelLastPosition = nil
	if c.controlState() != ControlStateCheck {
		c.status = grblMod.NewDisconnectedStatus(c.settings.ReportingUnits())
		c.status.State = grblMod.StateUnknown
		c.status.MachineMode = c.machineMode
	}

	c.stopPolling()
	c.version = response.Version
	c.capabilities = c.firmware.DetectCapabilities(response.Version)
	logger.Info("Firmware", "version", c.version.String(), "capabilities", c.capabilities.String())
	c.startPolling()

	if c.stream.streaming {
		c.checkStreamFinished(ctx)
	}

	commands := []string{}
	if command, err := c.firmware.ViewSettingsCommand(c.capabilities); err == nil {
		commands = append(commands, command)
	}
	if command, err := c.firmware.ViewParserStateCommand(c.version); err == nil {
		commands = append(commands, command)
	}
	if err := c.sendLines(ctx, commands...); err != nil {
		return err
	}

	c.console(ConsoleInfo, fmt.Sprintf("Grbl version = %s", c.version), nil)
	c.dispatchStateChange(c.controlState())
	return nil
}

func (c *Controller) handleProbe(response *grblMod.ProbeResponse) error {
	p, success, err := grblMod.ParseProbe(response.Message, c.settings.ReportingUnits())
	if err != nil {
		return err
	}
	c.publish(ProbeEvent{Position: p, Success: success})
	return nil
}

//gocyclo:ignore
func (c *Controller) handleStatusReport(ctx context.Context, response *grblMod.StatusReportResponse) error {
	logger := log.MustLogger(ctx)
	c.outstandingPolls = 0

	before := c.controlState()
	prev := c.status

	status, err := grblMod.ParseStatusReport(
		prev, response.Message, c.capabilities, c.settings.ReportingUnits(),
	)
	if err != nil {
		return err
	}
	c.status = status

	after := c.controlState()
	if after != before {
		logger.Debug("State changed", "from", before.String(), "to", after.String())
		c.dispatchStateChange(after)
	}

	if prev.State == grblMod.StateJog && status.State == grblMod.StateIdle {
		logger.Debug("Jog complete")
		c.stream.cancelSend()
	}

	c.updateCheckModeSingleStep(prev.State, status.State)

	if c.canceling {
		if err := c.cancelTick(ctx); err != nil {
			return err
		}
	}

	c.publish(StatusEvent{Status: c.status})

	c.checkStreamFinished(ctx)
	return nil
}

// updateCheckModeSingleStep forces single step mode while in check mode, restoring the previous
// value once it is left.
func (c *Controller) updateCheckModeSingleStep(prev, next grblMod.State) {
	switch {
	case prev != grblMod.StateCheck && next == grblMod.StateCheck:
		c.checkSingleStepMode = c.stream.singleStep
		c.stream.singleStep = true
	case prev == grblMod.StateCheck && next != grblMod.StateCheck:
		c.stream.singleStep = c.checkSingleStepMode
	}
}

func (c *Controller) handleFeedback(ctx context.Context, response *grblMod.FeedbackResponse) error {
	if command, ok := grblMod.ParserStateCommand(response, c.capabilities); ok {
		if err := c.modal.UpdateFromLine(command); err != nil {
			return fmt.Errorf("parser state %#v: %w", response.Message, err)
		}
		log.MustLogger(ctx).Debug("Parser state", "modal", c.modal.String())
		return nil
	}
	c.console(ConsoleVerbose, response.Message, nil)
	return nil
}
