package controller

import (
	"fmt"

	grblMod "github.com/StephanGeberl/GCodeSender/grbl"
	"github.com/StephanGeberl/GCodeSender/position"
)

// Event is published to controller subscribers.
type Event interface {
	String() string
}

type StateChangeEvent struct {
	State ControlState
}

func (e StateChangeEvent) String() string {
	return fmt.Sprintf("State: %s", e.State)
}

type StatusEvent struct {
	Status grblMod.ControllerStatus
}

func (e StatusEvent) String() string {
	return fmt.Sprintf("Status: %s", e.Status)
}

type AlarmEvent struct {
	Alarm grblMod.Alarm
}

func (e AlarmEvent) String() string {
	return fmt.Sprintf("Alarm: %s", e.Alarm)
}

type ProbeEvent struct {
	Position position.Position
	Success  bool
}

func (e ProbeEvent) String() string {
	return fmt.Sprintf("Probe: %s success=%v", e.Position, e.Success)
}

type CommandSentEvent struct {
	Command GcodeCommand
}

func (e CommandSentEvent) String() string {
	return fmt.Sprintf("Sent: %s", e.Command.Command)
}

type CommandSkippedEvent struct {
	Command GcodeCommand
}

func (e CommandSkippedEvent) String() string {
	return fmt.Sprintf("Skipped: %s", e.Command.Original)
}

type CommandCompleteEvent struct {
	Command GcodeCommand
}

func (e CommandCompleteEvent) String() string {
	return fmt.Sprintf("Complete: %s: %s", e.Command.Command, e.Command.Response)
}

type CommandCommentEvent struct {
	Comment string
}

func (e CommandCommentEvent) String() string {
	return fmt.Sprintf("Comment: %s", e.Comment)
}

type StreamCompleteEvent struct {
	Success bool
	Stats   StreamStats
}

func (e StreamCompleteEvent) String() string {
	return fmt.Sprintf("Stream complete: success=%v %s", e.Success, e.Stats)
}

type ConsoleType int

const (
	ConsoleInfo ConsoleType = iota
	ConsoleVerbose
	ConsoleError
)

func (t ConsoleType) String() string {
	switch t {
	case ConsoleInfo:
		return "INFO"
	case ConsoleVerbose:
		return "VERBOSE"
	case ConsoleError:
		return "ERROR"
	default:
		return fmt.Sprintf("ConsoleType(%d)", int(t))
	}
}

// ConsoleEvent is a user facing message. Errors carry the Fault that caused them.
type ConsoleEvent struct {
	Type    ConsoleType
	Message string
	Fault   *Fault
}

func (e ConsoleEvent) String() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}
