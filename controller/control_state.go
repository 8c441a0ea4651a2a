package controller

import (
	"fmt"
	"strings"
)

// ControlState is the sender's view of the machine, derived from the firmware state.
type ControlState int

const (
	ControlStateDisconnected ControlState = iota
	ControlStateIdle
	ControlStateSending
	ControlStateSendingPaused
	ControlStateCheck
)

var controlStateNames = map[ControlState]string{
	ControlStateDisconnected:  "DISCONNECTED",
	ControlStateIdle:          "IDLE",
	ControlStateSending:       "SENDING",
	ControlStateSendingPaused: "SENDING_PAUSED",
	ControlStateCheck:         "CHECK",
}

func (s ControlState) String() string {
	if name, ok := controlStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ControlState(%d)", int(s))
}

// DeriveControlState maps a firmware state token, plus the local streaming and pause flags, to a
// ControlState. Alarm maps to IDLE: alarms are tracked on the status, not as a control state.
// Unknown tokens also map to IDLE, so that unexpected firmware text never wedges the sender.
func DeriveControlState(stateString string, streaming, paused bool) ControlState {
	switch strings.ToLower(stateString) {
	case "jog", "run":
		return ControlStateSending
	case "hold", "door", "queue":
		return ControlStateSendingPaused
	case "idle":
		if streaming {
			return ControlStateSendingPaused
		}
		return ControlStateIdle
	case "alarm":
		return ControlStateIdle
	case "check":
		switch {
		case streaming && paused:
			return ControlStateSendingPaused
		case streaming:
			return ControlStateSending
		default:
			return ControlStateCheck
		}
	default:
		return ControlStateIdle
	}
}

// localControlState is used for firmware without real time status: state follows the stream.
func localControlState(streaming, paused bool) ControlState {
	switch {
	case streaming && paused:
		return ControlStateSendingPaused
	case streaming:
		return ControlStateSending
	default:
		return ControlStateIdle
	}
}
