package controller

import (
	"errors"
	"fmt"

	grblMod "github.com/StephanGeberl/GCodeSender/grbl"
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrNotReady     = errors.New("grbl has not finished booting")
	ErrUnsupported  = grblMod.ErrUnsupported
)

type FaultKind int

const (
	// Firmware reported error:N.
	FaultProtocol FaultKind = iota
	// Firmware reported ALARM:N.
	FaultAlarm
	// Request refused as the firmware lacks a required capability.
	FaultCapabilityMismatch
	// Machine did not stop within the cancel budget.
	FaultCancelTimeout
	// Received line could not be processed.
	FaultUnparseableResponse
)

var faultKindNames = map[FaultKind]string{
	FaultProtocol:            "protocol fault",
	FaultAlarm:               "alarm",
	FaultCapabilityMismatch:  "capability mismatch",
	FaultCancelTimeout:       "cancel timeout",
	FaultUnparseableResponse: "unparseable response",
}

func (k FaultKind) String() string {
	if name, ok := faultKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("FaultKind(%d)", int(k))
}

// Fault is a controller level error. Callers branch on Kind with errors.As, or with errors.Is
// against a Fault of the same kind.
type Fault struct {
	Kind FaultKind
	// Firmware error or alarm code, -1 when not applicable.
	Code    int
	Message string
	// Command the fault is attributed to, if any.
	Command string
	Err     error
}

func (f *Fault) Error() string {
	msg := f.Kind.String()
	if f.Command != "" {
		msg += fmt.Sprintf(": %#v", f.Command)
	}
	if f.Message != "" {
		msg += ": " + f.Message
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Fault) Unwrap() error {
	return f.Err
}

func (f *Fault) Is(target error) bool {
	t, ok := target.(*Fault)
	if !ok {
		return false
	}
	return t.Kind == f.Kind
}
