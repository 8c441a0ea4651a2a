package grbl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/StephanGeberl/GCodeSender/position"
)

type State int

const (
	StateUnknown State = iota
	StateIdle
	StateRun
	StateHold
	StateJog
	StateAlarm
	StateDoor
	StateCheck
	StateHome
	StateSleep
	StateQueue
	StateDisconnected
)

var stateNames = map[State]string{
	StateUnknown:      "Unknown",
	StateIdle:         "Idle",
	StateRun:          "Run",
	StateHold:         "Hold",
	StateJog:          "Jog",
	StateAlarm:        "Alarm",
	StateDoor:         "Door",
	StateCheck:        "Check",
	StateHome:         "Home",
	StateSleep:        "Sleep",
	StateQueue:        "Queue",
	StateDisconnected: "Disconnected",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ParseState maps a firmware state token (case insensitive, without sub state) to a State.
// Unknown tokens give StateUnknown.
func ParseState(token string) State {
	for state, name := range stateNames {
		if state != StateUnknown && state != StateDisconnected && strings.EqualFold(name, token) {
			return state
		}
	}
	return StateUnknown
}

// Input pins Grbl has detected as 'triggered'.
type PinState struct {
	XLimit     bool
	YLimit     bool
	ZLimit     bool
	ALimit     bool
	BLimit     bool
	Probe      bool
	Door       bool
	Hold       bool
	SoftReset  bool
	CycleStart bool
}

func parsePinState(pins string) (PinState, error) {
	pinState := PinState{}
	for _, pin := range pins {
		switch pin {
		case 'X':
			pinState.XLimit = true
		case 'Y':
			pinState.YLimit = true
		case 'Z':
			pinState.ZLimit = true
		case 'A':
			pinState.ALimit = true
		case 'B':
			pinState.BLimit = true
		case 'P':
			pinState.Probe = true
		case 'D':
			pinState.Door = true
		case 'H':
			pinState.Hold = true
		case 'R':
			pinState.SoftReset = true
		case 'S':
			pinState.CycleStart = true
		default:
			return PinState{}, fmt.Errorf("pin state unknown pin: %#v", string(pin))
		}
	}
	return pinState, nil
}

//gocyclo:ignore
func (p PinState) String() string {
	var b strings.Builder
	for _, pin := range []struct {
		set    bool
		letter byte
	}{
		{p.XLimit, 'X'}, {p.YLimit, 'Y'}, {p.ZLimit, 'Z'}, {p.ALimit, 'A'}, {p.BLimit, 'B'},
		{p.Probe, 'P'}, {p.Door, 'D'}, {p.Hold, 'H'}, {p.SoftReset, 'R'}, {p.CycleStart, 'S'},
	} {
		if pin.set {
			b.WriteByte(pin.letter)
		}
	}
	return b.String()
}

// Indicates current override values in percent of programmed values.
type OverrideValues struct {
	Feed    int
	Rapids  int
	Spindle int
}

var defaultOverrideValues = OverrideValues{Feed: 100, Rapids: 100, Spindle: 100}

func (o OverrideValues) HasOverride() bool {
	return o != defaultOverrideValues
}

type AccessoryState struct {
	SpindleCW    bool
	SpindleCCW   bool
	FloodCoolant bool
	MistCoolant  bool
}

func parseAccessoryState(accessories string) (AccessoryState, error) {
	accessoryState := AccessoryState{}
	for _, accessory := range accessories {
		switch accessory {
		case 'S':
			accessoryState.SpindleCW = true
		case 'C':
			accessoryState.SpindleCCW = true
		case 'F':
			accessoryState.FloodCoolant = true
		case 'M':
			accessoryState.MistCoolant = true
		default:
			return AccessoryState{}, fmt.Errorf("accessory state unknown accessory: %#v", string(accessory))
		}
	}
	return accessoryState, nil
}

type BufferState struct {
	// Number of available blocks in the planner buffer
	AvailableBlocks int
	// Number of available bytes in the serial RX buffer
	AvailableBytes int
}

// ControllerStatus is an immutable snapshot of the machine status. Each status report produces a
// new value; fields the firmware omitted are inherited from the previous snapshot.
type ControllerStatus struct {
	// Raw firmware state token, eg "Idle", "Hold". Set to "ALARM:N (description)" on alarms.
	StateString string
	State       State
	// Sub state, eg 0 for "Hold:0"; -1 when absent.
	SubState             int
	MachineCoord         position.Position
	WorkCoord            position.Position
	WorkCoordinateOffset position.Position
	FeedSpeed            float64
	SpindleSpeed         float64
	Overrides            OverrideValues
	Pins                 PinState
	Accessories          AccessoryState
	Buffer               *BufferState
	LineNumber           *int
	// MachineMode is the user selected machine mode label, eg "Mill" or "HotWire".
	MachineMode string
}

// NewDisconnectedStatus is the status before any report is received.
func NewDisconnectedStatus(units position.Units) ControllerStatus {
	return ControllerStatus{
		StateString:          "",
		State:                StateDisconnected,
		SubState:             -1,
		MachineCoord:         position.Position{Units: units},
		WorkCoord:            position.Position{Units: units},
		WorkCoordinateOffset: position.Position{Units: units},
		Overrides:            defaultOverrideValues,
	}
}

// SubStateString describes Hold and Door sub states.
func (s ControllerStatus) SubStateString() string {
	if s.SubState < 0 {
		return ""
	}
	switch s.State {
	case StateHold:
		switch s.SubState {
		case 0:
			return "complete"
		case 1:
			return "in-progress"
		}
	case StateDoor:
		switch s.SubState {
		case 0:
			return "closed"
		case 1:
			return "ajar"
		case 2:
			return "opened"
		case 3:
			return "resuming"
		}
	}
	return fmt.Sprintf("unknown (%d)", s.SubState)
}

func (s ControllerStatus) String() string {
	return fmt.Sprintf("%s MPos:%s WPos:%s", s.StateString, s.MachineCoord, s.WorkCoord)
}

type statusReportParser struct {
	prev   ControllerStatus
	units  position.Units
	status ControllerStatus

	mpos, wpos, wco    *position.Position
	hasOverrideReport  bool
	pins               *PinState
	accessories        *AccessoryState
	buffer             *BufferState
	lineNumber         *int
	feedSpeed, spindle *float64
}

func splitStatusField(field string) (string, string, error) {
	key, value, ok := strings.Cut(field, ":")
	if !ok {
		return "", "", fmt.Errorf("malformed data field: %#v", field)
	}
	return key, value, nil
}

func (p *statusReportParser) parseState(token string) error {
	stateString, subState, hasSubState := strings.Cut(token, ":")
	if stateString == "" {
		return fmt.Errorf("machine state field empty: %#v", token)
	}
	p.status.StateString = stateString
	p.status.State = ParseState(stateString)
	p.status.SubState = -1
	if hasSubState {
		n, err := strconv.Atoi(subState)
		if err != nil {
			return fmt.Errorf("machine state sub state invalid: %#v", token)
		}
		p.status.SubState = n
	}
	return nil
}

func parseFloats(name, value string, count int) ([]float64, error) {
	parts := strings.Split(value, ",")
	if len(parts) != count {
		return nil, fmt.Errorf("%s field malformed: %#v", name, value)
	}
	values := make([]float64, count)
	for i, part := range parts {
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("%s invalid: %#v", name, value)
		}
		values[i] = f
	}
	return values, nil
}

//gocyclo:ignore
func (p *statusReportParser) parseField(key, value string) error {
	var err error
	switch key {
	case "MPos", "WPos", "WCO":
		var pos position.Position
		pos, err = position.ParsePosition(value, p.units)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", key, err)
		}
		switch key {
		case "MPos":
			p.mpos = &pos
		case "WPos":
			p.wpos = &pos
		case "WCO":
			p.wco = &pos
		}
	case "Bf", "Buf":
		// pre 1.1 reports "Buf:N,RX:M" where RX comes as a separate field
		var values []float64
		if key == "Bf" {
			values, err = parseFloats("buffer state", value, 2)
		} else {
			values, err = parseFloats("buffer state", value+",0", 2)
		}
		if err != nil {
			return err
		}
		p.buffer = &BufferState{AvailableBlocks: int(values[0]), AvailableBytes: int(values[1])}
	case "RX":
		values, err := parseFloats("RX", value, 1)
		if err != nil {
			return err
		}
		if p.buffer != nil {
			p.buffer.AvailableBytes = int(values[0])
		}
	case "Ln":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("line number invalid: %#v", value)
		}
		p.lineNumber = &n
	case "F":
		values, err := parseFloats("feed", value, 1)
		if err != nil {
			return err
		}
		p.feedSpeed = &values[0]
	case "FS":
		values, err := parseFloats("feed spindle", value, 2)
		if err != nil {
			return err
		}
		p.feedSpeed = &values[0]
		p.spindle = &values[1]
	case "Pn":
		pins, err := parsePinState(value)
		if err != nil {
			return err
		}
		p.pins = &pins
	case "Ov":
		values, err := parseFloats("override values", value, 3)
		if err != nil {
			return err
		}
		p.hasOverrideReport = true
		p.status.Overrides = OverrideValues{Feed: int(values[0]), Rapids: int(values[1]), Spindle: int(values[2])}
	case "A":
		accessories, err := parseAccessoryState(value)
		if err != nil {
			return err
		}
		p.accessories = &accessories
	}
	return nil
}

// pre 1.1 reports are comma separated, and positions span multiple commas:
// <Idle,MPos:0.000,0.000,0.000,WPos:0.000,0.000,0.000>
func splitLegacyFields(body string) []string {
	fields := []string{}
	for _, token := range strings.Split(body, ",") {
		if strings.Contains(token, ":") || len(fields) == 0 {
			fields = append(fields, token)
			continue
		}
		fields[len(fields)-1] += "," + token
	}
	return fields
}

func (p *statusReportParser) finish() {
	s := &p.status

	if p.wco != nil {
		s.WorkCoordinateOffset = *p.wco
	} else {
		s.WorkCoordinateOffset = p.prev.WorkCoordinateOffset.In(p.units)
	}

	switch {
	case p.mpos != nil && p.wpos != nil:
		s.MachineCoord, s.WorkCoord = *p.mpos, *p.wpos
	case p.mpos != nil:
		s.MachineCoord = *p.mpos
		s.WorkCoord = p.mpos.Sub(s.WorkCoordinateOffset)
	case p.wpos != nil:
		s.WorkCoord = *p.wpos
		s.MachineCoord = p.wpos.Add(s.WorkCoordinateOffset)
	default:
		s.MachineCoord = p.prev.MachineCoord.In(p.units)
		s.WorkCoord = p.prev.WorkCoord.In(p.units)
	}

	if p.feedSpeed != nil {
		s.FeedSpeed = *p.feedSpeed
	}
	if p.spindle != nil {
		s.SpindleSpeed = *p.spindle
	}

	if p.hasOverrideReport {
		// override reports always carry the full pin and accessory state
		s.Pins = PinState{}
		s.Accessories = AccessoryState{}
	}
	if p.pins != nil {
		s.Pins = *p.pins
	}
	if p.accessories != nil {
		s.Accessories = *p.accessories
	}

	s.Buffer = p.buffer
	s.LineNumber = p.lineNumber
}

// ParseStatusReport parses a "<...>" status report into a new ControllerStatus. Fields missing
// from the report are inherited from prev. Positions are tagged with units, the firmware
// reporting units.
func ParseStatusReport(
	prev ControllerStatus, message string, capabilities Capabilities, units position.Units,
) (ControllerStatus, error) {
	if !strings.HasPrefix(message, "<") || !strings.HasSuffix(message, ">") {
		return ControllerStatus{}, fmt.Errorf("status report message is not enclosed in '<>': %#v", message)
	}
	body := message[1 : len(message)-1]

	p := &statusReportParser{
		prev:  prev,
		units: units,
		status: ControllerStatus{
			FeedSpeed:    prev.FeedSpeed,
			SpindleSpeed: prev.SpindleSpeed,
			Overrides:    prev.Overrides,
			Pins:         prev.Pins,
			Accessories:  prev.Accessories,
			MachineMode:  prev.MachineMode,
		},
	}

	var fields []string
	if capabilities.Has(CapabilityV1_1) || strings.Contains(body, "|") {
		fields = strings.Split(body, "|")
	} else {
		fields = splitLegacyFields(body)
	}

	if err := p.parseState(fields[0]); err != nil {
		return ControllerStatus{}, fmt.Errorf("status report message parsing failed: %#v: %w", message, err)
	}

	for _, field := range fields[1:] {
		key, value, err := splitStatusField(field)
		if err != nil {
			return ControllerStatus{}, fmt.Errorf("status report message: %#v: %w", message, err)
		}
		if err := p.parseField(key, value); err != nil {
			return ControllerStatus{}, fmt.Errorf("status report message: %#v: %w", message, err)
		}
	}

	p.finish()
	return p.status, nil
}
