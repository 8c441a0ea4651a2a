package controller

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"time"
)

var errNothingToStream = errors.New("there are no commands queued for streaming")

type StreamStats struct {
	RowsInSend    int
	RowsSent      int
	RowsCompleted int
	RowsRemaining int
	SendDuration  time.Duration
}

func (s StreamStats) String() string {
	return fmt.Sprintf(
		"rows=%d sent=%d completed=%d remaining=%d duration=%s",
		s.RowsInSend, s.RowsSent, s.RowsCompleted, s.RowsRemaining, s.SendDuration.Round(time.Millisecond),
	)
}

// commandStream implements Grbl character counting flow control: commands are sent as long as
// the bytes of all unacknowledged commands fit the firmware receive buffer. Each ok or error
// acknowledges the oldest active command. It is not safe for concurrent use.
type commandStream struct {
	bufferSize int
	singleStep bool

	manual      []*GcodeCommand
	file        []*GcodeCommand
	active      []*GcodeCommand
	activeBytes int

	streaming bool
	paused    bool

	errors        int
	rowsInSend    int
	rowsSent      int
	rowsCompleted int
	started       time.Time
	finished      time.Time

	// number of times pending commands were cancelled
	sendCancels int
}

func newCommandStream(bufferSize int, singleStep bool) *commandStream {
	return &commandStream{
		bufferSize: bufferSize,
		singleStep: singleStep,
	}
}

// next pops the next command to send, if any fits. Manual commands have priority over the file.
func (s *commandStream) next() *GcodeCommand {
	if s.paused {
		return nil
	}
	if s.singleStep && len(s.active) > 0 {
		return nil
	}
	var queue *[]*GcodeCommand
	switch {
	case len(s.manual) > 0:
		queue = &s.manual
	case s.streaming && len(s.file) > 0:
		queue = &s.file
	default:
		return nil
	}
	command := (*queue)[0]
	if command.Command != "" && len(s.active) > 0 && s.activeBytes+command.size() > s.bufferSize {
		return nil
	}
	(*queue)[0] = nil
	*queue = (*queue)[1:]
	return command
}

func (s *commandStream) sent(command *GcodeCommand) {
	command.Sent = true
	s.active = append(s.active, command)
	s.activeBytes += command.size()
	if command.FromFile {
		s.rowsSent++
	}
}

func (s *commandStream) skipped(command *GcodeCommand) {
	command.Skipped = true
	command.Done = true
	if command.FromFile {
		s.rowsSent++
		s.rowsCompleted++
	}
}

// complete acknowledges the oldest active command.
func (s *commandStream) complete(response string, isError bool) *GcodeCommand {
	if len(s.active) == 0 {
		return nil
	}
	command := s.active[0]
	s.active[0] = nil
	s.active = s.active[1:]
	s.activeBytes -= command.size()
	command.Done = true
	command.Error = isError
	command.Response = response
	if isError {
		s.errors++
	}
	if command.FromFile {
		s.rowsCompleted++
	}
	return command
}

func (s *commandStream) activeCommand() *GcodeCommand {
	if len(s.active) == 0 {
		return nil
	}
	return s.active[0]
}

func (s *commandStream) queueManual(commands ...*GcodeCommand) {
	s.manual = append(s.manual, commands...)
}

func (s *commandStream) queueFile(commands ...*GcodeCommand) {
	for _, command := range commands {
		command.FromFile = true
	}
	s.file = append(s.file, commands...)
	s.rowsInSend += len(commands)
}

// readFile reads r line by line, creating commands with newCommandFn.
func readFile(r io.Reader, newCommandFn func(string) (*GcodeCommand, error)) ([]*GcodeCommand, error) {
	commands := []*GcodeCommand{}
	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		command, err := newCommandFn(scanner.Text())
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNumber, err)
		}
		commands = append(commands, command)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}
	return commands, nil
}

// hasPending tells whether file commands are still queued or any command awaits acknowledgement.
func (s *commandStream) hasPending() bool {
	return len(s.file) > 0 || len(s.active) > 0
}

func (s *commandStream) begin() error {
	if len(s.file) == 0 {
		return errNothingToStream
	}
	s.streaming = true
	s.paused = false
	s.errors = 0
	s.rowsInSend = len(s.file)
	s.rowsSent = 0
	s.rowsCompleted = 0
	s.started = time.Now()
	s.finished = time.Time{}
	return nil
}

func (s *commandStream) end() {
	if s.streaming {
		s.finished = time.Now()
	}
	s.streaming = false
	s.paused = false
}

// clear drops everything queued and active, as after a firmware reset.
func (s *commandStream) clear() {
	s.manual = nil
	s.file = nil
	s.active = nil
	s.activeBytes = 0
	s.paused = false
}

// cancelSend drops all pending commands, on user request or as the firmware finished a jog.
func (s *commandStream) cancelSend() {
	s.clear()
	s.sendCancels++
}

// cancelManual drops commands queued with SendCommandImmediately which were not sent yet.
func (s *commandStream) cancelManual() {
	s.manual = nil
}

func (s *commandStream) stats() StreamStats {
	stats := StreamStats{
		RowsInSend:    s.rowsInSend,
		RowsSent:      s.rowsSent,
		RowsCompleted: s.rowsCompleted,
		RowsRemaining: s.rowsInSend - s.rowsCompleted,
	}
	switch {
	case s.started.IsZero():
	case s.streaming:
		stats.SendDuration = time.Since(s.started)
	default:
		stats.SendDuration = s.finished.Sub(s.started)
	}
	return stats
}
