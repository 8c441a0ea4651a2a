package controller

import (
	"fmt"
	"strings"

	"github.com/StephanGeberl/GCodeSender/gcode"
)

// GcodeCommand is a single line sent to the firmware, and its outcome.
type GcodeCommand struct {
	ID int
	// Original line, as given.
	Original string
	// Command sent to the firmware, without comments. Empty for comment only lines.
	Command string
	Comment string
	// FromFile tells whether the command belongs to the streamed file, rather than being sent
	// manually.
	FromFile bool
	Sent     bool
	Done     bool
	Skipped  bool
	Error    bool
	// Response is the firmware response: "ok" or "error:N".
	Response string
}

func (c GcodeCommand) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %#v", c.ID, c.Command)
	if c.Comment != "" {
		fmt.Fprintf(&b, " (%s)", c.Comment)
	}
	if c.Response != "" {
		fmt.Fprintf(&b, " => %s", c.Response)
	}
	return b.String()
}

// size is the number of bytes the command takes in the firmware receive buffer.
func (c *GcodeCommand) size() int {
	return len(c.Command) + 1
}

// newCommand strips comments from line and enforces maxLength (0 disables the check).
func newCommand(id int, line string, maxLength int) (*GcodeCommand, error) {
	original := strings.TrimRight(line, "\r\n")
	code, comment, err := gcode.StripComments(original)
	if err != nil {
		return nil, err
	}
	if strings.ContainsAny(code, "\r\n") {
		return nil, fmt.Errorf("command must be single line string: %#v", original)
	}
	if maxLength > 0 && len(code) > maxLength {
		//lint:ignore ST1005 console message
		return nil, fmt.Errorf("Command '%s' is longer than %d characters.", code, maxLength)
	}
	return &GcodeCommand{
		ID:       id,
		Original: original,
		Command:  code,
		Comment:  comment,
	}, nil
}
