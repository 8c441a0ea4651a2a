package gcode

import (
	"fmt"
	"strings"
)

// Block is a line which may include commands to do several different things. Grbl system
// commands ($H, $J=..., $$) are kept verbatim in System.
type Block struct {
	System string
	Words  []Word
}

func (b Block) IsSystem() bool {
	return b.System != ""
}

// Empty returns true if no system or command is defined.
func (b Block) Empty() bool {
	return b.System == "" && len(b.Words) == 0
}

// Commands returns all G/M words in the block.
func (b Block) Commands() []Word {
	var cmds []Word
	for _, w := range b.Words {
		if w.IsCommand() {
			cmds = append(cmds, w)
		}
	}
	return cmds
}

// Arguments returns all non-command words in the block.
func (b Block) Arguments() []Word {
	var args []Word
	for _, w := range b.Words {
		if !w.IsCommand() {
			args = append(args, w)
		}
	}
	return args
}

// Argument returns the number for the argument letter, if present.
func (b Block) Argument(letter rune) (float64, bool, error) {
	var found bool
	var number float64
	for _, w := range b.Arguments() {
		if w.Letter() == letter {
			if found {
				return 0, false, fmt.Errorf("%s: multiple arguments for letter %c", b, letter)
			}
			found = true
			number = w.Number()
		}
	}
	return number, found, nil
}

// HasCommand checks whether the normalized command (eg: "G91") is in the block.
func (b Block) HasCommand(command string) bool {
	for _, w := range b.Commands() {
		if w.NormalizedString() == command {
			return true
		}
	}
	return false
}

func (b Block) String() string {
	if b.System != "" {
		return b.System
	}
	var buff strings.Builder
	for _, w := range b.Words {
		buff.WriteString(w.String())
	}
	return buff.String()
}
