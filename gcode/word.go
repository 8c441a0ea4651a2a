package gcode

import (
	"fmt"
	"math"
	"strconv"
	"unicode"
)

// Word may either give a command or provide an argument to a command.
type Word struct {
	letter rune
	number float64
	// The text that declared this word, preserved so comments and number formatting round-trip
	// untouched when the line is sent.
	original string
}

// NewWord creates a Word from given letter and number.
// letter must be capitalised, or it'll panic.
func NewWord(letter rune, number float64) Word {
	if letter < 'A' || letter > 'Z' {
		panic(fmt.Sprintf("bug: attempting to create word with letter not between A-Z: %c", letter))
	}
	return Word{letter: letter, number: number}
}

// ParseWord creates a Word from its letter and raw number string.
func ParseWord(letter rune, number string) (Word, error) {
	if !unicode.IsLetter(letter) {
		return Word{}, fmt.Errorf("invalid word letter: %#v", string(letter))
	}
	parsedNumber, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return Word{}, fmt.Errorf("invalid number for word %c: %#v", letter, number)
	}
	return Word{
		letter:   unicode.ToUpper(letter),
		number:   parsedNumber,
		original: string(letter) + number,
	}, nil
}

func (w Word) Letter() rune {
	return w.letter
}

func (w Word) Number() float64 {
	return w.number
}

func (w Word) String() string {
	if w.original != "" {
		return w.original
	}
	return w.NormalizedString()
}

// NormalizedString gives a consistent representation: uppercase letter, single decimal precision
// for commands and 4 decimals for arguments.
func (w Word) NormalizedString() string {
	if w.IsCommand() {
		integer, frac := math.Modf(w.number)
		if frac == 0 {
			return fmt.Sprintf("%c%.0f", w.letter, integer)
		}
		return fmt.Sprintf("%c%.1f", w.letter, w.number)
	}
	return fmt.Sprintf("%c%.4f", w.letter, w.number)
}

// IsCommand returns true if the word is a command (letter G or M).
func (w Word) IsCommand() bool {
	return w.letter == 'G' || w.letter == 'M'
}
