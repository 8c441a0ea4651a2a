package gcode

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

type TokenType int

const (
	TokenTypeEOF TokenType = iota
	TokenTypeSpace
	TokenTypeComment
	TokenTypeSystem
	TokenTypeWordLetter
	TokenTypeWordNumber
	TokenTypeNewLine
)

var tokenTypeNames = map[TokenType]string{
	TokenTypeEOF:        "EOF",
	TokenTypeSpace:      "Space",
	TokenTypeComment:    "Comment",
	TokenTypeSystem:     "System",
	TokenTypeWordLetter: "WordLetter",
	TokenTypeWordNumber: "WordNumber",
	TokenTypeNewLine:    "NewLine",
}

func (tt TokenType) String() string {
	if name, ok := tokenTypeNames[tt]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

type Token struct {
	Value string
	Type  TokenType
}

// Lexer tokenizes Grbl flavour G-code, following the same character classes as Grbl's own
// line parser.
type Lexer struct {
	// Line is the number of new lines read so far.
	Line    uint
	scanner *bufio.Scanner
}

func NewLexer(rd io.Reader) *Lexer {
	scanner := bufio.NewScanner(rd)
	scanner.Split(split)
	return &Lexer{scanner: scanner}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t'
}

func isParenthesisCommentStart(c byte) bool {
	return c == '('
}

func isSemicolonCommentStart(c byte) bool {
	return c == ';'
}

func isCommentStart(c byte) bool {
	return isParenthesisCommentStart(c) || isSemicolonCommentStart(c)
}

func isSystemStart(c byte) bool {
	return c == '$'
}

func isLetterStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNumberStart(c byte) bool {
	return c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9')
}

func isNewLineStart(c byte) bool {
	return c == '\n' || c == '\r'
}

// untilEndOfLine gives the length of data up to, not including, a new line or any of the stop
// bytes.
func untilEndOfLine(data []byte, start int, stop func(byte) bool) (int, bool) {
	for i := start; i < len(data); i++ {
		if isNewLineStart(data[i]) || (stop != nil && stop(data[i])) {
			return i, true
		}
	}
	return len(data), false
}

//gocyclo:ignore
func split(data []byte, atEOF bool) (advance int, token []byte, err error) {
	// EOF
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	// Space
	if isSpace(data[0]) {
		i := 0
		for i < len(data) && isSpace(data[i]) {
			i++
		}
		if i == len(data) && !atEOF {
			return 0, nil, nil
		}
		return i, data[:i], nil
	}

	// Comment
	if isParenthesisCommentStart(data[0]) {
		for i := 1; i < len(data); i++ {
			if data[i] == ')' {
				return i + 1, data[:i+1], nil
			}
			if isNewLineStart(data[i]) {
				return 0, nil, errors.New("end of line reached without closing parenthesis")
			}
		}
		if atEOF {
			return 0, nil, errors.New("end of file reached without closing parenthesis")
		}
		return 0, nil, nil
	}
	if isSemicolonCommentStart(data[0]) {
		i, found := untilEndOfLine(data, 1, nil)
		if found || atEOF {
			return i, data[:i], nil
		}
		return 0, nil, nil
	}

	// System, which may be followed by a semicolon comment
	if isSystemStart(data[0]) {
		i, found := untilEndOfLine(data, 1, isSemicolonCommentStart)
		if found || atEOF {
			return i, data[:i], nil
		}
		return 0, nil, nil
	}

	// WordLetter
	if isLetterStart(data[0]) {
		return 1, data[:1], nil
	}

	// WordNumber
	if isNumberStart(data[0]) {
		i := 0
		if data[i] == '-' || data[i] == '+' {
			i++
		}
		ndigit := 0
		isdecimal := false
		for i < len(data) {
			c := data[i]
			if c >= '0' && c <= '9' {
				ndigit++
				i++
			} else if c == '.' && !isdecimal {
				isdecimal = true
				i++
			} else {
				break
			}
		}
		if i == len(data) && !atEOF {
			return 0, nil, nil
		}
		if ndigit == 0 {
			return 0, nil, fmt.Errorf("invalid number: %q", data[:i])
		}
		return i, data[:i], nil
	}

	// NewLine
	if data[0] == '\n' {
		return 1, data[:1], nil
	}
	if data[0] == '\r' {
		if len(data) > 1 && data[1] == '\n' {
			return 2, data[:2], nil
		}
		if len(data) > 1 || atEOF {
			return 1, data[:1], nil
		}
		return 0, nil, nil
	}

	return 0, nil, fmt.Errorf("unexpected char: %q", data[0])
}

// Next returns the next token, or a TokenTypeEOF token once the input is consumed.
func (lx *Lexer) Next() (*Token, error) {
	if !lx.scanner.Scan() {
		if err := lx.scanner.Err(); err != nil {
			return nil, fmt.Errorf("line %d: %w", lx.Line+1, err)
		}
		return &Token{Type: TokenTypeEOF}, nil
	}

	value := lx.scanner.Text()
	if len(value) == 0 {
		panic(fmt.Sprintf("bug: empty token received at line %d", lx.Line+1))
	}

	switch c := value[0]; {
	case isSpace(c):
		return &Token{Value: value, Type: TokenTypeSpace}, nil
	case isCommentStart(c):
		return &Token{Value: value, Type: TokenTypeComment}, nil
	case isSystemStart(c):
		return &Token{Value: value, Type: TokenTypeSystem}, nil
	case isLetterStart(c):
		return &Token{Value: value, Type: TokenTypeWordLetter}, nil
	case isNumberStart(c):
		return &Token{Value: value, Type: TokenTypeWordNumber}, nil
	case isNewLineStart(c):
		lx.Line++
		return &Token{Value: value, Type: TokenTypeNewLine}, nil
	}

	panic(fmt.Sprintf("bug: unexpected value at line %d: %q", lx.Line+1, value))
}
