package gcode

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Line is a single parsed line of G-code: its block, and any comment text found on it.
type Line struct {
	Block   Block
	Comment string
}

// commentText gives the text of a comment token, without its delimiters.
func commentText(value string) string {
	value = strings.TrimPrefix(value, ";")
	value = strings.TrimPrefix(value, "(")
	value = strings.TrimSuffix(value, ")")
	return strings.TrimSpace(value)
}

// StripComments removes "( )" and ";" comments, returning the remaining code and the comment
// text (multiple comments are joined by a space). Unlike ParseLine, the code is not required to
// be valid G-code.
func StripComments(line string) (string, string, error) {
	var code strings.Builder
	var comments []string
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case isParenthesisCommentStart(c):
			end := strings.IndexByte(line[i:], ')')
			if end == -1 {
				return "", "", errors.New("end of line reached without closing parenthesis")
			}
			comments = append(comments, commentText(line[i:i+end+1]))
			i += end
		case isSemicolonCommentStart(c):
			comments = append(comments, commentText(line[i:]))
			i = len(line)
		default:
			code.WriteByte(c)
		}
	}
	return strings.TrimSpace(code.String()), strings.Join(comments, " "), nil
}

// Parser parses Grbl flavour G-code, one line at a time.
type Parser struct {
	Lexer    *Lexer
	number   uint
	line     Line
	comments []string
	letter   *rune
}

func NewParser(r io.Reader) *Parser {
	return &Parser{Lexer: NewLexer(r)}
}

func (p *Parser) endOfLine(where string) (bool, error) {
	if p.letter != nil {
		return false, fmt.Errorf("line %d: word %c is missing its number at end of %s", p.number, *p.letter, where)
	}
	p.line.Comment = strings.Join(p.comments, " ")
	return true, nil
}

func (p *Parser) handleTokenTypeLetter(token *Token) (bool, error) {
	if p.letter != nil {
		return false, fmt.Errorf(
			"line %d: unexpected word letter %q after previous letter %q",
			p.number, token.Value, string(*p.letter),
		)
	}
	if p.line.Block.IsSystem() {
		return false, fmt.Errorf("line %d: command words cannot follow a system command", p.number)
	}
	letter := rune(token.Value[0])
	p.letter = &letter
	return false, nil
}

func (p *Parser) handleTokenTypeNumber(token *Token) (bool, error) {
	if p.letter == nil {
		return false, fmt.Errorf("line %d: unexpected word number %q without preceding letter", p.number, token.Value)
	}
	word, err := ParseWord(*p.letter, token.Value)
	if err != nil {
		return false, fmt.Errorf("line %d: %w", p.number, err)
	}
	p.line.Block.Words = append(p.line.Block.Words, word)
	p.letter = nil
	return false, nil
}

func (p *Parser) handleToken(token *Token) (bool, error) {
	switch token.Type {
	case TokenTypeEOF:
		return p.endOfLine("file")
	case TokenTypeSpace:
		return false, nil
	case TokenTypeComment:
		p.comments = append(p.comments, commentText(token.Value))
		return false, nil
	case TokenTypeSystem:
		if len(p.line.Block.Words) > 0 || p.letter != nil {
			return false, fmt.Errorf("line %d: system command cannot follow command words", p.number)
		}
		p.line.Block.System = strings.TrimSpace(token.Value)
		return false, nil
	case TokenTypeWordLetter:
		return p.handleTokenTypeLetter(token)
	case TokenTypeWordNumber:
		return p.handleTokenTypeNumber(token)
	case TokenTypeNewLine:
		return p.endOfLine("line")
	default:
		panic(fmt.Sprintf("unknown token type: %#v", token))
	}
}

// Next returns the next parsed line. The returned bool indicates EOF: when true, parsing is
// complete, and the returned line holds whatever preceded the end of file.
func (p *Parser) Next() (bool, Line, error) {
	p.number = p.Lexer.Line + 1
	p.line = Line{}
	p.comments = nil
	p.letter = nil
	for {
		token, err := p.Lexer.Next()
		if err != nil {
			return false, Line{}, err
		}
		eol, err := p.handleToken(token)
		if err != nil {
			return false, Line{}, err
		}
		if eol {
			return token.Type == TokenTypeEOF, p.line, nil
		}
	}
}

// Lines parses all remaining lines, skipping the ones without code or comments.
func (p *Parser) Lines() ([]Line, error) {
	lines := []Line{}
	for {
		eof, line, err := p.Next()
		if err != nil {
			return nil, err
		}
		if !line.Block.Empty() || line.Comment != "" {
			lines = append(lines, line)
		}
		if eof {
			return lines, nil
		}
	}
}

// ParseLine parses a single line of Grbl flavour G-code.
func ParseLine(line string) (Line, error) {
	p := NewParser(strings.NewReader(strings.TrimRight(line, "\r\n")))
	eof, parsed, err := p.Next()
	if err != nil {
		return Line{}, fmt.Errorf("%#v: %w", line, err)
	}
	if !eof {
		return Line{}, fmt.Errorf("%#v: must be a single line", line)
	}
	return parsed, nil
}
