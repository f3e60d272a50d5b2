// Package body scans instruction bodies into a small sequence of typed
// statements: verbatim text lines and ERROR_IF directives.
package body

import (
	"fmt"
	"strings"
)

// SyntaxError reports a malformed body.
type SyntaxError struct {
	Pos Position
	Msg string
}

func (e *SyntaxError) Error() string {
	if e.Pos.Line == 0 {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// Stmt is one statement of a body.
type Stmt interface {
	stmt() // marker method
}

// Text is a line emitted verbatim. Line keeps its indentation relative to
// the body; blank lines are empty.
type Text struct {
	Line string
}

// ErrorIf is an ERROR_IF(cond, label) directive occupying a whole line.
type ErrorIf struct {
	Indent  string // relative indentation of the directive
	Cond    string
	Label   string
	Comment string // trailing comment after the ';', if any
	Pos     Position
}

func (*Text) stmt()    {}
func (*ErrorIf) stmt() {}

// Block is a scanned body with its outer braces removed.
type Block struct {
	Stmts []Stmt
}

// Parse scans a body. The text must be a brace-enclosed block whose opening
// and closing braces sit on their own lines (a one-line "{ ... }" block is
// accepted too), and every delimiter must be balanced.
func Parse(text string) (*Block, error) {
	if err := CheckDelimiters(text); err != nil {
		return nil, err
	}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	first, last := 0, len(lines)-1
	for first <= last && isBlank(lines[first]) {
		first++
	}
	for last >= first && isBlank(lines[last]) {
		last--
	}
	if first > last {
		return nil, &SyntaxError{Msg: "empty body"}
	}

	var inner []string
	var firstLine int // 1-based line of inner[0]
	open := strings.TrimSpace(lines[first])
	closing := strings.TrimSpace(lines[last])
	switch {
	case first < last && open == "{" && closing == "}":
		inner = lines[first+1 : last]
		firstLine = first + 2
	case first == last && strings.HasPrefix(open, "{") && strings.HasSuffix(open, "}") && len(open) >= 2:
		inner = []string{strings.TrimSpace(open[1 : len(open)-1])}
		firstLine = first + 1
	default:
		return nil, &SyntaxError{
			Pos: Position{Line: first + 1, Column: 1},
			Msg: "body must open with '{' and close with '}' on their own lines",
		}
	}

	for len(inner) > 0 && isBlank(inner[0]) {
		inner = inner[1:]
		firstLine++
	}
	for len(inner) > 0 && isBlank(inner[len(inner)-1]) {
		inner = inner[:len(inner)-1]
	}

	indent := commonIndent(inner)
	b := &Block{}
	for i, line := range inner {
		if isBlank(line) {
			b.Stmts = append(b.Stmts, &Text{})
			continue
		}
		line = strings.TrimRight(line[indent:], " \t")
		stmt, err := scanLine(line, firstLine+i)
		if err != nil {
			return nil, err
		}
		b.Stmts = append(b.Stmts, stmt)
	}
	return b, nil
}

// CheckDelimiters reports the first unbalanced (, [ or { and any
// unterminated literal or comment.
func CheckDelimiters(text string) error {
	var open []Token
	l := NewLexer(text)
	for {
		tok := l.NextToken()
		switch tok.Type {
		case TokenEOF:
			if len(open) > 0 {
				top := open[len(open)-1]
				return &SyntaxError{Pos: top.Pos, Msg: fmt.Sprintf("unclosed %q", top.Literal)}
			}
			return nil
		case TokenError:
			return &SyntaxError{Pos: tok.Pos, Msg: tok.Literal}
		case TokenLParen, TokenLBrace, TokenLBracket:
			open = append(open, tok)
		case TokenRParen, TokenRBrace, TokenRBracket:
			if len(open) == 0 {
				return &SyntaxError{Pos: tok.Pos, Msg: fmt.Sprintf("unexpected %q", tok.Literal)}
			}
			top := open[len(open)-1]
			if closers[top.Type] != tok.Type {
				return &SyntaxError{Pos: tok.Pos, Msg: fmt.Sprintf("%q closes %q opened at %s", tok.Literal, top.Literal, top.Pos)}
			}
			open = open[:len(open)-1]
		}
	}
}

// scanLine classifies one dedented, non-blank line.
func scanLine(line string, lineNo int) (Stmt, error) {
	rest := strings.TrimLeft(line, " \t")
	indent := line[:len(line)-len(rest)]
	col := len(indent) + 1

	toks := Tokenize(rest)
	if len(toks) < 2 || toks[0].Type != TokenIdent || toks[0].Literal != "ERROR_IF" || toks[1].Type != TokenLParen {
		return &Text{Line: line}, nil
	}

	pos := Position{Line: lineNo, Column: col}
	bad := func(msg string) error {
		return &SyntaxError{Pos: pos, Msg: "ERROR_IF: " + msg}
	}

	// Find the matching ')' and the last comma at depth 1.
	depth, comma, closeIdx := 0, -1, -1
	for i := 1; i < len(toks) && closeIdx < 0; i++ {
		switch toks[i].Type {
		case TokenLParen, TokenLBrace, TokenLBracket:
			depth++
		case TokenRParen, TokenRBrace, TokenRBracket:
			depth--
			if depth == 0 {
				closeIdx = i
			}
		case TokenComma:
			if depth == 1 {
				comma = i
			}
		case TokenEOF, TokenError:
			return nil, bad("directive must fit on one line")
		}
	}
	if closeIdx < 0 {
		return nil, bad("directive must fit on one line")
	}
	if comma < 0 || closeIdx != comma+2 || toks[comma+1].Type != TokenIdent {
		return nil, bad("want ERROR_IF(condition, label)")
	}
	if closeIdx+2 >= len(toks) || toks[closeIdx+1].Type != TokenSemi || toks[closeIdx+2].Type != TokenEOF {
		return nil, bad("directive must be a complete statement ending in ';'")
	}
	cond := strings.TrimSpace(rest[toks[1].End:toks[comma].Pos.Offset])
	if cond == "" {
		return nil, bad("empty condition")
	}

	return &ErrorIf{
		Indent:  indent,
		Cond:    cond,
		Label:   toks[comma+1].Literal,
		Comment: strings.TrimSpace(rest[toks[closeIdx+1].End:]),
		Pos:     pos,
	}, nil
}

// AlwaysExits reports whether the body's last statement is a top-level
// unconditional exit: a line at the body's own indentation starting with
// one of prefixes (e.g. "goto ", "DISPATCH").
func (b *Block) AlwaysExits(prefixes []string) bool {
	for i := len(b.Stmts) - 1; i >= 0; i-- {
		switch s := b.Stmts[i].(type) {
		case *ErrorIf:
			return false
		case *Text:
			if s.Line == "" {
				continue
			}
			if s.Line[0] == ' ' || s.Line[0] == '\t' {
				return false
			}
			for _, p := range prefixes {
				if strings.HasPrefix(s.Line, p) {
					return true
				}
			}
			return false
		}
	}
	return false
}

// ErrorIfs returns the directives in program order.
func (b *Block) ErrorIfs() []*ErrorIf {
	var out []*ErrorIf
	for _, s := range b.Stmts {
		if e, ok := s.(*ErrorIf); ok {
			out = append(out, e)
		}
	}
	return out
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// commonIndent returns the byte length of the shortest leading whitespace
// among non-blank lines.
func commonIndent(lines []string) int {
	least := -1
	for _, line := range lines {
		if isBlank(line) {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if least < 0 || n < least {
			least = n
		}
	}
	if least < 0 {
		return 0
	}
	return least
}
