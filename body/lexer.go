package body

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for C-like instruction bodies
// ---------------------------------------------------------------------------

// Lexer tokenizes body text. It understands just enough C to keep string,
// character and comment contents out of delimiter matching.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // current line (1-based)
	col     int  // current column (1-based)
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = len(l.input)
		l.readPos = len(l.input) + 1
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
	l.col++
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.col,
	}
}

func (l *Lexer) token(typ TokenType, pos Position) Token {
	return Token{Type: typ, Literal: l.input[pos.Offset:l.pos], Pos: pos, End: l.pos}
}

func (l *Lexer) errorToken(pos Position, format string, args ...interface{}) Token {
	return Token{Type: TokenError, Literal: fmt.Sprintf(format, args...), Pos: pos, End: l.pos}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	if tok, ok := l.skipWhitespaceAndComments(); !ok {
		return tok
	}

	pos := l.position()

	if l.atEOF() {
		return Token{Type: TokenEOF, Pos: pos, End: l.pos}
	}

	switch ch := l.ch; {
	case ch == '"':
		return l.readQuoted(pos, '"', TokenString)

	case ch == '\'':
		return l.readQuoted(pos, '\'', TokenChar)

	case isDigit(ch) || (ch == '.' && isDigit(l.peekChar())):
		return l.readNumber(pos)

	case isLetter(ch) || ch == '_':
		for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
		return l.token(TokenIdent, pos)

	default:
		typ := TokenPunct
		switch ch {
		case '(':
			typ = TokenLParen
		case ')':
			typ = TokenRParen
		case '{':
			typ = TokenLBrace
		case '}':
			typ = TokenRBrace
		case '[':
			typ = TokenLBracket
		case ']':
			typ = TokenRBracket
		case ',':
			typ = TokenComma
		case ';':
			typ = TokenSemi
		}
		l.readChar()
		return l.token(typ, pos)
	}
}

// skipWhitespaceAndComments skips whitespace, // and /* */ comments. It
// returns false with an error token for an unterminated block comment.
func (l *Lexer) skipWhitespaceAndComments() (Token, bool) {
	for {
		for !l.atEOF() && unicode.IsSpace(l.ch) {
			l.readChar()
		}

		if l.ch == '/' && l.peekChar() == '/' {
			for !l.atEOF() && l.ch != '\n' {
				l.readChar()
			}
			continue
		}

		if l.ch == '/' && l.peekChar() == '*' {
			pos := l.position()
			l.readChar() // consume /
			l.readChar() // consume *
			for !l.atEOF() && !(l.ch == '*' && l.peekChar() == '/') {
				l.readChar()
			}
			if l.atEOF() {
				return l.errorToken(pos, "unterminated comment"), false
			}
			l.readChar() // consume *
			l.readChar() // consume /
			continue
		}

		return Token{}, true
	}
}

// readQuoted reads a string or character literal with backslash escapes.
func (l *Lexer) readQuoted(pos Position, quote rune, typ TokenType) Token {
	l.readChar() // consume opening quote
	for !l.atEOF() && l.ch != quote {
		if l.ch == '\n' {
			return l.errorToken(pos, "newline in %s literal", typ)
		}
		if l.ch == '\\' {
			l.readChar()
		}
		l.readChar()
	}
	if l.atEOF() {
		return l.errorToken(pos, "unterminated %s literal", typ)
	}
	l.readChar() // consume closing quote
	return l.token(typ, pos)
}

// readNumber reads a C number loosely: digits, letters, dots and signed
// exponents, which covers hex, suffixes and floats.
func (l *Lexer) readNumber(pos Position) Token {
	for {
		switch {
		case (l.ch == 'e' || l.ch == 'E' || l.ch == 'p' || l.ch == 'P') &&
			(l.peekChar() == '+' || l.peekChar() == '-'):
			l.readChar()
			l.readChar()
		case isLetter(l.ch) || isDigit(l.ch) || l.ch == '.' || l.ch == '_':
			l.readChar()
		default:
			return l.token(TokenNumber, pos)
		}
	}
}

// Helper functions

func isLetter(r rune) bool {
	return unicode.IsLetter(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// Tokenize returns all tokens from the input, ending with EOF or the first
// error.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			break
		}
	}
	return tokens
}
