package body

import "fmt"

// ---------------------------------------------------------------------------
// Token types for instruction bodies
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenIdent  // foo, ERROR_IF
	TokenNumber // 42, 0x1F, 1.5e3, 10u
	TokenString // "text"
	TokenChar   // 'c'

	// Delimiters
	TokenLParen   // (
	TokenRParen   // )
	TokenLBrace   // {
	TokenRBrace   // }
	TokenLBracket // [
	TokenRBracket // ]
	TokenComma    // ,
	TokenSemi     // ;

	// Anything else: operators, preprocessor '#', ...
	TokenPunct
)

var tokenNames = map[TokenType]string{
	TokenEOF:      "EOF",
	TokenError:    "ERROR",
	TokenIdent:    "IDENT",
	TokenNumber:   "NUMBER",
	TokenString:   "STRING",
	TokenChar:     "CHAR",
	TokenLParen:   "(",
	TokenRParen:   ")",
	TokenLBrace:   "{",
	TokenRBrace:   "}",
	TokenLBracket: "[",
	TokenRBracket: "]",
	TokenComma:    ",",
	TokenSemi:     ";",
	TokenPunct:    "PUNCT",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Position represents a location in a body.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw text, or the message for TokenError
	Pos     Position // start position
	End     int      // byte offset just past the token
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// closers maps each opening delimiter to the token that closes it.
var closers = map[TokenType]TokenType{
	TokenLParen:   TokenRParen,
	TokenLBrace:   TokenRBrace,
	TokenLBracket: TokenRBracket,
}
