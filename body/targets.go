package body

// Targets returns the instructions a body transfers to by prediction or
// deoptimization, in order of appearance:
//
//	PREDICT(NAME);
//	GO_TO_INSTRUCTION(NAME);
//	DEOPT_IF(cond, NAME);
//
// Text that does not lex is skipped; Parse reports it.
func Targets(text string) []string {
	toks := Tokenize(text)
	var out []string
	for i := 0; i+1 < len(toks); i++ {
		if toks[i].Type != TokenIdent || toks[i+1].Type != TokenLParen {
			continue
		}
		switch toks[i].Literal {
		case "PREDICT", "GO_TO_INSTRUCTION":
			if i+4 < len(toks) &&
				toks[i+2].Type == TokenIdent &&
				toks[i+3].Type == TokenRParen &&
				toks[i+4].Type == TokenSemi {
				out = append(out, toks[i+2].Literal)
			}
		case "DEOPT_IF":
			if name, ok := lastArgument(toks[i+1:]); ok {
				out = append(out, name)
			}
		}
	}
	return out
}

// lastArgument returns the final identifier argument of the call whose '('
// starts toks, when the call is followed by ';' and has at least two
// arguments.
func lastArgument(toks []Token) (string, bool) {
	depth := 0
	for i, tok := range toks {
		switch tok.Type {
		case TokenLParen, TokenLBrace, TokenLBracket:
			depth++
		case TokenRParen, TokenRBrace, TokenRBracket:
			depth--
			if depth > 0 {
				continue
			}
			if i < 3 || i+1 >= len(toks) || toks[i+1].Type != TokenSemi {
				return "", false
			}
			if toks[i-1].Type != TokenIdent || toks[i-2].Type != TokenComma {
				return "", false
			}
			return toks[i-1].Literal, true
		case TokenEOF, TokenError:
			return "", false
		}
	}
	return "", false
}

// Mentions reports whether ident appears in text as an identifier, outside
// comments and literals.
func Mentions(text, ident string) bool {
	for _, tok := range Tokenize(text) {
		if tok.Type == TokenIdent && tok.Literal == ident {
			return true
		}
	}
	return false
}
