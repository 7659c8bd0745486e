package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// lexer produces Tokens from protocol source text.  It tracks line
// and column for error positions and collects runs of '//' comments
// so the parser can attach them as protocol documentation.
type lexer struct {
	src  string
	off  int
	line int
	col  int

	// doc accumulates consecutive '//' comment lines.  The run is
	// dropped when a blank line or a token interrupts it.
	doc     []string
	docLine int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1, col: 1}
}

func (lx *lexer) pos() Pos {
	return Pos{Offset: lx.off, Line: lx.line, Col: lx.col}
}

func (lx *lexer) peek() rune {
	if lx.off >= len(lx.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(lx.src[lx.off:])
	return r
}

func (lx *lexer) advance() rune {
	r, w := utf8.DecodeRuneInString(lx.src[lx.off:])
	lx.off += w
	if r == '\n' {
		lx.line++
		lx.col = 1
	} else {
		lx.col++
	}
	return r
}

// takeDoc returns the pending comment run if it ended on the line
// just above the given position.
func (lx *lexer) takeDoc(at Pos) string {
	if len(lx.doc) == 0 || lx.docLine != at.Line-1 {
		return ""
	}
	return strings.Join(lx.doc, "\n")
}

func (lx *lexer) skipSpaceAndComments() error {
	for lx.off < len(lx.src) {
		r := lx.peek()
		switch {
		case r == '\n':
			lx.advance()
			// A blank line between comment runs breaks the run.
			if lx.peek() == '\n' {
				lx.doc = nil
			}
		case unicode.IsSpace(r):
			lx.advance()
		case r == '/' && strings.HasPrefix(lx.src[lx.off:], "//"):
			lx.advance()
			lx.advance()
			start := lx.off
			for lx.off < len(lx.src) && lx.peek() != '\n' {
				lx.advance()
			}
			lx.doc = append(lx.doc, strings.TrimSpace(lx.src[start:lx.off]))
			lx.docLine = lx.line
		case r == '/' && strings.HasPrefix(lx.src[lx.off:], "/*"):
			open := lx.pos()
			lx.advance()
			lx.advance()
			for {
				if lx.off >= len(lx.src) {
					return &ParseError{Message: "unterminated comment", Pos: open}
				}
				if strings.HasPrefix(lx.src[lx.off:], "*/") {
					lx.advance()
					lx.advance()
					break
				}
				lx.advance()
			}
			lx.doc = nil
		default:
			return nil
		}
	}
	return nil
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// next scans and returns the next token.
func (lx *lexer) next() (Token, error) {
	if err := lx.skipSpaceAndComments(); err != nil {
		return Token{}, err
	}

	at := lx.pos()
	if lx.off >= len(lx.src) {
		return Token{Type: EOF, Pos: at}, nil
	}

	r := lx.peek()

	if isIdentStart(r) {
		start := lx.off
		for lx.off < len(lx.src) && isIdentPart(lx.peek()) {
			lx.advance()
		}
		lit := lx.src[start:lx.off]
		if kw, have := keywords[lit]; have {
			return Token{Type: kw, Lit: lit, Pos: at}, nil
		}
		return Token{Type: IDENT, Lit: lit, Pos: at}, nil
	}

	lx.advance()
	switch r {
	case '(':
		return Token{Type: LPAREN, Lit: "(", Pos: at}, nil
	case ')':
		return Token{Type: RPAREN, Lit: ")", Pos: at}, nil
	case '{':
		return Token{Type: LBRACE, Lit: "{", Pos: at}, nil
	case '}':
		return Token{Type: RBRACE, Lit: "}", Pos: at}, nil
	case ':':
		return Token{Type: COLON, Lit: ":", Pos: at}, nil
	case ';':
		return Token{Type: SEMI, Lit: ";", Pos: at}, nil
	case ',':
		return Token{Type: COMMA, Lit: ",", Pos: at}, nil
	case '-':
		if lx.peek() == '>' {
			lx.advance()
			return Token{Type: ARROW, Lit: "->", Pos: at}, nil
		}
	}

	return Token{}, &ParseError{
		Message: "unexpected character " + string(r),
		Pos:     at,
	}
}
