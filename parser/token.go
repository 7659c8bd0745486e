package parser

import "fmt"

// TokenType classifies a lexical token.
type TokenType int

const (
	EOF TokenType = iota
	IDENT

	// Punctuation.
	LPAREN
	RPAREN
	LBRACE
	RBRACE
	COLON
	SEMI
	COMMA
	ARROW

	// Keywords.
	GLOBAL
	PROTOCOL
	ROLE
	CHOICE
	AT
	OR
	PAR
	AND
	REC
	CONTINUE
	FROM
	TO
)

var tokenNames = map[TokenType]string{
	EOF:      "end of input",
	IDENT:    "identifier",
	LPAREN:   "'('",
	RPAREN:   "')'",
	LBRACE:   "'{'",
	RBRACE:   "'}'",
	COLON:    "':'",
	SEMI:     "';'",
	COMMA:    "','",
	ARROW:    "'->'",
	GLOBAL:   "'global'",
	PROTOCOL: "'protocol'",
	ROLE:     "'role'",
	CHOICE:   "'choice'",
	AT:       "'at'",
	OR:       "'or'",
	PAR:      "'par'",
	AND:      "'and'",
	REC:      "'rec'",
	CONTINUE: "'continue'",
	FROM:     "'from'",
	TO:       "'to'",
}

func (t TokenType) String() string {
	if name, have := tokenNames[t]; have {
		return name
	}
	return fmt.Sprintf("token(%d)", int(t))
}

var keywords = map[string]TokenType{
	"global":   GLOBAL,
	"protocol": PROTOCOL,
	"role":     ROLE,
	"choice":   CHOICE,
	"at":       AT,
	"or":       OR,
	"par":      PAR,
	"and":      AND,
	"rec":      REC,
	"continue": CONTINUE,
	"from":     FROM,
	"to":       TO,
}

// Pos locates a token (or an error) in protocol source text.  Line
// and Col are 1-based; Offset is a byte offset.
type Pos struct {
	Offset int `json:"offset"`
	Line   int `json:"line"`
	Col    int `json:"col"`
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Token is a lexical token with its source position.
type Token struct {
	Type TokenType
	Lit  string
	Pos  Pos
}

func (t Token) String() string {
	if t.Type == IDENT {
		return "'" + t.Lit + "'"
	}
	return t.Type.String()
}
