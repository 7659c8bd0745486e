// Package parser lexes and parses protocol choreography source text.
//
// The grammar covers a protocol declaration with a role list and a
// body of message statements, 'choice at'/'or' alternatives,
// 'par'/'and' compositions, and 'rec'/'continue' loops.  Two message
// forms are accepted interchangeably:
//
//	Client -> Server: Request(Query);
//	Request(Query) from Client to Server;
//
// Parse rejects sources that reference undeclared roles, 'continue'
// statements with no enclosing 'rec' of that label, and 'choice' or
// 'par' blocks with fewer than two alternatives.
package parser

import "fmt"

// ParseError reports malformed or semantically invalid source.
type ParseError struct {
	Message string `json:"message"`
	Pos     Pos    `json:"position"`
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %s: %s", e.Pos, e.Message)
}

type parser struct {
	lx  *lexer
	tok Token

	roles map[string]bool

	// recs is the lexical stack of enclosing recursion labels.
	recs []string
}

// Parse parses protocol source text into a Protocol.  The returned
// error, if any, is a *ParseError.
func Parse(src string) (*Protocol, error) {
	p := &parser{
		lx:    newLexer(src),
		roles: make(map[string]bool),
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	proto, err := p.protocol()
	if err != nil {
		return nil, err
	}
	if p.tok.Type != EOF {
		return nil, p.errf(p.tok.Pos, "unexpected %s after protocol declaration", p.tok)
	}
	return proto, nil
}

func (p *parser) advance() error {
	tok, err := p.lx.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) errf(at Pos, format string, args ...interface{}) error {
	return &ParseError{Message: fmt.Sprintf(format, args...), Pos: at}
}

func (p *parser) expect(t TokenType) (Token, error) {
	if p.tok.Type != t {
		return Token{}, p.errf(p.tok.Pos, "expected %s, got %s", t, p.tok)
	}
	tok := p.tok
	return tok, p.advance()
}

func (p *parser) protocol() (*Protocol, error) {
	at := p.tok.Pos
	doc := p.lx.takeDoc(at)

	global := false
	if p.tok.Type == GLOBAL {
		global = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}

	if _, err := p.expect(PROTOCOL); err != nil {
		return nil, err
	}
	name, err := p.expect(IDENT)
	if err != nil {
		return nil, err
	}

	roles, err := p.roleList()
	if err != nil {
		return nil, err
	}

	body, err := p.block()
	if err != nil {
		return nil, err
	}

	return &Protocol{
		Name:   name.Lit,
		Global: global,
		Doc:    doc,
		Roles:  roles,
		Body:   body,
		Pos:    at,
	}, nil
}

func (p *parser) roleList() ([]string, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	var roles []string
	for {
		if _, err := p.expect(ROLE); err != nil {
			return nil, err
		}
		name, err := p.expect(IDENT)
		if err != nil {
			return nil, err
		}
		if p.roles[name.Lit] {
			return nil, p.errf(name.Pos, "role %s declared twice", name.Lit)
		}
		p.roles[name.Lit] = true
		roles = append(roles, name.Lit)

		if p.tok.Type != COMMA {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return roles, nil
}

// block parses a brace-delimited statement sequence.  A single
// statement is returned as itself rather than a one-item Sequence.
func (p *parser) block() (Interaction, error) {
	open, err := p.expect(LBRACE)
	if err != nil {
		return nil, err
	}
	var items []Interaction
	for p.tok.Type != RBRACE {
		if p.tok.Type == EOF {
			return nil, p.errf(open.Pos, "unclosed '{'")
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		items = append(items, stmt)
	}
	if err := p.advance(); err != nil { // consume '}'
		return nil, err
	}

	switch len(items) {
	case 0:
		return &Sequence{Pos: open.Pos}, nil
	case 1:
		return items[0], nil
	default:
		return &Sequence{Items: items, Pos: items[0].Position()}, nil
	}
}

func (p *parser) statement() (Interaction, error) {
	switch p.tok.Type {
	case CHOICE:
		return p.choice()
	case PAR:
		return p.parallel()
	case REC:
		return p.recursion()
	case CONTINUE:
		return p.continueStmt()
	case IDENT:
		return p.message()
	default:
		return nil, p.errf(p.tok.Pos, "expected a statement, got %s", p.tok)
	}
}

// message parses either surface form of a message statement.  The
// form is decided by the token after the leading identifier: '->'
// starts the arrow form, '(' the keyword form.
func (p *parser) message() (Interaction, error) {
	first, err := p.expect(IDENT)
	if err != nil {
		return nil, err
	}

	switch p.tok.Type {
	case ARROW:
		if err := p.advance(); err != nil {
			return nil, err
		}
		to, err := p.roleRef()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(COLON); err != nil {
			return nil, err
		}
		label, err := p.expect(IDENT)
		if err != nil {
			return nil, err
		}
		payload, err := p.payload()
		if err != nil {
			return nil, err
		}
		if err := p.checkRole(first); err != nil {
			return nil, err
		}
		if _, err := p.expect(SEMI); err != nil {
			return nil, err
		}
		return &Message{
			From:    first.Lit,
			To:      to,
			Label:   label.Lit,
			Payload: payload,
			Pos:     first.Pos,
		}, nil

	case LPAREN:
		payload, err := p.payload()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(FROM); err != nil {
			return nil, err
		}
		from, err := p.roleRef()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TO); err != nil {
			return nil, err
		}
		to, err := p.roleRef()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(SEMI); err != nil {
			return nil, err
		}
		return &Message{
			From:    from,
			To:      to,
			Label:   first.Lit,
			Payload: payload,
			Pos:     first.Pos,
		}, nil

	default:
		return nil, p.errf(p.tok.Pos, "expected '->' or '(' after %s", first)
	}
}

// payload parses '( [Type] )'.
func (p *parser) payload() (string, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return "", err
	}
	payload := ""
	if p.tok.Type == IDENT {
		payload = p.tok.Lit
		if err := p.advance(); err != nil {
			return "", err
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return "", err
	}
	return payload, nil
}

func (p *parser) roleRef() (string, error) {
	tok, err := p.expect(IDENT)
	if err != nil {
		return "", err
	}
	if err := p.checkRole(tok); err != nil {
		return "", err
	}
	return tok.Lit, nil
}

func (p *parser) checkRole(tok Token) error {
	if !p.roles[tok.Lit] {
		return p.errf(tok.Pos, "role %s is not declared", tok.Lit)
	}
	return nil
}

func (p *parser) choice() (Interaction, error) {
	at := p.tok.Pos
	if err := p.advance(); err != nil { // 'choice'
		return nil, err
	}
	if _, err := p.expect(AT); err != nil {
		return nil, err
	}
	role, err := p.roleRef()
	if err != nil {
		return nil, err
	}

	var options []Interaction
	first, err := p.block()
	if err != nil {
		return nil, err
	}
	options = append(options, first)

	for p.tok.Type == OR {
		if err := p.advance(); err != nil {
			return nil, err
		}
		opt, err := p.block()
		if err != nil {
			return nil, err
		}
		options = append(options, opt)
	}

	if len(options) < 2 {
		return nil, p.errf(at, "choice needs at least two options")
	}

	return &Choice{At: role, Options: options, Pos: at}, nil
}

func (p *parser) parallel() (Interaction, error) {
	at := p.tok.Pos
	if err := p.advance(); err != nil { // 'par'
		return nil, err
	}

	var branches []Interaction
	first, err := p.block()
	if err != nil {
		return nil, err
	}
	branches = append(branches, first)

	for p.tok.Type == AND {
		if err := p.advance(); err != nil {
			return nil, err
		}
		br, err := p.block()
		if err != nil {
			return nil, err
		}
		branches = append(branches, br)
	}

	if len(branches) < 2 {
		return nil, p.errf(at, "par needs at least two branches")
	}

	return &Parallel{Branches: branches, Pos: at}, nil
}

func (p *parser) recursion() (Interaction, error) {
	at := p.tok.Pos
	if err := p.advance(); err != nil { // 'rec'
		return nil, err
	}
	label, err := p.expect(IDENT)
	if err != nil {
		return nil, err
	}

	p.recs = append(p.recs, label.Lit)
	body, err := p.block()
	p.recs = p.recs[:len(p.recs)-1]
	if err != nil {
		return nil, err
	}

	return &Recursion{Label: label.Lit, Body: body, Pos: at}, nil
}

func (p *parser) continueStmt() (Interaction, error) {
	at := p.tok.Pos
	if err := p.advance(); err != nil { // 'continue'
		return nil, err
	}
	label, err := p.expect(IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMI); err != nil {
		return nil, err
	}

	bound := false
	for _, rec := range p.recs {
		if rec == label.Lit {
			bound = true
			break
		}
	}
	if !bound {
		return nil, p.errf(label.Pos, "continue %s has no enclosing rec", label.Lit)
	}

	return &Continue{Label: label.Lit, Pos: at}, nil
}
