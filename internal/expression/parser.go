package expression

const (
	// MaxLength bounds the size of an expression accepted by Compile.
	MaxLength = 4096
	// MaxDepth bounds nesting of parentheses and unary operators.
	MaxDepth = 64
)

type node interface {
	eval(env *environment) (value, error)
}

type (
	literal struct {
		v value
	}
	identifier struct {
		name string
		pos  int
	}
	unaryExpr struct {
		op  string
		x   node
		pos int
	}
	binaryExpr struct {
		op   string
		l, r node
		pos  int
	}
	inExpr struct {
		x     node
		items []node
		pos   int
	}
)

type parser struct {
	tokens []token
	pos    int
	depth  int
}

func parse(src string) (node, error) {
	if len(src) > MaxLength {
		return nil, errorf(KindSyntax, MaxLength, "expression longer than %d bytes", MaxLength)
	}
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	if p.peek().kind == tokEOF {
		return nil, errorf(KindSyntax, 0, "empty expression")
	}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, errorf(KindSyntax, tok.pos, "unexpected %s", describe(tok))
	}
	return n, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

// accept consumes the next token if it is one of ops. Keywords and, or, not
// are accepted as spellings of &&, || and !.
func (p *parser) accept(ops ...string) (token, bool) {
	tok := p.peek()
	for _, op := range ops {
		if (tok.kind == tokOp && tok.text == op) || (tok.kind == tokIdent && keywordOp[tok.text] == op) {
			p.next()
			tok.text = op
			return tok, true
		}
	}
	return tok, false
}

var keywordOp = map[string]string{
	"and": "&&",
	"or":  "||",
	"not": "!",
}

func (p *parser) expect(op string) error {
	if _, ok := p.accept(op); !ok {
		tok := p.peek()
		return errorf(KindSyntax, tok.pos, "expected %q, found %s", op, describe(tok))
	}
	return nil
}

func (p *parser) enter(pos int) error {
	p.depth++
	if p.depth > MaxDepth {
		return errorf(KindSyntax, pos, "expression nested deeper than %d levels", MaxDepth)
	}
	return nil
}

func (p *parser) leave() {
	p.depth--
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.accept("||")
		if !ok {
			return left, nil
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{op: "||", l: left, r: right, pos: tok.pos}
	}
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.accept("&&")
		if !ok {
			return left, nil
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{op: "&&", l: left, r: right, pos: tok.pos}
	}
}

func (p *parser) parseNot() (node, error) {
	tok, ok := p.accept("!")
	if !ok {
		return p.parseComparison()
	}
	if err := p.enter(tok.pos); err != nil {
		return nil, err
	}
	defer p.leave()
	x, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	return &unaryExpr{op: "!", x: x, pos: tok.pos}, nil
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind == tokIdent && tok.text == "in" {
		p.next()
		items, err := p.parseList()
		if err != nil {
			return nil, err
		}
		return &inExpr{x: left, items: items, pos: tok.pos}, nil
	}
	tok, ok := p.accept("<", "<=", ">", ">=", "==", "!=")
	if !ok {
		return left, nil
	}
	right, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	return &binaryExpr{op: tok.text, l: left, r: right, pos: tok.pos}, nil
}

func (p *parser) parseList() ([]node, error) {
	if err := p.expect("["); err != nil {
		return nil, err
	}
	var items []node
	if _, ok := p.accept("]"); ok {
		return items, nil
	}
	for {
		item, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if _, ok := p.accept(","); ok {
			continue
		}
		if err := p.expect("]"); err != nil {
			return nil, err
		}
		return items, nil
	}
}

func (p *parser) parseSum() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.accept("+", "-")
		if !ok {
			return left, nil
		}
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{op: tok.text, l: left, r: right, pos: tok.pos}
	}
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.accept("*", "/", "%")
		if !ok {
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{op: tok.text, l: left, r: right, pos: tok.pos}
	}
}

func (p *parser) parseUnary() (node, error) {
	tok, ok := p.accept("-")
	if !ok {
		return p.parsePrimary()
	}
	if err := p.enter(tok.pos); err != nil {
		return nil, err
	}
	defer p.leave()
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &unaryExpr{op: "-", x: x, pos: tok.pos}, nil
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.next()
	switch tok.kind {
	case tokNumber:
		return &literal{v: numberValue(tok.num)}, nil
	case tokString:
		return &literal{v: stringValue(tok.text)}, nil
	case tokIdent:
		switch tok.text {
		case "true":
			return &literal{v: boolValue(true)}, nil
		case "false":
			return &literal{v: boolValue(false)}, nil
		case "in", "and", "or", "not":
			return nil, errorf(KindSyntax, tok.pos, "unexpected keyword %q", tok.text)
		}
		if next := p.peek(); next.kind == tokOp && next.text == "(" {
			return nil, errorf(KindSyntax, next.pos, "function calls are not supported")
		}
		return &identifier{name: tok.text, pos: tok.pos}, nil
	case tokOp:
		if tok.text == "(" {
			if err := p.enter(tok.pos); err != nil {
				return nil, err
			}
			defer p.leave()
			x, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return x, nil
		}
	}
	return nil, errorf(KindSyntax, tok.pos, "unexpected %s", describe(tok))
}

func describe(tok token) string {
	switch tok.kind {
	case tokEOF:
		return "end of expression"
	case tokNumber:
		return "number " + tok.text
	case tokString:
		return "string literal"
	case tokIdent:
		return "identifier " + tok.text
	default:
		return "'" + tok.text + "'"
	}
}
