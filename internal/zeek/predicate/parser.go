package predicate

import (
	"strings"
)

type parser struct {
	lex *lexer
	cur token
}

// Parse compiles a filter expression. Errors are *ParseError and match
// errors.ErrInvalidFilter.
func Parse(input string) (Expr, error) {
	p := &parser{lex: &lexer{input: input}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.cur.kind == tokEOF {
		return nil, newParseError(0, ErrEmptyExpression, "empty expression")
	}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur.kind != tokEOF {
		if p.cur.kind == tokRParen {
			return nil, newParseError(p.cur.pos, ErrUnmatchedParen, "unmatched )")
		}
		return nil, newParseError(p.cur.pos, ErrUnexpectedToken, "unexpected %q", p.cur.lit)
	}
	return expr, nil
}

// MustParse is Parse for expressions known to be valid.
func MustParse(input string) Expr {
	e, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return e
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *parser) isKeyword(kw string) bool {
	return p.cur.kind == tokIdent && strings.EqualFold(p.cur.lit, kw)
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	terms := []Expr{left}
	for p.isKeyword("or") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		terms = append(terms, right)
	}
	if len(terms) == 1 {
		return left, nil
	}
	return &OrExpr{Terms: terms}, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	terms := []Expr{left}
	for p.isKeyword("and") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		terms = append(terms, right)
	}
	if len(terms) == 1 {
		return left, nil
	}
	return &AndExpr{Terms: terms}, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.isKeyword("not") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		term, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &NotExpr{Term: term}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	switch {
	case p.cur.kind == tokLParen:
		open := p.cur.pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.cur.kind != tokRParen {
			return nil, newParseError(open, ErrUnmatchedParen, "unmatched (")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return expr, nil
	case p.isKeyword("exists"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		field, err := p.field()
		if err != nil {
			return nil, err
		}
		return &ExistsExpr{Field: field}, nil
	case p.cur.kind == tokEOF:
		return nil, newParseError(p.cur.pos, ErrUnexpectedToken, "unexpected end of expression")
	}

	field, err := p.field()
	if err != nil {
		return nil, err
	}

	if p.isKeyword("in") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		values, err := p.list()
		if err != nil {
			return nil, err
		}
		return &InExpr{Field: field, Values: values}, nil
	}

	op, err := p.operator()
	if err != nil {
		return nil, err
	}
	value, err := p.literal()
	if err != nil {
		return nil, err
	}
	return &CompareExpr{Field: field, Op: op, Value: value}, nil
}

func (p *parser) field() (string, error) {
	if p.cur.kind != tokIdent && p.cur.kind != tokString {
		return "", newParseError(p.cur.pos, ErrUnexpectedToken, "expected field name, got %q", p.cur.lit)
	}
	name := p.cur.lit
	return name, p.advance()
}

func (p *parser) operator() (Op, error) {
	var op Op
	switch {
	case p.cur.kind == tokOp:
		switch p.cur.lit {
		case "==":
			op = OpEq
		case "!=":
			op = OpNe
		case "<":
			op = OpLt
		case "<=":
			op = OpLe
		case ">":
			op = OpGt
		case ">=":
			op = OpGe
		}
	case p.isKeyword("contains"):
		op = OpContains
	case p.isKeyword("startswith"):
		op = OpStartsWith
	default:
		return 0, newParseError(p.cur.pos, ErrUnexpectedToken, "expected operator, got %q", p.cur.lit)
	}
	return op, p.advance()
}

func (p *parser) literal() (Literal, error) {
	tok := p.cur
	var lit Literal
	switch tok.kind {
	case tokString:
		lit = Literal{Text: tok.lit}
	case tokNumber:
		n, _ := parseNumber(tok.lit)
		lit = Literal{Text: tok.lit, Num: n, IsNum: true}
	case tokIdent:
		switch strings.ToLower(tok.lit) {
		case "true":
			lit = Literal{Text: "true", Bool: true, IsBool: true}
		case "false":
			lit = Literal{Text: "false", IsBool: true}
		default:
			lit = Literal{Text: tok.lit}
		}
	default:
		return Literal{}, newParseError(tok.pos, ErrUnexpectedToken, "expected value, got %q", tok.lit)
	}
	return lit, p.advance()
}

func (p *parser) list() ([]Literal, error) {
	if p.cur.kind != tokLBracket {
		return nil, newParseError(p.cur.pos, ErrUnexpectedToken, "expected [ after in")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var values []Literal
	for {
		lit, err := p.literal()
		if err != nil {
			return nil, err
		}
		values = append(values, lit)
		switch p.cur.kind {
		case tokComma:
			if err := p.advance(); err != nil {
				return nil, err
			}
		case tokRBracket:
			return values, p.advance()
		default:
			return nil, newParseError(p.cur.pos, ErrUnexpectedToken, "expected , or ] in list")
		}
	}
}
