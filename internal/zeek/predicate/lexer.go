package predicate

import (
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
	tokOp
)

type token struct {
	kind tokenKind
	lit  string
	pos  int
}

type lexer struct {
	input string
	pos   int
}

func isIdentChar(c byte) bool {
	return c == '_' || c == '.' || c == '@' || c == '-' || c == ':' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) && strings.ContainsRune(" \t\r\n", rune(l.input[l.pos])) {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.input[l.pos]
	switch c {
	case '(':
		l.pos++
		return token{kind: tokLParen, lit: "(", pos: start}, nil
	case ')':
		l.pos++
		return token{kind: tokRParen, lit: ")", pos: start}, nil
	case '[':
		l.pos++
		return token{kind: tokLBracket, lit: "[", pos: start}, nil
	case ']':
		l.pos++
		return token{kind: tokRBracket, lit: "]", pos: start}, nil
	case ',':
		l.pos++
		return token{kind: tokComma, lit: ",", pos: start}, nil
	case '"', '\'':
		return l.quoted(c)
	case '=', '!', '<', '>':
		l.pos++
		if l.pos < len(l.input) && l.input[l.pos] == '=' {
			l.pos++
		}
		op := l.input[start:l.pos]
		if op == "=" || op == "!" {
			return token{}, newParseError(start, ErrUnexpectedChar, "unknown operator %q", op)
		}
		return token{kind: tokOp, lit: op, pos: start}, nil
	}

	if isIdentChar(c) {
		for l.pos < len(l.input) && isIdentChar(l.input[l.pos]) {
			l.pos++
		}
		lit := l.input[start:l.pos]
		if looksNumeric(lit) {
			return token{kind: tokNumber, lit: lit, pos: start}, nil
		}
		return token{kind: tokIdent, lit: lit, pos: start}, nil
	}
	return token{}, newParseError(start, ErrUnexpectedChar, "unexpected character %q", c)
}

func (l *lexer) quoted(quote byte) (token, error) {
	start := l.pos
	l.pos++
	var b strings.Builder
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch {
		case c == '\\' && l.pos+1 < len(l.input):
			b.WriteByte(l.input[l.pos+1])
			l.pos += 2
		case c == quote:
			l.pos++
			return token{kind: tokString, lit: b.String(), pos: start}, nil
		default:
			b.WriteByte(c)
			l.pos++
		}
	}
	return token{}, newParseError(start, ErrUnterminatedString, "unterminated string")
}

func looksNumeric(s string) bool {
	_, ok := parseNumber(s)
	return ok
}
