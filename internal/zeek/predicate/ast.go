// Package predicate implements the restricted record filter language. An
// expression is parsed once into an AST and evaluated against each built
// document; nothing in an expression can execute code.
//
// Grammar:
//
//	expr    = or
//	or      = and ( "or" and )*
//	and     = unary ( "and" unary )*
//	unary   = "not" unary | primary
//	primary = "(" expr ")" | "exists" FIELD | FIELD op value | FIELD "in" "[" value ( "," value )* "]"
//	op      = "==" | "!=" | "<" | "<=" | ">" | ">=" | "contains" | "startswith"
//	value   = STRING | NUMBER | "true" | "false" | WORD
//
// Keywords are case-insensitive.
package predicate

import (
	"strings"
)

// Expr is a parsed filter expression.
type Expr interface {
	// Match reports whether doc satisfies the expression.
	Match(doc map[string]any) bool
	String() string
}

// Op is a comparison operator.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpContains
	OpStartsWith
)

var opNames = map[Op]string{
	OpEq:         "==",
	OpNe:         "!=",
	OpLt:         "<",
	OpLe:         "<=",
	OpGt:         ">",
	OpGe:         ">=",
	OpContains:   "contains",
	OpStartsWith: "startswith",
}

func (o Op) String() string { return opNames[o] }

// Literal is a constant on the right-hand side of a comparison.
type Literal struct {
	Text   string
	Num    float64
	IsNum  bool
	Bool   bool
	IsBool bool
}

func (l Literal) String() string {
	if l.IsNum || l.IsBool {
		return l.Text
	}
	return `"` + strings.ReplaceAll(l.Text, `"`, `\"`) + `"`
}

// AndExpr matches when every term matches.
type AndExpr struct {
	Terms []Expr
}

func (a *AndExpr) Match(doc map[string]any) bool {
	for _, t := range a.Terms {
		if !t.Match(doc) {
			return false
		}
	}
	return true
}

func (a *AndExpr) String() string { return join(a.Terms, " and ") }

// OrExpr matches when any term matches.
type OrExpr struct {
	Terms []Expr
}

func (o *OrExpr) Match(doc map[string]any) bool {
	for _, t := range o.Terms {
		if t.Match(doc) {
			return true
		}
	}
	return false
}

func (o *OrExpr) String() string { return join(o.Terms, " or ") }

type NotExpr struct {
	Term Expr
}

func (n *NotExpr) Match(doc map[string]any) bool { return !n.Term.Match(doc) }

func (n *NotExpr) String() string { return "not " + n.Term.String() }

// ExistsExpr matches when the field is present in the document.
type ExistsExpr struct {
	Field string
}

func (e *ExistsExpr) Match(doc map[string]any) bool {
	_, ok := doc[e.Field]
	return ok
}

func (e *ExistsExpr) String() string { return "exists " + e.Field }

// CompareExpr compares a field with a literal. A missing field never
// matches, except under != which is the negation of ==.
type CompareExpr struct {
	Field string
	Op    Op
	Value Literal
}

func (c *CompareExpr) Match(doc map[string]any) bool {
	v, ok := doc[c.Field]
	if c.Op == OpNe {
		return !ok || !anyElement(v, func(x any) bool { return equal(x, c.Value) })
	}
	if !ok {
		return false
	}
	return anyElement(v, func(x any) bool { return compare(x, c.Op, c.Value) })
}

func (c *CompareExpr) String() string {
	return c.Field + " " + c.Op.String() + " " + c.Value.String()
}

// InExpr matches when the field equals any of Values.
type InExpr struct {
	Field  string
	Values []Literal
}

func (in *InExpr) Match(doc map[string]any) bool {
	v, ok := doc[in.Field]
	if !ok {
		return false
	}
	return anyElement(v, func(x any) bool {
		for _, lit := range in.Values {
			if equal(x, lit) {
				return true
			}
		}
		return false
	})
}

func (in *InExpr) String() string {
	parts := make([]string, len(in.Values))
	for i, v := range in.Values {
		parts[i] = v.String()
	}
	return in.Field + " in [" + strings.Join(parts, ", ") + "]"
}

func join(terms []Expr, sep string) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}
