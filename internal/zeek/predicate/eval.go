package predicate

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// anyElement applies fn to v, or to each element when v is a sequence.
func anyElement(v any, fn func(any) bool) bool {
	switch s := v.(type) {
	case []string:
		for _, e := range s {
			if fn(e) {
				return true
			}
		}
		return false
	case []any:
		for _, e := range s {
			if fn(e) {
				return true
			}
		}
		return false
	default:
		return fn(v)
	}
}

func compare(v any, op Op, lit Literal) bool {
	switch op {
	case OpEq:
		return equal(v, lit)
	case OpContains:
		s, ok := v.(string)
		if !ok {
			return equal(v, lit)
		}
		return strings.Contains(s, lit.Text)
	case OpStartsWith:
		s, ok := v.(string)
		return ok && strings.HasPrefix(s, lit.Text)
	}

	cmp, ok := order(v, lit)
	if !ok {
		return false
	}
	switch op {
	case OpLt:
		return cmp < 0
	case OpLe:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGe:
		return cmp >= 0
	}
	return false
}

func equal(v any, lit Literal) bool {
	if b, ok := v.(bool); ok {
		return lit.IsBool && b == lit.Bool
	}
	if f, ok := toFloat(v); ok {
		return lit.IsNum && f == lit.Num
	}
	if s, ok := v.(string); ok {
		return s == lit.Text
	}
	return false
}

// order compares v with lit numerically when both are numbers, otherwise as
// strings.
func order(v any, lit Literal) (int, bool) {
	if f, ok := toFloat(v); ok {
		if !lit.IsNum {
			return 0, false
		}
		return cmpFloat(f, lit.Num), true
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	if lit.IsNum {
		if f, ok := parseNumber(s); ok {
			return cmpFloat(f, lit.Num), true
		}
	}
	return strings.Compare(s, lit.Text), true
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// parseNumber accepts decimal numbers only; words such as "inf" or "nan"
// stay strings.
func parseNumber(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	i := 0
	if s[0] == '-' || s[0] == '+' {
		i = 1
	}
	if i >= len(s) || s[i] < '0' || s[i] > '9' {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
