package itemstore

import (
	"strings"
	"time"
)

// Matches evaluates the conjunction of preds against fields.
func Matches(fields Fields, preds ...Predicate) bool {
	for _, p := range preds {
		if !matchOne(fields[p.Field], p) {
			return false
		}
	}
	return true
}

func matchOne(actual interface{}, p Predicate) bool {
	switch p.Op {
	case OpEq:
		if isNil(p.Value) {
			return isNil(actual)
		}
		c, ok := compareValues(actual, p.Value)
		return ok && c == 0
	case OpNe:
		if isNil(p.Value) {
			return !isNil(actual)
		}
		c, ok := compareValues(actual, p.Value)
		return !ok || c != 0
	case OpLt, OpLe, OpGt, OpGe:
		c, ok := compareValues(actual, p.Value)
		if !ok {
			return false
		}
		switch p.Op {
		case OpLt:
			return c < 0
		case OpLe:
			return c <= 0
		case OpGt:
			return c > 0
		default:
			return c >= 0
		}
	case OpBeginsWith:
		s, ok := actual.(string)
		prefix, ok2 := p.Value.(string)
		return ok && ok2 && strings.HasPrefix(s, prefix)
	case OpIn:
		values, _ := p.Value.([]interface{})
		for _, v := range values {
			if c, ok := compareValues(actual, v); ok && c == 0 {
				return true
			}
		}
		return false
	}
	return false
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	if t, ok := v.(*time.Time); ok {
		return t == nil
	}
	return false
}

// compareValues orders two scalar values of compatible kinds.
func compareValues(a, b interface{}) (int, bool) {
	if isNil(a) || isNil(b) {
		return 0, false
	}
	if ta, ok := toTime(a); ok {
		tb, ok := toTime(b)
		if !ok {
			return 0, false
		}
		switch {
		case ta.Before(tb):
			return -1, true
		case ta.After(tb):
			return 1, true
		}
		return 0, true
	}
	if ba, ok := a.(bool); ok {
		bb, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case ba == bb:
			return 0, true
		case !ba:
			return -1, true
		}
		return 1, true
	}
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(sa, sb), true
	}
	na, ok := toInt64(a)
	if !ok {
		return 0, false
	}
	nb, ok := toInt64(b)
	if !ok {
		return 0, false
	}
	switch {
	case na < nb:
		return -1, true
	case na > nb:
		return 1, true
	}
	return 0, true
}
