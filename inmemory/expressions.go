package inmemory

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/letmevibethatforyou/eqlx"
)

func matchesAll(fields map[string]any, filters []eqlx.Expression) bool {
	for _, f := range filters {
		if !evaluate(fields, f) {
			return false
		}
	}
	return true
}

// evaluate reports whether the document fields satisfy expr. Unknown
// expression types match.
func evaluate(fields map[string]any, expr eqlx.Expression) bool {
	switch e := expr.(type) {
	case eqlx.AndExpr:
		for _, inner := range e.Exprs {
			if !evaluate(fields, inner) {
				return false
			}
		}
		return true
	case eqlx.OrExpr:
		for _, inner := range e.Exprs {
			if evaluate(fields, inner) {
				return true
			}
		}
		return false
	case eqlx.NotExpr:
		return !evaluate(fields, e.Inner)
	case eqlx.CompareExpr:
		return evaluateCompare(fields, e)
	case eqlx.RangeExpr:
		v, ok := lookup(fields, e.Field)
		if !ok {
			return false
		}
		if e.Min != nil && compareValues(v, e.Min) < 0 {
			return false
		}
		return e.Max == nil || compareValues(v, e.Max) <= 0
	default:
		return true
	}
}

func evaluateCompare(fields map[string]any, e eqlx.CompareExpr) bool {
	v, ok := lookup(fields, e.Field)
	switch e.Op {
	case eqlx.OpExists:
		return ok
	case eqlx.OpEq:
		if !ok {
			return e.Value == nil
		}
		return equalValues(v, e.Value)
	case eqlx.OpNe:
		if !ok {
			return e.Value != nil
		}
		return !equalValues(v, e.Value)
	}

	if !ok {
		return false
	}
	c := compareValues(v, e.Value)
	switch e.Op {
	case eqlx.OpGt:
		return c > 0
	case eqlx.OpGte:
		return c >= 0
	case eqlx.OpLt:
		return c < 0
	case eqlx.OpLte:
		return c <= 0
	default:
		return false
	}
}

// lookup resolves a dotted path through nested objects. A key containing
// dots is found as is before the path is split.
func lookup(fields map[string]any, path string) (any, bool) {
	if v, ok := fields[path]; ok {
		return v, true
	}
	head, rest, found := strings.Cut(path, ".")
	if !found {
		return nil, false
	}
	nested, ok := fields[head].(map[string]any)
	if !ok {
		return nil, false
	}
	return lookup(nested, rest)
}

func equalValues(v1, v2 any) bool {
	if v1 == nil || v2 == nil {
		return v1 == v2
	}
	if f1, ok := toFloat64(v1); ok {
		if f2, ok := toFloat64(v2); ok {
			return f1 == f2
		}
	}
	return fmt.Sprint(v1) == fmt.Sprint(v2)
}

// compareValues orders nil first, numbers numerically and anything else by
// its string form.
func compareValues(v1, v2 any) int {
	switch {
	case v1 == nil && v2 == nil:
		return 0
	case v1 == nil:
		return -1
	case v2 == nil:
		return 1
	}
	if f1, ok := toFloat64(v1); ok {
		if f2, ok := toFloat64(v2); ok {
			return cmp.Compare(f1, f2)
		}
	}
	return strings.Compare(fmt.Sprint(v1), fmt.Sprint(v2))
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// keyString renders a field value as a join or bucket key.
func keyString(v any) string {
	switch k := v.(type) {
	case string:
		return k
	case nil:
		return "null"
	default:
		if f, ok := toFloat64(v); ok {
			return fmt.Sprint(f)
		}
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}
