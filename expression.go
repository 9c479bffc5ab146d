package eqlx

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Expression is a composable filter. Every Expression is a SearchOption that
// adds itself to the filters; it can also be used as a sequence stage.
type Expression interface {
	SearchOption
	fmt.Stringer
	// expr is a marker method to distinguish expressions from other options.
	expr()
}

type baseExpr struct{}

func (baseExpr) expr() {}

// AndExpr matches when all of Exprs match.
type AndExpr struct {
	baseExpr
	Exprs []Expression
}

// Apply adds the expression to the filters.
func (a AndExpr) Apply(cfg *SearchConfig) { cfg.Filters = append(cfg.Filters, a) }

func (a AndExpr) String() string { return joinExprs(a.Exprs, " and ") }

// And combines expressions with AND.
func And(exprs ...Expression) Expression {
	return AndExpr{Exprs: exprs}
}

// OrExpr matches when any of Exprs matches.
type OrExpr struct {
	baseExpr
	Exprs []Expression
}

// Apply adds the expression to the filters.
func (o OrExpr) Apply(cfg *SearchConfig) { cfg.Filters = append(cfg.Filters, o) }

func (o OrExpr) String() string { return joinExprs(o.Exprs, " or ") }

// Or combines expressions with OR.
func Or(exprs ...Expression) Expression {
	return OrExpr{Exprs: exprs}
}

// NotExpr negates Inner.
type NotExpr struct {
	baseExpr
	Inner Expression
}

// Apply adds the expression to the filters.
func (n NotExpr) Apply(cfg *SearchConfig) { cfg.Filters = append(cfg.Filters, n) }

func (n NotExpr) String() string { return "not (" + n.Inner.String() + ")" }

// Not negates an expression.
func Not(expr Expression) Expression {
	return NotExpr{Inner: expr}
}

// CompareExpr compares a document field with a value. Field may be a dotted
// path into nested objects, such as "process.name".
type CompareExpr struct {
	baseExpr
	Field string
	Op    Operator
	// Value is ignored for OpExists.
	Value any
}

// Apply adds the expression to the filters.
func (c CompareExpr) Apply(cfg *SearchConfig) { cfg.Filters = append(cfg.Filters, c) }

func (c CompareExpr) String() string {
	if c.Op == OpExists {
		return c.Field + " exists"
	}
	return fmt.Sprintf("%s %s %s", c.Field, c.Op.symbol(), formatValue(c.Value))
}

// Eq matches documents whose field equals value.
func Eq(field string, value any) Expression {
	return CompareExpr{Field: field, Op: OpEq, Value: value}
}

// Ne matches documents whose field differs from value.
func Ne(field string, value any) Expression {
	return CompareExpr{Field: field, Op: OpNe, Value: value}
}

// Gt matches documents whose field is greater than value.
func Gt(field string, value any) Expression {
	return CompareExpr{Field: field, Op: OpGt, Value: value}
}

// Gte matches documents whose field is greater than or equal to value.
func Gte(field string, value any) Expression {
	return CompareExpr{Field: field, Op: OpGte, Value: value}
}

// Lt matches documents whose field is less than value.
func Lt(field string, value any) Expression {
	return CompareExpr{Field: field, Op: OpLt, Value: value}
}

// Lte matches documents whose field is less than or equal to value.
func Lte(field string, value any) Expression {
	return CompareExpr{Field: field, Op: OpLte, Value: value}
}

// Exists matches documents that have the field.
func Exists(field string) Expression {
	return CompareExpr{Field: field, Op: OpExists}
}

// RangeExpr matches values between Min and Max, both inclusive. A nil bound
// is open.
type RangeExpr struct {
	baseExpr
	Field string
	Min   any
	Max   any
}

// Apply adds the expression to the filters.
func (r RangeExpr) Apply(cfg *SearchConfig) { cfg.Filters = append(cfg.Filters, r) }

func (r RangeExpr) String() string {
	var parts []string
	if r.Min != nil {
		parts = append(parts, fmt.Sprintf("%s >= %s", r.Field, formatValue(r.Min)))
	}
	if r.Max != nil {
		parts = append(parts, fmt.Sprintf("%s <= %s", r.Field, formatValue(r.Max)))
	}
	if len(parts) == 0 {
		return r.Field + " exists"
	}
	return strings.Join(parts, " and ")
}

// Range creates a range comparison expression.
func Range(field string, min, max any) Expression {
	return RangeExpr{Field: field, Min: min, Max: max}
}

func (o Operator) symbol() string {
	switch o {
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	default:
		return string(o)
	}
}

func joinExprs(exprs []Expression, sep string) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = "(" + e.String() + ")"
	}
	return strings.Join(parts, sep)
}

func formatValue(v any) string {
	data, err := compactAPI.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// conditionOps is ordered so that two-character operators are tried first.
var conditionOps = []struct {
	token string
	op    Operator
}{
	{"==", OpEq},
	{"!=", OpNe},
	{">=", OpGte},
	{"<=", OpLte},
	{">", OpGt},
	{"<", OpLt},
	{"=", OpEq},
}

// ParseCondition parses a single comparison such as `process.name==cmd.exe`,
// `pid>=4` or `user.name exists`. The value is read as a JSON literal when it
// is one and as a bare string otherwise.
func ParseCondition(s string) (Expression, error) {
	s = strings.TrimSpace(s)
	if field, ok := strings.CutSuffix(s, " exists"); ok {
		field = strings.TrimSpace(field)
		if field == "" {
			return nil, errors.Wrapf(ErrInvalidExpression, "%q: missing field", s)
		}
		return Exists(field), nil
	}

	for _, c := range conditionOps {
		field, raw, ok := strings.Cut(s, c.token)
		if !ok {
			continue
		}
		field = strings.TrimSpace(field)
		if field == "" {
			return nil, errors.Wrapf(ErrInvalidExpression, "%q: missing field", s)
		}
		return CompareExpr{Field: field, Op: c.op, Value: parseLiteral(strings.TrimSpace(raw))}, nil
	}
	return nil, errors.Wrapf(ErrInvalidExpression, "%q: no comparison operator", s)
}

func parseLiteral(raw string) any {
	var v any
	if err := compactAPI.UnmarshalFromString(raw, &v); err == nil {
		return v
	}
	return raw
}
