package table

import (
	"fmt"
	"strings"
)

// Op is a comparison operator usable in row conditions.
type Op string

const (
	OpEq       Op = "eq"
	OpNe       Op = "ne"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpIn       Op = "in"
	OpContains Op = "contains"
)

// Condition compares one column against a literal value. String
// comparisons are case-insensitive to match normalized text columns.
type Condition struct {
	Column string `yaml:"column" json:"column" validate:"required"`
	Op     Op     `yaml:"op" json:"op" validate:"required,oneof=eq ne gt gte lt lte in contains"`
	Value  any    `yaml:"value" json:"value"`
	Values []any  `yaml:"values,omitempty" json:"values,omitempty"`
}

// Predicate is a conjunction of conditions; an empty predicate matches
// every row.
type Predicate []Condition

// Matches evaluates the predicate against a record. It returns an error
// when a referenced column does not exist, so misconfigured rules fail
// loudly instead of silently matching nothing.
func (p Predicate) Matches(r Record) (bool, error) {
	for _, c := range p {
		ok, err := c.matches(r)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (c Condition) matches(r Record) (bool, error) {
	v, ok := r.Get(c.Column)
	if !ok {
		return false, fmt.Errorf("condition references unknown column %q", c.Column)
	}
	if v == nil {
		return false, nil
	}

	switch c.Op {
	case OpEq, OpNe:
		eq := equalFold(v, c.Value)
		if c.Op == OpNe {
			return !eq, nil
		}
		return eq, nil
	case OpGt, OpGte, OpLt, OpLte:
		lhs, lok := r.Float(c.Column)
		rhs, rok := toFloat(c.Value)
		if !lok || !rok {
			return false, fmt.Errorf("condition on column %q requires numeric operands", c.Column)
		}
		switch c.Op {
		case OpGt:
			return lhs > rhs, nil
		case OpGte:
			return lhs >= rhs, nil
		case OpLt:
			return lhs < rhs, nil
		default:
			return lhs <= rhs, nil
		}
	case OpIn:
		for _, candidate := range c.Values {
			if equalFold(v, candidate) {
				return true, nil
			}
		}
		return false, nil
	case OpContains:
		s, want := r.String(c.Column), fmt.Sprintf("%v", c.Value)
		return strings.Contains(strings.ToLower(s), strings.ToLower(want)), nil
	default:
		return false, fmt.Errorf("unknown condition op %q", c.Op)
	}
}

func equalFold(a, b any) bool {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.EqualFold(as, bs)
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
