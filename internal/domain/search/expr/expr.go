// Package expr holds the backend-neutral constraint expression built from a query model.
package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxConditions is the maximum number of conditions per expression.
const MaxConditions = 64

// Expression is a conjunction of filter conditions plus an optional free-text query.
type Expression struct {
	text       string
	conditions []Condition
}

// New validates and creates an Expression.
func New(text string, conditions []Condition) (Expression, error) {
	if len(conditions) > MaxConditions {
		return Expression{}, fmt.Errorf("too many conditions (max %d)", MaxConditions)
	}
	return Expression{text: text, conditions: conditions}, nil
}

// Text returns the free-text part of the expression.
func (e Expression) Text() string { return e.text }

// Conditions returns the conjunctive filter conditions.
func (e Expression) Conditions() []Condition { return e.conditions }

// IsEmpty reports whether the expression matches every document.
func (e Expression) IsEmpty() bool {
	return e.text == "" && len(e.conditions) == 0
}

// String renders the expression in a stable form, e.g. `text="dear sir" genre:any(poetry,prose) year:[1900,1950]`.
func (e Expression) String() string {
	parts := make([]string, 0, len(e.conditions)+1)
	if e.text != "" {
		parts = append(parts, "text="+strconv.Quote(e.text))
	}
	for _, c := range e.conditions {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, " ")
}

// Condition is a single clause: either an any-of tag match or an inclusive numeric range.
type Condition struct {
	key       string
	anyOf     []string
	rangeExpr *Range
}

// NewAnyOf creates a tag condition matching any of the given values.
func NewAnyOf(key string, values ...string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("condition key is required")
	}
	if len(values) == 0 {
		return Condition{}, fmt.Errorf("at least one value is required for key %q", key)
	}
	for _, v := range values {
		if v == "" {
			return Condition{}, fmt.Errorf("empty match value for key %q", key)
		}
	}
	return Condition{key: key, anyOf: values}, nil
}

// NewRange creates an inclusive numeric range condition.
func NewRange(key string, gte, lte float64) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("condition key is required")
	}
	if gte > lte {
		return Condition{}, fmt.Errorf("range for %q: lower bound %g exceeds upper bound %g", key, gte, lte)
	}
	return Condition{key: key, rangeExpr: &Range{gte: gte, lte: lte}}, nil
}

// String renders the condition; any-of values are quoted when they contain separators.
func (c Condition) String() string {
	if c.rangeExpr != nil {
		return fmt.Sprintf("%s:[%s,%s]", c.key,
			strconv.FormatFloat(c.rangeExpr.gte, 'f', -1, 64),
			strconv.FormatFloat(c.rangeExpr.lte, 'f', -1, 64))
	}
	vals := make([]string, len(c.anyOf))
	for i, v := range c.anyOf {
		if strings.ContainsAny(v, ",() \"") {
			v = strconv.Quote(v)
		}
		vals[i] = v
	}
	return c.key + ":any(" + strings.Join(vals, ",") + ")"
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// AnyOf returns the match values.
func (c Condition) AnyOf() []string { return c.anyOf }

// Range returns the numeric range, nil for match conditions.
func (c Condition) Range() *Range { return c.rangeExpr }

// IsMatch reports whether this is a tag match condition.
func (c Condition) IsMatch() bool { return len(c.anyOf) > 0 }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

// Range is an inclusive numeric interval.
type Range struct {
	gte float64
	lte float64
}

// GTE returns the inclusive lower bound.
func (r Range) GTE() float64 { return r.gte }

// LTE returns the inclusive upper bound.
func (r Range) LTE() float64 { return r.lte }
