// Package query defines the closed set of filter and mutation shapes the
// translation stage is allowed to produce. Model output enters the system
// only through the strict parsers in this package; anything outside the
// declared operator set is rejected before it can reach the store.
package query

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxConditions bounds the number of conditions in one filter.
const MaxConditions = 32

// Comparator is a numeric comparison operator.
type Comparator string

// Allowed comparison operators.
const (
	CmpGT  Comparator = "gt"
	CmpGTE Comparator = "gte"
	CmpLT  Comparator = "lt"
	CmpLTE Comparator = "lte"
)

// Kind discriminates the condition variants.
type Kind int

// Condition variants: equality, numeric comparison, set membership, and
// the case-insensitive whitespace-tolerant name match.
const (
	KindEq Kind = iota
	KindCmp
	KindIn
	KindMatch
)

// Condition is a single predicate over one record attribute. Exactly one
// variant is populated, chosen by kind.
type Condition struct {
	field   string
	kind    Kind
	text    string
	number  float64
	numeric bool
	cmp     Comparator
	values  []string
}

// NewEqText creates a textual equality condition.
func NewEqText(field, value string) (Condition, error) {
	if field == "" {
		return Condition{}, fmt.Errorf("condition field is required")
	}
	if value == "" {
		return Condition{}, fmt.Errorf("equality value is required for field %q", field)
	}
	return Condition{field: field, kind: KindEq, text: value}, nil
}

// NewEqNumber creates a numeric equality condition.
func NewEqNumber(field string, value float64) (Condition, error) {
	if field == "" {
		return Condition{}, fmt.Errorf("condition field is required")
	}
	return Condition{field: field, kind: KindEq, number: value, numeric: true}, nil
}

// NewCmp creates a numeric comparison condition.
func NewCmp(field string, cmp Comparator, value float64) (Condition, error) {
	if field == "" {
		return Condition{}, fmt.Errorf("condition field is required")
	}
	switch cmp {
	case CmpGT, CmpGTE, CmpLT, CmpLTE:
	default:
		return Condition{}, fmt.Errorf("unknown comparator %q for field %q", cmp, field)
	}
	return Condition{field: field, kind: KindCmp, cmp: cmp, number: value, numeric: true}, nil
}

// NewIn creates a set-membership condition.
func NewIn(field string, values []string) (Condition, error) {
	if field == "" {
		return Condition{}, fmt.Errorf("condition field is required")
	}
	if len(values) == 0 {
		return Condition{}, fmt.Errorf("membership set is empty for field %q", field)
	}
	return Condition{field: field, kind: KindIn, values: values}, nil
}

// NewMatch creates a name match: case-insensitive, whitespace-tolerant,
// anchored at both ends. Interior whitespace is collapsed to single spaces.
func NewMatch(field, value string) (Condition, error) {
	if field == "" {
		return Condition{}, fmt.Errorf("condition field is required")
	}
	normalized := strings.Join(strings.Fields(value), " ")
	if normalized == "" {
		return Condition{}, fmt.Errorf("match value is required for field %q", field)
	}
	return Condition{field: field, kind: KindMatch, text: normalized}, nil
}

// Field returns the attribute name.
func (c Condition) Field() string { return c.field }

// Kind returns the condition variant.
func (c Condition) Kind() Kind { return c.kind }

// Text returns the eq/match value.
func (c Condition) Text() string { return c.text }

// Number returns the numeric eq/comparison value.
func (c Condition) Number() float64 { return c.number }

// IsNumeric reports whether the condition compares against a number.
func (c Condition) IsNumeric() bool { return c.numeric }

// Cmp returns the comparison operator.
func (c Condition) Cmp() Comparator { return c.cmp }

// Values returns the membership set.
func (c Condition) Values() []string { return c.values }

// Filter is a conjunction of conditions over record attributes.
type Filter struct {
	conds []Condition
}

// NewFilter validates and creates a Filter.
func NewFilter(conds []Condition) (Filter, error) {
	if len(conds) > MaxConditions {
		return Filter{}, fmt.Errorf("too many conditions (max %d)", MaxConditions)
	}
	return Filter{conds: conds}, nil
}

// Conditions returns the filter conditions.
func (f Filter) Conditions() []Condition { return f.conds }

// IsEmpty reports whether the filter matches everything.
func (f Filter) IsEmpty() bool { return len(f.conds) == 0 }

// String renders the filter for audit entries and API responses.
func (f Filter) String() string {
	if f.IsEmpty() {
		return "(empty)"
	}
	parts := make([]string, 0, len(f.conds))
	for _, c := range f.conds {
		switch c.kind {
		case KindEq:
			if c.numeric {
				parts = append(parts, fmt.Sprintf("%s == %s", c.field, formatNum(c.number)))
			} else {
				parts = append(parts, fmt.Sprintf("%s == %q", c.field, c.text))
			}
		case KindCmp:
			parts = append(parts, fmt.Sprintf("%s %s %s", c.field, comparatorSymbol(c.cmp), formatNum(c.number)))
		case KindIn:
			parts = append(parts, fmt.Sprintf("%s in [%s]", c.field, strings.Join(c.values, ", ")))
		case KindMatch:
			parts = append(parts, fmt.Sprintf("%s ~= %q", c.field, c.text))
		}
	}
	return strings.Join(parts, " AND ")
}

func comparatorSymbol(cmp Comparator) string {
	switch cmp {
	case CmpGT:
		return ">"
	case CmpGTE:
		return ">="
	case CmpLT:
		return "<"
	case CmpLTE:
		return "<="
	}
	return string(cmp)
}

func formatNum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
