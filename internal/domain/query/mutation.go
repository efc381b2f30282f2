package query

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxAssignments bounds the number of assignments in one mutation.
const MaxAssignments = 16

// Assignment replaces the value of one record attribute. Replace-value is
// the only mutation operator the system admits.
type Assignment struct {
	field   string
	text    string
	number  float64
	numeric bool
}

// NewSetText creates a textual replace-value assignment.
func NewSetText(field, value string) (Assignment, error) {
	if field == "" {
		return Assignment{}, fmt.Errorf("assignment field is required")
	}
	return Assignment{field: field, text: value}, nil
}

// NewSetNumber creates a numeric replace-value assignment.
func NewSetNumber(field string, value float64) (Assignment, error) {
	if field == "" {
		return Assignment{}, fmt.Errorf("assignment field is required")
	}
	return Assignment{field: field, number: value, numeric: true}, nil
}

// Field returns the attribute name.
func (a Assignment) Field() string { return a.field }

// Text returns the textual replacement value.
func (a Assignment) Text() string { return a.text }

// Number returns the numeric replacement value.
func (a Assignment) Number() float64 { return a.number }

// IsNumeric reports whether the replacement value is numeric.
func (a Assignment) IsNumeric() bool { return a.numeric }

// Value renders the replacement value as its stored string form.
func (a Assignment) Value() string {
	if a.numeric {
		return strconv.FormatFloat(a.number, 'f', -1, 64)
	}
	return a.text
}

// Mutation is a set of replace-value assignments applied to every record
// matching a filter.
type Mutation struct {
	assignments []Assignment
}

// NewMutation validates and creates a Mutation.
func NewMutation(assignments []Assignment) (Mutation, error) {
	if len(assignments) > MaxAssignments {
		return Mutation{}, fmt.Errorf("too many assignments (max %d)", MaxAssignments)
	}
	return Mutation{assignments: assignments}, nil
}

// Assignments returns the mutation's assignments.
func (m Mutation) Assignments() []Assignment { return m.assignments }

// IsEmpty reports whether the mutation changes nothing.
func (m Mutation) IsEmpty() bool { return len(m.assignments) == 0 }

// Fields returns the names of all assigned attributes.
func (m Mutation) Fields() []string {
	fields := make([]string, 0, len(m.assignments))
	for _, a := range m.assignments {
		fields = append(fields, a.field)
	}
	return fields
}

// String renders the mutation for audit entries and API responses.
func (m Mutation) String() string {
	if m.IsEmpty() {
		return "(empty)"
	}
	parts := make([]string, 0, len(m.assignments))
	for _, a := range m.assignments {
		if a.numeric {
			parts = append(parts, fmt.Sprintf("%s = %s", a.field, formatNum(a.number)))
		} else {
			parts = append(parts, fmt.Sprintf("%s = %q", a.field, a.text))
		}
	}
	return strings.Join(parts, ", ")
}
