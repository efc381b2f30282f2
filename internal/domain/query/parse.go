package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kailas-cloud/naviq/internal/domain"
)

// deniedOperators maps operator names the model must never emit to the
// reason they are refused. Rejections name the operator so audit trails
// and callers see exactly what was attempted.
var deniedOperators = map[string]string{
	"where":       "enables server-side code execution",
	"function":    "enables server-side code execution",
	"accumulator": "enables server-side code execution",
	"expr":        "enables server-side expression evaluation",
	"lookup":      "performs a cross-collection join",
	"graphLookup": "performs a cross-collection join",
	"unionWith":   "performs a cross-collection join",
	"merge":       "is a pipeline stage, not a predicate",
	"out":         "is a pipeline stage, not a predicate",
	"facet":       "is a pipeline stage, not a predicate",
}

type wireCondition struct {
	Field  string          `json:"field"`
	Op     string          `json:"op"`
	Value  json.RawMessage `json:"value,omitempty"`
	Values []string        `json:"values,omitempty"`
}

type wireFilter struct {
	Conditions []wireCondition `json:"conditions"`
}

type wireAssignment struct {
	Field string          `json:"field"`
	Op    string          `json:"op"`
	Value json.RawMessage `json:"value"`
}

type wireMutation struct {
	Assignments []wireAssignment `json:"assignments"`
}

// ParseFilter strictly parses model output into a Filter. Syntactically
// broken JSON is ErrMalformedOutput; well-formed JSON using an operator
// outside the allowed set is ErrSecurityRejected with a reason naming
// the operator. nameFields lists attributes whose equality must be
// rendered as the anchored case-insensitive match.
func ParseFilter(data []byte, nameFields []string) (Filter, error) {
	var wire wireFilter
	if err := decodeStrict(data, &wire); err != nil {
		return Filter{}, fmt.Errorf("%w: filter: %w", domain.ErrMalformedOutput, err)
	}

	conds := make([]Condition, 0, len(wire.Conditions))
	for _, wc := range wire.Conditions {
		cond, err := parseCondition(wc, nameFields)
		if err != nil {
			return Filter{}, err
		}
		conds = append(conds, cond)
	}

	f, err := NewFilter(conds)
	if err != nil {
		return Filter{}, domain.NewSecurityRejected(err.Error())
	}
	return f, nil
}

func parseCondition(wc wireCondition, nameFields []string) (Condition, error) {
	op := strings.TrimPrefix(wc.Op, "$")

	if reason, denied := deniedOperators[op]; denied {
		return Condition{}, domain.NewSecurityRejected(
			fmt.Sprintf("operator %q %s", op, reason),
		)
	}

	var cond Condition
	var err error

	switch op {
	case "eq":
		cond, err = parseEq(wc, nameFields)
	case "gt", "gte", "lt", "lte":
		var n float64
		n, err = asNumber(wc.Value)
		if err != nil {
			return Condition{}, domain.NewSecurityRejected(
				fmt.Sprintf("comparison %q on field %q requires a numeric value", op, wc.Field),
			)
		}
		cond, err = NewCmp(wc.Field, Comparator(op), n)
	case "in":
		cond, err = NewIn(wc.Field, wc.Values)
	case "match", "regex":
		// Pattern matches are only admitted in their anchored
		// case-insensitive form.
		var s string
		s, err = asString(wc.Value)
		if err != nil {
			return Condition{}, domain.NewSecurityRejected(
				fmt.Sprintf("pattern match on field %q requires a string value", wc.Field),
			)
		}
		cond, err = NewMatch(wc.Field, s)
	default:
		return Condition{}, domain.NewSecurityRejected(
			fmt.Sprintf("operator %q is not in the allowed set (eq, gt, gte, lt, lte, in, match)", op),
		)
	}

	if err != nil {
		return Condition{}, domain.NewSecurityRejected(err.Error())
	}
	return cond, nil
}

func parseEq(wc wireCondition, nameFields []string) (Condition, error) {
	if n, err := asNumber(wc.Value); err == nil {
		return NewEqNumber(wc.Field, n)
	}
	s, err := asString(wc.Value)
	if err != nil {
		return Condition{}, fmt.Errorf("equality on field %q requires a string or numeric value", wc.Field)
	}
	// Equality on a name-like field becomes the anchored match.
	for _, nf := range nameFields {
		if nf == wc.Field {
			return NewMatch(wc.Field, s)
		}
	}
	return NewEqText(wc.Field, s)
}

// ParseMutation strictly parses model output into a Mutation. Any operator
// other than replace-value ("set") is refused with a reason naming it.
func ParseMutation(data []byte) (Mutation, error) {
	var wire wireMutation
	if err := decodeStrict(data, &wire); err != nil {
		return Mutation{}, fmt.Errorf("%w: mutation: %w", domain.ErrMalformedOutput, err)
	}

	assignments := make([]Assignment, 0, len(wire.Assignments))
	for _, wa := range wire.Assignments {
		op := strings.TrimPrefix(wa.Op, "$")
		if op != "set" {
			return Mutation{}, domain.NewSecurityRejected(
				fmt.Sprintf("mutation operator %q is not the replace-value operator", op),
			)
		}

		var a Assignment
		if n, err := asNumber(wa.Value); err == nil {
			a, err = NewSetNumber(wa.Field, n)
			if err != nil {
				return Mutation{}, domain.NewSecurityRejected(err.Error())
			}
		} else {
			s, err := asString(wa.Value)
			if err != nil {
				return Mutation{}, domain.NewSecurityRejected(
					fmt.Sprintf("assignment to field %q requires a string or numeric value", wa.Field),
				)
			}
			a, err = NewSetText(wa.Field, s)
			if err != nil {
				return Mutation{}, domain.NewSecurityRejected(err.Error())
			}
		}
		assignments = append(assignments, a)
	}

	m, err := NewMutation(assignments)
	if err != nil {
		return Mutation{}, domain.NewSecurityRejected(err.Error())
	}
	return m, nil
}

type wireUpdate struct {
	Filter   json.RawMessage `json:"filter"`
	Mutation json.RawMessage `json:"mutation"`
}

// ParseUpdate strictly parses model output into a filter/mutation pair.
// The ambiguity-refusal signal (empty filter, empty mutation) parses
// successfully; rejecting it is the update safety check's job.
func ParseUpdate(data []byte, nameFields []string) (Filter, Mutation, error) {
	var wire wireUpdate
	if err := decodeStrict(data, &wire); err != nil {
		return Filter{}, Mutation{}, fmt.Errorf("%w: update: %w", domain.ErrMalformedOutput, err)
	}
	if wire.Filter == nil || wire.Mutation == nil {
		return Filter{}, Mutation{}, fmt.Errorf(
			"%w: update: missing filter or mutation", domain.ErrMalformedOutput,
		)
	}

	f, err := ParseFilter(wire.Filter, nameFields)
	if err != nil {
		return Filter{}, Mutation{}, err
	}
	m, err := ParseMutation(wire.Mutation)
	if err != nil {
		return Filter{}, Mutation{}, err
	}
	return f, m, nil
}

// ValidateAssignments rejects assignments to attributes absent from the
// collection schema and type-mismatched replacement values.
func ValidateAssignments(m Mutation, tagFields, numericFields []string) error {
	known := make(map[string]bool, len(tagFields)+len(numericFields))
	numeric := make(map[string]bool, len(numericFields))
	for _, t := range tagFields {
		known[t] = true
	}
	for _, n := range numericFields {
		known[n] = true
		numeric[n] = true
	}

	for _, a := range m.Assignments() {
		if !known[a.Field()] {
			return domain.NewSecurityRejected(fmt.Sprintf("unknown field %q", a.Field()))
		}
		if numeric[a.Field()] && !a.IsNumeric() {
			return domain.NewSecurityRejected(
				fmt.Sprintf("text value assigned to numeric field %q", a.Field()),
			)
		}
		if !numeric[a.Field()] && a.IsNumeric() {
			return domain.NewSecurityRejected(
				fmt.Sprintf("numeric value assigned to text field %q", a.Field()),
			)
		}
	}
	return nil
}

// ValidateFields rejects conditions over attributes absent from the
// collection schema, and numeric operators over non-numeric attributes.
func ValidateFields(f Filter, tagFields, numericFields []string) error {
	known := make(map[string]bool, len(tagFields)+len(numericFields))
	numeric := make(map[string]bool, len(numericFields))
	for _, t := range tagFields {
		known[t] = true
	}
	for _, n := range numericFields {
		known[n] = true
		numeric[n] = true
	}

	for _, c := range f.Conditions() {
		if !known[c.Field()] {
			return domain.NewSecurityRejected(fmt.Sprintf("unknown field %q", c.Field()))
		}
		if c.Kind() == KindCmp && !numeric[c.Field()] {
			return domain.NewSecurityRejected(
				fmt.Sprintf("comparison on non-numeric field %q", c.Field()),
			)
		}
		if (c.Kind() == KindMatch || c.Kind() == KindIn) && numeric[c.Field()] {
			return domain.NewSecurityRejected(
				fmt.Sprintf("text operator on numeric field %q", c.Field()),
			)
		}
	}
	return nil
}

// decodeStrict unmarshals with unknown fields disallowed, after stripping
// optional markdown code fences the model may wrap around JSON.
func decodeStrict(data []byte, v any) error {
	data = stripFences(data)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	return nil
}

func stripFences(data []byte) []byte {
	s := strings.TrimSpace(string(data))
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return []byte(strings.TrimSpace(s))
}

func asNumber(raw json.RawMessage) (float64, error) {
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func asString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}
	return s, nil
}
