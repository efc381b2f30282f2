package redis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/naviq/internal/domain/query"
)

// buildFilter translates a query.Filter into an FT.SEARCH query string.
// An empty filter matches everything ("*"). TAG fields are case-insensitive
// by index construction, which is what gives the name match its
// case-insensitive anchored semantics.
func buildFilter(f query.Filter) string {
	if f.IsEmpty() {
		return "*"
	}

	parts := make([]string, 0, len(f.Conditions()))
	for _, c := range f.Conditions() {
		parts = append(parts, buildCondition(c))
	}
	return strings.Join(parts, " ")
}

func buildCondition(c query.Condition) string {
	switch c.Kind() {
	case query.KindEq:
		if c.IsNumeric() {
			n := formatBound(c.Number())
			return fmt.Sprintf("@%s:[%s %s]", c.Field(), n, n)
		}
		return fmt.Sprintf("@%s:{%s}", c.Field(), escapeTag(c.Text()))

	case query.KindCmp:
		switch c.Cmp() {
		case query.CmpGT:
			return fmt.Sprintf("@%s:[(%s +inf]", c.Field(), formatBound(c.Number()))
		case query.CmpGTE:
			return fmt.Sprintf("@%s:[%s +inf]", c.Field(), formatBound(c.Number()))
		case query.CmpLT:
			return fmt.Sprintf("@%s:[-inf (%s]", c.Field(), formatBound(c.Number()))
		case query.CmpLTE:
			return fmt.Sprintf("@%s:[-inf %s]", c.Field(), formatBound(c.Number()))
		}

	case query.KindIn:
		escaped := make([]string, 0, len(c.Values()))
		for _, v := range c.Values() {
			escaped = append(escaped, escapeTag(v))
		}
		return fmt.Sprintf("@%s:{%s}", c.Field(), strings.Join(escaped, "|"))

	case query.KindMatch:
		return fmt.Sprintf("@%s:{%s}", c.Field(), escapeTag(c.Text()))
	}
	return "*"
}

func formatBound(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// escapeTag backslash-escapes RediSearch TAG syntax characters.
func escapeTag(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 2)
	for _, r := range s {
		if isTagSpecial(r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isTagSpecial(r rune) bool {
	switch r {
	case ' ', ',', '.', '<', '>', '{', '}', '[', ']', '"', '\'', ':', ';',
		'!', '@', '#', '$', '%', '^', '&', '*', '(', ')', '-', '+', '=',
		'~', '|', '/', '\\':
		return true
	}
	return false
}
