package redis

import (
	"testing"

	"github.com/kailas-cloud/naviq/internal/domain/query"
)

func mustCond(t *testing.T) func(query.Condition, error) query.Condition {
	t.Helper()
	return func(c query.Condition, err error) query.Condition {
		if err != nil {
			t.Fatalf("condition: %v", err)
		}
		return c
	}
}

func mustFilter(t *testing.T, conds ...query.Condition) query.Filter {
	t.Helper()
	f, err := query.NewFilter(conds)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	return f
}

func TestBuildFilter(t *testing.T) {
	tests := []struct {
		name string
		f    query.Filter
		want string
	}{
		{
			"empty matches everything",
			mustFilter(t),
			"*",
		},
		{
			"eq text",
			mustFilter(t, mustCond(t)(query.NewEqText("branch", "CO"))),
			"@branch:{CO}",
		},
		{
			"eq number is a degenerate range",
			mustFilter(t, mustCond(t)(query.NewEqNumber("ctc", 50))),
			"@ctc:[50 50]",
		},
		{
			"gt is exclusive lower bound",
			mustFilter(t, mustCond(t)(query.NewCmp("ctc", query.CmpGT, 50))),
			"@ctc:[(50 +inf]",
		},
		{
			"gte is inclusive lower bound",
			mustFilter(t, mustCond(t)(query.NewCmp("ctc", query.CmpGTE, 50))),
			"@ctc:[50 +inf]",
		},
		{
			"lt is exclusive upper bound",
			mustFilter(t, mustCond(t)(query.NewCmp("experience", query.CmpLT, 3))),
			"@experience:[-inf (3]",
		},
		{
			"lte is inclusive upper bound",
			mustFilter(t, mustCond(t)(query.NewCmp("experience", query.CmpLTE, 3))),
			"@experience:[-inf 3]",
		},
		{
			"in joins alternatives",
			mustFilter(t, mustCond(t)(query.NewIn("branch", []string{"CO", "IT"}))),
			"@branch:{CO|IT}",
		},
		{
			"match escapes tag specials",
			mustFilter(t, mustCond(t)(query.NewMatch("name", "Asha Rao"))),
			`@name:{Asha\ Rao}`,
		},
		{
			"conjunction is space-joined",
			mustFilter(t,
				mustCond(t)(query.NewEqText("branch", "CO")),
				mustCond(t)(query.NewCmp("ctc", query.CmpGT, 40)),
			),
			"@branch:{CO} @ctc:[(40 +inf]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildFilter(tt.f); got != tt.want {
				t.Errorf("buildFilter = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEscapeTag(t *testing.T) {
	tests := []struct{ in, want string }{
		{"plain", "plain"},
		{"a b", `a\ b`},
		{"a-b", `a\-b`},
		{"x|y", `x\|y`},
		{`back\slash`, `back\\slash`},
		{"v1.2", `v1\.2`},
	}
	for _, tt := range tests {
		if got := escapeTag(tt.in); got != tt.want {
			t.Errorf("escapeTag(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
