package update

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/naviq/internal/domain"
	domaudit "github.com/kailas-cloud/naviq/internal/domain/audit"
	"github.com/kailas-cloud/naviq/internal/domain/query"
	domrec "github.com/kailas-cloud/naviq/internal/domain/record"
	"github.com/kailas-cloud/naviq/internal/prompt"
)

type fakeCompleter struct {
	response string
	err      error
	calls    int
}

func (f *fakeCompleter) Complete(context.Context, string, string, bool) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type fakeEmbedder struct {
	vector   []float32
	failFrom int // 1-based call index that starts failing; 0 never fails
	calls    int
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	f.calls++
	if f.failFrom > 0 && f.calls >= f.failFrom {
		return nil, domain.NewUpstream(503, "overloaded")
	}
	return f.vector, nil
}

type fakeGate struct {
	err   error
	calls int
}

func (f *fakeGate) Authorize(context.Context, domain.Caller, string) error {
	f.calls++
	return f.err
}

type fakeRepo struct {
	modified   int
	updateErr  error
	stale      []domrec.Record
	staleErr   error
	vectorIDs  []string
	setVecErr  error
	updates    int
	lastFilter query.Filter
}

func (f *fakeRepo) Update(_ context.Context, _ string, q query.Filter, _ query.Mutation) (int, error) {
	f.updates++
	f.lastFilter = q
	if f.updateErr != nil {
		return 0, f.updateErr
	}
	return f.modified, nil
}

func (f *fakeRepo) FindStale(context.Context, string, query.Filter, int) ([]domrec.Record, error) {
	if f.staleErr != nil {
		return nil, f.staleErr
	}
	return f.stale, nil
}

func (f *fakeRepo) SetVector(_ context.Context, _ string, id string, _ []float32) error {
	if f.setVecErr != nil {
		return f.setVecErr
	}
	f.vectorIDs = append(f.vectorIDs, id)
	return nil
}

type fakeAuditor struct {
	entries []domaudit.Entry
}

func (f *fakeAuditor) Record(_ context.Context, e domaudit.Entry) error {
	f.entries = append(f.entries, e)
	return nil
}

func testSchemas() map[string]prompt.Schema {
	return map[string]prompt.Schema{
		"managers": {
			Collection:    "managers",
			TagFields:     []string{"name", "branch", "designation"},
			NumericFields: []string{"ctc", "experience"},
			NameFields:    []string{"name"},
		},
	}
}

func testRecord(t *testing.T, id string) domrec.Record {
	t.Helper()
	rec, err := domrec.New(id, map[string]string{"name": "Asha Rao"}, map[string]float64{"ctc": 60}, "")
	if err != nil {
		t.Fatalf("New record: %v", err)
	}
	return rec
}

const updateJSON = `{"filter":{"conditions":[{"field":"name","op":"eq","value":"Asha Rao"}]},"mutation":{"assignments":[{"field":"ctc","op":"set","value":60}]}}`

func TestRunHappyPath(t *testing.T) {
	llm := &fakeCompleter{response: updateJSON}
	repo := &fakeRepo{modified: 1, stale: []domrec.Record{testRecord(t, "m1")}}
	auditor := &fakeAuditor{}

	svc := New(llm, &fakeEmbedder{vector: []float32{0.1}}, &fakeGate{}, repo, auditor, testSchemas(), zap.NewNop())
	got, err := svc.Run(context.Background(), "managers", "set Asha Rao's ctc to 60", domain.Caller{ID: "u1", Role: "hr"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got.ModifiedCount != 1 || got.ReEmbeddedCount != 1 {
		t.Errorf("counts = %d/%d, want 1/1", got.ModifiedCount, got.ReEmbeddedCount)
	}
	if got.ResolvedChange != `ctc = 60` {
		t.Errorf("resolved change = %q", got.ResolvedChange)
	}
	if len(repo.vectorIDs) != 1 || repo.vectorIDs[0] != "m1" {
		t.Errorf("re-embedded IDs = %v", repo.vectorIDs)
	}
	if len(auditor.entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(auditor.entries))
	}
	e := auditor.entries[0]
	if e.Action != domaudit.ActionUpdate || e.OutcomeSize != 1 {
		t.Errorf("audit entry = %+v", e)
	}
}

func TestRunAuthorizesBeforeTranslation(t *testing.T) {
	llm := &fakeCompleter{response: updateJSON}
	gate := &fakeGate{err: domain.ErrAccessDenied}
	repo := &fakeRepo{}

	svc := New(llm, &fakeEmbedder{}, gate, repo, &fakeAuditor{}, testSchemas(), zap.NewNop())
	_, err := svc.Run(context.Background(), "managers", "change something", domain.Caller{ID: "u1", Role: "intern"})
	if !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("err = %v, want ErrAccessDenied", err)
	}
	if llm.calls != 0 {
		t.Error("denied caller reached the model")
	}
	if repo.updates != 0 {
		t.Error("denied caller reached the store")
	}
}

func TestRunRejectsEmptyFilter(t *testing.T) {
	// An unfiltered mutation never runs, whatever the assignment says.
	raw := `{"filter":{"conditions":[]},"mutation":{"assignments":[{"field":"ctc","op":"set","value":60}]}}`
	repo := &fakeRepo{}

	svc := New(&fakeCompleter{response: raw}, &fakeEmbedder{}, &fakeGate{}, repo, &fakeAuditor{}, testSchemas(), zap.NewNop())
	_, err := svc.Run(context.Background(), "managers", "raise everyone to 60", domain.Caller{ID: "u1", Role: "hr"})
	if !errors.Is(err, domain.ErrSecurityRejected) {
		t.Fatalf("err = %v, want ErrSecurityRejected", err)
	}
	if repo.updates != 0 {
		t.Error("rejected mutation reached the store")
	}
}

func TestRunRejectsAmbiguityRefusal(t *testing.T) {
	raw := `{"filter":{"conditions":[]},"mutation":{"assignments":[]}}`

	svc := New(&fakeCompleter{response: raw}, &fakeEmbedder{}, &fakeGate{}, &fakeRepo{}, &fakeAuditor{}, testSchemas(), zap.NewNop())
	_, err := svc.Run(context.Background(), "managers", "make it better", domain.Caller{ID: "u1", Role: "hr"})
	if !errors.Is(err, domain.ErrSecurityRejected) {
		t.Fatalf("err = %v, want ErrSecurityRejected", err)
	}
}

func TestRunRejectsNonSetOperator(t *testing.T) {
	raw := `{"filter":{"conditions":[{"field":"name","op":"eq","value":"Asha Rao"}]},"mutation":{"assignments":[{"field":"ctc","op":"$inc","value":10}]}}`

	svc := New(&fakeCompleter{response: raw}, &fakeEmbedder{}, &fakeGate{}, &fakeRepo{}, &fakeAuditor{}, testSchemas(), zap.NewNop())
	_, err := svc.Run(context.Background(), "managers", "bump ctc by 10", domain.Caller{ID: "u1", Role: "hr"})

	var rej *domain.SecurityRejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("err = %v, want *SecurityRejectedError", err)
	}
	if want := `mutation operator "inc" is not the replace-value operator`; rej.Reason != want {
		t.Errorf("reason = %q, want %q", rej.Reason, want)
	}
}

func TestRunResyncFailureLeavesMarkers(t *testing.T) {
	// The second embed call fails: the first record is resynced, the rest
	// keep their stale markers for the backfill sweep.
	repo := &fakeRepo{
		modified: 3,
		stale:    []domrec.Record{testRecord(t, "m1"), testRecord(t, "m2"), testRecord(t, "m3")},
	}
	embedder := &fakeEmbedder{vector: []float32{0.1}, failFrom: 2}
	auditor := &fakeAuditor{}

	svc := New(&fakeCompleter{response: updateJSON}, embedder, &fakeGate{}, repo, auditor, testSchemas(), zap.NewNop())
	got, err := svc.Run(context.Background(), "managers", "set Asha Rao's ctc to 60", domain.Caller{ID: "u1", Role: "hr"})
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}

	if got.ModifiedCount != 3 || got.ReEmbeddedCount != 1 {
		t.Errorf("counts = %d/%d, want 3/1", got.ModifiedCount, got.ReEmbeddedCount)
	}
	if len(repo.vectorIDs) != 1 {
		t.Errorf("re-embedded IDs = %v, want just the first", repo.vectorIDs)
	}
	if len(auditor.entries) != 0 {
		t.Error("failed run produced an audit entry")
	}
}

func TestRunRejectsUnknownAssignmentField(t *testing.T) {
	raw := `{"filter":{"conditions":[{"field":"name","op":"eq","value":"Asha Rao"}]},"mutation":{"assignments":[{"field":"salary","op":"set","value":60}]}}`

	svc := New(&fakeCompleter{response: raw}, &fakeEmbedder{}, &fakeGate{}, &fakeRepo{}, &fakeAuditor{}, testSchemas(), zap.NewNop())
	_, err := svc.Run(context.Background(), "managers", "set salary", domain.Caller{ID: "u1", Role: "hr"})
	if !errors.Is(err, domain.ErrSecurityRejected) {
		t.Fatalf("err = %v, want ErrSecurityRejected", err)
	}
}
