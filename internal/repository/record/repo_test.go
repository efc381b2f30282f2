package record

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/naviq/internal/db"
	"github.com/kailas-cloud/naviq/internal/domain"
	"github.com/kailas-cloud/naviq/internal/domain/query"
	domrec "github.com/kailas-cloud/naviq/internal/domain/record"
)

func TestEnsureIndexCreatesOnce(t *testing.T) {
	repo, ms := newTestRepo(t)

	var created *db.IndexDefinition
	ms.createIndexFn = func(_ context.Context, def *db.IndexDefinition) error {
		created = def
		return nil
	}

	if err := repo.EnsureIndex(context.Background(), "managers"); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	if created == nil {
		t.Fatal("index was not created")
	}
	if created.Name != "naviq:idx:managers" {
		t.Errorf("index name = %q", created.Name)
	}
	if len(created.Prefixes) != 1 || created.Prefixes[0] != "naviq:rec:managers:" {
		t.Errorf("prefixes = %v", created.Prefixes)
	}

	// Tags, numerics, notes, stale marker, vector.
	if len(created.Fields) != 6 {
		t.Errorf("fields = %d, want 6", len(created.Fields))
	}

	ms.indexExistsFn = func(context.Context, string) (bool, error) { return true, nil }
	created = nil
	if err := repo.EnsureIndex(context.Background(), "managers"); err != nil {
		t.Fatalf("EnsureIndex (existing): %v", err)
	}
	if created != nil {
		t.Error("existing index recreated")
	}
}

func TestFindExcludesVectorFromProjection(t *testing.T) {
	repo, ms := newTestRepo(t)

	var gotQuery *db.FilterQuery
	ms.searchFilterFn = func(_ context.Context, q *db.FilterQuery) (*db.SearchResult, error) {
		gotQuery = q
		return &db.SearchResult{
			Total: 1,
			Entries: []db.SearchEntry{{
				Key:    "naviq:rec:managers:m1",
				Fields: map[string]string{"name": "Asha Rao", "ctc": "52.5", "__stale": "0"},
			}},
		}, nil
	}

	records, err := repo.Find(context.Background(), "managers", query.Filter{})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}

	for _, f := range gotQuery.ReturnFields {
		if f == "__vector" {
			t.Error("projection includes the vector field")
		}
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.ID() != "m1" {
		t.Errorf("id = %q, want key prefix stripped", rec.ID())
	}
	if rec.Numerics()["ctc"] != 52.5 {
		t.Errorf("ctc = %v", rec.Numerics()["ctc"])
	}
}

func TestFindUnknownCollection(t *testing.T) {
	repo, _ := newTestRepo(t)
	_, err := repo.Find(context.Background(), "payroll", query.Filter{})
	if !errors.Is(err, domain.ErrUnknownCollection) {
		t.Errorf("err = %v, want ErrUnknownCollection", err)
	}
}

func TestUpdateMarksMutatedRecordsStale(t *testing.T) {
	repo, ms := newTestRepo(t)

	ms.searchFilterFn = func(_ context.Context, q *db.FilterQuery) (*db.SearchResult, error) {
		return &db.SearchResult{
			Total: 2,
			Entries: []db.SearchEntry{
				{Key: "naviq:rec:managers:m1"},
				{Key: "naviq:rec:managers:m2"},
			},
		}, nil
	}

	writes := map[string]map[string]string{}
	ms.hsetFn = func(_ context.Context, key string, fields map[string]string) error {
		writes[key] = fields
		return nil
	}

	a, err := query.NewSetNumber("ctc", 60)
	if err != nil {
		t.Fatalf("assignment: %v", err)
	}
	m, err := query.NewMutation([]query.Assignment{a})
	if err != nil {
		t.Fatalf("mutation: %v", err)
	}

	modified, err := repo.Update(context.Background(), "managers", query.Filter{}, m)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if modified != 2 {
		t.Errorf("modified = %d, want 2", modified)
	}

	for key, fields := range writes {
		if fields["ctc"] != "60" {
			t.Errorf("%s: ctc = %q", key, fields["ctc"])
		}
		// The stale marker rides in the same write as the mutation.
		if fields["__stale"] != "1" {
			t.Errorf("%s: stale marker = %q, want 1", key, fields["__stale"])
		}
	}
}

func TestFindStaleSetsStaleOnly(t *testing.T) {
	repo, ms := newTestRepo(t)

	var gotQuery *db.FilterQuery
	ms.searchFilterFn = func(_ context.Context, q *db.FilterQuery) (*db.SearchResult, error) {
		gotQuery = q
		return &db.SearchResult{}, nil
	}

	if _, err := repo.FindStale(context.Background(), "managers", query.Filter{}, 10); err != nil {
		t.Fatalf("FindStale: %v", err)
	}
	if !gotQuery.StaleOnly {
		t.Error("query did not restrict to stale records")
	}
	if gotQuery.Limit != 10 {
		t.Errorf("limit = %d, want 10", gotQuery.Limit)
	}
}

func TestSetVectorClearsMarker(t *testing.T) {
	repo, ms := newTestRepo(t)

	ms.existsFn = func(context.Context, string) (bool, error) { return true, nil }

	var gotFields map[string]string
	ms.hsetFn = func(_ context.Context, key string, fields map[string]string) error {
		gotFields = fields
		return nil
	}

	err := repo.SetVector(context.Background(), "managers", "m1", []float32{0.1, 0.2, 0.3, 0.4})
	if err != nil {
		t.Fatalf("SetVector: %v", err)
	}
	if gotFields["__stale"] != "0" {
		t.Errorf("stale marker = %q, want cleared", gotFields["__stale"])
	}
	if len(gotFields["__vector"]) != testVectorDim*4 {
		t.Errorf("vector bytes = %d, want %d", len(gotFields["__vector"]), testVectorDim*4)
	}
}

func TestSetVectorMissingRecord(t *testing.T) {
	repo, _ := newTestRepo(t)
	err := repo.SetVector(context.Background(), "managers", "ghost", []float32{0.1})
	if !errors.Is(err, domain.ErrRecordNotFound) {
		t.Errorf("err = %v, want ErrRecordNotFound", err)
	}
}

func TestUpsertWritesUnderCollectionKey(t *testing.T) {
	repo, ms := newTestRepo(t)

	var gotKey string
	var gotFields map[string]string
	ms.hsetFn = func(_ context.Context, key string, fields map[string]string) error {
		gotKey = key
		gotFields = fields
		return nil
	}

	rec, err := domrec.New("m1", map[string]string{"name": "Asha Rao"}, map[string]float64{"ctc": 52.5}, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := repo.Upsert(context.Background(), "managers", &rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if gotKey != "naviq:rec:managers:m1" {
		t.Errorf("key = %q", gotKey)
	}
	if gotFields["name"] != "Asha Rao" || gotFields["ctc"] != "52.5" {
		t.Errorf("fields = %v", gotFields)
	}
	// Written without a vector, so the backfill sweep must see it.
	if gotFields["__stale"] != "1" {
		t.Errorf("stale marker = %q, want 1", gotFields["__stale"])
	}
}

func TestBuildHashFieldsVectorlessIsStale(t *testing.T) {
	rec, err := domrec.New("m1", map[string]string{"name": "X"}, nil, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	fields := buildHashFields(&rec)
	if fields["__stale"] != "1" {
		t.Errorf("vectorless record stale = %q, want 1", fields["__stale"])
	}

	rec.SetVector([]float32{0.1})
	fields = buildHashFields(&rec)
	if fields["__stale"] != "0" {
		t.Errorf("embedded record stale = %q, want 0", fields["__stale"])
	}
}

func TestVectorRoundTrip(t *testing.T) {
	v := []float32{0.5, -1.25, 3}
	got := bytesToVector(vectorToBytes(v))
	if len(got) != len(v) {
		t.Fatalf("len = %d, want %d", len(got), len(v))
	}
	for i := range v {
		if got[i] != v[i] {
			t.Errorf("element %d = %v, want %v", i, got[i], v[i])
		}
	}
}
