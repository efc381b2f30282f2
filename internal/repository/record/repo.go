package record

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/naviq/internal/db"
	"github.com/kailas-cloud/naviq/internal/domain"
	"github.com/kailas-cloud/naviq/internal/domain/query"
	domrec "github.com/kailas-cloud/naviq/internal/domain/record"
)

// store is the consumer interface for record persistence (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchFilter(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Schema lists a collection's attribute fields by storage type.
type Schema struct {
	TagFields     []string
	NumericFields []string
}

// HNSWConfig holds vector index tuning parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// MaxFindLimit bounds how many records a filtered read returns.
const MaxFindLimit = 1000

// Repo implements record persistence over the hash store and FT index.
type Repo struct {
	store     store
	prefix    string
	schemas   map[string]Schema
	vectorDim int
	hnsw      HNSWConfig
}

// New creates a record repository.
func New(s store, prefix string, schemas map[string]Schema, vectorDim int) *Repo {
	return &Repo{
		store:     s,
		prefix:    prefix,
		schemas:   schemas,
		vectorDim: vectorDim,
		hnsw:      HNSWConfig{M: 16, EFConstruct: 200},
	}
}

// WithHNSW overrides vector index tuning parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// EnsureIndex creates the collection's FT index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context, collection string) error {
	schema, err := r.schema(collection)
	if err != nil {
		return err
	}

	idxName := r.indexName(collection)
	exists, err := r.store.IndexExists(ctx, idxName)
	if err != nil {
		return fmt.Errorf("probe index %s: %w", idxName, err)
	}
	if exists {
		return nil
	}

	builder := db.NewIndex(idxName).Prefix(r.recordPrefix(collection))
	for _, t := range schema.TagFields {
		builder.Tag(t)
	}
	for _, n := range schema.NumericFields {
		builder.Numeric(n)
	}
	builder.Text(fieldNotes)
	builder.Tag(fieldStale)
	builder.VectorHNSW(fieldVector, r.vectorDim, db.DistanceCosine, r.hnsw.M, r.hnsw.EFConstruct)

	if err := r.store.CreateIndex(ctx, builder.Build()); err != nil {
		return fmt.Errorf("create index %s: %w", idxName, err)
	}
	return nil
}

// Find runs a filtered read. The embedding vector is excluded from the
// projection: query results never carry vectors back to callers.
func (r *Repo) Find(ctx context.Context, collection string, f query.Filter) ([]domrec.Record, error) {
	schema, err := r.schema(collection)
	if err != nil {
		return nil, err
	}

	result, err := r.store.SearchFilter(ctx, &db.FilterQuery{
		IndexName:    r.indexName(collection),
		Filter:       f,
		Limit:        MaxFindLimit,
		ReturnFields: projection(schema),
	})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}

	records := make([]domrec.Record, 0, len(result.Entries))
	for _, e := range result.Entries {
		records = append(records, parseHashFields(schema, r.recordID(collection, e.Key), e.Fields))
	}
	return records, nil
}

// SearchKNN runs a similarity search: pool bounds the candidate set, limit
// the returned page. Vectors are excluded from the projection.
func (r *Repo) SearchKNN(
	ctx context.Context, collection string, vector []float32, pool, limit int,
) ([]domrec.Hit, error) {
	schema, err := r.schema(collection)
	if err != nil {
		return nil, err
	}

	result, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName(collection),
		Vector:       vector,
		K:            pool,
		Limit:        limit,
		ReturnFields: projection(schema),
	})
	if err != nil {
		return nil, fmt.Errorf("knn %s: %w", collection, err)
	}

	hits := make([]domrec.Hit, 0, len(result.Entries))
	for _, e := range result.Entries {
		hits = append(hits, domrec.Hit{
			Record: parseHashFields(schema, r.recordID(collection, e.Key), e.Fields),
			Score:  e.Score,
		})
	}
	return hits, nil
}

// Update applies the mutation to every record matching the filter and marks
// each mutated record embedding-stale in the same write. Returns the number
// of modified records.
func (r *Repo) Update(
	ctx context.Context, collection string, f query.Filter, m query.Mutation,
) (int, error) {
	if _, err := r.schema(collection); err != nil {
		return 0, err
	}

	result, err := r.store.SearchFilter(ctx, &db.FilterQuery{
		IndexName:    r.indexName(collection),
		Filter:       f,
		Limit:        MaxFindLimit,
		ReturnFields: []string{fieldStale},
	})
	if err != nil {
		return 0, fmt.Errorf("match %s: %w", collection, err)
	}

	fields := make(map[string]string, len(m.Assignments())+1)
	for _, a := range m.Assignments() {
		fields[a.Field()] = a.Value()
	}
	fields[fieldStale] = staleTrue

	modified := 0
	for _, e := range result.Entries {
		if err := r.store.HSet(ctx, e.Key, fields); err != nil {
			return modified, fmt.Errorf("update %s: %w", e.Key, err)
		}
		modified++
	}
	return modified, nil
}

// FindStale returns records matching the filter whose embedding is marked
// stale. An empty filter sweeps the whole collection (backfill).
func (r *Repo) FindStale(
	ctx context.Context, collection string, f query.Filter, limit int,
) ([]domrec.Record, error) {
	schema, err := r.schema(collection)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > MaxFindLimit {
		limit = MaxFindLimit
	}

	result, err := r.store.SearchFilter(ctx, &db.FilterQuery{
		IndexName:    r.indexName(collection),
		Filter:       f,
		StaleOnly:    true,
		Limit:        limit,
		ReturnFields: projection(schema),
	})
	if err != nil {
		return nil, fmt.Errorf("find stale %s: %w", collection, err)
	}

	records := make([]domrec.Record, 0, len(result.Entries))
	for _, e := range result.Entries {
		records = append(records, parseHashFields(schema, r.recordID(collection, e.Key), e.Fields))
	}
	return records, nil
}

// SetVector overwrites a record's embedding and clears the stale marker.
func (r *Repo) SetVector(ctx context.Context, collection, id string, vector []float32) error {
	key := r.recordKey(collection, id)

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if !exists {
		return fmt.Errorf("%s: %w", key, domain.ErrRecordNotFound)
	}

	err = r.store.HSet(ctx, key, map[string]string{
		fieldVector: vectorToBytes(vector),
		fieldStale:  staleFalse,
	})
	if err != nil {
		return fmt.Errorf("set vector %s: %w", key, err)
	}
	return nil
}

// Upsert writes a full record (backfill and seeding path).
func (r *Repo) Upsert(ctx context.Context, collection string, rec *domrec.Record) error {
	if _, err := r.schema(collection); err != nil {
		return err
	}

	key := r.recordKey(collection, rec.ID())
	if err := r.store.HSet(ctx, key, buildHashFields(rec)); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (r *Repo) schema(collection string) (Schema, error) {
	s, ok := r.schemas[collection]
	if !ok {
		return Schema{}, fmt.Errorf("%q: %w", collection, domain.ErrUnknownCollection)
	}
	return s, nil
}

func (r *Repo) indexName(collection string) string {
	return r.prefix + "idx:" + collection
}

func (r *Repo) recordPrefix(collection string) string {
	return r.prefix + "rec:" + collection + ":"
}

func (r *Repo) recordKey(collection, id string) string {
	return r.recordPrefix(collection) + id
}

func (r *Repo) recordID(collection, key string) string {
	return strings.TrimPrefix(key, r.recordPrefix(collection))
}

// projection lists every stored field except the embedding vector.
func projection(s Schema) []string {
	fields := make([]string, 0, len(s.TagFields)+len(s.NumericFields)+2)
	fields = append(fields, s.TagFields...)
	fields = append(fields, s.NumericFields...)
	fields = append(fields, fieldNotes, fieldStale)
	return fields
}
