package record

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Record is a document-store row: categorical tag fields, numeric metrics,
// optional free-text notes, and a derived embedding vector. The vector is a
// cache of Summary() and goes stale whenever a summary-relevant attribute
// changes.
type Record struct {
	id       string
	tags     map[string]string
	numerics map[string]float64
	notes    string
	vector   []float32
	stale    bool
}

// New validates and creates a Record.
func New(id string, tags map[string]string, numerics map[string]float64, notes string) (Record, error) {
	if id == "" {
		return Record{}, fmt.Errorf("record ID is required")
	}
	if len(tags) == 0 && len(numerics) == 0 && notes == "" {
		return Record{}, fmt.Errorf("record %q has no attributes", id)
	}
	return Record{
		id:       id,
		tags:     cloneStringMap(tags),
		numerics: cloneFloat64Map(numerics),
		notes:    notes,
	}, nil
}

// Reconstruct creates a Record without validation (storage hydration).
func Reconstruct(
	id string, tags map[string]string, numerics map[string]float64,
	notes string, vector []float32, stale bool,
) Record {
	return Record{id: id, tags: tags, numerics: numerics, notes: notes, vector: vector, stale: stale}
}

// ID returns the record identifier.
func (r *Record) ID() string { return r.id }

// Tags returns the categorical fields.
func (r *Record) Tags() map[string]string { return r.tags }

// Numerics returns the numeric metric fields.
func (r *Record) Numerics() map[string]float64 { return r.numerics }

// Notes returns the free-text notes.
func (r *Record) Notes() string { return r.notes }

// Vector returns the embedding vector.
func (r *Record) Vector() []float32 { return r.vector }

// Stale reports whether the stored embedding no longer matches the
// record's attributes.
func (r *Record) Stale() bool { return r.stale }

// SetVector overwrites the embedding and clears the stale marker.
func (r *Record) SetVector(v []float32) {
	r.vector = v
	r.stale = false
}

// MarkStale flags the embedding as out of date.
func (r *Record) MarkStale() { r.stale = true }

// Summary renders the record as deterministic prose for embedding.
// Attribute order is sorted so an unchanged record always embeds the
// same text.
func (r *Record) Summary() string {
	parts := make([]string, 0, len(r.tags)+len(r.numerics)+1)

	for _, k := range sortedKeys(r.tags) {
		parts = append(parts, fmt.Sprintf("%s: %s", k, r.tags[k]))
	}
	numKeys := make([]string, 0, len(r.numerics))
	for k := range r.numerics {
		numKeys = append(numKeys, k)
	}
	sort.Strings(numKeys)
	for _, k := range numKeys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strconv.FormatFloat(r.numerics[k], 'f', -1, 64)))
	}
	if r.notes != "" {
		parts = append(parts, "notes: "+r.notes)
	}

	return strings.Join(parts, ". ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func cloneFloat64Map(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	c := make(map[string]float64, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
