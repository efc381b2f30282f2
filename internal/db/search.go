package db

import "github.com/kailas-cloud/naviq/internal/domain/query"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	K            int
	Limit        int
	ReturnFields []string
}

// FilterQuery is the input for a filtered read.
type FilterQuery struct {
	IndexName string
	Filter    query.Filter
	// StaleOnly restricts the read to records whose embedding marker is set.
	StaleOnly    bool
	Offset       int
	Limit        int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single record hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
