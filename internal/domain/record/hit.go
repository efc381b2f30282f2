package record

// Hit is a similarity-search result: a record plus its similarity score
// in [0, 1], higher meaning closer.
type Hit struct {
	Record Record
	Score  float64
}
