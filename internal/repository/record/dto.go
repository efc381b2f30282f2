package record

import (
	"encoding/binary"
	"math"
	"strconv"

	domrec "github.com/kailas-cloud/naviq/internal/domain/record"
)

// Reserved storage field names. Attribute fields use bare names.
const (
	fieldNotes  = "__notes"
	fieldVector = "__vector"
	fieldStale  = "__stale"

	staleTrue  = "1"
	staleFalse = "0"
)

// buildHashFields converts a domain Record into a flat map[string]string for HSET.
func buildHashFields(rec *domrec.Record) map[string]string {
	m := make(map[string]string, 3+len(rec.Tags())+len(rec.Numerics()))
	for k, v := range rec.Tags() {
		m[k] = v
	}
	for k, v := range rec.Numerics() {
		m[k] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	if rec.Notes() != "" {
		m[fieldNotes] = rec.Notes()
	}
	if len(rec.Vector()) > 0 {
		m[fieldVector] = vectorToBytes(rec.Vector())
	}
	// A record without a vector needs the backfill sweep to pick it up.
	if rec.Stale() || len(rec.Vector()) == 0 {
		m[fieldStale] = staleTrue
	} else {
		m[fieldStale] = staleFalse
	}
	return m
}

// parseHashFields converts a flat hash map back into a domain Record.
// The schema decides which fields are numeric; unlisted fields are ignored.
func parseHashFields(schema Schema, id string, m map[string]string) domrec.Record {
	tags := make(map[string]string, len(schema.TagFields))
	numerics := make(map[string]float64, len(schema.NumericFields))

	for _, k := range schema.TagFields {
		if v, ok := m[k]; ok {
			tags[k] = v
		}
	}
	for _, k := range schema.NumericFields {
		if v, ok := m[k]; ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				numerics[k] = f
			}
		}
	}

	var vector []float32
	if v, ok := m[fieldVector]; ok {
		vector = bytesToVector(v)
	}

	return domrec.Reconstruct(id, tags, numerics, m[fieldNotes], vector, m[fieldStale] == staleTrue)
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
