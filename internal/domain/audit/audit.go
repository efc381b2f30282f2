// Package audit defines the append-only audit entry written for every
// pipeline execution. Entries are write-once: the sink appends, nothing
// mutates or deletes.
package audit

import (
	"fmt"
	"time"
)

// Action identifies which pipeline produced an entry.
type Action string

// Audited pipeline actions.
const (
	ActionQuery     Action = "query"
	ActionRetrieval Action = "retrieval"
	ActionUpdate    Action = "update"
)

// Entry is one immutable audit record.
type Entry struct {
	CallerID   string
	Role       string
	Collection string
	Action     Action
	Input      string
	// Resolved is the human-readable resolved filter (and mutation, for
	// updates) the pipeline actually executed.
	Resolved string
	// OutcomeSize is the result count for queries and the modified count
	// for updates.
	OutcomeSize int
	Timestamp   time.Time
}

// New validates and creates an audit entry stamped with the current time.
func New(callerID, role, collection string, action Action, input, resolved string, outcomeSize int) (Entry, error) {
	if callerID == "" {
		return Entry{}, fmt.Errorf("audit entry requires a caller ID")
	}
	if collection == "" {
		return Entry{}, fmt.Errorf("audit entry requires a collection")
	}
	switch action {
	case ActionQuery, ActionRetrieval, ActionUpdate:
	default:
		return Entry{}, fmt.Errorf("unknown audit action %q", action)
	}
	return Entry{
		CallerID:    callerID,
		Role:        role,
		Collection:  collection,
		Action:      action,
		Input:       input,
		Resolved:    resolved,
		OutcomeSize: outcomeSize,
		Timestamp:   time.Now().UTC(),
	}, nil
}
