package record

import (
	"context"
)

// Filter narrows a record fetch to a stage, region, administration, or
// school. Empty fields mean "no constraint".
type Filter struct {
	StageID        string
	Region         string
	Administration string
	School         string
}

// IsEmpty reports whether the filter applies no narrowing at all.
func (f Filter) IsEmpty() bool {
	return f.StageID == "" && f.Region == "" && f.Administration == "" && f.School == ""
}

// Matches reports whether a record falls inside the filter scope.
func (f Filter) Matches(r *StudentRecord) bool {
	if f.StageID != "" && r.StageID != f.StageID {
		return false
	}
	if f.Region != "" && r.Region != f.Region {
		return false
	}
	if f.Administration != "" && r.Administration != f.Administration {
		return false
	}
	if f.School != "" && r.SchoolName != f.School {
		return false
	}
	return true
}

// Store is the read-only contract the engine has with the canonical record
// store. The engine treats it as an opaque queryable source; the only write
// path (bulk import) lives outside this codebase.
type Store interface {
	// FetchAll returns the full current snapshot of records.
	FetchAll(ctx context.Context) ([]*StudentRecord, error)

	// FetchByFilter returns records matching the filter scope.
	FetchByFilter(ctx context.Context, filter Filter) ([]*StudentRecord, error)

	// FetchByID returns the record with the given seating number, or
	// shared.ErrRecordNotFound when no such record exists.
	FetchByID(ctx context.Context, studentID string) (*StudentRecord, error)

	// Count returns the number of records in the current snapshot.
	Count(ctx context.Context) (int, error)
}
