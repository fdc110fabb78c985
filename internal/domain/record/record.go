// Package record contains the student record model of the results portal.
// Records are produced by a bulk-import pipeline outside this engine and are
// strictly read-only here: search, suggestions, and analytics never mutate them.
package record

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/natija-hub/results-engine/internal/domain/shared"
)

// Subject is a single graded subject inside a student record.
type Subject struct {
	// Name is the subject name as imported (usually Arabic).
	Name string `json:"name"`

	// Score is the achieved score.
	Score float64 `json:"score"`

	// MaxScore is the maximum achievable score. Always > 0 for valid subjects.
	MaxScore float64 `json:"max_score"`
}

// Percentage returns the subject result as a percentage of MaxScore,
// rounded to two decimal places. Percentages are always derived, never
// stored, so they cannot drift out of sync with the raw scores.
func (s Subject) Percentage() float64 {
	if s.MaxScore <= 0 {
		return 0
	}
	return Round2(s.Score / s.MaxScore * 100)
}

// IsValid reports whether the subject satisfies 0 <= score <= max_score
// and max_score > 0.
func (s Subject) IsValid() bool {
	return s.MaxScore > 0 && s.Score >= 0 && s.Score <= s.MaxScore
}

// StudentRecord is the central entity of the portal: one student's result
// in one examination administration.
type StudentRecord struct {
	// ID is the internal unique identifier (UUID in string format).
	ID string `json:"id"`

	// StudentID is the seating number. Unique within a stage+region scope.
	StudentID string `json:"student_id"`

	// Name is the student's full name.
	Name string `json:"name"`

	// SchoolName is the school the student sat the exam at (may be empty).
	SchoolName string `json:"school_name,omitempty"`

	// Administration is the educational administration (may be empty).
	Administration string `json:"administration,omitempty"`

	// Region is the governorate/region (may be empty).
	Region string `json:"region,omitempty"`

	// StageID references the educational stage this record belongs to.
	StageID string `json:"educational_stage_id"`

	// ClassName is the class/section label, when imported.
	ClassName string `json:"class_name,omitempty"`

	// Subjects is the ordered list of graded subjects.
	Subjects []Subject `json:"subjects,omitempty"`

	// StoredAverage is the average as it arrived from the import. It is
	// authoritative only when Subjects is empty; otherwise the average is
	// recomputed from Subjects on every read.
	StoredAverage float64 `json:"average"`

	// CreatedAt is when the record was imported.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the record was last re-imported.
	UpdatedAt time.Time `json:"updated_at"`
}

// Average returns the record's average on the 0-100 scale. When subjects
// are present it is the mean of subject percentages, rounded to two
// decimals; otherwise the stored average is authoritative.
func (r *StudentRecord) Average() float64 {
	if len(r.Subjects) == 0 {
		return r.StoredAverage
	}

	var sum float64
	for _, s := range r.Subjects {
		sum += s.Percentage()
	}
	return Round2(sum / float64(len(r.Subjects)))
}

// TotalScore returns the sum of raw subject scores.
func (r *StudentRecord) TotalScore() float64 {
	var total float64
	for _, s := range r.Subjects {
		total += s.Score
	}
	return Round2(total)
}

// Grade returns the grade band derived from the record's average.
// Bands are always re-derived; imported grade strings are never trusted.
func (r *StudentRecord) Grade() Band {
	return BandFor(r.Average())
}

// Validate checks structural invariants of an imported record.
func (r *StudentRecord) Validate() error {
	if strings.TrimSpace(r.StudentID) == "" {
		return shared.ErrEmptyStudentID
	}
	if strings.TrimSpace(r.Name) == "" {
		return shared.ErrEmptyRecordName
	}
	for i, s := range r.Subjects {
		if !s.IsValid() {
			return shared.WrapError("record", "Validate", shared.ErrValueOutOfRange,
				fmt.Sprintf("subject %d (%s) has invalid scores", i, s.Name), nil)
		}
	}
	if len(r.Subjects) == 0 && (r.StoredAverage < 0 || r.StoredAverage > 100) {
		return shared.ErrInvalidAverage
	}
	return nil
}

// Clone creates a deep copy of the record. Index and cache layers hand out
// clones so callers can never mutate shared state.
func (r *StudentRecord) Clone() *StudentRecord {
	if r == nil {
		return nil
	}
	clone := *r
	if r.Subjects != nil {
		clone.Subjects = make([]Subject, len(r.Subjects))
		copy(clone.Subjects, r.Subjects)
	}
	return &clone
}

// String returns a compact representation for logging.
func (r *StudentRecord) String() string {
	return fmt.Sprintf("StudentRecord{StudentID: %s, Name: %s, Stage: %s, Average: %.2f}",
		r.StudentID, r.Name, r.StageID, r.Average())
}

// Round2 rounds to two decimal places. Every percentage and average in the
// engine goes through this single rounding policy so results are
// bit-reproducible across call sites.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
