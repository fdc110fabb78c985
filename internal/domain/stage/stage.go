// Package stage contains the educational stage reference data. Stages are
// static: loaded once at startup, read-only to the engine, and only change
// through an administrative import outside this codebase.
package stage

import (
	"context"
	"strings"

	"github.com/natija-hub/results-engine/internal/domain/shared"
)

// Stage is an educational level (e.g., preparatory, general secondary)
// with its own set of regions and students.
type Stage struct {
	// ID is the stage identifier (UUID in string format).
	ID string `json:"id"`

	// Name is the Arabic display name.
	Name string `json:"name"`

	// NameEN is the English display name.
	NameEN string `json:"name_en"`

	// Description is a short Arabic description shown on the stage page.
	Description string `json:"description"`

	// Icon is the emoji/icon shown next to the stage.
	Icon string `json:"icon"`

	// Color is the accent color in hex.
	Color string `json:"color"`

	// Regions is the set of region names this stage publishes results for.
	Regions []string `json:"regions"`

	// DisplayOrder controls listing order on the portal.
	DisplayOrder int `json:"display_order"`

	// IsActive marks stages currently accepting queries.
	IsActive bool `json:"is_active"`
}

// HasRegion reports whether the stage publishes results for the region.
func (s *Stage) HasRegion(name string) bool {
	for _, r := range s.Regions {
		if r == name {
			return true
		}
	}
	return false
}

// Validate checks structural invariants of a stage.
func (s *Stage) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return shared.ErrInvalidStage
	}
	if strings.TrimSpace(s.Name) == "" {
		return shared.WrapError("stage", "Validate", shared.ErrEmptyValue, "stage name is required", nil)
	}
	return nil
}

// Clone creates a deep copy of the stage.
func (s *Stage) Clone() *Stage {
	if s == nil {
		return nil
	}
	clone := *s
	if s.Regions != nil {
		clone.Regions = make([]string, len(s.Regions))
		copy(clone.Regions, s.Regions)
	}
	return &clone
}

// Store is the read contract for stage reference data.
type Store interface {
	// FetchAll returns all active stages ordered by DisplayOrder.
	FetchAll(ctx context.Context) ([]*Stage, error)

	// FetchByID returns the stage with the given id, or
	// shared.ErrStageNotFound when no such stage exists.
	FetchByID(ctx context.Context, id string) (*Stage, error)
}
