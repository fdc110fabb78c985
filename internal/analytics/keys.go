package analytics

import (
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/natija-hub/results-engine/internal/domain/record"
)

// Key identifies one memoized aggregation: a dimension, an optional value on
// that dimension, and the filter scope the aggregation ran under.
type Key struct {
	Dimension string
	Value     string
	Scope     record.Filter
}

// String returns the canonical textual form of the key. Field order is
// fixed, so equal keys always produce equal strings.
func (k Key) String() string {
	return strings.Join([]string{
		k.Dimension, k.Value,
		k.Scope.StageID, k.Scope.Region, k.Scope.Administration, k.Scope.School,
	}, "\x1f")
}

// Fingerprint hashes the canonical form to the 64-bit cache key.
func (k Key) Fingerprint() uint64 {
	return xxhash.Sum64String(k.String())
}

// Cache key constructors per aggregation dimension.
func overviewKey() Key {
	return Key{Dimension: "overview"}
}

func stageKey(stageID string) Key {
	return Key{Dimension: "stage", Value: stageID}
}

func regionKey(region, stageID string) Key {
	return Key{Dimension: "region", Value: region, Scope: record.Filter{StageID: stageID}}
}

func statsKey(filter record.Filter) Key {
	return Key{Dimension: "stats", Scope: filter}
}

func schoolsKey(filter record.Filter) Key {
	return Key{Dimension: "schools", Scope: filter}
}
