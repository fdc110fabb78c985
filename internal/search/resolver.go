package search

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/natija-hub/results-engine/internal/domain/record"
	"github.com/natija-hub/results-engine/pkg/logger"
)

// DefaultResultCap bounds how many records a single search returns.
const DefaultResultCap = 100

// Query is one search request against the resolver.
type Query struct {
	// Text is the raw query text. Empty text means "browse the scope".
	Text string

	// Filter narrows the search to a stage, region, or administration.
	Filter record.Filter

	// Fields selects which record fields to match. Zero value means both.
	Fields Fields

	// Limit caps the result count. Zero means DefaultResultCap.
	Limit int
}

// Result is the outcome of one search.
type Result struct {
	// Records is the ranked, capped result page. Entries are clones.
	Records []*record.StudentRecord `json:"results"`

	// Total is the number of matches before the cap was applied.
	Total int `json:"total"`

	// Capped reports whether Total exceeded the cap.
	Capped bool `json:"capped"`

	// Version is the data version the result was computed against.
	Version int64 `json:"version"`
}

// Resolver ranks and pages index candidates. It owns the ordering policy:
//
//	exact seating number > exact name > name prefix > substring,
//	ties broken by ascending seating number.
//
// The ordering has no randomness, so identical queries against the same data
// version return identical pages.
type Resolver struct {
	index *Index
	cap   int
	log   *logger.Logger
}

// NewResolver creates a resolver over the given index. resultCap <= 0 falls
// back to DefaultResultCap.
func NewResolver(index *Index, resultCap int, log *logger.Logger) *Resolver {
	if resultCap <= 0 {
		resultCap = DefaultResultCap
	}
	if log == nil {
		log = logger.Default()
	}
	return &Resolver{
		index: index,
		cap:   resultCap,
		log:   log.With(logger.Component("search.resolver")),
	}
}

// Search executes a query. Empty text lists the whole filter scope in
// seating-number order; non-empty text shorter than MinQueryLength runes
// returns an empty result rather than an error, matching the suggestion
// endpoint's behavior for keystroke-by-keystroke input.
func (rs *Resolver) Search(ctx context.Context, q Query) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	limit := q.Limit
	if limit <= 0 || limit > rs.cap {
		limit = rs.cap
	}

	text := strings.TrimSpace(q.Text)
	var (
		matches []*record.StudentRecord
		version int64
	)
	switch {
	case text == "":
		matches = rs.index.Browse(q.Filter)
		version = rs.index.Version()
	case len([]rune(Normalize(text))) < MinQueryLength:
		version = rs.index.Version()
	default:
		candidates := rs.index.Lookup(text, q.Filter, q.Fields)
		version = rs.index.Version()
		matches = rank(candidates)
	}

	total := len(matches)
	capped := total > limit
	if capped {
		matches = matches[:limit]
	}

	out := make([]*record.StudentRecord, len(matches))
	for i, r := range matches {
		out[i] = r.Clone()
	}

	rs.log.Debug("search resolved",
		logger.QueryText(text),
		logger.ResultCount(total),
		logger.DataVersion(version),
		logger.Latency(time.Since(start)),
	)

	return &Result{Records: out, Total: total, Capped: capped, Version: version}, nil
}

// rank deduplicates candidates and orders them by match kind, then by
// ascending seating number. When one record surfaces through more than one
// path the better kind wins.
func rank(candidates []Candidate) []*record.StudentRecord {
	if len(candidates) == 0 {
		return nil
	}

	best := make(map[*record.StudentRecord]MatchKind, len(candidates))
	for _, c := range candidates {
		if kind, ok := best[c.Record]; !ok || c.Kind < kind {
			best[c.Record] = c.Kind
		}
	}

	deduped := make([]Candidate, 0, len(best))
	for r, kind := range best {
		deduped = append(deduped, Candidate{Record: r, Kind: kind})
	}
	sort.Slice(deduped, func(a, b int) bool {
		if deduped[a].Kind != deduped[b].Kind {
			return deduped[a].Kind < deduped[b].Kind
		}
		if deduped[a].Record.StudentID != deduped[b].Record.StudentID {
			return deduped[a].Record.StudentID < deduped[b].Record.StudentID
		}
		return deduped[a].Record.ID < deduped[b].Record.ID
	})

	out := make([]*record.StudentRecord, len(deduped))
	for i, c := range deduped {
		out[i] = c.Record
	}
	return out
}
