// Package suggest produces typeahead suggestions for the portal search box.
// Suggestions are derived from the same in-memory index the resolver uses
// and are cached per (query, scope) pair for a short TTL, since typeahead
// traffic repeats the same prefixes across many users.
package suggest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/natija-hub/results-engine/internal/domain/record"
	"github.com/natija-hub/results-engine/internal/search"
	"github.com/natija-hub/results-engine/pkg/logger"
)

// Type discriminates what a suggestion refers to.
type Type string

const (
	// TypeName suggests a student full name.
	TypeName Type = "name"

	// TypeStudentID suggests a seating number.
	TypeStudentID Type = "student_id"

	// TypeSchool suggests a school name.
	TypeSchool Type = "school"
)

// Per-type and total caps on one suggestion response.
const (
	NameLimit   = 5
	IDLimit     = 3
	SchoolLimit = 3
	TotalLimit  = 10
)

// DefaultTTL is how long a cached suggestion set stays fresh.
const DefaultTTL = 2 * time.Minute

// maxCacheEntries bounds the local cache. Past the bound, expired entries
// are evicted first, then arbitrary ones.
const maxCacheEntries = 4096

// Suggestion is one typeahead entry.
type Suggestion struct {
	// Text is the suggested completion.
	Text string `json:"text"`

	// Type says what Text refers to.
	Type Type `json:"type"`

	// Subtitle is secondary display text: the school for a name suggestion,
	// the student name for a seating-number suggestion.
	Subtitle string `json:"subtitle,omitempty"`

	// StageID scopes the suggestion when the query was stage-filtered.
	StageID string `json:"stage_id,omitempty"`
}

// RemoteCache is an optional second cache tier shared across instances.
// The redis-backed implementation lives in the infrastructure layer; a nil
// RemoteCache disables the tier.
type RemoteCache interface {
	Get(ctx context.Context, key string) ([]Suggestion, bool)
	Set(ctx context.Context, key string, suggestions []Suggestion, ttl time.Duration)
	Clear(ctx context.Context) error
}

type cacheEntry struct {
	suggestions []Suggestion
	version     int64
	expiresAt   time.Time
}

// Engine computes and caches suggestions.
type Engine struct {
	index  *search.Index
	remote RemoteCache
	ttl    time.Duration
	log    *logger.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewEngine creates a suggestion engine over the index. remote may be nil.
// ttl <= 0 falls back to DefaultTTL.
func NewEngine(index *search.Index, remote RemoteCache, ttl time.Duration, log *logger.Logger) *Engine {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logger.Default()
	}
	return &Engine{
		index:  index,
		remote: remote,
		ttl:    ttl,
		log:    log.With(logger.Component("suggest.engine")),
		cache:  make(map[string]cacheEntry),
	}
}

// Suggest returns up to TotalLimit suggestions for the query text within the
// filter scope. Queries shorter than two runes yield an empty slice.
func (e *Engine) Suggest(ctx context.Context, text string, filter record.Filter) ([]Suggestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	norm := search.Normalize(text)
	if len([]rune(norm)) < search.MinQueryLength {
		return []Suggestion{}, nil
	}

	key := cacheKey(norm, filter)
	version := e.index.Version()

	if cached, ok := e.localGet(key, version); ok {
		e.log.Debug("suggestion cache hit", logger.QueryText(norm), logger.CacheHit(true))
		return cloneSuggestions(cached), nil
	}
	if e.remote != nil {
		if cached, ok := e.remote.Get(ctx, key); ok {
			e.localSet(key, cached, version)
			return cloneSuggestions(cached), nil
		}
	}

	suggestions := e.compute(norm, filter)
	e.localSet(key, suggestions, version)
	if e.remote != nil {
		e.remote.Set(ctx, key, suggestions, e.ttl)
	}

	e.log.Debug("suggestions computed",
		logger.QueryText(norm),
		logger.ResultCount(len(suggestions)),
		logger.CacheHit(false),
	)
	return cloneSuggestions(suggestions), nil
}

// compute assembles the suggestion list: names first, then seating numbers,
// then schools, each group internally ordered and capped.
func (e *Engine) compute(norm string, filter record.Filter) []Suggestion {
	var out []Suggestion

	if search.IsNumeric(norm) {
		out = append(out, e.idSuggestions(norm, filter)...)
	} else {
		out = append(out, e.nameSuggestions(norm, filter)...)
		out = append(out, e.schoolSuggestions(norm, filter)...)
	}

	if len(out) > TotalLimit {
		out = out[:TotalLimit]
	}
	return out
}

// nameSuggestions returns up to NameLimit distinct names, exact matches
// first, then prefix, then substring, alphabetically within each group.
func (e *Engine) nameSuggestions(norm string, filter record.Filter) []Suggestion {
	candidates := e.index.Lookup(norm, filter, search.Fields{Name: true})

	type nameHit struct {
		rec  *record.StudentRecord
		kind search.MatchKind
		norm string
	}
	seen := make(map[string]nameHit)
	for _, c := range candidates {
		n := search.Normalize(c.Record.Name)
		if prev, ok := seen[n]; !ok || c.Kind < prev.kind {
			seen[n] = nameHit{rec: c.Record, kind: c.Kind, norm: n}
		}
	}

	hits := make([]nameHit, 0, len(seen))
	for _, h := range seen {
		hits = append(hits, h)
	}
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].kind != hits[b].kind {
			return hits[a].kind < hits[b].kind
		}
		return hits[a].norm < hits[b].norm
	})
	if len(hits) > NameLimit {
		hits = hits[:NameLimit]
	}

	out := make([]Suggestion, len(hits))
	for i, h := range hits {
		subtitle := h.rec.SchoolName
		if subtitle == "" {
			subtitle = h.rec.StudentID
		}
		out[i] = Suggestion{
			Text:     h.rec.Name,
			Type:     TypeName,
			Subtitle: subtitle,
			StageID:  filter.StageID,
		}
	}
	return out
}

// idSuggestions returns up to IDLimit seating numbers with the query as
// prefix, ascending.
func (e *Engine) idSuggestions(norm string, filter record.Filter) []Suggestion {
	candidates := e.index.Lookup(norm, filter, search.Fields{StudentID: true})

	sort.Slice(candidates, func(a, b int) bool {
		return candidates[a].Record.StudentID < candidates[b].Record.StudentID
	})

	out := make([]Suggestion, 0, IDLimit)
	seen := make(map[string]struct{})
	for _, c := range candidates {
		if _, ok := seen[c.Record.StudentID]; ok {
			continue
		}
		seen[c.Record.StudentID] = struct{}{}
		out = append(out, Suggestion{
			Text:     c.Record.StudentID,
			Type:     TypeStudentID,
			Subtitle: c.Record.Name,
			StageID:  filter.StageID,
		})
		if len(out) == IDLimit {
			break
		}
	}
	return out
}

// schoolSuggestions returns up to SchoolLimit distinct school names.
func (e *Engine) schoolSuggestions(norm string, filter record.Filter) []Suggestion {
	schools := e.index.SchoolsMatching(norm, filter, SchoolLimit)
	out := make([]Suggestion, len(schools))
	for i, s := range schools {
		out[i] = Suggestion{Text: s, Type: TypeSchool, StageID: filter.StageID}
	}
	return out
}

// ClearCache drops all cached suggestion sets. Called on data refresh.
func (e *Engine) ClearCache(ctx context.Context) {
	e.mu.Lock()
	e.cache = make(map[string]cacheEntry)
	e.mu.Unlock()

	if e.remote != nil {
		if err := e.remote.Clear(ctx); err != nil {
			e.log.Warn("remote suggestion cache clear failed", logger.Err(err))
		}
	}
}

func (e *Engine) localGet(key string, version int64) ([]Suggestion, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.cache[key]
	if !ok {
		return nil, false
	}
	if entry.version != version || time.Now().After(entry.expiresAt) {
		delete(e.cache, key)
		return nil, false
	}
	return entry.suggestions, true
}

func (e *Engine) localSet(key string, suggestions []Suggestion, version int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.cache) >= maxCacheEntries {
		now := time.Now()
		for k, v := range e.cache {
			if now.After(v.expiresAt) || v.version != version {
				delete(e.cache, k)
			}
		}
		for k := range e.cache {
			if len(e.cache) < maxCacheEntries {
				break
			}
			delete(e.cache, k)
		}
	}

	e.cache[key] = cacheEntry{
		suggestions: suggestions,
		version:     version,
		expiresAt:   time.Now().Add(e.ttl),
	}
}

func cacheKey(norm string, filter record.Filter) string {
	return strings.Join([]string{norm, filter.StageID, filter.Region, filter.Administration, filter.School}, "|")
}

func cloneSuggestions(in []Suggestion) []Suggestion {
	out := make([]Suggestion, len(in))
	copy(out, in)
	return out
}
