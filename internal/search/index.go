package search

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/natija-hub/results-engine/internal/domain/record"
)

// MatchKind classifies how a candidate matched the query. Lower values rank
// higher in the resolver's ordering.
type MatchKind int

const (
	// MatchExactID means the query equals the record's seating number.
	MatchExactID MatchKind = iota

	// MatchExactName means the normalized query equals the normalized full name.
	MatchExactName

	// MatchNamePrefix means the normalized full name starts with the query.
	MatchNamePrefix

	// MatchSubstring means every query token is a substring of some name token,
	// or the seating number starts with the query.
	MatchSubstring
)

// MinQueryLength is the minimum query length (in runes) for a non-browse
// lookup. Shorter non-empty queries yield an empty candidate set.
const MinQueryLength = 2

// Candidate is one index hit: a record plus how it matched.
type Candidate struct {
	Record *record.StudentRecord
	Kind   MatchKind
}

// Index is the in-memory search index over the record snapshot. It is built
// atomically on every data refresh and replaced wholesale; reads take a
// shared lock and never observe a partially built index.
//
// ═══════════════════════════════════════════════════════════════════════════
// Internal layout
// ═══════════════════════════════════════════════════════════════════════════
//
//   records   the snapshot, in import order
//   names     normalized full name per record (parallel to records)
//   tokens    inverted index: normalized name token -> record positions
//   idOrder   record positions sorted by seating number, for prefix scans
//   version   monotonic counter, bumped once per rebuild
type Index struct {
	mu sync.RWMutex

	records []*record.StudentRecord
	names   []string
	tokens  map[string][]int
	idOrder []int
	version int64
	builtAt time.Time
}

// NewIndex returns an empty index. It serves no candidates until Build is
// called with the first snapshot.
func NewIndex() *Index {
	return &Index{tokens: make(map[string][]int)}
}

// Build replaces the index contents with a fresh snapshot. The new structures
// are assembled off-lock and swapped in at the end, so concurrent lookups are
// only blocked for the pointer swap.
func (ix *Index) Build(records []*record.StudentRecord) {
	names := make([]string, len(records))
	tokens := make(map[string][]int)
	idOrder := make([]int, len(records))

	for i, r := range records {
		idOrder[i] = i
		names[i] = Normalize(r.Name)
		for _, tok := range Tokenize(names[i]) {
			postings := tokens[tok]
			if n := len(postings); n > 0 && postings[n-1] == i {
				continue // duplicate token within one name
			}
			tokens[tok] = append(postings, i)
		}
	}

	sort.SliceStable(idOrder, func(a, b int) bool {
		return records[idOrder[a]].StudentID < records[idOrder[b]].StudentID
	})

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.records = records
	ix.names = names
	ix.tokens = tokens
	ix.idOrder = idOrder
	ix.version++
	ix.builtAt = time.Now().UTC()
}

// Version returns the current data version. It increments once per Build, so
// cached results tagged with an older version are known stale.
func (ix *Index) Version() int64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.version
}

// Count returns the number of indexed records.
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.records)
}

// BuiltAt returns when the current snapshot was indexed.
func (ix *Index) BuiltAt() time.Time {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.builtAt
}

// Snapshot returns the indexed records and the version they belong to.
// The slice is shared and must be treated as read-only; aggregation reads
// it without copying and clones only what it hands out.
func (ix *Index) Snapshot() ([]*record.StudentRecord, int64) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.records, ix.version
}

// Fields selects which record fields a lookup matches against.
// The zero value means "both".
type Fields struct {
	Name      bool
	StudentID bool
}

// normalized returns the effective field set: an empty set means both.
func (f Fields) normalized() Fields {
	if !f.Name && !f.StudentID {
		return Fields{Name: true, StudentID: true}
	}
	return f
}

// Lookup returns candidates matching the query text within the filter scope.
// Queries shorter than MinQueryLength runes yield an empty set. Numeric
// queries route to the seating-number prefix path; all others route to the
// name-token path. Candidates carry the best match kind for the record and
// appear at most once.
func (ix *Index) Lookup(queryText string, filter record.Filter, fields Fields) []Candidate {
	norm := Normalize(queryText)
	if len([]rune(norm)) < MinQueryLength {
		return nil
	}
	fields = fields.normalized()

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if IsNumeric(norm) {
		if !fields.StudentID {
			return nil
		}
		return ix.lookupByID(NormalizeDigits(norm), filter)
	}
	if !fields.Name {
		return nil
	}
	return ix.lookupByName(norm, filter)
}

// lookupByID scans the seating-number order for records whose id starts with
// the query. Exact matches are classified MatchExactID, the rest MatchSubstring.
// Callers must hold at least a read lock.
func (ix *Index) lookupByID(q string, filter record.Filter) []Candidate {
	// Binary search to the first id >= q; ids sharing the prefix are contiguous.
	lo := sort.Search(len(ix.idOrder), func(i int) bool {
		return ix.records[ix.idOrder[i]].StudentID >= q
	})

	var out []Candidate
	for i := lo; i < len(ix.idOrder); i++ {
		r := ix.records[ix.idOrder[i]]
		if !strings.HasPrefix(r.StudentID, q) {
			break
		}
		if !filter.Matches(r) {
			continue
		}
		kind := MatchSubstring
		if r.StudentID == q {
			kind = MatchExactID
		}
		out = append(out, Candidate{Record: r, Kind: kind})
	}
	return out
}

// lookupByName matches every query token against the token vocabulary by
// substring, intersects the posting lists, and classifies each surviving
// record against the whole normalized name. Callers must hold at least a
// read lock.
func (ix *Index) lookupByName(norm string, filter record.Filter) []Candidate {
	queryTokens := Tokenize(norm)
	if len(queryTokens) == 0 {
		return nil
	}

	// For each query token, the set of record positions whose name contains
	// a token with it as substring.
	var matched map[int]struct{}
	for _, qt := range queryTokens {
		hits := make(map[int]struct{})
		for tok, postings := range ix.tokens {
			if !strings.Contains(tok, qt) {
				continue
			}
			for _, pos := range postings {
				if matched == nil {
					hits[pos] = struct{}{}
				} else if _, ok := matched[pos]; ok {
					hits[pos] = struct{}{}
				}
			}
		}
		matched = hits
		if len(matched) == 0 {
			return nil
		}
	}

	out := make([]Candidate, 0, len(matched))
	for pos := range matched {
		r := ix.records[pos]
		if !filter.Matches(r) {
			continue
		}
		out = append(out, Candidate{Record: r, Kind: classifyName(ix.names[pos], norm)})
	}
	return out
}

// classifyName ranks a name hit against the normalized query.
func classifyName(normName, normQuery string) MatchKind {
	switch {
	case normName == normQuery:
		return MatchExactName
	case strings.HasPrefix(normName, normQuery):
		return MatchNamePrefix
	default:
		return MatchSubstring
	}
}

// Browse returns all records in the filter scope ordered by seating number.
// It backs the empty-query listing path.
func (ix *Index) Browse(filter record.Filter) []*record.StudentRecord {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]*record.StudentRecord, 0)
	for _, pos := range ix.idOrder {
		r := ix.records[pos]
		if filter.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// ByStudentID returns the records with the exact seating number. Seating
// numbers are unique only within a stage+region scope, so more than one
// record may share one.
func (ix *Index) ByStudentID(studentID string) []*record.StudentRecord {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	q := NormalizeDigits(strings.TrimSpace(studentID))
	lo := sort.Search(len(ix.idOrder), func(i int) bool {
		return ix.records[ix.idOrder[i]].StudentID >= q
	})

	var out []*record.StudentRecord
	for i := lo; i < len(ix.idOrder); i++ {
		r := ix.records[ix.idOrder[i]]
		if r.StudentID != q {
			break
		}
		out = append(out, r)
	}
	return out
}

// SchoolsMatching returns up to limit distinct school names in the filter
// scope whose normalized form contains the query, ordered with prefix
// matches first and alphabetically within each group. It backs school
// suggestions; a per-build school table is not kept because the vocabulary
// is small relative to the record count.
func (ix *Index) SchoolsMatching(normQuery string, filter record.Filter, limit int) []string {
	if normQuery == "" || limit <= 0 {
		return nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	seen := make(map[string]string) // normalized -> original
	for _, r := range ix.records {
		if r.SchoolName == "" || !filter.Matches(r) {
			continue
		}
		normSchool := Normalize(r.SchoolName)
		if _, ok := seen[normSchool]; ok {
			continue
		}
		if strings.Contains(normSchool, normQuery) {
			seen[normSchool] = r.SchoolName
		}
	}

	type schoolHit struct {
		norm, orig string
		prefix     bool
	}
	hits := make([]schoolHit, 0, len(seen))
	for norm, orig := range seen {
		hits = append(hits, schoolHit{norm: norm, orig: orig, prefix: strings.HasPrefix(norm, normQuery)})
	}
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].prefix != hits[b].prefix {
			return hits[a].prefix
		}
		return hits[a].norm < hits[b].norm
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.orig
	}
	return out
}
