package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/natija-hub/results-engine/internal/domain/record"
	"github.com/natija-hub/results-engine/internal/domain/shared"
	"github.com/natija-hub/results-engine/internal/domain/stage"
	"github.com/natija-hub/results-engine/internal/search"
	"github.com/natija-hub/results-engine/pkg/logger"
)

type cacheEntry struct {
	version int64
	value   any
}

// maxCacheEntries bounds the memo cache. Statistics keys embed caller-chosen
// filter values, so the key space is unbounded; past the bound, stale-version
// entries are evicted first, then arbitrary ones.
const maxCacheEntries = 4096

// Engine computes aggregations over the index snapshot and memoizes them.
//
// Cache policy is wholesale: entries are tagged with the data version they
// were computed against and every entry becomes stale at once when the
// version moves. There is no per-key TTL and no partial invalidation, which
// keeps the cache trivially coherent with the snapshot.
type Engine struct {
	index *search.Index
	log   *logger.Logger

	stagesMu sync.RWMutex
	stages   []*stage.Stage

	cacheMu sync.Mutex
	cache   map[uint64]cacheEntry
}

// NewEngine creates an aggregation engine over the index.
func NewEngine(index *search.Index, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Default()
	}
	return &Engine{
		index: index,
		log:   log.With(logger.Component("analytics.engine")),
		cache: make(map[uint64]cacheEntry),
	}
}

// SetStages replaces the stage reference data used to shape overview and
// per-stage responses. Called on startup and on data refresh.
func (e *Engine) SetStages(stages []*stage.Stage) {
	sorted := make([]*stage.Stage, len(stages))
	copy(sorted, stages)
	sort.SliceStable(sorted, func(a, b int) bool {
		return sorted[a].DisplayOrder < sorted[b].DisplayOrder
	})

	e.stagesMu.Lock()
	e.stages = sorted
	e.stagesMu.Unlock()
}

// InvalidateAll drops every memoized aggregation. Called on data refresh;
// version tagging would catch stale entries anyway, so this mainly frees
// memory held by results of the previous snapshot.
func (e *Engine) InvalidateAll() {
	e.cacheMu.Lock()
	e.cache = make(map[uint64]cacheEntry)
	e.cacheMu.Unlock()
}

// Overview computes the portal-wide aggregation.
func (e *Engine) Overview(ctx context.Context) (*Overview, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := overviewKey()
	if cached, ok := e.cacheGet(key); ok {
		return cached.(*Overview).clone(), nil
	}

	records, version := e.index.Snapshot()
	stages := e.stageRef()

	total := 0
	byStage := make(map[string]*accumulator)
	byRegion := make(map[string]*accumulator)
	bySchool := make(map[string]*schoolAccumulator)
	for _, r := range records {
		avg := r.Average()
		total++
		accFor(byStage, r.StageID).add(avg)
		if r.Region != "" {
			accFor(byRegion, r.Region).add(avg)
		}
		if r.SchoolName != "" {
			schoolAccFor(bySchool, r.SchoolName, r.Region).add(avg)
		}
	}

	stageSummaries := make([]StageSummary, 0, len(stages))
	for _, st := range stages {
		if !st.IsActive {
			continue
		}
		summary := StageSummary{
			StageID:     st.ID,
			Name:        st.Name,
			NameEN:      st.NameEN,
			Icon:        st.Icon,
			Color:       st.Color,
			RegionCount: len(st.Regions),
		}
		if acc, ok := byStage[st.ID]; ok {
			summary.TotalStudents = acc.count
			summary.AverageScore = acc.average()
			summary.HighestScore = record.Round2(acc.high)
		}
		stageSummaries = append(stageSummaries, summary)
	}

	result := &Overview{
		TotalStudents: total,
		TotalStages:   len(stageSummaries),
		Stages:        stageSummaries,
		Regions:       topRegions(byRegion, OverviewTopRegions),
		TopSchools:    topSchools(bySchool, OverviewMinCohort, OverviewTopSchools),
		Version:       version,
		GeneratedAt:   time.Now().UTC(),
	}

	e.cacheSet(key, version, result)
	e.log.Debug("overview computed", logger.DataVersion(version), logger.Int("total_students", total))
	return result.clone(), nil
}

// ByStage computes the aggregation for one educational stage. An unknown
// stage id is not an error: the response carries zero-valued statistics and
// no stage reference block.
func (e *Engine) ByStage(ctx context.Context, stageID string) (*StageAnalytics, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if stageID == "" {
		return nil, shared.NewDomainError("analytics", "ByStage", shared.ErrEmptyValue, "stage id is required")
	}

	key := stageKey(stageID)
	if cached, ok := e.cacheGet(key); ok {
		return cached.(*StageAnalytics).clone(), nil
	}

	records, version := e.index.Snapshot()
	filter := record.Filter{StageID: stageID}

	scope := newAccumulator()
	byRegion := make(map[string]*accumulator)
	bySchool := make(map[string]*schoolAccumulator)
	for _, r := range records {
		if !filter.Matches(r) {
			continue
		}
		avg := r.Average()
		scope.add(avg)
		if r.Region != "" {
			accFor(byRegion, r.Region).add(avg)
		}
		if r.SchoolName != "" {
			schoolAccFor(bySchool, r.SchoolName, r.Region).add(avg)
		}
	}

	distribution, err := scope.distribution("ByStage")
	if err != nil {
		return nil, err
	}

	result := &StageAnalytics{
		Stage:             e.stageByID(stageID),
		StageID:           stageID,
		Statistics:        scope.statistics(),
		GradeDistribution: distribution,
		Regions:           rankedRegions(byRegion),
		TopSchools:        topSchools(bySchool, StageMinCohort, StageTopSchools),
		Version:           version,
		GeneratedAt:       time.Now().UTC(),
	}

	e.cacheSet(key, version, result)
	return result.clone(), nil
}

// ByRegion computes the aggregation for one region, optionally narrowed to
// a stage. Unknown regions yield zero-valued statistics.
func (e *Engine) ByRegion(ctx context.Context, region, stageID string) (*RegionAnalytics, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if region == "" {
		return nil, shared.NewDomainError("analytics", "ByRegion", shared.ErrEmptyValue, "region is required")
	}

	key := regionKey(region, stageID)
	if cached, ok := e.cacheGet(key); ok {
		return cached.(*RegionAnalytics).clone(), nil
	}

	records, version := e.index.Snapshot()
	filter := record.Filter{StageID: stageID, Region: region}

	scope := newAccumulator()
	bySchool := make(map[string]*schoolAccumulator)
	for _, r := range records {
		if !filter.Matches(r) {
			continue
		}
		avg := r.Average()
		scope.add(avg)
		if r.SchoolName != "" {
			schoolAccFor(bySchool, r.SchoolName, r.Region).add(avg)
		}
	}

	distribution, err := scope.distribution("ByRegion")
	if err != nil {
		return nil, err
	}

	result := &RegionAnalytics{
		Region:            region,
		StageID:           stageID,
		Statistics:        scope.statistics(),
		GradeDistribution: distribution,
		TopSchools:        topSchools(bySchool, RegionMinCohort, RegionTopSchools),
		Version:           version,
		GeneratedAt:       time.Now().UTC(),
	}

	e.cacheSet(key, version, result)
	return result.clone(), nil
}

// Statistics computes the basic aggregate plus grade distribution for an
// arbitrary filter scope.
func (e *Engine) Statistics(ctx context.Context, filter record.Filter) (*ScopedStatistics, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := statsKey(filter)
	if cached, ok := e.cacheGet(key); ok {
		return cached.(*ScopedStatistics).clone(), nil
	}

	records, version := e.index.Snapshot()

	scope := newAccumulator()
	for _, r := range records {
		if filter.Matches(r) {
			scope.add(r.Average())
		}
	}

	distribution, err := scope.distribution("Statistics")
	if err != nil {
		return nil, err
	}

	result := &ScopedStatistics{
		Scope:             filter,
		StageID:           filter.StageID,
		Region:            filter.Region,
		Statistics:        scope.statistics(),
		GradeDistribution: distribution,
		Version:           version,
		GeneratedAt:       time.Now().UTC(),
	}

	e.cacheSet(key, version, result)
	return result.clone(), nil
}

// Schools ranks every school inside the filter scope by average score
// descending. Unlike the top-schools lists embedded in the other
// aggregations, this ranking applies no minimum cohort and no length cap: it
// backs the school browse pages, which must list every school.
func (e *Engine) Schools(ctx context.Context, filter record.Filter) (*SchoolsSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := schoolsKey(filter)
	if cached, ok := e.cacheGet(key); ok {
		return cached.(*SchoolsSummary).clone(), nil
	}

	records, version := e.index.Snapshot()

	bySchool := make(map[string]*schoolAccumulator)
	for _, r := range records {
		if r.SchoolName == "" || !filter.Matches(r) {
			continue
		}
		schoolAccFor(bySchool, r.SchoolName, r.Region).add(r.Average())
	}

	result := &SchoolsSummary{
		StageID:      filter.StageID,
		Region:       filter.Region,
		TotalSchools: len(bySchool),
		Schools:      topSchools(bySchool, 1, len(bySchool)),
		Version:      version,
		GeneratedAt:  time.Now().UTC(),
	}

	e.cacheSet(key, version, result)
	return result.clone(), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Cache plumbing
// ═══════════════════════════════════════════════════════════════════════════

func (e *Engine) cacheGet(key Key) (any, bool) {
	version := e.index.Version()

	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()

	entry, ok := e.cache[key.Fingerprint()]
	if !ok || entry.version != version {
		return nil, false
	}
	return entry.value, true
}

func (e *Engine) cacheSet(key Key, version int64, value any) {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()

	if len(e.cache) >= maxCacheEntries {
		for k, v := range e.cache {
			if v.version != version {
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

	e.cache[key.Fingerprint()] = cacheEntry{version: version, value: value}
}

func (e *Engine) stageRef() []*stage.Stage {
	e.stagesMu.RLock()
	defer e.stagesMu.RUnlock()
	return e.stages
}

func (e *Engine) stageByID(id string) *stage.Stage {
	e.stagesMu.RLock()
	defer e.stagesMu.RUnlock()
	for _, st := range e.stages {
		if st.ID == id {
			return st.Clone()
		}
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Accumulators
// ═══════════════════════════════════════════════════════════════════════════

// accumulator folds student averages into the basic aggregate. It works on
// already-rounded record averages, so every scope derives from the same
// per-student numbers the search results show.
type accumulator struct {
	count  int
	sum    float64
	high   float64
	low    float64
	passed int
	bands  map[record.Band]int
}

func newAccumulator() *accumulator {
	return &accumulator{low: math.Inf(1), high: math.Inf(-1), bands: make(map[record.Band]int)}
}

func accFor(m map[string]*accumulator, key string) *accumulator {
	acc, ok := m[key]
	if !ok {
		acc = newAccumulator()
		m[key] = acc
	}
	return acc
}

func (a *accumulator) add(avg float64) {
	a.count++
	a.sum += avg
	if avg > a.high {
		a.high = avg
	}
	if avg < a.low {
		a.low = avg
	}
	if avg >= SuccessThreshold {
		a.passed++
	}
	a.bands[record.BandFor(avg)]++
}

func (a *accumulator) average() float64 {
	if a.count == 0 {
		return 0
	}
	return record.Round2(a.sum / float64(a.count))
}

func (a *accumulator) statistics() Statistics {
	if a.count == 0 {
		return Statistics{}
	}
	return Statistics{
		TotalStudents: a.count,
		AverageScore:  a.average(),
		HighestScore:  record.Round2(a.high),
		LowestScore:   record.Round2(a.low),
		SuccessRate:   record.Round2(float64(a.passed) / float64(a.count) * 100),
	}
}

// distribution materializes the grade distribution in fixed band order and
// verifies the percentages account for the whole scope. A sum off by more
// than the tolerance means the engine's own bookkeeping is corrupt, and the
// error must surface rather than serve wrong numbers.
func (a *accumulator) distribution(op string) ([]GradeBandCount, error) {
	out := make([]GradeBandCount, 0, 5)
	var pctSum float64
	for _, band := range record.Bands() {
		count := a.bands[band]
		var pct float64
		if a.count > 0 {
			pct = record.Round2(float64(count) / float64(a.count) * 100)
		}
		pctSum += pct
		out = append(out, GradeBandCount{
			Band:       band,
			Label:      band.ArabicLabel(),
			LabelEN:    band.EnglishLabel(),
			Count:      count,
			Percentage: pct,
		})
	}

	if a.count > 0 && math.Abs(pctSum-100) > DistributionTolerance {
		return nil, shared.NewDomainError("analytics", op, shared.ErrInconsistentState,
			fmt.Sprintf("grade distribution percentages sum to %.2f", pctSum))
	}
	return out, nil
}

// schoolAccumulator additionally tracks the school's display fields.
type schoolAccumulator struct {
	accumulator
	name   string
	region string
}

func schoolAccFor(m map[string]*schoolAccumulator, name, region string) *schoolAccumulator {
	acc, ok := m[name]
	if !ok {
		acc = &schoolAccumulator{accumulator: *newAccumulator(), name: name, region: region}
		m[name] = acc
	}
	return acc
}

// topSchools ranks schools with at least minCohort students by average
// descending; ties prefer the smaller cohort, then the lexically smaller
// name, so the ordering is total.
func topSchools(m map[string]*schoolAccumulator, minCohort, limit int) []SchoolRank {
	ranked := make([]SchoolRank, 0, len(m))
	for _, acc := range m {
		if acc.count < minCohort {
			continue
		}
		ranked = append(ranked, SchoolRank{
			SchoolName:    acc.name,
			Region:        acc.region,
			TotalStudents: acc.count,
			AverageScore:  acc.average(),
		})
	}
	sort.Slice(ranked, func(a, b int) bool {
		if ranked[a].AverageScore != ranked[b].AverageScore {
			return ranked[a].AverageScore > ranked[b].AverageScore
		}
		if ranked[a].TotalStudents != ranked[b].TotalStudents {
			return ranked[a].TotalStudents < ranked[b].TotalStudents
		}
		return ranked[a].SchoolName < ranked[b].SchoolName
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// topRegions ranks regions by student count descending, ties by name.
func topRegions(m map[string]*accumulator, limit int) []RegionSummary {
	out := regionSummaries(m)
	sort.Slice(out, func(a, b int) bool {
		if out[a].TotalStudents != out[b].TotalStudents {
			return out[a].TotalStudents > out[b].TotalStudents
		}
		return out[a].Region < out[b].Region
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// rankedRegions orders regions by average descending for the per-stage view,
// with the same tie policy as school rankings.
func rankedRegions(m map[string]*accumulator) []RegionSummary {
	out := regionSummaries(m)
	sort.Slice(out, func(a, b int) bool {
		if out[a].AverageScore != out[b].AverageScore {
			return out[a].AverageScore > out[b].AverageScore
		}
		if out[a].TotalStudents != out[b].TotalStudents {
			return out[a].TotalStudents < out[b].TotalStudents
		}
		return out[a].Region < out[b].Region
	})
	return out
}

func regionSummaries(m map[string]*accumulator) []RegionSummary {
	out := make([]RegionSummary, 0, len(m))
	for name, acc := range m {
		out = append(out, RegionSummary{
			Region:        name,
			TotalStudents: acc.count,
			AverageScore:  acc.average(),
		})
	}
	return out
}
