package analytics

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natija-hub/results-engine/internal/domain/record"
	"github.com/natija-hub/results-engine/internal/domain/shared"
	"github.com/natija-hub/results-engine/internal/domain/stage"
	"github.com/natija-hub/results-engine/internal/search"
)

func makeRecords(school, region, stageID string, count int, avg float64) []*record.StudentRecord {
	out := make([]*record.StudentRecord, count)
	for i := 0; i < count; i++ {
		out[i] = &record.StudentRecord{
			ID:            fmt.Sprintf("%s-%s-%d", school, region, i),
			StudentID:     fmt.Sprintf("%s%04d", region, i),
			Name:          "طالب",
			SchoolName:    school,
			Region:        region,
			StageID:       stageID,
			StoredAverage: avg,
		}
	}
	return out
}

func newTestEngine(t *testing.T, records []*record.StudentRecord) (*Engine, *search.Index) {
	t.Helper()
	ix := search.NewIndex()
	ix.Build(records)
	e := NewEngine(ix, nil)
	e.SetStages(stage.Defaults())
	return e, ix
}

func TestOverviewTotals(t *testing.T) {
	records := append(
		makeRecords("مدرسة أ", "القاهرة", "secondary", 10, 90),
		makeRecords("مدرسة ب", "الجيزة", "preparatory", 5, 70)...,
	)
	e, _ := newTestEngine(t, records)

	ov, err := e.Overview(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 15, ov.TotalStudents)
	assert.Equal(t, 5, ov.TotalStages)

	byID := map[string]StageSummary{}
	for _, s := range ov.Stages {
		byID[s.StageID] = s
	}
	assert.Equal(t, 10, byID["secondary"].TotalStudents)
	assert.Equal(t, 90.0, byID["secondary"].AverageScore)
	assert.Equal(t, 5, byID["preparatory"].TotalStudents)
	assert.Zero(t, byID["primary"].TotalStudents)
}

func TestOverviewStagesOrderedByDisplayOrder(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	ov, err := e.Overview(context.Background())
	require.NoError(t, err)
	require.Len(t, ov.Stages, 5)
	assert.Equal(t, "primary", ov.Stages[0].StageID)
	assert.Equal(t, "technical", ov.Stages[4].StageID)
}

func TestOverviewMinCohortExcludesSmallSchools(t *testing.T) {
	records := append(
		makeRecords("مدرسة كبيرة", "القاهرة", "secondary", 5, 80),
		makeRecords("مدرسة صغيرة", "القاهرة", "secondary", 4, 99)...,
	)
	e, _ := newTestEngine(t, records)

	ov, err := e.Overview(context.Background())
	require.NoError(t, err)
	require.Len(t, ov.TopSchools, 1)
	assert.Equal(t, "مدرسة كبيرة", ov.TopSchools[0].SchoolName)
}

func TestRegionAverageIsStudentWeighted(t *testing.T) {
	// School A: 10 students at 90. School B: 90 students at 50.
	// The region average must be (90*10 + 50*90) / 100 = 54.
	records := append(
		makeRecords("مدرسة أ", "القاهرة", "secondary", 10, 90),
		makeRecords("مدرسة ب", "القاهرة", "secondary", 90, 50)...,
	)
	e, _ := newTestEngine(t, records)

	ov, err := e.Overview(context.Background())
	require.NoError(t, err)
	require.Len(t, ov.Regions, 1)
	assert.Equal(t, "القاهرة", ov.Regions[0].Region)
	assert.Equal(t, 100, ov.Regions[0].TotalStudents)
	assert.Equal(t, 54.0, ov.Regions[0].AverageScore)
}

func TestTopSchoolsTieBreak(t *testing.T) {
	// Same average: smaller cohort ranks first, then name ascending.
	records := append(
		makeRecords("ب مدرسة", "القاهرة", "secondary", 6, 85),
		makeRecords("أ مدرسة", "القاهرة", "secondary", 6, 85)...,
	)
	records = append(records, makeRecords("ج مدرسة", "القاهرة", "secondary", 5, 85)...)
	e, _ := newTestEngine(t, records)

	ov, err := e.Overview(context.Background())
	require.NoError(t, err)
	require.Len(t, ov.TopSchools, 3)
	assert.Equal(t, "ج مدرسة", ov.TopSchools[0].SchoolName) // 5 students
	assert.Equal(t, "أ مدرسة", ov.TopSchools[1].SchoolName)
	assert.Equal(t, "ب مدرسة", ov.TopSchools[2].SchoolName)
}

func TestByStageStatisticsAndDistribution(t *testing.T) {
	records := append(
		makeRecords("مدرسة أ", "القاهرة", "secondary", 3, 95), // excellent
		makeRecords("مدرسة أ", "القاهرة", "secondary", 1, 55)..., // weak band, passing
	)
	e, _ := newTestEngine(t, records)

	sa, err := e.ByStage(context.Background(), "secondary")
	require.NoError(t, err)
	require.NotNil(t, sa.Stage)
	assert.Equal(t, "الثانوية العامة", sa.Stage.Name)

	assert.Equal(t, 4, sa.Statistics.TotalStudents)
	assert.Equal(t, 85.0, sa.Statistics.AverageScore)
	assert.Equal(t, 95.0, sa.Statistics.HighestScore)
	assert.Equal(t, 55.0, sa.Statistics.LowestScore)
	// 55 is below the lowest band but above the success threshold.
	assert.Equal(t, 100.0, sa.Statistics.SuccessRate)

	require.Len(t, sa.GradeDistribution, 5)
	assert.Equal(t, record.BandExcellent, sa.GradeDistribution[0].Band)
	assert.Equal(t, 3, sa.GradeDistribution[0].Count)
	assert.Equal(t, 75.0, sa.GradeDistribution[0].Percentage)
	assert.Equal(t, 1, sa.GradeDistribution[4].Count)

	var pctSum float64
	for _, b := range sa.GradeDistribution {
		pctSum += b.Percentage
	}
	assert.InDelta(t, 100, pctSum, DistributionTolerance)
}

func TestByStageUnknownStageYieldsZeroStats(t *testing.T) {
	e, _ := newTestEngine(t, makeRecords("مدرسة أ", "القاهرة", "secondary", 3, 80))

	sa, err := e.ByStage(context.Background(), "no-such-stage")
	require.NoError(t, err)
	assert.Nil(t, sa.Stage)
	assert.Zero(t, sa.Statistics.TotalStudents)
	assert.Zero(t, sa.Statistics.AverageScore)
	assert.Empty(t, sa.TopSchools)
}

func TestByStageEmptyIDRejected(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	_, err := e.ByStage(context.Background(), "")
	assert.True(t, shared.IsValidation(err))
}

func TestByRegionScopedToStage(t *testing.T) {
	records := append(
		makeRecords("مدرسة أ", "القاهرة", "secondary", 4, 90),
		makeRecords("مدرسة أ", "القاهرة", "preparatory", 4, 60)...,
	)
	e, _ := newTestEngine(t, records)

	ra, err := e.ByRegion(context.Background(), "القاهرة", "secondary")
	require.NoError(t, err)
	assert.Equal(t, 4, ra.Statistics.TotalStudents)
	assert.Equal(t, 90.0, ra.Statistics.AverageScore)

	all, err := e.ByRegion(context.Background(), "القاهرة", "")
	require.NoError(t, err)
	assert.Equal(t, 8, all.Statistics.TotalStudents)
	assert.Equal(t, 75.0, all.Statistics.AverageScore)
}

func TestByRegionMinCohort(t *testing.T) {
	records := append(
		makeRecords("مدرسة أ", "القاهرة", "secondary", 3, 90),
		makeRecords("مدرسة ب", "القاهرة", "secondary", 2, 99)...,
	)
	e, _ := newTestEngine(t, records)

	ra, err := e.ByRegion(context.Background(), "القاهرة", "")
	require.NoError(t, err)
	require.Len(t, ra.TopSchools, 1)
	assert.Equal(t, "مدرسة أ", ra.TopSchools[0].SchoolName)
}

func TestStatisticsFilterScopes(t *testing.T) {
	records := append(
		makeRecords("مدرسة أ", "القاهرة", "secondary", 2, 90),
		makeRecords("مدرسة ب", "الجيزة", "secondary", 2, 70)...,
	)
	e, _ := newTestEngine(t, records)

	stats, err := e.Statistics(context.Background(), record.Filter{Region: "الجيزة"})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Statistics.TotalStudents)
	assert.Equal(t, 70.0, stats.Statistics.AverageScore)

	empty, err := e.Statistics(context.Background(), record.Filter{Region: "أسوان"})
	require.NoError(t, err)
	assert.Zero(t, empty.Statistics.TotalStudents)
}

func TestStatisticsSchoolFilter(t *testing.T) {
	records := append(
		makeRecords("مدرسة أ", "القاهرة", "secondary", 3, 90),
		makeRecords("مدرسة ب", "القاهرة", "secondary", 2, 60)...,
	)
	e, _ := newTestEngine(t, records)

	stats, err := e.Statistics(context.Background(), record.Filter{School: "مدرسة ب"})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Statistics.TotalStudents)
	assert.Equal(t, 60.0, stats.Statistics.AverageScore)
}

func TestSchoolsListsEverySchool(t *testing.T) {
	// No minimum cohort: a one-student school still appears.
	records := append(
		makeRecords("مدرسة أ", "القاهرة", "secondary", 5, 80),
		makeRecords("مدرسة ب", "الجيزة", "secondary", 1, 95)...,
	)
	e, _ := newTestEngine(t, records)

	summary, err := e.Schools(context.Background(), record.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalSchools)
	require.Len(t, summary.Schools, 2)
	assert.Equal(t, "مدرسة ب", summary.Schools[0].SchoolName)
	assert.Equal(t, 95.0, summary.Schools[0].AverageScore)
	assert.Equal(t, "مدرسة أ", summary.Schools[1].SchoolName)
}

func TestSchoolsScopedByFilter(t *testing.T) {
	records := append(
		makeRecords("مدرسة أ", "القاهرة", "secondary", 4, 85),
		makeRecords("مدرسة ب", "الجيزة", "preparatory", 4, 70)...,
	)
	e, _ := newTestEngine(t, records)

	summary, err := e.Schools(context.Background(), record.Filter{StageID: "preparatory"})
	require.NoError(t, err)
	require.Len(t, summary.Schools, 1)
	assert.Equal(t, "مدرسة ب", summary.Schools[0].SchoolName)
	assert.Equal(t, 4, summary.Schools[0].TotalStudents)
}

func TestMemoCacheStaysBounded(t *testing.T) {
	// Statistics keys embed caller-chosen filter values, so a stream of
	// distinct filters must not grow the cache without limit.
	e, _ := newTestEngine(t, makeRecords("مدرسة أ", "القاهرة", "secondary", 5, 80))

	for i := 0; i < maxCacheEntries+256; i++ {
		_, err := e.Statistics(context.Background(), record.Filter{Region: fmt.Sprintf("منطقة-%d", i)})
		require.NoError(t, err)
	}

	e.cacheMu.Lock()
	size := len(e.cache)
	e.cacheMu.Unlock()
	assert.LessOrEqual(t, size, maxCacheEntries)
}

func TestAggregationsAreIdempotent(t *testing.T) {
	e, _ := newTestEngine(t, makeRecords("مدرسة أ", "القاهرة", "secondary", 20, 77.5))

	first, err := e.Overview(context.Background())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := e.Overview(context.Background())
		require.NoError(t, err)
		// Identical including GeneratedAt: the cached result is served.
		assert.Equal(t, first, again)
	}
}

func TestCacheInvalidatedByVersionBump(t *testing.T) {
	e, ix := newTestEngine(t, makeRecords("مدرسة أ", "القاهرة", "secondary", 10, 80))

	first, err := e.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, first.TotalStudents)

	ix.Build(makeRecords("مدرسة أ", "القاهرة", "secondary", 3, 80))

	second, err := e.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, second.TotalStudents)
	assert.Greater(t, second.Version, first.Version)
}

func TestInvalidateAll(t *testing.T) {
	e, _ := newTestEngine(t, makeRecords("مدرسة أ", "القاهرة", "secondary", 10, 80))

	first, err := e.Overview(context.Background())
	require.NoError(t, err)

	e.InvalidateAll()

	second, err := e.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.TotalStudents, second.TotalStudents)
}

func TestResultsAreCopies(t *testing.T) {
	e, _ := newTestEngine(t, makeRecords("مدرسة أ", "القاهرة", "secondary", 10, 80))

	first, err := e.Overview(context.Background())
	require.NoError(t, err)
	first.Stages[0].Name = "mutated"

	second, err := e.Overview(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", second.Stages[0].Name)
}

func TestKeyFingerprintStability(t *testing.T) {
	a := Key{Dimension: "stage", Value: "secondary"}
	b := Key{Dimension: "stage", Value: "secondary"}
	c := Key{Dimension: "stage", Value: "primary"}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())

	// Scope fields participate in the fingerprint.
	d := Key{Dimension: "stats", Scope: record.Filter{StageID: "x"}}
	e := Key{Dimension: "stats", Scope: record.Filter{Region: "x"}}
	assert.NotEqual(t, d.Fingerprint(), e.Fingerprint())
}
