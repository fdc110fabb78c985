// Package analytics computes multi-dimensional aggregations over the record
// snapshot: portal-wide overview, per-stage and per-region breakdowns, and
// filtered statistics. Every result is memoized against the data version it
// was computed from, so repeated reads between refreshes are bit-identical
// and cost one map lookup.
package analytics

import (
	"time"

	"github.com/natija-hub/results-engine/internal/domain/record"
	"github.com/natija-hub/results-engine/internal/domain/stage"
)

// SuccessThreshold is the average at or above which a student counts as
// passing for success-rate purposes. This is deliberately lower than the
// lowest passing grade band (60): portal policy counts students in the
// 50-59.99 range as having passed the examination even though their band
// is "weak".
const SuccessThreshold = 50.0

// Top-list sizing. Schools below the minimum cohort are excluded from
// rankings so tiny samples cannot dominate the leaderboards.
const (
	OverviewTopSchools = 20
	OverviewMinCohort  = 5
	StageTopSchools    = 20
	StageMinCohort     = 3
	RegionTopSchools   = 15
	RegionMinCohort    = 3
	OverviewTopRegions = 20
)

// DistributionTolerance is how far a grade distribution's percentages may
// drift from summing to exactly 100 before the result is treated as
// internally inconsistent.
const DistributionTolerance = 0.5

// Statistics is the basic aggregate over one scope.
type Statistics struct {
	TotalStudents int     `json:"total_students"`
	AverageScore  float64 `json:"average_score"`
	HighestScore  float64 `json:"highest_score"`
	LowestScore   float64 `json:"lowest_score"`
	SuccessRate   float64 `json:"success_rate"`
}

// GradeBandCount is one row of a grade distribution.
type GradeBandCount struct {
	Band       record.Band `json:"band"`
	Label      string      `json:"label"`
	LabelEN    string      `json:"label_en"`
	Count      int         `json:"count"`
	Percentage float64     `json:"percentage"`
}

// SchoolRank is one entry in a top-schools list.
type SchoolRank struct {
	SchoolName    string  `json:"school_name"`
	Region        string  `json:"region,omitempty"`
	TotalStudents int     `json:"total_students"`
	AverageScore  float64 `json:"average_score"`
}

// StageSummary is the per-stage row of the overview.
type StageSummary struct {
	StageID       string  `json:"stage_id"`
	Name          string  `json:"name"`
	NameEN        string  `json:"name_en,omitempty"`
	Icon          string  `json:"icon,omitempty"`
	Color         string  `json:"color,omitempty"`
	TotalStudents int     `json:"total_students"`
	AverageScore  float64 `json:"average_score"`
	HighestScore  float64 `json:"highest_score"`
	RegionCount   int     `json:"region_count"`
}

// RegionSummary is the per-region row of an aggregation. AverageScore is the
// mean over every student in the region, which equals the student-count
// weighted mean of the region's school averages.
type RegionSummary struct {
	Region        string  `json:"region"`
	TotalStudents int     `json:"total_students"`
	AverageScore  float64 `json:"average_score"`
}

// Overview is the portal-wide aggregation.
type Overview struct {
	TotalStudents int             `json:"total_students"`
	TotalStages   int             `json:"total_stages"`
	Stages        []StageSummary  `json:"stages"`
	Regions       []RegionSummary `json:"regions"`
	TopSchools    []SchoolRank    `json:"top_schools"`
	Version       int64           `json:"data_version"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

// StageAnalytics is the per-stage aggregation. Stage is nil when the stage
// id is unknown to the reference data; statistics are still computed (and
// zero-valued when no records carry the id).
type StageAnalytics struct {
	Stage             *stage.Stage     `json:"stage,omitempty"`
	StageID           string           `json:"stage_id"`
	Statistics        Statistics       `json:"statistics"`
	GradeDistribution []GradeBandCount `json:"grade_distribution"`
	Regions           []RegionSummary  `json:"regions"`
	TopSchools        []SchoolRank     `json:"top_schools"`
	Version           int64            `json:"data_version"`
	GeneratedAt       time.Time        `json:"generated_at"`
}

// RegionAnalytics is the per-region aggregation, optionally narrowed to one
// stage.
type RegionAnalytics struct {
	Region            string           `json:"region"`
	StageID           string           `json:"stage_id,omitempty"`
	Statistics        Statistics       `json:"statistics"`
	GradeDistribution []GradeBandCount `json:"grade_distribution"`
	TopSchools        []SchoolRank     `json:"top_schools"`
	Version           int64            `json:"data_version"`
	GeneratedAt       time.Time        `json:"generated_at"`
}

// SchoolsSummary is the full school ranking for the school browse pages.
type SchoolsSummary struct {
	StageID      string       `json:"stage_id,omitempty"`
	Region       string       `json:"region,omitempty"`
	TotalSchools int          `json:"total_schools"`
	Schools      []SchoolRank `json:"schools"`
	Version      int64        `json:"data_version"`
	GeneratedAt  time.Time    `json:"generated_at"`
}

// ScopedStatistics is the response of the filtered statistics operation.
type ScopedStatistics struct {
	Scope             record.Filter    `json:"-"`
	StageID           string           `json:"stage_id,omitempty"`
	Region            string           `json:"region,omitempty"`
	Statistics        Statistics       `json:"statistics"`
	GradeDistribution []GradeBandCount `json:"grade_distribution"`
	Version           int64            `json:"data_version"`
	GeneratedAt       time.Time        `json:"generated_at"`
}

func (o *Overview) clone() *Overview {
	if o == nil {
		return nil
	}
	c := *o
	c.Stages = append([]StageSummary(nil), o.Stages...)
	c.Regions = append([]RegionSummary(nil), o.Regions...)
	c.TopSchools = append([]SchoolRank(nil), o.TopSchools...)
	return &c
}

func (a *StageAnalytics) clone() *StageAnalytics {
	if a == nil {
		return nil
	}
	c := *a
	c.Stage = a.Stage.Clone()
	c.GradeDistribution = append([]GradeBandCount(nil), a.GradeDistribution...)
	c.Regions = append([]RegionSummary(nil), a.Regions...)
	c.TopSchools = append([]SchoolRank(nil), a.TopSchools...)
	return &c
}

func (a *RegionAnalytics) clone() *RegionAnalytics {
	if a == nil {
		return nil
	}
	c := *a
	c.GradeDistribution = append([]GradeBandCount(nil), a.GradeDistribution...)
	c.TopSchools = append([]SchoolRank(nil), a.TopSchools...)
	return &c
}

func (s *SchoolsSummary) clone() *SchoolsSummary {
	if s == nil {
		return nil
	}
	c := *s
	c.Schools = append([]SchoolRank(nil), s.Schools...)
	return &c
}

func (s *ScopedStatistics) clone() *ScopedStatistics {
	if s == nil {
		return nil
	}
	c := *s
	c.GradeDistribution = append([]GradeBandCount(nil), s.GradeDistribution...)
	return &c
}
