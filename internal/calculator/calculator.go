// Package calculator implements the ad hoc grade calculator: students enter
// their own subject scores and get back percentages, a weighted average, a
// grade band, and a success rate. The calculator is pure and stateless; it
// shares its banding and rounding policy with the record domain so a
// calculated grade always agrees with a looked-up one.
package calculator

import (
	"context"
	"fmt"
	"strings"

	"github.com/natija-hub/results-engine/internal/domain/record"
	"github.com/natija-hub/results-engine/internal/domain/shared"
	"github.com/natija-hub/results-engine/pkg/logger"
)

// DefaultWeight applies when a subject omits its weight.
const DefaultWeight = 1.0

// MaxSubjects bounds one calculation request.
const MaxSubjects = 50

// Subject is one user-entered subject. A zero Weight means "unspecified"
// and takes DefaultWeight; negative weights are rejected.
type Subject struct {
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	MaxScore float64 `json:"max_score"`
	Weight   float64 `json:"weight,omitempty"`
}

// SubjectError describes why one submitted subject was skipped.
type SubjectError struct {
	Index   int    `json:"index"`
	Name    string `json:"name,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// SubjectResult is the per-subject breakdown for a valid subject.
type SubjectResult struct {
	Name       string  `json:"name"`
	Score      float64 `json:"score"`
	MaxScore   float64 `json:"max_score"`
	Weight     float64 `json:"weight"`
	Percentage float64 `json:"percentage"`
}

// Result is the full calculation outcome. Invalid subjects are reported in
// Errors and excluded from every aggregate; the aggregates cover Subjects
// only.
type Result struct {
	Subjects    []SubjectResult `json:"subjects"`
	TotalScore  float64         `json:"total_score"`
	MaxTotal    float64         `json:"max_total"`
	Average     float64         `json:"average"`
	Grade       record.Band     `json:"grade"`
	GradeLabel  string          `json:"grade_label"`
	SuccessRate float64         `json:"success_rate"`
	Errors      []SubjectError  `json:"errors,omitempty"`
}

// Calculator computes weighted grade summaries.
type Calculator struct {
	log *logger.Logger
}

// New creates a calculator.
func New(log *logger.Logger) *Calculator {
	if log == nil {
		log = logger.Default()
	}
	return &Calculator{log: log.With(logger.Component("calculator"))}
}

// Calculate validates the submitted subjects and computes the weighted
// summary over the valid ones. The average is the weight-normalized mean of
// subject percentages:
//
//	average = round2( Σ(percentageᵢ · weightᵢ) / Σweightᵢ )
//
// so a subject's influence is its weight, independent of its raw point
// scale. Having no valid subject at all is an error; individual invalid
// subjects are not.
func (c *Calculator) Calculate(ctx context.Context, subjects []Subject) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(subjects) == 0 {
		return nil, shared.NewDomainError("calculator", "Calculate", shared.ErrInvalidInput,
			"no subjects provided")
	}
	if len(subjects) > MaxSubjects {
		return nil, shared.NewDomainError("calculator", "Calculate", shared.ErrValueOutOfRange,
			fmt.Sprintf("at most %d subjects per calculation", MaxSubjects))
	}

	result := &Result{Subjects: make([]SubjectResult, 0, len(subjects))}

	var (
		weightedPctSum float64
		weightSum      float64
		totalScore     float64
		maxTotal       float64
		passed         int
	)
	for i, s := range subjects {
		if subjErr := validateSubject(i, s); subjErr != nil {
			result.Errors = append(result.Errors, *subjErr)
			continue
		}

		weight := s.Weight
		if weight == 0 {
			weight = DefaultWeight
		}
		pct := record.Subject{Name: s.Name, Score: s.Score, MaxScore: s.MaxScore}.Percentage()

		result.Subjects = append(result.Subjects, SubjectResult{
			Name:       s.Name,
			Score:      s.Score,
			MaxScore:   s.MaxScore,
			Weight:     weight,
			Percentage: pct,
		})

		weightedPctSum += pct * weight
		weightSum += weight
		totalScore += s.Score * weight
		maxTotal += s.MaxScore * weight
		if pct >= 50 {
			passed++
		}
	}

	if len(result.Subjects) == 0 {
		return nil, shared.NewDomainError("calculator", "Calculate", shared.ErrValidation,
			"no valid subjects provided")
	}

	result.TotalScore = record.Round2(totalScore)
	result.MaxTotal = record.Round2(maxTotal)
	result.Average = record.Round2(weightedPctSum / weightSum)
	result.Grade = record.BandFor(result.Average)
	result.GradeLabel = result.Grade.ArabicLabel()
	result.SuccessRate = record.Round2(float64(passed) / float64(len(result.Subjects)) * 100)

	c.log.Debug("calculation done",
		logger.Int("subjects", len(result.Subjects)),
		logger.Int("rejected", len(result.Errors)),
		logger.Float64("average", result.Average),
	)
	return result, nil
}

// validateSubject checks one submitted subject and pins the failure to a
// field so the UI can highlight it.
func validateSubject(index int, s Subject) *SubjectError {
	fail := func(field, message string) *SubjectError {
		return &SubjectError{Index: index, Name: s.Name, Field: field, Message: message}
	}

	if strings.TrimSpace(s.Name) == "" {
		return fail("name", "subject name is required")
	}
	if s.MaxScore <= 0 {
		return fail("max_score", "max_score must be greater than zero")
	}
	if s.Score < 0 {
		return fail("score", "score cannot be negative")
	}
	if s.Score > s.MaxScore {
		return fail("score", "score cannot exceed max_score")
	}
	if s.Weight < 0 {
		return fail("weight", "weight must be greater than zero")
	}
	return nil
}
