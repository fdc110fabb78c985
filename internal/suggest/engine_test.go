package suggest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natija-hub/results-engine/internal/domain/record"
	"github.com/natija-hub/results-engine/internal/search"
)

func suggestRecords() []*record.StudentRecord {
	return []*record.StudentRecord{
		{ID: "r1", StudentID: "10001", Name: "أحمد محمد", StageID: "secondary", Region: "القاهرة", SchoolName: "مدرسة النصر"},
		{ID: "r2", StudentID: "10002", Name: "أحمد علي", StageID: "secondary", Region: "الجيزة", SchoolName: "مدرسة المستقبل"},
		{ID: "r3", StudentID: "10003", Name: "محمد أحمد", StageID: "preparatory", Region: "القاهرة", SchoolName: "مدرسة النصر"},
		{ID: "r4", StudentID: "10104", Name: "سارة أحمد", StageID: "secondary", Region: "القاهرة"},
		{ID: "r5", StudentID: "20001", Name: "فاطمة حسن", StageID: "secondary", Region: "القاهرة", SchoolName: "مدرسة الأمل"},
	}
}

func newTestEngine(t *testing.T, ttl time.Duration) (*Engine, *search.Index) {
	t.Helper()
	ix := search.NewIndex()
	ix.Build(suggestRecords())
	return NewEngine(ix, nil, ttl, nil), ix
}

func TestSuggestShortQuery(t *testing.T) {
	e, _ := newTestEngine(t, 0)

	got, err := e.Suggest(context.Background(), "م", record.Filter{})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = e.Suggest(context.Background(), "", record.Filter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSuggestNamesAndSchools(t *testing.T) {
	e, _ := newTestEngine(t, 0)

	got, err := e.Suggest(context.Background(), "احمد", record.Filter{})
	require.NoError(t, err)

	var names, schools []string
	for _, s := range got {
		switch s.Type {
		case TypeName:
			names = append(names, s.Text)
		case TypeSchool:
			schools = append(schools, s.Text)
		case TypeStudentID:
			t.Fatalf("unexpected id suggestion for text query: %q", s.Text)
		}
	}
	assert.ElementsMatch(t, []string{"أحمد محمد", "أحمد علي", "محمد أحمد", "سارة أحمد"}, names)
	assert.Empty(t, schools)
}

func TestSuggestNameOrderingExactFirst(t *testing.T) {
	e, _ := newTestEngine(t, 0)

	got, err := e.Suggest(context.Background(), "احمد محمد", record.Filter{})
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "أحمد محمد", got[0].Text)
	assert.Equal(t, TypeName, got[0].Type)
}

func TestSuggestNumericReturnsSeatingNumbers(t *testing.T) {
	e, _ := newTestEngine(t, 0)

	got, err := e.Suggest(context.Background(), "100", record.Filter{})
	require.NoError(t, err)
	require.Len(t, got, 3)

	texts := []string{got[0].Text, got[1].Text, got[2].Text}
	assert.Equal(t, []string{"10001", "10002", "10003"}, texts)
	for _, s := range got {
		assert.Equal(t, TypeStudentID, s.Type)
		assert.NotEmpty(t, s.Subtitle)
	}
}

func TestSuggestSchoolType(t *testing.T) {
	e, _ := newTestEngine(t, 0)

	got, err := e.Suggest(context.Background(), "النصر", record.Filter{})
	require.NoError(t, err)

	var schools []string
	for _, s := range got {
		if s.Type == TypeSchool {
			schools = append(schools, s.Text)
		}
	}
	assert.Equal(t, []string{"مدرسة النصر"}, schools)
}

func TestSuggestRespectsFilter(t *testing.T) {
	e, _ := newTestEngine(t, 0)

	got, err := e.Suggest(context.Background(), "احمد", record.Filter{StageID: "preparatory"})
	require.NoError(t, err)

	for _, s := range got {
		if s.Type == TypeName {
			assert.Equal(t, "محمد أحمد", s.Text)
			assert.Equal(t, "preparatory", s.StageID)
		}
	}
}

func TestSuggestCachesPerQueryAndScope(t *testing.T) {
	e, ix := newTestEngine(t, time.Minute)

	first, err := e.Suggest(context.Background(), "احمد", record.Filter{})
	require.NoError(t, err)

	// Rebuild with fewer records but do not clear; version tag must
	// invalidate the cached entry on its own.
	ix.Build(suggestRecords()[:1])

	second, err := e.Suggest(context.Background(), "احمد", record.Filter{})
	require.NoError(t, err)
	assert.NotEqual(t, len(first), len(second))
}

func TestSuggestCacheClearedOnRefresh(t *testing.T) {
	e, _ := newTestEngine(t, time.Hour)

	_, err := e.Suggest(context.Background(), "احمد", record.Filter{})
	require.NoError(t, err)

	e.ClearCache(context.Background())

	got, err := e.Suggest(context.Background(), "احمد", record.Filter{})
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}

func TestSuggestReturnsCopies(t *testing.T) {
	e, _ := newTestEngine(t, time.Minute)

	first, err := e.Suggest(context.Background(), "احمد", record.Filter{})
	require.NoError(t, err)
	require.NotEmpty(t, first)
	first[0].Text = "mutated"

	second, err := e.Suggest(context.Background(), "احمد", record.Filter{})
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", second[0].Text)
}

func TestSuggestCancelledContext(t *testing.T) {
	e, _ := newTestEngine(t, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Suggest(ctx, "احمد", record.Filter{})
	assert.ErrorIs(t, err, context.Canceled)
}
