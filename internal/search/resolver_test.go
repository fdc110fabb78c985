package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natija-hub/results-engine/internal/domain/record"
)

func newTestResolver(t *testing.T, records []*record.StudentRecord) *Resolver {
	t.Helper()
	ix := NewIndex()
	ix.Build(records)
	return NewResolver(ix, 0, nil)
}

func TestSearchRankingOrder(t *testing.T) {
	rs := newTestResolver(t, []*record.StudentRecord{
		{ID: "a", StudentID: "3", Name: "محمد احمد حسن"}, // substring
		{ID: "b", StudentID: "2", Name: "محمد احمد"},     // exact name
		{ID: "c", StudentID: "1", Name: "محمد احمد علي"}, // prefix
	})

	res, err := rs.Search(context.Background(), Query{Text: "محمد احمد"})
	require.NoError(t, err)
	require.Len(t, res.Records, 3)

	assert.Equal(t, "b", res.Records[0].ID)
	assert.Equal(t, "c", res.Records[1].ID)
	assert.Equal(t, "a", res.Records[2].ID)
}

func TestSearchTiesBreakBySeatingNumber(t *testing.T) {
	rs := newTestResolver(t, []*record.StudentRecord{
		{ID: "a", StudentID: "20", Name: "سارة خالد"},
		{ID: "b", StudentID: "10", Name: "سارة محمود"},
	})

	res, err := rs.Search(context.Background(), Query{Text: "ساره"})
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "10", res.Records[0].StudentID)
	assert.Equal(t, "20", res.Records[1].StudentID)
}

func TestSearchDeterministic(t *testing.T) {
	records := make([]*record.StudentRecord, 0, 30)
	for i := 0; i < 30; i++ {
		records = append(records, &record.StudentRecord{
			ID:        fmt.Sprintf("r%d", i),
			StudentID: fmt.Sprintf("%05d", i),
			Name:      "طالب تجريبي",
		})
	}
	rs := newTestResolver(t, records)

	first, err := rs.Search(context.Background(), Query{Text: "طالب"})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := rs.Search(context.Background(), Query{Text: "طالب"})
		require.NoError(t, err)
		assert.Equal(t, first.Records, again.Records)
	}
}

func TestSearchCapAndTotal(t *testing.T) {
	records := make([]*record.StudentRecord, 0, 150)
	for i := 0; i < 150; i++ {
		records = append(records, &record.StudentRecord{
			ID:        fmt.Sprintf("r%d", i),
			StudentID: fmt.Sprintf("%05d", i),
			Name:      "طالب تجريبي",
		})
	}
	rs := newTestResolver(t, records)

	res, err := rs.Search(context.Background(), Query{Text: "تجريبي"})
	require.NoError(t, err)
	assert.Len(t, res.Records, DefaultResultCap)
	assert.Equal(t, 150, res.Total)
	assert.True(t, res.Capped)

	res, err = rs.Search(context.Background(), Query{Text: "تجريبي", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, res.Records, 10)
	assert.Equal(t, 150, res.Total)
}

func TestSearchEmptyTextBrowsesScope(t *testing.T) {
	rs := newTestResolver(t, testRecords())

	res, err := rs.Search(context.Background(), Query{
		Filter: record.Filter{StageID: "preparatory"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.False(t, res.Capped)
}

func TestSearchShortQueryReturnsEmptyResult(t *testing.T) {
	rs := newTestResolver(t, testRecords())

	res, err := rs.Search(context.Background(), Query{Text: "م"})
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Zero(t, res.Total)
}

func TestSearchNoMatches(t *testing.T) {
	rs := newTestResolver(t, testRecords())

	res, err := rs.Search(context.Background(), Query{Text: "لايوجد"})
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Zero(t, res.Total)
	assert.False(t, res.Capped)
}

func TestSearchReturnsClones(t *testing.T) {
	records := testRecords()
	rs := newTestResolver(t, records)

	res, err := rs.Search(context.Background(), Query{Text: "10002"})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	res.Records[0].Name = "mutated"
	assert.Equal(t, "محمد أحمد", records[1].Name)
}

func TestSearchCancelledContext(t *testing.T) {
	rs := newTestResolver(t, testRecords())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := rs.Search(ctx, Query{Text: "احمد"})
	assert.ErrorIs(t, err, context.Canceled)
}
