package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natija-hub/results-engine/internal/calculator"
	"github.com/natija-hub/results-engine/internal/domain/record"
	"github.com/natija-hub/results-engine/internal/domain/shared"
	"github.com/natija-hub/results-engine/internal/domain/stage"
	"github.com/natija-hub/results-engine/internal/infrastructure/messaging"
	"github.com/natija-hub/results-engine/internal/search"
)

// fakeRecordStore is an in-memory record.Store.
type fakeRecordStore struct {
	mu      sync.Mutex
	records []*record.StudentRecord
	err     error
	calls   int
}

func (f *fakeRecordStore) FetchAll(ctx context.Context) ([]*record.StudentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func (f *fakeRecordStore) FetchByFilter(ctx context.Context, filter record.Filter) ([]*record.StudentRecord, error) {
	all, err := f.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []*record.StudentRecord
	for _, r := range all {
		if filter.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRecordStore) FetchByID(ctx context.Context, studentID string) (*record.StudentRecord, error) {
	all, err := f.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range all {
		if r.StudentID == studentID {
			return r, nil
		}
	}
	return nil, shared.ErrRecordNotFound
}

func (f *fakeRecordStore) Count(ctx context.Context) (int, error) {
	all, err := f.FetchAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

func (f *fakeRecordStore) setRecords(records []*record.StudentRecord) {
	f.mu.Lock()
	f.records = records
	f.mu.Unlock()
}

// fakeStageStore is an in-memory stage.Store.
type fakeStageStore struct {
	stages []*stage.Stage
}

func (f *fakeStageStore) FetchAll(ctx context.Context) ([]*stage.Stage, error) {
	return f.stages, nil
}

func (f *fakeStageStore) FetchByID(ctx context.Context, id string) (*stage.Stage, error) {
	for _, st := range f.stages {
		if st.ID == id {
			return st, nil
		}
	}
	return nil, shared.ErrStageNotFound
}

func sampleRecords() []*record.StudentRecord {
	return []*record.StudentRecord{
		{ID: "r1", StudentID: "10001", Name: "أحمد محمد", StageID: "secondary", Region: "القاهرة", SchoolName: "مدرسة النصر", StoredAverage: 92},
		{ID: "r2", StudentID: "10002", Name: "سارة علي", StageID: "secondary", Region: "القاهرة", SchoolName: "مدرسة النصر", StoredAverage: 84},
		{ID: "r3", StudentID: "10003", Name: "محمود حسن", StageID: "preparatory", Region: "الجيزة", StoredAverage: 67},
	}
}

func newTestEngine(t *testing.T) (*Engine, *fakeRecordStore) {
	t.Helper()

	store := &fakeRecordStore{records: sampleRecords()}
	cfg := messaging.DefaultInMemoryEventBusConfig()
	cfg.AsyncMode = false
	bus := messaging.NewInMemoryEventBus(cfg)
	t.Cleanup(func() { _ = bus.Close() })

	e, err := New(store, &fakeStageStore{stages: stage.Defaults()}, bus, Config{}, nil)
	require.NoError(t, err)
	require.NoError(t, e.Refresh(context.Background()))
	return e, store
}

func TestEngineReadyAfterRefresh(t *testing.T) {
	store := &fakeRecordStore{records: sampleRecords()}
	e, err := New(store, &fakeStageStore{stages: stage.Defaults()}, nil, Config{}, nil)
	require.NoError(t, err)

	assert.False(t, e.Ready())
	require.NoError(t, e.Refresh(context.Background()))
	assert.True(t, e.Ready())
	assert.Equal(t, 3, e.RecordCount())
	assert.Equal(t, int64(1), e.Version())
}

func TestEngineRefreshFailureKeepsServing(t *testing.T) {
	e, store := newTestEngine(t)

	store.mu.Lock()
	store.err = shared.ErrStoreUnavailable
	store.mu.Unlock()

	err := e.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, shared.IsExternalService(err))

	// The previous snapshot is still queryable.
	res, err := e.Search(context.Background(), search.Query{Text: "احمد"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
}

func TestEngineRefreshRetriesTransientFailures(t *testing.T) {
	e, store := newTestEngine(t)
	before := store.calls

	store.mu.Lock()
	store.err = shared.ErrStoreTimeout
	store.mu.Unlock()

	require.Error(t, e.Refresh(context.Background()))
	assert.Greater(t, store.calls, before+1)
}

func TestEngineSearchThroughFacade(t *testing.T) {
	e, _ := newTestEngine(t)

	res, err := e.Search(context.Background(), search.Query{Text: "10001"})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "أحمد محمد", res.Records[0].Name)
}

func TestEngineSuggestThroughFacade(t *testing.T) {
	e, _ := newTestEngine(t)

	got, err := e.Suggest(context.Background(), "احمد", record.Filter{})
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "أحمد محمد", got[0].Text)
}

func TestEngineStudentByID(t *testing.T) {
	e, _ := newTestEngine(t)

	recs, err := e.StudentByID(context.Background(), "10003")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "محمود حسن", recs[0].Name)

	_, err = e.StudentByID(context.Background(), "99999")
	assert.True(t, shared.IsNotFound(err))

	_, err = e.StudentByID(context.Background(), "  ")
	assert.True(t, shared.IsValidation(err))
}

func TestEngineAnalyticsReflectRefresh(t *testing.T) {
	e, store := newTestEngine(t)

	ov, err := e.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, ov.TotalStudents)

	store.setRecords(sampleRecords()[:1])
	require.NoError(t, e.Refresh(context.Background()))

	ov, err = e.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ov.TotalStudents)
}

func TestEngineTriggerRefreshViaBus(t *testing.T) {
	e, store := newTestEngine(t)

	store.setRecords(sampleRecords()[:2])
	require.NoError(t, e.TriggerRefresh("admin"))

	// The bus is synchronous in tests, so the rebuild already happened.
	assert.Equal(t, 2, e.RecordCount())
}

func TestEngineCalculate(t *testing.T) {
	e, _ := newTestEngine(t)

	res, err := e.Calculate(context.Background(), []calculator.Subject{
		{Name: "عربي", Score: 80, MaxScore: 100, Weight: 1},
		{Name: "رياضيات", Score: 18, MaxScore: 20, Weight: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 86.67, res.Average)
}

func TestEngineRefreshErrorWrapping(t *testing.T) {
	store := &fakeRecordStore{err: errors.New("boom")}
	e, err := New(store, &fakeStageStore{stages: stage.Defaults()}, nil, Config{}, nil)
	require.NoError(t, err)

	err = e.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, shared.IsExternalService(err))
	assert.False(t, e.Ready())
}
