// Package engine wires the search index, query resolver, suggestion engine,
// aggregation engine, and grade calculator into one facade. The facade owns
// the refresh lifecycle: it loads snapshots from the stores, rebuilds the
// index, and invalidates every cache in one step.
package engine

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/natija-hub/results-engine/internal/analytics"
	"github.com/natija-hub/results-engine/internal/calculator"
	"github.com/natija-hub/results-engine/internal/domain/record"
	"github.com/natija-hub/results-engine/internal/domain/shared"
	"github.com/natija-hub/results-engine/internal/domain/stage"
	"github.com/natija-hub/results-engine/internal/search"
	"github.com/natija-hub/results-engine/internal/suggest"
	"github.com/natija-hub/results-engine/pkg/logger"
	"github.com/natija-hub/results-engine/pkg/retry"
)

// Config holds engine tuning knobs.
type Config struct {
	// ResultCap bounds one search response. Zero means the resolver default.
	ResultCap int

	// SuggestionTTL is how long suggestion sets stay cached.
	SuggestionTTL time.Duration

	// SuggestionCache is the optional shared suggestion cache tier.
	SuggestionCache suggest.RemoteCache
}

// Engine is the query and aggregation facade of the results portal.
type Engine struct {
	records record.Store
	stages  stage.Store
	bus     shared.EventBus
	log     *logger.Logger
	retrier *retry.Retrier

	index      *search.Index
	resolver   *search.Resolver
	suggester  *suggest.Engine
	aggregator *analytics.Engine
	calc       *calculator.Calculator

	refreshMu sync.Mutex
	readyMu   sync.RWMutex
	ready     bool
}

// New creates the engine and subscribes it to data-refresh events on the
// bus. Serving starts after the first successful Refresh.
func New(records record.Store, stages stage.Store, bus shared.EventBus, cfg Config, log *logger.Logger) (*Engine, error) {
	if log == nil {
		log = logger.Default()
	}
	log = log.With(logger.Component("engine"))

	index := search.NewIndex()
	e := &Engine{
		records:    records,
		stages:     stages,
		bus:        bus,
		log:        log,
		retrier:    retry.StoreRetrier(),
		index:      index,
		resolver:   search.NewResolver(index, cfg.ResultCap, log),
		suggester:  suggest.NewEngine(index, cfg.SuggestionCache, cfg.SuggestionTTL, log),
		aggregator: analytics.NewEngine(index, log),
		calc:       calculator.New(log),
	}

	if bus != nil {
		err := bus.Subscribe(shared.EventDataRefreshed, shared.EventHandlerFunc(e.onDataRefreshed))
		if err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Ready reports whether at least one snapshot has been loaded.
func (e *Engine) Ready() bool {
	e.readyMu.RLock()
	defer e.readyMu.RUnlock()
	return e.ready
}

// Version returns the current data version.
func (e *Engine) Version() int64 {
	return e.index.Version()
}

// RecordCount returns the number of indexed records.
func (e *Engine) RecordCount() int {
	return e.index.Count()
}

// ─────────────────────────────────────────────────────────────────────────────
// Refresh lifecycle
// ─────────────────────────────────────────────────────────────────────────────

// Refresh loads a fresh snapshot of records and stages, rebuilds the index,
// and invalidates all caches. Concurrent calls are serialized; lookups keep
// serving the previous snapshot until the swap.
func (e *Engine) Refresh(ctx context.Context) error {
	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()

	start := time.Now()

	var (
		records   []*record.StudentRecord
		stageList []*stage.Stage
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.retrier.Do(gctx, func(ctx context.Context) error {
			recs, err := e.records.FetchAll(ctx)
			if err != nil {
				if shared.IsRetryable(err) {
					return retry.Retryable(err)
				}
				return err
			}
			records = recs
			return nil
		})
	})
	g.Go(func() error {
		return e.retrier.Do(gctx, func(ctx context.Context) error {
			stages, err := e.stages.FetchAll(ctx)
			if err != nil {
				if shared.IsRetryable(err) {
					return retry.Retryable(err)
				}
				return err
			}
			stageList = stages
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		e.log.Error("refresh failed", logger.Err(err), logger.Latency(time.Since(start)))
		return shared.WrapError("engine", "Refresh", shared.ErrExternalService,
			"snapshot load failed", err)
	}

	e.index.Build(records)
	e.aggregator.SetStages(stageList)
	e.aggregator.InvalidateAll()
	e.suggester.ClearCache(ctx)

	e.readyMu.Lock()
	e.ready = true
	e.readyMu.Unlock()

	version := e.index.Version()
	e.log.Info("snapshot refreshed",
		logger.DataVersion(version),
		logger.Int("records", len(records)),
		logger.Int("stages", len(stageList)),
		logger.Latency(time.Since(start)),
	)

	if e.bus != nil {
		event := shared.NewIndexRebuiltEvent(version, len(records), time.Since(start))
		if err := e.bus.Publish(event); err != nil {
			e.log.Warn("failed to publish index rebuilt event", logger.Err(err))
		}
	}
	return nil
}

// TriggerRefresh publishes a data-refreshed event. The subscribed handler
// performs the actual rebuild, on this instance and, over the Redis bus, on
// every peer instance.
func (e *Engine) TriggerRefresh(source string) error {
	if e.bus == nil {
		return e.Refresh(context.Background())
	}
	return e.bus.Publish(shared.NewDataRefreshedEvent(source, -1))
}

// onDataRefreshed handles refresh events from the bus.
func (e *Engine) onDataRefreshed(event shared.Event) error {
	e.log.Info("data refresh event received",
		logger.String("event_type", string(event.EventType())))
	return e.Refresh(context.Background())
}

// ─────────────────────────────────────────────────────────────────────────────
// Query operations
// ─────────────────────────────────────────────────────────────────────────────

// Search resolves one search query.
func (e *Engine) Search(ctx context.Context, q search.Query) (*search.Result, error) {
	return e.resolver.Search(ctx, q)
}

// Suggest returns typeahead suggestions.
func (e *Engine) Suggest(ctx context.Context, text string, filter record.Filter) ([]suggest.Suggestion, error) {
	return e.suggester.Suggest(ctx, text, filter)
}

// StudentByID returns every record with the given seating number, one per
// stage+region scope. Returns shared.ErrRecordNotFound when there is none.
func (e *Engine) StudentByID(ctx context.Context, studentID string) ([]*record.StudentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(studentID) == "" {
		return nil, shared.ErrEmptyStudentID
	}

	matches := e.index.ByStudentID(studentID)
	if len(matches) == 0 {
		return nil, shared.ErrRecordNotFound
	}

	out := make([]*record.StudentRecord, len(matches))
	for i, r := range matches {
		out[i] = r.Clone()
	}
	return out, nil
}

// SchoolStudents lists every record of one school, optionally narrowed by
// the filter, ordered by average descending with seating number as the tie
// break.
func (e *Engine) SchoolStudents(ctx context.Context, school string, filter record.Filter) ([]*record.StudentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(school) == "" {
		return nil, shared.NewDomainError("engine", "SchoolStudents", shared.ErrEmptyValue, "school name is required")
	}
	filter.School = school

	records, _ := e.index.Snapshot()
	out := make([]*record.StudentRecord, 0, 64)
	for _, r := range records {
		if filter.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Average() != out[b].Average() {
			return out[a].Average() > out[b].Average()
		}
		return out[a].StudentID < out[b].StudentID
	})
	return out, nil
}

// Overview returns the portal-wide aggregation.
func (e *Engine) Overview(ctx context.Context) (*analytics.Overview, error) {
	return e.aggregator.Overview(ctx)
}

// StageAnalytics returns the aggregation for one stage.
func (e *Engine) StageAnalytics(ctx context.Context, stageID string) (*analytics.StageAnalytics, error) {
	return e.aggregator.ByStage(ctx, stageID)
}

// RegionAnalytics returns the aggregation for one region, optionally scoped
// to a stage.
func (e *Engine) RegionAnalytics(ctx context.Context, region, stageID string) (*analytics.RegionAnalytics, error) {
	return e.aggregator.ByRegion(ctx, region, stageID)
}

// Schools returns the full school ranking inside the filter scope.
func (e *Engine) Schools(ctx context.Context, filter record.Filter) (*analytics.SchoolsSummary, error) {
	return e.aggregator.Schools(ctx, filter)
}

// Statistics returns the filtered statistics aggregate.
func (e *Engine) Statistics(ctx context.Context, filter record.Filter) (*analytics.ScopedStatistics, error) {
	return e.aggregator.Statistics(ctx, filter)
}

// Calculate runs the ad hoc grade calculator.
func (e *Engine) Calculate(ctx context.Context, subjects []calculator.Subject) (*calculator.Result, error) {
	return e.calc.Calculate(ctx, subjects)
}

// Stages returns the stage reference data from the store.
func (e *Engine) Stages(ctx context.Context) ([]*stage.Stage, error) {
	return e.stages.FetchAll(ctx)
}
