// Package service wires the ranking engine to storage, ingestion and the live
// standings, and implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	eventqueue "github.com/okian/toolrank/internal/adapters/mq/queue"
	workerpool "github.com/okian/toolrank/internal/adapters/mq/worker"
	"github.com/okian/toolrank/internal/adapters/repository"
	"github.com/okian/toolrank/internal/adapters/snapshot"
	"github.com/okian/toolrank/internal/domain/algorithm"
	"github.com/okian/toolrank/internal/domain/decay"
	"github.com/okian/toolrank/internal/domain/dedupe"
	"github.com/okian/toolrank/internal/domain/delta"
	"github.com/okian/toolrank/internal/domain/model"
	"github.com/okian/toolrank/internal/domain/ranking"
	"github.com/okian/toolrank/internal/domain/tiebreak"
	"github.com/okian/toolrank/internal/domain/tier"
	"github.com/okian/toolrank/pkg/logger"
	"github.com/okian/toolrank/pkg/metrics"
)

type countKey struct {
	tool string
	typ  model.EventType
}

// Service owns every component of a running ranking process.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     *repository.SQLiteStore
	standings *repository.Standings
	deduper   dedupe.Deduper
	queue     *eventqueue.InMemoryQueue
	pool      *workerpool.Pool
	engine    *ranking.Engine
	registry  *algorithm.Registry
	source    snapshot.Source
	composer  delta.Composer
	decay     decay.Config

	// Configuration
	dbPath          string
	activeVersion   string
	granularity     string
	workerCount     int
	queueSize       int
	dedupeSize      int
	scoringWorkers  int
	deltaCap        float64
	epsilon         float64
	tiers           tier.Policy
	topCacheSize    int
	shutdownTimeout time.Duration
	clock           func() time.Time

	// Live state. liveMu also orders event-log appends against period close
	// so an event is either folded into the close or applied after it.
	liveMu   sync.Mutex
	states   map[string]delta.State
	names    map[string]string
	keys     map[string]tiebreak.Keys
	counts   map[countKey]int
	periodID string

	closeMu sync.Mutex

	started bool
	logger  logger.Logger
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		dbPath:          repository.MemoryPath,
		activeVersion:   algorithm.Latest,
		granularity:     GranularityWeek,
		workerCount:     runtime.NumCPU(),
		queueSize:       10_000,
		dedupeSize:      100_000,
		scoringWorkers:  runtime.NumCPU(),
		deltaCap:        algorithm.DefaultDeltaCap,
		epsilon:         tiebreak.DefaultEpsilon,
		tiers:           tier.DefaultPolicy,
		topCacheSize:    100,
		shutdownTimeout: 10 * time.Second,
		clock:           time.Now,
		decay:           decay.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens storage, restores the live state of the current period and
// starts the workers. An unknown active algorithm aborts start-up.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.GetOrNop().Named("service")
	}
	s.logger.Info(ctx, "starting ranking service...")

	if s.registry == nil {
		r, err := algorithm.NewDefaultRegistry()
		if err != nil {
			return fmt.Errorf("built-in algorithms: %w", err)
		}
		s.registry = r
	}
	if _, err := s.registry.Resolve(s.activeVersion); err != nil {
		return fmt.Errorf("active algorithm: %w", err)
	}

	store, err := repository.OpenSQLite(ctx, s.dbPath)
	if err != nil {
		return err
	}
	s.store = store
	s.composer = delta.NewComposer(s.deltaCap)
	s.engine = ranking.NewEngine(
		ranking.WithWorkers(s.scoringWorkers),
		ranking.WithEpsilon(s.epsilon),
		ranking.WithTierPolicy(s.tiers),
		ranking.WithDeltaCap(s.deltaCap),
		ranking.WithLogger(s.logger.Named("engine")),
	)

	// background components outlive the start-up context
	bg := context.WithoutCancel(ctx)
	s.standings = repository.NewStandings(bg,
		repository.WithEpsilon(s.epsilon),
		repository.WithTierPolicy(s.tiers),
		repository.WithTopCacheSize(s.topCacheSize),
	)
	s.resetLive(bg, nil, nil, nil)
	if err := s.restore(ctx); err != nil {
		_ = s.standings.Close()
		_ = s.store.Close()
		return fmt.Errorf("restore live state: %w", err)
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, workerpool.ProcessorFunc(s.process),
		workerpool.WithLogger(s.logger.Named("worker")))
	s.pool.Start(bg)

	s.started = true
	s.logger.Info(ctx, "ranking service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("algorithm", s.activeVersion),
		logger.String("period", s.periodID),
	)
	return nil
}

// Stop drains the workers and closes storage.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping ranking service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
	}
	_ = s.standings.Close()
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "closing store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "ranking service stopped")
}

// restore rebuilds live state from the stored current period.
func (s *Service) restore(ctx context.Context) error {
	cur, err := s.store.CurrentPeriod(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	states, err := s.store.ScoreStates(ctx)
	if err != nil {
		return err
	}
	now := s.clock()
	events, err := s.store.EventsSince(ctx, s.windowStart(now))
	if err != nil {
		return err
	}
	s.resetLive(ctx, cur, states, s.countEvents(events, now))
	return nil
}

// SeenAndRecord reports whether an event id was already seen, recording it if not.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordEventDuplicate()
	}
	return seen
}

// Unrecord forgets an event id so it can be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Ingest validates an event, assigns an id when missing and queues it for the
// live path. The returned event carries the final id.
func (s *Service) Ingest(ctx context.Context, e model.Event) (model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return e, ErrNotStarted
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.clock()
	}
	e.Timestamp = e.Timestamp.UTC()
	if err := e.Validate(); err != nil {
		metrics.RecordEventRejected("invalid")
		return e, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if math.IsNaN(e.RawImportance) || math.IsInf(e.RawImportance, 0) {
		metrics.RecordEventRejected("invalid")
		return e, fmt.Errorf("%w: raw_importance must be finite", ErrInvalidEvent)
	}
	metrics.RecordEventReceived(string(e.Type))

	if s.SeenAndRecord(ctx, e.ID) {
		s.logger.Debug(ctx, "duplicate event detected, skipping", logger.String("eventID", e.ID))
		return e, ErrDuplicateEvent
	}
	if !s.queue.Enqueue(ctx, e) {
		s.Unrecord(ctx, e.ID)
		metrics.RecordEventRejected("queue_full")
		return e, ErrQueueFull
	}
	metrics.UpdateQueueSize(s.queue.Len(ctx), s.queue.Capacity())
	return e, nil
}

// process is the worker's processor: log the event, then fold its decayed
// impact into the tool's live delta.
func (s *Service) process(ctx context.Context, e model.Event) error { //nolint:gocritic // hugeParam: events travel by value
	s.liveMu.Lock()
	defer s.liveMu.Unlock()

	inserted, err := s.store.AppendEvent(ctx, e)
	if err != nil {
		return err
	}
	if !inserted {
		metrics.RecordEventDuplicate()
		return nil
	}

	st, ok := s.states[e.ToolID]
	if !ok {
		s.logger.Debug(ctx, "event for unranked tool kept for next period",
			logger.String("eventID", e.ID), logger.String("tool_id", e.ToolID))
		return nil
	}
	now := s.clock()
	if !s.decay.InWindow(e, now) {
		s.logger.Debug(ctx, "event outside decay window", logger.String("eventID", e.ID))
		return nil
	}
	v, err := s.registry.Resolve(st.Baseline.Version)
	if err != nil {
		return err
	}

	k := countKey{e.ToolID, e.Type}
	adj := s.decay.Adjustment(e, now, s.counts[k])
	s.counts[k]++

	next, clamps := st.Apply(s.composer, v, adj, now)
	for _, c := range clamps {
		metrics.RecordDeltaClamp(string(c.Factor))
		s.logger.Warn(ctx, "delta clamped",
			logger.String("tool_id", e.ToolID),
			logger.String("factor", string(c.Factor)),
			logger.Float64("requested", c.Requested),
			logger.Float64("applied", c.Applied),
		)
	}
	if err := s.store.SaveScoreState(ctx, next); err != nil {
		return err
	}
	s.states[e.ToolID] = next
	s.standings.Upsert(ctx, s.standing(next))
	metrics.RecordEventApplied(string(e.Type))
	return nil
}

// ClosePeriod scores the period containing asOf from the current snapshot and
// the event window, persists it as current and restarts the live path from it.
func (s *Service) ClosePeriod(ctx context.Context, asOf time.Time) (*ranking.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	if s.source == nil {
		return nil, ErrNoSnapshot
	}

	s.closeMu.Lock()
	defer s.closeMu.Unlock()

	asOf = asOf.UTC()
	id := PeriodID(asOf, s.granularity)

	prev, err := s.store.CurrentPeriod(ctx)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		prev = nil
	case err != nil:
		return nil, err
	}
	if prev != nil {
		if prev.ID == id {
			return nil, fmt.Errorf("%w: %s", repository.ErrPeriodExists, id)
		}
		if !asOf.After(prev.AsOf) {
			return nil, fmt.Errorf("%w: %s", ErrStalePeriod, prev.ID)
		}
	}

	v, err := s.registry.Resolve(s.activeVersion)
	if err != nil {
		return nil, err
	}
	return s.finalize(ctx, id, asOf, v, prev)
}

// RecomputePeriod re-scores the current period under its own as-of and
// algorithm version from the current snapshot and event log, and replaces it
// in one transaction. Older periods are history and are not recomputed.
func (s *Service) RecomputePeriod(ctx context.Context, id string) (*ranking.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	if s.source == nil {
		return nil, ErrNoSnapshot
	}

	s.closeMu.Lock()
	defer s.closeMu.Unlock()

	cur, err := s.store.CurrentPeriod(ctx)
	if err != nil {
		return nil, err
	}
	if cur.ID != id {
		if _, err := s.store.Period(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s is not current", ErrNotCurrent, id)
	}

	v, err := s.registry.Resolve(cur.Version)
	if err != nil {
		return nil, err
	}
	prev, err := s.previousPeriod(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.finalize(ctx, id, cur.AsOf, v, prev, repository.WithReplace())
}

// previousPeriod loads the period stored just before id, nil for the first.
func (s *Service) previousPeriod(ctx context.Context, id string) (*ranking.Period, error) {
	ids, err := s.store.PeriodIDs(ctx)
	if err != nil {
		return nil, err
	}
	i := slices.Index(ids, id)
	if i <= 0 {
		return nil, nil
	}
	return s.store.Period(ctx, ids[i-1])
}

// finalize runs a scoring pass for period id, stores it as current and resets
// the live path. Callers hold closeMu.
func (s *Service) finalize(ctx context.Context, id string, asOf time.Time, v algorithm.Version, prev *ranking.Period, opts ...repository.SaveOption) (*ranking.Period, error) {
	file, err := s.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	states, err := s.store.ScoreStates(ctx)
	if err != nil {
		return nil, err
	}
	baselines := make(map[string]delta.Baseline, len(states))
	for toolID, st := range states {
		baselines[toolID] = st.Baseline
	}
	history, err := s.store.LastKnownPositions(ctx, asOf)
	if err != nil {
		return nil, err
	}

	s.liveMu.Lock()
	defer s.liveMu.Unlock()

	for _, ev := range file.Events {
		if ev.ID == "" {
			ev.ID = snapshot.EventID(ev)
		}
		if _, err := s.store.AppendEvent(ctx, ev); err != nil {
			return nil, err
		}
	}
	events, err := s.store.EventsSince(ctx, s.windowStart(asOf))
	if err != nil {
		return nil, err
	}

	res, err := s.engine.Score(ctx, ranking.Input{
		PeriodID:    id,
		AsOf:        asOf,
		Version:     v,
		Tools:       file.Tools,
		Baselines:   baselines,
		Adjustments: s.decay.Fold(events, asOf),
		Previous:    prev,
		History:     history,
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.SavePeriod(ctx, repository.Finalized{
		Period: res.Period,
		States: res.States,
		Audit:  res.Audit,
	}, opts...); err != nil {
		return nil, err
	}
	metrics.RecordPeriodFinalized(len(res.Period.Entries))

	next := make(map[string]delta.State, len(res.States))
	for _, st := range res.States {
		next[st.ToolID] = st
	}
	s.resetLive(ctx, &res.Period, next, s.countEvents(events, asOf))

	s.logger.Info(ctx, "period finalized",
		logger.String("period", id),
		logger.String("algorithm", v.ID),
		logger.Bool("replaced", len(opts) > 0),
		logger.Int("tools", len(res.Period.Entries)),
		logger.Int("dropped", len(res.Period.Dropped)),
		logger.Int("audit", len(res.Audit)),
	)
	return &res.Period, nil
}

// resetLive replaces the live state with a finalized period. Callers hold
// liveMu, or are still single-threaded in Start.
func (s *Service) resetLive(ctx context.Context, p *ranking.Period, states map[string]delta.State, counts map[countKey]int) {
	s.states = make(map[string]delta.State)
	s.names = make(map[string]string)
	s.keys = make(map[string]tiebreak.Keys)
	s.counts = counts
	if s.counts == nil {
		s.counts = make(map[countKey]int)
	}
	s.periodID = ""
	if p == nil {
		s.standings.Reset(ctx, nil)
		return
	}

	s.periodID = p.ID
	rows := make([]repository.Standing, 0, len(p.Entries))
	for _, e := range p.Entries {
		st, ok := states[e.ToolID]
		if !ok {
			continue
		}
		s.states[e.ToolID] = st
		s.names[e.ToolID] = e.Name
		s.keys[e.ToolID] = e.Tiebreakers
		rows = append(rows, s.standing(st))
	}
	s.standings.Reset(ctx, rows)
}

func (s *Service) standing(st delta.State) repository.Standing {
	cur := st.Current()
	return repository.Standing{
		ToolID:          st.ToolID,
		Name:            s.names[st.ToolID],
		Overall:         cur.Overall,
		BaselineOverall: st.Baseline.Overall,
		DeltaOverall:    st.Delta.Overall,
		Events:          st.Delta.Events,
		Tiebreakers:     s.keys[st.ToolID],
	}
}

// countEvents counts in-window events per tool and type; the next live event
// of a pair is discounted as that many-th.
func (s *Service) countEvents(events []model.Event, now time.Time) map[countKey]int {
	out := make(map[countKey]int)
	for _, e := range events {
		if e.Validate() != nil || !s.decay.InWindow(e, now) {
			continue
		}
		out[countKey{e.ToolID, e.Type}]++
	}
	return out
}

func (s *Service) windowStart(now time.Time) time.Time {
	if s.decay.HorizonDays <= 0 {
		return time.Unix(0, 0).UTC()
	}
	return now.Add(-time.Duration(s.decay.HorizonDays * float64(24*time.Hour)))
}

// TopN returns the first n rows of the live standings.
func (s *Service) TopN(ctx context.Context, n int) ([]repository.Standing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.standings.TopN(ctx, n)
}

// Rank returns a tool's live standing.
func (s *Service) Rank(ctx context.Context, toolID string) (repository.Standing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return repository.Standing{}, ErrNotStarted
	}
	return s.standings.Rank(ctx, toolID)
}

// CurrentPeriod returns the finalized current period.
func (s *Service) CurrentPeriod(ctx context.Context) (*ranking.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store.CurrentPeriod(ctx)
}

// Period returns a finalized period by id.
func (s *Service) Period(ctx context.Context, id string) (*ranking.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store.Period(ctx, id)
}

// PeriodIDs lists finalized periods oldest first.
func (s *Service) PeriodIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store.PeriodIDs(ctx)
}

// Audit returns a period's data-quality and clamp records.
func (s *Service) Audit(ctx context.Context, periodID string) ([]ranking.Audit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store.Audit(ctx, periodID)
}

// Explain breaks down a tool's entry in periodID, or in the current period
// when periodID is empty.
func (s *Service) Explain(ctx context.Context, toolID, periodID string) (ranking.Explanation, error) {
	var (
		p   *ranking.Period
		err error
	)
	if periodID == "" {
		p, err = s.CurrentPeriod(ctx)
	} else {
		p, err = s.Period(ctx, periodID)
	}
	if err != nil {
		return ranking.Explanation{}, err
	}
	e, ok := p.Find(toolID)
	if !ok {
		return ranking.Explanation{}, fmt.Errorf("%w: tool %s in period %s", repository.ErrNotFound, toolID, p.ID)
	}
	v, err := s.registry.Resolve(p.Version)
	if err != nil {
		return ranking.Explanation{}, err
	}
	return ranking.Explain(e, v), nil
}

// Algorithms lists registered version ids in registration order.
func (s *Service) Algorithms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.registry == nil {
		return nil
	}
	return s.registry.IDs()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":         s.started,
		"workerCount":     s.workerCount,
		"queueSize":       s.queueSize,
		"dedupeSize":      s.dedupeSize,
		"activeAlgorithm": s.activeVersion,
		"granularity":     s.granularity,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		tools := s.standings.Count(ctx)
		s.liveMu.Lock()
		stats["currentPeriod"] = s.periodID
		s.liveMu.Unlock()

		stats["queueLength"] = queueLen
		stats["trackedTools"] = tools
		if snap := s.standings.Snapshot(); snap != nil {
			stats["standingsPublishedAt"] = snap.At
			stats["standingsCached"] = len(snap.Top)
		}

		metrics.UpdateQueueSize(queueLen, s.queue.Capacity())
		metrics.UpdateStandingsTools(tools)
		metrics.UpdateWorkerActiveCount(s.pool.Size())
	}

	return stats
}

// Size returns the current number of remembered event ids.
func (s *Service) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}
