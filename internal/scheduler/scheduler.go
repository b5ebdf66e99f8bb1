// Package scheduler closes ranking periods on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/toolrank/internal/adapters/repository"
	"github.com/okian/toolrank/internal/domain/ranking"
	"github.com/okian/toolrank/pkg/logger"
	"github.com/robfig/cron/v3"
)

const defaultRunTimeout = 5 * time.Minute

// Closer finalizes the period containing asOf.
type Closer interface {
	ClosePeriod(ctx context.Context, asOf time.Time) (*ranking.Period, error)
}

// Scheduler triggers period close. Overlapping runs are skipped.
type Scheduler struct {
	cron     *cron.Cron
	mu       sync.Mutex
	entryID  cron.EntryID
	schedule cron.Schedule
	location *time.Location

	closer  Closer
	clock   func() time.Time
	timeout time.Duration
	logger  logger.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time a run closes at.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.clock = now
		}
	}
}

// WithRunTimeout bounds a single close.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates a Scheduler in the given timezone.
func New(timezone string, closer Closer, opts ...Option) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", timezone, err)
	}
	s := &Scheduler{
		location: loc,
		closer:   closer,
		clock:    time.Now,
		timeout:  defaultRunTimeout,
		logger:   logger.GetOrNop().Named("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	return s, nil
}

// Schedule installs a standard five-field cron expression, replacing any
// previous one. An empty expression removes the schedule.
func (s *Scheduler) Schedule(spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
		s.entryID, s.schedule = 0, nil
	}
	if spec == "" {
		return nil
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("parsing cron %q: %w", spec, err)
	}
	s.schedule = sched
	s.entryID = s.cron.Schedule(sched, cron.FuncJob(func() {
		_ = s.RunOnce(context.Background())
	}))
	s.logger.Info(context.Background(), "period close scheduled",
		logger.String("cron", spec),
		logger.String("timezone", s.location.String()),
	)
	return nil
}

// Next returns the next trigger time, or the zero time when unscheduled.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schedule == nil {
		return time.Time{}
	}
	return s.schedule.Next(s.clock().In(s.location))
}

// RunOnce closes the period containing the current time. A period that is
// already closed is not an error.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	asOf := s.clock()
	p, err := s.closer.ClosePeriod(ctx, asOf)
	switch {
	case errors.Is(err, repository.ErrPeriodExists):
		s.logger.Info(ctx, "period already closed", logger.String("as_of", asOf.UTC().Format(time.RFC3339)))
		return nil
	case err != nil:
		s.logger.Error(ctx, "scheduled period close failed", logger.Error(err))
		return err
	}
	s.logger.Info(ctx, "scheduled period close finished",
		logger.String("period", p.ID),
		logger.Int("tools", len(p.Entries)),
	)
	return nil
}

// Start begins the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running close to finish or ctx
// to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
