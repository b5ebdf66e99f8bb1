package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/okian/toolrank/internal/domain/tiebreak"
	"github.com/okian/toolrank/internal/domain/tier"
	"github.com/okian/toolrank/pkg/metrics"
)

// Treap-based live standings.
//
// Ordering is the tiebreak resolver's: score bucket desc, then tiebreak keys,
// then tool id. "less" means ranks earlier, so an in-order walk yields the
// standings best to worst. Priorities are a hash of the tool id, which keeps
// the tree balanced in expectation and its shape independent of insert order.

// Standing is one live row.
type Standing struct {
	Position        int           `json:"position"`
	ToolID          string        `json:"tool_id"`
	Name            string        `json:"name"`
	Overall         float64       `json:"overall_score"`
	BaselineOverall float64       `json:"baseline_overall"`
	DeltaOverall    float64       `json:"delta_overall"`
	Tier            tier.Tier     `json:"tier"`
	Events          int           `json:"events"`
	Tiebreakers     tiebreak.Keys `json:"tiebreakers"`
}

// Candidate is the ordering key of the row.
func (s Standing) Candidate() tiebreak.Candidate {
	return tiebreak.Candidate{ToolID: s.ToolID, Overall: s.Overall, Keys: s.Tiebreakers}
}

// Snapshot is an immutable read view republished periodically.
type Snapshot struct {
	Total    int
	Top      []Standing
	Position map[string]int
	At       time.Time
}

type node struct {
	key   tiebreak.Candidate
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

// Standings is the live ordered index over current scores.
type Standings struct {
	mu       sync.RWMutex
	root     *node
	byID     map[string]Standing
	resolver tiebreak.Resolver
	policy   tier.Policy

	snapshotInterval time.Duration
	topCacheSize     int
	snapshot         atomic.Pointer[Snapshot]

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewStandings builds an empty index and starts snapshot publishing.
func NewStandings(ctx context.Context, opts ...Option) *Standings {
	s := &Standings{
		byID:             make(map[string]Standing),
		resolver:         tiebreak.Resolver{Epsilon: tiebreak.DefaultEpsilon},
		policy:           tier.DefaultPolicy,
		snapshotInterval: time.Second,
		topCacheSize:     100,
		stopChan:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.publish()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.snapshotInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.publish()
			}
		}
	}()
	return s
}

// Close stops snapshot publishing.
func (s *Standings) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

func (s *Standings) insert(n *node, key tiebreak.Candidate, prio uint64) *node {
	if n == nil {
		return &node{key: key, prio: prio, size: 1}
	}
	if s.resolver.Less(key, n.key) {
		n.left = s.insert(n.left, key, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = s.insert(n.right, key, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func (s *Standings) remove(n *node, key tiebreak.Candidate) *node {
	if n == nil {
		return nil
	}
	switch c := s.resolver.Compare(key, n.key); {
	case c == 0:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = s.remove(n.right, key)
		} else {
			n = rotateLeft(n)
			n.left = s.remove(n.left, key)
		}
	case c < 0:
		n.left = s.remove(n.left, key)
	default:
		n.right = s.remove(n.right, key)
	}
	fix(n)
	return n
}

// Upsert inserts or moves a tool. Position and Tier on the input are ignored.
func (s *Standings) Upsert(_ context.Context, st Standing) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryLatency("standings_upsert", float64(time.Since(start).Milliseconds()))
	}()

	st.Position, st.Tier = 0, tier.Unranked
	s.mu.Lock()
	if old, ok := s.byID[st.ToolID]; ok {
		s.root = s.remove(s.root, old.Candidate())
	}
	s.byID[st.ToolID] = st
	s.root = s.insert(s.root, st.Candidate(), xxhash.Sum64String(st.ToolID))
	n := len(s.byID)
	s.mu.Unlock()

	metrics.UpdateStandingsTools(n)
}

// Reset replaces the whole index, used after a period closes.
func (s *Standings) Reset(_ context.Context, rows []Standing) {
	s.mu.Lock()
	s.root = nil
	s.byID = make(map[string]Standing, len(rows))
	for _, st := range rows {
		st.Position, st.Tier = 0, tier.Unranked
		if old, ok := s.byID[st.ToolID]; ok {
			s.root = s.remove(s.root, old.Candidate())
		}
		s.byID[st.ToolID] = st
		s.root = s.insert(s.root, st.Candidate(), xxhash.Sum64String(st.ToolID))
	}
	n := len(s.byID)
	s.mu.Unlock()

	metrics.UpdateStandingsTools(n)
	s.publish()
}

// Get returns a tool's stored row without its position.
func (s *Standings) Get(_ context.Context, toolID string) (Standing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.byID[toolID]
	return st, ok
}

// Rank returns a tool's current row in O(log n).
func (s *Standings) Rank(_ context.Context, toolID string) (Standing, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryLatency("standings_rank", float64(time.Since(start).Milliseconds()))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.byID[toolID]
	if !ok {
		return Standing{}, ErrNotFound
	}
	key := st.Candidate()
	pos := 0
	for n := s.root; n != nil; {
		c := s.resolver.Compare(key, n.key)
		if c < 0 {
			n = n.left
			continue
		}
		pos += nsize(n.left) + 1
		if c == 0 {
			break
		}
		n = n.right
	}
	st.Position = pos
	st.Tier = s.policy.Classify(pos, len(s.byID))
	return st, nil
}

// TopN returns the first n rows.
func (s *Standings) TopN(_ context.Context, n int) ([]Standing, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryLatency("standings_top", float64(time.Since(start).Milliseconds()))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(n), nil
}

// collect walks in order; caller holds the lock.
func (s *Standings) collect(limit int) []Standing {
	total := len(s.byID)
	out := make([]Standing, 0, min(limit, total))
	var walk func(n *node)
	walk = func(n *node) {
		if n == nil || len(out) >= limit {
			return
		}
		walk(n.left)
		if len(out) < limit {
			st := s.byID[n.key.ToolID]
			st.Position = len(out) + 1
			st.Tier = s.policy.Classify(st.Position, total)
			out = append(out, st)
		}
		walk(n.right)
	}
	walk(s.root)
	return out
}

// Count returns the number of tracked tools.
func (s *Standings) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Snapshot returns the last published read view.
func (s *Standings) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

func (s *Standings) publish() {
	s.mu.RLock()
	all := s.collect(len(s.byID))
	s.mu.RUnlock()

	pos := make(map[string]int, len(all))
	for _, st := range all {
		pos[st.ToolID] = st.Position
	}
	top := all
	if len(top) > s.topCacheSize {
		top = top[:s.topCacheSize]
	}
	s.snapshot.Store(&Snapshot{Total: len(all), Top: top, Position: pos, At: time.Now()})
}
