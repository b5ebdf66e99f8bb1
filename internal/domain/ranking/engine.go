// Package ranking runs a scoring pass: evaluate every tool in parallel, then
// behind a barrier sort, tier and diff against the previous period.
package ranking

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"slices"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/okian/toolrank/internal/domain/algorithm"
	"github.com/okian/toolrank/internal/domain/delta"
	"github.com/okian/toolrank/internal/domain/factor"
	"github.com/okian/toolrank/internal/domain/model"
	"github.com/okian/toolrank/internal/domain/movement"
	"github.com/okian/toolrank/internal/domain/tiebreak"
	"github.com/okian/toolrank/internal/domain/tier"
	"github.com/okian/toolrank/pkg/logger"
	"github.com/okian/toolrank/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Engine scores periods. It holds no per-pass state and is safe for
// concurrent use.
type Engine struct {
	workers  int
	catalog  factor.Catalog
	resolver tiebreak.Resolver
	policy   tier.Policy
	composer delta.Composer
	log      logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers bounds the per-tool fan-out.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithCatalog replaces the evaluator catalog.
func WithCatalog(c factor.Catalog) Option {
	return func(e *Engine) {
		if c != nil {
			e.catalog = c
		}
	}
}

// WithEpsilon sets the score granularity for ties.
func WithEpsilon(eps float64) Option {
	return func(e *Engine) {
		if eps > 0 {
			e.resolver = tiebreak.Resolver{Epsilon: eps}
		}
	}
}

// WithTierPolicy replaces the tier boundaries.
func WithTierPolicy(p tier.Policy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithDeltaCap sets the delta bound used for versions without their own.
func WithDeltaCap(c float64) Option {
	return func(e *Engine) {
		e.composer = delta.NewComposer(c)
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine returns an engine with the default catalog, epsilon and tier
// policy.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		workers:  runtime.GOMAXPROCS(0),
		catalog:  factor.DefaultCatalog(),
		resolver: tiebreak.Resolver{Epsilon: tiebreak.DefaultEpsilon},
		policy:   tier.DefaultPolicy,
		composer: delta.NewComposer(0),
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Input is everything one pass needs. The engine reads but never modifies it.
type Input struct {
	PeriodID string
	AsOf     time.Time
	Version  algorithm.Version
	Tools    []model.ToolMetrics
	// Baselines are reused for tools whose version and metrics fingerprint
	// still match; everything else is evaluated and frozen anew.
	Baselines map[string]delta.Baseline
	// Adjustments are folded event impacts per tool.
	Adjustments map[string]factor.ScoreSet
	// Previous is the preceding period; nil for the first one.
	Previous *Period
	// History holds last-known positions from older periods.
	History map[string]int
}

// Result is a complete pass. Nothing in Period depends on the wall clock.
type Result struct {
	Period Period
	States []delta.State
	Audit  []Audit
}

type toolScore struct {
	baseline delta.Baseline
	audit    []Audit
}

// Score runs a full pass. Configuration defects abort before any tool is
// evaluated; per-tool defects only produce audit records.
func (e *Engine) Score(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()
	res, err := e.score(ctx, in)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordScoringPass(status, float64(time.Since(start).Milliseconds()), len(in.Tools))
	return res, err
}

func (e *Engine) score(ctx context.Context, in Input) (*Result, error) {
	if err := e.check(in); err != nil {
		return nil, err
	}
	v := in.Version.Normalized()
	asOf := in.AsOf.UTC()

	scored := make([]toolScore, len(in.Tools))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range in.Tools {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m := &in.Tools[i]
			fp := Fingerprint(m)
			if b, ok := in.Baselines[m.ID]; ok && fp != "" && b.Version == v.ID && b.Fingerprint == fp {
				scored[i] = toolScore{baseline: b}
				return nil
			}
			scores, audit := e.evaluate(gctx, m, v, asOf)
			b := delta.FreezeBaseline(scores, v, asOf)
			b.Fingerprint = fp
			scored[i] = toolScore{baseline: b, audit: audit}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scoring pass %s: %w", in.PeriodID, err)
	}

	res := &Result{
		Period: Period{ID: in.PeriodID, Version: v.ID, AsOf: asOf},
		States: make([]delta.State, 0, len(in.Tools)),
	}
	entries := make([]Entry, len(in.Tools))
	cands := make([]tiebreak.Candidate, len(in.Tools))
	for i := range in.Tools {
		m := &in.Tools[i]
		b := scored[i].baseline
		for _, issue := range m.Issues(asOf) {
			res.Audit = append(res.Audit, Audit{ToolID: m.ID, Kind: issue.Kind, Field: issue.Field, Detail: issue.Detail})
			metrics.RecordDataQualityIssue(issue.Kind)
		}
		res.Audit = append(res.Audit, scored[i].audit...)

		d, clamps := e.composer.ApplyDelta(v, b, delta.Empty(v), in.Adjustments[m.ID])
		for _, c := range clamps {
			res.Audit = append(res.Audit, Audit{
				ToolID: m.ID, Kind: AuditDeltaClamp, Factor: c.Factor, Raw: c.Requested,
				Detail: "applied " + strconv.FormatFloat(c.Applied, 'f', -1, 64),
			})
			metrics.RecordDeltaClamp(string(c.Factor))
		}
		cur := delta.Compose(b, d)
		res.States = append(res.States, delta.State{ToolID: m.ID, Baseline: b, Delta: d, UpdatedAt: asOf})

		entries[i] = Entry{
			ToolID:          m.ID,
			Name:            m.DisplayName(),
			Category:        m.Category,
			Overall:         cur.Overall,
			BaselineOverall: b.Overall,
			DeltaOverall:    d.Overall,
			Factors:         cur.Factors,
			DeltaFactors:    d.Factors,
			Tiebreakers:     tiebreak.KeysFor(m),
			Version:         v.ID,
		}
		cands[i] = tiebreak.Candidate{ToolID: m.ID, Overall: cur.Overall, Keys: entries[i].Tiebreakers}
	}

	// barrier: positions need the complete set
	byID := make(map[string]Entry, len(entries))
	for _, en := range entries {
		byID[en.ToolID] = en
	}
	e.resolver.Sort(cands)
	res.Period.Entries = make([]Entry, len(cands))
	for i, c := range cands {
		en := byID[c.ToolID]
		en.Position = i + 1
		en.Tier = e.policy.Classify(en.Position, len(cands))
		res.Period.Entries[i] = en
	}

	var prev []movement.Placement
	if in.Previous != nil {
		prev = in.Previous.Placements()
	}
	infos := movement.Diff(res.Period.Placements(), prev, movement.WithHistory(in.History))
	for _, info := range infos {
		metrics.RecordMovement(string(info.Class))
		if info.Class == movement.Dropped {
			res.Period.Dropped = append(res.Period.Dropped, info)
			continue
		}
		res.Period.Entries[info.Position-1].Movement = info
	}

	for i := range res.Audit {
		res.Audit[i] = res.Audit[i].Encodable()
	}
	slices.SortStableFunc(res.Audit, func(a, b Audit) int {
		if c := cmp.Compare(a.ToolID, b.ToolID); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Factor, b.Factor); c != 0 {
			return c
		}
		return cmp.Compare(a.Field, b.Field)
	})
	for _, a := range res.Audit {
		e.log.Warn(ctx, "scoring audit",
			logger.String("period", in.PeriodID),
			logger.String("tool_id", a.ToolID),
			logger.String("kind", a.Kind),
			logger.String("factor", string(a.Factor)),
			logger.String("field", a.Field),
			logger.String("detail", a.Detail),
			logger.Float64("raw", a.Raw),
		)
	}
	return res, nil
}

func (e *Engine) check(in Input) error {
	if len(in.Tools) == 0 {
		return ErrNoTools
	}
	if err := in.Version.Validate(nil); err != nil {
		return err
	}
	for _, f := range in.Version.Factors {
		if _, err := e.catalog.Lookup(f); err != nil {
			return fmt.Errorf("%w: %v", ErrMissingEvaluator, err)
		}
	}
	seen := make(map[string]bool, len(in.Tools))
	for _, t := range in.Tools {
		if seen[t.ID] {
			return fmt.Errorf("%w: %q", ErrDuplicateTool, t.ID)
		}
		seen[t.ID] = true
	}
	return nil
}

// evaluate runs every factor of v for one tool. A panicking evaluator scores
// zero for that factor only.
func (e *Engine) evaluate(ctx context.Context, m *model.ToolMetrics, v algorithm.Version, asOf time.Time) (factor.ScoreSet, []Audit) {
	scores := make(factor.ScoreSet, len(v.Factors))
	var audit []Audit
	for _, f := range v.Factors {
		ev, _ := e.catalog.Lookup(f)
		res, err := safeEvaluate(ev, m, asOf)
		if err != nil {
			scores[f] = 0
			audit = append(audit, Audit{ToolID: m.ID, Kind: AuditEvaluatorPanic, Factor: f, Detail: err.Error()})
			metrics.RecordEvaluatorPanic(string(f))
			e.log.Error(ctx, "evaluator panicked", logger.String("tool_id", m.ID), logger.String("factor", string(f)), logger.Error(err))
			continue
		}
		scores[f] = res.Score
		if res.Clamped() {
			audit = append(audit, Audit{ToolID: m.ID, Kind: AuditFactorClamp, Factor: f, Raw: res.Raw})
			metrics.RecordFactorClamp(string(f))
		}
	}
	return scores, audit
}

func safeEvaluate(ev factor.Evaluator, m *model.ToolMetrics, asOf time.Time) (res factor.Evaluation, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	res = ev.Evaluate(m, asOf)
	// evaluators are trusted to clamp, but a bad one must not poison the pass
	res.Score = factor.Clamp(res.Score, factor.MinScore, factor.MaxScore)
	return res, nil
}

// Fingerprint identifies a metrics snapshot's content. It is empty when the
// snapshot cannot be encoded (non-finite numbers), which disables reuse.
func Fingerprint(m *model.ToolMetrics) string {
	raw, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return strconv.FormatUint(xxhash.Sum64(raw), 16)
}
