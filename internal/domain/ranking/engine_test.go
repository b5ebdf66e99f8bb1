package ranking_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/okian/toolrank/internal/domain/algorithm"
	"github.com/okian/toolrank/internal/domain/delta"
	"github.com/okian/toolrank/internal/domain/factor"
	"github.com/okian/toolrank/internal/domain/model"
	"github.com/okian/toolrank/internal/domain/movement"
	"github.com/okian/toolrank/internal/domain/ranking"
	"github.com/okian/toolrank/internal/domain/tier"
	. "github.com/smartystreets/goconvey/convey"
)

var asOf = time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC)

func latest() algorithm.Version {
	r, err := algorithm.NewDefaultRegistry()
	if err != nil {
		panic(err)
	}
	v, err := r.Resolve(algorithm.Latest)
	if err != nil {
		panic(err)
	}
	return v
}

func tool(id, name string, features int) model.ToolMetrics {
	m := model.ToolMetrics{
		ID:          id,
		Name:        name,
		Category:    "ide",
		Description: "An AI coding assistant.",
		LaunchYear:  2024,
		PricingTier: model.PricingFreemium,
	}
	for i := 0; i < features; i++ {
		m.Features = append(m.Features, fmt.Sprintf("capability %d", i))
	}
	return m
}

func fleet(n int) []model.ToolMetrics {
	out := make([]model.ToolMetrics, n)
	for i := range out {
		m := tool(fmt.Sprintf("tool-%02d", i), fmt.Sprintf("Tool %02d", i), i%12)
		m.Signals.Users = float64(1000 * (i + 1))
		m.Signals.GitHubStars = float64(50 * i)
		m.Signals.SWEBenchScore = float64(i * 2)
		m.Signals.ReleasesLast90Days = float64(i % 5)
		out[i] = m
	}
	return out
}

type panicky struct{ inner factor.Evaluator }

func (p panicky) Factor() factor.Name { return factor.Innovation }

func (p panicky) Evaluate(m *model.ToolMetrics, at time.Time) factor.Evaluation {
	if m.ID == "bad" {
		panic("boom")
	}
	return p.inner.Evaluate(m, at)
}

func TestEngineTiebreakScenario(t *testing.T) {
	Convey("Given two tools with identical metrics", t, func() {
		e := ranking.NewEngine()
		res, err := e.Score(context.Background(), ranking.Input{
			PeriodID: "2026-W41",
			AsOf:     asOf,
			Version:  latest(),
			Tools:    []model.ToolMetrics{tool("b", "Beta Tool", 10), tool("a", "Alpha Tool", 10)},
		})
		So(err, ShouldBeNil)

		Convey("Then they tie on score and alphabetical order decides", func() {
			entries := res.Period.Entries
			So(entries[0].Overall, ShouldEqual, entries[1].Overall)
			So(entries[0].Name, ShouldEqual, "Alpha Tool")
			So(entries[0].Position, ShouldEqual, 1)
			So(entries[1].Name, ShouldEqual, "Beta Tool")
			So(entries[1].Position, ShouldEqual, 2)
		})

		Convey("Then the innovation factor follows its formula", func() {
			// 30 base + 20 features + 15 maturity
			So(res.Period.Entries[0].Factors[factor.Innovation], ShouldEqual, 65)
		})
	})
}

func TestEngineIdempotence(t *testing.T) {
	Convey("Given the same inputs scored twice in different input orders", t, func() {
		e := ranking.NewEngine(ranking.WithWorkers(4))
		tools := fleet(30)
		reversed := make([]model.ToolMetrics, len(tools))
		for i := range tools {
			reversed[len(tools)-1-i] = tools[i]
		}
		adj := map[string]factor.ScoreSet{"tool-03": {factor.MarketTraction: 12.5}, "tool-07": {factor.PlatformResilience: -4}}

		first, err := e.Score(context.Background(), ranking.Input{PeriodID: "p", AsOf: asOf, Version: latest(), Tools: tools, Adjustments: adj})
		So(err, ShouldBeNil)
		second, err := e.Score(context.Background(), ranking.Input{PeriodID: "p", AsOf: asOf, Version: latest(), Tools: reversed, Adjustments: adj})
		So(err, ShouldBeNil)

		Convey("Then the periods are byte-identical", func() {
			a, _ := json.Marshal(first.Period)
			b, _ := json.Marshal(second.Period)
			So(string(a), ShouldEqual, string(b))
		})
	})
}

func TestEngineBounds(t *testing.T) {
	Convey("Given extreme tools and large adjustments under every version", t, func() {
		tools := fleet(10)
		tools[0].Signals.Users = math.Inf(1)
		tools[1].Signals.SWEBenchScore = 1e9
		tools[2].Features = make([]string, 10000)
		for i := range tools[2].Features {
			tools[2].Features[i] = "autonomous agent"
		}
		adj := map[string]factor.ScoreSet{}
		for _, m := range tools {
			s := factor.ScoreSet{}
			for _, f := range factor.All {
				s[f] = 500
			}
			adj[m.ID] = s
		}

		for _, v := range algorithm.Builtin() {
			res, err := ranking.NewEngine().Score(context.Background(), ranking.Input{PeriodID: v.ID, AsOf: asOf, Version: v, Tools: tools, Adjustments: adj})
			So(err, ShouldBeNil)

			for _, en := range res.Period.Entries {
				So(en.Overall, ShouldBeBetweenOrEqual, 0, 100)
				So(en.Factors.InRange(), ShouldBeTrue)
				So(en.Overall == en.BaselineOverall+en.DeltaOverall, ShouldBeTrue)
			}
			for _, st := range res.States {
				So(st.Current().Overall == st.Baseline.Overall+st.Delta.Overall, ShouldBeTrue)
			}
		}
	})
}

func TestEngineIsolation(t *testing.T) {
	Convey("Given an evaluator that panics for one tool", t, func() {
		catalog := factor.DefaultCatalog().With(panicky{inner: factor.NewInnovation()})
		e := ranking.NewEngine(ranking.WithCatalog(catalog))
		tools := []model.ToolMetrics{tool("good", "Good", 5), tool("bad", "Bad", 5)}
		res, err := e.Score(context.Background(), ranking.Input{PeriodID: "p", AsOf: asOf, Version: latest(), Tools: tools})

		Convey("Then the pass completes and only that factor is zeroed", func() {
			So(err, ShouldBeNil)
			bad, _ := res.Period.Find("bad")
			good, _ := res.Period.Find("good")
			So(bad.Factors[factor.Innovation], ShouldEqual, 0)
			So(good.Factors[factor.Innovation], ShouldBeGreaterThan, 0)
			So(bad.Factors[factor.AgenticCapability], ShouldEqual, good.Factors[factor.AgenticCapability])

			var panics []ranking.Audit
			for _, a := range res.Audit {
				if a.Kind == ranking.AuditEvaluatorPanic {
					panics = append(panics, a)
				}
			}
			So(panics, ShouldHaveLength, 1)
			So(panics[0].ToolID, ShouldEqual, "bad")
		})
	})
}

func TestEngineTiersAndMovement(t *testing.T) {
	Convey("Given forty tools and a previous period", t, func() {
		e := ranking.NewEngine()
		v := latest()
		first, err := e.Score(context.Background(), ranking.Input{PeriodID: "2026-W40", AsOf: asOf, Version: v, Tools: fleet(40)})
		So(err, ShouldBeNil)

		Convey("Then tiers follow positions", func() {
			for _, en := range first.Period.Entries {
				So(en.Tier, ShouldEqual, tier.Classify(en.Position, 40))
				So(en.Movement.Class, ShouldEqual, movement.New)
			}
		})

		Convey("Then the next period reports drops and moves", func() {
			next := fleet(40)[1:]
			second, err := e.Score(context.Background(), ranking.Input{
				PeriodID: "2026-W41", AsOf: asOf.AddDate(0, 0, 7), Version: v, Tools: next, Previous: &first.Period,
			})
			So(err, ShouldBeNil)
			So(second.Period.Dropped, ShouldHaveLength, 1)
			So(second.Period.Dropped[0].ToolID, ShouldEqual, "tool-00")
			counts := movement.Counts(append(entriesMovement(second.Period), second.Period.Dropped...))
			So(counts[movement.New], ShouldEqual, 0)
			So(counts[movement.Dropped], ShouldEqual, 1)
		})
	})
}

func entriesMovement(p ranking.Period) []movement.Info {
	out := make([]movement.Info, len(p.Entries))
	for i, e := range p.Entries {
		out[i] = e.Movement
	}
	return out
}

func TestEngineBaselineReuse(t *testing.T) {
	Convey("Given a stored baseline for unchanged metrics", t, func() {
		e := ranking.NewEngine()
		v := latest()
		tools := fleet(3)
		first, err := e.Score(context.Background(), ranking.Input{PeriodID: "p1", AsOf: asOf, Version: v, Tools: tools})
		So(err, ShouldBeNil)

		stored := first.States[0].Baseline
		stored.Overall = 77
		changed := fleet(3)
		changed[1].Signals.Users *= 10

		second, err := e.Score(context.Background(), ranking.Input{
			PeriodID:  "p2",
			AsOf:      asOf.AddDate(1, 0, 0),
			Version:   v,
			Tools:     changed,
			Baselines: map[string]delta.Baseline{first.States[0].ToolID: stored},
		})
		So(err, ShouldBeNil)

		Convey("Then the frozen baseline is used as is", func() {
			en, _ := second.Period.Find(first.States[0].ToolID)
			So(en.BaselineOverall, ShouldEqual, 77)
		})
	})
}

func TestEngineErrors(t *testing.T) {
	e := ranking.NewEngine()

	Convey("Given invalid passes", t, func() {
		Convey("Then an empty tool list is rejected", func() {
			_, err := e.Score(context.Background(), ranking.Input{Version: latest()})
			So(err, ShouldEqual, ranking.ErrNoTools)
		})

		Convey("Then duplicate ids are rejected", func() {
			_, err := e.Score(context.Background(), ranking.Input{Version: latest(), Tools: []model.ToolMetrics{tool("x", "X", 1), tool("x", "X", 1)}})
			So(errors.Is(err, ranking.ErrDuplicateTool), ShouldBeTrue)
		})

		Convey("Then a broken version aborts before scoring", func() {
			v := latest()
			v.Weights[factor.Innovation] += 0.1
			_, err := e.Score(context.Background(), ranking.Input{Version: v, Tools: fleet(2)})
			So(errors.Is(err, algorithm.ErrWeightSum), ShouldBeTrue)
		})

		Convey("Then a cancelled context stops the pass", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := e.Score(ctx, ranking.Input{Version: latest(), Tools: fleet(5)})
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestEngineNonFiniteRaw(t *testing.T) {
	Convey("Given signals whose raw factor values overflow", t, func() {
		m := tool("overflow", "Overflow", 3)
		m.Signals.ReleasesLast90Days = 1e308
		inf := math.Inf(1)
		m.Signals.Sentiment = &inf
		res, err := ranking.NewEngine().Score(context.Background(), ranking.Input{PeriodID: "p", AsOf: asOf, Version: latest(), Tools: []model.ToolMetrics{m}})
		So(err, ShouldBeNil)

		Convey("Then the clamped factors are audited with encodable values", func() {
			en, _ := res.Period.Find("overflow")
			So(en.Factors[factor.DevelopmentVelocity], ShouldEqual, 100)
			So(en.Factors[factor.BusinessSentiment], ShouldEqual, 100)

			clamps := 0
			for _, a := range res.Audit {
				So(math.IsInf(a.Raw, 0) || math.IsNaN(a.Raw), ShouldBeFalse)
				if a.Kind == ranking.AuditFactorClamp && (a.Factor == factor.DevelopmentVelocity || a.Factor == factor.BusinessSentiment) {
					So(a.Detail, ShouldContainSubstring, "+Inf")
					clamps++
				}
			}
			So(clamps, ShouldEqual, 2)

			_, err := json.Marshal(res.Audit)
			So(err, ShouldBeNil)
		})
	})

	Convey("Given an audit with a NaN raw value and a detail", t, func() {
		a := ranking.Audit{ToolID: "t", Kind: ranking.AuditFactorClamp, Detail: "x", Raw: math.NaN()}.Encodable()

		Convey("Then the value moves into the detail", func() {
			So(a.Raw, ShouldEqual, 0)
			So(a.Detail, ShouldEqual, "x; raw NaN")
		})
	})
}

func TestEngineToleranceEdgeVersion(t *testing.T) {
	Convey("Given a version whose weights sum just above one", t, func() {
		r := algorithm.NewRegistry()
		v := algorithm.Version{
			ID:       "edge",
			Factors:  []factor.Name{factor.Innovation, factor.AgenticCapability},
			Weights:  map[factor.Name]float64{factor.Innovation: 0.5000005, factor.AgenticCapability: 0.5000005},
			DeltaCap: 100,
		}
		So(r.Register(v), ShouldBeNil)
		stored, err := r.Resolve("edge")
		So(err, ShouldBeNil)
		So(stored.WeightSum(), ShouldAlmostEqual, 1, 1e-15)

		tools := []model.ToolMetrics{tool("maxed", "Maxed", 8)}
		adj := map[string]factor.ScoreSet{"maxed": {factor.Innovation: 500, factor.AgenticCapability: 500}}

		Convey("Then a tool saturating both factors stays within the scale", func() {
			for _, in := range []algorithm.Version{v, stored} {
				res, err := ranking.NewEngine().Score(context.Background(), ranking.Input{PeriodID: "p", AsOf: asOf, Version: in, Tools: tools, Adjustments: adj})
				So(err, ShouldBeNil)
				en, _ := res.Period.Find("maxed")
				So(en.Overall, ShouldBeBetweenOrEqual, 0, 100)
				So(en.Overall, ShouldAlmostEqual, 100, 1e-9)
				So(en.Overall == en.BaselineOverall+en.DeltaOverall, ShouldBeTrue)
			}
		})
	})
}
