package delta_test

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/okian/toolrank/internal/domain/algorithm"
	"github.com/okian/toolrank/internal/domain/delta"
	"github.com/okian/toolrank/internal/domain/factor"
	. "github.com/smartystreets/goconvey/convey"
)

var at = time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC)

func latest() algorithm.Version {
	for _, v := range algorithm.Builtin() {
		if v.ID == algorithm.Latest {
			return v
		}
	}
	panic("latest version missing")
}

func uniform(v algorithm.Version, score float64) factor.ScoreSet {
	s := make(factor.ScoreSet, len(v.Factors))
	for _, f := range v.Factors {
		s[f] = score
	}
	return s
}

func TestFreezeBaseline(t *testing.T) {
	Convey("Given evaluated scores with an extra factor", t, func() {
		v := latest()
		scores := uniform(v, 50)
		scores["legacy"] = 99
		b := delta.FreezeBaseline(scores, v, at)

		Convey("Then only the version's factors are frozen", func() {
			So(b.Version, ShouldEqual, v.ID)
			So(len(b.Factors), ShouldEqual, len(v.Factors))
			So(b.Overall, ShouldAlmostEqual, 50, 1e-9)
		})
	})
}

func TestApplyDelta(t *testing.T) {
	v := latest()

	Convey("Given many small positive events", t, func() {
		b := delta.FreezeBaseline(uniform(v, 40), v, at)
		d := delta.Empty(v)
		var clamps []delta.Clamp
		for i := 0; i < 100; i++ {
			d, clamps = delta.ApplyDelta(v, b, d, factor.ScoreSet{factor.MarketTraction: 1.5})
		}

		Convey("Then the factor delta stops at the version cap", func() {
			So(d.Factors[factor.MarketTraction], ShouldEqual, v.Cap())
			So(clamps, ShouldHaveLength, 1)
			So(clamps[0].Factor, ShouldEqual, factor.MarketTraction)
		})
	})

	Convey("Given a baseline near the top of the range", t, func() {
		b := delta.FreezeBaseline(uniform(v, 90), v, at)
		d, clamps := delta.ApplyDelta(v, b, delta.Empty(v), factor.ScoreSet{factor.Innovation: 20, factor.AgenticCapability: -200})
		cur := delta.Compose(b, d)

		Convey("Then headroom keeps every current factor in range", func() {
			So(d.Factors[factor.Innovation], ShouldEqual, 10)
			So(d.Factors[factor.AgenticCapability], ShouldEqual, -v.Cap())
			So(clamps, ShouldHaveLength, 2)
			So(cur.Factors[factor.Innovation], ShouldEqual, 100)
			So(cur.Factors.InRange(), ShouldBeTrue)
		})
	})

	Convey("Given adjustments for factors outside the version or non-finite values", t, func() {
		b := delta.FreezeBaseline(uniform(v, 50), v, at)
		d, _ := delta.ApplyDelta(v, b, delta.Empty(v), factor.ScoreSet{"unknown": 5, factor.Innovation: math.NaN()})

		Convey("Then they are ignored", func() {
			So(d.Overall, ShouldEqual, 0)
			_, ok := d.Factors["unknown"]
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given a composer with its own default cap", t, func() {
		v2 := v.Clone()
		v2.DeltaCap = 0
		c := delta.NewComposer(5)
		b := delta.FreezeBaseline(uniform(v2, 50), v2, at)
		d, _ := c.ApplyDelta(v2, b, delta.Empty(v2), factor.ScoreSet{factor.Innovation: 12})

		Convey("Then the fallback cap applies", func() {
			So(d.Factors[factor.Innovation], ShouldEqual, 5)
		})
	})
}

func TestCurrentIsBaselinePlusDelta(t *testing.T) {
	Convey("Given random baselines and random event streams", t, func() {
		rng := rand.New(rand.NewPCG(7, 11))
		for _, v := range algorithm.Builtin() {
			for trial := 0; trial < 50; trial++ {
				scores := make(factor.ScoreSet)
				for _, f := range v.Factors {
					scores[f] = rng.Float64() * 100
				}
				state := delta.State{ToolID: "t", Baseline: delta.FreezeBaseline(scores, v, at), Delta: delta.Empty(v)}
				for e := 0; e < 20; e++ {
					f := v.Factors[rng.IntN(len(v.Factors))]
					state, _ = state.Apply(delta.NewComposer(0), v, factor.ScoreSet{f: (rng.Float64() - 0.4) * 40}, at)
				}
				cur := state.Current()

				So(cur.Overall == state.Baseline.Overall+state.Delta.Overall, ShouldBeTrue)
				So(cur.Overall, ShouldBeBetweenOrEqual, 0, 100)
				So(cur.Factors.InRange(), ShouldBeTrue)
				So(cur.Overall, ShouldAlmostEqual, algorithm.Aggregate(cur.Factors, v), 1e-9)
				So(state.Delta.Events, ShouldEqual, 20)
			}
		}
	})
}
