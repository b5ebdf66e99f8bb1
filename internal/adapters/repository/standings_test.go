package repository_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"testing"
	"time"

	"github.com/okian/toolrank/internal/adapters/repository"
	"github.com/okian/toolrank/internal/domain/tiebreak"
	"github.com/okian/toolrank/internal/domain/tier"
	. "github.com/smartystreets/goconvey/convey"
)

func row(id string, overall float64, features int) repository.Standing {
	return repository.Standing{
		ToolID:      id,
		Name:        id,
		Overall:     overall,
		Tiebreakers: tiebreak.Keys{Name: id, FeatureCount: features, PricingOrdinal: 4},
	}
}

func TestStandings(t *testing.T) {
	ctx := context.Background()

	Convey("Given live standings", t, func() {
		s := repository.NewStandings(ctx, repository.WithSnapshotInterval(time.Hour))
		defer s.Close()

		s.Upsert(ctx, row("cursor", 81, 10))
		s.Upsert(ctx, row("copilot", 84, 12))
		s.Upsert(ctx, row("aider", 81, 14))
		s.Upsert(ctx, row("cline", 60, 3))

		Convey("Then TopN follows score then tiebreakers", func() {
			top, err := s.TopN(ctx, 10)
			So(err, ShouldBeNil)
			So(top, ShouldHaveLength, 4)
			got := []string{top[0].ToolID, top[1].ToolID, top[2].ToolID, top[3].ToolID}
			So(got, ShouldResemble, []string{"copilot", "aider", "cursor", "cline"})
			So(top[0].Position, ShouldEqual, 1)
			So(top[0].Tier, ShouldEqual, tier.S)
		})

		Convey("Then Rank agrees with TopN", func() {
			r, err := s.Rank(ctx, "cursor")
			So(err, ShouldBeNil)
			So(r.Position, ShouldEqual, 3)
		})

		Convey("When a tool's score moves", func() {
			s.Upsert(ctx, row("cline", 99, 3))

			Convey("Then it is re-placed without duplicates", func() {
				r, _ := s.Rank(ctx, "cline")
				So(r.Position, ShouldEqual, 1)
				So(s.Count(ctx), ShouldEqual, 4)
			})
		})

		Convey("Then bad requests fail cleanly", func() {
			_, err := s.TopN(ctx, 0)
			So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)
			_, err = s.Rank(ctx, "missing")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When the index is reset", func() {
			s.Reset(ctx, []repository.Standing{row("x", 10, 0), row("y", 20, 0)})

			Convey("Then only the new rows remain and the snapshot follows", func() {
				So(s.Count(ctx), ShouldEqual, 2)
				snap := s.Snapshot()
				So(snap.Total, ShouldEqual, 2)
				So(snap.Position["y"], ShouldEqual, 1)
			})
		})
	})

	Convey("Given standings with a custom tier policy and a small read cache", t, func() {
		policy := tier.Policy{Boundaries: []tier.Boundary{{Tier: tier.S, MaxPosition: 1}}, Rest: tier.B}
		s := repository.NewStandings(ctx,
			repository.WithSnapshotInterval(time.Hour),
			repository.WithTierPolicy(policy),
			repository.WithTopCacheSize(2),
		)
		defer s.Close()
		s.Reset(ctx, []repository.Standing{row("x", 10, 0), row("y", 20, 0), row("z", 30, 0)})

		Convey("Then positions are labelled by that policy", func() {
			top, err := s.TopN(ctx, 3)
			So(err, ShouldBeNil)
			So(top[0].Tier, ShouldEqual, tier.S)
			So(top[1].Tier, ShouldEqual, tier.B)
			r, _ := s.Rank(ctx, "x")
			So(r.Tier, ShouldEqual, tier.B)
		})

		Convey("Then the published view keeps only the leading rows", func() {
			snap := s.Snapshot()
			So(snap.Total, ShouldEqual, 3)
			So(snap.Top, ShouldHaveLength, 2)
			So(snap.Position["x"], ShouldEqual, 3)
		})
	})

	Convey("Given many random updates", t, func() {
		s := repository.NewStandings(ctx)
		defer s.Close()
		rng := rand.New(rand.NewPCG(3, 5))
		want := map[string]float64{}
		for i := 0; i < 2000; i++ {
			id := fmt.Sprintf("tool-%03d", rng.IntN(300))
			score := float64(rng.IntN(10000)) / 100
			want[id] = score
			s.Upsert(ctx, row(id, score, 0))
		}

		Convey("Then every rank matches a full sort", func() {
			ids := make([]string, 0, len(want))
			for id := range want {
				ids = append(ids, id)
			}
			r := tiebreak.Resolver{}
			sort.Slice(ids, func(i, j int) bool {
				return r.Less(row(ids[i], want[ids[i]], 0).Candidate(), row(ids[j], want[ids[j]], 0).Candidate())
			})
			top, err := s.TopN(ctx, len(ids))
			So(err, ShouldBeNil)
			So(top, ShouldHaveLength, len(ids))
			for i, id := range ids {
				So(top[i].ToolID, ShouldEqual, id)
				rk, _ := s.Rank(ctx, id)
				So(rk.Position, ShouldEqual, i+1)
			}
		})
	})
}
