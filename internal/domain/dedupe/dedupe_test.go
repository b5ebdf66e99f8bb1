package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/toolrank/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new deduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("When an event id is recorded twice", func() {
			first := d.SeenAndRecord(ctx, "funding-cursor-2026-09")
			second := d.SeenAndRecord(ctx, "funding-cursor-2026-09")

			Convey("Then only the second call reports it as seen", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a recorded id is unrecorded", func() {
			d.SeenAndRecord(ctx, "launch-1")
			d.Unrecord(ctx, "launch-1")
			d.Unrecord(ctx, "missing")

			Convey("Then it can be recorded again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "launch-1"), ShouldBeFalse)
			})
		})

		Convey("When the empty id is used", func() {
			So(d.SeenAndRecord(ctx, ""), ShouldBeFalse)

			Convey("Then it behaves like any other id", func() {
				So(d.SeenAndRecord(ctx, ""), ShouldBeTrue)
			})
		})
	})

	Convey("Given a bounded deduper of three", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for _, id := range []string{"e1", "e2", "e3", "e4"} {
			So(d.SeenAndRecord(ctx, id), ShouldBeFalse)
		}

		Convey("Then the oldest id is forgotten first", func() {
			So(d.Size(), ShouldEqual, 3)
			So(d.SeenAndRecord(ctx, "e4"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "e3"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "e1"), ShouldBeFalse)
			So(d.Size(), ShouldEqual, 3)
		})

		Convey("Then an unrecorded slot is reused without losing newer ids", func() {
			d.Unrecord(ctx, "e3")
			So(d.Size(), ShouldEqual, 2)
			So(d.SeenAndRecord(ctx, "e5"), ShouldBeFalse)
			So(d.SeenAndRecord(ctx, "e4"), ShouldBeTrue)
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		for i := 0; i < 1000; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("e-%d", i))
		}

		Convey("Then nothing is evicted", func() {
			So(d.Size(), ShouldEqual, 1000)
			So(d.SeenAndRecord(ctx, "e-0"), ShouldBeTrue)
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given concurrent writers on one deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1000))
		var wg sync.WaitGroup
		for g := 0; g < 10; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					d.SeenAndRecord(context.Background(), fmt.Sprintf("e-%d-%d", g, j))
				}
			}(g)
		}
		wg.Wait()

		Convey("Then every id is recorded exactly once", func() {
			So(d.Size(), ShouldEqual, 1000)
		})
	})
}
