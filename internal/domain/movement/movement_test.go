package movement_test

import (
	"testing"

	"github.com/okian/toolrank/internal/domain/movement"
	. "github.com/smartystreets/goconvey/convey"
)

func placements(ids ...string) []movement.Placement {
	out := make([]movement.Placement, len(ids))
	for i, id := range ids {
		out[i] = movement.Placement{ToolID: id, Position: i + 1}
	}
	return out
}

func find(infos []movement.Info, id string) (movement.Info, int) {
	n := 0
	var hit movement.Info
	for _, i := range infos {
		if i.ToolID == id {
			hit = i
			n++
		}
	}
	return hit, n
}

func TestDiff(t *testing.T) {
	Convey("Given a tool that climbed from 8th to 3rd", t, func() {
		prev := placements("a", "b", "c", "d", "e", "f", "g", "climber")
		cur := placements("a", "b", "climber", "c", "d", "e", "f", "g")
		infos := movement.Diff(cur, prev)

		Convey("Then it reports +5 up", func() {
			m, _ := find(infos, "climber")
			So(m.Class, ShouldEqual, movement.Up)
			So(*m.Change, ShouldEqual, 5)
			So(m.PreviousPosition, ShouldEqual, 8)
		})

		Convey("Then displaced tools move down and the top stays", func() {
			c, _ := find(infos, "c")
			So(c.Class, ShouldEqual, movement.Down)
			So(*c.Change, ShouldEqual, -1)
			a, _ := find(infos, "a")
			So(a.Class, ShouldEqual, movement.Same)
			So(*a.Change, ShouldEqual, 0)
		})
	})

	Convey("Given a tool that left the ranking", t, func() {
		prev := placements("a", "gone", "b")
		cur := placements("a", "b", "fresh")
		infos := movement.Diff(cur, prev)

		Convey("Then it appears exactly once as dropped at the end", func() {
			m, n := find(infos, "gone")
			So(n, ShouldEqual, 1)
			So(m.Class, ShouldEqual, movement.Dropped)
			So(m.PreviousPosition, ShouldEqual, 2)
			So(m.Change, ShouldBeNil)
			So(infos[len(infos)-1].ToolID, ShouldEqual, "gone")
		})

		Convey("Then a tool with no prior record is new", func() {
			m, _ := find(infos, "fresh")
			So(m.Class, ShouldEqual, movement.New)
			So(m.Change, ShouldBeNil)
		})
	})

	Convey("Given the first period ever", t, func() {
		infos := movement.Diff(placements("a", "b", "c"), nil)

		Convey("Then everything is new without a numeric change", func() {
			So(movement.Counts(infos), ShouldResemble, map[movement.Class]int{movement.New: 3})
			for _, i := range infos {
				So(i.Change, ShouldBeNil)
			}
		})
	})

	Convey("Given history for a tool absent last period", t, func() {
		prev := placements("a", "b")
		cur := placements("a", "back", "b")
		infos := movement.Diff(cur, prev, movement.WithHistory(map[string]int{"back": 4}))

		Convey("Then it is returning with its last known position", func() {
			m, _ := find(infos, "back")
			So(m.Class, ShouldEqual, movement.Returning)
			So(m.PreviousPosition, ShouldEqual, 4)
			So(m.Change, ShouldBeNil)
		})
	})
}
