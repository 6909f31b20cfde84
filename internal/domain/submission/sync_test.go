package submission_test

import (
	"context"
	"testing"

	"github.com/okian/prefrank/internal/domain/ranking"
	"github.com/okian/prefrank/internal/domain/submission"
	"github.com/okian/prefrank/internal/domain/types"
	"github.com/okian/prefrank/internal/domain/workflow"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCoordinator_Sync(t *testing.T) {
	ctx := context.Background()

	Convey("Given a ranking submitted from another session", t, func() {
		f := newFixture("C", "A", "B")
		f.annotateAll()
		So(f.coord.Submit(ctx), ShouldBeNil)

		// a fresh view on the same store with the local marker cleared
		markers := newFakeMarkers()
		list := ranking.NewList()
		c, err := submission.New(scope, f.store, list, &confirmer{}, submission.WithMarkerCache(markers))
		So(err, ShouldBeNil)
		_, hinted := c.Hinted(ctx)
		So(hinted, ShouldBeFalse)

		Convey("When the view syncs", func() {
			sub, err := c.Sync(ctx, cands("A", "B", "C"))

			Convey("Then it should reconstruct the locked ranking from the store", func() {
				So(err, ShouldBeNil)
				So(sub.Locked, ShouldBeTrue)
				So(c.State(), ShouldEqual, workflow.StateLocked)
				So(list.IDs(), ShouldResemble, []string{"C", "A", "B"})
				So(list.Locked(), ShouldBeTrue)
				a, _ := list.Annotation("A")
				So(a, ShouldEqual, "because A")
			})

			Convey("And the marker should be restored", func() {
				m, ok := c.Hinted(ctx)
				So(ok, ShouldBeTrue)
				So(m.Items, ShouldEqual, 3)
			})
		})
	})

	Convey("Given a stale marker and an interrupted submission", t, func() {
		store := newFakeStore()
		store.rows["B"] = types.RankedItem{CandidateID: "B", Position: 1, Annotation: "b"}
		markers := newFakeMarkers()
		So(markers.Put(ctx, scope, submission.Marker{Items: 2}), ShouldBeNil)
		list := ranking.NewList()
		c, err := submission.New(scope, store, list, &confirmer{}, submission.WithMarkerCache(markers))
		So(err, ShouldBeNil)

		Convey("When the view syncs", func() {
			sub, err := c.Sync(ctx, cands("A", "B"))

			Convey("Then the store should win over the marker", func() {
				So(err, ShouldBeNil)
				So(sub.Locked, ShouldBeFalse)
				So(c.State(), ShouldEqual, workflow.StateEditable)
				_, ok, _ := markers.Get(ctx, scope)
				So(ok, ShouldBeFalse)
			})

			Convey("And the persisted rows should be resumable", func() {
				So(list.IDs(), ShouldResemble, []string{"B"})
				So(list.Locked(), ShouldBeFalse)
			})
		})
	})
}
