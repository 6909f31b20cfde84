package ranking_test

import (
	"errors"
	"testing"

	"github.com/okian/prefrank/internal/domain/ranking"
	. "github.com/smartystreets/goconvey/convey"
)

func TestList_Annotations(t *testing.T) {
	Convey("Given a list A, B, C", t, func() {
		l := ranking.NewList()
		So(l.Initialize(cands("A", "B", "C")), ShouldBeNil)

		Convey("When nothing is annotated", func() {
			Convey("Then every item should be incomplete", func() {
				So(l.Incomplete(), ShouldResemble, []string{"A", "B", "C"})
				So(l.Complete(), ShouldBeFalse)
			})
		})

		Convey("When one item is annotated", func() {
			So(l.SetAnnotation("B", "why B"), ShouldBeNil)

			Convey("Then only that item should change", func() {
				text, ok := l.Annotation("B")
				So(ok, ShouldBeTrue)
				So(text, ShouldEqual, "why B")
				other, _ := l.Annotation("A")
				So(other, ShouldEqual, "")
				So(l.Incomplete(), ShouldResemble, []string{"A", "C"})
			})
		})

		Convey("When an annotation is whitespace only", func() {
			for _, id := range []string{"A", "B", "C"} {
				So(l.SetAnnotation(id, "ok"), ShouldBeNil)
			}
			So(l.SetAnnotation("C", "  \n\t "), ShouldBeNil)

			Convey("Then it should count as missing", func() {
				So(l.Incomplete(), ShouldResemble, []string{"C"})
			})
		})

		Convey("When every item is annotated", func() {
			for _, id := range []string{"A", "B", "C"} {
				So(l.SetAnnotation(id, "text "+id), ShouldBeNil)
			}

			Convey("Then the list should be complete", func() {
				So(l.Incomplete(), ShouldBeEmpty)
				So(l.Complete(), ShouldBeTrue)
			})
		})

		Convey("When annotating an unknown id", func() {
			err := l.SetAnnotation("Z", "x")

			Convey("Then it should fail", func() {
				So(errors.Is(err, ranking.ErrUnknownCandidate), ShouldBeTrue)
				_, ok := l.Annotation("Z")
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the list is locked", func() {
			So(l.SetAnnotation("A", "before"), ShouldBeNil)
			l.Lock()
			err := l.SetAnnotation("A", "after")

			Convey("Then the annotation should not change", func() {
				So(errors.Is(err, ranking.ErrLocked), ShouldBeTrue)
				text, _ := l.Annotation("A")
				So(text, ShouldEqual, "before")
			})
		})
	})
}
