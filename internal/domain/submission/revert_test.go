package submission_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/prefrank/internal/domain/submission"
	"github.com/okian/prefrank/internal/domain/workflow"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCoordinator_Revert(t *testing.T) {
	ctx := context.Background()

	Convey("Given a submitted ranking C, A, B", t, func() {
		f := newFixture("C", "A", "B")
		f.annotateAll()
		So(f.coord.Submit(ctx), ShouldBeNil)
		f.store.calls = nil

		Convey("When the actor confirms the revert", func() {
			err := f.coord.Revert(ctx)

			Convey("Then every row should be deleted in rank order and the lock cleared", func() {
				So(err, ShouldBeNil)
				So(f.store.mutatingCalls(), ShouldResemble, []string{"delete:C", "delete:A", "delete:B", "unlock"})
				sub, err := f.store.ExistingSubmission(ctx, scope)
				So(err, ShouldBeNil)
				So(sub.Empty(), ShouldBeTrue)
			})

			Convey("And local state should be editable and empty", func() {
				So(f.coord.State(), ShouldEqual, workflow.StateEditable)
				So(f.list.Len(), ShouldEqual, 0)
				So(f.list.Locked(), ShouldBeFalse)
				_, ok, _ := f.markers.Get(ctx, scope)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the actor declines the revert", func() {
			f.confirm.replies = []bool{false}
			err := f.coord.Revert(ctx)

			Convey("Then the ranking should stay locked and untouched", func() {
				So(errors.Is(err, submission.ErrCancelled), ShouldBeTrue)
				So(f.store.mutatingCalls(), ShouldBeEmpty)
				So(f.coord.State(), ShouldEqual, workflow.StateLocked)
			})
		})

		Convey("When a delete fails midway", func() {
			f.store.failNext("delete:A", 1)
			err := f.coord.Revert(ctx)

			Convey("Then the ranking should stay locked with the error surfaced", func() {
				var pf *submission.PartialFailureError
				So(errors.As(err, &pf), ShouldBeTrue)
				So(pf.Op, ShouldEqual, submission.OpDelete)
				So(pf.CandidateID, ShouldEqual, "A")
				So(pf.Succeeded, ShouldResemble, []string{"C"})
				So(f.coord.State(), ShouldEqual, workflow.StateLocked)
				So(f.coord.LastError(), ShouldNotBeNil)
				So(f.list.Len(), ShouldEqual, 3)
				So(f.list.Locked(), ShouldBeTrue)
				_, ok, _ := f.markers.Get(ctx, scope)
				So(ok, ShouldBeTrue)
			})

			Convey("And retrying should finish the revert", func() {
				So(f.coord.Revert(ctx), ShouldBeNil)
				rows, locked := f.store.snapshot()
				So(rows, ShouldBeEmpty)
				So(locked, ShouldBeFalse)
				So(f.coord.State(), ShouldEqual, workflow.StateEditable)
			})
		})

		Convey("When the session has expired", func() {
			f.session.authenticated = false
			err := f.coord.Revert(ctx)

			Convey("Then nothing should be deleted", func() {
				So(errors.Is(err, submission.ErrSessionExpired), ShouldBeTrue)
				So(f.store.mutatingCalls(), ShouldBeEmpty)
				So(f.coord.State(), ShouldEqual, workflow.StateLocked)
			})
		})
	})

	Convey("Given an editable ranking", t, func() {
		f := newFixture("A")

		Convey("When revert is requested", func() {
			err := f.coord.Revert(ctx)

			Convey("Then it should be rejected without prompting", func() {
				So(errors.Is(err, submission.ErrNotLocked), ShouldBeTrue)
				So(f.confirm.prompts, ShouldBeEmpty)
			})
		})
	})
}
