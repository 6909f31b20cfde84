package selection_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/prefrank/internal/domain/selection"
	"github.com/okian/prefrank/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func pool(n int) []types.Candidate {
	out := make([]types.Candidate, n)
	for i := range out {
		out[i] = types.Candidate{ID: fmt.Sprintf("p%d", i+1), Title: fmt.Sprintf("Project %d", i+1), Kind: types.KindProject}
	}
	return out
}

func ids(cs []types.Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func TestManager_InitialPolicy(t *testing.T) {
	Convey("Given a candidate pool", t, func() {
		Convey("When the pool fits within the bound and the policy is default_all", func() {
			m := selection.New(pool(3))

			Convey("Then every candidate should start selected", func() {
				So(m.Len(), ShouldEqual, 3)
				So(m.RequiresChoice(), ShouldBeFalse)
				So(ids(m.Selected()), ShouldResemble, []string{"p1", "p2", "p3"})
			})
		})

		Convey("When the pool exceeds the bound", func() {
			m := selection.New(pool(7))

			Convey("Then the selection should start empty", func() {
				So(m.Len(), ShouldEqual, 0)
				So(m.RequiresChoice(), ShouldBeTrue)
			})
		})

		Convey("When the policy is explicit", func() {
			m := selection.New(pool(3), selection.WithPolicy(selection.PolicyExplicit))

			Convey("Then even a small pool should start empty", func() {
				So(m.Len(), ShouldEqual, 0)
			})
		})

		Convey("When the pool contains duplicate ids", func() {
			p := append(pool(2), types.Candidate{ID: "p1", Title: "dup"})
			m := selection.New(p)

			Convey("Then duplicates should be dropped", func() {
				So(m.Pool(), ShouldHaveLength, 2)
			})
		})
	})
}

func TestManager_Toggle(t *testing.T) {
	Convey("Given a manager over a pool of seven", t, func() {
		m := selection.New(pool(7))

		Convey("When toggling an absent candidate", func() {
			on, err := m.Toggle("p3")

			Convey("Then it should be added", func() {
				So(err, ShouldBeNil)
				So(on, ShouldBeTrue)
				So(m.Contains("p3"), ShouldBeTrue)
			})

			Convey("And toggling it again should remove it", func() {
				on, err := m.Toggle("p3")
				So(err, ShouldBeNil)
				So(on, ShouldBeFalse)
				So(m.Len(), ShouldEqual, 0)
			})
		})

		Convey("When the selection is full", func() {
			for _, id := range []string{"p1", "p2", "p3", "p4", "p5"} {
				_, err := m.Toggle(id)
				So(err, ShouldBeNil)
			}
			on, err := m.Toggle("p6")

			Convey("Then adding should be rejected without changing the set", func() {
				So(errors.Is(err, selection.ErrSelectionFull), ShouldBeTrue)
				So(on, ShouldBeFalse)
				So(m.Len(), ShouldEqual, 5)
				So(m.Contains("p6"), ShouldBeFalse)
			})

			Convey("And removing a member should still work", func() {
				_, err := m.Toggle("p1")
				So(err, ShouldBeNil)
				So(m.Len(), ShouldEqual, 4)
			})
		})

		Convey("When toggling an id outside the pool", func() {
			_, err := m.Toggle("nope")

			Convey("Then it should be rejected", func() {
				So(errors.Is(err, selection.ErrUnknownCandidate), ShouldBeTrue)
				So(m.Len(), ShouldEqual, 0)
			})
		})

		Convey("When selected candidates are returned", func() {
			_, _ = m.Toggle("p5")
			_, _ = m.Toggle("p2")

			Convey("Then they should come back in pool order", func() {
				So(ids(m.Selected()), ShouldResemble, []string{"p2", "p5"})
			})
		})

		Convey("When clearing", func() {
			_, _ = m.Toggle("p1")
			m.Clear()

			Convey("Then the selection should be empty", func() {
				So(m.Len(), ShouldEqual, 0)
			})
		})
	})
}

func TestManager_Remove(t *testing.T) {
	Convey("Given a manager with a selected candidate", t, func() {
		m := selection.New(pool(6))
		_, _ = m.Toggle("p2")
		_, _ = m.Toggle("p4")

		Convey("When the candidate is removed from the pool", func() {
			m.Remove("p2")

			Convey("Then it should leave both pool and selection", func() {
				So(m.Contains("p2"), ShouldBeFalse)
				So(ids(m.Pool()), ShouldResemble, []string{"p1", "p3", "p4", "p5", "p6"})
				So(ids(m.Selected()), ShouldResemble, []string{"p4"})
				So(m.RequiresChoice(), ShouldBeFalse)
			})

			Convey("And later candidates should still toggle", func() {
				on, err := m.Toggle("p6")
				So(err, ShouldBeNil)
				So(on, ShouldBeTrue)
			})
		})
	})
}

func TestManager_ConcurrentToggles(t *testing.T) {
	Convey("Given a manager over a large pool", t, func() {
		m := selection.New(pool(40), selection.WithMax(5))

		Convey("When many goroutines toggle interleaved candidates", func() {
			var wg sync.WaitGroup
			var mu sync.Mutex
			maxSeen := 0
			for g := 0; g < 16; g++ {
				wg.Add(1)
				go func(g int) {
					defer wg.Done()
					for i := 0; i < 200; i++ {
						_, _ = m.Toggle(fmt.Sprintf("p%d", (g*7+i)%40+1))
						n := m.Len()
						mu.Lock()
						if n > maxSeen {
							maxSeen = n
						}
						mu.Unlock()
					}
				}(g)
			}
			wg.Wait()

			Convey("Then the bound should never be exceeded", func() {
				So(maxSeen, ShouldBeLessThanOrEqualTo, 5)
				So(m.Len(), ShouldBeLessThanOrEqualTo, 5)
				So(len(m.Selected()), ShouldEqual, m.Len())
			})
		})
	})
}

func TestParsePolicy(t *testing.T) {
	Convey("Given policy strings", t, func() {
		So(selection.ParsePolicy("explicit"), ShouldEqual, selection.PolicyExplicit)
		So(selection.ParsePolicy("default_all"), ShouldEqual, selection.PolicyDefaultAll)
		So(selection.ParsePolicy("bogus"), ShouldEqual, selection.PolicyDefaultAll)
	})
}
