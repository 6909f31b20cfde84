package cli_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/prefrank/internal/adapters/http/api"
	"github.com/okian/prefrank/internal/adapters/repository"
	service "github.com/okian/prefrank/internal/app"
	"github.com/okian/prefrank/internal/cli"
	"github.com/okian/prefrank/internal/config"
	"github.com/okian/prefrank/internal/domain/submission"
	"github.com/okian/prefrank/internal/domain/types"
	"github.com/okian/prefrank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func seed() repository.Seed {
	return repository.Seed{
		Users: []repository.SeedUser{
			{ID: "alice", Name: "Alice", Email: "alice@example.org", RollNo: "R1", Code: "alice-code"},
			{ID: "grace", Name: "Grace", Email: "grace@example.org", IsMentor: true, Code: "grace-code"},
		},
		Projects: []repository.SeedProject{
			{ID: "A", Title: "Compilers", Mentors: []string{"grace"}},
			{ID: "B", Title: "Databases", Mentors: []string{"grace"}},
			{ID: "C", Title: "Networks"},
		},
		Wishlists: map[string][]string{"alice": {"A", "B", "C"}},
	}
}

// env is a running store plus a config pointing the CLI at it.
type env struct {
	svc *service.Service
	srv *httptest.Server
	cfg *config.Config
	dir string
}

func newEnv(t *testing.T) *env {
	svc := service.New(service.WithSeed(seed()), service.WithProgram("2025"))
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(context.Background(), mux)
	srv := httptest.NewServer(mux)

	dir := t.TempDir()
	cfg := config.New()
	cfg.APIBaseURL = srv.URL
	cfg.ProgramID = "2025"
	cfg.LocalPath = filepath.Join(dir, "client.db")
	cfg.RetryMaxAttempts = 2
	cfg.RetryInitialBackoffMS = 1
	return &env{svc: svc, srv: srv, cfg: cfg, dir: dir}
}

func (e *env) Close() {
	e.srv.Close()
	e.svc.Stop()
}

// run executes one CLI invocation with stdin and returns what it printed.
func (e *env) run(stdin string, args ...string) (string, error) {
	var out bytes.Buffer
	app := cli.New(e.cfg, cli.WithInput(strings.NewReader(stdin)), cli.WithOutput(&out))
	err := app.Run(context.Background(), args)
	return out.String(), err
}

func (e *env) writePlan(name, body string) string {
	path := filepath.Join(e.dir, name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		panic(err)
	}
	return path
}

const fullPlan = `
items:
  - id: C
    sop: why C
  - id: A
    sop: why A
  - id: B
    sop: why B
`

func TestCLI_StudentFlow(t *testing.T) {
	Convey("Given a signed in student", t, func() {
		e := newEnv(t)
		defer e.Close()

		out, err := e.run("", "login", "alice-code")
		So(err, ShouldBeNil)
		So(out, ShouldContainSubstring, "Signed in as Alice")
		scope := types.Scope{Flow: types.FlowStudent, ActorID: "alice", TargetID: "2025"}

		Convey("When the pool is shown", func() {
			out, err := e.run("", "pool")

			Convey("Then every wishlisted project should be preselected", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "3 candidate(s), choose up to 5")
				So(strings.Count(out, "[x]"), ShouldEqual, 3)
			})
		})

		Convey("When a plan is previewed", func() {
			plan := e.writePlan("partial.yaml", "items:\n  - id: B\n  - id: A\n    sop: why A\n")
			out, err := e.run("", "preview", "--plan", plan)

			Convey("Then the order and missing statements should be shown without writing", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "1. B  Databases")
				So(out, ShouldContainSubstring, "Missing a statement: B")
				sub, err := e.svc.Existing(context.Background(), scope)
				So(err, ShouldBeNil)
				So(sub.Empty(), ShouldBeTrue)
			})
		})

		Convey("When a plan is submitted and confirmed at the prompt", func() {
			plan := e.writePlan("plan.yaml", fullPlan)
			out, err := e.run("y\n", "submit", "--plan", plan)

			Convey("Then the store should hold the locked ranking", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "Proceed? [y/N]")
				So(out, ShouldContainSubstring, "Submitted 3 item(s)")
				sub, err := e.svc.Existing(context.Background(), scope)
				So(err, ShouldBeNil)
				So(sub.Locked, ShouldBeTrue)
				So(sub.Items[0], ShouldResemble, types.RankedItem{CandidateID: "C", Position: 1, Annotation: "why C"})
			})

			Convey("And status should list it as submitted", func() {
				out, err := e.run("", "status")
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "locked (submitted")
				So(out, ShouldContainSubstring, "1. C  Networks")
				So(out, ShouldContainSubstring, "why B")
			})

			Convey("And a second submit should be refused", func() {
				_, err := e.run("", "submit", "--plan", plan, "--yes")
				So(errors.Is(err, cli.ErrSubmitted), ShouldBeTrue)
			})

			Convey("And revert with --yes should clear it", func() {
				out, err := e.run("", "revert", "--yes")
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "editable again")
				sub, err := e.svc.Existing(context.Background(), scope)
				So(err, ShouldBeNil)
				So(sub.Empty(), ShouldBeTrue)
			})

			Convey("And a declined revert should leave it", func() {
				out, err := e.run("n\n", "revert")
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "Revert cancelled")
				sub, err := e.svc.Existing(context.Background(), scope)
				So(err, ShouldBeNil)
				So(sub.Locked, ShouldBeTrue)
			})
		})

		Convey("When the prompt is declined", func() {
			plan := e.writePlan("plan.yaml", fullPlan)
			out, err := e.run("\n", "submit", "--plan", plan)

			Convey("Then nothing should be sent", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "Submit cancelled")
				sub, err := e.svc.Existing(context.Background(), scope)
				So(err, ShouldBeNil)
				So(sub.Empty(), ShouldBeTrue)
			})
		})

		Convey("When the plan lacks a statement", func() {
			plan := e.writePlan("plan.yaml", "items:\n  - id: A\n  - id: B\n    sop: b\n")
			_, err := e.run("", "submit", "--plan", plan, "--yes")

			Convey("Then submit should name the incomplete item", func() {
				var inc *submission.IncompleteSubmissionError
				So(errors.As(err, &inc), ShouldBeTrue)
				So(inc.CandidateIDs, ShouldResemble, []string{"A"})
			})
		})

		Convey("When the plan names a project outside the pool", func() {
			plan := e.writePlan("plan.yaml", "items:\n  - id: Z\n    sop: z\n")
			_, err := e.run("", "submit", "--plan", plan, "--yes")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, `select "Z"`)
		})

		Convey("When the wishlist is toggled", func() {
			out, err := e.run("", "wishlist", "C")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "Removed C; wishlist holds 2 project(s)")
		})

		Convey("When the catalog and identity are listed", func() {
			out, err := e.run("", "catalog")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "Networks")

			out, err = e.run("", "whoami")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "roll no: R1")
		})

		Convey("When signed out", func() {
			_, err := e.run("", "logout")
			So(err, ShouldBeNil)
			_, err = e.run("", "pool")
			So(errors.Is(err, cli.ErrNotSignedIn), ShouldBeTrue)
		})
	})
}

func TestCLI_MentorFlow(t *testing.T) {
	Convey("Given a student who submitted and a signed in mentor", t, func() {
		e := newEnv(t)
		defer e.Close()

		_, err := e.run("", "login", "alice-code")
		So(err, ShouldBeNil)
		_, err = e.run("", "submit", "--plan", e.writePlan("student.yaml", fullPlan), "--yes")
		So(err, ShouldBeNil)
		out, err := e.run("", "login", "grace-code")
		So(err, ShouldBeNil)
		So(out, ShouldContainSubstring, "(mentor)")

		Convey("When the mentor lists projects", func() {
			out, err := e.run("", "projects")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "Compilers")
		})

		Convey("When the mentor ranks the applicants of a project", func() {
			out, err := e.run("", "pool", "--project", "A")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "alice")

			plan := e.writePlan("mentor.yaml", "items:\n  - id: alice\n    sop: solid\n")
			_, err = e.run("", "submit", "-p", "A", "--plan", plan, "-y")
			So(err, ShouldBeNil)

			sub, err := e.svc.Existing(context.Background(), types.Scope{Flow: types.FlowMentor, ActorID: "grace", TargetID: "A"})
			So(err, ShouldBeNil)
			So(sub.Locked, ShouldBeTrue)
			So(sub.Items, ShouldHaveLength, 1)
		})
	})
}

func TestCLI_Usage(t *testing.T) {
	Convey("Given the CLI", t, func() {
		e := newEnv(t)
		defer e.Close()

		Convey("Then bad invocations should be usage errors", func() {
			_, err := e.run("", "login")
			So(errors.Is(err, cli.ErrUsage), ShouldBeTrue)
			_, err = e.run("", "submit")
			So(errors.Is(err, cli.ErrUsage), ShouldBeTrue)
			_, err = e.run("", "bogus")
			So(errors.Is(err, cli.ErrUsage), ShouldBeTrue)
		})

		Convey("And help should list the commands", func() {
			out, err := e.run("", "--help")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "submit")
			So(out, ShouldContainSubstring, "revert")
		})
	})
}
