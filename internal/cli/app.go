// Package cli implements the prefrank command line: sign in, inspect the
// candidate pool, submit a ranking from a plan file, and revert it.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/pflag"

	"github.com/okian/prefrank/internal/adapters/localstore"
	"github.com/okian/prefrank/internal/adapters/remote"
	"github.com/okian/prefrank/internal/adapters/session"
	"github.com/okian/prefrank/internal/config"
	"github.com/okian/prefrank/internal/domain/selection"
	"github.com/okian/prefrank/internal/domain/types"
	"github.com/okian/prefrank/internal/engine"
	"github.com/okian/prefrank/pkg/logger"
)

// App holds the configuration and streams of one CLI invocation.
type App struct {
	cfg    *config.Config
	in     *bufio.Reader
	out    io.Writer
	logger logger.Logger

	apiURL    string
	localPath string
	project   string
	planPath  string
	yes       bool
}

// Option configures an App.
type Option func(*App)

// WithInput sets where confirmations are read from.
func WithInput(r io.Reader) Option {
	return func(a *App) {
		if r != nil {
			a.in = bufio.NewReader(r)
		}
	}
}

// WithOutput sets where results are printed.
func WithOutput(w io.Writer) Option {
	return func(a *App) {
		if w != nil {
			a.out = w
		}
	}
}

// WithLogger sets the logger handed to the adapters and the engine.
func WithLogger(l logger.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// New builds an App over cfg.
func New(cfg *config.Config, opts ...Option) *App {
	a := &App{
		cfg:       cfg,
		in:        bufio.NewReader(os.Stdin),
		out:       os.Stdout,
		logger:    logger.Nop(),
		apiURL:    cfg.APIBaseURL,
		localPath: cfg.LocalPath,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run executes the command line args, without the program name.
func (a *App) Run(ctx context.Context, args []string) error {
	return a.root().Execute(ctx, a.out, args)
}

// root builds the command tree. Flag sets bind into the App, so each
// invocation parses into fresh state.
func (a *App) root() *Command {
	return &Command{
		Name:    "prefrank",
		Summary: "Rank projects or applicants and submit the ranking to the preference store.",
		Subcommands: []*Command{
			{
				Name:    "login",
				Summary: "Exchange an authorization code for a session",
				Usage:   "prefrank login <code> [flags]",
				Flags:   a.flags(false, false),
				Run:     a.runLogin,
			},
			{
				Name:    "logout",
				Summary: "Forget the stored session",
				Flags:   a.flags(false, false),
				Run:     a.runLogout,
			},
			{
				Name:    "whoami",
				Summary: "Show the signed in user as the store sees it",
				Flags:   a.flags(false, false),
				Run:     a.runWhoami,
			},
			{
				Name:    "catalog",
				Summary: "List every project",
				Flags:   a.flags(false, false),
				Run:     a.runCatalog,
			},
			{
				Name:    "wishlist",
				Summary: "Add a project to the wishlist, or remove it",
				Usage:   "prefrank wishlist <project-id> [flags]",
				Flags:   a.flags(false, false),
				Run:     a.runWishlist,
			},
			{
				Name:    "projects",
				Summary: "List the projects you mentor",
				Flags:   a.flags(false, false),
				Run:     a.runProjects,
			},
			{
				Name:    "pool",
				Summary: "Show the candidates you may rank and the initial selection",
				Flags:   a.flags(true, false),
				Run:     a.runPool,
			},
			{
				Name:    "preview",
				Summary: "Apply a plan locally and show the ranking without submitting",
				Flags:   a.flags(true, false),
				Run:     a.runPreview,
			},
			{
				Name:    "submit",
				Summary: "Apply a plan, confirm, then persist and lock the ranking",
				Flags:   a.flags(true, true),
				Run:     a.runSubmit,
			},
			{
				Name:    "revert",
				Summary: "Confirm, then delete the submitted ranking and unlock it",
				Flags:   a.flags(true, true),
				Run:     a.runRevert,
			},
			{
				Name:    "status",
				Summary: "Show whether the ranking is submitted, and what it holds",
				Flags:   a.flags(true, false),
				Run:     a.runStatus,
			},
		},
	}
}

// flags returns a flag set factory. scoped adds --project and --plan,
// confirm adds --yes.
func (a *App) flags(scoped, confirm bool) func() *pflag.FlagSet {
	return func() *pflag.FlagSet {
		fs := pflag.NewFlagSet("prefrank", pflag.ContinueOnError)
		fs.StringVar(&a.apiURL, "api", a.cfg.APIBaseURL, "preference store base URL")
		fs.StringVar(&a.localPath, "local", a.cfg.LocalPath, "local state file (session and submitted markers)")
		if scoped {
			fs.StringVarP(&a.project, "project", "p", "", "rank applicants of this project as its mentor")
			fs.StringVar(&a.planPath, "plan", "", "YAML plan with the ranked items and their statements")
		}
		if confirm {
			fs.BoolVarP(&a.yes, "yes", "y", false, "skip the confirmation prompt")
		}
		return fs
	}
}

// conn is the set of adapters one command talks through.
type conn struct {
	local    *localstore.Store
	client   *remote.Client
	sessions *session.Provider
}

func (c *conn) Close() error {
	return c.local.Close()
}

func (a *App) connect(ctx context.Context) (*conn, error) {
	local, err := localstore.Open(ctx, a.localPath, localstore.WithLogger(a.logger.Named("localstore")))
	if err != nil {
		return nil, err
	}
	client, err := remote.New(a.apiURL,
		remote.WithHTTPClient(&http.Client{Timeout: a.cfg.HTTPTimeout()}),
		remote.WithTokenSource(session.TokenSource(local)),
		remote.WithRetry(a.cfg.RetryMaxAttempts, a.cfg.RetryInitialBackoff()),
		remote.WithLogger(a.logger.Named("remote")),
	)
	if err != nil {
		_ = local.Close()
		return nil, err
	}
	sessions, err := session.New(local,
		session.WithBackend(client),
		session.WithLogger(a.logger.Named("session")),
	)
	if err != nil {
		_ = local.Close()
		return nil, err
	}
	return &conn{local: local, client: client, sessions: sessions}, nil
}

// withConn opens the adapters for fn and closes them afterwards.
func (a *App) withConn(ctx context.Context, fn func(c *conn) error) (err error) {
	c, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, c.Close())
	}()
	return fn(c)
}

// scope is the mentor scope when --project is set, the student scope
// otherwise.
func (a *App) scope(ctx context.Context, c *conn) (types.Scope, error) {
	who, ok := c.sessions.CurrentIdentity(ctx)
	if !ok {
		return types.Scope{}, ErrNotSignedIn
	}
	if a.project != "" {
		return types.Scope{Flow: types.FlowMentor, ActorID: who.ID, TargetID: a.project}, nil
	}
	return types.Scope{Flow: types.FlowStudent, ActorID: who.ID, TargetID: a.cfg.ProgramID}, nil
}

// engine builds and loads an engine for the current scope.
func (a *App) engine(ctx context.Context, c *conn) (*engine.Engine, engine.View, error) {
	scope, err := a.scope(ctx, c)
	if err != nil {
		return nil, engine.View{}, err
	}
	confirmer := &promptConfirmer{in: a.in, out: a.out, yes: a.yes}
	e, err := engine.New(scope, c.client, confirmer,
		engine.WithLogger(a.logger.Named("engine")),
		engine.WithSessionChecker(c.sessions),
		engine.WithMarkerCache(c.local),
		engine.WithMaxSelection(a.cfg.MaxSelection),
		engine.WithSelectionPolicy(selection.ParsePolicy(a.cfg.SelectionPolicy)),
	)
	if err != nil {
		return nil, engine.View{}, err
	}
	view, err := e.Load(ctx)
	if err != nil {
		return nil, engine.View{}, err
	}
	return e, view, nil
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
