package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/prefrank/internal/domain/submission"
	"github.com/okian/prefrank/internal/domain/workflow"
	"github.com/okian/prefrank/internal/engine"
)

func exactArgs(name string, args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("%s takes %d argument(s), got %d: %w", name, n, len(args), ErrUsage)
	}
	return nil
}

func (a *App) runLogin(ctx context.Context, args []string) error {
	if err := exactArgs("login", args, 1); err != nil {
		return err
	}
	return a.withConn(ctx, func(c *conn) error {
		who, err := c.sessions.Exchange(ctx, args[0])
		if err != nil {
			return err
		}
		role := "student"
		if who.IsMentor {
			role = "mentor"
		}
		a.printf("Signed in as %s <%s> (%s)\n", who.Name, who.Email, role)
		return nil
	})
}

func (a *App) runLogout(ctx context.Context, args []string) error {
	if err := exactArgs("logout", args, 0); err != nil {
		return err
	}
	return a.withConn(ctx, func(c *conn) error {
		if err := c.sessions.Logout(ctx); err != nil {
			return err
		}
		a.printf("Signed out\n")
		return nil
	})
}

func (a *App) runWhoami(ctx context.Context, args []string) error {
	if err := exactArgs("whoami", args, 0); err != nil {
		return err
	}
	return a.withConn(ctx, func(c *conn) error {
		s, err := c.sessions.Session(ctx)
		if err != nil {
			return err
		}
		if !s.Authenticated {
			return ErrNotSignedIn
		}
		renderIdentity(a.out, s.Identity)
		return nil
	})
}

func (a *App) runCatalog(ctx context.Context, args []string) error {
	if err := exactArgs("catalog", args, 0); err != nil {
		return err
	}
	return a.withConn(ctx, func(c *conn) error {
		projects, err := c.client.Catalog(ctx)
		if err != nil {
			return err
		}
		renderCandidates(a.out, projects, nil)
		return nil
	})
}

func (a *App) runWishlist(ctx context.Context, args []string) error {
	if err := exactArgs("wishlist", args, 1); err != nil {
		return err
	}
	return a.withConn(ctx, func(c *conn) error {
		st, err := c.client.ToggleWishlist(ctx, args[0])
		if err != nil {
			return err
		}
		verb := "Removed"
		if st.Wishlisted {
			verb = "Added"
		}
		a.printf("%s %s; wishlist holds %d project(s)\n", verb, st.ProjectID, st.WishlistSize)
		return nil
	})
}

func (a *App) runProjects(ctx context.Context, args []string) error {
	if err := exactArgs("projects", args, 0); err != nil {
		return err
	}
	return a.withConn(ctx, func(c *conn) error {
		projects, err := c.client.MentorProjects(ctx)
		if err != nil {
			return err
		}
		renderMentorProjects(a.out, projects)
		return nil
	})
}

func (a *App) runPool(ctx context.Context, args []string) error {
	if err := exactArgs("pool", args, 0); err != nil {
		return err
	}
	return a.withConn(ctx, func(c *conn) error {
		_, view, err := a.engine(ctx, c)
		if err != nil {
			return err
		}
		renderPool(a.out, view)
		return nil
	})
}

func (a *App) runPreview(ctx context.Context, args []string) error {
	if err := exactArgs("preview", args, 0); err != nil {
		return err
	}
	plan, err := a.plan()
	if err != nil {
		return err
	}
	return a.withConn(ctx, func(c *conn) error {
		e, view, err := a.engine(ctx, c)
		if err != nil {
			return err
		}
		if view.State == workflow.StateLocked {
			return ErrSubmitted
		}
		if err := applyPlan(e, plan); err != nil {
			return err
		}
		renderRanking(a.out, e.Snapshot())
		return nil
	})
}

func (a *App) runSubmit(ctx context.Context, args []string) error {
	if err := exactArgs("submit", args, 0); err != nil {
		return err
	}
	plan, err := a.plan()
	if err != nil {
		return err
	}
	return a.withConn(ctx, func(c *conn) error {
		e, view, err := a.engine(ctx, c)
		if err != nil {
			return err
		}
		if view.State == workflow.StateLocked {
			return ErrSubmitted
		}
		if err := applyPlan(e, plan); err != nil {
			return err
		}
		err = e.Submit(ctx)
		switch {
		case errors.Is(err, submission.ErrCancelled):
			a.printf("Submit cancelled; nothing was sent\n")
			return nil
		case err != nil:
			return err
		}
		a.printf("Submitted %d item(s) for %s\n", len(plan.Items), e.Scope())
		return nil
	})
}

func (a *App) runRevert(ctx context.Context, args []string) error {
	if err := exactArgs("revert", args, 0); err != nil {
		return err
	}
	return a.withConn(ctx, func(c *conn) error {
		e, _, err := a.engine(ctx, c)
		if err != nil {
			return err
		}
		err = e.Revert(ctx)
		switch {
		case errors.Is(err, submission.ErrCancelled):
			a.printf("Revert cancelled; the ranking stays submitted\n")
			return nil
		case err != nil:
			return err
		}
		a.printf("Reverted %s; the ranking is editable again\n", e.Scope())
		return nil
	})
}

func (a *App) runStatus(ctx context.Context, args []string) error {
	if err := exactArgs("status", args, 0); err != nil {
		return err
	}
	return a.withConn(ctx, func(c *conn) error {
		e, view, err := a.engine(ctx, c)
		if err != nil {
			return err
		}
		marker, _ := e.Hint(ctx)
		renderStatus(a.out, view, marker)
		return nil
	})
}

func (a *App) plan() (Plan, error) {
	if a.planPath == "" {
		return Plan{}, fmt.Errorf("--plan is required: %w", ErrUsage)
	}
	return ReadPlanFile(a.planPath)
}

// applyPlan makes the engine's ranked list equal to plan: the selection is
// replaced by the plan's ids, then ordered and annotated.
func applyPlan(e *engine.Engine, plan Plan) error {
	if err := e.ClearSelection(); err != nil {
		return err
	}
	for _, it := range plan.Items {
		if _, err := e.Toggle(it.ID); err != nil {
			return fmt.Errorf("select %q: %w", it.ID, err)
		}
	}
	if _, err := e.ConfirmSelection(); err != nil {
		return err
	}
	if err := e.Reorder(plan.IDs()); err != nil {
		return err
	}
	for _, it := range plan.Items {
		if it.SOP == "" {
			continue
		}
		if err := e.SetAnnotation(it.ID, it.SOP); err != nil {
			return err
		}
	}
	return nil
}
