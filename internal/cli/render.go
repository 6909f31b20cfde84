package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/okian/prefrank/internal/domain/submission"
	"github.com/okian/prefrank/internal/domain/types"
	"github.com/okian/prefrank/internal/domain/workflow"
	"github.com/okian/prefrank/internal/engine"
)

func renderIdentity(w io.Writer, who types.Identity) {
	fmt.Fprintf(w, "%s <%s>\n", who.Name, who.Email)
	fmt.Fprintf(w, "  id:      %s\n", who.ID)
	if who.RollNo != "" {
		fmt.Fprintf(w, "  roll no: %s\n", who.RollNo)
	}
	fmt.Fprintf(w, "  mentor:  %t\n", who.IsMentor)
}

// renderCandidates prints one line per candidate; ids in selected are
// marked.
func renderCandidates(w io.Writer, cs []types.Candidate, selected map[string]bool) {
	if len(cs) == 0 {
		fmt.Fprintln(w, "(none)")
		return
	}
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	for _, c := range cs {
		mark := " "
		if selected[c.ID] {
			mark = "x"
		}
		fmt.Fprintf(tw, "[%s]\t%s\t%s\t%s\n", mark, c.ID, c.Title, candidateDetail(c))
	}
	_ = tw.Flush()
}

func candidateDetail(c types.Candidate) string {
	if c.Kind == types.KindApplicant {
		return c.Meta[types.MetaRollNo]
	}
	var parts []string
	for _, k := range []string{types.MetaDomain1, types.MetaDomain2, types.MetaDifficulty} {
		if v := c.Meta[k]; v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

func renderMentorProjects(w io.Writer, ps []types.MentorProject) {
	if len(ps) == 0 {
		fmt.Fprintln(w, "(none)")
		return
	}
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tWISHLISTED\tPREFERRED")
	for _, p := range ps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Title, humanize.Comma(int64(p.WishlistCount)), humanize.Comma(int64(p.PreferencesCount)))
	}
	_ = tw.Flush()
}

func renderPool(w io.Writer, v engine.View) {
	fmt.Fprintf(w, "%s: %d candidate(s), choose up to %d\n", v.Scope, len(v.Pool), v.Max)
	if v.State == workflow.StateLocked {
		fmt.Fprintln(w, "The ranking is submitted; run 'prefrank status' to see it.")
	}
	if v.RequiresChoice {
		fmt.Fprintf(w, "More than %d candidates: pick the ones to rank in your plan.\n", v.Max)
	}
	selected := make(map[string]bool, len(v.Selected))
	for _, c := range v.Selected {
		selected[c.ID] = true
	}
	renderCandidates(w, v.Pool, selected)
}

func renderRanking(w io.Writer, v engine.View) {
	for _, e := range v.Items {
		fmt.Fprintf(w, "%d. %s  %s\n", e.Position, e.Candidate.ID, e.Candidate.Title)
		if e.Annotation == "" {
			fmt.Fprintln(w, "   (no statement of purpose)")
			continue
		}
		for _, line := range strings.Split(e.Annotation, "\n") {
			fmt.Fprintf(w, "   %s\n", line)
		}
	}
	if len(v.Incomplete) > 0 {
		fmt.Fprintf(w, "Missing a statement: %s\n", strings.Join(v.Incomplete, ", "))
	}
}

func renderStatus(w io.Writer, v engine.View, m submission.Marker) {
	fmt.Fprintf(w, "%s: %s", v.Scope, v.State)
	if v.State == workflow.StateLocked && !m.SubmittedAt.IsZero() {
		fmt.Fprintf(w, " (submitted %s)", humanize.Time(m.SubmittedAt))
	}
	fmt.Fprintln(w)
	if len(v.Items) == 0 {
		fmt.Fprintln(w, "Nothing ranked yet.")
		return
	}
	renderRanking(w, v)
}
