package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/okian/prefrank/internal/domain/submission"
)

var _ submission.Confirmer = (*promptConfirmer)(nil)

// promptConfirmer shows the prompt on out and reads y/N from in. With yes
// set it approves without reading.
type promptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
	yes bool
}

func (p *promptConfirmer) Confirm(_ context.Context, pr submission.Prompt) (bool, error) {
	fmt.Fprintln(p.out, pr.Message)
	for _, it := range pr.Items {
		fmt.Fprintf(p.out, "  %d. %s\n", it.Position, it.CandidateID)
	}
	if p.yes {
		fmt.Fprintf(p.out, "%s confirmed by --yes\n", pr.Action)
		return true, nil
	}

	fmt.Fprint(p.out, "Proceed? [y/N] ")
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
