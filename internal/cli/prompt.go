package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/sdejongh/treesync/pkg/models"
	"github.com/sdejongh/treesync/pkg/sync"
)

// PromptResolver asks the operator to decide each conflict
type PromptResolver struct {
	in  *bufio.Reader
	out io.Writer
	all models.Decision // set once the operator answers for all remaining conflicts
}

// NewPromptResolver reads answers from in and writes questions to out
func NewPromptResolver(in io.Reader, out io.Writer) *PromptResolver {
	return &PromptResolver{in: bufio.NewReader(in), out: out}
}

// newAskResolver returns a prompt on an interactive stdin and leaves
// conflicts unresolved otherwise
func newAskResolver(in io.Reader, out io.Writer) sync.Resolver {
	if file, ok := in.(*os.File); ok && !term.IsTerminal(int(file.Fd())) {
		fmt.Fprintln(out, "stdin is not a terminal, conflicts will be skipped")
		return sync.BatchResolver{}
	}
	return NewPromptResolver(in, out)
}

// Resolve shows the conflict and reads a decision
func (p *PromptResolver) Resolve(ctx context.Context, conflict models.Conflict) (models.Decision, error) {
	if p.all != "" {
		return p.all, nil
	}

	fmt.Fprintf(p.out, "\nConflict: %s (%s)\n", conflict.Path, conflict.Type)
	fmt.Fprintf(p.out, "  A: %s\n", describe(conflict.StatusA, conflict.A))
	fmt.Fprintf(p.out, "  B: %s\n", describe(conflict.StatusB, conflict.B))

	for {
		if err := ctx.Err(); err != nil {
			return models.DecisionSkip, err
		}

		fmt.Fprint(p.out, "Keep [a], keep [b], [s]kip, all [A], all [B], [S]kip all? ")
		line, err := p.in.ReadString('\n')
		answer := strings.TrimSpace(line)
		if err != nil && answer == "" {
			if errors.Is(err, io.EOF) {
				p.all = models.DecisionSkip
				return models.DecisionSkip, nil
			}
			return models.DecisionSkip, fmt.Errorf("failed to read answer: %w", err)
		}

		switch answer {
		case "a":
			return models.DecisionKeepA, nil
		case "b":
			return models.DecisionKeepB, nil
		case "s", "":
			return models.DecisionSkip, nil
		case "A":
			p.all = models.DecisionKeepA
		case "B":
			p.all = models.DecisionKeepB
		case "S":
			p.all = models.DecisionSkip
		default:
			fmt.Fprintf(p.out, "Unknown answer %q\n", answer)
			continue
		}
		return p.all, nil
	}
}

func describe(status models.ChangeStatus, fp *models.Fingerprint) string {
	if fp == nil {
		return string(status)
	}
	return fmt.Sprintf("%s, %s", status, fp)
}
