package sync

import (
	"context"

	"github.com/sdejongh/treesync/pkg/models"
)

// Resolver turns a conflict into a decision. Resolution is a separate step
// after planning; the planner itself only ever reports conflicts.
type Resolver interface {
	Resolve(ctx context.Context, conflict models.Conflict) (models.Decision, error)
}

// BatchResolver leaves every conflict unresolved
type BatchResolver struct{}

// Resolve always skips
func (BatchResolver) Resolve(ctx context.Context, conflict models.Conflict) (models.Decision, error) {
	return models.DecisionSkip, nil
}

// PolicyResolver applies the same decision to every conflict
type PolicyResolver struct {
	Decision models.Decision
}

// Resolve returns the configured decision
func (r PolicyResolver) Resolve(ctx context.Context, conflict models.Conflict) (models.Decision, error) {
	return r.Decision, nil
}

// NewResolver returns the resolver for a non-interactive conflict policy.
// The ask policy needs a terminal and is provided by the CLI.
func NewResolver(policy models.ConflictPolicy) Resolver {
	switch policy {
	case models.ConflictKeepA:
		return PolicyResolver{Decision: models.DecisionKeepA}
	case models.ConflictKeepB:
		return PolicyResolver{Decision: models.DecisionKeepB}
	default:
		return BatchResolver{}
	}
}

// ResolutionAction translates a decision into the single propagation it
// stands for. Skip yields nothing. In one-way modes only the source side can
// win, so keeping the target is treated as skip.
func ResolutionAction(mode models.Mode, conflict models.Conflict, decision models.Decision) (Action, bool) {
	var winner models.Side
	switch decision {
	case models.DecisionKeepA:
		winner = models.SideA
	case models.DecisionKeepB:
		winner = models.SideB
	default:
		return Action{}, false
	}

	if mode.OneWay() && winner != mode.Source {
		return Action{}, false
	}

	state, other := conflict.A, conflict.B
	if winner == models.SideB {
		state, other = conflict.B, conflict.A
	}

	return propagation(conflict.Path, winner, state, other, "conflict resolved: "+string(decision)), true
}
