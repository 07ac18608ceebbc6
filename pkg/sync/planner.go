package sync

import (
	"fmt"

	"github.com/sdejongh/treesync/pkg/models"
)

// Action is one propagation to apply: copy the source side's file over the
// target's path, or delete the target's file
type Action struct {
	Path string
	Kind models.Action // ActionCopy or ActionDelete
	From models.Side
	To   models.Side

	// Expected is the state the target must end up in (nil for deletions)
	Expected *models.Fingerprint

	// TargetBefore is the target's scanned state; the action is refused
	// if the target no longer matches it
	TargetBefore *models.Fingerprint

	Reason string
}

// Agreement records a path changed on both sides to the same result. The
// baseline advances to State without touching either side.
type Agreement struct {
	Path  string
	State *models.Fingerprint // nil when both sides deleted the file
}

// Ignored is a one-sided change the active mode does not propagate. It
// leaves the baseline untouched so a later run in another mode still sees it.
type Ignored struct {
	Path   string
	Side   models.Side
	Status models.ChangeStatus
	Reason string
}

// Plan is the outcome of reconciling every path under one mode
type Plan struct {
	Mode       models.Mode
	Actions    []Action
	Agreements []Agreement
	Conflicts  []models.Conflict
	Ignored    []Ignored
	Unchanged  int
}

// NewPlan decides, for every classified path, what the mode requires. It is
// a pure function of its inputs; with states sorted by path the plan's
// lists are sorted by path as well.
func NewPlan(mode models.Mode, states []PathState) *Plan {
	plan := &Plan{Mode: mode}
	for _, st := range states {
		plan.add(mode, st)
	}
	return plan
}

func (p *Plan) add(mode models.Mode, st PathState) {
	changedA := st.StatusA.Changed()
	changedB := st.StatusB.Changed()

	switch {
	case !changedA && !changedB:
		p.Unchanged++

	case changedA && changedB:
		if sameResult(st) {
			p.Agreements = append(p.Agreements, Agreement{Path: st.Path, State: st.A})
			return
		}
		p.Conflicts = append(p.Conflicts, models.Conflict{
			Path:    st.Path,
			Type:    models.ClassifyConflict(st.StatusA, st.StatusB),
			StatusA: st.StatusA,
			StatusB: st.StatusB,
			A:       st.A,
			B:       st.B,
		})

	default:
		from := models.SideA
		if changedB {
			from = models.SideB
		}
		p.addOneSided(mode, st, from)
	}
}

func (p *Plan) addOneSided(mode models.Mode, st PathState, from models.Side) {
	status := st.Status(from)

	if mode.OneWay() {
		if from != mode.Source {
			p.Ignored = append(p.Ignored, Ignored{
				Path:   st.Path,
				Side:   from,
				Status: status,
				Reason: fmt.Sprintf("%s only change on side %s is not propagated in %s mode", status, from.Label(), mode.Kind),
			})
			return
		}
		if mode.Kind == models.ModeBackup && status == models.StatusDeleted {
			p.Ignored = append(p.Ignored, Ignored{
				Path:   st.Path,
				Side:   from,
				Status: status,
				Reason: fmt.Sprintf("backup keeps the copy on side %s", from.Other().Label()),
			})
			return
		}
	}

	p.Actions = append(p.Actions, propagation(st.Path, from, st.Live(from), st.Live(from.Other()),
		fmt.Sprintf("%s on side %s", status, from.Label())))
}

// propagation builds the action that makes side from's state win
func propagation(path string, from models.Side, state, targetBefore *models.Fingerprint, reason string) Action {
	kind := models.ActionCopy
	if state == nil {
		kind = models.ActionDelete
	}
	return Action{
		Path:         path,
		Kind:         kind,
		From:         from,
		To:           from.Other(),
		Expected:     state,
		TargetBefore: targetBefore,
		Reason:       reason,
	}
}

// sameResult applies the tie-break for paths changed on both sides: two
// deletions always agree, two present files agree iff their fingerprints
// are equal, a deletion never agrees with a present file
func sameResult(st PathState) bool {
	return models.SameState(st.A, st.B)
}
