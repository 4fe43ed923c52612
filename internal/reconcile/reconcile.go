package reconcile

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"esctl/internal/errors"
)

// Reconciler computes reconciliation plans. NewID generates identifiers
// for created phases and tasks; the store expects the client to assign
// these, while the plan's own identifier is assigned server-side.
type Reconciler struct {
	NewID func() string
}

// New returns a Reconciler with UUID identifier generation.
func New() *Reconciler {
	return &Reconciler{NewID: uuid.NewString}
}

// Diff computes the ordered operation plan that makes existing equal
// desired. existing may be nil for first-time creation. Both trees are
// validated; duplicate names within a parent make matching ambiguous and
// are rejected.
func (r *Reconciler) Diff(desired, existing *ResponsePlan) (*Plan, error) {
	if desired == nil {
		return nil, errors.NewMissingFieldError("reconcile", "desired plan")
	}
	if err := desired.Validate(); err != nil {
		return nil, err
	}
	if err := existing.Validate(); err != nil {
		return nil, err
	}

	want := desired.Clone()
	want.normalize()

	if existing == nil {
		return r.createAll(want), nil
	}

	before := existing.Clone()
	before.normalize()
	want.ID = before.ID

	var del deleteBuckets
	var updates, creates []Op

	if !want.scalarEqual(before) {
		updates = append(updates, Op{
			Action: ActionUpdate,
			Level:  LevelPlan,
			Name:   want.Name,
			Path:   fmt.Sprintf("plan %q", want.Name),
			ID:     want.ID,
		})
	}

	desiredPhases := make(map[string]bool, len(want.Phases))
	for _, phase := range want.Phases {
		desiredPhases[phase.Name] = true
	}

	existingPhases := make(map[string]*Phase, len(before.Phases))
	for i := range before.Phases {
		phase := &before.Phases[i]
		existingPhases[phase.Name] = phase
		if !desiredPhases[phase.Name] {
			// Deleting a phase cascades to every descendant.
			del.phaseCascade(phase)
		}
	}

	for pi := range want.Phases {
		phase := &want.Phases[pi]
		phasePath := fmt.Sprintf("phase %q", phase.Name)

		match, ok := existingPhases[phase.Name]
		if !ok {
			r.createPhaseOps(phase, &creates)
			continue
		}
		phase.ID = match.ID

		r.diffTasks(phase, match, phasePath, &del, &updates, &creates)
	}

	plan := &Plan{Before: before, After: want}
	plan.Ops = append(plan.Ops, del.ordered()...)
	plan.Ops = append(plan.Ops, updates...)
	plan.Ops = append(plan.Ops, creates...)
	return plan, nil
}

// diffTasks classifies the tasks of a matched phase.
func (r *Reconciler) diffTasks(phase, match *Phase, phasePath string, del *deleteBuckets, updates, creates *[]Op) {
	desiredTasks := make(map[string]bool, len(phase.Tasks))
	for _, task := range phase.Tasks {
		desiredTasks[task.Name] = true
	}

	existingTasks := make(map[string]*Task, len(match.Tasks))
	for i := range match.Tasks {
		task := &match.Tasks[i]
		existingTasks[task.Name] = task
		if !desiredTasks[task.Name] {
			del.taskCascade(task, phasePath)
		}
	}

	for ti := range phase.Tasks {
		task := &phase.Tasks[ti]
		taskPath := fmt.Sprintf("%s > task %q", phasePath, task.Name)

		existing, ok := existingTasks[task.Name]
		if !ok {
			r.createTaskOps(task, phasePath, creates)
			continue
		}
		task.ID = existing.ID

		if !task.scalarEqual(*existing) {
			*updates = append(*updates, Op{
				Action: ActionUpdate,
				Level:  LevelTask,
				Name:   task.Name,
				Path:   taskPath,
				ID:     task.ID,
			})
		}

		// Search lists are replaced wholesale on any difference, never
		// patched element by element.
		if !slices.Equal(task.Searches, existing.Searches) {
			for _, search := range existing.Searches {
				del.searches = append(del.searches, searchOp(ActionDelete, taskPath, search.Name))
			}
			for _, search := range task.Searches {
				*creates = append(*creates, searchOp(ActionCreate, taskPath, search.Name))
			}
		}
	}
}

// createAll emits one create per node for a first-time plan.
func (r *Reconciler) createAll(want *ResponsePlan) *Plan {
	ops := []Op{{
		Action: ActionCreate,
		Level:  LevelPlan,
		Name:   want.Name,
		Path:   fmt.Sprintf("plan %q", want.Name),
	}}
	for pi := range want.Phases {
		r.createPhaseOps(&want.Phases[pi], &ops)
	}
	return &Plan{Ops: ops, Before: nil, After: want}
}

func (r *Reconciler) createPhaseOps(phase *Phase, ops *[]Op) {
	phase.ID = r.NewID()
	phasePath := fmt.Sprintf("phase %q", phase.Name)
	*ops = append(*ops, Op{
		Action: ActionCreate,
		Level:  LevelPhase,
		Name:   phase.Name,
		Path:   phasePath,
		ID:     phase.ID,
	})
	for ti := range phase.Tasks {
		r.createTaskOps(&phase.Tasks[ti], phasePath, ops)
	}
}

func (r *Reconciler) createTaskOps(task *Task, phasePath string, ops *[]Op) {
	task.ID = r.NewID()
	taskPath := fmt.Sprintf("%s > task %q", phasePath, task.Name)
	*ops = append(*ops, Op{
		Action: ActionCreate,
		Level:  LevelTask,
		Name:   task.Name,
		Path:   taskPath,
		ID:     task.ID,
	})
	for _, search := range task.Searches {
		*ops = append(*ops, searchOp(ActionCreate, taskPath, search.Name))
	}
}

func searchOp(action Action, taskPath, name string) Op {
	return Op{
		Action: action,
		Level:  LevelSearch,
		Name:   name,
		Path:   fmt.Sprintf("%s > search %q", taskPath, name),
	}
}

// deleteBuckets collects deletions per level so children can be emitted
// before their parents.
type deleteBuckets struct {
	searches []Op
	tasks    []Op
	phases   []Op
}

func (d *deleteBuckets) phaseCascade(phase *Phase) {
	phasePath := fmt.Sprintf("phase %q", phase.Name)
	for i := range phase.Tasks {
		d.taskCascade(&phase.Tasks[i], phasePath)
	}
	d.phases = append(d.phases, Op{
		Action: ActionDelete,
		Level:  LevelPhase,
		Name:   phase.Name,
		Path:   phasePath,
		ID:     phase.ID,
	})
}

func (d *deleteBuckets) taskCascade(task *Task, phasePath string) {
	taskPath := fmt.Sprintf("%s > task %q", phasePath, task.Name)
	for _, search := range task.Searches {
		d.searches = append(d.searches, searchOp(ActionDelete, taskPath, search.Name))
	}
	d.tasks = append(d.tasks, Op{
		Action: ActionDelete,
		Level:  LevelTask,
		Name:   task.Name,
		Path:   taskPath,
		ID:     task.ID,
	})
}

func (d *deleteBuckets) ordered() []Op {
	out := make([]Op, 0, len(d.searches)+len(d.tasks)+len(d.phases))
	out = append(out, d.searches...)
	out = append(out, d.tasks...)
	out = append(out, d.phases...)
	return out
}
