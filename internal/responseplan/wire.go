package responseplan

import "esctl/internal/reconcile"

// The response templates API wants the whole tree on every write: matched
// nodes keep their IDs, new nodes carry fresh ones and set isNewTask, and
// order fields run 1..n per level.

type apiSearch struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	SPL         string `json:"spl"`
}

type apiSuggestions struct {
	Actions   []any       `json:"actions"`
	Playbooks []any       `json:"playbooks"`
	Searches  []apiSearch `json:"searches"`
}

type apiTask struct {
	TaskID         string         `json:"task_id"`
	PhaseID        string         `json:"phase_id"`
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	SLA            *int           `json:"sla"`
	SLAType        string         `json:"sla_type"`
	Order          int            `json:"order"`
	Status         string         `json:"status"`
	IsNoteRequired bool           `json:"is_note_required"`
	Owner          string         `json:"owner"`
	IsNewTask      bool           `json:"isNewTask"`
	Files          []any          `json:"files"`
	Notes          []any          `json:"notes"`
	Suggestions    apiSuggestions `json:"suggestions"`
}

type apiPhase struct {
	TemplateID string    `json:"template_id"`
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	SLA        *int      `json:"sla"`
	SLAType    string    `json:"sla_type"`
	CreateTime string    `json:"create_time"`
	Order      int       `json:"order"`
	Tasks      []apiTask `json:"tasks"`
}

type apiPlan struct {
	ID             string     `json:"id,omitempty"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	TemplateStatus string     `json:"template_status"`
	IncidentTypes  []any      `json:"incident_types"`
	Phases         []apiPhase `json:"phases"`
}

// buildPayload renders the reconciled after state as a full write payload.
// existingTaskIDs marks the tasks the store already knows, so new tasks
// can be flagged.
func buildPayload(after *reconcile.ResponsePlan, existingTaskIDs map[string]bool) apiPlan {
	payload := apiPlan{
		ID:             after.ID,
		Name:           after.Name,
		Description:    after.Description,
		TemplateStatus: after.TemplateStatus,
		IncidentTypes:  []any{},
		Phases:         make([]apiPhase, 0, len(after.Phases)),
	}
	for pi, phase := range after.Phases {
		payload.Phases = append(payload.Phases, buildPhasePayload(phase, pi+1, existingTaskIDs))
	}
	return payload
}

func buildPhasePayload(phase reconcile.Phase, order int, existingTaskIDs map[string]bool) apiPhase {
	out := apiPhase{
		ID:      phase.ID,
		Name:    phase.Name,
		SLAType: "minutes",
		Order:   order,
		Tasks:   make([]apiTask, 0, len(phase.Tasks)),
	}
	for ti, task := range phase.Tasks {
		out.Tasks = append(out.Tasks, buildTaskPayload(task, ti+1, existingTaskIDs[task.ID]))
	}
	return out
}

func buildTaskPayload(task reconcile.Task, order int, existed bool) apiTask {
	searches := make([]apiSearch, 0, len(task.Searches))
	for _, search := range task.Searches {
		searches = append(searches, apiSearch{
			Name:        search.Name,
			Description: search.Description,
			SPL:         search.SPL,
		})
	}
	return apiTask{
		ID:             task.ID,
		Name:           task.Name,
		Description:    task.Description,
		SLAType:        "minutes",
		Order:          order,
		Status:         "Pending",
		IsNoteRequired: task.IsNoteRequired,
		Owner:          task.Owner,
		IsNewTask:      !existed,
		Files:          []any{},
		Notes:          []any{},
		Suggestions: apiSuggestions{
			Actions:   []any{},
			Playbooks: []any{},
			Searches:  searches,
		},
	}
}

// toPlan maps a stored template back into the reconciler's tree shape.
func (a apiPlan) toPlan() reconcile.ResponsePlan {
	plan := reconcile.ResponsePlan{
		ID:             a.ID,
		Name:           a.Name,
		Description:    a.Description,
		TemplateStatus: a.TemplateStatus,
	}
	if plan.TemplateStatus == "" {
		plan.TemplateStatus = reconcile.DefaultTemplateStatus
	}
	for _, phase := range a.Phases {
		plan.Phases = append(plan.Phases, phase.toPhase())
	}
	return plan
}

func (a apiPhase) toPhase() reconcile.Phase {
	phase := reconcile.Phase{ID: a.ID, Name: a.Name}
	for _, task := range a.Tasks {
		phase.Tasks = append(phase.Tasks, task.toTask())
	}
	return phase
}

func (a apiTask) toTask() reconcile.Task {
	task := reconcile.Task{
		ID:             a.ID,
		Name:           a.Name,
		Description:    a.Description,
		IsNoteRequired: a.IsNoteRequired,
		Owner:          a.Owner,
	}
	if task.Owner == "" {
		task.Owner = reconcile.DefaultOwner
	}
	for _, search := range a.Suggestions.Searches {
		task.Searches = append(task.Searches, reconcile.Search{
			Name:        search.Name,
			Description: search.Description,
			SPL:         search.SPL,
		})
	}
	return task
}

// taskIDs collects the task identifiers present in a tree.
func taskIDs(plan *reconcile.ResponsePlan) map[string]bool {
	ids := map[string]bool{}
	if plan == nil {
		return ids
	}
	for _, phase := range plan.Phases {
		for _, task := range phase.Tasks {
			if task.ID != "" {
				ids[task.ID] = true
			}
		}
	}
	return ids
}
