// Package execution manages response plans applied to investigations:
// applying a template, removing an applied plan, and driving individual
// task status and ownership. Applied plans are matched by template name
// because the incident detail endpoint omits the source template ID.
package execution

import (
	"context"
	"net/url"
	"strings"

	"esctl/internal/errors"
	"esctl/internal/log"
	"esctl/internal/splunk"
)

const (
	// DefaultNamespace is the default API namespace path segment.
	DefaultNamespace = "servicesNS"
	// DefaultUser is the default API user path segment.
	DefaultUser = "nobody"
	// DefaultApp is the mission control app hosting the incidents API.
	DefaultApp = "missioncontrol"
)

// taskStatusToAPI maps module task statuses to the wire encoding, which
// capitalizes them.
var taskStatusToAPI = map[string]string{
	"started":  "Started",
	"ended":    "Ended",
	"reopened": "Reopened",
	"pending":  "Pending",
}

// Task is a task within an applied response plan.
type Task struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	Owner          string `json:"owner"`
	IsNoteRequired bool   `json:"is_note_required"`
	Status         string `json:"status"`
}

// Phase is a phase within an applied response plan.
type Phase struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Tasks []Task `json:"tasks"`
}

// AppliedPlan is a response plan instance attached to an investigation.
type AppliedPlan struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Description      string  `json:"description,omitempty"`
	SourceTemplateID string  `json:"source_template_id,omitempty"`
	Phases           []Phase `json:"phases"`
}

// TaskUpdate names a task by phase and task name and carries the desired
// status and/or owner. Empty fields are left unchanged.
type TaskUpdate struct {
	Phase  string
	Task   string
	Status string
	Owner  string
}

// TaskResult reports the outcome of one TaskUpdate.
type TaskResult struct {
	Phase   string `json:"phase"`
	Task    string `json:"task"`
	Status  string `json:"status"`
	Owner   string `json:"owner"`
	Changed bool   `json:"changed"`
}

// ApplyResult reports an Apply call. PlanChanged is false when the
// template was already applied.
type ApplyResult struct {
	PlanChanged bool         `json:"plan_changed"`
	Tasks       []TaskResult `json:"tasks,omitempty"`
	Changed     bool         `json:"changed"`
}

// RemoveResult reports a Remove call. Changed is false when no applied
// plan matched.
type RemoveResult struct {
	Before  *AppliedPlan `json:"before"`
	Changed bool         `json:"changed"`
}

// Service manages applied response plans.
type Service struct {
	client    *splunk.Client
	logger    *log.Logger
	namespace string
	user      string
	app       string
}

// PathConfig overrides the API path segments. Zero values fall back to
// the package defaults.
type PathConfig struct {
	Namespace string
	User      string
	App       string
}

// NewService creates an execution service over the given transport.
func NewService(client *splunk.Client, logger *log.Logger, cfg PathConfig) *Service {
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if cfg.User == "" {
		cfg.User = DefaultUser
	}
	if cfg.App == "" {
		cfg.App = DefaultApp
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		client:    client,
		logger:    logger.With("service", "execution"),
		namespace: cfg.Namespace,
		user:      cfg.User,
		app:       cfg.App,
	}
}

func (s *Service) incidentPath(investigationID string) string {
	return s.namespace + "/" + s.user + "/" + s.app + "/v1/incidents/" + url.PathEscape(investigationID)
}

func (s *Service) plansPath(investigationID string) string {
	return s.incidentPath(investigationID) + "/responseplans"
}

func (s *Service) planPath(investigationID, appliedPlanID string) string {
	return s.plansPath(investigationID) + "/" + url.PathEscape(appliedPlanID)
}

func (s *Service) taskPath(investigationID, appliedPlanID, phaseID, taskID string) string {
	return s.planPath(investigationID, appliedPlanID) +
		"/phase/" + url.PathEscape(phaseID) + "/tasks/" + url.PathEscape(taskID)
}

func (s *Service) templatesPath() string {
	return s.namespace + "/" + s.user + "/" + s.app + "/v1/responsetemplates"
}

// ListApplied fetches the response plans applied to an investigation from
// its incident detail.
func (s *Service) ListApplied(ctx context.Context, investigationID string) ([]AppliedPlan, error) {
	if investigationID == "" {
		return nil, errors.NewMissingFieldError("listing applied response plans", "investigation_ref_id")
	}

	var raw struct {
		ResponsePlans []apiAppliedPlan `json:"response_plans"`
	}
	if err := s.client.Get(ctx, s.incidentPath(investigationID), nil, &raw); err != nil {
		return nil, err
	}

	plans := make([]AppliedPlan, 0, len(raw.ResponsePlans))
	for _, item := range raw.ResponsePlans {
		plans = append(plans, item.toPlan())
	}
	return plans, nil
}

// Apply ensures the named response plan template is applied to the
// investigation, then drives the requested task updates. Tasks already in
// the desired state are reported unchanged.
func (s *Service) Apply(ctx context.Context, investigationID, templateName string, tasks []TaskUpdate) (*ApplyResult, error) {
	if investigationID == "" || templateName == "" {
		return nil, errors.NewMissingFieldError("applying response plan",
			"investigation_ref_id", "response_plan_name")
	}

	templateID, err := s.templateIDByName(ctx, templateName)
	if err != nil {
		return nil, err
	}

	applied, err := s.ListApplied(ctx, investigationID)
	if err != nil {
		return nil, err
	}

	result := &ApplyResult{}
	if findPlanByName(applied, templateName) == nil {
		s.logger.Info("applying response plan", "investigation", investigationID, "template", templateName)
		payload := map[string]string{
			"response_template_id": templateID,
			"incidentType":         "default",
		}
		if err := s.client.Post(ctx, s.plansPath(investigationID), nil, payload, nil); err != nil {
			return nil, err
		}
		result.PlanChanged = true
	}

	if len(tasks) > 0 {
		// Re-fetch so task updates see the freshly applied structure.
		applied, err = s.ListApplied(ctx, investigationID)
		if err != nil {
			return nil, err
		}
		plan := findPlanByName(applied, templateName)
		if plan == nil {
			return nil, errors.NewNotFoundError("applied response plan", templateName)
		}

		for _, update := range tasks {
			taskResult, err := s.updateTask(ctx, investigationID, plan, update)
			if err != nil {
				return nil, err
			}
			result.Tasks = append(result.Tasks, *taskResult)
		}
	}

	result.Changed = result.PlanChanged
	for _, tr := range result.Tasks {
		if tr.Changed {
			result.Changed = true
		}
	}
	return result, nil
}

// Remove detaches the named response plan from the investigation. A plan
// that is not applied is reported as already absent.
func (s *Service) Remove(ctx context.Context, investigationID, templateName string) (*RemoveResult, error) {
	if investigationID == "" || templateName == "" {
		return nil, errors.NewMissingFieldError("removing response plan",
			"investigation_ref_id", "response_plan_name")
	}

	applied, err := s.ListApplied(ctx, investigationID)
	if err != nil {
		return nil, err
	}
	plan := findPlanByName(applied, templateName)
	if plan == nil {
		return &RemoveResult{Changed: false}, nil
	}

	s.logger.Info("removing applied response plan", "investigation", investigationID, "template", templateName)
	if err := s.client.Delete(ctx, s.planPath(investigationID, plan.ID)); err != nil {
		return nil, err
	}
	return &RemoveResult{Before: plan, Changed: true}, nil
}

// updateTask applies one TaskUpdate, locating the phase and task by name.
func (s *Service) updateTask(ctx context.Context, investigationID string, plan *AppliedPlan, update TaskUpdate) (*TaskResult, error) {
	phase := findPhaseByName(plan.Phases, update.Phase)
	if phase == nil {
		return nil, errors.NewNotFoundError("phase", update.Phase)
	}
	task := findTaskByName(phase.Tasks, update.Task)
	if task == nil {
		return nil, errors.NewNotFoundError("task", update.Task)
	}

	statusChanges := update.Status != "" && update.Status != task.Status
	ownerChanges := update.Owner != "" && update.Owner != task.Owner

	result := &TaskResult{
		Phase:  update.Phase,
		Task:   update.Task,
		Status: task.Status,
		Owner:  task.Owner,
	}
	if !statusChanges && !ownerChanges {
		return result, nil
	}

	payload := map[string]string{}
	if statusChanges {
		payload["status"] = mapValue(taskStatusToAPI, update.Status)
		result.Status = update.Status
	}
	if ownerChanges {
		payload["owner"] = update.Owner
		result.Owner = update.Owner
	}

	path := s.taskPath(investigationID, plan.ID, phase.ID, task.ID)
	if err := s.client.Post(ctx, path, nil, payload, nil); err != nil {
		return nil, err
	}

	result.Changed = true
	return result, nil
}

// templateIDByName resolves a response plan template name to its ID.
func (s *Service) templateIDByName(ctx context.Context, name string) (string, error) {
	var raw struct {
		Items []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"items"`
	}
	if err := s.client.Get(ctx, s.templatesPath(), nil, &raw); err != nil {
		return "", err
	}
	for _, item := range raw.Items {
		if item.Name == name {
			return item.ID, nil
		}
	}
	return "", errors.NewNotFoundError("response_plan", name)
}

func findPlanByName(plans []AppliedPlan, name string) *AppliedPlan {
	for i := range plans {
		if plans[i].Name == name {
			return &plans[i]
		}
	}
	return nil
}

func findPhaseByName(phases []Phase, name string) *Phase {
	for i := range phases {
		if phases[i].Name == name {
			return &phases[i]
		}
	}
	return nil
}

func findTaskByName(tasks []Task, name string) *Task {
	for i := range tasks {
		if tasks[i].Name == name {
			return &tasks[i]
		}
	}
	return nil
}

func mapValue(m map[string]string, v string) string {
	if mapped, ok := m[v]; ok {
		return mapped
	}
	return v
}

// apiAppliedPlan is the wire shape of an applied response plan. Names and
// descriptions come back percent-encoded.
type apiAppliedPlan struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	SourceTemplateID string         `json:"source_template_id"`
	TemplateID       string         `json:"template_id"`
	Phases           []apiExecPhase `json:"phases"`
}

type apiExecPhase struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Tasks []apiExecTask `json:"tasks"`
}

type apiExecTask struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Owner          string `json:"owner"`
	IsNoteRequired bool   `json:"is_note_required"`
	Status         string `json:"status"`
}

func (a apiAppliedPlan) toPlan() AppliedPlan {
	// Apply responses call it source_template_id, incident detail calls
	// it template_id.
	templateID := a.SourceTemplateID
	if templateID == "" {
		templateID = a.TemplateID
	}
	plan := AppliedPlan{
		ID:               a.ID,
		Name:             unescape(a.Name),
		Description:      unescape(a.Description),
		SourceTemplateID: templateID,
	}
	for _, phase := range a.Phases {
		plan.Phases = append(plan.Phases, phase.toPhase())
	}
	return plan
}

func (a apiExecPhase) toPhase() Phase {
	phase := Phase{ID: a.ID, Name: unescape(a.Name)}
	for _, task := range a.Tasks {
		phase.Tasks = append(phase.Tasks, task.toTask())
	}
	return phase
}

func (a apiExecTask) toTask() Task {
	owner := a.Owner
	if owner == "" {
		owner = "unassigned"
	}
	status := a.Status
	if status != "" {
		status = strings.ToLower(status)
	}
	return Task{
		ID:             a.ID,
		Name:           unescape(a.Name),
		Description:    unescape(a.Description),
		Owner:          owner,
		IsNoteRequired: a.IsNoteRequired,
		Status:         status,
	}
}

// unescape decodes percent-encoded text, falling back to the raw value
// when it is not valid encoding.
func unescape(s string) string {
	if decoded, err := url.PathUnescape(s); err == nil {
		return decoded
	}
	return s
}
