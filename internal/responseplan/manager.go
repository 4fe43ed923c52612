// Package responseplan manages Splunk Enterprise Security response plan
// templates declaratively: desired state comes from the caller (usually a
// YAML file), current state from the store, and the reconciler decides
// what changed. Writes always post the full tree.
package responseplan

import (
	"context"
	"net/url"

	"esctl/internal/errors"
	"esctl/internal/log"
	"esctl/internal/reconcile"
	"esctl/internal/splunk"
)

const (
	// DefaultNamespace is the default API namespace path segment.
	DefaultNamespace = "servicesNS"
	// DefaultUser is the default API user path segment.
	DefaultUser = "nobody"
	// DefaultApp is the mission control app hosting the templates API.
	DefaultApp = "missioncontrol"
)

// SyncResult reports a reconciliation run. Applied is false when nothing
// changed or the run was a dry run.
type SyncResult struct {
	Plan    *reconcile.Plan `json:"plan"`
	Changed bool            `json:"changed"`
	Applied bool            `json:"applied"`
}

// DeleteResult reports a deletion. Changed is false when the plan was
// already absent.
type DeleteResult struct {
	Before  *reconcile.ResponsePlan `json:"before"`
	Changed bool                    `json:"changed"`
}

// Manager reconciles response plan templates.
type Manager struct {
	client     *splunk.Client
	logger     *log.Logger
	reconciler *reconcile.Reconciler
	namespace  string
	user       string
	app        string
}

// PathConfig overrides the API path segments. Zero values fall back to
// the package defaults.
type PathConfig struct {
	Namespace string
	User      string
	App       string
}

// NewManager creates a response plan manager over the given transport.
func NewManager(client *splunk.Client, logger *log.Logger, cfg PathConfig) *Manager {
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
	return &Manager{
		client:     client,
		logger:     logger.With("service", "responseplan"),
		reconciler: reconcile.New(),
		namespace:  cfg.Namespace,
		user:       cfg.User,
		app:        cfg.App,
	}
}

func (m *Manager) collectionPath() string {
	return m.namespace + "/" + m.user + "/" + m.app + "/v1/responsetemplates"
}

func (m *Manager) itemPath(id string) string {
	return m.collectionPath() + "/" + url.PathEscape(id)
}

// List fetches all response plans.
func (m *Manager) List(ctx context.Context) ([]reconcile.ResponsePlan, error) {
	var raw struct {
		Items []apiPlan `json:"items"`
	}
	if err := m.client.Get(ctx, m.collectionPath(), nil, &raw); err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	plans := make([]reconcile.ResponsePlan, 0, len(raw.Items))
	for _, item := range raw.Items {
		plans = append(plans, item.toPlan())
	}
	return plans, nil
}

// GetByName fetches a response plan by exact name. The store lists
// templates without a name filter, so this scans the collection.
func (m *Manager) GetByName(ctx context.Context, name string) (*reconcile.ResponsePlan, error) {
	plans, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range plans {
		if plans[i].Name == name {
			return &plans[i], nil
		}
	}
	return nil, errors.NewNotFoundError("response_plan", name)
}

// Sync reconciles the desired plan against the store. When dryRun is set
// the computed operations are returned without writing anything. A plan
// already in the desired state returns Changed false without a write.
func (m *Manager) Sync(ctx context.Context, desired *reconcile.ResponsePlan, dryRun bool) (*SyncResult, error) {
	if desired == nil || desired.Name == "" {
		return nil, errors.NewMissingFieldError("syncing response plan", "name")
	}
	if len(desired.Phases) == 0 {
		return nil, errors.NewMissingFieldError("syncing response plan", "phases")
	}

	existing, err := m.GetByName(ctx, desired.Name)
	if err != nil && !errors.IsNotFound(err) {
		return nil, err
	}

	plan, err := m.reconciler.Diff(desired, existing)
	if err != nil {
		return nil, err
	}

	if !plan.Changed() {
		m.logger.Debug("response plan already in desired state", "name", desired.Name)
		return &SyncResult{Plan: plan, Changed: false}, nil
	}
	if dryRun {
		return &SyncResult{Plan: plan, Changed: true}, nil
	}

	payload := buildPayload(plan.After, taskIDs(existing))
	path := m.collectionPath()
	if existing != nil {
		path = m.itemPath(existing.ID)
	}

	m.logger.Info("applying response plan",
		"name", desired.Name,
		"ops", len(plan.Ops),
		"create", existing == nil)

	var raw apiPlan
	if err := m.client.Post(ctx, path, nil, payload, &raw); err != nil {
		return nil, err
	}
	if raw.ID != "" {
		plan.After.ID = raw.ID
	}

	return &SyncResult{Plan: plan, Changed: true, Applied: true}, nil
}

// Delete removes a response plan by name. A missing plan is reported as
// already absent rather than an error.
func (m *Manager) Delete(ctx context.Context, name string) (*DeleteResult, error) {
	existing, err := m.GetByName(ctx, name)
	if errors.IsNotFound(err) {
		return &DeleteResult{Changed: false}, nil
	}
	if err != nil {
		return nil, err
	}

	m.logger.Info("deleting response plan", "name", name, "id", existing.ID)
	if err := m.client.Delete(ctx, m.itemPath(existing.ID)); err != nil {
		return nil, err
	}
	return &DeleteResult{Before: existing, Changed: true}, nil
}
