// Package investigationtype manages Splunk Enterprise Security incident
// types. The store addresses these by name, not by ID, and exposes no
// delete endpoint.
package investigationtype

import (
	"context"
	"net/url"
	"slices"

	"esctl/internal/errors"
	"esctl/internal/log"
	"esctl/internal/splunk"
)

const (
	// DefaultNamespace is the default API namespace path segment.
	DefaultNamespace = "servicesNS"
	// DefaultUser is the default API user path segment.
	DefaultUser = "nobody"
	// DefaultApp is the mission control app hosting the incident types API.
	DefaultApp = "missioncontrol"
)

// InvestigationType classifies investigations and optionally links the
// response plans that apply to it.
type InvestigationType struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// ResponsePlanIDs are associated response template IDs. When nil on
	// Apply, the existing associations are kept; an empty non-nil slice
	// clears them.
	ResponsePlanIDs []string `json:"response_plan_ids,omitempty"`
}

// Result reports the outcome of an Apply.
type Result struct {
	Before  *InvestigationType `json:"before"`
	After   *InvestigationType `json:"after"`
	Changed bool               `json:"changed"`
}

// Service reads and writes investigation types.
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

// NewService creates an investigation type service over the given transport.
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
		logger:    logger.With("service", "investigationtype"),
		namespace: cfg.Namespace,
		user:      cfg.User,
		app:       cfg.App,
	}
}

func (s *Service) collectionPath() string {
	return s.namespace + "/" + s.user + "/" + s.app + "/v1/incidenttypes"
}

func (s *Service) itemPath(name string) string {
	return s.collectionPath() + "/" + url.PathEscape(name)
}

// Get fetches an investigation type by name.
func (s *Service) Get(ctx context.Context, name string) (*InvestigationType, error) {
	if name == "" {
		return nil, errors.NewMissingFieldError("looking up investigation type", "name")
	}

	var raw apiIncidentType
	if err := s.client.Get(ctx, s.itemPath(name), nil, &raw); err != nil {
		return nil, err
	}
	if raw.IncidentType == "" {
		return nil, errors.NewNotFoundError("investigation_type", name)
	}

	it := raw.toType()
	return &it, nil
}

// List fetches all investigation types.
func (s *Service) List(ctx context.Context) ([]InvestigationType, error) {
	var raw struct {
		Items []apiIncidentType `json:"items"`
	}
	if err := s.client.Get(ctx, s.collectionPath(), nil, &raw); err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	types := make([]InvestigationType, 0, len(raw.Items))
	for _, item := range raw.Items {
		types = append(types, item.toType())
	}
	return types, nil
}

// Apply upserts an investigation type by name. Creation posts name and
// description, then associates response plans with a follow-up PUT since
// the create endpoint does not accept them. Updates compare description
// and associations and no-op when equal.
func (s *Service) Apply(ctx context.Context, desired *InvestigationType) (*Result, error) {
	if desired == nil || desired.Name == "" {
		return nil, errors.NewMissingFieldError("applying investigation type", "name")
	}

	before, err := s.Get(ctx, desired.Name)
	switch {
	case errors.IsNotFound(err):
		after, err := s.create(ctx, desired)
		if err != nil {
			return nil, err
		}
		return &Result{After: after, Changed: true}, nil
	case err != nil:
		return nil, err
	}

	want := resolveDesired(before, desired)
	if want.Description == before.Description && idsEqual(want.ResponsePlanIDs, before.ResponsePlanIDs) {
		s.logger.Debug("investigation type already in desired state", "name", desired.Name)
		return &Result{Before: before, After: before, Changed: false}, nil
	}

	after, err := s.put(ctx, want)
	if err != nil {
		return nil, err
	}
	return &Result{Before: before, After: after, Changed: true}, nil
}

// Delete is not supported by the store.
func (s *Service) Delete(ctx context.Context, name string) error {
	return errors.NewUnsupportedOperationError("delete", "investigation_type")
}

func (s *Service) create(ctx context.Context, desired *InvestigationType) (*InvestigationType, error) {
	s.logger.Debug("creating investigation type", "name", desired.Name)

	payload := map[string]string{
		"incident_type": desired.Name,
		"description":   desired.Description,
	}
	var raw apiIncidentType
	if err := s.client.Post(ctx, s.collectionPath(), nil, payload, &raw); err != nil {
		return nil, err
	}

	// The create endpoint ignores associations; a follow-up PUT sets them.
	if len(desired.ResponsePlanIDs) > 0 {
		return s.put(ctx, desired)
	}

	after := raw.toType()
	return &after, nil
}

func (s *Service) put(ctx context.Context, want *InvestigationType) (*InvestigationType, error) {
	payload := map[string]any{
		"incident_type":         want.Name,
		"description":           want.Description,
		"response_template_ids": notNil(want.ResponsePlanIDs),
	}
	var raw apiIncidentType
	if err := s.client.Put(ctx, s.itemPath(want.Name), nil, payload, &raw); err != nil {
		return nil, err
	}
	after := raw.toType()
	return &after, nil
}

// resolveDesired fills unset desired fields from the existing state.
func resolveDesired(before, desired *InvestigationType) *InvestigationType {
	want := &InvestigationType{
		Name:            desired.Name,
		Description:     desired.Description,
		ResponsePlanIDs: desired.ResponsePlanIDs,
	}
	if want.Description == "" {
		want.Description = before.Description
	}
	if want.ResponsePlanIDs == nil {
		want.ResponsePlanIDs = before.ResponsePlanIDs
	}
	return want
}

// idsEqual compares association sets ignoring order.
func idsEqual(a, b []string) bool {
	as := slices.Clone(a)
	bs := slices.Clone(b)
	slices.Sort(as)
	slices.Sort(bs)
	return slices.Equal(as, bs)
}

func notNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// apiIncidentType is the wire shape of an investigation type.
type apiIncidentType struct {
	IncidentType        string   `json:"incident_type"`
	Description         string   `json:"description"`
	ResponseTemplateIDs []string `json:"response_template_ids"`
}

func (a apiIncidentType) toType() InvestigationType {
	return InvestigationType{
		Name:            a.IncidentType,
		Description:     a.Description,
		ResponsePlanIDs: a.ResponseTemplateIDs,
	}
}
