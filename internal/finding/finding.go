// Package finding manages Splunk Enterprise Security findings via the
// public v2 findings API. Reads go through the configured app; updates go
// through the mission control investigations API, which accepts only a
// restricted field set.
package finding

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"esctl/internal/errors"
	"esctl/internal/log"
	"esctl/internal/refid"
	"esctl/internal/splunk"
	"esctl/internal/timefilter"
)

const (
	// DefaultNamespace is the default API namespace path segment.
	DefaultNamespace = "servicesNS"
	// DefaultUser is the default API user path segment.
	DefaultUser = "nobody"
	// DefaultApp is the app findings are read from.
	DefaultApp = "SplunkEnterpriseSecuritySuite"

	// updateApp is fixed: finding updates always go through mission control.
	updateApp = "missioncontrol"
)

// statusToAPI maps module status values to the wire encoding.
var statusToAPI = map[string]string{
	"unassigned":  "0",
	"new":         "1",
	"in_progress": "2",
	"pending":     "3",
	"resolved":    "4",
	"closed":      "5",
}

// dispositionToAPI maps module disposition values to the wire encoding.
var dispositionToAPI = map[string]string{
	"unassigned":                     "disposition:0",
	"true_positive":                  "disposition:1",
	"benign_positive":                "disposition:2",
	"false_positive":                 "disposition:3",
	"false_positive_inaccurate_data": "disposition:4",
	"other":                          "disposition:5",
	"undetermined":                   "disposition:6",
}

var (
	statusFromAPI      = invert(statusToAPI)
	dispositionFromAPI = invert(dispositionToAPI)
)

func invert(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

// StatusToAPI translates a symbolic status to its wire encoding, passing
// unknown values through. Investigations share the finding status table.
func StatusToAPI(v string) string { return mapValue(statusToAPI, v) }

// StatusFromAPI is the inverse of StatusToAPI.
func StatusFromAPI(v string) string { return mapValue(statusFromAPI, v) }

// DispositionToAPI translates a symbolic disposition to its wire encoding.
func DispositionToAPI(v string) string { return mapValue(dispositionToAPI, v) }

// DispositionFromAPI is the inverse of DispositionToAPI.
func DispositionFromAPI(v string) string { return mapValue(dispositionFromAPI, v) }

// CustomField is an arbitrary extra field flattened into the create payload.
type CustomField struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Finding is a security finding in module terms. Status and Disposition
// hold the symbolic values (e.g. "in_progress", "true_positive"), not the
// wire encodings.
type Finding struct {
	RefID          string        `json:"ref_id,omitempty"`
	Title          string        `json:"title,omitempty"`
	Description    string        `json:"description,omitempty"`
	SecurityDomain string        `json:"security_domain,omitempty"`
	Entity         string        `json:"entity,omitempty"`
	EntityType     string        `json:"entity_type,omitempty"`
	FindingScore   int           `json:"finding_score,omitempty"`
	Owner          string        `json:"owner,omitempty"`
	Status         string        `json:"status,omitempty"`
	Urgency        string        `json:"urgency,omitempty"`
	Disposition    string        `json:"disposition,omitempty"`
	Fields         []CustomField `json:"fields,omitempty"`
}

// UpdateParams are the only fields the store accepts on update. Empty
// fields are omitted from the request.
type UpdateParams struct {
	Owner       string
	Status      string
	Urgency     string
	Disposition string
}

func (p UpdateParams) isZero() bool {
	return p == UpdateParams{}
}

// Result reports the outcome of a write operation.
type Result struct {
	Before  *Finding `json:"before"`
	After   *Finding `json:"after"`
	Changed bool     `json:"changed"`
}

// ListOptions filter the finding listing.
type ListOptions struct {
	// Title filters by exact match after fetching.
	Title string
	// Window bounds the query; zero means the default 24-hour window.
	Window timefilter.Window
	// Limit truncates the (filtered) result when positive.
	Limit int
}

// Service reads and writes findings.
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

// NewService creates a finding service over the given transport.
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
		logger:    logger.With("service", "finding"),
		namespace: cfg.Namespace,
		user:      cfg.User,
		app:       cfg.App,
	}
}

func (s *Service) collectionPath() string {
	return s.namespace + "/" + s.user + "/" + s.app + "/public/v2/findings"
}

func (s *Service) itemPath(refID string) string {
	return s.collectionPath() + "/" + url.PathEscape(refID)
}

func (s *Service) updatePath(refID string) string {
	return s.namespace + "/" + s.user + "/" + updateApp + "/v1/investigations/" + url.PathEscape(refID)
}

// Get fetches a single finding by reference ID. The epoch embedded in the
// reference ID is sent as the earliest bound so findings older than the
// store's default window are still reachable.
func (s *Service) Get(ctx context.Context, refID string) (*Finding, error) {
	query := url.Values{}
	if t, err := refid.NotableTime(refID); err == nil {
		query.Set("earliest", t)
	}

	var raw apiFinding
	if err := s.client.Get(ctx, s.itemPath(refID), query, &raw); err != nil {
		return nil, err
	}

	f := raw.toFinding()
	f.RefID = refID
	return &f, nil
}

// Create creates a new finding. Title, description, security domain,
// entity, entity type, and finding score are required.
func (s *Service) Create(ctx context.Context, f *Finding) (*Finding, error) {
	if err := validateCreate(f); err != nil {
		return nil, err
	}

	payload := createPayload(f)
	s.logger.Debug("creating finding", "title", f.Title)

	var raw apiFinding
	if err := s.client.Post(ctx, s.collectionPath(), nil, payload, &raw); err != nil {
		return nil, err
	}

	after := raw.toFinding()
	return &after, nil
}

// Update applies the restricted update field set to an existing finding.
// The finding must exist, the reference ID must carry a notable time, and
// at least one field must be set. Equal before/after states short-circuit
// with Changed false.
func (s *Service) Update(ctx context.Context, refID string, params UpdateParams) (*Result, error) {
	if params.isZero() {
		return nil, errors.New(errors.ErrCodeMissingField,
			"no updatable fields provided: only owner, status, urgency, and disposition can be updated")
	}

	notableTime, err := refid.NotableTime(refID)
	if err != nil {
		return nil, err
	}

	before, err := s.Get(ctx, refID)
	if err != nil {
		return nil, err
	}

	after := *before
	applyUpdate(&after, params)
	if updatableEqual(&after, before) {
		s.logger.Debug("finding already in desired state", "ref_id", refID)
		return &Result{Before: before, After: before, Changed: false}, nil
	}

	query := url.Values{}
	query.Set("notable_time", notableTime)

	if err := s.client.Post(ctx, s.updatePath(refID), query, updatePayload(params), nil); err != nil {
		return nil, err
	}

	return &Result{Before: before, After: &after, Changed: true}, nil
}

// List fetches findings within the time window, optionally filtered by
// exact title and truncated to the limit.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Finding, error) {
	window := opts.Window.OrDefault()
	if err := window.Validate(); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("earliest", window.Earliest)
	query.Set("latest", window.Latest)
	if opts.Limit > 0 && opts.Title == "" {
		// With no client-side filter the store can truncate for us.
		query.Set("limit", strconv.Itoa(opts.Limit))
	}

	var raw struct {
		Items []apiFinding `json:"items"`
	}
	if err := s.client.Get(ctx, s.collectionPath(), query, &raw); err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	findings := make([]Finding, 0, len(raw.Items))
	for _, item := range raw.Items {
		f := item.toFinding()
		if opts.Title != "" && f.Title != opts.Title {
			continue
		}
		findings = append(findings, f)
	}

	if opts.Limit > 0 && len(findings) > opts.Limit {
		findings = findings[:opts.Limit]
	}
	return findings, nil
}

func validateCreate(f *Finding) error {
	if f == nil || f.Title == "" {
		return errors.NewMissingFieldError("creating finding", "title")
	}
	var missing []string
	for _, field := range []struct {
		name  string
		empty bool
	}{
		{"description", f.Description == ""},
		{"security_domain", f.SecurityDomain == ""},
		{"entity", f.Entity == ""},
		{"entity_type", f.EntityType == ""},
		{"finding_score", f.FindingScore == 0},
	} {
		if field.empty {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return errors.NewMissingFieldError("creating finding", missing...)
	}
	return nil
}

// updatableEqual compares only the fields the update endpoint accepts.
func updatableEqual(a, b *Finding) bool {
	return a.Owner == b.Owner &&
		a.Status == b.Status &&
		a.Urgency == b.Urgency &&
		a.Disposition == b.Disposition
}

func applyUpdate(f *Finding, params UpdateParams) {
	if params.Owner != "" {
		f.Owner = params.Owner
	}
	if params.Status != "" {
		f.Status = params.Status
	}
	if params.Urgency != "" {
		f.Urgency = params.Urgency
	}
	if params.Disposition != "" {
		f.Disposition = params.Disposition
	}
}

// createPayload renders a finding in the wire key vocabulary. Custom
// fields are flattened into the top level.
func createPayload(f *Finding) map[string]any {
	payload := map[string]any{
		"rule_title":       f.Title,
		"rule_description": f.Description,
		"security_domain":  f.SecurityDomain,
		"risk_object":      f.Entity,
		"risk_object_type": f.EntityType,
		"risk_score":       f.FindingScore,
		"app":              DefaultApp,
		"creator":          "admin",
	}
	setIfPresent(payload, "owner", f.Owner)
	setIfPresent(payload, "status", mapValue(statusToAPI, f.Status))
	setIfPresent(payload, "urgency", f.Urgency)
	setIfPresent(payload, "disposition", mapValue(dispositionToAPI, f.Disposition))
	for _, field := range f.Fields {
		if field.Name != "" {
			payload[field.Name] = field.Value
		}
	}
	return payload
}

// updatePayload renders the restricted update set. The store calls the
// owner "assignee" on this endpoint.
func updatePayload(params UpdateParams) map[string]string {
	payload := map[string]string{}
	if params.Owner != "" {
		payload["assignee"] = params.Owner
	}
	if params.Status != "" {
		payload["status"] = mapValue(statusToAPI, params.Status)
	}
	if params.Urgency != "" {
		payload["urgency"] = params.Urgency
	}
	if params.Disposition != "" {
		payload["disposition"] = mapValue(dispositionToAPI, params.Disposition)
	}
	return payload
}

func setIfPresent(payload map[string]any, key, value string) {
	if value != "" {
		payload[key] = value
	}
}

// mapValue translates via m, passing unknown values through unchanged.
func mapValue(m map[string]string, v string) string {
	if mapped, ok := m[v]; ok {
		return mapped
	}
	return v
}

// flexString tolerates the store returning either a JSON string or a
// bare number for the same field.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(strings.TrimSpace(string(b)))
	return nil
}

// apiFinding is the wire shape of a finding.
type apiFinding struct {
	FindingID       string     `json:"finding_id"`
	RuleTitle       string     `json:"rule_title"`
	RuleDescription string     `json:"rule_description"`
	SecurityDomain  string     `json:"security_domain"`
	RiskObject      string     `json:"risk_object"`
	RiskObjectType  string     `json:"risk_object_type"`
	RiskScore       flexString `json:"risk_score"`
	Owner           string     `json:"owner"`
	Status          flexString `json:"status"`
	Urgency         string     `json:"urgency"`
	Disposition     string     `json:"disposition"`
}

func (a apiFinding) toFinding() Finding {
	f := Finding{
		RefID:          a.FindingID,
		Title:          a.RuleTitle,
		Description:    a.RuleDescription,
		SecurityDomain: a.SecurityDomain,
		Entity:         a.RiskObject,
		EntityType:     a.RiskObjectType,
		Owner:          a.Owner,
		Urgency:        a.Urgency,
	}
	if a.Status != "" {
		f.Status = mapValue(statusFromAPI, string(a.Status))
	}
	if a.Disposition != "" {
		f.Disposition = mapValue(dispositionFromAPI, a.Disposition)
	}
	// The store reports scores as strings like "25.0".
	if score, err := strconv.ParseFloat(string(a.RiskScore), 64); err == nil {
		f.FindingScore = int(score)
	}
	return f
}
