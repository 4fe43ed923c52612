// Package investigation manages Splunk Enterprise Security investigations
// via the mission control public v2 API. An investigation's name is fixed
// at creation; attached findings go through a dedicated sub-endpoint and
// are only ever added, never detached.
package investigation

import (
	"context"
	"encoding/json"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"esctl/internal/errors"
	"esctl/internal/finding"
	"esctl/internal/log"
	"esctl/internal/splunk"
	"esctl/internal/timefilter"
)

const (
	// DefaultNamespace is the default API namespace path segment.
	DefaultNamespace = "servicesNS"
	// DefaultUser is the default API user path segment.
	DefaultUser = "nobody"
	// DefaultApp is the mission control app hosting the investigations API.
	DefaultApp = "missioncontrol"
)

// sensitivityToAPI maps module sensitivity values to the wire encoding,
// which capitalizes the TLP color names.
var sensitivityToAPI = map[string]string{
	"white":      "White",
	"green":      "Green",
	"amber":      "Amber",
	"red":        "Red",
	"unassigned": "Unassigned",
}

var sensitivityFromAPI = func() map[string]string {
	out := make(map[string]string, len(sensitivityToAPI))
	for k, v := range sensitivityToAPI {
		out[v] = k
	}
	return out
}()

// Investigation is an investigation in module terms. Status, Disposition,
// and Sensitivity hold symbolic values, not wire encodings.
type Investigation struct {
	RefID       string   `json:"ref_id,omitempty"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status,omitempty"`
	Disposition string   `json:"disposition,omitempty"`
	Owner       string   `json:"owner,omitempty"`
	Urgency     string   `json:"urgency,omitempty"`
	Sensitivity string   `json:"sensitivity,omitempty"`
	FindingIDs  []string `json:"finding_ids,omitempty"`
}

// UpdateParams are the fields the store accepts on update. The name is
// fixed at creation and deliberately absent. FindingIDs are attached
// through the findings sub-endpoint; IDs already present are skipped.
type UpdateParams struct {
	Description string
	Status      string
	Disposition string
	Owner       string
	Urgency     string
	Sensitivity string
	FindingIDs  []string
}

func (p UpdateParams) isZero() bool {
	return p.Description == "" && p.Status == "" && p.Disposition == "" &&
		p.Owner == "" && p.Urgency == "" && p.Sensitivity == "" &&
		len(p.FindingIDs) == 0
}

// Result reports the outcome of a write operation.
type Result struct {
	Before  *Investigation `json:"before"`
	After   *Investigation `json:"after"`
	Changed bool           `json:"changed"`
}

// ListOptions filter the investigation listing.
type ListOptions struct {
	// Name filters by exact match after fetching.
	Name string
	// Window bounds creation time; zero means the default 24-hour window.
	Window timefilter.Window
	// Limit truncates the (filtered) result when positive.
	Limit int
}

// Service reads and writes investigations.
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

// NewService creates an investigation service over the given transport.
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
		logger:    logger.With("service", "investigation"),
		namespace: cfg.Namespace,
		user:      cfg.User,
		app:       cfg.App,
	}
}

func (s *Service) collectionPath() string {
	return s.namespace + "/" + s.user + "/" + s.app + "/public/v2/investigations"
}

func (s *Service) itemPath(refID string) string {
	return s.collectionPath() + "/" + url.PathEscape(refID)
}

func (s *Service) findingsPath(refID string) string {
	return s.itemPath(refID) + "/findings"
}

// Get fetches a single investigation by reference ID. The store exposes
// this as an ids filter on the collection rather than an item path.
func (s *Service) Get(ctx context.Context, refID string) (*Investigation, error) {
	query := url.Values{}
	query.Set("ids", refID)

	var raw []apiInvestigation
	if err := s.client.Get(ctx, s.collectionPath(), query, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errors.NewNotFoundError("investigation", refID)
	}

	inv := raw[0].toInvestigation()
	inv.RefID = refID
	return &inv, nil
}

// Create creates a new investigation. Only the name is required; the
// store returns just the GUID, so the after state merges the input with
// the assigned reference ID.
func (s *Service) Create(ctx context.Context, inv *Investigation) (*Investigation, error) {
	if inv == nil || inv.Name == "" {
		return nil, errors.NewMissingFieldError("creating investigation", "name")
	}

	s.logger.Debug("creating investigation", "name", inv.Name)

	var raw apiInvestigation
	if err := s.client.Post(ctx, s.collectionPath(), nil, createPayload(inv), &raw); err != nil {
		return nil, err
	}

	after := *inv
	after.RefID = raw.InvestigationGUID
	return &after, nil
}

// Update applies field changes and finding attachments to an existing
// investigation. Field updates and finding attachments are independent
// writes; either alone marks the result changed.
func (s *Service) Update(ctx context.Context, refID string, params UpdateParams) (*Result, error) {
	if params.isZero() {
		return nil, errors.New(errors.ErrCodeMissingField,
			"no updatable fields provided: the investigation name cannot be updated")
	}

	before, err := s.Get(ctx, refID)
	if err != nil {
		return nil, err
	}

	after := *before
	after.FindingIDs = slices.Clone(before.FindingIDs)
	changed := false

	if payload := updatePayload(before, params); len(payload) > 0 {
		if err := s.client.Post(ctx, s.itemPath(refID), nil, payload, nil); err != nil {
			return nil, err
		}
		applyFields(&after, params)
		changed = true
	}

	if added, err := s.attachFindings(ctx, refID, before.FindingIDs, params.FindingIDs); err != nil {
		return nil, err
	} else if len(added) > 0 {
		after.FindingIDs = append(after.FindingIDs, added...)
		changed = true
	}

	if !changed {
		s.logger.Debug("investigation already in desired state", "ref_id", refID)
		return &Result{Before: before, After: before, Changed: false}, nil
	}
	return &Result{Before: before, After: &after, Changed: true}, nil
}

// attachFindings adds the findings not already attached and returns them.
func (s *Service) attachFindings(ctx context.Context, refID string, existing, desired []string) ([]string, error) {
	var added []string
	for _, id := range desired {
		if !slices.Contains(existing, id) {
			added = append(added, id)
		}
	}
	if len(added) == 0 {
		return nil, nil
	}

	s.logger.Debug("attaching findings", "ref_id", refID, "count", len(added))
	payload := map[string][]string{"finding_ids": added}
	if err := s.client.Post(ctx, s.findingsPath(refID), nil, payload, nil); err != nil {
		return nil, err
	}
	return added, nil
}

// List fetches investigations created within the time window, optionally
// filtered by exact name and truncated to the limit.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Investigation, error) {
	window := opts.Window.OrDefault()
	if err := window.Validate(); err != nil {
		return nil, err
	}

	// This endpoint names its time bounds after creation time.
	query := url.Values{}
	query.Set("create_time_min", window.Earliest)
	query.Set("create_time_max", window.Latest)
	if opts.Limit > 0 && opts.Name == "" {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}

	var raw []apiInvestigation
	if err := s.client.Get(ctx, s.collectionPath(), query, &raw); err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	investigations := make([]Investigation, 0, len(raw))
	for _, item := range raw {
		inv := item.toInvestigation()
		if opts.Name != "" && inv.Name != opts.Name {
			continue
		}
		investigations = append(investigations, inv)
	}

	if opts.Limit > 0 && len(investigations) > opts.Limit {
		investigations = investigations[:opts.Limit]
	}
	return investigations, nil
}

func applyFields(inv *Investigation, params UpdateParams) {
	if params.Description != "" {
		inv.Description = params.Description
	}
	if params.Status != "" {
		inv.Status = params.Status
	}
	if params.Disposition != "" {
		inv.Disposition = params.Disposition
	}
	if params.Owner != "" {
		inv.Owner = params.Owner
	}
	if params.Urgency != "" {
		inv.Urgency = params.Urgency
	}
	if params.Sensitivity != "" {
		inv.Sensitivity = params.Sensitivity
	}
}

func createPayload(inv *Investigation) map[string]any {
	payload := map[string]any{"name": inv.Name}
	setIfPresent(payload, "description", inv.Description)
	setIfPresent(payload, "status", finding.StatusToAPI(inv.Status))
	setIfPresent(payload, "disposition", finding.DispositionToAPI(strings.ToLower(inv.Disposition)))
	setIfPresent(payload, "owner", inv.Owner)
	setIfPresent(payload, "urgency", inv.Urgency)
	setIfPresent(payload, "sensitivity", mapValue(sensitivityToAPI, strings.ToLower(inv.Sensitivity)))
	if len(inv.FindingIDs) > 0 {
		payload["finding_ids"] = inv.FindingIDs
	}
	return payload
}

// updatePayload renders the fields that actually differ from the current
// state. An empty map means no field write is needed.
func updatePayload(before *Investigation, params UpdateParams) map[string]any {
	payload := map[string]any{}
	if params.Description != "" && params.Description != before.Description {
		payload["description"] = params.Description
	}
	if params.Status != "" && params.Status != before.Status {
		payload["status"] = finding.StatusToAPI(params.Status)
	}
	if params.Disposition != "" && params.Disposition != before.Disposition {
		payload["disposition"] = finding.DispositionToAPI(strings.ToLower(params.Disposition))
	}
	if params.Owner != "" && params.Owner != before.Owner {
		payload["owner"] = params.Owner
	}
	if params.Urgency != "" && params.Urgency != before.Urgency {
		payload["urgency"] = params.Urgency
	}
	if params.Sensitivity != "" && params.Sensitivity != before.Sensitivity {
		payload["sensitivity"] = mapValue(sensitivityToAPI, strings.ToLower(params.Sensitivity))
	}
	return payload
}

func setIfPresent(payload map[string]any, key, value string) {
	if value != "" {
		payload[key] = value
	}
}

func mapValue(m map[string]string, v string) string {
	if mapped, ok := m[v]; ok {
		return mapped
	}
	return v
}

// apiInvestigation is the wire shape of an investigation.
type apiInvestigation struct {
	InvestigationGUID string `json:"investigation_guid"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	Status            json.RawMessage `json:"status"`
	Disposition       string `json:"disposition"`
	Owner             string `json:"owner"`
	Urgency           string `json:"urgency"`
	Sensitivity       string `json:"sensitivity"`

	ConsolidatedFindings struct {
		// EventID is a single string or a list depending on how many
		// findings are attached.
		EventID json.RawMessage `json:"event_id"`
	} `json:"consolidated_findings"`
}

func (a apiInvestigation) toInvestigation() Investigation {
	inv := Investigation{
		RefID:       a.InvestigationGUID,
		Name:        a.Name,
		Description: a.Description,
		Owner:       a.Owner,
		Urgency:     a.Urgency,
	}
	if status := rawScalar(a.Status); status != "" {
		inv.Status = finding.StatusFromAPI(status)
	}
	if a.Disposition != "" {
		inv.Disposition = finding.DispositionFromAPI(a.Disposition)
	}
	if a.Sensitivity != "" {
		inv.Sensitivity = mapValue(sensitivityFromAPI, a.Sensitivity)
	}
	inv.FindingIDs = decodeEventIDs(a.ConsolidatedFindings.EventID)
	return inv
}

// rawScalar renders a JSON string or number as its plain text value.
func rawScalar(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	return strings.TrimSpace(string(raw))
}

// decodeEventIDs accepts either a single string or a list of strings.
func decodeEventIDs(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return []string{single}
	}
	return nil
}
