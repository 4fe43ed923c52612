// Package notes manages notes attached to findings, investigations, and
// applied response plan tasks. All three share one note shape; they
// differ only in the path addressing the parent object.
package notes

import (
	"context"
	"net/url"
	"strings"

	"esctl/internal/errors"
	"esctl/internal/log"
	"esctl/internal/refid"
	"esctl/internal/splunk"
)

const (
	// DefaultNamespace is the default API namespace path segment.
	DefaultNamespace = "servicesNS"
	// DefaultUser is the default API user path segment.
	DefaultUser = "nobody"
	// DefaultApp is the mission control app hosting the notes endpoints.
	DefaultApp = "missioncontrol"

	// listLimit caps a notes listing, newest first.
	listLimit = "100"
)

// TargetType names the kind of object a note is attached to.
type TargetType string

const (
	TargetFinding          TargetType = "finding"
	TargetInvestigation    TargetType = "investigation"
	TargetResponsePlanTask TargetType = "response_plan_task"
)

// Target identifies the object a note operation applies to. Which fields
// are required depends on Type.
type Target struct {
	Type TargetType

	// FindingRefID addresses a finding (Type == TargetFinding).
	FindingRefID string

	// InvestigationRefID addresses an investigation; also required for
	// task notes.
	InvestigationRefID string

	// ResponsePlanID, PhaseID, and TaskID locate an applied response
	// plan task (Type == TargetResponsePlanTask).
	ResponsePlanID string
	PhaseID        string
	TaskID         string
}

// Validate checks that the identifiers the target type needs are present.
func (t Target) Validate() error {
	var required []struct {
		name  string
		value string
	}
	switch t.Type {
	case TargetFinding:
		required = []struct{ name, value string }{
			{"finding_ref_id", t.FindingRefID},
		}
	case TargetInvestigation:
		required = []struct{ name, value string }{
			{"investigation_ref_id", t.InvestigationRefID},
		}
	case TargetResponsePlanTask:
		required = []struct{ name, value string }{
			{"investigation_ref_id", t.InvestigationRefID},
			{"response_plan_id", t.ResponsePlanID},
			{"phase_id", t.PhaseID},
			{"task_id", t.TaskID},
		}
	default:
		return errors.NewInvalidFieldError("target_type", string(t.Type),
			"must be finding, investigation, or response_plan_task")
	}

	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return errors.NewMissingFieldError("target_type '"+string(t.Type)+"'", missing...)
	}
	return nil
}

// Note is a single note in module terms.
type Note struct {
	ID      string `json:"note_id"`
	Content string `json:"content"`
}

// Result reports the outcome of a write operation.
type Result struct {
	Before  *Note `json:"before"`
	After   *Note `json:"after"`
	Changed bool  `json:"changed"`
}

// Service reads and writes notes.
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

// NewService creates a notes service over the given transport.
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
		logger:    logger.With("service", "notes"),
		namespace: cfg.Namespace,
		user:      cfg.User,
		app:       cfg.App,
	}
}

// notesPath builds the collection path for a target. Finding and
// investigation notes share one endpoint keyed by either identifier.
func (s *Service) notesPath(target Target) string {
	base := s.namespace + "/" + s.user + "/" + s.app + "/public/v2/investigations/"
	if target.Type == TargetResponsePlanTask {
		return base + url.PathEscape(target.InvestigationRefID) +
			"/responseplans/" + url.PathEscape(target.ResponsePlanID) +
			"/phase/" + url.PathEscape(target.PhaseID) +
			"/tasks/" + url.PathEscape(target.TaskID) + "/notes"
	}
	id := target.InvestigationRefID
	if target.Type == TargetFinding {
		id = target.FindingRefID
	}
	return base + url.PathEscape(id) + "/notes"
}

func (s *Service) notePath(target Target, noteID string) string {
	return s.notesPath(target) + "/" + url.PathEscape(noteID)
}

// query returns the query parameters the target needs. Finding notes need
// the notable time so the store can locate findings outside its default
// window.
func (s *Service) query(target Target) url.Values {
	query := url.Values{}
	if target.Type == TargetFinding {
		if t, err := refid.NotableTime(target.FindingRefID); err == nil {
			query.Set("notable_time", t)
		}
	}
	return query
}

// List fetches the notes attached to the target, newest first.
func (s *Service) List(ctx context.Context, target Target) ([]Note, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}

	query := s.query(target)
	query.Set("limit", listLimit)
	query.Set("sort", "create_time:-1")

	var raw struct {
		Items []apiNote `json:"items"`
	}
	if err := s.client.Get(ctx, s.notesPath(target), query, &raw); err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	notes := make([]Note, 0, len(raw.Items))
	for _, item := range raw.Items {
		notes = append(notes, item.toNote())
	}
	return notes, nil
}

// Get fetches a single note by ID. The store has no per-note read for
// every target, so this lists and filters.
func (s *Service) Get(ctx context.Context, target Target, noteID string) (*Note, error) {
	all, err := s.List(ctx, target)
	if err != nil {
		return nil, err
	}
	for _, note := range all {
		if note.ID == noteID {
			return &note, nil
		}
	}
	return nil, errors.NewNotFoundError("note", noteID)
}

// Create attaches a new note with the given content to the target.
func (s *Service) Create(ctx context.Context, target Target, content string) (*Result, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, errors.NewMissingFieldError("creating note", "content")
	}

	s.logger.Debug("creating note", "target_type", string(target.Type))

	var raw apiNote
	payload := map[string]string{"content": content}
	if err := s.client.Post(ctx, s.notesPath(target), s.query(target), payload, &raw); err != nil {
		return nil, err
	}

	after := raw.toNote()
	if after.ID == "" {
		after = Note{Content: content}
	}
	return &Result{After: &after, Changed: true}, nil
}

// Update rewrites a note's content. Equal content short-circuits with
// Changed false.
func (s *Service) Update(ctx context.Context, target Target, noteID, content string) (*Result, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, errors.NewMissingFieldError("updating note", "content")
	}

	before, err := s.Get(ctx, target, noteID)
	if err != nil {
		return nil, err
	}

	if before.Content == content {
		s.logger.Debug("note already in desired state", "note_id", noteID)
		return &Result{Before: before, After: before, Changed: false}, nil
	}

	payload := map[string]string{"content": content}
	if err := s.client.Post(ctx, s.notePath(target, noteID), s.query(target), payload, nil); err != nil {
		return nil, err
	}

	after := Note{ID: noteID, Content: content}
	return &Result{Before: before, After: &after, Changed: true}, nil
}

// Delete removes a note by ID.
func (s *Service) Delete(ctx context.Context, target Target, noteID string) error {
	if err := target.Validate(); err != nil {
		return err
	}
	if noteID == "" {
		return errors.NewMissingFieldError("deleting note", "note_id")
	}

	s.logger.Debug("deleting note", "note_id", noteID)
	return s.client.Delete(ctx, s.notePath(target, noteID))
}

// apiNote is the wire shape of a note.
type apiNote struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

func (a apiNote) toNote() Note {
	return Note{ID: a.ID, Content: a.Content}
}
