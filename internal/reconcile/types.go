// Package reconcile computes the operations needed to make a remote
// response plan tree equal a declared desired tree.
//
// Trees have a fixed shape: ResponsePlan → Phase → Task → Search. Nodes
// are matched across the two trees by exact name; matched nodes keep the
// identifier the store assigned when they were created.
package reconcile

import (
	"fmt"

	"esctl/internal/errors"
)

// DefaultOwner is assigned to tasks without an explicit owner.
const DefaultOwner = "unassigned"

// DefaultTemplateStatus is assigned to plans without an explicit status.
const DefaultTemplateStatus = "draft"

// Search is a saved SPL query attached to a task. Searches carry no
// store identifier; a task's search list is replaced wholesale when it
// changes.
type Search struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	SPL         string `json:"spl" yaml:"spl"`
}

// Task is a unit of work within a phase.
type Task struct {
	ID             string   `json:"id,omitempty" yaml:"-"`
	Name           string   `json:"name" yaml:"name"`
	Description    string   `json:"description,omitempty" yaml:"description,omitempty"`
	IsNoteRequired bool     `json:"is_note_required" yaml:"is_note_required"`
	Owner          string   `json:"owner,omitempty" yaml:"owner,omitempty"`
	Searches       []Search `json:"searches,omitempty" yaml:"searches,omitempty"`
}

// Phase is an ordered group of tasks within a response plan.
type Phase struct {
	ID    string `json:"id,omitempty" yaml:"-"`
	Name  string `json:"name" yaml:"name"`
	Tasks []Task `json:"tasks,omitempty" yaml:"tasks,omitempty"`
}

// ResponsePlan is the root of the tree.
type ResponsePlan struct {
	ID             string  `json:"id,omitempty" yaml:"-"`
	Name           string  `json:"name" yaml:"name"`
	Description    string  `json:"description,omitempty" yaml:"description,omitempty"`
	TemplateStatus string  `json:"template_status,omitempty" yaml:"template_status,omitempty"`
	Phases         []Phase `json:"phases,omitempty" yaml:"phases,omitempty"`
}

// Clone returns a deep copy of the plan.
func (p *ResponsePlan) Clone() *ResponsePlan {
	if p == nil {
		return nil
	}
	out := *p
	out.Phases = make([]Phase, len(p.Phases))
	for i, phase := range p.Phases {
		out.Phases[i] = phase.clone()
	}
	return &out
}

func (ph Phase) clone() Phase {
	out := ph
	out.Tasks = make([]Task, len(ph.Tasks))
	for i, task := range ph.Tasks {
		out.Tasks[i] = task.clone()
	}
	return out
}

func (t Task) clone() Task {
	out := t
	out.Searches = append([]Search(nil), t.Searches...)
	return out
}

// normalize applies the documented field defaults in place.
func (p *ResponsePlan) normalize() {
	if p.TemplateStatus == "" {
		p.TemplateStatus = DefaultTemplateStatus
	}
	for i := range p.Phases {
		for j := range p.Phases[i].Tasks {
			if p.Phases[i].Tasks[j].Owner == "" {
				p.Phases[i].Tasks[j].Owner = DefaultOwner
			}
		}
	}
}

// Validate checks naming and field constraints required for reconciliation:
// phase names unique within the plan, task names unique within each phase,
// and every search carrying a non-empty SPL query.
func (p *ResponsePlan) Validate() error {
	if p == nil {
		return nil
	}

	phaseNames := make(map[string]bool, len(p.Phases))
	for _, phase := range p.Phases {
		if phaseNames[phase.Name] {
			return errors.NewDuplicateNameError("phase", phase.Name, fmt.Sprintf("response plan %q", p.Name))
		}
		phaseNames[phase.Name] = true

		taskNames := make(map[string]bool, len(phase.Tasks))
		for _, task := range phase.Tasks {
			if taskNames[task.Name] {
				return errors.NewDuplicateNameError("task", task.Name, fmt.Sprintf("phase %q", phase.Name))
			}
			taskNames[task.Name] = true

			for _, search := range task.Searches {
				if search.SPL == "" {
					return errors.NewMissingFieldError(
						fmt.Sprintf("search %q in task %q", search.Name, task.Name), "spl")
				}
			}
		}
	}

	return nil
}

// scalarEqual reports whether the node's own fields (not children) match.
func (t Task) scalarEqual(other Task) bool {
	return t.Description == other.Description &&
		t.IsNoteRequired == other.IsNoteRequired &&
		t.Owner == other.Owner
}

func (p *ResponsePlan) scalarEqual(other *ResponsePlan) bool {
	return p.Description == other.Description &&
		p.TemplateStatus == other.TemplateStatus
}
