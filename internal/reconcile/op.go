package reconcile

import "fmt"

// Action classifies an operation.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Level names the tree level an operation applies to.
type Level string

const (
	LevelPlan   Level = "plan"
	LevelPhase  Level = "phase"
	LevelTask   Level = "task"
	LevelSearch Level = "search"
)

// Op is a single create/update/delete step in a reconciliation plan.
type Op struct {
	Action Action `json:"action"`
	Level  Level  `json:"level"`

	// Name is the node's matching key at its level.
	Name string `json:"name"`

	// Path locates the node in the tree, e.g.
	// `phase "Containment" > task "Triage"`.
	Path string `json:"path"`

	// ID is the node's stable identifier where one exists. Searches
	// carry no identifier. Creates carry the freshly assigned ID.
	ID string `json:"id,omitempty"`
}

// String renders the op for dry-run output.
func (o Op) String() string {
	return fmt.Sprintf("%s %s %s", o.Action, o.Level, o.Path)
}

// Plan is an ordered list of operations plus before/after snapshots for
// reporting. Deletions come first (searches, then tasks, then phases, so
// children go before their parents), followed by updates and creates in
// top-down order.
type Plan struct {
	Ops    []Op          `json:"ops"`
	Before *ResponsePlan `json:"before"`
	After  *ResponsePlan `json:"after"`
}

// Changed reports whether applying the plan would modify the store.
func (p *Plan) Changed() bool {
	return len(p.Ops) > 0
}

// Counts returns the number of creates, updates, and deletes in the plan.
func (p *Plan) Counts() (creates, updates, deletes int) {
	for _, op := range p.Ops {
		switch op.Action {
		case ActionCreate:
			creates++
		case ActionUpdate:
			updates++
		case ActionDelete:
			deletes++
		}
	}
	return creates, updates, deletes
}
