// Package plan computes the set of changes needed to move recorded state to
// the desired configuration.
//
// A plan walks the dependency graph in topological order and classifies
// every instance as no-op, create, update or replace. Recorded resources no
// longer present in the configuration become destroys, ordered so that a
// resource is destroyed before anything it depended on.
package plan

import (
	"fmt"
	"io"
	"strings"

	"github.com/converge/converge/resource"
	"github.com/converge/converge/state"
	"github.com/zclconf/go-cty/cty"
)

// An Action is the operation the executor performs for a single instance.
type Action int

// Actions, in increasing order of disruption.
const (
	NoOp Action = iota
	Create
	Update
	Replace
	Destroy
)

// String implements fmt.Stringer.
func (a Action) String() string {
	switch a {
	case NoOp:
		return "no-op"
	case Create:
		return "create"
	case Update:
		return "update"
	case Replace:
		return "replace"
	case Destroy:
		return "destroy"
	}
	return "unknown"
}

// symbol is the rendered prefix for an action.
func (a Action) symbol() string {
	switch a {
	case Create:
		return "+"
	case Update:
		return "~"
	case Replace:
		return "-/+"
	case Destroy:
		return "-"
	}
	return " "
}

// A Change is the planned action for one resource instance.
type Change struct {
	Addr   resource.Addr
	Action Action

	// Before holds the recorded attributes. NilVal for creates.
	Before cty.Value

	// After holds the desired input attributes. Values fed from changed
	// parents are unknown until applied. NilVal for destroys.
	After cty.Value

	// Record is the existing state record, nil for creates.
	Record *state.Record

	// Tainted reports that the replace was forced by a taint rather than
	// an attribute diff.
	Tainted bool

	// ForcedBy names the attributes whose change forced a replace.
	ForcedBy []string
}

// A Plan is an ordered set of changes.
type Plan struct {
	// Changes covers every instance in the configuration, in dependency
	// order. Unchanged instances are included with action NoOp.
	Changes []*Change

	// Destroys covers recorded resources absent from the configuration,
	// ordered so every resource appears before its dependencies.
	Destroys []*Change
}

// Empty reports whether applying the plan would do nothing.
func (p *Plan) Empty() bool {
	for _, c := range p.Changes {
		if c.Action != NoOp {
			return false
		}
	}
	return len(p.Destroys) == 0
}

// Counts returns the number of instances to add, change and destroy.
// A replace counts as both an add and a destroy.
func (p *Plan) Counts() (add, change, destroy int) {
	for _, c := range p.Changes {
		switch c.Action {
		case Create:
			add++
		case Update:
			change++
		case Replace:
			add++
			destroy++
		}
	}
	destroy += len(p.Destroys)
	return add, change, destroy
}

// Render writes a human readable summary of the plan.
func (p *Plan) Render(w io.Writer) error {
	if p.Empty() {
		_, err := fmt.Fprintln(w, "No changes. Infrastructure is up-to-date.")
		return err
	}
	for _, c := range p.Changes {
		if c.Action == NoOp {
			continue
		}
		suffix := ""
		if c.Action == Replace {
			if c.Tainted {
				suffix = " (tainted)"
			} else if len(c.ForcedBy) > 0 {
				suffix = fmt.Sprintf(" (%s forces replacement)", strings.Join(c.ForcedBy, ", "))
			}
		}
		if _, err := fmt.Fprintf(w, "  %-3s %s%s\n", c.Action.symbol(), c.Addr, suffix); err != nil {
			return err
		}
	}
	for _, c := range p.Destroys {
		if _, err := fmt.Fprintf(w, "  %-3s %s\n", c.Action.symbol(), c.Addr); err != nil {
			return err
		}
	}
	add, change, destroy := p.Counts()
	_, err := fmt.Fprintf(w, "\nPlan: %d to add, %d to change, %d to destroy.\n", add, change, destroy)
	return err
}

// String renders the plan to a string.
func (p *Plan) String() string {
	var sb strings.Builder
	p.Render(&sb) // nolint: errcheck
	return sb.String()
}
