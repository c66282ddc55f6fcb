package resource

import (
	"github.com/zclconf/go-cty/cty"
)

// A State describes where in its lifecycle a resource instance is.
type State int

// Lifecycle states for a resource instance.
const (
	StatePlanned State = iota
	StateCreated
	StateUpdated
	StateDestroyed
	StateTainted
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StatePlanned:
		return "planned"
	case StateCreated:
		return "created"
	case StateUpdated:
		return "updated"
	case StateDestroyed:
		return "destroyed"
	case StateTainted:
		return "tainted"
	}
	return "unknown"
}

// A Resource is a single desired resource instance, decoded from user
// configuration.
//
// Input is an object value matching the non-computed attributes of the
// resource's schema. Attributes that receive their value from another
// resource are unknown until resolved; the expressions producing those
// values are kept on the graph node that owns the resource.
//
// Output is set by the executor after a successful provider call and
// contains the full attribute set, including computed attributes.
type Resource struct {
	Addr   Addr
	Input  cty.Value
	Output cty.Value

	// Deps are the addresses of the parent instances this resource takes
	// values from. Populated by the graph builder.
	Deps []Addr

	// State is transitioned by the executor only.
	State State
}
