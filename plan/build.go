package plan

import (
	"sort"

	"github.com/converge/converge/graph"
	"github.com/converge/converge/state"
	"github.com/pkg/errors"
	"github.com/zclconf/go-cty/cty"
)

// Build diffs the desired graph against recorded state and produces the
// plan. Instances are processed in dependency order so that an instance
// whose parents are unchanged is diffed against fully known values; a value
// fed from a changed parent stays unknown and conservatively counts as a
// change.
func Build(g *graph.Graph, recs map[string]*state.Record) (*Plan, error) {
	p := &Plan{}

	// Attribute values of unchanged instances, used to resolve references
	// from their children.
	settled := make(map[string]cty.Value)

	declared := make(map[string]bool)
	for _, n := range g.TopoOrder() {
		addr := n.Resource.Addr.String()
		declared[addr] = true

		desired, err := n.ResolveInput(g.Variables(settled))
		if err != nil {
			return nil, err
		}

		rec := recs[addr]
		change := diff(n, desired, rec)
		if change.Action == NoOp {
			settled[addr] = rec.Attrs
		}
		p.Changes = append(p.Changes, change)
	}

	orphans := make(map[string]*state.Record)
	for addr, rec := range recs {
		if !declared[addr] {
			orphans[addr] = rec
		}
	}
	destroys, err := orderDestroys(orphans)
	if err != nil {
		return nil, err
	}
	p.Destroys = destroys
	return p, nil
}

// DestroyAll plans the removal of everything in recorded state, ordered so
// every resource is destroyed before its dependencies.
func DestroyAll(recs map[string]*state.Record) (*Plan, error) {
	destroys, err := orderDestroys(recs)
	if err != nil {
		return nil, err
	}
	return &Plan{Destroys: destroys}, nil
}

// diff classifies a single instance.
func diff(n *graph.Node, desired cty.Value, rec *state.Record) *Change {
	change := &Change{
		Addr:   n.Resource.Addr,
		After:  desired,
		Record: rec,
	}
	if rec == nil {
		change.Action = Create
		return change
	}
	change.Before = rec.Attrs
	if rec.Tainted {
		change.Action = Replace
		change.Tainted = true
		return change
	}

	var forced []string
	changed := false
	prev := rec.Attrs.AsValueMap()
	for name, attr := range n.Schema.Attributes {
		if attr.Computed {
			continue
		}
		next := desired.GetAttr(name)
		if next.IsWhollyKnown() && next.RawEquals(prev[name]) {
			continue
		}
		changed = true
		if attr.ForceNew {
			forced = append(forced, name)
		}
	}
	switch {
	case len(forced) > 0:
		sort.Strings(forced)
		change.Action = Replace
		change.ForcedBy = forced
	case changed:
		change.Action = Update
	default:
		change.Action = NoOp
	}
	return change
}

// orderDestroys orders the given records so that every record appears
// before the records it depends on. Ordering is derived from the dependency
// addresses captured when each resource was applied. Ties are broken
// lexicographically so the result is deterministic.
func orderDestroys(recs map[string]*state.Record) ([]*Change, error) {
	if len(recs) == 0 {
		return nil, nil
	}

	// blocking[p] counts the records that still depend on p and must be
	// destroyed first.
	blocking := make(map[string]int, len(recs))
	for addr := range recs {
		blocking[addr] = 0
	}
	for _, rec := range recs {
		for _, dep := range rec.Deps {
			if _, ok := recs[dep]; ok {
				blocking[dep]++
			}
		}
	}

	var ready []string
	for addr, n := range blocking {
		if n == 0 {
			ready = append(ready, addr)
		}
	}
	sort.Strings(ready)

	var out []*Change
	for len(ready) > 0 {
		addr := ready[0]
		ready = ready[1:]
		rec := recs[addr]
		out = append(out, &Change{
			Addr:   rec.Addr,
			Action: Destroy,
			Before: rec.Attrs,
			Record: rec,
		})
		freed := false
		for _, dep := range rec.Deps {
			if _, ok := recs[dep]; !ok {
				continue
			}
			blocking[dep]--
			if blocking[dep] == 0 {
				ready = append(ready, dep)
				freed = true
			}
		}
		if freed {
			sort.Strings(ready)
		}
	}
	if len(out) != len(recs) {
		return nil, errors.New("dependency cycle in recorded state")
	}
	return out, nil
}
