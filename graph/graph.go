// Package graph builds and maintains the dependency graph of resource
// instances.
//
// Nodes are resource instances (count-expanded), edges point from a parent
// to the instances that reference its values. The graph is a DAG; building
// fails with CycleError otherwise.
package graph

import (
	"sort"

	"github.com/converge/converge/resource"
	"github.com/pkg/errors"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// A Dependency carries the expression that produces the value for a single
// field on a resource instance.
type Dependency struct {
	// Field is the attribute receiving the value.
	Field cty.Path

	// Expression produces the value. It may refer to multiple parents.
	Expression resource.Expression
}

// A Node is a single resource instance in the graph.
type Node struct {
	graph.Node

	Resource *resource.Resource
	Schema   resource.Schema
	Deps     []Dependency

	decl int
}

// DOTID names the node when the graph is marshalled to graphviz dot.
func (n *Node) DOTID() string { return n.Resource.Addr.String() }

// ResolveInput evaluates the node's dependency expressions against the
// given variables and returns the input object with the resolved values
// filled in. Values whose parents are not present in vars resolve to
// unknown.
func (n *Node) ResolveInput(vars map[string]cty.Value) (cty.Value, error) {
	if len(n.Deps) == 0 {
		return n.Resource.Input, nil
	}
	attrs := n.Resource.Input.AsValueMap()
	ctx := &resource.EvalContext{Variables: vars}
	for _, dep := range n.Deps {
		name := dep.Field[0].(cty.GetAttrStep).Name
		val, err := dep.Expression.Value(ctx)
		if err != nil {
			return cty.NilVal, errors.Wrapf(err, "resolve %s.%s", n.Resource.Addr, name)
		}
		if val.IsWhollyKnown() {
			want := n.Schema.Attributes[name].Type
			converted, err := convert.Convert(val, want)
			if err != nil {
				return cty.NilVal, errors.Wrapf(err, "convert %s.%s", n.Resource.Addr, name)
			}
			val = converted
		}
		attrs[name] = val
	}
	return cty.ObjectVal(attrs), nil
}

// A Graph is the dependency graph for one configuration.
//
// The Graph must be created with Build.
type Graph struct {
	g     *simple.DirectedGraph
	nodes map[string]*Node
	decl  []*Node
	topo  []*Node
}

func newGraph() *Graph {
	return &Graph{
		g:     simple.NewDirectedGraph(),
		nodes: make(map[string]*Node),
	}
}

func (g *Graph) add(res *resource.Resource, schema resource.Schema, deps []Dependency) *Node {
	n := &Node{
		Node:     g.g.NewNode(),
		Resource: res,
		Schema:   schema,
		Deps:     deps,
		decl:     len(g.decl),
	}
	g.g.AddNode(n)
	g.nodes[res.Addr.String()] = n
	g.decl = append(g.decl, n)
	return n
}

// connect adds an edge from parent to child. Adding the same edge twice is
// a no-op.
func (g *Graph) connect(parent, child *Node) {
	g.g.SetEdge(g.g.NewEdge(parent, child))
}

// Node returns the node with the given address, or nil.
func (g *Graph) Node(addr string) *Node {
	return g.nodes[addr]
}

// Nodes returns all nodes in declaration order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.decl))
	copy(out, g.decl)
	return out
}

// TopoOrder returns the nodes in dependency order: every node appears after
// all nodes it depends on. Ties are broken by declaration order, so the
// result is deterministic for a given configuration.
func (g *Graph) TopoOrder() []*Node {
	out := make([]*Node, len(g.topo))
	copy(out, g.topo)
	return out
}

// Dependencies returns the parent nodes the given node takes values from.
func (g *Graph) Dependencies(n *Node) []*Node {
	var out []*Node
	it := g.g.To(n.ID())
	for it.Next() {
		out = append(out, it.Node().(*Node))
	}
	sortNodes(out)
	return out
}

// Dependents returns the child nodes that take values from the given node.
func (g *Graph) Dependents(n *Node) []*Node {
	var out []*Node
	it := g.g.From(n.ID())
	for it.Next() {
		out = append(out, it.Node().(*Node))
	}
	sortNodes(out)
	return out
}

// Leaves returns the nodes no other node depends on. An apply walk starts
// here and recurses into dependencies.
func (g *Graph) Leaves() []*Node {
	var out []*Node
	for _, n := range g.decl {
		if g.g.From(n.ID()).Len() == 0 {
			out = append(out, n)
		}
	}
	return out
}

// Variables builds expression variables from per-address values. Nodes
// without an entry in known are included as unknown, typed after their
// schema, so references to them evaluate to unknown rather than failing.
func (g *Graph) Variables(known map[string]cty.Value) map[string]cty.Value {
	vals := make(map[resource.Addr]cty.Value, len(g.decl))
	for _, n := range g.decl {
		addr := n.Resource.Addr
		if v, ok := known[addr.String()]; ok {
			vals[addr] = v
			continue
		}
		vals[addr] = cty.UnknownVal(n.Schema.ImpliedType())
	}
	return resource.Variables(vals)
}

// MarshalDOT renders the graph in graphviz dot format.
func (g *Graph) MarshalDOT(name string) ([]byte, error) {
	return dot.Marshal(g.g, name, "", "  ")
}

// sortTopo orders the graph, caching the result. Returns CycleError if the
// graph contains a cycle.
func (g *Graph) sortTopo() error {
	sorted, err := topo.SortStabilized(g.g, func(nodes []graph.Node) {
		sort.Slice(nodes, func(i, j int) bool {
			return nodes[i].(*Node).decl < nodes[j].(*Node).decl
		})
	})
	if err != nil {
		unorderable, ok := err.(topo.Unorderable)
		if !ok {
			return err
		}
		cycle := &CycleError{}
		for _, n := range unorderable[0] {
			cycle.Addrs = append(cycle.Addrs, n.(*Node).Resource.Addr.String())
		}
		sort.Strings(cycle.Addrs)
		return cycle
	}
	g.topo = make([]*Node, len(sorted))
	for i, n := range sorted {
		g.topo[i] = n.(*Node)
	}
	return nil
}

func sortNodes(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].decl < nodes[j].decl
	})
}
