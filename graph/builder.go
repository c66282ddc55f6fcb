package graph

import (
	"github.com/converge/converge/ctyext"
	"github.com/converge/converge/decoder"
	"github.com/converge/converge/resource"
	"github.com/converge/converge/suggest"
	"github.com/pkg/errors"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Build expands the decoded configuration into per-instance nodes, resolves
// all references into edges, and verifies the result is a DAG.
//
// Count-indexed resources are expanded before reference resolution, so a
// splat reference produces one edge per instance. References to resources
// or attributes that do not exist fail with an error; a reference cycle
// fails with *CycleError.
func Build(cfg *decoder.Config) (*Graph, error) {
	g := newGraph()

	// instances of each resource block, keyed by type.name.
	instances := make(map[string][]*Node)

	for _, block := range cfg.Resources {
		nodes, err := expand(g, block)
		if err != nil {
			return nil, err
		}
		instances[block.Type+"."+block.Name] = nodes
	}

	for _, nodes := range instances {
		for _, n := range nodes {
			if err := connectDeps(g, instances, n); err != nil {
				return nil, err
			}
		}
	}

	for _, out := range cfg.Outputs {
		for _, ref := range out.Value.References() {
			if _, _, err := lookupParents(g, instances, ref); err != nil {
				return nil, errors.Wrapf(err, "output %q", out.Name)
			}
		}
	}

	if err := g.sortTopo(); err != nil {
		return nil, err
	}
	return g, nil
}

// expand turns a single resource block into its instance nodes.
func expand(g *Graph, block *decoder.Block) ([]*Node, error) {
	indices := []int{resource.NoIndex}
	if block.Count != resource.NoIndex {
		indices = make([]int, block.Count)
		for i := range indices {
			indices[i] = i
		}
	}

	nodes := make([]*Node, 0, len(indices))
	for _, index := range indices {
		addr := resource.Addr{Type: block.Type, Name: block.Name, Index: index}

		attrs := make(map[string]cty.Value)
		var deps []Dependency
		for name, attrSchema := range block.Schema.Attributes {
			if attrSchema.Computed {
				continue
			}
			expr, ok := block.Attrs[name]
			if !ok {
				attrs[name] = cty.NullVal(attrSchema.Type)
				continue
			}
			if index != resource.NoIndex {
				expr = expr.SubstituteIndex(index)
			}
			if len(expr.References()) == 0 {
				val, err := staticValue(expr, attrSchema)
				if err != nil {
					return nil, errors.Wrapf(err, "%s: attribute %q", addr, name)
				}
				attrs[name] = val
				continue
			}
			attrs[name] = cty.UnknownVal(attrSchema.Type)
			deps = append(deps, Dependency{
				Field:      cty.Path{cty.GetAttrStep{Name: name}},
				Expression: expr,
			})
		}

		res := &resource.Resource{
			Addr:  addr,
			Input: cty.ObjectVal(attrs),
			State: resource.StatePlanned,
		}
		nodes = append(nodes, g.add(res, block.Schema, deps))
	}
	return nodes, nil
}

// staticValue resolves, converts and validates an expression with no
// remaining references. Expressions become static when count.index
// substitution removes their last reference, so conversion and validation
// cannot be left to the decoder alone.
func staticValue(expr resource.Expression, attr resource.Attribute) (cty.Value, error) {
	val, err := expr.Value(nil)
	if err != nil {
		return cty.NilVal, err
	}
	converted, err := convert.Convert(val, attr.Type)
	if err != nil {
		return cty.NilVal, err
	}
	if err := attr.Check(converted); err != nil {
		return cty.NilVal, err
	}
	return converted, nil
}

func connectDeps(g *Graph, instances map[string][]*Node, n *Node) error {
	seen := make(map[string]struct{})
	for _, dep := range n.Deps {
		for _, part := range dep.Expression {
			var parents []*Node
			var err error
			switch p := part.(type) {
			case resource.ExprReference:
				parents, _, err = resolveReference(g, instances, n, p.Path)
			case resource.ExprSplat:
				parents, err = lookupAll(g, instances, p.Path, p.Each)
			default:
				continue
			}
			if err != nil {
				return errors.Wrapf(err, "%s", n.Resource.Addr)
			}
			for _, parent := range parents {
				if parent == n {
					return &CycleError{Addrs: []string{n.Resource.Addr.String()}}
				}
				g.connect(parent, n)
				addr := parent.Resource.Addr
				if _, ok := seen[addr.String()]; !ok {
					seen[addr.String()] = struct{}{}
					n.Resource.Deps = append(n.Resource.Deps, addr)
				}
			}
		}
	}
	return nil
}

// resolveReference finds the parent instances a reference path points to.
// The path is rooted at the resource type, followed by the name, an
// optional index, and the attribute path.
func resolveReference(g *Graph, instances map[string][]*Node, child *Node, path cty.Path) ([]*Node, cty.Path, error) {
	nodes, rest, err := lookupParents(g, instances, path)
	if err != nil {
		return nil, nil, err
	}

	counted := len(nodes) != 1 || nodes[0].Resource.Addr.Index != resource.NoIndex

	if len(rest) > 0 {
		if idx, ok := rest[0].(cty.IndexStep); ok {
			if !counted {
				return nil, nil, errors.Errorf(
					"%s does not have count set, remove the index",
					nodes[0].Resource.Addr,
				)
			}
			i, err := indexValue(idx.Key)
			if err != nil {
				return nil, nil, err
			}
			if i < 0 || i >= len(nodes) {
				return nil, nil, errors.Errorf(
					"index %d out of range, %s.%s has %d instances",
					i, nodes[0].Resource.Addr.Type, nodes[0].Resource.Addr.Name, len(nodes),
				)
			}
			nodes = nodes[i : i+1]
			rest = rest[1:]
			counted = false
		}
	}

	if counted {
		addr := path[0].(cty.GetAttrStep).Name + "." + path[1].(cty.GetAttrStep).Name
		return nil, nil, errors.Errorf(
			"%s has count set; reference an instance (%s[0]) or all instances (%s[*])",
			addr, addr, addr,
		)
	}

	if err := checkAttr(nodes[0], rest); err != nil {
		return nil, nil, err
	}
	return nodes, rest, nil
}

// lookupAll returns every instance for a splat reference.
func lookupAll(g *Graph, instances map[string][]*Node, path, each cty.Path) ([]*Node, error) {
	nodes, rest, err := lookupParents(g, instances, path)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, errors.Errorf("cannot splat into %s", ctyext.PathString(path))
	}
	for _, n := range nodes {
		if err := checkAttr(n, each); err != nil {
			return nil, err
		}
	}
	return nodes, nil
}

// lookupParents resolves the type and name roots of a reference path into
// the declared instances. The remaining path is returned for the caller to
// interpret.
func lookupParents(g *Graph, instances map[string][]*Node, path cty.Path) ([]*Node, cty.Path, error) {
	if len(path) < 2 {
		return nil, nil, errors.Errorf("reference %s is incomplete", ctyext.PathString(path))
	}
	typeStep, ok := path[0].(cty.GetAttrStep)
	if !ok {
		return nil, nil, errors.Errorf("reference must start with a resource type")
	}
	nameStep, ok := path[1].(cty.GetAttrStep)
	if !ok {
		return nil, nil, errors.Errorf("reference to %s must be followed by a resource name", typeStep.Name)
	}
	key := typeStep.Name + "." + nameStep.Name
	nodes, ok := instances[key]
	if !ok {
		err := errors.Errorf("reference to undeclared resource %s", key)
		var keys []string
		for k := range instances {
			keys = append(keys, k)
		}
		if s := suggest.String(key, keys); s != "" {
			err = errors.Errorf("reference to undeclared resource %s, did you mean %s?", key, s)
		}
		return nil, nil, err
	}
	if len(nodes) == 0 {
		return nil, nil, errors.Errorf("%s has count = 0, no instances to reference", key)
	}
	return nodes, path[2:], nil
}

// checkAttr verifies that the first attribute step of a reference exists on
// the parent's schema.
func checkAttr(parent *Node, rest cty.Path) error {
	if len(rest) == 0 {
		return nil
	}
	step, ok := rest[0].(cty.GetAttrStep)
	if !ok {
		return nil
	}
	if _, ok := parent.Schema.Attributes[step.Name]; !ok {
		err := errors.Errorf("%s has no attribute %q", parent.Resource.Addr, step.Name)
		var names []string
		for name := range parent.Schema.Attributes {
			names = append(names, name)
		}
		if s := suggest.String(step.Name, names); s != "" {
			err = errors.Errorf("%s has no attribute %q, did you mean %q?", parent.Resource.Addr, step.Name, s)
		}
		return err
	}
	return nil
}

func indexValue(key cty.Value) (int, error) {
	var i int
	if err := gocty.FromCtyValue(key, &i); err != nil {
		return 0, errors.Wrap(err, "invalid index")
	}
	return i, nil
}
