package resource

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// An Expression describes the value for a single attribute.
//
// The Expression may consist of any combination of literals, references and
// splats. The ExprPart interface is closed; only the part types declared in
// this package are allowed.
type Expression []ExprPart

// ExprPart is a part in an Expression.
type ExprPart interface{ isExprPart() }

// ExprLiteral is a literal value in an expression.
type ExprLiteral struct {
	Value cty.Value
}

func (e ExprLiteral) isExprPart() {}

// ExprReference refers to a single value on another resource. The path is
// rooted at the resource type, followed by the resource name, an optional
// instance index, and the attribute path:
//
//   aws_vpc.eks_vpc.id
//   aws_subnet.eks_subnet[0].cidr_block
type ExprReference struct {
	Path cty.Path
}

func (e ExprReference) isExprPart() {}

// ExprSplat fans out over every instance of a count-expanded resource,
// producing a tuple. Path addresses the resource (type, name); Each is the
// relative path applied to each instance:
//
//   aws_subnet.eks_subnet[*].id
type ExprSplat struct {
	Path cty.Path
	Each cty.Path
}

func (e ExprSplat) isExprPart() {}

// References returns the paths of all resources the expression refers to.
// Splat parts contribute their resource path; the individual instances are
// decided by the graph builder.
//
// An expression with no references can be evaluated with a nil context.
func (expr Expression) References() []cty.Path {
	var refs []cty.Path
	for _, e := range expr {
		switch p := e.(type) {
		case ExprReference:
			refs = append(refs, p.Path)
		case ExprSplat:
			refs = append(refs, p.Path)
		}
	}
	return refs
}

// An EvalContext provides values for resolving references in an expression.
//
// Variables is keyed by resource type. The value is an object keyed by
// resource name; for count-expanded resources the name maps to a tuple of
// per-instance values.
type EvalContext struct {
	Variables map[string]cty.Value
}

// Value evaluates the expression.
//
//   - A single literal evaluates to itself.
//   - A single reference evaluates to the referenced value.
//   - A single splat evaluates to a tuple with one element per instance.
//   - A combination of parts is concatenated to a string. Every part must
//     be convertible to string.
//
// Referenced values that are not (yet) known evaluate to an unknown value.
// If the expression has a single part the unknown is typed after the part,
// otherwise the result is an unknown string.
//
// A reference to a variable that is not set in ctx returns an error. A nil
// ctx is equivalent to an EvalContext with no variables, so only static
// expressions can be evaluated with it.
func (expr Expression) Value(ctx *EvalContext) (cty.Value, error) {
	if ctx == nil {
		ctx = &EvalContext{}
	}
	vals := make([]cty.Value, len(expr))
	for i, e := range expr {
		switch p := e.(type) {
		case ExprLiteral:
			vals[i] = p.Value
		case ExprReference:
			v, err := applyPath(cty.ObjectVal(ctx.Variables), p.Path)
			if err != nil {
				return cty.NilVal, err
			}
			vals[i] = v
		case ExprSplat:
			v, err := evalSplat(ctx, p)
			if err != nil {
				return cty.NilVal, err
			}
			vals[i] = v
		default:
			// Only possible if a new part type is added without support here.
			panic(fmt.Sprintf("Not supported: %T", p))
		}
	}
	if len(vals) == 0 {
		return cty.NilVal, nil
	}
	if len(vals) == 1 {
		return vals[0], nil
	}
	var buf bytes.Buffer
	for i, v := range vals {
		if !v.IsWhollyKnown() {
			return cty.UnknownVal(cty.String), nil
		}
		if conv := convert.GetConversion(v.Type(), cty.String); conv != nil {
			tmp, err := conv(v)
			if err != nil {
				return cty.NilVal, errors.Wrapf(err, "convert part %d", i)
			}
			v = tmp
		}
		buf.WriteString(v.AsString())
	}
	return cty.StringVal(buf.String()), nil
}

func evalSplat(ctx *EvalContext, splat ExprSplat) (cty.Value, error) {
	instances, err := applyPath(cty.ObjectVal(ctx.Variables), splat.Path)
	if err != nil {
		return cty.NilVal, err
	}
	if !instances.IsKnown() {
		return cty.UnknownVal(cty.DynamicPseudoType), nil
	}
	if !instances.Type().IsTupleType() && !instances.Type().IsListType() {
		// Splat over an uncounted resource yields a single element tuple.
		v, err := applyPath(instances, splat.Each)
		if err != nil {
			return cty.NilVal, err
		}
		return cty.TupleVal([]cty.Value{v}), nil
	}
	var elems []cty.Value
	it := instances.ElementIterator()
	for it.Next() {
		_, inst := it.Element()
		v, err := applyPath(inst, splat.Each)
		if err != nil {
			return cty.NilVal, err
		}
		elems = append(elems, v)
	}
	if len(elems) == 0 {
		return cty.EmptyTupleVal, nil
	}
	return cty.TupleVal(elems), nil
}

// applyPath steps through val along path. Stepping into an unknown value
// short-circuits to an unknown result rather than an error, so expressions
// can be partially evaluated during planning.
func applyPath(val cty.Value, path cty.Path) (cty.Value, error) {
	for _, step := range path {
		if !val.IsKnown() {
			return cty.UnknownVal(cty.DynamicPseudoType), nil
		}
		v, err := step.Apply(val)
		if err != nil {
			return cty.NilVal, err
		}
		val = v
	}
	return val, nil
}

// countIndexPath is the path of the count.index pseudo reference available
// inside count-expanded resource blocks.
var countIndexPath = cty.Path{cty.GetAttrStep{Name: "count"}, cty.GetAttrStep{Name: "index"}}

// SubstituteIndex replaces references to count.index with the literal
// instance index and merges any now-consecutive literals. The receiver is
// not modified.
func (expr Expression) SubstituteIndex(index int) Expression {
	out := make(Expression, len(expr))
	for i, e := range expr {
		if ref, ok := e.(ExprReference); ok && ref.Path.Equals(countIndexPath) {
			out[i] = ExprLiteral{Value: cty.NumberIntVal(int64(index))}
			continue
		}
		out[i] = e
	}
	return out.MergeLiterals()
}

// MergeLiterals merges consecutive literal values into a single literal.
// Parts of the expression that are not literals are returned in place as-is.
func (expr Expression) MergeLiterals() Expression {
	if len(expr) == 1 {
		return expr
	}

	join := func(lits Expression) Expression {
		if len(lits) == 0 {
			return nil
		}
		val, err := lits.Value(nil)
		if err != nil {
			// The expression consists of literals only; it must resolve
			// without variables.
			panic(err)
		}
		return Expression{ExprLiteral{Value: val}}
	}

	var out Expression // nolint: prealloc
	var pending Expression
	for _, e := range expr {
		if lit, ok := e.(ExprLiteral); ok {
			pending = append(pending, lit)
			continue
		}
		out = append(out, join(pending)...)
		pending = nil
		out = append(out, e)
	}
	out = append(out, join(pending)...)
	return out
}
