package decoder

import (
	"fmt"

	"github.com/converge/converge/resource"
	"github.com/hashicorp/hcl2/hcl"
	"github.com/hashicorp/hcl2/hcl/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// convertExpression converts an HCL expression into an attribute expression.
//
// Only simple expressions are supported: literals, template interpolation,
// traversals, index lookups and splats. Function calls, arithmetic and
// conditionals produce a diagnostic.
func convertExpression(input hcl.Expression) (resource.Expression, hcl.Diagnostics) {
	if len(input.Variables()) == 0 {
		val, diags := input.Value(nil)
		if diags.HasErrors() {
			return nil, diags
		}
		return resource.Expression{resource.ExprLiteral{Value: val}}, nil
	}

	switch expr := input.(type) {
	case *hclsyntax.ScopeTraversalExpr:
		return resource.Expression{resource.ExprReference{
			Path: traversalAsPath(expr.Traversal),
		}}, nil

	case *hclsyntax.RelativeTraversalExpr:
		src, diags := convertExpression(expr.Source)
		if diags.HasErrors() {
			return nil, diags
		}
		switch base := src[0].(type) {
		case resource.ExprReference:
			base.Path = append(base.Path, traversalAsPath(expr.Traversal)...)
			return resource.Expression{base}, nil
		case resource.ExprSplat:
			base.Each = append(base.Each, traversalAsPath(expr.Traversal)...)
			return resource.Expression{base}, nil
		}
		return nil, unsupportedExpr(input)

	case *hclsyntax.IndexExpr:
		col, diags := convertExpression(expr.Collection)
		if diags.HasErrors() {
			return nil, diags
		}
		key, diags := convertExpression(expr.Key)
		if diags.HasErrors() {
			return nil, diags
		}
		ref, ok := col[0].(resource.ExprReference)
		if !ok {
			return nil, unsupportedExpr(input)
		}
		path := ref.Path
		for _, k := range key {
			lit, ok := k.(resource.ExprLiteral)
			if !ok {
				return nil, hcl.Diagnostics{{
					Severity: hcl.DiagError,
					Summary:  "Invalid index",
					Detail:   "The index must be a static value.",
					Subject:  expr.Key.Range().Ptr(),
				}}
			}
			path = path.Index(lit.Value)
		}
		return resource.Expression{resource.ExprReference{Path: path}}, nil

	case *hclsyntax.SplatExpr:
		src, diags := convertExpression(expr.Source)
		if diags.HasErrors() {
			return nil, diags
		}
		ref, ok := src[0].(resource.ExprReference)
		if !ok {
			return nil, unsupportedExpr(input)
		}
		each, ok := splatEachPath(expr.Each)
		if !ok {
			return nil, unsupportedExpr(input)
		}
		return resource.Expression{resource.ExprSplat{
			Path: ref.Path,
			Each: each,
		}}, nil

	case *hclsyntax.TemplateWrapExpr:
		return convertExpression(expr.Wrapped)

	case *hclsyntax.TemplateExpr:
		var out resource.Expression
		for _, part := range expr.Parts {
			converted, diags := convertExpression(part)
			if diags.HasErrors() {
				return nil, diags
			}
			out = append(out, converted...)
		}
		return out.MergeLiterals(), nil
	}

	return nil, unsupportedExpr(input)
}

// splatEachPath extracts the relative path applied to each element of a
// splat. The each expression is rooted at the splat's anonymous symbol.
func splatEachPath(each hcl.Expression) (cty.Path, bool) {
	switch e := each.(type) {
	case *hclsyntax.AnonSymbolExpr:
		return nil, true
	case *hclsyntax.RelativeTraversalExpr:
		if _, ok := e.Source.(*hclsyntax.AnonSymbolExpr); !ok {
			return nil, false
		}
		return traversalAsPath(e.Traversal), true
	}
	return nil, false
}

func unsupportedExpr(input hcl.Expression) hcl.Diagnostics {
	return hcl.Diagnostics{{
		Severity: hcl.DiagError,
		Summary:  "Unsupported expression",
		Detail:   "Only literal values, references to other resources, and string interpolation of these are supported.",
		Subject:  input.Range().Ptr(),
	}}
}

func traversalAsPath(traversal hcl.Traversal) cty.Path {
	var path cty.Path
	for _, part := range traversal {
		switch pt := part.(type) {
		case hcl.TraverseRoot:
			path = append(path, cty.GetAttrStep{Name: pt.Name})
		case hcl.TraverseAttr:
			path = append(path, cty.GetAttrStep{Name: pt.Name})
		case hcl.TraverseIndex:
			path = append(path, cty.IndexStep{Key: pt.Key})
		default:
			panic(fmt.Sprintf("not supported: %T", part))
		}
	}
	return path
}
