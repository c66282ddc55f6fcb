// Package decoder decodes declarative resource configuration into typed
// resource blocks with attribute expressions.
//
// Decoding is schema driven: the attributes a resource block accepts, their
// types and their validation rules come from the resource type's schema in
// the registry. References between resources are converted into expressions
// and resolved later by the graph builder; the decoder only checks local
// validity.
package decoder

import (
	"fmt"

	"github.com/converge/converge/resource"
	"github.com/converge/converge/suggest"
	"github.com/hashicorp/hcl2/hcl"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// A Block is a single decoded resource block, before count expansion.
type Block struct {
	Type string
	Name string

	// Count is the number of instances to expand the block into, or
	// resource.NoIndex if the block has no count attribute.
	Count int

	// Attrs contains an expression per attribute set in configuration.
	// Statically resolvable expressions are reduced to a single literal.
	Attrs map[string]resource.Expression

	Schema   resource.Schema
	DefRange hcl.Range
}

// An Output is a named output value declared in configuration.
type Output struct {
	Name     string
	Value    resource.Expression
	DefRange hcl.Range
}

// A Config is the result of decoding a project's configuration body.
// Resources and outputs appear in declaration order.
type Config struct {
	Resources []*Block
	Outputs   []*Output
}

var rootSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "resource", LabelNames: []string{"type", "name"}},
		{Type: "output", LabelNames: []string{"name"}},
	},
}

// Decode decodes a configuration body against the registered resource
// schemas.
//
// The returned diagnostics may contain warnings even when decoding
// succeeded; callers should display them but can proceed.
func Decode(body hcl.Body, reg *resource.Registry) (*Config, hcl.Diagnostics) {
	cont, diags := body.Content(rootSchema)
	if diags.HasErrors() {
		return nil, diags
	}

	cfg := &Config{}
	blocks := make(map[string]*Block)
	outputs := make(map[string]*Output)

	for _, b := range cont.Blocks {
		switch b.Type {
		case "resource":
			block, morediags := decodeResource(b, reg)
			diags = append(diags, morediags...)
			if block == nil {
				continue
			}
			key := block.Type + "." + block.Name
			if prev, ok := blocks[key]; ok {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Duplicate resource",
					Detail: fmt.Sprintf(
						"A resource %s %q was already defined in %s on line %d.",
						block.Type, block.Name, prev.DefRange.Filename, prev.DefRange.Start.Line,
					),
					Subject: block.DefRange.Ptr(),
				})
				continue
			}
			blocks[key] = block
			cfg.Resources = append(cfg.Resources, block)
		case "output":
			out, morediags := decodeOutput(b)
			diags = append(diags, morediags...)
			if out == nil {
				continue
			}
			if prev, ok := outputs[out.Name]; ok {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Duplicate output",
					Detail: fmt.Sprintf(
						"An output %q was already defined in %s on line %d.",
						out.Name, prev.DefRange.Filename, prev.DefRange.Start.Line,
					),
					Subject: out.DefRange.Ptr(),
				})
				continue
			}
			outputs[out.Name] = out
			cfg.Outputs = append(cfg.Outputs, out)
		}
	}

	if diags.HasErrors() {
		return nil, diags
	}
	return cfg, diags
}

func decodeResource(b *hcl.Block, reg *resource.Registry) (*Block, hcl.Diagnostics) {
	if b.Labels[0] == "" || b.Labels[1] == "" {
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Resource type and name must be set",
			Subject:  b.DefRange.Ptr(),
		}}
	}

	block := &Block{
		Type:     b.Labels[0],
		Name:     b.Labels[1],
		Count:    resource.NoIndex,
		Attrs:    make(map[string]resource.Expression),
		DefRange: b.DefRange,
	}

	schema, ok := reg.Schema(block.Type)
	if !ok {
		diag := &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Resource type not supported",
			Detail:   fmt.Sprintf("A resource type %q is not known.", block.Type),
			Subject:  b.LabelRanges[0].Ptr(),
		}
		if s := suggest.String(block.Type, reg.Types()); s != "" {
			diag.Detail += fmt.Sprintf(" Did you mean %q?", s)
		}
		return nil, hcl.Diagnostics{diag}
	}
	block.Schema = schema

	cont, diags := b.Body.Content(bodySchema(schema))
	if diags.HasErrors() {
		return nil, diags
	}

	if attr, ok := cont.Attributes["count"]; ok {
		count, morediags := decodeCount(attr)
		diags = append(diags, morediags...)
		block.Count = count
	}

	for name, attr := range cont.Attributes {
		if name == "count" {
			continue
		}
		expr, morediags := convertExpression(attr.Expr)
		diags = append(diags, morediags...)
		if morediags.HasErrors() {
			continue
		}

		def := schema.Attributes[name]

		if block.Count == resource.NoIndex && referencesCountIndex(expr) {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "count.index used without count",
				Detail:   "The count.index value is only available in resources that set count.",
				Subject:  attr.Expr.Range().Ptr(),
			})
			continue
		}

		if len(expr.References()) == 0 {
			// Static value; resolve, convert and validate now.
			val, err := expr.Value(nil)
			if err != nil {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Could not resolve value",
					Detail:   fmt.Sprintf("Error: %v.", err),
					Subject:  attr.Expr.Range().Ptr(),
				})
				continue
			}
			converted, morediags := convertVal(val, def.Type, attr.Expr.Range().Ptr())
			diags = append(diags, morediags...)
			if morediags.HasErrors() {
				continue
			}
			if err := def.Check(converted); err != nil {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Validation error",
					Detail:   fmt.Sprintf("Value for %s %s.", name, err),
					Subject:  attr.Expr.Range().Ptr(),
				})
				continue
			}
			expr = resource.Expression{resource.ExprLiteral{Value: converted}}
		}

		block.Attrs[name] = expr
	}

	return block, diags
}

func decodeCount(attr *hcl.Attribute) (int, hcl.Diagnostics) {
	if len(attr.Expr.Variables()) > 0 {
		return resource.NoIndex, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid count",
			Detail:   "The count attribute must be a static number; it cannot depend on other resources.",
			Subject:  attr.Expr.Range().Ptr(),
		}}
	}
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return resource.NoIndex, diags
	}
	var count int
	if err := gocty.FromCtyValue(val, &count); err != nil {
		return resource.NoIndex, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid count",
			Detail:   fmt.Sprintf("The count attribute must be a whole number: %v.", err),
			Subject:  attr.Expr.Range().Ptr(),
		}}
	}
	if count < 0 {
		return resource.NoIndex, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid count",
			Detail:   "The count attribute cannot be negative.",
			Subject:  attr.Expr.Range().Ptr(),
		}}
	}
	return count, nil
}

func decodeOutput(b *hcl.Block) (*Output, hcl.Diagnostics) {
	if b.Labels[0] == "" {
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Output name must be set",
			Subject:  b.DefRange.Ptr(),
		}}
	}
	cont, diags := b.Body.Content(&hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{{Name: "value", Required: true}},
	})
	if diags.HasErrors() {
		return nil, diags
	}
	expr, morediags := convertExpression(cont.Attributes["value"].Expr)
	diags = append(diags, morediags...)
	if diags.HasErrors() {
		return nil, diags
	}
	return &Output{
		Name:     b.Labels[0],
		Value:    expr,
		DefRange: b.DefRange,
	}, diags
}

// bodySchema builds the HCL schema for a resource body from the resource
// type's schema. Computed attributes are excluded; setting one in
// configuration surfaces as an unsupported argument.
func bodySchema(schema resource.Schema) *hcl.BodySchema {
	s := &hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "count"},
		},
	}
	for name, attr := range schema.Attributes {
		if attr.Computed {
			continue
		}
		s.Attributes = append(s.Attributes, hcl.AttributeSchema{
			Name:     name,
			Required: attr.Required,
		})
	}
	return s
}

func referencesCountIndex(expr resource.Expression) bool {
	for _, ref := range expr.References() {
		if root, ok := ref[0].(cty.GetAttrStep); ok && root.Name == "count" {
			return true
		}
	}
	return false
}

func convertVal(input cty.Value, want cty.Type, rng *hcl.Range) (cty.Value, hcl.Diagnostics) {
	got := input.Type()
	if got.Equals(want) {
		return input, nil
	}

	conv := convert.GetConversion(got, want)
	if conv == nil {
		return cty.NilVal, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Unsuitable value type",
			Detail: fmt.Sprintf(
				"The value must be a %s, conversion from %s is not possible.",
				want.FriendlyName(),
				got.FriendlyNameForConstraint(),
			),
			Subject: rng,
		}}
	}
	converted, err := conv(input)
	if err != nil {
		return cty.NilVal, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Unsuitable value",
			Detail: fmt.Sprintf(
				"The value cannot be converted to %s: %v.",
				want.FriendlyName(), err,
			),
			Subject: rng,
		}}
	}
	return converted, nil
}
