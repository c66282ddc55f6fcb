package decoder_test

import (
	"strings"
	"testing"

	"github.com/converge/converge/decoder"
	"github.com/converge/converge/resource"
	"github.com/hashicorp/hcl2/hcl"
	"github.com/hashicorp/hcl2/hcl/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

func parse(t *testing.T, src string) hcl.Body {
	t.Helper()
	f, diags := hclsyntax.ParseConfig([]byte(src), "test.hcl", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		t.Fatalf("parse: %v", diags)
	}
	return f.Body
}

func testRegistry() *resource.Registry {
	return resource.RegistryFromSchemas(map[string]resource.Schema{
		"aws_vpc": {
			Attributes: map[string]resource.Attribute{
				"cidr_block": {Type: cty.String, Required: true, ForceNew: true, Validate: "cidrv4"},
				"id":         {Type: cty.String, Computed: true},
			},
		},
		"aws_subnet": {
			Attributes: map[string]resource.Attribute{
				"vpc_id":     {Type: cty.String, Required: true, ForceNew: true},
				"cidr_block": {Type: cty.String, Required: true, ForceNew: true, Validate: "cidrv4"},
				"id":         {Type: cty.String, Computed: true},
			},
		},
	})
}

func TestDecode(t *testing.T) {
	body := parse(t, `
resource "aws_vpc" "main" {
  cidr_block = "10.0.0.0/16"
}

resource "aws_subnet" "private" {
  count      = 2
  vpc_id     = aws_vpc.main.id
  cidr_block = "10.0.${count.index}.0/24"
}

output "vpc_id" {
  value = aws_vpc.main.id
}
`)

	cfg, diags := decoder.Decode(body, testRegistry())
	if diags.HasErrors() {
		t.Fatalf("Decode() diags = %v", diags)
	}

	if len(cfg.Resources) != 2 {
		t.Fatalf("Resources len = %d, want 2", len(cfg.Resources))
	}

	vpc := cfg.Resources[0]
	if vpc.Type != "aws_vpc" || vpc.Name != "main" {
		t.Errorf("Resources[0] = %s.%s, want aws_vpc.main", vpc.Type, vpc.Name)
	}
	if vpc.Count != resource.NoIndex {
		t.Errorf("vpc.Count = %d, want NoIndex", vpc.Count)
	}
	val, err := vpc.Attrs["cidr_block"].Value(nil)
	if err != nil {
		t.Fatalf("cidr_block value: %v", err)
	}
	if want := cty.StringVal("10.0.0.0/16"); !val.RawEquals(want) {
		t.Errorf("cidr_block got = %#v, want = %#v", val, want)
	}

	subnet := cfg.Resources[1]
	if subnet.Count != 2 {
		t.Errorf("subnet.Count = %d, want 2", subnet.Count)
	}
	if len(subnet.Attrs["vpc_id"].References()) != 1 {
		t.Errorf("vpc_id references = %d, want 1", len(subnet.Attrs["vpc_id"].References()))
	}

	if len(cfg.Outputs) != 1 {
		t.Fatalf("Outputs len = %d, want 1", len(cfg.Outputs))
	}
	if cfg.Outputs[0].Name != "vpc_id" {
		t.Errorf("Outputs[0].Name = %q, want vpc_id", cfg.Outputs[0].Name)
	}
}

func TestDecode_diagnostics(t *testing.T) {
	tests := []struct {
		name       string
		src        string
		wantDetail string
	}{
		{
			"UnknownType",
			`resource "aws_subnetz" "a" {}`,
			`Did you mean "aws_subnet"?`,
		},
		{
			"DuplicateResource",
			`
resource "aws_vpc" "main" {
  cidr_block = "10.0.0.0/16"
}
resource "aws_vpc" "main" {
  cidr_block = "10.1.0.0/16"
}
`,
			"already defined",
		},
		{
			"CountIndexWithoutCount",
			`
resource "aws_vpc" "main" {
  cidr_block = "10.0.${count.index}.0/24"
}
`,
			"only available in resources that set count",
		},
		{
			"DynamicCount",
			`
resource "aws_vpc" "a" {
  cidr_block = "10.0.0.0/16"
}
resource "aws_subnet" "b" {
  count      = aws_vpc.a.id
  vpc_id     = "x"
  cidr_block = "10.0.0.0/24"
}
`,
			"must be a static number",
		},
		{
			"NegativeCount",
			`
resource "aws_subnet" "b" {
  count      = -1
  vpc_id     = "x"
  cidr_block = "10.0.0.0/24"
}
`,
			"cannot be negative",
		},
		{
			"InvalidStaticValue",
			`
resource "aws_vpc" "main" {
  cidr_block = "not-a-cidr"
}
`,
			"must be a valid IPv4 CIDR block",
		},
		{
			"ComputedAttribute",
			`
resource "aws_vpc" "main" {
  cidr_block = "10.0.0.0/16"
  id         = "vpc-123"
}
`,
			"",
		},
		{
			"MissingRequired",
			`resource "aws_vpc" "main" {}`,
			"",
		},
		{
			"DuplicateOutput",
			`
output "a" {
  value = "x"
}
output "a" {
  value = "y"
}
`,
			"already defined",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := parse(t, tt.src)
			cfg, diags := decoder.Decode(body, testRegistry())
			if !diags.HasErrors() {
				t.Fatal("Decode() returned no error diagnostics")
			}
			if cfg != nil {
				t.Error("Decode() returned a config alongside error diagnostics")
			}
			if tt.wantDetail == "" {
				return
			}
			found := false
			for _, d := range diags {
				if strings.Contains(d.Detail, tt.wantDetail) {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("no diagnostic contains %q in %v", tt.wantDetail, diags)
			}
		})
	}
}

func TestDecode_countIndexWithCount(t *testing.T) {
	body := parse(t, `
resource "aws_subnet" "b" {
  count      = 2
  vpc_id     = "vpc-123"
  cidr_block = "10.0.${count.index}.0/24"
}
`)
	cfg, diags := decoder.Decode(body, testRegistry())
	if diags.HasErrors() {
		t.Fatalf("Decode() diags = %v", diags)
	}
	expr := cfg.Resources[0].Attrs["cidr_block"]
	val, err := expr.SubstituteIndex(1).Value(nil)
	if err != nil {
		t.Fatalf("Value() err = %v", err)
	}
	if want := cty.StringVal("10.0.1.0/24"); !val.RawEquals(want) {
		t.Errorf("Value() got = %#v, want = %#v", val, want)
	}
}

func TestDecode_splatAndIndexReferences(t *testing.T) {
	body := parse(t, `
resource "aws_subnet" "private" {
  count      = 2
  vpc_id     = "vpc-123"
  cidr_block = "10.0.${count.index}.0/24"
}

output "subnet_ids" {
  value = aws_subnet.private[*].id
}

output "first_subnet_id" {
  value = aws_subnet.private[0].id
}
`)
	cfg, diags := decoder.Decode(body, testRegistry())
	if diags.HasErrors() {
		t.Fatalf("Decode() diags = %v", diags)
	}
	if len(cfg.Outputs) != 2 {
		t.Fatalf("Outputs len = %d, want 2", len(cfg.Outputs))
	}

	splatExpr := cfg.Outputs[0].Value
	if len(splatExpr) != 1 {
		t.Fatalf("splat expression has %d parts, want 1", len(splatExpr))
	}
	splat, ok := splatExpr[0].(resource.ExprSplat)
	if !ok {
		t.Fatalf("splat expression part is %T, want resource.ExprSplat", splatExpr[0])
	}
	if got, want := pathNames(splat.Path), "aws_subnet.private"; got != want {
		t.Errorf("splat path = %s, want %s", got, want)
	}
	if got, want := pathNames(splat.Each), "id"; got != want {
		t.Errorf("splat each = %s, want %s", got, want)
	}

	idxExpr := cfg.Outputs[1].Value
	if len(idxExpr) != 1 {
		t.Fatalf("index expression has %d parts, want 1", len(idxExpr))
	}
	ref, ok := idxExpr[0].(resource.ExprReference)
	if !ok {
		t.Fatalf("index expression part is %T, want resource.ExprReference", idxExpr[0])
	}
	if len(ref.Path) != 4 {
		t.Fatalf("index reference path len = %d, want 4", len(ref.Path))
	}
	idx, ok := ref.Path[2].(cty.IndexStep)
	if !ok {
		t.Fatalf("path step 2 is %T, want cty.IndexStep", ref.Path[2])
	}
	if want := cty.NumberIntVal(0); !idx.Key.RawEquals(want) {
		t.Errorf("index key got = %#v, want = %#v", idx.Key, want)
	}
}

func pathNames(path cty.Path) string {
	var parts []string
	for _, step := range path {
		if attr, ok := step.(cty.GetAttrStep); ok {
			parts = append(parts, attr.Name)
		}
	}
	return strings.Join(parts, ".")
}
