package plan_test

import (
	"strings"
	"testing"

	"github.com/converge/converge/decoder"
	"github.com/converge/converge/graph"
	"github.com/converge/converge/plan"
	"github.com/converge/converge/resource"
	"github.com/converge/converge/state"
	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/hcl2/hcl"
	"github.com/hashicorp/hcl2/hcl/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

func testRegistry() *resource.Registry {
	return resource.RegistryFromSchemas(map[string]resource.Schema{
		"aws_vpc": {
			Attributes: map[string]resource.Attribute{
				"cidr_block": {Type: cty.String, Required: true, ForceNew: true},
				"tags":       {Type: cty.Map(cty.String)},
				"id":         {Type: cty.String, Computed: true},
			},
		},
		"aws_subnet": {
			Attributes: map[string]resource.Attribute{
				"vpc_id":     {Type: cty.String, Required: true, ForceNew: true},
				"cidr_block": {Type: cty.String, Required: true, ForceNew: true},
				"id":         {Type: cty.String, Computed: true},
			},
		},
	})
}

func build(t *testing.T, src string) *graph.Graph {
	t.Helper()
	f, diags := hclsyntax.ParseConfig([]byte(src), "test.hcl", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		t.Fatalf("parse: %v", diags)
	}
	cfg, diags := decoder.Decode(f.Body, testRegistry())
	if diags.HasErrors() {
		t.Fatalf("decode: %v", diags)
	}
	g, err := graph.Build(cfg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return g
}

const twoTier = `
resource "aws_vpc" "main" {
  cidr_block = "10.0.0.0/16"
}

resource "aws_subnet" "private" {
  vpc_id     = aws_vpc.main.id
  cidr_block = "10.0.1.0/24"
}
`

func vpcRecord() *state.Record {
	return &state.Record{
		Addr: resource.Addr{Type: "aws_vpc", Name: "main", Index: resource.NoIndex},
		ID:   "vpc-123",
		Attrs: cty.ObjectVal(map[string]cty.Value{
			"cidr_block": cty.StringVal("10.0.0.0/16"),
			"tags":       cty.NullVal(cty.Map(cty.String)),
			"id":         cty.StringVal("vpc-123"),
		}),
	}
}

func subnetRecord() *state.Record {
	return &state.Record{
		Addr: resource.Addr{Type: "aws_subnet", Name: "private", Index: resource.NoIndex},
		ID:   "subnet-123",
		Attrs: cty.ObjectVal(map[string]cty.Value{
			"vpc_id":     cty.StringVal("vpc-123"),
			"cidr_block": cty.StringVal("10.0.1.0/24"),
			"id":         cty.StringVal("subnet-123"),
		}),
		Deps: []string{"aws_vpc.main"},
	}
}

func actions(p *plan.Plan) map[string]plan.Action {
	out := make(map[string]plan.Action)
	for _, c := range p.Changes {
		out[c.Addr.String()] = c.Action
	}
	return out
}

func TestBuild_createAll(t *testing.T) {
	g := build(t, twoTier)

	p, err := plan.Build(g, nil)
	if err != nil {
		t.Fatalf("Build() err = %v", err)
	}

	want := map[string]plan.Action{
		"aws_vpc.main":       plan.Create,
		"aws_subnet.private": plan.Create,
	}
	if diff := cmp.Diff(actions(p), want); diff != "" {
		t.Errorf("actions (-got +want)\n%s", diff)
	}

	// Changes are ordered so parents come first.
	if p.Changes[0].Addr.Type != "aws_vpc" {
		t.Errorf("Changes[0] = %s, want the vpc", p.Changes[0].Addr)
	}

	add, change, destroy := p.Counts()
	if add != 2 || change != 0 || destroy != 0 {
		t.Errorf("Counts() = %d/%d/%d, want 2/0/0", add, change, destroy)
	}
}

func TestBuild_idempotent(t *testing.T) {
	g := build(t, twoTier)

	recs := map[string]*state.Record{
		"aws_vpc.main":       vpcRecord(),
		"aws_subnet.private": subnetRecord(),
	}
	p, err := plan.Build(g, recs)
	if err != nil {
		t.Fatalf("Build() err = %v", err)
	}
	if !p.Empty() {
		t.Errorf("plan is not empty:\n%s", p)
	}
}

func TestBuild_update(t *testing.T) {
	g := build(t, `
resource "aws_vpc" "main" {
  cidr_block = "10.0.0.0/16"

  tags = {
    env = "prod"
  }
}
`)

	p, err := plan.Build(g, map[string]*state.Record{
		"aws_vpc.main": vpcRecord(),
	})
	if err != nil {
		t.Fatalf("Build() err = %v", err)
	}

	want := map[string]plan.Action{"aws_vpc.main": plan.Update}
	if diff := cmp.Diff(actions(p), want); diff != "" {
		t.Errorf("actions (-got +want)\n%s", diff)
	}
}

func TestBuild_replaceOnForceNew(t *testing.T) {
	g := build(t, `
resource "aws_vpc" "main" {
  cidr_block = "10.99.0.0/16"
}
`)

	p, err := plan.Build(g, map[string]*state.Record{
		"aws_vpc.main": vpcRecord(),
	})
	if err != nil {
		t.Fatalf("Build() err = %v", err)
	}

	ch := p.Changes[0]
	if ch.Action != plan.Replace {
		t.Fatalf("Action = %s, want replace", ch.Action)
	}
	if diff := cmp.Diff(ch.ForcedBy, []string{"cidr_block"}); diff != "" {
		t.Errorf("ForcedBy (-got +want)\n%s", diff)
	}
}

func TestBuild_replaceCascades(t *testing.T) {
	// Replacing the vpc makes its id unknown, which conservatively counts
	// as a change to the subnet's force-new vpc_id.
	g := build(t, `
resource "aws_vpc" "main" {
  cidr_block = "10.99.0.0/16"
}

resource "aws_subnet" "private" {
  vpc_id     = aws_vpc.main.id
  cidr_block = "10.0.1.0/24"
}
`)

	p, err := plan.Build(g, map[string]*state.Record{
		"aws_vpc.main":       vpcRecord(),
		"aws_subnet.private": subnetRecord(),
	})
	if err != nil {
		t.Fatalf("Build() err = %v", err)
	}

	want := map[string]plan.Action{
		"aws_vpc.main":       plan.Replace,
		"aws_subnet.private": plan.Replace,
	}
	if diff := cmp.Diff(actions(p), want); diff != "" {
		t.Errorf("actions (-got +want)\n%s", diff)
	}
}

func TestBuild_tainted(t *testing.T) {
	g := build(t, twoTier)

	vpc := vpcRecord()
	vpc.Tainted = true
	p, err := plan.Build(g, map[string]*state.Record{
		"aws_vpc.main":       vpc,
		"aws_subnet.private": subnetRecord(),
	})
	if err != nil {
		t.Fatalf("Build() err = %v", err)
	}

	ch := p.Changes[0]
	if ch.Action != plan.Replace || !ch.Tainted {
		t.Errorf("vpc change = %s (tainted %t), want tainted replace", ch.Action, ch.Tainted)
	}
}

func TestBuild_destroyOrphans(t *testing.T) {
	g := build(t, `
resource "aws_vpc" "main" {
  cidr_block = "10.0.0.0/16"
}
`)

	p, err := plan.Build(g, map[string]*state.Record{
		"aws_vpc.main":       vpcRecord(),
		"aws_subnet.private": subnetRecord(),
	})
	if err != nil {
		t.Fatalf("Build() err = %v", err)
	}
	if len(p.Destroys) != 1 {
		t.Fatalf("Destroys len = %d, want 1", len(p.Destroys))
	}
	if got := p.Destroys[0].Addr.String(); got != "aws_subnet.private" {
		t.Errorf("Destroys[0] = %s, want aws_subnet.private", got)
	}
}

func TestDestroyAll_order(t *testing.T) {
	// The subnet depends on the vpc so it must be destroyed first.
	p, err := plan.DestroyAll(map[string]*state.Record{
		"aws_vpc.main":       vpcRecord(),
		"aws_subnet.private": subnetRecord(),
	})
	if err != nil {
		t.Fatalf("DestroyAll() err = %v", err)
	}

	var got []string
	for _, c := range p.Destroys {
		got = append(got, c.Addr.String())
	}
	want := []string{"aws_subnet.private", "aws_vpc.main"}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("destroy order (-got +want)\n%s", diff)
	}
}

func TestDestroyAll_cyclicState(t *testing.T) {
	a := vpcRecord()
	a.Deps = []string{"aws_subnet.private"}
	b := subnetRecord()

	_, err := plan.DestroyAll(map[string]*state.Record{
		"aws_vpc.main":       a,
		"aws_subnet.private": b,
	})
	if err == nil {
		t.Fatal("DestroyAll() returned nil error for cyclic state")
	}
}

func TestPlan_Render(t *testing.T) {
	g := build(t, twoTier)

	p, err := plan.Build(g, nil)
	if err != nil {
		t.Fatalf("Build() err = %v", err)
	}

	out := p.String()
	for _, want := range []string{
		"+   aws_vpc.main",
		"+   aws_subnet.private",
		"Plan: 2 to add, 0 to change, 0 to destroy.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q in:\n%s", want, out)
		}
	}
}

func TestPlan_Render_empty(t *testing.T) {
	p := &plan.Plan{}
	if !strings.Contains(p.String(), "No changes") {
		t.Errorf("empty plan render = %q", p.String())
	}
}
