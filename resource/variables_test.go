package resource_test

import (
	"testing"

	"github.com/converge/converge/resource"
	"github.com/zclconf/go-cty/cty"
)

func TestVariables(t *testing.T) {
	vpc := cty.ObjectVal(map[string]cty.Value{"id": cty.StringVal("vpc-123")})
	sub0 := cty.ObjectVal(map[string]cty.Value{"id": cty.StringVal("subnet-0")})
	sub1 := cty.ObjectVal(map[string]cty.Value{"id": cty.StringVal("subnet-1")})

	got := resource.Variables(map[resource.Addr]cty.Value{
		{Type: "aws_vpc", Name: "main", Index: resource.NoIndex}:  vpc,
		{Type: "aws_subnet", Name: "private", Index: 1}:           sub1,
		{Type: "aws_subnet", Name: "private", Index: 0}:           sub0,
	})

	want := map[string]cty.Value{
		"aws_vpc": cty.ObjectVal(map[string]cty.Value{
			"main": vpc,
		}),
		"aws_subnet": cty.ObjectVal(map[string]cty.Value{
			"private": cty.TupleVal([]cty.Value{sub0, sub1}),
		}),
	}

	if len(got) != len(want) {
		t.Fatalf("Variables() got %d types, want %d", len(got), len(want))
	}
	for typ, wantVal := range want {
		gotVal, ok := got[typ]
		if !ok {
			t.Fatalf("Variables() missing type %q", typ)
		}
		if !gotVal.RawEquals(wantVal) {
			t.Errorf("Variables()[%q] got = %#v, want = %#v", typ, gotVal, wantVal)
		}
	}
}

func TestVariables_unknownInstance(t *testing.T) {
	ty := cty.Object(map[string]cty.Type{"id": cty.String})
	got := resource.Variables(map[resource.Addr]cty.Value{
		{Type: "aws_vpc", Name: "main", Index: resource.NoIndex}: cty.UnknownVal(ty),
	})
	val := got["aws_vpc"].GetAttr("main")
	if val.IsKnown() {
		t.Error("unresolved instance should stay unknown")
	}
}
