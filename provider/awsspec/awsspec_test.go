package awsspec_test

import (
	"testing"

	"github.com/converge/converge/provider/awsspec"
)

func TestRegistry(t *testing.T) {
	reg := awsspec.Registry()

	for _, typ := range []string{
		"aws_vpc",
		"aws_subnet",
		"aws_eks_cluster",
		"aws_autoscaling_group",
		"aws_elb",
	} {
		schema, ok := reg.Schema(typ)
		if !ok {
			t.Errorf("Schema(%s) not registered", typ)
			continue
		}
		id, ok := schema.Attributes["id"]
		if !ok || !id.Computed {
			t.Errorf("%s has no computed id attribute", typ)
		}
	}
}

func TestSchemas_replacementAttrs(t *testing.T) {
	reg := awsspec.Registry()

	subnet, _ := reg.Schema("aws_subnet")
	if !subnet.Attributes["cidr_block"].ForceNew {
		t.Error("aws_subnet.cidr_block should force replacement")
	}
	if !subnet.Attributes["vpc_id"].ForceNew {
		t.Error("aws_subnet.vpc_id should force replacement")
	}

	asg, _ := reg.Schema("aws_autoscaling_group")
	if asg.Attributes["launch_configuration"].ForceNew {
		t.Error("aws_autoscaling_group.launch_configuration should update in place")
	}
}
