// Package awsspec declares the attribute schemas for the supported AWS
// resource types.
//
// Only the shape of each type is described here: which attributes exist,
// which are computed, and which force replacement when changed. No AWS API
// is ever called; the schemas drive decoding, planning and validation.
package awsspec

import (
	"github.com/converge/converge/resource"
	"github.com/zclconf/go-cty/cty"
)

// Register adds all AWS resource type schemas to the registry.
func Register(reg *resource.Registry) {
	for name, schema := range schemas {
		reg.Register(name, schema)
	}
}

// Registry returns a fresh registry containing the AWS schemas.
func Registry() *resource.Registry {
	reg := &resource.Registry{}
	Register(reg)
	return reg
}

var schemas = map[string]resource.Schema{
	"aws_vpc": {
		Attributes: map[string]resource.Attribute{
			"cidr_block":           {Type: cty.String, Required: true, ForceNew: true, Validate: "cidrv4"},
			"enable_dns_support":   {Type: cty.Bool},
			"enable_dns_hostnames": {Type: cty.Bool},
			"tags":                 {Type: cty.Map(cty.String)},
			"id":                   {Type: cty.String, Computed: true},
			"arn":                  {Type: cty.String, Computed: true},
			"default_route_table_id": {Type: cty.String, Computed: true},
		},
	},
	"aws_subnet": {
		Attributes: map[string]resource.Attribute{
			"vpc_id":                  {Type: cty.String, Required: true, ForceNew: true},
			"cidr_block":              {Type: cty.String, Required: true, ForceNew: true, Validate: "cidrv4"},
			"availability_zone":       {Type: cty.String, ForceNew: true},
			"map_public_ip_on_launch": {Type: cty.Bool},
			"tags":                    {Type: cty.Map(cty.String)},
			"id":                      {Type: cty.String, Computed: true},
			"arn":                     {Type: cty.String, Computed: true},
		},
	},
	"aws_internet_gateway": {
		Attributes: map[string]resource.Attribute{
			"vpc_id": {Type: cty.String, Required: true, ForceNew: true},
			"tags":   {Type: cty.Map(cty.String)},
			"id":     {Type: cty.String, Computed: true},
		},
	},
	"aws_route_table": {
		Attributes: map[string]resource.Attribute{
			"vpc_id":     {Type: cty.String, Required: true, ForceNew: true},
			"gateway_id": {Type: cty.String},
			"cidr_block": {Type: cty.String, Validate: "cidrv4"},
			"tags":       {Type: cty.Map(cty.String)},
			"id":         {Type: cty.String, Computed: true},
		},
	},
	"aws_route_table_association": {
		Attributes: map[string]resource.Attribute{
			"subnet_id":      {Type: cty.String, Required: true, ForceNew: true},
			"route_table_id": {Type: cty.String, Required: true, ForceNew: true},
			"id":             {Type: cty.String, Computed: true},
		},
	},
	"aws_security_group": {
		Attributes: map[string]resource.Attribute{
			"name":        {Type: cty.String, Required: true, ForceNew: true},
			"description": {Type: cty.String},
			"vpc_id":      {Type: cty.String, Required: true, ForceNew: true},
			"tags":        {Type: cty.Map(cty.String)},
			"id":          {Type: cty.String, Computed: true},
			"arn":         {Type: cty.String, Computed: true},
		},
	},
	"aws_iam_role": {
		Attributes: map[string]resource.Attribute{
			"name":               {Type: cty.String, Required: true, ForceNew: true, Validate: "min=1,max=64"},
			"assume_role_policy": {Type: cty.String, Required: true},
			"description":        {Type: cty.String},
			"id":                 {Type: cty.String, Computed: true},
			"arn":                {Type: cty.String, Computed: true},
		},
	},
	"aws_iam_role_policy_attachment": {
		Attributes: map[string]resource.Attribute{
			"role":       {Type: cty.String, Required: true, ForceNew: true},
			"policy_arn": {Type: cty.String, Required: true, ForceNew: true},
			"id":         {Type: cty.String, Computed: true},
		},
	},
	"aws_eks_cluster": {
		Attributes: map[string]resource.Attribute{
			"name":       {Type: cty.String, Required: true, ForceNew: true, Validate: "min=1,max=100"},
			"role_arn":   {Type: cty.String, Required: true},
			"subnet_ids": {Type: cty.List(cty.String), Required: true},
			"version":    {Type: cty.String},
			"id":         {Type: cty.String, Computed: true},
			"arn":        {Type: cty.String, Computed: true},
			"endpoint":   {Type: cty.String, Computed: true},
		},
	},
	"aws_launch_configuration": {
		Attributes: map[string]resource.Attribute{
			"name":            {Type: cty.String, Required: true, ForceNew: true},
			"image_id":        {Type: cty.String, Required: true, ForceNew: true},
			"instance_type":   {Type: cty.String, Required: true, ForceNew: true},
			"security_groups": {Type: cty.List(cty.String), ForceNew: true},
			"user_data":       {Type: cty.String, ForceNew: true},
			"id":              {Type: cty.String, Computed: true},
		},
	},
	"aws_autoscaling_group": {
		Attributes: map[string]resource.Attribute{
			"name":                 {Type: cty.String, Required: true, ForceNew: true},
			"launch_configuration": {Type: cty.String, Required: true},
			"min_size":             {Type: cty.Number, Required: true, Validate: "gte=0"},
			"max_size":             {Type: cty.Number, Required: true, Validate: "gte=0"},
			"desired_capacity":     {Type: cty.Number, Validate: "gte=0"},
			"vpc_zone_identifier":  {Type: cty.List(cty.String)},
			"load_balancers":       {Type: cty.List(cty.String)},
			"id":                   {Type: cty.String, Computed: true},
			"arn":                  {Type: cty.String, Computed: true},
		},
	},
	"aws_elb": {
		Attributes: map[string]resource.Attribute{
			"name":            {Type: cty.String, Required: true, ForceNew: true, Validate: "min=1,max=32"},
			"subnets":         {Type: cty.List(cty.String)},
			"security_groups": {Type: cty.List(cty.String)},
			"instance_port":   {Type: cty.Number, Required: true, Validate: "min=1,max=65535"},
			"lb_port":         {Type: cty.Number, Required: true, Validate: "min=1,max=65535"},
			"id":              {Type: cty.String, Computed: true},
			"dns_name":        {Type: cty.String, Computed: true},
		},
	},
}
