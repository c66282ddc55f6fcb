package resource

import (
	"sort"

	"github.com/zclconf/go-cty/cty"
)

// An Attribute describes a single attribute in a resource type's schema.
type Attribute struct {
	// Type constrains the values the attribute accepts.
	Type cty.Type

	// Required attributes must be set in configuration.
	Required bool

	// Computed attributes are assigned by the provider and cannot be set in
	// configuration.
	Computed bool

	// ForceNew marks an attribute that cannot be updated in place; a change
	// to it replaces the resource.
	ForceNew bool

	// Validate is an optional validation rule for statically known values,
	// for example "cidrv4" or "min=1".
	Validate string
}

// A Schema describes the attributes of a resource type.
type Schema struct {
	Attributes map[string]Attribute
}

// InputType returns the object type containing the non-computed attributes.
// Decoded resource configuration conforms to this type.
func (s Schema) InputType() cty.Type {
	attrs := make(map[string]cty.Type)
	for name, a := range s.Attributes {
		if a.Computed {
			continue
		}
		attrs[name] = a.Type
	}
	return cty.Object(attrs)
}

// ImpliedType returns the object type containing all attributes, including
// computed ones. Applied resource state conforms to this type.
func (s Schema) ImpliedType() cty.Type {
	attrs := make(map[string]cty.Type, len(s.Attributes))
	for name, a := range s.Attributes {
		attrs[name] = a.Type
	}
	return cty.Object(attrs)
}

// A Registry maintains the resource type schemas known to the engine.
type Registry struct {
	schemas map[string]Schema
}

// RegistryFromSchemas creates a registry from a predefined set of schemas.
// It is primarily a convenience for tests.
func RegistryFromSchemas(schemas map[string]Schema) *Registry {
	r := &Registry{}
	for name, s := range schemas {
		r.Register(name, s)
	}
	return r
}

// Register adds a resource type. If another schema with the same type name
// was registered, it is overwritten.
//
// Not safe for concurrent access.
func (r *Registry) Register(typename string, schema Schema) {
	if r.schemas == nil {
		r.schemas = make(map[string]Schema)
	}
	r.schemas[typename] = schema
}

// Schema returns the schema for a type name. Returns false if the type has
// not been registered.
func (r *Registry) Schema(typename string) (Schema, bool) {
	s, ok := r.schemas[typename]
	return s, ok
}

// Types returns all registered type names, lexicographically sorted.
func (r *Registry) Types() []string {
	tt := make([]string, 0, len(r.schemas))
	for k := range r.schemas {
		tt = append(tt, k)
	}
	sort.Strings(tt)
	return tt
}
