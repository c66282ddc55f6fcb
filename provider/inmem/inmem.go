// Package inmem implements a provider that simulates resources in memory.
//
// It fills computed attributes with deterministic placeholder values, which
// makes it suitable for tests and for exercising plans without touching any
// real infrastructure.
package inmem

import (
	"context"
	"fmt"
	"sync"

	"github.com/converge/converge/provider"
	"github.com/converge/converge/resource"
	"github.com/pkg/errors"
	"github.com/zclconf/go-cty/cty"
)

// Provider simulates resources in memory.
//
// Safe for concurrent use.
type Provider struct {
	// Registry resolves type schemas, used to fill computed attributes.
	Registry *resource.Registry

	// Fault, when set, is consulted before every operation. A non-nil
	// return fails the operation with that error. Tests use this to
	// inject transient and permanent failures.
	Fault func(op, typename string) error

	mu        sync.Mutex
	resources map[string]cty.Value
	seq       int
}

// New returns an empty provider backed by the given registry.
func New(reg *resource.Registry) *Provider {
	return &Provider{Registry: reg}
}

// Create implements provider.Interface.
func (p *Provider) Create(ctx context.Context, typename string, input cty.Value) (string, cty.Value, error) {
	if err := p.fault("create", typename); err != nil {
		return "", cty.NilVal, err
	}
	schema, ok := p.Registry.Schema(typename)
	if !ok {
		return "", cty.NilVal, &provider.Error{
			Op:        "create",
			Type:      typename,
			Permanent: true,
			Err:       errors.New("unsupported resource type"),
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	id := fmt.Sprintf("%s-%08x", typename, p.seq)

	out := p.computed(schema, typename, id, input)
	p.store(id, out)
	return id, out, nil
}

// Update implements provider.Interface.
func (p *Provider) Update(ctx context.Context, typename, id string, prev, next cty.Value) (cty.Value, error) {
	if err := p.fault("update", typename); err != nil {
		return cty.NilVal, err
	}
	schema, ok := p.Registry.Schema(typename)
	if !ok {
		return cty.NilVal, &provider.Error{
			Op:        "update",
			Type:      typename,
			Permanent: true,
			Err:       errors.New("unsupported resource type"),
		}
	}

	// An id this process has not seen is adopted rather than rejected; the
	// provider is process local while recorded state persists across runs.
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.computed(schema, typename, id, next)
	p.store(id, out)
	return out, nil
}

// Delete implements provider.Interface. Deleting an unknown id is a no-op.
func (p *Provider) Delete(ctx context.Context, typename, id string) error {
	if err := p.fault("delete", typename); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.resources, id)
	return nil
}

// Resource returns the simulated attribute set for an id. Returns false if
// the resource does not exist.
func (p *Provider) Resource(id string) (cty.Value, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.resources[id]
	return v, ok
}

// Len returns the number of live simulated resources.
func (p *Provider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.resources)
}

func (p *Provider) fault(op, typename string) error {
	if p.Fault == nil {
		return nil
	}
	return p.Fault(op, typename)
}

func (p *Provider) store(id string, val cty.Value) {
	if p.resources == nil {
		p.resources = make(map[string]cty.Value)
	}
	p.resources[id] = val
}

// computed builds the full attribute object from the input, synthesizing
// placeholder values for computed attributes.
func (p *Provider) computed(schema resource.Schema, typename, id string, input cty.Value) cty.Value {
	attrs := make(map[string]cty.Value, len(schema.Attributes))
	for name, attr := range schema.Attributes {
		if !attr.Computed {
			attrs[name] = input.GetAttr(name)
			continue
		}
		switch {
		case name == "id":
			attrs[name] = cty.StringVal(id)
		case attr.Type == cty.String:
			attrs[name] = cty.StringVal(fmt.Sprintf("%s/%s", id, name))
		case attr.Type == cty.Number:
			attrs[name] = cty.NumberIntVal(int64(len(id)))
		case attr.Type == cty.Bool:
			attrs[name] = cty.True
		default:
			attrs[name] = cty.NullVal(attr.Type)
		}
	}
	return cty.ObjectVal(attrs)
}
