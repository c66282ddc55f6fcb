package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/converge/converge/resource"
	"github.com/pkg/errors"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// A Record is the persisted state of one applied resource instance: the
// attribute snapshot from the last successful provider call and the
// identifier the provider assigned.
type Record struct {
	Addr resource.Addr

	// ID is the provider-assigned identifier.
	ID string

	// Attrs is the full applied attribute set, including computed
	// attributes.
	Attrs cty.Value

	// Deps holds the addresses of the instances this resource depended on
	// when it was applied. Destroy ordering is derived from these after the
	// configuration no longer declares the resource.
	Deps []string

	// Tainted forces replacement on the next apply.
	Tainted bool
}

// A Store persists resource records and named outputs for projects.
type Store struct {
	Backend KVBackend
}

// envelope wraps a record for json encoding. Attribute values carry their
// type so they can be decoded without the schema at hand.
type envelope struct {
	Addr    string          `json:"addr"`
	ID      string          `json:"id,omitempty"`
	Attrs   json.RawMessage `json:"attrs"`
	Type    json.RawMessage `json:"attrs_type"`
	Deps    []string        `json:"deps,omitempty"`
	Tainted bool            `json:"tainted,omitempty"`
}

func resourceKey(project, addr string) string {
	return fmt.Sprintf("%s/resources/%s", project, addr)
}

// PutResource creates or updates a record.
func (s *Store) PutResource(ctx context.Context, project string, rec *Record) error {
	attrs, err := ctyjson.Marshal(rec.Attrs, rec.Attrs.Type())
	if err != nil {
		return errors.Wrap(err, "marshal attributes")
	}
	ty, err := ctyjson.MarshalType(rec.Attrs.Type())
	if err != nil {
		return errors.Wrap(err, "marshal attribute type")
	}
	env := envelope{
		Addr:    rec.Addr.String(),
		ID:      rec.ID,
		Attrs:   attrs,
		Type:    ty,
		Deps:    rec.Deps,
		Tainted: rec.Tainted,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "marshal envelope")
	}
	return s.Backend.Put(ctx, resourceKey(project, env.Addr), data)
}

// Resource returns the record for a single address. Returns ErrNotFound if
// no record exists.
func (s *Store) Resource(ctx context.Context, project, addr string) (*Record, error) {
	data, err := s.Backend.Get(ctx, resourceKey(project, addr))
	if err != nil {
		return nil, err
	}
	return decodeRecord(data)
}

// DeleteResource deletes a record. No-op if the record does not exist.
func (s *Store) DeleteResource(ctx context.Context, project, addr string) error {
	err := s.Backend.Delete(ctx, resourceKey(project, addr))
	if errors.Cause(err) == ErrNotFound {
		return nil
	}
	return err
}

// ListResources returns all records in a project, keyed by address.
func (s *Store) ListResources(ctx context.Context, project string) (map[string]*Record, error) {
	values, err := s.Backend.Scan(ctx, fmt.Sprintf("%s/resources/", project))
	if err != nil {
		return nil, errors.Wrap(err, "scan")
	}
	out := make(map[string]*Record, len(values))
	for _, data := range values {
		rec, err := decodeRecord(data)
		if err != nil {
			return nil, err
		}
		out[rec.Addr.String()] = rec
	}
	return out, nil
}

func decodeRecord(data []byte) (*Record, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(err, "unmarshal envelope")
	}
	addr, err := resource.ParseAddr(env.Addr)
	if err != nil {
		return nil, err
	}
	ty, err := ctyjson.UnmarshalType(env.Type)
	if err != nil {
		return nil, errors.Wrap(err, "unmarshal attribute type")
	}
	attrs, err := ctyjson.Unmarshal(env.Attrs, ty)
	if err != nil {
		return nil, errors.Wrap(err, "unmarshal attributes")
	}
	return &Record{
		Addr:    addr,
		ID:      env.ID,
		Attrs:   attrs,
		Deps:    env.Deps,
		Tainted: env.Tainted,
	}, nil
}

// outputEnvelope wraps an output value for json encoding.
type outputEnvelope struct {
	Value json.RawMessage `json:"value"`
	Type  json.RawMessage `json:"type"`
}

func outputKey(project, name string) string {
	return fmt.Sprintf("%s/outputs/%s", project, name)
}

// PutOutput stores a named output value.
func (s *Store) PutOutput(ctx context.Context, project, name string, val cty.Value) error {
	v, err := ctyjson.Marshal(val, val.Type())
	if err != nil {
		return errors.Wrap(err, "marshal value")
	}
	ty, err := ctyjson.MarshalType(val.Type())
	if err != nil {
		return errors.Wrap(err, "marshal type")
	}
	data, err := json.Marshal(outputEnvelope{Value: v, Type: ty})
	if err != nil {
		return errors.Wrap(err, "marshal envelope")
	}
	return s.Backend.Put(ctx, outputKey(project, name), data)
}

// DeleteOutput removes a named output. No-op if the output does not exist.
func (s *Store) DeleteOutput(ctx context.Context, project, name string) error {
	err := s.Backend.Delete(ctx, outputKey(project, name))
	if errors.Cause(err) == ErrNotFound {
		return nil
	}
	return err
}

// Outputs returns all stored outputs for a project, keyed by name.
func (s *Store) Outputs(ctx context.Context, project string) (map[string]cty.Value, error) {
	prefix := fmt.Sprintf("%s/outputs/", project)
	values, err := s.Backend.Scan(ctx, prefix)
	if err != nil {
		return nil, errors.Wrap(err, "scan")
	}
	out := make(map[string]cty.Value, len(values))
	for key, data := range values {
		var env outputEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, errors.Wrap(err, "unmarshal envelope")
		}
		ty, err := ctyjson.UnmarshalType(env.Type)
		if err != nil {
			return nil, errors.Wrap(err, "unmarshal type")
		}
		val, err := ctyjson.Unmarshal(env.Value, ty)
		if err != nil {
			return nil, errors.Wrap(err, "unmarshal value")
		}
		out[key[len(prefix):]] = val
	}
	return out, nil
}
