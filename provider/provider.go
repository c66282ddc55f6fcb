// Package provider defines the interface between the execution engine and
// the backends that create, update and delete real resources.
package provider

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// An Interface performs resource operations.
//
// Input values conform to the resource type's input schema and are wholly
// known. Returned outputs conform to the full schema, including computed
// attributes.
//
// Implementations signal unrecoverable failures by returning *Error with
// Permanent set; any other error is treated as transient and retried.
type Interface interface {
	// Create provisions a new resource and returns its identifier and
	// full attribute set.
	Create(ctx context.Context, typename string, input cty.Value) (id string, output cty.Value, err error)

	// Update modifies an existing resource in place and returns the new
	// attribute set.
	Update(ctx context.Context, typename, id string, prev, next cty.Value) (cty.Value, error)

	// Delete removes the resource with the given identifier. Deleting a
	// resource that no longer exists is not an error.
	Delete(ctx context.Context, typename, id string) error
}

// An Error is a failed provider operation.
type Error struct {
	// Op is the failed operation, "create", "update" or "delete".
	Op string

	// Type is the resource type the operation was for.
	Type string

	// Permanent marks the failure as unrecoverable. Transient failures
	// are retried, permanent failures abort the run.
	Permanent bool

	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *Error) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	return fmt.Sprintf("%s %s: %s error: %v", e.Op, e.Type, kind, e.Err)
}

// Cause returns the underlying error.
func (e *Error) Cause() error { return e.Err }

// IsPermanent reports whether err is an unrecoverable provider failure.
//
// The cause chain is walked one level at a time; errors.Cause would unwrap
// straight past *Error to the underlying error.
func IsPermanent(err error) bool {
	for err != nil {
		if perr, ok := err.(*Error); ok {
			return perr.Permanent
		}
		cause, ok := err.(interface{ Cause() error })
		if !ok {
			return false
		}
		err = cause.Cause()
	}
	return false
}
