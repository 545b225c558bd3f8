package dispatch

import (
	"context"
	"fmt"

	"github.com/teemow/crmgate/internal/schema"
)

// Kind is the calling convention of an operation's handler.
type Kind int

const (
	// KindNone handlers take no parameters.
	KindNone Kind = iota
	// KindObject handlers receive the validated params object.
	KindObject
	// KindNamed handlers receive params decoded into a typed struct.
	KindNamed
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindObject:
		return "object"
	case KindNamed:
		return "named"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Operation is a named, schema-described unit of work. Build one with
// NoArgs, Object or Named; the constructor fixes its Kind.
type Operation struct {
	Name        string
	Description string
	Schema      *schema.Schema
	Kind        Kind
	// ReadOnly marks operations that do not modify CRM data.
	ReadOnly bool

	noArgs func(ctx context.Context) (any, error)
	object func(ctx context.Context, params schema.Params) (any, error)
	named  func(params schema.Params) (boundCall, error)
}

// boundCall is a handler with its arguments already decoded.
type boundCall func(ctx context.Context) (any, error)

// NoArgs registers a handler that ignores request params.
func NoArgs(name, description string, s *schema.Schema, fn func(ctx context.Context) (any, error)) Operation {
	return Operation{
		Name:        name,
		Description: description,
		Schema:      orEmpty(s),
		Kind:        KindNone,
		ReadOnly:    true,
		noArgs:      fn,
	}
}

// Object registers a handler receiving the validated params object, or an
// empty one when the request carried none.
func Object(name, description string, s *schema.Schema, fn func(ctx context.Context, params schema.Params) (any, error)) Operation {
	return Operation{
		Name:        name,
		Description: description,
		Schema:      orEmpty(s),
		Kind:        KindObject,
		ReadOnly:    true,
		object:      fn,
	}
}

// Named registers a handler receiving params decoded into T by JSON field name.
func Named[T any](name, description string, s *schema.Schema, fn func(ctx context.Context, args T) (any, error)) Operation {
	return Operation{
		Name:        name,
		Description: description,
		Schema:      orEmpty(s),
		Kind:        KindNamed,
		ReadOnly:    true,
		named: func(params schema.Params) (boundCall, error) {
			var args T
			if err := params.Decode(&args); err != nil {
				return nil, &schema.ValidationError{Field: "params", Reason: err.Error()}
			}
			return func(ctx context.Context) (any, error) { return fn(ctx, args) }, nil
		},
	}
}

// Mutating returns a copy of op marked as modifying CRM data.
func (op Operation) Mutating() Operation {
	op.ReadOnly = false
	return op
}

// Invoke calls the handler with params according to the operation's Kind.
// Params that cannot be decoded for a Named handler yield a
// *schema.ValidationError; handler errors are returned unchanged.
func (op Operation) Invoke(ctx context.Context, params schema.Params) (any, error) {
	call, err := op.bind(params)
	if err != nil {
		return nil, err
	}
	return call(ctx)
}

// bind prepares the handler call without running it.
func (op Operation) bind(params schema.Params) (boundCall, error) {
	if params == nil {
		params = schema.Params{}
	}
	switch op.Kind {
	case KindNone:
		if op.noArgs != nil {
			return op.noArgs, nil
		}
	case KindObject:
		if op.object != nil {
			return func(ctx context.Context) (any, error) { return op.object(ctx, params) }, nil
		}
	case KindNamed:
		if op.named != nil {
			return op.named(params)
		}
	}
	return nil, fmt.Errorf("operation %q has no %s handler", op.Name, op.Kind)
}

func orEmpty(s *schema.Schema) *schema.Schema {
	if s == nil {
		return schema.Empty()
	}
	return s
}
