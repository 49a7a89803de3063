package docstore

import (
	"context"
	"fmt"
)

// Actor is whoever a write is performed for.
type Actor struct {
	UserID string
	Admin  bool
	// System marks trusted internal writes (bootstrap, sign-up, the
	// identity service). Rules are not consulted for them.
	System bool
}

type actorKey struct{}

// WithActor attaches the acting user to ctx.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// AsSystem marks ctx as a trusted internal caller.
func AsSystem(ctx context.Context) context.Context {
	return WithActor(ctx, Actor{System: true})
}

// ActorFrom returns the actor attached to ctx, if any.
func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}

type Op string

const (
	OpCreate Op = "create"
	OpSet    Op = "set"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Write describes a write about to be performed.
type Write struct {
	Op         Op
	Collection string
	ID         string
	Fields     Doc
}

// Rules is the authoritative write check, evaluated inside the store
// before every non-system write. A non-nil error rejects the write.
type Rules interface {
	Authorize(ctx context.Context, r Reader, actor Actor, w Write) error
}

// RulesFunc adapts a function to Rules.
type RulesFunc func(ctx context.Context, r Reader, actor Actor, w Write) error

func (f RulesFunc) Authorize(ctx context.Context, r Reader, actor Actor, w Write) error {
	return f(ctx, r, actor, w)
}

// Deny builds a permission error carrying a reason.
func Deny(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPermissionDenied, fmt.Sprintf(format, args...))
}
