// Package actor identifies the user performing an action. Authentication is
// handled outside this system; the actor is an opaque identifier forwarded by
// the caller and used only for audit logging and movement attribution.
package actor

import (
	"context"
)

// Actor represents the entity performing an action in the system.
type Actor struct {
	// ID is the opaque identifier of the actor (user ID, badge number, ...)
	ID string `json:"id"`

	// Name is the actor's display name, if the caller supplied one
	Name string `json:"name,omitempty"`
}

// System is the actor recorded for operations not triggered by a user.
var System = Actor{ID: "system", Name: "system"}

// String returns a string representation of the actor for logging
func (a Actor) String() string {
	if a.Name != "" {
		return a.Name + " (" + a.ID + ")"
	}
	return a.ID
}

type contextKey struct{}

// WithActor attaches an actor to the context.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

// FromContext returns the actor attached to the context, or System when the
// request carried no actor headers.
func FromContext(ctx context.Context) Actor {
	if a, ok := ctx.Value(contextKey{}).(Actor); ok && a.ID != "" {
		return a
	}
	return System
}
