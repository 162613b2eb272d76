// Package identity derives the user a request acts for from its bearer
// credential.
package identity

import "context"

// Identity is either an authenticated user id or anonymous. The zero value is
// anonymous.
type Identity struct {
	id string
}

// Anonymous returns the identity of a caller without a usable credential.
func Anonymous() Identity {
	return Identity{}
}

// New returns an authenticated identity for id. An empty id is anonymous.
func New(id string) Identity {
	return Identity{id: id}
}

// ID returns the user id and whether the identity is authenticated.
func (i Identity) ID() (string, bool) {
	return i.id, i.id != ""
}

func (i Identity) IsAnonymous() bool {
	return i.id == ""
}

// Matches reports whether both identities are authenticated and equal.
// Anonymous never matches anything, including another anonymous identity.
func (i Identity) Matches(other Identity) bool {
	return i.id != "" && i.id == other.id
}

func (i Identity) String() string {
	if i.id == "" {
		return "anonymous"
	}
	return i.id
}

type ctxKey struct{}

// WithContext returns a copy of ctx carrying id.
func WithContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored in ctx, or anonymous.
func FromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(ctxKey{}).(Identity); ok {
		return id
	}
	return Anonymous()
}
