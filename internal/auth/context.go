package auth

import "context"

type identityKey struct{}

// Identity is the resolved caller attached to a request context after token
// verification.
type Identity struct {
	UserID string
	Email  string
	Roles  []string
}

func (id Identity) HasRole(role string) bool {
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Subject returns the caller's user id, or "" when unauthenticated.
func Subject(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}
