package core

import "context"

type contextKey string

const (
	ctxKeyUser contextKey = "user"
)

// ContextWithUser attaches the authenticated user to the context.
func ContextWithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKeyUser, u)
}

// UserFromContext extracts the authenticated user from context.
func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(ctxKeyUser).(User)
	return u, ok
}
