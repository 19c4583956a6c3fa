package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the authenticated user id in context. The auth
// layer in front of this service resolves the identity; the core only needs
// it for audit attribution on mutating calls.
func ContextWithActor(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, userID)
}

// ActorFromContext extracts the authenticated user id, zero when absent.
func ActorFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(actorContextKey{}).(int64)
	return id
}
