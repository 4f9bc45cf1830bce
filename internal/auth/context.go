package auth

import "context"

type actorContextKey struct{}
type tokenContextKey struct{}

// ContextWithActor attaches the authenticated official to the context.
func ContextWithActor(ctx context.Context, official *Official) context.Context {
	if official == nil {
		return ctx
	}
	return context.WithValue(ctx, actorContextKey{}, official)
}

// ActorFromContext extracts the authenticated official from the context.
func ActorFromContext(ctx context.Context) (*Official, bool) {
	if ctx == nil {
		return nil, false
	}
	v, ok := ctx.Value(actorContextKey{}).(*Official)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// ContextWithToken stores the raw bearer token inside the context.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext returns the bearer token if it was previously attached.
func TokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(tokenContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
