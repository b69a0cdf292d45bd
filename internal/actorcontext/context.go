package actorcontext

import (
	"context"
	"strings"
)

type actorIDKey struct{}
type actorEmailKey struct{}
type requestIDKey struct{}

// WithActor stores the acting administrator's id and email in the context.
func WithActor(ctx context.Context, id, email string) context.Context {
	id = strings.TrimSpace(id)
	email = strings.TrimSpace(email)
	if id != "" {
		ctx = context.WithValue(ctx, actorIDKey{}, id)
	}
	if email != "" {
		ctx = context.WithValue(ctx, actorEmailKey{}, email)
	}
	return ctx
}

// ActorFromContext returns the actor id and email, if set.
func ActorFromContext(ctx context.Context) (id string, email string) {
	if ctx == nil {
		return "", ""
	}
	if v, ok := ctx.Value(actorIDKey{}).(string); ok {
		id = v
	}
	if v, ok := ctx.Value(actorEmailKey{}).(string); ok {
		email = v
	}
	return id, email
}

// WithRequestID stores the request correlation id in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request correlation id, if set.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}
