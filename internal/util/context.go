package util

import (
	"context"

	"github.com/google/uuid"
)

type rqIDKey struct{}

// WithRequestID returns ctx carrying a fresh request id unless it already
// has one.
func WithRequestID(ctx context.Context) context.Context {
	if RequestID(ctx) != "" {
		return ctx
	}
	return context.WithValue(ctx, rqIDKey{}, uuid.NewString())
}

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	rqID, ok := ctx.Value(rqIDKey{}).(string)
	if !ok {
		return ""
	}
	return rqID
}
