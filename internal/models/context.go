package models

import (
	"context"
)

type requestContextKey struct{}

// RequestContext carries caller data through context so the ledger mirror
// can store it as transaction metadata without widening engine signatures.
type RequestContext struct {
	RequestId string // correlation id of the inbound call
	Source    string // e.g. "cli", "miniapp", "bot"
}

// WithRequestContext attaches request data to a context.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// GetRequestContext returns the request data, or nil if absent.
func GetRequestContext(ctx context.Context) *RequestContext {
	rc, _ := ctx.Value(requestContextKey{}).(*RequestContext)
	return rc
}
