package models

import (
	"context"

	"go.uber.org/zap"
)

type requestContextKey struct{}

// RequestContext carries caller metadata through context so ledger audit
// logs can name who asked for a change without widening every signature.
type RequestContext struct {
	RequestId string // per-request id assigned by the HTTP layer
	Actor     string // X-Actor header, "cli" for command line tools
	Source    string // "http", "scheduler" or "cli"
}

// WithRequestContext attaches caller metadata to a context.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// GetRequestContext retrieves caller metadata from context, or nil if absent.
func GetRequestContext(ctx context.Context) *RequestContext {
	rc, _ := ctx.Value(requestContextKey{}).(*RequestContext)
	return rc
}

// RequestFields returns zap fields for the caller metadata in ctx.
func RequestFields(ctx context.Context) []zap.Field {
	rc := GetRequestContext(ctx)
	if rc == nil {
		return nil
	}
	fields := make([]zap.Field, 0, 3)
	if rc.RequestId != "" {
		fields = append(fields, zap.String("request_id", rc.RequestId))
	}
	if rc.Actor != "" {
		fields = append(fields, zap.String("actor", rc.Actor))
	}
	if rc.Source != "" {
		fields = append(fields, zap.String("source", rc.Source))
	}
	return fields
}
