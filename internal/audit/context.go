package audit

import (
	"context"
	"strings"
)

type ctxKey string

const (
	requestIDKey  ctxKey = "audit_request_id"
	remoteAddrKey ctxKey = "audit_remote_addr"
)

// WithRequestID attaches the request identifier to the context for audit
// enrichment.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the audit request id from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithRemoteAddr attaches the caller address to the context so auth failures
// can be logged with their origin.
func WithRemoteAddr(ctx context.Context, addr string) context.Context {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ctx
	}
	return context.WithValue(ctx, remoteAddrKey, addr)
}

// RemoteAddrFromContext extracts the caller address from context if present.
func RemoteAddrFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(remoteAddrKey).(string); ok {
		return v
	}
	return ""
}
