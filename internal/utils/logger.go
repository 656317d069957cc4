package utils

import (
	"context"
	"log"
	"strings"
)

type ctxKey struct{}

// WithRequestID attaches the HTTP request id so service logs can be correlated.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, requestID)
}

// RequestIDFrom returns the request id stored by WithRequestID, or "".
func RequestIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxKey{}).(string); ok {
		return v
	}
	return ""
}

// LogEvent prints standardized log line with module/action/request_id.
// Avoid logging sensitive payload; message should be summarized.
func LogEvent(requestID, module, action, message string) {
	req := strings.TrimSpace(requestID)
	log.Printf("[%s] action=%s request_id=%s msg=%s", strings.ToUpper(module), action, req, message)
}

// LogCtx is LogEvent with the request id taken from ctx.
func LogCtx(ctx context.Context, module, action, message string) {
	LogEvent(RequestIDFrom(ctx), module, action, message)
}
