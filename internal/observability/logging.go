package observability

import (
	"context"
	"log/slog"
)

// LogContext holds structured logging context information.
type LogContext struct {
	RequestID   string
	ApplianceID int64
	AccountID   int64
	TouchKind   string
}

// contextKey is used for context values.
type logContextKeyType string

const logContextKey logContextKeyType = "log-context"

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	lc := extractLogContext(ctx)
	lc.RequestID = requestID
	return context.WithValue(ctx, logContextKey, lc)
}

// WithApplianceID adds an appliance ID to the context.
func WithApplianceID(ctx context.Context, applianceID int64) context.Context {
	lc := extractLogContext(ctx)
	lc.ApplianceID = applianceID
	return context.WithValue(ctx, logContextKey, lc)
}

// WithAccountID adds an account ID to the context.
func WithAccountID(ctx context.Context, accountID int64) context.Context {
	lc := extractLogContext(ctx)
	lc.AccountID = accountID
	return context.WithValue(ctx, logContextKey, lc)
}

// WithTouchKind adds a touch kind to the context.
func WithTouchKind(ctx context.Context, kind string) context.Context {
	lc := extractLogContext(ctx)
	lc.TouchKind = kind
	return context.WithValue(ctx, logContextKey, lc)
}

// extractLogContext retrieves or creates a LogContext from the context.
func extractLogContext(ctx context.Context) LogContext {
	if lc, ok := ctx.Value(logContextKey).(LogContext); ok {
		return lc
	}
	return LogContext{}
}

// getLogAttrs returns slog attributes from the context's LogContext.
func getLogAttrs(ctx context.Context) []slog.Attr {
	lc := extractLogContext(ctx)
	attrs := []slog.Attr{}

	if lc.RequestID != "" {
		attrs = append(attrs, slog.String("request.id", lc.RequestID))
	}
	if lc.ApplianceID != 0 {
		attrs = append(attrs, slog.Int64("appliance.id", lc.ApplianceID))
	}
	if lc.AccountID != 0 {
		attrs = append(attrs, slog.Int64("account.id", lc.AccountID))
	}
	if lc.TouchKind != "" {
		attrs = append(attrs, slog.String("touch.kind", lc.TouchKind))
	}

	return attrs
}

// InfoContext logs an info message with context information.
func InfoContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	contextAttrs := getLogAttrs(ctx)
	allAttrs := append(contextAttrs, attrs...)
	slog.LogAttrs(ctx, slog.LevelInfo, msg, allAttrs...)
}

// WarnContext logs a warning message with context information.
func WarnContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	contextAttrs := getLogAttrs(ctx)
	allAttrs := append(contextAttrs, attrs...)
	slog.LogAttrs(ctx, slog.LevelWarn, msg, allAttrs...)
}

// ErrorContext logs an error message with context information.
func ErrorContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	contextAttrs := getLogAttrs(ctx)
	allAttrs := append(contextAttrs, attrs...)
	slog.LogAttrs(ctx, slog.LevelError, msg, allAttrs...)
}

// DebugContext logs a debug message with context information.
func DebugContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	contextAttrs := getLogAttrs(ctx)
	allAttrs := append(contextAttrs, attrs...)
	slog.LogAttrs(ctx, slog.LevelDebug, msg, allAttrs...)
}

// GetContext returns the structured log context from the provided context.
func GetContext(ctx context.Context) LogContext {
	return extractLogContext(ctx)
}
