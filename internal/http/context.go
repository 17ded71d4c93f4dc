package http

import (
	"context"
	"log/slog"

	"github.com/example/activity-scheduler/internal/application"
	"github.com/example/activity-scheduler/internal/logging"
)

type contextKey string

const (
	principalContextKey    contextKey = "principal"
	seriesIDContextKey     contextKey = "series_id"
	occurrenceIDContextKey contextKey = "occurrence_id"
	reminderIDContextKey   contextKey = "reminder_id"
)

// ContextWithPrincipal returns a derived context containing the authenticated principal.
func ContextWithPrincipal(ctx context.Context, principal application.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the authenticated principal from context if available.
func PrincipalFromContext(ctx context.Context) (application.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(application.Principal)
	return principal, ok
}

// ContextWithSeriesID injects the series identifier resolved from the request path.
func ContextWithSeriesID(ctx context.Context, seriesID string) context.Context {
	return context.WithValue(ctx, seriesIDContextKey, seriesID)
}

// SeriesIDFromContext extracts a series identifier previously associated with the context.
func SeriesIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(seriesIDContextKey).(string)
	return id, ok
}

// ContextWithOccurrenceID injects the occurrence identifier resolved from the request path.
func ContextWithOccurrenceID(ctx context.Context, occurrenceID string) context.Context {
	return context.WithValue(ctx, occurrenceIDContextKey, occurrenceID)
}

// OccurrenceIDFromContext extracts an occurrence identifier previously associated with the context.
func OccurrenceIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(occurrenceIDContextKey).(string)
	return id, ok
}

// ContextWithReminderID injects the reminder identifier resolved from the request path.
func ContextWithReminderID(ctx context.Context, reminderID string) context.Context {
	return context.WithValue(ctx, reminderIDContextKey, reminderID)
}

// ReminderIDFromContext extracts a reminder identifier previously associated with the context.
func ReminderIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(reminderIDContextKey).(string)
	return id, ok
}

// ContextWithLogger attaches a request scoped logger to the context.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext extracts the request scoped logger, if any.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}
