// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sort"
)

// GlobalLogger is the default logger for repository and service events.
// The middleware package swaps in its request-context aware logger at init.
var GlobalLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

// SetLogger replaces GlobalLogger.
func SetLogger(l *slog.Logger) {
	if l != nil {
		GlobalLogger = l
	}
}

// clientFault is implemented by errors caused by the caller (bad id, wrong
// guest secret, refused transition). Those are logged as warnings.
type clientFault interface {
	ClientFault() bool
}

// RepoLogger provides structured logging for repository operations on one table.
type RepoLogger struct {
	tableName string
}

// NewRepoLogger creates a new RepoLogger for the given table.
func NewRepoLogger(tableName string) *RepoLogger {
	return &RepoLogger{tableName: tableName}
}

func (l *RepoLogger) attrs(operation string, fields map[string]interface{}) []any {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []any{
		slog.String("table", l.tableName),
		slog.String("operation", operation),
	}
	for _, k := range keys {
		out = append(out, slog.Any(k, fields[k]))
	}
	return out
}

// LogCreate logs a repository create operation.
func (l *RepoLogger) LogCreate(ctx context.Context, fields map[string]interface{}) {
	GlobalLogger.InfoContext(ctx, "repository create", l.attrs("create", fields)...)
}

// LogUpdate logs a repository update operation.
func (l *RepoLogger) LogUpdate(ctx context.Context, fields map[string]interface{}) {
	GlobalLogger.InfoContext(ctx, "repository update", l.attrs("update", fields)...)
}

// LogDelete logs a repository delete operation.
func (l *RepoLogger) LogDelete(ctx context.Context, fields map[string]interface{}) {
	GlobalLogger.InfoContext(ctx, "repository delete", l.attrs("delete", fields)...)
}

// LogError logs a failed operation: caller faults at warn, everything else at error.
func (l *RepoLogger) LogError(ctx context.Context, err error, operation string) {
	attrs := append(l.attrs(operation, nil), slog.String("error", err.Error()))

	var cf clientFault
	if errors.As(err, &cf) && cf.ClientFault() {
		GlobalLogger.WarnContext(ctx, "repository operation refused", attrs...)
		return
	}
	GlobalLogger.ErrorContext(ctx, "repository error", attrs...)
}
