package clients

import "context"

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// RunIDKey is the context key for the migration run id (X-Migration-Run header)
	RunIDKey contextKey = "run-id"
)

// WithRunID adds a run id to the context
// It is sent as X-Migration-Run on every outbound request
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// GetRunID retrieves the run id from context
func GetRunID(ctx context.Context) (string, bool) {
	runID, ok := ctx.Value(RunIDKey).(string)
	return runID, ok && runID != ""
}
