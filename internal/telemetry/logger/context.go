package logger

import "context"

type contextKey string

const (
	loggerKey  contextKey = "snapkeep.logger"
	keyhashKey contextKey = "snapkeep.keyhash"
	runKey     contextKey = "snapkeep.run"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context, falling back to Default.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

// WithKeyhash records the snapshot stream being worked on.
func WithKeyhash(ctx context.Context, keyhash string) context.Context {
	return context.WithValue(ctx, keyhashKey, keyhash)
}

// KeyhashFromContext returns the keyhash set by WithKeyhash.
func KeyhashFromContext(ctx context.Context) string {
	if h, ok := ctx.Value(keyhashKey).(string); ok {
		return h
	}
	return ""
}

// WithRun records the run number of the snapshot stream.
func WithRun(ctx context.Context, run uint32) context.Context {
	return context.WithValue(ctx, runKey, run)
}

// RunFromContext returns the run set by WithRun.
func RunFromContext(ctx context.Context) (uint32, bool) {
	run, ok := ctx.Value(runKey).(uint32)
	return run, ok
}

// L returns the context logger enriched with the keyhash and run found in
// ctx.
func L(ctx context.Context) Logger {
	l := FromContext(ctx)
	if h := KeyhashFromContext(ctx); h != "" {
		l = l.With("keyhash", h)
	}
	if run, ok := RunFromContext(ctx); ok {
		l = l.With("run", run)
	}
	return l
}
