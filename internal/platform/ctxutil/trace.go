package ctxutil

import "context"

type traceDataKey struct{}

// TraceData carries request correlation ids. CanvasID and ModuleID are set
// when the matched route addresses a canvas or a module.
type TraceData struct {
	TraceID   string
	RequestID string
	CanvasID  string
	ModuleID  string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	val := ctx.Value(traceDataKey{})
	if td, ok := val.(*TraceData); ok {
		return td
	}
	return nil
}

// Default returns context.Background() when ctx is nil.
func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// Detached keeps ctx's values (trace data, spans) but drops its cancellation,
// for work that must finish even if the originating request goes away.
func Detached(ctx context.Context) context.Context {
	return context.WithoutCancel(Default(ctx))
}
