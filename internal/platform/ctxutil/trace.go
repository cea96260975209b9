package ctxutil

import "context"

type traceDataKey struct{}

type authorKey struct{}

type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	val := ctx.Value(traceDataKey{})
	if td, ok := val.(*TraceData); ok {
		return td
	}
	return nil
}

// WithAuthor records who is performing a library write.
func WithAuthor(ctx context.Context, authorID string) context.Context {
	return context.WithValue(ctx, authorKey{}, authorID)
}

func AuthorFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(authorKey{}).(string)
	return s
}
