package datafeed

import "context"

type scopeKey struct{}

// WithScope tags ctx with the caller a GetBars request belongs to. A newer
// request only supersedes older ones that carry the same scope, so callers
// sharing one Datafeed do not cancel each other's history.
func WithScope(ctx context.Context, scope string) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

func scopeFrom(ctx context.Context) string {
	s, _ := ctx.Value(scopeKey{}).(string)
	return s
}
