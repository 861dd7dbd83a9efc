package auth

import "context"

type contextKey string

const ctxSignaturesKey contextKey = "signatures"

// WithSignatures returns a context carrying the caller's signed intents.
func WithSignatures(ctx context.Context, tokens ...string) context.Context {
	existing := SignaturesFromContext(ctx)
	all := make([]string, 0, len(existing)+len(tokens))
	all = append(all, existing...)
	for _, t := range tokens {
		if t != "" {
			all = append(all, t)
		}
	}
	return context.WithValue(ctx, ctxSignaturesKey, all)
}

// SignaturesFromContext returns the signed intents attached to ctx.
func SignaturesFromContext(ctx context.Context) []string {
	s, _ := ctx.Value(ctxSignaturesKey).([]string)
	return s
}
