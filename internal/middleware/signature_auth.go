package middleware

import (
	"net/http"
	"strings"

	"github.com/devasign/task-escrow/internal/auth"
)

// SignatureHeader carries one signed intent. A request may repeat it, e.g.
// when both the creator and the admin must approve a call.
const SignatureHeader = "X-Escrow-Signature"

// Signatures collects the signed intents of a request into its context for
// auth.Verifier. It never rejects: a missing signature is reported by the
// escrow operation that needed it.
func Signatures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var tokens []string
		if raw := extractBearer(r); raw != "" {
			tokens = append(tokens, raw)
		}
		for _, v := range r.Header.Values(SignatureHeader) {
			for _, part := range strings.Split(v, ",") {
				if part = strings.TrimSpace(part); part != "" {
					tokens = append(tokens, part)
				}
			}
		}
		if len(tokens) > 0 {
			r = r.WithContext(auth.WithSignatures(r.Context(), tokens...))
		}
		next.ServeHTTP(w, r)
	})
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
