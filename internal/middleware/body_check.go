package middleware

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 64 << 10

// BodyValidator checks a raw body against a named schema.
type BodyValidator interface {
	Validate(name string, body []byte) error
}

// ValidateBody rejects a request whose body does not match schema. It reads
// the body, then replaces r.Body so downstream handlers can re-read it.
func ValidateBody(v BodyValidator, schema string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
			r.Body.Close()
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					http.Error(w, `{"error":"request body too large"}`, http.StatusRequestEntityTooLarge)
					return
				}
				http.Error(w, `{"error":"failed to read body"}`, http.StatusBadRequest)
				return
			}
			// Restore body for the handler.
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			if err := v.Validate(schema, bodyBytes); err != nil {
				http.Error(w, fmt.Sprintf(`{"error":%s}`, strconv.Quote(err.Error())), http.StatusBadRequest)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
