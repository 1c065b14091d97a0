package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// HeaderRequestID carries the correlation id in both directions.
const HeaderRequestID = "X-Request-ID"

const maxClientRequestID = 128

type requestIDKey struct{}

// RequestID tags every request with a correlation id. A caller-supplied
// X-Request-ID of 1-128 printable ASCII bytes is kept; anything else is
// replaced with a fresh UUID. The id is echoed back and stored on the
// request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if !acceptableID(id) {
			id = generateRequestID()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}

// WithRequestID returns a copy of ctx carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// GetRequestID returns the id stored by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func generateRequestID() string {
	return uuid.NewString()
}

func acceptableID(id string) bool {
	if id == "" || len(id) > maxClientRequestID {
		return false
	}
	for _, b := range []byte(id) {
		if b < '!' || b > '~' {
			return false
		}
	}
	return true
}
