// Package requesttime pins a single "now" per request so audit timestamps,
// closure times and token issuance within one request agree.
package requesttime

import (
	"net/http"
	"time"

	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), now())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
