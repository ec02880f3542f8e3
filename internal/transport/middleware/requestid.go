package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/frahmantamala/credit-marketplace/pkg/logger"
)

const TraceHeader = "X-Trace-ID"

// RequestID tags the request-scoped logger with a trace id, reusing the
// caller's X-Trace-ID when present.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		ctx := logger.With(r.Context(), "traceID", traceID)
		w.Header().Set(TraceHeader, traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
