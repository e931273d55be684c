package middleware

import (
	"net/http"

	"github.com/frahmantamala/expense-approval/pkg/logger"
	"github.com/go-chi/chi/middleware"
	"github.com/google/uuid"
)

const TraceHeader = "X-Trace-ID"

// TraceID propagates X-Trace-ID (generating one when absent) and puts it,
// with chi's request id, on the request-scoped logger.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		ctx := logger.With(r.Context(),
			"trace_id", traceID,
			"request_id", middleware.GetReqID(r.Context()))

		w.Header().Set(TraceHeader, traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
