package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/frahmantamala/expense-approval/pkg/logger"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
)

const (
	masked = "[FILTERED]"
	// maxLoggedBody caps how much of a response body is kept for the log line.
	maxLoggedBody = 4 << 10
)

// sensitiveFields are matched as substrings of header and JSON field names.
var sensitiveFields = []string{
	"password", "token", "authorization", "secret",
	"api_key", "session", "credential", "cookie",
}

func isSensitive(name string) bool {
	name = strings.ToLower(name)
	for _, f := range sensitiveFields {
		if strings.Contains(name, f) {
			return true
		}
	}
	return false
}

// LoggingMiddleware logs every request at debug and every response at a level
// derived from its status. Credentials never reach the log.
func LoggingMiddleware(base *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lg := base
			if scoped, ok := logger.Scoped(r.Context()); ok {
				lg = scoped
			}
			lg = lg.With("request_id", middleware.GetReqID(r.Context()), "method", r.Method, "path", r.URL.Path)

			lg.Debug("incoming request",
				"query", r.URL.RawQuery,
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
				"headers", maskHeaders(r.Header),
				"body", requestBody(r),
			)

			rec := &recorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			lg.Log(r.Context(), levelFor(status), "response",
				"route", routePattern(r),
				"status_code", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"response_size", rec.size,
				"body", rec.loggedBody(),
			)
		})
	}
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// routePattern is the matched chi pattern, e.g. /expenses/{id}/approvals.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

// requestBody reads and restores r.Body, returning its loggable form.
func requestBody(r *http.Request) string {
	if r.Body == nil {
		return ""
	}
	raw, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if !isJSON(r.Header.Get("Content-Type")) {
		return fmt.Sprintf("[%d bytes]", len(raw))
	}
	return filterSensitiveBody(raw)
}

// recorder keeps the status and the head of the body written through it.
type recorder struct {
	http.ResponseWriter
	status int
	size   int
	head   bytes.Buffer
}

func (rec *recorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *recorder) Write(b []byte) (int, error) {
	if room := maxLoggedBody - rec.head.Len(); room > 0 {
		rec.head.Write(b[:min(room, len(b))])
	}
	rec.size += len(b)
	return rec.ResponseWriter.Write(b)
}

func (rec *recorder) loggedBody() string {
	if !isJSON(rec.Header().Get("Content-Type")) {
		return fmt.Sprintf("[%d bytes]", rec.size)
	}
	return filterSensitiveBody(rec.head.Bytes())
}

func isJSON(contentType string) bool {
	return contentType == "" || strings.HasPrefix(contentType, "application/json")
}

func maskHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		if isSensitive(name) {
			out[name] = masked
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

// filterSensitiveBody masks sensitive JSON fields at any depth. A body that is
// not JSON is dropped entirely if it mentions a sensitive field.
func filterSensitiveBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		if isSensitive(string(body)) {
			return "[FILTERED - Contains sensitive data]"
		}
		return string(body)
	}
	out, err := json.Marshal(maskJSON(doc))
	if err != nil {
		return "[unloggable body]"
	}
	return string(out)
}

func maskJSON(v any) any {
	switch node := v.(type) {
	case map[string]any:
		for key, child := range node {
			if isSensitive(key) {
				node[key] = masked
			} else {
				node[key] = maskJSON(child)
			}
		}
		return node
	case []any:
		for i, child := range node {
			node[i] = maskJSON(child)
		}
		return node
	}
	return v
}
