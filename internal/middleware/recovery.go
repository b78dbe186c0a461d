package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"docforest/internal/httputil"
)

// Recovery turns a handler panic into a 500 response so one bad request
// cannot take the whole server down. The stack is logged, never sent to
// the client.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					logger.Error("handler panicked",
						"panic", v,
						"method", r.Method,
						"path", r.URL.Path,
						"remote", r.RemoteAddr,
						"stack", string(debug.Stack()),
					)
					httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
