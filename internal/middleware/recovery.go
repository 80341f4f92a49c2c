package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"yello-auth/internal/model"
)

func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if recovered := recover(); recovered != nil {
					if recovered == http.ErrAbortHandler {
						panic(recovered)
					}
					logger.Error("panic recovered",
						"error", fmt.Sprintf("%v", recovered),
						"method", r.Method,
						"path", r.URL.Path,
						"stack", string(debug.Stack()))
					writeJSON(w, http.StatusInternalServerError, model.APIResponse{
						Success: false,
						Error: &model.APIError{
							Code:    "INTERNAL_ERROR",
							Message: "Unexpected server error",
						},
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
