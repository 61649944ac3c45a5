package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/zintarh/wrap-registry/internal/platform/jwttoken"
	"github.com/zintarh/wrap-registry/pkg/requestcontext"
)

// RequireBearer guards mutating routes. The token identifies the calling
// operator; record-level authorization is enforced separately by the service
// through signed mint proofs.
func RequireBearer(tokens *jwttoken.Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				unauthorized(w)
				return
			}
			subject, err := tokens.Validate(raw)
			if err != nil {
				logger.WarnContext(r.Context(), "rejected bearer token",
					"request_id", requestcontext.RequestID(r.Context()),
					"error", err,
				)
				unauthorized(w)
				return
			}
			ctx := requestcontext.WithCaller(r.Context(), subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
