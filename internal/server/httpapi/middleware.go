package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/workdeck/workdeck/internal/server/auth"
)

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// authMiddleware verifies the Bearer token and binds the matching user to
// the request context as the current identity.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing token")
			return
		}

		userID, err := auth.GetUserIDFromToken(token, []byte(s.cfg.SecretKey))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		svc := s.directoryFor(r.Context(), s.db)
		user, err := svc.GetByID(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unknown user")
			return
		}

		ctx := context.WithValue(r.Context(), currentUserKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
