package middleware

import (
	"net/http"

	"github.com/jason-s-yu/arena/internal/auth"
	"github.com/sirupsen/logrus"
)

// RequirePlayer rejects requests without a valid session token and stores
// the caller's identity on the request context.
func RequirePlayer(logger *logrus.Logger) func(next http.Handler) http.Handler {
	return gate(logger, false)
}

// RequireAdmin is RequirePlayer restricted to tokens carrying the admin claim.
func RequireAdmin(logger *logrus.Logger) func(next http.Handler) http.Handler {
	return gate(logger, true)
}

func gate(logger *logrus.Logger, admin bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := auth.FromRequest(r)
			if err != nil {
				logger.WithError(err).WithField("path", r.URL.Path).Debug("rejecting unauthenticated request")
				http.Error(w, "unauthenticated", http.StatusUnauthorized)
				return
			}
			if admin && !id.Admin {
				http.Error(w, "admin only", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}
