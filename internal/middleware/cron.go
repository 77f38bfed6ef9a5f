package middleware

import (
	"net/http"
	"strings"

	"pendakian-services/internal/auth"
)

func CronAuth(cronSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			secret := strings.TrimSpace(cronSecret)
			if secret == "" {
				writeAuthError(w, http.StatusForbidden, "Akses cron dinonaktifkan")
				return
			}

			token := auth.ParseBearerToken(r.Header.Get("Authorization"))
			if token == "" || token != secret {
				writeAuthError(w, http.StatusUnauthorized, "Token cron tidak valid")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
