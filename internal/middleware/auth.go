package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"pendakian-services/internal/auth"

	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const authContextKey contextKey = "authContext"

type AuthContext struct {
	UserID string
	Email  string
	Name   string
	Role   auth.Role
	// AccessToken is relayed to stored procedures that derive the acting user from it.
	AccessToken string
}

func WithAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

func GetAuthContext(ctx context.Context) (*AuthContext, bool) {
	value := ctx.Value(authContextKey)
	if value == nil {
		return nil, false
	}
	ac, ok := value.(*AuthContext)
	return ac, ok
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	writeAuthErrorDebug(w, status, message, "")
}

func writeAuthErrorDebug(w http.ResponseWriter, status int, message string, debug string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	code := "UNAUTHORIZED"
	if status == http.StatusForbidden {
		code = "FORBIDDEN"
	}
	payload := map[string]any{
		"success": false,
		"error":   code,
		"message": message,
	}

	if os.Getenv("APP_ENV") == "development" && strings.TrimSpace(debug) != "" {
		payload["debug"] = debug
	}

	_ = json.NewEncoder(w).Encode(payload)
}

// ProfileLookup resolves the application role for a Supabase user id.
type ProfileLookup func(ctx context.Context, userID string) (role string, name string, err error)

func DBProfileLookup(db *pgxpool.Pool) ProfileLookup {
	return func(ctx context.Context, userID string) (string, string, error) {
		var role, name string
		err := db.QueryRow(ctx, `
			select coalesce(peran, ''), coalesce(nama_lengkap, '')
			from profiles
			where id = $1
		`, userID).Scan(&role, &name)
		return role, name, err
	}
}

// AdminAuth admits Supabase users whose profile role grants access to the requested admin route.
func AdminAuth(lookup ProfileLookup, jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.ParseBearerToken(r.Header.Get("Authorization"))
			claims, err := auth.VerifyAccessToken(token, jwtSecret)
			if err != nil {
				writeAuthErrorDebug(w, http.StatusUnauthorized, "Token otorisasi diperlukan", err.Error())
				return
			}

			role, name, err := lookup(r.Context(), claims.UserID())
			if err != nil {
				writeAuthErrorDebug(w, http.StatusUnauthorized, "Profil pengguna tidak ditemukan", err.Error())
				return
			}

			userRole := auth.Role(strings.ToLower(strings.TrimSpace(role)))
			if userRole != auth.RoleAdmin && userRole != auth.RoleRanger {
				writeAuthError(w, http.StatusForbidden, "Akses admin diperlukan")
				return
			}
			if !auth.Allowed(userRole, r.URL.Path, r.Method) {
				writeAuthError(w, http.StatusForbidden, "Anda tidak memiliki izin untuk mengakses sumber daya ini")
				return
			}

			authCtx := &AuthContext{
				UserID:      claims.UserID(),
				Email:       claims.Email,
				Name:        name,
				Role:        userRole,
				AccessToken: token,
			}
			next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), authCtx)))
		})
	}
}
