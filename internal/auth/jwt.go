package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the application role stored in profiles.peran.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleRanger  Role = "petugas"
	RoleClimber Role = "pendaki"
)

// Claims mirrors the access token issued by Supabase Auth.
type Claims struct {
	Email        string         `json:"email"`
	Phone        string         `json:"phone"`
	Role         string         `json:"role"`
	SessionID    string         `json:"session_id"`
	AppMetadata  map[string]any `json:"app_metadata"`
	UserMetadata map[string]any `json:"user_metadata"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() string {
	return c.Subject
}

func ParseBearerToken(authHeader string) string {
	value := strings.TrimSpace(authHeader)
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func VerifyAccessToken(tokenString string, secret string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("token required")
	}
	if secret == "" {
		return nil, errors.New("jwt secret not configured")
	}

	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	_, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims.ExpiresAt == nil || claims.ExpiresAt.Time.Before(time.Now()) {
		return nil, errors.New("token expired")
	}
	if claims.Subject == "" {
		return nil, errors.New("token subject missing")
	}
	if claims.Role != "authenticated" && claims.Role != "service_role" {
		return nil, errors.New("token role not allowed")
	}
	return claims, nil
}
