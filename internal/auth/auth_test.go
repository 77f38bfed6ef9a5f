package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret string, method jwt.SigningMethod, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(method, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	return signed
}

func validClaims() Claims {
	return Claims{
		Email: "admin@example.com",
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "4f7d2a8e-1111-4222-8333-444455556666",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestVerifyAccessToken(t *testing.T) {
	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	anon := validClaims()
	anon.Role = "anon"
	noSubject := validClaims()
	noSubject.Subject = ""

	cases := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{name: "valid", token: signToken(t, "secret", jwt.SigningMethodHS256, validClaims())},
		{name: "wrong secret", token: signToken(t, "other", jwt.SigningMethodHS256, validClaims()), wantErr: true},
		{name: "wrong algorithm", token: signToken(t, "secret", jwt.SigningMethodHS512, validClaims()), wantErr: true},
		{name: "expired", token: signToken(t, "secret", jwt.SigningMethodHS256, expired), wantErr: true},
		{name: "anon role", token: signToken(t, "secret", jwt.SigningMethodHS256, anon), wantErr: true},
		{name: "missing subject", token: signToken(t, "secret", jwt.SigningMethodHS256, noSubject), wantErr: true},
		{name: "empty", token: "", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			claims, err := VerifyAccessToken(tc.token, "secret")
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if claims.UserID() != "4f7d2a8e-1111-4222-8333-444455556666" {
				t.Fatalf("unexpected subject %s", claims.UserID())
			}
		})
	}
}

func TestParseBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":  "abc",
		"bearer  abc": "abc",
		"Basic abc":   "",
		"abc":         "",
		"":            "",
	}
	for header, want := range cases {
		if got := ParseBearerToken(header); got != want {
			t.Fatalf("expected %q for %q, got %q", want, header, got)
		}
	}
}

func TestAllowed(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		method string
		path   string
		want   bool
	}{
		{name: "admin finance", role: RoleAdmin, method: "POST", path: "/api/admin/finance/expenses", want: true},
		{name: "ranger waste check", role: RoleRanger, method: "PATCH", path: "/api/admin/reservations/12/sampah", want: true},
		{name: "ranger reads reservations", role: RoleRanger, method: "GET", path: "/api/admin/reservations", want: true},
		{name: "ranger cannot delete reservation", role: RoleRanger, method: "DELETE", path: "/api/admin/reservations/12", want: false},
		{name: "ranger cannot change status", role: RoleRanger, method: "PATCH", path: "/api/admin/reservations/12/status", want: false},
		{name: "ranger cannot confirm payment", role: RoleRanger, method: "POST", path: "/api/admin/payments/confirm", want: false},
		{name: "ranger cannot see finance", role: RoleRanger, method: "GET", path: "/api/admin/finance/ledger", want: false},
		{name: "climber denied", role: RoleClimber, method: "GET", path: "/api/admin/reservations", want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Allowed(tc.role, tc.path, tc.method); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
