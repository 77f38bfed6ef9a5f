package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCreateUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/admin/users" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("apikey") != "service" || r.Header.Get("Authorization") != "Bearer service" {
			t.Fatalf("expected service role credentials")
		}
		var body CreateUserParams
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("invalid body: %v", err)
		}
		if body.Email != "ketua@example.com" || !body.EmailConfirm {
			t.Fatalf("unexpected body %+v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"9b7c1c1e-0000-4000-8000-000000000001","email":"ketua@example.com"}`))
	}))
	defer srv.Close()

	client := New(Options{BaseURL: srv.URL, AnonKey: "anon", ServiceRoleKey: "service"})
	user, err := client.CreateUser(context.Background(), CreateUserParams{Email: "ketua@example.com", EmailConfirm: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != "9b7c1c1e-0000-4000-8000-000000000001" {
		t.Fatalf("unexpected id %s", user.ID)
	}
}

func TestCreateUserEmailExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":422,"error_code":"email_exists","msg":"A user with this email address has already been registered"}`))
	}))
	defer srv.Close()

	client := New(Options{BaseURL: srv.URL, ServiceRoleKey: "service"})
	_, err := client.CreateUser(context.Background(), CreateUserParams{Email: "ketua@example.com"})
	if !IsEmailExists(err) {
		t.Fatalf("expected email exists error, got %v", err)
	}
}

func TestRPCUsesCallerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/rpc/konfirmasi_pembayaran" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("apikey") != "anon" {
			t.Fatalf("expected anon api key, got %s", r.Header.Get("apikey"))
		}
		if r.Header.Get("Authorization") != "Bearer admin-token" {
			t.Fatalf("expected caller token, got %s", r.Header.Get("Authorization"))
		}
		_, _ = w.Write([]byte(`"sukses: pembayaran dikonfirmasi"`))
	}))
	defer srv.Close()

	client := New(Options{BaseURL: srv.URL, AnonKey: "anon", ServiceRoleKey: "service"})
	var out string
	if err := client.RPC(context.Background(), "konfirmasi_pembayaran", "admin-token", map[string]any{"p_id_reservasi": 10}, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "sukses: pembayaran dikonfirmasi" {
		t.Fatalf("unexpected response %q", out)
	}
}

func TestRPCErrorDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"P0001","message":"Reservasi tidak ditemukan","details":null,"hint":null}`))
	}))
	defer srv.Close()

	client := New(Options{BaseURL: srv.URL, AnonKey: "anon"})
	err := client.RPC(context.Background(), "konfirmasi_pembayaran", "t", nil, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != "P0001" || apiErr.Message != "Reservasi tidak ditemukan" || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}

func TestTimeoutIsDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := New(Options{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	err := client.RPC(context.Background(), "lambat", "t", nil, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestNotConfigured(t *testing.T) {
	client := New(Options{})
	if err := client.RPC(context.Background(), "f", "t", nil, nil); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestIdentityError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		exists bool
	}{
		{
			name:   "email exists",
			err:    errors.New(`response status code 422: {"code":422,"error_code":"email_exists","msg":"A user with this email address has already been registered"}`),
			status: http.StatusUnprocessableEntity,
			exists: true,
		},
		{
			name:   "status without body",
			err:    errors.New("response status code 500"),
			status: http.StatusInternalServerError,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := identityError(tc.err)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.Status != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, apiErr.Status)
			}
			if IsEmailExists(err) != tc.exists {
				t.Fatalf("expected exists=%v for %v", tc.exists, err)
			}
		})
	}

	plain := errors.New("dial tcp: connection refused")
	if got := identityError(plain); got != plain {
		t.Fatalf("expected transport error to pass through, got %v", got)
	}
}
