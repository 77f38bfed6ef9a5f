package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"APP_ENV", "QUOTA_DEFAULT_CAPACITY", "PRICE_TOLERANCE", "SUPABASE_URL", "OBJECT_STORE_ENDPOINT", "SUPABASE_S3_ENDPOINT", "SUPABASE_HTTP_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.QuotaDefaultCapacity != 50 {
		t.Fatalf("expected default capacity 50, got %d", cfg.QuotaDefaultCapacity)
	}
	if cfg.Timezone != "Asia/Jakarta" {
		t.Fatalf("expected Asia/Jakarta, got %s", cfg.Timezone)
	}
	if cfg.SupabaseHTTPTimeout != 10*time.Second {
		t.Fatalf("expected 10s upstream timeout, got %s", cfg.SupabaseHTTPTimeout)
	}
	if cfg.ObjectStoreEndpoint != "" {
		t.Fatalf("expected empty object store endpoint, got %s", cfg.ObjectStoreEndpoint)
	}
}

func TestLoadDerivesStorageEndpoint(t *testing.T) {
	t.Setenv("OBJECT_STORE_ENDPOINT", "")
	t.Setenv("SUPABASE_S3_ENDPOINT", "")
	t.Setenv("OBJECT_STORE_PUBLIC_BASE_URL", "")
	t.Setenv("SUPABASE_URL", "https://abc.supabase.co/")
	t.Setenv("SUPABASE_STORAGE_BUCKET", "dokumen")

	cfg := Load()
	if cfg.ObjectStoreEndpoint != "https://abc.supabase.co/storage/v1/s3" {
		t.Fatalf("unexpected endpoint %s", cfg.ObjectStoreEndpoint)
	}
	if cfg.ObjectStorePublicBaseURL != "https://abc.supabase.co/storage/v1/object/public/dokumen" {
		t.Fatalf("unexpected public base %s", cfg.ObjectStorePublicBaseURL)
	}
}

func TestLoadRejectsInvalidNumbers(t *testing.T) {
	t.Setenv("QUOTA_DEFAULT_CAPACITY", "abc")
	t.Setenv("PRICE_TOLERANCE", "-5")

	cfg := Load()
	if cfg.QuotaDefaultCapacity != 50 {
		t.Fatalf("expected fallback 50, got %d", cfg.QuotaDefaultCapacity)
	}
	if cfg.PriceTolerance != 0 {
		t.Fatalf("expected tolerance clamp to 0, got %d", cfg.PriceTolerance)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "missing database", cfg: Config{Env: "development"}, wantErr: true},
		{name: "development ok", cfg: Config{Env: "development", DatabaseURL: "postgres://x"}, wantErr: false},
		{name: "production missing supabase", cfg: Config{Env: "production", DatabaseURL: "postgres://x"}, wantErr: true},
		{name: "production ok", cfg: Config{
			Env:                    "production",
			DatabaseURL:            "postgres://x",
			SupabaseURL:            "https://abc.supabase.co",
			SupabaseJWTSecret:      "secret",
			SupabaseServiceRoleKey: "service",
			ReservationTokenSecret: "token-secret",
		}, wantErr: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("expected error=%v, got %v", tc.wantErr, err)
			}
		})
	}
}
