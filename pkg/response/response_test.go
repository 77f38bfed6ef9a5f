package response

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"pendakian-services/internal/apperror"
)

func TestFail(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		status    int
		code      string
		retryable bool
	}{
		{
			name:   "business rule",
			err:    apperror.BusinessRule(apperror.CodeQuotaExceeded, "Kuota tidak mencukupi. Tersedia: 2, Dibutuhkan: 3", map[string]any{"available": 2}),
			status: http.StatusBadRequest,
			code:   "QUOTA_EXCEEDED",
		},
		{
			name:   "upstream failure",
			err:    apperror.Upstream("Gagal mengambil data harga", errors.New("connection refused")),
			status: http.StatusInternalServerError,
			code:   "UPSTREAM_ERROR",
		},
		{
			name:      "timeout",
			err:       fmt.Errorf("load: %w", context.DeadlineExceeded),
			status:    http.StatusGatewayTimeout,
			code:      "UPSTREAM_TIMEOUT",
			retryable: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Fail(rec, tc.err)

			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if body["success"] != false {
				t.Fatalf("expected success=false, got %v", body["success"])
			}
			if body["error"] != tc.code {
				t.Fatalf("expected %s, got %v", tc.code, body["error"])
			}
			_, hasRetry := body["retryable"]
			if hasRetry != tc.retryable {
				t.Fatalf("expected retryable=%v, got %v", tc.retryable, hasRetry)
			}
		})
	}
}

func TestSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, map[string]any{"kode_reservasi": "PDK-20250101-ABC123"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected application/json, got %s", ct)
	}
}
