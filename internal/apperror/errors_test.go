package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestFrom(t *testing.T) {
	quota := BusinessRule(CodeQuotaExceeded, "Kuota tidak mencukupi", nil)

	cases := []struct {
		name      string
		err       error
		status    int
		code      Code
		retryable bool
	}{
		{name: "typed", err: quota, status: http.StatusBadRequest, code: CodeQuotaExceeded},
		{name: "wrapped typed", err: fmt.Errorf("create: %w", quota), status: http.StatusBadRequest, code: CodeQuotaExceeded},
		{name: "deadline", err: fmt.Errorf("query: %w", context.DeadlineExceeded), status: http.StatusGatewayTimeout, code: CodeUpstreamTimeout, retryable: true},
		{name: "plain", err: errors.New("boom"), status: http.StatusInternalServerError, code: CodeInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := From(tc.err)
			if got.StatusCode != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, got.StatusCode)
			}
			if got.Code != tc.code {
				t.Fatalf("expected %s, got %s", tc.code, got.Code)
			}
			if got.Retryable != tc.retryable {
				t.Fatalf("expected retryable=%v, got %v", tc.retryable, got.Retryable)
			}
		})
	}
}

func TestUpstreamKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Upstream("Gagal menghubungi layanan identitas", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be preserved")
	}
	if err.Kind != KindUpstream || err.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unexpected kind %s status %d", err.Kind, err.StatusCode)
	}
}
