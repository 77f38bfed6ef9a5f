package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"pendakian-services/internal/apperror"
	"pendakian-services/internal/supabase"
)

type fakeRPC struct {
	response string
	err      error
	calls    int
	function string
	token    string
	args     any
}

func (f *fakeRPC) RPC(_ context.Context, function string, bearerToken string, args any, out any) error {
	f.calls++
	f.function = function
	f.token = bearerToken
	f.args = args
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.response), out)
}

func TestConfirm(t *testing.T) {
	cases := []struct {
		name       string
		response   string
		err        error
		wantStatus string
		wantCode   apperror.Code
	}{
		{name: "success", response: `"sukses: pembayaran dikonfirmasi"`, wantStatus: StatusSuccess},
		{name: "success upper case", response: `"SUKSES"`, wantStatus: StatusSuccess},
		{name: "procedure refused", response: `"gagal: reservasi sudah terkonfirmasi"`, wantStatus: StatusFailed},
		{name: "unexpected text", response: `"reservasi tidak ditemukan"`, wantStatus: StatusFailed},
		{name: "forbidden", err: &supabase.APIError{Status: 403, Message: "permission denied"}, wantCode: apperror.CodeForbidden},
		{name: "postgrest error", err: &supabase.APIError{Status: 400, Code: "P0001", Message: "boom"}, wantCode: apperror.CodeUpstream},
		{name: "timeout", err: fmt.Errorf("%w: slow", context.DeadlineExceeded), wantCode: apperror.CodeUpstreamTimeout},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rpc := &fakeRPC{response: tc.response, err: tc.err}
			res, err := Confirm(context.Background(), rpc, 42, "admin-token")
			if rpc.calls != 1 {
				t.Fatalf("expected exactly one rpc call, got %d", rpc.calls)
			}
			if rpc.function != "konfirmasi_pembayaran" || rpc.token != "admin-token" {
				t.Fatalf("unexpected rpc call %s with token %s", rpc.function, rpc.token)
			}
			args, _ := rpc.args.(map[string]any)
			if args["p_id_reservasi"] != int64(42) {
				t.Fatalf("unexpected args %v", rpc.args)
			}
			if tc.wantCode != "" {
				var appErr *apperror.Error
				if !errors.As(err, &appErr) || appErr.Code != tc.wantCode {
					t.Fatalf("expected %s, got %v", tc.wantCode, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if res.Status != tc.wantStatus {
				t.Fatalf("expected %s, got %s (%s)", tc.wantStatus, res.Status, res.Message)
			}
		})
	}
}

func TestConfirmRejectsBeforeCalling(t *testing.T) {
	rpc := &fakeRPC{response: `"sukses"`}
	if _, err := Confirm(context.Background(), rpc, 0, "token"); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := Confirm(context.Background(), rpc, 1, " "); err == nil {
		t.Fatalf("expected auth error")
	}
	if rpc.calls != 0 {
		t.Fatalf("expected no rpc call, got %d", rpc.calls)
	}
}

func TestInterpretPlainText(t *testing.T) {
	if res := Interpret(json.RawMessage(`sukses`)); !res.OK() {
		t.Fatalf("expected bare text success")
	}
	if res := Interpret(json.RawMessage(`null`)); res.OK() {
		t.Fatalf("expected null to fail")
	}
}
