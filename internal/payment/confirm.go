package payment

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"pendakian-services/internal/apperror"
	"pendakian-services/internal/supabase"
)

const confirmFunction = "konfirmasi_pembayaran"

const (
	StatusSuccess = "sukses"
	StatusFailed  = "gagal"
)

// RPCCaller invokes a PostgREST function as the holder of bearerToken.
type RPCCaller interface {
	RPC(ctx context.Context, function string, bearerToken string, args any, out any) error
}

type Result struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (r Result) OK() bool { return r.Status == StatusSuccess }

// Confirm relays one call to the payment procedure as the acting admin. The
// procedure flips the reservation to confirmed and books the income entry
// atomically; the admin is derived from the bearer token on the database side.
func Confirm(ctx context.Context, rpc RPCCaller, reservationID int64, bearerToken string) (Result, error) {
	if reservationID <= 0 {
		return Result{}, apperror.Validation("id_reservasi wajib diisi", map[string]any{"id_reservasi": "required"})
	}
	if strings.TrimSpace(bearerToken) == "" {
		return Result{}, apperror.Unauthorized("Token admin tidak ditemukan")
	}

	var raw json.RawMessage
	err := rpc.RPC(ctx, confirmFunction, bearerToken, map[string]any{"p_id_reservasi": reservationID}, &raw)
	if err != nil {
		var apiErr *supabase.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.Status {
			case 401:
				return Result{}, apperror.Unauthorized(apiErr.Message)
			case 403:
				return Result{}, apperror.Forbidden(apiErr.Message)
			}
			return Result{}, apperror.Upstream(apiErr.Message, err)
		}
		return Result{}, apperror.Upstream("Gagal menghubungi layanan pembayaran", err)
	}
	return Interpret(raw), nil
}

// Interpret reads the procedure's text result. Text starting with "sukses"
// is success; anything else is a failure carrying the text as its message.
func Interpret(raw json.RawMessage) Result {
	text := strings.TrimSpace(string(raw))
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		text = strings.TrimSpace(s)
	}
	if text == "" || text == "null" {
		return Result{Status: StatusFailed, Message: "Prosedur konfirmasi tidak mengembalikan hasil"}
	}
	if strings.HasPrefix(strings.ToLower(text), StatusSuccess) {
		return Result{Status: StatusSuccess, Message: text}
	}
	return Result{Status: StatusFailed, Message: text}
}
