package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pendakian-services/internal/apperror"
	"pendakian-services/internal/middleware"
	"pendakian-services/internal/pricing"
	"pendakian-services/internal/quota"
	"pendakian-services/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

const maxJSONBody = 1 << 20

func zapError(err error) zap.Field {
	return zap.Error(err)
}

func readPathString(r *http.Request, key string) string {
	return strings.TrimSpace(chi.URLParam(r, key))
}

func readPathInt64(r *http.Request, key string) (int64, error) {
	value := readPathString(r, key)
	if value == "" {
		return 0, errMissingParam
	}
	var out int64
	_, err := fmt.Sscan(value, &out)
	return out, err
}

var errMissingParam = errors.New("missing param")

// pathID reads a positive numeric path parameter, writing a 400 when it is invalid.
func pathID(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	id, err := readPathInt64(r, key)
	if err != nil || id <= 0 {
		response.Fail(w, apperror.Validation("ID tidak valid", map[string]any{key: "numeric"}))
		return 0, false
	}
	return id, true
}

// decodeJSON reads a bounded JSON body into dst, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		msg := "Format data tidak valid"
		if errors.Is(err, io.EOF) {
			msg = "Body permintaan kosong"
		}
		response.Fail(w, apperror.Validation(msg, nil))
		return false
	}
	return true
}

func requireAuth(w http.ResponseWriter, r *http.Request) (*middleware.AuthContext, bool) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok || authCtx == nil {
		response.Fail(w, apperror.Unauthorized("Token otorisasi diperlukan"))
		return nil, false
	}
	return authCtx, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(r *http.Request, key string) (*time.Time, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return nil, nil
	}
	t, err := quota.ParseDate(value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (h *Handler) priceDefaults() pricing.Defaults {
	return pricing.Defaults{
		EntryPrice:   h.Config.PricingDefaultEntryPrice,
		ParkingPrice: h.Config.PricingDefaultParkingPrice,
	}
}

func textPtr(v pgtype.Text) *string {
	if v.Valid {
		return &v.String
	}
	return nil
}

func timePtr(v pgtype.Timestamptz) *time.Time {
	if v.Valid {
		return &v.Time
	}
	return nil
}

func trimmedPtr(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}

func zapString(key, value string) zap.Field {
	return zap.String(key, value)
}

func zapInt64(key string, value int64) zap.Field {
	return zap.Int64(key, value)
}

func requireAuthSoft(r *http.Request) (*middleware.AuthContext, bool) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	return authCtx, ok && authCtx != nil
}
