package handlers

import (
	"net/http"
	"strings"
	"time"

	"pendakian-services/internal/apperror"
	"pendakian-services/internal/db"
	"pendakian-services/internal/quota"
	"pendakian-services/internal/utils"
	"pendakian-services/internal/validation"
	"pendakian-services/pkg/response"

	"github.com/jackc/pgx/v5"
)

// PublicQuota answers either a single-date availability check (?tanggal=, optional
// ?jumlah=) or a calendar range (?dari=&sampai=) with defaults filled in.
func (h *Handler) PublicQuota(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if strings.TrimSpace(r.URL.Query().Get("tanggal")) != "" {
		date, err := queryDate(r, "tanggal")
		if err != nil {
			response.Fail(w, apperror.Validation("Format tanggal harus YYYY-MM-DD", map[string]any{"tanggal": "datetime=2006-01-02"}))
			return
		}
		requested := queryInt(r, "jumlah", 0)
		if requested < 0 {
			requested = 0
		}
		a, appErr := quota.Check(ctx, h.DB, h.Logger, *date, int64(requested), h.Config.QuotaDefaultCapacity)
		if appErr != nil {
			response.Fail(w, appErr)
			return
		}
		response.Success(w, a)
		return
	}

	from, to, appErr := h.quotaRange(r)
	if appErr != nil {
		response.Fail(w, appErr)
		return
	}
	rows, err := quota.ListRange(ctx, h.DB, from, to)
	if err != nil {
		response.Fail(w, apperror.Upstream("Gagal mengambil data kuota", err))
		return
	}
	response.Success(w, quota.Calendar(from, to, rows, h.Config.QuotaDefaultCapacity))
}

func (h *Handler) quotaRange(r *http.Request) (time.Time, time.Time, *apperror.Error) {
	from, err := queryDate(r, "dari")
	if err != nil {
		return time.Time{}, time.Time{}, apperror.Validation("Format tanggal harus YYYY-MM-DD", map[string]any{"dari": "datetime=2006-01-02"})
	}
	to, err := queryDate(r, "sampai")
	if err != nil {
		return time.Time{}, time.Time{}, apperror.Validation("Format tanggal harus YYYY-MM-DD", map[string]any{"sampai": "datetime=2006-01-02"})
	}
	if from == nil {
		today := utils.StartOfDay(time.Now(), h.Config.Timezone)
		start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
		from = &start
	}
	if to == nil {
		end := from.AddDate(0, 0, 30)
		to = &end
	}
	if appErr := quota.ValidateRange(*from, *to); appErr != nil {
		return time.Time{}, time.Time{}, appErr
	}
	return *from, *to, nil
}

func (h *Handler) AdminQuotaList(w http.ResponseWriter, r *http.Request) {
	from, to, appErr := h.quotaRange(r)
	if appErr != nil {
		response.Fail(w, appErr)
		return
	}
	rows, err := quota.ListRange(r.Context(), h.DB, from, to)
	if err != nil {
		response.Fail(w, apperror.Upstream("Gagal mengambil data kuota", err))
		return
	}
	response.Success(w, map[string]any{
		"items":         rows,
		"kuota_default": h.Config.QuotaDefaultCapacity,
		"dari":          from.Format(quota.DateLayout),
		"sampai":        to.Format(quota.DateLayout),
	})
}

type quotaUpsertRequest struct {
	Date        string `json:"tanggal" validate:"required,datetime=2006-01-02"`
	MaxCapacity *int64 `json:"kuota_maksimal" validate:"required,min=0,max=100000"`
}

func (h *Handler) AdminQuotaUpsert(w http.ResponseWriter, r *http.Request) {
	var body quotaUpsertRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	body.Date = strings.TrimSpace(body.Date)
	if err := validation.Struct(body, "Data kuota tidak valid"); err != nil {
		response.Fail(w, err)
		return
	}
	date, _ := quota.ParseDate(body.Date)

	var saved quota.DailyQuota
	err := db.WithTx(r.Context(), h.DB, func(tx pgx.Tx) error {
		row, appErr := quota.Upsert(r.Context(), tx, date, *body.MaxCapacity)
		if appErr != nil {
			return appErr
		}
		saved = row
		return nil
	})
	if err != nil {
		response.Fail(w, err)
		return
	}
	if authCtx, ok := requireAuthSoft(r); ok {
		h.Logger.Info("daily quota updated",
			zapString("date", body.Date),
			zapInt64("max", saved.MaxCapacity),
			zapString("adminId", authCtx.UserID),
		)
	}
	response.SuccessMessage(w, http.StatusOK, "Kuota berhasil disimpan", saved)
}
