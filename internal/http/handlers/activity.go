package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pendakian-services/internal/apperror"
	"pendakian-services/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
)

type activityEntry struct {
	ID         int64           `json:"id_log"`
	Type       string          `json:"jenis"`
	Code       *string         `json:"kode_reservasi"`
	Payload    json.RawMessage `json:"payload"`
	RecordedAt time.Time       `json:"dicatat_pada"`
}

// AdminActivityFeed pages through the activity log written by the event consumer.
// ?jenis= filters by event type prefix, ?kode= by reservation code.
func (h *Handler) AdminActivityFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := queryInt(r, "page_size", 50)
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	where := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if kind := strings.TrimSpace(q.Get("jenis")); kind != "" {
		args = append(args, kind+"%")
		where = append(where, fmt.Sprintf("jenis like $%d", len(args)))
	}
	if code := strings.ToUpper(strings.TrimSpace(q.Get("kode"))); code != "" {
		args = append(args, code)
		where = append(where, fmt.Sprintf("kode_reservasi = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = "where " + strings.Join(where, " and ")
	}
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := h.DB.Query(r.Context(), fmt.Sprintf(`
		select id_log, jenis, kode_reservasi, payload, dicatat_pada
		from log_aktivitas
		%s
		order by dicatat_pada desc, id_log desc
		limit $%d offset $%d
	`, clause, len(args)-1, len(args)), args...)
	if err != nil {
		response.Fail(w, apperror.Upstream("Gagal mengambil log aktivitas", err))
		return
	}
	defer rows.Close()

	items := make([]activityEntry, 0, pageSize)
	for rows.Next() {
		var (
			e    activityEntry
			code pgtype.Text
		)
		if err := rows.Scan(&e.ID, &e.Type, &code, &e.Payload, &e.RecordedAt); err != nil {
			response.Fail(w, apperror.Upstream("Gagal mengambil log aktivitas", err))
			return
		}
		e.Code = textPtr(code)
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		response.Fail(w, apperror.Upstream("Gagal mengambil log aktivitas", err))
		return
	}
	response.Success(w, map[string]any{
		"items":     items,
		"page":      page,
		"page_size": pageSize,
	})
}
