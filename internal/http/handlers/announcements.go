package handlers

import (
	"net/http"
	"strings"
	"time"

	"pendakian-services/internal/apperror"
	"pendakian-services/internal/db"
	"pendakian-services/internal/validation"
	"pendakian-services/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type announcement struct {
	ID          int64      `json:"id_pengumuman"`
	AdminID     *string    `json:"id_admin"`
	Title       string     `json:"judul"`
	Content     string     `json:"konten"`
	PosterURL   *string    `json:"url_poster"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	IsPublished bool       `json:"telah_terbit"`
	CreatedAt   time.Time  `json:"dibuat_pada"`
}

type announcementPayload struct {
	Title       string     `json:"judul" validate:"required,max=200"`
	Content     string     `json:"konten" validate:"required"`
	PosterURL   *string    `json:"url_poster" validate:"omitempty,url"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	IsPublished bool       `json:"telah_terbit"`
}

func (p *announcementPayload) validate() *apperror.Error {
	p.Title = strings.TrimSpace(p.Title)
	p.Content = strings.TrimSpace(p.Content)
	p.PosterURL = trimmedPtr(p.PosterURL)
	if verr := validation.Struct(p, "Data pengumuman tidak valid"); verr != nil {
		return verr
	}
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		return apperror.Validation("Tanggal akhir harus setelah tanggal mulai", map[string]any{"end_date": "gtefield=start_date"})
	}
	return nil
}

const announcementColumns = `id_pengumuman, id_admin::text, judul, konten, url_poster, start_date, end_date, telah_terbit, dibuat_pada`

func scanAnnouncements(rows pgx.Rows) ([]announcement, error) {
	defer rows.Close()
	items := make([]announcement, 0)
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func scanAnnouncement(row pgx.Row) (announcement, error) {
	var (
		a       announcement
		adminID pgtype.Text
		poster  pgtype.Text
		start   pgtype.Timestamptz
		end     pgtype.Timestamptz
	)
	if err := row.Scan(&a.ID, &adminID, &a.Title, &a.Content, &poster, &start, &end, &a.IsPublished, &a.CreatedAt); err != nil {
		return announcement{}, err
	}
	a.AdminID = textPtr(adminID)
	a.PosterURL = textPtr(poster)
	a.StartDate = timePtr(start)
	a.EndDate = timePtr(end)
	return a, nil
}

// PublicAnnouncements lists published announcements whose display window covers now.
func (h *Handler) PublicAnnouncements(w http.ResponseWriter, r *http.Request) {
	rows, err := h.DB.Query(r.Context(), `
		select `+announcementColumns+`
		from pengumuman
		where telah_terbit = true
		  and (start_date is null or start_date <= now())
		  and (end_date is null or end_date >= now())
		order by dibuat_pada desc
		limit 50
	`)
	if err != nil {
		response.Fail(w, apperror.Upstream("Gagal mengambil pengumuman", err))
		return
	}
	items, err := scanAnnouncements(rows)
	if err != nil {
		response.Fail(w, apperror.Upstream("Gagal mengambil pengumuman", err))
		return
	}
	response.Success(w, items)
}

func (h *Handler) AdminAnnouncementsList(w http.ResponseWriter, r *http.Request) {
	rows, err := h.DB.Query(r.Context(), `select `+announcementColumns+` from pengumuman order by dibuat_pada desc`)
	if err != nil {
		response.Fail(w, apperror.Upstream("Gagal mengambil pengumuman", err))
		return
	}
	items, err := scanAnnouncements(rows)
	if err != nil {
		response.Fail(w, apperror.Upstream("Gagal mengambil pengumuman", err))
		return
	}
	response.Success(w, items)
}

func (h *Handler) AdminAnnouncementCreate(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}
	var p announcementPayload
	if !decodeJSON(w, r, &p) {
		return
	}
	if verr := p.validate(); verr != nil {
		response.Fail(w, verr)
		return
	}
	a, err := scanAnnouncement(h.DB.QueryRow(r.Context(), `
		insert into pengumuman (id_admin, judul, konten, url_poster, start_date, end_date, telah_terbit, dibuat_pada)
		values ($1, $2, $3, $4, $5, $6, $7, now())
		returning `+announcementColumns,
		authCtx.UserID, p.Title, p.Content, p.PosterURL, p.StartDate, p.EndDate, p.IsPublished,
	))
	if err != nil {
		h.Logger.Error("announcement create failed", zapError(err))
		response.Fail(w, apperror.Upstream("Gagal membuat pengumuman", err))
		return
	}
	response.SuccessMessage(w, http.StatusCreated, "Pengumuman dibuat", a)
}

func (h *Handler) AdminAnnouncementUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var p announcementPayload
	if !decodeJSON(w, r, &p) {
		return
	}
	if verr := p.validate(); verr != nil {
		response.Fail(w, verr)
		return
	}
	a, err := scanAnnouncement(h.DB.QueryRow(r.Context(), `
		update pengumuman set judul = $2, konten = $3, url_poster = $4, start_date = $5, end_date = $6, telah_terbit = $7
		where id_pengumuman = $1
		returning `+announcementColumns,
		id, p.Title, p.Content, p.PosterURL, p.StartDate, p.EndDate, p.IsPublished,
	))
	if err != nil {
		if db.IsNoRows(err) {
			response.Fail(w, apperror.NotFound("Pengumuman tidak ditemukan"))
			return
		}
		response.Fail(w, apperror.Upstream("Gagal memperbarui pengumuman", err))
		return
	}
	response.SuccessMessage(w, http.StatusOK, "Pengumuman diperbarui", a)
}

// AdminAnnouncementDelete removes the row, then its poster objects on a best-effort basis.
func (h *Handler) AdminAnnouncementDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()
	var poster pgtype.Text
	err := h.DB.QueryRow(ctx, `delete from pengumuman where id_pengumuman = $1 returning url_poster`, id).Scan(&poster)
	if err != nil {
		if db.IsNoRows(err) {
			response.Fail(w, apperror.NotFound("Pengumuman tidak ditemukan"))
			return
		}
		response.Fail(w, apperror.Upstream("Gagal menghapus pengumuman", err))
		return
	}
	if poster.Valid && poster.String != "" {
		if store, err := h.makeStore(ctx); err == nil {
			if err := store.DeleteURL(ctx, poster.String); err != nil {
				h.Logger.Warn("poster cleanup failed", zapInt64("id", id), zapError(err))
			}
		}
	}
	response.SuccessMessage(w, http.StatusOK, "Pengumuman dihapus", nil)
}
