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

	"github.com/jackc/pgx/v5/pgtype"
)

const (
	entryIncome  = "pemasukan"
	entryExpense = "pengeluaran"
)

type ledgerEntry struct {
	Kind          string    `json:"jenis"`
	ID            int64     `json:"id"`
	Amount        int64     `json:"jumlah"`
	Description   *string   `json:"keterangan"`
	Date          time.Time `json:"tanggal"`
	ReservationID *int64    `json:"id_reservasi,omitempty"`
	CategoryName  *string   `json:"nama_kategori,omitempty"`
}

type ledgerSummary struct {
	From         string        `json:"dari"`
	To           string        `json:"sampai"`
	TotalIncome  int64         `json:"total_pemasukan"`
	TotalExpense int64         `json:"total_pengeluaran"`
	Balance      int64         `json:"saldo"`
	Entries      []ledgerEntry `json:"transaksi"`
}

// AdminFinanceLedger merges income and expenses for a date range, newest first.
// The range defaults to the current month.
func (h *Handler) AdminFinanceLedger(w http.ResponseWriter, r *http.Request) {
	from, err := queryDate(r, "dari")
	if err != nil {
		response.Fail(w, apperror.Validation("Format tanggal harus YYYY-MM-DD", map[string]any{"dari": "date"}))
		return
	}
	to, err := queryDate(r, "sampai")
	if err != nil {
		response.Fail(w, apperror.Validation("Format tanggal harus YYYY-MM-DD", map[string]any{"sampai": "date"}))
		return
	}
	today := utils.StartOfDay(time.Now(), h.Config.Timezone)
	if from == nil {
		start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		from = &start
	}
	if to == nil {
		end := from.AddDate(0, 1, -1)
		to = &end
	}
	if to.Before(*from) {
		response.Fail(w, apperror.Validation("Tanggal akhir harus setelah tanggal mulai", map[string]any{"sampai": "gtefield=dari"}))
		return
	}
	// Exclusive upper bound so the whole last day is included.
	until := to.AddDate(0, 0, 1)

	rows, err := h.DB.Query(r.Context(), `
		select 'pemasukan', p.id_pemasukan, p.jumlah, p.keterangan, p.tanggal_pemasukan, p.id_reservasi, null::text
		from pemasukan p
		where p.tanggal_pemasukan >= $1 and p.tanggal_pemasukan < $2
		union all
		select 'pengeluaran', e.id_pengeluaran, e.jumlah, e.keterangan, e.tanggal_pengeluaran, null::bigint, k.nama_kategori
		from pengeluaran e
		left join kategori_pengeluaran k on k.id_kategori = e.id_kategori
		where e.tanggal_pengeluaran >= $1 and e.tanggal_pengeluaran < $2
		order by 5 desc
	`, *from, until)
	if err != nil {
		response.Fail(w, apperror.Upstream("Gagal mengambil laporan keuangan", err))
		return
	}
	defer rows.Close()

	summary := ledgerSummary{
		From:    from.Format(quota.DateLayout),
		To:      to.Format(quota.DateLayout),
		Entries: make([]ledgerEntry, 0),
	}
	for rows.Next() {
		var (
			e           ledgerEntry
			description pgtype.Text
			reservation pgtype.Int8
			category    pgtype.Text
		)
		if err := rows.Scan(&e.Kind, &e.ID, &e.Amount, &description, &e.Date, &reservation, &category); err != nil {
			response.Fail(w, apperror.Upstream("Gagal mengambil laporan keuangan", err))
			return
		}
		e.Description = textPtr(description)
		e.CategoryName = textPtr(category)
		if reservation.Valid {
			e.ReservationID = &reservation.Int64
		}
		switch e.Kind {
		case entryIncome:
			summary.TotalIncome += e.Amount
		case entryExpense:
			summary.TotalExpense += e.Amount
		}
		summary.Entries = append(summary.Entries, e)
	}
	if err := rows.Err(); err != nil {
		response.Fail(w, apperror.Upstream("Gagal mengambil laporan keuangan", err))
		return
	}
	summary.Balance = summary.TotalIncome - summary.TotalExpense
	response.Success(w, summary)
}

type expensePayload struct {
	CategoryID  int64   `json:"id_kategori" validate:"required,gt=0"`
	Amount      int64   `json:"jumlah" validate:"required,gt=0"`
	Description *string `json:"keterangan" validate:"omitempty,max=500"`
	Date        string  `json:"tanggal_pengeluaran" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) AdminExpenseCreate(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}
	var p expensePayload
	if !decodeJSON(w, r, &p) {
		return
	}
	p.Description = trimmedPtr(p.Description)
	p.Date = strings.TrimSpace(p.Date)
	if verr := validation.Struct(&p, "Data pengeluaran tidak valid"); verr != nil {
		response.Fail(w, verr)
		return
	}
	spentAt := time.Now()
	if p.Date != "" {
		d, _ := quota.ParseDate(p.Date)
		spentAt = d
	}

	var id int64
	err := h.DB.QueryRow(r.Context(), `
		insert into pengeluaran (id_admin, id_kategori, jumlah, keterangan, tanggal_pengeluaran)
		values ($1, $2, $3, $4, $5)
		returning id_pengeluaran
	`, authCtx.UserID, p.CategoryID, p.Amount, p.Description, spentAt).Scan(&id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			response.Fail(w, apperror.Validation("Kategori pengeluaran tidak ditemukan", map[string]any{"id_kategori": "exists"}))
			return
		}
		h.Logger.Error("expense create failed", zapError(err))
		response.Fail(w, apperror.Upstream("Gagal menyimpan pengeluaran", err))
		return
	}
	invalidateDashboardCache()
	response.SuccessMessage(w, http.StatusCreated, "Pengeluaran dicatat", map[string]any{"id_pengeluaran": id})
}

func (h *Handler) AdminExpenseDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	tag, err := h.DB.Exec(r.Context(), `delete from pengeluaran where id_pengeluaran = $1`, id)
	if err != nil {
		response.Fail(w, apperror.Upstream("Gagal menghapus pengeluaran", err))
		return
	}
	if tag.RowsAffected() == 0 {
		response.Fail(w, apperror.NotFound("Pengeluaran tidak ditemukan"))
		return
	}
	invalidateDashboardCache()
	response.SuccessMessage(w, http.StatusOK, "Pengeluaran dihapus", nil)
}

type expenseCategory struct {
	ID   int64  `json:"id_kategori"`
	Name string `json:"nama_kategori"`
}

func (h *Handler) AdminExpenseCategories(w http.ResponseWriter, r *http.Request) {
	rows, err := h.DB.Query(r.Context(), `select id_kategori, nama_kategori from kategori_pengeluaran order by nama_kategori asc`)
	if err != nil {
		response.Fail(w, apperror.Upstream("Gagal mengambil kategori", err))
		return
	}
	defer rows.Close()
	items := make([]expenseCategory, 0)
	for rows.Next() {
		var c expenseCategory
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			response.Fail(w, apperror.Upstream("Gagal mengambil kategori", err))
			return
		}
		items = append(items, c)
	}
	response.Success(w, items)
}

type categoryPayload struct {
	Name string `json:"nama_kategori" validate:"required,max=100"`
}

func (h *Handler) AdminExpenseCategoryCreate(w http.ResponseWriter, r *http.Request) {
	var p categoryPayload
	if !decodeJSON(w, r, &p) {
		return
	}
	p.Name = strings.TrimSpace(p.Name)
	if verr := validation.Struct(&p, "Nama kategori wajib diisi"); verr != nil {
		response.Fail(w, verr)
		return
	}
	var c expenseCategory
	err := h.DB.QueryRow(r.Context(), `
		insert into kategori_pengeluaran (nama_kategori) values ($1)
		returning id_kategori, nama_kategori
	`, p.Name).Scan(&c.ID, &c.Name)
	if err != nil {
		if db.IsUniqueViolation(err) {
			response.Fail(w, apperror.Conflict("Kategori sudah ada", map[string]any{"nama_kategori": "unique"}))
			return
		}
		response.Fail(w, apperror.Upstream("Gagal menyimpan kategori", err))
		return
	}
	response.SuccessMessage(w, http.StatusCreated, "Kategori dibuat", c)
}
