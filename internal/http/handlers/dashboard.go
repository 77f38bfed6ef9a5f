package handlers

import (
	"net/http"
	"time"

	"pendakian-services/internal/apperror"
	"pendakian-services/internal/quota"
	"pendakian-services/internal/reservation"
	"pendakian-services/internal/utils"
	"pendakian-services/pkg/response"

	"github.com/jackc/pgx/v5"
)

const dashboardSummaryPrefix = "summary"

type dashboardSummary struct {
	Date             string                    `json:"tanggal"`
	TodayQuota       quota.Availability        `json:"kuota_hari_ini"`
	ClimbersToday    int64                     `json:"pendaki_hari_ini"`
	ByStatus         map[string]int64          `json:"per_status"`
	AwaitingProof    int64                     `json:"menunggu_verifikasi"`
	WasteUnchecked   int64                     `json:"sampah_belum_dicek"`
	WasteMismatch    int64                     `json:"sampah_tidak_sesuai"`
	IncomeThisMonth  int64                     `json:"pemasukan_bulan_ini"`
	ExpenseThisMonth int64                     `json:"pengeluaran_bulan_ini"`
	Upcoming         []quota.Availability      `json:"kuota_7_hari"`
	Latest           []reservation.Reservation `json:"reservasi_terbaru"`
}

// AdminDashboard summarises today's operations. Results are cached briefly
// and dropped whenever a reservation changes through this service.
func (h *Handler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	today := utils.StartOfDay(time.Now(), h.Config.Timezone)
	key := dashboardCacheKey(dashboardSummaryPrefix, today.Format(quota.DateLayout))
	if cached, ok := getDashboardCache(key); ok {
		response.Success(w, cached)
		return
	}

	summary, err := h.loadDashboard(r, today)
	if err != nil {
		h.Logger.Error("dashboard load failed", zapError(err))
		response.Fail(w, apperror.Upstream("Gagal memuat ringkasan", err))
		return
	}
	setDashboardCache(key, summary, dashboardCacheTTL)
	response.Success(w, summary)
}

func (h *Handler) loadDashboard(r *http.Request, today time.Time) (dashboardSummary, error) {
	ctx := r.Context()
	date := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())

	summary := dashboardSummary{
		Date:     date.Format(quota.DateLayout),
		ByStatus: map[string]int64{},
	}

	batch := &pgx.Batch{}
	batch.Queue(`
		select status, count(*) from reservasi group by status
	`).Query(func(rows pgx.Rows) error {
		for rows.Next() {
			var (
				status string
				n      int64
			)
			if err := rows.Scan(&status, &n); err != nil {
				return err
			}
			summary.ByStatus[status] = n
		}
		return rows.Err()
	})
	batch.Queue(`
		select coalesce(sum(jumlah_pendaki), 0) from reservasi
		where tanggal_pendakian = $1 and status in ($2, $3)
	`, date, string(reservation.StatusConfirmed), string(reservation.StatusCompleted)).QueryRow(func(row pgx.Row) error {
		return row.Scan(&summary.ClimbersToday)
	})
	batch.Queue(`
		select count(*) from reservasi where status = $1 and url_bukti_pembayaran is not null
	`, string(reservation.StatusAwaitingPayment)).QueryRow(func(row pgx.Row) error {
		return row.Scan(&summary.AwaitingProof)
	})
	batch.Queue(`
		select
			count(*) filter (where status_sampah = $2),
			count(*) filter (where status_sampah = $3)
		from reservasi
		where tanggal_pendakian <= $1 and status in ($4, $5)
	`, date, string(reservation.WasteUnchecked), string(reservation.WasteMismatched),
		string(reservation.StatusConfirmed), string(reservation.StatusCompleted),
	).QueryRow(func(row pgx.Row) error {
		return row.Scan(&summary.WasteUnchecked, &summary.WasteMismatch)
	})
	batch.Queue(`
		select
			coalesce((select sum(jumlah) from pemasukan where tanggal_pemasukan >= $1), 0),
			coalesce((select sum(jumlah) from pengeluaran where tanggal_pengeluaran >= $1), 0)
	`, monthStart).QueryRow(func(row pgx.Row) error {
		return row.Scan(&summary.IncomeThisMonth, &summary.ExpenseThisMonth)
	})
	if err := h.DB.SendBatch(ctx, batch).Close(); err != nil {
		return dashboardSummary{}, err
	}

	rows, err := quota.ListRange(ctx, h.DB, date, date.AddDate(0, 0, 6))
	if err != nil {
		return dashboardSummary{}, err
	}
	summary.Upcoming = quota.Calendar(date, date.AddDate(0, 0, 6), rows, h.Config.QuotaDefaultCapacity)
	if len(summary.Upcoming) > 0 {
		summary.TodayQuota = summary.Upcoming[0]
	}

	latest, err := reservation.List(ctx, h.DB, reservation.ListFilter{Page: 1, PageSize: 5})
	if err != nil {
		return dashboardSummary{}, err
	}
	summary.Latest = latest.Items
	return summary, nil
}
