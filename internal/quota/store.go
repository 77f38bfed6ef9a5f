package quota

import (
	"context"
	"time"

	"pendakian-services/internal/apperror"
	"pendakian-services/internal/db"

	"go.uber.org/zap"
)

func Get(ctx context.Context, q db.Querier, date time.Time) (*DailyQuota, error) {
	var row DailyQuota
	err := q.QueryRow(ctx, `
		select id_kuota, tanggal_kuota, kuota_maksimal, kuota_terpesan
		from kuota_harian
		where tanggal_kuota = $1
	`, date).Scan(&row.ID, &row.Date, &row.MaxCapacity, &row.Reserved)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func ListRange(ctx context.Context, q db.Querier, from, to time.Time) ([]DailyQuota, error) {
	rows, err := q.Query(ctx, `
		select id_kuota, tanggal_kuota, kuota_maksimal, kuota_terpesan
		from kuota_harian
		where tanggal_kuota between $1 and $2
		order by tanggal_kuota asc
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]DailyQuota, 0)
	for rows.Next() {
		var row DailyQuota
		if err := rows.Scan(&row.ID, &row.Date, &row.MaxCapacity, &row.Reserved); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Check is the read-only admission check. It performs no writes.
func Check(ctx context.Context, q db.Querier, logger *zap.Logger, date time.Time, requested int64, defaultCapacity int64) (Availability, *apperror.Error) {
	row, err := Get(ctx, q, date)
	if err != nil {
		return Availability{}, apperror.Upstream("Gagal memeriksa kuota", err)
	}
	a := Evaluate(date.Format(DateLayout), row, requested, defaultCapacity)
	if a.FallbackUsed && logger != nil {
		logger.Warn("daily quota missing; using default capacity",
			zap.String("date", a.Date),
			zap.Int64("defaultCapacity", defaultCapacity),
		)
	}
	return a, nil
}

// Reserve admits n climbers on date inside tx. The capacity check and the
// increment are a single conditional update, so concurrent bookings cannot
// jointly exceed kuota_maksimal.
func Reserve(ctx context.Context, tx db.Querier, date time.Time, n int64, defaultCapacity int64) (Availability, *apperror.Error) {
	if _, err := tx.Exec(ctx, `
		insert into kuota_harian (tanggal_kuota, kuota_maksimal, kuota_terpesan)
		values ($1, $2, 0)
		on conflict (tanggal_kuota) do nothing
	`, date, defaultCapacity); err != nil {
		return Availability{}, apperror.Upstream("Gagal menyiapkan kuota", err)
	}

	var row DailyQuota
	err := tx.QueryRow(ctx, `
		update kuota_harian
		set kuota_terpesan = kuota_terpesan + $2
		where tanggal_kuota = $1 and kuota_terpesan + $2 <= kuota_maksimal
		returning id_kuota, tanggal_kuota, kuota_maksimal, kuota_terpesan
	`, date, n).Scan(&row.ID, &row.Date, &row.MaxCapacity, &row.Reserved)
	if err == nil {
		a := Evaluate(date.Format(DateLayout), &row, n, defaultCapacity)
		a.OK = true
		return a, nil
	}
	if !db.IsNoRows(err) {
		return Availability{}, apperror.Upstream("Gagal memperbarui kuota", err)
	}

	current, err := Get(ctx, tx, date)
	if err != nil {
		return Availability{}, apperror.Upstream("Gagal memeriksa kuota", err)
	}
	a := Evaluate(date.Format(DateLayout), current, n, defaultCapacity)
	a.OK = false
	return a, a.Err()
}

// Release returns n climbers of capacity on date. The counter never drops below zero.
func Release(ctx context.Context, tx db.Querier, date time.Time, n int64) error {
	_, err := tx.Exec(ctx, `
		update kuota_harian
		set kuota_terpesan = greatest(kuota_terpesan - $2, 0)
		where tanggal_kuota = $1
	`, date, n)
	return err
}

// Upsert sets the maximum capacity for date, creating the row when missing.
func Upsert(ctx context.Context, tx db.Querier, date time.Time, maxCapacity int64) (DailyQuota, *apperror.Error) {
	current, err := getForUpdate(ctx, tx, date)
	if err != nil {
		return DailyQuota{}, apperror.Upstream("Gagal memeriksa kuota", err)
	}
	if appErr := ValidateCapacity(maxCapacity, current); appErr != nil {
		return DailyQuota{}, appErr
	}

	var row DailyQuota
	err = tx.QueryRow(ctx, `
		insert into kuota_harian (tanggal_kuota, kuota_maksimal, kuota_terpesan)
		values ($1, $2, 0)
		on conflict (tanggal_kuota) do update set kuota_maksimal = excluded.kuota_maksimal
		returning id_kuota, tanggal_kuota, kuota_maksimal, kuota_terpesan
	`, date, maxCapacity).Scan(&row.ID, &row.Date, &row.MaxCapacity, &row.Reserved)
	if err != nil {
		return DailyQuota{}, apperror.Upstream("Gagal menyimpan kuota", err)
	}
	return row, nil
}

func getForUpdate(ctx context.Context, tx db.Querier, date time.Time) (*DailyQuota, error) {
	var row DailyQuota
	err := tx.QueryRow(ctx, `
		select id_kuota, tanggal_kuota, kuota_maksimal, kuota_terpesan
		from kuota_harian
		where tanggal_kuota = $1
		for update
	`, date).Scan(&row.ID, &row.Date, &row.MaxCapacity, &row.Reserved)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}
