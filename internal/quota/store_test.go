package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"pendakian-services/internal/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
)

var quotaColumns = []string{"id_kuota", "tanggal_kuota", "kuota_maksimal", "kuota_terpesan"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestReserve(t *testing.T) {
	date := time.Date(2025, 8, 17, 0, 0, 0, 0, time.UTC)

	t.Run("admits and increments in one statement", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`insert into kuota_harian`).
			WithArgs(date, int64(50)).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))
		mock.ExpectQuery(`update kuota_harian\s+set kuota_terpesan = kuota_terpesan \+ \$2\s+where tanggal_kuota = \$1 and kuota_terpesan \+ \$2 <= kuota_maksimal`).
			WithArgs(date, int64(2)).
			WillReturnRows(pgxmock.NewRows(quotaColumns).AddRow(int64(7), date, int64(50), int64(50)))

		a, appErr := Reserve(context.Background(), mock, date, 2, 50)
		if appErr != nil {
			t.Fatalf("unexpected error: %v", appErr)
		}
		if !a.OK || a.Reserved != 50 {
			t.Fatalf("expected admitted with reserved=50, got %+v", a)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})

	t.Run("zero rows refuses with fresh counts", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`insert into kuota_harian`).
			WithArgs(date, int64(50)).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))
		mock.ExpectQuery(`update kuota_harian`).
			WithArgs(date, int64(3)).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectQuery(`select id_kuota, tanggal_kuota, kuota_maksimal, kuota_terpesan\s+from kuota_harian`).
			WithArgs(date).
			WillReturnRows(pgxmock.NewRows(quotaColumns).AddRow(int64(7), date, int64(50), int64(48)))

		a, appErr := Reserve(context.Background(), mock, date, 3, 50)
		if appErr == nil {
			t.Fatalf("expected refusal")
		}
		if appErr.Code != apperror.CodeQuotaExceeded {
			t.Fatalf("expected QUOTA_EXCEEDED, got %s", appErr.Code)
		}
		if appErr.Message != "Kuota tidak mencukupi. Tersedia: 2, Dibutuhkan: 3" {
			t.Fatalf("unexpected message %q", appErr.Message)
		}
		if a.OK {
			t.Fatalf("expected ok=false")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})

	t.Run("store failure is upstream", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`insert into kuota_harian`).
			WithArgs(date, int64(50)).
			WillReturnError(errors.New("connection reset"))

		_, appErr := Reserve(context.Background(), mock, date, 1, 50)
		if appErr == nil || appErr.Code != apperror.CodeUpstream {
			t.Fatalf("expected UPSTREAM_ERROR, got %v", appErr)
		}
	})
}

func TestRelease(t *testing.T) {
	date := time.Date(2025, 8, 17, 0, 0, 0, 0, time.UTC)
	mock := newMock(t)
	mock.ExpectExec(`set kuota_terpesan = greatest\(kuota_terpesan - \$2, 0\)`).
		WithArgs(date, int64(4)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := Release(context.Background(), mock, date, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
