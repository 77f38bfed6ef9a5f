package reservation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"pendakian-services/internal/apperror"
	"pendakian-services/internal/supabase"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
)

var (
	quotaColumns  = []string{"id_kuota", "tanggal_kuota", "kuota_maksimal", "kuota_terpesan"}
	lockedColumns = []string{"id_reservasi", "kode_reservasi", "tanggal_pendakian", "jumlah_pendaki", "status", "url_bukti_pembayaran"}
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func newMockService(mock pgxmock.PgxPoolIface) *Service {
	svc := NewService(mock, nil, nil, nil, Settings{Timezone: testTimezone, DefaultCapacity: 50})
	svc.now = func() time.Time { return time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC) }
	return svc
}

// codeArg records every reservation code passed to the insert.
type codeArg struct{ seen *[]string }

func (c codeArg) Match(v any) bool {
	s, ok := v.(string)
	if ok && (len(*c.seen) == 0 || (*c.seen)[len(*c.seen)-1] != s) {
		*c.seen = append(*c.seen, s)
	}
	return ok && strings.HasPrefix(s, codePrefix+"-")
}

func expectReserve(mock pgxmock.PgxPoolIface, date time.Time, n int64) {
	mock.ExpectExec(`insert into kuota_harian`).
		WithArgs(date, int64(50)).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(`update kuota_harian`).
		WithArgs(date, n).
		WillReturnRows(pgxmock.NewRows(quotaColumns).AddRow(int64(1), date, int64(50), n))
}

func TestInsertRollsBackOnMemberFailure(t *testing.T) {
	mock := newMockPool(t)
	svc := newMockService(mock)
	req := validRequest()
	date := time.Date(2025, 8, 17, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	expectReserve(mock, date, 2)
	mock.ExpectQuery(`insert into reservasi`).
		WillReturnRows(pgxmock.NewRows([]string{"id_reservasi"}).AddRow(int64(11)))
	mock.ExpectExec(`insert into pendaki_rombongan`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`insert into pendaki_rombongan`).
		WillReturnError(errors.New("value too long for type character varying(32)"))
	mock.ExpectRollback()

	_, err := svc.insert(context.Background(), "PDK-20250801-ABC123", "d4f1c7a0-0000-4000-8000-000000000001", date, 115000, &req)
	if err == nil {
		t.Fatalf("expected error")
	}
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperror.Error, got %T", err)
	}
	if !strings.Contains(appErr.Message, "anggota rombongan ke-2") {
		t.Fatalf("expected message naming member 2, got %q", appErr.Message)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsertStopsWhenQuotaIsFull(t *testing.T) {
	mock := newMockPool(t)
	svc := newMockService(mock)
	req := validRequest()
	date := time.Date(2025, 8, 17, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`insert into kuota_harian`).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(`update kuota_harian`).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`select id_kuota`).
		WithArgs(date).
		WillReturnRows(pgxmock.NewRows(quotaColumns).AddRow(int64(1), date, int64(50), int64(49)))
	mock.ExpectRollback()

	_, err := svc.insert(context.Background(), "PDK-20250801-ABC123", "d4f1c7a0-0000-4000-8000-000000000001", date, 115000, &req)
	var appErr *apperror.Error
	if !errors.As(err, &appErr) || appErr.Code != apperror.CodeQuotaExceeded {
		t.Fatalf("expected QUOTA_EXCEEDED, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsertWithFreshCodeRetriesCollision(t *testing.T) {
	mock := newMockPool(t)
	svc := newMockService(mock)
	req := validRequest()
	date := time.Date(2025, 8, 17, 0, 0, 0, 0, time.UTC)
	var codes []string
	insertArgs := func() []any {
		args := []any{codeArg{seen: &codes}}
		for i := 0; i < 9; i++ {
			args = append(args, pgxmock.AnyArg())
		}
		return args
	}

	mock.ExpectBegin()
	expectReserve(mock, date, 2)
	mock.ExpectQuery(`insert into reservasi`).
		WithArgs(insertArgs()...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "reservasi_kode_reservasi_key"})
	mock.ExpectRollback()

	mock.ExpectBegin()
	expectReserve(mock, date, 2)
	mock.ExpectQuery(`insert into reservasi`).
		WithArgs(insertArgs()...).
		WillReturnRows(pgxmock.NewRows([]string{"id_reservasi"}).AddRow(int64(42)))
	mock.ExpectExec(`insert into pendaki_rombongan`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`insert into pendaki_rombongan`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`insert into barang_bawaan_sampah`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	code, id, err := svc.insertWithFreshCode(context.Background(), "d4f1c7a0-0000-4000-8000-000000000001", date, 115000, &req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 42 {
		t.Fatalf("expected id 42, got %d", id)
	}
	if len(codes) != 2 || codes[0] == codes[1] {
		t.Fatalf("expected two distinct codes, got %v", codes)
	}
	if code != codes[1] {
		t.Fatalf("expected the second code %s, got %s", codes[1], code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReleaseOnLeavingCapacity(t *testing.T) {
	date := time.Date(2025, 8, 17, 0, 0, 0, 0, time.UTC)
	proof := "https://cdn.example.com/bukti.jpg"

	expectRelease := func(mock pgxmock.PgxPoolIface, n int64) {
		mock.ExpectExec(`greatest\(kuota_terpesan - \$2, 0\)`).
			WithArgs(date, n).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	}

	t.Run("leader cancel", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`from reservasi\s+where kode_reservasi = \$1\s+for update`).
			WithArgs("PDK-20250801-ABC123").
			WillReturnRows(pgxmock.NewRows(lockedColumns).
				AddRow(int64(5), "PDK-20250801-ABC123", date, 3, string(StatusAwaitingPayment), proof))
		mock.ExpectExec(`update reservasi set status`).
			WithArgs(int64(5), string(StatusCancelled)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		expectRelease(mock, 3)
		mock.ExpectCommit()

		if err := CancelByCode(context.Background(), mock, "PDK-20250801-ABC123"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})

	t.Run("admin completes without release", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`where id_reservasi = \$1\s+for update`).
			WithArgs(int64(5)).
			WillReturnRows(pgxmock.NewRows(lockedColumns).
				AddRow(int64(5), "PDK-20250801-ABC123", date, 3, string(StatusConfirmed), proof))
		mock.ExpectExec(`update reservasi set status`).
			WithArgs(int64(5), string(StatusCompleted)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		from, err := UpdateStatus(context.Background(), mock, 5, StatusCompleted)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if from != StatusConfirmed {
			t.Fatalf("expected previous status %s, got %s", StatusConfirmed, from)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})

	t.Run("expiry job", func(t *testing.T) {
		mock := newMockPool(t)
		cutoff := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
		mock.ExpectBegin()
		mock.ExpectQuery(`for update skip locked`).
			WithArgs(string(StatusAwaitingPayment), cutoff).
			WillReturnRows(pgxmock.NewRows([]string{"id_reservasi", "kode_reservasi", "tanggal_pendakian", "jumlah_pendaki", "status"}).
				AddRow(int64(8), "PDK-20250731-QWE789", date, 4, string(StatusAwaitingPayment)))
		mock.ExpectExec(`update reservasi set status`).
			WithArgs(int64(8), string(StatusCancelled)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		expectRelease(mock, 4)
		mock.ExpectCommit()

		codes, err := ExpireUnpaid(context.Background(), mock, cutoff)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(codes) != 1 || codes[0] != "PDK-20250731-QWE789" {
			t.Fatalf("unexpected codes %v", codes)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})

	t.Run("admin delete", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`where id_reservasi = \$1\s+for update`).
			WithArgs(int64(9)).
			WillReturnRows(pgxmock.NewRows(lockedColumns).
				AddRow(int64(9), "PDK-20250801-ZXC456", date, 2, string(StatusConfirmed), proof))
		expectRelease(mock, 2)
		mock.ExpectExec(`delete from reservasi`).
			WithArgs(int64(9)).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectCommit()

		code, err := Delete(context.Background(), mock, 9)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if code != "PDK-20250801-ZXC456" {
			t.Fatalf("unexpected code %s", code)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})
}

type existingIdentity struct{ calls int }

func (e *existingIdentity) CreateUser(context.Context, supabase.CreateUserParams) (supabase.User, error) {
	e.calls++
	return supabase.User{}, &supabase.APIError{Status: 422, Code: "email_exists", Message: "A user with this email address has already been registered"}
}

func TestResolveLeaderAdoptsExistingIdentity(t *testing.T) {
	mock := newMockPool(t)
	identity := &existingIdentity{}
	svc := NewService(mock, nil, identity, nil, Settings{Timezone: testTimezone})
	leader := LeaderInput{FullName: "Budi Santoso", Email: "budi@example.com", Phone: "081234567890", Address: "Boyolali"}

	mock.ExpectQuery(`from profiles where lower\(email\) = \$1`).
		WithArgs("budi@example.com").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`from auth.users where lower\(email\) = \$1`).
		WithArgs("budi@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("d4f1c7a0-0000-4000-8000-000000000009"))
	mock.ExpectExec(`insert into profiles`).
		WithArgs("d4f1c7a0-0000-4000-8000-000000000009", "Budi Santoso", "budi@example.com", "081234567890", "Boyolali", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := svc.resolveLeader(context.Background(), leader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "d4f1c7a0-0000-4000-8000-000000000009" {
		t.Fatalf("unexpected id %s", id)
	}
	if identity.calls != 1 {
		t.Fatalf("expected one provisioning attempt, got %d", identity.calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
