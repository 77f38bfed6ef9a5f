package reservation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pendakian-services/internal/apperror"
	"pendakian-services/internal/db"
	"pendakian-services/internal/quota"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const reservationSelect = `
	select r.id_reservasi, r.kode_reservasi, r.id_pengguna::text, r.tanggal_pendakian,
		r.jumlah_pendaki, coalesce(r.jumlah_tiket_parkir, 0), r.total_harga::bigint,
		coalesce(r.jumlah_potensi_sampah, 0), r.status, r.status_sampah, r.url_bukti_pembayaran,
		r.dipesan_pada, p.id::text, p.nama_lengkap, p.email, p.nomor_telepon, p.alamat
	from reservasi r
	left join profiles p on p.id = r.id_pengguna
`

func scanReservation(row pgx.Row) (Reservation, error) {
	var (
		r           Reservation
		status      string
		wasteStatus string
		proof       pgtype.Text
		leaderID    pgtype.Text
		leaderName  pgtype.Text
		leaderEmail pgtype.Text
		leaderPhone pgtype.Text
		leaderAddr  pgtype.Text
	)
	err := row.Scan(
		&r.ID, &r.Code, &r.UserID, &r.ClimbDate,
		&r.ClimberCount, &r.ParkingCount, &r.TotalPrice,
		&r.PotentialWaste, &status, &wasteStatus, &proof,
		&r.BookedAt, &leaderID, &leaderName, &leaderEmail, &leaderPhone, &leaderAddr,
	)
	if err != nil {
		return Reservation{}, err
	}
	r.Status = Status(status)
	r.WasteStatus = WasteStatus(wasteStatus)
	if proof.Valid {
		r.PaymentProof = &proof.String
	}
	if leaderID.Valid {
		leader := &Leader{ID: leaderID.String, FullName: leaderName.String, Email: leaderEmail.String}
		if leaderPhone.Valid {
			leader.Phone = &leaderPhone.String
		}
		if leaderAddr.Valid {
			leader.Address = &leaderAddr.String
		}
		r.Leader = leader
	}
	return r, nil
}

func GetByCode(ctx context.Context, q db.Querier, code string) (*Reservation, error) {
	r, err := scanReservation(q.QueryRow(ctx, reservationSelect+` where r.kode_reservasi = $1`, code))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

func GetByID(ctx context.Context, q db.Querier, id int64) (*Reservation, error) {
	r, err := scanReservation(q.QueryRow(ctx, reservationSelect+` where r.id_reservasi = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// GetDetail loads a reservation with its party members and waste items.
func GetDetail(ctx context.Context, q db.Querier, id int64) (*Detail, error) {
	r, err := GetByID(ctx, q, id)
	if err != nil || r == nil {
		return nil, err
	}
	members, err := ListMembers(ctx, q, id)
	if err != nil {
		return nil, err
	}
	waste, err := ListWasteItems(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return &Detail{Reservation: *r, Members: members, WasteItems: waste}, nil
}

func ListMembers(ctx context.Context, q db.Querier, reservationID int64) ([]Member, error) {
	rows, err := q.Query(ctx, `
		select id_pendaki, id_reservasi, nama_lengkap, nik, coalesce(alamat, ''),
			coalesce(nomor_telepon, ''), coalesce(kontak_darurat, ''), url_surat_sehat
		from pendaki_rombongan
		where id_reservasi = $1
		order by id_pendaki asc
	`, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Member, 0)
	for rows.Next() {
		var (
			m    Member
			cert pgtype.Text
		)
		if err := rows.Scan(&m.ID, &m.ReservationID, &m.FullName, &m.NIK, &m.Address, &m.Phone, &m.EmergencyContact, &cert); err != nil {
			return nil, err
		}
		if cert.Valid {
			m.HealthCertificate = &cert.String
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func ListWasteItems(ctx context.Context, q db.Querier, reservationID int64) ([]WasteItem, error) {
	rows, err := q.Query(ctx, `
		select id_barang, id_reservasi, nama_barang, jenis_sampah
		from barang_bawaan_sampah
		where id_reservasi = $1
		order by id_barang asc
	`, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]WasteItem, 0)
	for rows.Next() {
		var w WasteItem
		if err := rows.Scan(&w.ID, &w.ReservationID, &w.Name, &w.Kind); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func List(ctx context.Context, q db.Querier, filter ListFilter) (ListResult, error) {
	filter.normalize()

	where := make([]string, 0, 4)
	args := make([]any, 0, 6)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("r.status = $%d", len(args)))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		where = append(where, fmt.Sprintf("r.tanggal_pendakian >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		where = append(where, fmt.Sprintf("r.tanggal_pendakian <= $%d", len(args)))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		where = append(where, fmt.Sprintf("(r.kode_reservasi ilike $%d or p.nama_lengkap ilike $%d or p.email ilike $%d)", len(args), len(args), len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " where " + strings.Join(where, " and ")
	}

	result := ListResult{Items: make([]Reservation, 0), Page: filter.Page, PageSize: filter.PageSize}
	if err := q.QueryRow(ctx, `
		select count(*) from reservasi r left join profiles p on p.id = r.id_pengguna`+clause, args...,
	).Scan(&result.Total); err != nil {
		return result, err
	}

	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)
	query := reservationSelect + clause + fmt.Sprintf(" order by r.dipesan_pada desc limit $%d offset $%d", len(args)-1, len(args))
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return result, err
	}
	defer rows.Close()
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return result, err
		}
		result.Items = append(result.Items, r)
	}
	return result, rows.Err()
}

type lockedReservation struct {
	ID           int64
	Code         string
	ClimbDate    time.Time
	ClimberCount int
	Status       Status
	PaymentProof *string
}

func lock(ctx context.Context, tx pgx.Tx, where string, arg any) (*lockedReservation, error) {
	var (
		r      lockedReservation
		status string
		proof  pgtype.Text
	)
	err := tx.QueryRow(ctx, `
		select id_reservasi, kode_reservasi, tanggal_pendakian, jumlah_pendaki, status, url_bukti_pembayaran
		from reservasi
		where `+where+`
		for update
	`, arg).Scan(&r.ID, &r.Code, &r.ClimbDate, &r.ClimberCount, &status, &proof)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	r.Status = Status(status)
	if proof.Valid {
		r.PaymentProof = &proof.String
	}
	return &r, nil
}

// setStatus moves a locked reservation to status and frees its climbers from
// the daily quota when it stops holding capacity.
func setStatus(ctx context.Context, tx pgx.Tx, r *lockedReservation, to Status) error {
	if _, err := tx.Exec(ctx, `update reservasi set status = $2 where id_reservasi = $1`, r.ID, string(to)); err != nil {
		return err
	}
	if r.Status.HoldsCapacity() && !to.HoldsCapacity() {
		return quota.Release(ctx, tx, r.ClimbDate, int64(r.ClimberCount))
	}
	return nil
}

func errNotFound() *apperror.Error {
	return apperror.NotFound("Reservasi tidak ditemukan")
}

// UpdateStatus applies an admin status change through the transition table.
func UpdateStatus(ctx context.Context, pool db.TxStarter, id int64, to Status) (Status, error) {
	var from Status
	err := db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		r, err := lock(ctx, tx, "id_reservasi = $1", id)
		if err != nil {
			return apperror.Upstream("Gagal mengambil reservasi", err)
		}
		if r == nil {
			return errNotFound()
		}
		from = r.Status
		if !CanTransition(r.Status, to) {
			return transitionError(r.Status, to)
		}
		if err := setStatus(ctx, tx, r, to); err != nil {
			return apperror.Upstream("Gagal memperbarui status reservasi", err)
		}
		return nil
	})
	return from, err
}

// CancelByCode cancels an unpaid reservation on behalf of its leader.
func CancelByCode(ctx context.Context, pool db.TxStarter, code string) error {
	return db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		r, err := lock(ctx, tx, "kode_reservasi = $1", code)
		if err != nil {
			return apperror.Upstream("Gagal mengambil reservasi", err)
		}
		if r == nil {
			return errNotFound()
		}
		if r.Status != StatusAwaitingPayment {
			return apperror.BusinessRule(apperror.CodeInvalidTransition,
				"Reservasi hanya dapat dibatalkan selama menunggu pembayaran",
				map[string]any{"status": string(r.Status)},
			)
		}
		if err := setStatus(ctx, tx, r, StatusCancelled); err != nil {
			return apperror.Upstream("Gagal membatalkan reservasi", err)
		}
		return nil
	})
}

// Delete removes a reservation; members and waste items go with it through the FK cascade.
func Delete(ctx context.Context, pool db.TxStarter, id int64) (string, error) {
	var code string
	err := db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		r, err := lock(ctx, tx, "id_reservasi = $1", id)
		if err != nil {
			return apperror.Upstream("Gagal mengambil reservasi", err)
		}
		if r == nil {
			return errNotFound()
		}
		code = r.Code
		if r.Status.HoldsCapacity() {
			if err := quota.Release(ctx, tx, r.ClimbDate, int64(r.ClimberCount)); err != nil {
				return apperror.Upstream("Gagal mengembalikan kuota", err)
			}
		}
		if _, err := tx.Exec(ctx, `delete from reservasi where id_reservasi = $1`, id); err != nil {
			return apperror.Upstream("Gagal menghapus reservasi", err)
		}
		return nil
	})
	return code, err
}

func UpdateWasteStatus(ctx context.Context, q db.Querier, id int64, status WasteStatus) (bool, error) {
	tag, err := q.Exec(ctx, `update reservasi set status_sampah = $2 where id_reservasi = $1`, id, string(status))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// AttachPaymentProof stores the transfer receipt URL while the reservation awaits payment.
func AttachPaymentProof(ctx context.Context, q db.Querier, code string, url string) (bool, error) {
	tag, err := q.Exec(ctx, `
		update reservasi set url_bukti_pembayaran = $2
		where kode_reservasi = $1 and status = $3
	`, code, url, string(StatusAwaitingPayment))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ExpireUnpaid cancels reservations booked before cutoff that are still unpaid
// and have no payment proof, returning their codes.
func ExpireUnpaid(ctx context.Context, pool db.TxStarter, cutoff time.Time) ([]string, error) {
	codes := make([]string, 0)
	err := db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			select id_reservasi, kode_reservasi, tanggal_pendakian, jumlah_pendaki, status
			from reservasi
			where status = $1 and dipesan_pada < $2 and url_bukti_pembayaran is null
			for update skip locked
		`, string(StatusAwaitingPayment), cutoff)
		if err != nil {
			return err
		}
		expired := make([]lockedReservation, 0)
		for rows.Next() {
			var (
				r      lockedReservation
				status string
			)
			if err := rows.Scan(&r.ID, &r.Code, &r.ClimbDate, &r.ClimberCount, &status); err != nil {
				rows.Close()
				return err
			}
			r.Status = Status(status)
			expired = append(expired, r)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for i := range expired {
			if err := setStatus(ctx, tx, &expired[i], StatusCancelled); err != nil {
				return err
			}
			codes = append(codes, expired[i].Code)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// CompletePast marks confirmed reservations whose climb date is before today as finished.
func CompletePast(ctx context.Context, q db.Querier, today time.Time) (int64, error) {
	tag, err := q.Exec(ctx, `
		update reservasi set status = $1
		where status = $2 and tanggal_pendakian < $3
	`, string(StatusCompleted), string(StatusConfirmed), today)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func UpdateMember(ctx context.Context, q db.Querier, memberID int64, in MemberUpdate) (*Member, error) {
	var (
		m    Member
		cert pgtype.Text
	)
	err := q.QueryRow(ctx, `
		update pendaki_rombongan set
			nama_lengkap = coalesce($2, nama_lengkap),
			nik = coalesce($3, nik),
			alamat = coalesce($4, alamat),
			nomor_telepon = coalesce($5, nomor_telepon),
			kontak_darurat = coalesce($6, kontak_darurat),
			url_surat_sehat = coalesce($7, url_surat_sehat)
		where id_pendaki = $1
		returning id_pendaki, id_reservasi, nama_lengkap, nik, coalesce(alamat, ''),
			coalesce(nomor_telepon, ''), coalesce(kontak_darurat, ''), url_surat_sehat
	`, memberID, in.FullName, in.NIK, in.Address, in.Phone, in.EmergencyContact, in.HealthCertificate).
		Scan(&m.ID, &m.ReservationID, &m.FullName, &m.NIK, &m.Address, &m.Phone, &m.EmergencyContact, &cert)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	if cert.Valid {
		m.HealthCertificate = &cert.String
	}
	return &m, nil
}

func DeleteMember(ctx context.Context, q db.Querier, memberID int64) (bool, error) {
	tag, err := q.Exec(ctx, `delete from pendaki_rombongan where id_pendaki = $1`, memberID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
