package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pendakian-services/internal/apperror"
	"pendakian-services/internal/auth"
	"pendakian-services/internal/db"
	"pendakian-services/internal/pricing"
	"pendakian-services/internal/queue"
	"pendakian-services/internal/quota"
	"pendakian-services/internal/supabase"
	"pendakian-services/internal/utils"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Identity provisions party leaders through the identity provider.
type Identity interface {
	CreateUser(ctx context.Context, params supabase.CreateUserParams) (supabase.User, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, evt queue.ReservationEvent)
}

type Settings struct {
	Timezone        string
	DefaultCapacity int64
	PriceDefaults   pricing.Defaults
	PriceTolerance  int64
	TokenSecret     string
}

type Service struct {
	pool     db.TxStarter
	logger   *zap.Logger
	identity Identity
	events   EventPublisher
	settings Settings
	now      func() time.Time
}

func NewService(pool db.TxStarter, logger *zap.Logger, identity Identity, events EventPublisher, settings Settings) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{pool: pool, logger: logger, identity: identity, events: events, settings: settings, now: time.Now}
}

type CreateResult struct {
	Success     bool   `json:"success"`
	Code        string `json:"kode_reservasi"`
	AccessToken string `json:"token_akses"`
	TotalPrice  int64  `json:"total_harga"`
}

// Create runs the intake pipeline: validation, server-side pricing, quota
// pre-check, leader provisioning, then one transaction that reserves capacity
// and writes the reservation with all of its children.
func (s *Service) Create(ctx context.Context, req CreateRequest) (CreateResult, error) {
	if appErr := req.Validate(s.settings.Timezone); appErr != nil {
		return CreateResult{}, appErr
	}
	climbDate, err := quota.ParseDate(req.ClimbDate)
	if err != nil {
		return CreateResult{}, apperror.Validation(invalidRequestMessage, map[string]any{"tanggal_pendakian": "datetime=2006-01-02"})
	}

	quote, appErr := pricing.ComputeQuote(ctx, s.pool, s.logger, pricing.Input{
		ClimberCount: req.ClimberCount,
		ParkingCount: req.parking(),
		ClimbDate:    req.ClimbDate,
		PromoCode:    req.PromoCode,
		Now:          s.now(),
	}, s.settings.PriceDefaults)
	if appErr != nil {
		return CreateResult{}, appErr
	}
	if appErr := checkPrice(*req.TotalPrice, quote.FinalPrice, s.settings.PriceTolerance); appErr != nil {
		s.logger.Warn("client price rejected",
			zap.Int64("clientTotal", *req.TotalPrice),
			zap.Int64("serverTotal", quote.FinalPrice),
			zap.String("date", req.ClimbDate),
		)
		return CreateResult{}, appErr
	}

	availability, appErr := quota.Check(ctx, s.pool, s.logger, climbDate, int64(req.ClimberCount), s.settings.DefaultCapacity)
	if appErr != nil {
		return CreateResult{}, appErr
	}
	if !availability.OK {
		return CreateResult{}, availability.Err()
	}

	leaderID, err := s.resolveLeader(ctx, *req.Leader)
	if err != nil {
		return CreateResult{}, err
	}

	code, reservationID, err := s.insertWithFreshCode(ctx, leaderID, climbDate, quote.FinalPrice, &req)
	if err != nil {
		return CreateResult{}, err
	}

	s.afterCreate(ctx, reservationID, code, req, quote.FinalPrice)

	return CreateResult{
		Success:     true,
		Code:        code,
		AccessToken: utils.CreateReservationToken(s.settings.TokenSecret, code),
		TotalPrice:  quote.FinalPrice,
	}, nil
}

func checkPrice(client, server, tolerance int64) *apperror.Error {
	diff := client - server
	if diff < 0 {
		diff = -diff
	}
	if diff <= tolerance {
		return nil
	}
	return apperror.BusinessRule(apperror.CodePriceMismatch,
		"Total harga tidak sesuai dengan perhitungan server",
		map[string]any{"total_harga_klien": client, "total_harga_server": server},
	)
}

type codeCollision struct{ err error }

func (c codeCollision) Error() string { return c.err.Error() }
func (c codeCollision) Unwrap() error { return c.err }

func isCodeCollision(err error) bool {
	var cc codeCollision
	return errors.As(err, &cc)
}

// insertWithFreshCode writes the reservation under a newly drawn code, drawing
// again when the code collides with an existing one.
func (s *Service) insertWithFreshCode(ctx context.Context, leaderID string, climbDate time.Time, total int64, req *CreateRequest) (string, int64, error) {
	for attempt := 1; ; attempt++ {
		code, err := GenerateCode(s.now().In(utils.LoadLocation(s.settings.Timezone)))
		if err != nil {
			return "", 0, apperror.Internal("Gagal membuat kode reservasi", err)
		}
		id, err := s.insert(ctx, code, leaderID, climbDate, total, req)
		if err == nil {
			return code, id, nil
		}
		if !isCodeCollision(err) {
			return "", 0, err
		}
		if attempt == maxCodeAttempts {
			return "", 0, apperror.Internal("Gagal membuat kode reservasi unik", err)
		}
		s.logger.Warn("reservation code collision; regenerating", zap.String("code", code), zap.Int("attempt", attempt))
	}
}

// insert reserves capacity and writes the reservation, its members and its
// waste items in one transaction. Nothing persists unless every step succeeds.
func (s *Service) insert(ctx context.Context, code, leaderID string, climbDate time.Time, total int64, req *CreateRequest) (int64, error) {
	var id int64
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		availability, appErr := quota.Reserve(ctx, tx, climbDate, int64(req.ClimberCount), s.settings.DefaultCapacity)
		if appErr != nil {
			return appErr
		}
		if availability.FallbackUsed {
			s.logger.Warn("daily quota row created with default capacity",
				zap.String("date", availability.Date),
				zap.Int64("defaultCapacity", s.settings.DefaultCapacity),
			)
		}

		err := tx.QueryRow(ctx, `
			insert into reservasi (
				kode_reservasi, id_pengguna, tanggal_pendakian, jumlah_pendaki, jumlah_tiket_parkir,
				total_harga, jumlah_potensi_sampah, status, status_sampah, dipesan_pada
			) values ($1, $2::uuid, $3, $4, $5, $6, $7, $8, $9, $10)
			returning id_reservasi
		`, code, leaderID, climbDate, req.ClimberCount, req.parking(), total, req.potentialWaste(),
			string(StatusAwaitingPayment), string(WasteUnchecked), s.now()).Scan(&id)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return codeCollision{err: err}
			}
			return apperror.Upstream("Gagal menyimpan reservasi", err)
		}

		for i, m := range req.Members {
			if _, err := tx.Exec(ctx, `
				insert into pendaki_rombongan (
					id_reservasi, nama_lengkap, nik, alamat, nomor_telepon, kontak_darurat, url_surat_sehat
				) values ($1, $2, $3, $4, $5, $6, $7)
			`, id, m.FullName, m.NIK, m.Address, m.Phone, m.EmergencyContact, m.HealthCertificate); err != nil {
				return apperror.Upstream(fmt.Sprintf("Gagal menyimpan anggota rombongan ke-%d", i+1), err)
			}
		}
		for i, w := range req.WasteItems {
			if _, err := tx.Exec(ctx, `
				insert into barang_bawaan_sampah (id_reservasi, nama_barang, jenis_sampah)
				values ($1, $2, $3)
			`, id, w.Name, w.Kind); err != nil {
				return apperror.Upstream(fmt.Sprintf("Gagal menyimpan barang bawaan ke-%d", i+1), err)
			}
		}
		return nil
	})
	if err != nil {
		var appErr *apperror.Error
		if errors.As(err, &appErr) || isCodeCollision(err) {
			return 0, err
		}
		return 0, apperror.Upstream("Gagal menyimpan reservasi", err)
	}
	return id, nil
}

// resolveLeader returns the profile id for the leader's email, provisioning an
// identity through the identity provider when none exists yet.
func (s *Service) resolveLeader(ctx context.Context, leader LeaderInput) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `select id::text from profiles where lower(email) = $1 limit 1`, leader.Email).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !db.IsNoRows(err) {
		return "", apperror.Upstream("Gagal mencari data ketua rombongan", err)
	}

	if s.identity == nil {
		return "", apperror.Upstream("Layanan identitas tidak tersedia", supabase.ErrNotConfigured)
	}
	user, err := s.identity.CreateUser(ctx, supabase.CreateUserParams{
		Email:        leader.Email,
		EmailConfirm: true,
		UserMetadata: map[string]any{"nama_lengkap": leader.FullName, "nomor_telepon": leader.Phone},
	})
	if err != nil {
		if !supabase.IsEmailExists(err) {
			return "", apperror.Upstream("Gagal membuat akun ketua rombongan", err)
		}
		// The identity exists without a profile row; adopt it.
		existingID, findErr := s.findIdentity(ctx, leader.Email)
		if findErr != nil || existingID == "" {
			return "", apperror.Upstream("Gagal membuat akun ketua rombongan", errors.Join(err, findErr))
		}
		user = supabase.User{ID: existingID, Email: leader.Email}
	}

	_, err = s.pool.Exec(ctx, `
		insert into profiles (id, nama_lengkap, email, nomor_telepon, alamat, peran)
		values ($1::uuid, $2, $3, $4, $5, $6)
		on conflict (id) do update set
			nama_lengkap = excluded.nama_lengkap,
			nomor_telepon = excluded.nomor_telepon,
			alamat = excluded.alamat
	`, user.ID, leader.FullName, leader.Email, leader.Phone, leader.Address, string(auth.RoleClimber))
	if err != nil {
		return "", apperror.Upstream("Gagal menyimpan profil ketua rombongan", err)
	}
	s.logger.Info("party leader provisioned", zap.String("userId", user.ID))
	return user.ID, nil
}

// findIdentity looks the email up in auth.users directly; the admin list
// endpoint has no exact email filter.
func (s *Service) findIdentity(ctx context.Context, email string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `select id::text from auth.users where lower(email) = $1 limit 1`, email).Scan(&id)
	if db.IsNoRows(err) {
		return "", nil
	}
	return id, err
}

func (s *Service) afterCreate(ctx context.Context, id int64, code string, req CreateRequest, total int64) {
	s.Notify(ctx, code)
	s.Publish(ctx, queue.ReservationEvent{
		Type:          queue.EventReservationCreated,
		ReservationID: id,
		Code:          code,
		ClimbDate:     req.ClimbDate,
		ClimberCount:  req.ClimberCount,
		TotalPrice:    total,
		Status:        string(StatusAwaitingPayment),
		LeaderName:    req.Leader.FullName,
		LeaderEmail:   req.Leader.Email,
		LeaderPhone:   req.Leader.Phone,
	})
	s.logger.Info("reservation created",
		zap.String("code", code),
		zap.String("date", req.ClimbDate),
		zap.Int("climbers", req.ClimberCount),
		zap.Int64("total", total),
	)
}

// VerifyAccess reports whether the caller may read a reservation by code,
// either with its access token or the leader's email.
func (s *Service) VerifyAccess(r *Reservation, token, email string) bool {
	if r == nil {
		return false
	}
	if token != "" && utils.VerifyReservationToken(s.settings.TokenSecret, token, r.Code) {
		return true
	}
	email = strings.ToLower(strings.TrimSpace(email))
	return email != "" && r.Leader != nil && strings.EqualFold(r.Leader.Email, email)
}

func (s *Service) Publish(ctx context.Context, evt queue.ReservationEvent) {
	if s.events != nil {
		s.events.Publish(ctx, evt)
	}
}

// Notify wakes admin feed listeners subscribed to reservasi_updates.
func (s *Service) Notify(ctx context.Context, code string) {
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if _, err := s.pool.Exec(notifyCtx, `select pg_notify('reservasi_updates', $1)`, code); err != nil {
		s.logger.Warn("reservation notify failed", zap.String("code", code), zap.Error(err))
	}
}
