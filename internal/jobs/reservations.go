package jobs

import (
	"context"
	"time"

	"pendakian-services/internal/queue"
	"pendakian-services/internal/reservation"
	"pendakian-services/internal/utils"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Publisher interface {
	Publish(ctx context.Context, evt queue.ReservationEvent)
}

type Runner struct {
	pool       *pgxpool.Pool
	logger     *zap.Logger
	events     Publisher
	paymentTTL time.Duration
	timezone   string
	now        func() time.Time
}

func NewRunner(pool *pgxpool.Pool, logger *zap.Logger, events Publisher, paymentTTL time.Duration, timezone string) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{pool: pool, logger: logger, events: events, paymentTTL: paymentTTL, timezone: timezone, now: time.Now}
}

type Result struct {
	Job      string   `json:"job"`
	Affected int64    `json:"affected"`
	Codes    []string `json:"codes,omitempty"`
	RanAt    string   `json:"ran_at"`
}

// ExpireUnpaid cancels reservations left unpaid past the payment window and
// gives their climbers back to the daily quota.
func (r *Runner) ExpireUnpaid(ctx context.Context) (Result, error) {
	now := r.now()
	cutoff := ExpiryCutoff(now, r.paymentTTL)
	codes, err := reservation.ExpireUnpaid(ctx, r.pool, cutoff)
	if err != nil {
		return Result{}, err
	}
	for _, code := range codes {
		if r.events == nil {
			break
		}
		evt := queue.ReservationEvent{
			Type:    queue.EventReservationExpired,
			Code:    code,
			Status:  string(reservation.StatusCancelled),
			Actor:   "sistem",
			Message: "Melewati batas waktu pembayaran",
		}
		if res, err := reservation.GetByCode(ctx, r.pool, code); err == nil && res != nil {
			evt = reservation.EventFor(evt, res)
		}
		r.events.Publish(ctx, evt)
	}
	if len(codes) > 0 {
		_, _ = r.pool.Exec(ctx, `select pg_notify('reservasi_updates', 'expired')`)
	}
	r.logger.Info("unpaid reservations expired", zap.Int("count", len(codes)), zap.Time("cutoff", cutoff))
	return Result{Job: "expire_unpaid", Affected: int64(len(codes)), Codes: codes, RanAt: now.UTC().Format(time.RFC3339)}, nil
}

// CompletePast closes confirmed reservations whose climb date has passed.
func (r *Runner) CompletePast(ctx context.Context) (Result, error) {
	now := r.now()
	today := utils.StartOfDay(now, r.timezone)
	n, err := reservation.CompletePast(ctx, r.pool, today)
	if err != nil {
		return Result{}, err
	}
	r.logger.Info("past reservations completed", zap.Int64("count", n), zap.Time("before", today))
	return Result{Job: "complete_past", Affected: n, RanAt: now.UTC().Format(time.RFC3339)}, nil
}

func ExpiryCutoff(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return now.Add(-ttl)
}
