package handlers

import (
	"context"
	"errors"

	"pendakian-services/internal/config"
	"pendakian-services/internal/jobs"
	"pendakian-services/internal/payment"
	"pendakian-services/internal/queue"
	"pendakian-services/internal/reservation"
	"pendakian-services/internal/storage"
	"pendakian-services/internal/supabase"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Handler struct {
	DB           *pgxpool.Pool
	Logger       *zap.Logger
	Config       config.Config
	Queue        *queue.Client
	Events       *queue.Publisher
	Supabase     *supabase.Client
	Payments     payment.RPCCaller
	Reservations *reservation.Service
	Jobs         *jobs.Runner
	// Store overrides the per-request object store; tests inject a fake here.
	Store storage.Store
}

func New(db *pgxpool.Pool, logger *zap.Logger, cfg config.Config, qc *queue.Client) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	sb := supabase.New(supabase.Options{
		BaseURL:        cfg.SupabaseURL,
		AnonKey:        cfg.SupabaseAnonKey,
		ServiceRoleKey: cfg.SupabaseServiceRoleKey,
		Timeout:        cfg.SupabaseHTTPTimeout,
	})
	events := queue.NewPublisher(qc, logger)
	h := &Handler{
		DB:       db,
		Logger:   logger,
		Config:   cfg,
		Queue:    qc,
		Events:   events,
		Supabase: sb,
		Payments: sb,
		Jobs:     jobs.NewRunner(db, logger, events, cfg.ReservationPaymentTTL, cfg.Timezone),
	}
	h.Reservations = reservation.NewService(db, logger, sb, events, reservation.Settings{
		Timezone:        cfg.Timezone,
		DefaultCapacity: cfg.QuotaDefaultCapacity,
		PriceDefaults:   h.priceDefaults(),
		PriceTolerance:  cfg.PriceTolerance,
		TokenSecret:     cfg.ReservationTokenSecret,
	})
	return h
}

var errStoreNotConfigured = errors.New("object store is not configured")

func (h *Handler) makeStore(ctx context.Context) (storage.Store, error) {
	if h.Store != nil {
		return h.Store, nil
	}
	if h.Config.ObjectStoreEndpoint == "" || h.Config.ObjectStoreBucket == "" {
		return nil, errStoreNotConfigured
	}
	return storage.NewObjectStore(ctx, storage.Config{
		Endpoint:        h.Config.ObjectStoreEndpoint,
		Region:          h.Config.ObjectStoreRegion,
		AccessKeyID:     h.Config.ObjectStoreAccessKeyID,
		SecretAccessKey: h.Config.ObjectStoreSecretAccessKey,
		Bucket:          h.Config.ObjectStoreBucket,
		PublicBaseURL:   h.Config.ObjectStorePublicBaseURL,
	})
}
