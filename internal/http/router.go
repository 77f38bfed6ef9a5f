package httpapi

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"pendakian-services/internal/config"
	"pendakian-services/internal/http/handlers"
	"pendakian-services/internal/middleware"
	"pendakian-services/internal/queue"
	"pendakian-services/internal/ws"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func NewRouter(db *pgxpool.Pool, logger *zap.Logger, cfg config.Config, queueClient *queue.Client, rdb *redis.Client, wsServer *ws.Server) http.Handler {
	h := handlers.New(db, logger, cfg, queueClient)
	return newRouter(h, rdb, wsServer)
}

func newRouter(h *handlers.Handler, rdb *redis.Client, wsServer *ws.Server) http.Handler {
	cfg, logger := h.Config, h.Logger

	r := chi.NewRouter()
	r.Use(requestLogger(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Telemetry(logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(corsOptions(cfg)))

	r.Get("/health", h.Health)

	// Websockets stay outside the request timeout; they live as long as the client.
	if wsServer != nil {
		r.Get("/ws/admin/reservations", wsServer.AdminReservationsWS)
		r.Get("/ws/public/reservations/{code}", wsServer.PublicReservationWS)
	}

	writeLimit := middleware.RateLimit(rdb, middleware.RateLimitConfig{
		Prefix:         "pendakian:rl:public",
		Capacity:       cfg.RateLimitCapacity,
		RefillTokens:   1,
		RefillInterval: time.Duration(cfg.RateLimitRefillSec) * time.Second,
	}, logger)

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(requestTimeout(cfg)))

		r.Route("/api/public", func(r chi.Router) {
			r.Post("/pricing/quote", h.PublicPricingQuote)
			r.Get("/pricing/items", h.PricingItemsList)
			r.Get("/promotions/active", h.PublicActivePromotions)
			r.Get("/quota", h.PublicQuota)
			r.Get("/announcements", h.PublicAnnouncements)
			r.Get("/reservations/{code}", h.PublicReservationGet)
			r.Get("/reservations/{code}/ticket", h.PublicReservationTicket)

			r.Group(func(r chi.Router) {
				r.Use(writeLimit)
				r.Post("/reservations", h.PublicReservationCreate)
				r.Post("/reservations/{code}/cancel", h.PublicReservationCancel)
				r.Post("/reservations/{code}/payment-proof", h.PublicReservationUploadPaymentProof)
				r.Post("/uploads/health-certificate", h.PublicUploadHealthCertificate)
			})
		})

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(middleware.AdminAuth(middleware.DBProfileLookup(h.DB), cfg.SupabaseJWTSecret))

			r.Get("/reservations", h.AdminReservationsList)
			r.Get("/reservations/{id}", h.AdminReservationDetail)
			r.Get("/reservations/{id}/ticket", h.AdminReservationTicket)
			r.Patch("/reservations/{id}/status", h.AdminReservationStatusUpdate)
			r.Patch("/reservations/{id}/sampah", h.AdminReservationWasteStatus)
			r.Delete("/reservations/{id}", h.AdminReservationDelete)
			r.Patch("/party-members/{id}", h.AdminMemberUpdate)
			r.Delete("/party-members/{id}", h.AdminMemberDelete)

			r.Post("/payments/confirm", h.AdminPaymentConfirm)

			r.Get("/quota", h.AdminQuotaList)
			r.Put("/quota", h.AdminQuotaUpsert)

			r.Get("/pricing/items", h.PricingItemsList)
			r.Put("/pricing/items/{id}", h.AdminPricingItemUpdate)

			r.Get("/promotions", h.AdminPromotionsList)
			r.Post("/promotions", h.AdminPromotionCreate)
			r.Get("/promotions/{id}", h.AdminPromotionDetail)
			r.Put("/promotions/{id}", h.AdminPromotionUpdate)
			r.Delete("/promotions/{id}", h.AdminPromotionDelete)

			r.Get("/announcements", h.AdminAnnouncementsList)
			r.Post("/announcements", h.AdminAnnouncementCreate)
			r.Post("/announcements/poster", h.AdminUploadPoster)
			r.Put("/announcements/{id}", h.AdminAnnouncementUpdate)
			r.Delete("/announcements/{id}", h.AdminAnnouncementDelete)

			r.Get("/finance/ledger", h.AdminFinanceLedger)
			r.Post("/finance/expenses", h.AdminExpenseCreate)
			r.Delete("/finance/expenses/{id}", h.AdminExpenseDelete)
			r.Get("/finance/categories", h.AdminExpenseCategories)
			r.Post("/finance/categories", h.AdminExpenseCategoryCreate)

			r.Get("/dashboard", h.AdminDashboard)
			r.Get("/activity", h.AdminActivityFeed)
		})

		r.Route("/api/cron", func(r chi.Router) {
			r.Use(middleware.CronAuth(cfg.CronSecret))
			r.Post("/reservations/expire", h.CronReservationsExpire)
			r.Post("/reservations/complete", h.CronReservationsComplete)
		})
	})

	return r
}

func requestTimeout(cfg config.Config) time.Duration {
	if cfg.RequestTimeout <= 0 {
		return 20 * time.Second
	}
	return cfg.RequestTimeout
}

// corsOptions allows any origin without credentials unless an allow-list is configured.
func corsOptions(cfg config.Config) cors.Options {
	options := cors.Options{
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Requested-With",
			"X-Request-Id",
			"Cache-Control",
		},
		ExposedHeaders: []string{"X-Request-Id", "Retry-After", "X-RateLimit-Remaining"},
		MaxAge:         300,
	}
	if len(cfg.CorsAllowedOrigins) > 0 {
		options.AllowedOrigins = cfg.CorsAllowedOrigins
		options.AllowCredentials = true
	} else {
		options.AllowedOrigins = []string{"*"}
	}
	return options
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
