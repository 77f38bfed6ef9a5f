package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"pendakian-services/internal/auth"
	"pendakian-services/internal/config"
	"pendakian-services/internal/middleware"
	"pendakian-services/internal/reservation"
	"pendakian-services/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Channel carries reservation codes from pg_notify calls.
const Channel = "reservasi_updates"

// adminKey is the subscription key shared by every admin feed client.
const adminKey = "*"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	DB      *pgxpool.Pool
	Logger  *zap.Logger
	Config  config.Config
	Profile middleware.ProfileLookup

	feed *reservationFeed
}

func New(db *pgxpool.Pool, logger *zap.Logger, cfg config.Config) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &Server{DB: db, Logger: logger, Config: cfg}
	if db != nil {
		srv.Profile = middleware.DBProfileLookup(db)
	}
	srv.feed = newReservationFeed(db, logger)
	return srv
}

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) writeJSON(value any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(value)
}

func (c *client) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
}

// reservationFeed fans LISTEN notifications out to admin clients and to
// public clients watching a single reservation code.
type reservationFeed struct {
	db     *pgxpool.Pool
	logger *zap.Logger

	started sync.Once
	mu      sync.RWMutex
	subs    map[string]map[*client]struct{}
}

func newReservationFeed(db *pgxpool.Pool, logger *zap.Logger) *reservationFeed {
	return &reservationFeed{
		db:     db,
		logger: logger,
		subs:   make(map[string]map[*client]struct{}),
	}
}

func (f *reservationFeed) ensureStarted() {
	if f.db == nil {
		return
	}
	f.started.Do(func() {
		go f.listenLoop(context.Background())
	})
}

func (f *reservationFeed) subscribe(key string, c *client) (unsubscribe func()) {
	key = strings.TrimSpace(key)
	if key == "" {
		return func() {}
	}

	f.mu.Lock()
	if f.subs[key] == nil {
		f.subs[key] = make(map[*client]struct{})
	}
	f.subs[key][c] = struct{}{}
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		clients := f.subs[key]
		delete(clients, c)
		if len(clients) == 0 {
			delete(f.subs, key)
		}
		f.mu.Unlock()
	}
}

func (f *reservationFeed) subscribers(key string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs[key])
}

func (f *reservationFeed) broadcast(key string, message any) {
	f.mu.RLock()
	clientsMap := f.subs[key]
	clients := make([]*client, 0, len(clientsMap))
	for c := range clientsMap {
		clients = append(clients, c)
	}
	f.mu.RUnlock()

	for _, c := range clients {
		if err := c.writeJSON(message); err != nil {
			_ = c.conn.Close()
			f.mu.Lock()
			if current := f.subs[key]; current != nil {
				delete(current, c)
				if len(current) == 0 {
					delete(f.subs, key)
				}
			}
			f.mu.Unlock()
		}
	}
}

// dispatch turns one notification payload into feed messages.
func (f *reservationFeed) dispatch(ctx context.Context, payload string) {
	code := strings.TrimSpace(payload)
	now := time.Now()
	if code == "" || !strings.HasPrefix(code, "PDK-") {
		f.broadcast(adminKey, map[string]any{"type": "reservasi.refresh", "updatedAt": now})
		return
	}

	var snapshot *reservation.Reservation
	if f.db != nil && (f.subscribers(adminKey) > 0 || f.subscribers(code) > 0) {
		r, err := reservation.GetByCode(ctx, f.db, code)
		if err != nil && f.logger != nil {
			f.logger.Warn("reservation feed fetch failed", zap.String("code", code), zap.Error(err))
		}
		snapshot = r
	}

	if snapshot == nil {
		f.broadcast(adminKey, map[string]any{"type": "reservasi.refresh", "kode_reservasi": code, "updatedAt": now})
		f.broadcast(code, map[string]any{"type": "reservasi.refresh", "updatedAt": now})
		return
	}
	f.broadcast(adminKey, map[string]any{"type": "reservasi.update", "data": snapshot})
	f.broadcast(code, publicState(snapshot))
}

func publicState(r *reservation.Reservation) map[string]any {
	return map[string]any{
		"type": "reservasi.state",
		"data": map[string]any{
			"kode_reservasi":    r.Code,
			"status":            r.Status,
			"status_sampah":     r.WasteStatus,
			"tanggal_pendakian": r.ClimbDate.Format("2006-01-02"),
			"total_harga":       r.TotalPrice,
		},
	}
}

func (f *reservationFeed) listenLoop(ctx context.Context) {
	backoff := time.Second
	for {
		conn, err := f.db.Acquire(ctx)
		if err != nil {
			f.logger.Warn("reservation LISTEN acquire failed", zap.Error(err))
			time.Sleep(backoff)
			backoff = minDuration(backoff*2, 30*time.Second)
			continue
		}

		if _, err = conn.Exec(ctx, `listen `+Channel); err != nil {
			conn.Release()
			f.logger.Warn("reservation LISTEN failed", zap.Error(err))
			time.Sleep(backoff)
			backoff = minDuration(backoff*2, 30*time.Second)
			continue
		}

		backoff = time.Second
		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				break
			}
			fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			f.dispatch(fetchCtx, n.Payload)
			cancel()
		}

		conn.Release()
		time.Sleep(backoff)
		backoff = minDuration(backoff*2, 30*time.Second)
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// AdminReservationsWS streams reservation changes to admins and rangers.
// Browsers cannot set headers on upgrade, so the access token comes from ?token=.
func (s *Server) AdminReservationsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if bearer := auth.ParseBearerToken(token); bearer != "" {
		token = bearer
	}
	claims, err := auth.VerifyAccessToken(token, s.Config.SupabaseJWTSecret)
	if err != nil || s.Profile == nil {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "unauthorized"})
		return
	}
	role, _, err := s.Profile(r.Context(), claims.UserID())
	userRole := auth.Role(strings.ToLower(strings.TrimSpace(role)))
	if err != nil || (userRole != auth.RoleAdmin && userRole != auth.RoleRanger) {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "forbidden"})
		return
	}

	c := &client{conn: conn}
	s.feed.ensureStarted()
	unsubscribe := s.feed.subscribe(adminKey, c)
	defer unsubscribe()

	_ = c.writeJSON(map[string]any{"type": "reservasi.refresh", "updatedAt": time.Now()})
	s.serve(r.Context(), c)
}

// PublicReservationWS streams status changes of one reservation to its leader.
func (s *Server) PublicReservationWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	code := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "code")))
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if code == "" || !utils.VerifyReservationToken(s.Config.ReservationTokenSecret, token, code) {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "unauthorized"})
		return
	}

	c := &client{conn: conn}
	s.feed.ensureStarted()
	unsubscribe := s.feed.subscribe(code, c)
	defer unsubscribe()

	if s.DB != nil {
		if res, err := reservation.GetByCode(r.Context(), s.DB, code); err == nil && res != nil {
			_ = c.writeJSON(publicState(res))
		}
	}
	s.serve(r.Context(), c)
}

// serve keeps the connection alive with pings until the peer goes away.
func (s *Server) serve(ctx context.Context, c *client) {
	interval := s.Config.WSHeartbeatInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(interval * 2))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(interval * 2))
	})

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, readErr := c.conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-clientClosed:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}
