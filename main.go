package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pendakian-services/internal/config"
	"pendakian-services/internal/db"
	httpapi "pendakian-services/internal/http"
	"pendakian-services/internal/jobs"
	"pendakian-services/internal/logger"
	"pendakian-services/internal/notify"
	"pendakian-services/internal/payment"
	"pendakian-services/internal/queue"
	"pendakian-services/internal/ws"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()

	checkPaymentProcedure(ctx, pool, cfg, log)

	rdb := connectRedis(ctx, cfg, log)
	if rdb != nil {
		defer rdb.Close()
	}

	queueClient := connectQueue(cfg, log)
	if queueClient != nil {
		defer queueClient.Close()

		if cfg.RabbitMQWorkerMode == "daemon" {
			notifier := notify.New(notify.Config{
				SendgridAPIKey:    cfg.SendgridAPIKey,
				SendgridFromEmail: cfg.SendgridFromEmail,
				SendgridFromName:  cfg.SendgridFromName,
				TwilioAccountSID:  cfg.TwilioAccountSID,
				TwilioAuthToken:   cfg.TwilioAuthToken,
				TwilioFromNumber:  cfg.TwilioFromNumber,
			}, log)
			processor := queue.NewActivityProcessor(pool, notifier, log)
			log.Info("activity consumer enabled",
				zap.String("queue", queue.ActivityQueue),
				zap.Bool("email", notifier.EmailEnabled()),
				zap.Bool("sms", notifier.SMSEnabled()),
			)
			go queue.ConsumeForever(ctx, queue.DialConsumer(cfg.RabbitMQURL), queue.ActivityQueue, processor.Handle, queue.RetryPolicy{
				MaxRetries:     5,
				RetryDelay:     5 * time.Second,
				HandlerTimeout: 30 * time.Second,
			}, queue.Backoff{Initial: time.Second, Max: 30 * time.Second}, log)
		} else {
			log.Info("activity consumer disabled", zap.String("mode", cfg.RabbitMQWorkerMode))
		}
	}

	wsServer := ws.New(pool, log, cfg)
	router := httpapi.NewRouter(pool, log, cfg, queueClient, rdb, wsServer)

	if cfg.CronEnabled {
		runner := jobs.NewRunner(pool, log, queue.NewPublisher(queueClient, log), cfg.ReservationPaymentTTL, cfg.Timezone)
		scheduler, err := jobs.Start(runner, jobs.Schedule{
			Expire:   cfg.CronExpireSchedule,
			Complete: cfg.CronCompleteSchedule,
		}, log)
		if err != nil {
			log.Fatal("scheduler start failed", zap.Error(err))
		}
		defer func() { <-scheduler.Stop().Done() }()
	}

	apiServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("reservation api ready", zap.String("base", "/api"))
		log.Info("reservation ws ready", zap.String("base", "/ws"))
		log.Info("pendakian service listening", zap.String("addr", cfg.HTTPAddr))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	stopWorkers()
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxShutdown); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
}

// connectRedis returns nil when Redis is not configured or unreachable; rate
// limiting is then skipped.
func connectRedis(ctx context.Context, cfg config.Config, log *zap.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		log.Info("rate limiting disabled (REDIS_ADDR is empty)")
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unreachable; rate limiting disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		_ = rdb.Close()
		return nil
	}
	return rdb
}

// connectQueue dials RabbitMQ and declares the event topology. Outside
// production a broker failure only disables events.
func connectQueue(cfg config.Config, log *zap.Logger) *queue.Client {
	if cfg.RabbitMQURL == "" {
		log.Info("event publishing disabled (RABBITMQ_URL is empty)")
		return nil
	}
	qc, err := queue.New(cfg.RabbitMQURL)
	if err == nil {
		err = queue.EnsureEventsTopology(qc)
		if err != nil {
			_ = qc.Close()
		}
	}
	if err != nil {
		if cfg.Env == "production" {
			log.Fatal("rabbitmq setup failed", zap.Error(err))
		}
		log.Warn("rabbitmq setup failed; continuing without events", zap.Error(err))
		return nil
	}
	log.Info("rabbitmq enabled", zap.String("exchange", queue.EventsExchange), zap.String("queue", queue.ActivityQueue))
	return qc
}

// checkPaymentProcedure reports a deployed payment procedure that would book
// daily capacity a second time. Production does not start with one.
func checkPaymentProcedure(ctx context.Context, q db.Querier, cfg config.Config, log *zap.Logger) {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := payment.CheckProcedure(checkCtx, q)
	if err == nil {
		return
	}
	if cfg.Env == "production" {
		log.Fatal("payment procedure check failed", zap.String("migration", payment.ProcedureMigration), zap.Error(err))
	}
	log.Error("payment procedure check failed", zap.String("migration", payment.ProcedureMigration), zap.Error(err))
}
