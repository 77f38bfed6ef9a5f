package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env            string
	HTTPAddr       string
	DatabaseURL    string
	Timezone       string
	RequestTimeout time.Duration

	SupabaseURL            string
	SupabaseAnonKey        string
	SupabaseServiceRoleKey string
	SupabaseJWTSecret      string
	SupabaseHTTPTimeout    time.Duration

	QuotaDefaultCapacity       int64
	PricingDefaultEntryPrice   int64
	PricingDefaultParkingPrice int64
	PriceTolerance             int64

	ReservationTokenSecret string
	ReservationPaymentTTL  time.Duration
	MaxFileSizeBytes       int64

	CorsAllowedOrigins  []string
	WSHeartbeatInterval time.Duration

	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	RateLimitCapacity  int64
	RateLimitRefillSec int64

	RabbitMQURL        string
	RabbitMQWorkerMode string

	CronSecret           string
	CronEnabled          bool
	CronExpireSchedule   string
	CronCompleteSchedule string

	SendgridAPIKey    string
	SendgridFromEmail string
	SendgridFromName  string
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioFromNumber  string

	ObjectStoreEndpoint        string
	ObjectStoreRegion          string
	ObjectStoreAccessKeyID     string
	ObjectStoreSecretAccessKey string
	ObjectStoreBucket          string
	ObjectStorePublicBaseURL   string
}

func Load() Config {
	cfg := Config{
		Env:            getEnv("APP_ENV", "development"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		Timezone:       getEnv("APP_TIMEZONE", "Asia/Jakarta"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 20*time.Second),

		SupabaseURL:            strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseAnonKey:        getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceRoleKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		SupabaseJWTSecret:      getEnv("SUPABASE_JWT_SECRET", ""),
		SupabaseHTTPTimeout:    getEnvDuration("SUPABASE_HTTP_TIMEOUT", 10*time.Second),

		QuotaDefaultCapacity:       getEnvInt64("QUOTA_DEFAULT_CAPACITY", 50),
		PricingDefaultEntryPrice:   getEnvInt64("PRICING_DEFAULT_ENTRY_PRICE", 0),
		PricingDefaultParkingPrice: getEnvInt64("PRICING_DEFAULT_PARKING_PRICE", 0),
		PriceTolerance:             getEnvInt64("PRICE_TOLERANCE", 0),

		ReservationTokenSecret: getEnv("RESERVATION_TOKEN_SECRET", "dev-insecure-reservation-secret"),
		ReservationPaymentTTL:  getEnvDuration("RESERVATION_PAYMENT_TTL", 24*time.Hour),
		MaxFileSizeBytes:       getEnvInt64("MAX_FILE_SIZE", 2*1024*1024),

		CorsAllowedOrigins:  splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
		WSHeartbeatInterval: getEnvDuration("WS_HEARTBEAT_INTERVAL", 30*time.Second),

		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            int(getEnvInt64("REDIS_DB", 0)),
		RateLimitCapacity:  getEnvInt64("RATE_LIMIT_CAPACITY", 20),
		RateLimitRefillSec: getEnvInt64("RATE_LIMIT_REFILL_SECONDS", 3),

		RabbitMQURL:        getEnv("RABBITMQ_URL", ""),
		RabbitMQWorkerMode: getEnv("RABBITMQ_WORKER_MODE", "daemon"),

		CronSecret:           getEnv("CRON_SECRET", ""),
		CronEnabled:          getEnvBool("CRON_ENABLED", true),
		CronExpireSchedule:   getEnv("CRON_EXPIRE_SCHEDULE", "@every 15m"),
		CronCompleteSchedule: getEnv("CRON_COMPLETE_SCHEDULE", "CRON_TZ=Asia/Jakarta 5 0 * * *"),

		SendgridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendgridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendgridFromName:  getEnv("SENDGRID_FROM_NAME", "Reservasi Pendakian"),
		TwilioAccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:  getEnv("TWILIO_FROM_NUMBER", ""),

		// Supabase Storage exposes an S3-compatible endpoint at <project>/storage/v1/s3.
		ObjectStoreEndpoint:        getEnvFirst([]string{"OBJECT_STORE_ENDPOINT", "SUPABASE_S3_ENDPOINT"}, ""),
		ObjectStoreRegion:          getEnvFirst([]string{"OBJECT_STORE_REGION", "SUPABASE_S3_REGION"}, "ap-southeast-1"),
		ObjectStoreAccessKeyID:     getEnvFirst([]string{"OBJECT_STORE_ACCESS_KEY_ID", "SUPABASE_S3_ACCESS_KEY_ID"}, ""),
		ObjectStoreSecretAccessKey: getEnvFirst([]string{"OBJECT_STORE_SECRET_ACCESS_KEY", "SUPABASE_S3_SECRET_ACCESS_KEY"}, ""),
		ObjectStoreBucket:          getEnvFirst([]string{"OBJECT_STORE_BUCKET", "SUPABASE_STORAGE_BUCKET"}, ""),
		ObjectStorePublicBaseURL:   getEnvFirst([]string{"OBJECT_STORE_PUBLIC_BASE_URL"}, ""),
	}

	if cfg.MaxFileSizeBytes <= 0 {
		cfg.MaxFileSizeBytes = 2 * 1024 * 1024
	}
	if cfg.QuotaDefaultCapacity < 0 {
		cfg.QuotaDefaultCapacity = 50
	}
	if cfg.PriceTolerance < 0 {
		cfg.PriceTolerance = 0
	}

	if strings.TrimSpace(cfg.ObjectStoreEndpoint) == "" && cfg.SupabaseURL != "" {
		cfg.ObjectStoreEndpoint = cfg.SupabaseURL + "/storage/v1/s3"
	}
	if strings.TrimSpace(cfg.ObjectStorePublicBaseURL) == "" && cfg.SupabaseURL != "" && cfg.ObjectStoreBucket != "" {
		cfg.ObjectStorePublicBaseURL = cfg.SupabaseURL + "/storage/v1/object/public/" + cfg.ObjectStoreBucket
	}

	return cfg
}

// Validate reports configuration that would make the service unusable.
// Outside production only the database is mandatory.
func (c Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Env == "production" {
		if c.SupabaseURL == "" {
			missing = append(missing, "SUPABASE_URL")
		}
		if c.SupabaseJWTSecret == "" {
			missing = append(missing, "SUPABASE_JWT_SECRET")
		}
		if c.SupabaseServiceRoleKey == "" {
			missing = append(missing, "SUPABASE_SERVICE_ROLE_KEY")
		}
		if c.ReservationTokenSecret == "dev-insecure-reservation-secret" {
			missing = append(missing, "RESERVATION_TOKEN_SECRET")
		}
	}
	if len(missing) > 0 {
		return errors.New("missing required configuration: " + strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvFirst(keys []string, fallback string) string {
	for _, k := range keys {
		value := strings.TrimSpace(os.Getenv(k))
		if value != "" {
			return value
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
