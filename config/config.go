package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// ErrMissingDatabaseURL is returned when no database connection string is configured.
var ErrMissingDatabaseURL = errors.New("no database connection string found: set DATABASE_URL (or DB_PATH)")

// ErrMissingSessionSecret is returned when no session signing key is configured.
var ErrMissingSessionSecret = errors.New("SESSION_SECRET is required")

const (
	SessionStoreMemory   = "memory"
	SessionStorePostgres = "postgres"

	EventsBackendNone     = "none"
	EventsBackendRabbitMQ = "rabbitmq"
	EventsBackendPubSub   = "pubsub"

	AssetsBackendLocal = "local"
	AssetsBackendMinio = "minio"
	AssetsBackendGCS   = "gcs"
)

type Config struct {
	ServerPort int
	// TrustProxyHeaders lets X-Forwarded-For / X-Real-IP replace the peer
	// address. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool
	Database   DatabaseConfig
	Session    SessionConfig
	Auth       AuthConfig
	Log        LogConfig
	Events     EventsConfig
	Assets     AssetsConfig
}

type DatabaseConfig struct {
	URL string
}

type SessionConfig struct {
	Secret       string
	TTL          time.Duration
	Store        string
	CookieSecure bool
}

type AuthConfig struct {
	BcryptCost int
	LoginRate  float64
	LoginBurst int
}

type LogConfig struct {
	Level  string
	Format string
}

type EventsConfig struct {
	Backend  string
	Channel  string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL             string
	PrefetchCount   int
	QueueDurable    bool
	QueueAutoDelete bool
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

type AssetsConfig struct {
	Backend  string
	LocalDir string
	Minio    MinioConfig
	GCS      GCSConfig
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

// LoadConfig reads the configuration from the environment. A database
// connection string is mandatory; its absence returns ErrMissingDatabaseURL.
func LoadConfig() (Config, error) {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		_ = godotenv.Load(envFile)
	} else if os.Getenv("ENV") == "dev" {
		_ = godotenv.Load()
	}

	cfg := Config{
		ServerPort:        getEnvInt("SERVER_PORT", 3000),
		TrustProxyHeaders: getEnvBool("TRUST_PROXY_HEADERS", false),
		Database: DatabaseConfig{
			URL: firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("DB_PATH")),
		},
		Session: SessionConfig{
			Secret:       strings.TrimSpace(getEnv("SESSION_SECRET", "")),
			TTL:          getEnvDuration("SESSION_TTL", 24*time.Hour),
			Store:        strings.ToLower(getEnv("SESSION_STORE", SessionStoreMemory)),
			CookieSecure: getEnvBool("COOKIE_SECURE", false),
		},
		Auth: AuthConfig{
			BcryptCost: getEnvInt("BCRYPT_COST", bcrypt.DefaultCost),
			LoginRate:  getEnvFloat("LOGIN_RATE", 1),
			LoginBurst: getEnvInt("LOGIN_BURST", 10),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Events: EventsConfig{
			Backend: strings.ToLower(getEnv("EVENTS_BACKEND", EventsBackendNone)),
			Channel: getEnv("EVENTS_CHANNEL", "auth.events"),
			RabbitMQ: RabbitMQConfig{
				URL:             getEnv("RABBITMQ_URL", ""),
				PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 10),
				QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
				QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
			},
			PubSub: PubSubConfig{
				ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
				CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
				SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
			},
		},
		Assets: AssetsConfig{
			Backend:  strings.ToLower(getEnv("ASSETS_BACKEND", AssetsBackendLocal)),
			LocalDir: getEnv("ASSETS_DIR", "web/static"),
			Minio: MinioConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", ""),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
			GCS: GCSConfig{
				Bucket:          getEnv("GCS_BUCKET", ""),
				ProjectID:       getEnv("GCS_PROJECT_ID", ""),
				CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
			},
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings the process cannot start without.
func (c Config) Validate() error {
	if c.Database.URL == "" {
		return ErrMissingDatabaseURL
	}
	if c.Session.Secret == "" {
		return ErrMissingSessionSecret
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.Session.TTL)
	}
	switch c.Session.Store {
	case SessionStoreMemory, SessionStorePostgres:
	default:
		return fmt.Errorf("SESSION_STORE: unknown store %q", c.Session.Store)
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	switch c.Events.Backend {
	case EventsBackendNone, EventsBackendRabbitMQ, EventsBackendPubSub:
	default:
		return fmt.Errorf("EVENTS_BACKEND: unknown backend %q", c.Events.Backend)
	}
	switch c.Assets.Backend {
	case AssetsBackendLocal, AssetsBackendMinio, AssetsBackendGCS:
	default:
		return fmt.Errorf("ASSETS_BACKEND: unknown backend %q", c.Assets.Backend)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.Atoi(strings.TrimSpace(valueStr)); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.ParseFloat(strings.TrimSpace(valueStr), 64); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.ParseBool(strings.TrimSpace(valueStr)); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := time.ParseDuration(strings.TrimSpace(valueStr)); err == nil {
			return value
		}
	}
	return defaultValue
}
