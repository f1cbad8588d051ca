package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Events       EventsConfig
	Cleanup      CleanupConfig
	PubSub       PubSubConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		if cfg.DB.SQLitePath == "" {
			cfg.DB.SQLitePath = defaultSQLitePath
		}
		return &cfg, nil
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"EVENTCORE_APP_ENV" required:"true"`
	Port         string `envconfig:"EVENTCORE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"EVENTCORE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"EVENTCORE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN        string `envconfig:"EVENTCORE_DB_DSN"`
	SQLitePath string `envconfig:"EVENTCORE_DB_SQLITE_PATH"`

	LegacyHost     string `envconfig:"EVENTCORE_DB_HOST"`
	LegacyPort     int    `envconfig:"EVENTCORE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"EVENTCORE_DB_USER"`
	LegacyPassword string `envconfig:"EVENTCORE_DB_PASSWORD"`
	LegacyName     string `envconfig:"EVENTCORE_DB_NAME"`
	LegacySSLMode  string `envconfig:"EVENTCORE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"EVENTCORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"EVENTCORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"EVENTCORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"EVENTCORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery logs statements slower than this at warn; zero disables it.
	SlowQuery time.Duration `envconfig:"EVENTCORE_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"EVENTCORE_REDIS_URL"`
	Address      string        `envconfig:"EVENTCORE_REDIS_ADDR"`
	Password     string        `envconfig:"EVENTCORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"EVENTCORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"EVENTCORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"EVENTCORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"EVENTCORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"EVENTCORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"EVENTCORE_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"EVENTCORE_REDIS_KEY_PREFIX" default:"evq"`
}

// Enabled reports whether a redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"EVENTCORE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"EVENTCORE_AUTO_MIGRATE" default:"false"`
}

type EventsConfig struct {
	BatchSize          int           `envconfig:"EVENTCORE_EVENTS_BATCH_SIZE" default:"100"`
	DefaultMaxRetries  int           `envconfig:"EVENTCORE_EVENTS_MAX_RETRIES" default:"2"`
	RetryBackoffBase   time.Duration `envconfig:"EVENTCORE_EVENTS_RETRY_BACKOFF_BASE" default:"30s"`
	RetryBackoffMax    time.Duration `envconfig:"EVENTCORE_EVENTS_RETRY_BACKOFF_MAX" default:"10m"`
	TickInterval       time.Duration `envconfig:"EVENTCORE_EVENTS_TICK_INTERVAL" default:"15s"`
	StaleProcessingTTL time.Duration `envconfig:"EVENTCORE_EVENTS_STALE_PROCESSING_TTL" default:"15m"`
	ImmediateDispatch  bool          `envconfig:"EVENTCORE_EVENTS_IMMEDIATE_DISPATCH" default:"true"`
	HandlerRulesPath   string        `envconfig:"EVENTCORE_EVENTS_HANDLER_RULES" default:"config/handlers.yaml"`
	IdempotencyTTL     time.Duration `envconfig:"EVENTCORE_EVENTS_IDEMPOTENCY_TTL" default:"720h"`
}

type CleanupConfig struct {
	Enabled                   bool          `envconfig:"EVENTCORE_CLEANUP_ENABLED" default:"true"`
	RetentionDays             int           `envconfig:"EVENTCORE_CLEANUP_RETENTION_DAYS" default:"30"`
	BatchSize                 int           `envconfig:"EVENTCORE_CLEANUP_BATCH_SIZE" default:"1000"`
	NotificationRetentionDays int           `envconfig:"EVENTCORE_CLEANUP_NOTIFICATION_RETENTION_DAYS" default:"90"`
	Interval                  time.Duration `envconfig:"EVENTCORE_CLEANUP_INTERVAL" default:"24h"`
}

type PubSubConfig struct {
	ProjectID         string `envconfig:"EVENTCORE_GCP_PROJECT_ID"`
	NotificationTopic string `envconfig:"EVENTCORE_PUBSUB_NOTIFICATION_TOPIC"`
	// CreateTopic creates a missing topic at startup, for emulators and dev projects.
	CreateTopic    bool          `envconfig:"EVENTCORE_PUBSUB_CREATE_TOPIC" default:"false"`
	PublishTimeout time.Duration `envconfig:"EVENTCORE_PUBSUB_PUBLISH_TIMEOUT" default:"10s"`
}

// Enabled reports whether notification hand-off through Pub/Sub is configured.
func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.ProjectID) != "" && strings.TrimSpace(p.NotificationTopic) != ""
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
