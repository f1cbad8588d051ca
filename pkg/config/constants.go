package config

const (
	EnvPrefix = "EVENTCORE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	defaultSQLitePath = "eventcore.db"
)

const (
	EnvAppEnv     = "EVENTCORE_APP_ENV"
	EnvPort       = "EVENTCORE_APP_PORT"
	EnvDBDSN      = "EVENTCORE_DB_DSN"
	EnvDBHost     = "EVENTCORE_DB_HOST"
	EnvDBUser     = "EVENTCORE_DB_USER"
	EnvDBName     = "EVENTCORE_DB_NAME"
	EnvUseSQLite  = "EVENTCORE_USE_SQLITE"
	EnvRedisURL   = "EVENTCORE_REDIS_URL"
	EnvBatchSize  = "EVENTCORE_EVENTS_BATCH_SIZE"
	EnvMaxRetries = "EVENTCORE_EVENTS_MAX_RETRIES"
	EnvCleanupOn  = "EVENTCORE_CLEANUP_ENABLED"
	EnvRetention  = "EVENTCORE_CLEANUP_RETENTION_DAYS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
