package config

const (
	EnvPrefix = "SHOPKEEPER"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	EnvAppEnv        = "SHOPKEEPER_APP_ENV"
	EnvPort          = "SHOPKEEPER_APP_PORT"
	EnvDBDSN         = "SHOPKEEPER_DB_DSN"
	EnvDBHost        = "SHOPKEEPER_DB_HOST"
	EnvDBUser        = "SHOPKEEPER_DB_USER"
	EnvDBName        = "SHOPKEEPER_DB_NAME"
	EnvUseSQLite     = "SHOPKEEPER_USE_SQLITE"
	EnvRedisURL      = "SHOPKEEPER_REDIS_URL"
	EnvTelegramToken = "SHOPKEEPER_TELEGRAM_TOKEN"
	EnvAllowedUsers  = "SHOPKEEPER_TELEGRAM_ALLOWED_USER_IDS"
	EnvStoreName     = "SHOPKEEPER_STORE_NAME"
	EnvStoreTimezone = "SHOPKEEPER_STORE_TIMEZONE"
	EnvFXFallback    = "SHOPKEEPER_FX_FALLBACK_RATE"
)

var dbPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
