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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Telegram     TelegramConfig
	Store        StoreConfig
	Receipt      ReceiptConfig
	Session      SessionConfig
	FX           FXConfig
	API          APIConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if _, err := cfg.Store.Location(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", EnvStoreTimezone, err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SHOPKEEPER_APP_ENV" required:"true"`
	Port         string `envconfig:"SHOPKEEPER_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"SHOPKEEPER_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"SHOPKEEPER_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"SHOPKEEPER_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SHOPKEEPER_SERVICE_KIND" default:"bot"`
}

type DBConfig struct {
	DSN    string `envconfig:"SHOPKEEPER_DB_DSN"`
	Driver string `envconfig:"SHOPKEEPER_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"SHOPKEEPER_DB_HOST"`
	Port     int    `envconfig:"SHOPKEEPER_DB_PORT" default:"5432"`
	User     string `envconfig:"SHOPKEEPER_DB_USER"`
	Password string `envconfig:"SHOPKEEPER_DB_PASSWORD"`
	Name     string `envconfig:"SHOPKEEPER_DB_NAME"`
	SSLMode  string `envconfig:"SHOPKEEPER_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"SHOPKEEPER_SQLITE_PATH" default:"shopkeeper.db"`

	MaxOpenConns    int           `envconfig:"SHOPKEEPER_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"SHOPKEEPER_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"SHOPKEEPER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOPKEEPER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// RedisConfig is optional: an empty URL and address means sessions stay in memory.
type RedisConfig struct {
	URL          string        `envconfig:"SHOPKEEPER_REDIS_URL"`
	Address      string        `envconfig:"SHOPKEEPER_REDIS_ADDR"`
	Password     string        `envconfig:"SHOPKEEPER_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPKEEPER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPKEEPER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOPKEEPER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOPKEEPER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPKEEPER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOPKEEPER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SHOPKEEPER_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SHOPKEEPER_AUTO_MIGRATE" default:"false"`
}

type TelegramConfig struct {
	Token          string        `envconfig:"SHOPKEEPER_TELEGRAM_TOKEN"`
	AllowedUserIDs []int64       `envconfig:"SHOPKEEPER_TELEGRAM_ALLOWED_USER_IDS"`
	AdminChatIDs   []int64       `envconfig:"SHOPKEEPER_TELEGRAM_ADMIN_CHAT_IDS"`
	PollTimeout    int           `envconfig:"SHOPKEEPER_TELEGRAM_POLL_TIMEOUT" default:"30"`
	RateLimit      int64         `envconfig:"SHOPKEEPER_TELEGRAM_RATE_LIMIT" default:"30"`
	RateWindow     time.Duration `envconfig:"SHOPKEEPER_TELEGRAM_RATE_WINDOW" default:"1m"`
	Debug          bool          `envconfig:"SHOPKEEPER_TELEGRAM_DEBUG" default:"false"`
}

type StoreConfig struct {
	Name        string `envconfig:"SHOPKEEPER_STORE_NAME" default:"Do'kon"`
	SellerName  string `envconfig:"SHOPKEEPER_SELLER_NAME"`
	SellerPhone string `envconfig:"SHOPKEEPER_SELLER_PHONE"`
	Timezone    string `envconfig:"SHOPKEEPER_STORE_TIMEZONE" default:"Asia/Tashkent"`
	Brand       string `envconfig:"SHOPKEEPER_STORE_BRAND" default:"SRM"`
}

// Location resolves the configured store timezone.
func (s StoreConfig) Location() (*time.Location, error) {
	if strings.TrimSpace(s.Timezone) == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(s.Timezone)
}

type ReceiptConfig struct {
	Width     int      `envconfig:"SHOPKEEPER_RECEIPT_WIDTH" default:"576"`
	MinHeight int      `envconfig:"SHOPKEEPER_RECEIPT_MIN_HEIGHT" default:"720"`
	QRSize    int      `envconfig:"SHOPKEEPER_RECEIPT_QR_SIZE" default:"180"`
	FontPaths []string `envconfig:"SHOPKEEPER_RECEIPT_FONT_PATHS"`
	BoldPaths []string `envconfig:"SHOPKEEPER_RECEIPT_BOLD_FONT_PATHS"`
}

type SessionConfig struct {
	TTL           time.Duration `envconfig:"SHOPKEEPER_SESSION_TTL" default:"24h"`
	SweepInterval time.Duration `envconfig:"SHOPKEEPER_SESSION_SWEEP_INTERVAL" default:"10m"`
}

type FXConfig struct {
	URL          string        `envconfig:"SHOPKEEPER_FX_URL" default:"https://cbu.uz/uz/arkhiv-kursov-valyut/json/USD/"`
	FallbackRate string        `envconfig:"SHOPKEEPER_FX_FALLBACK_RATE" default:"12800"`
	CacheTTL     time.Duration `envconfig:"SHOPKEEPER_FX_CACHE_TTL" default:"24h"`
	Timeout      time.Duration `envconfig:"SHOPKEEPER_FX_TIMEOUT" default:"10s"`
}

type APIConfig struct {
	Keys           []string      `envconfig:"SHOPKEEPER_API_KEYS"`
	AllowedOrigins []string      `envconfig:"SHOPKEEPER_API_ALLOWED_ORIGINS" default:"*"`
	RateLimit      int           `envconfig:"SHOPKEEPER_API_RATE_LIMIT" default:"120"`
	RateWindow     time.Duration `envconfig:"SHOPKEEPER_API_RATE_WINDOW" default:"1m"`
}

type CronConfig struct {
	Interval          time.Duration `envconfig:"SHOPKEEPER_CRON_INTERVAL" default:"1h"`
	LockTTL           time.Duration `envconfig:"SHOPKEEPER_CRON_LOCK_TTL" default:"10m"`
	JobTimeout        time.Duration `envconfig:"SHOPKEEPER_CRON_JOB_TIMEOUT" default:"2m"`
	ReportHour        int           `envconfig:"SHOPKEEPER_CRON_REPORT_HOUR" default:"8"`
	LowStockThreshold int64         `envconfig:"SHOPKEEPER_CRON_LOW_STOCK_THRESHOLD" default:"3"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.Driver = DriverSQLite
		db.DSN = db.SQLitePath
		return nil
	}

	missing := []string{}
	parts := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dbPartEnvVars {
		if parts[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
