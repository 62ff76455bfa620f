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
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Changefeed   ChangefeedConfig
	Scan         ScanConfig
	Label        LabelConfig
	Gifts        GiftsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LIVESHOP_APP_ENV" required:"true"`
	Port         string `envconfig:"LIVESHOP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LIVESHOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LIVESHOP_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LIVESHOP_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LIVESHOP_DB_DSN"`
	Driver string `envconfig:"LIVESHOP_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LIVESHOP_DB_HOST"`
	LegacyPort     int    `envconfig:"LIVESHOP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LIVESHOP_DB_USER"`
	LegacyPassword string `envconfig:"LIVESHOP_DB_PASSWORD"`
	LegacyName     string `envconfig:"LIVESHOP_DB_NAME"`
	LegacySSLMode  string `envconfig:"LIVESHOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LIVESHOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LIVESHOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LIVESHOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LIVESHOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LIVESHOP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LIVESHOP_REDIS_ADDR"`
	Password     string        `envconfig:"LIVESHOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"LIVESHOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LIVESHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LIVESHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LIVESHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LIVESHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LIVESHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LIVESHOP_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LIVESHOP_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"LIVESHOP_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"LIVESHOP_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"LIVESHOP_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	EventsTopic        string `envconfig:"LIVESHOP_PUBSUB_EVENTS_TOPIC" default:"ls-domain-events"`
	EventsSubscription string `envconfig:"LIVESHOP_PUBSUB_EVENTS_SUBSCRIPTION"`
	LabelTopic         string `envconfig:"LIVESHOP_PUBSUB_LABEL_TOPIC" default:"ls-label-jobs"`
	LabelSubscription  string `envconfig:"LIVESHOP_PUBSUB_LABEL_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"LIVESHOP_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"LIVESHOP_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"LIVESHOP_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type ChangefeedConfig struct {
	Debounce   time.Duration `envconfig:"LIVESHOP_CHANGEFEED_DEBOUNCE" default:"250ms"`
	BufferSize int           `envconfig:"LIVESHOP_CHANGEFEED_BUFFER" default:"32"`
}

type ScanConfig struct {
	TrailSize int `envconfig:"LIVESHOP_SCAN_TRAIL_SIZE" default:"50"`
}

type LabelConfig struct {
	ShopName     string `envconfig:"LIVESHOP_LABEL_SHOP_NAME" default:"LiveShop"`
	BaseURL      string `envconfig:"LIVESHOP_LABEL_BASE_URL" default:"https://liveshop.app"`
	PrinterURL   string `envconfig:"LIVESHOP_LABEL_PRINTER_URL"`
	PrinterToken string `envconfig:"LIVESHOP_LABEL_PRINTER_TOKEN"`
}

type GiftsConfig struct {
	EvaluateOnPayment bool `envconfig:"LIVESHOP_GIFTS_EVALUATE_ON_PAYMENT" default:"true"`
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
