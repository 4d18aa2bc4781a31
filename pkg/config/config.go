package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "YARDGATE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"

	EnvAppEnv      = "YARDGATE_APP_ENV"
	EnvPort        = "YARDGATE_APP_PORT"
	EnvLocation    = "YARDGATE_LOCATION"
	EnvStoreDriver = "YARDGATE_STORE_DRIVER"
	EnvDBDSN       = "YARDGATE_DB_DSN"
	EnvDBHost      = "YARDGATE_DB_HOST"
	EnvDBUser      = "YARDGATE_DB_USER"
	EnvDBName      = "YARDGATE_DB_NAME"
	EnvRedisURL    = "YARDGATE_REDIS_URL"
	EnvReportsTZ   = "YARDGATE_REPORTS_TIMEZONE"
	EnvCORSOrigins = "YARDGATE_CORS_ALLOWED_ORIGINS"
	EnvSubmitLimit = "YARDGATE_SUBMIT_RATE_LIMIT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Store        StoreConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Reports      ReportsConfig
	CORS         CORSConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Store.validate(); err != nil {
		return nil, err
	}
	if cfg.Store.UsesDatabase() {
		if err := cfg.DB.ensureDSN(cfg.Store.Driver); err != nil {
			return nil, err
		}
	}
	if _, err := cfg.Reports.Location(); err != nil {
		return nil, err
	}
	if err := cfg.RateLimit.validate(); err != nil {
		return nil, err
	}
	cfg.CORS.normalize()
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"YARDGATE_APP_ENV" required:"true"`
	Port         string `envconfig:"YARDGATE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"YARDGATE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"YARDGATE_LOG_WARN_STACK" default:"false"`
	// Location is the operating node new cycles are attributed to when the
	// desk does not name one.
	Location string `envconfig:"YARDGATE_LOCATION" default:"main-yard"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type StoreConfig struct {
	Driver string `envconfig:"YARDGATE_STORE_DRIVER" default:"memory"`
}

// UsesDatabase reports whether records live in a SQL database rather than
// process memory.
func (s StoreConfig) UsesDatabase() bool {
	return s.normalized() != StoreDriverMemory
}

func (s StoreConfig) normalized() string {
	driver := strings.ToLower(strings.TrimSpace(s.Driver))
	if driver == "" {
		return StoreDriverMemory
	}
	return driver
}

func (s *StoreConfig) validate() error {
	switch s.normalized() {
	case StoreDriverMemory, StoreDriverPostgres, StoreDriverSQLite:
		s.Driver = s.normalized()
		return nil
	}
	return fmt.Errorf("%s must be one of %s, %s, %s (got %q)", EnvStoreDriver,
		StoreDriverMemory, StoreDriverPostgres, StoreDriverSQLite, s.Driver)
}

type DBConfig struct {
	DSN    string `envconfig:"YARDGATE_DB_DSN"`
	Driver string `envconfig:"YARDGATE_DB_DRIVER"`

	LegacyHost     string `envconfig:"YARDGATE_DB_HOST"`
	LegacyPort     int    `envconfig:"YARDGATE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"YARDGATE_DB_USER"`
	LegacyPassword string `envconfig:"YARDGATE_DB_PASSWORD"`
	LegacyName     string `envconfig:"YARDGATE_DB_NAME"`
	LegacySSLMode  string `envconfig:"YARDGATE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"YARDGATE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"YARDGATE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"YARDGATE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"YARDGATE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"YARDGATE_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"YARDGATE_REDIS_URL"`
	Address      string        `envconfig:"YARDGATE_REDIS_ADDR"`
	Password     string        `envconfig:"YARDGATE_REDIS_PASSWORD"`
	DB           int           `envconfig:"YARDGATE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"YARDGATE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"YARDGATE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"YARDGATE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"YARDGATE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"YARDGATE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint is configured. Without one the
// API skips idempotent replay.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"YARDGATE_AUTO_MIGRATE" default:"false"`
}

type ReportsConfig struct {
	Timezone string `envconfig:"YARDGATE_REPORTS_TIMEZONE" default:"UTC"`
}

// Location resolves the timezone used to bucket flow reports by calendar day.
func (r ReportsConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(r.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", EnvReportsTZ, name, err)
	}
	return loc, nil
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"YARDGATE_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (c *CORSConfig) normalize() {
	origins := make([]string, 0, len(c.AllowedOrigins))
	for _, origin := range c.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.AllowedOrigins = origins
}

// RateLimitConfig throttles desk and gate submissions per operator. A zero
// limit disables the throttle; it also stays off without redis.
type RateLimitConfig struct {
	SubmitLimit  int64         `envconfig:"YARDGATE_SUBMIT_RATE_LIMIT" default:"0"`
	SubmitWindow time.Duration `envconfig:"YARDGATE_SUBMIT_RATE_WINDOW" default:"1m"`
}

func (r RateLimitConfig) Enabled() bool {
	return r.SubmitLimit > 0
}

func (r RateLimitConfig) validate() error {
	if r.SubmitLimit < 0 {
		return fmt.Errorf("%s must be >= 0 (got %d)", EnvSubmitLimit, r.SubmitLimit)
	}
	if r.Enabled() && r.SubmitWindow <= 0 {
		return fmt.Errorf("YARDGATE_SUBMIT_RATE_WINDOW must be positive when %s is set", EnvSubmitLimit)
	}
	return nil
}

func (db *DBConfig) ensureDSN(storeDriver string) error {
	if db.Driver == "" {
		db.Driver = storeDriver
	}
	if db.DSN != "" {
		return nil
	}
	if db.Driver == StoreDriverSQLite {
		db.DSN = "file:yardgate.db?cache=shared"
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
