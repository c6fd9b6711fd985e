package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Treasury     TreasuryConfig
	Payout       PayoutConfig
	Stripe       StripeConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.Treasury.Rate(); err != nil {
		return nil, err
	}
	if _, err := cfg.Payout.Weekday(); err != nil {
		return nil, err
	}
	if _, err := cfg.Payout.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BEATMARKET_APP_ENV" required:"true"`
	Port         string `envconfig:"BEATMARKET_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BEATMARKET_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BEATMARKET_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BEATMARKET_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BEATMARKET_DB_DSN"`
	Driver string `envconfig:"BEATMARKET_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BEATMARKET_DB_HOST"`
	LegacyPort     int    `envconfig:"BEATMARKET_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BEATMARKET_DB_USER"`
	LegacyPassword string `envconfig:"BEATMARKET_DB_PASSWORD"`
	LegacyName     string `envconfig:"BEATMARKET_DB_NAME"`
	LegacySSLMode  string `envconfig:"BEATMARKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BEATMARKET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BEATMARKET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BEATMARKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BEATMARKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BEATMARKET_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BEATMARKET_REDIS_ADDR"`
	Password     string        `envconfig:"BEATMARKET_REDIS_PASSWORD"`
	DB           int           `envconfig:"BEATMARKET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BEATMARKET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BEATMARKET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BEATMARKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BEATMARKET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BEATMARKET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// TreasuryConfig captures platform revenue rules.
type TreasuryConfig struct {
	CommissionRate string `envconfig:"BEATMARKET_TREASURY_COMMISSION_RATE" default:"0.125"`
	Currency       string `envconfig:"BEATMARKET_TREASURY_CURRENCY" default:"usd"`

	RevenueIdempotencyTTL time.Duration `envconfig:"BEATMARKET_TREASURY_REVENUE_IDEMPOTENCY_TTL" default:"720h"`
}

// Rate parses the configured commission rate and rejects values outside [0,1].
func (t TreasuryConfig) Rate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(t.CommissionRate))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid commission rate %q: %w", t.CommissionRate, err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("commission rate %s must be within [0,1]", rate)
	}
	return rate, nil
}

// PayoutConfig drives the weekly payout schedule.
type PayoutConfig struct {
	WeekdayName string        `envconfig:"BEATMARKET_PAYOUT_WEEKDAY" default:"Friday"`
	Hour        int           `envconfig:"BEATMARKET_PAYOUT_HOUR" default:"17"`
	Timezone    string        `envconfig:"BEATMARKET_PAYOUT_TIMEZONE" default:"UTC"`
	AutoStart   bool          `envconfig:"BEATMARKET_PAYOUT_AUTO_START" default:"true"`
	GatewayMode string        `envconfig:"BEATMARKET_PAYOUT_GATEWAY" default:"simulated"`
	SimDelay    time.Duration `envconfig:"BEATMARKET_PAYOUT_SIM_DELAY" default:"2s"`
	LockTTL     time.Duration `envconfig:"BEATMARKET_PAYOUT_LOCK_TTL" default:"1h"`
}

var weekdaysByName = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Weekday resolves the configured payout weekday.
func (p PayoutConfig) Weekday() (time.Weekday, error) {
	day, ok := weekdaysByName[strings.ToLower(strings.TrimSpace(p.WeekdayName))]
	if !ok {
		return 0, fmt.Errorf("invalid payout weekday %q", p.WeekdayName)
	}
	return day, nil
}

// Location resolves the configured payout timezone.
func (p PayoutConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(p.Timezone))
	if err != nil {
		return nil, fmt.Errorf("invalid payout timezone %q: %w", p.Timezone, err)
	}
	return loc, nil
}

type StripeConfig struct {
	APIKey string `envconfig:"BEATMARKET_STRIPE_API_KEY"`
	Env    string `envconfig:"BEATMARKET_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BEATMARKET_AUTO_MIGRATE" default:"false"`
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
