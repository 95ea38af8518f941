package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = "POSSYNC"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv          = "POSSYNC_APP_ENV"
	EnvPort            = "POSSYNC_APP_PORT"
	EnvTerminalID      = "POSSYNC_TERMINAL_ID"
	EnvStoreID         = "POSSYNC_STORE_ID"
	EnvLocalStorePath  = "POSSYNC_LOCAL_STORE_PATH"
	EnvRemoteBaseURL   = "POSSYNC_REMOTE_BASE_URL"
	EnvRemoteJWTSecret = "POSSYNC_REMOTE_JWT_SECRET"
	EnvProbeURL        = "POSSYNC_REACHABILITY_PROBE_URL"
	EnvDBDSN           = "POSSYNC_DB_DSN"
	EnvDBHost          = "POSSYNC_DB_HOST"
	EnvDBUser          = "POSSYNC_DB_USER"
	EnvDBName          = "POSSYNC_DB_NAME"
	EnvRedisURL        = "POSSYNC_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

// Config is shared by the terminal agent and the remote API; each binary reads
// the sections it needs.
type Config struct {
	App          AppConfig
	Terminal     TerminalConfig
	LocalStore   LocalStoreConfig
	Remote       RemoteConfig
	Reachability ReachabilityConfig
	Sync         SyncConfig
	Redis        RedisConfig
	DB           DBConfig
	Metrics      MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Reachability.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadRemoteAPI loads the config and additionally requires a database DSN.
func LoadRemoteAPI() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"POSSYNC_APP_ENV" required:"true"`
	Port         string `envconfig:"POSSYNC_APP_PORT" default:"8090"`
	LogLevel     string `envconfig:"POSSYNC_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"POSSYNC_LOG_WARN_STACK" default:"false"`
	// AllowedOrigins lists the browser origins the till UI is served from.
	AllowedOrigins []string `envconfig:"POSSYNC_APP_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type TerminalConfig struct {
	ID      string `envconfig:"POSSYNC_TERMINAL_ID" default:"terminal-0"`
	StoreID string `envconfig:"POSSYNC_STORE_ID" default:"store-0"`
}

type LocalStoreConfig struct {
	Enabled bool   `envconfig:"POSSYNC_LOCAL_STORE_ENABLED" default:"true"`
	Path    string `envconfig:"POSSYNC_LOCAL_STORE_PATH" default:"possync.db"`
}

type RemoteConfig struct {
	BaseURL   string        `envconfig:"POSSYNC_REMOTE_BASE_URL" default:"http://localhost:8091"`
	Timeout   time.Duration `envconfig:"POSSYNC_REMOTE_TIMEOUT" default:"10s"`
	JWTSecret string        `envconfig:"POSSYNC_REMOTE_JWT_SECRET"`
	JWTIssuer string        `envconfig:"POSSYNC_REMOTE_JWT_ISSUER" default:"possync"`
	TokenTTL  time.Duration `envconfig:"POSSYNC_REMOTE_TOKEN_TTL" default:"5m"`
}

type ReachabilityConfig struct {
	// ProbeURL defaults to the remote base URL + /healthz when empty.
	ProbeURL     string        `envconfig:"POSSYNC_REACHABILITY_PROBE_URL"`
	ProbeTimeout time.Duration `envconfig:"POSSYNC_REACHABILITY_PROBE_TIMEOUT" default:"3s"`
	PollInterval time.Duration `envconfig:"POSSYNC_REACHABILITY_POLL_INTERVAL" default:"10s"`
	SettleDelay  time.Duration `envconfig:"POSSYNC_REACHABILITY_SETTLE_DELAY" default:"1500ms"`
	Signal       string        `envconfig:"POSSYNC_REACHABILITY_SIGNAL" default:"interfaces"`
}

const (
	SignalInterfaces = "interfaces"
	SignalManual     = "manual"
)

func (r ReachabilityConfig) validate() error {
	switch strings.ToLower(r.Signal) {
	case SignalInterfaces, SignalManual:
	default:
		return fmt.Errorf("unsupported reachability signal %q", r.Signal)
	}
	if r.ProbeTimeout <= 0 {
		return fmt.Errorf("reachability probe timeout must be positive")
	}
	if r.PollInterval <= 0 {
		return fmt.Errorf("reachability poll interval must be positive")
	}
	return nil
}

// ResolveProbeURL returns the explicit probe URL or the remote health endpoint.
func (c *Config) ResolveProbeURL() string {
	if c.Reachability.ProbeURL != "" {
		return c.Reachability.ProbeURL
	}
	return strings.TrimRight(c.Remote.BaseURL, "/") + "/healthz"
}

type SyncConfig struct {
	MaxRetries int `envconfig:"POSSYNC_SYNC_MAX_RETRIES" default:"3"`
	// SaleIdempotency lets the remote API drop replayed sale inserts carrying a
	// client_ref it has already stored.
	SaleIdempotency bool          `envconfig:"POSSYNC_SYNC_SALE_IDEMPOTENCY" default:"false"`
	IdempotencyTTL  time.Duration `envconfig:"POSSYNC_SYNC_IDEMPOTENCY_TTL" default:"720h"`
	DrainLockTTL    time.Duration `envconfig:"POSSYNC_SYNC_DRAIN_LOCK_TTL" default:"2m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"POSSYNC_REDIS_URL"`
	Address      string        `envconfig:"POSSYNC_REDIS_ADDR"`
	Password     string        `envconfig:"POSSYNC_REDIS_PASSWORD"`
	DB           int           `envconfig:"POSSYNC_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"POSSYNC_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"POSSYNC_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"POSSYNC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"POSSYNC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"POSSYNC_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type DBConfig struct {
	DSN    string `envconfig:"POSSYNC_DB_DSN"`
	Driver string `envconfig:"POSSYNC_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"POSSYNC_DB_HOST"`
	LegacyPort     int    `envconfig:"POSSYNC_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"POSSYNC_DB_USER"`
	LegacyPassword string `envconfig:"POSSYNC_DB_PASSWORD"`
	LegacyName     string `envconfig:"POSSYNC_DB_NAME"`
	LegacySSLMode  string `envconfig:"POSSYNC_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"POSSYNC_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"POSSYNC_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"POSSYNC_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"POSSYNC_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	AutoMigrate     bool          `envconfig:"POSSYNC_DB_AUTO_MIGRATE" default:"false"`
}

type MetricsConfig struct {
	Enabled bool   `envconfig:"POSSYNC_METRICS_ENABLED" default:"true"`
	Path    string `envconfig:"POSSYNC_METRICS_PATH" default:"/metrics"`
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
