package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	APIRateLimit  APIRateLimitConfig
	Security      SecurityConfig
	FeatureFlags  FeatureFlagsConfig
	Sales         SalesConfig
	Inventory     InventoryConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Outbox        OutboxConfig
	Cron          CronConfig
}

// Load reads the POS_* environment. Every invalid setting is reported
// together so a misconfigured deploy fails once, not once per variable.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	err := multierr.Combine(
		cfg.DB.ensureDSN(),
		cfg.JWT.validate(),
		cfg.Sales.validate(),
		cfg.Outbox.validate(),
	)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"POS_APP_ENV" required:"true"`
	Port         string `envconfig:"POS_APP_PORT" default:"8080"`
	ServiceName  string `envconfig:"POS_SERVICE_NAME" default:"pos-api"`
	LogLevel     string `envconfig:"POS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"POS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev) || strings.EqualFold(a.Env, "development")
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type DBConfig struct {
	DSN    string `envconfig:"POS_DB_DSN"`
	Driver string `envconfig:"POS_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"POS_DB_HOST"`
	Port     int    `envconfig:"POS_DB_PORT" default:"5432"`
	User     string `envconfig:"POS_DB_USER"`
	Password string `envconfig:"POS_DB_PASSWORD"`
	Name     string `envconfig:"POS_DB_NAME"`
	SSLMode  string `envconfig:"POS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"POS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"POS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"POS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"POS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the sqlite driver was selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, "sqlite")
}

type RedisConfig struct {
	URL          string        `envconfig:"POS_REDIS_URL" required:"true"`
	Password     string        `envconfig:"POS_REDIS_PASSWORD"`
	DB           int           `envconfig:"POS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"POS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"POS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"POS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"POS_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"POS_REDIS_WRITE_TIMEOUT" default:"3s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"POS_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"POS_JWT_ISSUER" default:"pos-backend"`
	ExpirationMinutes      int    `envconfig:"POS_JWT_EXPIRATION_MINUTES" default:"480"`
	RefreshTokenTTLMinutes int    `envconfig:"POS_REFRESH_TOKEN_TTL_MINUTES" default:"10080"`
}

func (j JWTConfig) validate() (err error) {
	if j.ExpirationMinutes <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvJWTExpMins))
	}
	if j.RefreshTokenTTLMinutes < j.ExpirationMinutes {
		err = multierr.Append(err, fmt.Errorf("%s must not be shorter than %s", EnvRefreshTokenTTLMinutes, EnvJWTExpMins))
	}
	return err
}

func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"POS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"POS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"POS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"POS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"POS_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"POS_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"POS_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"POS_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

// APIRateLimitConfig bounds per-IP request volume on the whole API.
type APIRateLimitConfig struct {
	Enabled  bool          `envconfig:"POS_API_RATE_LIMIT_ENABLED" default:"true"`
	Requests int           `envconfig:"POS_API_RATE_LIMIT_REQUESTS" default:"300"`
	Window   time.Duration `envconfig:"POS_API_RATE_LIMIT_WINDOW" default:"1m"`
}

type SecurityConfig struct {
	AllowedHosts []string `envconfig:"POS_SECURITY_ALLOWED_HOSTS"`
	SSLRedirect  bool     `envconfig:"POS_SECURITY_SSL_REDIRECT" default:"false"`
	HSTSSeconds  int64    `envconfig:"POS_SECURITY_HSTS_SECONDS" default:"31536000"`
	CORSOrigins  []string `envconfig:"POS_SECURITY_CORS_ORIGINS" default:"http://localhost:3000"`
	// TrustProxyHeaders keys rate limits on X-Forwarded-For and friends.
	// Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool `envconfig:"POS_SECURITY_TRUST_PROXY_HEADERS" default:"false"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"POS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"POS_AUTO_MIGRATE" default:"false"`
}

// SalesConfig drives pricing and ticket allocation for the sale coordinator.
type SalesConfig struct {
	TaxRateBasisPoints int    `envconfig:"POS_SALES_TAX_RATE_BPS" default:"1600"`
	TicketPrefix       string `envconfig:"POS_SALES_TICKET_PREFIX" default:"TKT"`
	TicketMaxAttempts  int    `envconfig:"POS_SALES_TICKET_MAX_ATTEMPTS" default:"3"`
}

func (s SalesConfig) validate() (err error) {
	if s.TaxRateBasisPoints < 0 || s.TaxRateBasisPoints > 10000 {
		err = multierr.Append(err, fmt.Errorf("%s must be between 0 and 10000", EnvSalesTaxRateBps))
	}
	if s.TicketMaxAttempts <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvSalesTicketMaxAttempt))
	}
	if strings.TrimSpace(s.TicketPrefix) == "" {
		err = multierr.Append(err, fmt.Errorf("%s must not be empty", EnvSalesTicketPrefix))
	}
	return err
}

type InventoryConfig struct {
	LowStockThreshold int `envconfig:"POS_INVENTORY_LOW_STOCK_THRESHOLD" default:"5"`
}

type EventingConfig struct {
	ConsumerIdempotencyTTL time.Duration `envconfig:"POS_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"POS_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"POS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"POS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	SalesTopic        string `envconfig:"POS_PUBSUB_SALES_TOPIC" default:"pos-sales-events"`
	SalesSubscription string `envconfig:"POS_PUBSUB_SALES_SUBSCRIPTION" default:"pos-sales-analytics"`
	InventoryTopic    string `envconfig:"POS_PUBSUB_INVENTORY_TOPIC" default:"pos-inventory-events"`
}

type BigQueryConfig struct {
	Dataset        string `envconfig:"POS_BIGQUERY_DATASET" default:"pos"`
	SaleLinesTable string `envconfig:"POS_BIGQUERY_SALE_LINES_TABLE" default:"sale_lines"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"POS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"POS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"POS_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"POS_OUTBOX_RETENTION" default:"720h"`
	PruneBatch     int           `envconfig:"POS_OUTBOX_PRUNE_BATCH" default:"500"`
}

func (o OutboxConfig) validate() error {
	if o.BatchSize <= 0 || o.MaxAttempts <= 0 {
		return fmt.Errorf("%s and %s must be positive", EnvOutboxBatchSize, EnvOutboxMaxAttempts)
	}
	return nil
}

type CronConfig struct {
	Interval time.Duration `envconfig:"POS_CRON_INTERVAL" default:"15m"`
	LockTTL  time.Duration `envconfig:"POS_CRON_LOCK_TTL" default:"10m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = "file:pos.db?_busy_timeout=5000"
		return nil
	}

	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	var missing []string
	for _, env := range legacyDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	user := url.User(db.User)
	if db.Password != "" {
		user = url.UserPassword(db.User, db.Password)
	}
	u := &url.URL{
		Scheme: "postgres",
		User:   user,
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
