package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security" validate:"required"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Payment       PaymentConfig       `mapstructure:"payment"`
	Ledger        LedgerConfig        `mapstructure:"ledger"`
	Credits       CreditsConfig       `mapstructure:"credits"`
	Image         ImageConfig         `mapstructure:"image"`
	Events        EventsConfig        `mapstructure:"events"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source" validate:"required"`
}

type SecurityConfig struct {
	JWTSecret           string        `mapstructure:"jwt_secret" validate:"required,min=32"`
	AccessTokenDuration time.Duration `mapstructure:"access_token_duration" validate:"required,min=1m"`
	BCryptCost          int           `mapstructure:"bcrypt_cost" validate:"required,min=10,max=15"`
}

type PaymentConfig struct {
	KeyID           string        `mapstructure:"key_id" validate:"required"`
	KeySecret       string        `mapstructure:"key_secret" validate:"required"`
	WebhookSecret   string        `mapstructure:"webhook_secret"`
	BaseURL         string        `mapstructure:"base_url" validate:"required,url"`
	Currency        string        `mapstructure:"currency" validate:"required,len=3"`
	MinorUnitFactor int64         `mapstructure:"minor_unit_factor" validate:"required,min=1"`
	Timeout         time.Duration `mapstructure:"timeout" validate:"required"`
	Breaker         BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	OpenTimeout  time.Duration `mapstructure:"open_timeout"`
	MinRequests  uint32        `mapstructure:"min_requests"`
	FailureRatio float64       `mapstructure:"failure_ratio" validate:"min=0,max=1"`
}

type LedgerConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	SpreadsheetID       string        `mapstructure:"spreadsheet_id" validate:"required_if=Enabled true"`
	Range               string        `mapstructure:"range"`
	ServiceAccountEmail string        `mapstructure:"service_account_email" validate:"required_if=Enabled true"`
	PrivateKey          string        `mapstructure:"private_key" validate:"required_if=Enabled true"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ResyncInterval      time.Duration `mapstructure:"resync_interval"`
	ResyncBatch         int           `mapstructure:"resync_batch"`
	ResyncGrace         time.Duration `mapstructure:"resync_grace"`
}

type CreditsConfig struct {
	SignupBonus int64 `mapstructure:"signup_bonus" validate:"min=0"`
}

type ImageConfig struct {
	APIURL  string        `mapstructure:"api_url" validate:"omitempty,url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type EventsConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers      string        `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic" validate:"required_with=Brokers"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// BrokerList splits the comma separated broker setting.
func (c KafkaConfig) BrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(c.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// ApplyDefaults fills optional settings that the config file may omit.
func (c *Config) ApplyDefaults() {
	if c.Payment.BaseURL == "" {
		c.Payment.BaseURL = "https://api.razorpay.com"
	}
	if c.Payment.Currency == "" {
		c.Payment.Currency = "INR"
	}
	if c.Payment.MinorUnitFactor == 0 {
		c.Payment.MinorUnitFactor = 100
	}
	if c.Payment.Timeout == 0 {
		c.Payment.Timeout = 10 * time.Second
	}
	if c.Ledger.Range == "" {
		c.Ledger.Range = "Sheet1!A:L"
	}
	if c.Ledger.Timeout == 0 {
		c.Ledger.Timeout = 5 * time.Second
	}
	if c.Ledger.ResyncInterval == 0 {
		c.Ledger.ResyncInterval = time.Minute
	}
	if c.Ledger.ResyncBatch == 0 {
		c.Ledger.ResyncBatch = 50
	}
	if c.Ledger.ResyncGrace == 0 {
		c.Ledger.ResyncGrace = 2 * time.Minute
	}
	if c.Image.Timeout == 0 {
		c.Image.Timeout = 60 * time.Second
	}
	if c.Events.Kafka.WriteTimeout == 0 {
		c.Events.Kafka.WriteTimeout = 5 * time.Second
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "json"
	}
	if c.Observability.Metrics.Enabled && c.Observability.Metrics.Path == "" {
		c.Observability.Metrics.Path = "/metrics"
	}
}

// LoadConfigFromEnv builds the configuration for container deployments where
// no config.yml is mounted.
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("PORT", 4000),
			BaseURL:           getEnv("BASE_URL", "http://localhost:4000"),
			AllowedOrigins:    getEnv("ALLOWED_ORIGINS", "*"),
			ReadHeaderTimeout: getEnvAsDuration("READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("WRITE_TIMEOUT", 90*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DATABASE_URL", ""),
		},
		Security: SecurityConfig{
			JWTSecret:           getEnv("JWT_SECRET", ""),
			AccessTokenDuration: getEnvAsDuration("ACCESS_TOKEN_DURATION", 24*time.Hour),
			BCryptCost:          getEnvAsInt("BCRYPT_COST", 10),
		},
		Payment: PaymentConfig{
			KeyID:           getEnv("RAZORPAY_KEY_ID", ""),
			KeySecret:       getEnv("RAZORPAY_KEY_SECRET", ""),
			WebhookSecret:   getEnv("RAZORPAY_WEBHOOK_SECRET", ""),
			BaseURL:         getEnv("RAZORPAY_BASE_URL", ""),
			Currency:        getEnv("CURRENCY", ""),
			MinorUnitFactor: int64(getEnvAsInt("CURRENCY_MINOR_UNIT_FACTOR", 0)),
			Timeout:         getEnvAsDuration("PAYMENT_TIMEOUT", 0),
		},
		Ledger: LedgerConfig{
			Enabled:             getEnvAsBool("LEDGER_ENABLED", false),
			SpreadsheetID:       getEnv("SPREADSHEET_ID", ""),
			Range:               getEnv("LEDGER_RANGE", ""),
			ServiceAccountEmail: getEnv("GOOGLE_SERVICE_ACCOUNT_EMAIL", ""),
			PrivateKey:          getEnv("GOOGLE_PRIVATE_KEY", ""),
			Timeout:             getEnvAsDuration("LEDGER_TIMEOUT", 0),
		},
		Credits: CreditsConfig{
			SignupBonus: int64(getEnvAsInt("SIGNUP_BONUS_CREDITS", 5)),
		},
		Image: ImageConfig{
			APIURL: getEnv("CLIPDROP_API_URL", "https://clipdrop-api.co/text-to-image/v1"),
			APIKey: getEnv("CLIPDROP_API", ""),
		},
		Events: EventsConfig{
			Kafka: KafkaConfig{
				Brokers: getEnv("KAFKA_BROKERS", ""),
				Topic:   getEnv("KAFKA_TOPIC", "credit-marketplace.events"),
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: getEnvAsBool("METRICS_ENABLED", true),
				Path:    getEnv("METRICS_PATH", "/metrics"),
			},
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

var structValidator = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	var errs []string

	if err := structValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Ledger.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("ledger config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

// Origins returns the configured CORS origins.
func (c *ServerConfig) Origins() []string {
	if c.AllowedOrigins == "" {
		return []string{"*"}
	}
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *LedgerConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if !strings.Contains(c.Range, "!") {
		return fmt.Errorf("range %q must include a sheet name", c.Range)
	}
	return nil
}

// PEMPrivateKey restores newlines in keys that were flattened into a single
// env var or yaml line.
func (c *LedgerConfig) PEMPrivateKey() []byte {
	return []byte(strings.ReplaceAll(c.PrivateKey, `\n`, "\n"))
}
