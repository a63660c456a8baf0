package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

const envPrefix = "REMIX"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Session   SessionConfig   `mapstructure:"session"`
	Quota     QuotaConfig     `mapstructure:"quota"`
	Remix     RemixConfig     `mapstructure:"remix"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Stripe    StripeConfig    `mapstructure:"stripe"`
	Mail      MailConfig      `mapstructure:"mail"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Worker    WorkerConfig    `mapstructure:"worker"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds a lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type RedisConfig struct {
	URL          string `mapstructure:"url"`
	KeyPrefix    string `mapstructure:"key_prefix"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	MaxRetries   int    `mapstructure:"max_retries"`
}

type SessionConfig struct {
	Secret          string        `mapstructure:"secret"`
	Issuer          string        `mapstructure:"issuer"`
	TTL             time.Duration `mapstructure:"ttl"`
	CookieName      string        `mapstructure:"cookie_name"`
	GuestCookieName string        `mapstructure:"guest_cookie_name"`
	CookieDomain    string        `mapstructure:"cookie_domain"`
	Secure          bool          `mapstructure:"secure"`
}

type QuotaConfig struct {
	FreeUses           int           `mapstructure:"free_uses"`
	GuestTTL           time.Duration `mapstructure:"guest_ttl"`
	PermissionCacheTTL time.Duration `mapstructure:"permission_cache_ttl"`
}

type RemixConfig struct {
	AllowGuests     bool `mapstructure:"allow_guests"`
	MaxContentChars int  `mapstructure:"max_content_chars"`
}

type GeminiConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Model           string        `mapstructure:"model"`
	APIKey          string        `mapstructure:"api_key"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxOutputTokens int           `mapstructure:"max_output_tokens"`
}

type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	PremiumDays   int    `mapstructure:"premium_days"`
}

type MailConfig struct {
	Driver            string        `mapstructure:"driver"`
	From              string        `mapstructure:"from"`
	To                string        `mapstructure:"to"`
	SMTP              SMTPConfig    `mapstructure:"smtp"`
	SESRegion         string        `mapstructure:"ses_region"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	BatchSize         int           `mapstructure:"batch_size"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	DispatchInProcess bool          `mapstructure:"dispatch_in_process"`
	Retention         time.Duration `mapstructure:"retention"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

type AdminConfig struct {
	Name     string `mapstructure:"name"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

// WorkerConfig is only read by the standalone mail worker.
type WorkerConfig struct {
	HealthPort int `mapstructure:"health_port"`
}

// Secrets are only ever read from the environment (REMIX_*), never from the yaml file.
type Secrets struct {
	SessionSecret       string `envconfig:"SESSION_SECRET"`
	DatabasePassword    string `envconfig:"DATABASE_PASSWORD"`
	GeminiAPIKey        string `envconfig:"GEMINI_API_KEY"`
	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	SMTPPassword        string `envconfig:"SMTP_PASSWORD"`
	AdminPassword       string `envconfig:"ADMIN_PASSWORD"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", 130*time.Second)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 135*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "remix")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "remix")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.key_prefix", "remix:")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.max_retries", 3)

	v.SetDefault("session.secret", "")
	v.SetDefault("session.issuer", "remix-api")
	v.SetDefault("session.ttl", 7*24*time.Hour)
	v.SetDefault("session.cookie_name", "remix_session")
	v.SetDefault("session.guest_cookie_name", "remix_guest")
	v.SetDefault("session.cookie_domain", "")
	v.SetDefault("session.secure", true)

	v.SetDefault("quota.free_uses", 3)
	v.SetDefault("quota.guest_ttl", 24*time.Hour)
	v.SetDefault("quota.permission_cache_ttl", time.Minute)

	v.SetDefault("remix.allow_guests", true)
	v.SetDefault("remix.max_content_chars", 10000)

	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("gemini.model", "gemini-2.0-flash-exp")
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.timeout", 120*time.Second)
	v.SetDefault("gemini.temperature", 0.7)
	v.SetDefault("gemini.max_output_tokens", 2000)

	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.webhook_secret", "")
	v.SetDefault("stripe.premium_days", 30)

	v.SetDefault("mail.driver", "smtp")
	v.SetDefault("mail.from", "no-reply@nextlogicai.com")
	v.SetDefault("mail.to", "support@nextlogicai.com")
	v.SetDefault("mail.smtp.host", "localhost")
	v.SetDefault("mail.smtp.port", 587)
	v.SetDefault("mail.smtp.username", "")
	v.SetDefault("mail.smtp.password", "")
	v.SetDefault("mail.ses_region", "us-east-1")
	v.SetDefault("mail.poll_interval", 10*time.Second)
	v.SetDefault("mail.batch_size", 20)
	v.SetDefault("mail.max_attempts", 5)
	v.SetDefault("mail.dispatch_in_process", false)
	v.SetDefault("mail.retention", 30*24*time.Hour)
	v.SetDefault("mail.cleanup_interval", time.Hour)

	v.SetDefault("cors.allow_origins", []string{
		"https://nextlogicai.com",
		"https://www.nextlogicai.com",
		"https://nextlogicai.netlify.app",
		"http://localhost:3000",
		"http://localhost:5000",
	})

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.rps", 5)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("admin.name", "Administrator")
	v.SetDefault("admin.email", "")
	v.SetDefault("admin.password", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", false)

	v.SetDefault("metrics.namespace", "remix")

	v.SetDefault("worker.health_port", 8081)
}

// LoadConfig reads config.yaml from the given directories (or . and ./config),
// then environment variables, then secrets.
func LoadConfig(paths ...string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var secrets Secrets
	if err := envconfig.Process(envPrefix, &secrets); err != nil {
		return nil, fmt.Errorf("failed to read secrets: %w", err)
	}
	config.applySecrets(secrets)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applySecrets(s Secrets) {
	overlay := func(dst *string, val string) {
		if val != "" {
			*dst = val
		}
	}
	overlay(&c.Session.Secret, s.SessionSecret)
	overlay(&c.Database.Password, s.DatabasePassword)
	overlay(&c.Gemini.APIKey, s.GeminiAPIKey)
	overlay(&c.Stripe.SecretKey, s.StripeSecretKey)
	overlay(&c.Stripe.WebhookSecret, s.StripeWebhookSecret)
	overlay(&c.Mail.SMTP.Password, s.SMTPPassword)
	overlay(&c.Admin.Password, s.AdminPassword)
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Session.Secret == "" {
		return errors.New("session secret is required (REMIX_SESSION_SECRET)")
	}
	if c.Quota.FreeUses < 0 {
		return errors.New("quota.free_uses must not be negative")
	}
	if c.Gemini.Timeout <= 0 {
		return errors.New("gemini.timeout must be positive")
	}
	if c.Server.RequestTimeout <= c.Gemini.Timeout {
		return fmt.Errorf("server.request_timeout (%s) must exceed gemini.timeout (%s)",
			c.Server.RequestTimeout, c.Gemini.Timeout)
	}
	switch c.Mail.Driver {
	case "smtp", "ses", "log":
	default:
		return fmt.Errorf("unknown mail driver %q", c.Mail.Driver)
	}
	if (c.Admin.Email == "") != (c.Admin.Password == "") {
		return errors.New("admin.email and admin password must be set together")
	}
	return nil
}
