package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/portalpay/backend/internal/domain/split"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Brand     BrandConfig
	Split     SplitConfig
	Security  SecurityConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds JWT settings
type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
}

// BrandConfig holds brand resolution settings
type BrandConfig struct {
	// DefaultKey is assumed when no brand key can be resolved from the
	// request (query, body or host).
	DefaultKey string
	// HostSuffix enables brand derivation from the request host
	// subdomain (e.g. ".azurewebsites.net").
	HostSuffix string
	// Aliases maps deployment subdomains to canonical brand keys.
	Aliases map[string]string
	// PartnerContext marks a partner-deployment container.
	PartnerContext bool
	// ConfigBaseURL is the base URL of the brand-config service.
	ConfigBaseURL string
	// ConfigTimeout bounds a single brand-config fetch.
	ConfigTimeout time.Duration
	// CacheTTL bounds how long fetched brand configs are reused.
	CacheTTL time.Duration
}

// SplitConfig holds split fee and recipient settings
type SplitConfig struct {
	// PlatformRecipient receives the platform share on every split.
	PlatformRecipient string
	// PartnerWallet is the environment-level partner wallet fallback.
	PartnerWallet string
	// PlatformBps / PartnerBps are environment fee fallbacks in basis
	// points; zero means unset.
	PlatformBps int
	PartnerBps  int
}

// SecurityConfig holds CSRF and origin checking settings
type SecurityConfig struct {
	// CSRFDisable turns the same-origin check off (development only).
	CSRFDisable bool
	// TrustedOrigins are exact origins allowed for state-changing
	// requests. Entries starting with "*." match any subdomain, e.g.
	// "https://*.azurewebsites.net".
	TrustedOrigins []string
	// APIKeys maps gateway subscription keys to the scopes they grant.
	APIKeys map[string][]string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with PORTALPAY_ prefix (e.g., PORTALPAY_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("PORTALPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("jwt.secret"),
			Expiration: v.GetDuration("jwt.expiration"),
			Issuer:     v.GetString("jwt.issuer"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Brand: BrandConfig{
			DefaultKey:     v.GetString("brand.default_key"),
			HostSuffix:     v.GetString("brand.host_suffix"),
			Aliases:        v.GetStringMapString("brand.aliases"),
			PartnerContext: v.GetBool("brand.partner_context"),
			ConfigBaseURL:  v.GetString("brand.config_base_url"),
			ConfigTimeout:  v.GetDuration("brand.config_timeout"),
			CacheTTL:       v.GetDuration("brand.cache_ttl"),
		},
		Split: SplitConfig{
			PlatformRecipient: v.GetString("split.platform_recipient"),
			PartnerWallet:     v.GetString("split.partner_wallet"),
			PlatformBps:       v.GetInt("split.platform_bps"),
			PartnerBps:        v.GetInt("split.partner_bps"),
		},
		Security: SecurityConfig{
			CSRFDisable:    v.GetBool("security.csrf_disable"),
			TrustedOrigins: v.GetStringSlice("security.trusted_origins"),
			APIKeys:        v.GetStringMapStringSlice("security.api_keys"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "portalpay-split"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "portalpay"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.Expiration == 0 {
		cfg.JWT.Expiration = 24 * time.Hour
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "portalpay-split"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB; split payloads are small
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 100
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	// NOTE: CORS origins intentionally have no "*" fallback. An empty list
	// means no cross-origin requests are allowed until explicitly configured.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "X-Wallet"}
	}

	if cfg.Brand.DefaultKey == "" {
		cfg.Brand.DefaultKey = split.PlatformBrandKey
	}
	if cfg.Brand.HostSuffix == "" {
		cfg.Brand.HostSuffix = ".azurewebsites.net"
	}
	if cfg.Brand.Aliases == nil {
		cfg.Brand.Aliases = map[string]string{"icunow": "icunow-store"}
	}
	if cfg.Brand.ConfigTimeout == 0 {
		cfg.Brand.ConfigTimeout = 5 * time.Second
	}
	if cfg.Brand.CacheTTL == 0 {
		cfg.Brand.CacheTTL = time.Minute
	}

	// Honor the bare environment names carried over from earlier
	// deployments of the portal.
	if cfg.Split.PlatformRecipient == "" {
		cfg.Split.PlatformRecipient = firstEnv("RECIPIENT_ADDRESS", "PLATFORM_WALLET")
	}
	if cfg.Split.PartnerWallet == "" {
		cfg.Split.PartnerWallet = os.Getenv("PARTNER_WALLET")
	}
	if cfg.Split.PlatformBps == 0 {
		cfg.Split.PlatformBps = envBps("PLATFORM_SPLIT_BPS")
	}
	if cfg.Split.PartnerBps == 0 {
		cfg.Split.PartnerBps = envBps("PARTNER_SPLIT_BPS")
	}
	// Fee values are sanitized at the edge; zero keeps meaning "unset".
	cfg.Split.PlatformBps = split.ClampBps(float64(cfg.Split.PlatformBps))
	cfg.Split.PartnerBps = split.ClampBps(float64(cfg.Split.PartnerBps))

	if len(cfg.Security.TrustedOrigins) == 0 {
		cfg.Security.TrustedOrigins = []string{"https://*" + cfg.Brand.HostSuffix}
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if !split.IsHexAddress(c.Split.PlatformRecipient) {
			return fmt.Errorf("split.platform_recipient must be a valid hex address in production")
		}
		if c.Security.CSRFDisable {
			return fmt.Errorf("security.csrf_disable must be false in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// SplitDefaults converts config into the domain-level defaults injected
// into the split service.
func (c *Config) SplitDefaults() split.Defaults {
	return split.Defaults{
		PlatformRecipient: c.Split.PlatformRecipient,
		PartnerWallet:     c.Split.PartnerWallet,
		PlatformBps:       c.Split.PlatformBps,
		PartnerBps:        c.Split.PartnerBps,
		DefaultBrandKey:   c.Brand.DefaultKey,
		PartnerContext:    c.Brand.PartnerContext,
		HostSuffix:        c.Brand.HostSuffix,
		Aliases:           split.AliasTable(c.Brand.Aliases),
	}
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(os.Getenv(n)); v != "" {
			return v
		}
	}
	return ""
}

func envBps(name string) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
