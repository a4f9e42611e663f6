package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Chrome    ChromeConfig
	Print     PrintConfig
	Theme     ThemeConfig
	Source    SourceConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Database  DatabaseConfig
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

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
	RenderRateLimit  float64 // Render requests per second per client; 0 disables limiting
	RenderRateBurst  int
}

// ChromeConfig holds headless browser settings
type ChromeConfig struct {
	RemoteURL            string        // DevTools websocket of an existing browser; empty starts a local one
	NoSandbox            bool          // Required when running as root in containers
	Timeout              time.Duration // Upper bound of a single browser operation
	MaxConcurrentRenders int           // Open tabs across all sessions
}

// PrintConfig holds print pipeline settings
type PrintConfig struct {
	MountSettleTimeout   time.Duration // Wait for mounted content per strategy
	PrintFallbackTimeout time.Duration // Completes a document when the dialog never signals
	BatchDelay           time.Duration // Pause between documents of a batch
	MinArtifactBytes     int           // Blank capture floor
	SessionRetention     time.Duration // How long finished sessions stay queryable
	SubscriberBuffer     int           // Lifecycle events buffered per subscriber
	TemplateDir          string        // Overrides the embedded templates
	DownloadDir          string
	DownloadBaseURL      string
	DownloadTTL          time.Duration
	CleanupInterval      time.Duration
}

// ThemeConfig overrides the built-in document theme
type ThemeConfig struct {
	FontFamily       string
	FontSizePt       float64
	TextColor        string
	PrimaryColor     string
	HeaderBackground string
	BorderColor      string
	StripeColor      string
	LogoURL          string
	FooterText       string
}

// SourceConfig holds the upstream document API settings
type SourceConfig struct {
	BaseURL string
	Timeout time.Duration
	APIKey  string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled     bool
	Host        string
	Port        int
	Password    string
	DB          int
	DocumentTTL time.Duration // Cache lifetime of fetched documents
}

// Addr returns host:port
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// StorageConfig holds S3-compatible storage settings for shared artifacts
type StorageConfig struct {
	Enabled           bool
	Endpoint          string
	Region            string
	Bucket            string
	AccessKey         string
	SecretKey         string
	UseSSL            bool
	UsePathStyle      bool
	PresignExpiration time.Duration
	MaxShareBytes     int
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Enabled         bool
	Driver          string // postgres, sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	Path            string // sqlite file
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	JobRetention    time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsInterval   time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with DOCPRINT_ prefix (e.g., DOCPRINT_CHROME_REMOTE_URL)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("DOCPRINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
			RenderRateLimit:  v.GetFloat64("http.render_rate_limit"),
			RenderRateBurst:  v.GetInt("http.render_rate_burst"),
		},
		Chrome: ChromeConfig{
			RemoteURL:            v.GetString("chrome.remote_url"),
			NoSandbox:            v.GetBool("chrome.no_sandbox"),
			Timeout:              v.GetDuration("chrome.timeout"),
			MaxConcurrentRenders: v.GetInt("chrome.max_concurrent_renders"),
		},
		Print: PrintConfig{
			MountSettleTimeout:   v.GetDuration("print.mount_settle_timeout"),
			PrintFallbackTimeout: v.GetDuration("print.print_fallback_timeout"),
			BatchDelay:           v.GetDuration("print.batch_delay"),
			MinArtifactBytes:     v.GetInt("print.min_artifact_bytes"),
			SessionRetention:     v.GetDuration("print.session_retention"),
			SubscriberBuffer:     v.GetInt("print.subscriber_buffer"),
			TemplateDir:          v.GetString("print.template_dir"),
			DownloadDir:          v.GetString("print.download_dir"),
			DownloadBaseURL:      v.GetString("print.download_base_url"),
			DownloadTTL:          v.GetDuration("print.download_ttl"),
			CleanupInterval:      v.GetDuration("print.cleanup_interval"),
		},
		Theme: ThemeConfig{
			FontFamily:       v.GetString("theme.font_family"),
			FontSizePt:       v.GetFloat64("theme.font_size_pt"),
			TextColor:        v.GetString("theme.text_color"),
			PrimaryColor:     v.GetString("theme.primary_color"),
			HeaderBackground: v.GetString("theme.header_background"),
			BorderColor:      v.GetString("theme.border_color"),
			StripeColor:      v.GetString("theme.stripe_color"),
			LogoURL:          v.GetString("theme.logo_url"),
			FooterText:       v.GetString("theme.footer_text"),
		},
		Source: SourceConfig{
			BaseURL: v.GetString("source.base_url"),
			Timeout: v.GetDuration("source.timeout"),
			APIKey:  v.GetString("source.api_key"),
		},
		Redis: RedisConfig{
			Enabled:     v.GetBool("redis.enabled"),
			Host:        v.GetString("redis.host"),
			Port:        v.GetInt("redis.port"),
			Password:    v.GetString("redis.password"),
			DB:          v.GetInt("redis.db"),
			DocumentTTL: v.GetDuration("redis.document_ttl"),
		},
		Storage: StorageConfig{
			Enabled:           v.GetBool("storage.enabled"),
			Endpoint:          v.GetString("storage.endpoint"),
			Region:            v.GetString("storage.region"),
			Bucket:            v.GetString("storage.bucket"),
			AccessKey:         v.GetString("storage.access_key"),
			SecretKey:         v.GetString("storage.secret_key"),
			UseSSL:            v.GetBool("storage.use_ssl"),
			UsePathStyle:      v.GetBool("storage.use_path_style"),
			PresignExpiration: v.GetDuration("storage.presign_expiration"),
			MaxShareBytes:     v.GetInt("storage.max_share_bytes"),
		},
		Database: DatabaseConfig{
			Enabled:         v.GetBool("database.enabled"),
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			Path:            v.GetString("database.path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			JobRetention:    v.GetDuration("database.job_retention"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
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
		cfg.App.Name = "docprint"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
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
	// WriteTimeout stays 0 unless configured: SSE streams stay open for a whole session
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 5 << 20 // 5MB
	}
	// An empty origin list means no cross-origin requests until configured
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}

	if cfg.HTTP.RenderRateLimit > 0 && cfg.HTTP.RenderRateBurst == 0 {
		cfg.HTTP.RenderRateBurst = 10
	}

	if cfg.Chrome.Timeout == 0 {
		cfg.Chrome.Timeout = 30 * time.Second
	}
	if cfg.Chrome.MaxConcurrentRenders == 0 {
		cfg.Chrome.MaxConcurrentRenders = 4
	}

	if cfg.Print.MountSettleTimeout == 0 {
		cfg.Print.MountSettleTimeout = 3 * time.Second
	}
	if cfg.Print.PrintFallbackTimeout == 0 {
		cfg.Print.PrintFallbackTimeout = 5 * time.Second
	}
	if cfg.Print.BatchDelay == 0 {
		cfg.Print.BatchDelay = time.Second
	}
	if cfg.Print.MinArtifactBytes == 0 {
		cfg.Print.MinArtifactBytes = 1024
	}
	if cfg.Print.SessionRetention == 0 {
		cfg.Print.SessionRetention = 15 * time.Minute
	}
	if cfg.Print.SubscriberBuffer == 0 {
		cfg.Print.SubscriberBuffer = 64
	}
	if cfg.Print.DownloadDir == "" {
		cfg.Print.DownloadDir = "/data/downloads"
	}
	if cfg.Print.DownloadBaseURL == "" {
		cfg.Print.DownloadBaseURL = "/api/v1/print/downloads"
	}
	if cfg.Print.DownloadTTL == 0 {
		cfg.Print.DownloadTTL = 15 * time.Minute
	}
	if cfg.Print.CleanupInterval == 0 {
		cfg.Print.CleanupInterval = time.Minute
	}

	if cfg.Source.Timeout == 0 {
		cfg.Source.Timeout = 10 * time.Second
	}

	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.DocumentTTL == 0 {
		cfg.Redis.DocumentTTL = 5 * time.Minute
	}

	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.PresignExpiration == 0 {
		cfg.Storage.PresignExpiration = 15 * time.Minute
	}
	if cfg.Storage.MaxShareBytes == 0 {
		cfg.Storage.MaxShareBytes = 20 << 20 // 20MB
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
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
		cfg.Database.DBName = "docprint"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "docprint.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Database.JobRetention == 0 {
		cfg.Database.JobRetention = 90 * 24 * time.Hour
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 15 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Chrome.MaxConcurrentRenders < 0 {
		return fmt.Errorf("chrome.max_concurrent_renders cannot be negative")
	}
	if c.Print.MinArtifactBytes < 0 {
		return fmt.Errorf("print.min_artifact_bytes cannot be negative")
	}
	if c.Print.MountSettleTimeout < 0 || c.Print.PrintFallbackTimeout < 0 || c.Print.BatchDelay < 0 {
		return fmt.Errorf("print timeouts cannot be negative")
	}

	if c.Database.Enabled {
		switch c.Database.Driver {
		case "postgres", "sqlite":
		default:
			return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
		}
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
	}

	if c.Storage.Enabled {
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required when storage is enabled")
		}
		if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
			return fmt.Errorf("storage.access_key and storage.secret_key are required when storage is enabled")
		}
	}

	if c.Source.BaseURL != "" {
		if _, err := url.ParseRequestURI(c.Source.BaseURL); err != nil {
			return fmt.Errorf("source.base_url is not a valid URL: %w", err)
		}
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Database.Enabled && c.Database.Driver == "postgres" {
			if c.Database.Password == "" {
				return fmt.Errorf("database.password is required in production")
			}
			if c.Database.SSLMode == "disable" {
				return fmt.Errorf("database.sslmode cannot be 'disable' in production")
			}
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Storage.Enabled && !c.Storage.UseSSL && !strings.HasPrefix(c.Storage.Endpoint, "https://") {
			return fmt.Errorf("storage must use TLS in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
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
