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
	Database  DatabaseConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Storage   StorageConfig
	Renderer  RendererConfig
	Invoice   InvoiceConfig
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

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
	MaxHeaderBytes   int
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
	// SwaggerEnabled serves the API docs under /swagger; on by default
	// outside production
	SwaggerEnabled    bool
	SwaggerAllowedIPs []string
}

// Storage drivers
const (
	StorageDriverS3    = "s3"
	StorageDriverLocal = "local"
)

// DefaultLogoURL is the branding logo rendered when neither the order nor
// invoice.logo_url supplies one
const DefaultLogoURL = "https://bvnjxbbwxsibslembmty.supabase.co/storage/v1/object/public/product-images/logo.png"

// StorageConfig holds artifact storage settings
type StorageConfig struct {
	Driver string // s3 or local

	// S3-compatible object storage
	Endpoint          string
	Region            string
	Bucket            string
	AccessKey         string
	SecretKey         string
	UseSSL            bool
	UsePathStyle      bool
	// PresignExpiration is the S3 link lifetime for callers that pass no ttl.
	// The artifact store always passes one, so it applies only to direct use
	// of the S3 backend.
	PresignExpiration time.Duration

	// Local filesystem storage
	LocalBasePath      string
	LocalBaseURL       string
	LocalSigningSecret string
}

// RendererConfig holds headless browser settings
type RendererConfig struct {
	Environment   string // auto, managed, interactive
	ExecPath      string
	RemoteURL     string
	Flags         []string
	Timeout       time.Duration
	MaxConcurrent int
	PaperSize     string
	Orientation   string
}

// InvoiceConfig holds invoice pipeline settings
type InvoiceConfig struct {
	TemplatePath    string
	LogoURL         string
	LinkTTL         time.Duration
	MaxLinkTTL      time.Duration
	RequestTimeout  time.Duration
	KeyPrefix       string
	DefaultCurrency string
	DefaultLocale   string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	// Database tracing options
	DBTraceEnabled bool // Enable database query tracing (otelgorm)
	DBLogFullSQL   bool // Log full SQL statements (dev only, disable in prod for security)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with INVOICE_ prefix (e.g., INVOICE_STORAGE_BUCKET)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set config file settings
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	// Enable environment variable override
	v.SetEnvPrefix("INVOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Build config struct
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
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			ShutdownTimeout:  v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
			SwaggerEnabled:    v.GetBool("http.swagger_enabled"),
			SwaggerAllowedIPs: v.GetStringSlice("http.swagger_allowed_ips"),
		},
		Storage: StorageConfig{
			Driver:             v.GetString("storage.driver"),
			Endpoint:           v.GetString("storage.endpoint"),
			Region:             v.GetString("storage.region"),
			Bucket:             v.GetString("storage.bucket"),
			AccessKey:          v.GetString("storage.access_key"),
			SecretKey:          v.GetString("storage.secret_key"),
			UseSSL:             v.GetBool("storage.use_ssl"),
			UsePathStyle:       v.GetBool("storage.use_path_style"),
			PresignExpiration:  v.GetDuration("storage.presign_expiration"),
			LocalBasePath:      v.GetString("storage.local_base_path"),
			LocalBaseURL:       v.GetString("storage.local_base_url"),
			LocalSigningSecret: v.GetString("storage.local_signing_secret"),
		},
		Renderer: RendererConfig{
			Environment:   v.GetString("renderer.environment"),
			ExecPath:      v.GetString("renderer.exec_path"),
			RemoteURL:     v.GetString("renderer.remote_url"),
			Flags:         v.GetStringSlice("renderer.flags"),
			Timeout:       v.GetDuration("renderer.timeout"),
			MaxConcurrent: v.GetInt("renderer.max_concurrent"),
			PaperSize:     v.GetString("renderer.paper_size"),
			Orientation:   v.GetString("renderer.orientation"),
		},
		Invoice: InvoiceConfig{
			TemplatePath:    v.GetString("invoice.template_path"),
			LogoURL:         v.GetString("invoice.logo_url"),
			LinkTTL:         v.GetDuration("invoice.link_ttl"),
			MaxLinkTTL:      v.GetDuration("invoice.max_link_ttl"),
			RequestTimeout:  v.GetDuration("invoice.request_timeout"),
			KeyPrefix:       v.GetString("invoice.key_prefix"),
			DefaultCurrency: v.GetString("invoice.default_currency"),
			DefaultLocale:   v.GetString("invoice.default_locale"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
		},
	}

	// Apply defaults for empty values
	applyDefaults(cfg)
	if !v.IsSet("http.swagger_enabled") {
		cfg.HTTP.SwaggerEnabled = cfg.App.Env != "production"
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "invoice-pdf"
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
		cfg.Database.DBName = "invoices"
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
	// Rendering a PDF can take most of the request timeout
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 90 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = StorageDriverLocal
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "invoices"
	}
	if cfg.Storage.PresignExpiration == 0 {
		cfg.Storage.PresignExpiration = 24 * time.Hour
	}
	if cfg.Storage.LocalBasePath == "" {
		cfg.Storage.LocalBasePath = "./data/invoices"
	}
	if cfg.Storage.LocalBaseURL == "" {
		cfg.Storage.LocalBaseURL = "http://localhost:" + cfg.App.Port + "/api/v1/invoices/files"
	}
	if cfg.Renderer.Environment == "" {
		cfg.Renderer.Environment = "auto"
	}
	if cfg.Renderer.Timeout == 0 {
		cfg.Renderer.Timeout = 30 * time.Second
	}
	if cfg.Renderer.MaxConcurrent == 0 {
		cfg.Renderer.MaxConcurrent = 4
	}
	if cfg.Renderer.PaperSize == "" {
		cfg.Renderer.PaperSize = "A4"
	}
	if cfg.Renderer.Orientation == "" {
		cfg.Renderer.Orientation = "PORTRAIT"
	}
	if cfg.Invoice.LinkTTL == 0 {
		cfg.Invoice.LinkTTL = 24 * time.Hour
	}
	// S3 presigned URLs cannot outlive 7 days
	if cfg.Invoice.MaxLinkTTL == 0 {
		cfg.Invoice.MaxLinkTTL = 7 * 24 * time.Hour
	}
	if cfg.Invoice.RequestTimeout == 0 {
		cfg.Invoice.RequestTimeout = 60 * time.Second
	}
	if strings.TrimSpace(cfg.Invoice.LogoURL) == "" {
		cfg.Invoice.LogoURL = DefaultLogoURL
	}
	if cfg.Invoice.DefaultCurrency == "" {
		cfg.Invoice.DefaultCurrency = "USD"
	}
	if cfg.Invoice.DefaultLocale == "" {
		cfg.Invoice.DefaultLocale = "en-US"
	}

	// Telemetry defaults
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0 // 100% in development
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	// Validate connection pool settings
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

	switch c.Storage.Driver {
	case StorageDriverS3:
		if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
			return fmt.Errorf("storage.access_key and storage.secret_key are required for the s3 driver")
		}
	case StorageDriverLocal:
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", StorageDriverS3, StorageDriverLocal, c.Storage.Driver)
	}

	if c.Renderer.MaxConcurrent < 0 {
		return fmt.Errorf("renderer.max_concurrent must be positive")
	}
	switch strings.ToLower(c.Renderer.Environment) {
	case "auto", "managed", "interactive":
	default:
		return fmt.Errorf("renderer.environment must be auto, managed or interactive, got %q", c.Renderer.Environment)
	}

	if c.Invoice.LinkTTL < 0 {
		return fmt.Errorf("invoice.link_ttl must be positive")
	}
	if c.Invoice.LinkTTL > c.Invoice.MaxLinkTTL {
		return fmt.Errorf("invoice.link_ttl (%s) cannot exceed invoice.max_link_ttl (%s)",
			c.Invoice.LinkTTL, c.Invoice.MaxLinkTTL)
	}
	if u, err := url.Parse(c.Invoice.LogoURL); err != nil || !u.IsAbs() {
		return fmt.Errorf("invoice.logo_url must be an absolute URL, got %q", c.Invoice.LogoURL)
	}
	if c.Invoice.RequestTimeout < 0 {
		return fmt.Errorf("invoice.request_timeout must be positive")
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Storage.Driver == StorageDriverLocal && len(c.Storage.LocalSigningSecret) < 32 {
			return fmt.Errorf("storage.local_signing_secret must be at least 32 characters in production")
		}
		// CORS must not use wildcard in production
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		// Database tracing: full SQL logging is a security risk in production
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	// Validate telemetry configuration (all environments)
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
