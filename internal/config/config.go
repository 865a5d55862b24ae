package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Apify    ApifyConfig    `mapstructure:"apify"`
	Scrape   ScrapeConfig   `mapstructure:"scrape"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
	Auth AuthConfig `mapstructure:"auth"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// AuthConfig gates the API behind a shared key. Identity itself comes from
// the dashboard's X-User-ID header; this is perimeter protection only.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres or sqlite
	URL             string        `mapstructure:"url"`    // postgres DSN, e.g. a Supabase pooler URL
	Path            string        `mapstructure:"path"`   // sqlite file path
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the driver-specific connection string.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return c.URL
	}
	return c.Path
}

type ApifyConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Token          string        `mapstructure:"token"` // server-wide fallback token
	CommentsActor  string        `mapstructure:"comments_actor"`
	ProfilesActor  string        `mapstructure:"profiles_actor"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	RunTimeout     time.Duration `mapstructure:"run_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryWait      time.Duration `mapstructure:"retry_wait"`
	RetryMaxWait   time.Duration `mapstructure:"retry_max_wait"`
}

type ScrapeConfig struct {
	MaxProfilesPerPost int           `mapstructure:"max_profiles_per_post"`
	MaxComments        int           `mapstructure:"max_comments"`
	RefreshAfter       time.Duration `mapstructure:"refresh_after"` // 0 = cached profiles never go stale
	ArchiveRuns        bool          `mapstructure:"archive_runs"`
}

type StorageConfig struct {
	Type      string `mapstructure:"type"` // s3, r2, s3compatible; empty = auto-detect
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

// Enabled reports whether the run archive has a storage backend configured.
func (c *StorageConfig) Enabled() bool {
	return c.Endpoint != ""
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("server.auth.enabled", false)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/leadharvest.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("apify.base_url", "https://api.apify.com")
	v.SetDefault("apify.comments_actor", "apimaestro~linkedin-post-comments-replies-engagers-scraper-no-cookies")
	v.SetDefault("apify.profiles_actor", "dev_fusion~linkedin-profile-scraper")
	v.SetDefault("apify.request_timeout", "60s")
	v.SetDefault("apify.poll_interval", "5s")
	v.SetDefault("apify.run_timeout", "10m")
	v.SetDefault("apify.max_retries", 2)
	v.SetDefault("apify.retry_wait", "1s")
	v.SetDefault("apify.retry_max_wait", "8s")
	v.SetDefault("scrape.max_profiles_per_post", 50)
	v.SetDefault("scrape.max_comments", 100)
	v.SetDefault("scrape.refresh_after", "0s")
	v.SetDefault("scrape.archive_runs", false)
	v.SetDefault("storage.type", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.bucket", "leadharvest-runs")
	v.SetDefault("storage.region", "")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("server.auth.api_key", "SERVER_API_KEY")
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("apify.token", "APIFY_TOKEN")
	v.BindEnv("apify.base_url", "APIFY_BASE_URL")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("storage.bucket", "STORAGE_BUCKET")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
