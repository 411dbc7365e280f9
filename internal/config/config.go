package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Geocoder  GeocoderConfig  `mapstructure:"geocoder"`
	Refresh   RefreshConfig   `mapstructure:"refresh"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Qdrant    QdrantConfig    `mapstructure:"qdrant"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Search    SearchConfig    `mapstructure:"search"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres
	Path            string        `mapstructure:"path"`   // sqlite file path
	URL             string        `mapstructure:"url"`    // postgres DSN
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

// LLMConfig configures the extraction agent's chat-completions endpoint.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// GeocoderConfig configures the Nominatim-compatible geocoding endpoint.
type GeocoderConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	UserAgent   string        `mapstructure:"user_agent"`
	Email       string        `mapstructure:"email"`
	CountryBias string        `mapstructure:"country_bias"` // appended to queries, e.g. "India"
	RatePerSec  float64       `mapstructure:"rate_per_sec"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type RefreshConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	PullTimeout     time.Duration `mapstructure:"pull_timeout"`
	ExtractWorkers  int           `mapstructure:"extract_workers"`
	ResolveWorkers  int           `mapstructure:"resolve_workers"`
	BatchSize       int           `mapstructure:"batch_size"`
	MaxListings     int           `mapstructure:"max_listings"` // per source per cycle
	SnapshotHistory int           `mapstructure:"snapshot_history"`
}

type SourcesConfig struct {
	HNHiring HNHiringConfig `mapstructure:"hnhiring"`
	RemoteOK RemoteOKConfig `mapstructure:"remoteok"`
}

type HNHiringConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	SearchBaseURL string  `mapstructure:"search_base_url"`
	ItemBaseURL   string  `mapstructure:"item_base_url"`
	ThreadID      int     `mapstructure:"thread_id"` // 0 means discover latest
	RatePerSec    float64 `mapstructure:"rate_per_sec"`
}

type RemoteOKConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	BaseURL    string  `mapstructure:"base_url"`
	RatePerSec float64 `mapstructure:"rate_per_sec"`
}

type QdrantConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
}

type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"`
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	Dimensions int    `mapstructure:"dimensions"`
}

// ArchiveConfig configures S3-compatible storage for raw listing payloads.
type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"` // s3, r2, s3compatible
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
}

type SearchConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	ScoreThreshold float32 `mapstructure:"score_threshold"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

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
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/jobmap.db")
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.max_attempts", 3)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("geocoder.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoder.user_agent", "india-job-map")
	v.SetDefault("geocoder.country_bias", "India")
	v.SetDefault("geocoder.rate_per_sec", 1.0)
	v.SetDefault("geocoder.max_attempts", 3)
	v.SetDefault("geocoder.timeout", 10*time.Second)
	v.SetDefault("refresh.interval", 6*time.Hour)
	v.SetDefault("refresh.pull_timeout", 2*time.Minute)
	v.SetDefault("refresh.extract_workers", 4)
	v.SetDefault("refresh.resolve_workers", 2)
	v.SetDefault("refresh.batch_size", 20)
	v.SetDefault("refresh.max_listings", 200)
	v.SetDefault("refresh.snapshot_history", 5)
	v.SetDefault("sources.hnhiring.enabled", true)
	v.SetDefault("sources.hnhiring.search_base_url", "https://hn.algolia.com/api/v1")
	v.SetDefault("sources.hnhiring.item_base_url", "https://hacker-news.firebaseio.com/v0")
	v.SetDefault("sources.hnhiring.rate_per_sec", 2.0)
	v.SetDefault("sources.remoteok.enabled", true)
	v.SetDefault("sources.remoteok.base_url", "https://remoteok.com/api")
	v.SetDefault("sources.remoteok.rate_per_sec", 1.0)
	v.SetDefault("qdrant.enabled", false)
	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.collection", "job_pins")
	v.SetDefault("embedding.provider", "jina")
	v.SetDefault("embedding.model", "jina-embeddings-v3")
	v.SetDefault("embedding.dimensions", 1024)
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.endpoint", "localhost:9000")
	v.SetDefault("archive.use_ssl", false)
	v.SetDefault("archive.bucket", "raw-listings")
	v.SetDefault("search.enabled", false)
	v.SetDefault("search.score_threshold", 0.0)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("llm.api_key", "OPENAI_API_KEY")
	v.BindEnv("llm.base_url", "OPENAI_BASE_URL")
	v.BindEnv("llm.model", "LLM_MODEL")
	v.BindEnv("geocoder.email", "GEOCODER_EMAIL")
	v.BindEnv("embedding.api_key", "JINA_API_KEY")
	v.BindEnv("qdrant.host", "QDRANT_HOST")
	v.BindEnv("qdrant.port", "QDRANT_PORT")
	v.BindEnv("qdrant.api_key", "QDRANT_API_KEY")
	v.BindEnv("archive.endpoint", "ARCHIVE_ENDPOINT")
	v.BindEnv("archive.access_key", "ARCHIVE_ACCESS_KEY")
	v.BindEnv("archive.secret_key", "ARCHIVE_SECRET_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
