// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Search, Shards, Redis, Postgres, Kafka, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Search    SearchConfig    `yaml:"search"`
	Shards    ShardsConfig    `yaml:"shards"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Analytics AnalyticsConfig `yaml:"analytics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// CORSOrigins lists browser origins allowed to call the API. Empty
	// disables CORS headers.
	CORSOrigins []string `yaml:"corsOrigins"`
	// RateLimit is requests per minute per client address. Zero disables it.
	RateLimit int `yaml:"rateLimit"`
}

// SearchConfig controls query parsing, merging and result limits.
type SearchConfig struct {
	MinWordLength int      `yaml:"minWordLength"`
	TermLimit     int      `yaml:"termLimit"`
	MaxResults    int      `yaml:"maxResults"`
	MaxSnippets   int      `yaml:"maxSnippets"`
	PhrasalSearch bool     `yaml:"phrasalSearch"`
	Wildcards     bool     `yaml:"wildcards"`
	Punctuation   string   `yaml:"punctuation"`
	Stopwords     []string `yaml:"stopwords"`
	StopwordsFile string   `yaml:"stopwordsFile"`
	// ScopeScoring is "keep" or "resum".
	ScopeScoring string `yaml:"scopeScoring"`
	// SnippetCap is "insert" or "merge".
	SnippetCap string `yaml:"snippetCap"`
	// MergeScoring is "context" or "sum".
	MergeScoring string `yaml:"mergeScoring"`
	// Language is the BCP 47 tag used to collate tied results.
	Language string `yaml:"language"`
}

// ShardsConfig selects and tunes the shard source.
type ShardsConfig struct {
	// Source is one of fs, http, postgres or segment.
	Source               string        `yaml:"source"`
	Dir                  string        `yaml:"dir"`
	BaseURL              string        `yaml:"baseUrl"`
	SegmentPath          string        `yaml:"segmentPath"`
	FetchTimeout         time.Duration `yaml:"fetchTimeout"`
	MaxConcurrentFetches int           `yaml:"maxConcurrentFetches"`
	RetryAttempts        int           `yaml:"retryAttempts"`
	RedisCache           bool          `yaml:"redisCache"`
	Preload              []string      `yaml:"preload"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	ConnectTimeout  time.Duration `yaml:"connectTimeout"`
	// TxAttempts is how many times a transaction is tried when Postgres
	// aborts it with a serialization failure or deadlock.
	TxAttempts int `yaml:"txAttempts"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	QueryEvents string `yaml:"queryEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls span logging around query stages.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// AnalyticsConfig tunes query telemetry. Events go to Kafka when it is
// enabled and straight to the in-process aggregator otherwise.
type AnalyticsConfig struct {
	Enabled          bool          `yaml:"enabled"`
	BufferSize       int           `yaml:"bufferSize"`
	BatchSize        int           `yaml:"batchSize"`
	FlushInterval    time.Duration `yaml:"flushInterval"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Shards.Source {
	case "fs", "segment", "http", "postgres":
	default:
		return fmt.Errorf("shards.source: unknown source %q", c.Shards.Source)
	}
	if c.Shards.Source == "http" && c.Shards.BaseURL == "" {
		return fmt.Errorf("shards.baseUrl is required for the http source")
	}
	if c.Shards.Source == "segment" && c.Shards.SegmentPath == "" {
		return fmt.Errorf("shards.segmentPath is required for the segment source")
	}
	switch c.Search.ScopeScoring {
	case "keep", "resum":
	default:
		return fmt.Errorf("search.scopeScoring: want keep or resum, got %q", c.Search.ScopeScoring)
	}
	switch c.Search.SnippetCap {
	case "insert", "merge":
	default:
		return fmt.Errorf("search.snippetCap: want insert or merge, got %q", c.Search.SnippetCap)
	}
	switch c.Search.MergeScoring {
	case "context", "sum":
	default:
		return fmt.Errorf("search.mergeScoring: want context or sum, got %q", c.Search.MergeScoring)
	}
	if c.Search.MaxSnippets < 1 {
		return fmt.Errorf("search.maxSnippets must be positive")
	}
	return nil
}

// Default returns a Config with defaults for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Search: SearchConfig{
			MinWordLength: 3,
			TermLimit:     100,
			MaxResults:    2000,
			MaxSnippets:   3,
			PhrasalSearch: true,
			Wildcards:     false,
			Punctuation:   `.,;:!¡¿(){}<>`,
			ScopeScoring:  "keep",
			SnippetCap:    "insert",
			MergeScoring:  "context",
			Language:      "en",
		},
		Shards: ShardsConfig{
			Source:               "fs",
			Dir:                  "staticSearch",
			FetchTimeout:         5 * time.Second,
			MaxConcurrentFetches: 16,
			RetryAttempts:        3,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "staticsearch",
			User:            "staticsearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnectTimeout:  5 * time.Second,
			TxAttempts:      3,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "staticsearch-analytics",
			Topics: KafkaTopics{
				QueryEvents: "query-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		Analytics: AnalyticsConfig{
			Enabled:       true,
			BufferSize:    10000,
			BatchSize:     100,
			FlushInterval: 5 * time.Second,
		},
	}
}

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SP_SERVER_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_SERVER_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimit = n
		}
	}
	if v := os.Getenv("SP_SHARDS_SOURCE"); v != "" {
		cfg.Shards.Source = v
	}
	if v := os.Getenv("SP_SHARDS_DIR"); v != "" {
		cfg.Shards.Dir = v
	}
	if v := os.Getenv("SP_SHARDS_BASE_URL"); v != "" {
		cfg.Shards.BaseURL = v
	}
	if v := os.Getenv("SP_SHARDS_SEGMENT_PATH"); v != "" {
		cfg.Shards.SegmentPath = v
	}
	if v := os.Getenv("SP_SHARDS_REDIS_CACHE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Shards.RedisCache = b
		}
	}
	if v := os.Getenv("SP_SEARCH_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.MaxResults = n
		}
	}
	if v := os.Getenv("SP_SEARCH_WILDCARDS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Search.Wildcards = b
		}
	}
	if v := os.Getenv("SP_SEARCH_MERGE_SCORING"); v != "" {
		cfg.Search.MergeScoring = v
	}
	if v := os.Getenv("SP_SEARCH_LANGUAGE"); v != "" {
		cfg.Search.Language = v
	}
	if v := os.Getenv("SP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SP_KAFKA_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = b
		}
	}
	if v := os.Getenv("SP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SP_ANALYTICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Analytics.Enabled = b
		}
	}
	if v := os.Getenv("SP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// LoadStopwords reads a newline-separated stopword file, skipping blank
// lines and lines starting with '#'.
func LoadStopwords(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading stopwords file %s: %w", path, err)
	}
	var words []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, strings.ToLower(line))
	}
	return words, nil
}
