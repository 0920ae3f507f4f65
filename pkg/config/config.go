// Package config loads and validates navigator configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Corpus, Indexer, Search, etc.).
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Indexer   IndexerConfig   `yaml:"indexer"`
	Search    SearchConfig    `yaml:"search"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings. RateLimit is requests per minute
// per client IP; zero disables limiting. CORS is off unless CORSOrigins
// lists at least one origin.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	RateLimit       int           `yaml:"rateLimit"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
}

// PostgresConfig holds PostgreSQL connection parameters. Postgres is only
// used as an optional corpus source.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
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
	CorpusRebuild   string `yaml:"corpusRebuild"`
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// CorpusConfig says where research documents come from and how they are
// split into searchable chunks.
type CorpusConfig struct {
	ResearchDir   string        `yaml:"researchDir"`
	DataDir       string        `yaml:"dataDir"`
	PapersFile    string        `yaml:"papersFile"`
	ChunkSize     int           `yaml:"chunkSize"`
	ChunkOverlap  int           `yaml:"chunkOverlap"`
	Watch         bool          `yaml:"watch"`
	WatchDebounce time.Duration `yaml:"watchDebounce"`
}

// IndexerConfig controls snapshot persistence, rebuild limits and the
// tokenizer shared by indexing and querying.
type IndexerConfig struct {
	DataDir         string        `yaml:"dataDir"`
	SnapshotFile    string        `yaml:"snapshotFile"`
	ForceRebuild    bool          `yaml:"forceRebuild"`
	RebuildTimeout  time.Duration `yaml:"rebuildTimeout"`
	RemoveStopWords bool          `yaml:"removeStopWords"`
	Stemmer         string        `yaml:"stemmer"`
	MinTokenLength  int           `yaml:"minTokenLength"`
}

// SearchConfig controls ranking parameters, result limits and the result
// cache.
type SearchConfig struct {
	Scorer         string        `yaml:"scorer"`
	K1             float64       `yaml:"k1"`
	B              float64       `yaml:"b"`
	DefaultLimit   int           `yaml:"defaultLimit"`
	MaxResults     int           `yaml:"maxResults"`
	CacheBackend   string        `yaml:"cacheBackend"`
	CacheTTL       time.Duration `yaml:"cacheTTL"`
	LocalCacheSize int           `yaml:"localCacheSize"`
}

// AnalyticsConfig controls search event collection. Events go to Kafka
// when it is enabled and straight into the in-process aggregator otherwise.
type AnalyticsConfig struct {
	Enabled          bool          `yaml:"enabled"`
	BufferSize       int           `yaml:"bufferSize"`
	BatchSize        int           `yaml:"batchSize"`
	FlushInterval    time.Duration `yaml:"flushInterval"`
	LatencyWindow    int           `yaml:"latencyWindow"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
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

// Default returns the built-in configuration without reading files or the
// environment.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  10 * time.Second,
			RateLimit:       600,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "navigator",
			User:            "navigator",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "navigator-group",
			Topics: KafkaTopics{
				CorpusRebuild:   "corpus-rebuild",
				AnalyticsEvents: "search-analytics",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Corpus: CorpusConfig{
			ResearchDir:   "research",
			DataDir:       "data",
			PapersFile:    "papers.json",
			ChunkSize:     500,
			ChunkOverlap:  50,
			WatchDebounce: 500 * time.Millisecond,
		},
		Indexer: IndexerConfig{
			DataDir:         "index",
			SnapshotFile:    "research.bcix",
			RebuildTimeout:  2 * time.Minute,
			RemoveStopWords: true,
			Stemmer:         "none",
			MinTokenLength:  2,
		},
		Search: SearchConfig{
			Scorer:         "bm25",
			K1:             1.5,
			B:              0.75,
			DefaultLimit:   10,
			MaxResults:     100,
			CacheBackend:   "memory",
			CacheTTL:       60 * time.Second,
			LocalCacheSize: 1024,
		},
		Analytics: AnalyticsConfig{
			Enabled:          true,
			BufferSize:       10000,
			BatchSize:        100,
			FlushInterval:    5 * time.Second,
			LatencyWindow:    10000,
			SnapshotInterval: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Validate reports the first setting that cannot work. Ranking parameters
// are checked here so a bad k1 or b fails at startup, not mid-query.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	if math.IsNaN(c.Search.K1) || math.IsInf(c.Search.K1, 0) || c.Search.K1 <= 0 {
		return invalid("search.k1 must be > 0, got %v", c.Search.K1)
	}
	if math.IsNaN(c.Search.B) || c.Search.B < 0 || c.Search.B > 1 {
		return invalid("search.b must be within [0, 1], got %v", c.Search.B)
	}
	switch c.Search.Scorer {
	case "bm25", "tfidf":
	default:
		return invalid("search.scorer %q is not one of bm25, tfidf", c.Search.Scorer)
	}
	switch c.Search.CacheBackend {
	case "redis", "memory", "none":
	default:
		return invalid("search.cacheBackend %q is not one of redis, memory, none", c.Search.CacheBackend)
	}
	if c.Server.RateLimit < 0 {
		return invalid("server.rateLimit must not be negative")
	}
	if c.Search.DefaultLimit <= 0 || c.Search.MaxResults <= 0 {
		return invalid("search limits must be positive")
	}
	if c.Search.DefaultLimit > c.Search.MaxResults {
		return invalid("search.defaultLimit %d exceeds search.maxResults %d", c.Search.DefaultLimit, c.Search.MaxResults)
	}
	if c.Corpus.ChunkSize <= 0 {
		return invalid("corpus.chunkSize must be positive")
	}
	if c.Corpus.ChunkOverlap < 0 || c.Corpus.ChunkOverlap >= c.Corpus.ChunkSize {
		return invalid("corpus.chunkOverlap must be within [0, chunkSize)")
	}
	switch strings.ToLower(c.Indexer.Stemmer) {
	case "", "none", "suffix", "porter":
	default:
		return invalid("indexer.stemmer %q is not one of none, suffix, porter", c.Indexer.Stemmer)
	}
	if c.Indexer.SnapshotFile == "" {
		return invalid("indexer.snapshotFile is required")
	}
	return nil
}

// applyEnvOverrides reads BCI_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BCI_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("BCI_SERVER_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimit = n
		}
	}
	if v := os.Getenv("BCI_SERVER_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("BCI_POSTGRES_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Postgres.Enabled = b
		}
	}
	if v := os.Getenv("BCI_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("BCI_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("BCI_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("BCI_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("BCI_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("BCI_KAFKA_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = b
		}
	}
	if v := os.Getenv("BCI_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("BCI_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("BCI_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("BCI_CORPUS_RESEARCH_DIR"); v != "" {
		cfg.Corpus.ResearchDir = v
	}
	if v := os.Getenv("BCI_CORPUS_DATA_DIR"); v != "" {
		cfg.Corpus.DataDir = v
	}
	if v := os.Getenv("BCI_CORPUS_WATCH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Corpus.Watch = b
		}
	}
	if v := os.Getenv("BCI_INDEXER_DATA_DIR"); v != "" {
		cfg.Indexer.DataDir = v
	}
	if v := os.Getenv("BCI_INDEXER_STEMMER"); v != "" {
		cfg.Indexer.Stemmer = v
	}
	if v := os.Getenv("BCI_SEARCH_SCORER"); v != "" {
		cfg.Search.Scorer = v
	}
	if v := os.Getenv("BCI_SEARCH_K1"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.K1 = f
		}
	}
	if v := os.Getenv("BCI_SEARCH_B"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.B = f
		}
	}
	if v := os.Getenv("BCI_SEARCH_CACHE_BACKEND"); v != "" {
		cfg.Search.CacheBackend = v
	}
	if v := os.Getenv("BCI_ANALYTICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Analytics.Enabled = b
		}
	}
	if v := os.Getenv("BCI_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("BCI_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
