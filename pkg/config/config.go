// Package config loads and validates pipeline configuration from YAML files
// with .env and environment-variable overrides. It provides typed structs for
// every subsystem (Database, Artifacts, Redis, Kafka, Pipeline, Model, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Model     ModelConfig     `yaml:"model"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// DatabaseConfig selects the relational store. The sqlite driver only needs
// Path; the postgres driver uses the connection fields.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	Path            string        `yaml:"path"`
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
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// ArtifactsConfig controls where bigram models, dictionaries, topic models and
// topic reports are kept.
type ArtifactsConfig struct {
	Backend   string `yaml:"backend"`
	Dir       string `yaml:"dir"`
	ReportDir string `yaml:"reportDir"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// RedisConfig holds Redis connection parameters for the redis artifact backend.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	TTL      time.Duration `yaml:"ttl"`
}

// KafkaConfig holds broker settings for model-updated notifications.
type KafkaConfig struct {
	Enabled bool        `yaml:"enabled"`
	Brokers []string    `yaml:"brokers"`
	Topics  KafkaTopics `yaml:"topics"`
}

type KafkaTopics struct {
	ModelUpdated string `yaml:"modelUpdated"`
}

// PipelineConfig holds the corpus preparation thresholds and batch sizing.
type PipelineConfig struct {
	BigramMinCount   int     `yaml:"bigramMinCount"`
	BigramThreshold  float64 `yaml:"bigramThreshold"`
	DictNoBelow      int     `yaml:"dictNoBelow"`
	DictNoAbove      float64 `yaml:"dictNoAbove"`
	DictKeepN        int     `yaml:"dictKeepN"`
	BatchSize        int     `yaml:"batchSize"`
	MaxBatchesPerRun int     `yaml:"maxBatchesPerRun"`
}

// ModelConfig holds LDA hyperparameters. Alpha and Eta of zero mean 1/NumTopics.
type ModelConfig struct {
	NumTopics      int     `yaml:"numTopics"`
	ChunkSize      int     `yaml:"chunkSize"`
	Passes         int     `yaml:"passes"`
	Iterations     int     `yaml:"iterations"`
	Alpha          float64 `yaml:"alpha"`
	Eta            float64 `yaml:"eta"`
	Decay          float64 `yaml:"decay"`
	Offset         float64 `yaml:"offset"`
	GammaThreshold float64 `yaml:"gammaThreshold"`
	TopN           int     `yaml:"topN"`
	Seed           uint64  `yaml:"seed"`
}

// IngestConfig controls the raw archive loader.
type IngestConfig struct {
	DataDir  string `yaml:"dataDir"`
	Language string `yaml:"language"`
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

// Load reads an optional .env file and an optional YAML config file and then
// applies environment-variable overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

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
		Database: DatabaseConfig{
			Driver:          "sqlite",
			Path:            "covid_tweets.db",
			Host:            "localhost",
			Port:            5432,
			Database:        "tweettopics",
			User:            "tweettopics",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    4,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Artifacts: ArtifactsConfig{
			Backend:   "fs",
			Dir:       "artifacts",
			KeyPrefix: "tweettopics:",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 4,
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topics: KafkaTopics{
				ModelUpdated: "topic-model-updated",
			},
		},
		Pipeline: PipelineConfig{
			BigramMinCount:   90,
			BigramThreshold:  10.0,
			DictNoBelow:      30,
			DictNoAbove:      0.50,
			DictKeepN:        100000,
			BatchSize:        50000,
			MaxBatchesPerRun: 1,
		},
		Model: ModelConfig{
			NumTopics:      12,
			ChunkSize:      1000,
			Passes:         20,
			Iterations:     400,
			Decay:          0.5,
			Offset:         1.0,
			GammaThreshold: 0.001,
			TopN:           20,
			Seed:           1,
		},
		Ingest: IngestConfig{
			DataDir:  "./data",
			Language: "en",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	var problems []string
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("database.driver %q must be sqlite or postgres", c.Database.Driver))
	}
	switch c.Artifacts.Backend {
	case "fs", "redis":
	default:
		problems = append(problems, fmt.Sprintf("artifacts.backend %q must be fs or redis", c.Artifacts.Backend))
	}
	p := c.Pipeline
	if p.BigramMinCount < 1 {
		problems = append(problems, "pipeline.bigramMinCount must be at least 1")
	}
	if p.DictNoBelow < 1 {
		problems = append(problems, "pipeline.dictNoBelow must be at least 1")
	}
	if p.DictNoAbove <= 0 || p.DictNoAbove > 1 {
		problems = append(problems, "pipeline.dictNoAbove must be in (0, 1]")
	}
	if p.BatchSize < 1 {
		problems = append(problems, "pipeline.batchSize must be at least 1")
	}
	if c.Model.NumTopics < 1 {
		problems = append(problems, "model.numTopics must be at least 1")
	}
	if c.Model.ChunkSize < 1 {
		problems = append(problems, "model.chunkSize must be at least 1")
	}
	if c.Model.Decay < 0.5 || c.Model.Decay > 1 {
		problems = append(problems, "model.decay must be in [0.5, 1]")
	}
	if len(problems) > 0 {
		return apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage, strings.Join(problems, "; "))
	}
	return nil
}

// applyEnvOverrides reads TT_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TT_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("TT_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("TT_POSTGRES_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("TT_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("TT_POSTGRES_DATABASE"); v != "" {
		cfg.Database.Database = v
	}
	if v := os.Getenv("TT_POSTGRES_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("TT_POSTGRES_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("TT_POSTGRES_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("TT_ARTIFACTS_BACKEND"); v != "" {
		cfg.Artifacts.Backend = v
	}
	if v := os.Getenv("TT_ARTIFACTS_DIR"); v != "" {
		cfg.Artifacts.Dir = v
	}
	if v := os.Getenv("TT_REPORT_DIR"); v != "" {
		cfg.Artifacts.ReportDir = v
	}
	if v := os.Getenv("TT_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("TT_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("TT_KAFKA_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = enabled
		}
	}
	if v := os.Getenv("TT_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("TT_BATCH_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.BatchSize = size
		}
	}
	if v := os.Getenv("TT_NUM_TOPICS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Model.NumTopics = n
		}
	}
	if v := os.Getenv("TT_INGEST_DATA_DIR"); v != "" {
		cfg.Ingest.DataDir = v
	}
	if v := os.Getenv("TT_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TT_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("TT_METRICS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = enabled
		}
	}
}
