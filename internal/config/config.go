// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	Host string `envconfig:"ASKDESK_HOST" yaml:"host"`
	Port int    `envconfig:"ASKDESK_PORT" yaml:"port"`

	// OpenAI-compatible capability endpoints
	OpenAI OpenAIConfig `yaml:"openai"`

	// Qdrant configuration
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Redis configuration (answer cache)
	Redis RedisConfig `yaml:"redis"`

	// Kafka configuration (query log sink)
	Kafka KafkaConfig `yaml:"kafka"`

	// Pipeline configuration
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Routing thresholds
	Routing RoutingConfig `yaml:"routing"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`

	// Security configuration
	Security SecurityConfig `yaml:"security"`

	// Logging configuration
	Log LogConfig `yaml:"log"`
}

// OpenAIConfig holds settings for the embedding/classification/generation endpoints.
type OpenAIConfig struct {
	BaseURL    string `envconfig:"ASKDESK_OPENAI_BASE_URL" yaml:"base_url"`
	APIKey     string `envconfig:"ASKDESK_OPENAI_API_KEY" yaml:"api_key"`
	EmbedModel string `envconfig:"ASKDESK_EMBED_MODEL" yaml:"embed_model"`
	ChatModel  string `envconfig:"ASKDESK_CHAT_MODEL" yaml:"chat_model"`
}

// QdrantConfig holds Qdrant connection settings.
type QdrantConfig struct {
	Host             string `envconfig:"QDRANT_HOST" yaml:"host"`
	Port             int    `envconfig:"QDRANT_PORT" yaml:"port"`
	APIKey           string `envconfig:"QDRANT_API_KEY" yaml:"api_key"`
	UseTLS           bool   `envconfig:"QDRANT_USE_TLS" yaml:"use_tls"`
	CollectionPrefix string `envconfig:"QDRANT_COLLECTION_PREFIX" yaml:"collection_prefix"`
	TimeoutMs        int    `envconfig:"QDRANT_TIMEOUT_MS" yaml:"timeout_ms"`
}

// RedisConfig holds answer cache settings.
type RedisConfig struct {
	URL          string `envconfig:"ASKDESK_REDIS_URL" yaml:"url"`
	AnswerTTLSec int    `envconfig:"ASKDESK_ANSWER_TTL_SEC" yaml:"answer_ttl_sec"`
}

// KafkaConfig holds the query log sink settings.
// Brokers empty means the Kafka sink is disabled and query logs only go to the logger.
type KafkaConfig struct {
	Brokers string `envconfig:"ASKDESK_KAFKA_BROKERS" yaml:"brokers"`
	Topic   string `envconfig:"ASKDESK_KAFKA_TOPIC" yaml:"topic"`
}

// BrokerList returns the brokers as a slice.
func (k KafkaConfig) BrokerList() []string {
	if k.Brokers == "" {
		return nil
	}
	parts := strings.Split(k.Brokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// PipelineConfig holds retrieval pipeline settings.
type PipelineConfig struct {
	// TotalTimeoutMs bounds the whole query pipeline. Exceeding it resolves
	// to a fallback response, never a hung caller.
	TotalTimeoutMs int `envconfig:"ASKDESK_TOTAL_TIMEOUT_MS" yaml:"total_timeout_ms"`

	// NamespaceTimeoutMs bounds each per-namespace search call.
	NamespaceTimeoutMs int `envconfig:"ASKDESK_NAMESPACE_TIMEOUT_MS" yaml:"namespace_timeout_ms"`

	// TopK is the number of fused results kept for context assembly.
	TopK int `envconfig:"ASKDESK_TOP_K" yaml:"top_k"`

	// TopKPerNamespace is the number of candidates fetched from each namespace.
	TopKPerNamespace int `envconfig:"ASKDESK_TOP_K_PER_NAMESPACE" yaml:"top_k_per_namespace"`

	// MinResultsBeforeStop is the sequential-mode early-exit threshold.
	MinResultsBeforeStop int `envconfig:"ASKDESK_MIN_RESULTS_BEFORE_STOP" yaml:"min_results_before_stop"`

	// EnableReranking enables the cross-encoder rerank sub-stage.
	EnableReranking bool `envconfig:"ASKDESK_ENABLE_RERANKING" yaml:"enable_reranking"`

	// RerankTopK is the number of fused candidates passed to the reranker.
	RerankTopK int `envconfig:"ASKDESK_RERANK_TOP_K" yaml:"rerank_top_k"`

	// RRFK enables rank-based fusion when positive. Zero keeps plain
	// weighted-score fusion, which is the reference behavior.
	RRFK int `envconfig:"ASKDESK_RRF_K" yaml:"rrf_k"`
}

// RoutingConfig holds the confidence routing thresholds.
// All four are the named, overridable parameters of the route state machine.
type RoutingConfig struct {
	// Instant is the intent confidence at or above which retrieval is
	// bypassed entirely.
	Instant float32 `envconfig:"ASKDESK_ROUTE_INSTANT" yaml:"instant"`

	// RAG is the minimum intent confidence for full retrieval + generation.
	RAG float32 `envconfig:"ASKDESK_ROUTE_RAG" yaml:"rag"`

	// MinTopScore is the minimum fused top score required for the rag route.
	MinTopScore float32 `envconfig:"ASKDESK_ROUTE_MIN_TOP_SCORE" yaml:"min_top_score"`

	// Clarify is the minimum intent confidence for a clarification question.
	Clarify float32 `envconfig:"ASKDESK_ROUTE_CLARIFY" yaml:"clarify"`
}

// ObservabilityConfig holds query log and metrics settings.
type ObservabilityConfig struct {
	QueueSize       int    `envconfig:"ASKDESK_OBS_QUEUE_SIZE" yaml:"queue_size"`
	FlushIntervalMs int    `envconfig:"ASKDESK_OBS_FLUSH_INTERVAL_MS" yaml:"flush_interval_ms"`
	FlushBatch      int    `envconfig:"ASKDESK_OBS_FLUSH_BATCH" yaml:"flush_batch"`
	MetricsEnabled  bool   `envconfig:"ASKDESK_METRICS_ENABLED" yaml:"metrics_enabled"`
	MetricsPath     string `envconfig:"ASKDESK_METRICS_PATH" yaml:"metrics_path"`
}

// SecurityConfig holds security settings.
type SecurityConfig struct {
	RateLimit int `envconfig:"ASKDESK_RATE_LIMIT" yaml:"rate_limit"` // req/sec per client, 0 = disabled
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"ASKDESK_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"ASKDESK_LOG_FORMAT" yaml:"format"`
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Set defaults first
	setDefaults(cfg)

	// Load from YAML file if provided (overrides defaults)
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Host = "0.0.0.0"
	cfg.Port = 8080

	cfg.OpenAI = OpenAIConfig{
		BaseURL:    "https://api.openai.com/v1",
		EmbedModel: "text-embedding-3-small",
		ChatModel:  "gpt-4o-mini",
	}

	cfg.Qdrant = QdrantConfig{
		Host:             "localhost",
		Port:             6334,
		CollectionPrefix: "askdesk_",
		TimeoutMs:        30000,
	}

	cfg.Redis = RedisConfig{
		AnswerTTLSec: 3600,
	}

	cfg.Kafka = KafkaConfig{
		Topic: "askdesk.query-log",
	}

	cfg.Pipeline = PipelineConfig{
		TotalTimeoutMs:       15000,
		NamespaceTimeoutMs:   2000,
		TopK:                 10,
		TopKPerNamespace:     20,
		MinResultsBeforeStop: 3,
		EnableReranking:      false,
		RerankTopK:           10,
		RRFK:                 0,
	}

	cfg.Routing = RoutingConfig{
		Instant:     0.95,
		RAG:         0.7,
		MinTopScore: 0.35,
		Clarify:     0.3,
	}

	cfg.Observability = ObservabilityConfig{
		QueueSize:       4096,
		FlushIntervalMs: 1000,
		FlushBatch:      128,
		MetricsEnabled:  true,
		MetricsPath:     "/metrics",
	}

	cfg.Security = SecurityConfig{
		RateLimit: 0,
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if c.Pipeline.TotalTimeoutMs < 1 {
		errs = append(errs, "total_timeout_ms must be positive")
	}

	if c.Pipeline.NamespaceTimeoutMs < 1 {
		errs = append(errs, "namespace_timeout_ms must be positive")
	}

	if c.Pipeline.NamespaceTimeoutMs > c.Pipeline.TotalTimeoutMs {
		errs = append(errs, "namespace_timeout_ms must not exceed total_timeout_ms")
	}

	if c.Pipeline.TopK < 1 {
		errs = append(errs, "top_k must be positive")
	}

	if c.Pipeline.TopKPerNamespace < 1 {
		errs = append(errs, "top_k_per_namespace must be positive")
	}

	if c.Pipeline.MinResultsBeforeStop < 1 {
		errs = append(errs, "min_results_before_stop must be positive")
	}

	for name, v := range map[string]float32{
		"routing.instant":       c.Routing.Instant,
		"routing.rag":           c.Routing.RAG,
		"routing.min_top_score": c.Routing.MinTopScore,
		"routing.clarify":       c.Routing.Clarify,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Sprintf("%s must be between 0 and 1", name))
		}
	}

	if c.Routing.Instant < c.Routing.RAG || c.Routing.RAG < c.Routing.Clarify {
		errs = append(errs, "routing thresholds must satisfy instant >= rag >= clarify")
	}

	if c.Observability.QueueSize < 1 {
		errs = append(errs, "observability queue_size must be positive")
	}

	if c.Observability.FlushBatch < 1 {
		errs = append(errs, "observability flush_batch must be positive")
	}

	if c.Kafka.Brokers != "" && c.Kafka.Topic == "" {
		errs = append(errs, "kafka topic is required when brokers are set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Address returns the server address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
