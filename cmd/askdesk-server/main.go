// Package main provides the askdesk server binary. It answers employee
// questions over HTTP by orchestrating intent classification, multi-namespace
// vector retrieval, fusion, and grounded generation.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	aiopenai "github.com/askdesk/askdesk/internal/ai/openai"
	"github.com/askdesk/askdesk/internal/cache"
	"github.com/askdesk/askdesk/internal/config"
	"github.com/askdesk/askdesk/internal/fusion"
	"github.com/askdesk/askdesk/internal/metrics"
	"github.com/askdesk/askdesk/internal/observability"
	"github.com/askdesk/askdesk/internal/pipeline"
	"github.com/askdesk/askdesk/internal/pkg/logger"
	"github.com/askdesk/askdesk/internal/pkg/middleware"
	"github.com/askdesk/askdesk/internal/rerank"
	"github.com/askdesk/askdesk/internal/retrieval"
	"github.com/askdesk/askdesk/internal/router"
	"github.com/askdesk/askdesk/internal/server"
	"github.com/askdesk/askdesk/internal/strategy"
	"github.com/askdesk/askdesk/internal/vectorstore/qdrant"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "askdesk-server",
		Short: "AskDesk Server - retrieval-augmented question answering over HR documents",
		Long: `AskDesk Server answers employee questions over HTTP.

Each query is classified by intent, searched across the employee, organization,
and public document namespaces, fused into one ranked context, and answered
with a grounded generation or routed to a clarification/fallback response.

Examples:
  askdesk-server                        # Start with defaults
  askdesk-server --config askdesk.yaml  # Custom config file
  askdesk-server --port 9090            # Custom HTTP port`,
		RunE:         runServer,
		SilenceUsage: true,
	}

	rootCmd.Flags().StringP("config", "c", "", "config file path")
	rootCmd.Flags().BoolP("verbose", "v", false, "verbose logging")
	rootCmd.Flags().Int("port", 8080, "HTTP server port")
	rootCmd.Flags().String("host", "0.0.0.0", "server host")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("askdesk-server %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	port, _ := cmd.Flags().GetInt("port")
	host, _ := cmd.Flags().GetString("host")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = port
	}
	if cmd.Flags().Changed("host") {
		cfg.Host = host
	}

	logLevel := cfg.Log.Level
	if verbose {
		logLevel = "debug"
	}
	log := logger.New(logLevel, cfg.Log.Format)

	log.Info("Starting AskDesk Server",
		"version", version,
		"addr", cfg.Address(),
	)

	// Metrics
	var m *metrics.Metrics
	if cfg.Observability.MetricsEnabled {
		m = metrics.New()
		log.Info("Metrics enabled", "path", cfg.Observability.MetricsPath)
	}

	// Qdrant
	qc, err := qdrant.NewClient(qdrant.ClientConfig{
		Host:             cfg.Qdrant.Host,
		Port:             cfg.Qdrant.Port,
		APIKey:           cfg.Qdrant.APIKey,
		UseTLS:           cfg.Qdrant.UseTLS,
		CollectionPrefix: cfg.Qdrant.CollectionPrefix,
		Timeout:          time.Duration(cfg.Qdrant.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return fmt.Errorf("failed to create qdrant client: %w", err)
	}
	defer func() { _ = qc.Close() }()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 10*time.Second)
	if err := qc.HealthCheck(startupCtx); err != nil {
		log.Warn("Qdrant not reachable at startup, continuing", "error", err)
	} else {
		log.Info("Connected to Qdrant", "host", cfg.Qdrant.Host, "port", cfg.Qdrant.Port)
	}
	cancelStartup()

	// OpenAI-compatible capabilities
	aiClient := aiopenai.NewClient(aiopenai.Config{
		APIKey:     cfg.OpenAI.APIKey,
		BaseURL:    cfg.OpenAI.BaseURL,
		EmbedModel: cfg.OpenAI.EmbedModel,
		ChatModel:  cfg.OpenAI.ChatModel,
	}, log)

	var reranker rerank.Reranker
	if cfg.Pipeline.EnableReranking {
		reranker = aiopenai.NewReranker(aiClient)
		log.Info("Reranking enabled", "top_k", cfg.Pipeline.RerankTopK)
	}

	// Answer cache (optional)
	var answers pipeline.AnswerCache
	if cfg.Redis.URL != "" {
		ac, err := cache.NewAnswerCache(cfg.Redis.URL, time.Duration(cfg.Redis.AnswerTTLSec)*time.Second, log)
		if err != nil {
			log.Warn("Answer cache unavailable, continuing without it", "error", err)
		} else {
			answers = ac
			defer func() { _ = ac.Close() }()
			log.Info("Answer cache enabled", "ttl_sec", cfg.Redis.AnswerTTLSec)
		}
	}

	// Query log recorder
	sinks := []observability.Sink{observability.NewLoggerSink(log)}
	if brokers := cfg.Kafka.BrokerList(); len(brokers) > 0 {
		ks, err := observability.NewKafkaSink(observability.KafkaSinkConfig{
			Brokers: brokers,
			Topic:   cfg.Kafka.Topic,
		})
		if err != nil {
			log.Warn("Kafka sink unavailable, query logs go to the logger only", "error", err)
		} else {
			sinks = append(sinks, ks)
			log.Info("Kafka query log sink enabled", "topic", cfg.Kafka.Topic)
		}
	}
	recorder := observability.NewRecorder(observability.Config{
		QueueSize:     cfg.Observability.QueueSize,
		FlushInterval: time.Duration(cfg.Observability.FlushIntervalMs) * time.Millisecond,
		FlushBatch:    cfg.Observability.FlushBatch,
	}, log, sinks...)
	defer func() { _ = recorder.Close() }()

	// Pipeline
	svc := pipeline.NewService(pipeline.Config{
		TotalTimeout:    time.Duration(cfg.Pipeline.TotalTimeoutMs) * time.Millisecond,
		TopK:            cfg.Pipeline.TopK,
		EnableReranking: cfg.Pipeline.EnableReranking,
		RerankTopK:      cfg.Pipeline.RerankTopK,
		Thresholds: router.Thresholds{
			Instant:     cfg.Routing.Instant,
			RAG:         cfg.Routing.RAG,
			MinTopScore: cfg.Routing.MinTopScore,
			Clarify:     cfg.Routing.Clarify,
		},
		Fusion: fusion.Config{RRFK: cfg.Pipeline.RRFK},
	}, pipeline.Deps{
		Classifier: aiopenai.NewClassifier(aiClient),
		Embedder:   aiopenai.NewEmbedder(aiClient),
		Searcher:   qc,
		Generator:  aiopenai.NewGenerator(aiClient),
		Reranker:   reranker,
		Answers:    answers,
		EmbedCache: cache.NewEmbeddingCache(0),
		Selector: strategy.NewSelector(strategy.Config{
			MinResultsBeforeStop: cfg.Pipeline.MinResultsBeforeStop,
		}),
		Executor: retrieval.NewExecutor(retrieval.Config{
			NamespaceTimeout: time.Duration(cfg.Pipeline.NamespaceTimeoutMs) * time.Millisecond,
			TopKPerNamespace: cfg.Pipeline.TopKPerNamespace,
		}, log),
		Recorder: recorder,
		Metrics:  m,
	}, log)

	// Rate limiter
	var rateLimiter *middleware.RateLimiter
	if cfg.Security.RateLimit > 0 {
		rateLimiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RequestsPerSecond: float64(cfg.Security.RateLimit),
			Burst:             cfg.Security.RateLimit * 2,
			CleanupInterval:   time.Minute,
		})
		log.Info("Rate limiting enabled", "requests_per_second", cfg.Security.RateLimit)
	}

	srv := server.New(server.Config{
		Addr:        cfg.Address(),
		MetricsPath: cfg.Observability.MetricsPath,
		Version:     version,
		// The write timeout must outlast the pipeline deadline.
		WriteTimeout: time.Duration(cfg.Pipeline.TotalTimeoutMs)*time.Millisecond + 15*time.Second,
	}, svc, log, rateLimiter, m, map[string]server.HealthChecker{
		"qdrant": qc,
		"openai": aiClient,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case sig := <-sigCh:
		log.Info("Shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Graceful shutdown failed", "error", err)
	}

	log.Info("Server stopped")
	return nil
}
