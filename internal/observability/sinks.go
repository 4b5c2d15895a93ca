package observability

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"

	"github.com/askdesk/askdesk/internal/pkg/errors"
	"github.com/askdesk/askdesk/internal/pkg/logger"
)

// LoggerSink writes query logs through the structured logger. Always
// configured; Kafka is layered on top when brokers are available.
type LoggerSink struct {
	log *logger.Logger
}

// NewLoggerSink creates a logger-backed sink.
func NewLoggerSink(log *logger.Logger) *LoggerSink {
	return &LoggerSink{log: log}
}

// Write logs each entry at info level.
func (s *LoggerSink) Write(ctx context.Context, batch []QueryLog) error {
	for _, q := range batch {
		s.log.Info("query answered",
			"intent", q.Intent,
			"intent_confidence", q.IntentConfidence,
			"route", q.Route,
			"fallback_reason", q.FallbackReason,
			"namespaces", q.Namespaces,
			"result_count", q.ResultCount,
			"top_score", q.TopScore,
			"total_latency_ms", q.TotalLatencyMs,
			"successful", q.Successful,
		)
	}
	return nil
}

// Close implements Sink.
func (s *LoggerSink) Close() error { return nil }

// KafkaSink publishes query logs to a Kafka topic as JSON.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
}

// KafkaSinkConfig holds Kafka sink settings.
type KafkaSinkConfig struct {
	Brokers []string
	Topic   string
	Timeout time.Duration
}

// NewKafkaSink creates a Kafka-backed query log sink.
func NewKafkaSink(cfg KafkaSinkConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.CodeValidation, "kafka brokers cannot be empty")
	}
	if cfg.Topic == "" {
		return nil, errors.New(errors.CodeValidation, "kafka topic cannot be empty")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	kafkaConfig := sarama.NewConfig()
	kafkaConfig.ClientID = "askdesk-query-log"
	kafkaConfig.Producer.Return.Successes = true
	kafkaConfig.Producer.Return.Errors = true
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	kafkaConfig.Net.DialTimeout = cfg.Timeout
	kafkaConfig.Net.WriteTimeout = cfg.Timeout

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, errors.Wrap(errors.CodeUnavailable, "creating kafka producer", err)
	}

	return &KafkaSink{
		producer: producer,
		topic:    cfg.Topic,
	}, nil
}

// Write publishes each entry as one JSON message.
func (s *KafkaSink) Write(ctx context.Context, batch []QueryLog) error {
	messages := make([]*sarama.ProducerMessage, 0, len(batch))
	for _, q := range batch {
		data, err := json.Marshal(q)
		if err != nil {
			continue
		}
		messages = append(messages, &sarama.ProducerMessage{
			Topic: s.topic,
			Value: sarama.ByteEncoder(data),
		})
	}

	if len(messages) == 0 {
		return nil
	}

	if err := s.producer.SendMessages(messages); err != nil {
		return errors.Wrap(errors.CodeUnavailable, "publishing query logs", err)
	}
	return nil
}

// Close shuts down the producer.
func (s *KafkaSink) Close() error {
	return s.producer.Close()
}
