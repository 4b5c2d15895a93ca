package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("ASKDESK_PORT", "9090")
	os.Setenv("ASKDESK_ROUTE_INSTANT", "0.99")
	defer func() {
		os.Unsetenv("ASKDESK_PORT")
		os.Unsetenv("ASKDESK_ROUTE_INSTANT")
	}()

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}

	if cfg.Routing.Instant != 0.99 {
		t.Errorf("Routing.Instant = %v, want 0.99", cfg.Routing.Instant)
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Routing.Instant != 0.95 || cfg.Routing.RAG != 0.7 ||
		cfg.Routing.MinTopScore != 0.35 || cfg.Routing.Clarify != 0.3 {
		t.Errorf("routing defaults = %+v, want 0.95/0.7/0.35/0.3", cfg.Routing)
	}

	if cfg.Pipeline.TotalTimeoutMs != 15000 {
		t.Errorf("TotalTimeoutMs = %d, want 15000", cfg.Pipeline.TotalTimeoutMs)
	}

	if cfg.Pipeline.NamespaceTimeoutMs != 2000 {
		t.Errorf("NamespaceTimeoutMs = %d, want 2000", cfg.Pipeline.NamespaceTimeoutMs)
	}

	if cfg.Pipeline.MinResultsBeforeStop != 3 {
		t.Errorf("MinResultsBeforeStop = %d, want 3", cfg.Pipeline.MinResultsBeforeStop)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
host: "127.0.0.1"
port: 8888
log:
  level: warn
  format: json
qdrant:
  host: "qdrant.internal"
  port: 7334
routing:
  instant: 0.9
  rag: 0.6
  min_top_score: 0.4
  clarify: 0.2
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Host != "127.0.0.1" {
		t.Errorf("Host = %s, want 127.0.0.1", cfg.Host)
	}
	if cfg.Qdrant.Host != "qdrant.internal" {
		t.Errorf("Qdrant.Host = %s, want qdrant.internal", cfg.Qdrant.Host)
	}
	if cfg.Routing.RAG != 0.6 {
		t.Errorf("Routing.RAG = %v, want 0.6", cfg.Routing.RAG)
	}
}

func TestValidate_ThresholdOrdering(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)
	cfg.Routing.RAG = 0.99 // above instant

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want ordering error")
	}
	if !strings.Contains(err.Error(), "instant >= rag >= clarify") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_NamespaceTimeoutBound(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)
	cfg.Pipeline.NamespaceTimeoutMs = 20000

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil, want namespace timeout error")
	}
}

func TestBrokerList(t *testing.T) {
	k := KafkaConfig{Brokers: "k1:9092, k2:9092 ,"}
	got := k.BrokerList()
	if len(got) != 2 || got[0] != "k1:9092" || got[1] != "k2:9092" {
		t.Errorf("BrokerList() = %v", got)
	}

	if (KafkaConfig{}).BrokerList() != nil {
		t.Error("empty brokers should return nil")
	}
}
