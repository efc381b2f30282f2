package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		HTTP:      HTTPConfig{Port: 8080},
		Database:  DatabaseConfig{Addrs: []string{"localhost:6379"}},
		LLM:       LLMConfig{APIKey: "test-key"},
		Embedding: EmbeddingConfig{APIKey: "test-key"},
		Pipeline:  PipelineConfig{TopK: 5, CandidatePool: 100},
		Collections: map[string]CollectionConfig{
			"managers": {
				TagFields:     []string{"name", "branch"},
				NumericFields: []string{"ctc"},
				NameFields:    []string{"name"},
			},
		},
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingDatabaseAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing database addrs")
	}
}

func TestValidate_MissingAPIKeys(t *testing.T) {
	cfg := validConfig()
	cfg.LLM.APIKey = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing llm api key")
	}

	cfg = validConfig()
	cfg.Embedding.APIKey = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing embedding api key")
	}
}

func TestValidate_NoCollections(t *testing.T) {
	cfg := validConfig()
	cfg.Collections = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when no collections are configured")
	}
}

func TestValidate_TopKExceedsCandidatePool(t *testing.T) {
	cfg := validConfig()
	cfg.Pipeline.TopK = 200
	cfg.Pipeline.CandidatePool = 100

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for top_k above candidate_pool")
	}
	if !strings.Contains(err.Error(), "top_k") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestValidate_NameFieldMustBeTagField(t *testing.T) {
	cfg := validConfig()
	col := cfg.Collections["managers"]
	col.NameFields = []string{"ctc"}
	cfg.Collections["managers"] = col

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for name field outside tag fields")
	}

	expected := `collection "managers": name field "ctc" is not a tag field`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_CollectionWithoutFields(t *testing.T) {
	cfg := validConfig()
	cfg.Collections["empty"] = CollectionConfig{}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for collection with no fields")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 120 {
		t.Errorf("expected WriteTimeoutSec=120, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Database.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Database.ReadinessTimeout)
	}
	if cfg.Database.KeyPrefix != "naviq:" {
		t.Errorf("expected KeyPrefix='naviq:', got %q", cfg.Database.KeyPrefix)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("expected LLM model default, got %q", cfg.LLM.Model)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("expected embedding model default, got %q", cfg.Embedding.Model)
	}
	if cfg.Embedding.Dimensions != 1536 {
		t.Errorf("expected Dimensions=1536, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Pipeline.TopK != 5 {
		t.Errorf("expected TopK=5, got %d", cfg.Pipeline.TopK)
	}
	if cfg.Pipeline.CandidatePool != 100 {
		t.Errorf("expected CandidatePool=100, got %d", cfg.Pipeline.CandidatePool)
	}
	if cfg.Pipeline.BackfillBatchSize != 50 {
		t.Errorf("expected BackfillBatchSize=50, got %d", cfg.Pipeline.BackfillBatchSize)
	}
	if cfg.Auth.DefaultCallerID != "admin" || cfg.Auth.DefaultCallerRole != "Admin" {
		t.Errorf("expected default caller admin/Admin, got %s/%s",
			cfg.Auth.DefaultCallerID, cfg.Auth.DefaultCallerRole)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:      HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Database:  DatabaseConfig{ReadinessTimeout: 15, KeyPrefix: "custom:"},
		Pipeline:  PipelineConfig{TopK: 3, CandidatePool: 50, BackfillBatchSize: 10},
		Embedding: EmbeddingConfig{Dimensions: 768},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Database.KeyPrefix != "custom:" {
		t.Errorf("expected KeyPrefix='custom:', got %q", cfg.Database.KeyPrefix)
	}
	if cfg.Pipeline.TopK != 3 || cfg.Pipeline.CandidatePool != 50 {
		t.Errorf("expected TopK=3 CandidatePool=50, got %d/%d",
			cfg.Pipeline.TopK, cfg.Pipeline.CandidatePool)
	}
	if cfg.Embedding.Dimensions != 768 {
		t.Errorf("expected Dimensions=768, got %d", cfg.Embedding.Dimensions)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("NAVIQ_TEST_ADDR", "redis:6380")

	in := []byte("addr: ${NAVIQ_TEST_ADDR}\nprefix: ${NAVIQ_TEST_MISSING:-naviq:}\nempty: ${NAVIQ_TEST_MISSING}")
	out := string(expandEnvVars(in))

	if !strings.Contains(out, "addr: redis:6380") {
		t.Errorf("env var not substituted: %q", out)
	}
	if !strings.Contains(out, "prefix: naviq:") {
		t.Errorf("default not applied: %q", out)
	}
	if !strings.Contains(out, "empty: \n") && !strings.HasSuffix(out, "empty: ") {
		t.Errorf("missing var without default should expand empty: %q", out)
	}
}
