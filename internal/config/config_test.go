package config

import (
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP: HTTPConfig{Port: 8080},
		Database: DatabaseConfig{
			Addrs: []string{"localhost:6379"},
		},
	}
	cfg.ApplyDefaults()
	return cfg
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

func TestValidate_MissingAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing database addrs")
	}
}

func TestValidate_UnsupportedDimensions(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Dimensions = 512
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported embedding dimensions")
	}
}

func TestApplyDefaults_SearchTuning(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.Search.Alpha != 0.7 {
		t.Errorf("alpha default = %f, want 0.7", cfg.Search.Alpha)
	}
	if cfg.Search.Decay != 0.1 {
		t.Errorf("decay default = %f, want 0.1", cfg.Search.Decay)
	}
	if cfg.Search.Threshold != 0.7 {
		t.Errorf("threshold default = %f, want 0.7", cfg.Search.Threshold)
	}
	if cfg.Search.Limit != 5 {
		t.Errorf("limit default = %d, want 5", cfg.Search.Limit)
	}
	if cfg.Search.CallTimeoutSec != 12 {
		t.Errorf("call timeout default = %d, want 12", cfg.Search.CallTimeoutSec)
	}
	if cfg.Storage.KeyPrefix != "uxlens:" {
		t.Errorf("key prefix default = %q", cfg.Storage.KeyPrefix)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("UXLENS_TEST_KEY", "secret")

	in := []byte("api_key: ${UXLENS_TEST_KEY}\nmodel: ${UXLENS_TEST_MODEL:-text-embedding-3-small}")
	out := string(expandEnvVars(in))

	want := "api_key: secret\nmodel: text-embedding-3-small"
	if out != want {
		t.Errorf("expandEnvVars:\ngot:  %q\nwant: %q", out, want)
	}
}
