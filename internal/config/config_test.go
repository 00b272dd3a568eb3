package config

import (
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.ContractBackend != BackendMemory {
		t.Fatalf("expected memory backend, got %s", cfg.ContractBackend)
	}
	if cfg.ContractAddress != "0x65aCd2dD683E6F3E803393CD6A75782Ab806A447" {
		t.Fatalf("unexpected contract address %s", cfg.ContractAddress)
	}
	if cfg.SessionTTL != 12*time.Hour {
		t.Fatalf("expected 12h session ttl, got %s", cfg.SessionTTL)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("expected :8080, got %s", cfg.Address())
	}
}

func TestParseRequiresInfraOutsideDev(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	if _, err := Parse(); err == nil {
		t.Fatalf("expected missing DATABASE_URL error")
	}
}

func TestParseRPCBackendNeedsURL(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("CONTRACT_BACKEND", "RPC")
	t.Setenv("RPC_URL", "")

	if _, err := Parse(); err == nil {
		t.Fatalf("expected missing RPC_URL error")
	}

	t.Setenv("RPC_URL", "http://localhost:8545")
	t.Setenv("SIGNER_KEYS", "aa,bb")
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.ContractBackend != BackendRPC {
		t.Fatalf("expected lower-cased backend, got %s", cfg.ContractBackend)
	}
	if len(cfg.SignerKeys) != 2 {
		t.Fatalf("expected 2 signer keys, got %d", len(cfg.SignerKeys))
	}
}
