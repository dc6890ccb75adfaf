package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "chordd.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

const validConfig = `
finger_table_sz: 16
max_steps: 32
max_succ: 3
fix_interval: 5
listen_address: 127.0.0.1:5000
api_address: 127.0.0.1:6000
`

func TestLoadValidConfig(t *testing.T) {
	path := writeTestConfig(t, validConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FingerTableSize != 16 || cfg.MaxSteps != 32 || cfg.MaxSucc != 3 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.FixInterval.Seconds() != 5 {
		t.Fatalf("expected fix_interval to convert to 5s, got %v", cfg.FixInterval)
	}
	if cfg.ListenAddress != "127.0.0.1:5000" || cfg.APIAddress != "127.0.0.1:6000" {
		t.Fatalf("unexpected addresses: %+v", cfg)
	}
	if cfg.ReplicaCount != 1 {
		t.Fatalf("expected default replica count 1, got %d", cfg.ReplicaCount)
	}
}

func TestLoadMissingRequiredKeyFails(t *testing.T) {
	path := writeTestConfig(t, `
finger_table_sz: 16
max_steps: 32
max_succ: 3
fix_interval: 5
listen_address: 127.0.0.1:5000
`) // api_address omitted
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for a config missing api_address")
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml")); err == nil {
		t.Fatalf("expected an error for a missing config file")
	}
}
