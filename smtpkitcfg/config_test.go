package smtpkitcfg

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "smtpsend.yaml")
	contents := "addr: mail.example.com:587\nsecurity: required\nusername: alice\n"
	if err := os.WriteFile(file, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG", file)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != "mail.example.com:587" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.Security != "required" {
		t.Errorf("Security = %q", cfg.Security)
	}
	if cfg.Username != "alice" {
		t.Errorf("Username = %q", cfg.Username)
	}
}

func TestLoad_LocalOverride(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "smtpsend.yaml")
	local := filepath.Join(dir, "smtpsend.local.yaml")
	if err := os.WriteFile(file, []byte("addr: mail.example.com:587\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(local, []byte("addr: localhost:2525\n"), 0o600); err != nil {
		t.Fatalf("write local override: %v", err)
	}

	t.Setenv("CONFIG", file)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != "localhost:2525" {
		t.Errorf("Addr = %q, want local override to win", cfg.Addr)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "smtpsend.yaml")
	if err := os.WriteFile(file, []byte("addr: mail.example.com:587\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG", file)
	t.Setenv("SMTPSEND_ADDR", "override.example.com:25")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != "override.example.com:25" {
		t.Errorf("Addr = %q, want env to win over file", cfg.Addr)
	}
}
