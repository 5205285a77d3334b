package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stencil.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return path
}

const validConfig = `
hub:
  host: https://hub.example.com
  user: svc-publisher
  password: hunter2
  timeout: 30s
  status_retries: 2
storage:
  bucket: stencil-staging
  prefix: templates/
  download_base_url: https://downloads.example.com
publish:
  poll_interval: 5s
  batch_timeout: 45m
  max_polls: 120
  parallel: 4
templates:
  - name: invoice
  - name: waybill
    remote_key: custom/waybill-v2.zip
    path: build/waybill.zip
`

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Hub.Host != "https://hub.example.com" || cfg.Hub.User != "svc-publisher" {
		t.Errorf("hub config did not load: %+v", cfg.Hub)
	}
	if cfg.Hub.Timeout.Duration != 30*time.Second {
		t.Errorf("expected 30s hub timeout, got %v", cfg.Hub.Timeout.Duration)
	}
	if cfg.Hub.StatusRetries != 2 {
		t.Errorf("expected 2 status retries, got %d", cfg.Hub.StatusRetries)
	}
	if cfg.Publish.PollInterval.Duration != 5*time.Second {
		t.Errorf("expected 5s poll interval, got %v", cfg.Publish.PollInterval.Duration)
	}
	if cfg.Publish.BatchTimeout.Duration != 45*time.Minute {
		t.Errorf("expected 45m batch timeout, got %v", cfg.Publish.BatchTimeout.Duration)
	}
	if cfg.Publish.MaxPolls != 120 || cfg.Publish.Parallel != 4 {
		t.Errorf("publish knobs did not load: %+v", cfg.Publish)
	}
	if len(cfg.Templates) != 2 {
		t.Fatalf("expected 2 templates, got %d", len(cfg.Templates))
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "hub: [unclosed"))
	if err == nil || !strings.Contains(err.Error(), "invalid YAML") {
		t.Errorf("expected YAML error, got %v", err)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	_, err := Load(writeConfig(t, "publish:\n  poll_interval: soon\n"))
	if err == nil || !strings.Contains(err.Error(), `invalid duration "soon"`) {
		t.Errorf("expected duration error, got %v", err)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("STENCIL_TEST_PASSWORD", "s3cret")
	os.Unsetenv("STENCIL_TEST_HOST")

	cfg, err := Load(writeConfig(t, `
hub:
  host: ${STENCIL_TEST_HOST:-https://hub.example.com}
  user: ${STENCIL_TEST_USER:-svc-publisher}
  password: ${STENCIL_TEST_PASSWORD}
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Hub.Host != "https://hub.example.com" {
		t.Errorf("expected default host, got %q", cfg.Hub.Host)
	}
	if cfg.Hub.Password != "s3cret" {
		t.Errorf("expected env password, got %q", cfg.Hub.Password)
	}
}

func TestExpandEnv_UnsetWithoutDefault(t *testing.T) {
	os.Unsetenv("STENCIL_TEST_UNSET")
	if got := ExpandEnv("password: ${STENCIL_TEST_UNSET}"); got != "password: " {
		t.Errorf("unset variable must expand to empty, got %q", got)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Hub: HubConfig{Host: "https://hub.example.com", User: "u", Password: "p"},
			Storage: StorageConfig{
				Bucket:          "stencil-staging",
				DownloadBaseURL: "https://downloads.example.com",
			},
			Templates: []TemplateConfig{{Name: "invoice"}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing host", mutate: func(c *Config) { c.Hub.Host = "" }, wantErr: "hub.host"},
		{name: "missing user", mutate: func(c *Config) { c.Hub.User = "" }, wantErr: "credentials"},
		{name: "missing password", mutate: func(c *Config) { c.Hub.Password = "" }, wantErr: "credentials"},
		{name: "missing bucket", mutate: func(c *Config) { c.Storage.Bucket = "" }, wantErr: "storage.bucket"},
		{name: "missing download URL", mutate: func(c *Config) { c.Storage.DownloadBaseURL = "" }, wantErr: "download_base_url"},
		{name: "unnamed template", mutate: func(c *Config) { c.Templates[0].Name = "" }, wantErr: "templates[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestArtifacts_KeyDerivation(t *testing.T) {
	cfg := &Config{
		Storage: StorageConfig{Prefix: "templates/"},
		Templates: []TemplateConfig{
			{Name: "invoice"},
			{Name: "waybill", RemoteKey: "custom/waybill-v2.zip"},
		},
	}

	artifacts := cfg.Artifacts()
	if len(artifacts) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(artifacts))
	}
	if artifacts[0].RemoteKey != "templates/invoice.zip" {
		t.Errorf("expected derived key with prefix, got %q", artifacts[0].RemoteKey)
	}
	if artifacts[1].RemoteKey != "custom/waybill-v2.zip" {
		t.Errorf("explicit remote key must win, got %q", artifacts[1].RemoteKey)
	}
}

func TestZipPath(t *testing.T) {
	if got := (TemplateConfig{Name: "invoice"}).ZipPath(); got != "invoice.zip" {
		t.Errorf("expected default zip path, got %q", got)
	}
	if got := (TemplateConfig{Name: "invoice", Path: "build/inv.zip"}).ZipPath(); got != "build/inv.zip" {
		t.Errorf("explicit path must win, got %q", got)
	}
}
