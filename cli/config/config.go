// Package config handles YAML config file loading for stencil.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/pithecene-io/stencil/types"
)

// Config represents a stencil.yaml configuration file.
// Credentials are typically supplied through ${VAR} env expansion so the
// file itself can be committed without secrets.
type Config struct {
	Hub         HubConfig        `yaml:"hub"`
	Storage     StorageConfig    `yaml:"storage"`
	Publish     PublishConfig    `yaml:"publish"`
	HistoryPath string           `yaml:"history_path"`
	Templates   []TemplateConfig `yaml:"templates"`
}

// HubConfig holds the remote template hub settings.
type HubConfig struct {
	Host          string   `yaml:"host"`
	User          string   `yaml:"user"`
	Password      string   `yaml:"password"`
	Timeout       Duration `yaml:"timeout"`
	StatusRetries int      `yaml:"status_retries"`
}

// StorageConfig holds the staging bucket settings.
type StorageConfig struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	S3PathStyle     bool   `yaml:"s3_path_style"`
	DownloadBaseURL string `yaml:"download_base_url"`
}

// PublishConfig holds the workflow knobs. Zero values fall back to the
// workflow defaults (2s poll interval, 1h batch timeout, unbounded polls,
// full parallelism).
type PublishConfig struct {
	PollInterval    Duration `yaml:"poll_interval"`
	BatchTimeout    Duration `yaml:"batch_timeout"`
	TemplateTimeout Duration `yaml:"template_timeout"`
	MaxPolls        int      `yaml:"max_polls"`
	Parallel        int      `yaml:"parallel"`
}

// TemplateConfig is one entry of the template manifest.
type TemplateConfig struct {
	// Name is the template name (required).
	Name string `yaml:"name"`
	// RemoteKey overrides the staged object key. Defaults to
	// <storage.prefix><name>.zip.
	RemoteKey string `yaml:"remote_key,omitempty"`
	// Path is the local packaged zip, used when staging. Defaults to
	// <name>.zip in the working directory.
	Path string `yaml:"path,omitempty"`
}

// ZipPath returns the local packaged zip path for staging.
func (t TemplateConfig) ZipPath() string {
	if t.Path != "" {
		return t.Path
	}
	return t.Name + ".zip"
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Validate checks everything required before any network activity begins.
// Missing credentials abort the workflow here, not mid-batch.
func (c *Config) Validate() error {
	if c.Hub.Host == "" {
		return errors.New("hub.host is required")
	}
	if c.Hub.User == "" || c.Hub.Password == "" {
		return errors.New("hub credentials are required (hub.user, hub.password)")
	}
	if c.Storage.Bucket == "" {
		return errors.New("storage.bucket is required")
	}
	if c.Storage.DownloadBaseURL == "" {
		return errors.New("storage.download_base_url is required")
	}
	for i, t := range c.Templates {
		if t.Name == "" {
			return fmt.Errorf("templates[%d]: name is required", i)
		}
	}
	return nil
}

// Artifacts derives the artifact set from the template manifest, applying
// the storage prefix to entries without an explicit remote key. Order
// follows the manifest.
func (c *Config) Artifacts() []types.Artifact {
	artifacts := make([]types.Artifact, 0, len(c.Templates))
	for _, t := range c.Templates {
		key := t.RemoteKey
		if key == "" {
			key = c.Storage.Prefix + t.Name + ".zip"
		}
		artifacts = append(artifacts, types.Artifact{Name: t.Name, RemoteKey: key})
	}
	return artifacts
}
