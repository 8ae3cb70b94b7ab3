// Package config provides configuration loading and management for semplan.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Plan storage backends.
const (
	BackendFile = "file"
	BackendNATS = "nats"
)

// Tool server transports.
const (
	TransportStdio = "stdio"
	TransportNATS  = "nats"
)

// Config represents the complete semplan configuration
type Config struct {
	Project   ProjectConfig   `yaml:"project"`
	Plans     PlansConfig     `yaml:"plans"`
	Workflows WorkflowsConfig `yaml:"workflows"`
	NATS      NATSConfig      `yaml:"nats"`
	Server    ServerConfig    `yaml:"server"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ProjectConfig configures the project the plans belong to
type ProjectConfig struct {
	// Root is the directory relative paths resolve against (auto-detected from git if empty)
	Root string `yaml:"root"`
}

// PlansConfig configures plan record storage
type PlansConfig struct {
	// Backend is "file" or "nats"
	Backend string `yaml:"backend"`
	// Dir holds plan files for the file backend
	Dir string `yaml:"dir"`
}

// WorkflowsConfig configures the workflow catalog
type WorkflowsConfig struct {
	// File is the workflow catalog document
	File string `yaml:"file"`
	// Watch reloads the catalog when the file changes (default true)
	Watch *bool `yaml:"watch,omitempty"`
}

// WatchEnabled reports whether the catalog file should be watched.
func (w WorkflowsConfig) WatchEnabled() bool {
	return w.Watch == nil || *w.Watch
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL (empty = use embedded server)
	URL string `yaml:"url"`
	// Embedded indicates whether to use embedded NATS
	Embedded bool `yaml:"embedded"`
	// StoreDir holds embedded JetStream data (empty = temporary directory)
	StoreDir string `yaml:"store_dir"`
	// Bucket is the KV bucket for the nats plan backend
	Bucket string `yaml:"bucket"`
	// SubjectPrefix is the subject prefix tools are served under
	SubjectPrefix string `yaml:"subject_prefix"`
	// RequestTimeout bounds one tool call over NATS
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// ServerConfig configures the tool server
type ServerConfig struct {
	// Transport is "stdio" (MCP) or "nats"
	Transport string `yaml:"transport"`
	// Name is the server name announced to MCP clients
	Name string `yaml:"name"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	// Addr is the listen address for /metrics (empty = disabled)
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Project: ProjectConfig{
			Root: "", // Auto-detect
		},
		Plans: PlansConfig{
			Backend: BackendFile,
			Dir:     ".semplan/plans",
		},
		Workflows: WorkflowsConfig{
			File: ".semplan/workflows.yaml",
		},
		NATS: NATSConfig{
			URL:            "",
			Embedded:       true,
			Bucket:         "SEMPLAN_PLANS",
			SubjectPrefix:  "semplan.tools",
			RequestTimeout: 30 * time.Second,
		},
		Server: ServerConfig{
			Transport: TransportStdio,
			Name:      "semplan",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	switch c.Plans.Backend {
	case BackendFile:
		if c.Plans.Dir == "" {
			return fmt.Errorf("plans.dir is required for the file backend")
		}
	case BackendNATS:
		if c.NATS.Bucket == "" {
			return fmt.Errorf("nats.bucket is required for the nats backend")
		}
	default:
		return fmt.Errorf("plans.backend must be %q or %q, got %q", BackendFile, BackendNATS, c.Plans.Backend)
	}
	if c.Workflows.File == "" {
		return fmt.Errorf("workflows.file is required")
	}
	switch c.Server.Transport {
	case TransportStdio, TransportNATS:
	default:
		return fmt.Errorf("server.transport must be %q or %q, got %q", TransportStdio, TransportNATS, c.Server.Transport)
	}
	if c.Server.Transport == TransportNATS && c.NATS.SubjectPrefix == "" {
		return fmt.Errorf("nats.subject_prefix is required for the nats transport")
	}
	if c.NATS.RequestTimeout < 0 {
		return fmt.Errorf("nats.request_timeout must not be negative")
	}
	return nil
}

// UsesNATS reports whether any component needs a NATS connection.
func (c *Config) UsesNATS() bool {
	return c.Plans.Backend == BackendNATS || c.Server.Transport == TransportNATS
}

// ResolvePath makes p absolute against the project root.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Project.Root == "" {
		return p
	}
	return filepath.Join(c.Project.Root, p)
}

// LoadFromFile loads configuration from a YAML file. ${VAR} and
// ${VAR:-default} references are expanded before parsing.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal([]byte(ExpandEnvWithDefaults(string(data))), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := c.Marshal()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Project
	if other.Project.Root != "" {
		c.Project.Root = other.Project.Root
	}

	// Plans
	if other.Plans.Backend != "" {
		c.Plans.Backend = other.Plans.Backend
	}
	if other.Plans.Dir != "" {
		c.Plans.Dir = other.Plans.Dir
	}

	// Workflows
	if other.Workflows.File != "" {
		c.Workflows.File = other.Workflows.File
	}
	if other.Workflows.Watch != nil {
		watch := *other.Workflows.Watch
		c.Workflows.Watch = &watch
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
		c.NATS.Embedded = false
	}
	if other.NATS.StoreDir != "" {
		c.NATS.StoreDir = other.NATS.StoreDir
	}
	if other.NATS.Bucket != "" {
		c.NATS.Bucket = other.NATS.Bucket
	}
	if other.NATS.SubjectPrefix != "" {
		c.NATS.SubjectPrefix = other.NATS.SubjectPrefix
	}
	if other.NATS.RequestTimeout != 0 {
		c.NATS.RequestTimeout = other.NATS.RequestTimeout
	}

	// Server
	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.Name != "" {
		c.Server.Name = other.Server.Name
	}

	// Metrics
	if other.Metrics.Addr != "" {
		c.Metrics.Addr = other.Metrics.Addr
	}
}
