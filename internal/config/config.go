// Package config manages YAML-based configuration, defaults, and backend selection.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Deployment modes.
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// BackendKind names a storage backend implementation.
type BackendKind string

// Storage backends.
const (
	BackendFilesystem BackendKind = "filesystem"
	BackendMemory     BackendKind = "memory"
	BackendObject     BackendKind = "object"
)

// LocalConfigFile is looked up in the working directory when no config
// file is given explicitly.
const LocalConfigFile = "filedesk.yaml"

// UploadConfig bounds multipart uploads.
type UploadConfig struct {
	MaxFiles    int   `yaml:"max_files"`
	MaxFileSize int64 `yaml:"max_file_size"`
}

// LLMConfig selects the language model used to resolve commands.
type LLMConfig struct {
	Provider string        `yaml:"provider"`
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	BaseURL  string        `yaml:"base_url,omitempty"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ObjectStoreConfig holds the S3-compatible bucket settings.
type ObjectStoreConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region,omitempty"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Config holds all configuration options for FileDesk
type Config struct {
	Port       int    `yaml:"port"`
	Mode       string `yaml:"mode"`
	Backend    string `yaml:"backend,omitempty"`
	UploadsDir string `yaml:"uploads_dir"`
	Watch      bool   `yaml:"watch"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"`

	Upload      UploadConfig      `yaml:"upload"`
	LLM         LLMConfig         `yaml:"llm"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`

	// Internal: file the configuration was read from, if any
	configPath string
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Port:       3001,
		Mode:       ModeDevelopment,
		UploadsDir: "uploads",
		Watch:      true,
		LogLevel:   "info",
		LogFormat:  "text",
		Upload: UploadConfig{
			MaxFiles:    100,
			MaxFileSize: 50 << 20,
		},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-3.5-turbo",
			Timeout:  60 * time.Second,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint: "s3.amazonaws.com",
			UseSSL:   true,
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path falls back to ./filedesk.yaml when it exists; an explicitly given
// file must be readable.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		if _, err := os.Stat(LocalConfigFile); err == nil {
			path = LocalConfigFile
		}
	}
	if path == "" {
		return cfg, nil
	}

	if err := cfg.loadFromFile(path); err != nil {
		if explicit {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		return cfg, nil
	}
	cfg.configPath = path
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// GetConfigFilePath returns the path to the config file, or "" when only
// defaults, flags and environment were used.
func (c *Config) GetConfigFilePath() string {
	return c.configPath
}

// IsProduction reports whether the service runs in production mode. Any
// other mode, such as "test" or "staging", runs as development.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Mode), ModeProduction)
}

// ActiveBackend decides which storage backend serves this process. An
// explicit backend wins; otherwise production uses the bucket when one is
// configured and process memory when not, and development uses the
// uploads directory.
func (c *Config) ActiveBackend() BackendKind {
	if c.Backend != "" {
		return BackendKind(c.Backend)
	}
	if c.IsProduction() {
		if c.ObjectStore.Bucket != "" {
			return BackendObject
		}
		return BackendMemory
	}
	return BackendFilesystem
}

// AbsUploadsDir returns the uploads directory as an absolute path.
func (c *Config) AbsUploadsDir() string {
	abs, err := filepath.Abs(c.UploadsDir)
	if err != nil {
		return c.UploadsDir
	}
	return abs
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	switch c.ActiveBackend() {
	case BackendFilesystem:
		if c.UploadsDir == "" {
			return fmt.Errorf("uploads directory is required for the filesystem backend")
		}
	case BackendMemory:
	case BackendObject:
		if c.ObjectStore.Bucket == "" {
			return fmt.Errorf("bucket is required for the object backend")
		}
		if c.ObjectStore.Endpoint == "" {
			return fmt.Errorf("endpoint is required for the object backend")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Upload.MaxFiles <= 0 {
		return fmt.Errorf("upload.max_files must be positive")
	}
	if c.Upload.MaxFileSize <= 0 {
		return fmt.Errorf("upload.max_file_size must be positive")
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("llm.timeout must not be negative")
	}
	return nil
}
