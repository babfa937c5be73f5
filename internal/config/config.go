// Package config provides configuration loading and structs for the intelhub server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// APIKeyEnvVars are consulted, in order, when ai.api_key is empty.
var APIKeyEnvVars = []string{"GEMINI_API_KEY", "API_KEY"}

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	AI      AIConfig      `yaml:"ai"`
	Chat    ChatConfig    `yaml:"chat"`
	Tabs    TabsConfig    `yaml:"tabs"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// RequestTimeoutSeconds bounds ordinary API requests.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
	// GenerateTimeoutSeconds bounds digest generation and chat, which wait on the model.
	GenerateTimeoutSeconds int `yaml:"generate_timeout_seconds"`
}

// StorageConfig holds paths for the digest database and search index.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	SearchIndexPath string `yaml:"search_index_path"`
}

// AIConfig holds generative model client settings.
type AIConfig struct {
	BaseURL           string `yaml:"base_url"`
	APIKey            string `yaml:"api_key"`
	Model             string `yaml:"model"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
	MaxAttempts       int    `yaml:"max_attempts"`
	BaseDelayMillis   int    `yaml:"base_delay_ms"`
}

// ChatConfig holds dataset upload and chat limits.
type ChatConfig struct {
	MaxUploadBytes  int64 `yaml:"max_upload_bytes"`
	MaxRows         int   `yaml:"max_rows"`
	SessionCapacity int   `yaml:"session_capacity"`
}

// TabsConfig holds the static operations tabs and the directory their data files live in.
type TabsConfig struct {
	Directory string      `yaml:"directory"`
	Items     []TabConfig `yaml:"items"`
}

// TabConfig describes one static data tab.
type TabConfig struct {
	Name               string   `yaml:"name"`
	File               string   `yaml:"file"`
	Description        string   `yaml:"description"`
	Welcome            string   `yaml:"welcome"`
	SuggestedQuestions []string `yaml:"suggested_questions"`
	SystemInstruction  string   `yaml:"system_instruction"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	ApplyEnv(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.SearchIndexPath = expandPath(cfg.Storage.SearchIndexPath, configDir)
	cfg.Tabs.Directory = expandPath(cfg.Tabs.Directory, configDir)

	return &cfg, nil
}

// ApplyEnv fills secrets that are better kept out of the config file.
func ApplyEnv(cfg *Config) {
	if cfg.AI.APIKey != "" {
		return
	}
	for _, name := range APIKeyEnvVars {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			cfg.AI.APIKey = v
			return
		}
	}
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// TabFilePath returns the absolute path of a tab's data file.
func (t *TabsConfig) TabFilePath(tab TabConfig) string {
	if filepath.IsAbs(tab.File) {
		return tab.File
	}
	return filepath.Join(t.Directory, tab.File)
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
