package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for genstore.
type Config struct {
	ProfileID string                   `toml:"profile_id"`
	BaseDir   string                   `toml:"base_dir"`
	LogDir    string                   `toml:"log_dir"`
	Database  DatabaseConfig           `toml:"database"`
	Retention map[string]RetentionRule `toml:"retention"`
}

// DatabaseConfig represents configuration for the backing store.
// This uses a tagged union pattern - the Type field determines which other
// fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// RetentionRule bounds one record kind. Unset limits are inactive;
// unlimited disables the kind entirely.
type RetentionRule struct {
	Unlimited       bool  `toml:"unlimited,omitempty"`
	MaxCount        int   `toml:"max_count,omitempty"`
	MaxAgeDays      int   `toml:"max_age_days,omitempty"`
	MaxPayloadBytes int64 `toml:"max_payload_bytes,omitempty"`
	BatchSize       int   `toml:"batch_size,omitempty"`
}

// NewConfig creates a Config with the provided values and the default
// retention rules: bounded legacy kinds, unlimited unified entries.
func NewConfig(profileID, baseDir string) *Config {
	return &Config{
		ProfileID: profileID,
		BaseDir:   baseDir,
		LogDir:    filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Retention: DefaultRetention(),
	}
}

// DefaultRetention returns the shipped retention rules.
func DefaultRetention() map[string]RetentionRule {
	return map[string]RetentionRule{
		"generations":      {MaxCount: 500, MaxAgeDays: 90, BatchSize: 100},
		"progress_samples": {MaxCount: 2000, MaxAgeDays: 14, BatchSize: 200},
		"gallery_cache":    {MaxAgeDays: 30, MaxPayloadBytes: 262144, BatchSize: 100},
		"templates":        {Unlimited: true},
		"unified_entries":  {Unlimited: true},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
// This is an internal helper and should not be exported.
func writeToFile(path string, cfg *Config) error {
	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
