package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the name of the config file inside the config directory.
const ConfigFileName = "config.yaml"

// Loader handles loading configuration from files.
type Loader struct {
	configDir string
}

// NewLoader creates a new configuration loader.
// If configDir is empty, it defaults to ~/.evalrunner.
func NewLoader(configDir string) (*Loader, error) {
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".evalrunner")
	}

	return &Loader{configDir: configDir}, nil
}

// Load reads configuration from configPath, or the default location when empty.
// A missing default file yields the default configuration; a missing explicit
// file is an error. Before parsing, .env files in the working directory and the
// config directory are loaded and ${VAR} references are expanded.
func (l *Loader) Load(configPath string) (*Config, error) {
	explicit := configPath != ""
	if !explicit {
		configPath = l.DefaultConfigPath()
	}

	if err := l.loadDotEnv(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := NewDefaultConfig()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads .env files that exist. Variables already set win.
func (l *Loader) loadDotEnv() error {
	for _, path := range []string{".env", filepath.Join(l.configDir, ".env")} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// ConfigDir returns the configuration directory path.
func (l *Loader) ConfigDir() string {
	return l.configDir
}

// DefaultConfigPath returns the default configuration file path.
func (l *Loader) DefaultConfigPath() string {
	return filepath.Join(l.configDir, ConfigFileName)
}
