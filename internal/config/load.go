package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/diffchunk-mcp/pkg/types"
)

// EnvConfigPath overrides the settings file location
const EnvConfigPath = "DIFFCHUNK_CONFIG"

// DefaultHistoryPath is where the load history database lives by default
const DefaultHistoryPath = "~/.diffchunk/history.db"

// Default settings file names, searched in the working directory and its parents
var defaultConfigFiles = []string{
	".diffchunk.yaml",
	".diffchunk.yml",
}

// File is the on-disk settings layout
type File struct {
	Chunking Config       `yaml:"chunking"`
	Server   ServerConfig `yaml:"server"`
}

// ServerConfig configures the MCP server and the load history
type ServerConfig struct {
	MaxSessions     int    `yaml:"max_sessions"`
	HistoryPath     string `yaml:"history_path"`
	HistoryDisabled bool   `yaml:"history_disabled"`
	LogLevel        string `yaml:"log_level"`
}

// DefaultFile returns the settings used when no file is found
func DefaultFile() *File {
	return &File{
		Chunking: Default(),
		Server: ServerConfig{
			MaxSessions: 16,
			HistoryPath: DefaultHistoryPath,
			LogLevel:    "info",
		},
	}
}

// Load reads settings from a specific file. Fields missing from the file
// keep their defaults; unknown fields are an error.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.ConfigError(fmt.Sprintf("failed to read config file: %s", path), err)
	}

	f := DefaultFile()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return nil, types.ConfigError(fmt.Sprintf("failed to parse config file: %s", path), err)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// LoadDefault searches for a settings file. Search order:
// 1. $DIFFCHUNK_CONFIG
// 2. Current directory and its parents
// 3. ~/.config/diffchunk/config.yaml
//
// When nothing is found the defaults are returned.
func LoadDefault() (*File, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return Load(path)
	}

	if path, ok := findInParents("."); ok {
		return Load(path)
	}

	if home, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(home, ".config", "diffchunk", "config.yaml")
		if _, err := os.Stat(userPath); err == nil {
			return Load(userPath)
		}
	}

	return DefaultFile(), nil
}

// Validate checks the settings
func (f *File) Validate() error {
	if err := f.Chunking.Validate(); err != nil {
		return err
	}
	if f.Server.MaxSessions <= 0 {
		return types.ConfigError(fmt.Sprintf("server.max_sessions must be positive, got %d", f.Server.MaxSessions), nil)
	}
	return nil
}

// ResolvedHistoryPath expands a leading ~ in the history path
func (s ServerConfig) ResolvedHistoryPath() (string, error) {
	path := s.HistoryPath
	if path == "" {
		path = DefaultHistoryPath
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path, nil
}

// findInParents looks for a settings file in dir and each parent up to the root
func findInParents(startDir string) (string, bool) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false
	}

	for {
		for _, name := range defaultConfigFiles {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, true
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
