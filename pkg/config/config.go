/*
Package config manages the TOML config for proofpilot.
*/
package config

import (
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/proofpilot-dev/proofpilot/internal/utils"
)

// Config holds the entire config structure.
type Config struct {
	Compiler   CompilerConfig   `toml:"compiler"`
	Session    SessionConfig    `toml:"session"`
	Completion CompletionConfig `toml:"completion"`
	CLI        CliConfig        `toml:"cli"`
}

// CompilerConfig describes how to spawn the compiler process.
type CompilerConfig struct {
	Path string   `toml:"path"`
	Args []string `toml:"args"`
}

// SessionConfig holds editing-session options.
type SessionConfig struct {
	// SnippetExpansion selects the snippet-field expander for compiler
	// results; off means verbatim insertion.
	SnippetExpansion bool `toml:"snippet_expansion"`
}

// CompletionConfig holds completion options.
type CompletionConfig struct {
	Limit      int `toml:"limit"`
	CacheTTLMs int `toml:"cache_ttl_ms"`
}

// CliConfig holds debug REPL options.
type CliConfig struct {
	HistoryLines int  `toml:"history_lines"`
	ShowTiming   bool `toml:"show_timing"`
}

// GetConfigDir returns the config directory with fallback priority:
// 1. ~/.config/proofpilot
// 2. Current executable dir
// 3. builtin defaults
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Errorf("Failed to get home directory: %v", err)
		execDir, execErr := utils.GetExecutableDir()
		if execErr != nil {
			return "", execErr
		}
		return execDir, nil
	}
	primaryPath := filepath.Join(homeDir, ".config", "proofpilot")
	if result := utils.CheckDirStatus(primaryPath); result.Writable {
		return primaryPath, nil
	}
	execDir, err := utils.GetExecutableDir()
	if err != nil {
		log.Errorf("Failed to get executable directory: %v", err)
		return "", err
	}
	return execDir, nil
}

// GetDefaultConfigPath returns the default path for config.toml
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Compiler: CompilerConfig{
			Path: "idris",
			Args: []string{"--ide-mode"},
		},
		Session: SessionConfig{
			SnippetExpansion: true,
		},
		Completion: CompletionConfig{
			Limit:      24,
			CacheTTLMs: 2000,
		},
		CLI: CliConfig{
			HistoryLines: 200,
			ShowTiming:   false,
		},
	}
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)

	if err := utils.EnsureDir(configDir); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if !utils.FileExists(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Warnf("Failed to load config from %s: %v. Using built-in defaults...", configPath, err)
		return DefaultConfig(), nil
	}
	return config, nil
}

// LoadConfig loads from a TOML file. Missing keys keep their defaults.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()
	if err := utils.LoadTOMLFile(configPath, config); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig saves into a TOML file
func SaveConfig(config *Config, configPath string) error {
	return utils.SaveTOMLFile(config, configPath)
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	if configPath == "" {
		if defaultPath, err := GetDefaultConfigPath(); err == nil {
			return defaultPath
		}
		return "unknown"
	}
	return utils.GetAbsolutePath(configPath)
}
