// pkg/config/config.go - engine configuration settings for AppDeploy.

package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const ConfigPath = `C:\ProgramData\AppDeploy\Config.yaml`

// CSP OMA-URI registry path for enterprise policy configuration
const CSPRegistryPath = `SOFTWARE\AppDeploy\Config`

// DefaultLogPath is the base directory for timestamped run logs.
const DefaultLogPath = `C:\ProgramData\AppDeploy\logs`

// Configuration holds the engine-wide options in YAML format. Per-application
// settings live in the deployment manifest, not here.
type Configuration struct {
	LogLevel                  string `yaml:"LogLevel"`
	LogPath                   string `yaml:"LogPath"`
	RetentionDays             int    `yaml:"RetentionDays"`
	KeepRuns                  int    `yaml:"KeepRuns"`
	ProcessStopTimeoutSeconds int    `yaml:"ProcessStopTimeoutSeconds"`
	InstallerTimeoutMinutes   int    `yaml:"InstallerTimeoutMinutes"` // applies to waited processes and msiexec
	DefaultDeployMode         string `yaml:"DefaultDeployMode"`
	AllowRebootPassThrough    bool   `yaml:"AllowRebootPassThrough"`
	DisableLogging            bool   `yaml:"DisableLogging"`

	// Source records where the configuration came from: file, csp or defaults.
	Source string `yaml:"-"`
}

// GetDefaultConfig provides default configuration values.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		LogLevel:                  "INFO",
		LogPath:                   DefaultLogPath,
		RetentionDays:             30,
		KeepRuns:                  20,
		ProcessStopTimeoutSeconds: 10,
		InstallerTimeoutMinutes:   30,
		DefaultDeployMode:         "interactive",
		AllowRebootPassThrough:    false,
		Source:                    "defaults",
	}
}

// LoadConfigFrom loads the configuration from a YAML file. If the file does
// not exist it falls back to CSP OMA-URI registry settings, and to the
// defaults when neither is present.
func LoadConfigFrom(path string) (*Configuration, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		config, cspErr := LoadConfigFromCSP()
		if cspErr == nil {
			log.Printf("Loaded configuration from CSP registry settings: %s", CSPRegistryPath)
			return config, nil
		}
		return GetDefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %s: %w", path, err)
	}
	config, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %s: %w", path, err)
	}
	config.Source = "file"
	return config, nil
}

// Parse decodes YAML over the defaults, so absent keys keep their default value.
func Parse(data []byte) (*Configuration, error) {
	config := GetDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks enumerated and numeric settings.
func (c *Configuration) Validate() error {
	switch strings.ToUpper(c.LogLevel) {
	case "ERROR", "WARN", "INFO", "DEBUG":
	default:
		return fmt.Errorf("invalid LogLevel %q", c.LogLevel)
	}
	switch strings.ToLower(c.DefaultDeployMode) {
	case "interactive", "silent", "noninteractive":
	default:
		return fmt.Errorf("invalid DefaultDeployMode %q", c.DefaultDeployMode)
	}
	if c.RetentionDays < 0 || c.KeepRuns < 0 {
		return fmt.Errorf("log retention settings must not be negative")
	}
	if c.ProcessStopTimeoutSeconds < 0 || c.InstallerTimeoutMinutes < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.LogPath == "" {
		c.LogPath = DefaultLogPath
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(config *Configuration, path string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to serialize configuration: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create configuration directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return nil
}

// LoadConfigFromCSP loads configuration from Windows CSP OMA-URI registry settings.
func LoadConfigFromCSP() (*Configuration, error) {
	config := GetDefaultConfig()
	if err := loadCSPFromRegistryPath(CSPRegistryPath, config); err != nil {
		return nil, fmt.Errorf("failed to load from CSP registry path: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.Source = "csp"
	return config, nil
}
