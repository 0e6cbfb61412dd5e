package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LoadedFiles []string        `yaml:"-"` // Track all files loaded for this config
	Include     []string        `yaml:"include"`
	Debug       bool            `yaml:"debug"`
	MaxNodes    int             `yaml:"maxNodes"`
	HotReload   bool            `yaml:"hotReload"`
	General     GeneralConfig   `yaml:"general"`
	Paths       PathsConfig     `yaml:"paths"`
	Loggers     []LoggerConfig  `yaml:"loggers"`
	Listeners   ListenersConfig `yaml:"listeners"`
	Metrics     MetricsConfig   `yaml:"metrics"`
	Session     SessionConfig   `yaml:"session"`
}

type GeneralConfig struct {
	BoardName       string `yaml:"boardName"`
	PrettyBoardName string `yaml:"prettyBoardName"`
	Description     string `yaml:"description"`
	Hostname        string `yaml:"hostname"`
	Website         string `yaml:"website"`
}

type PathsConfig struct {
	Data string `yaml:"data"`
	Keys string `yaml:"keys"`
}

type LoggerConfig struct {
	Stdout     bool   `yaml:"stdout,omitempty"`
	File       string `yaml:"file,omitempty"`
	Level      string `yaml:"level"`
	Source     bool   `yaml:"source"`
	HideTime   bool   `yaml:"hideTime,omitempty"`
	TimeFormat string `yaml:"timeFormat,omitempty"`
}

type ListenersConfig struct {
	Telnet TelnetConfig `yaml:"telnet"`
	SSH    SSHConfig    `yaml:"ssh"`
}

type TelnetConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	FirstMenu string `yaml:"firstMenu"`

	// TraceConnections logs every DO/DONT/WILL/WONT at debug level.
	TraceConnections bool `yaml:"traceConnections"`

	// AcceptRate is new connections per second; zero disables the limit.
	AcceptRate  float64 `yaml:"acceptRate"`
	AcceptBurst int     `yaml:"acceptBurst"`
}

type SSHConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	FirstMenu string `yaml:"firstMenu"`
	KeyFile   string `yaml:"keyFile"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type SessionConfig struct {
	// Welcome is a text/template with sprig functions, rendered once the
	// terminal is ready.
	Welcome string `yaml:"welcome"`
}

func Load(filename string) (*Config, error) {
	cfg := &Config{
		LoadedFiles: []string{},
	}

	// Keep track of processed files to avoid infinite loops
	processed := make(map[string]bool)

	if err := loadRecursive(filename, cfg, processed); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.MaxNodes <= 0 {
		c.MaxNodes = 10
	}
	if c.Listeners.Telnet.Port == 0 {
		c.Listeners.Telnet.Port = 2323
	}
	if c.Listeners.Telnet.AcceptRate > 0 && c.Listeners.Telnet.AcceptBurst <= 0 {
		c.Listeners.Telnet.AcceptBurst = 1
	}
	if c.Listeners.SSH.Port == 0 {
		c.Listeners.SSH.Port = 2222
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = ":9323"
	}
	if c.Paths.Data == "" {
		c.Paths.Data = "data"
	}
}

func loadRecursive(filename string, cfg *Config, processed map[string]bool) error {
	absPath, err := filepath.Abs(filename)
	if err != nil {
		return err
	}

	if processed[absPath] {
		return nil
	}
	processed[absPath] = true
	cfg.LoadedFiles = append(cfg.LoadedFiles, absPath)

	data, err := os.ReadFile(absPath)
	if err != nil {
		return err
	}

	expanded := []byte(os.ExpandEnv(string(data)))

	// Includes are applied first so the including file wins.
	var head struct {
		Include []string `yaml:"include"`
	}
	if err := yaml.Unmarshal(expanded, &head); err != nil {
		return fmt.Errorf("failed to parse %s: %w", absPath, err)
	}

	baseDir := filepath.Dir(absPath)
	for _, includePath := range head.Include {
		fullPath := includePath
		if !filepath.IsAbs(includePath) {
			fullPath = filepath.Join(baseDir, includePath)
		}

		if err := loadRecursive(fullPath, cfg, processed); err != nil {
			return fmt.Errorf("failed to load included config %s: %w", fullPath, err)
		}
	}

	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", absPath, err)
	}

	return nil
}
