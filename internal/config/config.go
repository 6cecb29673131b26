// internal/config/config.go
//
// This package handles the matchwarden.yaml configuration file. A default
// file is written on first run so operators can discover the option surface
// without reading source.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where matchwarden looks for its config when no -config
// flag is given.
const DefaultPath = "matchwarden.yaml"

const defaultLobbyName = "lobby"

const defaultConfigYAML = `# matchwarden configuration
version: 1

lobby:
  name: lobby

# The local HTTP endpoint the lobby transport posts lifecycle events to.
bridge:
  enabled: true
  host: 127.0.0.1
  port: 7465

# Coordinator plugins to register, with their recognized options.
plugins:
  abort:
    vote_rate: 0.5
    vote_min: 2
    auto_abort_rate: 0.8
    auto_abort_delay_ms: 30000
  recast: {}

log_dir: logs
`

// LobbyConfig names the lobby session this instance coordinates.
type LobbyConfig struct {
	Name string `yaml:"name"`
}

// BridgeConfig holds the event ingestion endpoint settings. A nil Enabled
// means "use the default".
type BridgeConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Host    string `yaml:"host,omitempty"`
	Port    int    `yaml:"port,omitempty"`
}

// Config models matchwarden.yaml.
type Config struct {
	Version int                       `yaml:"version"`
	Lobby   LobbyConfig               `yaml:"lobby"`
	Bridge  BridgeConfig              `yaml:"bridge"`
	Plugins map[string]map[string]any `yaml:"plugins"`
	LogDir  string                    `yaml:"log_dir,omitempty"`
}

// Load reads the config at path, writing the default file first when none
// exists.
func Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}
	if err := ensureConfigFile(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &parsed, nil
}

// PluginConfigs returns the per-plugin option blocks keyed by plugin id.
func (c *Config) PluginConfigs() map[string]map[string]any {
	out := make(map[string]map[string]any, len(c.Plugins))
	for id, block := range c.Plugins {
		if block == nil {
			block = map[string]any{}
		}
		out[id] = block
	}
	return out
}

func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Plugins == nil {
		c.Plugins = map[string]map[string]any{}
	}
}

func (c *Config) normalize() {
	c.Lobby.Name = strings.TrimSpace(c.Lobby.Name)
	if c.Lobby.Name == "" {
		c.Lobby.Name = defaultLobbyName
	}
	c.Bridge.Host = strings.TrimSpace(c.Bridge.Host)
	c.LogDir = strings.TrimSpace(c.LogDir)
	normalized := make(map[string]map[string]any, len(c.Plugins))
	for id, block := range c.Plugins {
		id = strings.TrimSpace(strings.ToLower(id))
		if id == "" {
			continue
		}
		normalized[id] = block
	}
	c.Plugins = normalized
}

func (c *Config) validate() error {
	if c.Version < 1 {
		return fmt.Errorf("version must be >= 1")
	}
	if c.Bridge.Port != 0 && (c.Bridge.Port < 1 || c.Bridge.Port > 65535) {
		return fmt.Errorf("bridge.port must be within 1-65535, got %d", c.Bridge.Port)
	}
	return nil
}

func ensureConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: ensure config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
		return fmt.Errorf("config: write default config: %w", err)
	}
	return nil
}
