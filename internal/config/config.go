package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Sync        SyncConfig        `yaml:"sync"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Audit       AuditConfig       `yaml:"audit"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

type SyncConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Backend         string `yaml:"backend"`
	APIBase         string `yaml:"api_base"`
	AccessToken     string `yaml:"access_token"`
	IntervalMinutes int    `yaml:"interval_minutes"`
	Timezone        string `yaml:"timezone"`
}

type MaintenanceConfig struct {
	IntervalHours int `yaml:"interval_hours"`
}

type AuditConfig struct {
	LogPath string `yaml:"log_path"`
}

func (c *Config) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	if c.Sync.Backend == "" {
		c.Sync.Backend = "ticktick"
	}
	if c.Sync.IntervalMinutes == 0 {
		c.Sync.IntervalMinutes = 15
	}
	if c.Maintenance.IntervalHours == 0 {
		c.Maintenance.IntervalHours = 24
	}
	if c.Audit.LogPath == "" {
		c.Audit.LogPath = filepath.Join(c.Storage.DataDir, "audit.log")
	}
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyEnv()
	c.ApplyDefaults()
	return &c, nil
}

// Default returns a configuration built from defaults and environment
// overrides only, for running without a config file.
func Default() *Config {
	var c Config
	c.applyEnv()
	c.ApplyDefaults()
	return &c
}

// Environment overrides win over file values. The access token in
// particular should come from the environment, not a file on disk.
func (c *Config) applyEnv() {
	if v := os.Getenv("CHOREKEEP_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("CHOREKEEP_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("CHOREKEEP_TIMEZONE"); v != "" {
		c.Sync.Timezone = v
	}
	if v := os.Getenv("TICKTICK_ACCESS_TOKEN"); v != "" {
		c.Sync.AccessToken = v
		c.Sync.Enabled = true
	}
}
