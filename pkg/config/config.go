// Package config loads fleetmaster's recognized configuration keys from a
// YAML file. cmd/fleetmaster reads these keys only from the file; none of
// its cobra flags overrides them.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the seven recognized keys.
type Config struct {
	InitialContainers            int    `yaml:"initial-containers"`
	ContainerMemoryMBs            int    `yaml:"container-memory-mbs"`
	ContainerCores                int    `yaml:"container-cores"`
	ContainerHostAffinityEnabled  bool   `yaml:"container-host-affinity-enabled"`
	HelixInstanceMaxRetries       int    `yaml:"helix-instance-max-retries"`
	ContainerJVMArgs              string `yaml:"container-jvm-args"`
	ContainerFilesRemote          string `yaml:"container-files-remote"`
}

// Default returns a Config with spec-documented defaults: initial-containers
// 0, max-retries 0 (cap disabled, per §6).
func Default() Config {
	return Config{
		InitialContainers:           0,
		ContainerMemoryMBs:          1024,
		ContainerCores:              1,
		ContainerHostAffinityEnabled: false,
		HelixInstanceMaxRetries:     0,
	}
}

// Load reads and parses a YAML config file at path, starting from Default
// and overlaying whatever keys the file sets.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if cfg.InitialContainers < 0 {
		return nil, fmt.Errorf("config: initial-containers must be >= 0, got %d", cfg.InitialContainers)
	}
	if cfg.ContainerMemoryMBs <= 0 {
		return nil, fmt.Errorf("config: container-memory-mbs must be > 0, got %d", cfg.ContainerMemoryMBs)
	}
	if cfg.ContainerCores <= 0 {
		return nil, fmt.Errorf("config: container-cores must be > 0, got %d", cfg.ContainerCores)
	}
	if cfg.HelixInstanceMaxRetries < 0 {
		return nil, fmt.Errorf("config: helix-instance-max-retries must be >= 0, got %d", cfg.HelixInstanceMaxRetries)
	}

	return &cfg, nil
}

// RemoteFiles splits the comma-separated container-files-remote key into a
// slice, returning nil when unset.
func (c *Config) RemoteFiles() []string {
	if c.ContainerFilesRemote == "" {
		return nil
	}
	return strings.Split(c.ContainerFilesRemote, ",")
}
