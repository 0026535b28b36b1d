package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	projectConfigName = "pocketgraph.yaml"
	homeConfigName    = "config.yaml"
)

// FileConfig is the declarative editor configuration shape.
type FileConfig struct {
	// ServerURL is the executor backend endpoint.
	ServerURL string `yaml:"server_url"`

	// Workspace selects the workspace activated at startup.
	Workspace string `yaml:"workspace,omitempty"`

	// Stream tunes the event channel reconnection policy.
	Stream StreamConfig `yaml:"stream,omitempty"`
}

// StreamConfig is the reconnection policy section.
type StreamConfig struct {
	MaxRetries int           `yaml:"max_retries,omitempty"`
	Backoff    time.Duration `yaml:"backoff,omitempty"`
}

// UnmarshalYAML accepts backoff as a duration string such as "2s".
func (s *StreamConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		MaxRetries int    `yaml:"max_retries"`
		Backoff    string `yaml:"backoff"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	s.MaxRetries = raw.MaxRetries
	if raw.Backoff != "" {
		d, err := time.ParseDuration(raw.Backoff)
		if err != nil {
			return fmt.Errorf("parsing stream backoff %q: %w", raw.Backoff, err)
		}
		s.Backoff = d
	}
	return nil
}

// DefaultFileConfig returns the configuration used when no file is found.
func DefaultFileConfig() FileConfig {
	return FileConfig{
		ServerURL: "http://localhost:8000",
		Workspace: "default",
	}
}

// DiscoverConfigPath resolves the config location with first-match
// semantics: explicit path, then ./pocketgraph.yaml, then
// ~/.pocketgraph/config.yaml.
func DiscoverConfigPath(explicitPath string) (string, bool, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false, fmt.Errorf("resolve working directory: %w", err)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("resolve user home: %w", err)
	}
	return DiscoverConfigPathFrom(explicitPath, cwd, homeDir)
}

// DiscoverConfigPathFrom is a testable variant of DiscoverConfigPath.
func DiscoverConfigPathFrom(explicitPath, cwd, homeDir string) (string, bool, error) {
	candidates := make([]string, 0, 3)
	if clean := strings.TrimSpace(explicitPath); clean != "" {
		candidates = append(candidates, filepath.Clean(clean))
	} else {
		candidates = append(candidates, filepath.Join(cwd, projectConfigName))
		candidates = append(candidates, filepath.Join(homeDir, ".pocketgraph", homeConfigName))
	}

	for i, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			// An explicit path that does not exist is an error.
			if i == 0 && strings.TrimSpace(explicitPath) != "" {
				return "", false, fmt.Errorf("config file %q not found", candidate)
			}
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("checking config path %q: %w", candidate, err)
		}
	}
	return "", false, nil
}

// LoadFileConfig reads and parses the config file at path, filling defaults
// for unset fields.
func LoadFileConfig(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("reading config %q: %w", path, err)
	}
	cfg := DefaultFileConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parsing config %q: %w", path, err)
	}
	if strings.TrimSpace(cfg.ServerURL) == "" {
		cfg.ServerURL = DefaultFileConfig().ServerURL
	}
	if cfg.Workspace == "" {
		cfg.Workspace = DefaultFileConfig().Workspace
	}
	return cfg, nil
}
