package common

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration loaded from a YAML file.
// API keys are intentionally not part of it; they come from the environment.
type Config struct {
	Addr          string `yaml:"addr"`
	Workers       int    `yaml:"workers"`
	LogMode       string `yaml:"log_mode"`
	PublicBaseURL string `yaml:"public_base_url"`

	KnowledgeBasePath string `yaml:"knowledge_base_path"`

	// ConflictPolicy selects how the rule consolidation prompt resolves
	// directly conflicting rules: "restrictive" keeps the more restrictive
	// rule, "drop" discards both sides of the conflict.
	ConflictPolicy string `yaml:"conflict_policy"`

	DataDir string `yaml:"data_dir"`

	GenerationTimeoutSec int `yaml:"generation_timeout_sec"`
	FetchTimeoutSec      int `yaml:"fetch_timeout_sec"`

	MaxAudioChunks  int `yaml:"max_audio_chunks"`
	MaxImageQueries int `yaml:"max_image_queries"`
}

func DefaultConfig() Config {
	return Config{
		Addr:                 ":8080",
		Workers:              4,
		LogMode:              "dev",
		PublicBaseURL:        "http://localhost:8080",
		KnowledgeBasePath:    "configs/knowledge_base.json",
		ConflictPolicy:       "restrictive",
		DataDir:              "data",
		GenerationTimeoutSec: 60,
		FetchTimeoutSec:      30,
		MaxAudioChunks:       5,
		MaxImageQueries:      5,
	}
}

// LoadConfig reads a YAML config file, filling unset fields with defaults.
// A missing file is not an error; defaults are returned.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.MaxAudioChunks <= 0 {
		cfg.MaxAudioChunks = DefaultConfig().MaxAudioChunks
	}
	if cfg.MaxImageQueries <= 0 {
		cfg.MaxImageQueries = DefaultConfig().MaxImageQueries
	}
	return cfg, nil
}

func (c Config) GenerationTimeout() time.Duration {
	return time.Duration(c.GenerationTimeoutSec) * time.Second
}

func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSec) * time.Second
}

// Output directories. Each pipeline invocation writes uniquely named files
// into these shared directories, so no coordination between invocations is
// needed.
func (c Config) UploadDir() string   { return filepath.Join(c.DataDir, "inputs") }
func (c Config) AudioDir() string    { return filepath.Join(c.DataDir, "outputs", "audio") }
func (c Config) ImageDir() string    { return filepath.Join(c.DataDir, "outputs", "images") }
func (c Config) FinalDir() string    { return filepath.Join(c.DataDir, "outputs", "final") }
func (c Config) JSONDir() string     { return filepath.Join(c.DataDir, "outputs", "json") }
func (c Config) MarkdownDir() string { return filepath.Join(c.DataDir, "outputs", "markdown") }

// EnsureDirs creates every data directory the pipeline writes to.
func (c Config) EnsureDirs() error {
	for _, dir := range []string{
		c.UploadDir(), c.AudioDir(), c.ImageDir(),
		c.FinalDir(), c.JSONDir(), c.MarkdownDir(),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	return nil
}

// LoadEnv loads environment variables from a file
func LoadEnv(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	lines := strings.Split(string(data), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			val := strings.TrimSpace(parts[1])
			val = strings.Trim(val, "'\"")
			os.Setenv(key, val)
		}
	}
	return nil
}
