package config

import (
	"fmt"
	"time"
)

// Config represents a scormhost.yaml configuration file.
// All values are optional and act as defaults for scormhost serve
// flags. CLI flags always override config values.
type Config struct {
	ListenAddr string        `yaml:"listen_addr"`
	ScratchDir string        `yaml:"scratch_dir"`
	PassMark   int           `yaml:"pass_mark"`
	Fetch      FetchConfig   `yaml:"fetch"`
	Cache      CacheConfig   `yaml:"cache"`
	Adapter    AdapterConfig `yaml:"adapter"`
}

// FetchConfig holds archive fetcher defaults from the config file.
type FetchConfig struct {
	Timeout         Duration `yaml:"timeout"`
	MaxArchiveBytes int64    `yaml:"max_archive_bytes"`
	S3              S3Config `yaml:"s3"`
}

// S3Config holds s3:// source defaults from the config file.
type S3Config struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// CacheConfig holds extraction cache defaults from the config file.
type CacheConfig struct {
	TTL             Duration `yaml:"ttl"`
	MaxEntries      int      `yaml:"max_entries"`
	PipelineTimeout Duration `yaml:"pipeline_timeout"`
}

// AdapterConfig holds completion-event adapter defaults from the
// config file. Type selects the publisher: "webhook", "redis", or
// empty for none.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
