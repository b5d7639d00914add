// Package config loads the logly YAML configuration, deep-merging the user
// file over built-in defaults and validating the result before anything
// starts.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
)

// Config is the fully merged, validated runtime configuration.
type Config struct {
	Database    Database    `yaml:"database"`
	Collection  Collection  `yaml:"collection"`
	System      System      `yaml:"system"`
	Network     Network     `yaml:"network"`
	Logs        Logs        `yaml:"logs"`
	Aggregation Aggregation `yaml:"aggregation"`
	Export      Export      `yaml:"export"`
	Query       Query       `yaml:"query"`
	Logging     Logging     `yaml:"logging"`
}

type Database struct {
	// Path is the data directory holding the single logly.db file.
	Path          string `yaml:"path" validate:"required"`
	RetentionDays int    `yaml:"retention_days" validate:"min=0"`
}

type Collection struct {
	// Intervals in seconds per collector family.
	SystemMetrics  int `yaml:"system_metrics" validate:"min=1"`
	NetworkMetrics int `yaml:"network_metrics" validate:"min=1"`
	LogParsing     int `yaml:"log_parsing" validate:"min=1"`
}

type System struct {
	Enabled bool     `yaml:"enabled"`
	Metrics []string `yaml:"metrics"`
}

type Network struct {
	Enabled bool     `yaml:"enabled"`
	Metrics []string `yaml:"metrics"`
}

type Logs struct {
	Enabled bool                 `yaml:"enabled"`
	Sources map[string]LogSource `yaml:"sources"`
}

type LogSource struct {
	Path    string `yaml:"path"`
	Enabled bool   `yaml:"enabled"`
}

type Aggregation struct {
	Enabled         bool     `yaml:"enabled"`
	Intervals       []string `yaml:"intervals"`
	KeepRawDataDays int      `yaml:"keep_raw_data_days" validate:"min=0"`
}

type Export struct {
	DefaultFormat   string `yaml:"default_format" validate:"oneof=csv json"`
	TimestampFormat string `yaml:"timestamp_format" validate:"required"`
}

type Query struct {
	// DefaultTimeWindow is the detector lookback in hours.
	DefaultTimeWindow int        `yaml:"default_time_window" validate:"min=1"`
	Thresholds        Thresholds `yaml:"thresholds"`
}

// Thresholds are the detector tuning knobs; defaults in defaultYAML.
type Thresholds struct {
	HighCPUPercent       float64 `yaml:"high_cpu_percent" validate:"min=0,max=100"`
	HighMemoryPercent    float64 `yaml:"high_memory_percent" validate:"min=0,max=100"`
	DiskSpaceCritical    float64 `yaml:"disk_space_critical" validate:"min=0,max=100"`
	ErrorSpikeMultiplier float64 `yaml:"error_spike_multiplier" validate:"gt=0"`
	FailedLoginThreshold int     `yaml:"failed_login_threshold" validate:"min=1"`
	ThreatScoreHigh      float64 `yaml:"threat_score_high" validate:"min=0,max=100"`
	NetworkErrorRate     float64 `yaml:"network_error_rate" validate:"min=0"`
	SustainedDurationMin int     `yaml:"sustained_duration_min" validate:"min=0"`
}

type Logging struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	File  string `yaml:"file"`
}

// defaultYAML is the built-in configuration every user file merges over.
const defaultYAML = `
database:
  path: /var/lib/logly
  retention_days: 90
collection:
  system_metrics: 60
  network_metrics: 60
  log_parsing: 300
system:
  enabled: true
  metrics: [cpu, memory, disk, load]
network:
  enabled: true
  metrics: [io, connections]
logs:
  enabled: true
  sources:
    fail2ban:
      path: /var/log/fail2ban.log
      enabled: true
    auth:
      path: /var/log/auth.log
      enabled: true
    syslog:
      path: /var/log/syslog
      enabled: true
    nginx:
      path: /var/log/nginx/access.log
      enabled: false
    django:
      path: /var/log/django/app.log
      enabled: false
aggregation:
  enabled: true
  intervals: [hourly, daily]
  keep_raw_data_days: 90
export:
  default_format: csv
  timestamp_format: "2006-01-02 15:04:05"
query:
  default_time_window: 24
  thresholds:
    high_cpu_percent: 85
    high_memory_percent: 90
    disk_space_critical: 90
    error_spike_multiplier: 3.0
    failed_login_threshold: 5
    threat_score_high: 70
    network_error_rate: 5.0
    sustained_duration_min: 300
logging:
  level: info
  file: ""
`

// Default returns the built-in configuration.
func Default() (*Config, error) {
	return decode([]byte(defaultYAML))
}

// Load reads the YAML file at path (optional; empty path means defaults only),
// deep-merges it over the defaults, and validates the result.
func Load(path string) (*Config, error) {
	base := map[string]any{}
	if err := yaml.Unmarshal([]byte(defaultYAML), &base); err != nil {
		return nil, fmt.Errorf("parse built-in defaults: %w", err)
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		user := map[string]any{}
		if err := yaml.Unmarshal(raw, &user); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		base = mergeMaps(base, user)
	}

	merged, err := yaml.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("re-encode merged config: %w", err)
	}
	return decode(merged)
}

func decode(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// mergeMaps recursively merges src over dst: nested maps merge key by key,
// scalars and lists in src overwrite.
func mergeMaps(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst))
	for k, v := range dst {
		out[k] = v
	}
	for k, sv := range src {
		if dv, ok := out[k]; ok {
			dm, dok := asMap(dv)
			sm, sok := asMap(sv)
			if dok && sok {
				out[k] = mergeMaps(dm, sm)
				continue
			}
		}
		out[k] = sv
	}
	return out
}

// asMap normalizes the two map shapes YAML decoding can produce.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprintf("%v", k)] = val
		}
		return out, true
	}
	return nil, false
}
