// Package config loads the engine's YAML configuration file, mirroring
// cmd/client/main.go's loadConfig/flag.String("config", "config.yaml", ...)
// pattern and orbas1-Synnergy's cmd/cli/devnet.go gopkg.in/yaml.v3 usage for
// the actual unmarshal.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the engine's full configuration surface: spec.md 6's enumerated
// options plus the ambient fields (event stream address, diagnostic log
// path, metrics listen address) SPEC_FULL.md adds.
type Config struct {
	// spec.md 6 options.
	MinProfitThresholdBP int64    `yaml:"min_profit_threshold_bp"`
	SlippageBP           uint16   `yaml:"slippage_bp"`
	MaxHops              int      `yaml:"max_hops"`
	BaseTokens           []string `yaml:"base_tokens"`
	EvaluatorDeadlineMS  int      `yaml:"evaluator_deadline_ms"`
	EvaluatorCores       int      `yaml:"evaluator_cores"`

	// Ambient fields.
	UniversePath       string `yaml:"universe_path"`
	EventStreamAddress string `yaml:"event_stream_address"`
	DiagnosticsLogPath string `yaml:"diagnostics_log_path"`
	MetricsListenAddr  string `yaml:"metrics_listen_address"`
	TaskQueueSize      int    `yaml:"task_queue_size"`
	SinkBufferSize     int    `yaml:"sink_buffer_size"`
	SinkSendTimeoutMS  int    `yaml:"sink_send_timeout_ms"`
}

// defaults fills in zero-valued fields with sane defaults, matching
// spec.md 4.5's "default 30-50bp" slippage note and the 2-4 hop bound of
// spec.md 4.2.
func (c *Config) defaults() {
	if c.SlippageBP == 0 {
		c.SlippageBP = 30
	}
	if c.MaxHops == 0 {
		c.MaxHops = 3
	}
	if c.EvaluatorDeadlineMS == 0 {
		c.EvaluatorDeadlineMS = 50
	}
	if c.TaskQueueSize == 0 {
		c.TaskQueueSize = 1024
	}
	if c.SinkBufferSize == 0 {
		c.SinkBufferSize = 256
	}
	if c.SinkSendTimeoutMS == 0 {
		c.SinkSendTimeoutMS = 5
	}
}

// validate checks the fields that have no sensible default.
func (c *Config) validate() error {
	if c.UniversePath == "" {
		return fmt.Errorf("config: universe_path is required")
	}
	if len(c.BaseTokens) == 0 {
		return fmt.Errorf("config: base_tokens must name at least one quote token")
	}
	if c.EventStreamAddress == "" {
		return fmt.Errorf("config: event_stream_address is required")
	}
	return nil
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
