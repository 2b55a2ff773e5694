package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nomis52/barline/progress"
)

const (
	// Default bar composition settings
	defaultSeparator      = "  "
	defaultPlaceholder    = "..."
	defaultCoalesceWindow = 20 * time.Millisecond

	// Default engine settings
	defaultUpdateTimeout = 30 * time.Second
	defaultGracePeriod   = 5 * time.Second

	// Default retry settings
	defaultRetryInitial = time.Second
	defaultRetryMax     = 5 * time.Minute
	defaultRetryFactor  = 2.0
	defaultRetryJitter  = 0.1

	// Default monitoring settings
	defaultMetricsPrefix = "barline"
	defaultPushInterval  = 30 * time.Second

	// Default logging settings
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
	defaultLogOutput = "stderr"
)

// moduleTypes lists the module types the factory knows how to build.
var moduleTypes = map[string]bool{
	"datetime":  true,
	"todotxt":   true,
	"netcheck":  true,
	"remotecmd": true,
	"progress":  true,
}

// Config represents the complete application configuration.
type Config struct {
	Bar        BarConfig        `yaml:"bar"`
	Engine     EngineConfig     `yaml:"engine"`
	Retry      RetryConfig      `yaml:"retry"`
	Modules    []ModuleConfig   `yaml:"modules"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// BarConfig holds status line composition settings.
type BarConfig struct {
	Separator      string        `yaml:"separator"`
	Placeholder    string        `yaml:"placeholder"`
	CoalesceWindow time.Duration `yaml:"coalesce_window"`
}

// EngineConfig holds worker supervision settings.
type EngineConfig struct {
	// UpdateTimeout bounds a single module update.
	UpdateTimeout time.Duration `yaml:"update_timeout"`
	// GracePeriod bounds how long shutdown waits for goroutines to finish.
	GracePeriod time.Duration `yaml:"grace_period"`
}

// RetryConfig holds the backoff policy applied to transient module failures.
type RetryConfig struct {
	Initial time.Duration `yaml:"initial"`
	Max     time.Duration `yaml:"max"`
	Factor  float64       `yaml:"factor"`
	Jitter  float64       `yaml:"jitter"`
}

// ModuleConfig defines one slot on the bar. Type selects the module to run;
// the remaining fields apply only to some types.
type ModuleConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	// datetime
	Format string `yaml:"format"`

	// todotxt
	Path   string `yaml:"path"`
	MaxLen int    `yaml:"max_len"`

	// netcheck and remotecmd
	Schedule string        `yaml:"schedule"`
	Timeout  time.Duration `yaml:"timeout"`

	// netcheck
	Hosts []string `yaml:"hosts"`

	// remotecmd
	Host    string `yaml:"host"`
	User    string `yaml:"user"`
	KeyFile string `yaml:"key_file"`
	Command string `yaml:"command"`
	Label   string `yaml:"label"`

	// progress
	Network     string        `yaml:"network"`
	Address     string        `yaml:"address"`
	Policy      string        `yaml:"policy"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// MonitoringConfig holds metrics push settings. An empty VictoriaMetricsURL
// disables pushing.
type MonitoringConfig struct {
	VictoriaMetricsURL string        `yaml:"victoriametrics_url"`
	MetricsPrefix      string        `yaml:"metrics_prefix"`
	PushInterval       time.Duration `yaml:"push_interval"`
}

// LoggingConfig defines logging behavior settings.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	Output    string `yaml:"output"`
	AddSource bool   `yaml:"add_source"`
}

// Validate performs basic validation on the configuration.
func (c *Config) Validate() error {
	if len(c.Modules) == 0 {
		return fmt.Errorf("at least one module is required")
	}
	seen := make(map[string]bool, len(c.Modules))
	for i, m := range c.Modules {
		if m.Name == "" {
			return fmt.Errorf("module %d: name is required", i)
		}
		if seen[m.Name] {
			return fmt.Errorf("module %q: name already used", m.Name)
		}
		seen[m.Name] = true
		if !moduleTypes[m.Type] {
			return fmt.Errorf("module %q: unknown type %q", m.Name, m.Type)
		}
		if err := m.validate(); err != nil {
			return fmt.Errorf("module %q: %w", m.Name, err)
		}
	}
	if c.Retry.Initial <= 0 {
		return fmt.Errorf("retry initial delay must be positive")
	}
	if c.Retry.Max < c.Retry.Initial {
		return fmt.Errorf("retry max delay must be at least the initial delay")
	}
	if c.Retry.Factor < 1 {
		return fmt.Errorf("retry factor must be at least 1")
	}
	if c.Engine.UpdateTimeout <= 0 {
		return fmt.Errorf("update timeout must be positive")
	}
	if c.Engine.GracePeriod <= 0 {
		return fmt.Errorf("grace period must be positive")
	}
	if c.Monitoring.VictoriaMetricsURL != "" && c.Monitoring.PushInterval <= 0 {
		return fmt.Errorf("monitoring push interval must be positive")
	}
	return nil
}

func (m *ModuleConfig) validate() error {
	switch m.Type {
	case "todotxt":
		if m.Path == "" {
			return fmt.Errorf("path is required")
		}
	case "netcheck":
		if len(m.Hosts) == 0 {
			return fmt.Errorf("at least one host is required")
		}
		if m.Schedule == "" {
			return fmt.Errorf("schedule is required")
		}
	case "remotecmd":
		if m.Host == "" {
			return fmt.Errorf("host is required")
		}
		if m.User == "" {
			return fmt.Errorf("user is required")
		}
		if m.Command == "" {
			return fmt.Errorf("command is required")
		}
		if m.Schedule == "" {
			return fmt.Errorf("schedule is required")
		}
	case "progress":
		cfg := m.ProgressConfig()
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ProgressConfig converts a progress module entry into the server's config.
func (m *ModuleConfig) ProgressConfig() progress.Config {
	return progress.Config{
		Network:     m.Network,
		Address:     m.Address,
		Policy:      m.Policy,
		IdleTimeout: m.IdleTimeout,
		MaxLen:      m.MaxLen,
	}
}

// SetDefaults sets reasonable default values for optional fields.
func (c *Config) SetDefaults() {
	if c.Bar.Separator == "" {
		c.Bar.Separator = defaultSeparator
	}
	if c.Bar.Placeholder == "" {
		c.Bar.Placeholder = defaultPlaceholder
	}
	if c.Bar.CoalesceWindow == 0 {
		c.Bar.CoalesceWindow = defaultCoalesceWindow
	}
	if c.Engine.UpdateTimeout == 0 {
		c.Engine.UpdateTimeout = defaultUpdateTimeout
	}
	if c.Engine.GracePeriod == 0 {
		c.Engine.GracePeriod = defaultGracePeriod
	}
	if c.Retry.Initial == 0 {
		c.Retry.Initial = defaultRetryInitial
	}
	if c.Retry.Max == 0 {
		c.Retry.Max = defaultRetryMax
	}
	if c.Retry.Factor == 0 {
		c.Retry.Factor = defaultRetryFactor
	}
	if c.Retry.Jitter == 0 {
		c.Retry.Jitter = defaultRetryJitter
	}
	if c.Monitoring.MetricsPrefix == "" {
		c.Monitoring.MetricsPrefix = defaultMetricsPrefix
	}
	if c.Monitoring.PushInterval == 0 {
		c.Monitoring.PushInterval = defaultPushInterval
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.Output == "" {
		c.Logging.Output = defaultLogOutput
	}
}

// LoadConfig reads the YAML config file at the given path and returns a Config struct.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
