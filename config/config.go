package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Telemetry captures the OTLP exporter knobs.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Metrics  bool   `toml:"Metrics"`
	Traces   bool   `toml:"Traces"`
}

// Penalties overrides the reputation deduction per slashing severity. Zero
// values keep the built-in defaults.
type Penalties struct {
	Warning  int `toml:"Warning"`
	Minor    int `toml:"Minor"`
	Major    int `toml:"Major"`
	Critical int `toml:"Critical"`
}

// Config is the daemon configuration.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	Environment   string `toml:"Environment"`

	LogFile       string `toml:"LogFile"`
	LogMaxSizeMB  int    `toml:"LogMaxSizeMB"`
	LogMaxBackups int    `toml:"LogMaxBackups"`
	LogMaxAgeDays int    `toml:"LogMaxAgeDays"`

	SweepIntervalSeconds       int `toml:"SweepIntervalSeconds"`
	MaintenanceIntervalSeconds int `toml:"MaintenanceIntervalSeconds"`
	SignatureTTLSeconds        int `toml:"SignatureTTLSeconds"`
	VotingPeriodHours          int `toml:"VotingPeriodHours"`

	DefaultQuorumBps   uint64 `toml:"DefaultQuorumBps"`
	DefaultMajorityBps uint64 `toml:"DefaultMajorityBps"`
	MinValidators      int    `toml:"MinValidators"`
	MaxValidators      int    `toml:"MaxValidators"`

	PolicyBundles []string `toml:"PolicyBundles"`

	Penalties Penalties `toml:"Penalties"`
	Telemetry Telemetry `toml:"Telemetry"`
}

// Default returns the configuration applied when fields are unset.
func Default() *Config {
	return &Config{
		ListenAddress:              ":8645",
		DataDir:                    "./govd-data",
		Environment:                "dev",
		LogMaxSizeMB:               100,
		LogMaxBackups:              5,
		LogMaxAgeDays:              30,
		SweepIntervalSeconds:       60,
		MaintenanceIntervalSeconds: 86400,
		SignatureTTLSeconds:        600,
		VotingPeriodHours:          72,
		DefaultQuorumBps:           5000,
		DefaultMajorityBps:         5000,
		MinValidators:              1,
		MaxValidators:              100,
		PolicyBundles:              []string{},
	}
}

// Load reads the configuration from path, filling unset fields with
// defaults. A missing file yields the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = def.ListenAddress
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = def.DataDir
	}
	if cfg.SweepIntervalSeconds <= 0 {
		cfg.SweepIntervalSeconds = def.SweepIntervalSeconds
	}
	if cfg.MaintenanceIntervalSeconds <= 0 {
		cfg.MaintenanceIntervalSeconds = def.MaintenanceIntervalSeconds
	}
	if cfg.SignatureTTLSeconds <= 0 {
		cfg.SignatureTTLSeconds = def.SignatureTTLSeconds
	}
	if cfg.VotingPeriodHours <= 0 {
		cfg.VotingPeriodHours = def.VotingPeriodHours
	}
	if cfg.DefaultQuorumBps == 0 {
		cfg.DefaultQuorumBps = def.DefaultQuorumBps
	}
	if cfg.DefaultMajorityBps == 0 {
		cfg.DefaultMajorityBps = def.DefaultMajorityBps
	}
	if cfg.MinValidators <= 0 {
		cfg.MinValidators = def.MinValidators
	}
	if cfg.MaxValidators <= 0 {
		cfg.MaxValidators = def.MaxValidators
	}
	if cfg.PolicyBundles == nil {
		cfg.PolicyBundles = []string{}
	}
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	if c.DefaultQuorumBps > 10000 {
		return fmt.Errorf("config: DefaultQuorumBps %d exceeds 10000", c.DefaultQuorumBps)
	}
	if c.DefaultMajorityBps > 10000 {
		return fmt.Errorf("config: DefaultMajorityBps %d exceeds 10000", c.DefaultMajorityBps)
	}
	if c.MinValidators > c.MaxValidators {
		return fmt.Errorf("config: MinValidators %d exceeds MaxValidators %d", c.MinValidators, c.MaxValidators)
	}
	if c.Penalties.Warning < 0 || c.Penalties.Minor < 0 || c.Penalties.Major < 0 || c.Penalties.Critical < 0 {
		return fmt.Errorf("config: slashing penalties must not be negative")
	}
	return nil
}
