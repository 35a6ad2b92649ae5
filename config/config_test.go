package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":8645" || cfg.DefaultQuorumBps != 5000 || cfg.SweepIntervalSeconds != 60 {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestLoadOverridesAndFillsDefaults(t *testing.T) {
	raw := `ListenAddress = ":9000"
DefaultQuorumBps = 6000
SweepIntervalSeconds = 30

[Penalties]
Warning = 2

[Telemetry]
Endpoint = "collector:4318"
Insecure = true
Metrics = true
`
	path := filepath.Join(t.TempDir(), "govd.toml")
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":9000" || cfg.DefaultQuorumBps != 6000 || cfg.SweepIntervalSeconds != 30 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.DefaultMajorityBps != 5000 || cfg.MaintenanceIntervalSeconds != 86400 {
		t.Fatalf("unset fields must keep defaults: %+v", cfg)
	}
	if cfg.Penalties.Warning != 2 || cfg.Penalties.Critical != 0 {
		t.Fatalf("penalties = %+v", cfg.Penalties)
	}
	if cfg.Telemetry.Endpoint != "collector:4318" || !cfg.Telemetry.Insecure || !cfg.Telemetry.Metrics {
		t.Fatalf("telemetry = %+v", cfg.Telemetry)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"quorum above bps": "DefaultQuorumBps = 20000\n",
		"min above max":    "MinValidators = 9\nMaxValidators = 3\n",
		"negative penalty": "[Penalties]\nMinor = -4\n",
		"malformed toml":   "ListenAddress = [\n",
	}
	for name, raw := range cases {
		path := filepath.Join(t.TempDir(), "govd.toml")
		if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
