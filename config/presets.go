package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Preset returns a named built-in parameter set. Names mirror the
// trading styles the system was tuned for.
func Preset(name string) (*Config, error) {
	switch name {
	case "", "default":
		return Default(), nil
	case "scalping":
		c := Default()
		c.EMA20Length = 10
		c.EMA50Length = 25
		c.RSIOversold = 25
		c.RSIOverbought = 75
		c.MinBarsGap = 1
		c.StopLossMultiplier = 1.5
		c.TakeProfit1Mult = 2.0
		c.TakeProfit2Mult = 3.0
		c.Interval = "5m"
		return c, nil
	case "swing":
		c := Default()
		c.RSIOversold = 30
		c.RSIOverbought = 70
		c.MinBarsGap = 5
		c.StopLossMultiplier = 2.5
		c.TakeProfit1Mult = 4.0
		c.TakeProfit2Mult = 6.0
		c.Interval = "1d"
		return c, nil
	case "conservative":
		c := Default()
		c.RSIOversold = 25
		c.RSIOverbought = 75
		c.MinBarsGap = 5
		c.StopLossMultiplier = 3.0
		c.TakeProfit1Mult = 3.0
		c.TakeProfit2Mult = 5.0
		c.RequireConfluence = true
		return c, nil
	default:
		return nil, fmt.Errorf("unknown config preset %q", name)
	}
}

// LoadFile reads a YAML preset file over the defaults. Secrets stay
// env-only and are never read from the file.
func LoadFile(path string) (*Config, error) {
	return LoadFileInto(Default(), path)
}

// LoadFileInto overlays a YAML file onto an existing configuration,
// used when a file refines a named preset
func LoadFileInto(base *Config, path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg := *base
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return &cfg, nil
}
