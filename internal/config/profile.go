package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile overrides strategy parameters. Unset fields keep the env value.
type Profile struct {
	ProfitTargetPercent *float64 `yaml:"profit_target_percent"`
	DCATriggerPercent   *float64 `yaml:"dca_trigger_percent"`
	DCAGrowthFactor     *float64 `yaml:"dca_growth_factor"`
	DCAMultiplier       *float64 `yaml:"dca_multiplier"`
	EntryMinNotional    *float64 `yaml:"entry_min_notional"`
	DCAMinNotional      *float64 `yaml:"dca_min_notional"`
	CooldownSeconds     *int     `yaml:"cooldown_seconds"`
	RiskBucketWidth     *float64 `yaml:"risk_bucket_width"`
	MaxDailyBuys        *int     `yaml:"max_daily_buys"`
	MaxPositionSize     *float64 `yaml:"max_position_size"`
}

type ProfileFile struct {
	Active   string             `yaml:"active"`
	Profiles map[string]Profile `yaml:"profiles"`
}

func ParseProfiles(data []byte) (*ProfileFile, error) {
	var pf ProfileFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse strategy profiles: %w", err)
	}
	return &pf, nil
}

// ApplyProfileFile loads path and applies the named profile, falling back to
// the file's "active" entry when name is empty.
func (c *Config) ApplyProfileFile(path, name string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read strategy profile %s: %w", path, err)
	}
	pf, err := ParseProfiles(data)
	if err != nil {
		return err
	}
	if name == "" {
		name = pf.Active
	}
	p, ok := pf.Profiles[name]
	if !ok {
		return fmt.Errorf("strategy profile %q not found in %s", name, path)
	}
	c.ApplyProfile(p)
	return nil
}

func (c *Config) ApplyProfile(p Profile) {
	setF := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	setI := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}

	setF(&c.ProfitTargetPercent, p.ProfitTargetPercent)
	setF(&c.DCATriggerPercent, p.DCATriggerPercent)
	setF(&c.DCAGrowthFactor, p.DCAGrowthFactor)
	setF(&c.DCAMultiplier, p.DCAMultiplier)
	setF(&c.EntryMinNotional, p.EntryMinNotional)
	setF(&c.DCAMinNotional, p.DCAMinNotional)
	setI(&c.CooldownSeconds, p.CooldownSeconds)
	setF(&c.RiskBucketWidth, p.RiskBucketWidth)
	setI(&c.MaxDailyBuys, p.MaxDailyBuys)
	setF(&c.MaxPositionSize, p.MaxPositionSize)
}
