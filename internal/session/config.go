package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"NightRunners/internal/director"
	"NightRunners/internal/netcode"
)

// Config is the full tuning for one mission session.
type Config struct {
	MissionID         string
	TickRate          float64 // Director ticks per second
	AlertDecayRate    float64 // Alert scale lost per second
	Tension           director.TensionParams
	Spawn             director.SpawnParams
	Sync              netcode.CoordinatorConfig
	ValidationEnabled bool
	MaxRetries        int
	BaseDelay         time.Duration
	RequestTimeout    time.Duration
}

// DefaultConfig returns the standard session tuning.
func DefaultConfig() Config {
	return Config{
		TickRate:          20,
		AlertDecayRate:    director.AlertDecayRate,
		Tension:           director.DefaultTensionParams(),
		Spawn:             director.DefaultSpawnParams(),
		Sync:              netcode.SanitizeCoordinatorConfig(netcode.CoordinatorConfig{}),
		ValidationEnabled: true,
		MaxRetries:        netcode.DefaultMaxRetries,
		BaseDelay:         netcode.DefaultBaseDelay,
		RequestTimeout:    netcode.DefaultRequestTimeout,
	}
}

// SanitizeConfig clamps a config to safe values.
func SanitizeConfig(cfg Config) Config {
	if !(cfg.TickRate > 0) {
		cfg.TickRate = 20
	}
	if !(cfg.AlertDecayRate >= 0) {
		cfg.AlertDecayRate = director.AlertDecayRate
	}
	cfg.Tension = director.SanitizeTensionParams(cfg.Tension)
	cfg.Spawn = director.SanitizeSpawnParams(cfg.Spawn)
	cfg.Sync = netcode.SanitizeCoordinatorConfig(cfg.Sync)
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = netcode.DefaultMaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = netcode.DefaultBaseDelay
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = netcode.DefaultRequestTimeout
	}
	return cfg
}

type tensionConfig struct {
	MaxHeat     *float64 `json:"maxHeat"`
	MaxTime     *float64 `json:"maxTime"`
	WeightHeat  *float64 `json:"weightHeat"`
	WeightTime  *float64 `json:"weightTime"`
	WeightAlert *float64 `json:"weightAlert"`
}

type spawnConfig struct {
	BaseInterval    *float64 `json:"baseInterval"`
	BaseCount       *int     `json:"baseCount"`
	CountMultiplier *float64 `json:"countMultiplier"`
	MaxPerWave      *int     `json:"maxPerWave"`
	MaxActive       *int     `json:"maxActive"`
}

type syncConfig struct {
	Interval               *float64 `json:"interval"`
	MaxClientDeviation     *float64 `json:"maxClientDeviation"`
	MaxHeatChangePerSecond *float64 `json:"maxHeatChangePerSecond"`
}

type tuningFile struct {
	TickRate       *float64       `json:"tickRate"`
	AlertDecayRate *float64       `json:"alertDecayRate"`
	Tension        *tensionConfig `json:"tension"`
	Spawn          *spawnConfig   `json:"spawn"`
	Sync           *syncConfig    `json:"sync"`
}

func mergeTuning(base Config, cfg *tuningFile) Config {
	if cfg == nil {
		return SanitizeConfig(base)
	}
	if cfg.TickRate != nil {
		base.TickRate = *cfg.TickRate
	}
	if cfg.AlertDecayRate != nil {
		base.AlertDecayRate = *cfg.AlertDecayRate
	}
	if t := cfg.Tension; t != nil {
		if t.MaxHeat != nil {
			base.Tension.MaxHeat = *t.MaxHeat
		}
		if t.MaxTime != nil {
			base.Tension.MaxTime = *t.MaxTime
		}
		if t.WeightHeat != nil {
			base.Tension.WeightHeat = *t.WeightHeat
		}
		if t.WeightTime != nil {
			base.Tension.WeightTime = *t.WeightTime
		}
		if t.WeightAlert != nil {
			base.Tension.WeightAlert = *t.WeightAlert
		}
	}
	if s := cfg.Spawn; s != nil {
		if s.BaseInterval != nil {
			base.Spawn.BaseInterval = *s.BaseInterval
		}
		if s.BaseCount != nil {
			base.Spawn.BaseCount = *s.BaseCount
		}
		if s.CountMultiplier != nil {
			base.Spawn.CountMultiplier = *s.CountMultiplier
		}
		if s.MaxPerWave != nil {
			base.Spawn.MaxPerWave = *s.MaxPerWave
		}
		if s.MaxActive != nil {
			base.Spawn.MaxActive = *s.MaxActive
		}
	}
	if s := cfg.Sync; s != nil {
		if s.Interval != nil {
			base.Sync.SyncInterval = *s.Interval
		}
		if s.MaxClientDeviation != nil {
			base.Sync.MaxClientDeviation = *s.MaxClientDeviation
		}
		if s.MaxHeatChangePerSecond != nil {
			base.Sync.MaxHeatChangePerSecond = *s.MaxHeatChangePerSecond
		}
	}
	return SanitizeConfig(base)
}

// LoadTuning merges a JSON tuning file over base. A missing file is not an
// error; the base tuning is returned unchanged.
func LoadTuning(path string, base Config) (Config, error) {
	if path == "" {
		return SanitizeConfig(base), nil
	}
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			return SanitizeConfig(base), nil
		}
		return SanitizeConfig(base), fmt.Errorf("read session tuning %q: %w", cleanPath, err)
	}
	var cfg tuningFile
	if err := json.Unmarshal(data, &cfg); err != nil {
		return SanitizeConfig(base), fmt.Errorf("parse session tuning %q: %w", cleanPath, err)
	}
	return mergeTuning(base, &cfg), nil
}
