// Package config loads run configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBackend     = "lj"
	DefaultSteps       = 10000
	DefaultDt          = 0.002
	DefaultParticles   = 108
	DefaultDensity     = 0.8
	DefaultTemperature = 1.0
)

type Config struct {
	Backend            string  `yaml:"backend"`
	Steps              int     `yaml:"steps"`
	CheckpointInterval int     `yaml:"checkpoint_interval"`
	OutputPath         string  `yaml:"output_path"`
	Restart            bool    `yaml:"restart"`
	Speedometer        bool    `yaml:"speedometer"`
	Seed               int64   `yaml:"seed"`
	TrajectoryInterval int     `yaml:"trajectory_interval"`
	ThermoInterval     int     `yaml:"thermo_interval"`
	TargetRMSD         float64 `yaml:"target_rmsd"`
	WallTimeLimit      string  `yaml:"wall_time_limit"`
	System             System  `yaml:"system"`
}

type System struct {
	Particles   int     `yaml:"particles"`
	Density     float64 `yaml:"density"`
	Temperature float64 `yaml:"temperature"`
	Dt          float64 `yaml:"dt"`
}

func Default() *Config {
	return &Config{
		Backend: DefaultBackend,
		Steps:   DefaultSteps,
		System: System{
			Particles:   DefaultParticles,
			Density:     DefaultDensity,
			Temperature: DefaultTemperature,
			Dt:          DefaultDt,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// WallTime parses the wall time limit; an empty limit is zero.
func (c *Config) WallTime() (time.Duration, error) {
	if c.WallTimeLimit == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.WallTimeLimit)
	if err != nil {
		return 0, fmt.Errorf("wall_time_limit: %w", err)
	}
	return d, nil
}
