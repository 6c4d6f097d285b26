// Copyright (C) 2021-2026, Benjamin Drung <bdrung@posteo.de>
// SPDX-License-Identifier: ISC

package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the exporter configuration.
const (
	defaultListenAddress     = ":9776"
	defaultTelemetryPath     = "/metrics"
	defaultInfluxTokenEnv    = "INFLUX_TOKEN"
	defaultInfluxDatabase    = "climate"
	defaultInfluxMeasurement = "climate"
	defaultInfluxInterval    = 30 * time.Second
)

// Config holds the exporter configuration parsed from an optional YAML file.
// Command line flags override the file; positional sensor arguments extend
// the Sensors list.
type Config struct {
	Web     WebConfig    `yaml:"web"`
	Sensors []string     `yaml:"sensors"`
	Influx  InfluxConfig `yaml:"influx"`
}

type WebConfig struct {
	ListenAddress string `yaml:"listen_address"`
	TelemetryPath string `yaml:"telemetry_path"`
}

// InfluxConfig configures optional observation recording to InfluxDB.
// Recording is enabled when Host is non-empty.
type InfluxConfig struct {
	Host string `yaml:"host"`

	// TokenEnv is the name of the environment variable that holds the
	// InfluxDB token, so the secret stays out of the config file.
	TokenEnv string `yaml:"token_env"`

	Database    string        `yaml:"database"`
	Measurement string        `yaml:"measurement"`
	Interval    time.Duration `yaml:"interval"`
}

// Token returns the InfluxDB token resolved from the environment.
func (c InfluxConfig) Token() string {
	if c.TokenEnv == "" {
		return ""
	}
	return os.Getenv(c.TokenEnv)
}

func DefaultConfig() Config {
	return Config{
		Web: WebConfig{
			ListenAddress: defaultListenAddress,
			TelemetryPath: defaultTelemetryPath,
		},
		Influx: InfluxConfig{
			TokenEnv:    defaultInfluxTokenEnv,
			Database:    defaultInfluxDatabase,
			Measurement: defaultInfluxMeasurement,
			Interval:    defaultInfluxInterval,
		},
	}
}

// LoadConfig reads and parses the YAML config file at path. Missing fields
// keep their defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("Failed to parse config file '%s': %w", path, err)
	}
	if config.Influx.Interval <= 0 {
		return Config{}, fmt.Errorf(
			"Invalid influx interval '%s': must be positive", config.Influx.Interval)
	}
	return config, nil
}
