package config

import (
	"time"
)

type Config struct {
	LogLevel  string          `yaml:"log_level"`
	Paths     PathsConfig     `yaml:"paths"`
	Placement PlacementConfig `yaml:"placement"`
	Sampler   SamplerConfig   `yaml:"sampler"`
	InfluxDB  *InfluxDBConfig `yaml:"influxdb,omitempty"`
}

type PathsConfig struct {
	ProcFS string `yaml:"procfs"`
	SysFS  string `yaml:"sysfs"`
}

type PlacementConfig struct {
	Mode   int `yaml:"mode"`
	Socket int `yaml:"socket"`

	// Netcard left empty means the interface carrying the default route.
	Netcard string `yaml:"netcard"`
}

type SamplerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type InfluxDBConfig struct {
	Host   string `yaml:"host"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// Default is the configuration used when no file is given. Loaded files are
// decoded on top of it, so absent keys keep these values.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Paths: PathsConfig{
			ProcFS: "/proc",
			SysFS:  "/sys",
		},
		Placement: PlacementConfig{
			Mode:   1,
			Socket: 1,
		},
		Sampler: SamplerConfig{
			Interval: time.Second,
		},
	}
}
