package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"netcard-affinity/internal/logging"
)

var ErrInvalidConfig = errors.New("invalid config")

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// LoadEnv loads the given .env files into the process environment. Variables
// already set win. A missing file is not an error.
func LoadEnv(files ...string) error {
	logger := logging.GetLogger()
	for _, file := range files {
		if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("load %s: %w", file, err)
		}
		logger.WithField("file", file).Debug("Loaded environment file")
	}
	return nil
}

func LoadConfig(filepath string) (*Config, error) {
	logger := logging.GetLogger()

	data, err := os.ReadFile(filepath)
	if err != nil {
		logger.WithField("filepath", filepath).WithError(err).Error("Failed to read config file")
		return nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		logger.WithField("filepath", filepath).WithError(err).Error("Failed to load config file")
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a YAML document over Default, expanding ${VAR} references
// first, and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Unset variables are left as written.
func expandEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		envVar := strings.Trim(match, "${}")
		if value := os.Getenv(envVar); value != "" {
			return value
		}
		return match
	})
}

func (c *Config) Validate() error {
	if c.Placement.Mode < 1 || c.Placement.Mode > 3 {
		return fmt.Errorf("%w: placement.mode must be 1, 2 or 3, got %d", ErrInvalidConfig, c.Placement.Mode)
	}
	if c.Placement.Socket < 0 {
		return fmt.Errorf("%w: placement.socket must not be negative", ErrInvalidConfig)
	}
	if c.Sampler.Interval <= 0 {
		return fmt.Errorf("%w: sampler.interval must be greater than 0", ErrInvalidConfig)
	}
	if c.Paths.ProcFS == "" || c.Paths.SysFS == "" {
		return fmt.Errorf("%w: paths.procfs and paths.sysfs are required", ErrInvalidConfig)
	}

	if db := c.InfluxDB; db != nil {
		if db.Host == "" || db.Token == "" || db.Org == "" || db.Bucket == "" {
			return fmt.Errorf("%w: incomplete influxdb configuration", ErrInvalidConfig)
		}
	}
	return nil
}
