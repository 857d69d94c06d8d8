// Package config loads deployment settings from defaults and an optional
// YAML or Pkl file. Command-line flags are applied on top by the cli package.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults used when neither the config file nor the command line set a value.
const (
	DefaultRegion             = "sa-east-1"
	DefaultZone               = "escalabilidade2017.tk"
	DefaultContent            = "website"
	DefaultIndex              = "index.html"
	DefaultError              = "404.html"
	DefaultSettleDelay        = 5 * time.Second
	DefaultPollInterval       = 3 * time.Second
	DefaultPollMaxInterval    = 30 * time.Second
	DefaultPropagationTimeout = 10 * time.Minute
	DefaultUploadConcurrency  = 8
)

// RegionOverride replaces or adds a row of the S3 website endpoint table.
type RegionOverride struct {
	WebsiteEndpoint string `yaml:"websiteEndpoint"`
	HostedZoneID    string `yaml:"hostedZoneId"`
}

// Config is the full set of deployment settings.
type Config struct {
	Region  string `yaml:"region"`
	Zone    string `yaml:"zone"`
	Content string `yaml:"content"`
	Index   string `yaml:"index"`
	Error   string `yaml:"error"`

	// ForceSync re-uploads content and reapplies the website configuration
	// when the bucket already exists.
	ForceSync bool `yaml:"forceSync"`
	// Strict aborts before DNS binding when bucket configuration is degraded.
	Strict bool `yaml:"strict"`
	// Upsert submits the alias record as UPSERT instead of CREATE.
	Upsert bool `yaml:"upsert"`

	SettleDelay        time.Duration `yaml:"settleDelay"`
	PollInterval       time.Duration `yaml:"pollInterval"`
	PollMaxInterval    time.Duration `yaml:"pollMaxInterval"`
	PropagationTimeout time.Duration `yaml:"propagationTimeout"`
	UploadConcurrency  int           `yaml:"uploadConcurrency"`

	Regions map[string]RegionOverride `yaml:"regions"`
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		Region:             DefaultRegion,
		Zone:               DefaultZone,
		Content:            DefaultContent,
		Index:              DefaultIndex,
		Error:              DefaultError,
		SettleDelay:        DefaultSettleDelay,
		PollInterval:       DefaultPollInterval,
		PollMaxInterval:    DefaultPollMaxInterval,
		PropagationTimeout: DefaultPropagationTimeout,
		UploadConcurrency:  DefaultUploadConcurrency,
	}
}

// Load returns the defaults overlaid with the config file at path. An empty
// path returns the defaults.
func Load(path string) (*Config, error) {
	return LoadContext(context.Background(), path)
}

// LoadContext is Load with a context for evaluating Pkl files. Files ending
// in .pkl are evaluated with pkl-go, anything else is read as YAML.
func LoadContext(ctx context.Context, path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	if strings.EqualFold(filepath.Ext(path), ".pkl") {
		if err := cfg.evaluatePkl(ctx, path); err != nil {
			return nil, err
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks the settings that cannot be defaulted at use time.
func (c *Config) Validate() error {
	if c.Region == "" {
		return fmt.Errorf("region is required")
	}
	if c.Zone == "" {
		return fmt.Errorf("zone is required")
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("settleDelay must not be negative")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("pollInterval must be positive")
	}
	if c.PollMaxInterval < c.PollInterval {
		return fmt.Errorf("pollMaxInterval (%s) must be at least pollInterval (%s)", c.PollMaxInterval, c.PollInterval)
	}
	if c.PropagationTimeout <= 0 {
		return fmt.Errorf("propagationTimeout must be positive")
	}
	if c.UploadConcurrency < 1 {
		return fmt.Errorf("uploadConcurrency must be at least 1")
	}
	for name, r := range c.Regions {
		if r.WebsiteEndpoint == "" || r.HostedZoneID == "" {
			return fmt.Errorf("region %s: websiteEndpoint and hostedZoneId are both required", name)
		}
	}
	return nil
}
