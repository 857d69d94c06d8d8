package config

import (
	"context"
	"fmt"
	"time"

	"github.com/apple/pkl-go/pkl"
)

// pklConfig mirrors Config for Pkl evaluation. Properties the module does not
// declare stay nil and keep their defaults.
type pklConfig struct {
	Region  *string `pkl:"region"`
	Zone    *string `pkl:"zone"`
	Content *string `pkl:"content"`
	Index   *string `pkl:"index"`
	Error   *string `pkl:"error"`

	ForceSync *bool `pkl:"forceSync"`
	Strict    *bool `pkl:"strict"`
	Upsert    *bool `pkl:"upsert"`

	SettleDelay        *pkl.Duration `pkl:"settleDelay"`
	PollInterval       *pkl.Duration `pkl:"pollInterval"`
	PollMaxInterval    *pkl.Duration `pkl:"pollMaxInterval"`
	PropagationTimeout *pkl.Duration `pkl:"propagationTimeout"`
	UploadConcurrency  *int          `pkl:"uploadConcurrency"`

	Regions map[string]pklRegionOverride `pkl:"regions"`
}

type pklRegionOverride struct {
	WebsiteEndpoint string `pkl:"websiteEndpoint"`
	HostedZoneID    string `pkl:"hostedZoneId"`
}

// evaluatePkl evaluates the module at path and overlays its properties. The
// pkl CLI must be on PATH.
func (c *Config) evaluatePkl(ctx context.Context, path string) error {
	evaluator, err := pkl.NewEvaluator(ctx, pkl.PreconfiguredOptions)
	if err != nil {
		return fmt.Errorf("failed to create PKL evaluator: %w", err)
	}
	defer evaluator.Close()

	var p pklConfig
	if err := evaluator.EvaluateModule(ctx, pkl.FileSource(path), &p); err != nil {
		return fmt.Errorf("failed to evaluate config file %s: %w", path, err)
	}
	c.overlay(&p)
	return nil
}

func (c *Config) overlay(p *pklConfig) {
	setString(&c.Region, p.Region)
	setString(&c.Zone, p.Zone)
	setString(&c.Content, p.Content)
	setString(&c.Index, p.Index)
	setString(&c.Error, p.Error)

	setBool(&c.ForceSync, p.ForceSync)
	setBool(&c.Strict, p.Strict)
	setBool(&c.Upsert, p.Upsert)

	setDuration(&c.SettleDelay, p.SettleDelay)
	setDuration(&c.PollInterval, p.PollInterval)
	setDuration(&c.PollMaxInterval, p.PollMaxInterval)
	setDuration(&c.PropagationTimeout, p.PropagationTimeout)
	if p.UploadConcurrency != nil {
		c.UploadConcurrency = *p.UploadConcurrency
	}

	if len(p.Regions) > 0 && c.Regions == nil {
		c.Regions = make(map[string]RegionOverride, len(p.Regions))
	}
	for name, r := range p.Regions {
		c.Regions[name] = RegionOverride{WebsiteEndpoint: r.WebsiteEndpoint, HostedZoneID: r.HostedZoneID}
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *pkl.Duration) {
	if v != nil {
		*dst = v.GoDuration()
	}
}
