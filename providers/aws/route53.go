package aws

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/picklr-io/sitedeploy/internal/ir"
	"github.com/picklr-io/sitedeploy/internal/logging"
	"github.com/picklr-io/sitedeploy/internal/retry"
)

// DNSDriver manages the hosted zone and the alias record of a site.
type DNSDriver struct {
	client Route53API
	target WebsiteEndpoint
	action ir.RecordAction
	poll   *retry.PollPolicy
	retry  *retry.RetryPolicy
	sleep  retry.Sleeper
	now    func() time.Time
	log    *slog.Logger
}

// DNSOption configures a DNSDriver.
type DNSOption func(*DNSDriver)

// WithRecordAction sets the change action used by BindRecord.
func WithRecordAction(a ir.RecordAction) DNSOption {
	return func(d *DNSDriver) { d.action = a }
}

// WithPollPolicy sets the propagation poll policy.
func WithPollPolicy(p *retry.PollPolicy) DNSOption {
	return func(d *DNSDriver) { d.poll = p }
}

// WithRetryPolicy sets the retry policy for transient GetChange errors.
func WithRetryPolicy(p *retry.RetryPolicy) DNSOption {
	return func(d *DNSDriver) { d.retry = p }
}

// WithSleeper replaces the wait between propagation polls.
func WithSleeper(s retry.Sleeper) DNSOption {
	return func(d *DNSDriver) { d.sleep = s }
}

// WithClock replaces the clock used for caller references.
func WithClock(now func() time.Time) DNSOption {
	return func(d *DNSDriver) { d.now = now }
}

// NewDNSDriver returns a driver aliasing records to target.
func NewDNSDriver(client Route53API, target WebsiteEndpoint, opts ...DNSOption) *DNSDriver {
	d := &DNSDriver{
		client: client,
		target: target,
		action: ir.RecordActionCreate,
		poll:   retry.DefaultPollPolicy(),
		retry:  retry.DefaultRetryPolicy(),
		sleep:  retry.Sleep,
		now:    time.Now,
		log:    logging.With("component", "route53"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NormalizeZoneName returns name lower-cased with exactly one trailing dot,
// the form Route 53 reports zone names in.
func NormalizeZoneName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimRight(name, ".") + "."
}

// EnsureZone creates the hosted zone unless one with the same name exists.
// For an existing zone Created is false and ID is empty: the caller resolves
// the id with ResolveZoneID.
func (d *DNSDriver) EnsureZone(ctx context.Context, name string) (ir.HostedZone, error) {
	zone := ir.HostedZone{Name: NormalizeZoneName(name)}

	existing, err := d.findZone(ctx, zone.Name)
	if err != nil {
		return zone, err
	}
	if existing != nil {
		d.log.Info("hosted zone already exists", "zone", zone.Name)
		return zone, nil
	}

	callerRef := strconv.FormatInt(d.now().UnixNano(), 10)
	resp, err := d.client.CreateHostedZone(ctx, &route53.CreateHostedZoneInput{
		Name:            aws.String(zone.Name),
		CallerReference: aws.String(callerRef),
	})
	if err != nil {
		return zone, fmt.Errorf("failed to create hosted zone %s: %w", zone.Name, err)
	}
	if resp.HostedZone == nil || aws.ToString(resp.HostedZone.Id) == "" {
		return zone, fmt.Errorf("create hosted zone %s returned no id", zone.Name)
	}

	zone.ID = TrimIDPrefix(aws.ToString(resp.HostedZone.Id))
	zone.Created = true
	d.log.Info("hosted zone created", "zone", zone.Name, "id", zone.ID)
	return zone, nil
}

// ResolveZoneID looks the zone up again and returns its id. found is false
// when no zone with that name (or no id for it) exists.
func (d *DNSDriver) ResolveZoneID(ctx context.Context, name string) (id string, found bool, err error) {
	zone, err := d.findZone(ctx, NormalizeZoneName(name))
	if err != nil {
		return "", false, err
	}
	if zone == nil || aws.ToString(zone.Id) == "" {
		return "", false, nil
	}
	return TrimIDPrefix(aws.ToString(zone.Id)), true, nil
}

// findZone scans every hosted zone of the account. The first exact name
// match wins.
func (d *DNSDriver) findZone(ctx context.Context, normalized string) (*types.HostedZone, error) {
	p := route53.NewListHostedZonesPaginator(d.client, &route53.ListHostedZonesInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list hosted zones: %w", err)
		}
		for i := range page.HostedZones {
			z := page.HostedZones[i]
			if NormalizeZoneName(aws.ToString(z.Name)) == normalized {
				return &z, nil
			}
		}
	}
	return nil, nil
}

// AliasChange builds the alias record change for domain.
func (d *DNSDriver) AliasChange(domain string) ir.AliasRecordChange {
	return ir.AliasRecordChange{
		Name:                 domain,
		AliasDNSName:         d.target.Endpoint,
		AliasZoneID:          d.target.HostedZoneID,
		EvaluateTargetHealth: true,
		Action:               d.action,
	}
}

// BindRecord submits the alias A record for domain in zoneID and returns the
// change id.
func (d *DNSDriver) BindRecord(ctx context.Context, zoneID, domain string) (string, error) {
	change := d.AliasChange(domain)

	input := &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
		ChangeBatch: &types.ChangeBatch{
			Comment: aws.String("alias " + domain + " to " + change.AliasDNSName),
			Changes: []types.Change{
				{
					Action: types.ChangeAction(change.Action),
					ResourceRecordSet: &types.ResourceRecordSet{
						Name: aws.String(change.Name),
						Type: types.RRTypeA,
						AliasTarget: &types.AliasTarget{
							DNSName:              aws.String(change.AliasDNSName),
							HostedZoneId:         aws.String(change.AliasZoneID),
							EvaluateTargetHealth: change.EvaluateTargetHealth,
						},
					},
				},
			},
		},
	}

	resp, err := d.client.ChangeResourceRecordSets(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to %s alias record %s: %w", strings.ToLower(string(change.Action)), domain, err)
	}
	if resp.ChangeInfo == nil || aws.ToString(resp.ChangeInfo.Id) == "" {
		return "", fmt.Errorf("record change for %s returned no change id", domain)
	}

	id := TrimIDPrefix(aws.ToString(resp.ChangeInfo.Id))
	d.log.Info("record set change submitted", "zone", zoneID, "record", domain, "target", change.AliasDNSName, "change", id)
	return id, nil
}

// AwaitPropagation polls the change until it leaves PENDING. Any other
// status ends the wait; statuses other than INSYNC are logged. The wait is
// bounded by the poll policy timeout and by ctx.
func (d *DNSDriver) AwaitPropagation(ctx context.Context, changeID string) (ir.ChangeStatus, error) {
	var status ir.ChangeStatus
	err := retry.Poll(ctx, d.poll, d.sleep, func(ctx context.Context) (bool, error) {
		s, err := d.changeStatus(ctx, changeID)
		if err != nil {
			return false, err
		}
		status = s
		if s.Pending() {
			d.log.Info("change is pending", "change", changeID)
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return status, fmt.Errorf("change %s did not propagate: %w", changeID, err)
	}

	if status != ir.ChangeStatusInSync {
		d.log.Warn("change finished with unexpected status", "change", changeID, "status", status)
	} else {
		d.log.Info("change is complete", "change", changeID)
	}
	return status, nil
}

func (d *DNSDriver) changeStatus(ctx context.Context, changeID string) (ir.ChangeStatus, error) {
	var out *route53.GetChangeOutput
	err := retry.RetryWithBackoff(ctx, d.retry, func() error {
		var err error
		out, err = d.client.GetChange(ctx, &route53.GetChangeInput{Id: aws.String(changeID)})
		return err
	}, retry.IsTransientError)
	if err != nil {
		return "", fmt.Errorf("failed to get change %s: %w", changeID, err)
	}
	if out.ChangeInfo == nil {
		return "", fmt.Errorf("change %s returned no status", changeID)
	}
	return ir.ChangeStatus(out.ChangeInfo.Status), nil
}

// TrimIDPrefix strips the "/hostedzone/" or "/change/" resource prefix.
func TrimIDPrefix(id string) string {
	if i := strings.LastIndex(id, "/"); i >= 0 {
		return id[i+1:]
	}
	return id
}
