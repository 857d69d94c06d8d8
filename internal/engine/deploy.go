package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/picklr-io/sitedeploy/internal/ir"
	"github.com/picklr-io/sitedeploy/internal/logging"
)

// Event statuses.
const (
	StatusStarted   = "started"
	StatusProgress  = "progress"
	StatusCompleted = "completed"
	StatusSkipped   = "skipped"
	StatusDegraded  = "degraded"
	StatusFailed    = "failed"
)

// DeployEvent represents a progress event during a deployment.
type DeployEvent struct {
	Step     string
	Status   string
	Detail   string
	Progress float64
	Duration time.Duration
	Error    error
}

// DeployCallback is called for each deploy event if set.
type DeployCallback func(event DeployEvent)

// Deploy runs the deployment without progress callbacks.
func (d *Deployer) Deploy(ctx context.Context, site *ir.Website) (*ir.DeployReport, error) {
	return d.DeployWithCallback(ctx, site, nil)
}

// DeployWithCallback runs the deployment steps in order: zone, bucket,
// content upload and website configuration, settle delay, record change and
// propagation wait. The report is returned even when the run fails.
func (d *Deployer) DeployWithCallback(ctx context.Context, site *ir.Website, callback DeployCallback) (*ir.DeployReport, error) {
	r := &run{d: d, site: site, report: &ir.DeployReport{Website: site}, callback: callback}
	err := r.execute(ctx)
	return r.report, err
}

type run struct {
	d        *Deployer
	site     *ir.Website
	report   *ir.DeployReport
	callback DeployCallback
}

func (r *run) emit(event DeployEvent) {
	if r.callback != nil {
		r.callback(event)
	}
}

// finish records a step result and emits the matching event.
func (r *run) finish(step string, outcome ir.Outcome, start time.Time, detail string, err error) {
	res := ir.StepResult{Step: step, Outcome: outcome, Detail: detail, Err: err, Duration: time.Since(start)}
	r.report.Record(res)

	status := StatusCompleted
	switch outcome {
	case ir.OutcomeSkipped:
		status = StatusSkipped
	case ir.OutcomeDegraded:
		status = StatusDegraded
	case ir.OutcomeFailed:
		status = StatusFailed
	}
	r.emit(DeployEvent{Step: step, Status: status, Detail: detail, Duration: res.Duration, Error: err})
}

func (r *run) start(step string) time.Time {
	r.emit(DeployEvent{Step: step, Status: StatusStarted})
	return time.Now()
}

func (r *run) execute(ctx context.Context) error {
	log := logging.With("zone", r.site.HostZoneName, "bucket", r.site.BucketName)

	zoneID, err := r.ensureZone(ctx)
	if err != nil {
		return err
	}

	synced, err := r.provisionBucket(ctx)
	if err != nil {
		return err
	}
	if !synced && r.report.Bucket.Exists {
		log.Warn("bucket already exists; content and website configuration were not updated, only DNS will change (use --force-sync to re-upload)")
	}

	if r.d.opts.Strict && r.report.Degraded() {
		return fmt.Errorf("%w: stopping before DNS binding", ErrDegraded)
	}

	start := r.start(ir.StepSettle)
	log.Info("waiting for bucket changes to settle", "delay", r.d.opts.SettleDelay)
	if err := r.d.sleep(ctx, r.d.opts.SettleDelay); err != nil {
		r.finish(ir.StepSettle, ir.OutcomeFailed, start, "", err)
		return fmt.Errorf("deployment cancelled: %w", err)
	}
	r.finish(ir.StepSettle, ir.OutcomeOK, start, r.d.opts.SettleDelay.String(), nil)

	start = r.start(ir.StepRecord)
	changeID, err := r.d.dns.BindRecord(ctx, zoneID, r.site.BucketName)
	if err != nil {
		r.finish(ir.StepRecord, ir.OutcomeFailed, start, "", err)
		return err
	}
	r.report.ChangeID = changeID
	r.finish(ir.StepRecord, ir.OutcomeOK, start, changeID, nil)

	start = r.start(ir.StepPropagate)
	status, err := r.d.dns.AwaitPropagation(ctx, changeID)
	r.report.Status = status
	if err != nil {
		r.finish(ir.StepPropagate, ir.OutcomeFailed, start, string(status), err)
		return err
	}
	r.finish(ir.StepPropagate, ir.OutcomeOK, start, string(status), nil)

	log.Info("deployment complete", "change", changeID, "status", status)
	return nil
}

// ensureZone creates the zone or resolves the id of the existing one.
func (r *run) ensureZone(ctx context.Context) (string, error) {
	start := r.start(ir.StepZone)

	zone, err := r.d.dns.EnsureZone(ctx, r.site.HostZoneName)
	if err != nil {
		r.finish(ir.StepZone, ir.OutcomeFailed, start, "", err)
		return "", err
	}

	if !zone.Created {
		id, found, err := r.d.dns.ResolveZoneID(ctx, r.site.HostZoneName)
		if err != nil {
			r.finish(ir.StepZone, ir.OutcomeFailed, start, "", err)
			return "", err
		}
		if !found || id == "" {
			err := fmt.Errorf("%w: %s", ErrZoneUnresolved, zone.Name)
			r.finish(ir.StepZone, ir.OutcomeFailed, start, "", err)
			return "", err
		}
		zone.ID = id
	}

	r.report.Zone = zone
	detail := "found " + zone.ID
	if zone.Created {
		detail = "created " + zone.ID
	}
	r.finish(ir.StepZone, ir.OutcomeOK, start, detail, nil)
	return zone.ID, nil
}

// provisionBucket ensures the bucket and, when it was just created or a
// re-sync is forced, uploads content and configures the website. It reports
// whether content was synced. Only upload failures and cancellation are
// returned as errors.
func (r *run) provisionBucket(ctx context.Context) (bool, error) {
	start := r.start(ir.StepBucket)
	bucket, err := r.d.buckets.EnsureBucket(ctx, r.site.BucketName)
	r.report.Bucket = bucket
	if err != nil {
		if ctx.Err() != nil {
			r.finish(ir.StepBucket, ir.OutcomeFailed, start, "", err)
			return false, fmt.Errorf("deployment cancelled: %w", err)
		}
		logging.Error("bucket provisioning failed", "bucket", r.site.BucketName, "error", err)
		r.finish(ir.StepBucket, ir.OutcomeFailed, start, "", err)
		r.skip(ir.StepUpload, "bucket not available")
		r.skip(ir.StepWebsite, "bucket not available")
		return false, nil
	}

	if bucket.Created {
		r.finish(ir.StepBucket, ir.OutcomeOK, start, "created", nil)
	} else {
		r.finish(ir.StepBucket, ir.OutcomeOK, start, "already exists", nil)
	}
	if !bucket.Created && !(bucket.Exists && r.d.opts.ForceSync) {
		r.skip(ir.StepUpload, "bucket already exists")
		r.skip(ir.StepWebsite, "bucket already exists")
		return false, nil
	}

	if err := r.upload(ctx); err != nil {
		return false, err
	}

	start = r.start(ir.StepWebsite)
	res := r.d.buckets.ConfigureWebsite(ctx, r.site.BucketName, r.site.IndexDocument, r.site.ErrorDocument)
	if res.Degraded() {
		r.finish(ir.StepWebsite, ir.OutcomeDegraded, start, "", errors.Join(res.Errors()...))
	} else {
		r.finish(ir.StepWebsite, ir.OutcomeOK, start, "", nil)
	}
	return true, nil
}

func (r *run) skip(step, reason string) {
	r.report.Record(ir.StepResult{Step: step, Outcome: ir.OutcomeSkipped, Detail: reason})
	r.emit(DeployEvent{Step: step, Status: StatusSkipped, Detail: reason})
}

// upload starts the content transfer and samples its progress until done.
func (r *run) upload(ctx context.Context) error {
	start := r.start(ir.StepUpload)

	transfer, err := r.d.content.UploadDirectory(ctx, r.site.BucketName, r.site.ContentRoot, true)
	if err != nil {
		r.finish(ir.StepUpload, ir.OutcomeFailed, start, "", err)
		return fmt.Errorf("%w: %w", ErrUpload, err)
	}
	r.emit(DeployEvent{Step: ir.StepUpload, Status: StatusProgress, Detail: transfer.Description(), Progress: transfer.Progress()})

	ticker := time.NewTicker(r.d.opts.ProgressInterval)
	defer ticker.Stop()
wait:
	for {
		select {
		case <-transfer.Done():
			break wait
		case <-ticker.C:
			r.emit(DeployEvent{Step: ir.StepUpload, Status: StatusProgress, Progress: transfer.Progress()})
		}
	}
	r.emit(DeployEvent{Step: ir.StepUpload, Status: StatusProgress, Progress: transfer.Progress()})

	if err := transfer.Err(); err != nil {
		r.finish(ir.StepUpload, ir.OutcomeFailed, start, "", err)
		if ctx.Err() != nil {
			return fmt.Errorf("deployment cancelled: %w", err)
		}
		return fmt.Errorf("%w: %w", ErrUpload, err)
	}
	r.finish(ir.StepUpload, ir.OutcomeOK, start, transfer.Description(), nil)
	return nil
}
