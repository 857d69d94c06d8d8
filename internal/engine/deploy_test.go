package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/picklr-io/sitedeploy/internal/ir"
	"github.com/picklr-io/sitedeploy/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// calls is a shared, ordered log of collaborator calls.
type calls []string

func (c *calls) add(name string) { *c = append(*c, name) }

type fakeBuckets struct {
	log      *calls
	existing bool
	err      error
	result   ir.WebsiteResult
	index    string
	errorDoc string
}

func (f *fakeBuckets) EnsureBucket(ctx context.Context, name string) (ir.Bucket, error) {
	f.log.add("EnsureBucket:" + name)
	if f.err != nil {
		return ir.Bucket{Name: name}, f.err
	}
	if f.existing {
		return ir.Bucket{Name: name, Exists: true}, nil
	}
	f.existing = true
	return ir.Bucket{Name: name, Exists: true, Created: true}, nil
}

func (f *fakeBuckets) ConfigureWebsite(ctx context.Context, name, index, errorDoc string) ir.WebsiteResult {
	f.log.add("ConfigureWebsite:" + name)
	f.index, f.errorDoc = index, errorDoc
	return f.result
}

type fakeTransfer struct {
	done chan struct{}
	err  error
}

func (t *fakeTransfer) Description() string   { return "uploading" }
func (t *fakeTransfer) Progress() float64     { return 100 }
func (t *fakeTransfer) Done() <-chan struct{} { return t.done }
func (t *fakeTransfer) Err() error            { return t.err }

type fakeContent struct {
	log       *calls
	startErr  error
	uploadErr error
	root      string
}

func (f *fakeContent) UploadDirectory(ctx context.Context, bucket, root string, recursive bool) (ir.Transfer, error) {
	f.log.add("UploadDirectory:" + bucket)
	f.root = root
	if f.startErr != nil {
		return nil, f.startErr
	}
	t := &fakeTransfer{done: make(chan struct{}), err: f.uploadErr}
	close(t.done)
	return t, nil
}

type fakeDNS struct {
	log        *calls
	zoneExists bool
	resolvable bool
	zoneErr    error
	bindErr    error
	awaitErr   error
	status     ir.ChangeStatus
	boundZone  string
	boundName  string
}

func (f *fakeDNS) EnsureZone(ctx context.Context, name string) (ir.HostedZone, error) {
	f.log.add("EnsureZone:" + name)
	if f.zoneErr != nil {
		return ir.HostedZone{}, f.zoneErr
	}
	if f.zoneExists {
		return ir.HostedZone{Name: name + "."}, nil
	}
	return ir.HostedZone{Name: name + ".", ID: "ZNEW", Created: true}, nil
}

func (f *fakeDNS) ResolveZoneID(ctx context.Context, name string) (string, bool, error) {
	f.log.add("ResolveZoneID:" + name)
	if !f.resolvable {
		return "", false, nil
	}
	return "ZEXISTING", true, nil
}

func (f *fakeDNS) BindRecord(ctx context.Context, zoneID, domain string) (string, error) {
	f.log.add("BindRecord:" + zoneID + ":" + domain)
	f.boundZone, f.boundName = zoneID, domain
	if f.bindErr != nil {
		return "", f.bindErr
	}
	return "C1", nil
}

func (f *fakeDNS) AwaitPropagation(ctx context.Context, changeID string) (ir.ChangeStatus, error) {
	f.log.add("AwaitPropagation:" + changeID)
	if f.awaitErr != nil {
		return ir.ChangeStatusPending, f.awaitErr
	}
	if f.status != "" {
		return f.status, nil
	}
	return ir.ChangeStatusInSync, nil
}

type harness struct {
	log     *calls
	buckets *fakeBuckets
	content *fakeContent
	dns     *fakeDNS
	waits   []time.Duration
}

func newHarness() *harness {
	log := &calls{}
	return &harness{
		log:     log,
		buckets: &fakeBuckets{log: log},
		content: &fakeContent{log: log},
		dns:     &fakeDNS{log: log, resolvable: true},
	}
}

func (h *harness) deployer(opts Options) *Deployer {
	if opts.SettleDelay == 0 {
		opts.SettleDelay = 5 * time.Second
	}
	return NewDeployer(h.buckets, h.content, h.dns, opts).WithSleeper(func(ctx context.Context, d time.Duration) error {
		h.log.add("Settle")
		h.waits = append(h.waits, d)
		return ctx.Err()
	})
}

func testSite(t *testing.T) *ir.Website {
	t.Helper()
	site, err := ir.NewWebsite("example.tk", "website", "index.html", "404.html")
	require.NoError(t, err)
	return site
}

func TestDeploy_FreshDeploy(t *testing.T) {
	h := newHarness()

	report, err := h.deployer(Options{}).Deploy(context.Background(), testSite(t))
	require.NoError(t, err)

	assert.Equal(t, calls{
		"EnsureZone:example.tk",
		"EnsureBucket:www.example.tk",
		"UploadDirectory:www.example.tk",
		"ConfigureWebsite:www.example.tk",
		"Settle",
		"BindRecord:ZNEW:www.example.tk",
		"AwaitPropagation:C1",
	}, *h.log)

	assert.Equal(t, "index.html", h.buckets.index)
	assert.Equal(t, "404.html", h.buckets.errorDoc)
	assert.Equal(t, "website", h.content.root)
	assert.Equal(t, []time.Duration{5 * time.Second}, h.waits)

	assert.True(t, report.Zone.Created)
	assert.True(t, report.Bucket.Created)
	assert.Equal(t, "C1", report.ChangeID)
	assert.Equal(t, ir.ChangeStatusInSync, report.Status)
	assert.False(t, report.Degraded())
}

func TestDeploy_ZoneExistsBucketAbsent(t *testing.T) {
	h := newHarness()
	h.dns.zoneExists = true

	report, err := h.deployer(Options{}).Deploy(context.Background(), testSite(t))
	require.NoError(t, err)

	assert.Equal(t, calls{
		"EnsureZone:example.tk",
		"ResolveZoneID:example.tk",
		"EnsureBucket:www.example.tk",
		"UploadDirectory:www.example.tk",
		"ConfigureWebsite:www.example.tk",
		"Settle",
		"BindRecord:ZEXISTING:www.example.tk",
		"AwaitPropagation:C1",
	}, *h.log)
	assert.Equal(t, "ZEXISTING", report.Zone.ID)
	assert.False(t, report.Zone.Created)
}

func TestDeploy_BucketExistsSkipsSyncAndConfig(t *testing.T) {
	h := newHarness()
	h.buckets.existing = true

	report, err := h.deployer(Options{}).Deploy(context.Background(), testSite(t))
	require.NoError(t, err)

	assert.NotContains(t, *h.log, "UploadDirectory:www.example.tk")
	assert.NotContains(t, *h.log, "ConfigureWebsite:www.example.tk")
	assert.Contains(t, *h.log, "BindRecord:ZNEW:www.example.tk")
	assert.Equal(t, "www.example.tk", h.dns.boundName)

	upload, ok := report.Step(ir.StepUpload)
	require.True(t, ok)
	assert.Equal(t, ir.OutcomeSkipped, upload.Outcome)
	website, ok := report.Step(ir.StepWebsite)
	require.True(t, ok)
	assert.Equal(t, ir.OutcomeSkipped, website.Outcome)
	assert.False(t, report.Degraded())
}

func TestDeploy_ForceSyncOnExistingBucket(t *testing.T) {
	h := newHarness()
	h.buckets.existing = true

	_, err := h.deployer(Options{ForceSync: true}).Deploy(context.Background(), testSite(t))
	require.NoError(t, err)

	assert.Contains(t, *h.log, "UploadDirectory:www.example.tk")
	assert.Contains(t, *h.log, "ConfigureWebsite:www.example.tk")
}

func TestDeploy_ZoneUnresolvedAbortsEarly(t *testing.T) {
	h := newHarness()
	h.dns.zoneExists = true
	h.dns.resolvable = false

	report, err := h.deployer(Options{}).Deploy(context.Background(), testSite(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrZoneUnresolved)

	assert.Equal(t, calls{"EnsureZone:example.tk", "ResolveZoneID:example.tk"}, *h.log)
	zone, ok := report.Step(ir.StepZone)
	require.True(t, ok)
	assert.Equal(t, ir.OutcomeFailed, zone.Outcome)
}

func TestDeploy_ZoneErrorIsNotUnresolved(t *testing.T) {
	h := newHarness()
	h.dns.zoneErr = errors.New("failed to list hosted zones: access denied")

	_, err := h.deployer(Options{}).Deploy(context.Background(), testSite(t))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrZoneUnresolved)
	assert.Len(t, *h.log, 1)
}

func TestDeploy_UploadFailureIsFatal(t *testing.T) {
	h := newHarness()
	h.content.uploadErr = errors.New("1 of 3 files failed to upload")

	report, err := h.deployer(Options{}).Deploy(context.Background(), testSite(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpload)
	assert.NotContains(t, *h.log, "ConfigureWebsite:www.example.tk")
	assert.NotContains(t, *h.log, "Settle")

	upload, ok := report.Step(ir.StepUpload)
	require.True(t, ok)
	assert.Equal(t, ir.OutcomeFailed, upload.Outcome)
}

func TestDeploy_UploadStartFailureIsFatal(t *testing.T) {
	h := newHarness()
	h.content.startErr = errors.New("failed to read content folder")

	_, err := h.deployer(Options{}).Deploy(context.Background(), testSite(t))
	assert.ErrorIs(t, err, ErrUpload)
}

func TestDeploy_BucketCreateFailureContinuesToDNS(t *testing.T) {
	h := newHarness()
	h.buckets.err = errors.New("failed to create bucket: BucketAlreadyExists")

	report, err := h.deployer(Options{}).Deploy(context.Background(), testSite(t))
	require.NoError(t, err)

	assert.NotContains(t, *h.log, "UploadDirectory:www.example.tk")
	assert.Contains(t, *h.log, "BindRecord:ZNEW:www.example.tk")
	assert.True(t, report.Degraded())
}

func TestDeploy_StrictStopsOnBucketFailure(t *testing.T) {
	h := newHarness()
	h.buckets.err = errors.New("failed to create bucket")

	_, err := h.deployer(Options{Strict: true}).Deploy(context.Background(), testSite(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDegraded)
	assert.NotContains(t, *h.log, "Settle")
}

func TestDeploy_DegradedWebsiteContinues(t *testing.T) {
	h := newHarness()
	h.buckets.result = ir.WebsiteResult{WebsiteErr: errors.New("MalformedXML")}

	report, err := h.deployer(Options{}).Deploy(context.Background(), testSite(t))
	require.NoError(t, err)

	website, ok := report.Step(ir.StepWebsite)
	require.True(t, ok)
	assert.Equal(t, ir.OutcomeDegraded, website.Outcome)
	assert.Contains(t, *h.log, "BindRecord:ZNEW:www.example.tk")
}

func TestDeploy_StrictStopsOnDegradedWebsite(t *testing.T) {
	h := newHarness()
	h.buckets.result = ir.WebsiteResult{PolicyErr: errors.New("AccessDenied")}

	_, err := h.deployer(Options{Strict: true}).Deploy(context.Background(), testSite(t))
	assert.ErrorIs(t, err, ErrDegraded)
	assert.NotContains(t, *h.log, "BindRecord:ZNEW:www.example.tk")
}

func TestDeploy_PropagationTimeout(t *testing.T) {
	h := newHarness()
	h.dns.awaitErr = errors.Join(retry.ErrTimeout, context.DeadlineExceeded)

	report, err := h.deployer(Options{}).Deploy(context.Background(), testSite(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrTimeout)
	assert.Equal(t, "C1", report.ChangeID)
	assert.Equal(t, ir.ChangeStatusPending, report.Status)
}

func TestDeploy_BindFailure(t *testing.T) {
	h := newHarness()
	h.dns.bindErr = errors.New("InvalidChangeBatch: record already exists")

	_, err := h.deployer(Options{}).Deploy(context.Background(), testSite(t))
	require.Error(t, err)
	assert.NotContains(t, *h.log, "AwaitPropagation:C1")
}

func TestDeploy_CancelledDuringSettle(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	d := NewDeployer(h.buckets, h.content, h.dns, Options{SettleDelay: time.Hour}).
		WithSleeper(func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		})

	_, err := d.Deploy(ctx, testSite(t))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotContains(t, *h.log, "BindRecord:ZNEW:www.example.tk")
}

func TestDeploy_Events(t *testing.T) {
	h := newHarness()
	h.buckets.existing = true

	var events []DeployEvent
	_, err := h.deployer(Options{}).DeployWithCallback(context.Background(), testSite(t), func(e DeployEvent) {
		events = append(events, e)
	})
	require.NoError(t, err)

	var summary []string
	for _, e := range events {
		summary = append(summary, e.Step+":"+e.Status)
	}
	assert.Equal(t, []string{
		"zone:started", "zone:completed",
		"bucket:started", "bucket:completed",
		"upload:skipped", "website:skipped",
		"settle:started", "settle:completed",
		"record:started", "record:completed",
		"propagate:started", "propagate:completed",
	}, summary)
}

func TestDeploy_UploadProgressEvents(t *testing.T) {
	h := newHarness()

	var progress []float64
	_, err := h.deployer(Options{}).DeployWithCallback(context.Background(), testSite(t), func(e DeployEvent) {
		if e.Status == StatusProgress {
			progress = append(progress, e.Progress)
		}
	})
	require.NoError(t, err)
	require.NotEmpty(t, progress)
	assert.Equal(t, float64(100), progress[len(progress)-1])
}
