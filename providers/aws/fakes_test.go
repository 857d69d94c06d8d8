package aws

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	r53types "github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// fakeS3 is an in-memory S3API.
type fakeS3 struct {
	mu sync.Mutex

	buckets   map[string]bool
	headErr   error
	createErr error
	webErr    error
	blockErr  error
	policyErr error
	putErr    map[string]error

	creates  []*s3.CreateBucketInput
	websites []*s3.PutBucketWebsiteInput
	blocks   []*s3.PutPublicAccessBlockInput
	policies []*s3.PutBucketPolicyInput
	objects  map[string][]byte
	types    map[string]string
	calls    []string
}

var _ S3API = (*fakeS3)(nil)

func newFakeS3(existing ...string) *fakeS3 {
	f := &fakeS3{
		buckets: map[string]bool{},
		objects: map[string][]byte{},
		types:   map[string]string{},
		putErr:  map[string]error{},
	}
	for _, b := range existing {
		f.buckets[b] = true
	}
	return f
}

func (f *fakeS3) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("HeadBucket")
	if f.headErr != nil {
		return nil, f.headErr
	}
	if !f.buckets[aws.ToString(in.Bucket)] {
		return nil, &s3types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) CreateBucket(ctx context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateBucket")
	f.creates = append(f.creates, in)
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.buckets[aws.ToString(in.Bucket)] = true
	return &s3.CreateBucketOutput{}, nil
}

func (f *fakeS3) PutBucketWebsite(ctx context.Context, in *s3.PutBucketWebsiteInput, _ ...func(*s3.Options)) (*s3.PutBucketWebsiteOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PutBucketWebsite")
	f.websites = append(f.websites, in)
	if f.webErr != nil {
		return nil, f.webErr
	}
	return &s3.PutBucketWebsiteOutput{}, nil
}

func (f *fakeS3) PutPublicAccessBlock(ctx context.Context, in *s3.PutPublicAccessBlockInput, _ ...func(*s3.Options)) (*s3.PutPublicAccessBlockOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PutPublicAccessBlock")
	f.blocks = append(f.blocks, in)
	if f.blockErr != nil {
		return nil, f.blockErr
	}
	return &s3.PutPublicAccessBlockOutput{}, nil
}

func (f *fakeS3) PutBucketPolicy(ctx context.Context, in *s3.PutBucketPolicyInput, _ ...func(*s3.Options)) (*s3.PutBucketPolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PutBucketPolicy")
	f.policies = append(f.policies, in)
	if f.policyErr != nil {
		return nil, f.policyErr
	}
	return &s3.PutBucketPolicyOutput{}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(in.Key)
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.putErr[key]; err != nil {
		return nil, err
	}
	f.objects[key] = body
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

// fakeRoute53 is an in-memory Route53API.
type fakeRoute53 struct {
	zones []r53types.HostedZone
	// listOverride, when set, replaces zones for the n-th ListHostedZones call (0-based).
	listOverride map[int][]r53types.HostedZone
	pageSize     int

	createErr   error
	changeErr   error
	statuses    []r53types.ChangeStatus
	statusErrs  []error
	listCalls   int
	creates     []*route53.CreateHostedZoneInput
	changes     []*route53.ChangeResourceRecordSetsInput
	getChanges  int
	nextZoneNum int
}

var _ Route53API = (*fakeRoute53)(nil)

func (f *fakeRoute53) ListHostedZones(ctx context.Context, in *route53.ListHostedZonesInput, _ ...func(*route53.Options)) (*route53.ListHostedZonesOutput, error) {
	zones := f.zones
	if o, ok := f.listOverride[f.listCalls]; ok {
		zones = o
	}
	f.listCalls++

	start := 0
	if in.Marker != nil {
		fmt.Sscanf(aws.ToString(in.Marker), "%d", &start)
	}
	end := len(zones)
	if f.pageSize > 0 && start+f.pageSize < end {
		end = start + f.pageSize
	}

	out := &route53.ListHostedZonesOutput{HostedZones: zones[start:end]}
	if end < len(zones) {
		out.IsTruncated = true
		out.NextMarker = aws.String(fmt.Sprintf("%d", end))
	}
	return out, nil
}

func (f *fakeRoute53) CreateHostedZone(ctx context.Context, in *route53.CreateHostedZoneInput, _ ...func(*route53.Options)) (*route53.CreateHostedZoneOutput, error) {
	f.creates = append(f.creates, in)
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextZoneNum++
	zone := r53types.HostedZone{
		Id:              aws.String(fmt.Sprintf("/hostedzone/ZNEW%d", f.nextZoneNum)),
		Name:            aws.String(NormalizeZoneName(aws.ToString(in.Name))),
		CallerReference: in.CallerReference,
	}
	f.zones = append(f.zones, zone)
	return &route53.CreateHostedZoneOutput{HostedZone: &zone}, nil
}

func (f *fakeRoute53) ChangeResourceRecordSets(ctx context.Context, in *route53.ChangeResourceRecordSetsInput, _ ...func(*route53.Options)) (*route53.ChangeResourceRecordSetsOutput, error) {
	f.changes = append(f.changes, in)
	if f.changeErr != nil {
		return nil, f.changeErr
	}
	return &route53.ChangeResourceRecordSetsOutput{
		ChangeInfo: &r53types.ChangeInfo{
			Id:     aws.String("/change/C123"),
			Status: r53types.ChangeStatusPending,
		},
	}, nil
}

func (f *fakeRoute53) GetChange(ctx context.Context, in *route53.GetChangeInput, _ ...func(*route53.Options)) (*route53.GetChangeOutput, error) {
	i := f.getChanges
	f.getChanges++
	if i < len(f.statusErrs) && f.statusErrs[i] != nil {
		return nil, f.statusErrs[i]
	}
	status := r53types.ChangeStatusPending
	if i < len(f.statuses) {
		status = f.statuses[i]
	}
	return &route53.GetChangeOutput{
		ChangeInfo: &r53types.ChangeInfo{Id: in.Id, Status: status},
	}, nil
}

func zone(id, name string) r53types.HostedZone {
	return r53types.HostedZone{Id: aws.String(id), Name: aws.String(name)}
}

func apiError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}
