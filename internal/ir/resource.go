package ir

// Bucket is the result of an existence check / create on the storage service.
type Bucket struct {
	Name    string
	Exists  bool
	Created bool
}

// HostedZone is a DNS hosted zone. Name is always in normalized form
// (lower case, single trailing dot).
type HostedZone struct {
	Name    string
	ID      string
	Created bool
}

// RecordAction is the change action submitted for the alias record.
type RecordAction string

const (
	RecordActionCreate RecordAction = "CREATE"
	RecordActionUpsert RecordAction = "UPSERT"
)

// AliasRecordChange is the single A-alias change submitted per deployment.
type AliasRecordChange struct {
	Name                 string
	AliasDNSName         string
	AliasZoneID          string
	EvaluateTargetHealth bool
	Action               RecordAction
}

// WebsiteResult captures the outcome of each bucket configuration call.
// A nil field means that call succeeded.
type WebsiteResult struct {
	WebsiteErr     error
	AccessBlockErr error
	PolicyErr      error
}

// Degraded reports whether any configuration call failed.
func (r WebsiteResult) Degraded() bool {
	return r.WebsiteErr != nil || r.AccessBlockErr != nil || r.PolicyErr != nil
}

// Errors returns the non-nil errors in call order.
func (r WebsiteResult) Errors() []error {
	var errs []error
	for _, err := range []error{r.WebsiteErr, r.AccessBlockErr, r.PolicyErr} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
