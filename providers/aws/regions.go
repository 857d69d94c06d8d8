package aws

import (
	"fmt"
	"sort"
)

// WebsiteEndpoint is the S3 website hosting endpoint of a region and the
// Route 53 hosted zone id used as the alias target for it. The zone id is not
// discoverable through the API.
type WebsiteEndpoint struct {
	Region       string
	Endpoint     string
	HostedZoneID string
}

// RegionTable maps region names to their website endpoint.
type RegionTable map[string]WebsiteEndpoint

// DefaultRegions returns the built-in S3 website endpoint table.
// See https://docs.aws.amazon.com/general/latest/gr/s3.html#s3_website_region_endpoints
func DefaultRegions() RegionTable {
	rows := []WebsiteEndpoint{
		{"us-east-1", "s3-website-us-east-1.amazonaws.com", "Z3AQBSTGFYJSTF"},
		{"us-east-2", "s3-website.us-east-2.amazonaws.com", "Z2O1EMRO9K5GLX"},
		{"us-west-1", "s3-website-us-west-1.amazonaws.com", "Z2F56UZL2M1ACD"},
		{"us-west-2", "s3-website-us-west-2.amazonaws.com", "Z3BJ6K6RIION7M"},
		{"ca-central-1", "s3-website.ca-central-1.amazonaws.com", "Z1QDHH18159H29"},
		{"eu-west-1", "s3-website-eu-west-1.amazonaws.com", "Z1BKCTXD74EZPE"},
		{"eu-west-2", "s3-website.eu-west-2.amazonaws.com", "Z3GKZC51ZF0DB4"},
		{"eu-west-3", "s3-website.eu-west-3.amazonaws.com", "Z3R1K369G5AVDG"},
		{"eu-central-1", "s3-website.eu-central-1.amazonaws.com", "Z21DNDUVLTQW6Q"},
		{"eu-north-1", "s3-website.eu-north-1.amazonaws.com", "Z3BAZG2TWCNX0D"},
		{"ap-south-1", "s3-website.ap-south-1.amazonaws.com", "Z11RGJOFQNVJUP"},
		{"ap-northeast-1", "s3-website-ap-northeast-1.amazonaws.com", "Z2M4EHUR26P7ZW"},
		{"ap-northeast-2", "s3-website.ap-northeast-2.amazonaws.com", "Z3W03O7B5YMIYP"},
		{"ap-southeast-1", "s3-website-ap-southeast-1.amazonaws.com", "Z3O0J2DXBE1FTB"},
		{"ap-southeast-2", "s3-website-ap-southeast-2.amazonaws.com", "Z1WCIGYICN2BYD"},
		{"sa-east-1", "s3-website-sa-east-1.amazonaws.com", "Z7KQH4QJS55SO"},
	}
	t := make(RegionTable, len(rows))
	for _, r := range rows {
		t[r.Region] = r
	}
	return t
}

// Set adds or replaces the row for a region.
func (t RegionTable) Set(region, endpoint, hostedZoneID string) {
	t[region] = WebsiteEndpoint{Region: region, Endpoint: endpoint, HostedZoneID: hostedZoneID}
}

// Lookup returns the endpoint for region.
func (t RegionTable) Lookup(region string) (WebsiteEndpoint, error) {
	e, ok := t[region]
	if !ok {
		return WebsiteEndpoint{}, fmt.Errorf("no S3 website endpoint known for region %q", region)
	}
	return e, nil
}

// Sorted returns the rows ordered by region name.
func (t RegionTable) Sorted() []WebsiteEndpoint {
	out := make([]WebsiteEndpoint, 0, len(t))
	for _, e := range t {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Region < out[j].Region })
	return out
}
