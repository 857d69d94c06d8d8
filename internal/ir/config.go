package ir

import (
	"fmt"
	"strings"
)

// BucketPrefix is prepended to the host zone name to form the bucket name.
const BucketPrefix = "www"

// Website describes the site being deployed. It is built once from operator
// input and not modified afterwards.
type Website struct {
	HostZoneName  string
	BucketName    string
	IndexDocument string
	ErrorDocument string
	ContentRoot   string
}

// NewWebsite builds a Website for the given zone. Trailing dots on the zone
// name are dropped; the bucket name is always "www." + zone.
func NewWebsite(zone, contentRoot, index, errorDoc string) (*Website, error) {
	zone = strings.TrimSuffix(strings.TrimSpace(zone), ".")
	if zone == "" {
		return nil, fmt.Errorf("host zone name is required")
	}
	return &Website{
		HostZoneName:  zone,
		BucketName:    BucketName(zone),
		IndexDocument: index,
		ErrorDocument: errorDoc,
		ContentRoot:   contentRoot,
	}, nil
}

// BucketName derives the bucket (and record) name for a host zone.
func BucketName(zone string) string {
	return BucketPrefix + "." + strings.TrimSuffix(zone, ".")
}
