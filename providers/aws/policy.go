package aws

import (
	"encoding/json"
	"fmt"
)

const policyVersion = "2012-10-17"

// Policy is an S3 bucket policy document.
type Policy struct {
	Version   string            `json:"Version"`
	Statement []PolicyStatement `json:"Statement"`
}

// PolicyStatement is a single statement of a bucket policy.
type PolicyStatement struct {
	Sid       string `json:"Sid,omitempty"`
	Effect    string `json:"Effect"`
	Principal string `json:"Principal"`
	Action    string `json:"Action"`
	Resource  string `json:"Resource"`
}

// BucketObjectsARN is the ARN matching every object in bucket.
func BucketObjectsARN(bucket string) string {
	return fmt.Sprintf("arn:aws:s3:::%s/*", bucket)
}

// BuildPublicReadPolicy returns a policy letting anyone read any object in bucket.
func BuildPublicReadPolicy(bucket string) Policy {
	return Policy{
		Version: policyVersion,
		Statement: []PolicyStatement{
			{
				Sid:       "PublicReadGetObject",
				Effect:    "Allow",
				Principal: "*",
				Action:    "s3:GetObject",
				Resource:  BucketObjectsARN(bucket),
			},
		},
	}
}

// PublicReadPolicy returns the public-read policy for bucket as JSON.
func PublicReadPolicy(bucket string) (string, error) {
	data, err := json.Marshal(BuildPublicReadPolicy(bucket))
	if err != nil {
		return "", fmt.Errorf("failed to marshal bucket policy: %w", err)
	}
	return string(data), nil
}
