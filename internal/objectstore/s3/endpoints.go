// Package s3 stores pipeline images in S3-compatible object storage
// (AWS S3, Cloudflare R2 or MinIO) through aws-sdk-go-v2.
package s3

import (
	"fmt"
	"strings"
)

// Providers.
const (
	ProviderAWS   = "aws"
	ProviderR2    = "r2"
	ProviderMinIO = "minio"
)

// Standard AWS S3 regional endpoints.
var awsEndpoints = map[string]string{
	"us-east-1":      "s3.amazonaws.com",
	"us-east-2":      "s3.us-east-2.amazonaws.com",
	"us-west-1":      "s3.us-west-1.amazonaws.com",
	"us-west-2":      "s3.us-west-2.amazonaws.com",
	"eu-west-1":      "s3.eu-west-1.amazonaws.com",
	"eu-central-1":   "s3.eu-central-1.amazonaws.com",
	"ap-northeast-1": "s3.ap-northeast-1.amazonaws.com",
	"ap-northeast-2": "s3.ap-northeast-2.amazonaws.com",
	"ap-northeast-3": "s3.ap-northeast-3.amazonaws.com",
	"ap-southeast-1": "s3.ap-southeast-1.amazonaws.com",
	"ap-southeast-2": "s3.ap-southeast-2.amazonaws.com",
	"ap-south-1":     "s3.ap-south-1.amazonaws.com",
}

// Endpoint is a resolved connection target.
type Endpoint struct {
	// URL is empty for AWS, which lets the SDK resolve the endpoint.
	URL       string
	Region    string
	PathStyle bool
	// PublicURL is the base of unauthenticated object URLs.
	PublicURL string
}

// Options selects and configures a provider.
type Options struct {
	Provider  string
	Endpoint  string
	Region    string
	AccountID string
	UseSSL    bool
	AccessKey string
	SecretKey string
	// BucketPrefix is prepended to application bucket names.
	BucketPrefix string
	// PublicBaseURL overrides the derived public URL base, e.g. a CDN.
	PublicBaseURL string
}

// Resolve derives the endpoint for opts.
func Resolve(opts Options) (Endpoint, error) {
	switch opts.Provider {
	case ProviderAWS, "":
		region := opts.Region
		if region == "" {
			region = "us-east-1"
		}
		host, ok := awsEndpoints[region]
		if !ok {
			return Endpoint{}, fmt.Errorf("unknown AWS region: %s", region)
		}
		return Endpoint{Region: region, PublicURL: "https://" + host}, nil

	case ProviderR2:
		if opts.AccountID == "" {
			return Endpoint{}, fmt.Errorf("r2 account id is required")
		}
		if !IsValidR2AccountID(opts.AccountID) {
			return Endpoint{}, fmt.Errorf("invalid r2 account id: %s", opts.AccountID)
		}
		u := "https://" + R2EndpointForAccount(opts.AccountID)
		// R2 has no regions; the SDK still requires one.
		return Endpoint{URL: u, Region: "auto", PathStyle: true, PublicURL: u}, nil

	case ProviderMinIO:
		u, err := ParseMinIOEndpoint(opts.Endpoint, opts.UseSSL)
		if err != nil {
			return Endpoint{}, err
		}
		return Endpoint{URL: u, Region: "us-east-1", PathStyle: true, PublicURL: u}, nil

	default:
		return Endpoint{}, fmt.Errorf("unknown s3 provider: %s", opts.Provider)
	}
}

// IsSupportedAWSRegion checks if a region is supported.
func IsSupportedAWSRegion(region string) bool {
	_, ok := awsEndpoints[region]
	return ok
}

// R2EndpointForAccount returns the R2 endpoint host for a given account ID.
func R2EndpointForAccount(accountID string) string {
	return fmt.Sprintf("%s.r2.cloudflarestorage.com", accountID)
}

// IsValidR2AccountID reports whether accountID is a 32-character hex string.
func IsValidR2AccountID(accountID string) bool {
	if len(accountID) != 32 {
		return false
	}
	for _, c := range accountID {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}

// ParseMinIOEndpoint adds a scheme to endpoint when missing and trims the
// trailing slash.
func ParseMinIOEndpoint(endpoint string, useSSL bool) (string, error) {
	if endpoint == "" {
		return "", fmt.Errorf("endpoint cannot be empty")
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if useSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	return strings.TrimSuffix(endpoint, "/"), nil
}
