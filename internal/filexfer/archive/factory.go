package archive

import (
	"context"
	"fmt"
)

// Settings selects and configures one archive backend. Left blank (Kind ==
// "") means archival is disabled for the session.
type Settings struct {
	Kind string // "s3", "azure", "gcs", "b2"

	S3Bucket string
	S3Region string

	AzureAccountURL string
	AzureContainer  string

	GCSBucket string

	B2KeyID      string
	B2AppKey     string
	B2BucketName string
}

// New constructs the provider named by Settings.Kind.
func New(ctx context.Context, s Settings) (Provider, error) {
	switch s.Kind {
	case "":
		return nil, nil
	case "s3":
		return NewS3Provider(ctx, s.S3Bucket, s.S3Region)
	case "azure":
		return NewAzureProvider(s.AzureAccountURL, s.AzureContainer)
	case "gcs":
		return NewGCSProvider(ctx, s.GCSBucket)
	case "b2":
		return NewB2Provider(ctx, s.B2KeyID, s.B2AppKey, s.B2BucketName)
	default:
		return nil, fmt.Errorf("archive: unknown backend %q", s.Kind)
	}
}
