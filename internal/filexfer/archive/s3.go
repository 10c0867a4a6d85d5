package archive

import (
	"context"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Provider archives transferred files to an S3-compatible bucket.
type S3Provider struct {
	Bucket string
	client *s3.Client
}

// NewS3Provider loads AWS credentials/region from the standard chain
// (env vars, shared config, IAM role) for the given region override.
func NewS3Provider(ctx context.Context, bucket, region string) (*S3Provider, error) {
	if bucket == "" {
		return nil, fmt.Errorf("archive: s3 bucket is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}
	return &S3Provider{Bucket: bucket, client: s3.NewFromConfig(cfg)}, nil
}

func (p *S3Provider) Upload(ctx context.Context, localPath, remoteKey string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("archive: open %s: %w", localPath, err)
	}
	defer f.Close()

	uploader := manager.NewUploader(p.client)
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: &p.Bucket,
		Key:    &remoteKey,
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("archive: s3 upload %s: %w", remoteKey, err)
	}
	return nil
}

func (p *S3Provider) Download(ctx context.Context, remoteKey, localPath string) error {
	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("archive: create %s: %w", localPath, err)
	}
	defer f.Close()

	downloader := manager.NewDownloader(p.client)
	_, err = downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: &p.Bucket,
		Key:    &remoteKey,
	})
	if err != nil {
		return fmt.Errorf("archive: s3 download %s: %w", remoteKey, err)
	}
	return nil
}

func (p *S3Provider) List(ctx context.Context, prefix string) ([]string, error) {
	out, err := p.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: &p.Bucket,
		Prefix: &prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("archive: s3 list %s: %w", prefix, err)
	}
	keys := make([]string, 0, len(out.Contents))
	for _, obj := range out.Contents {
		if obj.Key != nil {
			keys = append(keys, *obj.Key)
		}
	}
	return keys, nil
}

func (p *S3Provider) Delete(ctx context.Context, remoteKey string) error {
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &p.Bucket,
		Key:    &remoteKey,
	})
	if err != nil {
		return fmt.Errorf("archive: s3 delete %s: %w", remoteKey, err)
	}
	return nil
}
