package archive

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Backblaze/blazer/b2"
)

// B2Provider archives transferred files to a Backblaze B2 bucket.
type B2Provider struct {
	bucket *b2.Bucket
}

// NewB2Provider authenticates with an account id/application key pair and
// resolves the named bucket.
func NewB2Provider(ctx context.Context, keyID, appKey, bucketName string) (*B2Provider, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("archive: b2 bucket name is required")
	}
	client, err := b2.NewClient(ctx, keyID, appKey)
	if err != nil {
		return nil, fmt.Errorf("archive: b2 client: %w", err)
	}
	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("archive: b2 bucket %s: %w", bucketName, err)
	}
	return &B2Provider{bucket: bucket}, nil
}

func (p *B2Provider) Upload(ctx context.Context, localPath, remoteKey string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("archive: open %s: %w", localPath, err)
	}
	defer f.Close()

	w := p.bucket.Object(remoteKey).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return fmt.Errorf("archive: b2 upload %s: %w", remoteKey, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("archive: b2 upload %s: %w", remoteKey, err)
	}
	return nil
}

func (p *B2Provider) Download(ctx context.Context, remoteKey, localPath string) error {
	r := p.bucket.Object(remoteKey).NewReader(ctx)
	defer r.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("archive: create %s: %w", localPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("archive: b2 download %s: %w", remoteKey, err)
	}
	return nil
}

func (p *B2Provider) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := p.bucket.List(ctx, b2.ListPrefix(prefix))
	for iter.Next() {
		keys = append(keys, iter.Object().Name())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("archive: b2 list %s: %w", prefix, err)
	}
	return keys, nil
}

func (p *B2Provider) Delete(ctx context.Context, remoteKey string) error {
	if err := p.bucket.Object(remoteKey).Delete(ctx); err != nil {
		return fmt.Errorf("archive: b2 delete %s: %w", remoteKey, err)
	}
	return nil
}
