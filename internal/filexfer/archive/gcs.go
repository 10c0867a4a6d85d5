package archive

import (
	"context"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSProvider archives transferred files to a Google Cloud Storage bucket.
type GCSProvider struct {
	Bucket string
	client *storage.Client
}

// NewGCSProvider uses application-default credentials.
func NewGCSProvider(ctx context.Context, bucket string) (*GCSProvider, error) {
	if bucket == "" {
		return nil, fmt.Errorf("archive: gcs bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("archive: gcs client: %w", err)
	}
	return &GCSProvider{Bucket: bucket, client: client}, nil
}

func (p *GCSProvider) Upload(ctx context.Context, localPath, remoteKey string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("archive: open %s: %w", localPath, err)
	}
	defer f.Close()

	w := p.client.Bucket(p.Bucket).Object(remoteKey).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return fmt.Errorf("archive: gcs upload %s: %w", remoteKey, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("archive: gcs upload %s: %w", remoteKey, err)
	}
	return nil
}

func (p *GCSProvider) Download(ctx context.Context, remoteKey, localPath string) error {
	r, err := p.client.Bucket(p.Bucket).Object(remoteKey).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("archive: gcs download %s: %w", remoteKey, err)
	}
	defer r.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("archive: create %s: %w", localPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("archive: gcs download %s: %w", remoteKey, err)
	}
	return nil
}

func (p *GCSProvider) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	it := p.client.Bucket(p.Bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		obj, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("archive: gcs list %s: %w", prefix, err)
		}
		keys = append(keys, obj.Name)
	}
	return keys, nil
}

func (p *GCSProvider) Delete(ctx context.Context, remoteKey string) error {
	if err := p.client.Bucket(p.Bucket).Object(remoteKey).Delete(ctx); err != nil {
		return fmt.Errorf("archive: gcs delete %s: %w", remoteKey, err)
	}
	return nil
}
