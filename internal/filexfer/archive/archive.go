// Package archive provides optional cold-storage backends for completed
// file-transfer jobs: a peer can ask that a downloaded file also be archived
// to cloud object storage once the transfer finishes.
package archive

import "context"

// Provider uploads, downloads, lists and deletes objects in a remote bucket.
type Provider interface {
	Upload(ctx context.Context, localPath, remoteKey string) error
	Download(ctx context.Context, remoteKey, localPath string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, remoteKey string) error
}
