package archive

import (
	"context"
	"fmt"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
)

// AzureProvider archives transferred files to an Azure Blob Storage container.
type AzureProvider struct {
	containerName string
	client        *azblob.Client
}

// NewAzureProvider connects using an account URL with an embedded SAS token
// or a storage account connection string, matching whichever form accountURL is.
func NewAzureProvider(accountURL, containerName string) (*AzureProvider, error) {
	if containerName == "" {
		return nil, fmt.Errorf("archive: azure container name is required")
	}
	client, err := azblob.NewClientWithNoCredential(accountURL, nil)
	if err != nil {
		return nil, fmt.Errorf("archive: azure client: %w", err)
	}
	return &AzureProvider{containerName: containerName, client: client}, nil
}

func (p *AzureProvider) Upload(ctx context.Context, localPath, remoteKey string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("archive: open %s: %w", localPath, err)
	}
	defer f.Close()

	_, err = p.client.UploadFile(ctx, p.containerName, remoteKey, f, nil)
	if err != nil {
		return fmt.Errorf("archive: azure upload %s: %w", remoteKey, err)
	}
	return nil
}

func (p *AzureProvider) Download(ctx context.Context, remoteKey, localPath string) error {
	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("archive: create %s: %w", localPath, err)
	}
	defer f.Close()

	_, err = p.client.DownloadFile(ctx, p.containerName, remoteKey, f, nil)
	if err != nil {
		return fmt.Errorf("archive: azure download %s: %w", remoteKey, err)
	}
	return nil
}

func (p *AzureProvider) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	pager := p.client.NewListBlobsFlatPager(p.containerName, &container.ListBlobsFlatOptions{
		Prefix: &prefix,
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("archive: azure list %s: %w", prefix, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				keys = append(keys, *item.Name)
			}
		}
	}
	return keys, nil
}

func (p *AzureProvider) Delete(ctx context.Context, remoteKey string) error {
	_, err := p.client.DeleteBlob(ctx, p.containerName, remoteKey, nil)
	if err != nil {
		return fmt.Errorf("archive: azure delete %s: %w", remoteKey, err)
	}
	return nil
}
