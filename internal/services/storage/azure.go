package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureStore implements BlobStore on Azure Blob Storage.
type AzureStore struct {
	client *azblob.Client
}

func NewAzureStore(connectionString string) (*AzureStore, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure blob client: %w", err)
	}
	return &AzureStore{client: client}, nil
}

func (s *AzureStore) Open(ctx context.Context, ref BlobRef) (io.ReadCloser, error) {
	resp, err := s.client.DownloadStream(ctx, ref.Container, ref.Key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("failed to download %s from azure: %w", ref, err)
	}
	return resp.Body, nil
}

func (s *AzureStore) EnsureContainer(ctx context.Context, name string) error {
	_, err := s.client.CreateContainer(ctx, name, nil)
	return containerError(name, err)
}

func containerError(name string, err error) error {
	switch {
	case err == nil, bloberror.HasCode(err, bloberror.ContainerAlreadyExists):
		return nil
	case bloberror.HasCode(err, bloberror.InvalidResourceName):
		return fmt.Errorf("%w: azure rejected %q: %v", ErrInvalidContainer, name, err)
	default:
		return fmt.Errorf("failed to create azure container %q: %w", name, err)
	}
}

func (s *AzureStore) Upload(ctx context.Context, ref BlobRef, data []byte, contentType string) error {
	_, err := s.client.UploadBuffer(ctx, ref.Container, ref.Key, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to azure: %w", ref, err)
	}
	return nil
}

func (s *AzureStore) Ping(ctx context.Context) error {
	_, err := s.client.ServiceClient().GetProperties(ctx, nil)
	return err
}
