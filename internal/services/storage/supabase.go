package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	storage_go "github.com/supabase-community/storage-go"
)

// SupabaseStore implements BlobStore on Supabase Storage. Buckets play the
// role of containers.
type SupabaseStore struct {
	sbClient *storage_go.Client
}

func NewSupabaseStore(url, key string) *SupabaseStore {
	return &SupabaseStore{
		sbClient: storage_go.NewClient(url+"/storage/v1", key, nil),
	}
}

func (s *SupabaseStore) Open(_ context.Context, ref BlobRef) (io.ReadCloser, error) {
	data, err := s.sbClient.DownloadFile(ref.Container, ref.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s from supabase: %w", ref, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *SupabaseStore) EnsureContainer(_ context.Context, name string) error {
	if _, err := s.sbClient.GetBucket(name); err == nil {
		return nil
	}

	if _, err := s.sbClient.CreateBucket(name, storage_go.BucketOptions{Public: false}); err != nil {
		// Another invocation may have created it in between.
		if _, getErr := s.sbClient.GetBucket(name); getErr == nil {
			return nil
		}
		return fmt.Errorf("failed to create supabase bucket %q: %w", name, err)
	}
	return nil
}

func (s *SupabaseStore) Upload(_ context.Context, ref BlobRef, data []byte, contentType string) error {
	upsert := true
	_, err := s.sbClient.UploadFile(ref.Container, ref.Key, bytes.NewReader(data), storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("failed to upload to supabase: %w", err)
	}
	return nil
}

func (s *SupabaseStore) Ping(context.Context) error {
	_, err := s.sbClient.ListBuckets()
	return err
}
