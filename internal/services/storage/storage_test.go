package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBlobURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want BlobRef
	}{
		{
			name: "azure",
			url:  "https://acct.blob.core.windows.net/uploads/AB_photo.jpg",
			want: BlobRef{Container: "uploads", Key: "AB_photo.jpg"},
		},
		{
			name: "azure nested key",
			url:  "https://acct.blob.core.windows.net/uploads/2024/AB_photo.jpg",
			want: BlobRef{Container: "uploads", Key: "2024/AB_photo.jpg"},
		},
		{
			name: "escaped key",
			url:  "https://acct.blob.core.windows.net/uploads/AB_my%20photo.png",
			want: BlobRef{Container: "uploads", Key: "AB_my photo.png"},
		},
		{
			name: "azurite",
			url:  "http://127.0.0.1:10000/devstoreaccount1/uploads/AB_photo.jpg",
			want: BlobRef{Container: "uploads", Key: "AB_photo.jpg"},
		},
		{
			name: "s3 scheme",
			url:  "s3://media-bucket/AB_photo.gif",
			want: BlobRef{Container: "media-bucket", Key: "AB_photo.gif"},
		},
		{
			name: "s3 virtual hosted",
			url:  "https://media-bucket.s3.eu-west-1.amazonaws.com/AB_photo.png",
			want: BlobRef{Container: "media-bucket", Key: "AB_photo.png"},
		},
		{
			name: "s3 path style",
			url:  "https://s3.amazonaws.com/media-bucket/AB_photo.png",
			want: BlobRef{Container: "media-bucket", Key: "AB_photo.png"},
		},
		{
			name: "supabase public",
			url:  "https://xyz.supabase.co/storage/v1/object/public/images/AB_photo.jpg",
			want: BlobRef{Container: "images", Key: "AB_photo.jpg"},
		},
		{
			name: "supabase private",
			url:  "https://xyz.supabase.co/storage/v1/object/images/AB_photo.jpg",
			want: BlobRef{Container: "images", Key: "AB_photo.jpg"},
		},
		{
			name: "query string ignored",
			url:  "https://acct.blob.core.windows.net/uploads/AB_photo.jpg?sv=2020&sig=abc",
			want: BlobRef{Container: "uploads", Key: "AB_photo.jpg"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBlobURL(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseBlobURL_Invalid(t *testing.T) {
	for _, raw := range []string{
		"",
		"ftp://host/container/key",
		"https://acct.blob.core.windows.net/",
		"https://acct.blob.core.windows.net/uploads",
		"s3://bucket-only",
		"://bad",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseBlobURL(raw)
			assert.ErrorIs(t, err, ErrInvalidURL)
		})
	}
}

func TestBlobRef_Ext(t *testing.T) {
	assert.Equal(t, ".jpg", BlobRef{Container: "c", Key: "AB_photo.jpg"}.Ext())
	assert.Equal(t, ".PNG", BlobRef{Container: "c", Key: "dir.v2/AB_photo.PNG"}.Ext())
	assert.Equal(t, "", BlobRef{Container: "c", Key: "README"}.Ext())
	assert.Equal(t, "c/k", BlobRef{Container: "c", Key: "k"}.String())
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	ref := BlobRef{Container: "uploads", Key: "AB_photo.jpg"}

	_, err := store.Open(ctx, ref)
	require.ErrorIs(t, err, ErrNotFound)

	store.Put(ref, []byte("source"), "image/jpeg")

	rc, err := store.Open(ctx, ref)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, []byte("source"), data)

	dest := BlobRef{Container: "AB", Key: "photo.jpg"}
	err = store.Upload(ctx, dest, []byte("thumb"), "image/jpeg")
	require.Error(t, err, "upload into a missing container must fail")

	require.NoError(t, store.EnsureContainer(ctx, "AB"))
	require.NoError(t, store.EnsureContainer(ctx, "AB"))
	assert.True(t, store.HasContainer("AB"))

	require.NoError(t, store.Upload(ctx, dest, []byte("thumb-1"), "image/jpeg"))
	require.NoError(t, store.Upload(ctx, dest, []byte("thumb-2"), "image/png"))

	obj, ok := store.Get(dest)
	require.True(t, ok)
	assert.Equal(t, []byte("thumb-2"), obj.Data)
	assert.Equal(t, "image/png", obj.ContentType)
}

type pingFailStore struct{ *MemoryStore }

func (pingFailStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthCheck(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, map[string]string{"memory": "healthy"}, HealthCheck(ctx, "memory", NewMemoryStore()))
	assert.Equal(t, map[string]string{"azure": "not configured"}, HealthCheck(ctx, "azure", nil))
	assert.Equal(t,
		map[string]string{"s3": "unhealthy: connection refused"},
		HealthCheck(ctx, "s3", pingFailStore{NewMemoryStore()}),
	)
}

func azureError(code string, status int) *azcore.ResponseError {
	return &azcore.ResponseError{
		ErrorCode:  code,
		StatusCode: status,
		RawResponse: &http.Response{
			StatusCode: status,
			Status:     http.StatusText(status),
			Header:     http.Header{},
			Request:    httptest.NewRequest(http.MethodPut, "https://acct.blob.core.windows.net/ab?restype=container", nil),
		},
	}
}

func TestContainerErrors(t *testing.T) {
	invalid := azureError("InvalidResourceName", http.StatusBadRequest)
	exists := azureError("ContainerAlreadyExists", http.StatusConflict)
	busy := azureError("ServerBusy", http.StatusServiceUnavailable)

	assert.NoError(t, containerError("ab", nil))
	assert.NoError(t, containerError("ab", exists))
	assert.ErrorIs(t, containerError("AB", invalid), ErrInvalidContainer)

	err := containerError("ab", busy)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidContainer)

	assert.True(t, isInvalidBucketName(&smithy.GenericAPIError{Code: "InvalidBucketName"}))
	assert.False(t, isInvalidBucketName(&smithy.GenericAPIError{Code: "SlowDown"}))
	assert.False(t, isInvalidBucketName(errors.New("dial tcp: timeout")))
}
