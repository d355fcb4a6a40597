package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMinioClientValidation(t *testing.T) {
	_, err := NewMinioClient(MinioConfig{})
	assert.Error(t, err)

	_, err = NewMinioClient(MinioConfig{Endpoint: "localhost:9000", AccessKey: "a"})
	assert.Error(t, err)

	_, err = NewMinioClient(MinioConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	assert.Error(t, err)

	c, err := NewMinioClient(MinioConfig{Endpoint: "https://s3.example.com", AccessKey: "a", SecretKey: "b", Bucket: "exports"})
	require.NoError(t, err)
	assert.Equal(t, "exports", c.bucket)
	assert.Equal(t, "s3.example.com", c.client.EndpointURL().Host)
	assert.Equal(t, "https", c.client.EndpointURL().Scheme)
}

func TestMinioPresignIsLocal(t *testing.T) {
	c, err := NewMinioClient(MinioConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "exports"})
	require.NoError(t, err)

	link, err := c.PresignedURL(context.Background(), "operations/run.csv", time.Hour)
	require.NoError(t, err)
	assert.Contains(t, link, "http://localhost:9000/exports/operations/run.csv")
	assert.Contains(t, link, "X-Amz-Expires=3600")
}

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage("http://local/")

	_, err := m.PresignedURL(ctx, "missing", time.Minute)
	assert.Error(t, err)

	require.NoError(t, m.UploadObject(ctx, "operations/b.csv", []byte("x"), "text/csv"))
	require.NoError(t, m.UploadObject(ctx, "operations/a.csv", []byte("yy"), "text/csv"))
	require.NoError(t, m.UploadObject(ctx, "other/c.csv", nil, "text/csv"))

	objects, err := m.ListObjects(ctx, "operations/")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "operations/a.csv", objects[0].Key)
	assert.Equal(t, int64(2), objects[0].Size)

	link, err := m.PresignedURL(ctx, "operations/a.csv", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "http://local/operations/a.csv?expires=60", link)
}
