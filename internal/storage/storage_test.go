package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tiketi/apiserver/config"
)

type mapBackend struct {
	objects map[string][]byte
	types   map[string]string
}

func (m *mapBackend) EnsureBucket(context.Context) error { return nil }

func (m *mapBackend) Put(_ context.Context, obj Object) error {
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return err
	}
	m.objects[obj.Key] = data
	m.types[obj.Key] = obj.ContentType
	return nil
}

func (m *mapBackend) Get(_ context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, ObjectInfo{}, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), ObjectInfo{Key: key, Size: int64(len(data)), ContentType: m.types[key]}, nil
}

func (m *mapBackend) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *mapBackend) Bucket() string { return "posters" }

func TestStorageRoundTrip(t *testing.T) {
	s := NewStorage(&mapBackend{objects: map[string][]byte{}, types: map[string]string{}})
	ctx := context.Background()

	err := s.Put(ctx, Object{Key: "posters/1/a.png", Body: bytes.NewReader([]byte("png")), Size: 3, ContentType: "image/png"})
	require.NoError(t, err)

	rc, info, err := s.Get(ctx, "posters/1/a.png")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
	assert.Equal(t, "image/png", info.ContentType)

	require.NoError(t, s.Delete(ctx, "posters/1/a.png"))
	_, _, err = s.Get(ctx, "posters/1/a.png")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestStoragePutRequiresKey(t *testing.T) {
	s := NewStorage(&mapBackend{objects: map[string][]byte{}, types: map[string]string{}})

	err := s.Put(context.Background(), Object{Body: bytes.NewReader(nil)})
	assert.Error(t, err)
}

func TestNewFromConfigDisabled(t *testing.T) {
	s, err := NewFromConfig(context.Background(), config.StorageConfig{})
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestNewMinioClientValidatesConfig(t *testing.T) {
	_, err := NewMinioClient(config.MinioConfig{Endpoint: "localhost:9000", Bucket: "posters"})
	assert.ErrorContains(t, err, "access key")

	_, err = NewMinioClient(config.MinioConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	assert.ErrorContains(t, err, "bucket")
}
