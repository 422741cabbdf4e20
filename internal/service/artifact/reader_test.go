package artifact

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yu-iskw/lightdash/internal/domain"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		uri  string
		want Location
	}{
		{"target/manifest.json", Location{Scheme: SchemeFile, Key: "target/manifest.json"}},
		{"file:///tmp/manifest.json", Location{Scheme: SchemeFile, Key: "/tmp/manifest.json"}},
		{"s3://artifacts/dbt/manifest.json", Location{Scheme: SchemeS3, Bucket: "artifacts", Key: "dbt/manifest.json"}},
		{"gs://artifacts/manifest.json", Location{Scheme: SchemeGCS, Bucket: "artifacts", Key: "manifest.json"}},
		{"az://dbt/prod/catalog.json", Location{Scheme: SchemeAzure, Bucket: "dbt", Key: "prod/catalog.json"}},
		{"https://acct.blob.core.windows.net/dbt/prod/catalog.json", Location{Scheme: SchemeAzure, Bucket: "dbt", Key: "prod/catalog.json"}},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := ParseLocation(tt.uri)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "ftp://host/file", "s3://bucket-only", "s3:///key", "https://example.com/a/b"} {
		_, err := ParseLocation(bad)
		assert.Error(t, err, bad)
	}
}

func TestReader_LocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"nodes":{}}`), 0o600))

	r := NewReader(Options{})
	b, err := r.Read(context.Background(), path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes":{}}`, string(b))

	b, err = r.Read(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes":{}}`, string(b))

	_, err = r.Read(context.Background(), filepath.Join(dir, "missing.json"))
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestReader_MaxBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.json")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 11)), 0o600))

	_, err := NewReader(Options{MaxBytes: 10}).Read(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds 10 bytes")
}

type fakeStore struct {
	objects map[string]string
	calls   int
}

func (f *fakeStore) get(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	f.calls++
	body, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, notFound(bucket + "/" + key)
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func TestReader_ObjectStoreIsCachedPerScheme(t *testing.T) {
	store := &fakeStore{objects: map[string]string{"artifacts/manifest.json": "{}"}}
	built := 0
	r := NewReader(Options{})
	r.newStore = func(_ context.Context, scheme string, _ Options) (objectStore, error) {
		built++
		assert.Equal(t, "s3", scheme)
		return store, nil
	}

	for range 3 {
		b, err := r.Read(context.Background(), "s3://artifacts/manifest.json")
		require.NoError(t, err)
		assert.Equal(t, "{}", string(b))
	}
	assert.Equal(t, 1, built)
	assert.Equal(t, 3, store.calls)

	_, err := r.Read(context.Background(), "s3://artifacts/catalog.json")
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestReader_StoreConstructionError(t *testing.T) {
	r := NewReader(Options{})
	boom := errors.New("no credentials")
	r.newStore = func(context.Context, string, Options) (objectStore, error) { return nil, boom }

	_, err := r.Read(context.Background(), "gs://bucket/manifest.json")
	require.ErrorIs(t, err, boom)
}

func TestNewObjectStore_AzureRequiresAccount(t *testing.T) {
	_, err := newObjectStore(context.Background(), "az", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account name")
}
