// Package artifact reads dbt artifacts (manifest.json, catalog.json) from local
// disk or object storage.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"sync"
)

// Options configures object storage access. Zero values fall back to each SDK's
// default credential chain.
type Options struct {
	S3Region   string
	S3Endpoint string
	S3KeyID    string
	S3Secret   string
	// S3PathStyle forces path-style addressing, needed by most S3-compatible stores.
	S3PathStyle bool

	GCSCredentialsFile string

	AzureAccountName string
	AzureAccountKey  string

	// MaxBytes caps the size of a single artifact. Zero means 256 MiB.
	MaxBytes int64
}

const defaultMaxBytes = 256 << 20

// objectStore fetches one object from a bucket-like store.
type objectStore interface {
	get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// Reader implements domain.ArtifactReader. Object storage clients are created
// on first use so local-only deployments never touch cloud credentials.
type Reader struct {
	opts Options

	mu     sync.Mutex
	stores map[string]objectStore
	// newStore builds the client for a scheme; replaced in tests.
	newStore func(ctx context.Context, scheme string, opts Options) (objectStore, error)
}

// NewReader creates a Reader.
func NewReader(opts Options) *Reader {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxBytes
	}
	return &Reader{opts: opts, stores: map[string]objectStore{}, newStore: newObjectStore}
}

// Read fetches the artifact at uri. Supported forms: plain paths, file://, s3://,
// gs://, az://container/key and https://<account>.blob.core.windows.net/container/key.
func (r *Reader) Read(ctx context.Context, uri string) ([]byte, error) {
	loc, err := ParseLocation(uri)
	if err != nil {
		return nil, err
	}
	if loc.Scheme == SchemeFile {
		return r.readFile(loc.Key)
	}

	store, err := r.store(ctx, loc.Scheme)
	if err != nil {
		return nil, err
	}
	body, err := store.get(ctx, loc.Bucket, loc.Key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", uri, err)
	}
	defer body.Close() //nolint:errcheck
	return r.readAll(uri, body)
}

func (r *Reader) readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(path)
		}
		return nil, fmt.Errorf("open artifact %q: %w", path, err)
	}
	defer f.Close() //nolint:errcheck
	return r.readAll(path, f)
}

func (r *Reader) readAll(uri string, body io.Reader) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(body, r.opts.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", uri, err)
	}
	if int64(len(b)) > r.opts.MaxBytes {
		return nil, fmt.Errorf("artifact %s exceeds %d bytes", uri, r.opts.MaxBytes)
	}
	return b, nil
}

func (r *Reader) store(ctx context.Context, scheme Scheme) (objectStore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[string(scheme)]; ok {
		return s, nil
	}
	s, err := r.newStore(ctx, string(scheme), r.opts)
	if err != nil {
		return nil, err
	}
	r.stores[string(scheme)] = s
	return s, nil
}

// Scheme is the storage backend of an artifact location.
type Scheme string

const (
	SchemeFile  Scheme = "file"
	SchemeS3    Scheme = "s3"
	SchemeGCS   Scheme = "gs"
	SchemeAzure Scheme = "az"
)

// Location is a parsed artifact URI.
type Location struct {
	Scheme Scheme
	Bucket string
	Key    string
}

// ParseLocation parses an artifact URI. Strings without a scheme are local paths.
func ParseLocation(uri string) (Location, error) {
	if strings.TrimSpace(uri) == "" {
		return Location{}, fmt.Errorf("artifact uri is empty")
	}
	if !strings.Contains(uri, "://") {
		return Location{Scheme: SchemeFile, Key: uri}, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, fmt.Errorf("parse artifact uri %q: %w", uri, err)
	}

	var loc Location
	switch u.Scheme {
	case "file":
		return Location{Scheme: SchemeFile, Key: u.Host + u.Path}, nil
	case "s3":
		loc = Location{Scheme: SchemeS3, Bucket: u.Host, Key: strings.TrimPrefix(u.Path, "/")}
	case "gs":
		loc = Location{Scheme: SchemeGCS, Bucket: u.Host, Key: strings.TrimPrefix(u.Path, "/")}
	case "az":
		loc = Location{Scheme: SchemeAzure, Bucket: u.Host, Key: strings.TrimPrefix(u.Path, "/")}
	case "https":
		// https://account.blob.core.windows.net/container/path/to/file
		if !strings.Contains(u.Host, ".blob.core.windows.net") {
			return Location{}, fmt.Errorf("unrecognized artifact host %q in %q", u.Host, uri)
		}
		parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
		loc = Location{Scheme: SchemeAzure, Bucket: parts[0]}
		if len(parts) > 1 {
			loc.Key = parts[1]
		}
	default:
		return Location{}, fmt.Errorf("unsupported artifact scheme %q in %q", u.Scheme, uri)
	}
	if loc.Bucket == "" {
		return Location{}, fmt.Errorf("empty bucket in artifact uri %q", uri)
	}
	if loc.Key == "" {
		return Location{}, fmt.Errorf("empty key in artifact uri %q", uri)
	}
	return loc, nil
}
