package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"google.golang.org/api/option"

	"github.com/yu-iskw/lightdash/internal/domain"
)

func notFound(uri string) error {
	return domain.ErrNotFound("artifact %q not found", uri)
}

func newObjectStore(ctx context.Context, scheme string, opts Options) (objectStore, error) {
	switch Scheme(scheme) {
	case SchemeS3:
		return newS3Store(opts), nil
	case SchemeGCS:
		return newGCSStore(ctx, opts)
	case SchemeAzure:
		return newAzureStore(opts)
	}
	return nil, fmt.Errorf("unsupported artifact scheme %q", scheme)
}

// === S3 ===

type s3Store struct {
	client *s3.Client
}

func newS3Store(opts Options) *s3Store {
	o := s3.Options{
		Region:       opts.S3Region,
		UsePathStyle: opts.S3PathStyle,
	}
	if o.Region == "" {
		o.Region = "us-east-1"
	}
	if opts.S3KeyID != "" {
		o.Credentials = credentials.NewStaticCredentialsProvider(opts.S3KeyID, opts.S3Secret, "")
	} else {
		o.Credentials = aws.AnonymousCredentials{}
	}
	if opts.S3Endpoint != "" {
		o.BaseEndpoint = aws.String(opts.S3Endpoint)
	}
	return &s3Store{client: s3.New(o)}
}

func (s *s3Store) get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, notFound(fmt.Sprintf("s3://%s/%s", bucket, key))
		}
		return nil, fmt.Errorf("s3 GetObject: %w", err)
	}
	return out.Body, nil
}

// === GCS ===

type gcsStore struct {
	client *storage.Client
}

func newGCSStore(ctx context.Context, opts Options) (*gcsStore, error) {
	var clientOpts []option.ClientOption
	if opts.GCSCredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithAuthCredentialsFile(option.ServiceAccount, opts.GCSCredentialsFile))
	}
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &gcsStore{client: client}, nil
}

func (s *gcsStore) get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, notFound(fmt.Sprintf("gs://%s/%s", bucket, key))
		}
		return nil, fmt.Errorf("gcs NewReader: %w", err)
	}
	return r, nil
}

// === Azure Blob ===

type azureStore struct {
	client *azblob.Client
}

func newAzureStore(opts Options) (*azureStore, error) {
	if opts.AzureAccountName == "" {
		return nil, fmt.Errorf("azure account name is required for az:// artifacts")
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", opts.AzureAccountName)

	var (
		client *azblob.Client
		err    error
	)
	if opts.AzureAccountKey != "" {
		cred, credErr := azblob.NewSharedKeyCredential(opts.AzureAccountName, opts.AzureAccountKey)
		if credErr != nil {
			return nil, fmt.Errorf("create shared key credential: %w", credErr)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	} else {
		client, err = azblob.NewClientWithNoCredential(serviceURL, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}
	return &azureStore{client: client}, nil
}

func (s *azureStore) get(ctx context.Context, container, key string) (io.ReadCloser, error) {
	resp, err := s.client.DownloadStream(ctx, container, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, notFound(fmt.Sprintf("az://%s/%s", container, key))
		}
		return nil, fmt.Errorf("azure DownloadStream: %w", err)
	}
	return resp.Body, nil
}
