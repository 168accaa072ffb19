// minio.go - Object-store seed backend.
//
// Used when the external server is configured with S3-compatible pod
// storage instead of the plain data directory. The seeded object keys
// mirror the filesystem layout: pods/<pod>/<path>.
package lab

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const digestMetaKey = "Sha256"

func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	// Accept either "minio:9000" or "http://minio:9000" / "https://minio:9000".
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		secure = (u.Scheme == "https")
		return u.Host, secure, nil
	}

	// No scheme provided, treat as host:port (insecure by default for local MinIO).
	return raw, false, nil
}

// MinioBackend seeds pod storage in an S3-compatible bucket.
type MinioBackend struct {
	client *minio.Client
	bucket string
}

// NewMinioBackend builds a client from the manifest's object-store
// settings and verifies the bucket exists.
func NewMinioBackend(ctx context.Context, spec ObjectStoreSpec) (*MinioBackend, error) {
	if spec.Endpoint == "" || spec.AccessKey == "" || spec.SecretKey == "" || spec.Bucket == "" {
		return nil, fmt.Errorf("object store configuration incomplete")
	}

	endpoint, secure, err := normaliseEndpoint(spec.Endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(spec.AccessKey, spec.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}

	// Sanity check: bucket must exist.
	exists, err := client.BucketExists(ctx, spec.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("bucket does not exist: %s", spec.Bucket)
	}

	return &MinioBackend{client: client, bucket: spec.Bucket}, nil
}

func objectKey(pod, rel string) string {
	return "pods/" + pod + "/" + rel
}

// Put uploads data at pods/<pod>/<rel>, recording the content digest in
// object metadata so later runs can skip unchanged files without
// downloading.
func (b *MinioBackend) Put(ctx context.Context, pod, rel string, data []byte) error {
	_, err := b.client.PutObject(ctx, b.bucket, objectKey(pod, rel),
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			ContentType:  "application/octet-stream",
			UserMetadata: map[string]string{digestMetaKey: bytesSHA256(data)},
		})
	return err
}

// Digest reads the recorded digest from object metadata.
func (b *MinioBackend) Digest(ctx context.Context, pod, rel string) (string, bool, error) {
	stat, err := b.client.StatObject(ctx, b.bucket, objectKey(pod, rel), minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
			return "", false, nil
		}
		return "", false, err
	}
	return stat.UserMetadata[digestMetaKey], true, nil
}

// UploadFile streams a local file into the bucket under key. Used by
// snapshot upload.
func (b *MinioBackend) UploadFile(ctx context.Context, key, path string) error {
	_, err := b.client.FPutObject(ctx, b.bucket, key, path, minio.PutObjectOptions{
		ContentType: "application/gzip",
	})
	return err
}
