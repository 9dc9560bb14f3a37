package abtest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/exp/slices"
)

// SnapshotSource produces the current Snapshot.
type SnapshotSource interface {
	FetchSnapshot(ctx context.Context) (*Snapshot, error)
}

// apiSnapshotSource fetches the snapshot from the API with the client's
// resty client.
type apiSnapshotSource struct {
	client   *resty.Client
	endpoint string
}

func (a *apiSnapshotSource) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	resp, err := a.client.NewRequest().
		SetContext(ctx).
		ForceContentType("application/json").
		Get(a.endpoint)
	if err != nil {
		return nil, &AbtestAPIError{Msg: "unable to get valid response from API", Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &AbtestAPIError{
			Msg:                "request to API failed",
			ResponseStatusCode: resp.StatusCode(),
			ResponseStatus:     resp.Status(),
		}
	}
	s, err := ParseSnapshot(resp.Body())
	if err != nil {
		return nil, &AbtestAPIError{Msg: "invalid snapshot received from API", Err: err}
	}
	return s, nil
}

func (a *apiSnapshotSource) String() string {
	return "api:" + a.endpoint
}

// MinIOConfig locates snapshots in an S3 compatible bucket.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	UseSSL    bool   `yaml:"useSSL"`
	Bucket    string `yaml:"bucket"`
	// Prefix restricts the objects considered. Object names must sort in
	// publication order, e.g. a timestamp or UUIDv7 followed by .json.
	Prefix string `yaml:"prefix"`
}

// MinIOSnapshotSource serves the latest snapshot object of a bucket.
type MinIOSnapshotSource struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewMinIOSnapshotSource(cfg MinIOConfig) (*MinIOSnapshotSource, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &MinIOSnapshotSource{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (m *MinIOSnapshotSource) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	objectCh := m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: m.prefix, Recursive: true})
	var names []string
	for object := range objectCh {
		if object.Err != nil {
			return nil, object.Err
		}
		if strings.HasSuffix(object.Key, "/") {
			continue
		}
		names = append(names, object.Key)
	}
	latest, err := latestObjectName(names)
	if err != nil {
		return nil, fmt.Errorf("bucket %s: %w", m.bucket, err)
	}

	obj, err := m.client.GetObject(ctx, m.bucket, latest, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, obj); err != nil {
		return nil, fmt.Errorf("read %s: %w", latest, err)
	}
	s, err := ParseSnapshot(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", latest, err)
	}
	return s, nil
}

func (m *MinIOSnapshotSource) String() string {
	return "minio:" + m.bucket + "/" + m.prefix
}

func latestObjectName(names []string) (string, error) {
	if len(names) == 0 {
		return "", errors.New("no snapshots found in bucket")
	}
	return slices.Max(names), nil
}
