package s3

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/bradhe/stopwatch"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Config holds the connection settings of an S3-compatible bucket.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// Region skips the bucket location lookup when set.
	Region string
}

// Enabled reports whether an endpoint was configured at all.
func (c Config) Enabled() bool {
	return c.Endpoint != ""
}

// Store uploads merged PDFs to a bucket and reads them back by id.
type Store struct {
	client *minio.Client
	bucket string
	log    logrus.FieldLogger
}

// NewStore creates a client for cfg. No request is made until the first
// upload or download.
func NewStore(cfg Config, log logrus.FieldLogger) (*Store, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("s3: endpoint not configured")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket not configured")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	// Endpoints are often configured as URLs; minio wants host[:port].
	endpoint := cfg.Endpoint
	if rest, ok := strings.CutPrefix(endpoint, "https://"); ok {
		endpoint = rest
		cfg.UseSSL = true
	} else if rest, ok := strings.CutPrefix(endpoint, "http://"); ok {
		endpoint = rest
	}
	endpoint = strings.TrimSuffix(endpoint, "/")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "s3: creating client for %s", endpoint)
	}

	log.WithFields(logrus.Fields{"endpoint": endpoint, "bucket": cfg.Bucket}).Debug("s3 client created")
	return &Store{client: client, bucket: cfg.Bucket, log: log}, nil
}

// Upload stores the PDF at filePath under id.
func (s *Store) Upload(ctx context.Context, id string, filePath string) error {
	watch := stopwatch.Start()

	info, err := s.client.FPutObject(ctx, s.bucket, id, filePath, minio.PutObjectOptions{ContentType: "application/pdf"})
	if err != nil {
		return errors.Wrapf(err, "s3: uploading %s", id)
	}

	watch.Stop()
	s.log.WithFields(logrus.Fields{
		"object":     id,
		"size":       info.Size,
		"elapsed_ms": int64(watch.Milliseconds()),
	}).Info("uploaded merged pdf")
	return nil
}

// Download returns the content of the object stored under id.
func (s *Store) Download(ctx context.Context, id string) ([]byte, error) {
	watch := stopwatch.Start()

	obj, err := s.client.GetObject(ctx, s.bucket, id, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "s3: fetching %s", id)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, errors.Wrapf(err, "s3: reading %s", id)
	}

	watch.Stop()
	s.log.WithFields(logrus.Fields{
		"object":     id,
		"size":       len(data),
		"elapsed_ms": int64(watch.Milliseconds()),
	}).Debug("downloaded merged pdf")
	return data, nil
}

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	return minio.ToErrorResponse(errors.Cause(err)).Code == "NoSuchKey"
}
