package storagesvc

import (
	"context"
	"io"
	"net/http"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/pkg/errors"

	"github.com/trezcool/learnsmart/core"
)

// OSSStorage stores objects in an Aliyun OSS bucket.
type OSSStorage struct {
	bucket *oss.Bucket
}

var _ core.FileStorage = (*OSSStorage)(nil)

func NewOSSStorage(conf *core.Config) (*OSSStorage, error) {
	sc := conf.Storage
	if sc.OSSEndpoint == "" || sc.OSSAccessKeyID == "" || sc.OSSAccessSecret == "" {
		return nil, errors.New("oss: endpoint and credentials are required")
	}
	client, err := oss.New(sc.OSSEndpoint, sc.OSSAccessKeyID, sc.OSSAccessSecret)
	if err != nil {
		return nil, errors.Wrap(err, "oss.New")
	}
	bucket, err := client.Bucket(sc.Bucket)
	if err != nil {
		return nil, errors.Wrap(err, "oss.Bucket")
	}
	return &OSSStorage{bucket: bucket}, nil
}

func (s *OSSStorage) Upload(ctx context.Context, path string, r io.Reader, contentType string) error {
	opts := []oss.Option{oss.WithContext(ctx)}
	if contentType != "" {
		opts = append(opts, oss.ContentType(contentType))
	}
	if err := s.bucket.PutObject(path, r, opts...); err != nil {
		return core.NewUpstreamError("storage", "Failed to upload file", err)
	}
	return nil
}

func (s *OSSStorage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	body, err := s.bucket.GetObject(path, oss.WithContext(ctx))
	if err != nil {
		if isNoSuchKey(err) {
			return nil, core.ErrObjectNotFound
		}
		return nil, core.NewUpstreamError("storage", "Failed to download file", err)
	}
	return body, nil
}

func (s *OSSStorage) Remove(ctx context.Context, path string) error {
	if err := s.bucket.DeleteObject(path, oss.WithContext(ctx)); err != nil && !isNoSuchKey(err) {
		return core.NewUpstreamError("storage", "Failed to remove file", err)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	var serr oss.ServiceError
	if errors.As(err, &serr) {
		return serr.StatusCode == http.StatusNotFound || serr.Code == "NoSuchKey"
	}
	return false
}
