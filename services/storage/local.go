package storagesvc

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/learnsmart/core"
)

// LocalStorage keeps objects as plain files under <dir>/<bucket>.
type LocalStorage struct {
	basePath string
}

var _ core.FileStorage = (*LocalStorage)(nil)

func NewLocalStorage(dir, bucket string) *LocalStorage {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "learnsmart")
	}
	return &LocalStorage{basePath: filepath.Join(dir, bucket)}
}

func (s *LocalStorage) fullPath(path string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(path))
	if clean == string(filepath.Separator) {
		return "", errors.Errorf("invalid object path %q", path)
	}
	return filepath.Join(s.basePath, strings.TrimPrefix(clean, string(filepath.Separator))), nil
}

func (s *LocalStorage) Upload(ctx context.Context, path string, r io.Reader, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fp, err := s.fullPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return errors.Wrap(err, "creating directory")
	}

	file, err := os.Create(fp)
	if err != nil {
		return errors.Wrap(err, "creating file")
	}
	if _, err := io.Copy(file, r); err != nil {
		file.Close()
		os.Remove(fp)
		return errors.Wrap(err, "writing file")
	}
	return file.Close()
}

func (s *LocalStorage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fp, err := s.fullPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fp)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.ErrObjectNotFound
		}
		return nil, errors.Wrap(err, "opening file")
	}
	return f, nil
}

func (s *LocalStorage) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fp, err := s.fullPath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(fp); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing file")
	}
	return nil
}
