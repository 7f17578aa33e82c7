package storage

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/semenkulikov/Online-school/pkg/errors"
)

// LocalStorage keeps workbooks under a directory, for single-host setups
// without object storage.
type LocalStorage struct {
	root string
}

func NewLocalStorage(root string) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &LocalStorage{root: root}, nil
}

// path keeps keys inside the root, whatever they contain.
func (s *LocalStorage) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(path.Clean("/"+key)))
}

func (s *LocalStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(key))
	if os.IsNotExist(err) {
		return nil, errors.NewStructuralError(errors.ErrFileNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *LocalStorage) Upload(ctx context.Context, key string, data []byte) error {
	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

// URI is the file path of key, readable without the storage.
func (s *LocalStorage) URI(key string) string {
	return s.path(key)
}

func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	err := os.Remove(s.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
