package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/semenkulikov/Online-school/internal/config"
	"github.com/semenkulikov/Online-school/pkg/errors"
)

// Storage holds uploaded and archived ledger workbooks.
type Storage interface {
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Upload(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	// URI is how a run records where key lives; ReadSource accepts it.
	URI(key string) string
}

const S3Scheme = "s3://"

// New picks S3 when a bucket is configured and the local directory otherwise.
func New(cfg *config.Config) (Storage, error) {
	if cfg.Storage.S3.Bucket != "" {
		return NewS3Storage(cfg)
	}
	if cfg.Storage.LocalDir != "" {
		return NewLocalStorage(cfg.Storage.LocalDir)
	}
	return nil, fmt.Errorf("no workbook storage configured: set storage.s3.bucket or storage.local_dir")
}

// ReadSource loads a workbook given as a filesystem path or as s3://<key>.
func ReadSource(ctx context.Context, source string, remote Storage) ([]byte, error) {
	if key, ok := strings.CutPrefix(source, S3Scheme); ok {
		if remote == nil {
			return nil, fmt.Errorf("cannot read %s: object storage is not configured", source)
		}
		reader, err := remote.Download(ctx, key)
		if err != nil {
			return nil, err
		}
		defer reader.Close()
		return io.ReadAll(reader)
	}

	data, err := os.ReadFile(source)
	if os.IsNotExist(err) {
		return nil, errors.NewStructuralError(errors.ErrFileNotFound, source)
	}
	return data, err
}

// ArchiveKey is where a workbook imported by a run is kept.
func ArchiveKey(prefix, runID, source string) string {
	return path.Join(prefix, runID, path.Base(filepath.ToSlash(source)))
}

// UploadKey is where the API stores a workbook waiting in the queue.
func UploadKey(prefix, runID, filename string) string {
	name := path.Base(filepath.ToSlash(filename))
	if name == "." || name == "/" {
		name = "ledger.xlsx"
	}
	return path.Join(prefix, runID, name)
}
