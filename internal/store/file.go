package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"syscall"

	"github.com/dmitrijs2005/clubsync/internal/common"
	"github.com/spf13/afero"
)

// FileStore keeps one file per key under dir. Writes go to a temp file that
// is renamed over the target, so readers never observe a partial value.
type FileStore struct {
	fs  afero.Fs
	dir string
}

// NewFileStore creates dir on fsys if needed.
func NewFileStore(fsys afero.Fs, dir string) (*FileStore, error) {
	if err := fsys.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{fs: fsys, dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, url.QueryEscape(key)+".json")
}

func (s *FileStore) Read(_ context.Context, key string) ([]byte, error) {
	b, err := afero.ReadFile(s.fs, s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return b, nil
}

func (s *FileStore) Write(_ context.Context, key string, value []byte) error {
	tmp, err := afero.TempFile(s.fs, s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", key, classifyFS(err))
	}
	name := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(name)
		return fmt.Errorf("write %s: %w", key, classifyFS(err))
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(name)
		return fmt.Errorf("write %s: %w", key, classifyFS(err))
	}
	if err := s.fs.Rename(name, s.path(key)); err != nil {
		_ = s.fs.Remove(name)
		return fmt.Errorf("write %s: %w", key, classifyFS(err))
	}
	return nil
}

func classifyFS(err error) error {
	if errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EDQUOT) {
		return errors.Join(common.ErrQuotaExceeded, err)
	}
	return err
}
