package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage stores artifacts on the local filesystem. Intended for
// development and single-node deployments.
type LocalStorage struct {
	basePath string
	baseURL  string
}

// NewLocalStorage creates a filesystem-backed store rooted at
// cfg.BasePath, creating the directory if needed.
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	if cfg.BasePath == "" {
		return nil, fmt.Errorf("storage: base path is required")
	}

	absPath, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve base path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create base directory: %w", err)
	}

	return &LocalStorage{
		basePath: absPath,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
	}, nil
}

// resolvePath converts a key to an absolute filesystem path, rejecting
// keys that would escape the base directory.
func (s *LocalStorage) resolvePath(key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}

	cleaned := filepath.Clean(filepath.FromSlash(key))
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", ErrInvalidKey
	}

	full := filepath.Join(s.basePath, cleaned)
	if !strings.HasPrefix(full, s.basePath+string(filepath.Separator)) {
		return "", ErrInvalidKey
	}

	return full, nil
}

// Put stores data at the specified key.
func (s *LocalStorage) Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error {
	path, err := s.resolvePath(key)
	if err != nil {
		return newError("put", key, err)
	}

	if !opts.Overwrite {
		if _, err := os.Stat(path); err == nil {
			return newError("put", key, ErrKeyExists)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return newError("put", key, err)
	}

	reader := data
	if opts.MaxSize > 0 {
		// Read one extra byte to detect oversize input.
		reader = io.LimitReader(data, opts.MaxSize+1)
	}

	// Write to a temp file first so a failed write never leaves a
	// partial artifact at the final key.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return newError("put", key, err)
	}
	tmpPath := tmp.Name()

	written, err := io.Copy(tmp, reader)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return newError("put", key, err)
	}

	if opts.MaxSize > 0 && written > opts.MaxSize {
		os.Remove(tmpPath)
		return newError("put", key, ErrTooLarge)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return newError("put", key, err)
	}

	return nil
}

// Get retrieves the object at the specified key.
func (s *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	path, err := s.resolvePath(key)
	if err != nil {
		return nil, ObjectInfo{}, newError("get", key, err)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ObjectInfo{}, newError("get", key, ErrNotFound)
		}
		return nil, ObjectInfo{}, newError("get", key, err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, newError("get", key, err)
	}

	info := ObjectInfo{
		Key:          key,
		Size:         stat.Size(),
		ContentType:  DetectContentType(key),
		LastModified: stat.ModTime(),
	}

	return f, info, nil
}

// Delete removes the object at the specified key. Idempotent.
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	path, err := s.resolvePath(key)
	if err != nil {
		return newError("delete", key, err)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return newError("delete", key, err)
	}

	return nil
}

// URL returns a URL for accessing the object. Local storage has no
// presigning; expiry is ignored.
func (s *LocalStorage) URL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if _, err := s.resolvePath(key); err != nil {
		return "", newError("url", key, err)
	}
	if s.baseURL == "" {
		return "", newError("url", key, fmt.Errorf("no base URL configured"))
	}
	return s.baseURL + "/" + key, nil
}

// Exists checks whether an object exists at the specified key.
func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	path, err := s.resolvePath(key)
	if err != nil {
		return false, newError("exists", key, err)
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, newError("exists", key, err)
	}

	return true, nil
}

var _ Storage = (*LocalStorage)(nil)
