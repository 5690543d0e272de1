package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"vidshare/internal/domain"
)

// LocalStore keeps blobs as files in Dir and serves them under BaseURL.
type LocalStore struct {
	Dir     string
	BaseURL string
	// MaxBytes bounds a single blob; zero means unbounded.
	MaxBytes int64
}

var errBadKey = errors.New("invalid blob key")

func NewLocalStore(dir, baseURL string, maxBytes int64) (*LocalStore, error) {
	if dir == "" {
		return nil, errors.New("upload dir required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{Dir: dir, BaseURL: baseURL, MaxBytes: maxBytes}, nil
}

func (s *LocalStore) path(key string) (string, error) {
	if key == "" || key != path.Base(key) || strings.HasPrefix(key, ".") || strings.ContainsAny(key, `/\`) {
		return "", errBadKey
	}
	return filepath.Join(s.Dir, key), nil
}

// Put writes body to a temp file and renames it into place, so readers
// never observe a partial blob.
func (s *LocalStore) Put(ctx context.Context, key string, body io.Reader, _ int64, _ string) (int64, error) {
	dst, err := s.path(key)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(s.Dir, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	src := body
	if s.MaxBytes > 0 {
		src = io.LimitReader(body, s.MaxBytes+1)
	}
	n, err := io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("write blob: %w", err)
	}
	if s.MaxBytes > 0 && n > s.MaxBytes {
		return 0, domain.NewValidationMessage("File too large", map[string]string{"video": "too large"})
	}

	if err := os.Rename(tmpName, dst); err != nil {
		return 0, fmt.Errorf("store blob: %w", err)
	}
	return n, nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}

func (s *LocalStore) URL(key string) string {
	return joinURL(s.BaseURL, key)
}

func joinURL(base, key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	escaped := strings.Join(segments, "/")
	if base == "" {
		return escaped
	}
	return strings.TrimRight(base, "/") + "/" + escaped
}
