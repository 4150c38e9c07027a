// Package storage keeps listing images in an object store addressed by public URL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// ErrInvalidKey is returned for keys that escape the store root or are empty.
var ErrInvalidKey = errors.New("invalid object key")

// ErrObjectNotFound is returned when no object exists under the key.
var ErrObjectNotFound = errors.New("object not found")

// Store is the object storage used for listing images.
type Store interface {
	// Put writes data under key and returns its public URL.
	Put(ctx context.Context, key string, data []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes the object behind a public URL or key. Missing objects are not an error.
	Delete(ctx context.Context, urlOrKey string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// FSStore is a Store backed by an afero filesystem.
type FSStore struct {
	fs      afero.Fs
	baseURL string
}

// NewFSStore wraps fs. baseURL prefixes every returned object URL.
func NewFSStore(fs afero.Fs, baseURL string) *FSStore {
	return &FSStore{fs: fs, baseURL: strings.TrimRight(baseURL, "/")}
}

// NewDiskStore stores objects under dir on the local disk.
func NewDiskStore(dir, baseURL string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return NewFSStore(afero.NewBasePathFs(afero.NewOsFs(), dir), baseURL), nil
}

// NewMemoryStore keeps objects in memory.
func NewMemoryStore(baseURL string) *FSStore {
	return NewFSStore(afero.NewMemMapFs(), baseURL)
}

func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.Contains(key, "..") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+key), "/")
	if cleaned == "" {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

// URL returns the public URL for key.
func (s *FSStore) URL(key string) string {
	return s.baseURL + "/" + key
}

// KeyFromURL strips the public base URL, returning the object key.
func (s *FSStore) KeyFromURL(u string) string {
	return strings.TrimPrefix(strings.TrimPrefix(u, s.baseURL), "/")
}

func (s *FSStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if err := s.fs.MkdirAll(path.Dir("/"+key), 0o750); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}
	if err := afero.WriteFile(s.fs, "/"+key, data, 0o640); err != nil {
		return "", fmt.Errorf("write object %s: %w", key, err)
	}
	return s.URL(key), nil
}

func (s *FSStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, "/"+key)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

func (s *FSStore) Delete(ctx context.Context, urlOrKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := cleanKey(s.KeyFromURL(urlOrKey))
	if err != nil {
		return err
	}
	if err := s.fs.Remove("/" + key); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

func (s *FSStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root := "/"
	if prefix != "" {
		p, err := cleanKey(prefix)
		if err != nil {
			return nil, err
		}
		root = "/" + p
	}

	var keys []string
	err := afero.Walk(s.fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			keys = append(keys, strings.TrimPrefix(p, "/"))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}
