package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// ObjectStore holds uploaded archives under slash separated keys
type ObjectStore interface {
	Upload(ctx context.Context, localPath, key string) (int64, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Download(ctx context.Context, key, localPath string) (int64, error)
}

// ObjectKey joins the key prefix and an archive's file name
func ObjectKey(prefix, localPath string) string {
	return path.Join(prefix, filepath.Base(localPath))
}

// LocalStore keeps objects as files below a root directory
type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

func (s *LocalStore) Upload(ctx context.Context, localPath, key string) (int64, error) {
	dst := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", filepath.Dir(dst), err)
	}
	return copyFile(localPath, dst)
}

// List returns the keys starting with prefix, sorted
func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.root, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *LocalStore) Download(ctx context.Context, key, localPath string) (int64, error) {
	return copyFile(filepath.Join(s.root, filepath.FromSlash(key)), localPath)
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	n, err := io.Copy(out, in)
	if err != nil {
		return n, fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return n, out.Close()
}
