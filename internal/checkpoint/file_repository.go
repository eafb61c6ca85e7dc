package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
)

const fileExt = ".json"

// FileRepository stores one JSON file per key in a directory. Writes go to a
// temporary file that is synced and renamed over the target, so a crash
// leaves either the old or the new file, never a torn one.
type FileRepository struct {
	dir string
	mu  sync.Mutex
}

// NewFileRepository creates a repository rooted at dir. The directory is
// created on first write.
func NewFileRepository(dir string) *FileRepository {
	return &FileRepository{dir: dir}
}

// Dir returns the repository directory
func (r *FileRepository) Dir() string {
	return r.dir
}

func (r *FileRepository) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(r.dir, key+fileExt), nil
}

// Get implements Repository
func (r *FileRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, repoErr("get", key, err)
	}

	p, err := r.path(key)
	if err != nil {
		return nil, false, repoErr("get", key, err)
	}

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, repoErr("get", key, err)
	}
	return data, true, nil
}

// Update implements Repository
func (r *FileRepository) Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	if err := ctx.Err(); err != nil {
		return repoErr("update", key, err)
	}

	p, err := r.path(key)
	if err != nil {
		return repoErr("update", key, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := os.ReadFile(p)
	if err != nil && !os.IsNotExist(err) {
		return repoErr("update", key, err)
	}
	if os.IsNotExist(err) {
		current = nil
	}

	next, err := fn(current)
	if err != nil {
		return err
	}

	return repoErr("update", key, r.writeAtomic(p, next))
}

func (r *FileRepository) writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(r.dir, 0750); err != nil {
		return fmt.Errorf("create checkpoint directory: %w", err)
	}

	tmp, err := os.CreateTemp(r.dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename checkpoint: %w", err)
	}

	return syncDir(r.dir)
}

// syncDir makes the rename durable. Some platforms cannot sync directories;
// that is not treated as a failure.
func syncDir(dir string) error {
	d, err := os.Open(dir) // #nosec G304 -- repository directory
	if err != nil {
		return fmt.Errorf("open checkpoint directory: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) && !errors.Is(err, syscall.EINVAL) {
		return fmt.Errorf("sync checkpoint directory: %w", err)
	}
	return nil
}

// Delete implements Repository
func (r *FileRepository) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return repoErr("delete", key, err)
	}

	p, err := r.path(key)
	if err != nil {
		return repoErr("delete", key, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return repoErr("delete", key, err)
	}
	return nil
}

// List implements Repository. Keys are visited in ascending order.
func (r *FileRepository) List(ctx context.Context, fn func(key string, value []byte) error) error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return repoErr("list", "", err)
	}

	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != fileExt {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, fileExt))
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return repoErr("list", "", err)
		}
		data, found, err := r.Get(ctx, key)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		if err := fn(key, data); err != nil {
			return err
		}
	}
	return nil
}

// Close implements Repository
func (r *FileRepository) Close() error {
	return nil
}
