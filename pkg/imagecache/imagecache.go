// Package imagecache stores processed artwork on disk, keyed by a hash of
// the source file path so entries can be invalidated when the source file
// disappears from a datasource.
package imagecache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"

	"github.com/mediascout/mediascout/pkg/logger"
)

type Cache struct {
	dir string
}

// New creates the cache directory if needed.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating image cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// entryPath derives the on-disk location for a source path. The source
// file's extension is kept so image type survives the rename.
func (c *Cache) entryPath(sourcePath string) string {
	sum := xxhash.Sum64String(sourcePath)
	return filepath.Join(c.dir, fmt.Sprintf("%016x%s", sum, filepath.Ext(sourcePath)))
}

// Put stores processed artwork bytes for a source path.
func (c *Cache) Put(ctx context.Context, sourcePath string, data []byte) error {
	path := c.entryPath(sourcePath)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing image cache entry: %w", err)
	}

	logger.FromCtx(ctx).Debugw("cached artwork", "source", sourcePath, "entry", path)
	return nil
}

// Get returns the cached entry location for a source path, if present.
func (c *Cache) Get(sourcePath string) (string, bool) {
	path := c.entryPath(sourcePath)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// Invalidate removes the cached entry for a source path. Missing entries are
// not an error.
func (c *Cache) Invalidate(ctx context.Context, sourcePath string) error {
	path := c.entryPath(sourcePath)
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing image cache entry: %w", err)
	}

	if err == nil {
		logger.FromCtx(ctx).Debugw("invalidated artwork", "source", sourcePath)
	}
	return nil
}
