package scanner

import (
	"sync"

	"github.com/mediascout/mediascout/pkg/walker"
)

// DiscoverySet is the run-wide record of every file seen on disk during a
// scan. Workers write during discovery and the cleanup stage reads it, so
// access goes through a read/write lock.
type DiscoverySet struct {
	mu    sync.RWMutex
	files map[string]walker.DiscoveredFile
}

func NewDiscoverySet() *DiscoverySet {
	return &DiscoverySet{
		files: make(map[string]walker.DiscoveredFile),
	}
}

// Add records discovered files keyed by absolute path.
func (d *DiscoverySet) Add(files ...walker.DiscoveredFile) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, f := range files {
		d.files[f.AbsolutePath] = f
	}
}

// Contains reports whether a path was seen during this scan.
func (d *DiscoverySet) Contains(path string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.files[path]
	return ok
}

// Attributes returns the discovered attributes for a path.
func (d *DiscoverySet) Attributes(path string) (walker.DiscoveredFile, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	f, ok := d.files[path]
	return f, ok
}

// Len returns the number of recorded files.
func (d *DiscoverySet) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.files)
}
