package walker

import "sync"

// Counters tracks walk progress for diagnostics. One instance is owned by a
// scan task and shared by all of its walkers, so every method locks.
type Counters struct {
	mu              sync.Mutex
	filesVisited    int
	dirsPreVisited  int
	dirsPostVisited int
}

// Reset zeroes all counters. Called at task start so a retried task starts
// clean.
func (c *Counters) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filesVisited = 0
	c.dirsPreVisited = 0
	c.dirsPostVisited = 0
}

func (c *Counters) FileVisited() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filesVisited++
}

func (c *Counters) DirPreVisited() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirsPreVisited++
}

func (c *Counters) DirPostVisited() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirsPostVisited++
}

// Snapshot returns the current counter values.
func (c *Counters) Snapshot() (files, preDirs, postDirs int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filesVisited, c.dirsPreVisited, c.dirsPostVisited
}
