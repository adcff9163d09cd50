// Package airecog resolves episode identity for files the filename
// heuristics could not, by asking an external chat-completion style
// classifier. Calls are batched, rate limited and retried; every failure
// mode degrades to "no result for that item" so the scan never depends on
// the classifier being up.
package airecog

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Config controls the external classifier connection and batching policy.
type Config struct {
	Enabled            bool
	URL                string
	APIKey             string
	Model              string
	MaxBatchSize       int
	CallsPerMinute     int
	CallsPerHour       int
	MaxAttempts        int
	BatchDelay         time.Duration
	IndividualFallback bool
}

// Fingerprint identifies the classifier endpoint configuration. When it
// changes between runs, cached recognitions from the old endpoint are no
// longer trustworthy and must be dropped.
func (c Config) Fingerprint() string {
	h := xxhash.New()
	fmt.Fprintf(h, "%s|%s|%s|%t", c.URL, c.APIKey, c.Model, c.Enabled)
	return fmt.Sprintf("%x", h.Sum64())
}

// Pending is one video file queued for recognition.
type Pending struct {
	ShowID    int64
	ShowTitle string
	RelPath   string
	VideoPath string
}

// StableID returns a deterministic id for this item, stable across runs and
// batch orderings, so results can be correlated even when the classifier
// reorders or drops entries.
func (p Pending) StableID() string {
	h := xxhash.New()
	fmt.Fprintf(h, "%d|%s", p.ShowID, p.RelPath)
	return fmt.Sprintf("%016x", h.Sum64())
}
