package airecog

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
	"golang.org/x/time/rate"

	"github.com/mediascout/mediascout/pkg/cache"
	"github.com/mediascout/mediascout/pkg/logger"
	"github.com/mediascout/mediascout/pkg/match"
)

const (
	// DefaultMaxBatchSize bounds one classifier call when the config leaves
	// it unset.
	DefaultMaxBatchSize = 50

	highPressureBatchSize   = 10
	mediumPressureBatchSize = 25
)

// systemPrompt instructs the classifier to answer positionally, one line per
// input line, so responses can be correlated back by index.
const systemPrompt = `You identify TV episodes from file paths. For each input line, output exactly one line in the form "SxxEyy - Title". If you cannot identify a line, output "UNKNOWN" for it. Output nothing else.`

// responseLineRegex parses one classifier answer line.
var responseLineRegex = regexp.MustCompile(`(?i)^s(\d{1,4})\s*e(\d{1,4})(?:\s*[-:|]\s*(.+))?$`)

// MemStater reports system memory pressure. Injectable for tests.
type MemStater interface {
	UsedPercent() (float64, error)
}

type systemMem struct{}

func (systemMem) UsedPercent() (float64, error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return v.UsedPercent, nil
}

// Batcher sends queued recognitions to the classifier in rate-limited
// batches. At most one flush runs at a time across the process; overlapping
// triggers are skipped, not queued.
type Batcher struct {
	flight sync.Mutex

	mu          sync.Mutex
	client      Client
	cfg         Config
	fingerprint string
	minute      *rate.Limiter
	hour        *rate.Limiter

	results *cache.Cache[string, match.Result]
	memStat MemStater
	sleep   func(time.Duration)
}

// BatcherOption configures a Batcher.
type BatcherOption func(*Batcher)

// WithMemStater overrides the memory pressure source.
func WithMemStater(m MemStater) BatcherOption {
	return func(b *Batcher) {
		b.memStat = m
	}
}

// WithSleep overrides the politeness delay sleep. Used by tests.
func WithSleep(sleep func(time.Duration)) BatcherOption {
	return func(b *Batcher) {
		b.sleep = sleep
	}
}

// NewBatcher creates a Batcher for the given classifier client and config.
func NewBatcher(client Client, cfg Config, opts ...BatcherOption) *Batcher {
	b := &Batcher{
		results: cache.New[string, match.Result](),
		memStat: systemMem{},
		sleep:   time.Sleep,
	}

	for _, opt := range opts {
		opt(b)
	}

	b.apply(client, cfg)
	return b
}

// Configure swaps in a new client and config. When the endpoint fingerprint
// changed, cached recognitions from the old endpoint are dropped.
func (b *Batcher) Configure(client Client, cfg Config) {
	b.mu.Lock()
	changed := cfg.Fingerprint() != b.fingerprint
	b.apply(client, cfg)
	b.mu.Unlock()

	if changed {
		b.results.Clear()
	}
}

// Fingerprint reports the endpoint identity currently configured.
func (b *Batcher) Fingerprint() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fingerprint
}

// apply must be called with b.mu held, except from NewBatcher.
func (b *Batcher) apply(client Client, cfg Config) {
	b.client = client
	b.cfg = cfg
	b.fingerprint = cfg.Fingerprint()
	b.minute = newLimiter(cfg.CallsPerMinute, time.Minute)
	b.hour = newLimiter(cfg.CallsPerHour, time.Hour)
}

// allowCall takes one token from each limiter only when both have one
// available; a denial by either must not burn the other window's budget.
// Relies on the flush single-flight for reservation cancels to restore
// tokens exactly.
func allowCall(minute, hour *rate.Limiter) bool {
	mr := minute.Reserve()
	if !mr.OK() || mr.Delay() > 0 {
		mr.Cancel()
		return false
	}
	hr := hour.Reserve()
	if !hr.OK() || hr.Delay() > 0 {
		hr.Cancel()
		mr.Cancel()
		return false
	}
	return true
}

func newLimiter(calls int, per time.Duration) *rate.Limiter {
	if calls <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(per/time.Duration(calls)), calls)
}

func (b *Batcher) snapshot() (Client, Config, *rate.Limiter, *rate.Limiter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.client, b.cfg, b.minute, b.hour
}

// Flush sends every pending item through the classifier and returns results
// keyed by stable id. Items absent from the returned map failed recognition
// and must be handled by the caller's fallback path. Flush never returns an
// error; classifier failures only shrink the result map.
func (b *Batcher) Flush(ctx context.Context, pending []Pending) map[string]match.Result {
	log := logger.FromCtx(ctx)

	_, cfg, _, _ := b.snapshot()
	if !cfg.Enabled || len(pending) == 0 {
		return nil
	}

	if !b.flight.TryLock() {
		log.Warnw("recognition flush already in flight, skipping", "pending", len(pending))
		return nil
	}
	defer b.flight.Unlock()

	results := make(map[string]match.Result, len(pending))

	// cached answers first
	var queue []Pending
	for _, p := range pending {
		if r, ok := b.results.Get(p.StableID()); ok {
			results[p.StableID()] = r
			continue
		}
		queue = append(queue, p)
	}

	permanent := b.flushBatches(ctx, queue, results)

	if cfg.IndividualFallback && !permanent {
		b.flushIndividually(ctx, queue, results)
	}

	return results
}

// flushBatches works through the queue in memory-sized chunks. Returns true
// when a permanent error short-circuited the remaining queue.
func (b *Batcher) flushBatches(ctx context.Context, queue []Pending, results map[string]match.Result) bool {
	log := logger.FromCtx(ctx)

	for len(queue) > 0 {
		if ctx.Err() != nil {
			return false
		}

		client, cfg, minute, hour := b.snapshot()

		size := b.batchSize(ctx, cfg)
		if size > len(queue) {
			size = len(queue)
		}
		batch := queue[:size]
		queue = queue[size:]

		if !allowCall(minute, hour) {
			log.Warnw("recognition rate limit reached, skipping batch", "size", len(batch))
			continue
		}

		lines := make([]string, len(batch))
		for i, p := range batch {
			lines[i] = p.ShowTitle + "/" + p.RelPath
		}

		text, err := client.Recognize(ctx, systemPrompt, lines)
		if err != nil {
			if errors.Is(err, ErrPermanent) {
				log.Errorw("permanent classifier error, abandoning remaining queue", "err", err, "remaining", len(queue))
				return true
			}
			log.Warnw("classifier batch failed", "err", err, "size", len(batch))
			continue
		}

		b.applyResponse(batch, text, results)

		if len(queue) > 0 && cfg.BatchDelay > 0 {
			b.sleep(cfg.BatchDelay)
		}
	}

	return false
}

// flushIndividually retries items still missing one at a time.
func (b *Batcher) flushIndividually(ctx context.Context, queue []Pending, results map[string]match.Result) {
	log := logger.FromCtx(ctx)

	for _, p := range queue {
		if ctx.Err() != nil {
			return
		}
		if _, ok := results[p.StableID()]; ok {
			continue
		}

		client, cfg, minute, hour := b.snapshot()
		if !allowCall(minute, hour) {
			log.Warnw("recognition rate limit reached, skipping individual fallback")
			return
		}

		text, err := client.Recognize(ctx, systemPrompt, []string{p.ShowTitle + "/" + p.RelPath})
		if err != nil {
			if errors.Is(err, ErrPermanent) {
				log.Errorw("permanent classifier error during individual fallback", "err", err)
				return
			}
			log.Debugw("individual recognition failed", "path", p.RelPath, "err", err)
			continue
		}

		b.applyResponse([]Pending{p}, text, results)

		if cfg.BatchDelay > 0 {
			b.sleep(cfg.BatchDelay)
		}
	}
}

// applyResponse correlates response lines to batch items by position.
// Shortfall leaves trailing items without a result; surplus lines are
// ignored.
func (b *Batcher) applyResponse(batch []Pending, text string, results map[string]match.Result) {
	lines := strings.Split(strings.TrimSpace(text), "\n")

	for i, line := range lines {
		if i >= len(batch) {
			break
		}

		r, ok := parseLine(line)
		if !ok {
			continue
		}

		id := batch[i].StableID()
		results[id] = r
		b.results.Set(id, r)
	}
}

func parseLine(line string) (match.Result, bool) {
	m := responseLineRegex.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return match.Result{}, false
	}

	season, err := strconv.Atoi(m[1])
	if err != nil {
		return match.Result{}, false
	}
	episode, err := strconv.Atoi(m[2])
	if err != nil {
		return match.Result{}, false
	}

	return match.Result{
		Season:     season,
		Episodes:   []int{episode},
		Title:      strings.TrimSpace(m[3]),
		Confidence: match.ConfidenceAI,
	}, true
}

// batchSize shrinks the configured batch size under memory pressure so the
// request payloads built per batch stay bounded.
func (b *Batcher) batchSize(ctx context.Context, cfg Config) int {
	size := cfg.MaxBatchSize
	if size <= 0 {
		size = DefaultMaxBatchSize
	}

	used, err := b.memStat.UsedPercent()
	if err != nil {
		logger.FromCtx(ctx).Debugw("could not read memory stats", "err", err)
		return size
	}

	switch {
	case used >= 85:
		size = min(size, highPressureBatchSize)
	case used >= 70:
		size = min(size, mediumPressureBatchSize)
	}

	return size
}
