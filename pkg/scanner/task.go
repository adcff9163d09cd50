package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/mediascout/mediascout/pkg/airecog"
	"github.com/mediascout/mediascout/pkg/logger"
	"github.com/mediascout/mediascout/pkg/match"
	"github.com/mediascout/mediascout/pkg/storage"
)

// DefaultWorkers bounds concurrent show reconciliations. Walking one show is
// single threaded; the pool is the only parallelism in a scan.
const DefaultWorkers = 3

// ErrNoDatasources means every configured datasource was unavailable.
var ErrNoDatasources = errors.New("no datasource available")

// RecognitionBatcher flushes queued recognitions through the external
// classifier.
type RecognitionBatcher interface {
	Flush(ctx context.Context, pending []airecog.Pending) map[string]match.Result
}

// Summary is the outcome of one scan run.
type Summary struct {
	TaskID          string   `json:"taskID"`
	ShowsProcessed  int      `json:"showsProcessed"`
	ShowsFailed     int      `json:"showsFailed"`
	FilesFound      int      `json:"filesFound"`
	DirsWalked      int      `json:"dirsWalked"`
	AIQueued        int      `json:"aiQueued"`
	CleanupFailures int      `json:"cleanupFailures"`
	Errors          []string `json:"errors,omitempty"`
}

// Task fans the engine out over datasources with a bounded worker pool and
// runs the run-wide stages that need every show walked first.
type Task struct {
	id       string
	engine   *Engine
	batcher  RecognitionBatcher
	gatherer MediaInfoGatherer
	sink     ProgressSink
	workers  int
}

// TaskOption configures a Task.
type TaskOption func(*Task)

// WithWorkers sets the worker pool size.
func WithWorkers(n int) TaskOption {
	return func(t *Task) {
		if n > 0 {
			t.workers = n
		}
	}
}

// WithBatcher enables recognition for unresolved files.
func WithBatcher(b RecognitionBatcher) TaskOption {
	return func(t *Task) {
		t.batcher = b
	}
}

// WithMediaInfoGatherer enables the trailing technical-metadata pass.
func WithMediaInfoGatherer(g MediaInfoGatherer) TaskOption {
	return func(t *Task) {
		t.gatherer = g
	}
}

// WithProgressSink sets where progress events go.
func WithProgressSink(s ProgressSink) TaskOption {
	return func(t *Task) {
		t.sink = s
	}
}

// NewTask creates a scan task around an engine.
func NewTask(engine *Engine, opts ...TaskOption) *Task {
	t := &Task{
		id:      uuid.New().String(),
		engine:  engine,
		sink:    LogSink{},
		workers: DefaultWorkers,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// ID returns the task's run id.
func (t *Task) ID() string {
	return t.id
}

type showJob struct {
	datasource string
	root       string
}

type runState struct {
	mu           sync.Mutex
	shows        []*storage.Show
	pending      []airecog.Pending
	errs         []string
	unreconciled map[string]struct{}
}

func (s *runState) addShow(show *storage.Show, pending []airecog.Pending) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shows = append(s.shows, show)
	s.pending = append(s.pending, pending...)
}

func (s *runState) addError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, msg)
}

// markUnreconciled flags a show root whose walk did not complete this run.
// Its discovery entries are missing or partial, so cleanup must not prune
// against them.
func (s *runState) markUnreconciled(absPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unreconciled == nil {
		s.unreconciled = make(map[string]struct{})
	}
	s.unreconciled[absPath] = struct{}{}
}

func (s *runState) isUnreconciled(absPath string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.unreconciled[absPath]
	return ok
}

// Run scans every show under the given datasource roots: reconcile each show
// through the worker pool, flush recognitions once after all walks, clean up
// vanished files, then gather media info. Errors local to one show or
// datasource are reported in the summary, not raised; only having no usable
// datasource at all fails the run.
func (t *Task) Run(ctx context.Context, datasources []string) (summary *Summary, err error) {
	log := logger.FromCtx(ctx).With("task", t.id)
	t.engine.counters.Reset()

	// a crash anywhere in the run stays inside the task boundary: callers
	// get an error, not a dead process, and the counters are left clean
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("scan task panicked", "panic", r)
			t.engine.counters.Reset()
			summary = nil
			err = fmt.Errorf("scan task panicked: %v", r)
		}
	}()

	discovered := NewDiscoverySet()
	state := &runState{}

	jobs, scanned := t.collectJobs(ctx, datasources, state)
	if len(scanned) == 0 {
		return nil, ErrNoDatasources
	}

	t.sink.Publish(ctx, Event{TaskID: t.id, Stage: "walk", Total: len(jobs), Message: fmt.Sprintf("scanning %d show directories", len(jobs))})

	t.runPool(ctx, jobs, discovered, state)

	if t.batcher != nil && len(state.pending) > 0 {
		t.sink.Publish(ctx, Event{TaskID: t.id, Stage: "recognition", Message: fmt.Sprintf("recognizing %d unresolved files", len(state.pending))})
		t.applyRecognitions(ctx, state)
	}

	cleanupFailures := t.cleanup(ctx, scanned, discovered, state)

	if t.gatherer != nil {
		for _, show := range state.shows {
			if ctx.Err() != nil {
				break
			}
			if err := t.gatherer.Gather(ctx, show); err != nil {
				log.Warnw("media info pass failed", "show", show.Path, "err", err)
			}
		}
	}

	files, _, dirs := t.engine.counters.Snapshot()
	summary = &Summary{
		TaskID:          t.id,
		ShowsProcessed:  len(state.shows),
		ShowsFailed:     len(jobs) - len(state.shows),
		FilesFound:      files,
		DirsWalked:      dirs,
		AIQueued:        len(state.pending),
		CleanupFailures: cleanupFailures,
		Errors:          state.errs,
	}

	t.sink.Publish(ctx, Event{
		TaskID:     t.id,
		Stage:      "done",
		FilesFound: files,
		Message:    fmt.Sprintf("scan finished, %d shows processed", summary.ShowsProcessed),
	})

	return summary, ctx.Err()
}

// RunShow reconciles a single show directory. Recognition batching is
// skipped; single-show updates queue nothing for the classifier.
func (t *Task) RunShow(ctx context.Context, datasource, showPath string) (*storage.Show, error) {
	root, err := t.relToBase(showPath)
	if err != nil {
		return nil, err
	}

	t.engine.counters.Reset()
	discovered := NewDiscoverySet()

	show, _, err := t.engine.ReconcileShowRoot(ctx, datasource, root, discovered)
	return show, err
}

// collectJobs lists the immediate subdirectories of each datasource; every
// one is a show root. Unavailable datasources are reported and skipped.
func (t *Task) collectJobs(ctx context.Context, datasources []string, state *runState) ([]showJob, []string) {
	log := logger.FromCtx(ctx)

	var jobs []showJob
	var scanned []string

	for _, ds := range datasources {
		rel, err := t.relToBase(ds)
		if err != nil {
			state.addError(fmt.Sprintf("datasource %s: %v", ds, err))
			continue
		}

		entries, err := fs.ReadDir(t.engine.fsys, rel)
		if err != nil {
			log.Warnw("datasource unavailable", "path", ds, "err", err)
			state.addError(fmt.Sprintf("datasource %s unavailable: %v", ds, err))
			continue
		}

		scanned = append(scanned, ds)
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			jobs = append(jobs, showJob{datasource: ds, root: path.Join(rel, entry.Name())})
		}
	}

	return jobs, scanned
}

func (t *Task) runPool(ctx context.Context, jobs []showJob, discovered *DiscoverySet, state *runState) {
	prog := newProgress(len(jobs))
	jobCh := make(chan showJob)

	var wg sync.WaitGroup
	for i := 0; i < t.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer t.recoverPanic(ctx, state, "worker")

			for job := range jobCh {
				if ctx.Err() != nil {
					continue
				}
				t.runShow(ctx, job, discovered, state, prog)
			}
		}()
	}

	for _, job := range jobs {
		select {
		case <-ctx.Done():
		case jobCh <- job:
			continue
		}
		break
	}
	close(jobCh)
	wg.Wait()
}

func (t *Task) runShow(ctx context.Context, job showJob, discovered *DiscoverySet, state *runState, prog *progress) {
	absRoot := filepath.Join(t.engine.base, filepath.FromSlash(job.root))
	defer func() {
		if r := recover(); r != nil {
			logger.FromCtx(ctx).Errorw("panic during scan", "where", job.root, "panic", r)
			state.addError(fmt.Sprintf("panic in %s: %v", job.root, r))
			state.markUnreconciled(absRoot)
		}
	}()

	show, pending, err := t.engine.ReconcileShowRoot(ctx, job.datasource, job.root, discovered)
	processed, total, eta := prog.step()
	event := Event{
		TaskID:    t.id,
		Stage:     "reconcile",
		Show:      path.Base(job.root),
		Processed: processed,
		Total:     total,
		ETA:       eta,
	}

	if err != nil {
		state.addError(fmt.Sprintf("show %s: %v", job.root, err))
		state.markUnreconciled(absRoot)
		event.Message = "reconciliation failed"
		t.sink.Publish(ctx, event)
		return
	}
	if show == nil {
		// nothing eligible was walked, so the discovery set holds no entry
		// for this show and cleanup has to leave it alone
		state.markUnreconciled(absRoot)
		event.Message = "no media found, left untouched"
		t.sink.Publish(ctx, event)
		return
	}

	state.addShow(show, pending)
	event.Show = show.Title
	event.Message = fmt.Sprintf("reconciled %d episodes", len(show.Episodes))
	t.sink.Publish(ctx, event)
}

// applyRecognitions flushes the whole queue once and folds results back into
// the affected shows. Items without results keep their fallback episodes.
func (t *Task) applyRecognitions(ctx context.Context, state *runState) {
	log := logger.FromCtx(ctx)

	results := t.batcher.Flush(ctx, state.pending)
	if len(results) == 0 {
		return
	}

	byShow := make(map[int64][]airecog.Pending)
	for _, p := range state.pending {
		byShow[p.ShowID] = append(byShow[p.ShowID], p)
	}

	for _, show := range state.shows {
		pending := byShow[show.ID]
		if len(pending) == 0 {
			continue
		}

		if !t.engine.ApplyRecognitions(ctx, show, pending, results) {
			continue
		}
		if _, err := t.engine.store.SaveShow(ctx, show); err != nil {
			log.Errorw("failed to persist recognized episodes", "show", show.Path, "err", err)
			state.addError(fmt.Sprintf("show %s: %v", show.Path, err))
		}
	}
}

// cleanup prunes every tracked show of the datasources that finished their
// walks. Datasources that were unavailable are left untouched.
func (t *Task) cleanup(ctx context.Context, scanned []string, discovered *DiscoverySet, state *runState) int {
	log := logger.FromCtx(ctx)
	failures := 0

	if ctx.Err() != nil {
		return 0
	}

	for _, ds := range scanned {
		shows, err := t.engine.store.ListShows(ctx, ds)
		if err != nil {
			log.Errorw("failed to list shows for cleanup", "datasource", ds, "err", err)
			failures++
			continue
		}

		for _, show := range shows {
			if state.isUnreconciled(show.Path) {
				log.Warnw("skipping cleanup, walk did not complete for show", "show", show.Path)
				continue
			}
			if err := t.engine.Cleanup(ctx, show, discovered); err != nil {
				log.Errorw("cleanup failed", "show", show.Path, "err", err)
				state.addError(fmt.Sprintf("cleanup %s: %v", show.Path, err))
				failures++
			}
		}
	}

	return failures
}

func (t *Task) recoverPanic(ctx context.Context, state *runState, where string) {
	if r := recover(); r != nil {
		logger.FromCtx(ctx).Errorw("panic during scan", "where", where, "panic", r)
		state.addError(fmt.Sprintf("panic in %s: %v", where, r))
	}
}

func (t *Task) relToBase(abs string) (string, error) {
	rel, err := filepath.Rel(t.engine.base, abs)
	if err != nil {
		return "", err
	}
	if rel == ".." || len(rel) > 1 && rel[:2] == ".." {
		return "", fmt.Errorf("path %s outside library root %s", abs, t.engine.base)
	}
	return filepath.ToSlash(rel), nil
}
