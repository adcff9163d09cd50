// Package walker discovers media files under a show root directory. It walks
// an fs.FS so scans can run against the real filesystem or test fixtures, and
// it owns the skip-folder, disc-folder and abort-marker rules that decide
// which files are eligible for classification at all.
package walker

import (
	"context"
	"io/fs"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mediascout/mediascout/pkg/classify"
	"github.com/mediascout/mediascout/pkg/logger"
)

// DiscoveredFile is a single file found during a walk. Immutable for the
// duration of a scan.
type DiscoveredFile struct {
	AbsolutePath string            `json:"absolutePath"`
	RelPath      string            `json:"relPath"`
	Size         int64             `json:"size"`
	ModTime      time.Time         `json:"modTime"`
	Type         classify.FileType `json:"type"`
	IsDisc       bool              `json:"isDisc"`
	Basename     string            `json:"basename"`
}

var (
	// system folders that are never part of a media library
	systemSkipFolders = []string{
		"$RECYCLE.BIN",
		"RECYCLER",
		"SYSTEM VOLUME INFORMATION",
		"@EADIR",
		"#RECYCLE",
		"EXTRATHUMB",
		"ADV_OBJ",
		"PLEX VERSIONS",
		"LOST.DIR",
	}

	hiddenRegex = regexp.MustCompile(`^[.][\w@]+.*`)
)

// abort markers discard a directory and everything below it. The walk still
// has to finish the directory before it knows, so collection is tentative
// per directory and purged at the post-visit step.
const (
	noMediaMarker = ".nomedia"
	noScanMarker  = ".noscan"
)

// Options configures user-controlled walk behaviour. The system skip rules
// always apply.
type Options struct {
	// SkipFolders are tried as regular expressions first; an invalid pattern
	// degrades to a case-insensitive literal substring match.
	SkipFolders []string
	// SkipPaths are absolute directory paths excluded from the walk.
	SkipPaths []string
	// SkipOnNoMedia controls whether a .nomedia file discards its directory.
	SkipOnNoMedia bool
}

// Walker walks a single show root. It is not safe for concurrent use; the
// scan task creates one per show.
type Walker struct {
	fsys     fs.FS
	base     string
	opts     Options
	counters *Counters

	skipRegexes  []*regexp.Regexp
	skipLiterals []string
}

// New creates a walker over fsys. base is the absolute path fsys is rooted
// at and is only used to report absolute paths in results.
func New(fsys fs.FS, base string, opts Options, counters *Counters) *Walker {
	w := &Walker{
		fsys:     fsys,
		base:     base,
		opts:     opts,
		counters: counters,
	}

	for _, pattern := range opts.SkipFolders {
		re, err := regexp.Compile(pattern)
		if err != nil {
			w.skipLiterals = append(w.skipLiterals, strings.ToLower(pattern))
			continue
		}
		w.skipRegexes = append(w.skipRegexes, re)
	}

	return w
}

// Walk produces every eligible file below root in deterministic sorted
// order. Directory listing errors degrade to a fallback listing strategy
// and are never fatal; only cancellation aborts the walk.
func (w *Walker) Walk(ctx context.Context, root string) ([]DiscoveredFile, error) {
	files, err := w.walkDir(ctx, root, root)
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].RelPath < files[j].RelPath
	})

	return files, nil
}

func (w *Walker) walkDir(ctx context.Context, root, dir string) ([]DiscoveredFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := logger.FromCtx(ctx)
	w.counters.DirPreVisited()

	entries, err := w.readDir(ctx, dir)
	if err != nil {
		log.Warnw("failed to list directory, skipping", "dir", dir, "err", err)
		return nil, nil
	}

	var collected []DiscoveredFile
	var purge bool

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := entry.Name()

		if entry.IsDir() {
			if w.skipDir(dir, name) {
				log.Debugw("skipping folder", "dir", path.Join(dir, name))
				continue
			}

			sub := path.Join(dir, name)
			if classify.IsDiscFolder(name) {
				collected = append(collected, w.discEntries(ctx, root, sub)...)
				continue
			}

			below, err := w.walkDir(ctx, root, sub)
			if err != nil {
				return nil, err
			}
			collected = append(collected, below...)
			continue
		}

		if w.abortMarker(name) {
			purge = true
			continue
		}

		if hiddenRegex.MatchString(name) {
			continue
		}

		w.counters.FileVisited()
		collected = append(collected, w.discovered(ctx, root, path.Join(dir, name), entry, false))
	}

	w.counters.DirPostVisited()

	// post-visit purge: an abort marker anywhere in the directory throws
	// away the whole subtree collected above
	if purge {
		log.Debugw("abort marker found, discarding directory", "dir", dir)
		return nil, nil
	}

	return collected, nil
}

// discEntries handles a disc structure folder: the folder itself becomes one
// synthetic video entry, and only NFO files and the canonical disc
// identifier are collected from below it.
func (w *Walker) discEntries(ctx context.Context, root, discDir string) []DiscoveredFile {
	log := logger.FromCtx(ctx)

	rel := w.relPath(root, discDir)
	parent := path.Base(path.Dir(discDir))
	basename, _ := classify.StripStackingMarkers(parent)

	entries := []DiscoveredFile{{
		AbsolutePath: filepath.Join(w.base, filepath.FromSlash(discDir)),
		RelPath:      rel,
		Type:         classify.Video,
		IsDisc:       true,
		Basename:     basename,
	}}

	err := fs.WalkDir(w.fsys, discDir, func(p string, d fs.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			log.Debugw("error below disc folder", "path", p, "err", err)
			return nil
		}
		if d.IsDir() {
			return nil
		}

		name := d.Name()
		if !classify.IsDiscIdentifier(name) && !strings.EqualFold(path.Ext(name), ".nfo") {
			return nil
		}

		w.counters.FileVisited()
		entries = append(entries, w.discovered(ctx, root, p, d, true))
		return nil
	})
	if err != nil {
		log.Debugw("disc folder walk aborted", "dir", discDir, "err", err)
	}

	return entries
}

func (w *Walker) discovered(ctx context.Context, root, p string, entry fs.DirEntry, isDisc bool) DiscoveredFile {
	df := DiscoveredFile{
		AbsolutePath: filepath.Join(w.base, filepath.FromSlash(p)),
		RelPath:      w.relPath(root, p),
		Type:         classify.Classify(p),
		IsDisc:       isDisc,
	}
	df.Basename, _ = classify.StripStackingMarkers(classify.NormalizeBasename(p))

	info, err := entry.Info()
	if err != nil {
		logger.FromCtx(ctx).Debugw("failed to stat file", "path", p, "err", err)
		return df
	}
	df.Size = info.Size()
	df.ModTime = info.ModTime()

	return df
}

// readDir lists a directory, falling back to a single-level chunked read
// through fs.ReadDirFile when the primary listing fails.
func (w *Walker) readDir(ctx context.Context, dir string) ([]fs.DirEntry, error) {
	entries, err := fs.ReadDir(w.fsys, dir)
	if err == nil {
		return entries, nil
	}

	logger.FromCtx(ctx).Debugw("primary directory listing failed, using fallback", "dir", dir, "err", err)

	f, oerr := w.fsys.Open(dir)
	if oerr != nil {
		return nil, err
	}
	defer f.Close()

	rdf, ok := f.(fs.ReadDirFile)
	if !ok {
		return nil, err
	}

	var all []fs.DirEntry
	for {
		chunk, rerr := rdf.ReadDir(64)
		all = append(all, chunk...)
		if rerr != nil {
			break
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Name() < all[j].Name() })
	return all, nil
}

func (w *Walker) skipDir(parent, name string) bool {
	upper := strings.ToUpper(name)
	for _, s := range systemSkipFolders {
		if upper == s {
			return true
		}
	}

	if hiddenRegex.MatchString(name) {
		return true
	}

	for _, re := range w.skipRegexes {
		if re.MatchString(name) {
			return true
		}
	}

	lower := strings.ToLower(name)
	for _, lit := range w.skipLiterals {
		if strings.Contains(lower, lit) {
			return true
		}
	}

	abs := filepath.Join(w.base, filepath.FromSlash(path.Join(parent, name)))
	for _, p := range w.opts.SkipPaths {
		if filepath.Clean(p) == abs {
			return true
		}
	}

	return false
}

func (w *Walker) abortMarker(name string) bool {
	switch strings.ToLower(name) {
	case noMediaMarker:
		return w.opts.SkipOnNoMedia
	case noScanMarker:
		return true
	}
	return false
}

func (w *Walker) relPath(root, p string) string {
	if root == "." {
		return p
	}
	return strings.TrimPrefix(p, root+"/")
}
