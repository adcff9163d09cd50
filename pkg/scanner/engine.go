// Package scanner reconciles what is on disk with the stored library model.
// The engine walks one show root at a time through a fixed sequence of
// stages; a bounded worker pool in Task fans it out across shows.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/mediascout/mediascout/pkg/airecog"
	"github.com/mediascout/mediascout/pkg/classify"
	"github.com/mediascout/mediascout/pkg/logger"
	"github.com/mediascout/mediascout/pkg/machine"
	"github.com/mediascout/mediascout/pkg/match"
	"github.com/mediascout/mediascout/pkg/nfo"
	"github.com/mediascout/mediascout/pkg/storage"
	"github.com/mediascout/mediascout/pkg/walker"
)

var (
	// ErrShowUnavailable marks a show root that is missing or empty in a way
	// that cannot be told apart from an unmounted datasource.
	ErrShowUnavailable = errors.New("show directory missing or empty")
	// ErrAmbiguousMatch marks a file matching more than one episode. The
	// engine never guesses between tied candidates.
	ErrAmbiguousMatch = errors.New("file matches multiple episodes")
)

// Config carries per-scan behaviour knobs.
type Config struct {
	Walk           walker.Options
	ExtractArtwork bool
}

// NfoParser reads metadata sidecars. Paths are relative to the engine's
// filesystem root. Parse failures are treated as "no NFO data", never fatal.
type NfoParser interface {
	ParseShow(ctx context.Context, path string) (*nfo.Show, error)
	ParseSeason(ctx context.Context, path string) (int, *nfo.Season, error)
	ParseEpisodes(ctx context.Context, path string) ([]nfo.Episode, error)
}

// ImageCache stores processed artwork keyed by source path.
type ImageCache interface {
	Put(ctx context.Context, sourcePath string, data []byte) error
	Invalidate(ctx context.Context, sourcePath string) error
}

// Artwork is what an extractor recovered from an embedded-metadata sidecar.
type Artwork struct {
	Thumb  []byte
	Poster []byte
	Fanart []byte
}

// ArtworkExtractor pulls embedded artwork out of a .vsmeta sidecar.
type ArtworkExtractor interface {
	Extract(ctx context.Context, path string) (Artwork, error)
}

// MediaInfoGatherer runs the trailing technical-metadata pass over a show.
type MediaInfoGatherer interface {
	Gather(ctx context.Context, show *storage.Show) error
}

type stage string

const (
	stageWalk      stage = "walk"
	stageIdentify  stage = "identify"
	stageSeasonNfo stage = "season-nfo"
	stageMatch     stage = "group-and-match"
	stageAssign    stage = "assign-remainder"
	stageStacking  stage = "stacking"
	stageArtwork   stage = "artwork"
	stagePersist   stage = "persist"
)

// newStageMachine enforces that reconciliation stages run in order; no stage
// starts before the previous stage's writes are visible.
func newStageMachine() *machine.StateMachine[stage] {
	return machine.New(stageWalk,
		machine.From(stageWalk).To(stageIdentify),
		machine.From(stageIdentify).To(stageSeasonNfo),
		machine.From(stageSeasonNfo).To(stageMatch),
		machine.From(stageMatch).To(stageAssign),
		machine.From(stageAssign).To(stageStacking),
		machine.From(stageStacking).To(stageArtwork),
		machine.From(stageArtwork).To(stagePersist),
	)
}

type Engine struct {
	fsys     fs.FS
	base     string
	store    storage.Storage
	cfg      Config
	nfos     NfoParser
	images   ImageCache
	artwork  ArtworkExtractor
	counters *walker.Counters
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithNfoParser overrides the sidecar parser.
func WithNfoParser(p NfoParser) EngineOption {
	return func(e *Engine) {
		e.nfos = p
	}
}

// WithImageCache sets the artwork cache invalidated during cleanup.
func WithImageCache(c ImageCache) EngineOption {
	return func(e *Engine) {
		e.images = c
	}
}

// WithArtworkExtractor enables the embedded-artwork backfill stage.
func WithArtworkExtractor(x ArtworkExtractor) EngineOption {
	return func(e *Engine) {
		e.artwork = x
	}
}

// WithCounters shares walk counters with the caller.
func WithCounters(c *walker.Counters) EngineOption {
	return func(e *Engine) {
		e.counters = c
	}
}

// NewEngine creates a reconciliation engine over fsys. base is the absolute
// path fsys is rooted at; stored paths are absolute.
func NewEngine(fsys fs.FS, base string, store storage.Storage, cfg Config, opts ...EngineOption) *Engine {
	e := &Engine{
		fsys:     fsys,
		base:     base,
		store:    store,
		cfg:      cfg,
		nfos:     fsNfoParser{fsys: fsys},
		images:   noopImages{},
		counters: &walker.Counters{},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// ReconcileShowRoot runs the per-show stages over one show directory and
// persists the result. root is relative to the engine's filesystem root.
// Returned pending items are video files heuristics could not resolve; they
// already have fallback episodes, recognition only improves them.
func (e *Engine) ReconcileShowRoot(ctx context.Context, datasource, root string, discovered *DiscoverySet) (*storage.Show, []airecog.Pending, error) {
	log := logger.FromCtx(ctx).With("show_root", root)
	stages := newStageMachine()

	w := walker.New(e.fsys, e.base, e.cfg.Walk, e.counters)
	files, err := w.Walk(ctx, root)
	if err != nil {
		return nil, nil, err
	}

	if len(files) == 0 {
		// an empty result can mean an unmounted disk rather than a truly
		// empty folder, so re-check the directory before flagging it
		entries, readErr := fs.ReadDir(e.fsys, root)
		if readErr != nil || len(entries) == 0 {
			return nil, nil, fmt.Errorf("%w: %s", ErrShowUnavailable, root)
		}
		log.Debug("no eligible files under show root, leaving model untouched")
		return nil, nil, nil
	}

	discovered.Add(files...)

	absRoot := filepath.Join(e.base, filepath.FromSlash(root))
	show, err := e.store.GetShowByPath(ctx, absRoot)
	if errors.Is(err, storage.ErrNotFound) {
		show = &storage.Show{Path: absRoot, Datasource: datasource, IDs: map[string]string{}}
		err = nil
	}
	if err != nil {
		return nil, nil, err
	}

	if err := stages.Transition(stageIdentify); err != nil {
		return nil, nil, err
	}
	e.identifyShow(ctx, root, show, files)

	if err := stages.Transition(stageSeasonNfo); err != nil {
		return nil, nil, err
	}
	e.applySeasonNfos(ctx, root, show, files)

	if err := stages.Transition(stageMatch); err != nil {
		return nil, nil, err
	}
	pending := e.groupAndMatch(ctx, root, show, files)

	if err := stages.Transition(stageAssign); err != nil {
		return nil, nil, err
	}
	e.assignRemainder(ctx, show, files)

	if err := stages.Transition(stageStacking); err != nil {
		return nil, nil, err
	}
	reevaluateStacking(show)

	if err := stages.Transition(stageArtwork); err != nil {
		return nil, nil, err
	}
	if e.cfg.ExtractArtwork && e.artwork != nil {
		e.backfillArtwork(ctx, root, show, files)
	}

	if err := stages.Transition(stagePersist); err != nil {
		return nil, nil, err
	}
	// a cancelled show is abandoned whole rather than half-persisted
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if _, err := e.store.SaveShow(ctx, show); err != nil {
		return nil, nil, err
	}

	for i := range pending {
		pending[i].ShowID = show.ID
	}

	return show, pending, nil
}

// identifyShow fills in identity for shows not seen before: a root tvshow.nfo
// first, the folder name second, and id patterns inside any root NFO last.
func (e *Engine) identifyShow(ctx context.Context, root string, show *storage.Show, files []walker.DiscoveredFile) {
	if show.ID != 0 {
		return
	}

	log := logger.FromCtx(ctx)
	if show.IDs == nil {
		show.IDs = map[string]string{}
	}

	var rootNfos []walker.DiscoveredFile
	for _, f := range files {
		if f.Type == classify.NFO && path.Dir(f.RelPath) == "." {
			rootNfos = append(rootNfos, f)
		}
	}

	for _, f := range rootNfos {
		if !strings.EqualFold(path.Base(f.RelPath), "tvshow.nfo") {
			continue
		}
		parsed, err := e.nfos.ParseShow(ctx, path.Join(root, f.RelPath))
		if err != nil {
			log.Debugw("unreadable show nfo", "path", f.RelPath, "err", err)
			continue
		}
		show.Title = parsed.Title
		show.Year = parsed.Year
		for k, v := range parsed.IDs {
			show.IDs[k] = v
		}
		break
	}

	if show.Title == "" {
		show.Title, show.Year = match.ParseTitleYear(path.Base(root))
	}

	if len(show.IDs) == 0 {
		for _, f := range rootNfos {
			content, err := fs.ReadFile(e.fsys, path.Join(root, f.RelPath))
			if err != nil {
				continue
			}
			for k, v := range match.ScanForIDs(string(content)) {
				show.IDs[k] = v
			}
		}
	}
}

var seasonNumberRegex = regexp.MustCompile(`(?i)season[-._ ]?(\d{1,4})`)

// applySeasonNfos merges season sidecars. The NFO's own season number is
// authoritative; one without a number is invalid and ignored.
func (e *Engine) applySeasonNfos(ctx context.Context, root string, show *storage.Show, files []walker.DiscoveredFile) {
	log := logger.FromCtx(ctx)

	for _, f := range files {
		if f.Type != classify.NFO {
			continue
		}
		base := strings.ToLower(path.Base(f.RelPath))
		if !strings.HasPrefix(base, "season") {
			continue
		}

		number, parsed, err := e.nfos.ParseSeason(ctx, path.Join(root, f.RelPath))
		if err != nil {
			log.Debugw("ignoring season nfo", "path", f.RelPath, "err", err)
			continue
		}

		season := show.SeasonFor(number)
		if parsed.Title != "" {
			season.Title = parsed.Title
		}
		season.AddMediaFile(mediaFile(f))
	}
}

// groupAndMatch creates or merges an Episode for every video file. Videos
// arrive in sorted path order, so the first file claiming an episode number
// wins and later files must re-check rather than assume the same identity.
func (e *Engine) groupAndMatch(ctx context.Context, root string, show *storage.Show, files []walker.DiscoveredFile) []airecog.Pending {
	var pending []airecog.Pending

	byDirBase := make(map[string][]walker.DiscoveredFile)
	for _, f := range files {
		if f.Type == classify.Video {
			continue
		}
		byDirBase[path.Dir(f.RelPath)+"\x00"+f.Basename] = append(byDirBase[path.Dir(f.RelPath)+"\x00"+f.Basename], f)
	}

	discSeen := make(map[string]bool)

	for _, f := range files {
		if f.Type != classify.Video {
			continue
		}
		if err := ctx.Err(); err != nil {
			return pending
		}

		var siblings []walker.DiscoveredFile
		if f.IsDisc {
			// one disc root becomes exactly one episode per scan
			if discSeen[f.RelPath] {
				continue
			}
			discSeen[f.RelPath] = true
			siblings = discSiblings(files, f)
		} else {
			siblings = byDirBase[path.Dir(f.RelPath)+"\x00"+f.Basename]
		}

		if ep := show.EpisodeByVideoPath(f.AbsolutePath); ep != nil {
			// already tracked: only newly discovered sidecars are appended
			for _, s := range siblings {
				ep.AddMediaFile(mediaFile(s))
			}
			continue
		}

		results := e.resolve(ctx, root, show, f, siblings)
		if len(results) == 0 {
			// unknown episodes are kept, not dropped; recognition may still
			// upgrade this one later
			fallback := &storage.Episode{Season: storage.UnknownNumber, Episode: storage.UnknownNumber}
			if r := match.Detect(f.RelPath, show.Title); r.Title != "" {
				fallback.Title = r.Title
			}
			attachFiles(fallback, f, siblings)
			show.AddEpisode(fallback)

			pending = append(pending, airecog.Pending{
				ShowID:    show.ID,
				ShowTitle: show.Title,
				RelPath:   f.RelPath,
				VideoPath: f.AbsolutePath,
			})
			continue
		}

		e.createEpisodes(ctx, show, f, siblings, results)
	}

	return pending
}

// resolve determines episode identity for one video file. NFO-derived
// numbers take precedence over filename heuristics, except when every NFO
// number is unknown, in which case heuristics backfill them first.
func (e *Engine) resolve(ctx context.Context, root string, show *storage.Show, f walker.DiscoveredFile, siblings []walker.DiscoveredFile) []match.Result {
	log := logger.FromCtx(ctx)

	for _, s := range siblings {
		if s.Type != classify.NFO {
			continue
		}

		episodes, err := e.nfos.ParseEpisodes(ctx, path.Join(root, s.RelPath))
		if err != nil {
			log.Debugw("unreadable episode nfo", "path", s.RelPath, "err", err)
			continue
		}

		allUnknown := true
		for _, ep := range episodes {
			if ep.Episode != storage.UnknownNumber {
				allUnknown = false
				break
			}
		}

		if allUnknown {
			heur := match.Detect(f.RelPath, show.Title)
			if heur.Resolved() {
				for i := range episodes {
					if i < len(heur.Episodes) {
						episodes[i].Season = heur.Season
						episodes[i].Episode = heur.Episodes[i]
					}
				}
			}
		}

		var results []match.Result
		for _, ep := range episodes {
			r := match.Result{
				Season:     ep.Season,
				Title:      ep.Title,
				AirDate:    ep.Aired,
				Confidence: match.ConfidenceNFO,
			}
			if ep.Episode != storage.UnknownNumber {
				r.Episodes = []int{ep.Episode}
			}
			results = append(results, r)
		}

		if len(results) > 0 {
			return results
		}
	}

	if r := match.Detect(f.RelPath, show.Title); r.Resolved() {
		return []match.Result{r}
	}

	return nil
}

// createEpisodes folds resolved results into the show. Stacked parts merge
// into the episode holding the matching de-stacked basename; colliding
// numbers lose to the episode created first.
func (e *Engine) createEpisodes(ctx context.Context, show *storage.Show, f walker.DiscoveredFile, siblings []walker.DiscoveredFile, results []match.Result) {
	log := logger.FromCtx(ctx)

	var records []*storage.Episode
	for _, r := range results {
		numbers := r.Episodes
		if len(numbers) == 0 {
			numbers = []int{storage.UnknownNumber}
		}

		if len(numbers) == 1 && r.Season >= 0 && r.StackingMarker {
			if existing := show.FindEpisode(r.Season, numbers[0]); existing != nil {
				if main, ok := existing.MainVideoFile(); ok && sameStackBase(main.Path, f.AbsolutePath) {
					attachFiles(existing, f, siblings)
					continue
				}
			}
		}

		multi := len(numbers) > 1 || len(results) > 1
		for _, n := range numbers {
			season := r.Season
			if season < 0 && n != storage.UnknownNumber {
				season = storage.UnknownNumber
			}

			if existing := show.FindEpisode(season, n); existing != nil && n != storage.UnknownNumber {
				log.Debugw("episode number already claimed", "season", season, "episode", n, "path", f.RelPath)
				continue
			}

			ep := &storage.Episode{
				Season:       season,
				Episode:      n,
				Title:        r.Title,
				AirDate:      r.AirDate,
				MultiEpisode: multi,
			}
			attachFiles(ep, f, siblings)
			show.AddEpisode(ep)
			records = append(records, ep)
		}
	}

	// every video file must end up represented by some episode
	if len(records) == 0 && show.EpisodeByVideoPath(f.AbsolutePath) == nil {
		ep := &storage.Episode{Season: storage.UnknownNumber, Episode: storage.UnknownNumber}
		attachFiles(ep, f, siblings)
		show.AddEpisode(ep)
	}
}

// assignRemainder finds a home for every file no episode or season claimed.
func (e *Engine) assignRemainder(ctx context.Context, show *storage.Show, files []walker.DiscoveredFile) {
	log := logger.FromCtx(ctx)
	attached := attachedPaths(show)

	for _, f := range files {
		if attached[f.AbsolutePath] {
			continue
		}

		switch {
		case classify.IsSeasonArtwork(f.Type):
			show.SeasonFor(seasonFromName(f.RelPath)).AddMediaFile(mediaFile(f))

		case f.Type == classify.Poster:
			// a poster is the show's own only when it sits in the show root
			if path.Dir(f.RelPath) == "." {
				show.AddMediaFile(mediaFile(f))
				continue
			}
			show.SeasonFor(seasonFromName(f.RelPath)).AddMediaFile(mediaFile(f))

		case f.Type == classify.Video:
			candidates := candidateEpisodes(show, f)
			if len(candidates) == 1 {
				attachFiles(candidates[0], f, nil)
				continue
			}
			if len(candidates) > 1 {
				log.Warnw("not guessing between tied episode matches", "path", f.RelPath, "candidates", len(candidates), "err", ErrAmbiguousMatch)
			}
			show.AddMediaFile(mediaFile(f))

		default:
			show.AddMediaFile(mediaFile(f))
		}
	}
}

// reevaluateStacking runs once the full file set per episode is known,
// because stacked parts can only be judged against their siblings.
func reevaluateStacking(show *storage.Show) {
	for _, ep := range show.Episodes {
		ep.Stacked = false
		if ep.VideoFileCount() < 2 {
			continue
		}

		var first string
		stacked := true
		for _, f := range ep.MediaFiles {
			if f.Type != classify.Video {
				continue
			}
			base, _ := classify.StripStackingMarkers(classify.NormalizeBasename(f.Path))
			if first == "" {
				first = base
				continue
			}
			if base != first {
				stacked = false
				break
			}
		}
		ep.Stacked = stacked
	}
}

// backfillArtwork extracts embedded artwork for episodes carrying a vsmeta
// sidecar but no thumb. Show-level poster and fanart come from the first
// episode whose extraction succeeds.
func (e *Engine) backfillArtwork(ctx context.Context, root string, show *storage.Show, files []walker.DiscoveredFile) {
	log := logger.FromCtx(ctx)

	vsmeta := make(map[string]walker.DiscoveredFile)
	for _, f := range files {
		if f.Type == classify.VSMeta {
			vsmeta[f.AbsolutePath] = f
		}
	}
	if len(vsmeta) == 0 {
		return
	}

	showBackfilled := false
	for _, ep := range show.Episodes {
		main, ok := ep.MainVideoFile()
		if !ok {
			continue
		}
		sidecar, ok := vsmeta[main.Path+".vsmeta"]
		if !ok || hasThumb(ep) {
			continue
		}

		art, err := e.artwork.Extract(ctx, path.Join(root, sidecar.RelPath))
		if err != nil {
			log.Debugw("vsmeta extraction failed", "path", sidecar.RelPath, "err", err)
			continue
		}

		if len(art.Thumb) > 0 {
			if err := e.images.Put(ctx, main.Path+"#thumb", art.Thumb); err != nil {
				log.Warnw("could not cache extracted thumb", "path", main.Path, "err", err)
			}
		}

		if showBackfilled {
			continue
		}
		if len(art.Poster) > 0 {
			if err := e.images.Put(ctx, show.Path+"#poster", art.Poster); err == nil {
				showBackfilled = true
			}
		}
		if len(art.Fanart) > 0 {
			if err := e.images.Put(ctx, show.Path+"#fanart", art.Fanart); err == nil {
				showBackfilled = true
			}
		}
	}
}

// ApplyRecognitions folds classifier results back into a show's fallback
// episodes. Items absent from results keep their unknown sentinel. Returns
// whether the show changed.
func (e *Engine) ApplyRecognitions(ctx context.Context, show *storage.Show, pending []airecog.Pending, results map[string]match.Result) bool {
	changed := false

	for _, p := range pending {
		r, ok := results[p.StableID()]
		if !ok || len(r.Episodes) == 0 {
			continue
		}

		ep := show.EpisodeByVideoPath(p.VideoPath)
		if ep == nil {
			continue
		}

		if existing := show.FindEpisode(r.Season, r.Episodes[0]); existing != nil && existing != ep {
			for _, f := range ep.MediaFiles {
				existing.AddMediaFile(f)
			}
			show.RemoveEpisode(ep)
			changed = true
			continue
		}

		ep.Season = r.Season
		ep.Episode = r.Episodes[0]
		if ep.Title == "" {
			ep.Title = r.Title
		}
		changed = true
	}

	return changed
}

// Cleanup prunes model entries whose files vanished from disk. Locked shows
// are never touched; their discovery set is by definition incomplete.
func (e *Engine) Cleanup(ctx context.Context, show *storage.Show, discovered *DiscoverySet) error {
	if show.Locked {
		return nil
	}

	rel, err := filepath.Rel(e.base, show.Path)
	if err != nil {
		return err
	}
	if _, err := fs.Stat(e.fsys, filepath.ToSlash(rel)); err != nil {
		logger.FromCtx(ctx).Infow("show gone from disk, removing", "path", show.Path)
		return e.store.DeleteShow(ctx, show.ID)
	}

	show.MediaFiles = e.pruneFiles(ctx, show.MediaFiles, discovered)
	for _, season := range show.Seasons {
		season.MediaFiles = e.pruneFiles(ctx, season.MediaFiles, discovered)
	}

	var kept []*storage.Episode
	for _, ep := range show.Episodes {
		ep.MediaFiles = e.pruneFiles(ctx, ep.MediaFiles, discovered)
		if ep.VideoFileCount() == 0 {
			continue
		}
		kept = append(kept, ep)
	}
	show.Episodes = kept

	_, err = e.store.SaveShow(ctx, show)
	return err
}

func (e *Engine) pruneFiles(ctx context.Context, files []storage.MediaFile, discovered *DiscoverySet) []storage.MediaFile {
	log := logger.FromCtx(ctx)

	var kept []storage.MediaFile
	for _, f := range files {
		if discovered.Contains(f.Path) {
			kept = append(kept, f)
			continue
		}

		log.Debugw("pruning vanished file", "path", f.Path)
		if classify.IsGraphic(f.Type) {
			if err := e.images.Invalidate(ctx, f.Path); err != nil {
				log.Warnw("could not invalidate cached artwork", "path", f.Path, "err", err)
			}
		}
	}

	return kept
}

func mediaFile(f walker.DiscoveredFile) storage.MediaFile {
	return storage.MediaFile{
		Path:    f.AbsolutePath,
		Type:    f.Type,
		Size:    f.Size,
		ModTime: f.ModTime,
	}
}

func attachFiles(ep *storage.Episode, video walker.DiscoveredFile, siblings []walker.DiscoveredFile) {
	ep.AddMediaFile(mediaFile(video))
	for _, s := range siblings {
		ep.AddMediaFile(mediaFile(s))
	}
}

func attachedPaths(show *storage.Show) map[string]bool {
	attached := make(map[string]bool)
	for _, f := range show.MediaFiles {
		attached[f.Path] = true
	}
	for _, season := range show.Seasons {
		for _, f := range season.MediaFiles {
			attached[f.Path] = true
		}
	}
	for _, ep := range show.Episodes {
		for _, f := range ep.MediaFiles {
			attached[f.Path] = true
		}
	}
	return attached
}

// discSiblings collects the identifier entries walked below one disc root
// plus any sidecars sitting next to it in the disc's parent folder.
func discSiblings(files []walker.DiscoveredFile, disc walker.DiscoveredFile) []walker.DiscoveredFile {
	var siblings []walker.DiscoveredFile
	prefix := disc.RelPath + "/"
	parent := path.Dir(disc.RelPath)

	for _, f := range files {
		if f.Type == classify.Video {
			continue
		}
		if f.IsDisc && strings.HasPrefix(f.RelPath, prefix) {
			siblings = append(siblings, f)
			continue
		}
		if path.Dir(f.RelPath) == parent {
			siblings = append(siblings, f)
		}
	}

	return siblings
}

func candidateEpisodes(show *storage.Show, f walker.DiscoveredFile) []*storage.Episode {
	r := match.Detect(f.RelPath, show.Title)
	if !r.Resolved() {
		return nil
	}

	var candidates []*storage.Episode
	for _, n := range r.Episodes {
		if ep := show.FindEpisode(r.Season, n); ep != nil {
			candidates = append(candidates, ep)
		}
	}
	return candidates
}

func seasonFromName(relPath string) int {
	if m := seasonNumberRegex.FindStringSubmatch(relPath); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return n
		}
	}
	if strings.Contains(strings.ToLower(relPath), "special") {
		return 0
	}
	return storage.UnknownNumber
}

func hasThumb(ep *storage.Episode) bool {
	for _, f := range ep.MediaFiles {
		if f.Type == classify.Thumb {
			return true
		}
	}
	return false
}

func sameStackBase(a, b string) bool {
	baseA, _ := classify.StripStackingMarkers(classify.NormalizeBasename(a))
	baseB, _ := classify.StripStackingMarkers(classify.NormalizeBasename(b))
	return baseA == baseB
}

type fsNfoParser struct {
	fsys fs.FS
}

func (p fsNfoParser) ParseShow(ctx context.Context, path string) (*nfo.Show, error) {
	f, err := p.fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return nfo.ParseShow(f)
}

func (p fsNfoParser) ParseSeason(ctx context.Context, path string) (int, *nfo.Season, error) {
	f, err := p.fsys.Open(path)
	if err != nil {
		return 0, nil, err
	}
	defer f.Close()
	return nfo.ParseSeason(f)
}

func (p fsNfoParser) ParseEpisodes(ctx context.Context, path string) ([]nfo.Episode, error) {
	f, err := p.fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return nfo.ParseEpisodes(f)
}

type noopImages struct{}

func (noopImages) Put(ctx context.Context, sourcePath string, data []byte) error {
	return nil
}

func (noopImages) Invalidate(ctx context.Context, sourcePath string) error {
	return nil
}
