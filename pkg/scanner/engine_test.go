package scanner

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediascout/mediascout/pkg/airecog"
	"github.com/mediascout/mediascout/pkg/classify"
	"github.com/mediascout/mediascout/pkg/match"
	"github.com/mediascout/mediascout/pkg/storage"
	"github.com/mediascout/mediascout/pkg/storage/memory"
	"github.com/mediascout/mediascout/pkg/walker"
)

const (
	showNfo = `<tvshow><title>Foo</title><year>2019</year><uniqueid type="tvdb">12345</uniqueid></tvshow>`

	pilotNfo = `<episodedetails><title>Pilot</title><season>1</season><episode>1</episode><aired>2019-03-14</aired></episodedetails>`

	// numbers missing on purpose, the filename has to supply them
	numberlessNfo = `<episodedetails><title>Pilot</title></episodedetails>`

	doubleNfo = `<episodedetails><title>Part One</title><season>1</season><episode>3</episode></episodedetails>` +
		`<episodedetails><title>Part Two</title><season>1</season><episode>4</episode></episodedetails>`

	seasonNfo = `<season><seasonnumber>1</seasonnumber><title>The First One</title></season>`
)

func file(content string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(content)}
}

func fooLibrary() fstest.MapFS {
	return fstest.MapFS{
		"tv/Foo/tvshow.nfo":                           file(showNfo),
		"tv/Foo/poster.jpg":                           file("img"),
		"tv/Foo/Season 01/season01.nfo":               file(seasonNfo),
		"tv/Foo/Season 01/season01-poster.jpg":        file("img"),
		"tv/Foo/Season 01/Foo.S01E01.Pilot.mkv":       file("video"),
		"tv/Foo/Season 01/Foo.S01E01.Pilot.nfo":       file(pilotNfo),
		"tv/Foo/Season 01/Foo.S01E01.Pilot-thumb.jpg": file("img"),
		"tv/Foo/Season 01/Foo.S01E02.mkv":             file("video"),
	}
}

func newTestEngine(t *testing.T, fsys fstest.MapFS, opts ...EngineOption) (*Engine, *memory.Memory) {
	t.Helper()
	store := memory.New()
	return NewEngine(fsys, "/mnt", store, Config{}, opts...), store
}

func reconcile(t *testing.T, e *Engine, root string) (*storage.Show, []airecog.Pending) {
	t.Helper()
	show, pending, err := e.ReconcileShowRoot(context.Background(), "/mnt/tv", root, NewDiscoverySet())
	require.NoError(t, err)
	require.NotNil(t, show)
	return show, pending
}

func TestEngine_ReconcileShowRoot(t *testing.T) {
	t.Run("builds the full model", func(t *testing.T) {
		e, _ := newTestEngine(t, fooLibrary())
		show, pending := reconcile(t, e, "tv/Foo")

		assert.Empty(t, pending)
		assert.Equal(t, "Foo", show.Title)
		assert.Equal(t, 2019, show.Year)
		assert.Equal(t, "12345", show.IDs["tvdb"])
		assert.NotZero(t, show.ID)

		require.Len(t, show.Episodes, 2)

		pilot := show.FindEpisode(1, 1)
		require.NotNil(t, pilot)
		assert.Equal(t, "Pilot", pilot.Title)
		require.NotNil(t, pilot.AirDate)
		assert.Equal(t, 2019, pilot.AirDate.Year())
		// the video, its nfo and its thumb all grouped by basename
		assert.Len(t, pilot.MediaFiles, 3)

		second := show.FindEpisode(1, 2)
		require.NotNil(t, second)
		assert.Len(t, second.MediaFiles, 1)

		require.Len(t, show.Seasons, 1)
		season := show.Seasons[0]
		assert.Equal(t, 1, season.Number)
		assert.Equal(t, "The First One", season.Title)

		var seasonPosters int
		for _, f := range season.MediaFiles {
			if f.Type == classify.SeasonPoster {
				seasonPosters++
			}
		}
		assert.Equal(t, 1, seasonPosters)

		// the root poster belongs to the show itself
		require.Len(t, show.MediaFiles, 1)
		assert.Equal(t, classify.Poster, show.MediaFiles[0].Type)
	})

	t.Run("is idempotent", func(t *testing.T) {
		e, _ := newTestEngine(t, fooLibrary())
		first, _ := reconcile(t, e, "tv/Foo")
		second, _ := reconcile(t, e, "tv/Foo")

		assert.Equal(t, first.ID, second.ID)
		assert.Len(t, second.Episodes, len(first.Episodes))
		for i := range first.Episodes {
			assert.Len(t, second.Episodes[i].MediaFiles, len(first.Episodes[i].MediaFiles))
		}
		assert.Len(t, second.MediaFiles, len(first.MediaFiles))
	})

	t.Run("every video ends up in some episode", func(t *testing.T) {
		fsys := fooLibrary()
		fsys["tv/Foo/extras/unknowable.mkv"] = file("video")
		e, _ := newTestEngine(t, fsys)

		show, pending := reconcile(t, e, "tv/Foo")
		require.Len(t, show.Episodes, 3)

		unknown := show.FindEpisode(storage.UnknownNumber, storage.UnknownNumber)
		require.NotNil(t, unknown)
		assert.Equal(t, 1, unknown.VideoFileCount())

		require.Len(t, pending, 1)
		assert.Equal(t, "extras/unknowable.mkv", pending[0].RelPath)
		assert.Equal(t, show.ID, pending[0].ShowID)
	})

	t.Run("missing root is unavailable", func(t *testing.T) {
		e, _ := newTestEngine(t, fooLibrary())
		_, _, err := e.ReconcileShowRoot(context.Background(), "/mnt/tv", "tv/Gone", NewDiscoverySet())
		assert.ErrorIs(t, err, ErrShowUnavailable)
	})
}

func TestEngine_NfoPrecedence(t *testing.T) {
	t.Run("nfo numbers beat the filename", func(t *testing.T) {
		fsys := fstest.MapFS{
			"tv/Foo/tvshow.nfo": file(showNfo),
			// filename says E05, the nfo says E01 and wins
			"tv/Foo/Foo.S01E05.mkv": file("video"),
			"tv/Foo/Foo.S01E05.nfo": file(pilotNfo),
		}
		e, _ := newTestEngine(t, fsys)
		show, _ := reconcile(t, e, "tv/Foo")

		require.Len(t, show.Episodes, 1)
		assert.NotNil(t, show.FindEpisode(1, 1))
		assert.Nil(t, show.FindEpisode(1, 5))
	})

	t.Run("numberless nfo is backfilled from the filename", func(t *testing.T) {
		fsys := fstest.MapFS{
			"tv/Foo/tvshow.nfo":            file(showNfo),
			"tv/Foo/Foo.S01E01.Pilot.mkv":  file("video"),
			"tv/Foo/Foo.S01E01.Pilot.nfo":  file(numberlessNfo),
		}
		e, _ := newTestEngine(t, fsys)
		show, pending := reconcile(t, e, "tv/Foo")

		assert.Empty(t, pending)
		require.Len(t, show.Episodes, 1)
		ep := show.FindEpisode(1, 1)
		require.NotNil(t, ep)
		assert.Equal(t, "Pilot", ep.Title)
	})

	t.Run("multi-episode nfo creates one record per number", func(t *testing.T) {
		fsys := fstest.MapFS{
			"tv/Foo/tvshow.nfo":              file(showNfo),
			"tv/Foo/Foo.S01E03-E04.mkv":      file("video"),
			"tv/Foo/Foo.S01E03-E04.nfo":      file(doubleNfo),
		}
		e, _ := newTestEngine(t, fsys)
		show, _ := reconcile(t, e, "tv/Foo")

		require.Len(t, show.Episodes, 2)
		three := show.FindEpisode(1, 3)
		four := show.FindEpisode(1, 4)
		require.NotNil(t, three)
		require.NotNil(t, four)
		assert.True(t, three.MultiEpisode)
		assert.True(t, four.MultiEpisode)
		assert.Equal(t, "Part One", three.Title)
		assert.Equal(t, "Part Two", four.Title)

		// both records share the same video file
		mainThree, _ := three.MainVideoFile()
		mainFour, _ := four.MainVideoFile()
		assert.Equal(t, mainThree.Path, mainFour.Path)
	})
}

func TestEngine_Stacking(t *testing.T) {
	t.Run("stacked parts merge into one episode", func(t *testing.T) {
		fsys := fstest.MapFS{
			"tv/Foo/tvshow.nfo":            file(showNfo),
			"tv/Foo/Foo.S01E01.cd1.mkv":    file("video"),
			"tv/Foo/Foo.S01E01.cd2.mkv":    file("video"),
		}
		e, _ := newTestEngine(t, fsys)
		show, _ := reconcile(t, e, "tv/Foo")

		require.Len(t, show.Episodes, 1)
		ep := show.FindEpisode(1, 1)
		require.NotNil(t, ep)
		assert.Equal(t, 2, ep.VideoFileCount())
		assert.True(t, ep.Stacked)

		main, ok := ep.MainVideoFile()
		require.True(t, ok)
		assert.Contains(t, main.Path, "cd1")
	})

	t.Run("merge holds across two sequential scans", func(t *testing.T) {
		fsys := fstest.MapFS{
			"tv/Foo/tvshow.nfo":         file(showNfo),
			"tv/Foo/Foo.S01E01.cd1.mkv": file("video"),
		}
		e, _ := newTestEngine(t, fsys)
		show, _ := reconcile(t, e, "tv/Foo")
		require.Len(t, show.Episodes, 1)
		assert.False(t, show.Episodes[0].Stacked)

		// the second part appears between scans
		fsys["tv/Foo/Foo.S01E01.cd2.mkv"] = file("video")
		show, _ = reconcile(t, e, "tv/Foo")

		require.Len(t, show.Episodes, 1)
		assert.Equal(t, 2, show.Episodes[0].VideoFileCount())
		assert.True(t, show.Episodes[0].Stacked)
	})
}

func TestEngine_DiscFolders(t *testing.T) {
	fsys := fstest.MapFS{
		"tv/Foo/tvshow.nfo":                            file(showNfo),
		"tv/Foo/Foo.S01E01/BDMV/index.bdmv":            file("disc"),
		"tv/Foo/Foo.S01E01/BDMV/STREAM/00000.m2ts":     file("video"),
		"tv/Foo/Foo.S01E01/Foo.S01E01.nfo":             file(pilotNfo),
	}
	e, _ := newTestEngine(t, fsys)
	show, _ := reconcile(t, e, "tv/Foo")

	require.Len(t, show.Episodes, 1)
	ep := show.FindEpisode(1, 1)
	require.NotNil(t, ep)

	main, ok := ep.MainVideoFile()
	require.True(t, ok)
	assert.Equal(t, "/mnt/tv/Foo/Foo.S01E01/BDMV", main.Path)

	// stream internals never become media files
	for _, f := range ep.MediaFiles {
		assert.NotContains(t, f.Path, "STREAM")
	}
}

func TestEngine_ApplyRecognitions(t *testing.T) {
	newShow := func() (*storage.Show, airecog.Pending) {
		ep := &storage.Episode{
			Season:  storage.UnknownNumber,
			Episode: storage.UnknownNumber,
			MediaFiles: []storage.MediaFile{
				{Path: "/mnt/tv/Foo/weird name.mkv", Type: classify.Video},
			},
		}
		show := &storage.Show{ID: 7, Title: "Foo", Path: "/mnt/tv/Foo", Episodes: []*storage.Episode{ep}}
		p := airecog.Pending{ShowID: 7, ShowTitle: "Foo", RelPath: "weird name.mkv", VideoPath: "/mnt/tv/Foo/weird name.mkv"}
		return show, p
	}

	e, _ := newTestEngine(t, fstest.MapFS{})

	t.Run("upgrades the fallback episode", func(t *testing.T) {
		show, p := newShow()
		results := map[string]match.Result{
			p.StableID(): {Season: 2, Episodes: []int{7}, Title: "The Weird One", Confidence: match.ConfidenceAI},
		}

		assert.True(t, e.ApplyRecognitions(context.Background(), show, []airecog.Pending{p}, results))
		require.Len(t, show.Episodes, 1)
		ep := show.FindEpisode(2, 7)
		require.NotNil(t, ep)
		assert.Equal(t, "The Weird One", ep.Title)
	})

	t.Run("missing result keeps the sentinel", func(t *testing.T) {
		show, p := newShow()
		assert.False(t, e.ApplyRecognitions(context.Background(), show, []airecog.Pending{p}, nil))
		assert.NotNil(t, show.FindEpisode(storage.UnknownNumber, storage.UnknownNumber))
	})

	t.Run("merges into an existing episode", func(t *testing.T) {
		show, p := newShow()
		existing := &storage.Episode{
			Season: 2, Episode: 7,
			MediaFiles: []storage.MediaFile{{Path: "/mnt/tv/Foo/Foo.S02E07.mkv", Type: classify.Video}},
		}
		show.AddEpisode(existing)

		results := map[string]match.Result{
			p.StableID(): {Season: 2, Episodes: []int{7}, Confidence: match.ConfidenceAI},
		}

		assert.True(t, e.ApplyRecognitions(context.Background(), show, []airecog.Pending{p}, results))
		require.Len(t, show.Episodes, 1)
		assert.Equal(t, 2, show.Episodes[0].VideoFileCount())
	})
}

type recordingImages struct {
	invalidated []string
	stored      []string
}

func (r *recordingImages) Put(ctx context.Context, sourcePath string, data []byte) error {
	r.stored = append(r.stored, sourcePath)
	return nil
}

func (r *recordingImages) Invalidate(ctx context.Context, sourcePath string) error {
	r.invalidated = append(r.invalidated, sourcePath)
	return nil
}

func TestEngine_Cleanup(t *testing.T) {
	ctx := context.Background()

	t.Run("locked shows are never touched", func(t *testing.T) {
		e, store := newTestEngine(t, fooLibrary())
		show, _ := reconcile(t, e, "tv/Foo")

		show.Locked = true
		_, err := store.SaveShow(ctx, show)
		require.NoError(t, err)

		// an empty discovery set would otherwise prune everything
		require.NoError(t, e.Cleanup(ctx, show, NewDiscoverySet()))

		got, err := store.GetShowByPath(ctx, "/mnt/tv/Foo")
		require.NoError(t, err)
		assert.Len(t, got.Episodes, 2)
	})

	t.Run("prunes vanished files and empty episodes", func(t *testing.T) {
		fsys := fooLibrary()
		images := &recordingImages{}
		e, store := newTestEngine(t, fsys, WithImageCache(images))

		discovered := NewDiscoverySet()
		show, _, err := e.ReconcileShowRoot(ctx, "/mnt/tv", "tv/Foo", discovered)
		require.NoError(t, err)

		// E02's video and the pilot's thumb vanish before the next scan
		delete(fsys, "tv/Foo/Season 01/Foo.S01E02.mkv")
		delete(fsys, "tv/Foo/Season 01/Foo.S01E01.Pilot-thumb.jpg")

		discovered = NewDiscoverySet()
		show, _, err = e.ReconcileShowRoot(ctx, "/mnt/tv", "tv/Foo", discovered)
		require.NoError(t, err)
		require.NoError(t, e.Cleanup(ctx, show, discovered))

		got, err := store.GetShowByPath(ctx, "/mnt/tv/Foo")
		require.NoError(t, err)

		assert.Nil(t, got.FindEpisode(1, 2))
		pilot := got.FindEpisode(1, 1)
		require.NotNil(t, pilot)
		assert.Len(t, pilot.MediaFiles, 2)
		assert.Contains(t, images.invalidated, "/mnt/tv/Foo/Season 01/Foo.S01E01.Pilot-thumb.jpg")
	})

	t.Run("removes shows gone from disk", func(t *testing.T) {
		fsys := fooLibrary()
		e, store := newTestEngine(t, fsys)

		show, _ := reconcile(t, e, "tv/Foo")

		for p := range fsys {
			delete(fsys, p)
		}

		require.NoError(t, e.Cleanup(ctx, show, NewDiscoverySet()))
		_, err := store.GetShowByPath(ctx, "/mnt/tv/Foo")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestEngine_AssignRemainderAmbiguity(t *testing.T) {
	e, _ := newTestEngine(t, fstest.MapFS{})

	show := &storage.Show{Title: "Foo", Path: "/mnt/tv/Foo"}
	show.AddEpisode(&storage.Episode{Season: 1, Episode: 1, MultiEpisode: true,
		MediaFiles: []storage.MediaFile{{Path: "/mnt/tv/Foo/a.mkv", Type: classify.Video}}})
	show.AddEpisode(&storage.Episode{Season: 1, Episode: 2, MultiEpisode: true,
		MediaFiles: []storage.MediaFile{{Path: "/mnt/tv/Foo/a.mkv", Type: classify.Video}}})

	files := []walker.DiscoveredFile{{
		AbsolutePath: "/mnt/tv/Foo/Foo.S01E01-E02.sample2.mkv",
		RelPath:      "Foo.S01E01-E02.sample2.mkv",
		Type:         classify.Video,
	}}

	e.assignRemainder(context.Background(), show, files)

	// tied candidates are never guessed between: the file lands on the show
	require.Len(t, show.Episodes, 2)
	require.Len(t, show.MediaFiles, 1)
	assert.Equal(t, "/mnt/tv/Foo/Foo.S01E01-E02.sample2.mkv", show.MediaFiles[0].Path)
}
