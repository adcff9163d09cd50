package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediascout/mediascout/pkg/classify"
	"github.com/mediascout/mediascout/pkg/storage"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()

	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleShow() *storage.Show {
	aired := time.Date(2020, 3, 14, 0, 0, 0, 0, time.UTC)
	return &storage.Show{
		Path:       "/mnt/tv/Foo",
		Datasource: "/mnt/tv",
		Title:      "Foo",
		Year:       2019,
		IDs:        map[string]string{"tvdb": "12345", "imdb": "tt0903747"},
		MediaFiles: []storage.MediaFile{
			{Path: "/mnt/tv/Foo/poster.jpg", Type: classify.Poster},
		},
		Seasons: []*storage.Season{
			{Number: 1, MediaFiles: []storage.MediaFile{
				{Path: "/mnt/tv/Foo/season01-poster.jpg", Type: classify.SeasonPoster},
			}},
		},
		Episodes: []*storage.Episode{
			{Season: 1, Episode: 1, Title: "Pilot", AirDate: &aired, MediaFiles: []storage.MediaFile{
				{Path: "/mnt/tv/Foo/Season 01/Foo.S01E01.mkv", Type: classify.Video, Size: 100},
				{Path: "/mnt/tv/Foo/Season 01/Foo.S01E01.nfo", Type: classify.NFO},
			}},
			{Season: storage.UnknownNumber, Episode: storage.UnknownNumber, MediaFiles: []storage.MediaFile{
				{Path: "/mnt/tv/Foo/extras/unknown.mkv", Type: classify.Video},
			}},
		},
	}
}

func TestSQLite_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	t.Run("missing show", func(t *testing.T) {
		_, err := store.GetShowByPath(ctx, "/mnt/tv/Nope")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("round trip", func(t *testing.T) {
		show := sampleShow()
		id, err := store.SaveShow(ctx, show)
		require.NoError(t, err)
		require.NotZero(t, id)

		got, err := store.GetShowByPath(ctx, "/mnt/tv/Foo")
		require.NoError(t, err)

		assert.Equal(t, id, got.ID)
		assert.Equal(t, "Foo", got.Title)
		assert.Equal(t, 2019, got.Year)
		assert.Equal(t, map[string]string{"tvdb": "12345", "imdb": "tt0903747"}, got.IDs)

		require.Len(t, got.Seasons, 1)
		require.Len(t, got.Seasons[0].MediaFiles, 1)

		require.Len(t, got.Episodes, 2)
		unknown := got.FindEpisode(storage.UnknownNumber, storage.UnknownNumber)
		require.NotNil(t, unknown)
		assert.Equal(t, 1, unknown.VideoFileCount())

		pilot := got.FindEpisode(1, 1)
		require.NotNil(t, pilot)
		assert.Equal(t, "Pilot", pilot.Title)
		require.NotNil(t, pilot.AirDate)
		assert.True(t, pilot.AirDate.Equal(time.Date(2020, 3, 14, 0, 0, 0, 0, time.UTC)))
		assert.Len(t, pilot.MediaFiles, 2)

		require.Len(t, got.MediaFiles, 1)
		assert.Equal(t, classify.Poster, got.MediaFiles[0].Type)
	})

	t.Run("resave replaces children", func(t *testing.T) {
		show, err := store.GetShowByPath(ctx, "/mnt/tv/Foo")
		require.NoError(t, err)

		show.RemoveEpisode(show.FindEpisode(storage.UnknownNumber, storage.UnknownNumber))
		show.Locked = true
		_, err = store.SaveShow(ctx, show)
		require.NoError(t, err)

		got, err := store.GetShowByPath(ctx, "/mnt/tv/Foo")
		require.NoError(t, err)
		assert.True(t, got.Locked)
		assert.Len(t, got.Episodes, 1)
	})
}

func TestSQLite_ListShows(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	foo := sampleShow()
	_, err := store.SaveShow(ctx, foo)
	require.NoError(t, err)

	bar := &storage.Show{Path: "/mnt/anime/Bar", Datasource: "/mnt/anime", Title: "Bar"}
	_, err = store.SaveShow(ctx, bar)
	require.NoError(t, err)

	t.Run("filtered by datasource", func(t *testing.T) {
		shows, err := store.ListShows(ctx, "/mnt/tv")
		require.NoError(t, err)
		require.Len(t, shows, 1)
		assert.Equal(t, "/mnt/tv/Foo", shows[0].Path)
		assert.Len(t, shows[0].Episodes, 2)
	})

	t.Run("all datasources sorted by path", func(t *testing.T) {
		shows, err := store.ListShows(ctx, "")
		require.NoError(t, err)
		require.Len(t, shows, 2)
		assert.Equal(t, "/mnt/anime/Bar", shows[0].Path)
	})
}

func TestSQLite_DeleteShow(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	show := sampleShow()
	id, err := store.SaveShow(ctx, show)
	require.NoError(t, err)

	require.NoError(t, store.DeleteShow(ctx, id))
	assert.ErrorIs(t, store.DeleteShow(ctx, id), storage.ErrNotFound)

	_, err = store.GetShowByPath(ctx, "/mnt/tv/Foo")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
