package storage

import (
	"slices"
	"strings"
	"time"

	"github.com/mediascout/mediascout/pkg/classify"
)

// UnknownNumber is the sentinel for a season or episode number that could
// not be resolved. Unknown episodes are kept rather than dropped so every
// discovered video file stays represented.
const UnknownNumber = -1

// MediaFile is one file on disk owned by a show, season or episode.
type MediaFile struct {
	Path    string
	Type    classify.FileType
	Size    int64
	ModTime time.Time
}

// Show is the aggregate root for one series directory in a datasource.
type Show struct {
	ID         int64
	Path       string
	Datasource string
	Title      string
	Year       int
	IDs        map[string]string
	Locked     bool
	Seasons    []*Season
	Episodes   []*Episode
	MediaFiles []MediaFile
}

// Season groups season-level artwork. Episode membership is derived from
// Episode.Season, not stored here.
type Season struct {
	Number     int
	Title      string
	MediaFiles []MediaFile
}

// Episode is one logical episode. A multi-episode file produces one Episode
// per number, each sharing the same video MediaFile.
type Episode struct {
	ID           int64
	Season       int
	Episode      int
	Title        string
	AirDate      *time.Time
	MultiEpisode bool
	Stacked      bool
	MediaFiles   []MediaFile
}

// FindEpisode returns the episode with the given season and number, or nil.
func (s *Show) FindEpisode(season, number int) *Episode {
	for _, e := range s.Episodes {
		if e.Season == season && e.Episode == number {
			return e
		}
	}
	return nil
}

// EpisodeByVideoPath returns the episode owning a video file at path, or nil.
func (s *Show) EpisodeByVideoPath(path string) *Episode {
	for _, e := range s.Episodes {
		for _, f := range e.MediaFiles {
			if f.Path == path && f.Type == classify.Video {
				return e
			}
		}
	}
	return nil
}

// AddEpisode appends an episode to the show.
func (s *Show) AddEpisode(e *Episode) {
	s.Episodes = append(s.Episodes, e)
}

// RemoveEpisode removes an episode by identity.
func (s *Show) RemoveEpisode(e *Episode) {
	s.Episodes = slices.DeleteFunc(s.Episodes, func(other *Episode) bool {
		return other == e
	})
}

// SeasonFor returns the season with the given number, creating it when the
// show doesn't track it yet.
func (s *Show) SeasonFor(number int) *Season {
	for _, season := range s.Seasons {
		if season.Number == number {
			return season
		}
	}

	season := &Season{Number: number}
	s.Seasons = append(s.Seasons, season)
	return season
}

// AddMediaFile attaches a file to the show itself, skipping paths already
// tracked.
func (s *Show) AddMediaFile(f MediaFile) {
	s.MediaFiles = addFile(s.MediaFiles, f)
}

// AddMediaFile attaches a file to the season, skipping paths already tracked.
func (s *Season) AddMediaFile(f MediaFile) {
	s.MediaFiles = addFile(s.MediaFiles, f)
}

// AddMediaFile attaches a file to the episode, skipping paths already
// tracked.
func (e *Episode) AddMediaFile(f MediaFile) {
	e.MediaFiles = addFile(e.MediaFiles, f)
}

func addFile(files []MediaFile, f MediaFile) []MediaFile {
	for _, existing := range files {
		if existing.Path == f.Path {
			return files
		}
	}
	return append(files, f)
}

// MainVideoFile returns the episode's first video file in path order. For
// stacked episodes this is the first part.
func (e *Episode) MainVideoFile() (MediaFile, bool) {
	var videos []MediaFile
	for _, f := range e.MediaFiles {
		if f.Type == classify.Video {
			videos = append(videos, f)
		}
	}
	if len(videos) == 0 {
		return MediaFile{}, false
	}

	slices.SortFunc(videos, func(a, b MediaFile) int {
		return strings.Compare(a.Path, b.Path)
	})
	return videos[0], true
}

// VideoFileCount returns the number of video files the episode owns.
func (e *Episode) VideoFileCount() int {
	count := 0
	for _, f := range e.MediaFiles {
		if f.Type == classify.Video {
			count++
		}
	}
	return count
}

// Clone deep-copies the aggregate so callers can mutate a working copy
// without aliasing stored state.
func (s *Show) Clone() *Show {
	out := *s

	if s.IDs != nil {
		out.IDs = make(map[string]string, len(s.IDs))
		for k, v := range s.IDs {
			out.IDs[k] = v
		}
	}

	out.MediaFiles = slices.Clone(s.MediaFiles)

	out.Seasons = make([]*Season, len(s.Seasons))
	for i, season := range s.Seasons {
		cp := *season
		cp.MediaFiles = slices.Clone(season.MediaFiles)
		out.Seasons[i] = &cp
	}

	out.Episodes = make([]*Episode, len(s.Episodes))
	for i, e := range s.Episodes {
		cp := *e
		if e.AirDate != nil {
			aired := *e.AirDate
			cp.AirDate = &aired
		}
		cp.MediaFiles = slices.Clone(e.MediaFiles)
		out.Episodes[i] = &cp
	}

	return &out
}
