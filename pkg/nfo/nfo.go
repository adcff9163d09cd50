// Package nfo parses the subset of Kodi-style NFO metadata the scan engine
// needs for identity resolution. Parse failures are ordinary errors; the
// engine treats any of them as "no NFO data".
package nfo

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

var ErrInvalidSeason = errors.New("season nfo has no season number")

// Show is the identity carried by a tvshow.nfo.
type Show struct {
	Title     string            `xml:"title"`
	Year      int               `xml:"year"`
	Premiered string            `xml:"premiered"`
	IDs       map[string]string `xml:"-"`
}

// Season is the metadata carried by a season.nfo.
type Season struct {
	Number int    `xml:"seasonnumber"`
	Title  string `xml:"title"`
}

// Episode is one episodedetails document. Season and Episode default to the
// unknown sentinel -1 when absent.
type Episode struct {
	Title   string
	Season  int
	Episode int
	Aired   *time.Time
}

type showDoc struct {
	XMLName   xml.Name    `xml:"tvshow"`
	Title     string      `xml:"title"`
	Year      int         `xml:"year"`
	Premiered string      `xml:"premiered"`
	IMDBID    string      `xml:"imdbid"`
	TMDBID    string      `xml:"tmdbid"`
	TVDBID    string      `xml:"tvdbid"`
	UniqueIDs []uniqueIDs `xml:"uniqueid"`
}

type seasonDoc struct {
	XMLName xml.Name `xml:"season"`
	Number  *int     `xml:"seasonnumber"`
	Title   string   `xml:"title"`
}

type episodeDoc struct {
	XMLName xml.Name `xml:"episodedetails"`
	Title   string   `xml:"title"`
	Season  *int     `xml:"season"`
	Episode *int     `xml:"episode"`
	Aired   string   `xml:"aired"`
}

type uniqueIDs struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

// ParseShow parses a tvshow.nfo document.
func ParseShow(r io.Reader) (*Show, error) {
	var doc showDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("couldn't parse show nfo: %w", err)
	}

	show := &Show{
		Title:     doc.Title,
		Year:      doc.Year,
		Premiered: doc.Premiered,
		IDs:       map[string]string{},
	}

	if doc.IMDBID != "" {
		show.IDs["imdb"] = doc.IMDBID
	}
	if doc.TMDBID != "" {
		show.IDs["tmdb"] = doc.TMDBID
	}
	if doc.TVDBID != "" {
		show.IDs["tvdb"] = doc.TVDBID
	}
	for _, id := range doc.UniqueIDs {
		if id.Type != "" && strings.TrimSpace(id.Value) != "" {
			show.IDs[strings.ToLower(id.Type)] = strings.TrimSpace(id.Value)
		}
	}

	return show, nil
}

// ParseSeason parses a season.nfo document. The season number is
// authoritative; a document without one is invalid.
func ParseSeason(r io.Reader) (int, *Season, error) {
	var doc seasonDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return 0, nil, fmt.Errorf("couldn't parse season nfo: %w", err)
	}

	if doc.Number == nil {
		return 0, nil, ErrInvalidSeason
	}

	return *doc.Number, &Season{Number: *doc.Number, Title: doc.Title}, nil
}

// ParseEpisodes parses an episode NFO. Multi-episode files carry several
// concatenated episodedetails documents in one file, so decoding loops until
// the stream is exhausted.
func ParseEpisodes(r io.Reader) ([]Episode, error) {
	decoder := xml.NewDecoder(r)

	var episodes []Episode
	for {
		var doc episodeDoc
		err := decoder.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if len(episodes) > 0 {
				// trailing garbage after at least one valid document
				break
			}
			return nil, fmt.Errorf("couldn't parse episode nfo: %w", err)
		}

		e := Episode{Title: doc.Title, Season: -1, Episode: -1}
		if doc.Season != nil {
			e.Season = *doc.Season
		}
		if doc.Episode != nil {
			e.Episode = *doc.Episode
		}
		if doc.Aired != "" {
			if d, perr := time.Parse("2006-01-02", doc.Aired); perr == nil {
				e.Aired = &d
			}
		}

		episodes = append(episodes, e)
	}

	if len(episodes) == 0 {
		return nil, errors.New("episode nfo contains no episodes")
	}

	return episodes, nil
}
