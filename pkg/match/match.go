// Package match extracts season and episode numbers from file paths. It is
// pure string heuristics with no I/O; callers decide what to do with an
// unresolved result.
package match

import (
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mediascout/mediascout/pkg/classify"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Confidence records which mechanism produced a result.
type Confidence string

const (
	ConfidenceNFO        Confidence = "nfo"
	ConfidenceFilename   Confidence = "filename"
	ConfidenceAI         Confidence = "ai"
	ConfidenceUnresolved Confidence = "unresolved"
)

// Result is the outcome of detection. Season -1 and an empty Episodes slice
// both mean unknown.
type Result struct {
	Season         int
	Episodes       []int
	Title          string
	AirDate        *time.Time
	StackingMarker bool
	Confidence     Confidence
}

// Resolved reports whether the result carries a usable season and at least
// one episode number.
func (r Result) Resolved() bool {
	return r.Season >= 0 && len(r.Episodes) > 0
}

// Unresolved is the sentinel result for a failed detection.
func Unresolved() Result {
	return Result{Season: -1, Confidence: ConfidenceUnresolved}
}

var (
	seasonEpisodeRegex = regexp.MustCompile(`(?i)s(\d{1,4})[ ._-]*e(\d{1,4})((?:[ ._-]*-?[ ._-]*e\d{1,4})*)`)
	episodeTokenRegex  = regexp.MustCompile(`(?i)e(\d{1,4})`)
	altFormatRegex     = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{1,3})\b`)
	dateRegex          = regexp.MustCompile(`\b(\d{4})[._ -](\d{2})[._ -](\d{2})\b`)
	seasonFolderRegex  = regexp.MustCompile(`(?i)^(?:season|staffel|series)[ ._-]*(\d{1,4})$|^s(\d{1,4})$`)
	specialsFolderRe   = regexp.MustCompile(`(?i)^specials?$`)
	episodeOnlyRegex   = regexp.MustCompile(`(?i)\b(?:ep?|episode|folge)[ ._-]*(\d{1,3})\b`)
	leadingNumberRegex = regexp.MustCompile(`^(\d{1,3})\b`)
	yearRegex          = regexp.MustCompile(`\((\d{4})\)`)
	trailingYearRegex  = regexp.MustCompile(`\b((?:19|20)\d{2})\b[^\d]*$`)

	imdbIDRegex = regexp.MustCompile(`tt\d{5,9}`)
	tmdbIDRegex = regexp.MustCompile(`(?i)(?:themoviedb\.org/(?:tv|movie)/|tmdbid[^\d]{0,4})(\d+)`)
	tvdbIDRegex = regexp.MustCompile(`(?i)(?:thetvdb\.com[^\d]*?(?:id=|series/)|tvdbid[^\d]{0,4})(\d+)`)

	separatorReplacer = strings.NewReplacer(".", " ", "_", " ", "-", " ")

	titleCaser = cases.Title(language.English)
)

// Detect attempts to extract season and episode numbers from a path relative
// to the show root. The show title, when known, is removed from the name
// before matching so titles containing numbers don't confuse detection.
func Detect(relPath, showTitle string) Result {
	name := path.Base(relPath)
	name = strings.TrimSuffix(name, path.Ext(name))

	stripped, stacking := classify.StripStackingMarkers(name)
	name = stripped

	if showTitle != "" {
		name = removeFold(name, showTitle)
	}

	result := Result{Season: -1, StackingMarker: stacking, Confidence: ConfidenceFilename}

	if m := seasonEpisodeRegex.FindStringSubmatch(name); m != nil {
		result.Season = mustAtoi(m[1])
		result.Episodes = []int{mustAtoi(m[2])}
		for _, tok := range episodeTokenRegex.FindAllStringSubmatch(m[3], -1) {
			result.Episodes = appendEpisode(result.Episodes, mustAtoi(tok[1]))
		}
		result.Title = cleanTitle(name[strings.Index(name, m[0])+len(m[0]):])
		return result
	}

	if m := altFormatRegex.FindStringSubmatch(name); m != nil {
		result.Season = mustAtoi(m[1])
		result.Episodes = []int{mustAtoi(m[2])}
		result.Title = cleanTitle(name[strings.Index(name, m[0])+len(m[0]):])
		return result
	}

	// air date naming, e.g. Show.2021.04.05.mkv
	if m := dateRegex.FindStringSubmatch(name); m != nil {
		if d, err := time.Parse("2006-01-02", m[1]+"-"+m[2]+"-"+m[3]); err == nil {
			result.AirDate = &d
		}
	}

	// season from the parent folder, episode number from the file name
	season := seasonFromFolder(relPath)
	if season >= 0 {
		result.Season = season
		if m := episodeOnlyRegex.FindStringSubmatch(name); m != nil {
			result.Episodes = []int{mustAtoi(m[1])}
			return result
		}
		if m := leadingNumberRegex.FindStringSubmatch(strings.TrimSpace(separatorReplacer.Replace(name))); m != nil {
			result.Episodes = []int{mustAtoi(m[1])}
			return result
		}
	}

	if !result.Resolved() && result.AirDate == nil {
		result.Confidence = ConfidenceUnresolved
	}

	return result
}

// ParseTitleYear extracts a show title and optional year from a folder name,
// e.g. "Breaking Sad (2008)".
func ParseTitleYear(name string) (string, int) {
	year := 0
	if m := yearRegex.FindStringSubmatch(name); m != nil {
		year = mustAtoi(m[1])
		name = strings.Replace(name, m[0], "", 1)
	} else if m := trailingYearRegex.FindStringSubmatch(name); m != nil {
		year = mustAtoi(m[1])
		name = strings.Replace(name, m[1], "", 1)
	}

	return cleanTitle(name), year
}

// ScanForIDs searches arbitrary text for embedded provider ids. Used as the
// last identification fallback when an NFO can't be parsed structurally.
func ScanForIDs(content string) map[string]string {
	ids := map[string]string{}

	if m := imdbIDRegex.FindString(content); m != "" {
		ids["imdb"] = m
	}
	if m := tmdbIDRegex.FindStringSubmatch(content); m != nil {
		ids["tmdb"] = m[1]
	}
	if m := tvdbIDRegex.FindStringSubmatch(content); m != nil {
		ids["tvdb"] = m[1]
	}

	return ids
}

func seasonFromFolder(relPath string) int {
	dir := path.Dir(relPath)
	if dir == "." {
		return -1
	}

	folder := path.Base(dir)
	if specialsFolderRe.MatchString(folder) {
		return 0
	}
	if m := seasonFolderRegex.FindStringSubmatch(folder); m != nil {
		for _, g := range m[1:] {
			if g != "" {
				return mustAtoi(g)
			}
		}
	}
	return -1
}

func cleanTitle(s string) string {
	s = separatorReplacer.Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	s = strings.Trim(s, " -")
	if s == "" {
		return s
	}
	return titleCaser.String(strings.ToLower(s))
}

func removeFold(s, sub string) string {
	idx := strings.Index(strings.ToLower(s), strings.ToLower(sub))
	if idx < 0 {
		return s
	}
	return s[:idx] + s[idx+len(sub):]
}

func appendEpisode(episodes []int, e int) []int {
	for _, existing := range episodes {
		if existing == e {
			return episodes
		}
	}
	return append(episodes, e)
}

func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
