// Package classify maps file names to semantic media file roles. Every
// decision about what a file "is" during a scan goes through Classify or one
// of the predicate helpers so the rules live in exactly one place.
package classify

import (
	"path/filepath"
	"regexp"
	"strings"
)

// FileType is the semantic role of a file inside a show directory.
type FileType string

const (
	Video        FileType = "video"
	NFO          FileType = "nfo"
	Poster       FileType = "poster"
	Fanart       FileType = "fanart"
	Banner       FileType = "banner"
	Thumb        FileType = "thumb"
	SeasonPoster FileType = "season-poster"
	SeasonFanart FileType = "season-fanart"
	SeasonBanner FileType = "season-banner"
	SeasonThumb  FileType = "season-thumb"
	Subtitle     FileType = "subtitle"
	DiscMarker   FileType = "disc-marker"
	VSMeta       FileType = "vsmeta"
	Unknown      FileType = "unknown"
)

var (
	videoExtensions    = []string{".mkv", ".mp4", ".avi", ".m4v", ".mov", ".wmv", ".mpg", ".mpeg", ".ts", ".m2ts", ".iso", ".webm", ".flv"}
	subtitleExtensions = []string{".srt", ".sub", ".ass", ".ssa", ".idx", ".vtt", ".sup"}
	graphicExtensions  = []string{".jpg", ".jpeg", ".png", ".tbn", ".gif", ".webp", ".bmp"}

	discFolderRegex = regexp.MustCompile(`(?i)^(BDMV|VIDEO_TS|HVDVD_TS)$`)
	discIdentRegex  = regexp.MustCompile(`(?i)^(index\.bdmv|VIDEO_TS\.IFO|HV000I01\.IFO|disc\.inf)$`)

	seasonArtworkRegex = regexp.MustCompile(`(?i)^season[-._ ]?(\d{1,4}|all|specials?)?[-._ ]?(poster|fanart|banner|thumb)$`)
	artworkMarkerRegex = regexp.MustCompile(`(?i)[-._](poster|fanart|banner|thumb|clearlogo|clearart|landscape|keyart)\d{0,2}$`)

	stackingRegex     = regexp.MustCompile(`(?i)[ ._-]+(?:cd|dvd|disc|disk|part|pt)[ ._-]*\d{1,2}$`)
	stackingOfRegex   = regexp.MustCompile(`(?i)[ ._-]+\d{1,2}of\d{1,2}$`)
	extraSuffixRegexs = []*regexp.Regexp{
		regexp.MustCompile(`(?i)[-._](behindthescenes|deleted|featurette|interview|scene|short|trailer|other|extra)s?\d{0,2}$`),
		regexp.MustCompile(`(?i)[-._]sample$`),
	}
)

// Classify determines a file's semantic type from its name alone. It is pure
// and deterministic. Parent folder context (season folders, disc folders) is
// the caller's concern.
func Classify(path string) FileType {
	name := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(name))
	base := strings.TrimSuffix(name, filepath.Ext(name))

	if discIdentRegex.MatchString(name) {
		return DiscMarker
	}

	switch {
	case ext == ".nfo":
		return NFO
	case ext == ".vsmeta":
		return VSMeta
	case hasExtension(ext, videoExtensions):
		return Video
	case hasExtension(ext, subtitleExtensions):
		return Subtitle
	}

	if !hasExtension(ext, graphicExtensions) {
		return Unknown
	}

	if m := seasonArtworkRegex.FindStringSubmatch(base); m != nil {
		switch strings.ToLower(m[2]) {
		case "poster":
			return SeasonPoster
		case "fanart":
			return SeasonFanart
		case "banner":
			return SeasonBanner
		case "thumb":
			return SeasonThumb
		}
	}

	if m := artworkMarkerRegex.FindStringSubmatch(base); m != nil {
		switch strings.ToLower(m[1]) {
		case "poster", "keyart":
			return Poster
		case "fanart", "landscape":
			return Fanart
		case "banner":
			return Banner
		default:
			return Thumb
		}
	}

	// bare artwork names without a marker, e.g. poster.jpg or folder.jpg
	switch strings.ToLower(base) {
	case "poster", "cover", "folder":
		return Poster
	case "fanart", "backdrop", "background":
		return Fanart
	case "banner":
		return Banner
	case "thumb", "landscape":
		return Thumb
	}

	return Thumb
}

// NormalizeBasename strips artwork markers and extra suffixes from a file's
// base name so artwork can be matched back to its owning video file.
// episode1-poster.jpg and episode1.mkv normalize to the same "episode1".
func NormalizeBasename(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = artworkMarkerRegex.ReplaceAllString(base, "")
	for _, re := range extraSuffixRegexs {
		base = re.ReplaceAllString(base, "")
	}
	return base
}

// StripStackingMarkers removes a trailing stacking marker (cd1, part2, 1of2)
// from a base name and reports whether one was found.
func StripStackingMarkers(name string) (string, bool) {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if stripped := stackingRegex.ReplaceAllString(base, ""); stripped != base {
		return stripped, true
	}
	if stripped := stackingOfRegex.ReplaceAllString(base, ""); stripped != base {
		return stripped, true
	}
	return base, false
}

// IsDiscFolder reports whether a directory name is an optical disc structure
// marker whose contents are treated as a single logical video.
func IsDiscFolder(name string) bool {
	return discFolderRegex.MatchString(name)
}

// IsDiscIdentifier reports whether a file is the canonical identifier of a
// disc structure. Identifier files are always collected, even inside pruned
// disc subtrees.
func IsDiscIdentifier(name string) bool {
	return discIdentRegex.MatchString(filepath.Base(name))
}

// IsVideo reports whether the path has a known video container extension.
func IsVideo(path string) bool {
	return hasExtension(strings.ToLower(filepath.Ext(path)), videoExtensions)
}

// IsSubtitle reports whether the path has a known subtitle extension.
func IsSubtitle(path string) bool {
	return hasExtension(strings.ToLower(filepath.Ext(path)), subtitleExtensions)
}

// IsGraphic reports whether the given type is a graphic (image) type whose
// removal should invalidate image caches.
func IsGraphic(t FileType) bool {
	switch t {
	case Poster, Fanart, Banner, Thumb, SeasonPoster, SeasonFanart, SeasonBanner, SeasonThumb:
		return true
	}
	return false
}

// IsSeasonArtwork reports whether the given type attaches to a season rather
// than an episode or the show itself.
func IsSeasonArtwork(t FileType) bool {
	switch t {
	case SeasonPoster, SeasonFanart, SeasonBanner, SeasonThumb:
		return true
	}
	return false
}

func hasExtension(ext string, known []string) bool {
	for _, e := range known {
		if ext == e {
			return true
		}
	}
	return false
}
