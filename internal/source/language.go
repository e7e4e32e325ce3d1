// Package source implements the Source Adapter (C4): the torrent and URL
// variants that resolve a client-requested source into a domain.SourceFile,
// plus the shared subtitle-language heuristic both variants use.
package source

import (
	"regexp"
	"strings"
)

// videoExtensions is the playable-file whitelist used to pick source_file
// out of a torrent's file list or a downloader's output directory.
var videoExtensions = map[string]struct{}{
	".mp4": {}, ".mkv": {}, ".webm": {}, ".mov": {}, ".avi": {}, ".flv": {},
}

// subtitleExtensions is the side-file whitelist scanned for subtitles_detected.
var subtitleExtensions = map[string]struct{}{
	".srt": {}, ".vtt": {}, ".ass": {}, ".ssa": {}, ".sub": {}, ".sbv": {}, ".json": {},
}

func isVideoExt(ext string) bool {
	_, ok := videoExtensions[strings.ToLower(ext)]
	return ok
}

func isSubtitleExt(ext string) bool {
	_, ok := subtitleExtensions[strings.ToLower(ext)]
	return ok
}

// languageKeywords is stage (i) of the heuristic: a substring match against
// a fixed keyword table for the 17 supported languages, checked before the
// ISO-code regex so that e.g. "Spanish" in a filename wins over any
// coincidental two-letter code.
var languageKeywords = []struct {
	code     string
	keywords []string
}{
	{"eng", []string{"english", "eng"}},
	{"hin", []string{"hindi", "hin"}},
	{"tam", []string{"tamil", "tam"}},
	{"tel", []string{"telugu", "tel"}},
	{"kan", []string{"kannada", "kan"}},
	{"mal", []string{"malayalam", "mal"}},
	{"mar", []string{"marathi", "mar"}},
	{"ben", []string{"bengali", "bangla", "ben"}},
	{"spa", []string{"spanish", "espanol", "español", "spa"}},
	{"fra", []string{"french", "francais", "français", "fre", "fra"}},
	{"deu", []string{"german", "deutsch", "ger", "deu"}},
	{"por", []string{"portuguese", "portugues", "por"}},
	{"rus", []string{"russian", "rus"}},
	{"jpn", []string{"japanese", "jpn", "jap"}},
	{"zho", []string{"chinese", "mandarin", "chi", "zho", "chs", "cht"}},
	{"ara", []string{"arabic", "ara"}},
	{"tha", []string{"thai", "tha"}},
}

// isoCodePattern is stage (ii): a 2-letter ISO 639-1 code immediately
// preceding the extension, delimited by '.', '_' or '-'.
var isoCodePattern = regexp.MustCompile(`(?i)\.(en|hi|ta|te|kn|ml|mr|bn|es|fr|de|pt|ru|ja|zh|ar|th)[._-]`)

var isoToThreeLetter = map[string]string{
	"en": "eng", "hi": "hin", "ta": "tam", "te": "tel", "kn": "kan",
	"ml": "mal", "mr": "mar", "bn": "ben", "es": "spa", "fr": "fra",
	"de": "deu", "pt": "por", "ru": "rus", "ja": "jpn", "zh": "zho",
	"ar": "ara", "th": "tha",
}

// detectLanguage runs the two-stage heuristic against a subtitle filename
// and returns a 3-letter language code, or "unknown".
func detectLanguage(filename string) string {
	lower := strings.ToLower(filename)
	// Full language names are tried before the short codes, so a name such
	// as "chinese" is not claimed by the "hin" code it contains.
	for _, short := range []bool{false, true} {
		for _, entry := range languageKeywords {
			for _, kw := range entry.keywords {
				if (len(kw) <= 3) == short && strings.Contains(lower, kw) {
					return entry.code
				}
			}
		}
	}
	if m := isoCodePattern.FindStringSubmatch(lower); len(m) == 2 {
		if code, ok := isoToThreeLetter[m[1]]; ok {
			return code
		}
	}
	return "unknown"
}
