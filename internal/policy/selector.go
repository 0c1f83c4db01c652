// Package policy chooses one variant and subtitle rendition from parsed
// playlist candidates. All logic here is pure so it can be unit-tested with
// literal input lists.
package policy

import (
	"sort"
	"strings"

	"github.com/famomatic/hlsv1/internal/manifest"
)

// Preferences steer variant and rendition selection.
type Preferences struct {
	// PreferDubbedAudio boosts variants whose attribute line or URL hints at
	// a dubbed (Turkish-language) track.
	PreferDubbedAudio bool
	// PreferSubtitles boosts variants hinting at burned-in or carried
	// subtitles and enables subtitle rendition selection.
	PreferSubtitles bool
	// PreferredLanguage is the subtitle language code, e.g. "tr".
	PreferredLanguage string
}

var (
	dubHints      = []string{"dublaj", "dub", "turk", "türk", "tr"}
	subtitleHints = []string{"sub", "subtitle", "vost", "vtt", "srt"}
)

// SelectVariant picks the best variant URL for prefs. originalURL is returned
// unchanged when variants is empty; the caller then treats the original
// manifest as already being a media playlist.
//
// Muxed variants are preferred over split-audio ones even when a split
// variant has higher bandwidth; split variants are considered only when no
// muxed variant exists.
func SelectVariant(variants []manifest.Variant, prefs Preferences, originalURL string) string {
	if len(variants) == 0 {
		return originalURL
	}

	pool := muxedPartition(variants)
	if len(pool) == 0 {
		pool = variants
	}

	scored := make([]manifest.Variant, len(pool))
	copy(scored, pool)
	sort.SliceStable(scored, func(i, j int) bool {
		si, sj := score(scored[i], prefs), score(scored[j], prefs)
		if si != sj {
			return si > sj
		}
		return scored[i].Bandwidth > scored[j].Bandwidth
	})
	return scored[0].URL
}

func muxedPartition(variants []manifest.Variant) []manifest.Variant {
	var muxed []manifest.Variant
	for _, v := range variants {
		if !v.HasSeparateAudio {
			muxed = append(muxed, v)
		}
	}
	return muxed
}

func score(v manifest.Variant, prefs Preferences) int {
	haystack := strings.ToLower(v.RawAttrs) + " " + strings.ToLower(v.URL)
	s := 0
	if prefs.PreferDubbedAudio && containsAny(haystack, dubHints) {
		s += 5
	}
	if prefs.PreferSubtitles && containsAny(haystack, subtitleHints) {
		s += 3
	}
	return s
}

func containsAny(s string, hints []string) bool {
	for _, hint := range hints {
		if strings.Contains(s, hint) {
			return true
		}
	}
	return false
}

// SelectSubtitle picks a subtitle rendition: exact language-code match first,
// then a rendition whose display name contains the language, then the first
// available one. Returns nil when renditions is empty.
func SelectSubtitle(renditions []manifest.Rendition, preferredLanguage string) *manifest.Rendition {
	if len(renditions) == 0 {
		return nil
	}
	lang := strings.ToLower(preferredLanguage)
	if lang != "" {
		for i := range renditions {
			if strings.ToLower(renditions[i].Language) == lang {
				return &renditions[i]
			}
		}
		for i := range renditions {
			if strings.Contains(strings.ToLower(renditions[i].Name), lang) {
				return &renditions[i]
			}
		}
	}
	return &renditions[0]
}
