package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/famomatic/hlsv1/internal/manifest"
)

func TestSelectVariantPrefersMuxedPartition(t *testing.T) {
	variants := []manifest.Variant{
		{URL: "a", Bandwidth: 500000},
		{URL: "b", Bandwidth: 900000},
		{URL: "c", Bandwidth: 2000000, HasSeparateAudio: true},
	}
	// The split-audio variant has the highest bandwidth but the muxed
	// partition wins.
	got := SelectVariant(variants, Preferences{}, "orig")
	assert.Equal(t, "b", got)
}

func TestSelectVariantDubHintBeatsBandwidth(t *testing.T) {
	variants := []manifest.Variant{
		{URL: "https://cdn/x/tur-dublaj/index.m3u8", Bandwidth: 400000,
			RawAttrs: `#EXT-X-STREAM-INF:BANDWIDTH=400000,NAME="tur-dublaj"`},
		{URL: "https://cdn/x/plain/index.m3u8", Bandwidth: 1200000,
			RawAttrs: `#EXT-X-STREAM-INF:BANDWIDTH=1200000`},
	}
	got := SelectVariant(variants, Preferences{PreferDubbedAudio: true}, "orig")
	assert.Equal(t, "https://cdn/x/tur-dublaj/index.m3u8", got)

	// Without the preference bandwidth decides.
	got = SelectVariant(variants, Preferences{}, "orig")
	assert.Equal(t, "https://cdn/x/plain/index.m3u8", got)
}

func TestSelectVariantSubtitleHint(t *testing.T) {
	variants := []manifest.Variant{
		{URL: "https://cdn/v/vost/index.m3u8", Bandwidth: 700000,
			RawAttrs: `#EXT-X-STREAM-INF:BANDWIDTH=700000,NAME="vost"`},
		{URL: "https://cdn/v/other/index.m3u8", Bandwidth: 800000,
			RawAttrs: `#EXT-X-STREAM-INF:BANDWIDTH=800000`},
	}
	got := SelectVariant(variants, Preferences{PreferSubtitles: true}, "orig")
	assert.Equal(t, "https://cdn/v/vost/index.m3u8", got)
}

func TestSelectVariantAllSplitAudio(t *testing.T) {
	variants := []manifest.Variant{
		{URL: "a", Bandwidth: 100, HasSeparateAudio: true},
		{URL: "b", Bandwidth: 300, HasSeparateAudio: true},
	}
	got := SelectVariant(variants, Preferences{}, "orig")
	assert.Equal(t, "b", got)
}

func TestSelectVariantEmptyFallsBackToOriginal(t *testing.T) {
	got := SelectVariant(nil, Preferences{}, "https://cdn/media.m3u8")
	assert.Equal(t, "https://cdn/media.m3u8", got)
}

func TestSelectSubtitle(t *testing.T) {
	renditions := []manifest.Rendition{
		{Type: manifest.RenditionSubtitles, URL: "en", Language: "en", Name: "English"},
		{Type: manifest.RenditionSubtitles, URL: "tr", Language: "TR", Name: "Türkçe"},
		{Type: manifest.RenditionSubtitles, URL: "de", Language: "de", Name: "Deutsch (tr hint)"},
	}

	// Exact language match, case-insensitive.
	got := SelectSubtitle(renditions, "tr")
	assert.Equal(t, "tr", got.URL)

	// Name substring match when no language code matches.
	noLang := []manifest.Rendition{
		{Type: manifest.RenditionSubtitles, URL: "en", Language: "en", Name: "English"},
		{Type: manifest.RenditionSubtitles, URL: "x", Name: "Forced tr subs"},
	}
	got = SelectSubtitle(noLang, "tr")
	assert.Equal(t, "x", got.URL)

	// First rendition when nothing matches.
	got = SelectSubtitle(renditions, "ja")
	assert.Equal(t, "en", got.URL)

	assert.Nil(t, SelectSubtitle(nil, "tr"))
}
