package plan

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famomatic/hlsv1/internal/manifest"
	"github.com/famomatic/hlsv1/internal/types"
)

func parseMedia(t *testing.T, body string) *manifest.Playlist {
	t.Helper()
	base, err := url.Parse("https://cdn.example.com/v/index.m3u8")
	require.NoError(t, err)
	pl, err := manifest.Parse(body, base)
	require.NoError(t, err)
	require.Equal(t, manifest.Media, pl.Kind)
	return pl
}

func TestBuildEmptyPlaylist(t *testing.T) {
	pl := parseMedia(t, "#EXTM3U\n#EXT-X-ENDLIST\n")
	_, err := Build(pl)
	assert.ErrorIs(t, err, types.ErrEmptyPlaylist)
}

func TestBuildCarriesKeyForward(t *testing.T) {
	pl := parseMedia(t, "#EXTM3U\n"+
		"#EXT-X-KEY:METHOD=AES-128,URI=\"k1.bin\"\n"+
		"a.ts\n"+
		"b.ts\n"+
		"#EXT-X-KEY:METHOD=AES-128,URI=\"k2.bin\"\n"+
		"c.ts\n"+
		"#EXT-X-KEY:METHOD=NONE\n"+
		"d.ts\n")

	p, err := Build(pl)
	require.NoError(t, err)
	require.Len(t, p.Tasks, 4)

	require.NotNil(t, p.Tasks[0].ActiveKey)
	assert.Equal(t, "https://cdn.example.com/v/k1.bin", p.Tasks[0].ActiveKey.URL)
	// The key persists for b.ts even though the directive only precedes a.ts.
	require.NotNil(t, p.Tasks[1].ActiveKey)
	assert.Equal(t, "https://cdn.example.com/v/k1.bin", p.Tasks[1].ActiveKey.URL)
	require.NotNil(t, p.Tasks[2].ActiveKey)
	assert.Equal(t, "https://cdn.example.com/v/k2.bin", p.Tasks[2].ActiveKey.URL)
	// METHOD=NONE clears encryption.
	assert.Nil(t, p.Tasks[3].ActiveKey)

	assert.Equal(t, []string{
		"https://cdn.example.com/v/k1.bin",
		"https://cdn.example.com/v/k2.bin",
	}, p.KeyURLs)
}

// Pins the no-offset byte-range policy: a missing @offset resets the range
// start to 0 instead of continuing after the previous sub-range. This matches
// servers that pack segments into one file and expect absolute ranges, and
// deliberately deviates from RFC 8216 semantics.
func TestBuildByteRangeNoOffsetResetsToZero(t *testing.T) {
	pl := parseMedia(t, "#EXTM3U\n"+
		"#EXT-X-BYTERANGE:1000@0\n"+
		"all.ts\n"+
		"#EXT-X-BYTERANGE:1000\n"+
		"all.ts\n")

	p, err := Build(pl)
	require.NoError(t, err)
	require.Len(t, p.Tasks, 2)

	first := p.Tasks[0].Segment.ByteRange
	require.NotNil(t, first)
	assert.EqualValues(t, 1000, first.Length)
	require.NotNil(t, first.Start)
	assert.EqualValues(t, 0, *first.Start)

	second := p.Tasks[1].Segment.ByteRange
	require.NotNil(t, second)
	assert.EqualValues(t, 1000, second.Length)
	// No explicit start: the fetch layer requests bytes=0-999.
	assert.Nil(t, second.Start)
}

func TestBuildRangeDoesNotLeakToLaterSegments(t *testing.T) {
	pl := parseMedia(t, "#EXTM3U\n"+
		"#EXT-X-BYTERANGE:500@100\n"+
		"packed.ts\n"+
		"plain.ts\n")

	p, err := Build(pl)
	require.NoError(t, err)
	require.Len(t, p.Tasks, 2)
	assert.NotNil(t, p.Tasks[0].Segment.ByteRange)
	assert.Nil(t, p.Tasks[1].Segment.ByteRange)
}

func TestBuildInitSegmentAndOrder(t *testing.T) {
	pl := parseMedia(t, "#EXTM3U\n"+
		"#EXT-X-MAP:URI=\"init.mp4\"\n"+
		"#EXTINF:4.0,\nseg0.m4s\n"+
		"#EXTINF:4.0,\nseg1.m4s\n"+
		"#EXT-X-ENDLIST\n")

	p, err := Build(pl)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/v/init.mp4", p.InitSegmentURL)
	require.Len(t, p.Tasks, 2)
	assert.Equal(t, 0, p.Tasks[0].Segment.SequenceIndex)
	assert.Equal(t, 1, p.Tasks[1].Segment.SequenceIndex)
	assert.InDelta(t, 8.0, p.TotalDuration, 1e-9)
}
