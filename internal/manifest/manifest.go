// Package manifest parses HLS playlists into a structured form.
//
// The parser performs no I/O: callers fetch the playlist body themselves and
// hand it over together with the URL it was fetched from, so every URI in the
// result is already absolute.
package manifest

import "net/url"

// Kind distinguishes master playlists from media playlists.
type Kind int

const (
	// Master lists variant streams at different bitrates.
	Master Kind = iota
	// Media lists the actual ordered segments of one rendition.
	Media
)

func (k Kind) String() string {
	if k == Master {
		return "master"
	}
	return "media"
}

// RenditionType is the TYPE attribute of an EXT-X-MEDIA tag.
type RenditionType int

const (
	RenditionAudio RenditionType = iota
	RenditionSubtitles
	RenditionClosedCaptions
)

// Variant is one selectable quality option referenced from a master playlist.
type Variant struct {
	// URL is absolute, resolved against the manifest URL.
	URL string
	// Bandwidth is bits per second; 0 when the attribute is missing.
	Bandwidth int64
	// RawAttrs is the full EXT-X-STREAM-INF line, kept for heuristic scoring.
	RawAttrs string
	// HasSeparateAudio is true when the variant references an external audio
	// group and its CODECS list does not already carry an audio codec.
	HasSeparateAudio bool
}

// Rendition is an alternate audio, subtitle or closed-caption track.
type Rendition struct {
	Type     RenditionType
	URL      string // empty for closed captions, which are in-stream
	Language string
	Name     string
	GroupID  string
}

// KeyDirective describes the encryption in effect for following segments.
type KeyDirective struct {
	Method string
	URL    string // absolute key URL
	IV     []byte // 16 bytes when an explicit IV was given, nil otherwise
}

// ByteRange addresses a sub-range of one remote resource.
// A nil Start means the directive carried no @offset.
type ByteRange struct {
	Length int64
	Start  *int64
}

// SegmentDirective is one fetchable media chunk.
type SegmentDirective struct {
	// URL is absolute, resolved against the manifest URL.
	URL string
	// ByteRange is non-nil when an EXT-X-BYTERANGE preceded this URI.
	ByteRange *ByteRange
	// KeyChange is non-nil when an EXT-X-KEY appeared since the previous
	// segment. Method NONE clears encryption.
	KeyChange *KeyDirective
	// SequenceIndex is the 0-based position in the playlist, used for the
	// default AES IV derivation.
	SequenceIndex int
	// Duration is the EXTINF value in seconds, 0 when absent.
	Duration float64
}

// Playlist is the parsed form of one manifest fetch. It is immutable once
// returned; a new fetch produces a new Playlist.
type Playlist struct {
	Kind Kind
	// URL the manifest was fetched from.
	URL *url.URL

	// Master fields.
	Variants   []Variant
	Renditions []Rendition

	// Media fields.
	Segments       []SegmentDirective
	InitSegmentURL string
	Ended          bool
}

// TotalDuration sums the EXTINF durations of a media playlist, in seconds.
func (p *Playlist) TotalDuration() float64 {
	var total float64
	for _, seg := range p.Segments {
		total += seg.Duration
	}
	return total
}

// SubtitleRenditions filters the renditions that carry a fetchable subtitle
// playlist.
func (p *Playlist) SubtitleRenditions() []Rendition {
	var out []Rendition
	for _, r := range p.Renditions {
		if r.Type == RenditionSubtitles && r.URL != "" {
			out = append(out, r)
		}
	}
	return out
}
