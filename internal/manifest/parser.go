package manifest

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/famomatic/hlsv1/internal/types"
)

const (
	tagHeader    = "#EXTM3U"
	tagStreamInf = "#EXT-X-STREAM-INF:"
	tagMedia     = "#EXT-X-MEDIA:"
	tagKey       = "#EXT-X-KEY:"
	tagMap       = "#EXT-X-MAP:"
	tagByteRange = "#EXT-X-BYTERANGE:"
	tagInf       = "#EXTINF:"
	tagEndList   = "#EXT-X-ENDLIST"
)

// audio codec tokens that mark a CODECS list as already carrying audio.
var audioCodecTokens = []string{"mp4a", "ac-3", "ec-3", "aac"}

// IsPlaylist reports whether body looks like an m3u8 playlist at all.
func IsPlaylist(body string) bool {
	return strings.HasPrefix(strings.TrimLeft(body, " \t\r\n"), tagHeader)
}

// Classify returns the playlist kind without a full parse. It fails with
// types.ErrMalformedManifest when body is not a playlist. Master playlists
// may carry EXT-X-MEDIA tags too, so classification keys on EXT-X-STREAM-INF
// alone.
func Classify(body string) (Kind, error) {
	if !IsPlaylist(body) {
		return Media, types.ErrMalformedManifest
	}
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		if strings.HasPrefix(strings.TrimSpace(scanner.Text()), "#EXT-X-STREAM-INF") {
			return Master, nil
		}
	}
	return Media, nil
}

// Parse converts a raw playlist body into a Playlist. base is the URL the
// body was fetched from; every URI in the result is resolved against it.
func Parse(body string, base *url.URL) (*Playlist, error) {
	if !IsPlaylist(body) {
		return nil, types.ErrMalformedManifest
	}

	pl := &Playlist{URL: base}

	var (
		pendingVariant  *Variant
		pendingRange    *ByteRange
		pendingKey      *KeyDirective
		pendingDuration float64
		sawStreamInf    bool
	)

	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, tagStreamInf):
			sawStreamInf = true
			pendingVariant = parseStreamInf(line)

		case strings.HasPrefix(line, tagMedia):
			if r, ok := parseMediaTag(line, base); ok {
				pl.Renditions = append(pl.Renditions, r)
			}

		case strings.HasPrefix(line, tagKey):
			key, err := parseKeyTag(line, base)
			if err != nil {
				return nil, err
			}
			pendingKey = key

		case strings.HasPrefix(line, tagMap):
			if uri := attrValue(line, "URI"); uri != "" {
				pl.InitSegmentURL = resolve(base, uri)
			}

		case strings.HasPrefix(line, tagByteRange):
			br, err := parseByteRange(strings.TrimPrefix(line, tagByteRange))
			if err != nil {
				return nil, err
			}
			pendingRange = br

		case strings.HasPrefix(line, tagInf):
			pendingDuration = parseExtInf(line)

		case strings.HasPrefix(line, "#"):
			if strings.HasPrefix(line, tagEndList) {
				pl.Ended = true
			}
			// Other comments and tags are ignored.

		default:
			// A plain URI line: either the variant declared just above it or
			// an ordinary media segment.
			abs := resolve(base, line)
			if pendingVariant != nil {
				pendingVariant.URL = abs
				pl.Variants = append(pl.Variants, *pendingVariant)
				pendingVariant = nil
				continue
			}
			pl.Segments = append(pl.Segments, SegmentDirective{
				URL:           abs,
				ByteRange:     pendingRange,
				KeyChange:     pendingKey,
				SequenceIndex: len(pl.Segments),
				Duration:      pendingDuration,
			})
			// A byte range applies to the next URI only; a key persists until
			// superseded but only the change point is recorded.
			pendingRange = nil
			pendingKey = nil
			pendingDuration = 0
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan playlist: %w", err)
	}

	if sawStreamInf {
		pl.Kind = Master
	} else {
		pl.Kind = Media
	}
	return pl, nil
}

func parseStreamInf(line string) *Variant {
	v := &Variant{RawAttrs: line}
	if bw := attrValue(line, "BANDWIDTH"); bw != "" {
		if n, err := strconv.ParseInt(bw, 10, 64); err == nil {
			v.Bandwidth = n
		}
	}
	hasAudioGroup := attrValue(line, "AUDIO") != ""
	codecs := strings.ToLower(attrValue(line, "CODECS"))
	codecsHaveAudio := false
	for _, token := range audioCodecTokens {
		if strings.Contains(codecs, token) {
			codecsHaveAudio = true
			break
		}
	}
	// Servers sometimes declare an AUDIO group even though the variant is
	// muxed; trust the codec list over the attribute.
	v.HasSeparateAudio = hasAudioGroup && !codecsHaveAudio
	return v
}

func parseMediaTag(line string, base *url.URL) (Rendition, bool) {
	var rt RenditionType
	switch strings.ToUpper(attrValue(line, "TYPE")) {
	case "AUDIO":
		rt = RenditionAudio
	case "SUBTITLES":
		rt = RenditionSubtitles
	case "CLOSED-CAPTIONS":
		rt = RenditionClosedCaptions
	default:
		return Rendition{}, false
	}
	r := Rendition{
		Type:     rt,
		Language: attrValue(line, "LANGUAGE"),
		Name:     attrValue(line, "NAME"),
		GroupID:  attrValue(line, "GROUP-ID"),
	}
	if uri := attrValue(line, "URI"); uri != "" && rt != RenditionClosedCaptions {
		r.URL = resolve(base, uri)
	}
	return r, true
}

func parseKeyTag(line string, base *url.URL) (*KeyDirective, error) {
	key := &KeyDirective{
		Method: strings.ToUpper(attrValue(line, "METHOD")),
	}
	if uri := attrValue(line, "URI"); uri != "" {
		key.URL = resolve(base, uri)
	}
	if ivHex := attrValue(line, "IV"); ivHex != "" {
		ivHex = strings.TrimPrefix(strings.TrimPrefix(ivHex, "0x"), "0X")
		iv, err := hex.DecodeString(ivHex)
		if err != nil {
			return nil, fmt.Errorf("invalid key IV %q: %w", ivHex, err)
		}
		key.IV = iv
	}
	return key, nil
}

// parseByteRange parses "length[@start]".
func parseByteRange(raw string) (*ByteRange, error) {
	raw = strings.TrimSpace(raw)
	lenPart, startPart, hasStart := strings.Cut(raw, "@")
	length, err := strconv.ParseInt(lenPart, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid byte range %q: %w", raw, err)
	}
	br := &ByteRange{Length: length}
	if hasStart {
		start, err := strconv.ParseInt(startPart, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid byte range offset %q: %w", raw, err)
		}
		br.Start = &start
	}
	return br, nil
}

func parseExtInf(line string) float64 {
	val := strings.TrimPrefix(line, tagInf)
	if i := strings.IndexByte(val, ','); i >= 0 {
		val = val[:i]
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return 0
	}
	return d
}

func resolve(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
