// Package subtitle flattens subtitle tracks. HLS subtitle renditions point
// either at a plain subtitle file (VTT, SRT, ASS) or at a media playlist
// whose segments are VTT fragments; Resolve handles both and produces one
// document together with the file extension matching its format.
package subtitle

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/famomatic/hlsv1/internal/fetch"
	"github.com/famomatic/hlsv1/internal/manifest"
)

// IsVTT reports whether body looks like WebVTT content, either by its header
// or by the presence of a cue timing line.
func IsVTT(body string) bool {
	trimmed := strings.TrimLeft(strings.TrimPrefix(body, "\uFEFF"), " \t\r\n")
	if strings.HasPrefix(trimmed, "WEBVTT") {
		return true
	}
	return strings.Contains(body, "-->")
}

// Merge joins VTT fragments into a single document. The header and any
// per-fragment metadata (such as X-TIMESTAMP-MAP) are kept only from the
// first fragment; later headers would otherwise appear mid-stream and break
// players.
func Merge(fragments []string) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, frag := range fragments {
		body := stripHeader(frag)
		if body == "" {
			continue
		}
		b.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// stripHeader removes a leading WEBVTT header block up to its terminating
// blank line, returning only cue content.
func stripHeader(frag string) string {
	s := strings.TrimLeft(strings.TrimPrefix(frag, "\uFEFF"), " \t\r\n")
	if !strings.HasPrefix(s, "WEBVTT") {
		return strings.TrimSpace(s)
	}
	lines := strings.Split(s, "\n")
	i := 0
	for ; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[i:], "\n"))
}

// Downloader resolves a subtitle rendition URL into one document.
type Downloader struct {
	fetcher *fetch.Fetcher
	log     hclog.Logger
}

func NewDownloader(f *fetch.Fetcher, logger hclog.Logger) *Downloader {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Downloader{fetcher: f, log: logger.Named("subtitle")}
}

// Resolve fetches rawURL and returns a single subtitle document plus its
// file extension (".vtt", ".srt", ...). A media playlist is expanded segment
// by segment into one VTT document; anything else is passed through
// unchanged, keeping its own format.
func (d *Downloader) Resolve(ctx context.Context, rawURL string) (string, string, error) {
	body, err := d.fetcher.FetchText(ctx, rawURL)
	if err != nil {
		return "", "", err
	}
	if !manifest.IsPlaylist(body) {
		return body, extensionFor(rawURL, body), nil
	}

	base, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("subtitle playlist url: %w", err)
	}
	pl, err := manifest.Parse(body, base)
	if err != nil {
		return "", "", fmt.Errorf("subtitle playlist: %w", err)
	}
	d.log.Debug("expanding subtitle playlist", "url", rawURL, "segments", len(pl.Segments))

	fragments := make([]string, 0, len(pl.Segments))
	for _, seg := range pl.Segments {
		frag, err := d.fetcher.FetchText(ctx, seg.URL)
		if err != nil {
			return "", "", fmt.Errorf("subtitle segment %d: %w", seg.SequenceIndex, err)
		}
		fragments = append(fragments, frag)
	}
	return Merge(fragments), ".vtt", nil
}

// extensionFor picks the file extension for a pass-through subtitle body.
// SRT cues carry "-->" too, so only the WEBVTT header identifies VTT; after
// that the URL's own extension decides, falling back to SRT.
func extensionFor(rawURL, body string) string {
	trimmed := strings.TrimLeft(strings.TrimPrefix(body, "\uFEFF"), " \t\r\n")
	if strings.HasPrefix(trimmed, "WEBVTT") {
		return ".vtt"
	}
	if u, err := url.Parse(rawURL); err == nil {
		switch ext := strings.ToLower(path.Ext(u.Path)); ext {
		case ".vtt", ".srt", ".ass", ".ssa":
			return ext
		}
	}
	return ".srt"
}
