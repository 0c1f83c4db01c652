package client

import (
	"context"
	"net/url"
	"path"
	"strings"
)

// Candidate is one downloadable URL discovered by an external source,
// typically a network sniffer or a site-specific resolver.
type Candidate struct {
	URL string
	// Label is a human-readable hint (page title, quality tag) used for
	// display only.
	Label string
	// Headers override the request headers for this candidate, when the
	// discovering context requires them (referer-locked CDNs).
	Headers Headers
}

// CandidateSource feeds candidate URLs for a page. Implementations live
// outside this module; the client only consumes the interface.
type CandidateSource interface {
	Candidates(ctx context.Context, pageURL string) ([]Candidate, error)
}

// Exporter moves a finished output file to its final destination, such as a
// public downloads directory or a remote store. It returns the exported
// location.
type Exporter interface {
	Export(ctx context.Context, srcPath string) (string, error)
}

// Muxer combines separate video and audio outputs into one container. The
// client never invokes it; it is offered so callers with split-audio streams
// can plug an external tool in behind a stable interface.
type Muxer interface {
	Mux(ctx context.Context, videoPath, audioPath, outputPath string) error
}

var mediaExtensions = map[string]struct{}{
	".m3u8": {},
	".mp4":  {},
	".ts":   {},
	".vtt":  {},
	".srt":  {},
	".ass":  {},
	".ssa":  {},
}

// FilterMediaCandidates keeps candidates whose URL path carries a known
// media extension. Candidates without any extension are kept too, since
// manifest endpoints are often extensionless; only URLs with a foreign
// extension are dropped.
func FilterMediaCandidates(candidates []Candidate) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		u, err := url.Parse(c.URL)
		if err != nil {
			continue
		}
		ext := strings.ToLower(path.Ext(u.Path))
		if ext == "" {
			out = append(out, c)
			continue
		}
		if _, ok := mediaExtensions[ext]; ok {
			out = append(out, c)
		}
	}
	return out
}
