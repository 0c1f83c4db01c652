// Package plan turns a parsed media playlist into an ordered sequence of
// fetch tasks.
package plan

import (
	"github.com/famomatic/hlsv1/internal/manifest"
	"github.com/famomatic/hlsv1/internal/types"
)

// FetchTask pairs one segment with the key directive in effect at that point.
// One task maps to exactly one segment request.
type FetchTask struct {
	Segment   manifest.SegmentDirective
	ActiveKey *manifest.KeyDirective // nil when the segment is not encrypted
}

// FetchPlan is the ordered work list for reconstructing one media stream.
type FetchPlan struct {
	// InitSegmentURL, when set, is fetched and written before any task.
	InitSegmentURL string
	// Tasks preserve manifest order.
	Tasks []FetchTask
	// KeyURLs lists every distinct key URL the plan references.
	KeyURLs []string
	// TotalDuration is the summed EXTINF duration in seconds.
	TotalDuration float64
}

// Build walks the playlist's directives in document order, carrying the
// active key forward until it is superseded. A key with METHOD=NONE clears
// encryption for the following segments. Fails with types.ErrEmptyPlaylist
// when the playlist has no segments; callers must never start a download
// from an empty plan.
func Build(pl *manifest.Playlist) (*FetchPlan, error) {
	if len(pl.Segments) == 0 {
		return nil, types.ErrEmptyPlaylist
	}

	out := &FetchPlan{
		InitSegmentURL: pl.InitSegmentURL,
		Tasks:          make([]FetchTask, 0, len(pl.Segments)),
		TotalDuration:  pl.TotalDuration(),
	}

	var activeKey *manifest.KeyDirective
	seenKeyURLs := make(map[string]struct{})
	for _, seg := range pl.Segments {
		if change := seg.KeyChange; change != nil {
			if change.Method == "NONE" {
				activeKey = nil
			} else {
				activeKey = change
			}
		}
		if activeKey != nil && activeKey.URL != "" {
			if _, ok := seenKeyURLs[activeKey.URL]; !ok {
				seenKeyURLs[activeKey.URL] = struct{}{}
				out.KeyURLs = append(out.KeyURLs, activeKey.URL)
			}
		}
		out.Tasks = append(out.Tasks, FetchTask{Segment: seg, ActiveKey: activeKey})
	}
	return out, nil
}
