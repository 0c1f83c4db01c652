// Package orchestrate ties the pipeline together: fetch and classify the
// input manifest, pick a variant and subtitle rendition, build the fetch
// plan and hand it to the assembler.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/hashicorp/go-hclog"

	"github.com/famomatic/hlsv1/internal/assemble"
	"github.com/famomatic/hlsv1/internal/fetch"
	"github.com/famomatic/hlsv1/internal/manifest"
	"github.com/famomatic/hlsv1/internal/plan"
	"github.com/famomatic/hlsv1/internal/policy"
	"github.com/famomatic/hlsv1/internal/types"
)

type Config struct {
	Fetcher   *fetch.Fetcher
	Assembler *assemble.Assembler
	Logger    hclog.Logger
}

// Orchestrator resolves an input URL to a media playlist and drives its
// assembly. It is stateless across downloads.
type Orchestrator struct {
	fetcher   *fetch.Fetcher
	assembler *assemble.Assembler
	log       hclog.Logger
}

func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Orchestrator{
		fetcher:   cfg.Fetcher,
		assembler: cfg.Assembler,
		log:       logger.Named("orchestrate"),
	}
}

// Resolution is the outcome of resolving an input URL: the media playlist to
// assemble, plus what the master playlist (if any) offered around it.
type Resolution struct {
	// Media is the media playlist whose segments will be downloaded.
	Media *manifest.Playlist
	// VariantURL is the chosen variant URL when the input was a master
	// playlist; equal to the input URL otherwise.
	VariantURL string
	// Bandwidth is the chosen variant's advertised bandwidth, 0 when the
	// input was already a media playlist or the master did not carry one.
	Bandwidth int64
	// Subtitle is the selected subtitle rendition from the master, nil when
	// none matched or the input was a media playlist.
	Subtitle *manifest.Rendition
	// DirectBody holds the fetched bytes when the input was not a playlist
	// at all; Media is then nil and the caller saves the body as an opaque
	// asset. The preflight fetch already consumed the transfer, so it is
	// returned rather than thrown away.
	DirectBody []byte
}

// IsDirectAsset reports whether the input URL resolved to a plain media
// asset instead of a playlist.
func (r *Resolution) IsDirectAsset() bool { return r.Media == nil }

// EstimatedBytes approximates the download size from the variant bandwidth
// and the playlist duration. Zero when either is unknown.
func (r *Resolution) EstimatedBytes() int64 {
	if r.Bandwidth <= 0 || r.Media == nil {
		return 0
	}
	return int64(float64(r.Bandwidth) * r.Media.TotalDuration() / 8)
}

// Resolve fetches rawURL, classifies it and, for a master playlist, descends
// exactly one level into the selected variant. A media playlist given
// directly is parsed from the already-fetched body, never fetched twice; a
// body that is not a playlist at all comes back as a direct asset.
func (o *Orchestrator) Resolve(ctx context.Context, rawURL string, prefs policy.Preferences) (*Resolution, error) {
	body, err := o.fetcher.FetchText(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if !manifest.IsPlaylist(body) {
		o.log.Debug("input is not a playlist, treating as direct asset", "url", rawURL, "bytes", len(body))
		return &Resolution{VariantURL: rawURL, DirectBody: []byte(body)}, nil
	}
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("manifest url: %w", err)
	}
	pl, err := manifest.Parse(body, base)
	if err != nil {
		return nil, err
	}

	if pl.Kind == manifest.Media {
		o.log.Debug("input is a media playlist", "url", rawURL, "segments", len(pl.Segments))
		return &Resolution{Media: pl, VariantURL: rawURL}, nil
	}

	if len(pl.Variants) == 0 {
		return nil, types.ErrNoVariants
	}
	variantURL := policy.SelectVariant(pl.Variants, prefs, rawURL)
	o.log.Debug("selected variant", "url", variantURL, "variants", len(pl.Variants))

	res := &Resolution{
		VariantURL: variantURL,
		Subtitle:   policy.SelectSubtitle(pl.SubtitleRenditions(), prefs.PreferredLanguage),
	}
	for _, v := range pl.Variants {
		if v.URL == variantURL {
			res.Bandwidth = v.Bandwidth
			break
		}
	}

	mediaBody, err := o.fetcher.FetchText(ctx, variantURL)
	if err != nil {
		return nil, err
	}
	mediaBase, err := url.Parse(variantURL)
	if err != nil {
		return nil, fmt.Errorf("variant url: %w", err)
	}
	media, err := manifest.Parse(mediaBody, mediaBase)
	if err != nil {
		return nil, err
	}
	if media.Kind != manifest.Media {
		return nil, fmt.Errorf("variant %s resolved to another master playlist", variantURL)
	}
	res.Media = media
	return res, nil
}

// Download builds the fetch plan for a resolution and assembles it into w.
func (o *Orchestrator) Download(ctx context.Context, res *Resolution, w io.Writer, progress assemble.ProgressFunc) error {
	if res.IsDirectAsset() {
		return errors.New("direct asset resolution has no fetch plan")
	}
	p, err := plan.Build(res.Media)
	if err != nil {
		return err
	}
	o.log.Info("assembling stream", "segments", len(p.Tasks), "keys", len(p.KeyURLs), "duration", p.TotalDuration)
	return o.assembler.Assemble(ctx, p, w, progress)
}
