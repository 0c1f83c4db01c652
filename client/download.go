package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/famomatic/hlsv1/internal/cookies"
	"github.com/famomatic/hlsv1/internal/manifest"
	"github.com/famomatic/hlsv1/internal/policy"
	"github.com/famomatic/hlsv1/internal/types"
)

// Headers carries the request headers replayed on every fetch of a download.
type Headers struct {
	UserAgent string
	Referer   string
	// Cookie is a raw Cookie header value.
	Cookie string
	// CookiesFile is a Netscape cookies.txt path; flattened into Cookie
	// when Cookie is empty.
	CookiesFile string
}

// Preferences steer variant and subtitle selection.
type Preferences struct {
	// PreferDubbedAudio favors variants whose attributes or URL hint at a
	// dubbed audio track.
	PreferDubbedAudio bool
	// PreferSubtitles favors variants hinting at burned-in or bundled
	// subtitles.
	PreferSubtitles bool
	// SubtitleLanguage picks the subtitle rendition by language code, with
	// a name-substring fallback.
	SubtitleLanguage string
	// SkipSubtitles disables the subtitle track download entirely.
	SkipSubtitles bool
}

// Request describes one download.
type Request struct {
	// URL is a master playlist, media playlist, or direct media asset URL.
	URL string
	// OutputPath is the destination file for the video track.
	OutputPath string
	Headers    Headers
	Prefs      Preferences
}

// Result describes a finished download.
type Result struct {
	ID uuid.UUID
	// OutputPath is the written video (or direct asset) file.
	OutputPath string
	// SubtitlePath is the written subtitle file, empty when none.
	SubtitlePath string
	// Bytes is the size of the video output.
	Bytes int64
	// DirectAsset is true when the URL was not a playlist and was saved
	// verbatim.
	DirectAsset bool
}

// Download is a running download: its ID and its event channel. Events end
// with Completed or Failed and the channel is then closed.
type Download struct {
	ID     uuid.UUID
	Events <-chan Event
}

// Start launches a download and returns its event stream. Cancel ctx to
// abort; the terminal Failed event then carries the cancellation error.
func (c *Client) Start(ctx context.Context, req Request) *Download {
	id := uuid.New()
	events := make(chan Event)
	go func() {
		defer close(events)
		emit := func(ev Event) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		}
		res, err := c.run(ctx, id, req, emit)
		if err != nil {
			emit(Failed{baseEvent{id}, err})
			return
		}
		emit(Completed{baseEvent{id}, *res})
	}()
	return &Download{ID: id, Events: events}
}

// Download runs a download synchronously, discarding progress events.
func (c *Client) Download(ctx context.Context, req Request) (*Result, error) {
	d := c.Start(ctx, req)
	var result *Result
	var failure error
	for ev := range d.Events {
		switch ev := ev.(type) {
		case Completed:
			r := ev.Result
			result = &r
		case Failed:
			failure = ev.Err
		}
	}
	if failure != nil {
		return nil, failure
	}
	if result == nil {
		// Producer exited without a terminal event: ctx was cancelled
		// while emitting.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("download ended without result")
	}
	return result, nil
}

func (c *Client) run(ctx context.Context, id uuid.UUID, req Request, emit func(Event)) (*Result, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, errors.New("empty url")
	}
	if strings.TrimSpace(req.OutputPath) == "" {
		return nil, errors.New("empty output path")
	}

	headers, err := c.requestHeaders(req.Headers)
	if err != nil {
		return nil, err
	}
	pipe := c.newPipeline(headers)
	log := c.log.With("download_id", id.String())

	emit(Started{baseEvent{id}, req.URL})
	log.Info("starting download", "url", req.URL, "output", req.OutputPath)

	resolution, err := pipe.orchestrator.Resolve(ctx, req.URL, policy.Preferences{
		PreferDubbedAudio: req.Prefs.PreferDubbedAudio,
		PreferSubtitles:   req.Prefs.PreferSubtitles,
		PreferredLanguage: req.Prefs.SubtitleLanguage,
	})
	if err != nil {
		return nil, err
	}
	if resolution.IsDirectAsset() {
		// Not a playlist at all: the preflight already holds the whole
		// body, so save it instead of transferring it a second time.
		log.Info("url is not a playlist, saving as direct asset", "bytes", len(resolution.DirectBody))
		emit(Resolved{baseEvent: baseEvent{id}, VariantURL: req.URL})
		if err := os.WriteFile(req.OutputPath, resolution.DirectBody, 0o644); err != nil {
			return nil, fmt.Errorf("write asset: %w", err)
		}
		emit(TrackCompleted{baseEvent{id}, TrackVideo, req.OutputPath})
		result := &Result{ID: id, OutputPath: req.OutputPath, Bytes: int64(len(resolution.DirectBody)), DirectAsset: true}
		return result, c.export(ctx, result)
	}

	hasSubtitle := resolution.Subtitle != nil && !req.Prefs.SkipSubtitles
	emit(Resolved{
		baseEvent:      baseEvent{id},
		VariantURL:     resolution.VariantURL,
		Segments:       len(resolution.Media.Segments),
		EstimatedBytes: resolution.EstimatedBytes(),
		HasSubtitle:    hasSubtitle,
	})

	out, err := os.Create(req.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	counted := &countingWriter{w: out}
	assembleErr := pipe.orchestrator.Download(ctx, resolution, counted, func(completed, total int) {
		emit(TrackProgress{baseEvent{id}, TrackVideo, completed, total})
	})
	closeErr := out.Close()
	if assembleErr != nil {
		os.Remove(req.OutputPath)
		return nil, assembleErr
	}
	if closeErr != nil {
		os.Remove(req.OutputPath)
		return nil, fmt.Errorf("close output: %w", closeErr)
	}
	emit(TrackCompleted{baseEvent{id}, TrackVideo, req.OutputPath})

	result := &Result{ID: id, OutputPath: req.OutputPath, Bytes: counted.n}

	if hasSubtitle {
		subPath, err := c.saveSubtitle(ctx, pipe, resolution.Subtitle, req.OutputPath)
		if err != nil {
			// Subtitles are best-effort; the video output stands.
			log.Warn("subtitle download failed", "url", resolution.Subtitle.URL, "error", err)
		} else {
			result.SubtitlePath = subPath
			emit(TrackCompleted{baseEvent{id}, TrackSubtitle, subPath})
		}
	}

	return result, c.export(ctx, result)
}

func (c *Client) requestHeaders(h Headers) (types.RequestHeaders, error) {
	headers := types.RequestHeaders{
		UserAgent: h.UserAgent,
		Referer:   h.Referer,
		Cookie:    h.Cookie,
	}
	if headers.Cookie == "" && h.CookiesFile != "" {
		value, err := cookies.LoadHeaderValue(h.CookiesFile)
		if err != nil {
			return types.RequestHeaders{}, err
		}
		headers.Cookie = value
	}
	return headers, nil
}

// saveSubtitle resolves the rendition into one document and writes it next
// to the video output, keeping the document's own format extension.
func (c *Client) saveSubtitle(ctx context.Context, pipe *pipeline, rendition *manifest.Rendition, outputPath string) (string, error) {
	content, ext, err := pipe.subtitles.Resolve(ctx, rendition.URL)
	if err != nil {
		return "", err
	}
	path := subtitlePathFor(outputPath, rendition.Language, ext)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write subtitle: %w", err)
	}
	return path, nil
}

func (c *Client) export(ctx context.Context, result *Result) error {
	if c.config.Exporter == nil {
		return nil
	}
	exported, err := c.config.Exporter.Export(ctx, result.OutputPath)
	if err != nil {
		return fmt.Errorf("export %s: %w", result.OutputPath, err)
	}
	result.OutputPath = exported
	if result.SubtitlePath != "" {
		exported, err := c.config.Exporter.Export(ctx, result.SubtitlePath)
		if err != nil {
			return fmt.Errorf("export %s: %w", result.SubtitlePath, err)
		}
		result.SubtitlePath = exported
	}
	return nil
}

// subtitlePathFor derives "video.tr.vtt" from "video.mp4" and ".vtt".
func subtitlePathFor(outputPath, language, subtitleExt string) string {
	ext := filepath.Ext(outputPath)
	base := strings.TrimSuffix(outputPath, ext)
	if language != "" {
		return base + "." + language + subtitleExt
	}
	return base + subtitleExt
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
