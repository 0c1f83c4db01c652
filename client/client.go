// Package client is the public facade of the downloader: it resolves an HLS
// manifest URL (or a direct media asset), picks a variant, and downloads the
// stream plus an optional subtitle track, reporting progress on an event
// channel.
package client

import (
	"github.com/hashicorp/go-hclog"

	"github.com/famomatic/hlsv1/internal/assemble"
	"github.com/famomatic/hlsv1/internal/fetch"
	"github.com/famomatic/hlsv1/internal/orchestrate"
	"github.com/famomatic/hlsv1/internal/subtitle"
	"github.com/famomatic/hlsv1/internal/types"
)

// Client is the high-level HLS downloader. It is safe for concurrent use;
// each download carries its own state.
type Client struct {
	config Config
	log    hclog.Logger
}

// New creates a downloader client.
func New(config Config) *Client {
	if config.HTTPClient == nil {
		config.HTTPClient = defaultHTTPClient(config.ProxyURL)
	}
	logger := config.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Client{
		config: config,
		log:    logger,
	}
}

// pipeline wires the per-download stages around one set of request headers.
type pipeline struct {
	fetcher      *fetch.Fetcher
	orchestrator *orchestrate.Orchestrator
	subtitles    *subtitle.Downloader
}

func (c *Client) newPipeline(headers types.RequestHeaders) *pipeline {
	f := fetch.New(fetch.Config{
		Client:      c.config.HTTPClient,
		Headers:     headers,
		MaxAttempts: c.config.MaxAttempts,
		BackoffStep: c.config.BackoffStep,
		Logger:      c.log,
	})
	return &pipeline{
		fetcher: f,
		orchestrator: orchestrate.New(orchestrate.Config{
			Fetcher: f,
			Assembler: assemble.New(assemble.Config{
				Fetcher:     f,
				Concurrency: c.config.Concurrency,
				Logger:      c.log,
			}),
			Logger: c.log,
		}),
		subtitles: subtitle.NewDownloader(f, c.log),
	}
}
