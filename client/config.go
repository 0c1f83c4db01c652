package client

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/famomatic/hlsv1/internal/fetch"
)

// Config holds configuration for the downloader client.
type Config struct {
	// HTTPClient is the client used for all requests.
	// If nil, a client derived from ProxyURL (or http.DefaultClient) is used.
	HTTPClient *http.Client

	// ProxyURL is the optional proxy URL to use for requests.
	// If HTTPClient is provided, this field is ignored.
	ProxyURL string

	// Logger receives structured logs from every pipeline stage.
	// If nil, logging is disabled.
	Logger hclog.Logger

	// Concurrency bounds parallel segment fetches per download.
	// Zero means the package default.
	Concurrency int

	// MaxAttempts is the per-request retry budget. Zero means the package
	// default of 3.
	MaxAttempts int

	// BackoffStep is the linear backoff unit between attempts. Zero means
	// the package default of 300ms.
	BackoffStep time.Duration

	// Exporter, when set, is invoked with each finished output file.
	Exporter Exporter
}

func defaultHTTPClient(proxyURL string) *http.Client {
	httpClient := fetch.DefaultHTTPClient()
	if strings.TrimSpace(proxyURL) == "" {
		return httpClient
	}
	parsed, err := url.Parse(proxyURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return httpClient
	}
	if transport, ok := httpClient.Transport.(*http.Transport); ok {
		transport.Proxy = http.ProxyURL(parsed)
	}
	return httpClient
}
