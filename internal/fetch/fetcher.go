// Package fetch performs the HTTP side of a download: manifest text fetches,
// segment byte fetches with range support, retry with linear backoff, and
// AES-128 segment decryption.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/famomatic/hlsv1/internal/manifest"
	"github.com/famomatic/hlsv1/internal/plan"
	"github.com/famomatic/hlsv1/internal/types"
)

const (
	defaultMaxAttempts = 3
	defaultBackoffStep = 300 * time.Millisecond

	// Defaults for clients built by this package. Segment bodies can be
	// large, so the read bound is on response headers, not the full body;
	// body stalls are covered by the caller's context.
	defaultConnectTimeout = 20 * time.Second
	defaultReadTimeout    = 20 * time.Second
)

// Config controls a Fetcher. The zero value of every field has a usable
// default except Client, which falls back to http.DefaultClient.
type Config struct {
	// Client is the shared HTTP client. It is owned by the caller and safe
	// for concurrent use across downloads.
	Client *http.Client
	// Headers is the header context applied to every request.
	Headers types.RequestHeaders
	// MaxAttempts is the total number of tries per network operation.
	MaxAttempts int
	// BackoffStep is multiplied by the attempt number between tries.
	BackoffStep time.Duration
	Logger      hclog.Logger
}

// Fetcher issues the HTTP requests of one download. It holds no per-plan
// state; key caches are created per plan execution.
type Fetcher struct {
	client      *http.Client
	headers     types.RequestHeaders
	maxAttempts int
	backoffStep time.Duration
	log         hclog.Logger
}

// DefaultHTTPClient returns a client with the connect and read timeouts
// every download operation must carry. http.DefaultClient has neither and
// would hang on a silently stalled origin.
func DefaultHTTPClient() *http.Client {
	return newHTTPClient(defaultConnectTimeout, defaultReadTimeout)
}

func newHTTPClient(connectTimeout, readTimeout time.Duration) *http.Client {
	transport, ok := http.DefaultTransport.(*http.Transport)
	if ok {
		transport = transport.Clone()
	} else {
		transport = &http.Transport{}
	}
	transport.DialContext = (&net.Dialer{Timeout: connectTimeout}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout
	transport.ResponseHeaderTimeout = readTimeout
	return &http.Client{Transport: transport}
}

func New(cfg Config) *Fetcher {
	client := cfg.Client
	if client == nil {
		client = DefaultHTTPClient()
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	step := cfg.BackoffStep
	if step <= 0 {
		step = defaultBackoffStep
	}
	logger := cfg.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Fetcher{
		client:      client,
		headers:     cfg.Headers,
		maxAttempts: attempts,
		backoffStep: step,
		log:         logger.Named("fetch"),
	}
}

// FetchText fetches a playlist body. Success requires a 2xx status.
func (f *Fetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	var body string
	err := f.withRetry(ctx, rawURL, func() error {
		b, err := f.doGET(ctx, rawURL, types.AcceptPlaylist, nil, false)
		if err != nil {
			return err
		}
		body = string(b)
		return nil
	})
	return body, err
}

// FetchBytes fetches segment or key bytes. When br is non-nil a Range header
// is sent: bytes=<start>-<end> with an explicit start, bytes=0-<len-1>
// without one (the no-offset reset policy). An HTML or JSON response body is
// treated as a failure and retried.
func (f *Fetcher) FetchBytes(ctx context.Context, rawURL string, br *manifest.ByteRange) ([]byte, error) {
	var data []byte
	err := f.withRetry(ctx, rawURL, func() error {
		b, err := f.doGET(ctx, rawURL, types.AcceptAny, br, true)
		if err != nil {
			return err
		}
		data = b
		return nil
	})
	return data, err
}

// FetchSegment fetches one task's bytes and decrypts them when the task has
// an active AES-128 key. keys memoizes key fetches for the plan execution.
func (f *Fetcher) FetchSegment(ctx context.Context, task plan.FetchTask, keys *KeyCache) ([]byte, error) {
	data, err := f.FetchBytes(ctx, task.Segment.URL, task.Segment.ByteRange)
	if err != nil {
		return nil, err
	}
	key := task.ActiveKey
	if key == nil {
		return data, nil
	}
	if key.Method != "AES-128" {
		return nil, &types.UnsupportedEncryptionError{Method: key.Method}
	}
	keyBytes, err := keys.Get(ctx, key.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch key: %w", err)
	}
	iv := key.IV
	if len(iv) == 0 {
		iv = SequenceIV(task.Segment.SequenceIndex)
	}
	return DecryptAES128(data, keyBytes, iv)
}

func (f *Fetcher) withRetry(ctx context.Context, rawURL string, op func() error) error {
	var lastErr error
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) || attempt == f.maxAttempts {
			return lastErr
		}
		f.log.Debug("retrying fetch", "url", rawURL, "attempt", attempt, "error", lastErr)
		if err := sleep(ctx, f.backoffStep*time.Duration(attempt)); err != nil {
			return err
		}
	}
	return lastErr
}

func (f *Fetcher) doGET(ctx context.Context, rawURL, accept string, br *manifest.ByteRange, binary bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	f.headers.Apply(req, accept)
	if br != nil {
		req.Header.Set("Range", rangeHeader(br))
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &types.HTTPStatusError{StatusCode: resp.StatusCode, URL: rawURL}
	}
	if binary {
		// An error page served with a 200 still must not end up inside a
		// media file.
		ct := strings.ToLower(resp.Header.Get("Content-Type"))
		if strings.Contains(ct, "text/html") || strings.Contains(ct, "application/json") {
			return nil, &types.BadContentTypeError{ContentType: ct}
		}
	}
	return io.ReadAll(resp.Body)
}

func rangeHeader(br *manifest.ByteRange) string {
	if br.Start != nil {
		return fmt.Sprintf("bytes=%d-%d", *br.Start, *br.Start+br.Length-1)
	}
	return fmt.Sprintf("bytes=0-%d", br.Length-1)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var unsupported *types.UnsupportedEncryptionError
	if errors.As(err, &unsupported) {
		return false
	}
	var decrypt *types.DecryptionError
	return !errors.As(err, &decrypt)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
