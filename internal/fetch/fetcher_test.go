package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famomatic/hlsv1/internal/manifest"
	"github.com/famomatic/hlsv1/internal/plan"
	"github.com/famomatic/hlsv1/internal/types"
)

func newTestFetcher(server *httptest.Server, headers types.RequestHeaders) *Fetcher {
	return New(Config{
		Client:      server.Client(),
		Headers:     headers,
		BackoffStep: time.Millisecond,
	})
}

func TestFetchTextAppliesHeaders(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte("#EXTM3U\n"))
	}))
	defer server.Close()

	f := newTestFetcher(server, types.RequestHeaders{
		UserAgent: "ua-test",
		Referer:   "https://watch.example.com:8443/page",
		Cookie:    "sid=1",
	})
	body, err := f.FetchText(context.Background(), server.URL+"/master.m3u8")
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U\n", body)

	assert.Equal(t, "ua-test", got.Get("User-Agent"))
	assert.Equal(t, "https://watch.example.com:8443/page", got.Get("Referer"))
	assert.Equal(t, "https://watch.example.com:8443", got.Get("Origin"))
	assert.Equal(t, "sid=1", got.Get("Cookie"))
	assert.Equal(t, types.AcceptPlaylist, got.Get("Accept"))
	assert.NotEmpty(t, got.Get("Accept-Language"))
}

func TestFetchTextStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	f := newTestFetcher(server, types.RequestHeaders{})
	_, err := f.FetchText(context.Background(), server.URL)
	var statusErr *types.HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
}

func TestFetchBytesRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "flaky", http.StatusInternalServerError)
			return
		}
		w.Write([]byte("segment-bytes"))
	}))
	defer server.Close()

	f := newTestFetcher(server, types.RequestHeaders{})
	data, err := f.FetchBytes(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("segment-bytes"), data)
	assert.EqualValues(t, 3, calls.Load())
}

func TestFetchBytesGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	f := newTestFetcher(server, types.RequestHeaders{})
	_, err := f.FetchBytes(context.Background(), server.URL, nil)
	require.Error(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestFetchBytesRejectsInterstitialPages(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			// A 200 that is actually an error page.
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte("<html>please sign in</html>"))
			return
		}
		w.Header().Set("Content-Type", "video/mp2t")
		w.Write([]byte("real-bytes"))
	}))
	defer server.Close()

	f := newTestFetcher(server, types.RequestHeaders{})
	data, err := f.FetchBytes(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("real-bytes"), data)
	assert.EqualValues(t, 2, calls.Load())
}

func TestFetchBytesRangeHeaders(t *testing.T) {
	var ranges []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ranges = append(ranges, r.Header.Get("Range"))
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte("x"))
	}))
	defer server.Close()

	f := newTestFetcher(server, types.RequestHeaders{})
	start := int64(2000)
	_, err := f.FetchBytes(context.Background(), server.URL, &manifest.ByteRange{Length: 1000, Start: &start})
	require.NoError(t, err)
	_, err = f.FetchBytes(context.Background(), server.URL, &manifest.ByteRange{Length: 1000})
	require.NoError(t, err)

	assert.Equal(t, []string{"bytes=2000-2999", "bytes=0-999"}, ranges)
}

func TestFetchSegmentDecrypts(t *testing.T) {
	key := []byte("0123456789abcdef")
	plaintext := []byte("decrypted segment payload")

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/key.bin", func(w http.ResponseWriter, r *http.Request) {
		w.Write(key)
	})
	mux.HandleFunc("/seg5.ts", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp2t")
		w.Write(encryptAES128(t, plaintext, key, SequenceIV(5)))
	})

	f := newTestFetcher(server, types.RequestHeaders{})
	task := plan.FetchTask{
		Segment: manifest.SegmentDirective{URL: server.URL + "/seg5.ts", SequenceIndex: 5},
		ActiveKey: &manifest.KeyDirective{
			Method: "AES-128",
			URL:    server.URL + "/key.bin",
		},
	}
	got, err := f.FetchSegment(context.Background(), task, NewKeyCache(f))
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestFetchSegmentUnsupportedMethod(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("bytes"))
	}))
	defer server.Close()

	f := newTestFetcher(server, types.RequestHeaders{})
	task := plan.FetchTask{
		Segment:   manifest.SegmentDirective{URL: server.URL},
		ActiveKey: &manifest.KeyDirective{Method: "SAMPLE-AES", URL: server.URL},
	}
	_, err := f.FetchSegment(context.Background(), task, NewKeyCache(f))
	var unsupported *types.UnsupportedEncryptionError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "SAMPLE-AES", unsupported.Method)
}

func TestKeyCacheSingleFlight(t *testing.T) {
	var keyRequests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keyRequests.Add(1)
		// Hold the first request open a moment so concurrent callers pile up
		// on the single flight.
		time.Sleep(20 * time.Millisecond)
		w.Write([]byte("0123456789abcdef"))
	}))
	defer server.Close()

	f := newTestFetcher(server, types.RequestHeaders{})
	cache := NewKeyCache(f)

	const callers = 20
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = cache.Get(context.Background(), server.URL+"/key.bin")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, keyRequests.Load())
}

func TestDefaultClientCarriesTimeouts(t *testing.T) {
	f := New(Config{})
	transport, ok := f.client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, defaultConnectTimeout, transport.TLSHandshakeTimeout)
	assert.Equal(t, defaultReadTimeout, transport.ResponseHeaderTimeout)
	assert.NotNil(t, transport.DialContext)
}

func TestDefaultClientFailsOnStalledOrigin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Never write a header until the client gives up.
		<-r.Context().Done()
	}))
	defer server.Close()

	f := New(Config{
		Client:      newHTTPClient(time.Second, 50*time.Millisecond),
		MaxAttempts: 1,
	})
	start := time.Now()
	_, err := f.FetchText(context.Background(), server.URL+"/stalled.m3u8")
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
