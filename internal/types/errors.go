package types

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedManifest indicates the fetched body does not start with #EXTM3U.
	ErrMalformedManifest = errors.New("not an m3u8 playlist")

	// ErrEmptyPlaylist indicates a media playlist with zero usable segments.
	ErrEmptyPlaylist = errors.New("playlist contains no segments")

	// ErrNoVariants indicates a master playlist with no selectable variant streams.
	ErrNoVariants = errors.New("master playlist contains no variants")
)

// HTTPStatusError reports an upstream response outside the 2xx range.
type HTTPStatusError struct {
	StatusCode int
	URL        string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("upstream HTTP %d for %s", e.StatusCode, e.URL)
}

// UnsupportedEncryptionError reports a key method other than AES-128 or NONE.
type UnsupportedEncryptionError struct {
	Method string
}

func (e *UnsupportedEncryptionError) Error() string {
	return fmt.Sprintf("unsupported encryption method %q", e.Method)
}

// DecryptionError reports a cipher or padding failure. It usually means a
// wrong key/IV pair or a corrupted transfer.
type DecryptionError struct {
	Reason string
}

func (e *DecryptionError) Error() string {
	return "decryption failed: " + e.Reason
}

// BadContentTypeError reports a media fetch that answered with an HTML or
// JSON body. Interstitial pages masquerade as segments this way; the fetch
// layer treats it as a retryable failure.
type BadContentTypeError struct {
	ContentType string
}

func (e *BadContentTypeError) Error() string {
	return fmt.Sprintf("unexpected content type %q", e.ContentType)
}
