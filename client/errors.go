package client

import (
	"errors"

	"github.com/famomatic/hlsv1/internal/types"
)

// Sentinel errors surfaced by the facade. They are the same values the
// internal packages return, re-exported so callers never import internal
// paths.
var (
	// ErrMalformedManifest means the fetched body is not an m3u8 playlist.
	ErrMalformedManifest = types.ErrMalformedManifest
	// ErrEmptyPlaylist means a media playlist contained no segments.
	ErrEmptyPlaylist = types.ErrEmptyPlaylist
	// ErrNoVariants means a master playlist offered nothing selectable.
	ErrNoVariants = types.ErrNoVariants
)

// Typed errors carried through wrapped chains; match with errors.As.
type (
	HTTPStatusError            = types.HTTPStatusError
	UnsupportedEncryptionError = types.UnsupportedEncryptionError
	DecryptionError            = types.DecryptionError
	BadContentTypeError        = types.BadContentTypeError
)

// IsRetryExhausted reports whether err is a transport-level failure that
// survived the retry budget, as opposed to a structural problem with the
// stream (malformed manifest, unsupported encryption, bad padding).
func IsRetryExhausted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMalformedManifest) || errors.Is(err, ErrEmptyPlaylist) {
		return false
	}
	var unsupported *UnsupportedEncryptionError
	var decrypt *DecryptionError
	if errors.As(err, &unsupported) || errors.As(err, &decrypt) {
		return false
	}
	var status *HTTPStatusError
	var badType *BadContentTypeError
	return errors.As(err, &status) || errors.As(err, &badType)
}
