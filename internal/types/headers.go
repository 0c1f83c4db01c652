package types

import (
	"net/http"
	"net/url"
)

const (
	// AcceptPlaylist is sent on manifest fetches.
	AcceptPlaylist = "application/x-mpegURL,application/vnd.apple.mpegurl,*/*"
	// AcceptAny is sent on segment and key fetches.
	AcceptAny = "*/*"

	defaultAcceptLanguage = "tr-TR,tr;q=0.8,en-US;q=0.6,en;q=0.4"
)

// RequestHeaders carries the header context a candidate URL was discovered
// with. All fields are optional.
type RequestHeaders struct {
	UserAgent      string
	Referer        string
	Cookie         string
	AcceptLanguage string
}

// Apply sets the header context on req. Accept should be AcceptPlaylist for
// manifest fetches and AcceptAny otherwise. An Origin header is derived from
// the Referer when one is set.
func (h RequestHeaders) Apply(req *http.Request, accept string) {
	if h.UserAgent != "" {
		req.Header.Set("User-Agent", h.UserAgent)
	}
	if h.Referer != "" {
		req.Header.Set("Referer", h.Referer)
		if origin := originOf(h.Referer); origin != "" {
			req.Header.Set("Origin", origin)
		}
	}
	if h.Cookie != "" {
		req.Header.Set("Cookie", h.Cookie)
	}
	lang := h.AcceptLanguage
	if lang == "" {
		lang = defaultAcceptLanguage
	}
	req.Header.Set("Accept-Language", lang)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
}

func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
