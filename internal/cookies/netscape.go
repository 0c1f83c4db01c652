// Package cookies loads Netscape cookies.txt files so a downloader can
// replay a browser session's cookies on manifest and segment requests.
package cookies

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// ParseNetscape parses the Netscape cookies.txt format.
// Format: domain flag path secure expiration name value
func ParseNetscape(r io.Reader) ([]*http.Cookie, error) {
	var cookies []*http.Cookie
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, "\t")
		if len(parts) < 7 {
			continue
		}

		secure := strings.EqualFold(parts[3], "TRUE")
		expiresUnix, _ := strconv.ParseInt(parts[4], 10, 64)

		cookies = append(cookies, &http.Cookie{
			Name:    parts[5],
			Value:   parts[6],
			Domain:  parts[0],
			Path:    parts[2],
			Expires: time.Unix(expiresUnix, 0),
			Secure:  secure,
		})
	}

	return cookies, scanner.Err()
}

// HeaderValue flattens cookies into a single Cookie header value, skipping
// entries that have already expired. Session cookies (zero expiration) are
// kept.
func HeaderValue(cookies []*http.Cookie, now time.Time) string {
	var b strings.Builder
	for _, c := range cookies {
		if c.Expires.Unix() > 0 && c.Expires.Before(now) {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("; ")
		}
		b.WriteString(c.Name)
		b.WriteString("=")
		b.WriteString(c.Value)
	}
	return b.String()
}

// LoadHeaderValue reads a cookies.txt file and returns its Cookie header
// value.
func LoadHeaderValue(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open cookies file: %w", err)
	}
	defer f.Close()
	parsed, err := ParseNetscape(f)
	if err != nil {
		return "", fmt.Errorf("parse cookies file: %w", err)
	}
	return HeaderValue(parsed, time.Now()), nil
}
