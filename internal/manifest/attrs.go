package manifest

import "strings"

// attrValue extracts the value of an attribute from a tag line. Real-world
// manifests are sloppy about quoting, so values may be double-quoted,
// single-quoted or bare (terminated by the next comma). Keys match
// case-insensitively and must not be a suffix of a longer key (GROUP-ID vs
// ID).
func attrValue(line, key string) string {
	upper := strings.ToUpper(line)
	key = strings.ToUpper(key)
	from := 0
	for {
		i := strings.Index(upper[from:], key+"=")
		if i < 0 {
			return ""
		}
		i += from
		// Reject matches preceded by an attribute-name character.
		if i > 0 {
			prev := upper[i-1]
			if prev != ',' && prev != ':' && prev != ' ' && prev != '\t' {
				from = i + len(key)
				continue
			}
		}
		raw := line[i+len(key)+1:]
		return cutAttrValue(raw)
	}
}

func cutAttrValue(raw string) string {
	if raw == "" {
		return ""
	}
	switch raw[0] {
	case '"', '\'':
		quote := raw[0]
		if end := strings.IndexByte(raw[1:], quote); end >= 0 {
			return raw[1 : 1+end]
		}
		// Unterminated quote: take the rest, minus stray quotes.
		return strings.Trim(raw[1:], `"'`)
	default:
		if end := strings.IndexByte(raw, ','); end >= 0 {
			raw = raw[:end]
		}
		return strings.TrimSpace(raw)
	}
}
