package identity

import (
	"net/url"
	"strings"
)

// Query parameters that vary between visits without changing which
// vehicle the page describes.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"gclid":        true,
	"fbclid":       true,
}

// CanonicalURL normalizes a listing URL into the stable identity key
// used by the store: lowercase scheme and host, fragment dropped,
// tracking parameters stripped, trailing slash trimmed. Unparseable
// input is returned unchanged so it still keys consistently.
func CanonicalURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for param := range q {
		if trackingParams[strings.ToLower(param)] {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()

	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String()
}
