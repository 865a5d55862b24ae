package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// CanonicalProfileURL normalizes a profile URL into the form used as the
// shared cache key: https scheme, lowercase host without a leading "www.",
// query, fragment and trailing slashes dropped. Path case is preserved.
func CanonicalProfileURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("empty profile url")
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse profile url %q: %w", raw, err)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	if host == "" {
		return "", fmt.Errorf("profile url %q has no host", raw)
	}
	path := strings.TrimRight(u.Path, "/")
	return "https://" + host + path, nil
}
