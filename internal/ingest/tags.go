package ingest

import (
	"net/url"
	"strings"
)

// PathTags returns the non-empty path segments of an absolute URL, in order.
// Relative or unparseable input yields no tags rather than an error.
func PathTags(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() {
		return nil
	}
	var tags []string
	for _, part := range strings.Split(u.Path, "/") {
		if part != "" {
			tags = append(tags, part)
		}
	}
	return tags
}
