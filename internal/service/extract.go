package service

import (
	"leadharvest/internal/apify"
	"leadharvest/internal/domain"
)

// ExtractProfileURLs pulls the distinct commenter profile URLs out of a
// comments dataset, canonicalized, discovery order preserved. A positive
// limit caps the result. Records without a usable author URL are skipped.
func ExtractProfileURLs(items []apify.CommentItem, limit int) []string {
	seen := make(map[string]struct{}, len(items))
	urls := make([]string, 0, len(items))
	for _, item := range items {
		canonical, err := domain.CanonicalProfileURL(item.Actor.LinkedInURL)
		if err != nil {
			continue
		}
		if _, ok := seen[canonical]; ok {
			continue
		}
		seen[canonical] = struct{}{}
		urls = append(urls, canonical)
		if limit > 0 && len(urls) >= limit {
			break
		}
	}
	return urls
}
