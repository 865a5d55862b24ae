package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"leadharvest/internal/apify"
	"leadharvest/internal/domain"
	"leadharvest/internal/logger"
	"leadharvest/internal/repository"
)

// ScrapeFunc fetches profile details for a batch of URLs. The orchestrator
// passes the Apify client's ScrapeProfiles bound to the job's credentials.
type ScrapeFunc func(ctx context.Context, urls []string) ([]apify.ProfileItem, error)

// ResolveResult carries the outcome of one Resolve call.
type ResolveResult struct {
	Profiles    []domain.Profile
	CacheHits   int
	CacheMisses int
	Scraped     int
	// ScrapedRaw holds the unmodified dataset records of the scraped subset,
	// in dataset order, for the run archive.
	ScrapedRaw []json.RawMessage
}

// Resolver answers profile lookups from the shared cache and scrapes only
// the URLs the cache cannot serve. The cache key is the canonical profile
// URL alone; per-user visibility lives in profile_links.
type Resolver struct {
	profiles     *repository.ProfileRepository
	refreshAfter time.Duration
	logger       *logger.Logger
}

// NewResolver creates a new Resolver. A positive refreshAfter treats cache
// entries older than the window as misses; 0 keeps them forever.
func NewResolver(profiles *repository.ProfileRepository, refreshAfter time.Duration, log *logger.Logger) *Resolver {
	return &Resolver{
		profiles:     profiles,
		refreshAfter: refreshAfter,
		logger:       log,
	}
}

// log returns a logger from context if available, otherwise returns the service logger
func (r *Resolver) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return r.logger
}

// Resolve returns one profile per requested URL, serving cached entries and
// scraping the misses in a single batch.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - urls: profile URLs; canonicalized and de-duplicated, order preserved.
//   - userID: owner the resolved profiles are linked to.
//   - scrape: batch scrape, invoked once with exactly the miss list.
// Returns:
//   - *ResolveResult: resolved profiles plus cache counters.
//   - error: non-nil on invalid input, cache read failure or scrape failure.
func (r *Resolver) Resolve(ctx context.Context, urls []string, userID string, scrape ScrapeFunc) (*ResolveResult, error) {
	canonical := make([]string, 0, len(urls))
	requested := make(map[string]struct{}, len(urls))
	for _, raw := range urls {
		u, err := domain.CanonicalProfileURL(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid profile url %q: %w", raw, err)
		}
		if _, ok := requested[u]; ok {
			continue
		}
		requested[u] = struct{}{}
		canonical = append(canonical, u)
	}
	if len(canonical) == 0 {
		return nil, errors.New("no profile urls to resolve")
	}

	result := &ResolveResult{Profiles: make([]domain.Profile, 0, len(canonical))}
	added := make(map[string]struct{}, len(canonical))
	misses := make([]string, 0, len(canonical))
	for _, u := range canonical {
		cached, err := r.profiles.GetByURL(ctx, u)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				misses = append(misses, u)
				continue
			}
			return nil, fmt.Errorf("cache lookup for %s: %w", u, err)
		}
		if r.stale(cached) {
			misses = append(misses, u)
			continue
		}
		if err := r.profiles.LinkToUser(ctx, userID, cached.ID); err != nil {
			r.log(ctx).WithError(err).WithField("url", u).Warn("failed to link cached profile")
		}
		added[u] = struct{}{}
		result.Profiles = append(result.Profiles, *cached)
		result.CacheHits++
	}
	result.CacheMisses = len(misses)

	r.log(ctx).WithFields(logger.Fields{
		logger.FieldCount: len(canonical),
		"cache_hits":      result.CacheHits,
		"cache_misses":    result.CacheMisses,
	}).Info("Resolved profiles against cache")

	if len(misses) == 0 {
		return result, nil
	}

	items, err := scrape(ctx, misses)
	if err != nil {
		return nil, err
	}
	result.Scraped = len(items)

	now := time.Now()
	for _, item := range items {
		result.ScrapedRaw = append(result.ScrapedRaw, item.Raw)

		key, err := domain.CanonicalProfileURL(item.LinkedInURL)
		if err != nil {
			r.log(ctx).WithField("url", item.LinkedInURL).Warn("scraped record has no usable profile url, skipping")
			continue
		}
		if _, ok := added[key]; ok {
			continue
		}
		added[key] = struct{}{}

		profile := domain.Profile{
			ID:        uuid.New().String(),
			URL:       key,
			FullName:  item.FullName,
			Headline:  item.Headline,
			Payload:   domain.JSONText(item.Raw),
			ScrapedAt: now,
		}

		// Cache writes are best-effort: a failed upsert still surfaces the
		// scraped data in the result.
		saved, err := r.profiles.Upsert(ctx, &profile)
		if err != nil {
			r.log(ctx).WithError(err).WithField("url", key).Warn("failed to cache scraped profile")
			result.Profiles = append(result.Profiles, profile)
			continue
		}
		if err := r.profiles.LinkToUser(ctx, userID, saved.ID); err != nil {
			r.log(ctx).WithError(err).WithField("url", key).Warn("failed to link scraped profile")
		}
		result.Profiles = append(result.Profiles, *saved)
	}

	return result, nil
}

// stale reports whether a cached profile has aged out of the refresh window.
func (r *Resolver) stale(p *domain.Profile) bool {
	if r.refreshAfter <= 0 {
		return false
	}
	return time.Since(p.ScrapedAt) > r.refreshAfter
}
