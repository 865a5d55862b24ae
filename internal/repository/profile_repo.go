package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"leadharvest/internal/domain"
)

// ProfileRepository handles shared profile cache operations.
// The cache is global: rows are keyed by canonical URL only, never per user.
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new ProfileRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *ProfileRepository: repository instance bound to db.
func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetByURL retrieves a cached profile by canonical URL.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - url: canonical profile URL.
// Returns:
//   - *domain.Profile: profile record if found.
//   - error: gorm.ErrRecordNotFound if the URL was never scraped, other
//     non-nil values if the lookup fails.
func (r *ProfileRepository) GetByURL(ctx context.Context, url string) (*domain.Profile, error) {
	var profile domain.Profile
	if err := r.db.WithContext(ctx).First(&profile, "url = ?", url).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetByID retrieves a profile by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: profile ID.
// Returns:
//   - *domain.Profile: profile record if found.
//   - error: non-nil if lookup fails.
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	var profile domain.Profile
	if err := r.db.WithContext(ctx).First(&profile, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// Upsert creates or updates a profile record keyed by canonical URL and
// returns the persisted row. On conflict the existing row keeps its ID and
// CreatedAt; payload, display columns and ScrapedAt are overwritten.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - profile: profile record to create or update.
// Returns:
//   - *domain.Profile: the row as stored, with its persistent ID.
//   - error: non-nil if the upsert fails.
func (r *ProfileRepository) Upsert(ctx context.Context, profile *domain.Profile) (*domain.Profile, error) {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "url"}},
		DoUpdates: clause.AssignmentColumns([]string{"full_name", "headline", "payload", "scraped_at", "updated_at"}),
	}).Create(profile).Error; err != nil {
		return nil, fmt.Errorf("failed to upsert profile %s: %w", profile.URL, err)
	}

	var saved domain.Profile
	if err := r.db.WithContext(ctx).First(&saved, "url = ?", profile.URL).Error; err != nil {
		return nil, fmt.Errorf("failed to reload profile %s: %w", profile.URL, err)
	}
	return &saved, nil
}

// LinkToUser records that a user requested a cached profile. The link is
// idempotent: repeated requests keep a single row per (user, profile).
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: requesting user.
//   - profileID: cached profile ID.
// Returns:
//   - error: non-nil if the insert fails.
func (r *ProfileRepository) LinkToUser(ctx context.Context, userID, profileID string) error {
	link := &domain.ProfileLink{
		ID:        uuid.New().String(),
		UserID:    userID,
		ProfileID: profileID,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "profile_id"}},
		DoNothing: true,
	}).Create(link).Error
}

// ListByUser retrieves the profiles linked to a user with pagination,
// newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: user whose linked profiles to list.
//   - limit: maximum number of records to return.
//   - offset: number of records to skip.
// Returns:
//   - []domain.Profile: matching profile records.
//   - error: non-nil if the query fails.
func (r *ProfileRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Profile, error) {
	var profiles []domain.Profile
	if err := r.db.WithContext(ctx).
		Joins("JOIN profile_links ON profile_links.profile_id = profiles.id").
		Where("profile_links.user_id = ?", userID).
		Order("profile_links.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

// CountByUser counts the profiles linked to a user.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: user whose linked profiles to count.
// Returns:
//   - int64: number of linked profiles.
//   - error: non-nil if the query fails.
func (r *ProfileRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.ProfileLink{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// IsLinkedToUser reports whether a profile appears in a user's view.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: owner to check.
//   - profileID: profile to check.
// Returns:
//   - bool: true if a link row exists.
//   - error: non-nil if the query fails.
func (r *ProfileRepository) IsLinkedToUser(ctx context.Context, userID, profileID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.ProfileLink{}).
		Where("user_id = ? AND profile_id = ?", userID, profileID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// DeleteForUser removes profiles from one user's view. Cache rows themselves
// are only deleted once no other user links them; this is the only way cache
// rows leave the store, nothing deletes them automatically.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: owner whose links are removed.
//   - ids: profile IDs to unlink.
// Returns:
//   - int64: number of links removed.
//   - error: non-nil if the delete fails.
func (r *ProfileRepository) DeleteForUser(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var unlinked int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&domain.ProfileLink{}, "user_id = ? AND profile_id IN ?", userID, ids)
		if res.Error != nil {
			return fmt.Errorf("failed to delete profile links: %w", res.Error)
		}
		unlinked = res.RowsAffected

		if err := tx.
			Where("id IN ?", ids).
			Where("NOT EXISTS (SELECT 1 FROM profile_links WHERE profile_links.profile_id = profiles.id)").
			Delete(&domain.Profile{}).Error; err != nil {
			return fmt.Errorf("failed to delete orphaned profiles: %w", err)
		}
		return nil
	})
	return unlinked, err
}
