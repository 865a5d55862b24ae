package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"leadharvest/internal/domain"
)

// CredentialRepository handles per-user provider token operations.
type CredentialRepository struct {
	db *gorm.DB
}

// NewCredentialRepository creates a new CredentialRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *CredentialRepository: repository instance bound to db.
func NewCredentialRepository(db *gorm.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Upsert creates or updates a credential keyed by (user, provider) and
// returns the persisted row. Saving again overwrites token and label.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - cred: credential record to create or update.
// Returns:
//   - *domain.Credential: the row as stored, with its persistent ID.
//   - error: non-nil if the upsert fails.
func (r *CredentialRepository) Upsert(ctx context.Context, cred *domain.Credential) (*domain.Credential, error) {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{"label", "token", "updated_at"}),
	}).Create(cred).Error; err != nil {
		return nil, fmt.Errorf("failed to upsert credential: %w", err)
	}

	var saved domain.Credential
	if err := r.db.WithContext(ctx).
		First(&saved, "user_id = ? AND provider = ?", cred.UserID, cred.Provider).Error; err != nil {
		return nil, fmt.Errorf("failed to reload credential: %w", err)
	}
	return &saved, nil
}

// GetByUser retrieves a user's credential for a provider.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: credential owner.
//   - provider: provider identifier, e.g. domain.ProviderApify.
// Returns:
//   - *domain.Credential: credential record if found.
//   - error: gorm.ErrRecordNotFound if the user stored no token for the
//     provider, other non-nil values if the lookup fails.
func (r *CredentialRepository) GetByUser(ctx context.Context, userID, provider string) (*domain.Credential, error) {
	var cred domain.Credential
	if err := r.db.WithContext(ctx).
		First(&cred, "user_id = ? AND provider = ?", userID, provider).Error; err != nil {
		return nil, err
	}
	return &cred, nil
}

// ListByUser retrieves all credentials stored by a user.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: credential owner.
// Returns:
//   - []domain.Credential: the user's credential records.
//   - error: non-nil if the query fails.
func (r *CredentialRepository) ListByUser(ctx context.Context, userID string) ([]domain.Credential, error) {
	var creds []domain.Credential
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&creds).Error; err != nil {
		return nil, err
	}
	return creds, nil
}

// Delete removes a credential owned by the given user.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: credential ID.
//   - userID: credential owner; rows of other users are never touched.
// Returns:
//   - error: gorm.ErrRecordNotFound if no owned row matched, other non-nil
//     values if the delete fails.
func (r *CredentialRepository) Delete(ctx context.Context, id, userID string) error {
	res := r.db.WithContext(ctx).Delete(&domain.Credential{}, "id = ? AND user_id = ?", id, userID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
