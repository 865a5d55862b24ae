package repository

import (
	"context"

	"gorm.io/gorm"

	"leadharvest/internal/domain"
)

// CommentRepository handles raw comment record operations.
type CommentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *CommentRepository: repository instance bound to db.
func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// CreateBatch inserts comment records in batches.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - comments: comment records to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *CommentRepository) CreateBatch(ctx context.Context, comments []domain.Comment) error {
	if len(comments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(comments, 100).Error
}

// ListByJob retrieves the comments captured by a job with pagination.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobID: job whose comments to list.
//   - limit: maximum number of records to return.
//   - offset: number of records to skip.
// Returns:
//   - []domain.Comment: matching comment records.
//   - error: non-nil if the query fails.
func (r *CommentRepository) ListByJob(ctx context.Context, jobID string, limit, offset int) ([]domain.Comment, error) {
	var comments []domain.Comment
	if err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}

// CountByJob counts the comments captured by a job.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobID: job whose comments to count.
// Returns:
//   - int64: number of comments.
//   - error: non-nil if the query fails.
func (r *CommentRepository) CountByJob(ctx context.Context, jobID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.Comment{}).
		Where("job_id = ?", jobID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
