package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"leadharvest/internal/domain"
)

// ErrJobFinished is returned when updating a job row that already reached a
// terminal status. Terminal rows are immutable.
var ErrJobFinished = errors.New("job already finished")

var terminalStatuses = []domain.JobStatus{
	domain.JobStatusCompleted,
	domain.JobStatusFailed,
	domain.JobStatusCancelled,
}

// JobRepository handles scrape job ledger operations.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *JobRepository: repository instance bound to db.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job row.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// GetByID retrieves a job by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
// Returns:
//   - *domain.Job: job record if found.
//   - error: non-nil if lookup fails.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// ListByUser retrieves a user's jobs with pagination, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: job owner.
//   - limit: maximum number of records to return.
//   - offset: number of records to skip.
// Returns:
//   - []domain.Job: matching job records.
//   - error: non-nil if the query fails.
func (r *JobRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Job, error) {
	var jobs []domain.Job
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// CountByUser counts a user's jobs.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: job owner.
// Returns:
//   - int64: number of jobs.
//   - error: non-nil if the query fails.
func (r *JobRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.Job{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateProgress updates stage, progress and message on a non-terminal job
// so the dashboard can poll live state.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
//   - stage: current orchestration stage name.
//   - progress: completion percentage, 0-100.
//   - message: human-readable progress message.
// Returns:
//   - error: ErrJobFinished if the row is already terminal,
//     gorm.ErrRecordNotFound if the job does not exist.
func (r *JobRepository) UpdateProgress(ctx context.Context, id, stage string, progress int, message string) error {
	return r.updateNonTerminal(ctx, id, map[string]interface{}{
		"stage":    stage,
		"progress": progress,
		"message":  message,
	})
}

// JobResult captures the final state written to a job row.
type JobResult struct {
	Status       domain.JobStatus
	Stage        string
	Progress     int
	Message      string
	ResultsCount int
	CacheHits    int
	CacheMisses  int
}

// Finish moves a job to a terminal status and stamps the completion time.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
//   - result: terminal status plus final counters and message.
// Returns:
//   - error: ErrJobFinished if the row is already terminal,
//     gorm.ErrRecordNotFound if the job does not exist.
func (r *JobRepository) Finish(ctx context.Context, id string, result JobResult) error {
	if !result.Status.Terminal() {
		return fmt.Errorf("finish requires a terminal status, got %q", result.Status)
	}
	now := time.Now()
	return r.updateNonTerminal(ctx, id, map[string]interface{}{
		"status":        result.Status,
		"stage":         result.Stage,
		"progress":      result.Progress,
		"message":       result.Message,
		"results_count": result.ResultsCount,
		"cache_hits":    result.CacheHits,
		"cache_misses":  result.CacheMisses,
		"completed_at":  &now,
	})
}

// updateNonTerminal applies updates to a job row only while it has not
// reached a terminal status.
func (r *JobRepository) updateNonTerminal(ctx context.Context, id string, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Job{}).
		Where("id = ? AND status NOT IN ?", id, terminalStatuses).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&domain.Job{}).
			Where("id = ?", id).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
		return ErrJobFinished
	}
	return nil
}
