package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"leadharvest/internal/domain"
)

func testJob(userID string) *domain.Job {
	return &domain.Job{
		ID:        uuid.New().String(),
		UserID:    userID,
		Kind:      domain.JobKindPostComments,
		TargetURL: "https://linkedin.com/posts/activity-123",
		Status:    domain.JobStatusRunning,
	}
}

func TestJobFinishStampsCompletion(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	job := testJob("user-1")
	require.NoError(t, repo.Create(ctx, job))

	err := repo.Finish(ctx, job.ID, JobResult{
		Status:       domain.JobStatusCompleted,
		Stage:        "completed",
		Progress:     100,
		Message:      "scraped 3 comments",
		ResultsCount: 3,
	})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, domain.JobStatusCompleted, got.Status)
	require.Equal(t, 3, got.ResultsCount)
	require.Equal(t, 100, got.Progress)
	require.NotNil(t, got.CompletedAt)
	require.WithinDuration(t, time.Now(), *got.CompletedAt, 5*time.Second)
}

func TestJobTerminalRowsImmutable(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	job := testJob("user-1")
	require.NoError(t, repo.Create(ctx, job))
	require.NoError(t, repo.Finish(ctx, job.ID, JobResult{
		Status:       domain.JobStatusCompleted,
		Stage:        "completed",
		Progress:     100,
		ResultsCount: 3,
	}))

	err := repo.Finish(ctx, job.ID, JobResult{Status: domain.JobStatusFailed, Message: "late failure"})
	require.True(t, errors.Is(err, ErrJobFinished))

	err = repo.UpdateProgress(ctx, job.ID, "scraping_comments", 20, "late progress")
	require.True(t, errors.Is(err, ErrJobFinished))

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, domain.JobStatusCompleted, got.Status)
	require.Equal(t, 3, got.ResultsCount)
}

func TestJobUpdateProgress(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	job := testJob("user-1")
	require.NoError(t, repo.Create(ctx, job))

	require.NoError(t, repo.UpdateProgress(ctx, job.ID, "scraping_comments", 20, "run started"))

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, "scraping_comments", got.Stage)
	require.Equal(t, 20, got.Progress)
	require.Equal(t, "run started", got.Message)
	require.Nil(t, got.CompletedAt)
}

func TestJobFinishUnknownID(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))

	err := repo.Finish(context.Background(), "missing", JobResult{Status: domain.JobStatusFailed})
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestJobFinishRejectsNonTerminalStatus(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	job := testJob("user-1")
	require.NoError(t, repo.Create(ctx, job))

	err := repo.Finish(ctx, job.ID, JobResult{Status: domain.JobStatusRunning})
	require.Error(t, err)
}

func TestJobListByUserNewestFirst(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	var ids []string
	for i := 0; i < 3; i++ {
		job := testJob("user-1")
		job.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(ctx, job))
		ids = append(ids, job.ID)
	}
	other := testJob("user-2")
	require.NoError(t, repo.Create(ctx, other))

	got, err := repo.ListByUser(ctx, "user-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, ids[2], got[0].ID)
	require.Equal(t, ids[0], got[2].ID)

	count, err := repo.CountByUser(ctx, "user-1")
	require.NoError(t, err)
	require.EqualValues(t, 3, count)
}
