package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"leadharvest/internal/apify"
	"leadharvest/internal/domain"
	"leadharvest/internal/logger"
	"leadharvest/internal/metrics"
	"leadharvest/internal/repository"
)

// ErrNoCredential is returned when a job has no Apify token to run with: the
// user stored none and the server has no fallback configured.
var ErrNoCredential = errors.New("no apify credential configured")

// ErrInvalidRequest wraps submission validation failures so the API layer
// can map them to a 400 without string matching.
var ErrInvalidRequest = errors.New("invalid job request")

// JobRequest describes one scrape job submission.
type JobRequest struct {
	UserID      string
	Kind        domain.JobKind
	TargetURL   string
	TargetURLs  []string
	MaxProfiles int // mixed mode: cap on commenter profiles; 0 uses the configured default
}

// OrchestratorConfig holds the orchestration knobs.
type OrchestratorConfig struct {
	MaxProfilesPerPost int
	MaxComments        int
	// OnProgress, when set, receives every stage transition in addition to
	// the ledger write. The CLI uses it to print live progress.
	OnProgress ProgressFunc
}

// Orchestrator drives scrape jobs through their pipeline: remote actor runs,
// cache resolution, persistence, run archive and ledger updates. Async jobs
// run on background goroutines tracked in a cancel registry so they can be
// stopped individually or all at once on shutdown.
type Orchestrator struct {
	jobs        *repository.JobRepository
	comments    *repository.CommentRepository
	credentials *repository.CredentialRepository
	resolver    *Resolver
	client      *apify.Client
	archiver    *Archiver
	logger      *logger.Logger
	maxProfiles int
	maxComments int
	onProgress  ProgressFunc

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(
	jobs *repository.JobRepository,
	comments *repository.CommentRepository,
	credentials *repository.CredentialRepository,
	resolver *Resolver,
	client *apify.Client,
	archiver *Archiver,
	log *logger.Logger,
	cfg *OrchestratorConfig,
) *Orchestrator {
	metrics.Init()

	maxProfiles := cfg.MaxProfilesPerPost
	if maxProfiles <= 0 {
		maxProfiles = 50
	}

	return &Orchestrator{
		jobs:        jobs,
		comments:    comments,
		credentials: credentials,
		resolver:    resolver,
		client:      client,
		archiver:    archiver,
		logger:      log,
		maxProfiles: maxProfiles,
		maxComments: cfg.MaxComments,
		onProgress:  cfg.OnProgress,
		cancels:     make(map[string]context.CancelFunc),
	}
}

// log returns a logger from context if available, otherwise returns the service logger
func (o *Orchestrator) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return o.logger
}

// Submit validates a request, creates the ledger row and starts the job on a
// background goroutine detached from the submitting request.
// Parameters:
//   - ctx: request context, used for validation and the ledger insert only.
//   - req: job submission.
// Returns:
//   - *domain.Job: the created job, status running.
//   - error: non-nil on invalid input, missing credential or ledger failure.
func (o *Orchestrator) Submit(ctx context.Context, req JobRequest) (*domain.Job, error) {
	job, client, err := o.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(jobContext(context.Background(), job))
	o.register(job.ID, cancel)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.unregister(job.ID)
		defer cancel()
		o.execute(runCtx, job, req, client)
	}()

	return job, nil
}

// RunSync validates, creates and executes a job inline. Used by the CLI,
// where the caller's context carries signal-driven cancellation.
// Parameters:
//   - ctx: context the job executes under.
//   - req: job submission.
// Returns:
//   - *domain.Job: the finished job row, re-read after execution.
//   - error: non-nil on invalid input, missing credential or ledger failure.
func (o *Orchestrator) RunSync(ctx context.Context, req JobRequest) (*domain.Job, error) {
	job, client, err := o.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(jobContext(ctx, job))
	o.register(job.ID, cancel)
	defer o.unregister(job.ID)
	defer cancel()

	o.execute(runCtx, job, req, client)

	return o.jobs.GetByID(context.Background(), job.ID)
}

// Cancel stops a running job. A live goroutine observes the cancellation,
// best-effort aborts its remote run and marks the row cancelled. Without a
// live goroutine, say after a restart, the row is closed out directly.
// Parameters:
//   - ctx: context for the ledger reads and writes.
//   - jobID: job to cancel.
//   - userID: caller; must own the job.
// Returns:
//   - error: gorm.ErrRecordNotFound for unknown or foreign jobs,
//     repository.ErrJobFinished when the job is already terminal.
func (o *Orchestrator) Cancel(ctx context.Context, jobID, userID string) error {
	job, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	if job.Status.Terminal() {
		return repository.ErrJobFinished
	}

	o.mu.Lock()
	cancel, live := o.cancels[jobID]
	o.mu.Unlock()
	if live {
		o.log(ctx).WithField(logger.FieldJobID, jobID).Info("Cancelling job")
		cancel()
		return nil
	}

	return o.jobs.Finish(ctx, jobID, repository.JobResult{
		Status:   domain.JobStatusCancelled,
		Stage:    StageError,
		Progress: StagePercent(StageError),
		Message:  "cancelled by user",
	})
}

// Shutdown cancels every running job and waits for their goroutines, up to
// ctx's deadline.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	for _, cancel := range o.cancels {
		cancel()
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) register(jobID string, cancel context.CancelFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancels[jobID] = cancel
}

func (o *Orchestrator) unregister(jobID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.cancels, jobID)
}

// prepare validates the request, binds the user's credentials and creates
// the ledger row.
func (o *Orchestrator) prepare(ctx context.Context, req JobRequest) (*domain.Job, *apify.Client, error) {
	if err := validateRequest(&req); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	client, err := o.clientFor(ctx, req.UserID)
	if err != nil {
		return nil, nil, err
	}

	job := &domain.Job{
		ID:         uuid.New().String(),
		UserID:     req.UserID,
		Kind:       req.Kind,
		TargetURL:  strings.TrimSpace(req.TargetURL),
		TargetURLs: domain.StringArray(req.TargetURLs),
		Status:     domain.JobStatusRunning,
		Stage:      StageStarting,
		Progress:   StagePercent(StageStarting),
	}
	if err := o.jobs.Create(ctx, job); err != nil {
		return nil, nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job, client, nil
}

// validateRequest rejects malformed submissions before a ledger row exists.
func validateRequest(req *JobRequest) error {
	if req.UserID == "" {
		return errors.New("user id is required")
	}
	if !req.Kind.Valid() {
		return fmt.Errorf("unknown job kind %q", req.Kind)
	}
	switch req.Kind {
	case domain.JobKindPostComments, domain.JobKindMixed:
		if strings.TrimSpace(req.TargetURL) == "" {
			return fmt.Errorf("target_url is required for %s jobs", req.Kind)
		}
	case domain.JobKindProfileDetails:
		if len(req.TargetURLs) == 0 {
			return fmt.Errorf("target_urls is required for %s jobs", req.Kind)
		}
		for _, u := range req.TargetURLs {
			if _, err := domain.CanonicalProfileURL(u); err != nil {
				return fmt.Errorf("invalid profile url %q: %w", u, err)
			}
		}
	}
	if req.MaxProfiles < 0 {
		return errors.New("max_profiles must not be negative")
	}
	return nil
}

// clientFor binds the Apify client to the user's stored token, falling back
// to the server-wide token when the user has none.
func (o *Orchestrator) clientFor(ctx context.Context, userID string) (*apify.Client, error) {
	cred, err := o.credentials.GetByUser(ctx, userID, domain.ProviderApify)
	if err == nil {
		return o.client.WithToken(cred.Token), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	if !o.client.HasToken() {
		return nil, ErrNoCredential
	}
	return o.client, nil
}

// jobContext annotates a context with the job's logger fields. Submit passes
// context.Background() so the job survives the HTTP request that created it.
func jobContext(parent context.Context, job *domain.Job) context.Context {
	ctx := logger.SetUserID(parent, job.UserID)
	return logger.SetJobID(ctx, job.ID)
}

// finishContext detaches terminal ledger writes from the job context, which
// may already be cancelled, while keeping its logger.
func finishContext(ctx context.Context) context.Context {
	return logger.FromContext(ctx).WithContext(context.Background())
}

// execute drives one job to a terminal status. Every path ends in a Finish
// write. Failures after partial persistence leave the persisted rows in
// place: the cache is additive.
func (o *Orchestrator) execute(ctx context.Context, job *domain.Job, req JobRequest, client *apify.Client) {
	metrics.IncActiveJobs()
	defer metrics.DecActiveJobs()

	start := time.Now()
	log := o.log(ctx).WithField(logger.FieldKind, string(job.Kind))
	log.Info("Job started")

	result, err := o.run(ctx, job, req, client)
	if err != nil {
		o.fail(ctx, job, err)
		log.WithError(err).WithField(logger.FieldDurationMs, time.Since(start).Milliseconds()).
			Warn("Job did not complete")
		return
	}

	result.Status = domain.JobStatusCompleted
	result.Stage = StageCompleted
	result.Progress = StagePercent(StageCompleted)
	if err := o.jobs.Finish(finishContext(ctx), job.ID, *result); err != nil && !errors.Is(err, repository.ErrJobFinished) {
		log.WithError(err).Error("Failed to mark job completed")
	}
	metrics.ObserveJob(string(job.Kind), string(domain.JobStatusCompleted))

	log.WithFields(logger.Fields{
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		logger.FieldCount:      result.ResultsCount,
	}).Info("Job completed")
}

// fail closes a job out as failed, or cancelled when the pipeline stopped on
// context cancellation.
func (o *Orchestrator) fail(ctx context.Context, job *domain.Job, cause error) {
	status := domain.JobStatusFailed
	message := cause.Error()
	if errors.Is(cause, context.Canceled) {
		status = domain.JobStatusCancelled
		message = "cancelled by user"
	}

	err := o.jobs.Finish(finishContext(ctx), job.ID, repository.JobResult{
		Status:   status,
		Stage:    StageError,
		Progress: StagePercent(StageError),
		Message:  message,
	})
	if err != nil && !errors.Is(err, repository.ErrJobFinished) {
		o.log(ctx).WithError(err).WithField(logger.FieldStatus, string(status)).
			Error("Failed to mark job finished")
	}
	metrics.ObserveJob(string(job.Kind), string(status))
}

func (o *Orchestrator) run(ctx context.Context, job *domain.Job, req JobRequest, client *apify.Client) (*repository.JobResult, error) {
	switch job.Kind {
	case domain.JobKindPostComments:
		return o.runComments(ctx, job, client)
	case domain.JobKindProfileDetails:
		return o.runProfiles(ctx, job, client)
	case domain.JobKindMixed:
		return o.runMixed(ctx, job, req, client)
	default:
		return nil, fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

// runComments scrapes one post's comments and persists the raw records.
func (o *Orchestrator) runComments(ctx context.Context, job *domain.Job, client *apify.Client) (*repository.JobResult, error) {
	items, err := o.scrapeComments(ctx, job, client)
	if err != nil {
		return nil, err
	}

	o.progress(ctx, job.ID, StageSavingData, fmt.Sprintf("saving %d comments", len(items)))
	if err := o.saveComments(ctx, job, items); err != nil {
		return nil, err
	}
	o.archiver.ArchiveRun(ctx, job.ID, "comments", commentRecords(items))

	return &repository.JobResult{ResultsCount: len(items)}, nil
}

// runProfiles resolves the requested profile URLs through the cache gateway.
func (o *Orchestrator) runProfiles(ctx context.Context, job *domain.Job, client *apify.Client) (*repository.JobResult, error) {
	o.progress(ctx, job.ID, StageScrapingProfiles, fmt.Sprintf("resolving %d profiles", len(job.TargetURLs)))
	res, err := o.resolveProfiles(ctx, job, []string(job.TargetURLs), client)
	if err != nil {
		return nil, err
	}
	o.archiver.ArchiveRun(ctx, job.ID, "profiles", res.ScrapedRaw)

	o.progress(ctx, job.ID, StageSavingData, "finalizing")
	return &repository.JobResult{
		ResultsCount: len(res.Profiles),
		CacheHits:    res.CacheHits,
		CacheMisses:  res.CacheMisses,
	}, nil
}

// runMixed chains both scrapes: post comments first, then the commenters'
// profiles through the cache gateway.
func (o *Orchestrator) runMixed(ctx context.Context, job *domain.Job, req JobRequest, client *apify.Client) (*repository.JobResult, error) {
	items, err := o.scrapeComments(ctx, job, client)
	if err != nil {
		return nil, err
	}
	if err := o.saveComments(ctx, job, items); err != nil {
		return nil, err
	}
	o.archiver.ArchiveRun(ctx, job.ID, "comments", commentRecords(items))

	o.progress(ctx, job.ID, StageExtractingProfiles, "extracting commenter profiles")
	limit := o.maxProfiles
	if req.MaxProfiles > 0 && req.MaxProfiles < limit {
		limit = req.MaxProfiles
	}
	urls := ExtractProfileURLs(items, limit)

	result := &repository.JobResult{}
	if len(urls) == 0 {
		o.log(ctx).Info("No commenter profiles to resolve")
		return result, nil
	}

	o.progress(ctx, job.ID, StageScrapingProfiles, fmt.Sprintf("resolving %d profiles", len(urls)))
	res, err := o.resolveProfiles(ctx, job, urls, client)
	if err != nil {
		return nil, err
	}
	o.archiver.ArchiveRun(ctx, job.ID, "profiles", res.ScrapedRaw)

	o.progress(ctx, job.ID, StageSavingData, "finalizing")
	result.ResultsCount = len(res.Profiles)
	result.CacheHits = res.CacheHits
	result.CacheMisses = res.CacheMisses
	return result, nil
}

// scrapeComments runs the comments actor for the job's target post.
func (o *Orchestrator) scrapeComments(ctx context.Context, job *domain.Job, client *apify.Client) ([]apify.CommentItem, error) {
	o.progress(ctx, job.ID, StageScrapingComments, "scraping post comments")

	start := time.Now()
	items, err := client.ScrapeComments(ctx, job.TargetURL, o.maxComments)
	metrics.ObserveRun("comments", runOutcome(err), time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("comments scrape: %w", err)
	}
	return items, nil
}

// resolveProfiles runs the cache gateway with the job's scrape client.
func (o *Orchestrator) resolveProfiles(ctx context.Context, job *domain.Job, urls []string, client *apify.Client) (*ResolveResult, error) {
	scrape := func(ctx context.Context, misses []string) ([]apify.ProfileItem, error) {
		start := time.Now()
		items, err := client.ScrapeProfiles(ctx, misses)
		metrics.ObserveRun("profiles", runOutcome(err), time.Since(start))
		return items, err
	}

	res, err := o.resolver.Resolve(ctx, urls, job.UserID, scrape)
	if err != nil {
		return nil, fmt.Errorf("profile resolve: %w", err)
	}
	metrics.ObserveCacheLookups(res.CacheHits, res.CacheMisses)
	return res, nil
}

// saveComments persists the scraped comment records for a job.
func (o *Orchestrator) saveComments(ctx context.Context, job *domain.Job, items []apify.CommentItem) error {
	if len(items) == 0 {
		return nil
	}

	comments := make([]domain.Comment, 0, len(items))
	for _, item := range items {
		postURL := item.PostURL
		if postURL == "" {
			postURL = job.TargetURL
		}
		authorURL := item.Actor.LinkedInURL
		if canonical, err := domain.CanonicalProfileURL(authorURL); err == nil {
			authorURL = canonical
		}
		comments = append(comments, domain.Comment{
			ID:               uuid.New().String(),
			JobID:            job.ID,
			PostURL:          postURL,
			AuthorName:       item.Actor.Name,
			AuthorProfileURL: authorURL,
			Commentary:       item.Commentary,
			Payload:          domain.JSONText(item.Raw),
		})
	}
	if err := o.comments.CreateBatch(ctx, comments); err != nil {
		return fmt.Errorf("failed to save comments: %w", err)
	}
	return nil
}

// progress best-effort updates the job row's live stage. A failed write only
// logs: the terminal write is the one that matters.
func (o *Orchestrator) progress(ctx context.Context, jobID, stage, message string) {
	if err := o.jobs.UpdateProgress(ctx, jobID, stage, StagePercent(stage), message); err != nil {
		o.log(ctx).WithError(err).WithField(logger.FieldStage, stage).Warn("failed to update job progress")
	}
	if o.onProgress != nil {
		o.onProgress(stage, StagePercent(stage), message)
	}
}

// commentRecords collects the raw dataset records for the run archive.
func commentRecords(items []apify.CommentItem) []json.RawMessage {
	records := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		records = append(records, item.Raw)
	}
	return records
}

// runOutcome labels an actor run result for metrics.
func runOutcome(err error) string {
	switch {
	case err == nil:
		return "succeeded"
	case errors.Is(err, apify.ErrRunAborted):
		return "aborted"
	case errors.Is(err, apify.ErrRunTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "failed"
	}
}
