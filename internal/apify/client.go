package apify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"leadharvest/internal/logger"
)

// Config holds connection settings for the Apify actor-run API.
type Config struct {
	BaseURL        string
	Token          string // fallback token; WithToken overrides per job
	CommentsActor  string
	ProfilesActor  string
	RequestTimeout time.Duration
	PollInterval   time.Duration
	RunTimeout     time.Duration
	MaxRetries     int
	RetryWait      time.Duration
	RetryMaxWait   time.Duration
}

// Client talks to the Apify actor-run API: it starts runs, polls them to
// completion and fetches their datasets. Transient transport errors and 5xx
// responses are retried with exponential backoff at the HTTP client level;
// 4xx responses surface immediately.
type Client struct {
	http          *resty.Client
	token         string
	commentsActor string
	profilesActor string
	pollInterval  time.Duration
	runTimeout    time.Duration
}

// New creates a new Client.
// Parameters:
//   - cfg: API connection settings; zero fields fall back to defaults.
// Returns:
//   - *Client: initialized API client.
func New(cfg *Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.apify.com"
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}
	retryWait := cfg.RetryWait
	if retryWait <= 0 {
		retryWait = time.Second
	}
	retryMaxWait := cfg.RetryMaxWait
	if retryMaxWait <= 0 {
		retryMaxWait = 8 * time.Second
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	runTimeout := cfg.RunTimeout
	if runTimeout <= 0 {
		runTimeout = 10 * time.Minute
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(baseURL, "/"))
	client.SetHeader("Content-Type", "application/json")
	// Per-request timeout; long waits happen in the polling loop, not here
	client.SetTimeout(requestTimeout)
	client.SetRetryCount(cfg.MaxRetries)
	client.SetRetryWaitTime(retryWait)
	client.SetRetryMaxWaitTime(retryMaxWait)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r.StatusCode() >= 500
	})

	return &Client{
		http:          client,
		token:         cfg.Token,
		commentsActor: cfg.CommentsActor,
		profilesActor: cfg.ProfilesActor,
		pollInterval:  pollInterval,
		runTimeout:    runTimeout,
	}
}

// WithToken returns a client authenticating with the given token while
// sharing the underlying HTTP client. An empty token keeps the current one.
func (c *Client) WithToken(token string) *Client {
	if token == "" || token == c.token {
		return c
	}
	clone := *c
	clone.token = token
	return &clone
}

// HasToken reports whether the client has any token to authenticate with.
func (c *Client) HasToken() bool {
	return c.token != ""
}

// StartCommentsRun starts a comments actor run against one post.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - postURL: post to scrape; must be non-empty.
//   - maxComments: cap passed to the actor; 0 means actor default.
// Returns:
//   - *Run: the started run.
//   - error: non-nil if the input is empty or the API call fails.
func (c *Client) StartCommentsRun(ctx context.Context, postURL string, maxComments int) (*Run, error) {
	if strings.TrimSpace(postURL) == "" {
		return nil, fmt.Errorf("post url must not be empty")
	}
	return c.startRun(ctx, c.commentsActor, commentsInput{
		PostURLs:    []string{postURL},
		MaxComments: maxComments,
	})
}

// StartProfilesRun starts a profile details actor run for a batch of URLs.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - urls: profile URLs to scrape; must be non-empty.
// Returns:
//   - *Run: the started run.
//   - error: non-nil if the input is empty or the API call fails.
func (c *Client) StartProfilesRun(ctx context.Context, urls []string) (*Run, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("profile url list must not be empty")
	}
	return c.startRun(ctx, c.profilesActor, profilesInput{ProfileURLs: urls})
}

func (c *Client) startRun(ctx context.Context, actorID string, input interface{}) (*Run, error) {
	if actorID == "" {
		return nil, fmt.Errorf("actor id not configured")
	}

	var envelope runEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.token).
		SetBody(input).
		SetResult(&envelope).
		Post(fmt.Sprintf("/v2/acts/%s/runs", actorID))
	if err != nil {
		return nil, fmt.Errorf("failed to start actor %s: %w", actorID, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, apiError(resp, "start actor "+actorID)
	}
	if envelope.Data.ID == "" {
		return nil, fmt.Errorf("start actor %s: response carries no run id", actorID)
	}
	return envelope.Data.run(), nil
}

// GetRun fetches the current state of a run.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - runID: run to inspect.
// Returns:
//   - *Run: run state as reported by the API.
//   - error: non-nil if the API call fails.
func (c *Client) GetRun(ctx context.Context, runID string) (*Run, error) {
	var envelope runEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.token).
		SetResult(&envelope).
		Get(fmt.Sprintf("/v2/actor-runs/%s", runID))
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, apiError(resp, "get run "+runID)
	}
	return envelope.Data.run(), nil
}

// AwaitCompletion polls a run until it reaches a terminal status or the
// polling ceiling elapses.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - runID: run to wait for.
// Returns:
//   - *Run: the finished run, dataset ID included.
//   - error: ErrRunFailed or ErrRunAborted for terminal failures,
//     ErrRunTimeout once the ceiling elapses, ctx.Err() on cancellation.
func (c *Client) AwaitCompletion(ctx context.Context, runID string) (*Run, error) {
	deadline := time.Now().Add(c.runTimeout)
	for {
		run, err := c.GetRun(ctx, runID)
		if err != nil {
			return nil, err
		}

		switch run.Status {
		case statusSucceeded:
			return run, nil
		case statusFailed, statusTimedOut:
			if run.StatusMessage != "" {
				return nil, fmt.Errorf("run %s (%s): %s: %w", runID, run.Status, run.StatusMessage, ErrRunFailed)
			}
			return nil, fmt.Errorf("run %s (%s): %w", runID, run.Status, ErrRunFailed)
		case statusAborting, statusAborted:
			return nil, fmt.Errorf("run %s: %w", runID, ErrRunAborted)
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("run %s still %s after %s: %w", runID, run.Status, c.runTimeout, ErrRunTimeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

// FetchDataset retrieves all records of a dataset in one call.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - datasetID: dataset to read.
// Returns:
//   - []json.RawMessage: unmodified dataset records.
//   - error: non-nil if the API call fails.
func (c *Client) FetchDataset(ctx context.Context, datasetID string) ([]json.RawMessage, error) {
	var records []json.RawMessage
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.token).
		SetQueryParam("clean", "true").
		SetQueryParam("format", "json").
		SetResult(&records).
		Get(fmt.Sprintf("/v2/datasets/%s/items", datasetID))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dataset %s: %w", datasetID, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, apiError(resp, "fetch dataset "+datasetID)
	}
	return records, nil
}

// AbortRun asks the API to abort a run. Used when a local job is cancelled
// while its remote run is still going.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - runID: run to abort.
// Returns:
//   - error: non-nil if the API call fails.
func (c *Client) AbortRun(ctx context.Context, runID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.token).
		Post(fmt.Sprintf("/v2/actor-runs/%s/abort", runID))
	if err != nil {
		return fmt.Errorf("failed to abort run %s: %w", runID, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return apiError(resp, "abort run "+runID)
	}
	return nil
}

// ScrapeComments runs the comments actor against one post and returns the
// decoded dataset records.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - postURL: post to scrape.
//   - maxComments: cap passed to the actor; 0 means actor default.
// Returns:
//   - []CommentItem: decoded comment records, raw payloads included.
//   - error: non-nil if starting, awaiting or fetching fails.
func (c *Client) ScrapeComments(ctx context.Context, postURL string, maxComments int) ([]CommentItem, error) {
	run, err := c.StartCommentsRun(ctx, postURL, maxComments)
	if err != nil {
		return nil, err
	}
	logger.CtxInfo(ctx, "comments run %s started for %s", run.ID, postURL)

	finished, err := c.AwaitCompletion(ctx, run.ID)
	if err != nil {
		c.abortOnCancel(ctx, run.ID, err)
		return nil, err
	}

	records, err := c.FetchDataset(ctx, finished.DatasetID)
	if err != nil {
		return nil, err
	}
	items := DecodeComments(records)
	if skipped := len(records) - len(items); skipped > 0 {
		logger.CtxWarn(ctx, "comments run %s: skipped %d undecodable records", run.ID, skipped)
	}
	return items, nil
}

// ScrapeProfiles runs the profiles actor for a batch of URLs and returns the
// decoded dataset records.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - urls: profile URLs to scrape.
// Returns:
//   - []ProfileItem: decoded profile records, raw payloads included.
//   - error: non-nil if starting, awaiting or fetching fails.
func (c *Client) ScrapeProfiles(ctx context.Context, urls []string) ([]ProfileItem, error) {
	run, err := c.StartProfilesRun(ctx, urls)
	if err != nil {
		return nil, err
	}
	logger.CtxInfo(ctx, "profiles run %s started for %d urls", run.ID, len(urls))

	finished, err := c.AwaitCompletion(ctx, run.ID)
	if err != nil {
		c.abortOnCancel(ctx, run.ID, err)
		return nil, err
	}

	records, err := c.FetchDataset(ctx, finished.DatasetID)
	if err != nil {
		return nil, err
	}
	items := DecodeProfiles(records)
	if skipped := len(records) - len(items); skipped > 0 {
		logger.CtxWarn(ctx, "profiles run %s: skipped %d undecodable records", run.ID, skipped)
	}
	return items, nil
}

// abortOnCancel aborts a run the local caller walked away from. Only fires
// when the wait ended through context cancellation; remote failures and the
// polling ceiling leave the run alone.
func (c *Client) abortOnCancel(ctx context.Context, runID string, waitErr error) {
	if !errors.Is(waitErr, context.Canceled) && !errors.Is(waitErr, context.DeadlineExceeded) {
		return
	}
	abortCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := c.AbortRun(abortCtx, runID); err != nil {
		logger.CtxWarn(ctx, "failed to abort run %s after cancellation: %v", runID, err)
	} else {
		logger.CtxInfo(ctx, "aborted run %s after cancellation", runID)
	}
}

// apiError turns a non-2xx response into an error, preferring the API's own
// error message when the body carries one.
func apiError(resp *resty.Response, op string) error {
	var envelope errorEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err == nil && envelope.Error.Message != "" {
		return fmt.Errorf("%s: HTTP %d: %s", op, resp.StatusCode(), envelope.Error.Message)
	}
	return fmt.Errorf("%s: HTTP %d: %s", op, resp.StatusCode(), string(resp.Body()))
}
