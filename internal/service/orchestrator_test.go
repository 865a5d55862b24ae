package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"leadharvest/internal/apify"
	"leadharvest/internal/domain"
	"leadharvest/internal/repository"
)

// fakeApify scripts the remote actor API for orchestrator tests.
type fakeApify struct {
	t      *testing.T
	server *httptest.Server

	mu              sync.Mutex
	commentsDataset []map[string]interface{}
	profilesDataset []map[string]interface{}
	failComments    bool
	failProfiles    bool
	neverFinish     bool
	tokens          []string
	maxComments     []int
	profileBatches  [][]string
	polls           int
	aborts          int
}

func newFakeApify(t *testing.T) *fakeApify {
	f := &fakeApify{t: t}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeApify) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	respond := func(status int, body string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
	dataset := func(records []map[string]interface{}) {
		data, err := json.Marshal(records)
		require.NoError(f.t, err)
		respond(http.StatusOK, string(data))
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v2/acts/comments-actor/runs":
		f.tokens = append(f.tokens, r.Header.Get("Authorization"))
		var input struct {
			PostURLs    []string `json:"postUrls"`
			MaxComments int      `json:"maxComments"`
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&input))
		f.maxComments = append(f.maxComments, input.MaxComments)
		respond(http.StatusCreated, `{"data":{"id":"run-comments","status":"READY","defaultDatasetId":"ds-comments"}}`)

	case r.Method == http.MethodPost && r.URL.Path == "/v2/acts/profiles-actor/runs":
		f.tokens = append(f.tokens, r.Header.Get("Authorization"))
		var input struct {
			ProfileURLs []string `json:"profileUrls"`
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&input))
		f.profileBatches = append(f.profileBatches, input.ProfileURLs)
		respond(http.StatusCreated, `{"data":{"id":"run-profiles","status":"READY","defaultDatasetId":"ds-profiles"}}`)

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v2/actor-runs/"):
		runID := strings.TrimPrefix(r.URL.Path, "/v2/actor-runs/")
		f.polls++
		status := "SUCCEEDED"
		switch {
		case f.neverFinish:
			status = "RUNNING"
		case runID == "run-comments" && f.failComments:
			status = "FAILED"
		case runID == "run-profiles" && f.failProfiles:
			status = "FAILED"
		}
		respond(http.StatusOK, fmt.Sprintf(
			`{"data":{"id":%q,"status":%q,"statusMessage":"scripted","defaultDatasetId":"ds-%s"}}`,
			runID, status, strings.TrimPrefix(runID, "run-")))

	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/abort"):
		f.aborts++
		respond(http.StatusOK, `{"data":{"id":"run","status":"ABORTING"}}`)

	case r.Method == http.MethodGet && r.URL.Path == "/v2/datasets/ds-comments/items":
		dataset(f.commentsDataset)

	case r.Method == http.MethodGet && r.URL.Path == "/v2/datasets/ds-profiles/items":
		dataset(f.profilesDataset)

	default:
		f.t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeApify) abortCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.aborts
}

func (f *fakeApify) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

func (f *fakeApify) batches() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.profileBatches...)
}

func (f *fakeApify) authTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens...)
}

func commentRecord(author, authorURL, commentary string) map[string]interface{} {
	return map[string]interface{}{
		"postUrl":    "https://linkedin.com/posts/acme_42",
		"commentary": commentary,
		"actor": map[string]interface{}{
			"name":        author,
			"linkedinUrl": authorURL,
			"position":    "Engineer",
		},
	}
}

func profileRecord(url, fullName string) map[string]interface{} {
	return map[string]interface{}{
		"linkedinUrl": url,
		"fullName":    fullName,
		"headline":    fullName + " does things",
	}
}

type orchEnv struct {
	jobs     *repository.JobRepository
	comments *repository.CommentRepository
	creds    *repository.CredentialRepository
	profiles *repository.ProfileRepository
	store    *fakeStore
	orch     *Orchestrator
}

func newOrchEnv(t *testing.T, fake *fakeApify) *orchEnv {
	return newOrchEnvWith(t, fake, "server-token", &OrchestratorConfig{MaxProfilesPerPost: 50, MaxComments: 100})
}

func newOrchEnvWith(t *testing.T, fake *fakeApify, serverToken string, cfg *OrchestratorConfig) *orchEnv {
	t.Helper()

	db := newTestDB(t)
	env := &orchEnv{
		jobs:     repository.NewJobRepository(db),
		comments: repository.NewCommentRepository(db),
		creds:    repository.NewCredentialRepository(db),
		profiles: repository.NewProfileRepository(db),
		store:    newFakeStore(),
	}

	client := apify.New(&apify.Config{
		BaseURL:       fake.server.URL,
		Token:         serverToken,
		CommentsActor: "comments-actor",
		ProfilesActor: "profiles-actor",
		PollInterval:  5 * time.Millisecond,
		RunTimeout:    2 * time.Second,
	})
	resolver := NewResolver(env.profiles, 0, nil)
	archiver := NewArchiver(env.store, nil)

	env.orch = NewOrchestrator(env.jobs, env.comments, env.creds, resolver, client, archiver, nil, cfg)
	return env
}

func TestRunSyncPostComments(t *testing.T) {
	fake := newFakeApify(t)
	fake.commentsDataset = []map[string]interface{}{
		commentRecord("Alpha One", "https://www.linkedin.com/in/alpha/", "nice"),
		commentRecord("Beta Two", "https://linkedin.com/in/beta", "great"),
		commentRecord("Gamma Three", "https://linkedin.com/in/gamma", "+1"),
	}
	env := newOrchEnv(t, fake)

	job, err := env.orch.RunSync(context.Background(), JobRequest{
		UserID:    "user-1",
		Kind:      domain.JobKindPostComments,
		TargetURL: "https://linkedin.com/posts/acme_42",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, StageCompleted, job.Stage)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, 3, job.ResultsCount)
	require.NotNil(t, job.CompletedAt)

	count, err := env.comments.CountByJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	rows, err := env.comments.ListByJob(context.Background(), job.ID, 10, 0)
	require.NoError(t, err)
	var alpha *domain.Comment
	for i := range rows {
		if rows[i].AuthorName == "Alpha One" {
			alpha = &rows[i]
		}
	}
	require.NotNil(t, alpha)
	assert.Equal(t, "https://linkedin.com/in/alpha", alpha.AuthorProfileURL, "author url is canonicalized")
	assert.Equal(t, "https://linkedin.com/posts/acme_42", alpha.PostURL)
	assert.JSONEq(t, `{"name":"Alpha One","linkedinUrl":"https://www.linkedin.com/in/alpha/","position":"Engineer"}`,
		extractActor(t, alpha.Payload))

	data, ok := env.store.get("runs/" + job.ID + "/comments.json")
	require.True(t, ok, "raw dataset is archived")
	var archived []json.RawMessage
	require.NoError(t, json.Unmarshal(data, &archived))
	assert.Len(t, archived, 3)

	assert.Equal(t, []string{"Bearer server-token"}, fake.authTokens())
	assert.Equal(t, []int{100}, fake.maxComments)
}

func extractActor(t *testing.T, payload domain.JSONText) string {
	t.Helper()
	var record struct {
		Actor json.RawMessage `json:"actor"`
	}
	require.NoError(t, json.Unmarshal(payload, &record))
	return string(record.Actor)
}

func TestRunSyncProfileDetailsPartialCache(t *testing.T) {
	fake := newFakeApify(t)
	fake.profilesDataset = []map[string]interface{}{
		profileRecord("https://www.linkedin.com/in/beta/", "Beta Two"),
	}
	env := newOrchEnv(t, fake)

	seedProfile(t, env.profiles, "https://linkedin.com/in/alpha", "Alpha One")

	job, err := env.orch.RunSync(context.Background(), JobRequest{
		UserID:     "user-1",
		Kind:       domain.JobKindProfileDetails,
		TargetURLs: []string{"https://linkedin.com/in/alpha", "https://linkedin.com/in/beta"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 2, job.ResultsCount)
	assert.Equal(t, 1, job.CacheHits)
	assert.Equal(t, 1, job.CacheMisses)

	batches := fake.batches()
	require.Len(t, batches, 1)
	assert.Equal(t, []string{"https://linkedin.com/in/beta"}, batches[0], "only the miss is scraped")

	linked, err := env.profiles.ListByUser(context.Background(), "user-1", 10, 0)
	require.NoError(t, err)
	assert.Len(t, linked, 2)

	data, ok := env.store.get("runs/" + job.ID + "/profiles.json")
	require.True(t, ok)
	var archived []json.RawMessage
	require.NoError(t, json.Unmarshal(data, &archived))
	assert.Len(t, archived, 1, "archive holds the scraped subset only")
}

func TestRunSyncMixed(t *testing.T) {
	fake := newFakeApify(t)
	fake.commentsDataset = []map[string]interface{}{
		commentRecord("Alpha One", "https://www.linkedin.com/in/alpha/", "nice"),
		commentRecord("Beta Two", "https://linkedin.com/in/beta", "great"),
		commentRecord("Alpha One", "https://linkedin.com/in/alpha", "again"),
	}
	fake.profilesDataset = []map[string]interface{}{
		profileRecord("https://linkedin.com/in/alpha", "Alpha One"),
		profileRecord("https://linkedin.com/in/beta", "Beta Two"),
	}

	var (
		mu     sync.Mutex
		stages []string
	)
	env := newOrchEnvWith(t, fake, "server-token", &OrchestratorConfig{
		MaxProfilesPerPost: 50,
		MaxComments:        100,
		OnProgress: func(stage string, percent int, message string) {
			mu.Lock()
			stages = append(stages, stage)
			mu.Unlock()
		},
	})

	job, err := env.orch.RunSync(context.Background(), JobRequest{
		UserID:    "user-1",
		Kind:      domain.JobKindMixed,
		TargetURL: "https://linkedin.com/posts/acme_42",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 2, job.ResultsCount, "mixed counts resolved profiles")
	assert.Equal(t, 0, job.CacheHits)
	assert.Equal(t, 2, job.CacheMisses)

	count, err := env.comments.CountByJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	batches := fake.batches()
	require.Len(t, batches, 1)
	assert.Equal(t, []string{"https://linkedin.com/in/alpha", "https://linkedin.com/in/beta"}, batches[0],
		"distinct commenters in discovery order")

	_, ok := env.store.get("runs/" + job.ID + "/comments.json")
	assert.True(t, ok)
	_, ok = env.store.get("runs/" + job.ID + "/profiles.json")
	assert.True(t, ok)

	assert.Equal(t, []string{
		StageScrapingComments,
		StageExtractingProfiles,
		StageScrapingProfiles,
		StageSavingData,
	}, stages)
}

func TestRunSyncMixedProfileCap(t *testing.T) {
	fake := newFakeApify(t)
	fake.commentsDataset = []map[string]interface{}{
		commentRecord("Alpha One", "https://linkedin.com/in/alpha", "a"),
		commentRecord("Beta Two", "https://linkedin.com/in/beta", "b"),
		commentRecord("Gamma Three", "https://linkedin.com/in/gamma", "c"),
	}
	fake.profilesDataset = []map[string]interface{}{
		profileRecord("https://linkedin.com/in/alpha", "Alpha One"),
		profileRecord("https://linkedin.com/in/beta", "Beta Two"),
	}
	env := newOrchEnv(t, fake)

	job, err := env.orch.RunSync(context.Background(), JobRequest{
		UserID:      "user-1",
		Kind:        domain.JobKindMixed,
		TargetURL:   "https://linkedin.com/posts/acme_42",
		MaxProfiles: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)

	batches := fake.batches()
	require.Len(t, batches, 1)
	assert.Equal(t, []string{"https://linkedin.com/in/alpha", "https://linkedin.com/in/beta"}, batches[0],
		"cap keeps the first distinct commenters")
}

func TestMixedFailureKeepsPersistedComments(t *testing.T) {
	fake := newFakeApify(t)
	fake.commentsDataset = []map[string]interface{}{
		commentRecord("Alpha One", "https://linkedin.com/in/alpha", "nice"),
	}
	fake.failProfiles = true
	env := newOrchEnv(t, fake)

	job, err := env.orch.RunSync(context.Background(), JobRequest{
		UserID:    "user-1",
		Kind:      domain.JobKindMixed,
		TargetURL: "https://linkedin.com/posts/acme_42",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Contains(t, job.Message, "profile resolve")

	count, err := env.comments.CountByJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count, "comments persisted before the failure stay")

	_, ok := env.store.get("runs/" + job.ID + "/comments.json")
	assert.True(t, ok)
	_, ok = env.store.get("runs/" + job.ID + "/profiles.json")
	assert.False(t, ok)
}

func TestCommentsRunFailure(t *testing.T) {
	fake := newFakeApify(t)
	fake.failComments = true
	env := newOrchEnv(t, fake)

	job, err := env.orch.RunSync(context.Background(), JobRequest{
		UserID:    "user-1",
		Kind:      domain.JobKindPostComments,
		TargetURL: "https://linkedin.com/posts/acme_42",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, StageError, job.Stage)
	assert.Contains(t, job.Message, "comments scrape")

	count, err := env.comments.CountByJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSubmitAndCancel(t *testing.T) {
	fake := newFakeApify(t)
	fake.neverFinish = true
	env := newOrchEnv(t, fake)

	job, err := env.orch.Submit(context.Background(), JobRequest{
		UserID:    "user-1",
		Kind:      domain.JobKindPostComments,
		TargetURL: "https://linkedin.com/posts/acme_42",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusRunning, job.Status)

	// Wait for the remote run to be started and polled once so the cancel
	// lands mid-flight rather than before the run exists.
	require.Eventually(t, func() bool {
		return fake.pollCount() >= 1
	}, 3*time.Second, 5*time.Millisecond)

	require.NoError(t, env.orch.Cancel(context.Background(), job.ID, "user-1"))

	require.Eventually(t, func() bool {
		row, err := env.jobs.GetByID(context.Background(), job.ID)
		return err == nil && row.Status == domain.JobStatusCancelled
	}, 3*time.Second, 10*time.Millisecond, "cancelled job reaches a terminal row")

	require.Eventually(t, func() bool {
		return fake.abortCount() == 1
	}, 3*time.Second, 10*time.Millisecond, "remote run is aborted")

	err = env.orch.Cancel(context.Background(), job.ID, "user-1")
	assert.ErrorIs(t, err, repository.ErrJobFinished)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, env.orch.Shutdown(shutdownCtx))
}

func TestCancelEdgeCases(t *testing.T) {
	fake := newFakeApify(t)
	env := newOrchEnv(t, fake)

	err := env.orch.Cancel(context.Background(), "no-such-job", "user-1")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	foreign := &domain.Job{
		ID:     uuid.New().String(),
		UserID: "user-2",
		Kind:   domain.JobKindPostComments,
		Status: domain.JobStatusRunning,
	}
	require.NoError(t, env.jobs.Create(context.Background(), foreign))
	err = env.orch.Cancel(context.Background(), foreign.ID, "user-1")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound, "foreign jobs look like missing jobs")

	// A running row without a live goroutine, say after a restart, is closed
	// out directly.
	orphan := &domain.Job{
		ID:     uuid.New().String(),
		UserID: "user-1",
		Kind:   domain.JobKindPostComments,
		Status: domain.JobStatusRunning,
	}
	require.NoError(t, env.jobs.Create(context.Background(), orphan))
	require.NoError(t, env.orch.Cancel(context.Background(), orphan.ID, "user-1"))

	row, err := env.jobs.GetByID(context.Background(), orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCancelled, row.Status)
	require.NotNil(t, row.CompletedAt)
}

func TestSubmitValidation(t *testing.T) {
	fake := newFakeApify(t)
	env := newOrchEnv(t, fake)

	testCases := []struct {
		name string
		req  JobRequest
	}{
		{name: "missing user", req: JobRequest{Kind: domain.JobKindPostComments, TargetURL: "https://linkedin.com/posts/x"}},
		{name: "unknown kind", req: JobRequest{UserID: "u", Kind: "feed_scrape", TargetURL: "https://linkedin.com/posts/x"}},
		{name: "missing target url", req: JobRequest{UserID: "u", Kind: domain.JobKindPostComments}},
		{name: "missing target urls", req: JobRequest{UserID: "u", Kind: domain.JobKindProfileDetails}},
		{name: "invalid profile url", req: JobRequest{UserID: "u", Kind: domain.JobKindProfileDetails, TargetURLs: []string{" "}}},
		{name: "negative cap", req: JobRequest{UserID: "u", Kind: domain.JobKindMixed, TargetURL: "https://linkedin.com/posts/x", MaxProfiles: -1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.orch.Submit(context.Background(), tc.req)
			require.Error(t, err)
		})
	}

	count, err := env.jobs.CountByUser(context.Background(), "u")
	require.NoError(t, err)
	assert.Zero(t, count, "rejected submissions leave no ledger rows")
}

func TestCredentialSelection(t *testing.T) {
	t.Run("stored credential wins", func(t *testing.T) {
		fake := newFakeApify(t)
		env := newOrchEnv(t, fake)

		_, err := env.creds.Upsert(context.Background(), &domain.Credential{
			ID:       uuid.New().String(),
			UserID:   "user-1",
			Provider: domain.ProviderApify,
			Token:    "user-token",
		})
		require.NoError(t, err)

		_, err = env.orch.RunSync(context.Background(), JobRequest{
			UserID:    "user-1",
			Kind:      domain.JobKindPostComments,
			TargetURL: "https://linkedin.com/posts/acme_42",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"Bearer user-token"}, fake.authTokens())
	})

	t.Run("fallback token", func(t *testing.T) {
		fake := newFakeApify(t)
		env := newOrchEnv(t, fake)

		_, err := env.orch.RunSync(context.Background(), JobRequest{
			UserID:    "user-1",
			Kind:      domain.JobKindPostComments,
			TargetURL: "https://linkedin.com/posts/acme_42",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"Bearer server-token"}, fake.authTokens())
	})

	t.Run("no credential anywhere", func(t *testing.T) {
		fake := newFakeApify(t)
		env := newOrchEnvWith(t, fake, "", &OrchestratorConfig{MaxProfilesPerPost: 50})

		_, err := env.orch.Submit(context.Background(), JobRequest{
			UserID:    "user-1",
			Kind:      domain.JobKindPostComments,
			TargetURL: "https://linkedin.com/posts/acme_42",
		})
		assert.ErrorIs(t, err, ErrNoCredential)
	})
}
