package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/testsuite"

	poperrs "github.com/jdholdren/popcorn/internal/errors"
	"github.com/jdholdren/popcorn/internal/keys"
	"github.com/jdholdren/popcorn/internal/popcorn"
	"github.com/jdholdren/popcorn/internal/redis"
	"github.com/jdholdren/popcorn/internal/scan"
)

func newTestEnv(t *testing.T) (*testsuite.TestWorkflowEnvironment, redis.Repo, *miniredis.Miniredis) {
	t.Helper()

	return newTestEnvWithSuite(t, &testsuite.WorkflowTestSuite{})
}

func newTestEnvWithSuite(t *testing.T, s *testsuite.WorkflowTestSuite) (*testsuite.TestWorkflowEnvironment, redis.Repo, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	pool, err := redis.Connect(context.Background(), redis.Config{Addr: mr.Addr(), MaxIdle: 4})
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	repo := redis.New(pool)

	env := s.NewTestWorkflowEnvironment()
	env.RegisterActivity(&activities{
		repo:    repo,
		scanner: scan.New(repo, 2),
	})

	return env, repo, mr
}

func TestIngestShow_FansOut(t *testing.T) {
	var (
		ctx          = context.Background()
		env, repo, _ = newTestEnv(t)
	)
	require.NoError(t, repo.Subscribe(ctx, "alice", "tt001"))
	require.NoError(t, repo.Subscribe(ctx, "bob", "tt001"))

	env.ExecuteWorkflow(workflows{}.IngestShow, IngestArgs{
		Show:   popcorn.Show{ID: "tt001", Active: true, Title: "The Show"},
		Latest: &popcorn.Episode{Sien: "1", Title: "Pilot"},
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var res IngestResult
	require.NoError(t, env.GetWorkflowResult(&res))
	assert.True(t, res.Advanced)
	assert.Equal(t, DeliveryResult{Delivered: 2}, res.DeliveryResult)

	for _, user := range []string{"alice", "bob"} {
		feed, err := repo.Feed(ctx, user)
		require.NoError(t, err)
		require.Len(t, feed, 1, user)
		assert.Equal(t, "Pilot", feed[0].EpisodeTitle)
	}
}

func TestIngestShow_NothingNew(t *testing.T) {
	var (
		ctx          = context.Background()
		env, repo, _ = newTestEnv(t)
		show         = popcorn.Show{ID: "tt001", Active: true}
	)
	_, _, err := repo.PutEpisode(ctx, "tt001", popcorn.Episode{Sien: "1"})
	require.NoError(t, err)
	require.NoError(t, repo.Subscribe(ctx, "alice", "tt001"))

	env.ExecuteWorkflow(workflows{}.IngestShow, IngestArgs{Show: show, Latest: &popcorn.Episode{Sien: "1"}})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var res IngestResult
	require.NoError(t, env.GetWorkflowResult(&res))
	assert.False(t, res.NewEpisode)
	assert.False(t, res.Advanced)
	assert.Zero(t, res.Delivered)
}

func TestIngestShow_CountsFailedDeliveries(t *testing.T) {
	var (
		ctx          = context.Background()
		env, repo, _ = newTestEnv(t)
	)
	for _, user := range []string{"alice", "bob", "carol"} {
		require.NoError(t, repo.Subscribe(ctx, user, "tt001"))
	}
	env.OnActivity(acts.DeliverEpisode, mock.Anything, mock.Anything).Return(func(ctx context.Context, d Delivery) error {
		if d.UserID == "bob" {
			return errors.New("connection reset")
		}
		return repo.AddEpisodeToFeed(ctx, d.UserID, d.ShowID, d.Sien)
	})

	env.ExecuteWorkflow(workflows{}.IngestShow, IngestArgs{
		Show:   popcorn.Show{ID: "tt001", Active: true},
		Latest: &popcorn.Episode{Sien: "4"},
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var res IngestResult
	require.NoError(t, env.GetWorkflowResult(&res))
	assert.Equal(t, DeliveryResult{Delivered: 2, Failed: 1}, res.DeliveryResult)

	feed, err := repo.Feed(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, feed)
}

func TestIngestShow_Invalid(t *testing.T) {
	env, _, mr := newTestEnv(t)

	env.ExecuteWorkflow(workflows{}.IngestShow, IngestArgs{
		Show:   popcorn.Show{ID: "tt001"},
		Latest: &popcorn.Episode{Title: "No sien"},
	})
	require.True(t, env.IsWorkflowCompleted())

	err := env.GetWorkflowError()
	require.Error(t, err)

	popErr := &poperrs.Error{}
	require.True(t, asPoperr(err, &popErr))
	assert.Equal(t, http.StatusBadRequest, popErr.Status)
	assert.Equal(t, []poperrs.Detail{{Field: "sien", Error: "required"}}, popErr.Details)
	assert.Empty(t, mr.Keys())
}

func TestIngestShow_LogsThroughWorkflowLogger(t *testing.T) {
	var (
		buf   bytes.Buffer
		suite testsuite.WorkflowTestSuite
	)
	suite.SetLogger(log.NewStructuredLogger(slog.New(slog.NewJSONHandler(&buf, nil))))
	env, _, _ := newTestEnvWithSuite(t, &suite)

	env.ExecuteWorkflow(workflows{}.IngestShow, IngestArgs{
		Show:   popcorn.Show{ID: "tt001"},
		Latest: &popcorn.Episode{Title: "No sien"},
	})
	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())

	assert.Contains(t, buf.String(), `"msg":"failed to save show"`)
	assert.Contains(t, buf.String(), `"show_id":"tt001"`)
}

func TestRedeliver(t *testing.T) {
	var (
		ctx          = context.Background()
		env, repo, _ = newTestEnv(t)
	)
	_, err := repo.PutShow(ctx, popcorn.Show{ID: "tt001", Title: "The Show"})
	require.NoError(t, err)
	ep, _, err := repo.PutEpisode(ctx, "tt001", popcorn.Episode{Sien: "2"})
	require.NoError(t, err)
	require.NoError(t, repo.SetLatestEpisode(ctx, ep))
	require.NoError(t, repo.Subscribe(ctx, "alice", "tt001"))
	require.NoError(t, repo.RemoveEpisodeFromFeed(ctx, "alice", "tt001", "2"))

	env.ExecuteWorkflow(workflows{}.Redeliver, "tt001")
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var res DeliveryResult
	require.NoError(t, env.GetWorkflowResult(&res))
	assert.Equal(t, DeliveryResult{Delivered: 1}, res)

	feed, err := repo.Feed(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "2", feed[0].Sien)
}

func TestRedeliver_NoLatestEpisode(t *testing.T) {
	env, _, _ := newTestEnv(t)

	env.ExecuteWorkflow(workflows{}.Redeliver, "tt404")
	require.True(t, env.IsWorkflowCompleted())

	popErr := &poperrs.Error{}
	require.True(t, asPoperr(env.GetWorkflowError(), &popErr))
	assert.Equal(t, http.StatusNotFound, popErr.Status)
}

func TestSweepActiveShows(t *testing.T) {
	var (
		ctx           = context.Background()
		env, repo, mr = newTestEnv(t)
	)
	mr.SetTime(time.UnixMilli(5000))
	ep, _, err := repo.PutEpisode(ctx, "tt001", popcorn.Episode{Sien: "3"})
	require.NoError(t, err)
	require.NoError(t, repo.SetLatestEpisode(ctx, ep))
	require.NoError(t, repo.SetShowActive(ctx, "tt001", true))
	require.NoError(t, repo.SetShowActive(ctx, "tt002", true))
	require.NoError(t, repo.SetShowActive(ctx, "tt003", false))
	require.NoError(t, repo.Subscribe(ctx, "alice", "tt001"))
	require.NoError(t, repo.Subscribe(ctx, "bob", "tt001"))
	require.NoError(t, repo.Subscribe(ctx, "bob", "tt002"))
	require.NoError(t, repo.Subscribe(ctx, "bob", "tt003"))

	env.ExecuteWorkflow(workflows{}.SweepActiveShows)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var summary SweepSummary
	require.NoError(t, env.GetWorkflowResult(&summary))
	assert.Equal(t, SweepSummary{
		StartedAt:     5000,
		Shows:         2,
		WithoutSien:   1,
		Subscriptions: 3,
	}, summary)

	started, err := repo.LatestScan(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), started)

	logKey := keys.Log("sweep", 5000)
	assert.Equal(t, "2", mr.HGet(logKey, "shows"))
	assert.Equal(t, "3", mr.HGet(logKey, "subscriptions"))
}
