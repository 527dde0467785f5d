package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdholdren/popcorn/internal/keys"
	"github.com/jdholdren/popcorn/internal/popcorn"
)

func TestFeed_NewestFirst(t *testing.T) {
	var (
		ctx      = context.Background()
		repo, mr = newTestRepo(t)
	)
	seedShow(t, repo, "tt001")

	for _, ep := range []struct {
		sien string
		at   int64
	}{
		{"1", 100},
		{"2", 300},
		{"3", 200},
	} {
		mr.SetTime(time.UnixMilli(ep.at))
		_, _, err := repo.PutEpisode(ctx, "tt001", popcorn.Episode{Sien: ep.sien})
		require.NoError(t, err)
		require.NoError(t, repo.AddEpisodeToFeed(ctx, "alice", "tt001", ep.sien))
	}

	feed, err := repo.Feed(ctx, "alice")
	require.NoError(t, err)

	var got []int64
	for _, entry := range feed {
		got = append(got, entry.Timestamp)
	}
	assert.Equal(t, []int64{300, 200, 100}, got)
}

func TestFeed_Projection(t *testing.T) {
	var (
		ctx      = context.Background()
		repo, mr = newTestRepo(t)
	)
	mr.SetTime(time.UnixMilli(500))
	seedShow(t, repo, "tt001")
	_, _, err := repo.PutEpisode(ctx, "tt001", popcorn.Episode{
		Sien:       "12",
		Season:     2,
		Episode:    3,
		Title:      "The Third",
		FirstAired: 400,
	})
	require.NoError(t, err)
	require.NoError(t, repo.AddEpisodeToFeed(ctx, "alice", "tt001", "12"))

	feed, err := repo.Feed(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, []popcorn.FeedEntry{{
		ShowID:       "tt001",
		Sien:         "12",
		Title:        "Show tt001",
		EpisodeTitle: "The Third",
		Season:       2,
		Episode:      3,
		Poster:       "tt001.jpg",
		FirstAired:   400,
		Timestamp:    500,
	}}, feed)
}

func TestFeed_SkipsBrokenReferences(t *testing.T) {
	var (
		ctx      = context.Background()
		repo, mr = newTestRepo(t)
	)
	seedShow(t, repo, "tt001", popcorn.Episode{Sien: "1"})
	require.NoError(t, repo.AddEpisodeToFeed(ctx, "alice", "tt001", "1"))

	// Episode that was never stored
	require.NoError(t, repo.AddEpisodeToFeed(ctx, "alice", "tt001", "99"))

	// Episode whose show record is gone
	_, _, err := repo.PutEpisode(ctx, "tt404", popcorn.Episode{Sien: "1"})
	require.NoError(t, err)
	require.NoError(t, repo.AddEpisodeToFeed(ctx, "alice", "tt404", "1"))

	members, err := mr.Members(keys.Feed("alice"))
	require.NoError(t, err)
	require.Len(t, members, 3)

	feed, err := repo.Feed(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "tt001", feed[0].ShowID)
}

func TestFeed_Empty(t *testing.T) {
	repo, _ := newTestRepo(t)

	feed, err := repo.Feed(context.Background(), "nobody")

	require.NoError(t, err)
	assert.Empty(t, feed)
}

func TestAddEpisodeToFeed_Idempotent(t *testing.T) {
	var (
		ctx      = context.Background()
		repo, mr = newTestRepo(t)
	)

	require.NoError(t, repo.AddEpisodeToFeed(ctx, "alice", "tt001", "1"))
	require.NoError(t, repo.AddEpisodeToFeed(ctx, "alice", "tt001", "1"))

	members, err := mr.Members(keys.Feed("alice"))
	require.NoError(t, err)
	assert.Equal(t, []string{"show:tt001:episode:1"}, members)
}

func TestRemoveEpisodeFromFeed(t *testing.T) {
	var (
		ctx      = context.Background()
		repo, mr = newTestRepo(t)
	)
	require.NoError(t, repo.AddEpisodeToFeed(ctx, "alice", "tt001", "1"))
	require.NoError(t, repo.AddEpisodeToFeed(ctx, "alice", "tt001", "2"))

	require.NoError(t, repo.RemoveEpisodeFromFeed(ctx, "alice", "tt001", "1"))
	// Removing something that is not there is fine
	require.NoError(t, repo.RemoveEpisodeFromFeed(ctx, "alice", "tt001", "1"))

	members, err := mr.Members(keys.Feed("alice"))
	require.NoError(t, err)
	assert.Equal(t, []string{"show:tt001:episode:2"}, members)
}

func TestRemoveShowFromFeed(t *testing.T) {
	var (
		ctx      = context.Background()
		repo, mr = newTestRepo(t)
	)
	for _, ref := range []struct{ show, sien string }{
		{"tt1", "1"},
		{"tt1", "2"},
		{"tt1", "3"},
		{"tt10", "1"},
		{"tt2", "1"},
	} {
		require.NoError(t, repo.AddEpisodeToFeed(ctx, "alice", ref.show, ref.sien))
	}

	removed, err := repo.RemoveShowFromFeed(ctx, "alice", "tt1")
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	members, err := mr.Members(keys.Feed("alice"))
	require.NoError(t, err)
	assert.Equal(t, []string{"show:tt10:episode:1", "show:tt2:episode:1"}, members)

	removed, err = repo.RemoveShowFromFeed(ctx, "alice", "tt1")
	require.NoError(t, err)
	assert.Zero(t, removed)
}
