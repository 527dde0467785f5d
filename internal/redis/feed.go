package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gomodule/redigo/redis"

	"github.com/jdholdren/popcorn/internal/keys"
	"github.com/jdholdren/popcorn/internal/popcorn"
)

// AddEpisodeToFeed puts a reference to the episode in the user's feed.
// Adding a reference already there does nothing.
func (r Repo) AddEpisodeToFeed(ctx context.Context, userID, showID, sien string) error {
	if err := popcorn.ValidateIDs("user_id", userID, "show_id", showID, "sien", sien); err != nil {
		return err
	}

	c, err := r.conn(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if _, err := c.Do("SADD", keys.Feed(userID), keys.Episode(showID, sien)); err != nil {
		return fmt.Errorf("error adding to feed: %w", err)
	}

	return nil
}

func (r Repo) RemoveEpisodeFromFeed(ctx context.Context, userID, showID, sien string) error {
	if err := popcorn.ValidateIDs("user_id", userID, "show_id", showID, "sien", sien); err != nil {
		return err
	}

	c, err := r.conn(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if _, err := c.Do("SREM", keys.Feed(userID), keys.Episode(showID, sien)); err != nil {
		return fmt.Errorf("error removing from feed: %w", err)
	}

	return nil
}

// RemoveShowFromFeed removes every episode of the show from the user's feed.
//
// The feed is not indexed by show, so the whole feed is read and the
// matching references are removed with a single command.
// Returns how many references were removed.
func (r Repo) RemoveShowFromFeed(ctx context.Context, userID, showID string) (int, error) {
	if err := popcorn.ValidateIDs("user_id", userID, "show_id", showID); err != nil {
		return 0, err
	}

	c, err := r.conn(ctx)
	if err != nil {
		return 0, err
	}
	defer c.Close()

	feedKey := keys.Feed(userID)
	refs, err := redis.Strings(c.Do("SMEMBERS", feedKey))
	if err != nil {
		return 0, fmt.Errorf("error reading feed: %w", err)
	}

	prefix := keys.EpisodePrefix(showID)
	args := redis.Args{}.Add(feedKey)
	for _, ref := range refs {
		if strings.HasPrefix(ref, prefix) {
			args = args.Add(ref)
		}
	}
	if len(args) == 1 {
		return 0, nil
	}

	removed, err := redis.Int(c.Do("SREM", args...))
	if err != nil {
		return 0, fmt.Errorf("error purging feed: %w", err)
	}

	return removed, nil
}

// Feed resolves the user's feed into entries, newest first.
//
// A reference whose episode record is missing is resolved through the show's
// latest episode pointer if that is the same episode. Other references to
// episodes or shows that no longer exist are skipped.
func (r Repo) Feed(ctx context.Context, userID string) ([]popcorn.FeedEntry, error) {
	if err := popcorn.ValidateIDs("user_id", userID); err != nil {
		return nil, err
	}

	c, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	refs, err := redis.Strings(c.Do("SMEMBERS", keys.Feed(userID)))
	if err != nil {
		return nil, fmt.Errorf("error reading feed: %w", err)
	}

	var (
		episodes []popcorn.Episode
		resolved = make(map[string]bool, len(refs))
	)
	if err := pipelineRecords(c, refs, func(ref string, vals []any) error {
		var ep popcorn.Episode
		if err := scanRecord(vals, &ep); err != nil {
			return err
		}
		if ep.ShowID == "" {
			ep.ShowID, _, _ = keys.ParseEpisode(ref)
		}
		episodes = append(episodes, ep)
		resolved[ref] = true

		return nil
	}); err != nil {
		return nil, fmt.Errorf("error resolving feed episodes: %w", err)
	}

	fromLatest, err := resolveFromLatest(c, refs, resolved)
	if err != nil {
		return nil, fmt.Errorf("error resolving feed episodes: %w", err)
	}
	episodes = append(episodes, fromLatest...)

	var showKeys []string
	seen := make(map[string]bool)
	for _, ep := range episodes {
		if ep.ShowID == "" || seen[ep.ShowID] {
			continue
		}
		seen[ep.ShowID] = true
		showKeys = append(showKeys, keys.Show(ep.ShowID))
	}

	showsByKey := make(map[string]popcorn.Show, len(showKeys))
	if err := pipelineRecords(c, showKeys, func(key string, vals []any) error {
		var show popcorn.Show
		if err := scanRecord(vals, &show); err != nil {
			return err
		}
		showsByKey[key] = show

		return nil
	}); err != nil {
		return nil, fmt.Errorf("error resolving feed shows: %w", err)
	}

	entries := make([]popcorn.FeedEntry, 0, len(episodes))
	for _, ep := range episodes {
		show, ok := showsByKey[keys.Show(ep.ShowID)]
		if !ok {
			continue
		}
		entries = append(entries, popcorn.NewFeedEntry(show, ep))
	}
	popcorn.SortFeed(entries)

	return entries, nil
}

// resolveFromLatest finds the references that had no episode record in the
// latest episode pointer of their show, when the pointer holds that episode.
func resolveFromLatest(c redis.Conn, refs []string, resolved map[string]bool) ([]popcorn.Episode, error) {
	var (
		latestKeys []string
		wanted     = make(map[string]map[string]bool) // latest key -> siens
	)
	for _, ref := range refs {
		if resolved[ref] {
			continue
		}
		showID, sien, ok := keys.ParseEpisode(ref)
		if !ok || sien == "" {
			continue
		}
		key := keys.LatestEpisode(showID)
		if wanted[key] == nil {
			wanted[key] = make(map[string]bool)
			latestKeys = append(latestKeys, key)
		}
		wanted[key][sien] = true
	}

	var episodes []popcorn.Episode
	err := pipelineRecords(c, latestKeys, func(key string, vals []any) error {
		var ep popcorn.Episode
		if err := scanRecord(vals, &ep); err != nil {
			return err
		}
		if !wanted[key][ep.Sien] {
			return nil
		}
		if ep.ShowID == "" {
			ep.ShowID, _, _ = keys.ParseEpisode(key)
		}
		episodes = append(episodes, ep)

		return nil
	})

	return episodes, err
}

// pipelineRecords fetches the hashes under keys in one round trip and hands
// each one that exists to fn.
func pipelineRecords(c redis.Conn, hashKeys []string, fn func(key string, vals []any) error) error {
	if len(hashKeys) == 0 {
		return nil
	}

	for _, key := range hashKeys {
		if err := c.Send("HGETALL", key); err != nil {
			return err
		}
	}
	if err := c.Flush(); err != nil {
		return err
	}

	// Every reply has to be drained before the connection can be reused, so
	// the first error is held until the end.
	var firstErr error
	for _, key := range hashKeys {
		vals, err := redis.Values(c.Receive())
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if firstErr != nil {
			continue
		}
		err = fn(key, vals)
		if errors.Is(err, popcorn.ErrNotFound) {
			continue
		}
		if err != nil {
			firstErr = err
		}
	}

	return firstErr
}
