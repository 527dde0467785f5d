package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/gomodule/redigo/redis"

	"github.com/jdholdren/popcorn/internal/keys"
	"github.com/jdholdren/popcorn/internal/popcorn"
)

// LogScan marks the start of a scan with the store's time.
func (r Repo) LogScan(ctx context.Context) (int64, error) {
	c, err := r.conn(ctx)
	if err != nil {
		return 0, err
	}
	defer c.Close()

	t, err := storeTime(c)
	if err != nil {
		return 0, err
	}
	if _, err := c.Do("SET", keys.LatestScan, t); err != nil {
		return 0, fmt.Errorf("error logging scan: %w", err)
	}

	return t, nil
}

// LatestScan is when the last scan started.
func (r Repo) LatestScan(ctx context.Context) (int64, error) {
	c, err := r.conn(ctx)
	if err != nil {
		return 0, err
	}
	defer c.Close()

	t, err := redis.Int64(c.Do("GET", keys.LatestScan))
	if errors.Is(err, redis.ErrNil) {
		return 0, popcorn.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("error reading latest scan: %w", err)
	}

	return t, nil
}

// LogEpisodeUpdate records a show moving from one episode to another.
func (r Repo) LogEpisodeUpdate(ctx context.Context, update popcorn.EpisodeUpdate) (popcorn.EpisodeUpdate, error) {
	if err := popcorn.ValidateIDs("show_id", update.ShowID); err != nil {
		return popcorn.EpisodeUpdate{}, err
	}

	c, err := r.conn(ctx)
	if err != nil {
		return popcorn.EpisodeUpdate{}, err
	}
	defer c.Close()

	if update.Time, err = storeTime(c); err != nil {
		return popcorn.EpisodeUpdate{}, err
	}
	key := keys.EpisodeUpdate(update.Time, update.ShowID)
	if _, err := c.Do("HSET", redis.Args{}.Add(key).AddFlat(&update)...); err != nil {
		return popcorn.EpisodeUpdate{}, fmt.Errorf("error logging episode update: %w", err)
	}

	return update, nil
}

// Log writes a free-form record of the given kind. Attributes that are not
// scalars are dropped.
//
// Returns the attributes as stored, including the time they were written.
func (r Repo) Log(ctx context.Context, kind string, attrs map[string]any) (map[string]any, error) {
	if err := popcorn.ValidateIDs("kind", kind); err != nil {
		return nil, err
	}

	c, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	t, err := storeTime(c)
	if err != nil {
		return nil, err
	}

	stored := popcorn.ScalarAttrs(attrs)
	stored["time"] = t
	if _, err := c.Do("HSET", redis.Args{}.Add(keys.Log(kind, t)).AddFlat(stored)...); err != nil {
		return nil, fmt.Errorf("error writing log: %w", err)
	}

	return stored, nil
}
