package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/gomodule/redigo/redis"

	"github.com/jdholdren/popcorn/internal/keys"
	"github.com/jdholdren/popcorn/internal/popcorn"
)

// PutShow stamps the show with the store's time and writes it.
//
// Returns the record as it was stored.
func (r Repo) PutShow(ctx context.Context, show popcorn.Show) (popcorn.Show, error) {
	if err := show.Validate(); err != nil {
		return popcorn.Show{}, err
	}

	c, err := r.conn(ctx)
	if err != nil {
		return popcorn.Show{}, err
	}
	defer c.Close()

	if show.Timestamp, err = storeTime(c); err != nil {
		return popcorn.Show{}, err
	}
	if _, err := c.Do("HSET", redis.Args{}.Add(show.Key()).AddFlat(&show)...); err != nil {
		return popcorn.Show{}, fmt.Errorf("error writing show: %w", err)
	}

	return show, nil
}

func (r Repo) Show(ctx context.Context, id string) (popcorn.Show, error) {
	if err := popcorn.ValidateIDs("id", id); err != nil {
		return popcorn.Show{}, err
	}

	c, err := r.conn(ctx)
	if err != nil {
		return popcorn.Show{}, err
	}
	defer c.Close()

	var show popcorn.Show
	err = hgetall(c, keys.Show(id), &show)
	if errors.Is(err, popcorn.ErrNotFound) {
		return popcorn.Show{}, err
	}
	if err != nil {
		return popcorn.Show{}, fmt.Errorf("error fetching show: %w", err)
	}

	return show, nil
}

// PutEpisode stores an episode unless one with the same sien already exists
// for the show. The first write wins: a duplicate is not an error, and the
// stored record comes back with false.
func (r Repo) PutEpisode(ctx context.Context, showID string, ep popcorn.Episode) (popcorn.Episode, bool, error) {
	ep.ShowID = showID
	if err := ep.Validate(); err != nil {
		return popcorn.Episode{}, false, err
	}

	c, err := r.conn(ctx)
	if err != nil {
		return popcorn.Episode{}, false, err
	}
	defer c.Close()

	key := ep.Key()

	// Watching the key turns a concurrent insert of the same episode into an
	// aborted transaction instead of an overwrite.
	if _, err := c.Do("WATCH", key); err != nil {
		return popcorn.Episode{}, false, fmt.Errorf("error watching episode: %w", err)
	}
	exists, err := redis.Bool(c.Do("EXISTS", key))
	if err != nil {
		return popcorn.Episode{}, false, fmt.Errorf("error checking episode: %w", err)
	}
	if exists {
		return existingEpisode(c, key)
	}

	if ep.Timestamp, err = storeTime(c); err != nil {
		return popcorn.Episode{}, false, err
	}

	c.Send("MULTI")
	c.Send("HSET", redis.Args{}.Add(key).AddFlat(&ep)...)
	c.Send("SADD", keys.Episodes(showID), key)
	_, err = exec(c)
	if errors.Is(err, redis.ErrNil) {
		// Lost the race to another writer
		return existingEpisode(c, key)
	}
	if err != nil {
		return popcorn.Episode{}, false, fmt.Errorf("error writing episode: %w", err)
	}

	return ep, true, nil
}

func existingEpisode(c redis.Conn, key string) (popcorn.Episode, bool, error) {
	if _, err := c.Do("UNWATCH"); err != nil {
		return popcorn.Episode{}, false, fmt.Errorf("error unwatching episode: %w", err)
	}

	var ep popcorn.Episode
	if err := hgetall(c, key, &ep); err != nil {
		return popcorn.Episode{}, false, fmt.Errorf("error fetching existing episode: %w", err)
	}

	return ep, false, nil
}

func (r Repo) Episode(ctx context.Context, showID, sien string) (popcorn.Episode, error) {
	if err := (popcorn.Episode{ShowID: showID, Sien: sien}).Validate(); err != nil {
		return popcorn.Episode{}, err
	}

	return r.episode(ctx, keys.Episode(showID, sien))
}

// LatestEpisode reads the pointer to the show's newest episode.
func (r Repo) LatestEpisode(ctx context.Context, showID string) (popcorn.Episode, error) {
	if err := popcorn.ValidateIDs("show_id", showID); err != nil {
		return popcorn.Episode{}, err
	}

	return r.episode(ctx, keys.LatestEpisode(showID))
}

func (r Repo) episode(ctx context.Context, key string) (popcorn.Episode, error) {
	c, err := r.conn(ctx)
	if err != nil {
		return popcorn.Episode{}, err
	}
	defer c.Close()

	var ep popcorn.Episode
	err = hgetall(c, key, &ep)
	if errors.Is(err, popcorn.ErrNotFound) {
		return popcorn.Episode{}, err
	}
	if err != nil {
		return popcorn.Episode{}, fmt.Errorf("error fetching episode: %w", err)
	}

	return ep, nil
}

// SetLatestEpisode overwrites the show's latest episode pointer with a copy
// of ep.
func (r Repo) SetLatestEpisode(ctx context.Context, ep popcorn.Episode) error {
	if err := ep.Validate(); err != nil {
		return err
	}

	c, err := r.conn(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if _, err := c.Do("HSET", redis.Args{}.Add(keys.LatestEpisode(ep.ShowID)).AddFlat(&ep)...); err != nil {
		return fmt.Errorf("error writing latest episode: %w", err)
	}

	return nil
}

// AdvanceLatestEpisode moves the show's latest episode pointer to ep, unless
// the pointer already holds ep or a later episode.
//
// The pointer is watched while it is compared, so concurrent scans of one show
// can never move it backwards.
// Returns what the pointer held before (empty if nothing) and whether it moved.
func (r Repo) AdvanceLatestEpisode(ctx context.Context, ep popcorn.Episode) (popcorn.Episode, bool, error) {
	if err := ep.Validate(); err != nil {
		return popcorn.Episode{}, false, err
	}

	c, err := r.conn(ctx)
	if err != nil {
		return popcorn.Episode{}, false, err
	}
	defer c.Close()

	key := keys.LatestEpisode(ep.ShowID)
	for {
		if err := ctx.Err(); err != nil {
			return popcorn.Episode{}, false, err
		}

		if _, err := c.Do("WATCH", key); err != nil {
			return popcorn.Episode{}, false, fmt.Errorf("error watching latest episode: %w", err)
		}

		var prev popcorn.Episode
		if err := hgetall(c, key, &prev); err != nil && !errors.Is(err, popcorn.ErrNotFound) {
			c.Do("UNWATCH")
			return popcorn.Episode{}, false, fmt.Errorf("error reading latest episode: %w", err)
		}
		if prev.Sien != "" && !popcorn.SienAfter(ep.Sien, prev.Sien) {
			if _, err := c.Do("UNWATCH"); err != nil {
				return popcorn.Episode{}, false, fmt.Errorf("error unwatching latest episode: %w", err)
			}
			return prev, false, nil
		}

		c.Send("MULTI")
		c.Send("HSET", redis.Args{}.Add(key).AddFlat(&ep)...)
		_, err := exec(c)
		if errors.Is(err, redis.ErrNil) {
			// Another scan moved the pointer, compare against what it wrote
			continue
		}
		if err != nil {
			return popcorn.Episode{}, false, fmt.Errorf("error advancing latest episode: %w", err)
		}

		return prev, true, nil
	}
}
