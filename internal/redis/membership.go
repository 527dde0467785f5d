package redis

import (
	"context"
	"fmt"

	"github.com/jdholdren/popcorn/internal/keys"
	"github.com/jdholdren/popcorn/internal/popcorn"
)

// SetShowActive moves the show into the active or inactive partition.
//
// Removal from one set and insertion into the other are applied together,
// so the show is never in both or neither.
func (r Repo) SetShowActive(ctx context.Context, showID string, active bool) error {
	if err := popcorn.ValidateIDs("show_id", showID); err != nil {
		return err
	}

	from, to := keys.ActiveShows, keys.InactiveShows
	if active {
		from, to = to, from
	}

	c, err := r.conn(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	c.Send("MULTI")
	c.Send("SREM", from, showID)
	c.Send("SADD", to, showID)
	if _, err := exec(c); err != nil {
		return fmt.Errorf("error setting show active=%t: %w", active, err)
	}

	return nil
}

func (r Repo) ActiveShows(ctx context.Context) ([]string, error) {
	return r.members(ctx, keys.ActiveShows)
}

func (r Repo) InactiveShows(ctx context.Context) ([]string, error) {
	return r.members(ctx, keys.InactiveShows)
}

// ShowEpisodes lists the keys of every episode stored for the show.
func (r Repo) ShowEpisodes(ctx context.Context, showID string) ([]string, error) {
	if err := popcorn.ValidateIDs("show_id", showID); err != nil {
		return nil, err
	}

	return r.members(ctx, keys.Episodes(showID))
}
