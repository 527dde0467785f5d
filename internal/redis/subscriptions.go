package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jdholdren/popcorn/internal/keys"
	"github.com/jdholdren/popcorn/internal/logger"
	"github.com/jdholdren/popcorn/internal/popcorn"
)

// Subscribe records the user as a subscriber of the show, then puts the
// show's latest episode into the user's feed.
//
// Both sides of the relation are written in one transaction. The feed is
// derived state: failing to fill it is logged and does not undo the
// subscription.
func (r Repo) Subscribe(ctx context.Context, userID, showID string) error {
	if err := popcorn.ValidateIDs("user_id", userID, "show_id", showID); err != nil {
		return err
	}

	if err := r.relate(ctx, "SADD", userID, showID); err != nil {
		return fmt.Errorf("error subscribing: %w", err)
	}

	ctx = logger.Ctx(ctx, slog.String("user_id", userID), slog.String("show_id", showID))
	latest, err := r.LatestEpisode(ctx, showID)
	if errors.Is(err, popcorn.ErrNotFound) {
		return nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "error reading latest episode for backfill", "error", err)
		return nil
	}
	if err := r.AddEpisodeToFeed(ctx, userID, showID, latest.Sien); err != nil {
		slog.ErrorContext(ctx, "error backfilling feed", "sien", latest.Sien, "error", err)
	}

	return nil
}

// Unsubscribe removes the relation between the user and show, then purges
// the show's episodes from the user's feed.
//
// Unsubscribing from a show the user does not follow is a no-op.
func (r Repo) Unsubscribe(ctx context.Context, userID, showID string) error {
	if err := popcorn.ValidateIDs("user_id", userID, "show_id", showID); err != nil {
		return err
	}

	if err := r.relate(ctx, "SREM", userID, showID); err != nil {
		return fmt.Errorf("error unsubscribing: %w", err)
	}

	ctx = logger.Ctx(ctx, slog.String("user_id", userID), slog.String("show_id", showID))
	if _, err := r.RemoveShowFromFeed(ctx, userID, showID); err != nil {
		slog.ErrorContext(ctx, "error purging show from feed", "error", err)
	}

	return nil
}

// relate applies the same set command to both directions of the relation
// in a single transaction.
func (r Repo) relate(ctx context.Context, cmd, userID, showID string) error {
	c, err := r.conn(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	c.Send("MULTI")
	c.Send(cmd, keys.Subscribers(showID), userID)
	c.Send(cmd, keys.Subscriptions(userID), showID)
	_, err = exec(c)

	return err
}

func (r Repo) Subscribers(ctx context.Context, showID string) ([]string, error) {
	if err := popcorn.ValidateIDs("show_id", showID); err != nil {
		return nil, err
	}

	return r.members(ctx, keys.Subscribers(showID))
}

func (r Repo) Subscriptions(ctx context.Context, userID string) ([]string, error) {
	if err := popcorn.ValidateIDs("user_id", userID); err != nil {
		return nil, err
	}

	return r.members(ctx, keys.Subscriptions(userID))
}
