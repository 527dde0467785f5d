// Package popcorn holds the domain types for tracking TV shows, and the
// surfaces the store has to provide for them.
package popcorn

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("resource not found")
	ErrInvalid  = errors.New("invalid input")
)

type (
	// RecordStore keeps the flat show and episode records.
	RecordStore interface {
		PutShow(ctx context.Context, show Show) (Show, error)
		Show(ctx context.Context, id string) (Show, error)
		// PutEpisode reports false if the episode was already stored, in which
		// case the existing record is returned untouched.
		PutEpisode(ctx context.Context, showID string, ep Episode) (Episode, bool, error)
		Episode(ctx context.Context, showID, sien string) (Episode, error)
		LatestEpisode(ctx context.Context, showID string) (Episode, error)
		SetLatestEpisode(ctx context.Context, ep Episode) error
		// AdvanceLatestEpisode only ever moves the pointer forward. It returns
		// the episode the pointer held before and whether it moved.
		AdvanceLatestEpisode(ctx context.Context, ep Episode) (Episode, bool, error)
	}

	// MembershipIndex partitions shows into active and inactive, and tracks
	// the episodes stored for each show.
	MembershipIndex interface {
		SetShowActive(ctx context.Context, showID string, active bool) error
		ActiveShows(ctx context.Context) ([]string, error)
		InactiveShows(ctx context.Context) ([]string, error)
		ShowEpisodes(ctx context.Context, showID string) ([]string, error)
	}

	// SubscriptionLedger is the relation between users and the shows they
	// follow, readable from either side.
	SubscriptionLedger interface {
		Subscribe(ctx context.Context, userID, showID string) error
		Unsubscribe(ctx context.Context, userID, showID string) error
		Subscribers(ctx context.Context, showID string) ([]string, error)
		Subscriptions(ctx context.Context, userID string) ([]string, error)
	}

	// FeedAggregator maintains each user's feed of episodes.
	FeedAggregator interface {
		AddEpisodeToFeed(ctx context.Context, userID, showID, sien string) error
		RemoveShowFromFeed(ctx context.Context, userID, showID string) (int, error)
		RemoveEpisodeFromFeed(ctx context.Context, userID, showID, sien string) error
		Feed(ctx context.Context, userID string) ([]FeedEntry, error)
	}

	// ScanLog is the bookkeeping left behind by scans.
	ScanLog interface {
		Time(ctx context.Context) (int64, error)
		LogScan(ctx context.Context) (int64, error)
		LatestScan(ctx context.Context) (int64, error)
		LogEpisodeUpdate(ctx context.Context, update EpisodeUpdate) (EpisodeUpdate, error)
		Log(ctx context.Context, kind string, attrs map[string]any) (map[string]any, error)
	}

	Repository interface {
		RecordStore
		MembershipIndex
		SubscriptionLedger
		FeedAggregator
		ScanLog
	}
)
