package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	poperrs "github.com/jdholdren/popcorn/internal/errors"
	"github.com/jdholdren/popcorn/internal/popcorn"
	"github.com/jdholdren/popcorn/internal/scan"
)

type activities struct {
	repo    popcorn.Repository
	scanner *scan.Scanner
}

// Instance to make the workflow a bit more readable
var acts = activities{}

type (
	// IngestArgs is what a scan found for a single show.
	IngestArgs struct {
		Show   popcorn.Show     `json:"show"`
		Latest *popcorn.Episode `json:"latest,omitempty"`
	}

	// Delivery is one episode headed for one user's feed.
	Delivery struct {
		UserID string `json:"user_id"`
		ShowID string `json:"show_id"`
		Sien   string `json:"sien"`
	}

	// SweepResult is what a sweep saw of the airing shows.
	SweepResult struct {
		StartedAt int64    `json:"started_at"`
		Shows     []string `json:"shows"`
	}
)

// Stores the show, its active flag and its episode, advancing the latest episode pointer if needed.
func (a activities) SaveShow(ctx context.Context, args IngestArgs) (scan.SaveResult, error) {
	res, err := a.scanner.Save(ctx, args.Show, args.Latest)
	if err != nil {
		return scan.SaveResult{}, appErr("error saving show", err)
	}

	return res, nil
}

func (a activities) Subscribers(ctx context.Context, showID string) ([]string, error) {
	users, err := a.repo.Subscribers(ctx, showID)
	if err != nil {
		return nil, appErr("error listing subscribers", err)
	}

	return users, nil
}

// Puts a single episode into a single feed. Safe to retry.
func (a activities) DeliverEpisode(ctx context.Context, d Delivery) error {
	if err := a.repo.AddEpisodeToFeed(ctx, d.UserID, d.ShowID, d.Sien); err != nil {
		return appErr("error delivering episode", err)
	}

	return nil
}

func (a activities) LatestEpisode(ctx context.Context, showID string) (popcorn.Episode, error) {
	ep, err := a.repo.LatestEpisode(ctx, showID)
	if err != nil {
		return popcorn.Episode{}, appErr("error fetching latest episode", err)
	}

	return ep, nil
}

// Marks the start of a sweep and lists the shows still airing.
func (a activities) StartSweep(ctx context.Context) (SweepResult, error) {
	l := activity.GetLogger(ctx)

	started, err := a.repo.LogScan(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("error logging scan: %w", err)
	}

	shows, err := a.repo.ActiveShows(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("error listing active shows: %w", err)
	}

	l.Info("started sweep", "active_shows", len(shows))

	return SweepResult{StartedAt: started, Shows: shows}, nil
}

// ShowStatus is where an airing show stands.
type ShowStatus struct {
	ShowID      string `json:"show_id"`
	Sien        string `json:"sien,omitempty"`
	Subscribers int    `json:"subscribers"`
}

// Looks up a show's latest episode and how many users follow it.
func (a activities) ShowStatus(ctx context.Context, showID string) (ShowStatus, error) {
	status := ShowStatus{ShowID: showID}

	ep, err := a.repo.LatestEpisode(ctx, showID)
	switch {
	case errors.Is(err, popcorn.ErrNotFound):
	case err != nil:
		return ShowStatus{}, fmt.Errorf("error fetching latest episode: %w", err)
	default:
		status.Sien = ep.Sien
	}

	users, err := a.repo.Subscribers(ctx, showID)
	if err != nil {
		return ShowStatus{}, fmt.Errorf("error listing subscribers: %w", err)
	}
	status.Subscribers = len(users)

	return status, nil
}

// SweepSummary is the record left behind by a finished sweep.
type SweepSummary struct {
	StartedAt     int64 `json:"started_at"`
	Shows         int   `json:"shows"`
	Unchecked     int   `json:"unchecked"`
	WithoutSien   int   `json:"without_sien"`
	Subscriptions int   `json:"subscriptions"`
}

func (a activities) FinishSweep(ctx context.Context, summary SweepSummary) error {
	if _, err := a.repo.Log(ctx, "sweep", map[string]any{
		"started_at":    summary.StartedAt,
		"shows":         summary.Shows,
		"unchecked":     summary.Unchecked,
		"without_sien":  summary.WithoutSien,
		"subscriptions": summary.Subscriptions,
	}); err != nil {
		return fmt.Errorf("error logging sweep: %w", err)
	}

	return nil
}

// Turns the errors callers can't fix by retrying into non-retryable application errors
// carrying a popcorn error, so the type survives marshaling back to whoever started the workflow.
func appErr(msg string, err error) error {
	switch {
	case errors.Is(err, popcorn.ErrInvalid):
		var pe *poperrs.Error
		if !errors.As(err, &pe) {
			pe = poperrs.E(err, http.StatusBadRequest)
		}
		return temporal.NewNonRetryableApplicationError(msg, errTypeInvalid, err, pe)
	case errors.Is(err, popcorn.ErrNotFound):
		return temporal.NewNonRetryableApplicationError(msg, errTypeNotFound, err, poperrs.E(err, http.StatusNotFound))
	}

	return fmt.Errorf("%s: %w", msg, err)
}
