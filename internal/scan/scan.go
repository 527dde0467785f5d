// Package scan takes what a scan of the show source turned up and records
// it: the show details, whether it is still airing, its newest episode, and
// delivery of that episode to every subscriber.
package scan

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/sync/errgroup"

	"github.com/jdholdren/popcorn/internal/logger"
	"github.com/jdholdren/popcorn/internal/popcorn"
)

// Store is what the scanner needs from the persistence layer.
type Store interface {
	popcorn.RecordStore
	SetShowActive(ctx context.Context, showID string, active bool) error
	Subscribers(ctx context.Context, showID string) ([]string, error)
	AddEpisodeToFeed(ctx context.Context, userID, showID, sien string) error
	LogEpisodeUpdate(ctx context.Context, update popcorn.EpisodeUpdate) (popcorn.EpisodeUpdate, error)
}

const defaultConcurrency = 8

type Scanner struct {
	store       Store
	concurrency int
}

func New(store Store, concurrency int) *Scanner {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	return &Scanner{
		store:       store,
		concurrency: concurrency,
	}
}

type (
	// SaveResult is the outcome of recording a show and its newest episode.
	SaveResult struct {
		Show    popcorn.Show
		Episode popcorn.Episode

		// The episode had not been stored before.
		NewEpisode bool
		// The episode replaced the show's latest episode pointer.
		Advanced bool
	}

	// FanOutResult counts deliveries of one episode to subscriber feeds.
	FanOutResult struct {
		Delivered int
		Failed    int
	}

	IngestResult struct {
		SaveResult
		FanOutResult
	}
)

// Ingest saves the show and, when it brings a newer episode, delivers that
// episode to the subscribers.
func (s *Scanner) Ingest(ctx context.Context, show popcorn.Show, latest *popcorn.Episode) (IngestResult, error) {
	saved, err := s.Save(ctx, show, latest)
	if err != nil {
		return IngestResult{}, err
	}

	res := IngestResult{SaveResult: saved}
	if !saved.Advanced {
		return res, nil
	}

	res.FanOutResult, err = s.FanOut(ctx, saved.Show.ID, saved.Episode.Sien)
	if err != nil {
		return res, err
	}

	return res, nil
}

// Save writes the show details, its active flag and its latest episode.
//
// The latest episode pointer only moves forward: an episode that is new to
// the store but older than the current pointer is kept without advancing it.
// Concurrent saves of one show are safe, the pointer is compared and set
// atomically.
func (s *Scanner) Save(ctx context.Context, show popcorn.Show, latest *popcorn.Episode) (SaveResult, error) {
	if err := show.Validate(); err != nil {
		return SaveResult{}, err
	}
	show = sanitizeShow(show)
	ctx = logger.Ctx(ctx, slog.String("show_id", show.ID))

	var ep popcorn.Episode
	if latest != nil {
		ep = sanitizeEpisode(*latest)
		ep.ShowID = show.ID
		if err := ep.Validate(); err != nil {
			return SaveResult{}, err
		}
	}

	var res SaveResult
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stored, err := s.store.PutShow(gCtx, show)
		res.Show = stored
		return err
	})
	g.Go(func() error {
		return s.store.SetShowActive(gCtx, show.ID, show.Active)
	})
	if latest != nil {
		g.Go(func() error {
			stored, created, err := s.store.PutEpisode(gCtx, show.ID, ep)
			res.Episode, res.NewEpisode = stored, created
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return SaveResult{}, fmt.Errorf("error saving show: %w", err)
	}

	if !res.NewEpisode {
		return res, nil
	}

	prev, advanced, err := s.store.AdvanceLatestEpisode(ctx, res.Episode)
	if err != nil {
		return SaveResult{}, fmt.Errorf("error advancing latest episode: %w", err)
	}
	if !advanced {
		return res, nil
	}
	res.Advanced = true

	update := popcorn.EpisodeUpdate{
		ShowID:      show.ID,
		PrevSeason:  prev.Season,
		PrevEpisode: prev.Episode,
		NewSeason:   res.Episode.Season,
		NewEpisode:  res.Episode.Episode,
	}
	if _, err := s.store.LogEpisodeUpdate(ctx, update); err != nil {
		slog.ErrorContext(ctx, "error logging episode update", "error", err)
	}
	slog.InfoContext(ctx, "show advanced", "sien", res.Episode.Sien, "prev_sien", prev.Sien)

	return res, nil
}

// FanOut puts the episode into the feed of every subscriber of the show.
//
// Deliveries are independent: one failing does not stop the others, and
// failures are logged and counted rather than returned.
func (s *Scanner) FanOut(ctx context.Context, showID, sien string) (FanOutResult, error) {
	ctx = logger.Ctx(ctx, slog.String("show_id", showID), slog.String("sien", sien))

	users, err := s.store.Subscribers(ctx, showID)
	if err != nil {
		return FanOutResult{}, fmt.Errorf("error listing subscribers: %w", err)
	}

	var delivered, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, userID := range users {
		g.Go(func() error {
			if err := s.store.AddEpisodeToFeed(ctx, userID, showID, sien); err != nil {
				slog.ErrorContext(ctx, "error delivering episode", "user_id", userID, "error", err)
				failed.Add(1)
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	g.Wait()

	res := FanOutResult{Delivered: int(delivered.Load()), Failed: int(failed.Load())}
	slog.InfoContext(ctx, "fanned out episode", "delivered", res.Delivered, "failed", res.Failed)

	return res, nil
}

var stripPolicy = bluemonday.StrictPolicy()

const maxTextLen = 2048

// Removes all html tags from the string, usually a synopsis.
//
// The policy escapes the text it keeps, so entities are decoded again to store
// plain text. Also limits the length of the string so there's not a massive
// chunk of text being stored, cutting on a rune boundary.
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	s = html.UnescapeString(stripPolicy.Sanitize(s))
	if len(s) > maxTextLen {
		n := maxTextLen
		for n > 0 && !utf8.RuneStart(s[n]) {
			n--
		}
		s = s[:n]
	}

	return s
}

func sanitizeShow(show popcorn.Show) popcorn.Show {
	show.Title = sanitize(show.Title)
	show.Synopsis = sanitize(show.Synopsis)
	show.Network = sanitize(show.Network)

	return show
}

func sanitizeEpisode(ep popcorn.Episode) popcorn.Episode {
	ep.Title = sanitize(ep.Title)
	ep.Overview = sanitize(ep.Overview)

	return ep
}
