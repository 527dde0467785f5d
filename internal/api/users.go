package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	v1 "github.com/jdholdren/popcorn/api/v1"
	"github.com/jdholdren/popcorn/internal/logger"
	"github.com/jdholdren/popcorn/internal/serverutil"
)

func (s Server) getSubscriptions(w http.ResponseWriter, r *http.Request) error {
	showIDs, err := s.repo.Subscriptions(r.Context(), mux.Vars(r)["userID"])
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, v1.ShowsResponse{ShowIDs: showIDs})
}

func (s Server) putSubscription(w http.ResponseWriter, r *http.Request) error {
	var (
		vars = mux.Vars(r)
		ctx  = logger.Ctx(r.Context(), slog.String("user_id", vars["userID"]), slog.String("show_id", vars["showID"]))
	)

	if err := s.repo.Subscribe(ctx, vars["userID"], vars["showID"]); err != nil {
		return err
	}
	slog.InfoContext(ctx, "subscribed")

	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s Server) deleteSubscription(w http.ResponseWriter, r *http.Request) error {
	var (
		vars = mux.Vars(r)
		ctx  = logger.Ctx(r.Context(), slog.String("user_id", vars["userID"]), slog.String("show_id", vars["showID"]))
	)

	if err := s.repo.Unsubscribe(ctx, vars["userID"], vars["showID"]); err != nil {
		return err
	}
	slog.InfoContext(ctx, "unsubscribed")

	w.WriteHeader(http.StatusNoContent)
	return nil
}

// Newest episodes first, paged with limit and offset.
func (s Server) getFeed(w http.ResponseWriter, r *http.Request) error {
	entries, err := s.repo.Feed(r.Context(), mux.Vars(r)["userID"])
	if err != nil {
		return err
	}

	limit, offset := parsePaginationParams(r, defaultFeedLimit, maxFeedLimit)
	window, meta := page(entries, limit, offset)

	resp := v1.FeedResponse{
		Entries:    make([]v1.FeedEntry, 0, len(window)),
		Pagination: meta,
	}
	for _, entry := range window {
		resp.Entries = append(resp.Entries, v1.FeedEntryFrom(entry))
	}

	return serverutil.WriteJSON(w, http.StatusOK, resp)
}

func (s Server) deleteFeedEntry(w http.ResponseWriter, r *http.Request) error {
	vars := mux.Vars(r)
	if err := s.repo.RemoveEpisodeFromFeed(r.Context(), vars["userID"], vars["showID"], vars["sien"]); err != nil {
		return err
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}
