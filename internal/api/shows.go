package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	v1 "github.com/jdholdren/popcorn/api/v1"
	poperrs "github.com/jdholdren/popcorn/internal/errors"
	"github.com/jdholdren/popcorn/internal/popcorn"
	"github.com/jdholdren/popcorn/internal/serverutil"
	"github.com/jdholdren/popcorn/internal/worker"
)

// Lists the shows in one side of the active/inactive partition.
func (s Server) getShows(w http.ResponseWriter, r *http.Request) error {
	var (
		showIDs []string
		err     error
	)
	switch state := r.URL.Query().Get("state"); state {
	case "", "active":
		showIDs, err = s.repo.ActiveShows(r.Context())
	case "inactive":
		showIDs, err = s.repo.InactiveShows(r.Context())
	default:
		return poperrs.E("invalid state", http.StatusBadRequest, poperrs.Detail{Field: "state", Error: "must be active or inactive"})
	}
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, v1.ShowsResponse{ShowIDs: showIDs})
}

// The show along with what is currently airing, if anything.
func (s Server) getShow(w http.ResponseWriter, r *http.Request) error {
	var (
		ctx    = r.Context()
		showID = mux.Vars(r)["showID"]
	)

	show, err := s.repo.Show(ctx, showID)
	if err != nil {
		return err
	}
	resp := v1.ShowFrom(show)

	latest, err := s.repo.LatestEpisode(ctx, showID)
	switch {
	case errors.Is(err, popcorn.ErrNotFound):
	case err != nil:
		return err
	default:
		ep := v1.EpisodeFrom(latest)
		resp.LatestEpisode = &ep
	}

	return serverutil.WriteJSON(w, http.StatusOK, resp)
}

func (s Server) getSubscribers(w http.ResponseWriter, r *http.Request) error {
	userIDs, err := s.repo.Subscribers(r.Context(), mux.Vars(r)["showID"])
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, v1.SubscribersResponse{UserIDs: userIDs})
}

// Hands a scanned show to the worker and waits for it to be stored and fanned out.
func (s Server) postShow(w http.ResponseWriter, r *http.Request) error {
	req, err := serverutil.DecodeValid[v1.IngestShowRequest](r.Body)
	if err != nil {
		return err
	}

	args := worker.IngestArgs{Show: req.Show.Domain()}
	if req.Latest != nil {
		ep := req.Latest.Domain()
		args.Latest = &ep
	}

	res, err := worker.TriggerIngestWorkflow(r.Context(), s.tempCli, args)
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, v1.IngestShowResponse{
		NewEpisode: res.NewEpisode,
		Advanced:   res.Advanced,
		Delivered:  res.Delivered,
		Failed:     res.Failed,
	})
}

func (s Server) postRedeliver(w http.ResponseWriter, r *http.Request) error {
	res, err := worker.TriggerRedeliverWorkflow(r.Context(), s.tempCli, mux.Vars(r)["showID"])
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, v1.RedeliverResponse{
		Delivered: res.Delivered,
		Failed:    res.Failed,
	})
}
