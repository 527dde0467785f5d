// Package v1 holds the JSON shapes of the popcorn HTTP API.
package v1

import (
	"net/http"

	poperrs "github.com/jdholdren/popcorn/internal/errors"
	"github.com/jdholdren/popcorn/internal/popcorn"
)

type (
	Show struct {
		ID        string  `json:"id"`
		Active    bool    `json:"active"`
		Title     string  `json:"title"`
		Synopsis  string  `json:"synopsis,omitempty"`
		Year      int     `json:"year,omitempty"`
		Country   string  `json:"country,omitempty"`
		Network   string  `json:"network,omitempty"`
		Rating    float64 `json:"rating,omitempty"`
		Poster    string  `json:"poster,omitempty"`
		Fanart    string  `json:"fanart,omitempty"`
		Timestamp int64   `json:"timestamp,omitempty"`

		LatestEpisode *Episode `json:"latest_episode,omitempty"`
	}

	Episode struct {
		ShowID     string `json:"show_id"`
		Sien       string `json:"sien"`
		Season     int    `json:"season"`
		Episode    int    `json:"episode"`
		Title      string `json:"title,omitempty"`
		Overview   string `json:"overview,omitempty"`
		FirstAired int64  `json:"first_aired,omitempty"`
		Timestamp  int64  `json:"timestamp,omitempty"`
	}

	FeedEntry struct {
		ShowID       string `json:"show_id"`
		Sien         string `json:"sien"`
		Title        string `json:"title"`
		EpisodeTitle string `json:"episode_title"`
		Season       int    `json:"season"`
		Episode      int    `json:"episode"`
		Poster       string `json:"poster"`
		FirstAired   int64  `json:"first_aired"`
		Timestamp    int64  `json:"timestamp"`
	}

	Pagination struct {
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
		Total  int `json:"total"`
	}

	FeedResponse struct {
		Entries    []FeedEntry `json:"entries"`
		Pagination Pagination  `json:"pagination"`
	}

	// ShowsResponse lists show IDs, either a user's subscriptions or a partition.
	ShowsResponse struct {
		ShowIDs []string `json:"show_ids"`
	}

	SubscribersResponse struct {
		UserIDs []string `json:"user_ids"`
	}

	// IngestShowRequest is a scan result handed to the API.
	IngestShowRequest struct {
		Show   Show     `json:"show"`
		Latest *Episode `json:"latest,omitempty"`
	}

	IngestShowResponse struct {
		NewEpisode bool `json:"new_episode"`
		Advanced   bool `json:"advanced"`
		Delivered  int  `json:"delivered"`
		Failed     int  `json:"failed"`
	}

	RedeliverResponse struct {
		Delivered int `json:"delivered"`
		Failed    int `json:"failed"`
	}
)

func (r IngestShowRequest) Validate() error {
	var errs []poperrs.Detail
	if r.Show.ID == "" {
		errs = append(errs, poperrs.Detail{Field: "show.id", Error: "required"})
	}
	if r.Latest != nil && r.Latest.Sien == "" {
		errs = append(errs, poperrs.Detail{Field: "latest.sien", Error: "required"})
	}
	if r.Latest != nil && r.Latest.ShowID != "" && r.Latest.ShowID != r.Show.ID {
		errs = append(errs, poperrs.Detail{Field: "latest.show_id", Error: "must match show.id"})
	}
	if len(errs) > 0 {
		return poperrs.E("invalid request", http.StatusBadRequest, errs)
	}

	return nil
}

func ShowFrom(s popcorn.Show) Show {
	return Show{
		ID:        s.ID,
		Active:    s.Active,
		Title:     s.Title,
		Synopsis:  s.Synopsis,
		Year:      s.Year,
		Country:   s.Country,
		Network:   s.Network,
		Rating:    s.Rating,
		Poster:    s.Poster,
		Fanart:    s.Fanart,
		Timestamp: s.Timestamp,
	}
}

func (s Show) Domain() popcorn.Show {
	return popcorn.Show{
		ID:       s.ID,
		Active:   s.Active,
		Title:    s.Title,
		Synopsis: s.Synopsis,
		Year:     s.Year,
		Country:  s.Country,
		Network:  s.Network,
		Rating:   s.Rating,
		Poster:   s.Poster,
		Fanart:   s.Fanart,
	}
}

func EpisodeFrom(e popcorn.Episode) Episode {
	return Episode{
		ShowID:     e.ShowID,
		Sien:       e.Sien,
		Season:     e.Season,
		Episode:    e.Episode,
		Title:      e.Title,
		Overview:   e.Overview,
		FirstAired: e.FirstAired,
		Timestamp:  e.Timestamp,
	}
}

func (e Episode) Domain() popcorn.Episode {
	return popcorn.Episode{
		ShowID:     e.ShowID,
		Sien:       e.Sien,
		Season:     e.Season,
		Episode:    e.Episode,
		Title:      e.Title,
		Overview:   e.Overview,
		FirstAired: e.FirstAired,
	}
}

func FeedEntryFrom(e popcorn.FeedEntry) FeedEntry {
	return FeedEntry(e)
}
