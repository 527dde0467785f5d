package popcorn

import (
	"cmp"
	"fmt"
	"net/http"
	"slices"
	"strconv"

	poperrs "github.com/jdholdren/popcorn/internal/errors"
	"github.com/jdholdren/popcorn/internal/keys"
)

type (
	// Show is a TV show's details. Only these scalar fields are ever stored.
	Show struct {
		ID       string  `redis:"id"`
		Active   bool    `redis:"active"`
		Title    string  `redis:"title"`
		Synopsis string  `redis:"synopsis"`
		Year     int     `redis:"year"`
		Country  string  `redis:"country"`
		Network  string  `redis:"network"`
		Rating   float64 `redis:"rating"`
		Poster   string  `redis:"poster"`
		Fanart   string  `redis:"fanart"`

		// Store time of the last write, in milliseconds.
		Timestamp int64 `redis:"timestamp"`
	}

	// Episode is a single episode of a show. Once stored it never changes.
	Episode struct {
		ShowID string `redis:"show_id"`
		// Sequential identifier of the episode within its show.
		Sien     string `redis:"sien"`
		Season   int    `redis:"season"`
		Episode  int    `redis:"episode"`
		Title    string `redis:"title"`
		Overview string `redis:"overview"`
		// Air date given by the source, in milliseconds.
		FirstAired int64 `redis:"first_aired"`
		Timestamp  int64 `redis:"timestamp"`
	}

	// FeedEntry is an episode joined with its show, as presented in a
	// user's feed.
	FeedEntry struct {
		ShowID       string
		Sien         string
		Title        string
		EpisodeTitle string
		Season       int
		Episode      int
		Poster       string
		FirstAired   int64
		Timestamp    int64
	}

	// EpisodeUpdate records a show advancing to a newer episode.
	EpisodeUpdate struct {
		ShowID      string `redis:"show_id"`
		Time        int64  `redis:"time"`
		PrevSeason  int    `redis:"prev_season"`
		PrevEpisode int    `redis:"prev_episode"`
		NewSeason   int    `redis:"new_season"`
		NewEpisode  int    `redis:"new_episode"`
	}
)

func (s Show) Key() string {
	return keys.Show(s.ID)
}

func (e Episode) Key() string {
	return keys.Episode(e.ShowID, e.Sien)
}

// NewFeedEntry joins an episode with the show it belongs to.
func NewFeedEntry(show Show, ep Episode) FeedEntry {
	return FeedEntry{
		ShowID:       show.ID,
		Sien:         ep.Sien,
		Title:        show.Title,
		EpisodeTitle: ep.Title,
		Season:       ep.Season,
		Episode:      ep.Episode,
		Poster:       show.Poster,
		FirstAired:   ep.FirstAired,
		Timestamp:    ep.Timestamp,
	}
}

func (e FeedEntry) recency() int64 {
	if e.Timestamp != 0 {
		return e.Timestamp
	}

	return e.FirstAired
}

// SortFeed orders entries newest first by timestamp, or by air date for
// entries without one. The order of ties is unspecified.
func SortFeed(entries []FeedEntry) {
	slices.SortFunc(entries, func(a, b FeedEntry) int {
		return cmp.Compare(b.recency(), a.recency())
	})
}

// SienAfter reports whether sien a comes after sien b. Siens are compared
// numerically when both are integers.
func SienAfter(a, b string) bool {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	if aErr == nil && bErr == nil {
		return ai > bi
	}

	return a > b
}

// ValidateIDs checks identifiers given as field name and value pairs.
func ValidateIDs(fieldValues ...string) error {
	var details []poperrs.Detail
	for i := 0; i+1 < len(fieldValues); i += 2 {
		details = append(details, checkID(fieldValues[i], fieldValues[i+1])...)
	}

	return invalid("identifier", details)
}

func (s Show) Validate() error {
	return invalid("show", checkID("id", s.ID))
}

func (e Episode) Validate() error {
	details := checkID("show_id", e.ShowID)
	details = append(details, checkID("sien", e.Sien)...)

	return invalid("episode", details)
}

func checkID(field, id string) []poperrs.Detail {
	if id == "" {
		return []poperrs.Detail{{Field: field, Error: "required"}}
	}
	if !keys.ValidID(id) {
		return []poperrs.Detail{{Field: field, Error: "must not contain separators or whitespace"}}
	}

	return nil
}

func invalid(what string, details []poperrs.Detail) error {
	if len(details) == 0 {
		return nil
	}

	return poperrs.E(fmt.Errorf("invalid %s: %w", what, ErrInvalid), http.StatusBadRequest, details)
}

// ScalarAttrs keeps only the attributes that can live in a flat record.
// Nested values (maps, slices, structs, pointers) are dropped.
func ScalarAttrs(attrs map[string]any) map[string]any {
	ret := make(map[string]any, len(attrs))
	for k, v := range attrs {
		switch v.(type) {
		case string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
			ret[k] = v
		}
	}

	return ret
}
