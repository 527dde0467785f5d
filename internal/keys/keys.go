// Package keys maps the identities of shows, episodes and users onto the
// key names used in the store.
//
// The layout here is the persisted format; changing any of it orphans data
// already written by other instances.
package keys

import (
	"fmt"
	"strings"
)

const (
	// ActiveShows holds the ids of shows that are currently airing.
	ActiveShows = "shows:active"
	// InactiveShows holds the ids of every other known show.
	InactiveShows = "shows:inactive"
	// LatestScan records when the last scan started.
	LatestScan = "latest_scan:start"

	// Used in place of a sien to address a show's latest episode pointer.
	latestSegment = "latest"
)

// Show is the hash of a show's details.
func Show(id string) string {
	return "show:" + id
}

// Episode is the hash of a single episode. An empty sien addresses the
// show's latest episode pointer instead.
func Episode(showID, sien string) string {
	if sien == "" {
		sien = latestSegment
	}

	return EpisodePrefix(showID) + sien
}

// LatestEpisode is the pointer to the newest episode of a show.
func LatestEpisode(showID string) string {
	return Episode(showID, "")
}

// EpisodePrefix is shared by every episode key of the show, and by nothing
// belonging to any other show.
func EpisodePrefix(showID string) string {
	return Show(showID) + ":episode:"
}

// Episodes is the set of episode keys stored for a show.
func Episodes(showID string) string {
	return Show(showID) + ":episodes"
}

// Subscribers is the set of users subscribed to a show.
func Subscribers(showID string) string {
	return Show(showID) + ":subscribers"
}

// Subscriptions is the set of shows a user is subscribed to.
func Subscriptions(userID string) string {
	return "user:" + userID + ":subscriptions"
}

// Feed is the set of episode keys in a user's feed.
func Feed(userID string) string {
	return "user:" + userID + ":feed"
}

// EpisodeUpdate is the log record of a show moving to a new episode.
// Time is zero padded so the keys sort chronologically.
func EpisodeUpdate(ms int64, showID string) string {
	return fmt.Sprintf("episode_update:%s:%s", PadTime(ms), showID)
}

// Log is a free-form log record of the given kind.
func Log(kind string, ms int64) string {
	return fmt.Sprintf("log:%s:%s", kind, PadTime(ms))
}

// PadTime renders a millisecond timestamp at a fixed width.
func PadTime(ms int64) string {
	return fmt.Sprintf("%013d", ms)
}

// ParseEpisode splits an episode key into its show id and sien.
//
// The latest episode pointer is reported with an empty sien.
func ParseEpisode(key string) (showID, sien string, ok bool) {
	rest, found := strings.CutPrefix(key, "show:")
	if !found {
		return "", "", false
	}
	showID, sien, found = strings.Cut(rest, ":episode:")
	if !found || showID == "" || sien == "" {
		return "", "", false
	}
	if sien == latestSegment {
		sien = ""
	}

	return showID, sien, true
}

// ValidID reports whether id can be embedded in a key without colliding with
// the key of some other entity.
func ValidID(id string) bool {
	if id == "" || id == latestSegment {
		return false
	}

	return !strings.ContainsAny(id, ": \t\r\n")
}
