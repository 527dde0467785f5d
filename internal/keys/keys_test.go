package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{name: "show", got: Show("tt001"), want: "show:tt001"},
		{name: "episode", got: Episode("tt001", "5"), want: "show:tt001:episode:5"},
		{name: "episode without sien", got: Episode("tt001", ""), want: "show:tt001:episode:latest"},
		{name: "latest episode", got: LatestEpisode("tt001"), want: "show:tt001:episode:latest"},
		{name: "episode set", got: Episodes("tt001"), want: "show:tt001:episodes"},
		{name: "subscribers", got: Subscribers("tt001"), want: "show:tt001:subscribers"},
		{name: "subscriptions", got: Subscriptions("alice"), want: "user:alice:subscriptions"},
		{name: "feed", got: Feed("alice"), want: "user:alice:feed"},
		{name: "episode update", got: EpisodeUpdate(1700000000123, "tt001"), want: "episode_update:1700000000123:tt001"},
		{name: "padded episode update", got: EpisodeUpdate(42, "tt001"), want: "episode_update:0000000000042:tt001"},
		{name: "log", got: Log("scan", 42), want: "log:scan:0000000000042"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestEpisodePrefixDoesNotMatchOtherShows(t *testing.T) {
	prefix := EpisodePrefix("tt1")

	assert.Contains(t, Episode("tt1", "3"), prefix)
	assert.NotContains(t, Episode("tt10", "3"), prefix)
}

func TestParseEpisode(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		wantShow string
		wantSien string
		wantOK   bool
	}{
		{name: "episode", key: "show:tt001:episode:5", wantShow: "tt001", wantSien: "5", wantOK: true},
		{name: "latest pointer", key: "show:tt001:episode:latest", wantShow: "tt001", wantSien: "", wantOK: true},
		{name: "show key", key: "show:tt001", wantOK: false},
		{name: "user key", key: "user:alice:feed", wantOK: false},
		{name: "missing sien", key: "show:tt001:episode:", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			show, sien, ok := ParseEpisode(tt.key)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantShow, show)
			assert.Equal(t, tt.wantSien, sien)
		})
	}
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID("tt0944947"))
	assert.True(t, ValidID("alice"))
	assert.False(t, ValidID(""))
	assert.False(t, ValidID("latest"))
	assert.False(t, ValidID("tt1:episodes"))
	assert.False(t, ValidID("two words"))
}
