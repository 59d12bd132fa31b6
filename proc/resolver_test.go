package proc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leeineian/soundtrack/sys"
)

func TestIsSpotifyTrack(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC", true},
		{"https://open.spotify.com/intl-pt/track/4uLU6hMCjMI75M1A2tKUQC?si=abc", true},
		{"spotify:track:4uLU6hMCjMI75M1A2tKUQC", true},
		{"https://open.spotify.com/album/1DFixLWuPkv3KT3TnV35m3", false},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsSpotifyTrack(tt.url), tt.url)
	}
}

func TestExtractTrackID(t *testing.T) {
	assert.Equal(t, "4uLU6hMCjMI75M1A2tKUQC", extractTrackID("spotify:track:4uLU6hMCjMI75M1A2tKUQC"))
	assert.Equal(t, "4uLU6hMCjMI75M1A2tKUQC", extractTrackID("https://open.spotify.com/intl-pt/track/4uLU6hMCjMI75M1A2tKUQC?si=x"))
	assert.Equal(t, "4uLU6hMCjMI75M1A2tKUQC", extractTrackID("https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC/"))
	assert.Empty(t, extractTrackID("https://example.com/song"))
}

func TestExtractVideoID(t *testing.T) {
	tests := map[string]string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ":            "dQw4w9WgXcQ",
		"https://www.youtube.com/watch?list=PL1&v=dQw4w9WgXcQ":   "dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ?t=10":                      "dQw4w9WgXcQ",
		"https://www.youtube.com/shorts/dQw4w9WgXcQ":             "dQw4w9WgXcQ",
		"https://music.youtube.com/watch?v=dQw4w9WgXcQ&feature=": "dQw4w9WgXcQ",
		"https://soundcloud.com/artist/song":                     "",
	}
	for in, want := range tests {
		assert.Equal(t, want, extractVideoID(in), in)
	}
	assert.True(t, isYouTubeURL("https://youtu.be/x"))
	assert.False(t, isYouTubeURL("https://soundcloud.com/x"))
}

func TestParseOpenGraph(t *testing.T) {
	html := `<head><meta property="og:title" content="Megalovania - song and lyrics by Toby Fox | Spotify">
<meta property="og:description" content="Toby Fox · UNDERTALE Soundtrack · Song · 2015"></head>`

	title, artist, err := parseOpenGraph(html)
	require.NoError(t, err)
	assert.Equal(t, "Megalovania", title)
	assert.Equal(t, "Toby Fox", artist)

	_, _, err = parseOpenGraph("<head></head>")
	assert.Error(t, err)
}

func TestScrapeTrackPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/track/abc" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<html><head>
<meta property="og:title" content="Fallen Down | Spotify">
<meta property="og:description" content="Toby Fox · UNDERTALE">
</head><body></body></html>`))
	}))
	defer srv.Close()

	title, artist, err := scrapeTrackPage(context.Background(), srv.Client(), srv.URL+"/track/abc")
	require.NoError(t, err)
	assert.Equal(t, "Fallen Down", title)
	assert.Equal(t, "Toby Fox", artist)

	_, _, err = scrapeTrackPage(context.Background(), srv.Client(), srv.URL+"/missing")
	assert.ErrorContains(t, err, "HTTP 404")
}

func TestParseYtdlpPrint(t *testing.T) {
	md, err := parseYtdlpPrint("WARNING: noise\nHopes and Dreams\tToby Fox\t182\tabc123\n")
	require.NoError(t, err)
	assert.Equal(t, "Hopes and Dreams", md.Title)
	assert.Equal(t, "Toby Fox", md.Uploader)
	assert.Equal(t, 182*time.Second, md.Duration)
	assert.Equal(t, "abc123", md.ID)

	_, err = parseYtdlpPrint("")
	assert.Error(t, err)
}

type memCache struct {
	entries map[string]sys.TrackMetadata
	puts    int
}

func (m *memCache) GetTrackMetadata(_ context.Context, url string) (sys.TrackMetadata, bool, error) {
	md, ok := m.entries[url]
	return md, ok, nil
}

func (m *memCache) PutTrackMetadata(_ context.Context, md sys.TrackMetadata) error {
	m.puts++
	m.entries[md.URL] = md
	return nil
}

func TestResolver_UsesCache(t *testing.T) {
	cache := &memCache{entries: map[string]sys.TrackMetadata{
		"https://open.spotify.com/track/abc": {
			URL:         "https://open.spotify.com/track/abc",
			Title:       "Bonetrousle",
			Duration:    58 * time.Second,
			ResolvedURL: "https://www.youtube.com/watch?v=bone",
		},
	}}
	r := NewResolver(WithMetadataCache(cache))

	md, err := r.Resolve(context.Background(), "https://open.spotify.com/track/abc")
	require.NoError(t, err)
	assert.Equal(t, "Bonetrousle", md.Title)
	assert.Equal(t, 58*time.Second, md.Duration)
	assert.Equal(t, "https://www.youtube.com/watch?v=bone", md.URL)
	assert.Empty(t, md.StreamURL)
	assert.Zero(t, cache.puts)
}
