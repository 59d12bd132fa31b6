package proc

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/kkdai/youtube/v2"
	"github.com/ppalone/ytsearch"
	"github.com/raitonoberu/ytmusic"
)

var videoIDRegex = regexp.MustCompile(`(?:\?|&)v=([^&]+)`)

const watchURL = "https://www.youtube.com/watch?v="

// extractVideoID returns "" when u carries no recognizable video id.
func extractVideoID(u string) string {
	if m := videoIDRegex.FindStringSubmatch(u); len(m) > 1 {
		return m[1]
	}
	for _, marker := range []string{"youtu.be/", "shorts/"} {
		if _, rest, ok := strings.Cut(u, marker); ok {
			id, _, _ := strings.Cut(rest, "?")
			return strings.TrimRight(id, "/")
		}
	}
	return ""
}

func isYouTubeURL(u string) bool {
	return strings.Contains(u, "youtube.com") || strings.Contains(u, "youtu.be")
}

type youtubeVideo struct {
	Title     string
	Duration  time.Duration
	StreamURL string
}

// lookupVideo fetches title, length and the best audio stream of a YouTube
// page. Opus (itag 251) wins over everything else.
func lookupVideo(ctx context.Context, client *youtube.Client, url string) (youtubeVideo, error) {
	id := extractVideoID(url)
	if id == "" {
		id = url
	}
	video, err := client.GetVideoContext(ctx, id)
	if err != nil {
		return youtubeVideo{}, err
	}

	formats := video.Formats.WithAudioChannels().Type("audio")
	var best *youtube.Format
	for i := range formats {
		if formats[i].ItagNo == 251 {
			best = &formats[i]
			break
		}
	}
	if best == nil {
		for i := range formats {
			if strings.Contains(formats[i].MimeType, "opus") {
				best = &formats[i]
				break
			}
		}
	}
	if best == nil && len(formats) > 0 {
		formats.Sort()
		best = &formats[0]
	}
	if best == nil {
		return youtubeVideo{}, errors.Newf("no audio formats for %s", url)
	}

	streamURL, err := client.GetStreamURLContext(ctx, video, best)
	if err != nil {
		return youtubeVideo{}, err
	}
	return youtubeVideo{Title: video.Title, Duration: video.Duration, StreamURL: streamURL}, nil
}

// findOnYouTube maps a "title artist" query to a watch URL, YouTube Music
// first and plain YouTube search second.
func findOnYouTube(ctx context.Context, title, artist string) (string, error) {
	query := strings.TrimSpace(title + " " + artist)

	if r, err := ytmusic.TrackSearch(query).Next(); err == nil {
		for _, t := range r.Tracks {
			if t.VideoID != "" {
				return watchURL + t.VideoID, nil
			}
		}
	}

	r, err := ytsearch.NewClient(nil).Search(ctx, query)
	if err != nil {
		return "", errors.Wrapf(err, "search %q", query)
	}
	for _, v := range r.Results {
		if v.VideoID != "" {
			return watchURL + v.VideoID, nil
		}
	}
	return "", errors.Newf("no match for %q", query)
}
