package proc

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/kkdai/youtube/v2"

	"github.com/leeineian/soundtrack/ost"
	"github.com/leeineian/soundtrack/sys"
)

// MetadataCache persists resolved metadata between runs.
type MetadataCache interface {
	GetTrackMetadata(ctx context.Context, url string) (sys.TrackMetadata, bool, error)
	PutTrackMetadata(ctx context.Context, md sys.TrackMetadata) error
}

// Resolver turns track links into metadata and playable audio. Spotify links
// are mapped to a YouTube video first.
type Resolver struct {
	cache   MetadataCache
	spotify *SpotifyClient
	http    *http.Client
	youtube *youtube.Client
	proxy   string
}

type ResolverOption func(*Resolver)

func WithMetadataCache(c MetadataCache) ResolverOption {
	return func(r *Resolver) { r.cache = c }
}

func WithSpotify(c *SpotifyClient) ResolverOption {
	return func(r *Resolver) { r.spotify = c }
}

func WithProxy(proxy string) ResolverOption {
	return func(r *Resolver) { r.proxy = proxy }
}

func WithHTTPClient(c *http.Client) ResolverOption {
	return func(r *Resolver) { r.http = c }
}

func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		http: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.youtube = &youtube.Client{HTTPClient: r.http}
	if r.spotify == nil {
		sys.LogResolver(sys.MsgResolverSpotifyAuth)
	}
	return r
}

func (r *Resolver) Resolve(ctx context.Context, url string) (ost.Metadata, error) {
	md, err := r.resolve(ctx, url)
	if err != nil {
		return ost.Metadata{}, errors.Mark(errors.Wrapf(err, "resolve %s", url), ost.ErrResolution)
	}
	return md, nil
}

func (r *Resolver) resolve(ctx context.Context, url string) (ost.Metadata, error) {
	if md, ok := r.cached(ctx, url); ok {
		return md, nil
	}

	page := url
	if IsSpotifyTrack(url) {
		var err error
		if page, err = r.spotifyToYouTube(ctx, url); err != nil {
			return ost.Metadata{}, err
		}
		sys.LogResolver(sys.MsgResolverSpotify, url, page)
	}

	md, err := r.lookup(ctx, page)
	if err != nil {
		return ost.Metadata{}, err
	}
	if page != url {
		md.URL = page
	}

	if r.cache != nil {
		err := r.cache.PutTrackMetadata(ctx, sys.TrackMetadata{
			URL:         url,
			Title:       md.Title,
			Duration:    md.Duration,
			ResolvedURL: md.URL,
		})
		if err != nil {
			sys.LogResolver(sys.MsgResolverCacheFail, url, err)
		}
	}
	return md, nil
}

// cached never returns a stream URL; those expire.
func (r *Resolver) cached(ctx context.Context, url string) (ost.Metadata, bool) {
	if r.cache == nil {
		return ost.Metadata{}, false
	}
	tm, ok, err := r.cache.GetTrackMetadata(ctx, url)
	if err != nil || !ok {
		return ost.Metadata{}, false
	}
	return ost.Metadata{URL: tm.ResolvedURL, Title: tm.Title, Duration: tm.Duration}, true
}

func (r *Resolver) spotifyToYouTube(ctx context.Context, url string) (string, error) {
	var title, artist string
	var err error
	if r.spotify != nil {
		title, artist, err = r.spotify.Track(ctx, url)
	}
	if r.spotify == nil || err != nil {
		title, artist, err = scrapeTrackPage(ctx, r.http, url)
	}
	if err != nil {
		return "", err
	}
	return findOnYouTube(ctx, title, artist)
}

func (r *Resolver) lookup(ctx context.Context, page string) (ost.Metadata, error) {
	if isYouTubeURL(page) {
		v, err := lookupVideo(ctx, r.youtube, page)
		if err == nil {
			return ost.Metadata{Title: v.Title, Duration: v.Duration, StreamURL: v.StreamURL}, nil
		}
		sys.LogResolver(sys.MsgResolverFallback, page, err)
	}

	m, err := ytdlpResolve(ctx, r.proxy, page)
	if err != nil {
		return ost.Metadata{}, err
	}
	return ost.Metadata{Title: m.Title, Duration: m.Duration}, nil
}

// Open returns a direct stream URL for YouTube pages and a yt-dlp pipe for
// everything else.
func (r *Resolver) Open(ctx context.Context, pageURL string) (Input, error) {
	if IsSpotifyTrack(pageURL) {
		md, err := r.Resolve(ctx, pageURL)
		if err != nil {
			return Input{}, err
		}
		if md.URL != "" {
			pageURL = md.URL
		}
	}

	if isYouTubeURL(pageURL) {
		v, err := lookupVideo(ctx, r.youtube, pageURL)
		if err == nil {
			return Input{URL: v.StreamURL}, nil
		}
		sys.LogResolver(sys.MsgResolverFallback, pageURL, err)
	}

	pr, pw := io.Pipe()
	sys.SafeGo(func() {
		pw.CloseWithError(ytdlpStream(ctx, r.proxy, pageURL, pw))
	})
	return Input{Reader: pr}, nil
}
