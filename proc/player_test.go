package proc

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leeineian/soundtrack/ost"
)

type fakeSink struct {
	mu         sync.Mutex
	playing    bool
	plays      []Stream
	onComplete func(error)
	playErr    error
	volume     int
	stops      int
}

func (f *fakeSink) Connect(context.Context, snowflake.ID, snowflake.ID) error { return nil }

func (f *fakeSink) Play(_ context.Context, s Stream, onComplete func(error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playErr != nil {
		return f.playErr
	}
	f.plays = append(f.plays, s)
	f.onComplete = onComplete
	f.playing = true
	return nil
}

func (f *fakeSink) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = false
	f.stops++
}

func (f *fakeSink) IsPlaying() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing
}

func (f *fakeSink) SetVolume(percent int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = percent
	return nil
}

func (f *fakeSink) Connected() bool                  { return true }
func (f *fakeSink) Disconnect(context.Context) error { return nil }

// finish ends the current stream the way the voice sink does.
func (f *fakeSink) finish(err error) {
	f.mu.Lock()
	cb := f.onComplete
	f.onComplete = nil
	f.playing = false
	f.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

func (f *fakeSink) played() []Stream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Stream(nil), f.plays...)
}

type memVolumes struct{ saved []int }

func (m *memVolumes) SaveVolume(_ context.Context, percent int) error {
	m.saved = append(m.saved, percent)
	return nil
}

type nopResolver struct{}

func (nopResolver) Resolve(context.Context, string) (ost.Metadata, error) {
	return ost.Metadata{}, nil
}

func appendTracks(t *testing.T, c *ost.Catalog, letter string, urls ...string) {
	t.Helper()
	var b strings.Builder
	for _, u := range urls {
		b.WriteString(letter + ":" + u + "\n")
	}
	_, err := c.Load(strings.NewReader(b.String()))
	require.NoError(t, err)
}

func newTestPlayer(t *testing.T, combat int) (*Player, *fakeSink, *ost.Catalog) {
	t.Helper()
	cats, err := ost.NewCategories(
		ost.Category{Letter: "C", Name: "Combate", Emoji: "⚔️"},
		ost.Category{Letter: "D", Name: "Drama", Emoji: "🎭"},
	)
	require.NoError(t, err)
	catalog := ost.NewCatalog(cats, nopResolver{})
	for i := range combat {
		appendTracks(t, catalog, "C", "https://youtu.be/c"+string(rune('0'+i)))
	}
	sink := &fakeSink{}
	p := NewPlayer(catalog, sink, WithRand(rand.New(rand.NewPCG(1, 2))))
	return p, sink, catalog
}

// step finishes the running stream and feeds the completion to the player.
func step(t *testing.T, p *Player, sink *fakeSink, err error) {
	t.Helper()
	sink.finish(err)
	select {
	case c := <-p.events:
		p.handleCompletion(context.Background(), c)
	default:
		t.Fatal("no completion was posted")
	}
}

func TestPickIndex(t *testing.T) {
	rnd := rand.New(rand.NewPCG(7, 7))

	assert.Equal(t, -1, pickIndex(0, -1, rnd))
	assert.Equal(t, 0, pickIndex(1, 0, rnd), "a single track is replayed")

	seen := map[int]int{}
	for range 1000 {
		i := pickIndex(3, 1, rnd)
		require.NotEqual(t, 1, i)
		seen[i]++
	}
	assert.Greater(t, seen[0], 0)
	assert.Greater(t, seen[2], 0)

	for range 100 {
		i := pickIndex(4, -1, rnd)
		assert.GreaterOrEqual(t, i, 0)
		assert.Less(t, i, 4)
	}
}

func TestPlayer_ShuffleNeverRepeats(t *testing.T) {
	p, sink, _ := newTestPlayer(t, 4)
	require.NoError(t, p.StartGroup(context.Background(), "c"))

	for range 200 {
		step(t, p, sink, nil)
	}

	plays := sink.played()
	require.Len(t, plays, 201)
	for i := 1; i < len(plays); i++ {
		assert.NotEqual(t, plays[i-1].URL, plays[i].URL, "track %d repeated", i)
		assert.False(t, plays[i].Loop)
	}
}

func TestPlayer_ExcludesCurrentPointer(t *testing.T) {
	p, sink, _ := newTestPlayer(t, 3)

	for range 50 {
		p.current = &Pointer{Letter: "C", Index: 1, URL: "https://youtu.be/c1"}
		require.NoError(t, p.StartGroup(context.Background(), "C"))
		got := sink.played()
		assert.NotEqual(t, "https://youtu.be/c1", got[len(got)-1].URL)
	}
}

func TestPlayer_SingleTrackReplays(t *testing.T) {
	p, sink, _ := newTestPlayer(t, 1)
	require.NoError(t, p.StartGroup(context.Background(), "C"))
	step(t, p, sink, nil)
	step(t, p, sink, nil)

	plays := sink.played()
	require.Len(t, plays, 3)
	for _, s := range plays {
		assert.Equal(t, "https://youtu.be/c0", s.URL)
	}
}

func TestPlayer_StartGroupInvalidCategory(t *testing.T) {
	p, sink, _ := newTestPlayer(t, 2)
	require.NoError(t, p.StartGroup(context.Background(), "C"))

	err := p.StartGroup(context.Background(), "X")
	assert.True(t, errors.Is(err, ost.ErrInvalidCategory))
	_, shuffling := p.Shuffling()
	assert.False(t, shuffling)

	err = p.StartGroup(context.Background(), "D")
	assert.True(t, errors.Is(err, ost.ErrInvalidCategory), "empty category")
	_, shuffling = p.Shuffling()
	assert.False(t, shuffling)

	assert.Len(t, sink.played(), 1)
}

func TestPlayer_StopDropsPendingCompletion(t *testing.T) {
	p, sink, _ := newTestPlayer(t, 3)
	require.NoError(t, p.StartGroup(context.Background(), "C"))

	sink.finish(nil)
	p.Stop()
	p.handleCompletion(context.Background(), <-p.events)

	assert.Len(t, sink.played(), 1)
	_, shuffling := p.Shuffling()
	assert.False(t, shuffling)
}

func TestPlayer_NoAdvanceAfterShutdown(t *testing.T) {
	p, sink, _ := newTestPlayer(t, 3)
	require.NoError(t, p.StartGroup(context.Background(), "C"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink.finish(context.Canceled)
	p.handleCompletion(ctx, <-p.events)

	assert.Len(t, sink.played(), 1)
}

// shuffleUntil steps the shuffle until url is the playing track.
func shuffleUntil(t *testing.T, p *Player, sink *fakeSink, url string) {
	t.Helper()
	for range 200 {
		plays := sink.played()
		if plays[len(plays)-1].URL == url {
			return
		}
		step(t, p, sink, nil)
	}
	t.Fatalf("%s never played", url)
}

func TestPlayer_RemovalBeforePlayingTrack(t *testing.T) {
	for range 50 {
		p, sink, catalog := newTestPlayer(t, 3)
		require.NoError(t, p.StartGroup(context.Background(), "C"))
		shuffleUntil(t, p, sink, "https://youtu.be/c2")

		_, err := catalog.Remove("C2")
		require.NoError(t, err)

		cur, ok := p.Current()
		require.True(t, ok)
		assert.Equal(t, "C2", cur.ID.String())
		assert.Equal(t, "https://youtu.be/c2", cur.Track.URL)

		step(t, p, sink, nil)
		plays := sink.played()
		assert.Equal(t, "https://youtu.be/c0", plays[len(plays)-1].URL)
	}
}

func TestPlayer_RemovalOfPlayingTrack(t *testing.T) {
	p, sink, catalog := newTestPlayer(t, 3)
	require.NoError(t, p.StartGroup(context.Background(), "C"))
	shuffleUntil(t, p, sink, "https://youtu.be/c1")

	_, err := catalog.Remove("C2")
	require.NoError(t, err)

	_, ok := p.Current()
	assert.False(t, ok)

	step(t, p, sink, nil)
	plays := sink.played()
	assert.Contains(t, []string{"https://youtu.be/c0", "https://youtu.be/c2"}, plays[len(plays)-1].URL)
	cur, ok := p.Current()
	require.True(t, ok)
	assert.Equal(t, plays[len(plays)-1].URL, cur.Track.URL)
}

func TestPlayer_DirectPlayEndsShuffle(t *testing.T) {
	p, sink, _ := newTestPlayer(t, 3)
	require.NoError(t, p.StartGroup(context.Background(), "C"))

	sink.mu.Lock()
	stale := sink.onComplete
	sink.mu.Unlock()

	entry, err := p.Play(context.Background(), "C3")
	require.NoError(t, err)
	assert.Equal(t, "C3", entry.ID.String())
	assert.True(t, p.Looping())

	_, shuffling := p.Shuffling()
	assert.False(t, shuffling)

	// The replaced shuffle track reports in late.
	stale(nil)
	p.handleCompletion(context.Background(), <-p.events)

	plays := sink.played()
	require.Len(t, plays, 2)
	assert.True(t, plays[1].Loop)
	assert.Equal(t, "https://youtu.be/c2", plays[1].URL)

	cur, ok := p.Current()
	require.True(t, ok)
	assert.Equal(t, "C3", cur.ID.String())
}

func TestPlayer_PlayInvalidTrack(t *testing.T) {
	p, sink, _ := newTestPlayer(t, 3)
	_, err := p.Play(context.Background(), "C5")
	assert.True(t, errors.Is(err, ost.ErrInvalidTrack))
	assert.Empty(t, sink.played())
}

func TestPlayer_SinkErrorStopsShuffle(t *testing.T) {
	p, sink, _ := newTestPlayer(t, 3)
	require.NoError(t, p.StartGroup(context.Background(), "C"))

	step(t, p, sink, errors.New("stream broke"))

	_, shuffling := p.Shuffling()
	assert.False(t, shuffling)
	assert.Len(t, sink.played(), 1)
}

func TestPlayer_SinkPlayFailure(t *testing.T) {
	p, sink, _ := newTestPlayer(t, 3)
	sink.playErr = ErrNotConnected

	err := p.StartGroup(context.Background(), "C")
	assert.True(t, errors.Is(err, ErrNotConnected))
	_, shuffling := p.Shuffling()
	assert.False(t, shuffling)
}

func TestPlayer_ClearAndCurrent(t *testing.T) {
	p, sink, _ := newTestPlayer(t, 2)

	_, ok := p.Current()
	assert.False(t, ok)

	require.NoError(t, p.StartGroup(context.Background(), "C"))
	_, ok = p.Current()
	assert.True(t, ok)

	p.Clear()
	_, ok = p.Current()
	assert.False(t, ok)
	assert.Equal(t, 1, sink.stops)

	_, shuffling := p.Shuffling()
	assert.False(t, shuffling)
}

func TestPlayer_PollAdvancesQuietSink(t *testing.T) {
	p, sink, _ := newTestPlayer(t, 3)
	require.NoError(t, p.StartGroup(context.Background(), "C"))

	p.poll(context.Background())
	assert.Len(t, sink.played(), 1, "still playing")

	sink.mu.Lock()
	sink.playing = false
	sink.mu.Unlock()

	p.poll(context.Background())
	assert.Len(t, sink.played(), 2)
}

func TestPlayer_SetVolume(t *testing.T) {
	p, sink, _ := newTestPlayer(t, 2)
	vols := &memVolumes{}
	p.volumes = vols

	assert.ErrorIs(t, p.SetVolume(context.Background(), 80), ErrNotPlaying)

	_, err := p.Play(context.Background(), "C1")
	require.NoError(t, err)
	require.NoError(t, p.SetVolume(context.Background(), 80))
	assert.Equal(t, 80, sink.volume)
	assert.Equal(t, []int{80}, vols.saved)

	assert.ErrorIs(t, p.SetVolume(context.Background(), -1), ErrVolumeOutOfRange)
	assert.ErrorIs(t, p.SetVolume(context.Background(), 2_147_483_648), ErrVolumeOutOfRange)
	assert.Equal(t, 80, sink.volume)

	require.NoError(t, p.SetVolume(context.Background(), MaxVolume))
	assert.Equal(t, MaxVolume, sink.volume)
}

func TestPlayer_RunAdvancesOnCompletion(t *testing.T) {
	p, sink, _ := newTestPlayer(t, 3)
	p.pollInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	var started []ost.Entry
	var mu sync.Mutex
	p.OnTrack(func(e ost.Entry) {
		mu.Lock()
		started = append(started, e)
		mu.Unlock()
	})

	require.NoError(t, p.StartGroup(ctx, "C"))
	sink.finish(nil)

	assert.Eventually(t, func() bool { return len(sink.played()) == 2 }, time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, started, 2)
}
