package proc

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/leeineian/soundtrack/ost"
	"github.com/leeineian/soundtrack/sys"
)

// Pointer names the track last handed to the sink. URL tells whether Index
// still points at it after the catalog changed.
type Pointer struct {
	Letter string
	Index  int
	URL    string
}

// VolumeStore keeps the volume across restarts.
type VolumeStore interface {
	SaveVolume(ctx context.Context, percent int) error
}

type completion struct {
	gen uint64
	err error
}

// Player is the shuffle playback engine. It is either idle or shuffling one
// category; a direct Play always leaves shuffle mode.
//
// Every transition bumps gen. A sink completion only advances the shuffle if
// its generation is still current, so Stop, Play and StartGroup win against
// any advancement already in flight.
type Player struct {
	catalog      *ost.Catalog
	sink         Sink
	volumes      VolumeStore
	pollInterval time.Duration

	mu        sync.Mutex
	current   *Pointer
	looping   bool
	shuffling bool
	category  string
	gen       uint64
	rnd       *rand.Rand

	events  chan completion
	onTrack func(ost.Entry)
}

type PlayerOption func(*Player)

func WithVolumeStore(s VolumeStore) PlayerOption {
	return func(p *Player) { p.volumes = s }
}

func WithPollInterval(d time.Duration) PlayerOption {
	return func(p *Player) { p.pollInterval = d }
}

func WithRand(r *rand.Rand) PlayerOption {
	return func(p *Player) { p.rnd = r }
}

func NewPlayer(catalog *ost.Catalog, sink Sink, opts ...PlayerOption) *Player {
	p := &Player{
		catalog:      catalog,
		sink:         sink,
		pollInterval: 500 * time.Millisecond,
		events:       make(chan completion, 16),
		rnd:          rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x50e7)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OnTrack registers f to be called with every track the shuffle starts.
func (p *Player) OnTrack(f func(ost.Entry)) {
	p.mu.Lock()
	p.onTrack = f
	p.mu.Unlock()
}

// Shuffling returns the category being shuffled, if any.
func (p *Player) Shuffling() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.category, p.shuffling
}

// StartGroup shuffles the category forever, starting one track right away.
// An unknown or empty category leaves the player idle.
func (p *Player) StartGroup(ctx context.Context, token string) error {
	cat, ok := p.catalog.Categories().Lookup(token)
	if !ok || p.catalog.Len(cat.Letter) == 0 {
		p.Stop()
		if !ok {
			return errors.Wrapf(ost.ErrInvalidCategory, "%q is not a category", token)
		}
		return errors.Wrapf(ost.ErrInvalidCategory, "category %s has no tracks", cat.Name)
	}

	p.mu.Lock()
	p.shuffling = true
	p.category = cat.Letter
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	sys.LogPlayer(sys.MsgPlayerGroupStarted, cat.Name)
	return p.advance(ctx, gen)
}

// advance picks the next shuffle track and plays it, all under the guard. It
// gives up silently when the session changed since expectGen.
func (p *Player) advance(ctx context.Context, expectGen uint64) error {
	p.mu.Lock()
	if p.gen != expectGen || !p.shuffling {
		p.mu.Unlock()
		return nil
	}
	letter := p.category
	cur := -1
	if p.current != nil && p.current.Letter == letter {
		cur = p.locate(p.current)
	}
	idx := pickIndex(p.catalog.Len(letter), cur, p.rnd)
	if idx < 0 {
		p.shuffling = false
		p.gen++
		p.mu.Unlock()
		return errors.Wrapf(ost.ErrInvalidCategory, "category %s has no tracks", letter)
	}
	entry, err := p.catalog.Lookup(ost.DisplayID{Letter: letter, Index: idx}.String())
	if err != nil {
		// The track went away while we were choosing.
		p.mu.Unlock()
		p.post(completion{gen: expectGen})
		return nil
	}

	p.gen++
	gen := p.gen
	p.current = &Pointer{Letter: letter, Index: idx, URL: entry.Track.URL}
	p.looping = false
	if err := p.sink.Play(ctx, Stream{URL: entry.Track.URL, Title: entry.Track.Name()}, p.completer(gen)); err != nil {
		p.shuffling = false
		p.gen++
		p.mu.Unlock()
		sys.LogPlayer(sys.MsgPlayerSinkError, err)
		return err
	}
	onTrack := p.onTrack
	p.mu.Unlock()

	sys.LogPlayer(sys.MsgPlayerNowPlaying, entry.ID, entry.Track.Name())
	if onTrack != nil {
		onTrack(entry)
	}
	return nil
}

// locate returns the catalog position of ptr's track, following it when
// removals shifted the category, or -1 once the track is gone. Must be
// called with mu held.
func (p *Player) locate(ptr *Pointer) int {
	if t, ok := p.catalog.Track(ptr.Letter, ptr.Index); ok && t.URL == ptr.URL {
		return ptr.Index
	}
	ptr.Index = p.catalog.IndexOf(ptr.Letter, ptr.URL)
	return ptr.Index
}

func (p *Player) completer(gen uint64) func(error) {
	return func(err error) {
		p.post(completion{gen: gen, err: err})
	}
}

func (p *Player) post(c completion) {
	select {
	case p.events <- c:
	default:
	}
}

// Run consumes sink completions until ctx ends. A poll ticker advances a
// shuffle whose sink went quiet without reporting.
func (p *Player) Run(ctx context.Context) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-p.events:
			p.handleCompletion(ctx, c)
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Player) handleCompletion(ctx context.Context, c completion) {
	p.mu.Lock()
	if c.gen != p.gen || !p.shuffling || ctx.Err() != nil {
		p.mu.Unlock()
		return
	}
	if c.err != nil && !errors.Is(c.err, context.Canceled) {
		p.shuffling = false
		p.gen++
		p.mu.Unlock()
		sys.LogPlayer(sys.MsgPlayerSinkError, c.err)
		return
	}
	p.mu.Unlock()

	_ = p.advance(ctx, c.gen)
}

func (p *Player) poll(ctx context.Context) {
	p.mu.Lock()
	gen, shuffling := p.gen, p.shuffling
	p.mu.Unlock()

	if shuffling && !p.sink.IsPlaying() {
		_ = p.advance(ctx, gen)
	}
}

// Stop leaves shuffle mode. Whatever is playing keeps playing.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shuffling {
		sys.LogPlayer(sys.MsgPlayerStopped)
	}
	p.shuffling = false
	p.gen++
}

// Clear stops shuffling and halts the sink but stays connected.
func (p *Player) Clear() {
	p.mu.Lock()
	p.shuffling = false
	p.gen++
	p.current = nil
	p.looping = false
	p.sink.Stop()
	p.mu.Unlock()
}

// Leave clears and disconnects from voice.
func (p *Player) Leave(ctx context.Context) error {
	p.Clear()
	return p.sink.Disconnect(ctx)
}

// Play loops one track until something else is played or the player is
// cleared.
func (p *Player) Play(ctx context.Context, displayID string) (ost.Entry, error) {
	entry, err := p.catalog.Lookup(displayID)
	if err != nil {
		return ost.Entry{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.shuffling = false
	p.gen++
	p.current = &Pointer{Letter: entry.ID.Letter, Index: entry.ID.Index, URL: entry.Track.URL}
	p.looping = true
	err = p.sink.Play(ctx, Stream{URL: entry.Track.URL, Title: entry.Track.Name(), Loop: true}, nil)
	if err != nil {
		p.current = nil
		p.looping = false
		return ost.Entry{}, err
	}
	sys.LogPlayer(sys.MsgPlayerNowPlaying, entry.ID, entry.Track.Name())
	return entry, nil
}

// Looping reports whether the current track came from a direct Play.
func (p *Player) Looping() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.looping
}

// Current returns what the sink is playing. A track removed from the catalog
// while playing has no display id and is not reported.
func (p *Player) Current() (ost.Entry, bool) {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return ost.Entry{}, false
	}
	letter, idx := p.current.Letter, p.locate(p.current)
	p.mu.Unlock()

	if idx < 0 || !p.sink.IsPlaying() {
		return ost.Entry{}, false
	}
	entry, err := p.catalog.Lookup(ost.DisplayID{Letter: letter, Index: idx}.String())
	if err != nil {
		return ost.Entry{}, false
	}
	return entry, true
}

// SetVolume changes the gain of the running stream and remembers it.
// Accepted values run from 0 to MaxVolume.
func (p *Player) SetVolume(ctx context.Context, percent int) error {
	if percent < 0 || percent > MaxVolume {
		return errors.Wrapf(ErrVolumeOutOfRange, "volume %d", percent)
	}
	if !p.sink.IsPlaying() {
		return ErrNotPlaying
	}
	if err := p.sink.SetVolume(percent); err != nil {
		return err
	}
	if p.volumes != nil {
		return p.volumes.SaveVolume(ctx, percent)
	}
	return nil
}

// pickIndex chooses uniformly among 0..n-1 without cur. A single track is
// picked again; an empty category yields -1.
func pickIndex(n, cur int, rnd *rand.Rand) int {
	switch {
	case n <= 0:
		return -1
	case n == 1:
		return 0
	case cur < 0 || cur >= n:
		return rnd.IntN(n)
	}
	i := rnd.IntN(n - 1)
	if i >= cur {
		i++
	}
	return i
}
