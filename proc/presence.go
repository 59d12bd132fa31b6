package proc

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/gateway"

	"github.com/leeineian/soundtrack/ost"
	"github.com/leeineian/soundtrack/sys"
)

// rotationInterval picks the next status change between 15s and 60s.
func rotationInterval(rnd *rand.Rand) time.Duration {
	return time.Duration(15+rnd.IntN(46)) * time.Second
}

// Presence rotates the bot's listening status between the playing track,
// the catalog size and the list command.
type Presence struct {
	player  *Player
	catalog *ost.Catalog
	prefix  string
	rnd     *rand.Rand

	mu     sync.Mutex
	client *bot.Client
	last   string
	done   chan struct{}
}

func NewPresence(player *Player, catalog *ost.Catalog, prefix string) *Presence {
	return &Presence{
		player:  player,
		catalog: catalog,
		prefix:  prefix,
		rnd:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}
}

// SetClient is meant for the loader's ready callback.
func (p *Presence) SetClient(_ context.Context, client *bot.Client) {
	p.mu.Lock()
	p.client = client
	p.mu.Unlock()
}

// Start implements the loader's daemon contract. It declines until a client
// is known.
func (p *Presence) Start(ctx context.Context) (bool, func(), func()) {
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()
	if client == nil {
		return false, nil, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	p.done = make(chan struct{})
	run := func() {
		defer close(p.done)
		for {
			next := rotationInterval(p.rnd)
			p.update(ctx, client, next)
			select {
			case <-time.After(next):
			case <-ctx.Done():
				return
			}
		}
	}
	shutdown := func() {
		cancel()
		<-p.done
	}
	return true, run, shutdown
}

func (p *Presence) update(ctx context.Context, client *bot.Client, next time.Duration) {
	text := p.pick()
	err := client.SetPresence(ctx,
		gateway.WithOnlineStatus(discord.OnlineStatusOnline),
		gateway.WithListeningActivity(text),
	)
	if err != nil {
		sys.LogPresence(sys.MsgPresenceUpdateFail, err)
		return
	}
	sys.LogPresence(sys.MsgPresenceRotated, text, next)
}

// statuses lists what can be shown right now. The list hint is always
// available.
func (p *Presence) statuses() []string {
	var out []string
	if e, ok := p.player.Current(); ok {
		out = append(out, e.Track.Name())
	}
	if n := len(p.catalog.List()); n > 0 {
		out = append(out, fmt.Sprintf("%d soundtracks", n))
	}
	return append(out, p.prefix+"list")
}

// pick avoids repeating the previous status when there is a choice.
func (p *Presence) pick() string {
	all := p.statuses()

	p.mu.Lock()
	defer p.mu.Unlock()

	var choices []string
	for _, s := range all {
		if s != p.last {
			choices = append(choices, s)
		}
	}
	if len(choices) == 0 {
		choices = all
	}
	p.last = choices[p.rnd.IntN(len(choices))]
	return p.last
}
