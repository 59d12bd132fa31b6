package home

import (
	"context"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"

	"github.com/leeineian/soundtrack/sys"
)

func (s *Soundtrack) textStop(ctx context.Context, event *events.MessageCreate, _ []string) error {
	r, err := s.stop(ctx)
	if err != nil {
		return err
	}
	return s.respond(event, r)
}

func (s *Soundtrack) textClear(_ context.Context, event *events.MessageCreate, _ []string) error {
	r, err := s.clear()
	if err != nil {
		return err
	}
	return s.respond(event, r)
}

// stop halts playback and leaves the voice channel.
func (s *Soundtrack) stop(ctx context.Context) (reply, error) {
	if err := s.Player.Leave(ctx); err != nil {
		return reply{}, err
	}
	s.mu.Lock()
	s.announce = 0
	s.mu.Unlock()
	return reply{embeds: []discord.Embed{failEmbed(sys.MsgCommandLeaving)}}, nil
}

// clear halts playback but stays connected.
func (s *Soundtrack) clear() (reply, error) {
	s.Player.Clear()
	return reply{embeds: []discord.Embed{failEmbed(sys.MsgCommandStopped)}}, nil
}
