package home

import (
	"context"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"

	"github.com/leeineian/soundtrack/sys"
)

func (s *Soundtrack) textCurrent(_ context.Context, event *events.MessageCreate, _ []string) error {
	r, err := s.current()
	if err != nil {
		return err
	}
	return s.respond(event, r)
}

func (s *Soundtrack) current() (reply, error) {
	entry, ok := s.Player.Current()
	if !ok {
		return reply{embeds: []discord.Embed{infoEmbed(sys.ErrCommandNotPlaying)}}, nil
	}
	e := nowPlayingEmbed(entry)
	if s.Player.Looping() {
		e.Footer = &discord.EmbedFooter{Text: "🔁"}
	} else if letter, ok := s.Player.Shuffling(); ok {
		if c, found := s.Catalog.Categories().Lookup(letter); found {
			e.Footer = &discord.EmbedFooter{Text: "🔀 " + c.Name}
		}
	}
	return reply{embeds: []discord.Embed{e}}, nil
}
