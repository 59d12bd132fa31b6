package home

import (
	"context"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
)

func (s *Soundtrack) textPlay(ctx context.Context, event *events.MessageCreate, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	r, err := s.play(ctx, event.Client(), *event.GuildID, event.Message.Author.ID, args[0])
	if err != nil {
		return err
	}
	return s.respond(event, r)
}

func (s *Soundtrack) play(ctx context.Context, client *bot.Client, guildID, userID snowflake.ID, displayID string) (reply, error) {
	if _, err := s.Catalog.Lookup(displayID); err != nil {
		return reply{}, err
	}

	s.Player.Stop()
	if err := s.ensureVoice(ctx, client, guildID, userID); err != nil {
		return reply{}, err
	}

	entry, err := s.Player.Play(ctx, displayID)
	if err != nil {
		return reply{}, err
	}
	return reply{embeds: []discord.Embed{nowPlayingEmbed(entry)}}, nil
}
