package home

import (
	"context"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
)

func (s *Soundtrack) textGroup(ctx context.Context, event *events.MessageCreate, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	r, err := s.group(ctx, event.Client(), *event.GuildID, event.Message.Author.ID, event.ChannelID, args[0])
	if err != nil {
		return err
	}
	return s.respond(event, r)
}

// group starts shuffling. The tracks announce themselves in channelID as
// they start, so the reply is empty.
func (s *Soundtrack) group(ctx context.Context, client *bot.Client, guildID, userID, channelID snowflake.ID, token string) (reply, error) {
	cat, ok := s.Catalog.Categories().Lookup(token)
	if !ok || s.Catalog.Len(cat.Letter) == 0 {
		// Lets the player fall back to idle and report the category.
		return reply{}, s.Player.StartGroup(ctx, token)
	}

	s.Player.Stop()
	if err := s.ensureVoice(ctx, client, guildID, userID); err != nil {
		return reply{}, err
	}

	s.mu.Lock()
	s.client = client
	s.announce = channelID
	s.mu.Unlock()

	if err := s.Player.StartGroup(ctx, cat.Letter); err != nil {
		return reply{}, err
	}
	return reply{}, nil
}
