package home

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"

	"github.com/leeineian/soundtrack/sys"
)

// textList posts the browsable track list and drives it from the caller's
// reactions until they stop reacting for the configured timeout.
func (s *Soundtrack) textList(ctx context.Context, event *events.MessageCreate, _ []string) error {
	client := event.Client()
	author := event.Message.Author.ID
	deleteInvocation(event)

	pager := NewPager(s.Catalog, s.List)
	view := pager.Home()
	msg, err := client.Rest.CreateMessage(event.ChannelID, discord.NewMessageCreateBuilder().
		SetContent(view.Content).
		SetEmbeds(view.Embed()).
		Build())
	if err != nil {
		return err
	}
	s.addReactions(ctx, client, event.ChannelID, msg.ID, view.Reactions)

	for {
		symbol, err := s.Loader.AwaitReaction(ctx, msg.ID, author, s.List.Timeout)
		if errors.Is(err, sys.ErrReactionTimeout) {
			_ = client.Rest.DeleteMessage(event.ChannelID, msg.ID)
			return nil
		}
		if err != nil {
			return err
		}

		next, ok := pager.React(symbol)
		if !ok {
			continue
		}
		if next.ClearReactions {
			_ = client.Rest.RemoveAllReactions(event.ChannelID, msg.ID)
		}
		_, err = client.Rest.UpdateMessage(event.ChannelID, msg.ID, discord.NewMessageUpdateBuilder().
			SetContent(next.Content).
			SetEmbeds(next.Embed()).
			Build())
		if err != nil {
			return err
		}
		s.addReactions(ctx, client, event.ChannelID, msg.ID, next.Reactions)
	}
}

// addReactions adds symbols in order, paced to stay under the reaction
// rate limit.
func (s *Soundtrack) addReactions(ctx context.Context, client *bot.Client, channelID, messageID snowflake.ID, symbols []string) {
	for _, symbol := range symbols {
		if err := s.reactions.Wait(ctx); err != nil {
			return
		}
		if err := client.Rest.AddReaction(channelID, messageID, symbol); err != nil {
			sys.LogDebug(sys.MsgGenericError, err)
		}
	}
}
