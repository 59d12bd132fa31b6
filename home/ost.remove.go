package home

import (
	"context"
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"

	"github.com/leeineian/soundtrack/sys"
)

func (s *Soundtrack) textRemove(_ context.Context, event *events.MessageCreate, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	r, err := s.remove(args[0])
	if err != nil {
		return err
	}
	return s.respond(event, r)
}

func (s *Soundtrack) remove(displayID string) (reply, error) {
	entry, err := s.Catalog.Remove(displayID)
	if err != nil {
		return reply{}, err
	}
	sys.LogCatalog(sys.MsgCatalogTrackRemoved, entry.ID, entry.Track.Name())
	s.persist()

	text := fmt.Sprintf(sys.MsgCommandTrackRemoved, entry.Track.Name(), entry.ID)
	return reply{embeds: []discord.Embed{successEmbed(text)}}, nil
}
