package home

import (
	"context"
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"

	"github.com/leeineian/soundtrack/sys"
)

func (s *Soundtrack) textAdd(ctx context.Context, event *events.MessageCreate, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	r, err := s.add(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	return s.respond(event, r)
}

func (s *Soundtrack) add(ctx context.Context, token, url string) (reply, error) {
	entry, err := s.Catalog.Add(ctx, token, url)
	if err != nil {
		return reply{}, err
	}
	sys.LogCatalog(sys.MsgCatalogTrackAdded, entry.ID, entry.Track.Name())
	s.persist()

	text := fmt.Sprintf(sys.MsgCommandTrackAdded, entry.Track.Name(), entry.Track.Length())
	return reply{embeds: []discord.Embed{successEmbed(text)}}, nil
}

// persist writes the catalog after a change. A failed write is logged and
// does not fail the command.
func (s *Soundtrack) persist() {
	path, err := s.Catalog.Persist(s.Dir)
	if err != nil {
		sys.LogCatalog(sys.MsgCatalogSaveFail, err)
		return
	}
	sys.LogCatalog(sys.MsgCatalogSaved, path)
}
