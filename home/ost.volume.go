package home

import (
	"context"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
)

func (s *Soundtrack) textVolume(ctx context.Context, event *events.MessageCreate, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	percent, err := strconv.Atoi(args[0])
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "volume %q", args[0]), errUsage)
	}
	r, err := s.volume(ctx, percent)
	if err != nil {
		return err
	}
	return s.respond(event, r)
}

func (s *Soundtrack) volume(ctx context.Context, percent int) (reply, error) {
	if err := s.Player.SetVolume(ctx, percent); err != nil {
		return reply{}, err
	}
	return reply{embeds: []discord.Embed{volumeEmbed(percent)}}, nil
}
