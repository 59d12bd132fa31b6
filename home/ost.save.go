package home

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
)

func (s *Soundtrack) textSave(_ context.Context, event *events.MessageCreate, _ []string) error {
	r, err := s.save()
	if err != nil {
		return err
	}
	return s.respond(event, r)
}

// save writes the catalog and answers with totals and the file itself.
func (s *Soundtrack) save() (reply, error) {
	path, err := s.Catalog.Persist(s.Dir)
	if err != nil {
		return reply{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return reply{}, errors.Wrapf(err, "read %s", path)
	}
	return reply{
		embeds: []discord.Embed{saveEmbed(s.Catalog.Totals())},
		file:   discord.NewFile(filepath.Base(path), "", bytes.NewReader(data)),
	}, nil
}
