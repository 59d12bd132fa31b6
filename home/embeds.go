package home

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/disgo/discord"

	"github.com/leeineian/soundtrack/ost"
	"github.com/leeineian/soundtrack/proc"
	"github.com/leeineian/soundtrack/sys"
)

const (
	colorDarkGreen = 0x1f8b4c
	colorDarkRed   = 0x992d22
	colorDarkTeal  = 0x11806a
	colorDarkBlue  = 0x206694
)

var (
	ErrNotInVoice = errors.New("caller is not in a voice channel")
	errUsage      = errors.New("bad arguments")
)

func successEmbed(text string) discord.Embed {
	return discord.NewEmbedBuilder().SetDescription(text).SetColor(colorDarkGreen).Build()
}

func failEmbed(text string) discord.Embed {
	return discord.NewEmbedBuilder().SetDescription(text).SetColor(colorDarkRed).Build()
}

func infoEmbed(text string) discord.Embed {
	return discord.NewEmbedBuilder().SetDescription(text).SetColor(colorDarkTeal).Build()
}

// nowPlayingEmbed shows a track with a link under its display id.
func nowPlayingEmbed(e ost.Entry) discord.Embed {
	return discord.NewEmbedBuilder().
		SetDescription(e.Track.Name()).
		SetColor(colorDarkTeal).
		AddField("Track", fmt.Sprintf("[%s](%s)", e.ID, e.Track.URL), true).
		AddField("Duration", e.Track.Length(), true).
		Build()
}

// volumeBar renders ten blocks, one lit per full 10%.
func volumeBar(percent int) string {
	blocks := make([]string, 10)
	for i := range blocks {
		if percent >= (i+1)*10 {
			blocks[i] = "🟩"
		} else {
			blocks[i] = "⬛"
		}
	}
	return strings.Join(blocks, " ")
}

func volumeEmbed(percent int) discord.Embed {
	return infoEmbed("Volume: " + fmt.Sprintf(sys.MsgCommandVolume, volumeBar(percent), percent))
}

// saveEmbed summarizes the catalog after a save.
func saveEmbed(t ost.Totals) discord.Embed {
	b := discord.NewEmbedBuilder().
		SetTitle(sys.MsgCommandSaved).
		SetColor(colorDarkTeal).
		AddField("Total tracks", strconv.Itoa(t.Count), true).
		AddField("Total duration", ost.FormatDurationHours(t.Duration), true)
	for _, ct := range t.PerCategory {
		b.AddField(ct.Category.Name, fmt.Sprintf("%d (%s)", ct.Count, ost.FormatDurationHours(ct.Duration)), true)
	}
	return b.Build()
}

// errorMessage converts a command failure into the line shown to the user.
func errorMessage(prefix string, cmd *sys.TextCommand, err error) string {
	switch {
	case errors.Is(err, ost.ErrInvalidCategory):
		return sys.ErrCommandInvalidCategory
	case errors.Is(err, ost.ErrInvalidTrack):
		return sys.ErrCommandInvalidTrack
	case errors.Is(err, ost.ErrResolution):
		return sys.ErrCommandResolution
	case errors.Is(err, ErrNotInVoice):
		return sys.ErrCommandNotInVoice
	case errors.Is(err, proc.ErrNotPlaying), errors.Is(err, proc.ErrNotConnected):
		return sys.ErrCommandNotPlaying
	case errors.Is(err, sys.ErrUnauthorized):
		return sys.ErrCommandUnauthorized
	case errors.Is(err, proc.ErrVolumeOutOfRange):
		return fmt.Sprintf(sys.ErrCommandVolumeRange, proc.MaxVolume)
	case errors.Is(err, errUsage) && cmd != nil:
		return fmt.Sprintf(sys.ErrCommandUsage, prefix, cmd.Usage)
	}
	return sys.ErrCommandInternal
}
