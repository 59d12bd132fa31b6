// Package home holds the soundtrack commands: the prefixed text commands,
// their /ost slash mirror and the reaction-driven track list.
package home

import (
	"context"
	"sync"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/omit"
	"github.com/disgoorg/snowflake/v2"
	"golang.org/x/time/rate"

	"github.com/leeineian/soundtrack/ost"
	"github.com/leeineian/soundtrack/proc"
	"github.com/leeineian/soundtrack/sys"
)

// Voice is the part of the voice sink the commands drive directly.
type Voice interface {
	Connect(ctx context.Context, guildID, channelID snowflake.ID) error
	MarkDisconnected()
}

type Deps struct {
	Loader  *sys.Loader
	Catalog *ost.Catalog
	Player  *proc.Player
	Voice   Voice
	Access  *sys.AccessList
	List    sys.ListConfig
	// Dir is where save, add and remove write the catalog.
	Dir string
}

// Soundtrack wires the catalog and player to Discord.
type Soundtrack struct {
	Deps

	reactions *rate.Limiter

	mu       sync.Mutex
	client   *bot.Client
	announce snowflake.ID
}

// reply is what a command answers with. An empty reply only cleans up the
// invoking message.
type reply struct {
	embeds []discord.Embed
	file   *discord.File
}

func Register(d Deps) *Soundtrack {
	s := &Soundtrack{
		Deps:      d,
		reactions: rate.NewLimiter(rate.Every(250*time.Millisecond), 2),
	}

	for _, cmd := range s.textCommands() {
		d.Loader.RegisterTextCommand(cmd)
	}
	d.Loader.OnTextError(s.onTextError)
	d.Loader.RegisterCommand(s.slashCommand(), s.handleSlash)
	d.Loader.RegisterVoiceStateUpdateHandler(s.onVoiceStateUpdate)
	d.Loader.OnClientReady(func(_ context.Context, client *bot.Client) {
		s.mu.Lock()
		s.client = client
		s.mu.Unlock()
	})
	d.Player.OnTrack(s.announceTrack)
	return s
}

func (s *Soundtrack) textCommands() []*sys.TextCommand {
	return []*sys.TextCommand{
		{Name: "add", Aliases: []string{"a"}, Usage: "add <category> <url>", Description: "Add a track to a category", Privileged: true, Handler: s.textAdd},
		{Name: "remove", Aliases: []string{"r", "rem"}, Usage: "remove <track>", Description: "Remove a track", Privileged: true, Handler: s.textRemove},
		{Name: "play", Aliases: []string{"p"}, Usage: "play <track>", Description: "Play one track in a loop", Privileged: true, Handler: s.textPlay},
		{Name: "group", Aliases: []string{"g"}, Usage: "group <category>", Description: "Shuffle a category", Privileged: true, Handler: s.textGroup},
		{Name: "volume", Aliases: []string{"v", "vol"}, Usage: "volume <percent>", Description: "Set the volume", Privileged: true, Handler: s.textVolume},
		{Name: "stop", Aliases: []string{"s"}, Usage: "stop", Description: "Stop and leave the channel", Privileged: true, Handler: s.textStop},
		{Name: "clear", Aliases: []string{"c"}, Usage: "clear", Description: "Stop playing", Privileged: true, Handler: s.textClear},
		{Name: "current", Usage: "current", Description: "Show the playing track", Handler: s.textCurrent},
		{Name: "list", Aliases: []string{"l"}, Usage: "list", Description: "Browse the tracks", Handler: s.textList},
		{Name: "save", Usage: "save", Description: "Save the catalog", Privileged: true, Handler: s.textSave},
	}
}

var privileged = map[string]bool{
	"add": true, "remove": true, "play": true, "group": true,
	"volume": true, "stop": true, "clear": true, "save": true,
}

func (s *Soundtrack) slashCommand() discord.SlashCommandCreate {
	adminPerm := discord.PermissionAdministrator

	var choices []discord.ApplicationCommandOptionChoiceString
	for _, c := range s.Catalog.Categories().All() {
		if len(choices) == 25 {
			break
		}
		choices = append(choices, discord.ApplicationCommandOptionChoiceString{Name: c.Name, Value: c.Letter})
	}
	category := discord.ApplicationCommandOptionString{
		Name:        "category",
		Description: "Category letter",
		Required:    true,
		Choices:     choices,
	}
	track := discord.ApplicationCommandOptionString{
		Name:        "track",
		Description: "Track id, e.g. C3",
		Required:    true,
	}

	return discord.SlashCommandCreate{
		Name:                     "ost",
		Description:              "Soundtrack manager",
		DefaultMemberPermissions: omit.New(&adminPerm),
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "add",
				Description: "Add a track to a category",
				Options: []discord.ApplicationCommandOption{
					category,
					discord.ApplicationCommandOptionString{Name: "url", Description: "Track URL", Required: true},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "remove",
				Description: "Remove a track",
				Options:     []discord.ApplicationCommandOption{track},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "play",
				Description: "Play one track in a loop",
				Options:     []discord.ApplicationCommandOption{track},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "group",
				Description: "Shuffle a category",
				Options:     []discord.ApplicationCommandOption{category},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "volume",
				Description: "Set the volume",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionInt{Name: "percent", Description: "Volume in percent", Required: true},
				},
			},
			discord.ApplicationCommandOptionSubCommand{Name: "stop", Description: "Stop and leave the channel"},
			discord.ApplicationCommandOptionSubCommand{Name: "clear", Description: "Stop playing"},
			discord.ApplicationCommandOptionSubCommand{Name: "current", Description: "Show the playing track"},
			discord.ApplicationCommandOptionSubCommand{Name: "list", Description: "Show the categories"},
			discord.ApplicationCommandOptionSubCommand{Name: "save", Description: "Save the catalog"},
		},
	}
}

func (s *Soundtrack) handleSlash(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	if data.SubCommandName == nil || event.GuildID() == nil {
		return
	}
	sub := *data.SubCommandName
	ctx := s.Loader.Context()

	if privileged[sub] {
		if err := s.Access.Check(event.User().ID); err != nil {
			_ = event.CreateMessage(discord.NewMessageCreateBuilder().
				SetEmbeds(failEmbed(errorMessage(s.Loader.Prefix(), nil, err))).
				SetEphemeral(true).
				Build())
			return
		}
	}

	_ = event.DeferCreateMessage(false)

	guildID := *event.GuildID()
	userID := event.User().ID
	channelID := event.Channel().ID()
	client := event.Client()

	var r reply
	var err error
	switch sub {
	case "add":
		r, err = s.add(ctx, data.String("category"), data.String("url"))
	case "remove":
		r, err = s.remove(data.String("track"))
	case "play":
		r, err = s.play(ctx, client, guildID, userID, data.String("track"))
	case "group":
		r, err = s.group(ctx, client, guildID, userID, channelID, data.String("category"))
	case "volume":
		r, err = s.volume(ctx, data.Int("percent"))
	case "stop":
		r, err = s.stop(ctx)
	case "clear":
		r, err = s.clear()
	case "current":
		r, err = s.current()
	case "list":
		r = reply{embeds: []discord.Embed{NewPager(s.Catalog, s.List).Home().Embed()}}
	case "save":
		r, err = s.save()
	}

	if err != nil {
		logCommandError(sub, err)
		r = reply{embeds: []discord.Embed{failEmbed(errorMessage(s.Loader.Prefix(), nil, err))}}
	}
	if len(r.embeds) == 0 {
		_ = client.Rest.DeleteInteractionResponse(event.ApplicationID(), event.Token())
		return
	}

	update := discord.NewMessageUpdateBuilder().SetEmbeds(r.embeds...)
	if r.file != nil {
		update.AddFiles(r.file)
	}
	_, _ = client.Rest.UpdateInteractionResponse(event.ApplicationID(), event.Token(), update.Build())
}

// respond posts r into the channel of the invoking message and deletes it.
func (s *Soundtrack) respond(event *events.MessageCreate, r reply) error {
	if len(r.embeds) > 0 {
		msg := discord.NewMessageCreateBuilder().SetEmbeds(r.embeds...)
		if r.file != nil {
			msg.AddFiles(r.file)
		}
		if _, err := event.Client().Rest.CreateMessage(event.ChannelID, msg.Build()); err != nil {
			return err
		}
	}
	deleteInvocation(event)
	return nil
}

func deleteInvocation(event *events.MessageCreate) {
	_ = event.Client().Rest.DeleteMessage(event.ChannelID, event.MessageID)
}

func (s *Soundtrack) onTextError(event *events.MessageCreate, cmd *sys.TextCommand, err error) {
	logCommandError(cmd.Name, err)
	_, _ = event.Client().Rest.CreateMessage(event.ChannelID, discord.NewMessageCreateBuilder().
		SetEmbeds(failEmbed(errorMessage(s.Loader.Prefix(), cmd, err))).
		Build())
}

// logCommandError keeps expected user mistakes out of the error log.
func logCommandError(name string, err error) {
	if errorMessage("", nil, err) == sys.ErrCommandInternal {
		sys.LogError(sys.MsgLoaderCommandFailed, "", name, err)
	}
}

// ensureVoice joins the caller's voice channel, or stays if already there.
func (s *Soundtrack) ensureVoice(ctx context.Context, client *bot.Client, guildID, userID snowflake.ID) error {
	vs, ok := client.Caches.VoiceState(guildID, userID)
	if !ok || vs.ChannelID == nil {
		return ErrNotInVoice
	}
	return s.Voice.Connect(ctx, guildID, *vs.ChannelID)
}

func (s *Soundtrack) onVoiceStateUpdate(event *events.GuildVoiceStateUpdate) {
	if event.VoiceState.UserID != event.Client().ID() || event.VoiceState.ChannelID != nil {
		return
	}
	s.Player.Stop()
	s.Voice.MarkDisconnected()
}

// announceTrack posts every track the shuffle starts into the channel the
// group command came from.
func (s *Soundtrack) announceTrack(e ost.Entry) {
	s.mu.Lock()
	client, channelID := s.client, s.announce
	s.mu.Unlock()
	if client == nil || channelID == 0 {
		return
	}
	_, err := client.Rest.CreateMessage(channelID, discord.NewMessageCreateBuilder().
		SetEmbeds(nowPlayingEmbed(e)).
		Build())
	if err != nil {
		sys.LogDebug(sys.MsgGenericError, err)
	}
}
