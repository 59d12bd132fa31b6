package sys

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/disgo/voice"
	"github.com/disgoorg/godave/golibdave"
	"github.com/disgoorg/snowflake/v2"
)

// SafeGo runs a function in a new goroutine with panic recovery
func SafeGo(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				LogError(MsgLoaderPanicRecovered, r)
				fmt.Printf("%s\n", debug.Stack())
			}
		}()
		f()
	}()
}

var ErrReactionTimeout = errors.New("no reaction before timeout")

// TextCommand is a prefixed chat command such as "$$add C <url>".
type TextCommand struct {
	Name        string
	Aliases     []string
	Usage       string
	Description string
	// Privileged commands go through the access list.
	Privileged bool
	Handler    func(ctx context.Context, event *events.MessageCreate, args []string) error
}

// TextErrorHandler reports a failed text command back to the channel.
type TextErrorHandler func(event *events.MessageCreate, cmd *TextCommand, err error)

type reactionWaiter struct {
	userID snowflake.ID
	ch     chan string
}

type daemonEntry struct {
	starter func(ctx context.Context) (bool, func(), func())
	logger  func(format string, v ...any)
}

// Loader owns the command registries, event routing and background daemons.
type Loader struct {
	ctx       context.Context
	prefix    string
	access    *AccessList
	db        *Database
	startedAt time.Time

	textCommands    map[string]*TextCommand
	onTextError     TextErrorHandler
	commands        []discord.ApplicationCommandCreate
	commandHandlers map[string]func(event *events.ApplicationCommandInteractionCreate)
	voiceHandlers   []func(event *events.GuildVoiceStateUpdate)
	readyCallbacks  []func(ctx context.Context, client *bot.Client)

	waitersMu sync.Mutex
	waiters   map[snowflake.ID]reactionWaiter

	daemonsOnce   sync.Once
	daemons       []daemonEntry
	shutdownMu    sync.Mutex
	shutdownHooks []func()
}

func NewLoader(ctx context.Context, prefix string, access *AccessList, db *Database) *Loader {
	return &Loader{
		ctx:             ctx,
		prefix:          prefix,
		access:          access,
		db:              db,
		startedAt:       time.Now(),
		textCommands:    map[string]*TextCommand{},
		commandHandlers: map[string]func(event *events.ApplicationCommandInteractionCreate){},
		waiters:         map[snowflake.ID]reactionWaiter{},
	}
}

func (l *Loader) Prefix() string { return l.prefix }

func (l *Loader) Context() context.Context { return l.ctx }

// --- Bot Initialization ---

// CreateClient creates and configures a disgo client
func (l *Loader) CreateClient(cfg *Config) (*bot.Client, error) {
	return disgo.New(cfg.Token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMessages,
				gateway.IntentMessageContent,
				gateway.IntentGuildMessageReactions,
				gateway.IntentGuildVoiceStates,
			),
			gateway.WithPresenceOpts(
				gateway.WithPlayingActivity(cfg.Prefix+"list"),
				gateway.WithOnlineStatus(discord.OnlineStatusOnline),
			),
		),
		bot.WithCacheConfigOpts(
			cache.WithCaches(cache.FlagGuilds, cache.FlagChannels, cache.FlagVoiceStates),
		),
		bot.WithVoiceManagerConfigOpts(
			voice.WithDaveSessionCreateFunc(golibdave.NewSession),
		),
		bot.WithEventListenerFunc(l.onMessageCreate),
		bot.WithEventListenerFunc(l.onMessageReactionAdd),
		bot.WithEventListenerFunc(l.onApplicationCommandInteraction),
		bot.WithEventListenerFunc(l.onVoiceStateUpdate),
		bot.WithEventListenerFunc(l.onReady),
		bot.WithLogger(slog.Default()),
		bot.WithRestClientConfigOpts(
			rest.WithHTTPClient(&http.Client{
				Timeout: 60 * time.Second,
				Transport: &http.Transport{
					MaxIdleConns:        100,
					MaxIdleConnsPerHost: 50,
					IdleConnTimeout:     90 * time.Second,
				},
			}),
		),
	)
}

// --- Command & Handler Registration ---

func (l *Loader) RegisterTextCommand(cmd *TextCommand) {
	l.textCommands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		l.textCommands[alias] = cmd
	}
}

// TextCommand looks a command up by name or alias.
func (l *Loader) TextCommand(name string) (*TextCommand, bool) {
	cmd, ok := l.textCommands[name]
	return cmd, ok
}

func (l *Loader) OnTextError(h TextErrorHandler) {
	l.onTextError = h
}

func (l *Loader) RegisterCommand(cmd discord.ApplicationCommandCreate, handler func(event *events.ApplicationCommandInteractionCreate)) {
	l.commands = append(l.commands, cmd)
	switch c := cmd.(type) {
	case discord.SlashCommandCreate:
		l.commandHandlers[c.CommandName()] = handler
	case discord.UserCommandCreate:
		l.commandHandlers[c.CommandName()] = handler
	case discord.MessageCommandCreate:
		l.commandHandlers[c.CommandName()] = handler
	}
}

func (l *Loader) RegisterVoiceStateUpdateHandler(handler func(event *events.GuildVoiceStateUpdate)) {
	l.voiceHandlers = append(l.voiceHandlers, handler)
}

func (l *Loader) OnClientReady(cb func(ctx context.Context, client *bot.Client)) {
	l.readyCallbacks = append(l.readyCallbacks, cb)
}

// ParseCommand splits a prefixed message into command name and arguments.
func ParseCommand(prefix, content string) (string, []string, bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return "", nil, false
	}
	return fields[0], fields[1:], true
}

// --- Command Syncing Logic ---

// calculateCommandHash generates a SHA256 hash of the commands slice
func calculateCommandHash(cmds []discord.ApplicationCommandCreate) string {
	data, err := json.Marshal(cmds)
	if err != nil {
		return ""
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// RegisterCommands pushes the slash commands to one guild (GUILD_ID set) or
// globally, skipping the call when nothing changed since the last sync.
func (l *Loader) RegisterCommands(ctx context.Context, client *bot.Client, guildIDStr string) error {
	currentMode := "guild"
	if guildIDStr == "" {
		currentMode = "global"
	}
	LogLoader(MsgLoaderSyncCommands, strings.ToUpper(currentMode))

	currentHash := calculateCommandHash(l.commands)
	lastHash, _ := l.db.GetBotConfig(ctx, "last_cmd_hash")
	lastMode, _ := l.db.GetBotConfig(ctx, "last_reg_mode")
	lastGuildID, _ := l.db.GetBotConfig(ctx, "last_guild_id")

	if currentHash != "" && currentHash == lastHash && currentMode == lastMode && lastGuildID == guildIDStr {
		LogLoader(MsgLoaderUpToDate, currentHash[:8])
		return nil
	}

	if guildIDStr == "" {
		created, err := client.Rest.SetGlobalCommands(client.ApplicationID, l.commands)
		if err != nil {
			return errors.Wrap(err, "global registration failed")
		}
		for _, cmd := range created {
			LogLoader(MsgLoaderRegistered, cmd.Name(), currentMode)
		}
	} else {
		guildID, err := snowflake.Parse(guildIDStr)
		if err != nil {
			return errors.Wrap(err, "invalid GUILD_ID")
		}
		created, err := client.Rest.SetGuildCommands(client.ApplicationID, guildID, l.commands)
		if err != nil {
			return errors.Wrap(err, "guild registration failed")
		}
		for _, cmd := range created {
			LogLoader(MsgLoaderRegistered, cmd.Name(), currentMode)
		}
	}

	if lastGuildID != "" && lastGuildID != guildIDStr {
		if oldID, err := snowflake.Parse(lastGuildID); err == nil {
			LogLoader(MsgLoaderCleanup, lastGuildID)
			_, _ = client.Rest.SetGuildCommands(client.ApplicationID, oldID, []discord.ApplicationCommandCreate{})
		}
	}

	_ = l.db.SetBotConfig(ctx, "last_reg_mode", currentMode)
	_ = l.db.SetBotConfig(ctx, "last_guild_id", guildIDStr)
	if currentHash != "" {
		_ = l.db.SetBotConfig(ctx, "last_cmd_hash", currentHash)
	}
	return nil
}

// --- Reaction Waiters ---

// AwaitReaction blocks until userID reacts to messageID and returns the
// emoji. It fails with ErrReactionTimeout after timeout.
func (l *Loader) AwaitReaction(ctx context.Context, messageID, userID snowflake.ID, timeout time.Duration) (string, error) {
	ch := make(chan string, 1)

	l.waitersMu.Lock()
	l.waiters[messageID] = reactionWaiter{userID: userID, ch: ch}
	l.waitersMu.Unlock()

	defer func() {
		l.waitersMu.Lock()
		if w, ok := l.waiters[messageID]; ok && w.ch == ch {
			delete(l.waiters, messageID)
		}
		l.waitersMu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case emoji := <-ch:
		return emoji, nil
	case <-timer.C:
		return "", ErrReactionTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// deliverReaction hands a reaction to the waiter of messageID, if any.
func (l *Loader) deliverReaction(messageID, userID snowflake.ID, emoji string) bool {
	l.waitersMu.Lock()
	w, ok := l.waiters[messageID]
	l.waitersMu.Unlock()
	if !ok || w.userID != userID {
		return false
	}
	select {
	case w.ch <- emoji:
		return true
	default:
		return false
	}
}

// --- Event Handlers ---

func (l *Loader) onReady(event *events.Ready) {
	client := event.Client()
	botUser := event.User

	LogInfo(MsgBotReady, botUser.Username, botUser.ID.String(), os.Getpid(), time.Since(l.startedAt).Milliseconds())

	for _, cb := range l.readyCallbacks {
		cb(l.ctx, client)
	}
	l.StartDaemons(l.ctx)
}

func (l *Loader) onMessageCreate(event *events.MessageCreate) {
	if event.Message.Author.Bot || event.GuildID == nil {
		return
	}
	name, args, ok := ParseCommand(l.prefix, event.Message.Content)
	if !ok {
		return
	}
	cmd, ok := l.textCommands[name]
	if !ok {
		return
	}

	SafeGo(func() {
		var err error
		if cmd.Privileged {
			err = l.access.Check(event.Message.Author.ID)
			if err != nil {
				LogWarn(MsgLoaderDenied, event.Message.Author.Username, l.prefix, cmd.Name)
			}
		}
		if err == nil {
			err = cmd.Handler(l.ctx, event, args)
		}
		if err != nil {
			LogDebug(MsgLoaderCommandFailed, l.prefix, cmd.Name, err)
			if l.onTextError != nil {
				l.onTextError(event, cmd, err)
			}
		}
	})
}

func (l *Loader) onMessageReactionAdd(event *events.MessageReactionAdd) {
	if event.Emoji.Name == nil {
		return
	}
	if self, ok := event.Client().Caches.SelfUser(); ok && self.ID == event.UserID {
		return
	}
	l.deliverReaction(event.MessageID, event.UserID, *event.Emoji.Name)
}

func (l *Loader) onApplicationCommandInteraction(event *events.ApplicationCommandInteractionCreate) {
	if h, ok := l.commandHandlers[event.Data.CommandName()]; ok {
		SafeGo(func() { h(event) })
	}
}

func (l *Loader) onVoiceStateUpdate(event *events.GuildVoiceStateUpdate) {
	for _, h := range l.voiceHandlers {
		SafeGo(func() { h(event) })
	}
}

// --- Daemon System ---

// RegisterDaemon registers a background daemon with a logger and start function
func (l *Loader) RegisterDaemon(logger func(format string, v ...any), starter func(ctx context.Context) (bool, func(), func())) {
	l.daemons = append(l.daemons, daemonEntry{starter: starter, logger: logger})
}

// StartDaemons starts every registered daemon once.
func (l *Loader) StartDaemons(ctx context.Context) {
	l.daemonsOnce.Do(func() {
		type activeDaemon struct {
			entry daemonEntry
			run   func()
		}
		var active []activeDaemon

		for _, daemon := range l.daemons {
			if ok, run, shutdown := daemon.starter(ctx); ok && run != nil {
				if shutdown != nil {
					l.shutdownMu.Lock()
					l.shutdownHooks = append(l.shutdownHooks, shutdown)
					l.shutdownMu.Unlock()
				}
				active = append(active, activeDaemon{daemon, run})
			}
		}

		for _, ad := range active {
			ad.entry.logger(MsgDaemonStarting)
		}
		for _, ad := range active {
			SafeGo(ad.run)
		}
	})
}

// ShutdownDaemons runs every shutdown hook and waits for them.
func (l *Loader) ShutdownDaemons() {
	l.shutdownMu.Lock()
	defer l.shutdownMu.Unlock()

	var wg sync.WaitGroup
	for _, shutdown := range l.shutdownHooks {
		wg.Add(1)
		go func(s func()) {
			defer wg.Done()
			s()
		}(shutdown)
	}
	wg.Wait()
	l.shutdownHooks = nil
}
