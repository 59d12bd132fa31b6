package sys

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"gopkg.in/natefinch/lumberjack.v2"
)

// --- Globals & Styles ---

var (
	// Level colors
	infoColor  = color.New()
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed)
	fatalColor = color.New(color.FgRed, color.Bold)

	// Component colors
	databaseColor = color.New()
	loaderColor   = color.New(color.FgBlue)
	catalogColor  = color.New(color.FgGreen)
	playerColor   = color.New(color.FgMagenta)
	voiceColor    = color.New(color.FgMagenta)
	resolverColor = color.New(color.FgCyan)
	presenceColor = color.New(color.FgHiBlue)

	DefaultTimeFormat = "15:04:05"
	Logger            *slog.Logger

	logMu   sync.Mutex
	logFile *lumberjack.Logger
)

const LevelFatal = slog.LevelError + 4

func init() {
	InitLogger(false, "")
}

// InitLogger installs the bot handler as the default slog logger. When path
// is set, output is mirrored without colors into a rotated log file.
func InitLogger(silent bool, path string) {
	logMu.Lock()
	defer logMu.Unlock()

	level := slog.LevelInfo
	if strings.ToLower(os.Getenv("DEBUG")) == "true" {
		level = slog.LevelDebug
	}

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	var writer io.Writer = os.Stdout
	if path != "" {
		logFile = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
		writer = io.MultiWriter(os.Stdout, NewStripANSIWriter(logFile))
	}

	color.NoColor = false

	Logger = slog.New(NewBotLogHandler(writer, &BotLogHandlerOptions{
		Silent: silent,
		Level:  level,
	}))
	slog.SetDefault(Logger)
}

// CloseLogger flushes and closes the log file, if any.
func CloseLogger() {
	logMu.Lock()
	defer logMu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

// --- Public Logging API ---

func LogInfo(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...))
}

func LogWarn(format string, v ...any) {
	slog.Warn(fmt.Sprintf(format, v...))
}

func LogError(format string, v ...any) {
	slog.Error(fmt.Sprintf(format, v...))
}

// LogFatal logs and panics so deferred cleanup in main still runs.
func LogFatal(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	slog.Log(context.Background(), LevelFatal, msg)
	panic(msg)
}

func LogDebug(format string, v ...any) {
	slog.Debug(fmt.Sprintf(format, v...))
}

// Component Loggers

func LogDatabase(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "database"))
}

func LogLoader(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "loader"))
}

func LogCatalog(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "catalog"))
}

func LogPlayer(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "player"))
}

func LogVoice(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "voice"))
}

func LogResolver(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "resolver"))
}

func LogPresence(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "presence"))
}

// --- Log Handler Implementation ---

type BotLogHandlerOptions struct {
	Silent bool
	Level  slog.Leveler
}

type BotLogHandler struct {
	w    io.Writer
	opts *BotLogHandlerOptions
	mu   *sync.Mutex
	now  func() time.Time
}

func NewBotLogHandler(w io.Writer, opts *BotLogHandlerOptions) *BotLogHandler {
	if opts == nil {
		opts = &BotLogHandlerOptions{Level: slog.LevelInfo}
	}
	return &BotLogHandler{
		w:    w,
		opts: opts,
		mu:   &sync.Mutex{},
		now:  time.Now,
	}
}

func (h *BotLogHandler) Enabled(_ context.Context, level slog.Level) bool {
	if h.opts.Silent {
		return false
	}
	return level >= h.opts.Level.Level()
}

func (h *BotLogHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.opts.Silent {
		return nil
	}

	levelStr, levelColor := levelLabel(r.Level)

	component := ""
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			component = strings.ToUpper(a.Value.String())
			return false
		}
		return true
	})

	fmt.Fprintf(h.w, "%s", h.now().Format(DefaultTimeFormat))

	if component != "" {
		if levelStr != "INFO" {
			fmt.Fprintf(h.w, " %s", levelColor.Sprintf("[%s]", levelStr))
		}
		fmt.Fprintf(h.w, " %s\n", colorizeWithResets(getComponentColor(component), fmt.Sprintf("[%s] %s", component, r.Message)))
		return nil
	}

	displayMsg := fmt.Sprintf("[%s] %s", levelStr, r.Message)
	if levelStr == "INFO" && strings.HasPrefix(r.Message, "[") {
		if idx := strings.Index(r.Message, "]"); idx > 0 && idx < 20 {
			displayMsg = r.Message
		}
	}
	fmt.Fprintf(h.w, " %s\n", colorizeWithResets(levelColor, displayMsg))
	return nil
}

func (h *BotLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }
func (h *BotLogHandler) WithGroup(name string) slog.Handler       { return h }

// --- Formatting Helpers ---

func levelLabel(l slog.Level) (string, *color.Color) {
	switch {
	case l >= LevelFatal:
		return "FATAL", fatalColor
	case l >= slog.LevelError:
		return "ERROR", errorColor
	case l >= slog.LevelWarn:
		return "WARN", warnColor
	case l >= slog.LevelInfo:
		return "INFO", infoColor
	default:
		return "DEBUG", infoColor
	}
}

func getComponentColor(name string) *color.Color {
	switch name {
	case "DATABASE":
		return databaseColor
	case "LOADER":
		return loaderColor
	case "CATALOG":
		return catalogColor
	case "PLAYER":
		return playerColor
	case "VOICE":
		return voiceColor
	case "RESOLVER":
		return resolverColor
	case "PRESENCE":
		return presenceColor
	default:
		return color.New(color.FgCyan)
	}
}

func colorizeWithResets(c *color.Color, text string) string {
	if !strings.Contains(text, "\x1b[0m") {
		return c.Sprint(text)
	}

	marker := "@@@MSG@@@"
	wrapped := c.Sprint(marker)
	idx := strings.Index(wrapped, marker)
	if idx <= 0 {
		return text
	}
	startSeq := wrapped[:idx]

	return c.Sprint(strings.ReplaceAll(text, "\x1b[0m", "\x1b[0m"+startSeq))
}

// --- ANSI Stripper ---

type StripANSIWriter struct {
	w  io.Writer
	re *regexp.Regexp
}

func NewStripANSIWriter(w io.Writer) *StripANSIWriter {
	return &StripANSIWriter{
		w:  w,
		re: regexp.MustCompile(`\x1b\[[0-9;]*m`),
	}
}

func (s *StripANSIWriter) Write(p []byte) (n int, err error) {
	_, err = s.w.Write(s.re.ReplaceAll(p, nil))
	return len(p), err
}

// --- Message Constants ---

const (
	// --- Infrastructure & Lifecycle ---
	MsgConfigFailedToLoad  = "Failed to load config: %v"
	MsgConfigMissingToken  = "DISCORD_TOKEN is not set and no --token was given"
	MsgDatabaseInitSuccess = "Database initialized successfully"
	MsgDatabaseTableError  = "failed to create table"
	MsgDatabasePragmaError = "failed to set pragma %s"
	MsgDaemonStarting      = "Starting..."
	MsgBotStarting         = "Starting %s..."
	MsgBotReady            = "%s is ready! (ID: %s) (PID: %d) (Took: %dms)"
	MsgBotShutdown         = "Shutting down %s..."
	MsgBotKillingOld       = "Killing running instance... (PID: %d)"
	MsgBotOldTerminated    = "Old instance terminated."
	MsgBotRegisterFail     = "Command registration failed: %v"
	MsgGenericError        = "%v"

	// --- Command Loader & Registry ---
	MsgLoaderSyncCommands   = "Syncing %s commands..."
	MsgLoaderUpToDate       = "Commands are up to date. (Hash: %s)"
	MsgLoaderCleanup        = "Removing commands from previous dev guild: %s"
	MsgLoaderRegistered     = "Registered /%s (%s)"
	MsgLoaderPanicRecovered = "Panic recovered in handler: %v"
	MsgLoaderCommandFailed  = "%s%s failed: %v"
	MsgLoaderDenied         = "%s tried %s%s without permission"

	// --- Catalog ---
	MsgCatalogLoaded       = "Loaded %d tracks from %s"
	MsgCatalogSaved        = "Saved catalog to %s"
	MsgCatalogSaveFail     = "Failed to save catalog: %v"
	MsgCatalogWarmupStart  = "Resolving metadata for %d tracks..."
	MsgCatalogWarmupFail   = "Could not resolve %s (%s): %v"
	MsgCatalogWarmupDone   = "Resolved %d/%d tracks"
	MsgCatalogTrackAdded   = "Added %s %s"
	MsgCatalogTrackRemoved = "Removed %s %s"

	// --- Player & Voice ---
	MsgPlayerGroupStarted = "Shuffling category %s"
	MsgPlayerNowPlaying   = "Now playing %s %s"
	MsgPlayerStopped      = "Shuffle stopped"
	MsgPlayerSinkError    = "Playback failed, stopping shuffle: %v"
	MsgVoiceJoining       = "Joining channel %s in guild %s"
	MsgVoiceJoinRetry     = "Join attempt %d failed: %v"
	MsgVoiceLeft          = "Left voice channel in guild %s"
	MsgVoiceDisconnected  = "Disconnected from voice in guild %s"
	MsgVoiceStreamFail    = "Stream of %s ended with error: %v"
	MsgVoicePanic         = "Recovered from panic in voice provider: %v"

	// --- Resolver ---
	MsgResolverSpotify     = "Spotify %s -> %s"
	MsgResolverFallback    = "Falling back to yt-dlp for %s: %v"
	MsgResolverCacheFail   = "Metadata cache write failed for %s: %v"
	MsgResolverSpotifyAuth = "Spotify credentials not set, using page metadata"

	// --- Presence ---
	MsgPresenceRotated    = "Status set to %q (next in %v)"
	MsgPresenceUpdateFail = "Failed to update status: %v"

	// --- User-facing ---
	ErrCommandInvalidCategory = "Invalid category."
	ErrCommandInvalidTrack    = "Invalid track."
	ErrCommandResolution      = "Could not find that track."
	ErrCommandNotInVoice      = "You are not connected to a voice channel."
	ErrCommandNotPlaying      = "Nothing is playing."
	ErrCommandUnauthorized    = "You are not allowed to do that."
	ErrCommandUsage           = "Usage: `%s%s`"
	ErrCommandInternal        = "Something went wrong."
	ErrCommandVolumeRange     = "Volume must be a whole number from 0 to %d."
	MsgCommandTrackAdded      = "Track \"%s\" (%s) added."
	MsgCommandTrackRemoved    = "Track \"%s\" (%s) removed."
	MsgCommandLeaving         = "Leaving the channel."
	MsgCommandStopped         = "Stopped playing."
	MsgCommandVolume          = "%s (%d%%)"
	MsgCommandSaved           = "Soundtracks saved."
	MsgCommandListHint        = "react %s to go home"
)
