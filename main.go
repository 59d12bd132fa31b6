package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/leeineian/soundtrack/home"
	"github.com/leeineian/soundtrack/ost"
	"github.com/leeineian/soundtrack/proc"
	"github.com/leeineian/soundtrack/sys"
)

const pidFile = ".bot.pid"

var (
	app         = kingpin.New("soundtrack", "Categorized soundtrack bot for Discord voice channels")
	urlsFile    = app.Flag("urls", "File with KEY:url lines to load at startup").Short('f').String()
	tokenFlag   = app.Flag("token", "Bot token, or a file holding it on its first line").Short('t').String()
	configPath  = app.Flag("config", "Categories and tuning YAML (built-in defaults when empty)").String()
	soundtracks = app.Flag("soundtracks", "Directory saved catalogs are written to").Default(ost.DefaultDir).String()
	silent      = app.Flag("silent", "Disable all log output").Bool()
	skipReg     = app.Flag("skip-reg", "Skip slash command registration").Bool()
)

func main() {
	// LogFatal panics so the defers below still run.
	defer func() {
		if r := recover(); r != nil {
			if msg, ok := r.(string); ok {
				fmt.Fprintf(os.Stderr, "\n[FATAL] %s\n", msg)
				os.Exit(1)
			}
			panic(r)
		}
	}()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := sys.LoadConfig(*tokenFlag)
	if err != nil {
		sys.LogFatal(sys.MsgConfigFailedToLoad, err)
	}
	sys.InitLogger(*silent || cfg.Silent, cfg.LogFile)
	defer sys.CloseLogger()

	release := lockProcess()
	defer release()

	if err := run(cfg); err != nil {
		sys.LogFatal(sys.MsgGenericError, err)
	}
}

// lockProcess takes an exclusive lock on the PID file, terminating an older
// instance that still holds it.
func lockProcess() func() {
	f, err := os.OpenFile(pidFile, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		sys.LogFatal("Failed to open PID file: %v", err)
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		err = syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			break
		}
		if err != syscall.EWOULDBLOCK {
			sys.LogFatal("Failed to lock PID file: %v", err)
		}

		var oldPid int
		_, _ = f.Seek(0, 0)
		if _, scanErr := fmt.Fscanf(f, "%d", &oldPid); scanErr != nil || oldPid == os.Getpid() {
			<-ticker.C
			continue
		}

		process, procErr := os.FindProcess(oldPid)
		if procErr != nil {
			<-ticker.C
			continue
		}

		sys.LogInfo(sys.MsgBotKillingOld, oldPid)
		_ = process.Signal(syscall.SIGTERM)
		if !waitExit(process, ticker, 5*time.Second) {
			sys.LogWarn("Old process %d is stubborn. Sending SIGKILL...", oldPid)
			_ = process.Signal(syscall.SIGKILL)
			waitExit(process, ticker, 2*time.Second)
		}
		sys.LogInfo(sys.MsgBotOldTerminated)
	}

	_ = f.Truncate(0)
	_, _ = f.Seek(0, 0)
	_, _ = fmt.Fprintf(f, "%d", os.Getpid())
	_ = f.Sync()

	return func() {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = f.Close()
		_ = os.Remove(pidFile)
	}
}

func waitExit(process *os.Process, ticker *time.Ticker, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		select {
		case <-ticker.C:
			if err := process.Signal(syscall.Signal(0)); err != nil {
				return true
			}
		case <-deadline:
			return false
		}
	}
}

func run(cfg *sys.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sys.LogInfo(sys.MsgBotStarting, app.Name)

	db, err := sys.InitDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	botCfg, err := sys.LoadBotConfig(*configPath)
	if err != nil {
		return err
	}
	categories, err := botCfg.CategorySet()
	if err != nil {
		return err
	}

	resolver := proc.NewResolver(
		proc.WithMetadataCache(db),
		proc.WithSpotify(proc.NewSpotifyClient(ctx, cfg.SpotifyClientID, cfg.SpotifyClientSecret)),
		proc.WithProxy(cfg.YoutubeProxy),
	)

	catalog := ost.NewCatalog(categories, resolver)
	if *urlsFile != "" {
		n, err := catalog.LoadFile(*urlsFile)
		if err != nil {
			return err
		}
		sys.LogCatalog(sys.MsgCatalogLoaded, n, *urlsFile)
	}

	access := sys.NewAccessList(cfg.OwnerIDs)
	loader := sys.NewLoader(ctx, cfg.Prefix, access, db)
	client, err := loader.CreateClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create Discord client: %w", err)
	}
	defer client.Close(context.Background())

	sink := proc.NewVoiceSink(client, resolver, db.LoadVolume(ctx, botCfg.Playback.DefaultVolume))
	player := proc.NewPlayer(catalog, sink,
		proc.WithVolumeStore(db),
		proc.WithPollInterval(botCfg.Playback.PollInterval),
	)
	sys.SafeGo(func() { player.Run(ctx) })

	home.Register(home.Deps{
		Loader:  loader,
		Catalog: catalog,
		Player:  player,
		Voice:   sink,
		Access:  access,
		List:    botCfg.List,
		Dir:     *soundtracks,
	})

	warmup := proc.NewWarmup(catalog, resolver, botCfg.Warmup, *soundtracks)
	loader.RegisterDaemon(sys.LogCatalog, warmup.Start)

	presence := proc.NewPresence(player, catalog, cfg.Prefix)
	loader.OnClientReady(presence.SetClient)
	loader.RegisterDaemon(sys.LogPresence, presence.Start)

	if !*skipReg {
		if err := loader.RegisterCommands(ctx, client, cfg.GuildID); err != nil {
			sys.LogError(sys.MsgBotRegisterFail, err)
		}
	}

	if err := client.OpenGateway(ctx); err != nil {
		return fmt.Errorf("failed to open gateway: %w", err)
	}

	<-ctx.Done()
	if !*silent {
		fmt.Println()
	}

	loader.ShutdownDaemons()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = player.Leave(shutdownCtx)

	if self, ok := client.Caches.SelfUser(); ok {
		sys.LogInfo(sys.MsgBotShutdown, self.Username)
	} else {
		sys.LogInfo(sys.MsgBotShutdown, app.Name)
	}
	return nil
}
