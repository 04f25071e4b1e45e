package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"google.golang.org/api/option"

	"github.com/tartampluch/go-contactcal/internal/auth"
	"github.com/tartampluch/go-contactcal/internal/config"
	"github.com/tartampluch/go-contactcal/internal/engine"
	"github.com/tartampluch/go-contactcal/internal/feed"
	"github.com/tartampluch/go-contactcal/internal/server"
	"github.com/tartampluch/go-contactcal/internal/source"
	syncpkg "github.com/tartampluch/go-contactcal/internal/sync"
)

// main delegates to runMain so deferred cleanups (log file close) run before
// the process exits; os.Exit skips defers.
func main() {
	os.Exit(runMain())
}

func runMain() int {
	// Optional .env for CARDDAV_PASSWORD and friends.
	_ = godotenv.Load()

	app := &cli.App{
		Name:    config.AppName,
		Usage:   config.AppUsage,
		Version: config.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: config.FlagConfig, Usage: config.FlagDescConfig},
			&cli.BoolFlag{Name: config.FlagDebug, Usage: config.FlagDescDebug},
		},
		Before: func(c *cli.Context) error {
			logCloser := setupLogging(c.Bool(config.FlagDebug))
			if logCloser != nil {
				c.App.Metadata = map[string]any{"logCloser": logCloser}
			}
			logStartupInfo()
			return nil
		},
		After: func(c *cli.Context) error {
			if closer, ok := c.App.Metadata["logCloser"].(io.Closer); ok {
				_ = closer.Close()
			}
			return nil
		},
		Commands: []*cli.Command{
			authCommand(),
			runCommand(),
			syncCommand(),
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.RunContext(ctx, os.Args); err != nil {
		slog.Error(config.ErrAppFailed,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyError, err,
		)
		return config.ExitCodeError
	}

	slog.Info(config.MsgAppStop, config.LogKeyComponent, config.CompMain)
	return config.ExitCodeSuccess
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  config.CmdAuth,
		Usage: config.CmdDescAuth,
		Action: func(c *cli.Context) error {
			authenticator, err := auth.NewAuthenticator("")
			if err != nil {
				return err
			}
			return authenticator.Authorize(c.Context)
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  config.CmdRun,
		Usage: config.CmdDescRun,
		Action: func(c *cli.Context) error {
			return runApp(c.Context, c.String(config.FlagConfig), false)
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  config.CmdSync,
		Usage: config.CmdDescSync,
		Action: func(c *cli.Context) error {
			return runApp(c.Context, c.String(config.FlagConfig), true)
		},
	}
}

// runApp wires config, source, coordinators, and the feed server. In once
// mode it runs a single cycle per subentry and prints the upcoming events
// instead of serving them.
func runApp(ctx context.Context, configPath string, once bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	src, err := buildSource(ctx, cfg)
	if err != nil {
		return err
	}

	clock := engine.RealClock{}
	horizon := time.Duration(cfg.HorizonDays) * 24 * time.Hour

	names := make([]string, 0, len(cfg.Subentries))
	for _, sub := range cfg.Subentries {
		names = append(names, sub.Name)
	}
	feedServer := server.NewFeedServer(cfg.Listen, names)

	coordinators := make([]*syncpkg.Coordinator, 0, len(cfg.Subentries))
	for _, sub := range cfg.Subentries {
		coordinator, err := syncpkg.New(sub, src, clock)
		if err != nil {
			return err
		}

		name := sub.Name
		coordinator.OnSync(func() {
			publishFeed(feedServer, coordinator, name, clock, horizon)
		})
		coordinator.OnChange(func(delta engine.Delta) {
			slog.Info(config.MsgDeltaNotified,
				config.LogKeyComponent, config.CompMain,
				config.LogKeySubentry, name,
				config.LogKeyAdded, len(delta.Added),
				config.LogKeyRemoved, len(delta.Removed),
				config.LogKeyUpdated, len(delta.Updated))
		})
		coordinators = append(coordinators, coordinator)
	}

	if once {
		return syncOnce(ctx, coordinators, clock, horizon)
	}

	for _, coordinator := range coordinators {
		go func(c *syncpkg.Coordinator) {
			_ = c.Run(ctx)
		}(coordinator)
	}

	return feedServer.Start(ctx)
}

// publishFeed renders the coordinator's current window and swaps it into the
// server. Runs on the coordinator goroutine after each successful cycle.
func publishFeed(srv *server.FeedServer, c *syncpkg.Coordinator, name string, clock engine.Clock, horizon time.Duration) {
	now := clock.Now()
	events := c.EventsBetween(now, now.Add(horizon))
	data, err := feed.Build(name, events, now)
	if err != nil {
		slog.Error(config.ErrICalEncode,
			config.LogKeyComponent, config.CompMain,
			config.LogKeySubentry, name,
			config.LogKeyError, err)
		return
	}
	srv.Update(name, data)
}

func syncOnce(ctx context.Context, coordinators []*syncpkg.Coordinator, clock engine.Clock, horizon time.Duration) error {
	var firstErr error
	for _, coordinator := range coordinators {
		if err := coordinator.SyncOnce(ctx); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		now := clock.Now()
		for _, ev := range coordinator.EventsBetween(now, now.Add(horizon)) {
			fmt.Printf("%s  %s  %s\n",
				coordinator.Name(),
				ev.Date.Format(config.DateFormatFullDash),
				ev.Title)
		}
	}
	return firstErr
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", config.ErrConfigDir, err)
		}
		path = filepath.Join(base, config.AppID, config.ConfigFileName)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	slog.Info(config.MsgConfigLoaded,
		config.LogKeyComponent, config.CompConfig,
		config.LogKeyFile, path,
		config.LogKeyMode, cfg.Source.Mode,
		config.LogKeyCount, len(cfg.Subentries))
	return cfg, nil
}

// buildSource constructs the contact backend selected by the configuration.
func buildSource(ctx context.Context, cfg *config.Config) (source.ContactSource, error) {
	switch cfg.Source.Mode {
	case config.SourceModeGoogle:
		authenticator, err := auth.NewAuthenticator("")
		if err != nil {
			return nil, err
		}
		ts, err := authenticator.TokenSource(ctx)
		if err != nil {
			return nil, err
		}
		return source.NewGoogleSource(ctx, option.WithTokenSource(ts))

	case config.SourceModeCardDAV:
		password := cfg.Source.Password
		if env := os.Getenv("CARDDAV_PASSWORD"); env != "" {
			password = env
		}
		return source.NewCardDAVSource(cfg.Source.URL, cfg.Source.Username, password)

	case config.SourceModeLocal:
		return source.NewLocalSource(cfg.Source.Path), nil

	default:
		return nil, fmt.Errorf("%s: %q", config.ErrSourceMode, cfg.Source.Mode)
	}
}

// logStartupInfo logs environment details useful for debugging.
func logStartupInfo() {
	slog.Info(config.MsgAppStarting,
		config.LogKeyComponent, config.CompMain,
		slog.Group(config.LogKeyBuild,
			slog.String(config.LogKeyApp, config.AppName),
			slog.String(config.LogKeyVersion, config.Version),
			slog.String(config.LogKeyGoVer, runtime.Version()),
		),
		slog.Group(config.LogKeyEnv,
			slog.String(config.LogKeyOS, runtime.GOOS),
			slog.String(config.LogKeyArch, runtime.GOARCH),
			slog.Int(config.LogKeyPID, os.Getpid()),
		),
	)
}

// setupLogging configures the default slog logger: JSON to stdout, plus a
// per-run file in the user cache directory when available.
func setupLogging(debugMode bool) io.Closer {
	writers := []io.Writer{os.Stdout}
	var logFile *os.File

	if logPath, err := getLogFilePath(); err == nil {
		// O_TRUNC resets logs on restart to prevent indefinite growth.
		f, err := os.OpenFile(logPath, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, config.FilePermUserRW)
		if err == nil {
			writers = append(writers, f)
			logFile = f
		} else {
			fmt.Fprintf(os.Stderr, config.MsgLogWarning, config.ErrLogFile, logPath, err)
		}
	}

	level := slog.LevelInfo
	if debugMode {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: debugMode,
	}

	logger := slog.New(slog.NewJSONHandler(io.MultiWriter(writers...), opts))
	slog.SetDefault(logger)

	if logFile == nil {
		return nil
	}
	return logFile
}

// getLogFilePath determines the platform-specific cache directory for logs.
func getLogFilePath() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCacheDir, err)
	}

	appDir := filepath.Join(cacheDir, config.AppID)
	if err := os.MkdirAll(appDir, config.DirPermUserRWX); err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCreateDir, err)
	}

	return filepath.Join(appDir, config.LogFileName), nil
}
