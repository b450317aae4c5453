package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mattjoyce/feedbackd/internal/api"
	"github.com/mattjoyce/feedbackd/internal/config"
	"github.com/mattjoyce/feedbackd/internal/dispatch"
	"github.com/mattjoyce/feedbackd/internal/events"
	"github.com/mattjoyce/feedbackd/internal/feedbacks"
	"github.com/mattjoyce/feedbackd/internal/hooks"
	"github.com/mattjoyce/feedbackd/internal/journal"
	"github.com/mattjoyce/feedbackd/internal/lock"
	"github.com/mattjoyce/feedbackd/internal/log"
	"github.com/mattjoyce/feedbackd/internal/plugin"
	"github.com/mattjoyce/feedbackd/internal/protocol"
	"github.com/mattjoyce/feedbackd/internal/storage"
	"github.com/mattjoyce/feedbackd/internal/udp"
)

const (
	pruneInterval   = time.Hour
	shutdownTimeout = 5 * time.Second
)

// loadConfig loads the config at path, or discovers one. When nothing is
// found and no path was given, defaults are used.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		discovered, err := config.Discover()
		if err != nil {
			return config.Defaults(), nil
		}
		path = discovered
	}
	return config.Load(path)
}

// buildRegistry registers the compiled-in feedbacks and discovers process
// feedbacks under the configured dirs.
func buildRegistry(cfg *config.Config, logger *slog.Logger) (*plugin.Registry, error) {
	reg := plugin.NewRegistry()
	if err := feedbacks.RegisterBuiltins(reg); err != nil {
		return nil, fmt.Errorf("register built-in feedbacks: %w", err)
	}
	if _, err := plugin.Discover(reg, cfg.Feedbacks.Dirs, logger); err != nil {
		return nil, fmt.Errorf("discover feedbacks: %w", err)
	}
	return reg, nil
}

// defaultFactory builds the configured default feedback, falling back to
// a no-op when it cannot be resolved.
func defaultFactory(reg *plugin.Registry, name string, logger *slog.Logger) func() plugin.Plugin {
	return func() plugin.Plugin {
		p, err := reg.Resolve(name)
		if err != nil {
			logger.Error("unable to build default feedback, using noop", "feedback", name, "error", err)
			return plugin.NewNoop()
		}
		return p
	}
}

func listenPort(listen string) (int, error) {
	_, port, err := net.SplitHostPort(listen)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(port)
}

func lockDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}
	return os.TempDir()
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("feedbackd starting", "version", version, "config", cfg.SourcePath)

	var fingerprint string
	if cfg.SourcePath != "" {
		if fingerprint, err = config.Fingerprint(cfg); err != nil {
			logger.Warn("unable to fingerprint config", "error", err)
		} else {
			logger.Info("config fingerprint", "blake3", fingerprint)
		}
	} else {
		logger.Info("no config file found, using defaults")
	}

	port, err := listenPort(cfg.Network.Listen)
	if err != nil {
		logger.Error("invalid listen address", "listen", cfg.Network.Listen, "error", err)
		return 1
	}
	pidLockPath := lock.PathForPort(lockDir(), port)
	pidLock, err := lock.AcquirePIDLock(pidLockPath)
	if err != nil {
		logger.Error("failed to acquire PID lock (another controller may own this port)", "path", pidLockPath, "error", err)
		return 1
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", pidLockPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := events.NewHub(256)

	registry, err := buildRegistry(cfg, log.WithComponent("plugin"))
	if err != nil {
		logger.Error("feedback registry setup failed", "error", err)
		return 1
	}
	logger.Info("feedback discovery complete", "count", len(registry.All()), "dirs", cfg.Feedbacks.Dirs)

	hookLogger := log.WithComponent("hooks")
	hookLoader := hooks.NewLoader(hookLogger)
	hooks.RegisterBuiltins(hookLoader, hookLogger, hub)
	hookSet, err := hookLoader.Load(cfg.Hooks.Module)
	if err != nil {
		// Hooks that did install stay installed.
		logger.Warn("hook injection incomplete", "module", cfg.Hooks.Module, "error", err)
	}

	var (
		recorder dispatch.Recorder
		reader   api.JournalReader
	)
	if cfg.Journal.Enabled {
		db, err := storage.OpenSQLite(ctx, cfg.Journal.Path)
		if err != nil {
			logger.Error("failed to open journal", "path", cfg.Journal.Path, "error", err)
			return 1
		}
		defer db.Close()
		store := journal.NewStore(db)
		recorder, reader = store, store
		logger.Info("journal opened", "path", cfg.Journal.Path, "retention", cfg.Journal.Retention)
		if cfg.Journal.Retention > 0 {
			go pruneJournal(ctx, store, cfg.Journal.Retention, log.WithComponent("journal"))
		}
	}

	codec := protocol.JSONCodec{}
	disp, err := dispatch.New(dispatch.Options{
		Codec:       codec,
		Loader:      registry,
		Hooks:       hookSet,
		Replier:     udp.NewReplier(codec, cfg.Network.ReplyPort, log.WithComponent("udp")),
		Events:      hub,
		Journal:     recorder,
		Default:     defaultFactory(registry, cfg.Feedbacks.Default, logger),
		DefaultName: cfg.Feedbacks.Default,
		Logger:      log.WithComponent("dispatch"),
	})
	if err != nil {
		logger.Error("failed to create dispatcher", "error", err)
		return 1
	}

	listener, err := udp.Listen(cfg.Network.Listen, cfg.Network.BufferSize, disp, log.WithComponent("udp"))
	if err != nil {
		logger.Error("failed to bind UDP listener", "listen", cfg.Network.Listen, "error", err)
		return 1
	}
	logger.Info("listening for signals", "addr", listener.Addr().String(), "reply_port", cfg.Network.ReplyPort)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 3)
	execDone := make(chan struct{})

	go func() {
		defer close(execDone)
		if err := dispatch.NewExecutor(disp).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("executor: %w", err)
		}
	}()

	go func() {
		if err := listener.Serve(ctx); err != nil {
			errCh <- fmt.Errorf("listener: %w", err)
		}
	}()

	if cfg.API.Enabled {
		apiServer := api.New(api.Config{
			Listen:      cfg.API.Listen,
			APIKey:      cfg.API.APIKey,
			Fingerprint: fingerprint,
		}, disp, registry, reader, hub, log.WithComponent("api"))
		go func() {
			if err := apiServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("api: %w", err)
			}
		}()
		logger.Info("API server enabled", "listen", cfg.API.Listen)
	}

	logger.Info("feedbackd running (press Ctrl+C to stop)")

	exitCode := 0
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		exitCode = 1
	}

	cancel()
	disp.Shutdown()
	select {
	case <-execDone:
	case <-time.After(shutdownTimeout):
		logger.Warn("play did not return before shutdown timeout")
	}

	logger.Info("feedbackd stopped")
	return exitCode
}

// pruneJournal deletes entries older than retention, once at start and
// then every pruneInterval.
func pruneJournal(ctx context.Context, store *journal.Store, retention time.Duration, logger *slog.Logger) {
	prune := func() {
		n, err := store.Prune(ctx, time.Now().Add(-retention))
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("journal prune failed", "error", err)
			}
			return
		}
		if n > 0 {
			logger.Info("journal pruned", "deleted", n)
		}
	}

	prune()
	t := time.NewTicker(pruneInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			prune()
		}
	}
}
