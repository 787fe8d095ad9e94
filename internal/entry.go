// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/starford/hedgey/internal/api"
	"github.com/starford/hedgey/internal/desktop"
	"github.com/starford/hedgey/internal/inbox"
	"github.com/starford/hedgey/internal/mcpserver"
	"github.com/starford/hedgey/internal/storage"
	"github.com/starford/hedgey/internal/vfs"
)

// ErrDataDirBusy is returned when another process holds the data directory.
var ErrDataDirBusy = errors.New("data directory is in use by another process")

const lockFile = ".hedgey.lock"

func setup(opts []Option) (*Config, *slog.Logger, error) {
	app := &application{logOutput: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return app.config, logger, nil
}

// openDesktop locks the data directory and opens the session over it. The
// returned release closes the session and drops the lock.
func openDesktop(cfg *Config, logger *slog.Logger) (*desktop.Session, func(), error) {
	if err := os.MkdirAll(cfg.Data.Dir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}

	lock := flock.New(filepath.Join(cfg.Data.Dir, lockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, nil, fmt.Errorf("lock data dir: %w", err)
	}
	if !locked {
		return nil, nil, fmt.Errorf("%w: %s", ErrDataDirBusy, cfg.Data.Dir)
	}

	db, err := vfs.Open(cfg.Data.Path(cfg.Data.SQLite))
	if err != nil {
		_ = lock.Unlock()
		return nil, nil, fmt.Errorf("init database: %w", err)
	}

	d := cfg.Desktop
	sessOpts := []desktop.Option{
		desktop.WithLogger(logger),
		desktop.WithIterations(cfg.Data.Iterations),
		desktop.WithApps(cfg.Apps),
		desktop.WithDesktop(d.Width, d.Height),
		desktop.WithFrameRate(d.FrameRate),
		desktop.WithIconsThrottle(d.IconsThrottle),
		desktop.WithAutosave(d.Autosave),
		desktop.WithTwitchParent(d.TwitchParent),
		desktop.WithTerminal(d.Terminal.URL, commandEngine(d.Terminal.Command, logger)),
	}
	if d.IconCells != (IconCellConfig{}) {
		sessOpts = append(sessOpts, desktop.WithIconCells(d.IconCells.Width, d.IconCells.Height, d.IconCells.Padding))
	}
	if dir := cfg.Data.Path(cfg.Data.Downloads); dir != "" {
		downloads, err := storage.NewFS(dir)
		if err != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, nil, fmt.Errorf("init downloads: %w", err)
		}
		sessOpts = append(sessOpts, desktop.WithDownloads(downloads))
	}

	sess := desktop.New(db, sessOpts...)
	release := func() {
		if err := sess.Close(); err != nil {
			logger.Error("close session", slog.String("error", err.Error()))
		}
		if err := lock.Unlock(); err != nil {
			logger.Error("unlock data dir", slog.String("error", err.Error()))
		}
	}
	return sess, release, nil
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	cfg, logger, err := setup(opts)
	if err != nil {
		return err
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("data_dir", cfg.Data.Dir),
		slog.String("sqlite_path", cfg.Data.Path(cfg.Data.SQLite)),
		slog.String("inbox_dir", cfg.Data.Path(cfg.Data.Inbox)),
		slog.String("log_level", cfg.App.LogLevel.String()))

	sess, release, err := openDesktop(cfg, logger)
	if err != nil {
		return err
	}
	defer release()

	if err := sess.Boot(ctx); err != nil {
		return fmt.Errorf("boot desktop: %w", err)
	}

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", healthHandler)
	r.Get("/health/ready", healthHandler)

	// Mount API routes under /api.
	r.Mount("/api", api.NewRouter(sess, cfg.Auth.AuthEnabled(), cfg.Auth.Token))

	// MCP over streamable HTTP, behind the same auth as the API.
	mcpHandler := mcpserver.New(sess).HTTPHandler()
	r.With(api.AuthMiddleware(cfg.Auth.AuthEnabled(), cfg.Auth.Token)).Handle("/mcp", mcpHandler)

	// Streaming handlers end when baseCtx is cancelled at shutdown.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Import files dropped into the inbox directory.
	if dir := cfg.Data.Path(cfg.Data.Inbox); dir != "" {
		store, err := storage.NewFS(dir)
		if err != nil {
			return fmt.Errorf("init inbox: %w", err)
		}
		g.Go(func() error {
			return inbox.New(dir, store, sess, logger, 0).Run(gCtx)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")
		cancelBase()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the inbox watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the desktop tools over MCP stdio. Logs go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	cfg, logger, err := setup(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}

	sess, release, err := openDesktop(cfg, logger)
	if err != nil {
		return err
	}
	defer release()

	if err := sess.Boot(ctx); err != nil {
		return fmt.Errorf("boot desktop: %w", err)
	}

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(sess).ServeStdio()
}

// Prompt reads one secret line after showing label.
type Prompt func(label string) (string, error)

// ErrPassphraseMismatch is returned when the confirmation differs.
var ErrPassphraseMismatch = errors.New("passphrases do not match")

// ErrWrongPassphrase is returned when the current passphrase does not unlock the key.
var ErrWrongPassphrase = errors.New("wrong passphrase")

// ChangePassphrase protects the data key with a new passphrase, asking for
// the current one first when the key is already protected.
func ChangePassphrase(ctx context.Context, prompt Prompt, opts ...Option) error {
	cfg, logger, err := setup(append([]Option{WithLogOutput(io.Discard)}, opts...))
	if err != nil {
		return err
	}

	sess, release, err := openDesktop(cfg, logger)
	if err != nil {
		return err
	}
	defer release()

	keys := sess.Keys()
	st, err := keys.Status(ctx)
	if err != nil {
		return err
	}
	if st.Wrapped {
		current, err := prompt("Current passphrase: ")
		if err != nil {
			return err
		}
		ok, err := keys.Unlock(ctx, current)
		if err != nil {
			return err
		}
		if !ok {
			return ErrWrongPassphrase
		}
	}

	next, err := prompt("New passphrase: ")
	if err != nil {
		return err
	}
	confirm, err := prompt("Repeat passphrase: ")
	if err != nil {
		return err
	}
	if next != confirm {
		return ErrPassphraseMismatch
	}
	return keys.SetPassphrase(ctx, next)
}
