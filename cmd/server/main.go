// Package main is the entry point for the FileDesk server.
package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	iofs "io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CageChen/filedesk/internal/command"
	"github.com/CageChen/filedesk/internal/config"
	"github.com/CageChen/filedesk/internal/fs"
	"github.com/CageChen/filedesk/internal/handler"
	"github.com/CageChen/filedesk/internal/watcher"
	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const shutdownTimeout = 10 * time.Second

//go:embed web/*
var webFS embed.FS

func main() {
	// A missing .env is fine; real environment variables always win.
	_ = godotenv.Load()

	app := &cli.App{
		Name:    "filedesk",
		Usage:   "upload, browse and edit files with natural-language commands",
		Version: handler.Version,
		Flags:   serverFlags(),
		Action:  run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	applyFlags(c, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"mode":        cfg.Mode,
		"backend":     cfg.ActiveBackend(),
		"config":      cfg.GetConfigFilePath(),
		"uploads":     cfg.AbsUploadsDir(),
		"max_files":   cfg.Upload.MaxFiles,
		"max_file":    humanize.IBytes(uint64(cfg.Upload.MaxFileSize)),
		"llm":         cfg.LLM.Provider,
		"llm_model":   cfg.LLM.Model,
		"llm_timeout": cfg.LLM.Timeout.String(),
	}).Info("FileDesk starting")

	wsHandler := handler.NewWSHandler()

	backend, err := fs.New(ctx, cfg, fs.NewMemoryStore())
	if err != nil {
		return fmt.Errorf("failed to open %s backend: %w", cfg.ActiveBackend(), err)
	}

	// The local backend is watched so that changes made by other processes
	// reach browsers too. Other backends report their own mutations.
	var w *watcher.Watcher
	if local, ok := backend.(*fs.LocalFS); ok && cfg.Watch {
		w, err = startWatcher(local.Root(), wsHandler.OnFileChange)
		if err != nil {
			log.WithError(err).Warn("file watcher disabled")
			w = nil
		} else {
			defer func() { _ = w.Stop() }()
		}
	}
	if w == nil {
		backend = fs.WithEvents(backend, wsHandler.OnFileChange)
	}

	if cfg.LLM.APIKey == "" && cfg.LLM.Provider != "ollama" {
		log.Warn("no language model API key configured; commands will fail until one is set")
	}
	chatModel, err := command.NewChatModel(ctx, cfg.LLM)
	if err != nil {
		return err
	}
	resolver := command.NewResolver(chatModel, cfg.LLM.Timeout)
	dispatcher := command.NewDispatcher(backend)

	webContent, err := iofs.Sub(webFS, "web")
	if err != nil {
		return fmt.Errorf("failed to load web assets: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := handler.NewRouter(handler.Handlers{
		Files:    handler.NewFileHandler(backend, cfg.Upload),
		Commands: handler.NewCommandHandler(backend, resolver, dispatcher),
		System:   handler.NewSystemHandler(backend.Name()),
		WS:       wsHandler,
		UI:       http.FS(webContent),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Server listening at http://localhost:%d (UI at /ui/)", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func startWatcher(dir string, cb fs.Callback) (*watcher.Watcher, error) {
	w, err := watcher.New(dir)
	if err != nil {
		return nil, err
	}
	w.OnChange(cb)
	if err := w.Start(); err != nil {
		_ = w.Stop()
		return nil, err
	}
	return w, nil
}

func setupLogging(cfg *config.Config) error {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(level)

	switch cfg.LogFormat {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
