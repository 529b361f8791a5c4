package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"leetee/internal/config"
	"leetee/internal/content"
	"leetee/internal/handlers"
	"leetee/internal/i18n"
	"leetee/internal/logger"
	"leetee/internal/narration"
	"leetee/internal/sections"
	"leetee/internal/security"
	"leetee/internal/service"
	"leetee/internal/state"
	"leetee/internal/storage"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage. A failing backend is replaced by memory for the rest of the
	// process so learners can keep playing.
	backend, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backend.Close()
	kv := storage.NewResilient(backend.KV, log)

	// Word filter for free-text answers
	var filter sections.WordFilter = sections.NewStaticFilter()
	if backend.DB != nil {
		if cfg.SeedBadWords {
			if n, err := backend.DB.SeedBadWords(ctx, cfg.BadWordsURL); err != nil {
				log.Warn("failed to seed bad words filter", "error", err)
			} else if n > 0 {
				log.Info("bad words filter seeded", "words", n)
			}
		}
		filter = backend.DB
	} else {
		log.Warn("no database configured, free-text moderation uses an empty word list")
	}

	// Content
	sources := []content.Source{content.Embedded()}
	if cfg.ContentDir != "" {
		sources = append(sources, content.NewFSSource(cfg.ContentDir, os.DirFS(cfg.ContentDir)))
	}
	if cfg.ContentURL != "" {
		sources = append(sources, content.NewHTTPSource(cfg.ContentURL, nil))
	}
	catalog := content.NewCatalog(log, sources...)
	if _, err := catalog.Load(ctx); err != nil {
		return fmt.Errorf("load content: %w", err)
	}

	registry, err := sections.NewRegistry(log)
	if err != nil {
		return fmt.Errorf("load section templates: %w", err)
	}
	if err := registry.Validate(catalog.Episodes()...); err != nil {
		log.Warn("episodes use unknown section types, they will render a notice", "error", err)
	}

	// Narration
	tts := narration.NewGoogleTTS(cfg.AudioDir, log)
	if files, err := tts.Files(); err != nil {
		log.Warn("failed to read narration cache", "dir", cfg.AudioDir, "error", err)
	} else {
		log.Info("narration cache", "dir", cfg.AudioDir, "clips", len(files))
	}
	narrator := narration.NewManager(tts, log)
	defer narrator.StopAll()

	bundle := i18n.NewBundle(cfg.LocalesDir, log)
	player := service.NewPlayerService(
		catalog,
		state.New(kv, log, cfg.DefaultLanguage),
		registry,
		bundle,
		narrator,
		filter,
		service.PlayerConfig{
			DefaultLanguage:  cfg.DefaultLanguage,
			FallbackLanguage: cfg.FallbackLanguage,
			Namespaces:       cfg.Namespaces,
			ResetPINHash:     cfg.ResetPINHash,
		},
		log,
	)

	templates, err := handlers.LoadTemplates()
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}

	// Initialize handlers
	limiter := security.NewRateLimiter(cfg.RateLimit, cfg.RateWindow)
	defer limiter.Stop()
	middleware := handlers.NewMiddleware(security.NewCSRFGenerator(cfg.CSRFSecret), limiter, cfg.DeviceMaxAge, log)
	playerHandler := handlers.NewPlayerHandler(player, middleware, templates, log)

	handler := handlers.Routes(handlers.Handlers{
		Middleware: middleware,
		Player:     playerHandler,
		Narration:  handlers.NewNarrationHandler(player, tts, playerHandler, log),
		API:        handlers.NewAPIHandler(player, bundle, catalog, playerHandler, kv.Degraded, log),
		StaticDir:  cfg.StaticDir,
		Log:        log,
	})

	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting", "addr", "http://localhost"+addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
