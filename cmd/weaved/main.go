// Command weaved runs the weave server: fingerprint intake, keyword
// ranking, the placement instruction queue, and status reconciliation,
// all on a single SQLite database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/weave/audit"
	"github.com/hazyhaar/weave/dbopen"
	"github.com/hazyhaar/weave/matcher"
	"github.com/hazyhaar/weave/queue"
	"github.com/hazyhaar/weave/reconcile"
	"github.com/hazyhaar/weave/salience"
	"github.com/hazyhaar/weave/server"
	"github.com/hazyhaar/weave/track"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to YAML config file")
		newKeyOwner = flag.String("newkey", "", "provision an API key for this owner id, print it, and exit")
		keyLabel    = flag.String("label", "", "label for the key created with -newkey")
	)
	flag.Parse()

	if err := run(*configPath, *newKeyOwner, *keyLabel); err != nil {
		slog.Error("weaved failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, newKeyOwner, keyLabel string) error {
	cfg, err := server.LoadConfig(configPath)
	if err != nil {
		return err
	}

	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := dbopen.Open(cfg.DBPath,
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(track.Schema),
		dbopen.WithSchema(queue.Schema),
		dbopen.WithSchema(audit.Schema),
		dbopen.WithSchema(reconcile.OpportunitySchema),
		dbopen.WithSchema(server.KeySchema))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	keys := server.NewKeyStore(db)

	if newKeyOwner != "" {
		key, err := keys.Create(ctx, newKeyOwner, keyLabel)
		if err != nil {
			return fmt.Errorf("provision key: %w", err)
		}
		// The only time the plaintext key exists. Print it and stop.
		fmt.Println(key)
		return nil
	}

	var extractor salience.Extractor
	if cfg.Anthropic.APIKey != "" {
		var opts []salience.ClaudeOption
		if cfg.Anthropic.Model != "" {
			opts = append(opts, salience.WithModel(cfg.Anthropic.Model))
		}
		extractor = salience.NewClaudeExtractor(cfg.Anthropic.APIKey, opts...)
		logger.Info("semantic keyword extraction enabled", "model", cfg.Anthropic.Model)
	} else {
		logger.Info("semantic keyword extraction disabled, heuristic ranking only")
	}
	engine := salience.New(salience.Options{Logger: logger}, extractor)

	var notifier matcher.Notifier
	if cfg.MatcherEndpoint != "" {
		notifier = matcher.NewWebhook(cfg.MatcherEndpoint, nil)
		logger.Info("matcher notifications enabled", "endpoint", cfg.MatcherEndpoint)
	}

	contentStore := track.NewStore(db)
	tracker := track.NewTracker(contentStore, engine, notifier, track.WithLogger(logger))
	q := queue.New(db)
	auditLog := audit.NewLogger(db)
	opps := reconcile.NewOpportunityStore(db)
	rec := reconcile.New(q, opps, contentStore, auditLog, logger)

	s := server.New(cfg, server.Deps{
		Keys:       keys,
		Tracker:    tracker,
		Content:    contentStore,
		Queue:      q,
		Reconciler: rec,
		Audit:      auditLog,
		Logger:     logger,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Addr, "db", cfg.DBPath)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
