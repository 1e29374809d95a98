package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/veldt-dev/veldt"
	"github.com/veldt-dev/veldt/internal/reload"
)

func serveCmd() *cobra.Command {
	var (
		addr      string
		template  string
		staticDir string
		dev       bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a base document with static assets",
		Long: `Serve a base HTML document and its static assets.

The document's <ssr-head> and <ssr-outlet> markers are removed and
the bootstrap scripts injected, so the result matches what an
application embedding the renderer would emit on its static
fallback path. In dev mode a live-reload endpoint is exposed and
reload registrations are injected into served stylesheets.

Examples:
  veldt serve
  veldt serve --addr=:8080 --static=./public
  veldt serve --dev`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addr, template, staticDir, dev)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", ":3000", "Address to listen on")
	cmd.Flags().StringVarP(&template, "template", "t", "index.html", "Base HTML document")
	cmd.Flags().StringVarP(&staticDir, "static", "s", "", "Static asset directory")
	cmd.Flags().BoolVarP(&dev, "dev", "d", false, "Enable dev mode with live reload")

	return cmd
}

func runServe(addr, template, staticDir string, dev bool) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if _, err := os.Stat(template); err != nil {
		return fmt.Errorf("base document %s: %w", template, err)
	}

	app := veldt.New(veldt.Config{
		Template: template,
		Static:   veldt.StaticConfig{Dir: staticDir},
		DevMode:  dev,
		Logger:   logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)
	mux.Handle("/metrics", promhttp.Handler())
	if dev {
		hub := reload.NewHub()
		mux.Handle("/.veldt/reload", hub)
		go watchAndNotify(ctx, hub, template, staticDir, logger)
	}
	mux.Handle("/*", app)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "dev", dev)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// watchInterval is the poll period for dev-mode change detection.
const watchInterval = 500 * time.Millisecond

// fileSnapshot maps watched file paths to their modification times.
type fileSnapshot map[string]time.Time

// takeSnapshot records the base document and every file under the
// static directory.
func takeSnapshot(template, staticDir string) fileSnapshot {
	snap := make(fileSnapshot)
	if info, err := os.Stat(template); err == nil {
		snap[template] = info.ModTime()
	}
	if staticDir == "" {
		return snap
	}
	filepath.WalkDir(staticDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			snap[p] = info.ModTime()
		}
		return nil
	})
	return snap
}

// diffSnapshot classifies changes between two snapshots. Changed
// stylesheets under the static directory are returned as site-root
// hrefs for targeted notifications; any other change or deletion forces
// a full reload.
func diffSnapshot(prev, cur fileSnapshot, staticDir string) (css []string, full bool) {
	for p, mt := range cur {
		old, seen := prev[p]
		if seen && mt.Equal(old) {
			continue
		}
		if staticDir != "" && strings.HasSuffix(p, ".css") {
			if rel, err := filepath.Rel(staticDir, p); err == nil && !strings.HasPrefix(rel, "..") {
				css = append(css, "/"+filepath.ToSlash(rel))
				continue
			}
		}
		full = true
	}
	for p := range prev {
		if _, seen := cur[p]; !seen {
			full = true
		}
	}
	return css, full
}

// watchAndNotify polls the watched files and pushes change events to
// connected browsers until the context is canceled.
func watchAndNotify(ctx context.Context, hub *reload.Hub, template, staticDir string, logger *slog.Logger) {
	prev := takeSnapshot(template, staticDir)
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		cur := takeSnapshot(template, staticDir)
		css, full := diffSnapshot(prev, cur, staticDir)
		prev = cur

		if full {
			logger.Debug("change detected, reloading browsers")
			hub.NotifyReload()
			continue
		}
		for _, href := range css {
			logger.Debug("stylesheet changed", "href", href)
			hub.NotifyCSS(href)
		}
	}
}
