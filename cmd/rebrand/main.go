// Command rebrand rewrites a web page's marketing copy for a different
// product. It runs in three modes: one-shot over a local HTML file
// (-html), one-shot over a live page (-url), or as a daemon (-serve)
// exposing the HTTP API and optionally MCP over stdio (-mcp).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/rebrand"
	"github.com/hazyhaar/rebrand/browser"
	"github.com/hazyhaar/rebrand/complete"
	"github.com/hazyhaar/rebrand/dom"
	"github.com/hazyhaar/rebrand/store"
)

func main() {
	var (
		configPath = flag.String("config", env("REBRAND_CONFIG", ""), "path to YAML config")
		serve      = flag.Bool("serve", false, "run the HTTP daemon")
		mcpStdio   = flag.Bool("mcp", false, "serve MCP over stdio (implies no HTTP)")
		htmlPath   = flag.String("html", "", "transform a local HTML file and print the result")
		pageURL    = flag.String("url", "", "transform a live page in the browser")
		title      = flag.String("title", "", "product name to rebrand toward")
		desc       = flag.String("desc", "", "what the product does")
		tone       = flag.String("tone", "", "writing tone")
		logLevel   = flag.String("log-level", "", "debug, info, warn or error (overrides config)")
	)
	flag.Parse()

	cfg, err := rebrand.LoadConfig(*configPath)
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
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
	// Stdout carries the transformed HTML in one-shot mode and the MCP
	// stream in stdio mode, so logs go to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(cfg.StorePath, logger)
	if err != nil {
		slog.Error("store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	credential := resolveCredential(ctx, st)
	var chat complete.Chatter
	if credential != "" {
		cc := cfg.CompletionConfig(credential)
		cc.Logger = logger
		chat = complete.New(cc)
	} else {
		slog.Info("no completion credential, using local fallback planning")
	}

	opts := cfg.SessionOptions()
	opts.Chat = chat
	opts.Store = st
	opts.Logger = logger

	switch {
	case *htmlPath != "":
		if err := runOffline(ctx, *htmlPath, opts, input(*title, *desc, *tone)); err != nil {
			slog.Error("transform", "error", err)
			os.Exit(1)
		}
	case *pageURL != "" && !*serve && !*mcpStdio:
		if err := runLive(ctx, cfg, *pageURL, opts, input(*title, *desc, *tone)); err != nil {
			slog.Error("transform", "error", err)
			os.Exit(1)
		}
	case *serve || *mcpStdio:
		if err := runDaemon(ctx, cfg, st, opts, *serve, *mcpStdio); err != nil {
			slog.Error("daemon", "error", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "nothing to do: pass -html, -url, -serve or -mcp")
		flag.Usage()
		os.Exit(2)
	}
}

func input(title, desc, tone string) rebrand.ProductInput {
	return rebrand.ProductInput{Title: title, Description: desc, Tone: tone}
}

// runOffline transforms a local file in the mirror only and prints the
// rewritten HTML to stdout.
func runOffline(ctx context.Context, path string, opts rebrand.Options, in rebrand.ProductInput) error {
	if in.Title == "" {
		return errors.New("-title is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	doc, err := dom.ParseString(string(data), "file://"+path)
	if err != nil {
		return err
	}

	s := rebrand.NewSession(doc, opts)
	sum, err := s.AnalyzeAndTransform(ctx, in)
	if err != nil {
		return err
	}
	slog.Info("transformed", "elements", sum.Transformed, "skipped", sum.Skipped, "failed", sum.Failed)
	return doc.Render(os.Stdout)
}

// runLive opens the page in a browser, transforms it, and keeps watching
// until interrupted.
func runLive(ctx context.Context, cfg *rebrand.Config, pageURL string, opts rebrand.Options, in rebrand.ProductInput) error {
	if in.Title == "" {
		return errors.New("-title is required")
	}
	mgr := browser.NewManager(browserConfig(cfg))
	if _, err := mgr.Start(ctx); err != nil {
		return err
	}
	defer mgr.Close()

	s, page, err := rebrand.Attach(ctx, mgr, pageURL, opts)
	if err != nil {
		return err
	}
	defer page.Close()

	sum, err := s.AnalyzeAndTransform(ctx, in)
	if err != nil {
		return err
	}
	slog.Info("transformed, watching for new content", "elements", sum.Transformed)

	<-ctx.Done()
	return s.Reset(context.WithoutCancel(ctx))
}

// runDaemon serves the HTTP API and, when asked, MCP over stdio. The
// browser launches on the first transform that names a URL.
func runDaemon(ctx context.Context, cfg *rebrand.Config, st *store.Store, opts rebrand.Options, serveHTTP, mcpStdio bool) error {
	var (
		mgrOnce sync.Once
		mgr     *browser.Manager
		mgrErr  error
	)
	startBrowser := func(ctx context.Context) (*browser.Manager, error) {
		mgrOnce.Do(func() {
			mgr = browser.NewManager(browserConfig(cfg))
			_, mgrErr = mgr.Start(ctx)
		})
		return mgr, mgrErr
	}
	defer func() {
		if mgr != nil {
			mgr.Close()
		}
	}()

	factory := func(ctx context.Context, pageURL string) (*rebrand.Session, error) {
		m, err := startBrowser(ctx)
		if err != nil {
			return nil, fmt.Errorf("start browser: %w", err)
		}
		s, _, err := rebrand.Attach(ctx, m, pageURL, opts)
		return s, err
	}

	api := rebrand.NewServer(factory, st, slog.Default())

	if mcpStdio {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "rebrand",
			Version: "1.0.0",
		}, nil)
		api.RegisterMCP(mcpSrv)
		slog.Info("MCP stdio starting")
		return mcpSrv.Run(ctx, &mcp.StdioTransport{})
	}
	if !serveHTTP {
		return nil
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func browserConfig(cfg *rebrand.Config) browser.Config {
	headless := true
	if cfg.Browser.Headless != nil {
		headless = *cfg.Browser.Headless
	}
	return browser.Config{
		RemoteURL: cfg.Browser.Remote,
		Headless:  headless,
		Stealth:   cfg.Browser.Stealth,
		Logger:    slog.Default(),
	}
}

// resolveCredential reads the completion credential from the environment
// first, then from the sealed store entry. It is passed around by value
// and never logged or written back.
func resolveCredential(ctx context.Context, st *store.Store) string {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		return v
	}
	cred, err := st.OpenCredential(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNoCredential) {
			slog.Warn("stored credential unreadable", "error", err)
		}
		return ""
	}
	return cred
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
