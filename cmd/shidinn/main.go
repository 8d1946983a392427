// Command shidinn serves the hanzi_to_xdi8 tool to chat bots over MCP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/shidinn/internal/config"
	"github.com/MrWong99/shidinn/internal/health"
	"github.com/MrWong99/shidinn/internal/mcp"
	"github.com/MrWong99/shidinn/internal/mcp/mcphost"
	"github.com/MrWong99/shidinn/internal/mcp/tools/xdi8"
	"github.com/MrWong99/shidinn/internal/observe"
	"github.com/MrWong99/shidinn/internal/resilience"
	"github.com/MrWong99/shidinn/pkg/transcriber"
	"github.com/MrWong99/shidinn/pkg/transcriber/dict"
	"github.com/MrWong99/shidinn/pkg/transcriber/remote"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

// shutdownTimeout bounds the graceful HTTP shutdown.
const shutdownTimeout = 15 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "shidinn: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "shidinn: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// stdout carries the MCP stdio stream, so logs always go to stderr.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Server.LogLevel.Level()})))

	slog.Info("shidinn starting",
		"version", version,
		"config", *configPath,
		"log_level", cfg.Server.LogLevel,
		"mcp_transport", cfg.MCP.Transport,
		"transcriber", cfg.Transcriber.Kind,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Transcriber ───────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerTranscribers(reg)

	tr, err := reg.CreateTranscriber(ctx, cfg.Transcriber)
	if err != nil {
		slog.Error("failed to create transcriber", "err", err)
		return 1
	}
	if c, ok := tr.(io.Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				slog.Warn("transcriber close error", "err", err)
			}
		}()
	}

	// ── Tool host ─────────────────────────────────────────────────────────────
	translator, err := xdi8.New(tr,
		xdi8.WithZiSeparator(*cfg.Tool.ZiSeparator),
		xdi8.WithMetrics(metrics),
	)
	if err != nil {
		slog.Error("failed to create translator", "err", err)
		return 1
	}

	host := mcphost.New(mcphost.WithMetrics(metrics))
	defer host.Close()

	if err := host.Register(translator.Tool(newSelector(cfg.Tool))); err != nil {
		slog.Error("failed to register tool", "err", err)
		return 1
	}
	for _, def := range host.AvailableTools() {
		slog.Info("tool registered", "name", def.Name, "max_duration_ms", def.MaxDurationMs)
	}

	// ── Servers ───────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	var servers []*http.Server

	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", tel.MetricsHandler())
		health.New(health.Checker{
			Name: "transcriber",
			Check: func(ctx context.Context) error {
				_, err := tr.Transcribe(ctx, "你", transcriber.Options{ZiSeparator: *cfg.Tool.ZiSeparator})
				return err
			},
		}).Register(mux)

		srv := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		servers = append(servers, srv)
		g.Go(func() error { return listen(srv, "metrics") })
	}

	switch cfg.MCP.Transport {
	case mcp.TransportStdio:
		g.Go(func() error {
			// The client closing stdin ends the process.
			defer stop()
			return host.ServeStdio(gctx)
		})
	case mcp.TransportStreamableHTTP:
		srv := &http.Server{
			Addr:              cfg.MCP.ListenAddr,
			Handler:           observe.Middleware(metrics)(host.HTTPHandler()),
			ReadHeaderTimeout: 5 * time.Second,
		}
		servers = append(servers, srv)
		g.Go(func() error { return listen(srv, "mcp") })
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
			}
		}
		return errors.Join(errs...)
	})

	slog.Info("server ready, press Ctrl+C to shut down")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// registerTranscribers wires every built-in transcriber kind into reg.
func registerTranscribers(reg *config.Registry) {
	reg.RegisterTranscriber(config.TranscriberDict, func(_ context.Context, c config.TranscriberConfig) (transcriber.Transcriber, error) {
		d, err := dict.Load(c.Dictionary)
		if err != nil {
			return nil, err
		}
		slog.Info("dictionary loaded", "path", c.Dictionary, "entries", d.Len())
		return d, nil
	})
	reg.RegisterTranscriber(config.TranscriberRemote, func(ctx context.Context, c config.TranscriberConfig) (transcriber.Transcriber, error) {
		r, err := remote.Dial(ctx, remote.Config{
			Name:      c.Server.Name,
			Transport: c.Server.Transport,
			Command:   c.Server.Command,
			URL:       c.Server.URL,
			Env:       c.Server.Env,
			Tool:      c.Tool,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("remote transcriber connected", "server", c.Server.Name, "tool", c.Tool)

		chain := resilience.NewTranscriber(r, c.Server.Name, resilience.BreakerConfig{
			MaxFailures:  c.Breaker.MaxFailures,
			ResetTimeout: c.Breaker.ResetTimeout,
		})
		if c.FallbackDictionary != "" {
			d, err := dict.Load(c.FallbackDictionary)
			if err != nil {
				_ = r.Close()
				return nil, fmt.Errorf("fallback dictionary: %w", err)
			}
			chain.AddFallback("dict", d)
			slog.Info("fallback dictionary loaded", "path", c.FallbackDictionary, "entries", d.Len())
		}
		return chain, nil
	})
}

// newSelector builds the tool selector from the tool config block.
func newSelector(c config.ToolConfig) *xdi8.Selector {
	opts := []xdi8.SelectorOption{
		xdi8.WithHistoryWindow(c.HistoryWindow),
		xdi8.WithFuzzyThreshold(c.FuzzyThreshold),
	}
	if len(c.Keywords) > 0 {
		opts = append(opts, xdi8.WithKeywords(c.Keywords...))
	}
	return xdi8.NewSelector(opts...)
}

// listen runs srv until it is shut down.
func listen(srv *http.Server, name string) error {
	slog.Info("listening", "server", name, "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server: %w", name, err)
	}
	return nil
}
