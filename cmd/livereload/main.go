// Command livereload serves a directory and refreshes the browsers showing
// it whenever a file changes.
//
// Usage:
//
//	livereload -root ./site                 # watch and serve ./site
//	livereload -config livereload.yaml      # full configuration
//	livereload -root ./site -mcp-stdio      # also expose the MCP tools on stdio
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/livereload"
	"github.com/hazyhaar/livereload/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to livereload.yaml config file")
	root := flag.String("root", "", "directory to watch and serve (overrides config)")
	listen := flag.String("listen", "", "listen address (overrides config)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	noBrowser := flag.Bool("no-browser", false, "do not drive Chrome tabs even if configured")
	mcpStdio := flag.Bool("mcp-stdio", false, "serve the MCP tools on stdin/stdout")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *root, *listen, *noBrowser, *mcpStdio); err != nil {
		logger.Error("livereload: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, root, listen string, noBrowser, mcpStdio bool) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.LoadFile(configPath); err != nil {
			return err
		}
	}
	if root != "" {
		cfg.Root = root
	}
	if listen != "" {
		cfg.Listen = listen
	}

	var opts []livereload.Option
	if noBrowser {
		opts = append(opts, livereload.WithoutBrowser())
	}
	svc, err := livereload.New(cfg, logger, opts...)
	if err != nil {
		return err
	}
	defer svc.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(gctx) })
	if mcpStdio {
		g.Go(func() error {
			if err := svc.MCP().Run(gctx, &mcp.StdioTransport{}); err != nil && gctx.Err() == nil {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
