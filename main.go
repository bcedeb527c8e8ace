// Command gcp-mcp is an MCP server exposing Google Cloud operations as
// tools: BigQuery querying and analysis, Cloud Storage, Compute Engine and
// Cloud Run listings, and project discovery.
//
// By default it speaks MCP over stdio for local clients. With -transport
// http it serves streamable HTTP with bearer token authentication.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gcptools/gcp-mcp/internal/config"
	"github.com/gcptools/gcp-mcp/internal/httpserver"
	"github.com/gcptools/gcp-mcp/server"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file; environment variables override it")
	transport := flag.String("transport", "stdio", `MCP transport: "stdio" or "http"`)
	flag.Parse()

	if err := run(*configPath, *transport); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, transport string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch transport {
	case "stdio":
		// Stdout carries the protocol; logs go to stderr as text.
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()}))
		slog.SetDefault(logger)
		return server.New(cfg).Run(ctx, &mcp.StdioTransport{})
	case "http":
		logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()}))
		slog.SetDefault(logger)
		hs, err := httpserver.New(cfg, logger, server.New(cfg))
		if err != nil {
			return err
		}
		return hs.Run(ctx)
	default:
		return fmt.Errorf("unknown transport %q: want stdio or http", transport)
	}
}
