package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/DevRickLin/tpp-chat-filter/internal/conf"
	"github.com/DevRickLin/tpp-chat-filter/internal/mcp"
)

// This MCP server speaks JSON-RPC on stdio and relays tool calls to the
// filter daemon's HTTP API. Diagnostics go to stderr only.

const version = "v1.0.0"

func main() {
	_ = godotenv.Load()

	cfg, err := conf.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[filter-mcp] Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := mcp.NewClient(cfg.API.URL)
	server := mcp.NewToolServer(mcp.NewHandler(client), version)

	fmt.Fprintf(os.Stderr, "[filter-mcp] Serving tools for %s\n", cfg.API.URL)
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "[filter-mcp] Server error: %v\n", err)
		os.Exit(1)
	}
}
