package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	mcpadapter "github.com/NotificacaoKnight/knight-agent-v3/internal/adapters/mcp"
	"github.com/NotificacaoKnight/knight-agent-v3/internal/bootstrap"
	"github.com/NotificacaoKnight/knight-agent-v3/internal/config"
	"github.com/NotificacaoKnight/knight-agent-v3/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	// Stdout carries the MCP protocol; structured logs go to stderr.
	logger := logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	server := mcpadapter.NewServer(app.Orchestrator, app.Cache, logger)
	if err := server.ServeStdio(); err != nil {
		logger.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
