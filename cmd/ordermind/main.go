package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/filotex/ordermind/pkg/agent"
	"github.com/filotex/ordermind/pkg/auth"
	"github.com/filotex/ordermind/pkg/chat"
	"github.com/filotex/ordermind/pkg/config"
	"github.com/filotex/ordermind/pkg/database"
	"github.com/filotex/ordermind/pkg/draft"
	"github.com/filotex/ordermind/pkg/erp"
	"github.com/filotex/ordermind/pkg/httpapi"
	"github.com/filotex/ordermind/pkg/planner"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		return runServe(stderr)
	}
	switch args[1] {
	case "serve", "server":
		return runServe(stderr)
	case "health":
		return runHealthCmd(stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Usage: ordermind [serve|health]\n")
		return 2
	}
}

func runServe(stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database open failed", "url", cfg.DatabaseURL, "error", err)
		return 1
	}
	defer db.Close()

	chats, err := chat.NewStore(db)
	if err != nil {
		logger.Error("chat store init failed", "error", err)
		return 1
	}
	drafts, err := draft.NewStore(db)
	if err != nil {
		logger.Error("draft store init failed", "error", err)
		return 1
	}
	audit, err := agent.NewAudit(db)
	if err != nil {
		logger.Error("audit store init failed", "error", err)
		return 1
	}
	registry, err := agent.NewRegistry()
	if err != nil {
		logger.Error("agent registry init failed", "error", err)
		return 1
	}

	erpClient := erp.NewClient(cfg.ERPBaseURL, cfg.ERPServiceToken, cfg.ERPTimeout, logger)
	toolset := agent.NewToolset(erpClient, drafts, logger)
	runner := agent.NewRunner(registry, toolset, chats, drafts, audit,
		func(model string) planner.Client {
			return planner.NewOpenAIClient(cfg.PlannerBaseURL, cfg.PlannerAPIKey, model)
		}, logger)

	sessions := auth.NewSessionStore()
	limiter := auth.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	api := httpapi.NewServer(registry, runner, chats, drafts, erpClient, sessions, limiter, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server.listening", "addr", srv.Addr, "database", cfg.DatabaseURL, "erp", cfg.ERPBaseURL)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("server.shutting_down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
			return 1
		}
		return 0
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			return 1
		}
		return 0
	}
}

func runHealthCmd(out, errOut io.Writer) int {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	resp, err := http.Get("http://localhost:" + port + "/health")
	if err != nil {
		fmt.Fprintf(errOut, "Health check failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(errOut, "Health check failed: status %d\n", resp.StatusCode)
		return 1
	}
	fmt.Fprintln(out, "OK")
	return 0
}
