// testserver starts a hostrunner API server against a simulated in-memory
// host for E2E testing.
// Usage: go run ./cmd/testserver
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/seantiz/hostrunner/internal/app"
	"github.com/seantiz/hostrunner/internal/config"
	"github.com/seantiz/hostrunner/internal/hostbridge"
)

const defaultLatency = 200 * time.Millisecond

func main() {
	cfg := config.Load()
	cfg.DBPath = ":memory:"
	cfg.BridgeURL = ""

	latency := defaultLatency
	if v := os.Getenv("HOSTRUNNER_SIM_LATENCY_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			latency = time.Duration(ms) * time.Millisecond
		}
	}

	logger := config.NewTextLogger(os.Stdout, cfg.LogLevel)
	host := hostbridge.NewSimulatedHost(latency)

	a, err := app.New(cfg, host, logger)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("testserver: starting", "addr", cfg.ListenAddr, "latency", latency)
	if err := a.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
