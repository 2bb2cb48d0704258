package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/vietddude/stylelog"

	"github.com/novik133/NovaBar-sub002/internal/control"
	"github.com/novik133/NovaBar-sub002/internal/core/config"
	"github.com/novik133/NovaBar-sub002/internal/core/domain"
)

// The daemon hosts the reliability core and its status server. The real
// authority and connection managers are D-Bus front-ends that link the
// core as a library; this binary injects permissive stand-ins so the core
// can run, be observed and be driven in development.

type standaloneAuthority struct{}

func (standaloneAuthority) CheckAction(ctx context.Context, actionID string, allowInteraction bool) (domain.AuthResult, error) {
	return domain.Authorized, nil
}

func (standaloneAuthority) Available(ctx context.Context) bool { return true }

type standaloneManager struct{}

func (standaloneManager) RetryConnection(ctx context.Context, connectionID string) error { return nil }
func (standaloneManager) ActivateFallback(ctx context.Context, connectionID string) error {
	return nil
}
func (standaloneManager) ResetDevice(ctx context.Context, connectionID string) error    { return nil }
func (standaloneManager) RestartService(ctx context.Context, connectionID string) error { return nil }
func (standaloneManager) ClearConnectionCache(ctx context.Context, connectionID string) error {
	return nil
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	isDebug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			stylelog.InitDefault()
			slog.Error("Failed to load config", "error", err)
			os.Exit(1)
		}
		cfg = config.Default()
	}

	slogLevel := slog.LevelInfo
	if *isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}

	stylelog.InitDefault(
		&tint.Options{
			Level:      slogLevel,
			TimeFormat: time.RFC3339,
		})
	slog.Info("Logger initialized", "level", slogLevel.String())

	core, err := control.NewCore(
		control.FromApp(cfg),
		standaloneAuthority{},
		standaloneManager{},
		slog.Default(),
	)
	if err != nil {
		slog.Error("Failed to initialize core", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := core.Start(ctx); err != nil {
		slog.Error("Failed to start core", "error", err)
		os.Exit(1)
	}

	sig := <-sigChan
	slog.Info("Received signal, shutting down...", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := core.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Core stopped gracefully")
}
