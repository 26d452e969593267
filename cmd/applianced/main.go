package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/applianced/internal/config"
	"git.home.luguber.info/inful/applianced/internal/ledger"
	"git.home.luguber.info/inful/applianced/internal/registry"
	"git.home.luguber.info/inful/applianced/internal/service"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"applianced.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Serve struct{} `cmd:"" help:"Run the appliance ledger daemon"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Seed struct{} `cmd:"" help:"Create the database and register the configured states without serving"`
}

func main() {
	ctx := kong.Parse(&CLI)

	// Set up logging
	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	switch ctx.Command() {
	case "serve":
		if err := runServe(CLI.Config); err != nil {
			slog.Error("Daemon failed", "error", err)
			os.Exit(1)
		}
	case "init":
		if err := runInit(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", "error", err)
			os.Exit(1)
		}
	case "seed":
		if err := runSeed(CLI.Config); err != nil {
			slog.Error("Seed failed", "error", err)
			os.Exit(1)
		}
	}
}

func runServe(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, err := service.New(configPath)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- svc.Start(ctx)
	}()

	slog.Info("Daemon started, waiting for shutdown signal...")

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("daemon error: %w", err)
		}
		<-ctx.Done()
	case <-ctx.Done():
		slog.Info("Shutdown signal received, stopping daemon...")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := svc.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	slog.Info("Daemon stopped successfully")
	return nil
}

func runInit(configPath string, force bool) error {
	slog.Info("Initializing configuration", "path", configPath, "force", force)
	return config.Init(configPath, force)
}

// runSeed opens the database and registers the configured state list, so the
// schema and registry exist before the daemon first serves traffic.
func runSeed(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := ledger.Open(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("Failed to close ledger", "error", err)
		}
	}()

	reg := registry.New(store)
	initialized, err := reg.Initialized(context.Background())
	if err != nil {
		return err
	}
	if initialized {
		slog.Info("State registry already initialised, nothing to do")
		return nil
	}
	if err := reg.Register(context.Background(), cfg.States); err != nil {
		return err
	}
	slog.Info("State registry seeded", "states", len(cfg.States), "db", cfg.Storage.Path)
	return nil
}
