package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/media1take/Telegram-hosting/internal/composition/hubserver"
	"github.com/media1take/Telegram-hosting/internal/config"
	"github.com/media1take/Telegram-hosting/pkg/models"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	configPath := flag.String("config", "", "Path to config.yaml (optional)")
	sessionPath := flag.String("session", "", "Telegram session file (overrides config)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before config")
	flag.Parse()
	if *showVersion {
		fmt.Printf("tgvideohub version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		log.Fatalf("tgvideohub: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("tgvideohub: %v", err)
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}
	if *sessionPath != "" {
		cfg.Telegram.SessionPath = *sessionPath
	}

	app, err := hubserver.Build(cfg, models.VersionInfo{Version: version, Commit: commit, BuiltAt: buildDate})
	if err != nil {
		log.Fatalf("tgvideohub failed to initialize: %v", err)
	}
	defer func() { _ = app.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.Logger.Info("tgvideohub starting", "version", version, "commit", commit)
	if err := app.Server.Run(ctx); err != nil {
		app.Logger.Error("tgvideohub failed", "error", err.Error())
		stop()
		_ = app.Close()
		log.Fatalf("tgvideohub failed: %v", err)
	}
	app.Logger.Info("tgvideohub stopped")
}
