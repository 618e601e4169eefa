package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-theft-craft/voxel/internal/config"
	"github.com/go-theft-craft/voxel/internal/server"
)

func main() {
	cfg := config.Default()

	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Int64Var(&cfg.World.Seed, "seed", cfg.World.Seed, "world seed")
	flag.StringVar(&cfg.Server.Listen, "listen", cfg.Server.Listen, "relay listen address")
	flag.StringVar(&cfg.Server.DataDir, "data", cfg.Server.DataDir, "data directory")
	flag.StringVar(&cfg.Server.LogLevel, "log-level", cfg.Server.LogLevel, "debug, info, warn or error")
	flag.IntVar(&cfg.Server.MaxPeers, "max-peers", cfg.Server.MaxPeers, "maximum connected peers")
	flag.Parse()

	explicit := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fromFile, err := server.LoadConfig(*configPath, cfg.Server.DataDir)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	config.Merge(cfg, fromFile, explicit)

	level, err := config.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		slog.Error("parse log level", "error", err)
		os.Exit(1)
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv, err := server.New(cfg, log)
	if err != nil {
		log.Error("create server", "error", err)
		os.Exit(1)
	}
	if err := srv.Start(ctx); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
