package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/voyagen/plutotv/internal/cache"
	"github.com/voyagen/plutotv/internal/config"
	"github.com/voyagen/plutotv/internal/fetcher"
	"github.com/voyagen/plutotv/internal/pluto"
	"github.com/voyagen/plutotv/internal/server"
	"github.com/voyagen/plutotv/internal/service"
	"github.com/voyagen/plutotv/internal/source"
	"github.com/voyagen/plutotv/internal/store"
	"gopkg.in/natefinch/lumberjack.v2"
)

var _ source.ChannelSource = (*pluto.Service)(nil)

func main() {
	configPath := flag.String("config", "", "Optional config file path (YAML); else use env DATABASE_URL")
	workers := flag.Int("workers", 2, "Number of sync queue workers (with REDIS_URL)")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if cfg.LogFile != "" {
		logFile := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		defer logFile.Close()
		log.SetOutput(io.MultiWriter(os.Stderr, logFile))
	}

	ctx := context.Background()

	if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}

	pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "db: %v\n", err)
		os.Exit(1)
	}
	defer pg.Close()

	// Connect to Redis if REDIS_URL is configured.
	var rds *cache.Redis
	var appStore store.Store = pg
	if cfg.RedisURL != "" {
		rds, err = cache.New(cfg.RedisURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "redis: %v\n", err)
			os.Exit(1)
		}
		defer rds.Close()

		if err := rds.Ping(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "redis ping: %v\n", err)
			os.Exit(1)
		}

		appStore = store.NewCachedStore(pg, rds)
		fmt.Fprintln(os.Stderr, "redis connected (caching and sync queue enabled)")
	} else {
		fmt.Fprintln(os.Stderr, "redis disabled (REDIS_URL not set); syncs run inline")
	}

	client := fetcher.NewClient(cfg.PlutoBaseURL, cfg.UserAgent, cfg.Timeout)
	registry := source.NewRegistry()
	for _, src := range []source.ChannelSource{
		pluto.New(pluto.WithClient(client), pluto.WithGuideChunkSize(cfg.GuideChunkSize)),
	} {
		if err := registry.Register(src); err != nil {
			fmt.Fprintf(os.Stderr, "register: %v\n", err)
			os.Exit(1)
		}
		if err := appStore.UpsertProvider(ctx, src.Info()); err != nil {
			fmt.Fprintf(os.Stderr, "provider %s: %v\n", src.Info().ID, err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	syncer := service.NewSyncer(appStore, registry, rds)
	if cfg.SyncEnabled {
		scheduler := service.NewScheduler(syncer, service.DefaultSchedulerInterval)
		go syncer.RunBackground(ctx, scheduler, *workers)
		fmt.Fprintln(os.Stderr, "scheduled sync enabled")
	} else if rds != nil {
		go syncer.RunBackground(ctx, nil, *workers)
	}

	srv := server.New(appStore, registry, syncer, cfg)
	if err := srv.ListenAndServe(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}
