package main

import (
	"net/http"
	"os"

	log15 "github.com/inconshreveable/log15/v3"

	"slackmirror/api"
	"slackmirror/config"
	"slackmirror/db"
	"slackmirror/scheduler"
	"slackmirror/slack"
	"slackmirror/syncer"
)

func main() {
	log := log15.New("module", "main")

	config.LoadEnv()
	cfg, err := config.Load()
	if err != nil {
		log.Crit("configuration invalid", "err", err)
		os.Exit(1)
	}

	gdb, err := db.Init(cfg.DatabaseURL)
	if err != nil {
		log.Crit("database init failed", "err", err)
		os.Exit(1)
	}
	store := db.NewStore(gdb)

	var progress syncer.ProgressStore = syncer.NewMemoryStore()
	if cfg.RedisURL != "" {
		progress, err = syncer.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Crit("redis init failed", "err", err)
			os.Exit(1)
		}
		log.Info("using redis progress store")
	}

	client := slack.NewClient(cfg.SlackToken, slack.Options{PageSize: cfg.PageSize})
	s := syncer.New(client, store, progress, syncer.Options{
		ChannelTypes: cfg.ChannelTypes,
		FetchThreads: cfg.FetchThreads,
		OldestTS:     cfg.OldestTS,
		LatestTS:     cfg.LatestTS,
	})

	selector := syncer.ParseSelector(cfg.Channels)
	if cfg.SyncCron != "" {
		if _, err := scheduler.Start(s, cfg.SyncCron, selector); err != nil {
			log.Crit("scheduler init failed", "err", err)
			os.Exit(1)
		}
	}

	srv := api.NewServer(client, s, progress, cfg.ChannelTypes, selector)
	router := SetupRouter(srv)

	log.Info("server running", "port", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Crit("server failed", "err", err)
		os.Exit(1)
	}
}
