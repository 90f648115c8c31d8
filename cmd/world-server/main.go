package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"undercity/internal/config"
	"undercity/internal/logging"
	"undercity/internal/sim"
	"undercity/internal/store"
)

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatal().Err(err).Msg("load server config failed")
	}
	tuning, err := config.LoadTuning(cfg.TuningPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.TuningPath).Msg("load tuning failed")
	}

	var st *store.Store
	var persist sim.Persister
	if cfg.PersistEnabled {
		if cfg.PostgresDSN == "" {
			log.Fatal().Msg("POSTGRES_DSN is required when PERSIST_ENABLED=true")
		}
		st, err = store.New(cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("store init failed")
		}
		if err := st.Ping(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("db ping failed")
		}
		p := store.NewPersister(st)
		defer p.Close()
		persist = p
	} else {
		log.Warn().Msg("persistence disabled; world state will not survive restarts")
	}

	world := sim.NewWorld(tuning, cfg.WorldSeed, persist)
	if st != nil {
		snap, err := st.LatestSnapshot(context.Background())
		switch {
		case err == nil:
			world.RestoreSnapshot(snap)
			log.Info().Int64("tick", int64(snap.Tick)).Msg("world restored from snapshot")
		case errors.Is(err, store.ErrNotFound):
			log.Info().Msg("no snapshot found; starting fresh world")
		default:
			log.Fatal().Err(err).Msg("load snapshot failed")
		}
	}

	runner := sim.NewRunner(world, time.Duration(cfg.TickIntervalMs)*time.Millisecond)
	runner.Start(context.Background())
	defer runner.Stop()

	r := newRouter(world, runner, st, cfg)
	logRoutes(r)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
	log.Fatal().Err(server.ListenAndServe()).Msg("server stopped")
}
