package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	_ "go.uber.org/automaxprocs"
)

func main() {
	if len(os.Args) > 1 && runCLI(os.Args[1:]) {
		return
	}

	bootLog := newLogger("info", "json")

	cfg, err := loadConfig(os.Args[1:], &bootLog)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := newLogger(cfg.LogLevel, cfg.LogFormat)
	cfg.logFields(log)

	core := newCore(cfg)

	ep, err := newEndpoint(cfg.Addr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Addr).Msg("failed to bind UDP endpoint")
	}

	metrics := newMetrics(prometheus.DefaultRegisterer)

	dispatcher := newDispatcher(core, ep.sendTo, log.With().Str("task", "dispatcher").Logger(), cfg.MaxNameLength)
	metrics.wireDispatcher(dispatcher)

	sweeper := newSweeper(core, ep.sendTo, log.With().Str("task", "sweeper").Logger(),
		cfg.InactivityThreshold, cfg.PingTimeout, cfg.SweepInterval)
	metrics.wireSweeper(sweeper)

	listener := newListener(ep, dispatcher, log.With().Str("task", "listener").Logger(), cfg.BufferSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		log.Info().Msg("shutting down")
		cancel()
		_ = listener.Close()
	}()

	go sweeper.Run(ctx)
	go metrics.sample(ctx, core, 5*time.Second, log.With().Str("task", "metrics").Logger())

	if cfg.APIAddr != "" {
		api := newAPIServer(core, log.With().Str("task", "api").Logger())
		go api.Run(ctx, cfg.APIAddr, log)
		log.Info().Str("addr", cfg.APIAddr).Msg("operator HTTP surface listening")
	}

	log.Info().Str("addr", cfg.Addr).Msg("chat listener running")
	if err := listener.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("listener exited with error")
	}
}
