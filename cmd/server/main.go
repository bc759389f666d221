package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"matchbook/api/grpcserver"
	"matchbook/api/httpapi"
	"matchbook/audit"
	"matchbook/config"
	"matchbook/dispatch"
	"matchbook/domain/event"
	"matchbook/engine"
	"matchbook/gateway/fix"
	"matchbook/gateway/inbound"
	"matchbook/infra/kafka"
	"matchbook/infra/logging"
	"matchbook/infra/outbox"
	"matchbook/infra/queue"
	entrywal "matchbook/infra/wal/entry"
	"matchbook/jobs/relay"
	"matchbook/marketdata"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("all components have finished")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// ---------------- Pipeline ----------------

	commands := queue.New[event.Command]()
	events := queue.New[event.Event]()
	marketData := queue.NewLatest[event.BookSnapshot]()

	bus := dispatch.NewBus(events, marketData, logger)

	eng := engine.New(engine.Config{SnapshotDepth: cfg.Engine.SnapshotDepth}, commands, bus, logger)
	for _, s := range cfg.Engine.Symbols {
		if err := eng.AddSymbol(s); err != nil {
			return err
		}
	}

	// ---------------- Entry WAL ----------------

	journal, err := entrywal.Open(entrywal.Config{
		Dir:         cfg.WAL.Dir,
		SegmentSize: cfg.WAL.SegmentSize,
		Sync:        cfg.WAL.Sync,
	})
	if err != nil {
		return err
	}
	defer journal.Close()
	logger.Info("inbound journal opened", zap.String("dir", cfg.WAL.Dir), zap.Uint64("last_seq", journal.LastSeq()))

	// ---------------- Audit + Outbox ----------------

	var (
		store audit.Store
		box   *outbox.Outbox
		rl    *relay.Relay
	)
	if cfg.KafkaEnabled() {
		box, err = outbox.Open(cfg.Audit.OutboxDir)
		if err != nil {
			return err
		}
		defer box.Close()
		store = box

		producer, err := relay.NewSyncProducer(cfg.Kafka.Brokers, "matchbook-audit")
		if err != nil {
			return err
		}
		rl = relay.New(box, producer, relay.Config{
			Topic:      cfg.Kafka.AuditTopic,
			Interval:   cfg.Kafka.RelayInterval,
			MaxRetries: cfg.Kafka.MaxRetries,
			PruneAcked: true,
		}, logger)
		defer rl.Close()
	}

	auditor, err := audit.Open(cfg.Audit.LogPath, events, store, logger)
	if err != nil {
		return err
	}
	defer auditor.Close()

	// ---------------- Market data ----------------

	hub := marketdata.NewHub(logger)
	defer hub.Close()

	mdOpts := marketdata.Options{Hub: hub}
	if cfg.KafkaEnabled() {
		producer, err := kafka.NewProducer(kafka.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.MarketDataTopic,
		})
		if err != nil {
			return err
		}
		defer producer.Close()
		mdOpts.Sink = producer
	}

	mdGateway, err := marketdata.Open(cfg.MarketData.OutputPath, marketData, mdOpts, logger)
	if err != nil {
		return err
	}
	defer mdGateway.Close()

	// ---------------- Listeners ----------------

	grpcLis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return err
	}
	httpLis, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		_ = grpcLis.Close()
		return err
	}

	// ---------------- Consumers ----------------

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		eng.Run()
	}()

	sinkCtx, stopSinks := context.WithCancel(context.Background())
	defer stopSinks()

	var consumers errgroup.Group
	consumers.Go(auditor.Run)
	consumers.Go(func() error { return mdGateway.Run(sinkCtx) })

	relayDone := make(chan error, 1)
	relayCtx, stopRelay := context.WithCancel(context.Background())
	defer stopRelay()
	if rl != nil {
		go func() { relayDone <- rl.Run(relayCtx) }()
	} else {
		relayDone <- nil
	}

	// ---------------- Ingress ----------------

	gateway := inbound.New(journal, commands, logger)

	ingressCtx, stopIngress := context.WithCancel(ctx)
	defer stopIngress()
	ingress, ingressCtx := errgroup.WithContext(ingressCtx)

	grpcSrv := grpcserver.NewGRPCServer(grpcserver.NewServer(gateway, logger))
	ingress.Go(func() error { return grpcserver.Serve(ingressCtx, grpcSrv, grpcLis) })

	router := httpapi.NewRouter(httpapi.Handlers{MarketData: hub, Orders: gateway}, logger)
	ingress.Go(func() error { return httpapi.Serve(ingressCtx, router, httpLis) })

	logger.Info("matchbook running",
		zap.String("grpc", cfg.GRPC.Addr),
		zap.String("http", cfg.HTTP.Addr),
		zap.Strings("symbols", eng.Symbols()),
		zap.Bool("kafka", cfg.KafkaEnabled()),
	)

	if n := cfg.Simulator.Clients; n > 0 {
		gen := fix.NewGenerator(uint64(os.Getpid()))
		var sims errgroup.Group
		for i := 0; i < n; i++ {
			sim := &inbound.Simulator{
				Gateway:   gateway,
				Generator: gen,
				ClientID:  uint64(i),
				Count:     cfg.Simulator.Orders,
				MinPause:  cfg.Simulator.MinPause,
				MaxPause:  cfg.Simulator.MaxPause,
			}
			logger.Info("starting simulated client", zap.Int("client", i))
			sims.Go(func() error { return sim.Run(ingressCtx) })
		}
		ingress.Go(func() error {
			err := sims.Wait()
			if cfg.Simulator.ExitWhenDone {
				logger.Info("simulated clients done, shutting down")
				stopIngress()
			}
			return err
		})
	}

	// ---------------- Shutdown ----------------

	<-ingressCtx.Done()
	logger.Info("stopping ingress")
	stopIngress()
	ingressErr := ingress.Wait()

	commands.Shutdown()
	<-engineDone

	events.Shutdown()
	marketData.Shutdown()
	consumerErr := consumers.Wait()

	stopRelay()
	relayErr := <-relayDone

	for _, err := range []error{ingressErr, consumerErr, relayErr} {
		if err != nil {
			return err
		}
	}
	return nil
}
