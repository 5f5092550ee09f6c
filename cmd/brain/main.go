// Command brain runs the Brain: the stateless-restart decision process
// that streams market data, classifies regime, evaluates strategy
// gates, and proposes trades to the Gatekeeper. Grounded on the same
// cmd/bot main shape as cmd/gate (signal.Notify + context-cancel +
// graceful shutdown), adapted to the Brain's set of independent
// goroutines (ingest, pollers, position manager, heartbeat loop)
// instead of a single HTTP server.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zerotype19/gekko3/internal/broker"
	"github.com/zerotype19/gekko3/internal/config"
	"github.com/zerotype19/gekko3/internal/gateclient"
	"github.com/zerotype19/gekko3/internal/indicator"
	"github.com/zerotype19/gekko3/internal/logging"
	"github.com/zerotype19/gekko3/internal/metrics"
	"github.com/zerotype19/gekko3/internal/model"
	"github.com/zerotype19/gekko3/internal/poller"
	"github.com/zerotype19/gekko3/internal/position"
	"github.com/zerotype19/gekko3/internal/strategy"
	"github.com/zerotype19/gekko3/internal/stream"
)

func main() {
	os.Exit(run())
}

func run() int {
	config.Load(".env")
	cfg := config.LoadBrainConfig()
	logging.Init(cfg.Dev)
	log := logging.For("brain.main")

	if cfg.GateSharedSecret == "" {
		log.Error().Msg("GATE_SHARED_SECRET must be set")
		return 1
	}

	brokerClient := broker.NewHTTPClient(cfg.BrokerAPIKey, cfg.BrokerSecretKey, cfg.BrokerBaseURL, cfg.BrokerDataURL, "")
	gc := gateclient.New(cfg.GateBaseURL, cfg.GateSharedSecret)

	store := indicator.NewStore()
	vix := poller.NewVIXState()
	posStore := position.NewStore(cfg.PositionsFile)
	if err := posStore.Load(); err != nil {
		log.Error().Err(err).Msg("failed to load position mirror; starting with an empty set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info().Msg("warming up indicators")
	warmupCtx, warmupCancel := context.WithTimeout(ctx, 30*time.Second)
	warmupErr := poller.WarmUp(warmupCtx, brokerClient, store, model.Universe, strategy.RSIPeriods)
	warmupCancel()
	if warmupErr != nil {
		log.Error().Err(warmupErr).Msg("warm-up failed; continuing, indicators will seed from live bars")
	}
	for _, sym := range model.Universe {
		store.MarkWarmedUp(sym)
	}

	engine := strategy.New(store, brokerClient, gc, vix, posStore, posStore)

	ingestor := stream.New(brokerClient, store, model.Universe, func(symbol model.Symbol) {
		engine.OnBarClose(ctx, symbol)
	}, store.WarmedUp)

	posManager := position.NewManager(posStore, brokerClient, gc, store)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		ingestor.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.RunVIXPoller(ctx, brokerClient, vix)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.RunATMIVPoller(ctx, brokerClient, store, model.Universe)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		posManager.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		gc.RunHeartbeatLoop(ctx, func() json.RawMessage { return nil })
	}()

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("shutdown signal received")

	// Cancellation contract: ingest closes its connection on ctx.Done,
	// pollers exit on their next tick, and the Position Manager finishes
	// whatever cycle is already in flight before observing ctx.Done --
	// cancel() alone satisfies all three, the ordering is inside each
	// goroutine, not imposed here.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("metrics server shutdown error")
	}
	shutdownCancel()

	wg.Wait()
	log.Info().Msg("brain stopped")
	return 0
}
