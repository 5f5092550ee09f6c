// Command gate runs the Gatekeeper: the HTTP risk-gate process a Brain
// posts signed proposals to. Grounded on the cmd/bot main's
// signal.Notify + context-cancel + graceful-shutdown shape, adapted
// from a polling loop to an http.Server wrapping a gin.Engine.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zerotype19/gekko3/internal/broker"
	"github.com/zerotype19/gekko3/internal/config"
	"github.com/zerotype19/gekko3/internal/gate"
	"github.com/zerotype19/gekko3/internal/gateapi"
	"github.com/zerotype19/gekko3/internal/ledger"
	"github.com/zerotype19/gekko3/internal/logging"
	"github.com/zerotype19/gekko3/internal/notifier"
)

func main() {
	os.Exit(run())
}

func run() int {
	config.Load(".env")
	cfg := config.LoadGateConfig()
	logging.Init(cfg.Dev)
	log := logging.For("gate.main")

	if cfg.GateSharedSecret == "" {
		log.Error().Msg("GATE_SHARED_SECRET must be set")
		return 1
	}
	if cfg.AdminJWTSecret == "" {
		log.Error().Msg("GATE_ADMIN_JWT_SECRET must be set")
		return 1
	}

	constitution, err := gate.LoadConstitution(cfg.ConstitutionPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to load constitution")
		return 1
	}

	db, err := ledger.Open(cfg.DBPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to open ledger")
		return 1
	}
	defer db.Close()

	brokerClient := broker.NewHTTPClient(cfg.BrokerAPIKey, cfg.BrokerSecretKey, cfg.BrokerBaseURL, "", "")

	g, err := gate.New(constitution, cfg.GateSharedSecret, db, brokerClient, notifier.NewLogging())
	if err != nil {
		log.Error().Err(err).Msg("failed to construct gate")
		return 1
	}

	srv := gateapi.NewServer(g)
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Router(cfg.AdminJWTSecret),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	eodTicker := time.NewTicker(time.Minute)
	defer eodTicker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-eodTicker.C:
				utcNow := now.UTC()
				weekday := utcNow.Weekday()
				if weekday != time.Saturday && weekday != time.Sunday &&
					utcNow.Hour() == 21 && utcNow.Minute() == 30 {
					g.TriggerEndOfDayReport(now)
				}
			}
		}
	}()

	go func() {
		<-sigChan
		log.Info().Msg("shutdown signal received")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http server shutdown error")
		}
	}()

	log.Info().Str("addr", cfg.ListenAddr).Msg("gatekeeper listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("http server error")
		return 1
	}

	log.Info().Msg("gatekeeper stopped")
	return 0
}

func mustNYLocation() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.UTC
	}
	return loc
}
