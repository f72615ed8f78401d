// Command papertrader runs the paper-trading service: a JSON API over a
// simulated ledger fed by cached, rate-limited market-data providers with
// primary/secondary fallback.
//
// Usage:
//
//	papertrader --setup                 (interactive first-run wizard)
//	papertrader --config config.yaml
//	papertrader                         (built-in defaults)
//
// Required environment variables (a .env file is honored):
//
//	FINNHUB_API_KEY, ALPHAVANTAGE_API_KEY
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"papertrader/config"
	"papertrader/internal/services/ledger"
	"papertrader/internal/services/provider"
	"papertrader/internal/services/resolver"
	"papertrader/internal/setup"
	"papertrader/internal/storage/ledgerstate"
	"papertrader/internal/storage/trades"
	"papertrader/internal/web"
)

const cacheSweepInterval = 5 * time.Minute

func main() {
	// best effort: a missing .env just means keys come from the environment
	_ = godotenv.Load()

	runSetup := flag.Bool("setup", false, "run the interactive setup wizard")

	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}
	if *runSetup {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		return
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	finnhub, err := provider.NewFinnhub(cfg.Finnhub, logger)
	if err != nil {
		logger.Fatal("finnhub adapter init failed", zap.Error(err))
	}
	alphavantage, err := provider.NewAlphaVantage(cfg.AlphaVantage, logger)
	if err != nil {
		logger.Fatal("alphavantage adapter init failed", zap.Error(err))
	}
	quotes := resolver.New(finnhub, alphavantage, logger)

	store, err := ledgerstate.NewStore(cfg.Ledger.StateDir)
	if err != nil {
		logger.Fatal("ledger state store init failed", zap.Error(err))
	}
	journal, err := trades.NewJournal(filepath.Join(cfg.Ledger.StateDir, "journal"))
	if err != nil {
		logger.Fatal("trade journal init failed", zap.Error(err))
	}
	defer journal.Close()

	account, err := ledger.New(cfg.Ledger, store, journal, logger)
	if err != nil {
		logger.Fatal("ledger init failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// memory bound only; expired entries are already invisible to readers
	go func() {
		ticker := time.NewTicker(cacheSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				finnhub.SweepCaches()
				alphavantage.SweepCaches()
			}
		}
	}()

	server := web.NewServer(cfg.WebAddr, quotes, account, logger)
	if err := server.Start(ctx); err != nil {
		logger.Fatal("api server failed", zap.Error(err))
	}
}
