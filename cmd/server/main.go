package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hongminglow/points-ledger/internal/catalog"
	"github.com/hongminglow/points-ledger/internal/config"
	"github.com/hongminglow/points-ledger/internal/ledger"
	"github.com/hongminglow/points-ledger/internal/payout"
	"github.com/hongminglow/points-ledger/internal/scheduler"
	"github.com/hongminglow/points-ledger/internal/server"
	"github.com/hongminglow/points-ledger/internal/storage"
	"github.com/hongminglow/points-ledger/internal/storage/memory"
	"github.com/hongminglow/points-ledger/internal/storage/postgres"
)

type ledgerStore interface {
	storage.LedgerStore
	Close()
}

func main() {
	loadLocalEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("init storage: %v", err)
	}
	defer store.Close()

	if cfg.CatalogPath != "" {
		c, err := catalog.Load(cfg.CatalogPath)
		if err != nil {
			log.Fatalf("load catalog: %v", err)
		}
		n, err := catalog.Apply(ctx, store, c)
		if err != nil {
			log.Fatalf("apply catalog: %v", err)
		}
		logger.Info("catalog applied", "path", cfg.CatalogPath, "created", n)
	}

	var sender payout.Sender = payout.Disabled{}
	if cfg.PayoutURL != "" {
		sender = payout.NewHTTPSender(cfg.PayoutURL, cfg.PayoutTimeout)
	} else {
		logger.Warn("PAYOUT_URL not set; bank payouts are disabled")
	}

	svc := ledger.New(store, sender, ledger.Config{
		ScanCooldown:    cfg.ScanCooldown,
		PointCashRate:   cfg.PointCashRate,
		ConflictRetries: cfg.ConflictRetries,
		Logger:          logger,
	})

	if cfg.MonthlyResetEnabled {
		go scheduler.Monthly(ctx, svc, cfg.MonthlyResetEvery, nil, logger)
	}

	srv := server.New(cfg, store, svc, logger)

	go func() {
		logger.Info("points ledger listening", "addr", cfg.HTTPAddress(), "storage", cfg.StorageDriver)
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error("graceful shutdown error", "error", err)
	}
}

func openStore(ctx context.Context, cfg config.Config) (ledgerStore, error) {
	if cfg.StorageDriver == config.DriverMemory {
		slog.Warn("using in-memory storage; data is lost on restart")
		return memory.New(), nil
	}
	return postgres.NewStore(ctx, cfg.DatabaseURL)
}

func loadLocalEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found; relying on existing environment")
	}
}
