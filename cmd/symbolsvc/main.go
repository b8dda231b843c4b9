package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"symbol-systemv1/config"
	"symbol-systemv1/internal/logger"
	"symbol-systemv1/internal/metrics"
	"symbol-systemv1/internal/model"
	"symbol-systemv1/internal/session"
	redisstore "symbol-systemv1/internal/store/redis"
	sqlitestore "symbol-systemv1/internal/store/sqlite"
	"symbol-systemv1/internal/symcache"
)

func main() {
	cfg := config.Load()
	logg := logger.Init("symbolsvc", logger.ParseLevel(cfg.LogLevel))
	logg.Info("starting", slog.String("broker", cfg.Broker), slog.String("store", cfg.StoreBackend))

	fno := model.NewExchangeSet(cfg.ParseFNOExchanges())

	store, err := openStore(cfg, fno)
	if err != nil {
		log.Fatalf("[symbolsvc] open store: %v", err)
	}
	defer store.Close()

	boundary, err := session.NewBoundary(cfg.ResetTime, cfg.Timezone)
	if err != nil {
		log.Fatalf("[symbolsvc] reset boundary: %v", err)
	}

	cache := symcache.New(store, symcache.Options{
		Broker:         cfg.Broker,
		FNOExchanges:   fno,
		Reset:          boundary,
		BytesPerRecord: cfg.BytesPerRecord,
		DefaultLimit:   cfg.SearchLimit,
		MaxLimit:       cfg.MaxSearchLimit,
		FNOLimit:       cfg.FNOSearchLimit,
	})

	prom := metrics.New()
	metrics.RegisterCache(cache)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, cache)
	metricsSrv.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initial load off the signal path. A failure is not fatal: queries are
	// served by the record store until a reload succeeds.
	go reload(ctx, cache, prom, logg)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigCh {
		if sig == syscall.SIGHUP {
			logg.Info("SIGHUP received, reloading master contract")
			go reload(ctx, cache, prom, logg)
			continue
		}
		logg.Info("shutting down", slog.String("signal", sig.String()))
		break
	}

	cancel()
	cache.Clear()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)
	logg.Info("stopped")
}

// reload rebuilds and publishes the snapshot, recording the outcome. Readers
// keep serving the previous snapshot (or the store) throughout.
func reload(ctx context.Context, cache *symcache.Cache, prom *metrics.Metrics, logg *slog.Logger) {
	start := time.Now()
	if err := cache.Reload(ctx); err != nil {
		prom.ReloadFailures.Inc()
		logg.Error("reload failed, previous snapshot retained", slog.Any("err", err))
		return
	}
	prom.Reloads.Inc()
	prom.ReloadDur.Observe(time.Since(start).Seconds())
}

func openStore(cfg *config.Config, fno model.ExchangeSet) (model.InstrumentStore, error) {
	if cfg.StoreBackend == "redis" {
		return redisstore.New(redisstore.Config{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			FNOExchanges: fno,
		})
	}
	return sqlitestore.New(sqlitestore.Config{
		DBPath:       cfg.SQLitePath,
		FNOExchanges: fno,
	})
}
