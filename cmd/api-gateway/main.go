package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	gateway "github.com/radieske/intramural-predictions/internal/api-gateway"
	"github.com/radieske/intramural-predictions/internal/shared/config"
	"github.com/radieske/intramural-predictions/internal/shared/logger"
	"github.com/radieske/intramural-predictions/internal/shared/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("config: %w", err))
	}
	log, _ := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// targets
	h, err := gateway.NewRouter(gateway.Targets{
		Predictions: cfg.PredictionURL,
		Odds:        cfg.OddsURL,
	}, gateway.Options{TrustPrincipal: cfg.TrustPrincipal, CORSOrigins: cfg.CORSOrigins}, log)
	if err != nil {
		log.Fatal("gateway routes", zap.Error(err))
	}
	if cfg.TrustPrincipal {
		log.Warn("trusting client-supplied principal headers; do not use outside local")
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, nil, log)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("api-gateway listening",
			zap.String("addr", srv.Addr),
			zap.String("predictions", cfg.PredictionURL),
			zap.String("odds", cfg.OddsURL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("gateway failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}
