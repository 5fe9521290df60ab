package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/intramural-predictions/internal/odds"
	httpapi "github.com/radieske/intramural-predictions/internal/odds-service/http"
	"github.com/radieske/intramural-predictions/internal/odds-service/ws"
	"github.com/radieske/intramural-predictions/internal/shared/cache"
	"github.com/radieske/intramural-predictions/internal/shared/config"
	"github.com/radieske/intramural-predictions/internal/shared/logger"
	"github.com/radieske/intramural-predictions/internal/shared/metrics"
	"github.com/radieske/intramural-predictions/internal/store/bootstrap"
)

func main() {
	// carrega config
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("config: %w", err))
	}

	// inicia logger
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	log.Info("starting service", zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// store só para leitura de ratings, classificação e volume
	st, closeStore, err := bootstrap.Open(ctx, bootstrap.Options{
		Driver:       cfg.StoreDriver,
		PostgresDSN:  cfg.PostgresDSN,
		FixturesFile: cfg.FixturesFile,
	}, log)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer closeStore()

	// conecta com cache Redis
	redisClient, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("redis connected")

	core := metrics.NewCore(prometheus.DefaultRegisterer)
	quotes := odds.NewService(st, odds.NewEngine(cfg.Odds), cfg.Sports, cfg.InitialRating, log,
		odds.WithCache(odds.NewRedisCache(redisClient, cfg.QuoteCacheTTL)),
		odds.WithMetrics(core),
	)

	// hub websocket alimentado pelo canal de cotações
	hub := ws.NewHub(func(*http.Request) bool { return true }, log)
	ws.StartRedisSubscriber(ctx, redisClient, cfg.RedisPubSubChannel, hub, log)

	// sobe servidor de métricas e health
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := st.Ping(ctx); err != nil {
			return fmt.Errorf("store: %w", err)
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	}, log)

	api := &httpapi.API{Quotes: quotes, Hub: hub, Log: log}
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("odds-service listening", zap.String("addr", srv.Addr), zap.String("channel", cfg.RedisPubSubChannel))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("api", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}
