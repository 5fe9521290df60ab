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
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/intramural-predictions/internal/ledger"
	"github.com/radieske/intramural-predictions/internal/odds"
	phttp "github.com/radieske/intramural-predictions/internal/prediction-service/http"
	"github.com/radieske/intramural-predictions/internal/prediction-service/producer"
	"github.com/radieske/intramural-predictions/internal/settlement"
	"github.com/radieske/intramural-predictions/internal/shared/cache"
	"github.com/radieske/intramural-predictions/internal/shared/config"
	"github.com/radieske/intramural-predictions/internal/shared/kafka"
	"github.com/radieske/intramural-predictions/internal/shared/logger"
	"github.com/radieske/intramural-predictions/internal/shared/metrics"
	"github.com/radieske/intramural-predictions/internal/store/bootstrap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("config: %w", err))
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Store: postgres em produção, memória para desenvolvimento local
	st, closeStore, err := bootstrap.Open(ctx, bootstrap.Options{
		Driver:       cfg.StoreDriver,
		PostgresDSN:  cfg.PostgresDSN,
		FixturesFile: cfg.FixturesFile,
	}, log)
	if err != nil {
		log.Fatal("store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer closeStore()

	core := metrics.NewCore(prometheus.DefaultRegisterer)
	engine := odds.NewEngine(cfg.Odds)

	// Redis: cache de cotações + broadcast para o odds-service
	quoteOpts := []odds.ServiceOption{odds.WithMetrics(core)}
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = cache.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		quoteOpts = append(quoteOpts,
			odds.WithCache(odds.NewRedisCache(rdb, cfg.QuoteCacheTTL)),
			odds.WithBroadcaster(odds.NewRedisBroadcaster(rdb, cfg.RedisPubSubChannel)),
		)
	}
	quotes := odds.NewService(st, engine, cfg.Sports, cfg.InitialRating, log, quoteOpts...)

	// Kafka: match_settled para o chaveamento, wager_placed informativo
	settledWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMatchSettled)
	defer settledWriter.Close()
	wagerWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerPlaced)
	defer wagerWriter.Close()
	publ := producer.NewKafkaPublisher(settledWriter, wagerWriter)

	l := ledger.New(st, engine, cfg.Sports, ledger.Config{
		StartingBalance: cfg.StartingBalance,
		MaxLegs:         cfg.MaxLegs,
		InitialRating:   cfg.InitialRating,
	}, log, core)
	se := settlement.NewEngine(st, l, cfg.Sports, cfg.InitialRating, log,
		settlement.WithNotifier(publ),
		settlement.WithPrimer(quotes),
		settlement.WithMetrics(core),
	)

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := st.Ping(ctx); err != nil {
			return fmt.Errorf("store: %w", err)
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}, log)

	api := phttp.NewServer(log, l, se, quotes, publ)
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("prediction-service listening", zap.String("addr", apiSrv.Addr), zap.String("store", cfg.StoreDriver))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("api", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}
