package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/intramural-predictions/internal/bracket-worker/client"
	"github.com/radieske/intramural-predictions/internal/bracket-worker/consumer"
	"github.com/radieske/intramural-predictions/internal/shared/config"
	"github.com/radieske/intramural-predictions/internal/shared/kafka"
	"github.com/radieske/intramural-predictions/internal/shared/logger"
	"github.com/radieske/intramural-predictions/internal/shared/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("config: %w", err))
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Kafka consumer: eventos de liquidação/undo publicados pelo prediction-service
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicMatchSettled, cfg.BracketGroupID)
	defer reader.Close()

	// DLQ para eventos que o chaveamento recusou; sem ela o consumer travaria na mensagem
	if cfg.TopicMatchSettledDLQ == "" {
		log.Fatal("KAFKA_TOPIC_MATCH_SETTLED_DLQ is required")
	}
	dlq := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMatchSettledDLQ)
	defer dlq.Close()

	bracket := client.New(cfg.BracketURL, cfg.BracketRatePerS, cfg.BracketMaxRetry, cfg.BracketTimeout)

	// Servidor HTTP para métricas Prometheus e healthcheck
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, nil, log)

	log.Info("bracket-worker started",
		zap.String("consume", cfg.TopicMatchSettled),
		zap.String("dlq", cfg.TopicMatchSettledDLQ),
		zap.String("bracket_url", cfg.BracketURL),
	)

	c := consumer.New(reader, bracket, dlq, log, metrics.NewBracket(prometheus.DefaultRegisterer))
	if err := c.Run(ctx); err != nil {
		log.Error("consumer stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
}
