// worker ships the activity topic to Loki in batches, committing consumer offsets only after a
// batch is pushed. Requires KAFKA_BROKERS and LOKI_URL; ACTIVITY_KAFKA_TOPIC and KAFKA_GROUP_ID
// have defaults.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"soc-portal/internal/config"
	"soc-portal/internal/logging"
	"soc-portal/internal/telemetry/loki"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	brokers := cfg.KafkaBrokersList()
	switch {
	case len(brokers) == 0:
		logger.Fatal("worker: KAFKA_BROKERS is required")
	case cfg.LokiURL == "":
		logger.Fatal("worker: LOKI_URL is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       cfg.ActivityKafkaTopic,
		GroupID:     cfg.KafkaGroupID,
		StartOffset: kafka.FirstOffset,
		MaxBytes:    4 << 20,
		MaxWait:     500 * time.Millisecond,
	})
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shipper := loki.NewShipper(reader, loki.NewClient(cfg.LokiURL), logger.Named("shipper"))
	logger.Info("worker: shipping activity to loki",
		zap.String("topic", cfg.ActivityKafkaTopic),
		zap.String("group", cfg.KafkaGroupID),
		zap.String("loki", cfg.LokiURL),
		zap.Int("batchSize", shipper.BatchSize),
	)
	if err := shipper.Run(ctx); err != nil {
		logger.Error("worker: shipper stopped", zap.Error(err))
		return
	}
	logger.Info("worker: stopped")
}
