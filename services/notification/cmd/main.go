// Notification Service — чисто реактивный микросервис доставки уведомлений
// для Saga Orchestration. Слушает notifications.send из Kafka и доставляет
// уведомление по выбранному каналу (email, sms). Не участвует в саге:
// не публикует исходящих событий и не держит Outbox.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"example.com/saga-platform/pkg/config"
	dbpkg "example.com/saga-platform/pkg/db"
	"example.com/saga-platform/pkg/healthcheck"
	"example.com/saga-platform/pkg/idempotency"
	"example.com/saga-platform/pkg/kafka"
	"example.com/saga-platform/pkg/logger"
	"example.com/saga-platform/pkg/metrics"
	"example.com/saga-platform/pkg/tracing"
	"example.com/saga-platform/services/notification/internal/channel"
	"example.com/saga-platform/services/notification/internal/saga"
	"example.com/saga-platform/services/notification/internal/service"
)

// consumerGroupID — consumer group Notification Service для notifications.send.
const consumerGroupID = "notification-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Pretty: cfg.App.LogPretty,
	})

	log := logger.With().Str("service", "notification-service").Logger()

	log.Info().Str("env", cfg.App.Env).Msg("Запуск Notification Service")

	// === Observability: Tracing ===

	shutdownTracing, err := tracing.InitTracer(tracing.Config{
		ServiceName:    "notification-service",
		JaegerEndpoint: cfg.Jaeger.OTLPEndpoint(),
		Enabled:        cfg.Jaeger.Enabled,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Не удалось инициализировать tracing")
	}

	// === Подключение к зависимостям ===
	// Notification Service не владеет данными — только Redis для
	// Idempotency Guard, MySQL не требуется.

	rdb := dbpkg.ConnectRedis(cfg.Redis)
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия Redis")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(ctx).Err(); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("Ошибка подключения к Redis")
	}
	cancel()
	log.Info().Msg("Подключение к Redis установлено")

	readinessCheck := healthcheck.Composite(
		func(ctx context.Context) error { return healthcheck.CheckRedis(ctx, rdb) },
	)

	// === Observability: Metrics ===

	var metricsServer *metrics.Server
	var metricsWg sync.WaitGroup
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(
			cfg.Metrics.Addr(),
			"notification-service",
			metrics.WithReadinessCheck(readinessCheck),
		)
		metricsWg.Add(1)
		go func() {
			defer metricsWg.Done()
			if err := metricsServer.Start(); err != nil {
				log.Error().Err(err).Msg("Ошибка Metrics Server")
			}
		}()
	}

	// === Инициализация бизнес-логики ===

	notificationService := service.NewNotificationService(
		[]channel.Channel{channel.NewEmailChannel(), channel.NewSMSChannel()},
		"email",
	)
	guard := idempotency.New(rdb)

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	var consumers *saga.Consumers
	var kafkaProducer *kafka.Producer
	var workersWg sync.WaitGroup

	if len(cfg.Kafka.Brokers) > 0 {
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Msg("Инициализация Kafka")

		kafkaProducer, err = kafka.NewProducer(kafka.Config{Brokers: cfg.Kafka.Brokers})
		if err != nil {
			log.Fatal().Err(err).Msg("Ошибка создания Kafka Producer (нужен только для DLQ)")
		}

		handler := saga.NewHandler(notificationService)

		newConsumer := func(topic string) (saga.KafkaConsumer, error) {
			kc, err := kafka.NewConsumer(kafka.Config{Brokers: cfg.Kafka.Brokers}, topic, consumerGroupID)
			if err != nil {
				return nil, err
			}
			kc.SetDLQProducer(kafkaProducer)
			return kc, nil
		}

		consumers, err = saga.NewConsumers(newConsumer, guard, handler)
		if err != nil {
			log.Fatal().Err(err).Msg("Ошибка создания Kafka Consumers")
		}

		workersWg.Add(1)
		go func() {
			defer workersWg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("Паника в consumer'ах Notification Service")
				}
			}()
			log.Info().Msg("Запуск consumer'ов Notification Service")
			consumers.Run(bgCtx)
		}()

		log.Info().Msg("Notification Service Consumers запущены")
	} else {
		log.Warn().Msg("Kafka не настроена — доставка уведомлений отключена")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Получен сигнал завершения, останавливаем сервер...")

	bgCancel()
	workersWg.Wait()

	if consumers != nil {
		if err := consumers.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия Kafka Consumers")
		}
	}
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия Kafka Producer")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ошибка остановки Metrics Server")
		}
		metricsWg.Wait()
	}

	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ошибка остановки Tracing")
		}
	}

	log.Info().Msg("Notification Service остановлен")
}
