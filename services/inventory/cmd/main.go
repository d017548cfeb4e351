// Inventory Service — микросервис складского учёта для Saga Orchestration.
// Слушает inventory.reserve-requested и inventory.released из Kafka,
// резервирует/освобождает товары под оптимистической блокировкой и
// публикует inventory.reserved/inventory.reservation-failed через Outbox Pattern.
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
	"example.com/saga-platform/pkg/outbox"
	"example.com/saga-platform/pkg/tracing"
	"example.com/saga-platform/services/inventory/internal/repository"
	"example.com/saga-platform/services/inventory/internal/saga"
	"example.com/saga-platform/services/inventory/internal/service"
)

// consumerGroupID — общая consumer group Inventory Service для входящих топиков саги.
const consumerGroupID = "inventory-service"

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

	log := logger.With().Str("service", "inventory-service").Logger()

	log.Info().Str("env", cfg.App.Env).Msg("Запуск Inventory Service")

	// === Observability: Tracing ===

	shutdownTracing, err := tracing.InitTracer(tracing.Config{
		ServiceName:    "inventory-service",
		JaegerEndpoint: cfg.Jaeger.OTLPEndpoint(),
		Enabled:        cfg.Jaeger.Enabled,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Не удалось инициализировать tracing")
	}

	// === Подключение к зависимостям ===

	db, err := dbpkg.ConnectMySQL(cfg.MySQL, cfg.IsDevelopment())
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка подключения к MySQL")
	}
	log.Info().Msg("Подключение к MySQL установлено")

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
		func(ctx context.Context) error { return healthcheck.CheckMySQL(ctx, db) },
		func(ctx context.Context) error { return healthcheck.CheckRedis(ctx, rdb) },
	)

	// === Observability: Metrics ===

	var metricsServer *metrics.Server
	var metricsWg sync.WaitGroup
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(
			cfg.Metrics.Addr(),
			"inventory-service",
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

	inventoryRepo := repository.NewInventoryRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	inventoryService := service.NewInventoryService(inventoryRepo, reservationRepo)

	outboxRepo := outbox.NewOutboxRepository(db, "inventory")
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
			log.Fatal().Err(err).Msg("Ошибка создания Kafka Producer")
		}

		handler := saga.NewHandler(inventoryService, outboxRepo)

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
					log.Error().Interface("panic", r).Msg("Паника в consumer'ах Inventory Service")
				}
			}()
			log.Info().Msg("Запуск consumer'ов Inventory Service")
			consumers.Run(bgCtx)
		}()

		outboxWorker := outbox.NewOutboxWorker(outboxRepo, kafkaProducer, outbox.DefaultWorkerConfig(), "inventory")
		workersWg.Add(1)
		go func() {
			defer workersWg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("Паника в Inventory Outbox Worker")
				}
			}()
			outboxWorker.Run(bgCtx)
		}()

		log.Info().Msg("Inventory Service Consumers + Outbox Worker запущены")
	} else {
		log.Warn().Msg("Kafka не настроена — обработка событий саги отключена")
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

	if sqlDB, err := db.DB(); err == nil && sqlDB != nil {
		if err := sqlDB.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия MySQL")
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

	log.Info().Msg("Inventory Service остановлен")
}
