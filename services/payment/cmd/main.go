// Payment Service — микросервис обработки платежей для Saga Orchestration.
// Слушает payments.initiated и payments.refunded из Kafka, обрабатывает платежи
// и публикует payments.completed/payments.failed через Outbox Pattern.
// OutboxWorker отправляет записи outbox в Kafka с гарантией at-least-once.
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
	"example.com/saga-platform/services/payment/internal/repository"
	"example.com/saga-platform/services/payment/internal/saga"
	"example.com/saga-platform/services/payment/internal/service"
)

// consumerGroupID — общая consumer group Payment Service. Kafka ведёт offset'ы
// по каждому (group, topic, partition) независимо, поэтому один groupID для
// нескольких топиков безопасен.
const consumerGroupID = "payment-service"

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Инициализируем логгер
	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Pretty: cfg.App.LogPretty,
	})

	// Создаём логгер с контекстом сервиса
	log := logger.With().Str("service", "payment-service").Logger()

	log.Info().
		Str("env", cfg.App.Env).
		Int("port", cfg.GRPC.PaymentService.Port).
		Msg("Запуск Payment Service")

	// === Observability: Tracing ===

	// Инициализируем distributed tracing (Jaeger)
	shutdownTracing, err := tracing.InitTracer(tracing.Config{
		ServiceName:    "payment-service",
		JaegerEndpoint: cfg.Jaeger.OTLPEndpoint(),
		Enabled:        cfg.Jaeger.Enabled,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Не удалось инициализировать tracing")
	}

	// === Подключение к зависимостям ===

	// Подключаемся к MySQL
	db, err := dbpkg.ConnectMySQL(cfg.MySQL, cfg.IsDevelopment())
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка подключения к MySQL")
	}
	log.Info().Msg("Подключение к MySQL установлено")

	// Подключаемся к Redis
	rdb := dbpkg.ConnectRedis(cfg.Redis)
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия Redis")
		}
	}()

	// Проверяем подключение к Redis
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(ctx).Err(); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("Ошибка подключения к Redis")
	}
	cancel()
	log.Info().Msg("Подключение к Redis установлено")

	// ReadinessChecker для /readyz — проверяет MySQL и Redis
	readinessCheck := healthcheck.Composite(
		func(ctx context.Context) error { return healthcheck.CheckMySQL(ctx, db) },
		func(ctx context.Context) error { return healthcheck.CheckRedis(ctx, rdb) },
	)

	// === Observability: Metrics ===

	// Запускаем HTTP сервер для Prometheus метрик
	var metricsServer *metrics.Server
	var metricsWg sync.WaitGroup
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(
			cfg.Metrics.Addr(),
			"payment-service",
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

	// Создаём слои приложения (Clean Architecture)
	paymentRepo := repository.NewPaymentRepository(db)
	paymentService := service.NewPaymentService(paymentRepo, rdb)

	// Outbox Repository для публикации payments.completed/payments.failed
	outboxRepo := outbox.NewOutboxRepository(db, "payment")

	// Idempotency Guard — дедупликация входящих событий по (topic, eventId)
	guard := idempotency.New(rdb)

	// Контекст для graceful shutdown
	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	// Инициализируем Kafka компоненты
	var consumers *saga.Consumers
	var kafkaProducer *kafka.Producer
	var workersWg sync.WaitGroup // WaitGroup для ожидания завершения фоновых воркеров при shutdown

	if len(cfg.Kafka.Brokers) > 0 {
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Msg("Инициализация Kafka")

		// Создаём Producer для Outbox Worker
		kafkaProducer, err = kafka.NewProducer(kafka.Config{Brokers: cfg.Kafka.Brokers})
		if err != nil {
			log.Fatal().Err(err).Msg("Ошибка создания Kafka Producer")
		}

		// Обработчик событий саги: payments.initiated -> payments.completed/payments.failed,
		// payments.refunded -> возврат без ответного события.
		handler := saga.NewHandler(paymentService, outboxRepo)

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

		// WaitGroup для ожидания завершения фоновых воркеров при shutdown
		workersWg.Add(1)
		go func() {
			defer workersWg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("Паника в consumer'ах Payment Service")
				}
			}()
			log.Info().Msg("Запуск consumer'ов Payment Service")
			consumers.Run(ctx)
		}()

		// Запускаем Outbox Worker (читает outbox → отправляет в Kafka)
		outboxWorker := outbox.NewOutboxWorker(outboxRepo, kafkaProducer, outbox.DefaultWorkerConfig(), "payment")
		workersWg.Add(1)
		go func() {
			defer workersWg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("Паника в Payment Outbox Worker")
				}
			}()
			outboxWorker.Run(ctx)
		}()

		log.Info().Msg("Payment Service Consumers + Outbox Worker запущены")
	} else {
		log.Warn().Msg("Kafka не настроена — обработка событий саги отключена")
	}

	// Периодический воркер восстановления зависших PENDING платежей.
	workersWg.Add(1)
	go func() {
		defer workersWg.Done()
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if recovered, err := paymentService.RecoverStuckPayments(ctx); err != nil {
					log.Error().Err(err).Msg("Ошибка восстановления зависших платежей")
				} else if recovered > 0 {
					log.Info().Int("count", recovered).Msg("Зависшие платежи восстановлены")
				}
			}
		}
	}()

	// Ожидаем сигнал завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Получен сигнал завершения, останавливаем сервер...")

	// Отменяем контекст — останавливаем Kafka Consumer и Outbox Worker
	cancel()

	// Ждём завершения всех фоновых воркеров перед закрытием ресурсов
	workersWg.Wait()

	// Закрываем Kafka компоненты
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

	// Закрываем подключение к MySQL
	if sqlDB, err := db.DB(); err == nil && sqlDB != nil {
		if err := sqlDB.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия MySQL")
		}
	}

	// Останавливаем Metrics Server (если был запущен) и ждём завершения горутины
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ошибка остановки Metrics Server")
		}
		metricsWg.Wait()
	}

	// Останавливаем Tracing
	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ошибка остановки Tracing")
		}
	}

	log.Info().Msg("Payment Service остановлен")
}
