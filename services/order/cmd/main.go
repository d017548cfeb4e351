// Order Service — микросервис управления заказами и Saga Orchestrator.
// Предоставляет gRPC API для создания, получения, отмены заказов и
// координирует сагу оформления заказа через Kafka (Outbox Pattern на
// публикацию, Idempotency Guard на потребление).
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"example.com/saga-platform/pkg/config"
	dbpkg "example.com/saga-platform/pkg/db"
	"example.com/saga-platform/pkg/healthcheck"
	"example.com/saga-platform/pkg/idempotency"
	"example.com/saga-platform/pkg/kafka"
	"example.com/saga-platform/pkg/logger"
	"example.com/saga-platform/pkg/metrics"
	"example.com/saga-platform/pkg/middleware"
	"example.com/saga-platform/pkg/outbox"
	"example.com/saga-platform/pkg/sagastate"
	"example.com/saga-platform/pkg/tracing"
	orderv1 "example.com/saga-platform/proto/order/v1"
	ordergrpc "example.com/saga-platform/services/order/internal/grpc"
	"example.com/saga-platform/services/order/internal/repository"
	"example.com/saga-platform/services/order/internal/saga"
	"example.com/saga-platform/services/order/internal/service"
)

// consumerGroupID — общая consumer group Order Service для входящих топиков
// саги (inventory.reserved, payments.completed и т.д.).
const consumerGroupID = "order-service"

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
	log := logger.With().Str("service", "order-service").Logger()

	log.Info().
		Str("env", cfg.App.Env).
		Int("port", cfg.GRPC.OrderService.Port).
		Msg("Запуск Order Service")

	// === Observability: Tracing ===

	shutdownTracing, err := tracing.InitTracer(tracing.Config{
		ServiceName:    "order-service",
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

	// Подключаемся к Redis — Saga State Store и Idempotency Guard
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
			"order-service",
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

	// REST/gRPC-слой заказа (CRUD, пагинация, без знания о саге)
	orderRepo := repository.NewOrderRepository(db)

	// Saga State Store — эфемерное состояние саги с TTL
	stateStore := sagastate.New(rdb)

	// Outbox для исходящих событий саги (inventory.reserve-requested,
	// orders.confirmed, orders.cancelled)
	outboxRepo := outbox.NewOutboxRepository(db, "order")

	// SagaRepository — durable проекция заказа со стороны координатора саги
	sagaRepo := saga.NewSagaRepository(db)

	orchestrator := saga.NewOrchestrator(sagaRepo, outboxRepo, stateStore)

	orderService := service.NewOrderService(orderRepo, orchestrator)
	orderHandler := ordergrpc.NewHandler(orderService)

	// Idempotency Guard — дедупликация входящих событий саги по (topic, eventId)
	guard := idempotency.New(rdb)

	// Контекст для graceful shutdown фоновых воркеров (consumer'ы, outbox, timeout sweeper)
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	var consumers *saga.Consumers
	var kafkaProducer *kafka.Producer
	var timeoutWorker *saga.SagaTimeoutWorker
	var workersWg sync.WaitGroup

	if len(cfg.Kafka.Brokers) > 0 {
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Msg("Инициализация Kafka")

		kafkaProducer, err = kafka.NewProducer(kafka.Config{Brokers: cfg.Kafka.Brokers})
		if err != nil {
			log.Fatal().Err(err).Msg("Ошибка создания Kafka Producer")
		}

		newConsumer := func(topic string) (saga.KafkaConsumer, error) {
			kc, err := kafka.NewConsumer(kafka.Config{Brokers: cfg.Kafka.Brokers}, topic, consumerGroupID)
			if err != nil {
				return nil, err
			}
			kc.SetDLQProducer(kafkaProducer)
			return kc, nil
		}

		consumers, err = saga.NewConsumers(newConsumer, guard, orchestrator)
		if err != nil {
			log.Fatal().Err(err).Msg("Ошибка создания Kafka Consumers саги")
		}

		workersWg.Add(1)
		go func() {
			defer workersWg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("Паника в consumer'ах саги Order Service")
				}
			}()
			log.Info().Msg("Запуск consumer'ов саги Order Service")
			consumers.Run(bgCtx)
		}()

		outboxWorker := outbox.NewOutboxWorker(outboxRepo, kafkaProducer, outbox.DefaultWorkerConfig(), "order")
		workersWg.Add(1)
		go func() {
			defer workersWg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("Паника в Order Outbox Worker")
				}
			}()
			outboxWorker.Run(bgCtx)
		}()

		// Активный sweeper таймаутов саги поверх ленивой проверки на входящих событиях
		timeoutWorker = saga.NewSagaTimeoutWorker(sagaRepo, stateStore, orchestrator, saga.DefaultTimeoutWorkerConfig())
		workersWg.Add(1)
		go func() {
			defer workersWg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("Паника в Saga Timeout Worker")
				}
			}()
			timeoutWorker.Run(bgCtx)
		}()

		log.Info().Msg("Consumer'ы саги + Outbox Worker + Timeout Worker запущены")
	} else {
		log.Warn().Msg("Kafka не настроена — оркестрация саги отключена")
	}

	// === gRPC сервер ===

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(middleware.ChainUnaryInterceptors()...),
		grpc.ChainStreamInterceptor(middleware.ChainStreamInterceptors()...),
	)

	orderv1.RegisterOrderServiceServer(grpcServer, orderHandler)

	addr := cfg.GRPC.OrderService.Addr()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", addr).Msg("Ошибка создания listener")
	}

	go func() {
		log.Info().Str("addr", addr).Msg("gRPC сервер запущен")
		if err := grpcServer.Serve(listener); err != nil {
			log.Fatal().Err(err).Msg("Ошибка gRPC сервера")
		}
	}()

	// Ожидаем сигнал завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Получен сигнал завершения, останавливаем сервер...")

	grpcServer.GracefulStop()

	// Останавливаем фоновые воркеры саги
	bgCancel()
	workersWg.Wait()

	if consumers != nil {
		if err := consumers.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия Kafka Consumers саги")
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

	log.Info().Msg("Order Service остановлен")
}
