// Package main 资金托管服务启动入口
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/escrowsettlement/internal/escrow/application"
	"github.com/wyfcoding/escrowsettlement/internal/escrow/domain"
	"github.com/wyfcoding/escrowsettlement/internal/escrow/infrastructure/messaging"
	"github.com/wyfcoding/escrowsettlement/internal/escrow/infrastructure/persistence"
	"github.com/wyfcoding/escrowsettlement/internal/escrow/infrastructure/persistence/mysql"
	redisrepo "github.com/wyfcoding/escrowsettlement/internal/escrow/infrastructure/persistence/redis"
	escrowconsumer "github.com/wyfcoding/escrowsettlement/internal/escrow/interfaces/consumer"
	httpserver "github.com/wyfcoding/escrowsettlement/internal/escrow/interfaces/http"
	"github.com/wyfcoding/pkg/cache"
	"github.com/wyfcoding/pkg/config"
	"github.com/wyfcoding/pkg/database"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/messagequeue/kafka"
	"github.com/wyfcoding/pkg/messagequeue/outbox"
	"github.com/wyfcoding/pkg/metrics"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

var configPath = flag.String("config", "configs/escrow/config.toml", "config file path")

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	flag.Parse()

	// 1. 配置
	var cfg config.Config
	if err := config.Load(*configPath, &cfg); err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. 日志
	logCfg := &logging.Config{
		Service:    cfg.Server.Name,
		Module:     "escrow",
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}
	logger := logging.NewFromConfig(logCfg)
	slog.SetDefault(logger.Logger)

	// 3. 指标
	metricsImpl := metrics.NewMetrics(cfg.Server.Name)
	if cfg.Metrics.Enabled {
		go metricsImpl.ExposeHTTP(cfg.Metrics.Port)
	}

	// 4. 数据库
	db, err := database.NewDB(cfg.Data.Database, cfg.CircuitBreaker, logger, metricsImpl)
	if err != nil {
		slog.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	// 业务表在各自仓储构造时迁移, 这里只补 outbox 表
	if cfg.Server.Environment == "dev" {
		if err := db.RawDB().AutoMigrate(&outbox.Message{}); err != nil {
			slog.Error("failed to migrate outbox table", "error", err)
		}
	}

	// 5. Kafka 与 Outbox
	kafkaProducer := kafka.NewProducer(&cfg.MessageQueue.Kafka, logger, metricsImpl)
	outboxMgr := outbox.NewManager(db.RawDB(), logger.Logger)
	pusher := func(ctx context.Context, topic, key string, payload []byte) error {
		return kafkaProducer.PublishToTopic(ctx, topic, []byte(key), payload)
	}
	outboxProcessor := outbox.NewProcessor(outboxMgr, pusher, 100, 2*time.Second)

	// 6. Redis
	redisCache, err := cache.NewRedisCache(&cfg.Data.Redis, cfg.CircuitBreaker, logger, metricsImpl)
	if err != nil {
		slog.Error("failed to init redis", "error", err)
		os.Exit(1)
	}
	redisClient := redisCache.GetClient()

	// 7. 仓储
	escrowMySQLRepo := mysql.NewEscrowAccountRepository(db.RawDB())
	escrowReadRepo := redisrepo.NewEscrowAccountRedisRepository(redisClient)
	escrowRepo := persistence.NewCompositeEscrowAccountRepository(escrowMySQLRepo, escrowReadRepo)
	vaRepo := mysql.NewVirtualAccountRepository(db.RawDB())
	paymentRepo := mysql.NewPaymentTransactionRepository(db.RawDB())
	disbursementRepo := mysql.NewDisbursementRepository(db.RawDB())
	refundRepo := mysql.NewRefundRepository(db.RawDB())
	summaryCache := redisrepo.NewDealSummaryRedisRepository(redisClient)

	publisher := messaging.NewOutboxPublisher(outboxMgr)

	// 8. 应用服务
	escrowCmd := application.NewEscrowCommandService(escrowRepo, publisher, logger.Logger)
	vaCmd := application.NewVirtualAccountCommandService(escrowRepo, vaRepo, paymentRepo, publisher, logger.Logger)
	transferCmd := application.NewTransferCommandService(escrowRepo, vaRepo, paymentRepo, disbursementRepo, refundRepo, publisher, logger.Logger)
	querySvc := application.NewEscrowQueryService(escrowRepo, vaRepo, paymentRepo, disbursementRepo, refundRepo, summaryCache, logger.Logger)
	// 投影刷新必须直读主库, 不能经过缓存组合仓储
	projectionSvc := application.NewEscrowProjectionService(escrowMySQLRepo, escrowReadRepo, summaryCache, logger.Logger)

	execution := application.NewTransferExecutionManager(escrowRepo, vaRepo, paymentRepo, disbursementRepo, refundRepo, publisher, logger.Logger)
	execution.SetDTMServer(getenv("DTM_SERVER", "http://localhost:36789/api/dtmsvr"))
	execution.SetSvcURL(getenv("ESCROW_SVC_URL", fmt.Sprintf("http://localhost:%d", cfg.Server.HTTP.Port)))
	execution.SetBankGatewayURL(getenv("BANK_GATEWAY_URL", "http://localhost:8091"))

	expiryJob := application.NewVAExpiryJob(vaRepo, publisher, logger.Logger)

	// 9. 消费者
	projectionHandler := escrowconsumer.NewEscrowProjectionHandler(projectionSvc, logger.Logger)
	projectionTopics := []string{
		domain.EscrowAccountCreatedEventType,
		domain.EscrowAccountActivatedEventType,
		domain.EscrowAccountSuspendedEventType,
		domain.EscrowAccountResumedEventType,
		domain.EscrowAccountClosedEventType,
		domain.VirtualAccountCreatedEventType,
		domain.PaymentRecordedEventType,
		domain.PaymentVerifiedEventType,
		domain.DisbursementCompletedEventType,
		domain.DisbursementFailedEventType,
		domain.RefundCompletedEventType,
		domain.RefundFailedEventType,
	}
	for _, topic := range projectionTopics {
		consumerCfg := cfg.MessageQueue.Kafka
		consumerCfg.Topic = topic
		if consumerCfg.GroupID == "" {
			consumerCfg.GroupID = "escrow-projection-group"
		}
		consumer := kafka.NewConsumer(&consumerCfg, logger, metricsImpl)
		consumer.Start(context.Background(), 3, projectionHandler.Handle)
	}

	bankHandler := escrowconsumer.NewBankEventHandler(vaCmd, execution, logger.Logger)
	bankTopics := []string{
		escrowconsumer.BankPaymentReceivedTopic,
		escrowconsumer.BankTransferCompletedTopic,
		escrowconsumer.BankTransferFailedTopic,
	}
	for _, topic := range bankTopics {
		consumerCfg := cfg.MessageQueue.Kafka
		consumerCfg.Topic = topic
		consumerCfg.GroupID = "escrow-bank-group"
		consumer := kafka.NewConsumer(&consumerCfg, logger, metricsImpl)
		consumer.Start(context.Background(), 3, bankHandler.Handle)
	}

	// 10. 接口层
	grpcSrv := grpc.NewServer()
	reflection.Register(grpcSrv)

	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Environment == "dev" {
		gin.SetMode(gin.DebugMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	httpHandler := httpserver.NewEscrowHandler(escrowCmd, vaCmd, transferCmd, execution, querySvc)
	httpHandler.RegisterRoutes(r)

	// 11. 启动
	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		outboxProcessor.Start()
		<-ctx.Done()
		outboxProcessor.Stop()
		return nil
	})

	g.Go(func() error {
		expiryJob.Start(ctx)
		return nil
	})

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.Server.GRPC.Port)
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return err
		}
		slog.Info("gRPC server starting", "addr", addr)
		return grpcSrv.Serve(lis)
	})

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.Server.HTTP.Port)
		server := &http.Server{Addr: addr, Handler: r}
		slog.Info("HTTP server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			slog.Info("shutting down servers...")
		case <-ctx.Done():
			slog.Info("context cancelled, shutting down...")
		}
		grpcSrv.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("server exited with error", "error", err)
	}
}
