package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	grpclib "google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/simaogato/kipubank-backend/internal/adapter/access"
	grpcadapter "github.com/simaogato/kipubank-backend/internal/adapter/grpc"
	"github.com/simaogato/kipubank-backend/internal/adapter/kafka"
	"github.com/simaogato/kipubank-backend/internal/adapter/ops"
	"github.com/simaogato/kipubank-backend/internal/adapter/pricefeed"
	"github.com/simaogato/kipubank-backend/internal/adapter/repository/postgres"
	"github.com/simaogato/kipubank-backend/internal/adapter/tokenmeta"
	"github.com/simaogato/kipubank-backend/internal/config"
	"github.com/simaogato/kipubank-backend/internal/domain"
	"github.com/simaogato/kipubank-backend/internal/logging"
	"github.com/simaogato/kipubank-backend/internal/metrics"
	"github.com/simaogato/kipubank-backend/internal/usecase/ledger"
	"github.com/simaogato/kipubank-backend/internal/usecase/oracle"
	"github.com/simaogato/kipubank-backend/internal/usecase/payout"
	"github.com/simaogato/kipubank-backend/internal/usecase/recovery"
	"github.com/simaogato/kipubank-backend/internal/usecase/registry"
	"github.com/simaogato/kipubank-backend/internal/usecase/risk"
	"github.com/simaogato/kipubank-backend/internal/usecase/seeder"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.ServiceName, cfg.Env)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("service stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	if cfg.Env == "dev" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	promRegistry := metrics.NewRegistry()
	m := metrics.New(promRegistry)
	health := ops.NewHealth(false)

	// 1. Setup Database
	db, err := postgres.NewDB(cfg.DB.DSN())
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	ledgerRepo := postgres.NewLedgerRepository(db)
	bindingRepo := postgres.NewPriceBindingRepository(db)
	recoveryRepo := postgres.NewRecoveryRecordRepository(db)
	outboxRepo := postgres.NewPayoutOutboxRepository(db)

	// 2. Price cache and token metadata
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
	}
	resolver := pricefeed.NewResolver(nil, redisClient, cfg.Redis.Prefix, cfg.Redis.PriceTTL, logger)

	staticDecimals, err := cfg.TokenDecimals()
	if err != nil {
		return err
	}
	metadata := tokenmeta.Chain{tokenmeta.Static(staticDecimals)}
	if cfg.Tokens.MetadataURL != "" {
		metadata = append(metadata, tokenmeta.NewHTTP(nil, cfg.Tokens.MetadataURL))
	}

	// 3. Access control
	roleSeed, err := cfg.RoleSeed()
	if err != nil {
		return err
	}
	roles, err := access.NewRoleTable(roleSeed, logger)
	if err != nil {
		return fmt.Errorf("build role table: %w", err)
	}

	// 4. Kafka
	producer, err := kafka.NewSyncProducer(cfg.Kafka.Brokers, logger, m)
	if err != nil {
		return fmt.Errorf("kafka producer init: %w", err)
	}
	defer producer.Close()
	payouts := payout.NewRelay(outboxRepo, kafka.NewPayoutPublisher(producer, cfg.Kafka.WithdrawalsTopic), cfg.Kafka.RelayInterval, logger, m)
	audit := kafka.NewAuditPublisher(producer, cfg.Kafka.RecoveriesTopic)

	// 5. Core services
	globalCap, err := cfg.GlobalCap()
	if err != nil {
		return err
	}
	perTxLimit, err := cfg.PerTxLimit()
	if err != nil {
		return err
	}

	assets := registry.NewAssetRegistry(cfg.Limits.MaxTrackedAssets)
	prices := oracle.NewPriceOracle(assets, roles, metadata, bindingRepo, resolver, logger, m)
	limiter, err := risk.NewLimiter(prices, globalCap, perTxLimit)
	if err != nil {
		return err
	}
	custody := ledger.NewLedger(assets, prices, limiter, roles, ledger.NewOutbox(), ledgerRepo, logger, m)
	custody.Payouts = payouts
	prices.Serial = custody
	recoveryService := recovery.NewRecoveryService(custody, limiter, roles, recoveryRepo, audit, logger, m)

	if err := custody.Restore(ctx); err != nil {
		return err
	}
	if err := prices.LoadBindings(ctx); err != nil {
		return err
	}

	bindingSeeder := seeder.NewBindingSeeder(bindingRepo, prices, roleSeed[domain.RoleOwner][0], logger)
	if _, err := bindingSeeder.Seed(ctx, seedBindings(cfg)); err != nil {
		return err
	}

	// 6. Start servers
	grpcServer := grpclib.NewServer(
		grpclib.ChainUnaryInterceptor(
			grpcadapter.LoggingInterceptor(logger),
			grpcadapter.AuthInterceptor([]byte(cfg.Auth.JWTSecret)),
		),
	)
	grpcadapter.RegisterCustodyServer(grpcServer, grpcadapter.NewServer(custody, prices, recoveryService, roles))

	healthServer := grpchealth.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	reflection.Register(grpcServer)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      ops.NewRouter(health, promRegistry, custody, prices, ops.Auth{Secret: []byte(cfg.Auth.JWTSecret), Access: roles}, logger),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	grpcAddr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", grpcAddr, err)
	}

	go func() {
		logger.Info("grpc server starting", "addr", grpcAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc server error", "error", err)
		}
	}()

	go func() {
		logger.Info("http server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	relayCtx, stopRelay := context.WithCancel(ctx)
	defer stopRelay()
	go payouts.Run(relayCtx)

	health.SetReady(true)
	waitForShutdown(grpcServer, healthServer, httpServer, health, logger)
	return nil
}

func seedBindings(cfg *config.Config) []seeder.SeedBinding {
	out := make([]seeder.SeedBinding, 0, len(cfg.PriceFeeds))
	for _, feed := range cfg.PriceFeeds {
		// Validated by config.Load
		asset, _ := domain.ParseAsset(feed.Asset)
		out = append(out, seeder.SeedBinding{Asset: asset, Ref: feed.Source, Scaled: feed.Scaled})
	}
	return out
}

// waitForShutdown waits for SIGTERM or SIGINT and gracefully shuts down the servers
func waitForShutdown(grpcServer *grpclib.Server, healthServer *grpchealth.Server, httpServer *http.Server, health *ops.Health, logger *slog.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)

	sig := <-stop
	logger.Info("shutdown started", "signal", sig.String())
	health.SetReady(false)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcDone := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(grpcDone)
	}()

	select {
	case <-grpcDone:
	case <-ctx.Done():
		grpcServer.Stop()
	}

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}
