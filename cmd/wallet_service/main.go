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

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	grpcprom "github.com/grpc-ecosystem/go-grpc-middleware/providers/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	gRPC "google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/harvestdrop/golang_services/internal/platform/cache"
	"github.com/harvestdrop/golang_services/internal/platform/config"
	"github.com/harvestdrop/golang_services/internal/platform/database"
	"github.com/harvestdrop/golang_services/internal/platform/logger"
	"github.com/harvestdrop/golang_services/internal/platform/messagebroker"
	cacheadapter "github.com/harvestdrop/golang_services/internal/wallet_service/adapters/cache"
	grpcadapter "github.com/harvestdrop/golang_services/internal/wallet_service/adapters/grpc"
	httpadapter "github.com/harvestdrop/golang_services/internal/wallet_service/adapters/http"
	"github.com/harvestdrop/golang_services/internal/wallet_service/adapters/paymentgateway"
	"github.com/harvestdrop/golang_services/internal/wallet_service/app"
	"github.com/harvestdrop/golang_services/internal/wallet_service/domain"
	"github.com/harvestdrop/golang_services/internal/wallet_service/repository/postgres"
)

const (
	serviceName     = "wallet-service"
	shutdownTimeout = 15 * time.Second
)

type redisPinger struct{ client *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.client.Ping(ctx).Err() }

func main() {
	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	appLogger := logger.NewWithWriter(os.Stdout, cfg.LogLevel, cfg.LogFormat).With("service", serviceName)
	appLogger.Info("Wallet service starting...",
		"grpc_port", cfg.WalletServiceGRPCPort,
		"http_port", cfg.WalletServiceHTTPPort,
		"metrics_port", cfg.WalletServiceMetricsPort,
		"gateway_mode", cfg.GatewayMode,
	)

	maxTopUp, err := decimal.NewFromString(cfg.MaxTopUpAmount)
	if err != nil {
		appLogger.Error("Invalid MAX_TOPUP_AMOUNT", "value", cfg.MaxTopUpAmount, "error", err)
		os.Exit(1)
	}

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN, cfg.DBMaxConns, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if cfg.AutoMigrate {
		if err := postgres.ApplySchema(mainCtx, dbPool); err != nil {
			appLogger.Error("Failed to apply wallet schema", "error", err)
			os.Exit(1)
		}
		appLogger.Info("Wallet schema applied")
	}

	redisClient, err := cache.NewRedisClient(mainCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		appLogger.Error("Failed to connect to Redis", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	balanceCache := cacheadapter.NewRedisBalanceCache(redisClient, cfg.BalanceCacheTTL)

	natsClient, err := messagebroker.NewNatsClient(cfg.NATSUrl, serviceName, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to NATS", "url", cfg.NATSUrl, "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()

	var gateway domain.PaymentGateway
	switch cfg.GatewayMode {
	case "live":
		gateway = paymentgateway.NewClient(appLogger, cfg.GatewayName, cfg.GatewayBaseURL,
			cfg.GatewayKeyID, cfg.GatewayKeySecret, cfg.GatewayWebhookSecret,
			&http.Client{Timeout: cfg.GatewayTimeout})
	case "mock":
		appLogger.Warn("Using mock payment gateway; no real money moves")
		gateway = paymentgateway.NewMockAdapter(appLogger, cfg.GatewayKeyID, cfg.GatewayKeySecret, cfg.GatewayWebhookSecret)
	default:
		appLogger.Error("Unknown gateway mode", "mode", cfg.GatewayMode)
		os.Exit(1)
	}

	accountRepo := postgres.NewPgAccountRepository(appLogger)
	ledgerRepo := postgres.NewPgLedgerRepository(appLogger)
	intentRepo := postgres.NewPgPaymentIntentRepository(appLogger)
	txm := database.NewTxManager(dbPool)

	ledger := app.NewLedger(txm, accountRepo, ledgerRepo, appLogger)
	paymentService := app.NewPaymentService(dbPool, txm, accountRepo, intentRepo, ledgerRepo, ledger, gateway,
		balanceCache, natsClient,
		app.PaymentConfig{Currency: cfg.WalletCurrency, MaxTopUp: maxTopUp, GatewayTimeout: cfg.GatewayTimeout},
		appLogger)
	walletService := app.NewWalletService(dbPool, txm, accountRepo, ledgerRepo, ledger, balanceCache, natsClient, appLogger)

	validate := validator.New()
	router := httpadapter.NewRouter(appLogger,
		httpadapter.RouterConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			Verifier:       httpadapter.NewJWTVerifier(cfg.JWTAccessSecret),
			Health:         dbPool.Ping,
		},
		httpadapter.NewWalletHandler(paymentService, walletService, validate, cfg.WalletCurrency, appLogger),
		httpadapter.NewAdminHandler(walletService, validate, appLogger),
		httpadapter.NewWebhookHandler(paymentService, appLogger),
	)

	g, groupCtx := errgroup.WithContext(mainCtx)

	// --- gRPC server (health + reflection) ---
	grpcMetrics := grpcprom.NewServerMetrics(grpcprom.WithServerHandlingTimeHistogram())
	if err := prometheus.DefaultRegisterer.Register(grpcMetrics); err != nil {
		appLogger.Warn("Failed to register gRPC Prometheus metrics", "error", err)
	}
	grpcServer := gRPC.NewServer(
		gRPC.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		gRPC.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)
	healthReporter := grpcadapter.NewHealthReporter(map[string]grpcadapter.Pinger{
		"postgres": dbPool,
		"redis":    redisPinger{redisClient},
		"nats":     natsClient,
	}, 10*time.Second, appLogger)
	healthpb.RegisterHealthServer(grpcServer, healthReporter.Server())
	reflection.Register(grpcServer)
	grpcMetrics.InitializeMetrics(grpcServer)

	grpcListenAddress := fmt.Sprintf(":%d", cfg.WalletServiceGRPCPort)
	grpcListener, err := net.Listen("tcp", grpcListenAddress)
	if err != nil {
		appLogger.Error("Failed to listen for gRPC", "address", grpcListenAddress, "error", err)
		os.Exit(1)
	}

	g.Go(func() error {
		return healthReporter.Run(groupCtx)
	})

	g.Go(func() error {
		appLogger.Info("gRPC server starting", "address", grpcListenAddress)
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, gRPC.ErrServerStopped) {
			appLogger.Error("gRPC server failed to serve", "error", err)
			return err
		}
		appLogger.Info("gRPC server shut down gracefully.")
		return nil
	})

	// --- Public HTTP API ---
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.WalletServiceHTTPPort),
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10*time.Second + cfg.GatewayTimeout,
		IdleTimeout:  120 * time.Second,
	}
	g.Go(func() error {
		appLogger.Info("HTTP server starting", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server ListenAndServe error", "error", err)
			return err
		}
		appLogger.Info("HTTP server shut down gracefully.")
		return nil
	})

	// --- Metrics ---
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WalletServiceMetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		appLogger.Info("Metrics HTTP server starting", "address", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Metrics HTTP server ListenAndServe error", "error", err)
			return err
		}
		appLogger.Info("Metrics HTTP server shut down gracefully.")
		return nil
	})

	// --- Graceful shutdown ---
	stopSignal := make(chan os.Signal, 1)
	signal.Notify(stopSignal, syscall.SIGINT, syscall.SIGTERM)

	g.Go(func() error {
		select {
		case sig := <-stopSignal:
			appLogger.Info("Received termination signal", "signal", sig.String())
			mainCancel()
		case <-groupCtx.Done():
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		appLogger.Info("Initiating graceful shutdown of servers...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var shutdownErrors error
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("HTTP server graceful shutdown failed", "error", err)
			shutdownErrors = errors.Join(shutdownErrors, fmt.Errorf("http shutdown: %w", err))
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Metrics HTTP server graceful shutdown failed", "error", err)
			shutdownErrors = errors.Join(shutdownErrors, fmt.Errorf("metrics http shutdown: %w", err))
		}
		grpcServer.GracefulStop()
		return shutdownErrors
	})

	appLogger.Info("Wallet service is ready and running.")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Service group encountered an error during run/shutdown", "error", err)
	}
	appLogger.Info("Wallet service shut down.")
}
