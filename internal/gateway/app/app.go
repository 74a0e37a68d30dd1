package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	grpcHandler "github.com/anthanhphan/go-memcached-cluster/internal/gateway/adapter/inbound/grpc"
	httpHandler "github.com/anthanhphan/go-memcached-cluster/internal/gateway/adapter/inbound/http"
	"github.com/anthanhphan/go-memcached-cluster/internal/gateway/config"
	"github.com/anthanhphan/go-memcached-cluster/internal/gateway/service"
	"github.com/anthanhphan/go-memcached-cluster/pkg/cluster"
	"github.com/anthanhphan/go-memcached-cluster/pkg/protocol"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type App struct {
	cfg        *config.Config
	registry   *cluster.Registry
	server     *httpHandler.Server
	grpcServer *grpc.Server
	health     *grpcHandler.HealthReporter
}

func New(configPath string) (*App, error) {
	// 1. Load Config
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// 2. Initialize Logger
	logger.InitLogger(&cfg.Logger)

	// 3. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector, err := cluster.NewCollector(reg)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	// 4. Clusters
	registry, err := buildRegistry(cfg, collector)
	if err != nil {
		return nil, err
	}

	// 5. Services & adapters
	svc := service.NewCacheService(registry, cfg.OperationTimeout())
	httpServer := httpHandler.NewServer(cfg, svc, reg)
	health := grpcHandler.NewHealthReporter(svc)
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, health.Server())

	return &App{
		cfg:        cfg,
		registry:   registry,
		server:     httpServer,
		grpcServer: grpcServer,
		health:     health,
	}, nil
}

// buildRegistry creates and starts every configured cluster. Clusters whose
// servers are all down still start; their nodes keep reconnecting.
func buildRegistry(cfg *config.Config, collector *cluster.Collector) (*cluster.Registry, error) {
	registry := cluster.NewRegistry()
	for _, cc := range cfg.Clusters {
		opts, err := cc.ClusterOptions(collector.ForCluster(cc.Name))
		if err != nil {
			_ = registry.Close()
			return nil, err
		}
		opts.NewResponse = protocol.NewResponseFactory(int(cfg.App.MaxValueSize))

		c, err := cluster.New(opts)
		if err != nil {
			_ = registry.Close()
			return nil, fmt.Errorf("failed to create cluster %s: %w", cc.Name, err)
		}
		if err := c.Start(context.Background()); err != nil {
			_ = c.Close()
			_ = registry.Close()
			return nil, fmt.Errorf("failed to start cluster %s: %w", cc.Name, err)
		}
		if err := registry.Register(c); err != nil {
			_ = c.Close()
			_ = registry.Close()
			return nil, err
		}
		logger.Infow("Cluster ready", "cluster", cc.Name, "endpoints", cc.Endpoints, "alive", len(c.AliveNodes()))
	}
	return registry, nil
}

func (a *App) Run() error {
	bgCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.health.Run(bgCtx, a.cfg.HealthInterval())

	// Start gRPC health
	listener, err := net.Listen("tcp", a.cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.Server.GRPCAddr, err)
	}

	serverErrCh := make(chan error, 2)
	go func() {
		if err := a.grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serverErrCh <- fmt.Errorf("grpc server failed: %w", err)
		}
	}()

	// Start HTTP
	logger.Infow("Cache gateway starting", "addr", a.cfg.Server.Addr, "grpc_addr", a.cfg.Server.GRPCAddr, "clusters", a.registry.Names())
	go func() {
		if err := a.server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("http server failed: %w", err)
		}
	}()

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	var runErr error
	select {
	case sig := <-stop:
		logger.Infow("Shutdown signal received", "signal", sig.String())
	case err := <-serverErrCh:
		runErr = err
		logger.Errorw("Gateway server exited unexpectedly", "error", err.Error())
	}

	logger.Info("Shutting down gateway")
	cancel()
	a.health.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		logger.Errorw("HTTP shutdown error", "error", err.Error())
		if runErr == nil {
			runErr = err
		}
	}
	a.grpcServer.GracefulStop()

	if err := a.registry.Close(); err != nil {
		logger.Warnw("Cluster shutdown error", "error", err.Error())
	}

	return runErr
}
