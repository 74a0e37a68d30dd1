package grpc_handler

import (
	"context"
	"time"

	"github.com/anthanhphan/go-memcached-cluster/internal/gateway/port"
	"github.com/anthanhphan/gosdk/logger"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthReporter publishes one health service per cluster on a gRPC health
// server. A cluster is SERVING while at least one of its nodes is alive; the
// overall service ("") is SERVING while every cluster is.
type HealthReporter struct {
	server  *health.Server
	service port.CacheService
	last    map[string]healthpb.HealthCheckResponse_ServingStatus
}

func NewHealthReporter(service port.CacheService) *HealthReporter {
	return &HealthReporter{
		server:  health.NewServer(),
		service: service,
		last:    make(map[string]healthpb.HealthCheckResponse_ServingStatus),
	}
}

// Server returns the health server to register on a grpc.Server.
func (r *HealthReporter) Server() *health.Server {
	return r.server
}

// Refresh recomputes every serving status once.
func (r *HealthReporter) Refresh() {
	overall := healthpb.HealthCheckResponse_SERVING
	for _, h := range r.service.Clusters() {
		status := healthpb.HealthCheckResponse_SERVING
		if h.Alive == 0 {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			overall = healthpb.HealthCheckResponse_NOT_SERVING
		}
		r.set(h.Name, status)
	}
	r.set("", overall)
}

// Run refreshes on every tick until ctx is done.
func (r *HealthReporter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.Refresh()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Refresh()
		}
	}
}

// Shutdown marks every service NOT_SERVING.
func (r *HealthReporter) Shutdown() {
	r.server.Shutdown()
}

func (r *HealthReporter) set(name string, status healthpb.HealthCheckResponse_ServingStatus) {
	if prev, ok := r.last[name]; ok && prev == status {
		return
	}
	r.last[name] = status
	r.server.SetServingStatus(name, status)
	if name != "" {
		logger.Infow("Cluster health changed", "cluster", name, "status", status.String())
	}
}
