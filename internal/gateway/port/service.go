package port

import (
	"context"
	"errors"

	"github.com/anthanhphan/go-memcached-cluster/internal/gateway/domain"
	"github.com/anthanhphan/go-memcached-cluster/pkg/cluster"
)

var (
	ErrClusterNotFound = errors.New("cluster not found")
	ErrInvalidRequest  = errors.New("invalid request")
)

//go:generate mockgen -destination=../service/mocks/cache_service_mock.go -package=mocks -source=service.go

// CacheService exposes the named clusters to the inbound adapters.
type CacheService interface {
	// Clusters lists the health of every configured cluster.
	Clusters() []domain.ClusterHealth

	// Nodes returns the node status of one cluster.
	Nodes(name string) ([]cluster.NodeStatus, error)

	Get(ctx context.Context, name, key string) (*domain.Item, error)

	// Store writes a value and returns its new CAS.
	Store(ctx context.Context, name string, req domain.StoreRequest) (uint64, error)

	Delete(ctx context.Context, name, key string) error

	// Counter applies an increment or decrement and returns the new value.
	Counter(ctx context.Context, name string, req domain.CounterRequest) (uint64, error)

	// Flush invalidates every item on every alive node of a cluster.
	Flush(ctx context.Context, name string) error

	// Stats returns server statistics keyed by node address.
	Stats(ctx context.Context, name string) (map[string]map[string]string, error)
}
