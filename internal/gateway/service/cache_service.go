package service

import (
	"context"
	"fmt"
	"time"

	"github.com/anthanhphan/go-memcached-cluster/internal/gateway/domain"
	"github.com/anthanhphan/go-memcached-cluster/internal/gateway/port"
	"github.com/anthanhphan/go-memcached-cluster/pkg/cluster"
	"github.com/anthanhphan/go-memcached-cluster/pkg/protocol"
	"github.com/anthanhphan/gosdk/logger"
)

// keyedOperation is a protocol operation that reports its server outcome.
type keyedOperation interface {
	cluster.Operation
	Err() error
}

type CacheServiceImpl struct {
	registry *cluster.Registry
	timeout  time.Duration
}

var _ port.CacheService = (*CacheServiceImpl)(nil)

func NewCacheService(registry *cluster.Registry, timeout time.Duration) *CacheServiceImpl {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &CacheServiceImpl{
		registry: registry,
		timeout:  timeout,
	}
}

func (s *CacheServiceImpl) Clusters() []domain.ClusterHealth {
	names := s.registry.Names()
	out := make([]domain.ClusterHealth, 0, len(names))
	for _, name := range names {
		c, ok := s.registry.Get(name)
		if !ok {
			continue
		}
		out = append(out, domain.ClusterHealth{
			Name:  name,
			Nodes: len(c.Nodes()),
			Alive: len(c.AliveNodes()),
		})
	}
	return out
}

func (s *CacheServiceImpl) Nodes(name string) ([]cluster.NodeStatus, error) {
	c, err := s.cluster(name)
	if err != nil {
		return nil, err
	}
	return c.Nodes(), nil
}

func (s *CacheServiceImpl) Get(ctx context.Context, name, key string) (*domain.Item, error) {
	get := protocol.NewGet([]byte(key))
	if err := s.execute(ctx, name, get); err != nil {
		return nil, err
	}
	return &domain.Item{
		Key:   key,
		Value: get.Value,
		Flags: get.Flags,
		CAS:   get.CAS,
	}, nil
}

func (s *CacheServiceImpl) Store(ctx context.Context, name string, req domain.StoreRequest) (uint64, error) {
	mode, err := storeMode(req.Mode)
	if err != nil {
		return 0, err
	}
	store := protocol.NewStore(mode, []byte(req.Key), req.Value, req.Flags, req.TTL).WithCAS(req.CAS)
	if err := s.execute(ctx, name, store); err != nil {
		return 0, err
	}
	return store.StoredCAS, nil
}

func (s *CacheServiceImpl) Delete(ctx context.Context, name, key string) error {
	return s.execute(ctx, name, protocol.NewDelete([]byte(key)))
}

func (s *CacheServiceImpl) Counter(ctx context.Context, name string, req domain.CounterRequest) (uint64, error) {
	expiration := req.TTL
	if req.NoCreate {
		expiration = protocol.NoCreate
	}

	var op *protocol.Mutate
	if req.Decrement {
		op = protocol.NewDecrement([]byte(req.Key), req.Delta, req.Initial, expiration)
	} else {
		op = protocol.NewIncrement([]byte(req.Key), req.Delta, req.Initial, expiration)
	}
	if err := s.execute(ctx, name, op); err != nil {
		return 0, err
	}
	return op.Value, nil
}

func (s *CacheServiceImpl) Flush(ctx context.Context, name string) error {
	_, err := s.broadcast(ctx, name, func(*cluster.Node) keyedOperation { return protocol.NewFlush(0) })
	return err
}

func (s *CacheServiceImpl) Stats(ctx context.Context, name string) (map[string]map[string]string, error) {
	byNode := make(map[*protocol.Stats]string)

	ops, err := s.broadcast(ctx, name, func(n *cluster.Node) keyedOperation {
		op := protocol.NewStats("")
		byNode[op] = n.Addr()
		return op
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string]map[string]string, len(ops))
	for _, op := range ops {
		stats := op.(*protocol.Stats)
		out[byNode[stats]] = stats.Values
	}
	return out, nil
}

func (s *CacheServiceImpl) cluster(name string) (*cluster.Cluster, error) {
	c, ok := s.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", port.ErrClusterNotFound, name)
	}
	return c, nil
}

// execute routes op, waits for it within the operation timeout and returns
// the transport error or, failing that, the server outcome.
func (s *CacheServiceImpl) execute(ctx context.Context, name string, op keyedOperation) error {
	if err := protocol.ValidateKey(op.Key()); err != nil {
		return fmt.Errorf("%w: %w", port.ErrInvalidRequest, err)
	}
	c, err := s.cluster(name)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := c.Execute(op).Wait(ctx); err != nil {
		logger.Warnw("Cache operation failed", "cluster", name, "key", string(op.Key()), "error", err.Error())
		return err
	}
	return op.Err()
}

func (s *CacheServiceImpl) broadcast(ctx context.Context, name string, factory func(*cluster.Node) keyedOperation) ([]cluster.Operation, error) {
	c, err := s.cluster(name)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ops, err := c.Broadcast(func(n *cluster.Node) cluster.Operation { return factory(n) }).Wait(ctx)
	if err != nil {
		logger.Warnw("Cluster broadcast failed", "cluster", name, "error", err.Error())
		return nil, err
	}
	for _, op := range ops {
		if err := op.(keyedOperation).Err(); err != nil {
			return nil, err
		}
	}
	return ops, nil
}

func storeMode(mode string) (protocol.StoreMode, error) {
	switch mode {
	case "", "set":
		return protocol.ModeSet, nil
	case "add":
		return protocol.ModeAdd, nil
	case "replace":
		return protocol.ModeReplace, nil
	default:
		return 0, fmt.Errorf("%w: unknown store mode %q", port.ErrInvalidRequest, mode)
	}
}
