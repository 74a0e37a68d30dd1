package service

import (
	"context"
	"testing"
	"time"

	"github.com/anthanhphan/go-memcached-cluster/internal/gateway/domain"
	"github.com/anthanhphan/go-memcached-cluster/internal/gateway/port"
	"github.com/anthanhphan/go-memcached-cluster/internal/memtest"
	"github.com/anthanhphan/go-memcached-cluster/pkg/cluster"
	"github.com/anthanhphan/go-memcached-cluster/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, servers int) (*CacheServiceImpl, []*memtest.Server) {
	t.Helper()

	var endpoints []string
	var started []*memtest.Server
	for i := 0; i < servers; i++ {
		s, err := memtest.Start("")
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		started = append(started, s)
		endpoints = append(endpoints, s.Addr())
	}

	c, err := cluster.New(cluster.Config{
		Name:        "cache",
		Endpoints:   endpoints,
		NewResponse: protocol.NewResponse,
	})
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))

	registry := cluster.NewRegistry()
	require.NoError(t, registry.Register(c))
	t.Cleanup(func() { _ = registry.Close() })

	return NewCacheService(registry, 2*time.Second), started
}

func TestCacheService_StoreGetDelete(t *testing.T) {
	svc, _ := newTestService(t, 2)
	ctx := context.Background()

	cas, err := svc.Store(ctx, "cache", domain.StoreRequest{Key: "user:1", Value: []byte("alice"), Flags: 7})
	require.NoError(t, err)
	assert.NotZero(t, cas)

	item, err := svc.Get(ctx, "cache", "user:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("alice"), item.Value)
	assert.Equal(t, uint32(7), item.Flags)
	assert.Equal(t, cas, item.CAS)

	// A stale CAS is rejected.
	_, err = svc.Store(ctx, "cache", domain.StoreRequest{Key: "user:1", Value: []byte("bob"), CAS: cas + 100})
	assert.ErrorIs(t, err, protocol.ErrKeyExists)

	_, err = svc.Store(ctx, "cache", domain.StoreRequest{Key: "user:1", Value: []byte("bob"), Mode: "add"})
	assert.ErrorIs(t, err, protocol.ErrKeyExists)

	require.NoError(t, svc.Delete(ctx, "cache", "user:1"))
	_, err = svc.Get(ctx, "cache", "user:1")
	assert.ErrorIs(t, err, protocol.ErrKeyNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "cache", "user:1"), protocol.ErrKeyNotFound)
}

func TestCacheService_Counter(t *testing.T) {
	svc, _ := newTestService(t, 1)
	ctx := context.Background()

	v, err := svc.Counter(ctx, "cache", domain.CounterRequest{Key: "hits", Delta: 1, Initial: 5})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), v)

	v, err = svc.Counter(ctx, "cache", domain.CounterRequest{Key: "hits", Delta: 3})
	require.NoError(t, err)
	assert.Equal(t, uint64(8), v)

	v, err = svc.Counter(ctx, "cache", domain.CounterRequest{Key: "hits", Delta: 2, Decrement: true})
	require.NoError(t, err)
	assert.Equal(t, uint64(6), v)

	_, err = svc.Counter(ctx, "cache", domain.CounterRequest{Key: "absent", Delta: 1, NoCreate: true})
	assert.ErrorIs(t, err, protocol.ErrKeyNotFound)
}

func TestCacheService_FlushAndStats(t *testing.T) {
	svc, servers := newTestService(t, 3)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c", "d", "e", "f"} {
		_, err := svc.Store(ctx, "cache", domain.StoreRequest{Key: key, Value: []byte(key)})
		require.NoError(t, err)
	}

	stats, err := svc.Stats(ctx, "cache")
	require.NoError(t, err)
	require.Len(t, stats, 3)
	for _, s := range servers {
		require.Contains(t, stats, s.Addr())
		assert.Contains(t, stats[s.Addr()], "curr_items")
	}

	require.NoError(t, svc.Flush(ctx, "cache"))
	for _, s := range servers {
		assert.Zero(t, s.Len())
	}
}

func TestCacheService_ClustersAndNodes(t *testing.T) {
	svc, servers := newTestService(t, 2)

	assert.Equal(t, []domain.ClusterHealth{{Name: "cache", Nodes: 2, Alive: 2}}, svc.Clusters())

	nodes, err := svc.Nodes("cache")
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, servers[0].Addr(), nodes[0].Addr)
	assert.True(t, nodes[0].Alive)

	_, err = svc.Nodes("missing")
	assert.ErrorIs(t, err, port.ErrClusterNotFound)
}

func TestCacheService_InvalidRequests(t *testing.T) {
	svc, _ := newTestService(t, 1)
	ctx := context.Background()

	_, err := svc.Get(ctx, "missing", "k")
	assert.ErrorIs(t, err, port.ErrClusterNotFound)

	_, err = svc.Get(ctx, "cache", "")
	assert.ErrorIs(t, err, port.ErrInvalidRequest)

	_, err = svc.Store(ctx, "cache", domain.StoreRequest{Key: "k", Mode: "append"})
	assert.ErrorIs(t, err, port.ErrInvalidRequest)

	assert.ErrorIs(t, svc.Flush(ctx, "missing"), port.ErrClusterNotFound)
}
