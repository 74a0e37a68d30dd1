package cluster_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/anthanhphan/go-memcached-cluster/internal/memtest"
	"github.com/anthanhphan/go-memcached-cluster/pkg/cluster"
	"github.com/anthanhphan/go-memcached-cluster/pkg/hashing"
	"github.com/anthanhphan/go-memcached-cluster/pkg/protocol"
	"github.com/anthanhphan/go-memcached-cluster/pkg/resilience"
	"github.com/anthanhphan/go-memcached-cluster/pkg/resilience/mocks"
	"github.com/anthanhphan/go-memcached-cluster/pkg/shard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const waitTimeout = 5 * time.Second

func startServers(t *testing.T, n int) []*memtest.Server {
	t.Helper()
	servers := make([]*memtest.Server, n)
	for i := range servers {
		s, err := memtest.Start("")
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		servers[i] = s
	}
	return servers
}

func addrs(servers []*memtest.Server) []string {
	out := make([]string, len(servers))
	for i, s := range servers {
		out[i] = s.Addr()
	}
	return out
}

func startCluster(t *testing.T, endpoints []string, configure func(*cluster.Config)) *cluster.Cluster {
	t.Helper()
	cfg := cluster.Config{
		Name:            "test",
		Endpoints:       endpoints,
		NewResponse:     protocol.NewResponse,
		ReconnectPolicy: resilience.Periodic{Interval: 50 * time.Millisecond},
		Socket:          cluster.SocketConfig{ConnectTimeout: time.Second},
	}
	if configure != nil {
		configure(&cfg)
	}

	c, err := cluster.New(cfg)
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func await[T any](t *testing.T, f *cluster.Future[T]) (T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	v, err := f.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "future did not complete")
	return v, err
}

func set(t *testing.T, c *cluster.Cluster, key, value string) {
	t.Helper()
	op := protocol.NewSet([]byte(key), []byte(value), 0)
	_, err := await(t, c.Execute(op))
	require.NoError(t, err)
	require.NoError(t, op.Err())
}

func serverFor(t *testing.T, c *cluster.Cluster, servers []*memtest.Server, key string) int {
	t.Helper()
	addr := c.Locate([]byte(key)).Addr()
	for i, s := range servers {
		if s.Addr() == addr {
			return i
		}
	}
	t.Fatalf("no server for %s", addr)
	return -1
}

func TestCluster_SetGetRoundTrip(t *testing.T) {
	servers := startServers(t, 3)
	c := startCluster(t, addrs(servers), nil)
	require.Len(t, c.AliveNodes(), 3)

	for i := 0; i < 60; i++ {
		set(t, c, fmt.Sprintf("key-%d", i), fmt.Sprintf("value-%d", i))
	}

	total := 0
	for _, s := range servers {
		total += s.Len()
	}
	assert.Equal(t, 60, total, "each key is stored on exactly one server")

	for i := 0; i < 60; i++ {
		key := fmt.Sprintf("key-%d", i)
		get := protocol.NewGet([]byte(key))
		_, err := await(t, c.Execute(get))
		require.NoError(t, err)
		require.NoError(t, get.Err())
		assert.Equal(t, fmt.Sprintf("value-%d", i), string(get.Value))
		assert.True(t, servers[serverFor(t, c, servers, key)].Has(key))
	}

	miss := protocol.NewGet([]byte("missing"))
	_, err := await(t, c.Execute(miss))
	require.NoError(t, err)
	assert.ErrorIs(t, miss.Err(), protocol.ErrKeyNotFound)
}

func TestCluster_PipelinesAcrossSmallBuffers(t *testing.T) {
	servers := startServers(t, 1)
	c := startCluster(t, addrs(servers), func(cfg *cluster.Config) {
		cfg.Socket.BufferSize = 64
	})

	values := make([][]byte, 5)
	sets := make([]*cluster.Future[cluster.Operation], 5)
	for i := range values {
		values[i] = bytes.Repeat([]byte{byte('a' + i)}, 300)
		sets[i] = c.Execute(protocol.NewSet([]byte(fmt.Sprintf("big-%d", i)), values[i], 0))
	}

	gets := make([]*protocol.Get, 5)
	futures := make([]*cluster.Future[cluster.Operation], 5)
	for i := range gets {
		gets[i] = protocol.NewGet([]byte(fmt.Sprintf("big-%d", i)))
		futures[i] = c.Execute(gets[i])
	}

	for i := range sets {
		op, err := await(t, sets[i])
		require.NoError(t, err)
		require.NoError(t, op.(*protocol.Store).Err())
	}
	for i := range gets {
		_, err := await(t, futures[i])
		require.NoError(t, err)
		require.NoError(t, gets[i].Err())
		assert.Equal(t, values[i], gets[i].Value)
	}
}

func TestCluster_QuietOperations(t *testing.T) {
	servers := startServers(t, 1)
	c := startCluster(t, addrs(servers), nil)

	setA := c.Execute(protocol.NewSet([]byte("a"), []byte("1"), 0).Silent())
	setB := c.Execute(protocol.NewSet([]byte("b"), []byte("2"), 0).Silent())
	missing := protocol.NewGetQ([]byte("nope"))
	getQ := c.Execute(missing)
	hit := protocol.NewGetQ([]byte("a"))
	getHit := c.Execute(hit)
	noop := c.Execute(protocol.NewNoOp([]byte("a")))

	_, err := await(t, noop)
	require.NoError(t, err)

	for _, f := range []*cluster.Future[cluster.Operation]{setA, setB, getQ, getHit} {
		require.True(t, f.Completed(), "quiet operations complete no later than the reply behind them")
		_, err := f.Wait(context.Background())
		require.NoError(t, err)
	}
	assert.ErrorIs(t, missing.Err(), protocol.ErrKeyNotFound)
	require.NoError(t, hit.Err())
	assert.Equal(t, []byte("1"), hit.Value)

	assert.True(t, servers[0].Has("a"))
	assert.True(t, servers[0].Has("b"))
	assert.Equal(t, []protocol.Opcode{
		protocol.OpSetQ, protocol.OpSetQ, protocol.OpGetQ, protocol.OpGetQ, protocol.OpNoOp,
	}, servers[0].Requests())
}

func TestCluster_QuietStoreFailureIsReported(t *testing.T) {
	servers := startServers(t, 1)
	c := startCluster(t, addrs(servers), nil)
	set(t, c, "taken", "x")

	add := protocol.NewStore(protocol.ModeAdd, []byte("taken"), []byte("y"), 0, 0).Silent()
	addF := c.Execute(add)
	_, err := await(t, c.Execute(protocol.NewNoOp([]byte("taken"))))
	require.NoError(t, err)

	_, err = await(t, addF)
	require.NoError(t, err)
	assert.ErrorIs(t, add.Err(), protocol.ErrKeyExists)
}

func TestCluster_NodeRejoinsAfterServerRestart(t *testing.T) {
	servers := startServers(t, 3)
	c := startCluster(t, addrs(servers), nil)

	key := "sticky-key"
	victim := serverFor(t, c, servers, key)
	addr := servers[victim].Addr()
	require.NoError(t, servers[victim].Close())

	_, err := await(t, c.Execute(protocol.NewGet([]byte(key))))
	require.Error(t, err)
	assert.ErrorIs(t, err, cluster.ErrIO)

	require.Eventually(t, func() bool { return len(c.AliveNodes()) == 2 }, waitTimeout, 10*time.Millisecond)

	// While the owner is down its keys move to the survivors.
	set(t, c, key, "elsewhere")
	assert.NotEqual(t, addr, c.Locate([]byte(key)).Addr())

	var restarted *memtest.Server
	require.Eventually(t, func() bool {
		restarted, err = memtest.Start(addr)
		return err == nil
	}, waitTimeout, 20*time.Millisecond)
	t.Cleanup(func() { _ = restarted.Close() })

	require.Eventually(t, func() bool { return len(c.AliveNodes()) == 3 }, waitTimeout, 10*time.Millisecond)
	for _, st := range c.Nodes() {
		assert.True(t, st.Alive, st.Addr)
	}

	set(t, c, key, "home")
	assert.True(t, restarted.Has(key))
}

func TestCluster_NoAliveNodesFailsFast(t *testing.T) {
	servers := startServers(t, 1)
	addr := servers[0].Addr()
	require.NoError(t, servers[0].Close())

	c := startCluster(t, []string{addr}, func(cfg *cluster.Config) {
		cfg.ReconnectPolicy = resilience.Periodic{Interval: time.Hour}
	})
	require.Empty(t, c.AliveNodes())

	f := c.Execute(protocol.NewGet([]byte("k")))
	require.True(t, f.Completed())
	_, err := f.Wait(context.Background())
	assert.ErrorIs(t, err, cluster.ErrNoAliveNodes)

	b := c.Broadcast(func(*cluster.Node) cluster.Operation { return protocol.NewVersion() })
	require.True(t, b.Completed())
	_, err = b.Wait(context.Background())
	assert.ErrorIs(t, err, cluster.ErrNoAliveNodes)
}

func TestCluster_SoftFailureReconnectsInPlace(t *testing.T) {
	ctrl := gomock.NewController(t)
	policy := mocks.NewMockFailurePolicy(ctrl)
	policy.EXPECT().ShouldFail().Return(false).MinTimes(1)

	servers := startServers(t, 1)
	c := startCluster(t, addrs(servers), func(cfg *cluster.Config) {
		cfg.FailurePolicy = func() resilience.FailurePolicy { return policy }
	})
	set(t, c, "k", "v")
	require.Equal(t, 1, servers[0].Accepted())

	servers[0].DropConnections()

	_, err := await(t, c.Execute(protocol.NewGet([]byte("k"))))
	assert.ErrorIs(t, err, cluster.ErrIO)
	assert.Len(t, c.AliveNodes(), 1, "a soft failure keeps the node in the working set")

	require.Eventually(t, func() bool {
		get := protocol.NewGet([]byte("k"))
		_, err := await(t, c.Execute(get))
		return err == nil && get.Err() == nil
	}, waitTimeout, 10*time.Millisecond)
	assert.GreaterOrEqual(t, servers[0].Accepted(), 2)
}

func TestCluster_ReconnectPolicyScheduledForUnreachableNode(t *testing.T) {
	ctrl := gomock.NewController(t)
	policy := mocks.NewMockReconnectPolicy(ctrl)

	servers := startServers(t, 2)
	down := servers[1].Addr()
	require.NoError(t, servers[1].Close())
	policy.EXPECT().Schedule(down).Return(time.Hour).Times(1)

	c := startCluster(t, addrs(servers), func(cfg *cluster.Config) {
		cfg.ReconnectPolicy = policy
	})
	require.Len(t, c.AliveNodes(), 1)
	assert.Equal(t, servers[0].Addr(), c.AliveNodes()[0].Addr())

	// Every key routes to the surviving node.
	for i := 0; i < 20; i++ {
		assert.Equal(t, servers[0].Addr(), c.Locate([]byte(fmt.Sprintf("k%d", i))).Addr())
	}
}

func TestCluster_Broadcast(t *testing.T) {
	servers := startServers(t, 3)
	c := startCluster(t, addrs(servers), nil)
	for i := 0; i < 30; i++ {
		set(t, c, fmt.Sprintf("k%d", i), "v")
	}

	ops, err := await(t, c.Broadcast(func(*cluster.Node) cluster.Operation { return protocol.NewVersion() }))
	require.NoError(t, err)
	require.Len(t, ops, 3)
	for _, op := range ops {
		assert.NotEmpty(t, op.(*protocol.Version).Version)
	}

	ops, err = await(t, c.Broadcast(func(*cluster.Node) cluster.Operation { return protocol.NewStats("") }))
	require.NoError(t, err)
	items := 0
	for _, op := range ops {
		stats := op.(*protocol.Stats)
		require.NoError(t, stats.Err())
		require.Contains(t, stats.Values, "curr_items")
		var n int
		_, _ = fmt.Sscan(stats.Values["curr_items"], &n)
		items += n
	}
	assert.Equal(t, 30, items)

	_, err = await(t, c.Broadcast(func(*cluster.Node) cluster.Operation { return protocol.NewFlush(0) }))
	require.NoError(t, err)
	for _, s := range servers {
		assert.Zero(t, s.Len())
	}
}

func TestCluster_Counters(t *testing.T) {
	servers := startServers(t, 2)
	c := startCluster(t, addrs(servers), func(cfg *cluster.Config) {
		cfg.Locator = shard.NewJumpLocator[*cluster.Node](hashing.XXHash64)
	})

	incr := protocol.NewIncrement([]byte("hits"), 5, 10, 0)
	_, err := await(t, c.Execute(incr))
	require.NoError(t, err)
	assert.Equal(t, uint64(10), incr.Value, "a missing counter starts at the initial value")

	incr = protocol.NewIncrement([]byte("hits"), 5, 10, 0)
	_, err = await(t, c.Execute(incr))
	require.NoError(t, err)
	assert.Equal(t, uint64(15), incr.Value)

	decr := protocol.NewDecrement([]byte("hits"), 100, 0, protocol.NoCreate)
	_, err = await(t, c.Execute(decr))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), decr.Value)

	absent := protocol.NewDecrement([]byte("absent"), 1, 0, protocol.NoCreate)
	_, err = await(t, c.Execute(absent))
	require.NoError(t, err)
	assert.ErrorIs(t, absent.Err(), protocol.ErrKeyNotFound)
}

func TestCluster_CloseRejectsOperations(t *testing.T) {
	servers := startServers(t, 1)
	c := startCluster(t, addrs(servers), nil)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := c.Execute(protocol.NewGet([]byte("k"))).Wait(context.Background())
	assert.ErrorIs(t, err, cluster.ErrClusterClosed)
	assert.ErrorIs(t, c.Start(context.Background()), cluster.ErrClusterClosed)
}

// startLastReplyServer accepts one connection, reads requests requests and
// answers only the last of them.
func startLastReplyServer(t *testing.T, requests int) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	conns := make(chan net.Conn, 1)
	t.Cleanup(func() {
		_ = ln.Close()
		select {
		case conn := <-conns:
			_ = conn.Close()
		default:
		}
	})

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conns <- conn

		head := make([]byte, protocol.HeaderSize)
		var last protocol.Header
		for i := 0; i < requests; i++ {
			if _, err := io.ReadFull(conn, head); err != nil {
				return
			}
			h, err := protocol.DecodeHeader(head, protocol.MagicRequest)
			if err != nil {
				return
			}
			if _, err := io.CopyN(io.Discard, conn, int64(h.BodyLen)); err != nil {
				return
			}
			last = h
		}

		reply := make([]byte, protocol.HeaderSize)
		protocol.Header{Magic: protocol.MagicResponse, Opcode: last.Opcode, Opaque: last.Opaque}.Encode(reply)
		_, _ = conn.Write(reply)
	}()

	return ln.Addr().String()
}

func TestCluster_ReplySkippingEarlierOperations(t *testing.T) {
	tests := []struct {
		name    string
		first   func() cluster.Operation
		wantErr error
	}{
		{
			name:  "NoReplyDeclaredSucceeds",
			first: func() cluster.Operation { return protocol.NewNoOp(nil) },
		},
		{
			name:    "NonQuietOperationFails",
			first:   func() cluster.Operation { return protocol.NewGet([]byte("k")) },
			wantErr: cluster.ErrProtocol,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := startCluster(t, []string{startLastReplyServer(t, 2)}, nil)

			first := c.Execute(tt.first())
			last := c.Execute(protocol.NewNoOp(nil))

			_, err := await(t, last)
			require.NoError(t, err)

			require.True(t, first.Completed(), "earlier entries resolve when a later reply is matched")
			_, err = first.Wait(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := cluster.New(cluster.Config{NewResponse: protocol.NewResponse})
	assert.Error(t, err)

	_, err = cluster.New(cluster.Config{Endpoints: []string{"127.0.0.1:1"}})
	assert.Error(t, err)
}
