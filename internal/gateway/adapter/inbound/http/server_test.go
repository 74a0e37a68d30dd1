package http_handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthanhphan/go-memcached-cluster/internal/gateway/config"
	"github.com/anthanhphan/go-memcached-cluster/internal/gateway/domain"
	"github.com/anthanhphan/go-memcached-cluster/internal/gateway/port"
	"github.com/anthanhphan/go-memcached-cluster/internal/gateway/service/mocks"
	"github.com/anthanhphan/go-memcached-cluster/pkg/cluster"
	"github.com/anthanhphan/go-memcached-cluster/pkg/protocol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestServer(t *testing.T) (*Server, *mocks.MockCacheService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockCacheService(ctrl)
	return NewServer(config.DefaultConfig(), svc, prometheus.NewRegistry()), svc
}

func do(t *testing.T, s *Server, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, body
}

func TestServer_Get(t *testing.T) {
	s, svc := newTestServer(t)

	svc.EXPECT().
		Get(gomock.Any(), "sessions", "user:1").
		Return(&domain.Item{Key: "user:1", Value: []byte("alice"), Flags: 3, CAS: 42}, nil)

	resp, body := do(t, s, httptest.NewRequest(http.MethodGet, "/clusters/sessions/keys/user:1", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", string(body))
	assert.Equal(t, "3", resp.Header.Get(headerFlags))
	assert.Equal(t, "42", resp.Header.Get(headerCAS))
}

func TestServer_Store(t *testing.T) {
	s, svc := newTestServer(t)

	svc.EXPECT().
		Store(gomock.Any(), "sessions", domain.StoreRequest{
			Key:   "user:1",
			Value: []byte("alice"),
			Flags: 3,
			TTL:   60,
			Mode:  "add",
			CAS:   7,
		}).
		Return(uint64(8), nil)

	req := httptest.NewRequest(http.MethodPut, "/clusters/sessions/keys/user:1?mode=add&ttl=60", bytes.NewReader([]byte("alice")))
	req.Header.Set(headerFlags, "3")
	req.Header.Set(headerCAS, "7")

	resp, _ := do(t, s, req)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "8", resp.Header.Get(headerCAS))
}

func TestServer_StoreRejectsBadInput(t *testing.T) {
	s, _ := newTestServer(t)

	resp, _ := do(t, s, httptest.NewRequest(http.MethodPut, "/clusters/sessions/keys/k?ttl=soon", nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req := httptest.NewRequest(http.MethodPut, "/clusters/sessions/keys/k", nil)
	req.Header.Set(headerCAS, "-1")
	resp, _ = do(t, s, req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_Counter(t *testing.T) {
	s, svc := newTestServer(t)

	svc.EXPECT().
		Counter(gomock.Any(), "sessions", domain.CounterRequest{Key: "hits", Delta: 5, Initial: 1, NoCreate: true, Decrement: true}).
		Return(uint64(10), nil)

	resp, body := do(t, s, httptest.NewRequest(http.MethodPost, "/clusters/sessions/keys/hits/decr?delta=5&initial=1&nocreate=true", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Key   string `json:"key"`
		Value uint64 `json:"value"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "hits", out.Key)
	assert.Equal(t, uint64(10), out.Value)
}

func TestServer_DeleteAndFlush(t *testing.T) {
	s, svc := newTestServer(t)

	svc.EXPECT().Delete(gomock.Any(), "sessions", "k").Return(nil)
	svc.EXPECT().Flush(gomock.Any(), "sessions").Return(nil)

	resp, _ := do(t, s, httptest.NewRequest(http.MethodDelete, "/clusters/sessions/keys/k", nil))
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = do(t, s, httptest.NewRequest(http.MethodPost, "/clusters/sessions/flush", nil))
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestServer_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "ClusterNotFound", err: fmt.Errorf("%w: x", port.ErrClusterNotFound), want: http.StatusNotFound},
		{name: "KeyNotFound", err: protocol.ErrKeyNotFound, want: http.StatusNotFound},
		{name: "InvalidRequest", err: port.ErrInvalidRequest, want: http.StatusBadRequest},
		{name: "KeyExists", err: protocol.ErrKeyExists, want: http.StatusConflict},
		{name: "TooLarge", err: protocol.ErrValueTooLarge, want: http.StatusRequestEntityTooLarge},
		{name: "NoAliveNodes", err: cluster.ErrNoAliveNodes, want: http.StatusServiceUnavailable},
		{name: "IO", err: &cluster.IOError{Addr: "a:1", Err: io.ErrUnexpectedEOF}, want: http.StatusServiceUnavailable},
		{name: "Timeout", err: context.DeadlineExceeded, want: http.StatusGatewayTimeout},
		{name: "Other", err: protocol.StatusErr(protocol.StatusOutOfMemory + 100), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, svc := newTestServer(t)
			svc.EXPECT().Get(gomock.Any(), "c", "k").Return(nil, tt.err)

			resp, body := do(t, s, httptest.NewRequest(http.MethodGet, "/clusters/c/keys/k", nil))
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.Contains(t, string(body), "error")
		})
	}
}

func TestServer_HealthAndNodes(t *testing.T) {
	s, svc := newTestServer(t)

	svc.EXPECT().Clusters().Return([]domain.ClusterHealth{
		{Name: "a", Nodes: 2, Alive: 2},
		{Name: "b", Nodes: 1, Alive: 0},
	})
	svc.EXPECT().Nodes("a").Return([]cluster.NodeStatus{{Addr: "127.0.0.1:11211", Alive: true}}, nil)

	resp, body := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "degraded", health.Status)

	resp, body = do(t, s, httptest.NewRequest(http.MethodGet, "/clusters/a/nodes", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var nodes []cluster.NodeStatus
	require.NoError(t, json.Unmarshal(body, &nodes))
	assert.Equal(t, []cluster.NodeStatus{{Addr: "127.0.0.1:11211", Alive: true}}, nodes)
}

func TestServer_Metrics(t *testing.T) {
	s, _ := newTestServer(t)

	resp, _ := do(t, s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
