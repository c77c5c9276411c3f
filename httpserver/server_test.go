package httpserver

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ruteri/tee-confidential-query/api"
	"github.com/ruteri/tee-confidential-query/api/queryhandler"
	"github.com/ruteri/tee-confidential-query/enclave"
	"github.com/ruteri/tee-confidential-query/interfaces"
	"github.com/ruteri/tee-confidential-query/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server, *registry.MockRegistryClient) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rt, err := enclave.NewRuntime(enclave.Config{Log: logger})
	require.NoError(t, err)

	reg := registry.NewMockRegistryClient()
	rpcServer, err := registry.NewRPCServer(reg)
	require.NoError(t, err)
	t.Cleanup(rpcServer.Stop)

	srv, err := New(&HTTPServerConfig{
		Log:                      logger,
		RegistryRPC:              rpcServer,
		DrainDuration:            10 * time.Millisecond,
		GracefulShutdownDuration: time.Second,
	}, queryhandler.NewHandler(rt, logger))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts, reg
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHealthAndDrain(t *testing.T) {
	_, ts, _ := newTestServer(t)

	code, body := get(t, ts.URL+"/livez")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"alive"}`, body)

	code, _ = get(t, ts.URL+"/readyz")
	assert.Equal(t, http.StatusOK, code)

	code, body = get(t, ts.URL+"/drain")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"draining"}`, body)

	_, body = get(t, ts.URL+"/drain")
	assert.JSONEq(t, `{"status":"already draining"}`, body)

	code, _ = get(t, ts.URL+"/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	_, body = get(t, ts.URL+"/undrain")
	assert.JSONEq(t, `{"status":"ready"}`, body)
	_, body = get(t, ts.URL+"/undrain")
	assert.JSONEq(t, `{"status":"already ready"}`, body)

	code, _ = get(t, ts.URL+"/readyz")
	assert.Equal(t, http.StatusOK, code)
}

func TestRoutes(t *testing.T) {
	_, ts, reg := newTestServer(t)

	code, body := get(t, ts.URL+api.GetInfoPath)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "worker_pubkey")

	code, body = get(t, ts.URL+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "pinkquery_service_info")

	code, _ = get(t, ts.URL+"/debug/pprof/")
	assert.Equal(t, http.StatusNotFound, code)

	// Registry JSON-RPC over the mounted route.
	cluster := interfaces.ClusterID{0x07}
	contract := interfaces.ContractID{0x08}
	reg.RegisterContract(cluster, contract)

	client, err := rpc.DialContext(context.Background(), ts.URL+api.RegistryRPCPath)
	require.NoError(t, err)
	defer client.Close()

	ids, err := registry.NewRPCClient(client).ClusterContracts(context.Background(), cluster)
	require.NoError(t, err)
	assert.Equal(t, []interfaces.ContractID{contract}, ids)
}
