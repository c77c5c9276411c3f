/*
Package httpserver serves an enclave runtime over HTTP for local development.

Routes:

  - POST /prpc/ContractQuery - encoded SignedRequest in, response envelope out
  - GET /prpc/GetInfo - worker public key and cipher suite
  - POST /rpc - JSON-RPC registry, when HTTPServerConfig.RegistryRPC is set
  - GET /livez, /readyz - liveness and readiness
  - GET /drain, /undrain - toggle readiness ahead of a shutdown
  - GET /metrics - prometheus metrics
  - /debug/pprof - profiling, when EnablePprof is set

Requests are logged with the flashbots httplogger middleware. Metrics are
also served on MetricsAddr when it is set.

Example:

	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               "127.0.0.1:8000",
		Log:                      logger,
		RegistryRPC:              rpcServer,
		DrainDuration:            5 * time.Second,
		GracefulShutdownDuration: 10 * time.Second,
	}, queryhandler.NewHandler(runtime, logger))
	srv.RunInBackground()
	defer srv.Shutdown()
*/
package httpserver
