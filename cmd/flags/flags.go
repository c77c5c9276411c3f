package flags

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/tee-confidential-query/common"
	"github.com/ruteri/tee-confidential-query/cryptoutils"
	"github.com/ruteri/tee-confidential-query/httpserver"
	"github.com/ruteri/tee-confidential-query/interfaces"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String("log-service")

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, listenAddr string) *httpserver.HTTPServerConfig {
	metricsAddr := cCtx.String(MetricsAddrFlag.Name)
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	return &httpserver.HTTPServerConfig{
		ListenAddr:               listenAddr,
		MetricsAddr:              metricsAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

// LoadSigner opens the sealed key file named by --key-file.
func LoadSigner(cCtx *cli.Context) (cryptoutils.Signer, error) {
	sealed, err := os.ReadFile(cCtx.String(KeyFileFlag.Name))
	if err != nil {
		return nil, fmt.Errorf("could not read key file: %w", err)
	}
	signer, err := cryptoutils.OpenSigner([]byte(cCtx.String(PassphraseFlag.Name)), sealed)
	if err != nil {
		return nil, fmt.Errorf("could not open key file: %w", err)
	}
	return signer, nil
}

// CipherSuite parses --cipher.
func CipherSuite(cCtx *cli.Context) (cryptoutils.CipherSuite, error) {
	suite, err := cryptoutils.ParseCipherSuite(cCtx.String(CipherFlag.Name))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", interfaces.ErrConfiguration, err)
	}
	return suite, nil
}

// StorageLocations parses every --metadata-storage URI.
func StorageLocations(cCtx *cli.Context) ([]interfaces.StorageBackendLocation, error) {
	uris := cCtx.StringSlice(MetadataStorageFlag.Name)
	locations := make([]interfaces.StorageBackendLocation, 0, len(uris))
	for _, uri := range uris {
		loc, err := interfaces.NewStorageBackendLocation(uri)
		if err != nil {
			return nil, fmt.Errorf("invalid storage location %q: %w", uri, err)
		}
		locations = append(locations, loc)
	}
	return locations, nil
}

var RegistryAddrFlag = &cli.StringFlag{
	Name:    "registry",
	Value:   "http://127.0.0.1:8080/rpc",
	Usage:   "registry JSON-RPC endpoint (http://, ws:// or IPC path)",
	EnvVars: []string{"PINKQUERY_REGISTRY"},
}

var KeyFileFlag = &cli.StringFlag{
	Name:  "key-file",
	Value: "pinkquery.key",
	Usage: "sealed signing key file",
}

var PassphraseFlag = &cli.StringFlag{
	Name:    "passphrase",
	Usage:   "passphrase protecting the key file",
	EnvVars: []string{"PINKQUERY_PASSPHRASE"},
}

var CipherFlag = &cli.StringFlag{
	Name:  "cipher",
	Value: cryptoutils.AES256GCM.String(),
	Usage: "envelope cipher suite: 'aes-256-gcm' or 'chacha20-poly1305'",
}

var MetadataStorageFlag = &cli.StringSliceFlag{
	Name:  "metadata-storage",
	Usage: "contract metadata location URI, tried in order (file://, s3://, ipfs://, vault://)",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}

var LogServiceFlagFn = func(service string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "log-service",
		Value: service,
		Usage: "add 'service' tag to logs",
	}
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics",
}

var LogFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
}

var ServerFlags = []cli.Flag{
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}
