package main

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/tee-confidential-query/api/queryhandler"
	"github.com/ruteri/tee-confidential-query/cmd/flags"
	"github.com/ruteri/tee-confidential-query/cryptoutils"
	"github.com/ruteri/tee-confidential-query/enclave"
	"github.com/ruteri/tee-confidential-query/httpserver"
	"github.com/ruteri/tee-confidential-query/interfaces"
	"github.com/ruteri/tee-confidential-query/registry"
	"github.com/urfave/cli/v2"
)

var flagListenAddr = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "127.0.0.1:8080",
	Usage: "address to listen on for API",
}
var flagMasterSeed = &cli.StringFlag{
	Name:    "master-seed",
	Usage:   "hex-encoded seed (at least 32 bytes) the worker key is derived from; random key if empty",
	EnvVars: []string{"PINKQUERY_MASTER_SEED"},
}
var flagMasterSeedShare = &cli.StringSliceFlag{
	Name:  "master-seed-share",
	Usage: "hex-encoded Shamir share of the master seed; repeat up to the split threshold",
}
var flagCluster = &cli.StringFlag{
	Name:  "cluster",
	Value: "0x0000000000000000000000000000000000000000000000000000000000000001",
	Usage: "cluster id served by this worker",
}
var flagInclusionPolls = &cli.IntFlag{
	Name:  "inclusion-polls",
	Value: 1,
	Usage: "status reads before a deployment is reported in a block",
}
var flagClusterPolls = &cli.IntFlag{
	Name:  "cluster-polls",
	Value: 1,
	Usage: "cluster reads before a deployment is registered",
}
var flagKeyPolls = &cli.IntFlag{
	Name:  "key-polls",
	Value: 1,
	Usage: "key reads before a deployment key is provisioned",
}

func main() {
	app := &cli.App{
		Name:  "enclavesim",
		Usage: "Serve an in-process contract runtime and registry for development",
		Flags: append(append([]cli.Flag{
			flagListenAddr,
			flagMasterSeed,
			flagMasterSeedShare,
			flagCluster,
			flagInclusionPolls,
			flagClusterPolls,
			flagKeyPolls,
			flags.CipherFlag,
			flags.LogServiceFlagFn("enclavesim"),
		}, flags.LogFlags...), flags.ServerFlags...),
		Commands: []*cli.Command{
			{
				Name:  "split-seed",
				Usage: "split --master-seed into Shamir shares, one per line",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "parts", Value: 5, Usage: "number of shares"},
					&cli.IntFlag{Name: "threshold", Value: 3, Usage: "shares needed to recover the seed"},
				},
				Action: splitSeed,
			},
		},
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			suite, err := flags.CipherSuite(cCtx)
			if err != nil {
				return err
			}
			clusterID, err := interfaces.NewClusterIDFromHex(cCtx.String(flagCluster.Name))
			if err != nil {
				return fmt.Errorf("invalid cluster id: %w", err)
			}

			var workerKey cryptoutils.KeyPair
			mk, err := masterKey(cCtx)
			if err != nil {
				return err
			}
			if mk != nil {
				if workerKey, err = mk.WorkerKey(clusterID); err != nil {
					return err
				}
			}

			rt, err := enclave.NewRuntime(enclave.Config{WorkerKey: workerKey, Suite: suite, Log: logger})
			if err != nil {
				return err
			}

			reg := registry.NewMockRegistryClient()
			reg.SetTransactOpts()
			reg.SetWorkerKey(clusterID, rt.WorkerPublicKey())
			reg.SetPropagationDelay(registry.PropagationDelay{
				InclusionPolls: cCtx.Int(flagInclusionPolls.Name),
				ClusterPolls:   cCtx.Int(flagClusterPolls.Name),
				KeyPolls:       cCtx.Int(flagKeyPolls.Name),
			})
			reg.OnInstantiated = rt.InstantiateHook(enclave.FlipperConstructor)

			rpcServer, err := registry.NewRPCServer(reg)
			if err != nil {
				return err
			}
			defer rpcServer.Stop()

			cfg := flags.ConfigureServer(cCtx, logger, cCtx.String(flagListenAddr.Name))
			cfg.RegistryRPC = rpcServer

			server, err := httpserver.New(cfg, queryhandler.NewHandler(rt, logger))
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting worker",
				"cluster", clusterID.String(),
				"workerPubkey", hex.EncodeToString(rt.WorkerPublicKey()),
				"cipher", suite.String())
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// masterKey reads --master-seed or recombines --master-seed-share. It returns
// nil when neither is set.
func masterKey(cCtx *cli.Context) (*enclave.MasterKey, error) {
	if seedHex := cCtx.String(flagMasterSeed.Name); seedHex != "" {
		seed, err := hex.DecodeString(seedHex)
		if err != nil {
			return nil, fmt.Errorf("invalid master-seed: %w", err)
		}
		return enclave.NewMasterKey(seed)
	}

	encoded := cCtx.StringSlice(flagMasterSeedShare.Name)
	if len(encoded) == 0 {
		return nil, nil
	}
	shares := make([][]byte, 0, len(encoded))
	for _, e := range encoded {
		share, err := hex.DecodeString(e)
		if err != nil {
			return nil, fmt.Errorf("invalid master-seed-share: %w", err)
		}
		shares = append(shares, share)
	}
	return enclave.CombineMasterKey(shares)
}

func splitSeed(cCtx *cli.Context) error {
	seed, err := hex.DecodeString(cCtx.String(flagMasterSeed.Name))
	if err != nil {
		return fmt.Errorf("invalid master-seed: %w", err)
	}
	shares, err := enclave.SplitMasterKey(seed, cCtx.Int("parts"), cCtx.Int("threshold"))
	if err != nil {
		return err
	}
	for _, share := range shares {
		fmt.Println(hex.EncodeToString(share))
	}
	return nil
}
