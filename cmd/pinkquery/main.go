package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ruteri/tee-confidential-query/api/queryhandler"
	"github.com/ruteri/tee-confidential-query/cmd/flags"
	"github.com/ruteri/tee-confidential-query/contract"
	"github.com/ruteri/tee-confidential-query/cryptoutils"
	"github.com/ruteri/tee-confidential-query/interfaces"
	"github.com/ruteri/tee-confidential-query/metadata"
	"github.com/ruteri/tee-confidential-query/registry"
	"github.com/ruteri/tee-confidential-query/storage"
	"github.com/ruteri/tee-confidential-query/transport"
	"github.com/ruteri/tee-confidential-query/watcher"
	"github.com/urfave/cli/v2"
)

var flagWorker = &cli.StringFlag{
	Name:  "worker",
	Value: "http://127.0.0.1:8080",
	Usage: "worker base URL",
}
var flagSRV = &cli.StringFlag{
	Name:  "srv",
	Usage: "discover the worker through this DNS SRV name instead of --worker",
}
var flagNameserver = &cli.StringFlag{
	Name:  "nameserver",
	Value: transport.DefaultNameserver,
	Usage: "DNS server used for --srv lookups",
}
var flagContract = &cli.StringFlag{
	Name:     "contract",
	Required: true,
	Usage:    "contract id, 0x-prefixed 32-byte hex",
}
var flagCodeHash = &cli.StringFlag{
	Name:  "code-hash",
	Usage: "code hash the contract metadata is stored under, 0x-prefixed 32-byte hex",
}
var flagMetadataFile = &cli.StringFlag{
	Name:  "metadata-file",
	Usage: "read contract metadata from a local file instead of --metadata-storage",
}
var flagMessage = &cli.StringFlag{
	Name:  "message",
	Usage: "message label to query",
}
var flagIndex = &cli.IntFlag{
	Name:  "index",
	Value: -1,
	Usage: "message position to query, used when --message is empty",
}
var flagArgs = &cli.StringFlag{
	Name:  "args",
	Usage: "encoded call arguments, 0x-prefixed hex",
}
var flagKeySource = &cli.StringFlag{
	Name:  "key-source",
	Value: "registry",
	Usage: "where to read the contract key from: 'registry' or 'worker'",
}

const usage string = `Query confidential contracts and manage their deployments.`

func main() {
	app := &cli.App{
		Name:  "pinkquery",
		Usage: usage,
		Flags: append([]cli.Flag{flags.LogServiceFlagFn("pinkquery")}, flags.LogFlags...),
		Commands: []*cli.Command{
			{
				Name:  "keygen",
				Usage: "generate a signing key and seal it to --key-file",
				Flags: []cli.Flag{
					flags.KeyFileFlag,
					flags.PassphraseFlag,
					&cli.StringFlag{Name: "type", Value: "ed25519", Usage: "'ed25519' or 'ecdsa'"},
				},
				Action: keygen,
			},
			{
				Name:  "info",
				Usage: "print the worker's public key and cipher suite",
				Flags: []cli.Flag{flagWorker, flagSRV, flagNameserver},
				Action: func(cCtx *cli.Context) error {
					workerURL, err := resolveWorker(cCtx)
					if err != nil {
						return err
					}
					info, err := queryhandler.Info(cCtx.Context, workerURL)
					if err != nil {
						return err
					}
					return printJSON(info)
				},
			},
			{
				Name:  "query",
				Usage: "run a confidential query",
				Flags: []cli.Flag{
					flagWorker, flagSRV, flagNameserver,
					flagContract, flagCodeHash, flagMetadataFile, flagMessage, flagIndex, flagArgs, flagKeySource,
					flags.RegistryAddrFlag, flags.KeyFileFlag, flags.PassphraseFlag, flags.CipherFlag, flags.MetadataStorageFlag,
				},
				Action: query,
			},
			{
				Name:  "publish-metadata",
				Usage: "validate a metadata document and store it under its code hash",
				Flags: []cli.Flag{
					flagCodeHash,
					&cli.StringFlag{Name: "file", Required: true, Usage: "metadata JSON document"},
					flags.MetadataStorageFlag,
				},
				Action: publishMetadata,
			},
			{
				Name:  "deploy",
				Usage: "instantiate a contract and wait until it can be queried",
				Flags: []cli.Flag{
					flagCodeHash, flagMetadataFile, flagArgs,
					&cli.StringFlag{Name: "cluster", Required: true, Usage: "cluster id, 0x-prefixed 32-byte hex"},
					&cli.StringFlag{Name: "constructor", Value: "new", Usage: "constructor label"},
					&cli.StringFlag{Name: "salt", Usage: "deployment salt, 0x-prefixed hex"},
					&cli.DurationFlag{Name: "timeout", Value: watcher.DefaultTimeout, Usage: "how long to wait for the contract to become ready"},
					&cli.DurationFlag{Name: "poll-interval", Value: watcher.DefaultPollInterval, Usage: "registry poll interval"},
					flags.RegistryAddrFlag, flags.MetadataStorageFlag,
				},
				Action: deploy,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func keygen(cCtx *cli.Context) error {
	var (
		signer cryptoutils.Signer
		err    error
	)
	switch t := cCtx.String("type"); t {
	case "ed25519":
		signer, err = cryptoutils.GenerateEd25519Signer()
	case "ecdsa":
		signer, err = cryptoutils.GenerateEcdsaSigner()
	default:
		return fmt.Errorf("%w: unknown key type %q", interfaces.ErrConfiguration, t)
	}
	if err != nil {
		return err
	}

	sealed, err := cryptoutils.SealSigner([]byte(cCtx.String(flags.PassphraseFlag.Name)), signer)
	if err != nil {
		return err
	}
	path := cCtx.String(flags.KeyFileFlag.Name)
	if err := os.WriteFile(path, sealed, 0o600); err != nil {
		return fmt.Errorf("could not write key file: %w", err)
	}

	fmt.Printf("%s %s\n", signer.SignatureType(), hexutil.Encode(signer.PublicKey()))
	return nil
}

func query(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	ctx := cCtx.Context

	contractID, err := interfaces.NewContractIDFromHex(cCtx.String(flagContract.Name))
	if err != nil {
		return fmt.Errorf("could not parse contract id: %w", err)
	}
	args, err := decodeHex(cCtx.String(flagArgs.Name))
	if err != nil {
		return fmt.Errorf("could not parse args: %w", err)
	}
	suite, err := flags.CipherSuite(cCtx)
	if err != nil {
		return err
	}
	signer, err := flags.LoadSigner(cCtx)
	if err != nil {
		return err
	}
	md, err := loadMetadata(cCtx, logger)
	if err != nil {
		return err
	}
	ref := metadata.ByName(cCtx.String(flagMessage.Name))
	if cCtx.String(flagMessage.Name) == "" {
		ref = metadata.ByIndex(cCtx.Int(flagIndex.Name))
	}
	op, err := md.Messages.Resolve(ref)
	if err != nil {
		return err
	}

	workerURL, err := resolveWorker(cCtx)
	if err != nil {
		return err
	}

	var remoteKey []byte
	switch src := cCtx.String(flagKeySource.Name); src {
	case "registry":
		reg, err := registry.DialRPC(ctx, cCtx.String(flags.RegistryAddrFlag.Name))
		if err != nil {
			return err
		}
		defer reg.Close()
		if remoteKey, err = contract.RemoteKey(ctx, reg, contractID); err != nil {
			return err
		}
	case "worker":
		info, err := queryhandler.Info(ctx, workerURL)
		if err != nil {
			return err
		}
		remoteKey = info.WorkerPubkey
	default:
		return fmt.Errorf("%w: unknown key source %q", interfaces.ErrConfiguration, src)
	}

	c, err := contract.New(contract.Config{
		ContractID:   contractID,
		RemotePubkey: remoteKey,
		Operations:   md.Messages,
		Transport:    transport.NewHTTPTransport(workerURL, nil, logger),
		Signer:       signer,
		Suite:        suite,
		Log:          logger,
	})
	if err != nil {
		return err
	}

	result, err := c.QueryOperation(ctx, op, args, contract.CallOptions{})
	if err != nil {
		return err
	}
	if result.Err != nil {
		return printJSON(result.Err)
	}
	fmt.Println(hexutil.Encode(result.Output))
	return nil
}

func publishMetadata(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	codeHash, err := interfaces.NewCodeHashFromHex(cCtx.String(flagCodeHash.Name))
	if err != nil {
		return fmt.Errorf("could not parse code hash: %w", err)
	}
	data, err := os.ReadFile(cCtx.String("file"))
	if err != nil {
		return err
	}
	store, err := metadataStore(cCtx, logger)
	if err != nil {
		return err
	}
	md, err := store.Publish(cCtx.Context, codeHash, data)
	if err != nil {
		return err
	}
	logger.Info("Published contract metadata", "contract", md.Name, "code_hash", codeHash.String(), "messages", md.Messages.Len())
	return nil
}

func deploy(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	ctx := cCtx.Context

	codeHash, err := interfaces.NewCodeHashFromHex(cCtx.String(flagCodeHash.Name))
	if err != nil {
		return fmt.Errorf("could not parse code hash: %w", err)
	}
	clusterID, err := interfaces.NewClusterIDFromHex(cCtx.String("cluster"))
	if err != nil {
		return fmt.Errorf("could not parse cluster id: %w", err)
	}
	args, err := decodeHex(cCtx.String(flagArgs.Name))
	if err != nil {
		return fmt.Errorf("could not parse args: %w", err)
	}
	salt, err := decodeHex(cCtx.String("salt"))
	if err != nil {
		return fmt.Errorf("could not parse salt: %w", err)
	}

	md, err := loadMetadata(cCtx, logger)
	if err != nil {
		return err
	}
	ctor, err := md.Constructors.Resolve(metadata.ByName(cCtx.String("constructor")))
	if err != nil {
		return err
	}

	reg, err := registry.DialRPC(ctx, cCtx.String(flags.RegistryAddrFlag.Name))
	if err != nil {
		return err
	}
	defer reg.Close()

	w, err := watcher.NewFromRegistry(reg, watcher.Config{
		Timeout:      cCtx.Duration("timeout"),
		PollInterval: cCtx.Duration("poll-interval"),
		Log:          logger,
	})
	if err != nil {
		return err
	}

	req := interfaces.NewInstantiateRequest(codeHash, clusterID, ctor.EncodeCall(args), salt)
	rec, err := contract.Instantiate(ctx, reg, w, req)
	if rec != nil {
		if perr := printJSON(rec); perr != nil {
			return perr
		}
	}
	return err
}

func resolveWorker(cCtx *cli.Context) (string, error) {
	service := cCtx.String(flagSRV.Name)
	if service == "" {
		return cCtx.String(flagWorker.Name), nil
	}
	endpoints, err := transport.NewResolver(cCtx.String(flagNameserver.Name)).ResolveEndpoints(cCtx.Context, service)
	if err != nil {
		return "", err
	}
	return endpoints[0].URL("http"), nil
}

func metadataStore(cCtx *cli.Context, logger *slog.Logger) (*metadata.Store, error) {
	locations, err := flags.StorageLocations(cCtx)
	if err != nil {
		return nil, err
	}
	backend, err := storage.NewStorageBackendFactory(logger).CreateMultiBackend(locations)
	if err != nil {
		return nil, err
	}
	return metadata.NewStore(backend, logger)
}

func loadMetadata(cCtx *cli.Context, logger *slog.Logger) (*metadata.Metadata, error) {
	if path := cCtx.String(flagMetadataFile.Name); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return metadata.Parse(data)
	}

	codeHash, err := interfaces.NewCodeHashFromHex(cCtx.String(flagCodeHash.Name))
	if err != nil {
		return nil, fmt.Errorf("could not parse code hash: %w", err)
	}
	store, err := metadataStore(cCtx, logger)
	if err != nil {
		return nil, err
	}
	return store.Load(cCtx.Context, codeHash)
}

func decodeHex(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return hexutil.Decode(s)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
