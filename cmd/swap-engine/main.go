// Command swap-engine is a thin urfave/cli wrapper around the engine
// package's public Engine surface, per spec §1's expectation that a CLI
// collaborator exists at the embedding edge even though the protocol itself
// treats CLI wrappers as out of scope. It contains no swap logic of its
// own: run starts an Engine and blocks, status prints a swap record read
// from the repository, and wait starts an Engine over the repository's
// records and blocks in WaitForCompletion.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli"
	"golang.org/x/term"

	"github.com/arkade-os/go-swap-engine/arkclient"
	"github.com/arkade-os/go-swap-engine/config"
	"github.com/arkade-os/go-swap-engine/connection"
	"github.com/arkade-os/go-swap-engine/engine"
	"github.com/arkade-os/go-swap-engine/eventbus"
	"github.com/arkade-os/go-swap-engine/metrics"
	"github.com/arkade-os/go-swap-engine/orchestrator"
	"github.com/arkade-os/go-swap-engine/provider"
	"github.com/arkade-os/go-swap-engine/repository"
	"github.com/arkade-os/go-swap-engine/repository/kvstore"
	"github.com/arkade-os/go-swap-engine/repository/pgstore"
	"github.com/arkade-os/go-swap-engine/repository/sqlstore"
	"github.com/arkade-os/go-swap-engine/types"
)

func main() {
	app := cli.NewApp()
	app.Name = "swap-engine"
	app.Usage = "run and inspect the cross-chain swap lifecycle engine"
	app.Commands = []cli.Command{runCommand, statusCommand, waitCommand}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "swap-engine:", err)
		os.Exit(1)
	}
}

var configFlags = []cli.Flag{
	cli.StringFlag{Name: "provider-url", Usage: "swap provider base URL"},
	cli.StringFlag{Name: "ark-server-url", Usage: "Ark server base URL"},
	cli.StringFlag{Name: "network", Value: "mainnet"},
	cli.StringFlag{Name: "repository-backend", Value: "sqlite", Usage: "kvstore, sqlite, or postgres"},
	cli.StringFlag{Name: "repository-dsn", Usage: "file path (kvstore/sqlite) or connection string (postgres)"},
	cli.BoolFlag{Name: "enable-auto-actions"},
	cli.BoolFlag{Name: "prompt-passphrase", Usage: "prompt for a wallet seed passphrase on stdin before starting"},
	cli.StringFlag{Name: "metrics-addr", Usage: "address to serve /metrics on, e.g. :9090 (disabled if empty)"},
}

func optionsFromCLI(c *cli.Context) (*config.Options, error) {
	opts := config.Default()
	opts.ProviderURL = c.String("provider-url")
	opts.ArkServerURL = c.String("ark-server-url")
	opts.Network = types.Network(c.String("network"))
	opts.RepositoryBackend = config.RepositoryBackend(c.String("repository-backend"))
	opts.RepositoryDSN = c.String("repository-dsn")
	opts.EnableAutoActions = c.Bool("enable-auto-actions")

	if c.Bool("prompt-passphrase") {
		if err := promptPassphrase(); err != nil {
			return nil, err
		}
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// promptPassphrase reads a masked wallet passphrase from the controlling
// terminal, grounded on the teacher's CLI's use of x/term for unlocking a
// wallet seed without echoing keystrokes. The engine itself never sees the
// passphrase; it exists only to unlock the key material a caller-supplied
// orchestrator.LocalSigner derives from.
func promptPassphrase() error {
	fmt.Fprint(os.Stderr, "wallet passphrase: ")
	_, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("read passphrase: %w", err)
	}
	return nil
}

func openRepository(opts *config.Options) (repository.Repository, error) {
	switch opts.RepositoryBackend {
	case config.BackendKV:
		return kvstore.Open(opts.RepositoryDSN)
	case config.BackendSQLite:
		return sqlstore.Open(opts.RepositoryDSN)
	case config.BackendPostgres:
		return pgstore.Open(opts.RepositoryDSN)
	default:
		return nil, fmt.Errorf("unknown repository backend %q", opts.RepositoryBackend)
	}
}

var runCommand = cli.Command{
	Name:  "run",
	Usage: "start the lifecycle engine and block until interrupted",
	Flags: configFlags,
	Action: func(c *cli.Context) error {
		opts, err := optionsFromCLI(c)
		if err != nil {
			return err
		}

		repo, err := openRepository(opts)
		if err != nil {
			return fmt.Errorf("open repository: %w", err)
		}
		defer repo.Close()

		provCfg := provider.DefaultConfig()
		provCfg.BaseURL = opts.ProviderURL
		prov := provider.NewClient(provCfg)

		arkCfg := arkclient.DefaultConfig()
		arkCfg.BaseURL = opts.ArkServerURL
		ark := arkclient.NewClient(arkCfg)

		bus := eventbus.New()

		// onOpen/onMessage/pollFn need eng to exist before they can do
		// anything useful, but conn has to be built before eng; these
		// forward declarations let conn wrap calls that are filled in
		// once engine.RealtimeCallbacks runs below.
		var (
			onOpen    func(connection.Conn)
			onMessage func([]byte)
			pollFn    func(context.Context) error
		)

		connCfg := connection.DefaultConfig(prov.GetWsURL())
		connCfg.ReconnectDelay = opts.ReconnectDelay
		connCfg.MaxReconnectDelay = opts.MaxReconnectDelay
		connCfg.PollInterval = opts.PollInterval
		conn := connection.New(connCfg, connection.GorillaDialer{},
			func(c connection.Conn) {
				if onOpen != nil {
					onOpen(c)
				}
			},
			func(data []byte) {
				if onMessage != nil {
					onMessage(data)
				}
			},
			func(ctx context.Context) error {
				if pollFn != nil {
					return pollFn(ctx)
				}
				return nil
			},
		)

		// Builder, Sign, CounterpartySign, and SignIntent are left unset
		// here: the Ark transaction wire format has no reference material
		// in this module (see DESIGN.md), and provider.RefundSubmarineSwap's
		// bundled-PSBT response shape doesn't match CounterpartySigner's
		// one-PSBT-at-a-time type. An embedder with a concrete TxBuilder
		// and signing backend wires these directly; until then Executor
		// rejects the affected calls with ErrMissingDependency instead of
		// risking a nil-pointer panic.
		runner := &orchestrator.Executor{
			Ark:          ark,
			Provider:     prov,
			LookupVtxo:   ark.LookupUnspentVtxo,
			Network:      opts.Network,
			FeeEstimator: prov.EstimateCheckpointFeeRate,
		}

		eng := engine.New(engine.Config{EnableAutoActions: opts.EnableAutoActions}, repo, prov, conn, bus, runner)
		onOpen, onMessage, pollFn = engine.RealtimeCallbacks(eng)

		if addr := c.String("metrics-addr"); addr != "" {
			collectors := metrics.NewCollectors("swapengine")
			collectors.MustRegister(prometheus.DefaultRegisterer)
			bus.OnActionExecuted(collectors.ObserveActionExecuted())

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			server := &http.Server{Addr: addr, Handler: mux}
			go func() {
				_ = server.ListenAndServe()
			}()
			defer server.Close()
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		records, err := repo.GetAll(ctx, nil)
		if err != nil {
			return fmt.Errorf("load swap records: %w", err)
		}
		if err := eng.Start(ctx, records); err != nil {
			return fmt.Errorf("start engine: %w", err)
		}
		defer eng.Stop()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		return nil
	},
}

var statusCommand = cli.Command{
	Name:      "status",
	Usage:     "print a swap record's current status",
	Flags:     configFlags,
	ArgsUsage: "<swap-id>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("status requires exactly one swap id argument")
		}
		opts, err := optionsFromCLI(c)
		if err != nil {
			return err
		}
		repo, err := openRepository(opts)
		if err != nil {
			return err
		}
		defer repo.Close()

		record, err := repo.Get(context.Background(), types.SwapId(c.Args().Get(0)))
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\t%s\n", record.ID, record.Kind, record.Status)
		return nil
	},
}

var waitCommand = cli.Command{
	Name:      "wait",
	Usage:     "block until a swap completes, printing its settlement txid",
	Flags:     configFlags,
	ArgsUsage: "<swap-id>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("wait requires exactly one swap id argument")
		}
		opts, err := optionsFromCLI(c)
		if err != nil {
			return err
		}

		repo, err := openRepository(opts)
		if err != nil {
			return err
		}
		defer repo.Close()

		provCfg := provider.DefaultConfig()
		provCfg.BaseURL = opts.ProviderURL
		prov := provider.NewClient(provCfg)

		arkCfg := arkclient.DefaultConfig()
		arkCfg.BaseURL = opts.ArkServerURL
		ark := arkclient.NewClient(arkCfg)

		bus := eventbus.New()

		var (
			onOpen    func(connection.Conn)
			onMessage func([]byte)
			pollFn    func(context.Context) error
		)

		connCfg := connection.DefaultConfig(prov.GetWsURL())
		conn := connection.New(connCfg, connection.GorillaDialer{},
			func(c connection.Conn) {
				if onOpen != nil {
					onOpen(c)
				}
			},
			func(data []byte) {
				if onMessage != nil {
					onMessage(data)
				}
			},
			func(ctx context.Context) error {
				if pollFn != nil {
					return pollFn(ctx)
				}
				return nil
			},
		)
		runner := &orchestrator.Executor{
			Ark:        ark,
			Provider:   prov,
			LookupVtxo: ark.LookupUnspentVtxo,
			Network:    opts.Network,
		}
		eng := engine.New(engine.Config{EnableAutoActions: opts.EnableAutoActions}, repo, prov, conn, bus, runner)
		onOpen, onMessage, pollFn = engine.RealtimeCallbacks(eng)

		ctx := context.Background()
		records, err := repo.GetAll(ctx, nil)
		if err != nil {
			return err
		}
		if err := eng.Start(ctx, records); err != nil {
			return err
		}
		defer eng.Stop()

		txid, err := eng.WaitForCompletion(ctx, types.SwapId(c.Args().Get(0)))
		if err != nil {
			return err
		}
		fmt.Println(txid)
		return nil
	},
}
