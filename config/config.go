// Package config holds the engine's recognized option set, per spec §6.4,
// following the Config/DefaultConfig/Validate shape of the teacher's
// btcwallet.Config (lightweight-wallet/wallet/btcwallet/config.go).
package config

import (
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/arkade-os/go-swap-engine/types"
)

// Options holds the six named engine-wide configuration keys from spec
// §6.4, plus the backend/network selection needed to construct the
// concrete repository and provider clients.
type Options struct {
	// EnableAutoActions: if false, the engine monitors and emits events
	// but never invokes the orchestrator.
	EnableAutoActions bool `long:"enable-auto-actions" description:"Run claim/refund actions automatically" default:"true"`

	// PollInterval is the poll period of the connection manager's
	// PollingFallback state. No periodic poll runs while the connection is
	// Open.
	PollInterval time.Duration `long:"poll-interval" description:"Poll period while in polling fallback" default:"30s"`

	// ReconnectDelay is the initial backoff in the Backoff state.
	ReconnectDelay time.Duration `long:"reconnect-delay" description:"Initial reconnect backoff" default:"1s"`

	// MaxReconnectDelay caps the Backoff state's exponential growth.
	MaxReconnectDelay time.Duration `long:"max-reconnect-delay" description:"Reconnect backoff ceiling" default:"60s"`

	// PollRetryDelay is checked by Validate but not passed to the
	// connection manager: PollingFallback polls at a fixed PollInterval
	// and does not back off.
	PollRetryDelay time.Duration `long:"poll-retry-delay" description:"Polling-fallback initial delay (validated only; not used by the connection manager)" default:"5s"`

	// MaxPollRetryDelay is checked by Validate but not passed to the
	// connection manager; PollingFallback has no delay ceiling to apply.
	MaxPollRetryDelay time.Duration `long:"max-poll-retry-delay" description:"Polling-fallback delay ceiling (validated only; not used by the connection manager)" default:"300s"`

	Network types.Network `long:"network" description:"mainnet, testnet, or regtest" default:"mainnet"`

	ProviderURL string `long:"provider-url" description:"Swap provider base URL"`
	ArkServerURL string `long:"ark-server-url" description:"Ark server base URL"`

	RepositoryBackend RepositoryBackend `long:"repository-backend" description:"kvstore, sqlite, or postgres" default:"sqlite"`
	RepositoryDSN     string            `long:"repository-dsn" description:"File path (kvstore/sqlite) or connection string (postgres)"`
}

// RepositoryBackend selects among the three repository implementations
// that satisfy spec §4.2's shared contract.
type RepositoryBackend string

const (
	BackendKV       RepositoryBackend = "kvstore"
	BackendSQLite   RepositoryBackend = "sqlite"
	BackendPostgres RepositoryBackend = "postgres"
)

// Default returns the spec §6.4 default option set.
func Default() *Options {
	return &Options{
		EnableAutoActions: true,
		PollInterval:      30 * time.Second,
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 60 * time.Second,
		PollRetryDelay:    5 * time.Second,
		MaxPollRetryDelay: 300 * time.Second,
		Network:           types.NetworkMainnet,
		RepositoryBackend: BackendSQLite,
	}
}

// Validate rejects option sets that can't construct a working engine.
func (o *Options) Validate() error {
	if !o.Network.Valid() {
		return ErrInvalidNetwork
	}
	if o.ProviderURL == "" {
		return ErrProviderURLRequired
	}
	if o.ArkServerURL == "" {
		return ErrArkServerURLRequired
	}
	switch o.RepositoryBackend {
	case BackendKV, BackendSQLite, BackendPostgres:
	default:
		return ErrUnknownRepositoryBackend
	}
	if o.RepositoryDSN == "" {
		return ErrRepositoryDSNRequired
	}
	if o.PollInterval <= 0 || o.ReconnectDelay <= 0 || o.MaxReconnectDelay <= 0 ||
		o.PollRetryDelay <= 0 || o.MaxPollRetryDelay <= 0 {
		return ErrInvalidTiming
	}
	return nil
}

// ParseArgs parses args (typically os.Args[1:]) over the spec §6.4 default
// set using jessevdk/go-flags, matching the teacher's CLI option parsing
// idiom elsewhere in the pack.
func ParseArgs(args []string) (*Options, error) {
	opts := Default()
	parser := flags.NewParser(opts, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	return opts, nil
}
