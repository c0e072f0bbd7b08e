package config

import "errors"

var (
	ErrInvalidNetwork           = errors.New("config: network must be mainnet, testnet, or regtest")
	ErrProviderURLRequired      = errors.New("config: provider URL required")
	ErrArkServerURLRequired     = errors.New("config: ark server URL required")
	ErrUnknownRepositoryBackend = errors.New("config: unknown repository backend")
	ErrRepositoryDSNRequired    = errors.New("config: repository DSN required")
	ErrInvalidTiming            = errors.New("config: all timing options must be positive")
)
