package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesSpecDefaults(t *testing.T) {
	opts := Default()
	require.True(t, opts.EnableAutoActions)
	require.Equal(t, "30s", opts.PollInterval.String())
	require.Equal(t, "1s", opts.ReconnectDelay.String())
	require.Equal(t, "1m0s", opts.MaxReconnectDelay.String())
	require.Equal(t, "5s", opts.PollRetryDelay.String())
	require.Equal(t, "5m0s", opts.MaxPollRetryDelay.String())
}

func TestValidateRequiresProviderAndArkURLs(t *testing.T) {
	opts := Default()
	require.Error(t, opts.Validate())

	opts.ProviderURL = "https://provider.example"
	opts.ArkServerURL = "https://ark.example"
	opts.RepositoryDSN = "/tmp/swaps.db"
	require.NoError(t, opts.Validate())
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	opts := Default()
	opts.ProviderURL = "https://provider.example"
	opts.ArkServerURL = "https://ark.example"
	opts.RepositoryDSN = "/tmp/swaps.db"
	opts.RepositoryBackend = "carrier-pigeon"

	require.ErrorIs(t, opts.Validate(), ErrUnknownRepositoryBackend)
}
